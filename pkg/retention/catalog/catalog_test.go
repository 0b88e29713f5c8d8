package catalog

import (
	"errors"
	"strings"
	"testing"

	"mercator-hq/lethe/pkg/retention"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestDefault_IsCompleteAndValid(t *testing.T) {
	c, err := Default(nil)
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if v := c.Validate(); len(v) != 0 {
		t.Fatalf("Validate() = %v, want no violations", v)
	}
	for _, category := range retention.AllCategories() {
		p := c.Get(category)
		if p.Category != category {
			t.Errorf("Get(%s).Category = %s", category, p.Category)
		}
		if c.Target(category).Table == "" {
			t.Errorf("Target(%s) has no table", category)
		}
	}
	if got := len(c.Policies()); got != len(retention.AllCategories()) {
		t.Errorf("len(Policies()) = %d, want %d", got, len(retention.AllCategories()))
	}
}

func TestDefault_ManualReviewCategoriesNeverHardDelete(t *testing.T) {
	c, err := Default(nil)
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	for _, p := range c.Policies() {
		if p.RequiresManualReview && p.Operation() == retention.OperationHardDelete {
			t.Errorf("%s requires manual review but resolves to hard delete", p.Category)
		}
	}
}

func TestNew_Overrides(t *testing.T) {
	c, err := Default(map[retention.Category]Override{
		retention.CategoryUserProfile:  {RetentionDays: intPtr(400), NotificationDays: intPtr(10)},
		retention.CategoryNotification: {RetentionDays: intPtr(30)},
	})
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	p := c.Get(retention.CategoryUserProfile)
	if p.RetentionDays != 400 || p.NotificationDays != 10 {
		t.Errorf("user_profile = %d/%d, want 400/10", p.RetentionDays, p.NotificationDays)
	}
	if c.Get(retention.CategoryNotification).RetentionDays != 30 {
		t.Errorf("notification retention override not applied")
	}
}

func TestNew_Violations(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[retention.Category]Override
		mutate    func([]retention.Policy, []Target) ([]retention.Policy, []Target)
		wantMsg   string
	}{
		{
			name:      "negative retention",
			overrides: map[retention.Category]Override{retention.CategorySecurityLog: {RetentionDays: intPtr(-1)}},
			wantMsg:   "security_log.retention_days",
		},
		{
			name:      "notification window not shorter than retention",
			overrides: map[retention.Category]Override{retention.CategoryJobPosting: {NotificationDays: intPtr(365)}},
			wantMsg:   "job_posting.notification_days: must be < retention_days",
		},
		{
			name:      "non-positive notification days",
			overrides: map[retention.Category]Override{retention.CategoryNotification: {NotifyBeforeDeletion: boolPtr(true)}},
			wantMsg:   "notification.notification_days: must be > 0",
		},
		{
			name:      "override for unknown category",
			overrides: map[retention.Category]Override{"payments": {RetentionDays: intPtr(1)}},
			wantMsg:   "payments.override",
		},
		{
			name: "missing policy",
			mutate: func(p []retention.Policy, t []Target) ([]retention.Policy, []Target) {
				return p[1:], t
			},
			wantMsg: "user_profile.policy: no policy declared",
		},
		{
			name: "duplicate table",
			mutate: func(p []retention.Policy, t []Target) ([]retention.Policy, []Target) {
				t[1].Table = t[0].Table
				return p, t
			},
			wantMsg: "already used by user_profile",
		},
		{
			name: "unsafe column name",
			mutate: func(p []retention.Policy, t []Target) ([]retention.Policy, []Target) {
				t[0].Columns = append(t[0].Columns, Column{Name: "email; drop table x", Type: ColumnText})
				return p, t
			},
			wantMsg: "invalid column name",
		},
		{
			name: "manual review with hard delete",
			mutate: func(p []retention.Policy, t []Target) ([]retention.Policy, []Target) {
				for i := range p {
					if p[i].Category == retention.CategoryAuditLog {
						p[i].AllowHardDelete = true
					}
				}
				return p, t
			},
			wantMsg: "audit_log.allow_hard_delete",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policies, targets := DefaultPolicies(), DefaultTargets()
			if tt.mutate != nil {
				policies, targets = tt.mutate(policies, targets)
			}

			_, err := New(policies, targets, tt.overrides)
			if err == nil {
				t.Fatal("New() error = nil, want violation")
			}
			var cfgErr *retention.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("New() error type = %T, want *retention.ConfigurationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("New() error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestCatalog_Notifying(t *testing.T) {
	c, err := Default(nil)
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	for _, category := range c.Notifying() {
		if !c.Get(category).Notifies() {
			t.Errorf("%s listed as notifying", category)
		}
	}
	if len(c.Notifying()) == 0 {
		t.Error("expected at least one notifying category")
	}
}

func TestGet_PanicsForUnknownCategory(t *testing.T) {
	c, err := Default(nil)
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("Get() did not panic for unknown category")
		}
	}()
	c.Get("payments")
}
