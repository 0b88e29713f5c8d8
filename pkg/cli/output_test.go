package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"mercator-hq/lethe/pkg/retention"
)

var testNow = time.Date(2026, 6, 15, 2, 0, 0, 0, time.UTC)

func sampleResult() retention.ScheduledJobResult {
	r := retention.ScheduledJobResult{
		JobID:      "job-1",
		Kind:       retention.JobWeeklyCleanup,
		StartedAt:  testNow,
		FinishedAt: testNow.Add(1500 * time.Millisecond),
		Categories: []retention.CategoryResult{
			{
				Category: retention.CategoryUserProfile,
				State:    retention.CategoryExecuted,
				Scanned:  2,
				Batch: retention.BatchDeletionResult{
					Category: retention.CategoryUserProfile, TotalProcessed: 2, Successful: 2, Anonymized: 2,
				},
			},
			{
				Category: retention.CategoryCVDocument,
				State:    retention.CategoryExecuted,
				Scanned:  1,
				Batch: retention.BatchDeletionResult{
					Category: retention.CategoryCVDocument, TotalProcessed: 1, Failed: 1,
					Errors: []string{"cv-9: store unavailable"},
				},
			},
		},
		Housekeeping: []retention.HousekeepingResult{{Task: "expired_sessions", Removed: 4}},
	}
	r.Aggregate()
	return r
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat() = %q, want %q", got, tt.want)
			}
			if tt.wantErr && ExitCode(err) != ExitUsage {
				t.Errorf("format error should map to usage exit code")
			}
		})
	}
}

func TestTextFormatter_JobResult(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatText).FormatTo(&buf, sampleResult()); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Job weekly_cleanup",
		"ID: job-1",
		"user_profile",
		"expired_sessions: 4 removed",
		"processed=3 successful=2 failed=1 anonymized=2",
		"housekept=4",
		"Errors (1):",
		"  - cv_document: cv-9: store unavailable",
		"Result: FAILED",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestTextFormatter_DryRunSuccess(t *testing.T) {
	r := retention.ScheduledJobResult{Kind: retention.JobDailyCheck, DryRun: true, StartedAt: testNow, FinishedAt: testNow}
	r.Aggregate()

	var buf bytes.Buffer
	if err := NewFormatter(FormatText).FormatTo(&buf, &r); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Job daily_check (dry run)") || !strings.Contains(out, "Result: SUCCESS") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "Errors") {
		t.Errorf("successful job printed an error section:\n%s", out)
	}
}

func TestJSONFormatter_JobResult(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatJSON).FormatTo(&buf, sampleResult()); err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Kind    string   `json:"kind"`
		Success bool     `json:"success"`
		Errors  []string `json:"errors"`
		Totals  struct {
			Processed int `json:"processed"`
		} `json:"totals"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Kind != "weekly_cleanup" || decoded.Success || len(decoded.Errors) != 1 || decoded.Totals.Processed != 3 {
		t.Errorf("unexpected decoded result %+v", decoded)
	}
}

func TestPolicyTable(t *testing.T) {
	rows := PolicyTable{
		NewPolicyRow(retention.Policy{
			Category: retention.CategoryUserProfile, RetentionDays: 1095,
			NotifyBeforeDeletion: true, NotificationDays: 30, AllowAnonymization: true,
			LegalBasis: "contract",
		}, "user_profiles"),
		NewPolicyRow(retention.Policy{Category: retention.CategoryAuditLog, LegalBasis: "legal obligation"}, "audit_logs"),
	}

	var buf bytes.Buffer
	if err := NewFormatter(FormatText).FormatTo(&buf, rows); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"CATEGORY", "1095d", "anonymize", "30d before", "indefinite", "keep"} {
		if !strings.Contains(out, want) {
			t.Errorf("policy table missing %q\n%s", want, out)
		}
	}
}

func TestCSVFormatter(t *testing.T) {
	stats := StatsTable{
		{Category: retention.CategoryCVDocument, Table: "cv_documents", Total: 12345, Deleted: 10, EligibleForDeletion: 3, FutureDated: 2},
		{Category: retention.CategoryBillingRecord, Table: "billing_records", Error: "timeout"},
	}

	var buf bytes.Buffer
	if err := NewFormatter(FormatCSV).FormatTo(&buf, stats); err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d CSV records, want 3", len(records))
	}
	if records[1][2] != "12,345" {
		t.Errorf("total = %q, want 12,345", records[1][2])
	}
	if records[0][6] != "FUTURE DATED" || records[1][6] != "2" {
		t.Errorf("future dated column = %q/%q", records[0][6], records[1][6])
	}
	if !strings.Contains(records[2][2], "timeout") {
		t.Errorf("error row = %v", records[2])
	}
}

func TestCSVFormatter_RejectsNonTable(t *testing.T) {
	err := NewFormatter(FormatCSV).FormatTo(&bytes.Buffer{}, sampleResult())
	if err == nil {
		t.Fatal("expected error for non-tabular CSV output")
	}
}

func TestTextFormatter_Status(t *testing.T) {
	report := StatusReport{
		GeneratedAt:   testNow,
		Enabled:       true,
		BatchSize:     100,
		MaxRecords:    1000,
		Concurrency:   1,
		Storage:       "sqlite",
		Notifications: "outbox",
		Schedules:     map[string]string{"daily_check": "0 2 * * *", "weekly_cleanup": ""},
		LastRuns: []retention.JobRun{{
			Kind: retention.JobDailyCheck, Success: true, Processed: 7,
			StartedAt: testNow.Add(-3 * time.Hour), FinishedAt: testNow.Add(-3 * time.Hour),
		}},
	}

	var buf bytes.Buffer
	if err := NewFormatter(FormatText).FormatTo(&buf, report); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Engine: enabled",
		"Storage: sqlite",
		"daily_check: 0 2 * * *",
		"weekly_cleanup: (disabled)",
		"daily_check: SUCCESS 3 hours ago (processed 7, failed 0)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q\n%s", want, out)
		}
	}
}

func TestRunTable(t *testing.T) {
	runs := RunTable{{
		ID: "r1", Kind: retention.JobNotificationCheck,
		StartedAt: testNow, FinishedAt: testNow.Add(2 * time.Second), Success: true,
	}}
	rows := runs.Rows()
	if len(rows) != 1 || rows[0][3] != "2s" || rows[0][6] != "SUCCESS" {
		t.Errorf("unexpected rows %v", rows)
	}
}
