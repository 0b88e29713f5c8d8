package retention

import (
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestNewEligibleRecord(t *testing.T) {
	created := testNow.AddDate(0, 0, -100)
	accessed := testNow.AddDate(0, 0, -10)
	policy := Policy{Category: CategoryUserProfile, RetentionDays: 30, NotifyBeforeDeletion: true, NotificationDays: 7}

	t.Run("uses last access as reference", func(t *testing.T) {
		er := NewEligibleRecord(StoredRecord{ID: "a", CreatedAt: created, LastAccessedAt: &accessed}, policy)
		if !er.ReferenceDate.Equal(accessed) {
			t.Errorf("ReferenceDate = %s, want %s", er.ReferenceDate, accessed)
		}
		if want := accessed.Add(30 * Day); !er.DeletionDate.Equal(want) {
			t.Errorf("DeletionDate = %s, want %s", er.DeletionDate, want)
		}
		if er.NotificationDate == nil {
			t.Fatal("NotificationDate = nil, want set")
		}
		if want := accessed.Add(23 * Day); !er.NotificationDate.Equal(want) {
			t.Errorf("NotificationDate = %s, want %s", *er.NotificationDate, want)
		}
	})

	t.Run("falls back to created_at", func(t *testing.T) {
		er := NewEligibleRecord(StoredRecord{ID: "b", CreatedAt: created}, policy)
		if !er.ReferenceDate.Equal(created) {
			t.Errorf("ReferenceDate = %s, want %s", er.ReferenceDate, created)
		}
	})

	t.Run("no notification date without notify flag", func(t *testing.T) {
		p := policy
		p.NotifyBeforeDeletion = false
		er := NewEligibleRecord(StoredRecord{ID: "c", CreatedAt: created}, p)
		if er.NotificationDate != nil {
			t.Errorf("NotificationDate = %s, want nil", *er.NotificationDate)
		}
	})

	t.Run("normalises to UTC", func(t *testing.T) {
		loc := time.FixedZone("UTC+5", 5*3600)
		er := NewEligibleRecord(StoredRecord{ID: "d", CreatedAt: created.In(loc)}, policy)
		if er.ReferenceDate.Location() != time.UTC {
			t.Errorf("ReferenceDate location = %s, want UTC", er.ReferenceDate.Location())
		}
	})
}

func TestEligibleRecord_Validate(t *testing.T) {
	created := testNow.AddDate(0, 0, -10)
	future := testNow.Add(time.Hour)
	beforeCreated := created.Add(-time.Hour)
	ok := testNow.AddDate(0, 0, -1)

	tests := []struct {
		name    string
		record  EligibleRecord
		wantErr bool
	}{
		{"valid without access", EligibleRecord{ID: "1", CreatedAt: created}, false},
		{"valid with access", EligibleRecord{ID: "1", CreatedAt: created, LastAccessedAt: &ok}, false},
		{"empty id", EligibleRecord{CreatedAt: created}, true},
		{"zero created_at", EligibleRecord{ID: "1"}, true},
		{"future created_at", EligibleRecord{ID: "1", CreatedAt: future}, true},
		{"future access", EligibleRecord{ID: "1", CreatedAt: created, LastAccessedAt: &future}, true},
		{"access before creation", EligibleRecord{ID: "1", CreatedAt: created, LastAccessedAt: &beforeCreated}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate(testNow)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("Validate() error type = %T, want *ValidationError", err)
				}
			}
		})
	}
}

// TestEligibleRecord_DateOrdering checks notificationDate < deletionDate and
// deletionDate - referenceDate == retentionDays for arbitrary inputs.
func TestEligibleRecord_DateOrdering(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		retention := rapid.IntRange(1, 4000).Draw(t, "retention")
		notify := rapid.Bool().Draw(t, "notify")
		notice := 0
		if retention > 1 {
			notice = rapid.IntRange(1, retention-1).Draw(t, "notice")
		} else {
			notify = false
		}
		policy := Policy{RetentionDays: retention, NotifyBeforeDeletion: notify, NotificationDays: notice}

		age := rapid.Int64Range(0, int64(5000*Day)).Draw(t, "age")
		er := NewEligibleRecord(StoredRecord{ID: "x", CreatedAt: testNow.Add(-time.Duration(age))}, policy)

		if got := er.DeletionDate.Sub(er.ReferenceDate); got != Days(retention) {
			t.Fatalf("deletion - reference = %s, want %d days", got, retention)
		}
		if notify {
			if er.NotificationDate == nil || !er.NotificationDate.Before(er.DeletionDate) {
				t.Fatalf("notification date %v not before deletion date %s", er.NotificationDate, er.DeletionDate)
			}
		} else if er.NotificationDate != nil {
			t.Fatalf("unexpected notification date %s", *er.NotificationDate)
		}
	})
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"user_profile", CategoryUserProfile, false},
		{"USER_PROFILE", CategoryUserProfile, false},
		{"failed-login-attempt", CategoryFailedLoginAttempt, false},
		{" audit_log ", CategoryAuditLog, false},
		{"payments", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCategory() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnknownCategory) {
				t.Errorf("ParseCategory() error = %v, want ErrUnknownCategory", err)
			}
			if got != tt.want {
				t.Errorf("ParseCategory() = %s, want %s", got, tt.want)
			}
		})
	}
}
