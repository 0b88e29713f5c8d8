package retention

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func TestPolicy_Operation(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		want   Operation
	}{
		{
			name:   "anonymization wins",
			policy: Policy{AllowAnonymization: true, RequiresManualReview: true, AllowHardDelete: true},
			want:   OperationAnonymize,
		},
		{
			name:   "manual review restricts to soft delete",
			policy: Policy{RequiresManualReview: true, AllowHardDelete: true},
			want:   OperationSoftDelete,
		},
		{
			name:   "hard delete requires opt-in",
			policy: Policy{AllowHardDelete: true},
			want:   OperationHardDelete,
		},
		{
			name:   "default is soft delete",
			policy: Policy{},
			want:   OperationSoftDelete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Operation(); got != tt.want {
				t.Errorf("Operation() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPolicy_Notifies(t *testing.T) {
	if (Policy{RetentionDays: 0, NotifyBeforeDeletion: true, NotificationDays: 5}).Notifies() {
		t.Error("indefinite policy must not notify")
	}
	if !(Policy{RetentionDays: 30, NotifyBeforeDeletion: true, NotificationDays: 5}).Notifies() {
		t.Error("expected notifying policy")
	}
	if (Policy{RetentionDays: 30}).Notifies() {
		t.Error("policy without notify flag must not notify")
	}
}

func TestWindow_Contains(t *testing.T) {
	policy := Policy{RetentionDays: 30, NotifyBeforeDeletion: true, NotificationDays: 7}
	deletion := policy.DeletionWindow(testNow)
	notification := policy.NotificationWindow(testNow)

	tests := []struct {
		name         string
		ageDays      float64
		deletion     bool
		notification bool
	}{
		{"fresh", 1, false, false},
		{"before lead window", 22, false, false},
		{"exactly at notification date", 23, false, true},
		{"inside lead window", 25, false, true},
		{"one second before deletion date", 30 - 1.0/86400, false, true},
		{"exactly at deletion date", 30, true, false},
		{"long expired", 400, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := testNow.Add(-time.Duration(tt.ageDays * float64(Day)))
			if got := deletion.Contains(ref); got != tt.deletion {
				t.Errorf("deletion window Contains() = %v, want %v", got, tt.deletion)
			}
			if got := notification.Contains(ref); got != tt.notification {
				t.Errorf("notification window Contains() = %v, want %v", got, tt.notification)
			}
		})
	}
}

// TestWindows_Disjoint checks that no reference date is ever both due for
// deletion and due for notification.
func TestWindows_Disjoint(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		retention := rapid.IntRange(2, 4000).Draw(t, "retention")
		notice := rapid.IntRange(1, retention-1).Draw(t, "notice")
		policy := Policy{RetentionDays: retention, NotifyBeforeDeletion: true, NotificationDays: notice}

		offset := rapid.Int64Range(0, int64(5000*Day)).Draw(t, "offset")
		ref := testNow.Add(-time.Duration(offset))

		inDeletion := policy.DeletionWindow(testNow).Contains(ref)
		inNotification := policy.NotificationWindow(testNow).Contains(ref)
		if inDeletion && inNotification {
			t.Fatalf("reference %s in both windows (retention=%d notice=%d)", ref, retention, notice)
		}

		er := NewEligibleRecord(StoredRecord{ID: "r", CreatedAt: ref}, policy)
		if inDeletion != !er.DeletionDate.After(testNow) {
			t.Fatalf("deletion window disagrees with deletion date %s", er.DeletionDate)
		}
		if inNotification != (!er.NotificationDate.After(testNow) && testNow.Before(er.DeletionDate)) {
			t.Fatalf("notification window disagrees with notification date %s", er.NotificationDate)
		}
	})
}
