package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"mercator-hq/lethe/pkg/retention"
	"mercator-hq/lethe/pkg/retention/storage"
)

func TestOutboxNotifier_Idempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	n := NewOutboxNotifier(store, func() time.Time { return now })
	notice := retention.Notice{Category: retention.CategoryUserProfile, RecordID: "u-1", DeletionDate: now.Add(retention.Days(20))}

	ctx := context.Background()
	queued, err := n.Dispatch(ctx, notice)
	if err != nil || !queued {
		t.Fatalf("Dispatch() = %v, %v; want queued", queued, err)
	}
	queued, err = n.Dispatch(ctx, notice)
	if err != nil || queued {
		t.Errorf("second Dispatch() = %v, %v; want not queued", queued, err)
	}
	if store.Notices() != 1 {
		t.Errorf("Notices() = %d, want 1", store.Notices())
	}

	notice.DeletionDate = notice.DeletionDate.Add(retention.Day)
	if queued, _ := n.Dispatch(ctx, notice); !queued {
		t.Error("a new deletion date must produce a new notice")
	}
}

func TestLogNotifier(t *testing.T) {
	ok, err := NewLogNotifier().Dispatch(context.Background(), retention.Notice{Category: retention.CategoryCVDocument, RecordID: "cv-1"})
	if err != nil || !ok {
		t.Errorf("Dispatch() = %v, %v", ok, err)
	}
}

func TestNew(t *testing.T) {
	store := storage.NewMemoryStore()

	tests := []struct {
		sink    string
		outbox  retention.NoticeOutbox
		want    string
		wantErr bool
	}{
		{sink: "", want: "*notify.LogNotifier"},
		{sink: SinkLog, want: "*notify.LogNotifier"},
		{sink: SinkOutbox, outbox: store, want: "*notify.OutboxNotifier"},
		{sink: SinkOutbox, wantErr: true},
		{sink: "smtp", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.sink, func(t *testing.T) {
			n, err := New(tt.sink, tt.outbox, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var cfgErr *retention.ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Errorf("New() error type = %T", err)
				}
				return
			}
			switch n.(type) {
			case *LogNotifier:
				if tt.want != "*notify.LogNotifier" {
					t.Errorf("New() = %T, want %s", n, tt.want)
				}
			case *OutboxNotifier:
				if tt.want != "*notify.OutboxNotifier" {
					t.Errorf("New() = %T, want %s", n, tt.want)
				}
			}
		})
	}
}
