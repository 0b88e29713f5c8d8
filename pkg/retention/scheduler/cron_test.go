package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"mercator-hq/lethe/pkg/retention"
)

type countingRunner struct {
	mu    sync.Mutex
	calls map[retention.JobKind]int
}

func (r *countingRunner) Run(_ context.Context, kind retention.JobKind) (retention.ScheduledJobResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[retention.JobKind]int)
	}
	r.calls[kind]++
	return retention.ScheduledJobResult{JobID: "job-1", Kind: kind, Success: true}, nil
}

func (r *countingRunner) count(kind retention.JobKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[kind]
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedules   Schedules
		wantRunning bool
		wantError   bool
	}{
		{
			name:        "default schedules",
			schedules:   DefaultSchedules(),
			wantRunning: true,
		},
		{
			name:        "daily only",
			schedules:   Schedules{DailyCheck: "0 2 * * *"},
			wantRunning: true,
		},
		{
			name:        "empty schedules - no error, not running",
			schedules:   Schedules{},
			wantRunning: false,
		},
		{
			name:      "invalid schedule",
			schedules: Schedules{DailyCheck: "0 2 * * *", WeeklyCleanup: "every sunday"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(&countingRunner{}, tt.schedules)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}

			if tt.wantRunning {
				next := s.NextRun()
				if next == nil {
					t.Error("NextRun() returned nil for running scheduler")
				} else if next.Location() != time.UTC {
					t.Errorf("NextRun() location = %s, want UTC", next.Location())
				}
			}

			s.Stop()
			if s.IsRunning() {
				t.Error("scheduler still running after Stop()")
			}
		})
	}
}

func TestScheduler_RunsJobs(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, Schedules{NotificationCheck: "@every 1s"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for runner.count(retention.JobNotificationCheck) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("notification check was never triggered")
		}
		time.Sleep(50 * time.Millisecond)
	}
	if runner.count(retention.JobDailyCheck) != 0 {
		t.Error("unscheduled daily check was triggered")
	}
	if r, ok := s.LastResult(retention.JobNotificationCheck); !ok || r.JobID != "job-1" {
		t.Errorf("LastResult() = %+v, %v", r, ok)
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := NewScheduler(&countingRunner{}, DefaultSchedules())
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler still running after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSchedules_Validate(t *testing.T) {
	if err := DefaultSchedules().Validate(); err != nil {
		t.Errorf("DefaultSchedules().Validate() = %v", err)
	}
	if err := (Schedules{NotificationCheck: "61 * * * *"}).Validate(); err == nil {
		t.Error("Validate() accepted minute 61")
	}
}
