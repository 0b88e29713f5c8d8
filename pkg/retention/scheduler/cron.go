package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/lethe/pkg/retention"
)

// Schedules holds the cron expressions of the recurring jobs. An empty
// expression disables that job.
//
// Common cron expressions:
//   - "0 2 * * *"  - Daily at 2 AM
//   - "0 9 * * *"  - Daily at 9 AM
//   - "0 3 * * 0"  - Weekly on Sunday at 3 AM
type Schedules struct {
	DailyCheck        string `yaml:"daily_check"`
	NotificationCheck string `yaml:"notification_check"`
	WeeklyCleanup     string `yaml:"weekly_cleanup"`
}

// DefaultSchedules returns the default job schedules, evaluated in UTC.
func DefaultSchedules() Schedules {
	return Schedules{
		DailyCheck:        "0 2 * * *",
		NotificationCheck: "0 9 * * *",
		WeeklyCleanup:     "0 3 * * 0",
	}
}

func (s Schedules) entries() []struct {
	kind retention.JobKind
	spec string
} {
	return []struct {
		kind retention.JobKind
		spec string
	}{
		{retention.JobDailyCheck, s.DailyCheck},
		{retention.JobNotificationCheck, s.NotificationCheck},
		{retention.JobWeeklyCleanup, s.WeeklyCleanup},
	}
}

// Validate parses every non-empty expression.
func (s Schedules) Validate() error {
	for _, e := range s.entries() {
		if e.spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(e.spec); err != nil {
			return fmt.Errorf("invalid cron schedule %q for %s: %w", e.spec, e.kind, err)
		}
	}
	return nil
}

// Runner runs one job kind. It is implemented by *Engine.
type Runner interface {
	Run(ctx context.Context, kind retention.JobKind) (retention.ScheduledJobResult, error)
}

// Scheduler triggers engine jobs on cron schedules. A job that is still
// running when its next tick fires is skipped.
type Scheduler struct {
	runner    Runner
	schedules Schedules
	cron      *cron.Cron
	mu        sync.Mutex
	logger    *slog.Logger
	running   bool
	last      map[retention.JobKind]retention.ScheduledJobResult
}

// NewScheduler creates a scheduler for runner.
func NewScheduler(runner Runner, schedules Schedules) *Scheduler {
	logger := slog.Default().With("component", "retention.cron")
	return &Scheduler{
		runner:    runner,
		schedules: schedules,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger})),
		),
		logger: logger,
		last:   make(map[retention.JobKind]retention.ScheduledJobResult),
	}
}

// Start registers every configured job and starts the cron loop. The
// scheduler stops when ctx is cancelled. If no schedule is configured the
// scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.schedules.Validate(); err != nil {
		return err
	}

	registered := 0
	for _, e := range s.schedules.entries() {
		if e.spec == "" {
			s.logger.Info("job schedule not configured", "job_kind", e.kind)
			continue
		}
		kind := e.kind
		if _, err := s.cron.AddFunc(e.spec, func() { s.run(ctx, kind) }); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", kind, err)
		}
		registered++
	}
	if registered == 0 {
		s.logger.Info("no job schedules configured, skipping scheduler")
		return nil
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("retention scheduler started",
		"daily_check", s.schedules.DailyCheck,
		"notification_check", s.schedules.NotificationCheck,
		"weekly_cleanup", s.schedules.WeeklyCleanup,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) run(ctx context.Context, kind retention.JobKind) {
	s.logger.Info("starting scheduled job", "job_kind", kind)

	result, err := s.runner.Run(ctx, kind)
	if err != nil {
		s.logger.Error("scheduled job could not start", "job_kind", kind, "error", err)
		return
	}

	s.mu.Lock()
	s.last[kind] = result
	s.mu.Unlock()

	if !result.Success {
		s.logger.Warn("scheduled job finished with errors",
			"job_kind", kind,
			"job_id", result.JobID,
			"errors", len(result.Errors),
		)
	}
}

// Stop stops the scheduler and waits for running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cron == nil || !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.cron
	s.mu.Unlock()

	<-c.Stop().Done()
	s.logger.Info("retention scheduler stopped")
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the earliest next activation across all jobs.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *time.Time
	for _, entry := range s.cron.Entries() {
		if entry.Next.IsZero() {
			continue
		}
		if next == nil || entry.Next.Before(*next) {
			t := entry.Next
			next = &t
		}
	}
	return next
}

// LastResult returns the result of the most recent scheduled run of kind.
func (s *Scheduler) LastResult(kind retention.JobKind) (retention.ScheduledJobResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.last[kind]
	return r, ok
}

// cronLogger routes cron's internal log lines to slog.
type cronLogger struct{ logger *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
