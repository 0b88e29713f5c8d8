// Package housekeeping purges auxiliary tables that are not modelled as data
// categories: expired sessions and password reset tokens owned by the
// application, and the engine's own job history and notice outbox.
package housekeeping

import (
	"context"
	"log/slog"
	"time"

	"mercator-hq/lethe/pkg/retention"
	"mercator-hq/lethe/pkg/retention/catalog"
)

// Config controls how long auxiliary rows are kept past their timestamp.
type Config struct {
	// SessionGrace keeps expired sessions for a while after expiry.
	SessionGrace time.Duration `yaml:"session_grace"`

	// ResetTokenGrace keeps expired password reset tokens after expiry.
	ResetTokenGrace time.Duration `yaml:"reset_token_grace"`

	// JobRunRetention is how long job run history is kept.
	JobRunRetention time.Duration `yaml:"job_run_retention"`

	// NoticeRetention is how long queued notices are kept.
	NoticeRetention time.Duration `yaml:"notice_retention"`
}

// DefaultConfig returns the default housekeeping configuration.
func DefaultConfig() Config {
	return Config{
		SessionGrace:    0,
		ResetTokenGrace: 0,
		JobRunRetention: retention.Days(90),
		NoticeRetention: retention.Days(180),
	}
}

// Task purges rows of one auxiliary table whose timestamp is at or before
// now - MaxAge.
type Task struct {
	Name   string
	Target retention.AuxTarget
	MaxAge time.Duration
}

// Tasks returns the housekeeping tasks of cfg.
func Tasks(cfg Config) []Task {
	return []Task{
		{
			Name:   "expired_sessions",
			Target: retention.AuxTarget{Table: catalog.TableUserSessions, Column: "expires_at"},
			MaxAge: cfg.SessionGrace,
		},
		{
			Name:   "expired_password_reset_tokens",
			Target: retention.AuxTarget{Table: catalog.TablePasswordResetTokens, Column: "expires_at"},
			MaxAge: cfg.ResetTokenGrace,
		},
		{
			Name:   "job_run_history",
			Target: retention.AuxTarget{Table: catalog.TableJobRuns, Column: "finished_at"},
			MaxAge: cfg.JobRunRetention,
		},
		{
			Name:   "notice_outbox",
			Target: retention.AuxTarget{Table: catalog.TableNotices, Column: "enqueued_at"},
			MaxAge: cfg.NoticeRetention,
		},
	}
}

// Runner executes housekeeping tasks.
type Runner struct {
	store  retention.AuxiliaryStore
	tasks  []Task
	logger *slog.Logger
}

// NewRunner creates a runner for tasks against store.
func NewRunner(store retention.AuxiliaryStore, tasks []Task) *Runner {
	return &Runner{
		store:  store,
		tasks:  tasks,
		logger: slog.Default().With("component", "retention.housekeeping"),
	}
}

// Run executes every task. A failing task never stops the others; its error
// is reported in its result. In dry-run mode rows are counted, not removed.
func (r *Runner) Run(ctx context.Context, now time.Time, dryRun bool) []retention.HousekeepingResult {
	results := make([]retention.HousekeepingResult, 0, len(r.tasks))
	for _, task := range r.tasks {
		if err := ctx.Err(); err != nil {
			results = append(results, retention.HousekeepingResult{Task: task.Name, Error: err.Error()})
			continue
		}

		cutoff := now.UTC().Add(-task.MaxAge)
		var (
			n   int64
			err error
		)
		if dryRun {
			n, err = r.store.CountExpired(ctx, task.Target, cutoff)
		} else {
			n, err = r.store.PurgeExpired(ctx, task.Target, cutoff)
		}

		res := retention.HousekeepingResult{Task: task.Name, Removed: n}
		if err != nil {
			res.Error = err.Error()
			r.logger.ErrorContext(ctx, "housekeeping task failed", "task", task.Name, "error", err)
		} else {
			r.logger.InfoContext(ctx, "housekeeping task completed",
				"task", task.Name,
				"removed", n,
				"dry_run", dryRun,
				"cutoff", cutoff,
			)
		}
		results = append(results, res)
	}
	return results
}
