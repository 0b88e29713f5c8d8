package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"mercator-hq/lethe/pkg/retention"
	"mercator-hq/lethe/pkg/retention/anonymize"
	"mercator-hq/lethe/pkg/retention/catalog"
)

// Config contains the error handling knobs of the executor.
type Config struct {
	// MaxRetries is how many times a transient store failure is retried.
	MaxRetries int

	// RetryDelay is the first backoff delay. It doubles on every retry up
	// to MaxRetryDelay.
	RetryDelay time.Duration

	// MaxRetryDelay caps the backoff delay.
	MaxRetryDelay time.Duration

	// ContinueOnError keeps processing a batch after a store failure.
	// Validation failures never stop a batch.
	ContinueOnError bool
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		RetryDelay:      time.Second,
		MaxRetryDelay:   30 * time.Second,
		ContinueOnError: true,
	}
}

// Recorder receives per-record outcomes. It is implemented by the metrics
// collector.
type Recorder interface {
	RecordOutcome(category retention.Category, op retention.Operation, status retention.RecordStatus)
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock replaces the wall clock used for validation, stamps and the
// time budget.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithRecorder reports per-record outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// Executor applies the policy-selected operation to eligible records.
// It is safe for concurrent use across categories.
type Executor struct {
	store      retention.Mutator
	catalog    *catalog.Catalog
	anonymizer *anonymize.Transformer
	config     Config
	retry      retrypolicy.RetryPolicy[retention.MutationOutcome]
	recorder   Recorder
	now        func() time.Time
	logger     *slog.Logger
}

// New creates an executor mutating store.
func New(store retention.Mutator, cat *catalog.Catalog, cfg Config, opts ...Option) *Executor {
	e := &Executor{
		store:      store,
		catalog:    cat,
		anonymizer: anonymize.NewTransformer(store, cat),
		config:     cfg,
		now:        time.Now,
		logger:     slog.Default().With("component", "retention.executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.retry = e.buildRetryPolicy()
	return e
}

func (e *Executor) buildRetryPolicy() retrypolicy.RetryPolicy[retention.MutationOutcome] {
	maxRetries := e.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	builder := retrypolicy.Builder[retention.MutationOutcome]().
		HandleIf(func(_ retention.MutationOutcome, err error) bool {
			return retention.IsTransient(err)
		}).
		WithMaxRetries(maxRetries).
		ReturnLastFailure().
		OnRetryScheduled(func(event failsafe.ExecutionScheduledEvent[retention.MutationOutcome]) {
			e.logger.Debug("retry scheduled",
				"attempt", event.Attempts(),
				"delay", event.Delay,
				"error", event.LastError(),
			)
		})

	if delay := e.config.RetryDelay; delay > 0 {
		maxDelay := e.config.MaxRetryDelay
		if maxDelay <= delay {
			maxDelay = delay * 2
		}
		builder = builder.WithBackoff(delay, maxDelay)
	}
	return builder.Build()
}

// Execute processes records for opCtx.Category. Every record is handled
// independently; duplicates of an id already seen in this call are ignored.
//
// Cancellation of ctx and the job time budget are checked before each
// record. A store mutation in flight is never cancelled. When processing
// stops early the partial result is returned together with a
// *retention.JobAbortError.
func (e *Executor) Execute(ctx context.Context, opCtx retention.OperationContext, records []retention.EligibleRecord) (retention.BatchDeletionResult, error) {
	start := e.now()
	result := retention.BatchDeletionResult{
		Category: opCtx.Category,
		DryRun:   opCtx.DryRun,
		Errors:   []string{},
	}

	policy := e.catalog.Get(opCtx.Category)
	op := policy.Operation()

	batchSize := opCtx.BatchSize
	if batchSize <= 0 {
		batchSize = len(records)
	}

	var abort error
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if i > 0 && i%batchSize == 0 {
			e.logger.DebugContext(ctx, "batch completed",
				"category", opCtx.Category,
				"processed", result.TotalProcessed,
				"remaining", len(records)-i,
			)
		}

		if err := ctx.Err(); err != nil {
			abort = retention.NewJobAbortError(opCtx.Category, err)
			break
		}
		if opCtx.Expired(e.now()) {
			abort = retention.NewJobAbortError(opCtx.Category, retention.ErrTimeBudgetExceeded)
			break
		}

		if rec.ID != "" {
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			seen[rec.ID] = struct{}{}
		}

		outcome := e.process(ctx, opCtx, op, rec)
		result.Add(outcome)
		if e.recorder != nil {
			e.recorder.RecordOutcome(opCtx.Category, op, outcome.Status)
		}

		if outcome.Status == retention.RecordStoreError && !e.config.ContinueOnError {
			abort = retention.NewJobAbortError(opCtx.Category, outcome.Err)
			break
		}
	}

	result.Elapsed = e.now().Sub(start)

	attrs := []any{
		"category", opCtx.Category,
		"operation", op,
		"dry_run", opCtx.DryRun,
		"processed", result.TotalProcessed,
		"successful", result.Successful,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"elapsed", result.Elapsed,
	}
	if abort != nil {
		e.logger.WarnContext(ctx, "batch aborted", append(attrs, "error", abort)...)
	} else {
		e.logger.InfoContext(ctx, "batch completed", attrs...)
	}
	return result, abort
}

func (e *Executor) process(ctx context.Context, opCtx retention.OperationContext, op retention.Operation, rec retention.EligibleRecord) retention.RecordOutcome {
	now := e.now().UTC()
	outcome := retention.RecordOutcome{RecordID: rec.ID, Operation: op}

	if err := e.validate(opCtx, rec, now); err != nil {
		outcome.Status = retention.RecordValidationError
		outcome.Err = &retention.RecordFailure{Category: opCtx.Category, RecordID: rec.ID, Operation: op, Cause: err}
		e.logger.WarnContext(ctx, "record failed validation",
			"category", opCtx.Category,
			"record_id", rec.ID,
			"error", err,
		)
		return outcome
	}

	if opCtx.DryRun {
		e.logger.DebugContext(ctx, "dry run: would apply operation",
			"category", opCtx.Category,
			"record_id", rec.ID,
			"operation", op,
		)
		outcome.Status = retention.RecordSucceeded
		return outcome
	}

	stamp := retention.DeletionStamp{At: now, Actor: opCtx.ActorID}
	mctx := context.WithoutCancel(ctx)

	result, err := failsafe.NewExecutor[retention.MutationOutcome](e.retry).
		WithContext(mctx).
		Get(func() (retention.MutationOutcome, error) {
			return e.mutate(mctx, opCtx.Category, op, rec.ID, stamp)
		})
	if err != nil {
		outcome.Status = retention.RecordStoreError
		outcome.Err = &retention.RecordFailure{Category: opCtx.Category, RecordID: rec.ID, Operation: op, Cause: err}
		e.logger.ErrorContext(ctx, "record operation failed",
			"category", opCtx.Category,
			"record_id", rec.ID,
			"operation", op,
			"transient", retention.IsTransient(err),
			"error", err,
		)
		return outcome
	}

	if result == retention.MutationAlreadyDone {
		outcome.Status = retention.RecordSkipped
		return outcome
	}
	outcome.Status = retention.RecordSucceeded
	return outcome
}

func (e *Executor) validate(opCtx retention.OperationContext, rec retention.EligibleRecord, now time.Time) error {
	if rec.Category != "" && rec.Category != opCtx.Category {
		return retention.NewValidationError(rec.ID, "record belongs to category "+string(rec.Category))
	}
	return rec.Validate(now)
}

func (e *Executor) mutate(ctx context.Context, category retention.Category, op retention.Operation, id string, stamp retention.DeletionStamp) (retention.MutationOutcome, error) {
	table := e.catalog.Target(category).Table
	switch op {
	case retention.OperationAnonymize:
		return e.anonymizer.Anonymize(ctx, category, id, stamp)
	case retention.OperationHardDelete:
		return e.store.HardDelete(ctx, table, id)
	default:
		return e.store.SoftDelete(ctx, table, id, stamp)
	}
}
