package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mercator-hq/lethe/pkg/retention"
	"mercator-hq/lethe/pkg/retention/anonymize"
	"mercator-hq/lethe/pkg/retention/catalog"
	"mercator-hq/lethe/pkg/retention/executor"
	"mercator-hq/lethe/pkg/retention/housekeeping"
	"mercator-hq/lethe/pkg/retention/notify"
	"mercator-hq/lethe/pkg/retention/scanner"
	"mercator-hq/lethe/pkg/telemetry/logging"
)

// Config contains the engine-level settings of a job.
type Config struct {
	// Enabled gates every entry point. A disabled engine never touches the store.
	Enabled bool

	// DryRun simulates every operation without mutating the store.
	DryRun bool

	// BatchSize is the number of records between progress log lines of
	// the executor. Records are always handled one at a time.
	BatchSize int

	// MaxRecords caps the records scanned per category and job.
	MaxRecords int

	// Concurrency is the number of categories processed in parallel.
	Concurrency int

	// ActorID is stamped on soft-deleted and anonymized records.
	ActorID string

	// MaxJobDuration is the job time budget. 0 means unbounded.
	MaxJobDuration time.Duration

	// MaxMemoryMB is the heap budget checked before each category. 0 means unbounded.
	MaxMemoryMB int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		DryRun:         false,
		BatchSize:      100,
		MaxRecords:     1000,
		Concurrency:    1,
		ActorID:        "retention-engine",
		MaxJobDuration: 30 * time.Minute,
		MaxMemoryMB:    512,
	}
}

// Metrics receives job level measurements. It is implemented by the
// metrics collector.
type Metrics interface {
	executor.Recorder
	RecordJob(kind retention.JobKind, success bool, duration time.Duration)
	SetEligible(category retention.Category, kind retention.OperationKind, n int)
	RecordNotices(category retention.Category, n int)
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Store        retention.Store
	Catalog      *catalog.Catalog
	Notifier     notify.Notifier
	Housekeeping *housekeeping.Runner
	History      retention.JobRunStore
	Metrics      Metrics
	Executor     executor.Config
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMemoryProbe replaces the heap size probe used for the memory budget.
func WithMemoryProbe(probe func() uint64) Option {
	return func(e *Engine) { e.heapBytes = probe }
}

// Engine orchestrates scans, execution, notification and housekeeping.
type Engine struct {
	config       Config
	catalog      *catalog.Catalog
	store        retention.Store
	scanner      *scanner.Scanner
	executor     *executor.Executor
	notifier     notify.Notifier
	housekeeping *housekeeping.Runner
	history      retention.JobRunStore
	metrics      Metrics
	now          func() time.Time
	heapBytes    func() uint64
	logger       *slog.Logger
}

// NewEngine validates the catalog and wires the engine. Any inconsistency
// is returned as a *retention.ConfigurationError before the store is used.
func NewEngine(cfg Config, deps Deps, opts ...Option) (*Engine, error) {
	if deps.Catalog == nil {
		return nil, retention.NewConfigurationError("catalog", fmt.Errorf("catalog is required"))
	}
	if deps.Store == nil {
		return nil, retention.NewConfigurationError("storage", fmt.Errorf("store is required"))
	}
	violations := append(deps.Catalog.Validate(), anonymize.Check(deps.Catalog)...)
	if len(violations) > 0 {
		return nil, catalog.ViolationsError(violations)
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	e := &Engine{
		config:       cfg,
		catalog:      deps.Catalog,
		store:        deps.Store,
		notifier:     deps.Notifier,
		housekeeping: deps.Housekeeping,
		history:      deps.History,
		metrics:      deps.Metrics,
		now:          time.Now,
		heapBytes:    heapAlloc,
		logger:       slog.Default().With("component", "retention.scheduler"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.notifier == nil {
		e.notifier = notify.NewLogNotifier()
	}

	execOpts := []executor.Option{executor.WithClock(e.now)}
	if e.metrics != nil {
		execOpts = append(execOpts, executor.WithRecorder(e.metrics))
	}
	e.scanner = scanner.New(deps.Store, deps.Catalog)
	e.executor = executor.New(deps.Store, deps.Catalog, deps.Executor, execOpts...)
	return e, nil
}

// WithDryRun returns a copy of the engine whose jobs run in dry-run mode
// when dryRun is true. The engine-wide setting cannot be relaxed.
func (e *Engine) WithDryRun(dryRun bool) *Engine {
	c := *e
	c.config.DryRun = e.config.DryRun || dryRun
	return &c
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Catalog returns the policy catalog.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Scanner returns the eligibility scanner.
func (e *Engine) Scanner() *scanner.Scanner { return e.scanner }

// Run dispatches to the entry point of kind.
func (e *Engine) Run(ctx context.Context, kind retention.JobKind) (retention.ScheduledJobResult, error) {
	switch kind {
	case retention.JobDailyCheck:
		return e.RunDailyRetentionCheck(ctx)
	case retention.JobNotificationCheck:
		return e.RunNotificationCheck(ctx)
	case retention.JobWeeklyCleanup:
		return e.RunWeeklyCleanup(ctx)
	default:
		return retention.ScheduledJobResult{}, fmt.Errorf("job kind %q cannot be run without arguments", kind)
	}
}

// RunDailyRetentionCheck scans every category for expired records and
// deletes or anonymizes them.
//
// The returned error is non-nil only when the job could not start. A job
// that ran reports failures through the result's Errors and Success.
func (e *Engine) RunDailyRetentionCheck(ctx context.Context) (retention.ScheduledJobResult, error) {
	if err := e.checkEnabled(); err != nil {
		return retention.ScheduledJobResult{}, err
	}
	return e.runJob(ctx, retention.JobDailyCheck, retention.AllCategories(), e.deleteCategory, false), nil
}

// RunNotificationCheck dispatches notices for every notifying category. It
// does not change retention state.
func (e *Engine) RunNotificationCheck(ctx context.Context) (retention.ScheduledJobResult, error) {
	if err := e.checkEnabled(); err != nil {
		return retention.ScheduledJobResult{}, err
	}
	return e.runJob(ctx, retention.JobNotificationCheck, e.catalog.Notifying(), e.notifyCategory, false), nil
}

// RunWeeklyCleanup runs the daily retention check followed by auxiliary
// housekeeping.
func (e *Engine) RunWeeklyCleanup(ctx context.Context) (retention.ScheduledJobResult, error) {
	if err := e.checkEnabled(); err != nil {
		return retention.ScheduledJobResult{}, err
	}
	return e.runJob(ctx, retention.JobWeeklyCleanup, retention.AllCategories(), e.deleteCategory, true), nil
}

// ProcessCategory runs the deletion path for a single category.
func (e *Engine) ProcessCategory(ctx context.Context, category retention.Category) (retention.ScheduledJobResult, error) {
	if err := e.checkEnabled(); err != nil {
		return retention.ScheduledJobResult{}, err
	}
	if !category.Valid() {
		return retention.ScheduledJobResult{}, fmt.Errorf("%w: %q", retention.ErrUnknownCategory, category)
	}
	return e.runJob(ctx, retention.JobProcessCategory, []retention.Category{category}, e.deleteCategory, false), nil
}

func (e *Engine) checkEnabled() error {
	if !e.config.Enabled {
		return retention.NewConfigurationError("engine.enabled", retention.ErrEngineDisabled)
	}
	return nil
}

type categoryFunc func(ctx context.Context, jc jobContext, category retention.Category) retention.CategoryResult

type jobContext struct {
	now      time.Time
	deadline time.Time
	dryRun   bool
}

func (e *Engine) runJob(ctx context.Context, kind retention.JobKind, categories []retention.Category, fn categoryFunc, withHousekeeping bool) retention.ScheduledJobResult {
	started := e.now().UTC()
	result := retention.ScheduledJobResult{
		JobID:     uuid.NewString(),
		Kind:      kind,
		StartedAt: started,
		DryRun:    e.config.DryRun,
	}

	jc := jobContext{
		now:    started,
		dryRun: e.config.DryRun,
	}
	ctx = logging.WithJob(ctx, result.JobID, string(kind))
	if e.config.MaxJobDuration > 0 {
		jc.deadline = started.Add(e.config.MaxJobDuration)
	}

	e.logger.InfoContext(ctx, "job started",
		"categories", len(categories),
		"dry_run", jc.dryRun,
		"concurrency", e.config.Concurrency,
	)

	results := make([]retention.CategoryResult, len(categories))
	var g errgroup.Group
	g.SetLimit(e.config.Concurrency)
	for i, category := range categories {
		g.Go(func() error {
			if err := e.precheck(ctx, jc); err != nil {
				results[i] = failed(category, err)
			} else {
				results[i] = fn(ctx, jc, category)
			}
			return nil
		})
	}
	_ = g.Wait()
	result.Categories = results

	if withHousekeeping && e.housekeeping != nil {
		if err := e.precheck(ctx, jc); err != nil {
			result.Housekeeping = []retention.HousekeepingResult{{Task: "housekeeping", Error: err.Error()}}
		} else {
			result.Housekeeping = e.housekeeping.Run(ctx, e.now(), jc.dryRun)
		}
	}

	result.FinishedAt = e.now().UTC()
	result.Aggregate()
	e.finish(ctx, jc, &result)
	return result
}

// precheck runs before each category: cancellation, time and memory budget.
func (e *Engine) precheck(ctx context.Context, jc jobContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !jc.deadline.IsZero() && !e.now().Before(jc.deadline) {
		return retention.ErrTimeBudgetExceeded
	}
	if e.config.MaxMemoryMB > 0 {
		if heap := e.heapBytes(); heap > uint64(e.config.MaxMemoryMB)<<20 {
			return fmt.Errorf("%w: heap %d MiB exceeds %d MiB", retention.ErrMemoryBudgetExceeded, heap>>20, e.config.MaxMemoryMB)
		}
	}
	return nil
}

func failed(category retention.Category, err error) retention.CategoryResult {
	return retention.CategoryResult{
		Category: category,
		State:    retention.CategoryFailed,
		Errors:   []string{err.Error()},
	}
}

func (e *Engine) deleteCategory(ctx context.Context, jc jobContext, category retention.Category) retention.CategoryResult {
	records, err := e.scanner.ScanForDeletion(ctx, category, jc.now, e.config.MaxRecords)
	if err != nil {
		e.logger.ErrorContext(ctx, "deletion scan failed", "category", category, "error", err)
		return failed(category, err)
	}
	if e.metrics != nil {
		e.metrics.SetEligible(category, retention.OperationKindDelete, len(records))
	}

	opCtx := retention.OperationContext{
		Category:  category,
		Kind:      retention.OperationKindDelete,
		DryRun:    jc.dryRun,
		BatchSize: e.config.BatchSize,
		ActorID:   e.config.ActorID,
		Deadline:  jc.deadline,
	}
	batch, err := e.executor.Execute(ctx, opCtx, records)

	cr := retention.CategoryResult{
		Category: category,
		State:    retention.CategoryExecuted,
		Scanned:  len(records),
		Batch:    batch,
	}
	if err != nil {
		cr.State = retention.CategoryFailed
		cr.Errors = append(cr.Errors, err.Error())
	}
	return cr
}

func (e *Engine) notifyCategory(ctx context.Context, jc jobContext, category retention.Category) retention.CategoryResult {
	records, err := e.scanner.ScanForNotification(ctx, category, jc.now, e.config.MaxRecords)
	if err != nil {
		e.logger.ErrorContext(ctx, "notification scan failed", "category", category, "error", err)
		return failed(category, err)
	}
	if e.metrics != nil {
		e.metrics.SetEligible(category, retention.OperationKindNotify, len(records))
	}

	cr := retention.CategoryResult{
		Category: category,
		State:    retention.CategoryExecuted,
		Scanned:  len(records),
		Batch:    retention.BatchDeletionResult{Category: category, DryRun: jc.dryRun, Errors: []string{}},
	}
	if jc.dryRun {
		cr.Notified = len(records)
		e.logger.InfoContext(ctx, "dry run: notices not dispatched", "category", category, "eligible", len(records))
		return cr
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			cr.State = retention.CategoryFailed
			cr.Errors = append(cr.Errors, retention.NewJobAbortError(category, err).Error())
			break
		}
		if !jc.deadline.IsZero() && !e.now().Before(jc.deadline) {
			cr.State = retention.CategoryFailed
			cr.Errors = append(cr.Errors, retention.NewJobAbortError(category, retention.ErrTimeBudgetExceeded).Error())
			break
		}

		notice := retention.Notice{Category: category, RecordID: rec.ID, DeletionDate: rec.DeletionDate}
		dispatched, err := e.notifier.Dispatch(ctx, notice)
		if err != nil {
			cr.Errors = append(cr.Errors, err.Error())
			continue
		}
		if dispatched {
			cr.Notified++
		}
	}
	if e.metrics != nil {
		e.metrics.RecordNotices(category, cr.Notified)
	}
	return cr
}

func (e *Engine) finish(ctx context.Context, jc jobContext, result *retention.ScheduledJobResult) {
	if e.metrics != nil {
		e.metrics.RecordJob(result.Kind, result.Success, result.Duration())
	}

	attrs := []any{
		"success", result.Success,
		"processed", result.Totals.Processed,
		"successful", result.Totals.Successful,
		"failed", result.Totals.Failed,
		"skipped", result.Totals.Skipped,
		"notified", result.Totals.Notified,
		"housekept", result.Totals.Housekept,
		"errors", len(result.Errors),
		"duration", result.Duration(),
	}
	if result.Success {
		e.logger.InfoContext(ctx, "job completed", attrs...)
	} else {
		e.logger.WarnContext(ctx, "job completed with errors", attrs...)
	}

	if jc.dryRun || e.history == nil {
		return
	}
	run := result.Run()
	if data, err := json.Marshal(result); err == nil {
		run.Result = data
	}
	if err := e.history.RecordJobRun(context.WithoutCancel(ctx), run); err != nil {
		e.logger.ErrorContext(ctx, "failed to record job run", "error", err)
	}
}

func heapAlloc() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}
