package retention

import (
	"fmt"
	"time"
)

// OperationKind is the purpose of an executor or scanner run.
type OperationKind string

const (
	OperationKindDelete OperationKind = "delete"
	OperationKindNotify OperationKind = "notify"
)

// OperationContext carries the per-category parameters of one execution.
type OperationContext struct {
	Category  Category
	Kind      OperationKind
	DryRun  bool
	ActorID string

	// BatchSize sets how often the executor logs progress.
	BatchSize int

	// Deadline is the job time budget. Zero means unbounded.
	Deadline time.Time
}

// Expired reports whether the job time budget has elapsed at now.
func (o OperationContext) Expired(now time.Time) bool {
	return !o.Deadline.IsZero() && !now.Before(o.Deadline)
}

// RecordStatus classifies what happened to one record.
type RecordStatus string

const (
	RecordSucceeded       RecordStatus = "succeeded"
	RecordSkipped         RecordStatus = "skipped"
	RecordValidationError RecordStatus = "validation_error"
	RecordStoreError      RecordStatus = "store_error"
)

// RecordOutcome is the explicit per-record result aggregated by the executor.
type RecordOutcome struct {
	RecordID  string
	Operation Operation
	Status    RecordStatus
	Err       error
}

// BatchDeletionResult summarises one executor call. Counts satisfy
//
//	Successful + Failed == TotalProcessed
//	Anonymized + SoftDeleted + HardDeleted == Successful
//
// Skipped records were already in their target state and are counted in
// neither.
type BatchDeletionResult struct {
	Category       Category      `json:"category"`
	TotalProcessed int           `json:"total_processed"`
	Successful     int           `json:"successful"`
	Failed         int           `json:"failed"`
	Anonymized     int           `json:"anonymized"`
	SoftDeleted    int           `json:"soft_deleted"`
	HardDeleted    int           `json:"hard_deleted"`
	Skipped        int           `json:"skipped"`
	Errors         []string      `json:"errors"`
	Elapsed        time.Duration `json:"elapsed"`
	DryRun         bool          `json:"dry_run"`
}

// Add records one outcome into the result.
func (r *BatchDeletionResult) Add(o RecordOutcome) {
	switch o.Status {
	case RecordSkipped:
		r.Skipped++
		return
	case RecordSucceeded:
		r.TotalProcessed++
		r.Successful++
		switch o.Operation {
		case OperationAnonymize:
			r.Anonymized++
		case OperationSoftDelete:
			r.SoftDeleted++
		case OperationHardDelete:
			r.HardDeleted++
		}
	default:
		r.TotalProcessed++
		r.Failed++
		if o.Err != nil {
			r.Errors = append(r.Errors, o.Err.Error())
		} else {
			r.Errors = append(r.Errors, fmt.Sprintf("record %s: %s", o.RecordID, o.Status))
		}
	}
}

// Merge folds another batch result into r. Errors and counts are summed.
func (r *BatchDeletionResult) Merge(other BatchDeletionResult) {
	r.TotalProcessed += other.TotalProcessed
	r.Successful += other.Successful
	r.Failed += other.Failed
	r.Anonymized += other.Anonymized
	r.SoftDeleted += other.SoftDeleted
	r.HardDeleted += other.HardDeleted
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
	r.Elapsed += other.Elapsed
}

// Consistent reports whether the batch invariants hold.
func (r BatchDeletionResult) Consistent() bool {
	return r.Successful+r.Failed == r.TotalProcessed &&
		r.Anonymized+r.SoftDeleted+r.HardDeleted == r.Successful
}

// JobKind identifies a scheduler entry point.
type JobKind string

const (
	JobDailyCheck        JobKind = "daily_check"
	JobNotificationCheck JobKind = "notification_check"
	JobWeeklyCleanup     JobKind = "weekly_cleanup"
	JobProcessCategory   JobKind = "process_data_type"
)

// ParseJobKind parses a job kind name as used on the command line and in
// the HTTP API.
func ParseJobKind(s string) (JobKind, error) {
	switch k := JobKind(s); k {
	case JobDailyCheck, JobNotificationCheck, JobWeeklyCleanup:
		return k, nil
	default:
		return "", fmt.Errorf("unknown job kind %q", s)
	}
}

// CategoryState is the terminal state of one category within a job.
type CategoryState string

const (
	CategoryExecuted CategoryState = "executed"
	CategoryFailed   CategoryState = "failed"
)

// CategoryResult is the outcome of one category within a job.
type CategoryResult struct {
	Category Category            `json:"category"`
	State    CategoryState       `json:"state"`
	Scanned  int                 `json:"scanned"`
	Notified int                 `json:"notified,omitempty"`
	Batch    BatchDeletionResult `json:"batch"`
	Errors   []string            `json:"errors,omitempty"`
}

// HousekeepingResult is the outcome of one auxiliary purge task.
type HousekeepingResult struct {
	Task    string `json:"task"`
	Removed int64  `json:"removed"`
	Error   string `json:"error,omitempty"`
}

// JobTotals aggregates per-category counts across a job.
type JobTotals struct {
	Processed   int   `json:"processed"`
	Successful  int   `json:"successful"`
	Failed      int   `json:"failed"`
	Anonymized  int   `json:"anonymized"`
	SoftDeleted int   `json:"soft_deleted"`
	HardDeleted int   `json:"hard_deleted"`
	Skipped     int   `json:"skipped"`
	Notified    int   `json:"notified"`
	Housekept   int64 `json:"housekept"`
}

// ScheduledJobResult is the outcome of one scheduler entry point. Success is
// true exactly when Errors is empty.
type ScheduledJobResult struct {
	JobID               string               `json:"job_id"`
	Kind                JobKind              `json:"kind"`
	StartedAt           time.Time            `json:"started_at"`
	FinishedAt          time.Time            `json:"finished_at"`
	DryRun              bool                 `json:"dry_run"`
	CategoriesProcessed []Category           `json:"categories_processed"`
	Categories          []CategoryResult     `json:"categories"`
	Housekeeping        []HousekeepingResult `json:"housekeeping,omitempty"`
	Totals              JobTotals            `json:"totals"`
	Errors              []string             `json:"errors"`
	Success             bool                 `json:"success"`
}

// Duration returns the wall-clock duration of the job.
func (r ScheduledJobResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Aggregate recomputes totals, the error list and Success from the
// per-category and housekeeping results. Errors already present on r (job
// level failures) are kept in front. It must be called once per result.
func (r *ScheduledJobResult) Aggregate() {
	var totals JobTotals
	errs := append([]string(nil), r.Errors...)
	r.CategoriesProcessed = r.CategoriesProcessed[:0]

	for _, cr := range r.Categories {
		r.CategoriesProcessed = append(r.CategoriesProcessed, cr.Category)
		totals.Processed += cr.Batch.TotalProcessed
		totals.Successful += cr.Batch.Successful
		totals.Failed += cr.Batch.Failed
		totals.Anonymized += cr.Batch.Anonymized
		totals.SoftDeleted += cr.Batch.SoftDeleted
		totals.HardDeleted += cr.Batch.HardDeleted
		totals.Skipped += cr.Batch.Skipped
		totals.Notified += cr.Notified
		for _, e := range cr.Batch.Errors {
			errs = append(errs, fmt.Sprintf("%s: %s", cr.Category, e))
		}
		for _, e := range cr.Errors {
			errs = append(errs, fmt.Sprintf("%s: %s", cr.Category, e))
		}
	}
	for _, hk := range r.Housekeeping {
		totals.Housekept += hk.Removed
		if hk.Error != "" {
			errs = append(errs, fmt.Sprintf("housekeeping %s: %s", hk.Task, hk.Error))
		}
	}

	if errs == nil {
		errs = []string{}
	}
	r.Totals = totals
	r.Errors = errs
	r.Success = len(errs) == 0
}

// Run converts the result into its persisted summary.
func (r ScheduledJobResult) Run() JobRun {
	return JobRun{
		ID:         r.JobID,
		Kind:       r.Kind,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DryRun:     r.DryRun,
		Success:    r.Success,
		Processed:  int64(r.Totals.Processed),
		Successful: int64(r.Totals.Successful),
		Failed:     int64(r.Totals.Failed),
		ErrorCount: len(r.Errors),
	}
}
