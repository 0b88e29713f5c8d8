package retention

import (
	"context"
	"time"
)

// MutationOutcome distinguishes a mutation that changed the store from one
// that found the record already in its target state.
type MutationOutcome int

const (
	// MutationApplied means the store was changed by the call.
	MutationApplied MutationOutcome = iota + 1

	// MutationAlreadyDone means the record no longer exists or was already
	// deleted. It is a no-op, not an error.
	MutationAlreadyDone
)

// String implements fmt.Stringer.
func (o MutationOutcome) String() string {
	switch o {
	case MutationApplied:
		return "applied"
	case MutationAlreadyDone:
		return "already_done"
	default:
		return "unknown"
	}
}

// DeletionStamp is written onto soft-deleted and anonymized rows.
type DeletionStamp struct {
	At    time.Time
	Actor string
}

// FieldRewrite sets one column of a row. A nil Value writes NULL.
type FieldRewrite struct {
	Field string
	Value *string
}

// Notice is the "will be deleted soon" signal handed to the notification
// collaborator.
type Notice struct {
	Category     Category  `json:"category"`
	RecordID     string    `json:"record_id"`
	DeletionDate time.Time `json:"deletion_date"`
}

// AuxTarget addresses an auxiliary table purged by housekeeping: rows whose
// Column timestamp is at or before a cutoff are removed.
type AuxTarget struct {
	Table  string
	Column string
}

// TableStats summarises one category table.
type TableStats struct {
	Total   int64 `json:"total"`
	Deleted int64 `json:"deleted"`

	// FutureDated counts live rows whose reference date lies after the
	// time of the query. Scans never select them, so they would
	// otherwise go unreported.
	FutureDated int64 `json:"future_dated"`
}

// JobRun is the persisted summary of one scheduler run.
type JobRun struct {
	ID         string    `json:"id"`
	Kind       JobKind   `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run"`
	Success    bool      `json:"success"`
	Processed  int64     `json:"processed"`
	Successful int64     `json:"successful"`
	Failed     int64     `json:"failed"`
	ErrorCount int       `json:"error_count"`
	Result     []byte    `json:"-"`
}

// Reader is the read side of the store contract.
type Reader interface {
	// CountEligible returns the number of non-deleted rows of target whose
	// reference date falls into the window.
	CountEligible(ctx context.Context, target string, w Window) (int64, error)

	// ListEligible returns up to limit non-deleted rows of target whose
	// reference date falls into the window, ordered by id.
	ListEligible(ctx context.Context, target string, w Window, limit int) ([]StoredRecord, error)
}

// Mutator is the write side of the store contract. Every operation is keyed
// by record id and guarded by a compare-and-set on the deleted flag, so two
// concurrent runs never both apply the same transition.
type Mutator interface {
	// SoftDelete sets the deleted flag, deletion timestamp and actor.
	SoftDelete(ctx context.Context, target, id string, stamp DeletionStamp) (MutationOutcome, error)

	// HardDelete removes the row.
	HardDelete(ctx context.Context, target, id string) (MutationOutcome, error)

	// Anonymize applies the field rewrites and stamps the row as deleted.
	Anonymize(ctx context.Context, target, id string, rewrites []FieldRewrite, stamp DeletionStamp) (MutationOutcome, error)
}

// Store is the persistence collaborator consumed by the engine.
// Implementations must be safe for concurrent use.
type Store interface {
	Reader
	Mutator

	// Backend returns the backend name used in errors and logs.
	Backend() string

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// StatsReader reports per-table counts for the stats command.
type StatsReader interface {
	TableStats(ctx context.Context, target string, now time.Time) (TableStats, error)
}

// AuxiliaryStore purges auxiliary tables during weekly housekeeping.
type AuxiliaryStore interface {
	CountExpired(ctx context.Context, target AuxTarget, cutoff time.Time) (int64, error)
	PurgeExpired(ctx context.Context, target AuxTarget, cutoff time.Time) (int64, error)
}

// JobRunStore persists job run history.
type JobRunStore interface {
	RecordJobRun(ctx context.Context, run JobRun) error
	ListJobRuns(ctx context.Context, limit int) ([]JobRun, error)
}

// NoticeOutbox queues notices for an external mailer. EnqueueNotice reports
// false when the same notice was already queued.
type NoticeOutbox interface {
	EnqueueNotice(ctx context.Context, notice Notice, at time.Time) (bool, error)
}
