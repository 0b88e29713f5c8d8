// Package scanner selects the records of a category that are due for
// deletion or for a pre-deletion notice.
//
// Both scans compare each record's reference date (last access, falling back
// to creation) against a window derived from the category policy and the
// current time:
//
//	deletion:      referenceDate <= now - retention
//	notification:  now - retention < referenceDate <= now - retention + notice
//
// The windows are disjoint, so a record is never both notified and deleted
// by scans taken at the same instant. Categories with indefinite retention
// never appear in either scan.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/lethe/pkg/retention"
	"mercator-hq/lethe/pkg/retention/catalog"
)

// Scanner runs eligibility queries against the store.
type Scanner struct {
	store   retention.Reader
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// New creates a scanner reading from store.
func New(store retention.Reader, cat *catalog.Catalog) *Scanner {
	return &Scanner{
		store:   store,
		catalog: cat,
		logger:  slog.Default().With("component", "retention.scanner"),
	}
}

// ScanForDeletion returns up to limit records of category whose deletion
// date is at or before now, ordered by id. A limit <= 0 means no limit.
func (s *Scanner) ScanForDeletion(ctx context.Context, category retention.Category, now time.Time, limit int) ([]retention.EligibleRecord, error) {
	policy := s.catalog.Get(category)
	if policy.Indefinite() {
		return nil, nil
	}
	return s.scan(ctx, policy, policy.DeletionWindow(now), retention.OperationKindDelete, limit)
}

// ScanForNotification returns up to limit records of category whose
// notification date is at or before now and whose deletion date is still
// in the future. Categories that do not notify yield no records.
func (s *Scanner) ScanForNotification(ctx context.Context, category retention.Category, now time.Time, limit int) ([]retention.EligibleRecord, error) {
	policy := s.catalog.Get(category)
	if !policy.Notifies() {
		return nil, nil
	}
	return s.scan(ctx, policy, policy.NotificationWindow(now), retention.OperationKindNotify, limit)
}

// CountForDeletion returns the number of records ScanForDeletion would
// select without a limit.
func (s *Scanner) CountForDeletion(ctx context.Context, category retention.Category, now time.Time) (int64, error) {
	policy := s.catalog.Get(category)
	if policy.Indefinite() {
		return 0, nil
	}
	return s.count(ctx, policy, policy.DeletionWindow(now))
}

// CountForNotification returns the number of records ScanForNotification
// would select without a limit.
func (s *Scanner) CountForNotification(ctx context.Context, category retention.Category, now time.Time) (int64, error) {
	policy := s.catalog.Get(category)
	if !policy.Notifies() {
		return 0, nil
	}
	return s.count(ctx, policy, policy.NotificationWindow(now))
}

func (s *Scanner) scan(ctx context.Context, policy retention.Policy, window retention.Window, kind retention.OperationKind, limit int) ([]retention.EligibleRecord, error) {
	target := s.catalog.Target(policy.Category)

	stored, err := s.store.ListEligible(ctx, target.Table, window, limit)
	if err != nil {
		return nil, fmt.Errorf("scan %s for %s: %w", policy.Category, kind, err)
	}

	records := make([]retention.EligibleRecord, 0, len(stored))
	for _, rec := range stored {
		if !window.Contains(rec.ReferenceDate()) {
			s.logger.WarnContext(ctx, "store returned record outside the eligibility window",
				"category", policy.Category,
				"record_id", rec.ID,
				"kind", kind,
			)
			continue
		}
		records = append(records, retention.NewEligibleRecord(rec, policy))
	}

	s.logger.DebugContext(ctx, "scan completed",
		"category", policy.Category,
		"kind", kind,
		"found", len(records),
		"limit", limit,
	)
	return records, nil
}

func (s *Scanner) count(ctx context.Context, policy retention.Policy, window retention.Window) (int64, error) {
	target := s.catalog.Target(policy.Category)
	n, err := s.store.CountEligible(ctx, target.Table, window)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", policy.Category, err)
	}
	return n, nil
}
