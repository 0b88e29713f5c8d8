package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/lethe/pkg/retention"
	"mercator-hq/lethe/pkg/retention/catalog"
)

// Row is one record of a category table held by MemoryStore.
type Row struct {
	ID             string
	CreatedAt      time.Time
	LastAccessedAt *time.Time
	IsDeleted      bool
	DeletedAt      *time.Time
	DeletedBy      string
	Fields         map[string]*string
}

func (r *Row) clone() Row {
	out := *r
	if r.LastAccessedAt != nil {
		t := *r.LastAccessedAt
		out.LastAccessedAt = &t
	}
	if r.DeletedAt != nil {
		t := *r.DeletedAt
		out.DeletedAt = &t
	}
	out.Fields = make(map[string]*string, len(r.Fields))
	for k, v := range r.Fields {
		if v == nil {
			out.Fields[k] = nil
			continue
		}
		s := *v
		out.Fields[k] = &s
	}
	return out
}

// AuxRow is one row of an auxiliary table held by MemoryStore. Times maps a
// column name to its timestamp.
type AuxRow struct {
	ID    string
	Times map[string]time.Time
}

type noticeKey struct {
	category     retention.Category
	recordID     string
	deletionDate int64
}

// MutationHook intercepts mutating calls of MemoryStore. Returning a
// non-nil error fails the call without changing the store.
type MutationHook func(op, table, id string) error

// MemoryStore implements Backend in process memory.
// It is intended for tests, demos and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	tables  map[string]map[string]*Row
	aux     map[string][]AuxRow
	jobRuns []retention.JobRun
	notices map[noticeKey]time.Time
	hook    MutationHook
	closed  bool

	mutations atomic.Int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables:  make(map[string]map[string]*Row),
		aux:     make(map[string][]AuxRow),
		notices: make(map[noticeKey]time.Time),
	}
}

// SetMutationHook installs a hook called before every mutation.
func (s *MemoryStore) SetMutationHook(hook MutationHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// Mutations returns how many mutating calls reached the store, including
// calls that turned out to be no-ops.
func (s *MemoryStore) Mutations() int64 {
	return s.mutations.Load()
}

// Insert adds or replaces a row of a category table.
func (s *MemoryStore) Insert(table string, row Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[table]
	if !ok {
		t = make(map[string]*Row)
		s.tables[table] = t
	}
	c := row.clone()
	t[row.ID] = &c
}

// InsertAux adds a row to an auxiliary table.
func (s *MemoryStore) InsertAux(table string, row AuxRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aux[table] = append(s.aux[table], row)
}

// Snapshot returns a copy of one row.
func (s *MemoryStore) Snapshot(table, id string) (Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.tables[table][id]
	if !ok {
		return Row{}, false
	}
	return r.clone(), true
}

// Backend implements retention.Store.
func (s *MemoryStore) Backend() string { return "memory" }

// Ping implements retention.Store.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return retention.NewStoreError("memory", "ping", "", false, errors.New("store is closed"))
	}
	return nil
}

// Close implements retention.Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// CountEligible implements retention.Reader.
func (s *MemoryStore) CountEligible(ctx context.Context, target string, w retention.Window) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, retention.NewStoreError("memory", "count_eligible", target, true, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.tables[target] {
		if s.eligible(r, w) {
			n++
		}
	}
	return n, nil
}

// ListEligible implements retention.Reader.
func (s *MemoryStore) ListEligible(ctx context.Context, target string, w retention.Window, limit int) ([]retention.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, retention.NewStoreError("memory", "list_eligible", target, true, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []retention.StoredRecord
	for _, r := range s.tables[target] {
		if !s.eligible(r, w) {
			continue
		}
		rec := retention.StoredRecord{ID: r.ID, CreatedAt: r.CreatedAt}
		if r.LastAccessedAt != nil {
			t := *r.LastAccessedAt
			rec.LastAccessedAt = &t
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) eligible(r *Row, w retention.Window) bool {
	if r.IsDeleted {
		return false
	}
	ref := r.CreatedAt
	if r.LastAccessedAt != nil {
		ref = *r.LastAccessedAt
	}
	return w.Contains(ref)
}

// SoftDelete implements retention.Mutator.
func (s *MemoryStore) SoftDelete(_ context.Context, target, id string, stamp retention.DeletionStamp) (retention.MutationOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.before("soft_delete", target, id); err != nil {
		return 0, err
	}

	r, ok := s.tables[target][id]
	if !ok || r.IsDeleted {
		return retention.MutationAlreadyDone, nil
	}
	stampRow(r, stamp)
	return retention.MutationApplied, nil
}

// HardDelete implements retention.Mutator.
func (s *MemoryStore) HardDelete(_ context.Context, target, id string) (retention.MutationOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.before("hard_delete", target, id); err != nil {
		return 0, err
	}

	if _, ok := s.tables[target][id]; !ok {
		return retention.MutationAlreadyDone, nil
	}
	delete(s.tables[target], id)
	return retention.MutationApplied, nil
}

// Anonymize implements retention.Mutator.
func (s *MemoryStore) Anonymize(_ context.Context, target, id string, rewrites []retention.FieldRewrite, stamp retention.DeletionStamp) (retention.MutationOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.before("anonymize", target, id); err != nil {
		return 0, err
	}

	r, ok := s.tables[target][id]
	if !ok || r.IsDeleted {
		return retention.MutationAlreadyDone, nil
	}
	if r.Fields == nil {
		r.Fields = make(map[string]*string, len(rewrites))
	}
	for _, rw := range rewrites {
		if rw.Value == nil {
			r.Fields[rw.Field] = nil
			continue
		}
		v := *rw.Value
		r.Fields[rw.Field] = &v
	}
	stampRow(r, stamp)
	return retention.MutationApplied, nil
}

// before runs with s.mu held.
func (s *MemoryStore) before(op, table, id string) error {
	s.mutations.Add(1)
	if s.closed {
		return retention.NewStoreError("memory", op, table, false, errors.New("store is closed"))
	}
	if s.hook != nil {
		return s.hook(op, table, id)
	}
	return nil
}

func stampRow(r *Row, stamp retention.DeletionStamp) {
	at := stamp.At.UTC()
	r.IsDeleted = true
	r.DeletedAt = &at
	r.DeletedBy = stamp.Actor
}

// TableStats implements retention.StatsReader.
func (s *MemoryStore) TableStats(_ context.Context, target string, now time.Time) (retention.TableStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats retention.TableStats
	for _, r := range s.tables[target] {
		stats.Total++
		if r.IsDeleted {
			stats.Deleted++
			continue
		}
		ref := r.CreatedAt
		if r.LastAccessedAt != nil {
			ref = *r.LastAccessedAt
		}
		if ref.After(now) {
			stats.FutureDated++
		}
	}
	return stats, nil
}

// CountExpired implements retention.AuxiliaryStore.
func (s *MemoryStore) CountExpired(_ context.Context, target retention.AuxTarget, cutoff time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch target.Table {
	case catalog.TableJobRuns:
		var n int64
		for _, run := range s.jobRuns {
			if !run.FinishedAt.After(cutoff) {
				n++
			}
		}
		return n, nil
	case catalog.TableNotices:
		var n int64
		for _, at := range s.notices {
			if !at.After(cutoff) {
				n++
			}
		}
		return n, nil
	}

	var n int64
	for _, row := range s.aux[target.Table] {
		if t, ok := row.Times[target.Column]; ok && !t.After(cutoff) {
			n++
		}
	}
	return n, nil
}

// PurgeExpired implements retention.AuxiliaryStore.
func (s *MemoryStore) PurgeExpired(_ context.Context, target retention.AuxTarget, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations.Add(1)

	var removed int64
	switch target.Table {
	case catalog.TableJobRuns:
		kept := s.jobRuns[:0]
		for _, run := range s.jobRuns {
			if !run.FinishedAt.After(cutoff) {
				removed++
				continue
			}
			kept = append(kept, run)
		}
		s.jobRuns = kept
		return removed, nil
	case catalog.TableNotices:
		for k, at := range s.notices {
			if !at.After(cutoff) {
				delete(s.notices, k)
				removed++
			}
		}
		return removed, nil
	}

	rows := s.aux[target.Table]
	kept := rows[:0]
	for _, row := range rows {
		if t, ok := row.Times[target.Column]; ok && !t.After(cutoff) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	s.aux[target.Table] = kept
	return removed, nil
}

// RecordJobRun implements retention.JobRunStore.
func (s *MemoryStore) RecordJobRun(_ context.Context, run retention.JobRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobRuns = append(s.jobRuns, run)
	return nil
}

// ListJobRuns implements retention.JobRunStore. Runs are returned newest first.
func (s *MemoryStore) ListJobRuns(_ context.Context, limit int) ([]retention.JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]retention.JobRun, len(s.jobRuns))
	copy(out, s.jobRuns)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// EnqueueNotice implements retention.NoticeOutbox.
func (s *MemoryStore) EnqueueNotice(_ context.Context, n retention.Notice, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := noticeKey{category: n.Category, recordID: n.RecordID, deletionDate: n.DeletionDate.UnixMilli()}
	if _, ok := s.notices[key]; ok {
		return false, nil
	}
	s.notices[key] = at.UTC()
	return true, nil
}

// Notices returns the number of queued notices.
func (s *MemoryStore) Notices() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notices)
}
