package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"mercator-hq/lethe/pkg/retention"
	"mercator-hq/lethe/pkg/retention/catalog"
	"mercator-hq/lethe/pkg/retention/storage"
)

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func testConfig() Config {
	return Config{MaxRetries: 2, ContinueOnError: true}
}

func setup(t testing.TB, cfg Config, opts ...Option) (*Executor, *storage.MemoryStore, *catalog.Catalog) {
	cat, err := catalog.Default(nil)
	if err != nil {
		t.Fatalf("catalog.Default() error = %v", err)
	}
	store := storage.NewMemoryStore()
	opts = append([]Option{WithClock(clock)}, opts...)
	return New(store, cat, cfg, opts...), store, cat
}

func seed(store *storage.MemoryStore, cat *catalog.Catalog, category retention.Category, ids ...string) []retention.EligibleRecord {
	policy := cat.Get(category)
	table := cat.Target(category).Table
	var out []retention.EligibleRecord
	for _, id := range ids {
		created := testNow.Add(-retention.Days(policy.RetentionDays + 1))
		store.Insert(table, storage.Row{ID: id, CreatedAt: created, Fields: map[string]*string{}})
		out = append(out, retention.NewEligibleRecord(retention.StoredRecord{ID: id, CreatedAt: created}, policy))
	}
	return out
}

func opCtx(category retention.Category, dryRun bool) retention.OperationContext {
	return retention.OperationContext{
		Category:  category,
		Kind:      retention.OperationKindDelete,
		DryRun:    dryRun,
		BatchSize: 2,
		ActorID:   "retention-engine",
	}
}

func TestExecute_OperationPerCategory(t *testing.T) {
	tests := []struct {
		category retention.Category
		check    func(t *testing.T, r retention.BatchDeletionResult, row storage.Row, present bool)
	}{
		{
			category: retention.CategoryUserProfile,
			check: func(t *testing.T, r retention.BatchDeletionResult, row storage.Row, present bool) {
				if r.Anonymized != 1 {
					t.Errorf("Anonymized = %d, want 1", r.Anonymized)
				}
				if !present || !row.IsDeleted || row.DeletedBy != "retention-engine" {
					t.Errorf("row = %+v, present = %v", row, present)
				}
				if v := row.Fields["email"]; v == nil || *v != "deleted+r-1@deleted.invalid" {
					t.Errorf("email = %v", v)
				}
			},
		},
		{
			category: retention.CategoryNotification,
			check: func(t *testing.T, r retention.BatchDeletionResult, _ storage.Row, present bool) {
				if r.HardDeleted != 1 {
					t.Errorf("HardDeleted = %d, want 1", r.HardDeleted)
				}
				if present {
					t.Error("hard-deleted row still present")
				}
			},
		},
		{
			category: retention.CategoryBillingRecord,
			check: func(t *testing.T, r retention.BatchDeletionResult, row storage.Row, present bool) {
				if r.SoftDeleted != 1 || r.HardDeleted != 0 {
					t.Errorf("SoftDeleted/HardDeleted = %d/%d, want 1/0", r.SoftDeleted, r.HardDeleted)
				}
				if !present || !row.IsDeleted {
					t.Error("manual review category must be soft deleted")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			exec, store, cat := setup(t, testConfig())
			records := seed(store, cat, tt.category, "r-1")

			result, err := exec.Execute(context.Background(), opCtx(tt.category, false), records)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if result.Successful != 1 || result.Failed != 0 || !result.Consistent() {
				t.Errorf("result = %+v", result)
			}
			row, present := store.Snapshot(cat.Target(tt.category).Table, "r-1")
			tt.check(t, result, row, present)
		})
	}
}

func TestExecute_DryRunNeverMutates(t *testing.T) {
	exec, store, cat := setup(t, testConfig())
	records := seed(store, cat, retention.CategoryCVDocument, "cv-1", "cv-2", "cv-3")

	result, err := exec.Execute(context.Background(), opCtx(retention.CategoryCVDocument, true), records)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if store.Mutations() != 0 {
		t.Errorf("dry run issued %d mutations", store.Mutations())
	}
	if !result.DryRun || result.Successful != 3 || result.HardDeleted != 3 {
		t.Errorf("result = %+v, want 3 simulated hard deletes", result)
	}
	for _, id := range []string{"cv-1", "cv-2", "cv-3"} {
		if _, ok := store.Snapshot("cv_documents", id); !ok {
			t.Errorf("%s removed during dry run", id)
		}
	}
}

func TestExecute_ValidationFailuresContinue(t *testing.T) {
	exec, store, cat := setup(t, testConfig())
	records := seed(store, cat, retention.CategorySecurityLog, "s-1", "s-2")
	future := testNow.Add(time.Hour)
	records = append(records,
		retention.EligibleRecord{ID: "", CreatedAt: testNow.AddDate(-2, 0, 0)},
		retention.EligibleRecord{ID: "s-future", CreatedAt: future},
	)

	result, err := exec.Execute(context.Background(), opCtx(retention.CategorySecurityLog, false), records)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.TotalProcessed != 4 || result.Successful != 2 || result.Failed != 2 {
		t.Errorf("result = %+v, want 4 processed, 2 ok, 2 failed", result)
	}
	if len(result.Errors) != 2 {
		t.Errorf("Errors = %v, want 2 entries", result.Errors)
	}
}

func TestExecute_RetriesTransientFailures(t *testing.T) {
	exec, store, cat := setup(t, testConfig())
	records := seed(store, cat, retention.CategoryNotification, "n-1")

	attempts := 0
	store.SetMutationHook(func(op, table, id string) error {
		attempts++
		if attempts <= 2 {
			return retention.NewStoreError("memory", op, table, true, errors.New("database is locked"))
		}
		return nil
	})

	result, err := exec.Execute(context.Background(), opCtx(retention.CategoryNotification, false), records)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if result.Successful != 1 || result.HardDeleted != 1 {
		t.Errorf("result = %+v, want success after retries", result)
	}
}

func TestExecute_RetriesExhausted(t *testing.T) {
	exec, store, cat := setup(t, testConfig())
	records := seed(store, cat, retention.CategoryNotification, "n-1", "n-2")

	attempts := map[string]int{}
	store.SetMutationHook(func(op, table, id string) error {
		attempts[id]++
		if id == "n-1" {
			return retention.NewStoreError("memory", op, table, true, errors.New("timeout"))
		}
		return nil
	})

	result, err := exec.Execute(context.Background(), opCtx(retention.CategoryNotification, false), records)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if attempts["n-1"] != 3 {
		t.Errorf("n-1 attempts = %d, want 1 + 2 retries", attempts["n-1"])
	}
	if result.Failed != 1 || result.Successful != 1 {
		t.Errorf("result = %+v, want 1 failed 1 ok", result)
	}
}

func TestExecute_PermanentFailuresAreNotRetried(t *testing.T) {
	exec, store, cat := setup(t, testConfig())
	records := seed(store, cat, retention.CategoryNotification, "n-1")

	attempts := 0
	store.SetMutationHook(func(op, table, id string) error {
		attempts++
		return retention.NewStoreError("memory", op, table, false, errors.New("constraint violation"))
	})

	result, _ := exec.Execute(context.Background(), opCtx(retention.CategoryNotification, false), records)
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
}

func TestExecute_AbortWithoutContinueOnError(t *testing.T) {
	cfg := testConfig()
	cfg.ContinueOnError = false
	exec, store, cat := setup(t, cfg)
	records := seed(store, cat, retention.CategoryNotification, "n-1", "n-2", "n-3")

	store.SetMutationHook(func(op, table, id string) error {
		if id == "n-2" {
			return retention.NewStoreError("memory", op, table, false, errors.New("boom"))
		}
		return nil
	})

	result, err := exec.Execute(context.Background(), opCtx(retention.CategoryNotification, false), records)
	var abort *retention.JobAbortError
	if !errors.As(err, &abort) {
		t.Fatalf("Execute() error = %v, want JobAbortError", err)
	}
	if result.TotalProcessed != 2 || result.Successful != 1 || result.Failed != 1 {
		t.Errorf("partial result = %+v, want n-1 ok and n-2 failed", result)
	}
	if _, ok := store.Snapshot("notifications", "n-3"); !ok {
		t.Error("n-3 processed after abort")
	}
}

func TestExecute_ValidationFailureDoesNotAbort(t *testing.T) {
	cfg := testConfig()
	cfg.ContinueOnError = false
	exec, store, cat := setup(t, cfg)
	records := seed(store, cat, retention.CategoryNotification, "n-1", "n-2", "n-3")
	accessed := testNow.Add(time.Hour)
	records[0].LastAccessedAt = &accessed

	result, err := exec.Execute(context.Background(), opCtx(retention.CategoryNotification, false), records)
	if err != nil {
		t.Fatalf("Execute() error = %v, want no abort for a validation failure", err)
	}
	if result.TotalProcessed != 3 || result.Successful != 2 || result.Failed != 1 {
		t.Errorf("result = %+v, want every record processed", result)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "n-1") {
		t.Errorf("Errors = %v, want the n-1 validation error", result.Errors)
	}
	if row, ok := store.Snapshot("notifications", "n-1"); !ok || row.IsDeleted {
		t.Error("invalid record n-1 was mutated")
	}
	for _, id := range []string{"n-2", "n-3"} {
		if row, ok := store.Snapshot("notifications", id); ok && !row.IsDeleted {
			t.Errorf("%s was not processed", id)
		}
	}
}

func TestExecute_DuplicatesIgnored(t *testing.T) {
	exec, store, cat := setup(t, testConfig())
	records := seed(store, cat, retention.CategoryNotification, "n-1", "n-2")
	records = append(records, records[0], records[1], records[0])

	result, err := exec.Execute(context.Background(), opCtx(retention.CategoryNotification, false), records)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.TotalProcessed != 2 || result.Skipped != 0 {
		t.Errorf("result = %+v, want each id processed once", result)
	}
	if store.Mutations() != 2 {
		t.Errorf("Mutations() = %d, want 2", store.Mutations())
	}
}

func TestExecute_AlreadyDoneIsSkipped(t *testing.T) {
	exec, store, cat := setup(t, testConfig())
	records := seed(store, cat, retention.CategoryAuditLog, "a-1", "a-2")
	if _, err := store.SoftDelete(context.Background(), "audit_logs", "a-1", retention.DeletionStamp{At: testNow}); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	result, err := exec.Execute(context.Background(), opCtx(retention.CategoryAuditLog, false), records)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Skipped != 1 || result.Successful != 1 || result.TotalProcessed != 1 {
		t.Errorf("result = %+v, want 1 skipped 1 soft deleted", result)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Errors = %v, want none", result.Errors)
	}
}

func TestExecute_Cancellation(t *testing.T) {
	exec, store, cat := setup(t, testConfig())
	records := seed(store, cat, retention.CategoryNotification, "n-1", "n-2", "n-3")

	ctx, cancel := context.WithCancel(context.Background())
	store.SetMutationHook(func(op, table, id string) error {
		if id == "n-1" {
			cancel()
		}
		return nil
	})

	result, err := exec.Execute(ctx, opCtx(retention.CategoryNotification, false), records)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if result.Successful != 1 {
		t.Errorf("Successful = %d, want the in-flight mutation to complete", result.Successful)
	}
	if _, ok := store.Snapshot("notifications", "n-1"); ok {
		t.Error("in-flight mutation was not applied")
	}
}

func TestExecute_TimeBudget(t *testing.T) {
	current := testNow
	exec, store, cat := setup(t, testConfig(), WithClock(func() time.Time { return current }))
	records := seed(store, cat, retention.CategoryNotification, "n-1", "n-2", "n-3")

	store.SetMutationHook(func(op, table, id string) error {
		current = current.Add(time.Minute)
		return nil
	})

	oc := opCtx(retention.CategoryNotification, false)
	oc.Deadline = testNow.Add(90 * time.Second)

	result, err := exec.Execute(context.Background(), oc, records)
	if !errors.Is(err, retention.ErrTimeBudgetExceeded) {
		t.Fatalf("Execute() error = %v, want ErrTimeBudgetExceeded", err)
	}
	if result.Successful != 2 {
		t.Errorf("Successful = %d, want 2 before the budget ran out", result.Successful)
	}
}

type countingRecorder struct {
	counts map[retention.RecordStatus]int
}

func (r *countingRecorder) RecordOutcome(_ retention.Category, _ retention.Operation, status retention.RecordStatus) {
	r.counts[status]++
}

func TestExecute_RecordsOutcomes(t *testing.T) {
	rec := &countingRecorder{counts: map[retention.RecordStatus]int{}}
	exec, store, cat := setup(t, testConfig(), WithRecorder(rec))
	records := seed(store, cat, retention.CategoryNotification, "n-1")
	records = append(records, retention.EligibleRecord{ID: "bad"})

	if _, err := exec.Execute(context.Background(), opCtx(retention.CategoryNotification, false), records); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if rec.counts[retention.RecordSucceeded] != 1 || rec.counts[retention.RecordValidationError] != 1 {
		t.Errorf("recorded = %v", rec.counts)
	}
}

// TestExecute_BatchInvariants checks the count invariants and dry-run safety
// for arbitrary mixes of valid, invalid, duplicate, missing and failing
// records.
func TestExecute_BatchInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := testConfig()
		cfg.ContinueOnError = rapid.Bool().Draw(rt, "continue")
		exec, store, cat := setup(t, cfg)

		category := rapid.SampledFrom(retention.AllCategories()).Draw(rt, "category")
		dryRun := rapid.Bool().Draw(rt, "dry_run")
		n := rapid.IntRange(0, 30).Draw(rt, "n")

		failing := map[string]bool{}
		var records []retention.EligibleRecord
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("r-%d", rapid.IntRange(0, 20).Draw(rt, "id"))
			switch rapid.IntRange(0, 4).Draw(rt, "kind") {
			case 0:
				records = append(records, retention.EligibleRecord{ID: id, CreatedAt: testNow.Add(time.Hour)})
			case 1:
				records = append(records, retention.EligibleRecord{ID: id, Category: category, CreatedAt: testNow.AddDate(-20, 0, 0)})
			case 2:
				failing[id] = true
				records = append(records, seed(store, cat, category, id)...)
			default:
				records = append(records, seed(store, cat, category, id)...)
			}
		}
		store.SetMutationHook(func(op, table, id string) error {
			if failing[id] {
				return retention.NewStoreError("memory", op, table, false, errors.New("boom"))
			}
			return nil
		})

		result, err := exec.Execute(context.Background(), opCtx(category, dryRun), records)
		if err != nil && cfg.ContinueOnError {
			rt.Fatalf("Execute() error = %v with continue-on-error", err)
		}
		if !result.Consistent() {
			rt.Fatalf("inconsistent result %+v", result)
		}
		if len(result.Errors) != result.Failed {
			rt.Fatalf("len(Errors) = %d, Failed = %d", len(result.Errors), result.Failed)
		}

		unique := map[string]bool{}
		for _, r := range records {
			if r.ID != "" {
				unique[r.ID] = true
			}
		}
		if result.TotalProcessed+result.Skipped > len(unique) {
			rt.Fatalf("processed %d + skipped %d exceeds %d unique ids", result.TotalProcessed, result.Skipped, len(unique))
		}
		if dryRun && store.Mutations() != 0 {
			rt.Fatalf("dry run issued %d mutations", store.Mutations())
		}
	})
}
