package anonymize

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/lethe/pkg/retention"
	"mercator-hq/lethe/pkg/retention/catalog"
)

// Transformer anonymizes records through the store's structured update API.
type Transformer struct {
	store   retention.Mutator
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewTransformer creates a transformer writing through store.
func NewTransformer(store retention.Mutator, cat *catalog.Catalog) *Transformer {
	return &Transformer{
		store:   store,
		catalog: cat,
		logger:  slog.Default().With("component", "retention.anonymize"),
	}
}

// Anonymize rewrites the identifying fields of one record and stamps it as
// deleted. Anonymizing an already anonymized record reports
// MutationAlreadyDone and leaves it untouched.
func (t *Transformer) Anonymize(ctx context.Context, category retention.Category, recordID string, stamp retention.DeletionStamp) (retention.MutationOutcome, error) {
	rewrites := Rewrites(category, recordID)
	if len(rewrites) == 0 {
		return 0, retention.NewConfigurationError("anonymize",
			fmt.Errorf("no rewrite rules for category %s", category))
	}

	target := t.catalog.Target(category)
	outcome, err := t.store.Anonymize(ctx, target.Table, recordID, rewrites, stamp)
	if err != nil {
		return 0, err
	}

	t.logger.DebugContext(ctx, "record anonymized",
		"category", category,
		"record_id", recordID,
		"outcome", outcome.String(),
		"fields", len(rewrites),
	)
	return outcome, nil
}

// Check verifies that every anonymizing category of the catalog has rewrite
// rules and that every rule addresses a declared column of its target.
func Check(cat *catalog.Catalog) []catalog.Violation {
	var violations []catalog.Violation
	for _, p := range cat.Policies() {
		rules := Rules[p.Category]
		if p.Operation() == retention.OperationAnonymize && len(rules) == 0 {
			violations = append(violations, catalog.Violation{
				Category: p.Category,
				Field:    "allow_anonymization",
				Message:  "no anonymization rules declared",
			})
		}
		target := cat.Target(p.Category)
		for _, r := range rules {
			if !target.HasColumn(r.Field) {
				violations = append(violations, catalog.Violation{
					Category: p.Category,
					Field:    "anonymize." + r.Field,
					Message:  fmt.Sprintf("column not declared on table %s", target.Table),
				})
			}
		}
	}
	return violations
}
