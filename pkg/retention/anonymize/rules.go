package anonymize

import (
	"fmt"

	"mercator-hq/lethe/pkg/retention"
)

// Sentinel values written in place of personal data.
const (
	PlaceholderName    = "Deleted User"
	PlaceholderCompany = "Deleted Company"
	RedactionMarker    = "[REDACTED]"
	DeletedDomain      = "deleted.invalid"
)

// RewriteFunc computes the replacement value of one field from the record
// id. A nil result writes NULL.
type RewriteFunc func(recordID string) *string

// Rule rewrites one field of a category table.
type Rule struct {
	Field   string
	Rewrite RewriteFunc
}

func constant(v string) RewriteFunc {
	return func(string) *string { return &v }
}

// Name replaces a personal or company name with a fixed placeholder.
func Name(placeholder string) RewriteFunc { return constant(placeholder) }

// Redact replaces free text with the redaction marker.
func Redact() RewriteFunc { return constant(RedactionMarker) }

// Null clears an identifier.
func Null() RewriteFunc {
	return func(string) *string { return nil }
}

// Email derives a unique, undeliverable address from the record id.
func Email() RewriteFunc {
	return func(recordID string) *string {
		v := fmt.Sprintf("deleted+%s@%s", recordID, DeletedDomain)
		return &v
	}
}

// Rules is the typed field-rewrite table of every anonymizable category.
// Columns not listed keep their values.
var Rules = map[retention.Category][]Rule{
	retention.CategoryUserProfile: {
		{Field: "full_name", Rewrite: Name(PlaceholderName)},
		{Field: "email", Rewrite: Email()},
		{Field: "phone", Rewrite: Null()},
		{Field: "address", Rewrite: Null()},
		{Field: "date_of_birth", Rewrite: Null()},
	},
	retention.CategoryJobPosting: {
		{Field: "user_id", Rewrite: Null()},
		{Field: "company_name", Rewrite: Name(PlaceholderCompany)},
		{Field: "contact_email", Rewrite: Email()},
		{Field: "description", Rewrite: Redact()},
	},
	retention.CategoryContactMessage: {
		{Field: "name", Rewrite: Name(PlaceholderName)},
		{Field: "email", Rewrite: Email()},
		{Field: "subject", Rewrite: Redact()},
		{Field: "message", Rewrite: Redact()},
	},
	retention.CategoryFeatureUsageEvent: {
		{Field: "user_id", Rewrite: Null()},
		{Field: "session_id", Rewrite: Null()},
		{Field: "ip_address", Rewrite: Null()},
		{Field: "metadata", Rewrite: Null()},
	},
}

// Rewrites returns the field rewrites of one record. It returns nil for
// categories without rules.
func Rewrites(category retention.Category, recordID string) []retention.FieldRewrite {
	rules := Rules[category]
	if len(rules) == 0 {
		return nil
	}
	out := make([]retention.FieldRewrite, len(rules))
	for i, r := range rules {
		out[i] = retention.FieldRewrite{Field: r.Field, Value: r.Rewrite(recordID)}
	}
	return out
}
