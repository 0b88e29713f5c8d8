package catalog

import "mercator-hq/lethe/pkg/retention"

// ColumnType is the storage type of a category-specific column.
type ColumnType string

const (
	ColumnText    ColumnType = "text"
	ColumnInteger ColumnType = "integer"
)

// Column is one category-specific column of a store target. The common
// lifecycle columns (id, created_at, last_accessed_at, is_deleted,
// deleted_at, deleted_by) are present on every target and not listed.
type Column struct {
	Name string
	Type ColumnType
}

// Target maps a category onto the store table holding its records.
type Target struct {
	Category retention.Category
	Table    string
	Columns  []Column
}

// HasColumn reports whether the target declares the named column.
func (t Target) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Auxiliary tables purged by weekly housekeeping. The engine owns the job
// run and notice tables; sessions and reset tokens belong to the
// application and are only purged.
const (
	TableUserSessions        = "user_sessions"
	TablePasswordResetTokens = "password_reset_tokens"
	TableJobRuns             = "retention_job_runs"
	TableNotices             = "retention_notices"
)

func text(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Type: ColumnText}
	}
	return cols
}

// DefaultTargets returns the store target of every category.
func DefaultTargets() []Target {
	return []Target{
		{
			Category: retention.CategoryUserProfile,
			Table:    "user_profiles",
			Columns:  text("full_name", "email", "phone", "address", "date_of_birth", "locale", "plan"),
		},
		{
			Category: retention.CategoryCVDocument,
			Table:    "cv_documents",
			Columns:  text("user_id", "file_name", "storage_path", "extracted_text", "language"),
		},
		{
			Category: retention.CategoryJobPosting,
			Table:    "job_postings",
			Columns:  text("user_id", "company_name", "title", "description", "contact_email", "location"),
		},
		{
			Category: retention.CategoryGeneratedContent,
			Table:    "generated_contents",
			Columns:  text("user_id", "prompt", "content", "content_type"),
		},
		{
			Category: retention.CategoryContactMessage,
			Table:    "contact_messages",
			Columns:  text("name", "email", "subject", "message", "source"),
		},
		{
			Category: retention.CategoryNewsletterSubscription,
			Table:    "newsletter_subscriptions",
			Columns:  text("email", "name", "list_id"),
		},
		{
			Category: retention.CategoryNotification,
			Table:    "notifications",
			Columns:  text("user_id", "title", "body", "channel"),
		},
		{
			Category: retention.CategoryFeatureUsageEvent,
			Table:    "feature_usage_events",
			Columns:  text("user_id", "session_id", "ip_address", "feature", "metadata"),
		},
		{
			Category: retention.CategoryBillingRecord,
			Table:    "billing_records",
			Columns: append(text("user_id", "customer_name", "billing_email", "billing_address", "invoice_number"),
				Column{Name: "amount", Type: ColumnInteger}),
		},
		{
			Category: retention.CategorySecurityLog,
			Table:    "security_logs",
			Columns:  text("user_id", "ip_address", "user_agent", "event_type"),
		},
		{
			Category: retention.CategoryAuditLog,
			Table:    "audit_logs",
			Columns:  text("actor_id", "actor_email", "action", "resource", "details"),
		},
		{
			Category: retention.CategoryFailedLoginAttempt,
			Table:    "failed_login_attempts",
			Columns:  text("email", "ip_address", "user_agent"),
		},
	}
}
