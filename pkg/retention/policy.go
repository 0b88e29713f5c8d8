package retention

import "time"

// Day is the length of one retention day.
const Day = 24 * time.Hour

// Days converts a day count into a duration.
func Days(n int) time.Duration {
	return time.Duration(n) * Day
}

// Operation is the store mutation applied to an eligible record.
type Operation string

const (
	// OperationAnonymize rewrites identifying fields and keeps the row.
	OperationAnonymize Operation = "anonymize"

	// OperationSoftDelete marks the row deleted without removing it.
	OperationSoftDelete Operation = "soft_delete"

	// OperationHardDelete irreversibly removes the row.
	OperationHardDelete Operation = "hard_delete"
)

// Policy is the retention policy of one data category.
// Policies are immutable for the lifetime of the process.
type Policy struct {
	// Category is the data category this policy governs.
	Category Category `json:"category" yaml:"category"`

	// RetentionDays is how long a record is kept after its reference date.
	// 0 means the category is never deleted automatically.
	RetentionDays int `json:"retention_days" yaml:"retention_days"`

	// NotifyBeforeDeletion enables "will be deleted soon" notices.
	NotifyBeforeDeletion bool `json:"notify_before_deletion" yaml:"notify_before_deletion"`

	// NotificationDays is the lead time of the notice before the deletion date.
	// Must satisfy 0 < NotificationDays < RetentionDays when notifications are enabled.
	NotificationDays int `json:"notification_days" yaml:"notification_days"`

	// AllowAnonymization selects anonymization instead of deletion.
	AllowAnonymization bool `json:"allow_anonymization" yaml:"allow_anonymization"`

	// RequiresManualReview restricts the category to soft deletion.
	RequiresManualReview bool `json:"requires_manual_review" yaml:"requires_manual_review"`

	// AllowHardDelete opts the category into irreversible removal.
	AllowHardDelete bool `json:"allow_hard_delete" yaml:"allow_hard_delete"`

	// LegalBasis and Description are informational only.
	LegalBasis  string `json:"legal_basis" yaml:"legal_basis"`
	Description string `json:"description" yaml:"description"`
}

// Indefinite reports whether records of this category are kept forever.
func (p Policy) Indefinite() bool {
	return p.RetentionDays == 0
}

// Notifies reports whether the policy sends notices before deletion.
func (p Policy) Notifies() bool {
	return p.NotifyBeforeDeletion && !p.Indefinite()
}

// Operation returns the mutation applied to records of this category.
//
// Anonymization wins when allowed. Manual review restricts the category to
// soft deletion. Hard deletion is only chosen for categories that explicitly
// allow it; everything else falls back to soft deletion.
func (p Policy) Operation() Operation {
	switch {
	case p.AllowAnonymization:
		return OperationAnonymize
	case p.RequiresManualReview:
		return OperationSoftDelete
	case p.AllowHardDelete:
		return OperationHardDelete
	default:
		return OperationSoftDelete
	}
}

// Window is the reference-date predicate of an eligibility scan.
// A record matches when After < referenceDate <= NotAfter. A nil After means
// the window is open towards the past.
type Window struct {
	After    *time.Time
	NotAfter time.Time
}

// Contains reports whether a reference date falls into the window.
func (w Window) Contains(reference time.Time) bool {
	if reference.After(w.NotAfter) {
		return false
	}
	if w.After != nil && !reference.After(*w.After) {
		return false
	}
	return true
}

// DeletionWindow returns the window of records whose deletion date is at or
// before now: referenceDate <= now - RetentionDays.
func (p Policy) DeletionWindow(now time.Time) Window {
	return Window{NotAfter: now.UTC().Add(-Days(p.RetentionDays))}
}

// NotificationWindow returns the window of records whose notification date is
// at or before now while their deletion date is still in the future:
//
//	now - RetentionDays < referenceDate <= now - RetentionDays + NotificationDays
func (p Policy) NotificationWindow(now time.Time) Window {
	after := now.UTC().Add(-Days(p.RetentionDays))
	return Window{
		After:    &after,
		NotAfter: after.Add(Days(p.NotificationDays)),
	}
}
