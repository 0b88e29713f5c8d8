package retention

import (
	"fmt"
	"time"
)

// StoredRecord is the projection of a persisted row returned by eligibility
// queries.
type StoredRecord struct {
	ID             string     `json:"id" db:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

// ReferenceDate returns the last access time, falling back to the creation time.
func (r StoredRecord) ReferenceDate() time.Time {
	if r.LastAccessedAt != nil {
		return r.LastAccessedAt.UTC()
	}
	return r.CreatedAt.UTC()
}

// EligibleRecord is a record selected by a scan, together with the dates
// derived from its category's policy. Instances live for one scan only.
type EligibleRecord struct {
	ID               string     `json:"id"`
	Category         Category   `json:"category"`
	CreatedAt        time.Time  `json:"created_at"`
	LastAccessedAt   *time.Time `json:"last_accessed_at,omitempty"`
	ReferenceDate    time.Time  `json:"reference_date"`
	DeletionDate     time.Time  `json:"deletion_date"`
	NotificationDate *time.Time `json:"notification_date,omitempty"`
}

// NewEligibleRecord derives the reference, deletion and notification dates of
// a stored record under the given policy.
func NewEligibleRecord(rec StoredRecord, policy Policy) EligibleRecord {
	reference := rec.ReferenceDate()
	deletion := reference.Add(Days(policy.RetentionDays))

	er := EligibleRecord{
		ID:            rec.ID,
		Category:      policy.Category,
		CreatedAt:     rec.CreatedAt.UTC(),
		ReferenceDate: reference,
		DeletionDate:  deletion,
	}
	if rec.LastAccessedAt != nil {
		accessed := rec.LastAccessedAt.UTC()
		er.LastAccessedAt = &accessed
	}
	if policy.Notifies() {
		notification := deletion.Add(-Days(policy.NotificationDays))
		er.NotificationDate = &notification
	}
	return er
}

// Validate checks that the record is well formed relative to now: it has an
// id, none of its timestamps lie in the future, and it was not accessed
// before it was created.
func (r EligibleRecord) Validate(now time.Time) error {
	if r.ID == "" {
		return NewValidationError(r.ID, "record id is empty")
	}
	if r.CreatedAt.IsZero() {
		return NewValidationError(r.ID, "created_at is not set")
	}
	if r.CreatedAt.After(now) {
		return NewValidationError(r.ID, fmt.Sprintf("created_at %s is in the future", r.CreatedAt.Format(time.RFC3339)))
	}
	if r.LastAccessedAt != nil {
		if r.LastAccessedAt.After(now) {
			return NewValidationError(r.ID, fmt.Sprintf("last_accessed_at %s is in the future", r.LastAccessedAt.Format(time.RFC3339)))
		}
		if r.LastAccessedAt.Before(r.CreatedAt) {
			return NewValidationError(r.ID, "last_accessed_at is before created_at")
		}
	}
	return nil
}
