package retention

import (
	"fmt"
	"strings"
)

// Category identifies a class of stored data governed by one retention policy.
type Category string

// The closed set of data categories.
const (
	CategoryUserProfile            Category = "user_profile"
	CategoryCVDocument             Category = "cv_document"
	CategoryJobPosting             Category = "job_posting"
	CategoryGeneratedContent       Category = "generated_content"
	CategoryContactMessage         Category = "contact_message"
	CategoryNewsletterSubscription Category = "newsletter_subscription"
	CategoryNotification           Category = "notification"
	CategoryFeatureUsageEvent      Category = "feature_usage_event"
	CategoryBillingRecord          Category = "billing_record"
	CategorySecurityLog            Category = "security_log"
	CategoryAuditLog               Category = "audit_log"
	CategoryFailedLoginAttempt     Category = "failed_login_attempt"
)

var allCategories = []Category{
	CategoryUserProfile,
	CategoryCVDocument,
	CategoryJobPosting,
	CategoryGeneratedContent,
	CategoryContactMessage,
	CategoryNewsletterSubscription,
	CategoryNotification,
	CategoryFeatureUsageEvent,
	CategoryBillingRecord,
	CategorySecurityLog,
	CategoryAuditLog,
	CategoryFailedLoginAttempt,
}

// AllCategories returns every declared category in a fixed order.
// The returned slice is a copy and may be modified by the caller.
func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	for _, known := range allCategories {
		if c == known {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}

// ParseCategory parses a category name. It accepts the canonical lower-case
// form as well as the upper-case constant form (e.g. "USER_PROFILE") and
// hyphenated names.
func ParseCategory(s string) (Category, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	c := Category(normalized)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}
