package catalog

import "mercator-hq/lethe/pkg/retention"

// DefaultPolicies returns the built-in retention policy of every category.
func DefaultPolicies() []retention.Policy {
	return []retention.Policy{
		{
			Category:             retention.CategoryUserProfile,
			RetentionDays:        1095,
			NotifyBeforeDeletion: true,
			NotificationDays:     30,
			AllowAnonymization:   true,
			LegalBasis:           "contract",
			Description:          "Inactive user accounts are anonymized three years after last activity",
		},
		{
			Category:             retention.CategoryCVDocument,
			RetentionDays:        730,
			NotifyBeforeDeletion: true,
			NotificationDays:     30,
			AllowHardDelete:      true,
			LegalBasis:           "consent",
			Description:          "Uploaded CVs and extracted text are removed two years after last access",
		},
		{
			Category:             retention.CategoryJobPosting,
			RetentionDays:        365,
			NotifyBeforeDeletion: true,
			NotificationDays:     14,
			AllowAnonymization:   true,
			LegalBasis:           "legitimate_interest",
			Description:          "Job postings are anonymized one year after last access",
		},
		{
			Category:             retention.CategoryGeneratedContent,
			RetentionDays:        365,
			NotifyBeforeDeletion: true,
			NotificationDays:     30,
			AllowHardDelete:      true,
			LegalBasis:           "contract",
			Description:          "Generated letters and documents are removed one year after last access",
		},
		{
			Category:           retention.CategoryContactMessage,
			RetentionDays:      730,
			AllowAnonymization: true,
			LegalBasis:         "legitimate_interest",
			Description:        "Contact form messages are anonymized after two years",
		},
		{
			Category:             retention.CategoryNewsletterSubscription,
			RetentionDays:        1095,
			NotifyBeforeDeletion: true,
			NotificationDays:     30,
			AllowHardDelete:      true,
			LegalBasis:           "consent",
			Description:          "Dormant newsletter subscriptions are removed after three years",
		},
		{
			Category:        retention.CategoryNotification,
			RetentionDays:   90,
			AllowHardDelete: true,
			LegalBasis:      "contract",
			Description:     "In-app notifications are removed after 90 days",
		},
		{
			Category:           retention.CategoryFeatureUsageEvent,
			RetentionDays:      730,
			AllowAnonymization: true,
			LegalBasis:         "legitimate_interest",
			Description:        "Usage events are anonymized after two years and kept for statistics",
		},
		{
			Category:             retention.CategoryBillingRecord,
			RetentionDays:        3650,
			RequiresManualReview: true,
			LegalBasis:           "legal_obligation",
			Description:          "Billing records are kept ten years for tax law and only soft-deleted pending review",
		},
		{
			Category:        retention.CategorySecurityLog,
			RetentionDays:   365,
			AllowHardDelete: true,
			LegalBasis:      "legitimate_interest",
			Description:     "Security logs are removed after one year",
		},
		{
			Category:             retention.CategoryAuditLog,
			RetentionDays:        2555,
			RequiresManualReview: true,
			LegalBasis:           "legal_obligation",
			Description:          "Audit logs are kept seven years and only soft-deleted pending review",
		},
		{
			Category:        retention.CategoryFailedLoginAttempt,
			RetentionDays:   90,
			AllowHardDelete: true,
			LegalBasis:      "legitimate_interest",
			Description:     "Failed login attempts are removed after 90 days",
		},
	}
}
