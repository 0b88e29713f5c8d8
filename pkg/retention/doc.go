// Package retention defines the core types of the data-lifecycle engine.
//
// The engine classifies stored records into data categories, applies a
// per-category retention policy and purges (anonymizes, soft-deletes or
// hard-deletes) records once they age past their retention window.
//
// # Packages
//
// The engine is split into small packages that build on the types defined here:
//
//   - catalog: the static policy table and the category to store target mapping
//   - scanner: eligibility queries for deletion and notification candidates
//   - executor: per-record batch processing with dry-run and retry support
//   - anonymize: typed per-category field rewrite rules
//   - notify: sinks for "record will be deleted soon" notices
//   - housekeeping: auxiliary purges that are not expressed as categories
//   - scheduler: the job entry points and the cron daemon
//   - storage: memory and SQL (SQLite, PostgreSQL) store implementations
//
// # Date Math
//
// Every record has a reference date: its last access time, or its creation time
// if it was never accessed. For a policy with RetentionDays R and
// NotificationDays N:
//
//	deletionDate     = referenceDate + R days
//	notificationDate = deletionDate - N days
//
// One retention day is exactly 24 hours and all timestamps are normalised to UTC,
// so the scan windows computed from "now" are exact inverses of the dates above.
//
// # Results
//
// BatchDeletionResult and ScheduledJobResult are write-once values. For every
// batch:
//
//	Successful + Failed == TotalProcessed
//	Anonymized + SoftDeleted + HardDeleted == Successful
//
// Records found already in their target state (removed or deleted by a
// concurrent run) are counted in Skipped and do not take part in either sum.
package retention
