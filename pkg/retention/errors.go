package retention

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEngineDisabled is returned by every job entry point when the engine
	// is disabled by configuration.
	ErrEngineDisabled = errors.New("retention engine is disabled")

	// ErrTimeBudgetExceeded aborts the remaining records of a job once the
	// configured maximum processing time has elapsed.
	ErrTimeBudgetExceeded = errors.New("time budget exceeded")

	// ErrMemoryBudgetExceeded aborts the remaining categories of a job once
	// the heap grows past the configured budget.
	ErrMemoryBudgetExceeded = errors.New("memory budget exceeded")

	// ErrUnknownCategory is returned for categories outside the closed set.
	ErrUnknownCategory = errors.New("unknown data category")
)

// ConfigurationError reports an invalid or inconsistent engine setup.
// It is fatal and always raised before any store access.
type ConfigurationError struct {
	Field      string   // Configuration field or component at fault
	Violations []string // Individual invariant violations, if any
	Cause      error    // Underlying error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration error")
	if e.Field != "" {
		sb.WriteString(fmt.Sprintf(" [field=%s]", e.Field))
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	if len(e.Violations) > 0 {
		sb.WriteString(": ")
		sb.WriteString(strings.Join(e.Violations, "; "))
	}
	return sb.String()
}

// Unwrap returns the underlying cause error.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field string, cause error, violations ...string) *ConfigurationError {
	return &ConfigurationError{
		Field:      field,
		Violations: violations,
		Cause:      cause,
	}
}

// ValidationError reports a malformed record. It is scoped to one record and
// never aborts a batch.
type ValidationError struct {
	RecordID string
	Reason   string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [record_id=%s]: %s", e.RecordID, e.Reason)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(recordID, reason string) *ValidationError {
	return &ValidationError{
		RecordID: recordID,
		Reason:   reason,
	}
}

// StoreError represents an error from the storage backend.
type StoreError struct {
	Backend   string // Storage backend ("memory", "sqlite", "postgres")
	Operation string // Operation that failed ("list_eligible", "soft_delete", ...)
	Target    string // Store target (table) the operation addressed
	Transient bool   // Whether retrying the operation may succeed
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	kind := "storage error"
	if e.Transient {
		kind = "transient storage error"
	}
	return fmt.Sprintf("%s [backend=%s, operation=%s, target=%s]: %v", kind, e.Backend, e.Operation, e.Target, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new StoreError.
func NewStoreError(backend, operation, target string, transient bool, cause error) *StoreError {
	return &StoreError{
		Backend:   backend,
		Operation: operation,
		Target:    target,
		Transient: transient,
		Cause:     cause,
	}
}

// IsTransient reports whether err is a StoreError marked as transient.
func IsTransient(err error) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Transient
	}
	return false
}

// RecordFailure is a record that could not be processed, either because it
// failed validation or because its store mutation failed after retries.
type RecordFailure struct {
	Category  Category
	RecordID  string
	Operation Operation
	Cause     error
}

// Error implements the error interface.
func (e *RecordFailure) Error() string {
	return fmt.Sprintf("record failure [category=%s, record_id=%s, operation=%s]: %v", e.Category, e.RecordID, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RecordFailure) Unwrap() error {
	return e.Cause
}

// JobAbortError unwinds the processing of one category. Results collected
// before the abort are still returned alongside it.
type JobAbortError struct {
	Category Category
	Cause    error
}

// Error implements the error interface.
func (e *JobAbortError) Error() string {
	return fmt.Sprintf("job aborted [category=%s]: %v", e.Category, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *JobAbortError) Unwrap() error {
	return e.Cause
}

// NewJobAbortError creates a new JobAbortError.
func NewJobAbortError(category Category, cause error) *JobAbortError {
	return &JobAbortError{
		Category: category,
		Cause:    cause,
	}
}
