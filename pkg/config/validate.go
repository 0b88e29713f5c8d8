package config

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/lethe/pkg/retention"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "engine.batch_size").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together. Cross-field policy rules (notification lead time
// shorter than retention) are checked by the policy catalog.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateErrors(&cfg.Errors)...)
	errs = append(errs, validateLimits(&cfg.Limits)...)
	errs = append(errs, validateCategories(cfg.Categories)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateSchedule(&cfg.Schedule)...)
	errs = append(errs, validateHousekeeping(&cfg.Housekeeping)...)
	errs = append(errs, validateNotifications(&cfg.Notifications)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError
	if cfg.BatchSize <= 0 {
		errs = append(errs, FieldError{Field: "engine.batch_size", Message: "must be positive"})
	}
	if cfg.MaxRecords < 0 {
		errs = append(errs, FieldError{Field: "engine.max_records", Message: "must not be negative (0 means unlimited)"})
	}
	if cfg.Concurrency < 1 {
		errs = append(errs, FieldError{Field: "engine.concurrency", Message: "must be at least 1"})
	}
	if strings.TrimSpace(cfg.ActorID) == "" {
		errs = append(errs, FieldError{Field: "engine.actor_id", Message: "is required"})
	}
	return errs
}

func validateErrors(cfg *ErrorsConfig) []FieldError {
	var errs []FieldError
	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{Field: "errors.max_retries", Message: "must not be negative"})
	}
	if cfg.RetryDelay < 0 {
		errs = append(errs, FieldError{Field: "errors.retry_delay", Message: "must not be negative"})
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		errs = append(errs, FieldError{
			Field:   "errors.max_retry_delay",
			Message: fmt.Sprintf("must be at least retry_delay (%s)", cfg.RetryDelay),
		})
	}
	return errs
}

func validateLimits(cfg *LimitsConfig) []FieldError {
	var errs []FieldError
	if cfg.MaxJobDuration < 0 {
		errs = append(errs, FieldError{Field: "limits.max_job_duration", Message: "must not be negative (0 disables the budget)"})
	}
	if cfg.MaxMemoryMB < 0 {
		errs = append(errs, FieldError{Field: "limits.max_memory_mb", Message: "must not be negative (0 disables the budget)"})
	}
	return errs
}

func validateCategories(categories map[string]CategoryConfig) []FieldError {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []FieldError
	for _, name := range names {
		field := "categories." + name
		if _, err := retention.ParseCategory(name); err != nil {
			errs = append(errs, FieldError{Field: field, Message: "unknown data category"})
			continue
		}
		cc := categories[name]
		if cc.RetentionDays != nil && *cc.RetentionDays < 0 {
			errs = append(errs, FieldError{Field: field + ".retention_days", Message: "must not be negative (0 keeps records indefinitely)"})
		}
		if cc.NotificationDays != nil && *cc.NotificationDays < 0 {
			errs = append(errs, FieldError{Field: field + ".notification_days", Message: "must not be negative"})
		}
	}
	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError
	switch cfg.Driver {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "storage.sqlite.path", Message: "is required for the sqlite driver"})
		}
		if cfg.SQLite.MaxOpenConns < 1 {
			errs = append(errs, FieldError{Field: "storage.sqlite.max_open_conns", Message: "must be at least 1"})
		}
		if cfg.SQLite.MaxIdleConns > cfg.SQLite.MaxOpenConns {
			errs = append(errs, FieldError{Field: "storage.sqlite.max_idle_conns", Message: "must not exceed max_open_conns"})
		}
	case "postgres":
		pg := cfg.Postgres
		if pg.DSN == "" {
			if pg.Host == "" {
				errs = append(errs, FieldError{Field: "storage.postgres.host", Message: "is required when dsn is not set"})
			}
			if pg.Database == "" {
				errs = append(errs, FieldError{Field: "storage.postgres.database", Message: "is required when dsn is not set"})
			}
			if pg.Port < 1 || pg.Port > 65535 {
				errs = append(errs, FieldError{Field: "storage.postgres.port", Message: "must be between 1 and 65535"})
			}
		}
		if pg.MaxIdleConns > pg.MaxOpenConns {
			errs = append(errs, FieldError{Field: "storage.postgres.max_idle_conns", Message: "must not exceed max_open_conns"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.driver",
			Message: fmt.Sprintf("unsupported driver %q (valid: memory, sqlite, postgres)", cfg.Driver),
		})
	}
	return errs
}

func validateSchedule(cfg *ScheduleConfig) []FieldError {
	var errs []FieldError
	for field, spec := range map[string]string{
		"schedule.daily_check":        cfg.DailyCheck,
		"schedule.notification_check": cfg.NotificationCheck,
		"schedule.weekly_cleanup":     cfg.WeeklyCleanup,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("invalid cron expression %q: %v", spec, err)})
		}
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

func validateHousekeeping(cfg *HousekeepingConfig) []FieldError {
	var errs []FieldError
	for field, d := range map[string]int64{
		"housekeeping.session_grace":     int64(cfg.SessionGrace),
		"housekeeping.reset_token_grace": int64(cfg.ResetTokenGrace),
		"housekeeping.job_run_retention": int64(cfg.JobRunRetention),
		"housekeeping.notice_retention":  int64(cfg.NoticeRetention),
	} {
		if d < 0 {
			errs = append(errs, FieldError{Field: field, Message: "must not be negative"})
		}
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

func validateNotifications(cfg *NotificationsConfig) []FieldError {
	switch cfg.Sink {
	case "log", "outbox":
		return nil
	default:
		return []FieldError{{
			Field:   "notifications.sink",
			Message: fmt.Sprintf("unsupported sink %q (valid: log, outbox)", cfg.Sink),
		}}
	}
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: fmt.Sprintf("invalid address %q: %v", cfg.ListenAddress, err)})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "must not be negative"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "must not be negative"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q (valid: debug, info, warn, error)", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q (valid: json, text)", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}
	return errs
}
