package config

import "time"

// Config is the root configuration structure for Lethe.
// It is decoded once at startup and passed by value into constructors.
type Config struct {
	// Engine contains the global switches of the retention engine.
	Engine EngineConfig `yaml:"engine"`

	// Errors controls retries and failure propagation of record mutations.
	Errors ErrorsConfig `yaml:"errors"`

	// Limits bounds the time and memory a single job may use.
	Limits LimitsConfig `yaml:"limits"`

	// Categories overrides built-in retention policies.
	// Keys are category names (e.g., "user_profile", "cv_document").
	Categories map[string]CategoryConfig `yaml:"categories"`

	// Storage selects the database backend.
	Storage StorageConfig `yaml:"storage"`

	// Schedule contains the cron expressions of the recurring jobs in serve mode.
	Schedule ScheduleConfig `yaml:"schedule"`

	// Housekeeping controls purging of auxiliary tables in the weekly cleanup.
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`

	// Notifications selects where pre-deletion notices are delivered.
	Notifications NotificationsConfig `yaml:"notifications"`

	// Server contains the HTTP API configuration used by serve mode.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig contains the global switches of the retention engine.
type EngineConfig struct {
	// Enabled gates every job. A disabled engine refuses to run.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// DryRun simulates every job without mutating the store.
	// Default: false
	DryRun bool `yaml:"dry_run"`

	// BatchSize is the number of records between executor progress logs.
	// Default: 100
	BatchSize int `yaml:"batch_size"`

	// MaxRecords caps the records processed per category and job.
	// Default: 1000
	MaxRecords int `yaml:"max_records"`

	// Concurrency is the number of categories processed in parallel.
	// Default: 1
	Concurrency int `yaml:"concurrency"`

	// ActorID is recorded as deleted_by on soft-deleted and anonymized rows.
	// Default: "retention-engine"
	ActorID string `yaml:"actor_id"`
}

// ErrorsConfig controls retries and failure propagation.
type ErrorsConfig struct {
	// MaxRetries is the number of retries of a transient store error.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the initial backoff between retries.
	// Default: 1s
	RetryDelay time.Duration `yaml:"retry_delay"`

	// MaxRetryDelay caps the exponential backoff.
	// Default: 30s
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`

	// ContinueOnError keeps processing a category after a record failure.
	// Default: true
	ContinueOnError bool `yaml:"continue_on_error"`
}

// LimitsConfig bounds the resources of one job.
type LimitsConfig struct {
	// MaxJobDuration is the job time budget. 0 disables the budget.
	// Default: 30m
	MaxJobDuration time.Duration `yaml:"max_job_duration"`

	// MaxMemoryMB is the heap budget checked before each category.
	// 0 disables the budget.
	// Default: 512
	MaxMemoryMB int `yaml:"max_memory_mb"`
}

// CategoryConfig overrides the built-in policy of one category.
// Unset fields keep the built-in value.
type CategoryConfig struct {
	// RetentionDays is how long records are kept. 0 keeps them forever.
	RetentionDays *int `yaml:"retention_days"`

	// NotificationDays is the notice lead time before deletion.
	NotificationDays *int `yaml:"notification_days"`

	// NotifyBeforeDeletion enables pre-deletion notices.
	NotifyBeforeDeletion *bool `yaml:"notify_before_deletion"`
}

// StorageConfig selects the database backend.
type StorageConfig struct {
	// Driver is the backend type.
	// Options: "memory", "sqlite", "postgres"
	// Default: "memory"
	Driver string `yaml:"driver"`

	// AutoMigrate creates missing tables and indexes on startup.
	// Default: true
	AutoMigrate bool `yaml:"auto_migrate"`

	// SQLite contains SQLite-specific settings.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Postgres contains PostgreSQL-specific settings.
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig contains SQLite storage settings.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/lethe.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PostgresConfig contains PostgreSQL storage settings. DSN wins over the
// individual connection fields when set.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// SSLMode is the libpq sslmode.
	// Default: "require"
	SSLMode string `yaml:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnMaxLifetime bounds how long a connection is reused.
	// Default: 30m
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ScheduleConfig contains standard 5-field cron expressions evaluated in
// UTC. An empty expression disables that job.
type ScheduleConfig struct {
	// DailyCheck schedules the daily retention check.
	// Default: "0 2 * * *"
	DailyCheck string `yaml:"daily_check"`

	// NotificationCheck schedules the pre-deletion notice run.
	// Default: "0 9 * * *"
	NotificationCheck string `yaml:"notification_check"`

	// WeeklyCleanup schedules the weekly cleanup.
	// Default: "0 3 * * 0"
	WeeklyCleanup string `yaml:"weekly_cleanup"`
}

// HousekeepingConfig controls purging of auxiliary tables.
type HousekeepingConfig struct {
	// SessionGrace keeps expired sessions for a while after expiry.
	SessionGrace time.Duration `yaml:"session_grace"`

	// ResetTokenGrace keeps expired password reset tokens after expiry.
	ResetTokenGrace time.Duration `yaml:"reset_token_grace"`

	// JobRunRetention is how long job run history is kept.
	// Default: 2160h (90 days)
	JobRunRetention time.Duration `yaml:"job_run_retention"`

	// NoticeRetention is how long queued notices are kept.
	// Default: 4320h (180 days)
	NoticeRetention time.Duration `yaml:"notice_retention"`
}

// NotificationsConfig selects the notice sink.
type NotificationsConfig struct {
	// Sink is where notices go.
	// Options: "log", "outbox"
	// Default: "log"
	Sink string `yaml:"sink"`
}

// ServerConfig contains the HTTP API configuration.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out a response.
	// Jobs triggered over HTTP run within this window.
	// Default: 35m
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is how long to wait for in-flight requests on shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII masks emails and tokens in log attributes.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path of the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "lethe"
	Namespace string `yaml:"namespace"`
}
