package config

import "time"

// Default values for configuration fields.
const (
	// Engine defaults
	DefaultEngineEnabled     = true
	DefaultEngineDryRun      = false
	DefaultEngineBatchSize   = 100
	DefaultEngineMaxRecords  = 1000
	DefaultEngineConcurrency = 1
	DefaultEngineActorID     = "retention-engine"

	// Error handling defaults
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = time.Second
	DefaultMaxRetryDelay   = 30 * time.Second
	DefaultContinueOnError = true

	// Limits defaults
	DefaultMaxJobDuration = 30 * time.Minute
	DefaultMaxMemoryMB    = 512

	// Storage defaults
	DefaultStorageDriver           = "memory"
	DefaultStorageAutoMigrate      = true
	DefaultSQLitePath              = "data/lethe.db"
	DefaultSQLiteMaxOpenConns      = 10
	DefaultSQLiteMaxIdleConns      = 5
	DefaultSQLiteWALMode           = true
	DefaultSQLiteBusyTimeout       = 5 * time.Second
	DefaultPostgresPort            = 5432
	DefaultPostgresSSLMode         = "require"
	DefaultPostgresMaxOpenConns    = 10
	DefaultPostgresMaxIdleConns    = 5
	DefaultPostgresConnMaxLifetime = 30 * time.Minute

	// Schedule defaults (UTC)
	DefaultDailyCheckSchedule        = "0 2 * * *"
	DefaultNotificationCheckSchedule = "0 9 * * *"
	DefaultWeeklyCleanupSchedule     = "0 3 * * 0"

	// Housekeeping defaults
	DefaultJobRunRetention = 90 * 24 * time.Hour
	DefaultNoticeRetention = 180 * 24 * time.Hour

	// Notification defaults
	DefaultNotificationSink = "log"

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 35 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultLogRedactPII     = true
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "lethe"
)

// Default returns a configuration with every field set to its default.
// Files and environment overrides are applied on top of it.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Enabled:     DefaultEngineEnabled,
			DryRun:      DefaultEngineDryRun,
			BatchSize:   DefaultEngineBatchSize,
			MaxRecords:  DefaultEngineMaxRecords,
			Concurrency: DefaultEngineConcurrency,
			ActorID:     DefaultEngineActorID,
		},
		Errors: ErrorsConfig{
			MaxRetries:      DefaultMaxRetries,
			RetryDelay:      DefaultRetryDelay,
			MaxRetryDelay:   DefaultMaxRetryDelay,
			ContinueOnError: DefaultContinueOnError,
		},
		Limits: LimitsConfig{
			MaxJobDuration: DefaultMaxJobDuration,
			MaxMemoryMB:    DefaultMaxMemoryMB,
		},
		Categories: map[string]CategoryConfig{},
		Storage: StorageConfig{
			Driver:      DefaultStorageDriver,
			AutoMigrate: DefaultStorageAutoMigrate,
			SQLite: SQLiteConfig{
				Path:         DefaultSQLitePath,
				MaxOpenConns: DefaultSQLiteMaxOpenConns,
				MaxIdleConns: DefaultSQLiteMaxIdleConns,
				WALMode:      DefaultSQLiteWALMode,
				BusyTimeout:  DefaultSQLiteBusyTimeout,
			},
			Postgres: PostgresConfig{
				Port:            DefaultPostgresPort,
				SSLMode:         DefaultPostgresSSLMode,
				MaxOpenConns:    DefaultPostgresMaxOpenConns,
				MaxIdleConns:    DefaultPostgresMaxIdleConns,
				ConnMaxLifetime: DefaultPostgresConnMaxLifetime,
			},
		},
		Schedule: ScheduleConfig{
			DailyCheck:        DefaultDailyCheckSchedule,
			NotificationCheck: DefaultNotificationCheckSchedule,
			WeeklyCleanup:     DefaultWeeklyCleanupSchedule,
		},
		Housekeeping: HousekeepingConfig{
			JobRunRetention: DefaultJobRunRetention,
			NoticeRetention: DefaultNoticeRetention,
		},
		Notifications: NotificationsConfig{
			Sink: DefaultNotificationSink,
		},
		Server: ServerConfig{
			ListenAddress:   DefaultListenAddress,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Level:     DefaultLogLevel,
				Format:    DefaultLogFormat,
				RedactPII: DefaultLogRedactPII,
			},
			Metrics: MetricsConfig{
				Enabled:   DefaultMetricsEnabled,
				Path:      DefaultMetricsPath,
				Namespace: DefaultMetricsNamespace,
			},
		},
	}
}

// ApplyDefaults fills empty strings and zero sizes that a YAML file may
// have cleared explicitly. Booleans and durations where zero is meaningful
// (budgets, grace periods) are left alone.
func ApplyDefaults(cfg *Config) {
	if cfg.Engine.BatchSize == 0 {
		cfg.Engine.BatchSize = DefaultEngineBatchSize
	}
	if cfg.Engine.Concurrency == 0 {
		cfg.Engine.Concurrency = DefaultEngineConcurrency
	}
	if cfg.Engine.ActorID == "" {
		cfg.Engine.ActorID = DefaultEngineActorID
	}
	if cfg.Errors.MaxRetryDelay == 0 {
		cfg.Errors.MaxRetryDelay = DefaultMaxRetryDelay
	}
	if cfg.Categories == nil {
		cfg.Categories = map[string]CategoryConfig{}
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DefaultStorageDriver
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.MaxOpenConns == 0 {
		cfg.Storage.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Storage.SQLite.MaxIdleConns == 0 {
		cfg.Storage.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.Postgres.Port == 0 {
		cfg.Storage.Postgres.Port = DefaultPostgresPort
	}
	if cfg.Storage.Postgres.SSLMode == "" {
		cfg.Storage.Postgres.SSLMode = DefaultPostgresSSLMode
	}
	if cfg.Storage.Postgres.MaxOpenConns == 0 {
		cfg.Storage.Postgres.MaxOpenConns = DefaultPostgresMaxOpenConns
	}
	if cfg.Storage.Postgres.MaxIdleConns == 0 {
		cfg.Storage.Postgres.MaxIdleConns = DefaultPostgresMaxIdleConns
	}

	if cfg.Notifications.Sink == "" {
		cfg.Notifications.Sink = DefaultNotificationSink
	}

	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
}
