package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/lethe/pkg/cli"
	"mercator-hq/lethe/pkg/config"
	"mercator-hq/lethe/pkg/retention"
	"mercator-hq/lethe/pkg/retention/catalog"
	"mercator-hq/lethe/pkg/retention/executor"
	"mercator-hq/lethe/pkg/retention/housekeeping"
	"mercator-hq/lethe/pkg/retention/notify"
	"mercator-hq/lethe/pkg/retention/scheduler"
	"mercator-hq/lethe/pkg/retention/storage"
	"mercator-hq/lethe/pkg/telemetry/logging"
	"mercator-hq/lethe/pkg/telemetry/metrics"
)

// app holds the components shared by every command.
type app struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	store   storage.Backend
	engine  *scheduler.Engine
	metrics *metrics.Collector
	logger  *slog.Logger
}

// loadConfig loads configuration from the global flags.
func loadConfig() (*config.Config, error) {
	var envFiles []string
	if envFile != "" && envFile != config.DefaultEnvFile {
		envFiles = []string{envFile}
	}
	cfg, err := config.Load(cfgFile, envFiles...)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// newApp loads configuration and wires the engine. Configuration and
// catalog errors are reported before the store is opened. Commands that run
// jobs pass runsJobs so a disabled engine fails before any store access.
// In dry-run the store is opened read-only.
func newApp(ctx context.Context, runsJobs bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if runsJobs && !cfg.Engine.Enabled {
		return nil, cli.NewCommandError("engine",
			retention.NewConfigurationError("engine.enabled", retention.ErrEngineDisabled))
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		RedactPII: cfg.Telemetry.Logging.RedactPII,
		Writer:    os.Stderr,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	overrides, err := catalogOverrides(cfg.Categories)
	if err != nil {
		return nil, cli.NewConfigError("categories", err.Error())
	}
	cat, err := catalog.Default(overrides)
	if err != nil {
		return nil, cli.NewConfigError("categories", err.Error())
	}

	collector := metrics.NewCollector(cfg.Telemetry.Metrics, prometheus.NewRegistry())

	sc := storageConfig(cfg.Storage)
	sc.ReadOnly = cfg.Engine.DryRun || dryRun
	store, err := storage.Open(ctx, sc, cat.Targets())
	if err != nil {
		return nil, cli.NewCommandError("storage", err)
	}

	notifier, err := notify.New(cfg.Notifications.Sink, store, nil)
	if err != nil {
		_ = store.Close()
		return nil, cli.NewConfigError("notifications.sink", err.Error())
	}

	engine, err := scheduler.NewEngine(engineConfig(cfg), scheduler.Deps{
		Store:        store,
		Catalog:      cat,
		Notifier:     notifier,
		Housekeeping: housekeeping.NewRunner(store, housekeeping.Tasks(housekeepingConfig(cfg.Housekeeping))),
		History:      store,
		Metrics:      collector,
		Executor:     executorConfig(cfg.Errors),
	})
	if err != nil {
		_ = store.Close()
		var cfgErr *retention.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, cli.NewConfigError(cfgErr.Field, err.Error())
		}
		return nil, err
	}

	return &app{
		cfg:     cfg,
		catalog: cat,
		store:   store,
		engine:  engine.WithDryRun(dryRun),
		metrics: collector,
		logger:  logger,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func engineConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:        cfg.Engine.Enabled,
		DryRun:         cfg.Engine.DryRun,
		BatchSize:      cfg.Engine.BatchSize,
		MaxRecords:     cfg.Engine.MaxRecords,
		Concurrency:    cfg.Engine.Concurrency,
		ActorID:        cfg.Engine.ActorID,
		MaxJobDuration: cfg.Limits.MaxJobDuration,
		MaxMemoryMB:    cfg.Limits.MaxMemoryMB,
	}
}

func executorConfig(cfg config.ErrorsConfig) executor.Config {
	return executor.Config{
		MaxRetries:      cfg.MaxRetries,
		RetryDelay:      cfg.RetryDelay,
		MaxRetryDelay:   cfg.MaxRetryDelay,
		ContinueOnError: cfg.ContinueOnError,
	}
}

func housekeepingConfig(cfg config.HousekeepingConfig) housekeeping.Config {
	return housekeeping.Config{
		SessionGrace:    cfg.SessionGrace,
		ResetTokenGrace: cfg.ResetTokenGrace,
		JobRunRetention: cfg.JobRunRetention,
		NoticeRetention: cfg.NoticeRetention,
	}
}

func storageConfig(cfg config.StorageConfig) storage.Config {
	sc := storage.Config{
		Driver:      cfg.Driver,
		AutoMigrate: cfg.AutoMigrate,
	}
	switch cfg.Driver {
	case storage.DriverSQLite:
		sc.Path = cfg.SQLite.Path
		sc.MaxOpenConns = cfg.SQLite.MaxOpenConns
		sc.MaxIdleConns = cfg.SQLite.MaxIdleConns
		sc.WALMode = cfg.SQLite.WALMode
		sc.BusyTimeout = cfg.SQLite.BusyTimeout
	case storage.DriverPostgres:
		sc.DSN = cfg.Postgres.ConnString()
		sc.MaxOpenConns = cfg.Postgres.MaxOpenConns
		sc.MaxIdleConns = cfg.Postgres.MaxIdleConns
		sc.ConnMaxLifetime = cfg.Postgres.ConnMaxLifetime
	}
	return sc
}

func schedules(cfg config.ScheduleConfig) scheduler.Schedules {
	return scheduler.Schedules{
		DailyCheck:        cfg.DailyCheck,
		NotificationCheck: cfg.NotificationCheck,
		WeeklyCleanup:     cfg.WeeklyCleanup,
	}
}

// catalogOverrides converts the per-category configuration. Keys are
// category names; hyphens and case are normalised.
func catalogOverrides(categories map[string]config.CategoryConfig) (map[retention.Category]catalog.Override, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	out := make(map[retention.Category]catalog.Override, len(categories))
	for name, c := range categories {
		category, err := retention.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		out[category] = catalog.Override{
			RetentionDays:        c.RetentionDays,
			NotificationDays:     c.NotificationDays,
			NotifyBeforeDeletion: c.NotifyBeforeDeletion,
		}
	}
	return out, nil
}

// storageLabel describes the configured backend without credentials.
func storageLabel(cfg config.StorageConfig) string {
	switch cfg.Driver {
	case storage.DriverSQLite:
		return "sqlite (" + cfg.SQLite.Path + ")"
	case storage.DriverPostgres:
		if cfg.Postgres.DSN != "" {
			return "postgres"
		}
		return fmt.Sprintf("postgres (%s:%d/%s)", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database)
	default:
		return strings.ToLower(cfg.Driver)
	}
}

// jobTimeout bounds a command-line job slightly past the engine budget so
// the engine reports the budget violation itself.
func jobTimeout(cfg *config.Config) time.Duration {
	if cfg.Limits.MaxJobDuration <= 0 {
		return 0
	}
	return cfg.Limits.MaxJobDuration + time.Minute
}
