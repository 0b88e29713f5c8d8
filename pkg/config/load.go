package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"mercator-hq/lethe/pkg/retention"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LETHE_"

// DefaultEnvFile is loaded when present. A missing default file is not an error.
const DefaultEnvFile = ".env"

// Load builds the configuration from defaults, the YAML file at path and
// environment overrides, then validates it.
//
// The loading sequence is:
//  1. Start from Default()
//  2. Load .env files into the process environment (never overriding set variables)
//  3. Decode the YAML file over the defaults (an empty path skips this step)
//  4. Apply LETHE_* environment overrides
//  5. Fill cleared fields with defaults and validate
//
// When envFiles is empty DefaultEnvFile is tried.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := decode(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	if errs := applyEnvOverrides(&cfg, os.LookupEnv); len(errs) > 0 {
		return nil, ValidationError{Errors: errs}
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. It does
// not consult the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decode rejects unknown keys so that typos in policy overrides are not
// silently ignored.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(DefaultEnvFile); err != nil {
			return nil
		}
		files = []string{DefaultEnvFile}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load environment file: %w", err)
	}
	return nil
}

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// envReader applies typed overrides and collects parse failures.
type envReader struct {
	lookup lookupFunc
	errs   []FieldError
}

func (r *envReader) get(key string) (string, bool) {
	v, ok := r.lookup(EnvPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (r *envReader) fail(key, msg string) {
	r.errs = append(r.errs, FieldError{Field: EnvPrefix + key, Message: msg})
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *envReader) boolean(key string, dst *bool) {
	if v, ok := r.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.fail(key, fmt.Sprintf("invalid boolean %q", v))
			return
		}
		*dst = b
	}
}

func (r *envReader) integer(key string, dst *int) {
	if v, ok := r.get(key); ok {
		i, err := strconv.Atoi(v)
		if err != nil {
			r.fail(key, fmt.Sprintf("invalid integer %q", v))
			return
		}
		*dst = i
	}
}

func (r *envReader) duration(key string, dst *time.Duration) {
	if v, ok := r.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.fail(key, fmt.Sprintf("invalid duration %q", v))
			return
		}
		*dst = d
	}
}

// applyEnvOverrides applies LETHE_SECTION_FIELD variables to cfg.
// Environment variables always take precedence over file-based configuration.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) []FieldError {
	r := &envReader{lookup: lookup}

	// Engine overrides
	r.boolean("ENGINE_ENABLED", &cfg.Engine.Enabled)
	r.boolean("ENGINE_DRY_RUN", &cfg.Engine.DryRun)
	r.integer("ENGINE_BATCH_SIZE", &cfg.Engine.BatchSize)
	r.integer("ENGINE_MAX_RECORDS", &cfg.Engine.MaxRecords)
	r.integer("ENGINE_CONCURRENCY", &cfg.Engine.Concurrency)
	r.str("ENGINE_ACTOR_ID", &cfg.Engine.ActorID)

	// Error handling overrides
	r.integer("ERRORS_MAX_RETRIES", &cfg.Errors.MaxRetries)
	r.duration("ERRORS_RETRY_DELAY", &cfg.Errors.RetryDelay)
	r.duration("ERRORS_MAX_RETRY_DELAY", &cfg.Errors.MaxRetryDelay)
	r.boolean("ERRORS_CONTINUE_ON_ERROR", &cfg.Errors.ContinueOnError)

	// Limits overrides
	r.duration("LIMITS_MAX_JOB_DURATION", &cfg.Limits.MaxJobDuration)
	r.integer("LIMITS_MAX_MEMORY_MB", &cfg.Limits.MaxMemoryMB)

	// Per-category overrides: LETHE_CATEGORY_<NAME>_<FIELD>
	for _, category := range retention.AllCategories() {
		prefix := "CATEGORY_" + strings.ToUpper(string(category)) + "_"
		cc := cfg.Categories[string(category)]
		before := len(r.errs)
		set := false

		if _, ok := r.get(prefix + "RETENTION_DAYS"); ok {
			v := 0
			r.integer(prefix+"RETENTION_DAYS", &v)
			cc.RetentionDays = &v
			set = true
		}
		if _, ok := r.get(prefix + "NOTIFICATION_DAYS"); ok {
			v := 0
			r.integer(prefix+"NOTIFICATION_DAYS", &v)
			cc.NotificationDays = &v
			set = true
		}
		if _, ok := r.get(prefix + "NOTIFY_BEFORE_DELETION"); ok {
			v := false
			r.boolean(prefix+"NOTIFY_BEFORE_DELETION", &v)
			cc.NotifyBeforeDeletion = &v
			set = true
		}
		if set && len(r.errs) == before {
			if cfg.Categories == nil {
				cfg.Categories = map[string]CategoryConfig{}
			}
			cfg.Categories[string(category)] = cc
		}
	}

	// Storage overrides
	r.str("STORAGE_DRIVER", &cfg.Storage.Driver)
	r.boolean("STORAGE_AUTO_MIGRATE", &cfg.Storage.AutoMigrate)
	r.str("STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	r.str("STORAGE_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	r.str("STORAGE_POSTGRES_HOST", &cfg.Storage.Postgres.Host)
	r.integer("STORAGE_POSTGRES_PORT", &cfg.Storage.Postgres.Port)
	r.str("STORAGE_POSTGRES_DATABASE", &cfg.Storage.Postgres.Database)
	r.str("STORAGE_POSTGRES_USER", &cfg.Storage.Postgres.User)
	r.str("STORAGE_POSTGRES_PASSWORD", &cfg.Storage.Postgres.Password)
	r.str("STORAGE_POSTGRES_SSL_MODE", &cfg.Storage.Postgres.SSLMode)

	// Schedule overrides
	r.str("SCHEDULE_DAILY_CHECK", &cfg.Schedule.DailyCheck)
	r.str("SCHEDULE_NOTIFICATION_CHECK", &cfg.Schedule.NotificationCheck)
	r.str("SCHEDULE_WEEKLY_CLEANUP", &cfg.Schedule.WeeklyCleanup)

	// Notification overrides
	r.str("NOTIFICATIONS_SINK", &cfg.Notifications.Sink)

	// Server overrides
	r.str("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)

	// Telemetry overrides
	r.str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	r.str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	r.boolean("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)

	return r.errs
}

// ConnString returns the connection string of cfg, building it from the
// individual fields when DSN is not set.
func (c PostgresConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode)
}
