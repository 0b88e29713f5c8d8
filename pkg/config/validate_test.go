package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate_Default(t *testing.T) {
	cfg := Default()
	if err := Validate(&cfg); err != nil {
		t.Errorf("Validate(Default()) = %v", err)
	}
}

func TestValidate(t *testing.T) {
	neg := -5

	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
	}{
		{
			name:      "zero batch size",
			modify:    func(c *Config) { c.Engine.BatchSize = 0 },
			wantField: "engine.batch_size",
		},
		{
			name:      "negative max records",
			modify:    func(c *Config) { c.Engine.MaxRecords = -1 },
			wantField: "engine.max_records",
		},
		{
			name:      "zero concurrency",
			modify:    func(c *Config) { c.Engine.Concurrency = 0 },
			wantField: "engine.concurrency",
		},
		{
			name:      "blank actor",
			modify:    func(c *Config) { c.Engine.ActorID = "  " },
			wantField: "engine.actor_id",
		},
		{
			name:      "negative retries",
			modify:    func(c *Config) { c.Errors.MaxRetries = -1 },
			wantField: "errors.max_retries",
		},
		{
			name: "max delay below delay",
			modify: func(c *Config) {
				c.Errors.RetryDelay = time.Minute
				c.Errors.MaxRetryDelay = time.Second
			},
			wantField: "errors.max_retry_delay",
		},
		{
			name:      "negative job budget",
			modify:    func(c *Config) { c.Limits.MaxJobDuration = -time.Second },
			wantField: "limits.max_job_duration",
		},
		{
			name:      "negative memory budget",
			modify:    func(c *Config) { c.Limits.MaxMemoryMB = -1 },
			wantField: "limits.max_memory_mb",
		},
		{
			name:      "unknown category",
			modify:    func(c *Config) { c.Categories["passport_scan"] = CategoryConfig{} },
			wantField: "categories.passport_scan",
		},
		{
			name:      "negative retention override",
			modify:    func(c *Config) { c.Categories["cv_document"] = CategoryConfig{RetentionDays: &neg} },
			wantField: "categories.cv_document.retention_days",
		},
		{
			name:      "unknown driver",
			modify:    func(c *Config) { c.Storage.Driver = "mongodb" },
			wantField: "storage.driver",
		},
		{
			name: "sqlite without path",
			modify: func(c *Config) {
				c.Storage.Driver = "sqlite"
				c.Storage.SQLite.Path = ""
			},
			wantField: "storage.sqlite.path",
		},
		{
			name:      "postgres without host",
			modify:    func(c *Config) { c.Storage.Driver = "postgres"; c.Storage.Postgres.Database = "app" },
			wantField: "storage.postgres.host",
		},
		{
			name:      "invalid cron",
			modify:    func(c *Config) { c.Schedule.WeeklyCleanup = "sundays" },
			wantField: "schedule.weekly_cleanup",
		},
		{
			name:      "negative grace",
			modify:    func(c *Config) { c.Housekeeping.SessionGrace = -time.Hour },
			wantField: "housekeeping.session_grace",
		},
		{
			name:      "unknown sink",
			modify:    func(c *Config) { c.Notifications.Sink = "smtp" },
			wantField: "notifications.sink",
		},
		{
			name:      "listen address without port",
			modify:    func(c *Config) { c.Server.ListenAddress = "localhost" },
			wantField: "server.listen_address",
		},
		{
			name:      "invalid log level",
			modify:    func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			wantField: "telemetry.logging.level",
		},
		{
			name:      "relative metrics path",
			modify:    func(c *Config) { c.Telemetry.Metrics.Path = "metrics" },
			wantField: "telemetry.metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)

			err := Validate(&cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not include field %q", verr.Errors, tt.wantField)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Engine.BatchSize = 0
	cfg.Storage.Driver = "mongodb"
	cfg.Notifications.Sink = "smtp"

	err := Validate(&cfg)
	var verr ValidationError
	if !errors.As(err, &verr) || len(verr.Errors) != 3 {
		t.Fatalf("Validate() = %v, want 3 errors", err)
	}
	if !strings.Contains(err.Error(), "with 3 errors") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestValidate_DisabledScheduleIsValid(t *testing.T) {
	cfg := Default()
	cfg.Schedule = ScheduleConfig{}
	if err := Validate(&cfg); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}
