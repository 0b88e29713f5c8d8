// Package config provides configuration management for Lethe.
//
// Configuration is loaded once at startup from an optional YAML file with
// environment variable overrides and passed by value into constructors.
// There is no global configuration state.
//
// # Configuration Loading
//
//	cfg, err := config.Load("lethe.yaml")
//
// An empty path skips the file, so the engine runs with defaults and
// environment overrides alone.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention LETHE_SECTION_FIELD:
//
//   - LETHE_ENGINE_DRY_RUN overrides engine.dry_run
//   - LETHE_ERRORS_MAX_RETRIES overrides errors.max_retries
//   - LETHE_STORAGE_DRIVER overrides storage.driver
//   - LETHE_CATEGORY_CV_DOCUMENT_RETENTION_DAYS overrides categories.cv_document.retention_days
//
// A .env file in the working directory is loaded first when present.
// Variables already set in the process environment win over the file.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// Every rule is checked and all failures are reported together:
//
//	configuration validation failed with 2 errors:
//	  - engine.batch_size: must be positive
//	  - categories.passport_scan: unknown data category
//
// # Example Configuration
//
//	engine:
//	  enabled: true
//	  dry_run: false
//	  batch_size: 100
//	  max_records: 1000
//
//	errors:
//	  max_retries: 3
//	  retry_delay: 1s
//	  continue_on_error: true
//
//	categories:
//	  cv_document:
//	    retention_days: 365
//	    notification_days: 14
//
//	storage:
//	  driver: sqlite
//	  sqlite:
//	    path: data/lethe.db
//
//	notifications:
//	  sink: outbox
package config
