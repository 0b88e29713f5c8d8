package storage

import (
	"context"
	"fmt"
	"time"

	"mercator-hq/lethe/pkg/retention"
	"mercator-hq/lethe/pkg/retention/catalog"
)

// Backend is the full persistence surface of the engine: the core store
// contract plus stats, housekeeping, job history and the notice outbox.
type Backend interface {
	retention.Store
	retention.StatsReader
	retention.AuxiliaryStore
	retention.JobRunStore
	retention.NoticeOutbox
}

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and tunes a storage backend.
type Config struct {
	// Driver is "memory", "sqlite" or "postgres".
	Driver string

	// Path is the SQLite database file.
	Path string

	// DSN is the PostgreSQL connection string.
	DSN string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// ConnMaxLifetime bounds how long a connection is reused.
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long SQLite waits on a locked database.
	BusyTimeout time.Duration

	// WALMode enables SQLite write-ahead logging.
	WALMode bool

	// AutoMigrate creates missing tables and indexes on open.
	AutoMigrate bool

	// ReadOnly opens an existing database without schema changes. SQLite
	// connections additionally run with query_only, and a missing file is
	// an error instead of being created.
	ReadOnly bool
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() Config {
	return Config{
		Driver:       DriverMemory,
		Path:         "data/lethe.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		BusyTimeout:  5 * time.Second,
		WALMode:      true,
		AutoMigrate:  true,
	}
}

// Open returns the backend selected by cfg. SQL backends create the tables
// of targets when AutoMigrate is set.
func Open(ctx context.Context, cfg Config, targets []catalog.Target) (Backend, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(ctx, cfg, targets)
	case DriverPostgres:
		return NewPostgresStore(ctx, cfg, targets)
	default:
		return nil, retention.NewConfigurationError("storage.driver",
			fmt.Errorf("unsupported driver %q (valid: memory, sqlite, postgres)", cfg.Driver))
	}
}
