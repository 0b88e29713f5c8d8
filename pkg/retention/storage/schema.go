package storage

import (
	"fmt"
	"strings"

	"mercator-hq/lethe/pkg/retention/catalog"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// auxColumns lists the purgeable timestamp column of every auxiliary table.
var auxColumns = map[string]string{
	catalog.TableUserSessions:        "expires_at",
	catalog.TablePasswordResetTokens: "expires_at",
	catalog.TableJobRuns:             "finished_at",
	catalog.TableNotices:             "enqueued_at",
}

// Timestamps are stored as Unix milliseconds so window predicates compare
// integers in every dialect.
const auxSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS user_sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT,
    expires_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS password_reset_tokens (
    id TEXT PRIMARY KEY,
    user_id TEXT,
    expires_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS retention_job_runs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    started_at BIGINT NOT NULL,
    finished_at BIGINT NOT NULL,
    dry_run INTEGER NOT NULL DEFAULT 0,
    success INTEGER NOT NULL DEFAULT 0,
    processed BIGINT NOT NULL DEFAULT 0,
    successful BIGINT NOT NULL DEFAULT 0,
    failed BIGINT NOT NULL DEFAULT 0,
    error_count INTEGER NOT NULL DEFAULT 0,
    result TEXT
);

CREATE INDEX IF NOT EXISTS idx_retention_job_runs_started ON retention_job_runs(started_at);

CREATE TABLE IF NOT EXISTS retention_notices (
    category TEXT NOT NULL,
    record_id TEXT NOT NULL,
    deletion_date BIGINT NOT NULL,
    enqueued_at BIGINT NOT NULL,
    PRIMARY KEY (category, record_id, deletion_date)
);
`

// targetSchema returns the DDL of one category table.
func targetSchema(t catalog.Target) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE IF NOT EXISTS %s (\n", t.Table)
	sb.WriteString("    id TEXT PRIMARY KEY,\n")
	sb.WriteString("    created_at BIGINT NOT NULL,\n")
	sb.WriteString("    last_accessed_at BIGINT,\n")
	sb.WriteString("    is_deleted INTEGER NOT NULL DEFAULT 0,\n")
	sb.WriteString("    deleted_at BIGINT,\n")
	sb.WriteString("    deleted_by TEXT")
	for _, c := range t.Columns {
		typ := "TEXT"
		if c.Type == catalog.ColumnInteger {
			typ = "BIGINT"
		}
		fmt.Fprintf(&sb, ",\n    %s %s", c.Name, typ)
	}
	sb.WriteString("\n);\n")
	fmt.Fprintf(&sb, "CREATE INDEX IF NOT EXISTS idx_%s_lifecycle ON %s(is_deleted, created_at);\n", t.Table, t.Table)
	return sb.String()
}

// statements splits a DDL script into single statements.
func statements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
