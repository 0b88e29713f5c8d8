package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"

	"mercator-hq/lethe/pkg/retention"
	"mercator-hq/lethe/pkg/retention/catalog"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SQLite primary result codes that indicate lock contention.
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// SQLStore implements Backend on a SQL database through sqlx. It serves
// both SQLite (modernc.org/sqlite) and PostgreSQL (pgx stdlib).
type SQLStore struct {
	db      *sqlx.DB
	backend string
	targets map[string]catalog.Target
	order   []string
	logger  *slog.Logger
}

type recordRow struct {
	ID             string        `db:"id"`
	CreatedAt      int64         `db:"created_at"`
	LastAccessedAt sql.NullInt64 `db:"last_accessed_at"`
}

type jobRunRow struct {
	ID         string         `db:"id"`
	Kind       string         `db:"kind"`
	StartedAt  int64          `db:"started_at"`
	FinishedAt int64          `db:"finished_at"`
	DryRun     int            `db:"dry_run"`
	Success    int            `db:"success"`
	Processed  int64          `db:"processed"`
	Successful int64          `db:"successful"`
	Failed     int64          `db:"failed"`
	ErrorCount int            `db:"error_count"`
	Result     sql.NullString `db:"result"`
}

// NewSQLiteStore opens the SQLite database at cfg.Path.
func NewSQLiteStore(ctx context.Context, cfg Config, targets []catalog.Target) (*SQLStore, error) {
	if cfg.Path == "" {
		return nil, retention.NewConfigurationError("storage.sqlite.path", errors.New("path is required"))
	}
	dsn := cfg.Path
	if cfg.ReadOnly {
		if _, err := os.Stat(cfg.Path); err != nil {
			return nil, retention.NewStoreError(DriverSQLite, "open", "", false,
				fmt.Errorf("read-only open of %s: %w", cfg.Path, err))
		}
		dsn += "?_pragma=query_only(1)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, retention.NewStoreError(DriverSQLite, "open", "", false, err)
	}

	s := newSQLStore(db, DriverSQLite, cfg, targets)
	if cfg.WALMode && !cfg.ReadOnly {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, retention.NewStoreError(DriverSQLite, "enable_wal", "", false, err)
		}
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d;", cfg.BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, retention.NewStoreError(DriverSQLite, "set_busy_timeout", "", false, err)
	}

	if err := s.open(ctx, cfg); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info("SQLite storage initialized",
		"path", cfg.Path,
		"wal_mode", cfg.WALMode,
		"read_only", cfg.ReadOnly,
		"max_open_conns", cfg.MaxOpenConns,
	)
	return s, nil
}

// NewPostgresStore opens the PostgreSQL database at cfg.DSN.
func NewPostgresStore(ctx context.Context, cfg Config, targets []catalog.Target) (*SQLStore, error) {
	if cfg.DSN == "" {
		return nil, retention.NewConfigurationError("storage.postgres.dsn", errors.New("dsn is required"))
	}
	db, err := sqlx.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, retention.NewStoreError(DriverPostgres, "open", "", false, err)
	}

	s := newSQLStore(db, DriverPostgres, cfg, targets)
	if err := s.open(ctx, cfg); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info("PostgreSQL storage initialized",
		"max_open_conns", cfg.MaxOpenConns,
	)
	return s, nil
}

func newSQLStore(db *sqlx.DB, backend string, cfg Config, targets []catalog.Target) *SQLStore {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	byTable := make(map[string]catalog.Target, len(targets))
	order := make([]string, 0, len(targets))
	for _, t := range targets {
		if _, dup := byTable[t.Table]; !dup {
			order = append(order, t.Table)
		}
		byTable[t.Table] = t
	}
	return &SQLStore{
		db:      db,
		backend: backend,
		targets: byTable,
		order:   order,
		logger:  slog.Default().With("component", "retention.storage."+backend),
	}
}

func (s *SQLStore) open(ctx context.Context, cfg Config) error {
	if err := s.Ping(ctx); err != nil {
		return err
	}
	if !cfg.AutoMigrate || cfg.ReadOnly {
		return nil
	}
	return s.migrate(ctx)
}

// migrate creates every table and index that does not exist yet.
func (s *SQLStore) migrate(ctx context.Context) error {
	script := auxSchema
	for _, table := range s.order {
		script += targetSchema(s.targets[table])
	}
	for _, stmt := range statements(script) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return retention.NewStoreError(s.backend, "create_schema", "", false, err)
		}
	}

	insert := s.db.Rebind("INSERT INTO schema_version (version) VALUES (?) ON CONFLICT DO NOTHING")
	if _, err := s.db.ExecContext(ctx, insert, SchemaVersion); err != nil {
		return retention.NewStoreError(s.backend, "insert_schema_version", "", false, err)
	}

	var version int
	if err := s.db.GetContext(ctx, &version, "SELECT MAX(version) FROM schema_version"); err != nil {
		return retention.NewStoreError(s.backend, "get_schema_version", "", false, err)
	}
	if version != SchemaVersion {
		return retention.NewStoreError(s.backend, "schema_version_mismatch", "", false,
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	s.logger.Debug("database schema ready", "version", version, "tables", len(s.targets))
	return nil
}

// Backend implements retention.Store.
func (s *SQLStore) Backend() string { return s.backend }

// Ping implements retention.Store.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return s.storeErr("ping", "", err)
	}
	return nil
}

// Close implements retention.Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) target(op, table string) (catalog.Target, error) {
	t, ok := s.targets[table]
	if !ok {
		return catalog.Target{}, retention.NewStoreError(s.backend, op, table, false, errors.New("unknown table"))
	}
	return t, nil
}

// windowClause renders the reference-date predicate of w.
func windowClause(w retention.Window) (string, []any) {
	clause := "is_deleted = 0 AND COALESCE(last_accessed_at, created_at) <= ?"
	args := []any{w.NotAfter.UnixMilli()}
	if w.After != nil {
		clause += " AND COALESCE(last_accessed_at, created_at) > ?"
		args = append(args, w.After.UnixMilli())
	}
	return clause, args
}

// CountEligible implements retention.Reader.
func (s *SQLStore) CountEligible(ctx context.Context, table string, w retention.Window) (int64, error) {
	if _, err := s.target("count_eligible", table); err != nil {
		return 0, err
	}
	clause, args := windowClause(w)
	query := s.db.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, clause))

	var n int64
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, s.storeErr("count_eligible", table, err)
	}
	return n, nil
}

// ListEligible implements retention.Reader.
func (s *SQLStore) ListEligible(ctx context.Context, table string, w retention.Window, limit int) ([]retention.StoredRecord, error) {
	if _, err := s.target("list_eligible", table); err != nil {
		return nil, err
	}
	clause, args := windowClause(w)
	query := fmt.Sprintf("SELECT id, created_at, last_accessed_at FROM %s WHERE %s ORDER BY id", table, clause)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, s.storeErr("list_eligible", table, err)
	}

	out := make([]retention.StoredRecord, len(rows))
	for i, r := range rows {
		out[i] = retention.StoredRecord{ID: r.ID, CreatedAt: fromMillis(r.CreatedAt)}
		if r.LastAccessedAt.Valid {
			t := fromMillis(r.LastAccessedAt.Int64)
			out[i].LastAccessedAt = &t
		}
	}
	return out, nil
}

// SoftDelete implements retention.Mutator.
func (s *SQLStore) SoftDelete(ctx context.Context, table, id string, stamp retention.DeletionStamp) (retention.MutationOutcome, error) {
	if _, err := s.target("soft_delete", table); err != nil {
		return 0, err
	}
	query := s.db.Rebind(fmt.Sprintf(
		"UPDATE %s SET is_deleted = 1, deleted_at = ?, deleted_by = ? WHERE id = ? AND is_deleted = 0", table))
	return s.mutate(ctx, "soft_delete", table, query, stamp.At.UnixMilli(), stamp.Actor, id)
}

// HardDelete implements retention.Mutator.
func (s *SQLStore) HardDelete(ctx context.Context, table, id string) (retention.MutationOutcome, error) {
	if _, err := s.target("hard_delete", table); err != nil {
		return 0, err
	}
	query := s.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", table))
	return s.mutate(ctx, "hard_delete", table, query, id)
}

// Anonymize implements retention.Mutator. Only columns declared on the
// target can be rewritten.
func (s *SQLStore) Anonymize(ctx context.Context, table, id string, rewrites []retention.FieldRewrite, stamp retention.DeletionStamp) (retention.MutationOutcome, error) {
	t, err := s.target("anonymize", table)
	if err != nil {
		return 0, err
	}

	sets := make([]string, 0, len(rewrites)+3)
	args := make([]any, 0, len(rewrites)+4)
	for _, rw := range rewrites {
		if !t.HasColumn(rw.Field) {
			return 0, retention.NewStoreError(s.backend, "anonymize", table, false,
				fmt.Errorf("unknown column %q", rw.Field))
		}
		sets = append(sets, rw.Field+" = ?")
		if rw.Value == nil {
			args = append(args, nil)
		} else {
			args = append(args, *rw.Value)
		}
	}
	sets = append(sets, "is_deleted = 1", "deleted_at = ?", "deleted_by = ?")
	args = append(args, stamp.At.UnixMilli(), stamp.Actor, id)

	query := s.db.Rebind(fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND is_deleted = 0",
		table, strings.Join(sets, ", ")))
	return s.mutate(ctx, "anonymize", table, query, args...)
}

func (s *SQLStore) mutate(ctx context.Context, op, table, query string, args ...any) (retention.MutationOutcome, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, s.storeErr(op, table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.storeErr(op, table, err)
	}
	if n == 0 {
		return retention.MutationAlreadyDone, nil
	}
	return retention.MutationApplied, nil
}

// TableStats implements retention.StatsReader.
func (s *SQLStore) TableStats(ctx context.Context, table string, now time.Time) (retention.TableStats, error) {
	if _, err := s.target("table_stats", table); err != nil {
		return retention.TableStats{}, err
	}
	var row struct {
		Total       int64         `db:"total"`
		Deleted     sql.NullInt64 `db:"deleted"`
		FutureDated sql.NullInt64 `db:"future_dated"`
	}
	query := s.db.Rebind(fmt.Sprintf(`SELECT COUNT(*) AS total,
	SUM(is_deleted) AS deleted,
	SUM(CASE WHEN is_deleted = 0 AND COALESCE(last_accessed_at, created_at) > ? THEN 1 ELSE 0 END) AS future_dated
FROM %s`, table))
	if err := s.db.GetContext(ctx, &row, query, now.UTC().UnixMilli()); err != nil {
		return retention.TableStats{}, s.storeErr("table_stats", table, err)
	}
	return retention.TableStats{
		Total:       row.Total,
		Deleted:     row.Deleted.Int64,
		FutureDated: row.FutureDated.Int64,
	}, nil
}

func (s *SQLStore) auxTarget(op string, target retention.AuxTarget) error {
	col, ok := auxColumns[target.Table]
	if !ok || col != target.Column {
		return retention.NewStoreError(s.backend, op, target.Table, false,
			fmt.Errorf("unknown auxiliary column %s.%s", target.Table, target.Column))
	}
	return nil
}

// CountExpired implements retention.AuxiliaryStore.
func (s *SQLStore) CountExpired(ctx context.Context, target retention.AuxTarget, cutoff time.Time) (int64, error) {
	if err := s.auxTarget("count_expired", target); err != nil {
		return 0, err
	}
	query := s.db.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s <= ?", target.Table, target.Column))
	var n int64
	if err := s.db.GetContext(ctx, &n, query, cutoff.UnixMilli()); err != nil {
		return 0, s.storeErr("count_expired", target.Table, err)
	}
	return n, nil
}

// PurgeExpired implements retention.AuxiliaryStore.
func (s *SQLStore) PurgeExpired(ctx context.Context, target retention.AuxTarget, cutoff time.Time) (int64, error) {
	if err := s.auxTarget("purge_expired", target); err != nil {
		return 0, err
	}
	query := s.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE %s <= ?", target.Table, target.Column))
	res, err := s.db.ExecContext(ctx, query, cutoff.UnixMilli())
	if err != nil {
		return 0, s.storeErr("purge_expired", target.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.storeErr("purge_expired", target.Table, err)
	}
	return n, nil
}

// RecordJobRun implements retention.JobRunStore.
func (s *SQLStore) RecordJobRun(ctx context.Context, run retention.JobRun) error {
	query := s.db.Rebind(`INSERT INTO retention_job_runs
		(id, kind, started_at, finished_at, dry_run, success, processed, successful, failed, error_count, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	var result sql.NullString
	if len(run.Result) > 0 {
		result = sql.NullString{String: string(run.Result), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		run.ID, string(run.Kind), run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		boolInt(run.DryRun), boolInt(run.Success),
		run.Processed, run.Successful, run.Failed, run.ErrorCount, result,
	)
	if err != nil {
		return s.storeErr("record_job_run", catalog.TableJobRuns, err)
	}
	return nil
}

// ListJobRuns implements retention.JobRunStore. Runs are returned newest first.
func (s *SQLStore) ListJobRuns(ctx context.Context, limit int) ([]retention.JobRun, error) {
	query := "SELECT * FROM retention_job_runs ORDER BY started_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []jobRunRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, s.storeErr("list_job_runs", catalog.TableJobRuns, err)
	}

	out := make([]retention.JobRun, len(rows))
	for i, r := range rows {
		out[i] = retention.JobRun{
			ID:         r.ID,
			Kind:       retention.JobKind(r.Kind),
			StartedAt:  fromMillis(r.StartedAt),
			FinishedAt: fromMillis(r.FinishedAt),
			DryRun:     r.DryRun != 0,
			Success:    r.Success != 0,
			Processed:  r.Processed,
			Successful: r.Successful,
			Failed:     r.Failed,
			ErrorCount: r.ErrorCount,
		}
		if r.Result.Valid {
			out[i].Result = []byte(r.Result.String)
		}
	}
	return out, nil
}

// EnqueueNotice implements retention.NoticeOutbox.
func (s *SQLStore) EnqueueNotice(ctx context.Context, n retention.Notice, at time.Time) (bool, error) {
	query := s.db.Rebind(`INSERT INTO retention_notices (category, record_id, deletion_date, enqueued_at)
		VALUES (?, ?, ?, ?) ON CONFLICT (category, record_id, deletion_date) DO NOTHING`)
	res, err := s.db.ExecContext(ctx, query, string(n.Category), n.RecordID, n.DeletionDate.UnixMilli(), at.UnixMilli())
	if err != nil {
		return false, s.storeErr("enqueue_notice", catalog.TableNotices, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, s.storeErr("enqueue_notice", catalog.TableNotices, err)
	}
	return affected > 0, nil
}

// Insert writes a row into a category table. Fields must be declared
// columns of the table's target.
func (s *SQLStore) Insert(ctx context.Context, table string, row Row) error {
	t, err := s.target("insert", table)
	if err != nil {
		return err
	}

	cols := []string{"id", "created_at", "last_accessed_at", "is_deleted", "deleted_at", "deleted_by"}
	args := []any{row.ID, row.CreatedAt.UnixMilli(), nullMillis(row.LastAccessedAt), boolInt(row.IsDeleted), nullMillis(row.DeletedAt), nullString(row.DeletedBy)}
	for _, c := range t.Columns {
		v, ok := row.Fields[c.Name]
		if !ok {
			continue
		}
		cols = append(cols, c.Name)
		if v == nil {
			args = append(args, nil)
		} else {
			args = append(args, *v)
		}
	}

	query := s.db.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return s.storeErr("insert", table, err)
	}
	return nil
}

// InsertAux writes a row into an auxiliary table.
func (s *SQLStore) InsertAux(ctx context.Context, table, id string, expiresAt time.Time) error {
	if table != catalog.TableUserSessions && table != catalog.TablePasswordResetTokens {
		return retention.NewStoreError(s.backend, "insert_aux", table, false, errors.New("unknown auxiliary table"))
	}
	query := s.db.Rebind(fmt.Sprintf("INSERT INTO %s (id, expires_at) VALUES (?, ?)", table))
	if _, err := s.db.ExecContext(ctx, query, id, expiresAt.UnixMilli()); err != nil {
		return s.storeErr("insert_aux", table, err)
	}
	return nil
}

// Snapshot reads one row of a category table.
func (s *SQLStore) Snapshot(ctx context.Context, table, id string) (Row, bool, error) {
	t, err := s.target("snapshot", table)
	if err != nil {
		return Row{}, false, err
	}

	m := make(map[string]any)
	query := s.db.Rebind(fmt.Sprintf("SELECT * FROM %s WHERE id = ?", table))
	if err := s.db.QueryRowxContext(ctx, query, id).MapScan(m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Row{}, false, nil
		}
		return Row{}, false, s.storeErr("snapshot", table, err)
	}

	row := Row{
		ID:        asString(m["id"]),
		CreatedAt: fromMillis(asInt(m["created_at"])),
		IsDeleted: asInt(m["is_deleted"]) != 0,
		DeletedBy: asString(m["deleted_by"]),
		Fields:    make(map[string]*string, len(t.Columns)),
	}
	if v := m["last_accessed_at"]; v != nil {
		at := fromMillis(asInt(v))
		row.LastAccessedAt = &at
	}
	if v := m["deleted_at"]; v != nil {
		at := fromMillis(asInt(v))
		row.DeletedAt = &at
	}
	for _, c := range t.Columns {
		v := m[c.Name]
		if v == nil {
			row.Fields[c.Name] = nil
			continue
		}
		str := asString(v)
		row.Fields[c.Name] = &str
	}
	return row, true, nil
}

func (s *SQLStore) storeErr(op, table string, err error) error {
	return retention.NewStoreError(s.backend, op, table, isTransient(err), err)
}

// isTransient classifies driver errors that may succeed when retried.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return true
		}
		return false
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "55P03":
			return true
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"):
			return true
		}
	}
	return false
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func asInt(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case []byte:
		var n int64
		fmt.Sscan(string(x), &n)
		return n
	case string:
		var n int64
		fmt.Sscan(x, &n)
		return n
	}
	return 0
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
