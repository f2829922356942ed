package migration

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"

	"github.com/marshallshelly/setlistdb/pkg/runtime"
)

const trackingTable = "schema_migrations"

// DefaultLockID is the advisory lock key taken by every migration
// transaction.
const DefaultLockID int64 = 7_305_112_947

// Conn is what the executor needs from a database handle.
type Conn interface {
	runtime.Querier
	runtime.Beginner
}

// Executor applies migrations and records them in schema_migrations. Each
// migration runs in its own transaction holding a transaction-scoped
// advisory lock, so concurrent runners apply every migration once.
type Executor struct {
	conn   Conn
	lockID int64
	logger *log.Logger
}

// NewExecutor creates an executor over conn.
func NewExecutor(conn Conn) *Executor {
	return &Executor{
		conn:   conn,
		lockID: DefaultLockID,
		logger: log.New(io.Discard),
	}
}

// WithLockID sets the advisory lock key.
func (e *Executor) WithLockID(lockID int64) *Executor {
	e.lockID = lockID
	return e
}

// WithLogger sets the logger.
func (e *Executor) WithLogger(logger *log.Logger) *Executor {
	e.logger = logger
	return e
}

// Initialize creates the tracking table if it doesn't exist.
func (e *Executor) Initialize(ctx context.Context) error {
	_, err := e.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
	version VARCHAR(14) PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	applied_at TIMESTAMPTZ,
	error TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// Records returns every row of the tracking table in version order.
func (e *Executor) Records(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := e.conn.Query(ctx,
		"SELECT version, name, status, applied_at, error FROM schema_migrations ORDER BY version ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var record MigrationRecord
		var status string
		if err := rows.Scan(&record.Version, &record.Name, &status, &record.AppliedAt, &record.Error); err != nil {
			return nil, fmt.Errorf("failed to scan migration record: %w", err)
		}
		record.Status = MigrationStatus(status)
		records = append(records, record)
	}
	return records, rows.Err()
}

// Pending returns the migrations not yet applied, in order.
func (e *Executor) Pending(ctx context.Context, migrations []Migration) ([]Migration, error) {
	records, err := e.Records(ctx)
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(records))
	for _, r := range records {
		applied[r.Version] = r.Status == StatusApplied
	}
	var pending []Migration
	for _, m := range migrations {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Up applies every pending migration in order and returns the versions it
// applied. With dryRun it only reports them.
func (e *Executor) Up(ctx context.Context, migrations []Migration, dryRun bool) ([]string, error) {
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}
	pending, err := e.Pending(ctx, migrations)
	if err != nil {
		return nil, err
	}

	var versions []string
	for _, m := range pending {
		if !dryRun {
			applied, err := e.Apply(ctx, m)
			if err != nil {
				return versions, err
			}
			if !applied {
				continue
			}
		}
		versions = append(versions, m.Version)
	}
	return versions, nil
}

// Apply runs one migration. It reports false when another runner applied
// it first.
func (e *Executor) Apply(ctx context.Context, m Migration) (bool, error) {
	var applied bool
	err := e.locked(ctx, func(tx *runtime.Tx) error {
		done, err := isApplied(ctx, tx, m.Version)
		if err != nil || done {
			return err
		}
		for i, stmt := range splitSQL(m.UpSQL) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return &runtime.MigrationError{
					Version: m.Version,
					Message: fmt.Sprintf("statement %d failed", i+1),
					Err:     err,
				}
			}
		}
		_, err = tx.Exec(ctx, `INSERT INTO schema_migrations (version, name, status, applied_at) VALUES ($1, $2, 'applied', now())
ON CONFLICT (version) DO UPDATE SET status = 'applied', applied_at = now(), error = NULL`, m.Version, m.Name)
		if err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		e.recordFailure(ctx, m, err)
		return false, err
	}
	if applied {
		e.logger.Info("applied migration", "version", m.Version, "name", m.Name)
	}
	return applied, nil
}

// recordFailure marks m failed outside the rolled-back transaction.
func (e *Executor) recordFailure(ctx context.Context, m Migration, cause error) {
	_, err := e.conn.Exec(ctx, `INSERT INTO schema_migrations (version, name, status, error) VALUES ($1, $2, 'failed', $3)
ON CONFLICT (version) DO UPDATE SET status = 'failed', error = EXCLUDED.error`, m.Version, m.Name, cause.Error())
	if err != nil {
		e.logger.Warn("failed to record migration failure", "version", m.Version, "err", err)
	}
}

// Down rolls back the last steps applied migrations, newest first, and
// returns the versions it rolled back.
func (e *Executor) Down(ctx context.Context, migrations []Migration, steps int, dryRun bool) ([]string, error) {
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}
	records, err := e.Records(ctx)
	if err != nil {
		return nil, err
	}
	byVersion := make(map[string]Migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}

	var versions []string
	for i := len(records) - 1; i >= 0 && len(versions) < steps; i-- {
		r := records[i]
		if r.Status != StatusApplied {
			continue
		}
		m, ok := byVersion[r.Version]
		if !ok {
			return versions, &runtime.MigrationError{Version: r.Version, Message: "migration file not found", Err: runtime.ErrNotFound}
		}
		if !dryRun {
			if err := e.Rollback(ctx, m); err != nil {
				return versions, err
			}
		}
		versions = append(versions, m.Version)
	}
	return versions, nil
}

// Rollback runs one migration's down SQL and removes its record.
func (e *Executor) Rollback(ctx context.Context, m Migration) error {
	err := e.locked(ctx, func(tx *runtime.Tx) error {
		done, err := isApplied(ctx, tx, m.Version)
		if err != nil {
			return err
		}
		if !done {
			return &runtime.MigrationError{Version: m.Version, Message: "migration is not applied", Err: runtime.ErrNotFound}
		}
		for i, stmt := range splitSQL(m.DownSQL) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return &runtime.MigrationError{
					Version: m.Version,
					Message: fmt.Sprintf("rollback statement %d failed", i+1),
					Err:     err,
				}
			}
		}
		if _, err := tx.Exec(ctx, "DELETE FROM schema_migrations WHERE version = $1", m.Version); err != nil {
			return fmt.Errorf("failed to delete migration record: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("rolled back migration", "version", m.Version, "name", m.Name)
	return nil
}

// Status merges the tracking table with the migration files. Versions
// recorded in the database without a file are reported as an error.
func (e *Executor) Status(ctx context.Context, migrations []Migration) ([]MigrationRecord, error) {
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}
	records, err := e.Records(ctx)
	if err != nil {
		return nil, err
	}
	byVersion := make(map[string]MigrationRecord, len(records))
	for _, r := range records {
		byVersion[r.Version] = r
	}

	known := make(map[string]bool, len(migrations))
	status := make([]MigrationRecord, 0, len(migrations))
	for _, m := range migrations {
		known[m.Version] = true
		if r, ok := byVersion[m.Version]; ok {
			status = append(status, r)
			continue
		}
		status = append(status, MigrationRecord{Version: m.Version, Name: m.Name, Status: StatusPending})
	}

	var missing []string
	for _, r := range records {
		if !known[r.Version] {
			missing = append(missing, r.Version)
		}
	}
	if len(missing) > 0 {
		return status, fmt.Errorf("missing migration files: %s", strings.Join(missing, ", "))
	}
	return status, nil
}

// locked runs fn in a transaction holding the advisory lock.
func (e *Executor) locked(ctx context.Context, fn func(tx *runtime.Tx) error) error {
	tx, err := e.conn.Begin(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", e.lockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

func isApplied(ctx context.Context, q runtime.Querier, version string) (bool, error) {
	var count int64
	err := q.QueryRow(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE version = $1 AND status = 'applied'", version).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return count > 0, nil
}

// splitSQL splits a script into statements on semicolons outside quotes,
// dropping comments and empty statements.
func splitSQL(sql string) []string {
	var (
		stmts []string
		cur   strings.Builder
		quote rune
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			cur.WriteRune(r)
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			cur.WriteRune('\n')
		case r == ';':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return stmts
}
