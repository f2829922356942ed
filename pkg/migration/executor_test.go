package migration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/setlistdb/pkg/runtime"
)

const (
	initSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version VARCHAR(14) PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	applied_at TIMESTAMPTZ,
	error TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	recordsSQL   = "SELECT version, name, status, applied_at, error FROM schema_migrations ORDER BY version ASC"
	lockSQL      = "SELECT pg_advisory_xact_lock($1)"
	isAppliedSQL = "SELECT COUNT(*) FROM schema_migrations WHERE version = $1 AND status = 'applied'"
	appliedSQL   = `INSERT INTO schema_migrations (version, name, status, applied_at) VALUES ($1, $2, 'applied', now())
ON CONFLICT (version) DO UPDATE SET status = 'applied', applied_at = now(), error = NULL`
	failedSQL = `INSERT INTO schema_migrations (version, name, status, error) VALUES ($1, $2, 'failed', $3)
ON CONFLICT (version) DO UPDATE SET status = 'failed', error = EXCLUDED.error`
)

var recordColumns = []string{"version", "name", "status", "applied_at", "error"}

func newMockExecutor(t *testing.T) (*Executor, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewExecutor(runtime.NewDB(mock)), mock
}

func testMigrations() []Migration {
	return []Migration{
		{
			Version: "20250101000000",
			Name:    "create_artists",
			UpSQL:   "-- Migration: create_artists\nCREATE TABLE artists (id uuid PRIMARY KEY);\nCREATE INDEX idx_artists_id ON artists (id);",
			DownSQL: "DROP TABLE artists;",
		},
		{
			Version: "20250102000000",
			Name:    "create_shows",
			UpSQL:   "CREATE TABLE shows (id uuid PRIMARY KEY, status text DEFAULT 'a;b');",
			DownSQL: "DROP TABLE shows;",
		},
	}
}

func appliedRow(version, name string) []any {
	at := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	return []any{version, name, "applied", &at, (*string)(nil)}
}

func expectLocked(mock pgxmock.PgxPoolIface, version string, applied int64) {
	mock.ExpectBegin()
	mock.ExpectExec(lockSQL).WithArgs(DefaultLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(isAppliedSQL).WithArgs(version).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(applied))
}

func TestExecutor_Up(t *testing.T) {
	exec, mock := newMockExecutor(t)
	ctx := context.Background()
	migrations := testMigrations()

	mock.ExpectExec(initSQL).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(recordsSQL).WillReturnRows(pgxmock.NewRows(recordColumns))

	expectLocked(mock, "20250101000000", 0)
	mock.ExpectExec("CREATE TABLE artists (id uuid PRIMARY KEY)").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("CREATE INDEX idx_artists_id ON artists (id)").WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))
	mock.ExpectExec(appliedSQL).WithArgs("20250101000000", "create_artists").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	// Another runner got here first.
	expectLocked(mock, "20250102000000", 1)
	mock.ExpectCommit()

	versions, err := exec.Up(ctx, migrations, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"20250101000000"}, versions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_UpSkipsApplied(t *testing.T) {
	exec, mock := newMockExecutor(t)
	ctx := context.Background()

	mock.ExpectExec(initSQL).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(recordsSQL).WillReturnRows(pgxmock.NewRows(recordColumns).
		AddRow(appliedRow("20250101000000", "create_artists")...).
		AddRow(appliedRow("20250102000000", "create_shows")...))

	versions, err := exec.Up(ctx, testMigrations(), false)
	require.NoError(t, err)
	assert.Empty(t, versions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_UpDryRun(t *testing.T) {
	exec, mock := newMockExecutor(t)

	mock.ExpectExec(initSQL).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(recordsSQL).WillReturnRows(pgxmock.NewRows(recordColumns).
		AddRow(appliedRow("20250101000000", "create_artists")...))

	versions, err := exec.Up(context.Background(), testMigrations(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"20250102000000"}, versions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_ApplyFailure(t *testing.T) {
	exec, mock := newMockExecutor(t)
	m := testMigrations()[1]

	expectLocked(mock, m.Version, 0)
	mock.ExpectExec("CREATE TABLE shows (id uuid PRIMARY KEY, status text DEFAULT 'a;b')").
		WillReturnError(&pgconn.PgError{Code: "42P07", Message: `relation "shows" already exists`})
	mock.ExpectRollback()
	mock.ExpectExec(failedSQL).WithArgs(m.Version, m.Name, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	applied, err := exec.Apply(context.Background(), m)
	require.Error(t, err)
	assert.False(t, applied)

	var migErr *runtime.MigrationError
	require.True(t, errors.As(err, &migErr))
	assert.Equal(t, m.Version, migErr.Version)
	assert.Equal(t, "statement 1 failed", migErr.Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_Down(t *testing.T) {
	exec, mock := newMockExecutor(t)
	ctx := context.Background()

	mock.ExpectExec(initSQL).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(recordsSQL).WillReturnRows(pgxmock.NewRows(recordColumns).
		AddRow(appliedRow("20250101000000", "create_artists")...).
		AddRow(appliedRow("20250102000000", "create_shows")...))

	expectLocked(mock, "20250102000000", 1)
	mock.ExpectExec("DROP TABLE shows").WillReturnResult(pgxmock.NewResult("DROP TABLE", 0))
	mock.ExpectExec("DELETE FROM schema_migrations WHERE version = $1").WithArgs("20250102000000").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	versions, err := exec.Down(ctx, testMigrations(), 1, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"20250102000000"}, versions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_DownMissingFile(t *testing.T) {
	exec, mock := newMockExecutor(t)

	mock.ExpectExec(initSQL).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(recordsSQL).WillReturnRows(pgxmock.NewRows(recordColumns).
		AddRow(appliedRow("20240101000000", "lost")...))

	_, err := exec.Down(context.Background(), testMigrations(), 1, false)
	assert.ErrorIs(t, err, runtime.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_Status(t *testing.T) {
	exec, mock := newMockExecutor(t)

	mock.ExpectExec(initSQL).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(recordsSQL).WillReturnRows(pgxmock.NewRows(recordColumns).
		AddRow(appliedRow("20240101000000", "lost")...).
		AddRow(appliedRow("20250101000000", "create_artists")...))

	status, err := exec.Status(context.Background(), testMigrations())
	require.EqualError(t, err, "missing migration files: 20240101000000")
	require.Len(t, status, 2)
	assert.Equal(t, StatusApplied, status[0].Status)
	assert.Equal(t, StatusPending, status[1].Status)
	assert.Equal(t, "create_shows", status[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSplitSQL(t *testing.T) {
	sql := `-- Migration: add_votes
CREATE TABLE votes (id uuid, note text DEFAULT 'a;b');
-- trailing comment; with semicolon
CREATE INDEX "idx;odd" ON votes (id);

`
	assert.Equal(t, []string{
		"CREATE TABLE votes (id uuid, note text DEFAULT 'a;b')",
		`CREATE INDEX "idx;odd" ON votes (id)`,
	}, splitSQL(sql))
	assert.Empty(t, splitSQL("-- Write your UP migration here\n"))
}
