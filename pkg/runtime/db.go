package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the execution surface shared by the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner starts transactions.
type Beginner interface {
	Begin(ctx context.Context, opts pgx.TxOptions) (*Tx, error)
}

// Pool is the part of *pgxpool.Pool a DB drives.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// DB represents a database connection pool.
type DB struct {
	pool    Pool
	config  *Config
	breaker *Breaker
}

// Config represents database configuration.
type Config struct {
	// URL takes precedence over the discrete fields when set.
	URL      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32

	ConnectTimeout time.Duration
	Breaker        BreakerConfig
}

// NewDB creates a new DB instance from a connection pool.
func NewDB(pool Pool) *DB {
	return &DB{
		pool:   pool,
		config: &Config{},
	}
}

// Connect creates a new DB instance by connecting to PostgreSQL.
func Connect(ctx context.Context, config *Config) (*DB, error) {
	connString := config.URL
	if connString == "" {
		connString = buildConnectionString(config)
	}

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, &InitializationError{Err: fmt.Errorf("failed to parse config: %w", err)}
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = config.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, &InitializationError{Err: fmt.Errorf("failed to create connection pool: %w", err)}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &InitializationError{Err: fmt.Errorf("failed to ping database: %w", err)}
	}

	db := &DB{pool: pool, config: config}
	if config.Breaker.Enabled {
		db.breaker = NewBreaker(config.Breaker)
	}
	return db, nil
}

// ConnectWithURL creates a new DB instance using a connection URL.
func ConnectWithURL(ctx context.Context, url string) (*DB, error) {
	return Connect(ctx, &Config{URL: url})
}

// Pool returns the underlying pool.
func (db *DB) Pool() Pool {
	return db.pool
}

// Breaker returns the circuit breaker guarding the pool, or nil.
func (db *DB) Breaker() *Breaker {
	return db.breaker
}

// Close closes the database connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Begin starts a new transaction with options.
func (db *DB) Begin(ctx context.Context, opts pgx.TxOptions) (*Tx, error) {
	var tx pgx.Tx
	err := db.breaker.Do(func() error {
		var err error
		tx, err = db.pool.BeginTx(ctx, opts)
		return err
	})
	if err != nil {
		return nil, Classify("BEGIN", err)
	}
	return &Tx{tx: tx}, nil
}

// Exec executes a query without returning any rows.
func (db *DB) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	var affected int64
	err := db.breaker.Do(func() error {
		result, err := db.pool.Exec(ctx, sql, args...)
		affected = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, Classify(sql, err)
	}
	return affected, nil
}

// Query executes a query that returns rows.
func (db *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	var rows pgx.Rows
	err := db.breaker.Do(func() error {
		var err error
		rows, err = db.pool.Query(ctx, sql, args...)
		return err
	})
	if err != nil {
		return nil, Classify(sql, err)
	}
	return &classifiedRows{Rows: rows, sql: sql}, nil
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if err := db.breaker.Allow(); err != nil {
		return errRow{err: err}
	}
	return classifiedRow{row: db.pool.QueryRow(ctx, sql, args...), sql: sql}
}

// Tx is an open transaction. It is not safe for concurrent use.
type Tx struct {
	tx pgx.Tx
}

// NewTx wraps an existing pgx transaction.
func NewTx(tx pgx.Tx) *Tx {
	return &Tx{tx: tx}
}

// Exec executes a query without returning any rows.
func (t *Tx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	result, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, Classify(sql, err)
	}
	return result.RowsAffected(), nil
}

// Query executes a query that returns rows.
func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, Classify(sql, err)
	}
	return &classifiedRows{Rows: rows, sql: sql}, nil
}

// QueryRow executes a query that returns at most one row.
func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return classifiedRow{row: t.tx.QueryRow(ctx, sql, args...), sql: sql}
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return Classify("COMMIT", err)
	}
	return nil
}

// Rollback rolls the transaction back. Rolling back a closed transaction is
// not an error.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return Classify("ROLLBACK", err)
	}
	return nil
}

type classifiedRows struct {
	pgx.Rows
	sql string
}

func (r *classifiedRows) Err() error {
	return Classify(r.sql, r.Rows.Err())
}

func (r *classifiedRows) Scan(dest ...any) error {
	return Classify(r.sql, r.Rows.Scan(dest...))
}

type classifiedRow struct {
	row pgx.Row
	sql string
}

func (r classifiedRow) Scan(dest ...any) error {
	return Classify(r.sql, r.row.Scan(dest...))
}

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error {
	return r.err
}

// buildConnectionString builds a PostgreSQL connection string from config.
func buildConnectionString(config *Config) string {
	sslMode := config.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	port := config.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host,
		port,
		config.User,
		config.Password,
		config.Database,
		sslMode,
	)
}

// DefaultConfig returns a default database configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           5432,
		Database:       "setlist",
		User:           "postgres",
		SSLMode:        "prefer",
		MaxConns:       10,
		MinConns:       2,
		ConnectTimeout: 5 * time.Second,
		Breaker:        DefaultBreakerConfig(),
	}
}
