// Package orm executes the query-argument shapes of package query against
// PostgreSQL. A Delegate[T] exposes the operation family for one model; a
// DB ties delegates to a pool or to an open transaction.
package orm

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/marshallshelly/setlistdb/pkg/metrics"
	"github.com/marshallshelly/setlistdb/pkg/registry"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
)

// DB runs operations against a pool or a transaction. A pool-backed DB is
// safe for concurrent use; a transaction-scoped DB is not.
type DB struct {
	q        runtime.Querier
	beginner runtime.Beginner // nil inside a transaction
	reg      *registry.Registry
	logger   *log.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	txOpts   TxOptions
}

// Option configures a DB.
type Option func(*DB)

// WithRegistry sets the model registry. The global registry is used
// otherwise.
func WithRegistry(reg *registry.Registry) Option {
	return func(db *DB) { db.reg = reg }
}

// WithLogger sets the logger. Operations are logged at debug level.
func WithLogger(logger *log.Logger) Option {
	return func(db *DB) { db.logger = logger }
}

// WithMetrics sets the Prometheus collectors updated by every operation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(db *DB) { db.metrics = m }
}

// WithClock sets the clock used for updatedAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

// WithTxDefaults sets the default transaction options.
func WithTxDefaults(opts ...TxOption) Option {
	return func(db *DB) {
		for _, o := range opts {
			o(&db.txOpts)
		}
	}
}

// New creates a DB over a connected runtime.DB.
func New(conn *runtime.DB, opts ...Option) *DB {
	db := &DB{
		q:        conn,
		beginner: conn,
		reg:      registry.Global(),
		logger:   log.New(io.Discard),
		now:      time.Now,
		txOpts:   DefaultTxOptions(),
	}
	for _, o := range opts {
		o(db)
	}
	return db
}

// scoped returns a copy of db bound to q. The copy cannot begin
// transactions.
func (db *DB) scoped(q runtime.Querier) *DB {
	c := *db
	c.q = q
	c.beginner = nil
	c.logger = db.logger.With("tx", true)
	return &c
}

// Registry returns the model registry.
func (db *DB) Registry() *registry.Registry {
	return db.reg
}

// Querier returns the pool or transaction the DB runs on.
func (db *DB) Querier() runtime.Querier {
	return db.q
}

// Logger returns the DB logger.
func (db *DB) Logger() *log.Logger {
	return db.logger
}

// InTransaction reports whether the DB is scoped to a transaction.
func (db *DB) InTransaction() bool {
	return db.beginner == nil
}

// observe logs and records one finished operation.
func (db *DB) observe(model, op string, start time.Time, rows int64, err error) {
	d := time.Since(start)
	outcome := "ok"
	switch {
	case runtime.IsNotFound(err):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	db.metrics.ObserveOperation(model, op, outcome, d, rows)
	if err != nil {
		db.logger.Debug("operation failed", "model", model, "op", op, "duration", d, "err", err)
		return
	}
	db.logger.Debug("operation", "model", model, "op", op, "duration", d, "rows", rows)
}

// inTx runs fn in the current transaction, or in a new one with the
// default options.
func (db *DB) inTx(ctx context.Context, fn func(ctx context.Context, tx *DB) error) error {
	if db.InTransaction() {
		return fn(ctx, db)
	}
	return db.Transaction(ctx, fn)
}
