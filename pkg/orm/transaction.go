package orm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marshallshelly/setlistdb/pkg/runtime"
)

// Isolation levels accepted by WithIsolation.
const (
	ReadUncommitted = pgx.ReadUncommitted
	ReadCommitted   = pgx.ReadCommitted
	RepeatableRead  = pgx.RepeatableRead
	Serializable    = pgx.Serializable
)

// TxOptions configure an interactive or batch transaction.
type TxOptions struct {
	// Isolation is the isolation level; empty uses the server default.
	Isolation pgx.TxIsoLevel
	// MaxWait bounds acquiring a connection and beginning.
	MaxWait time.Duration
	// Timeout bounds the whole callback, commit excluded.
	Timeout time.Duration
}

// DefaultTxOptions returns MaxWait 2s and Timeout 5s.
func DefaultTxOptions() TxOptions {
	return TxOptions{MaxWait: 2 * time.Second, Timeout: 5 * time.Second}
}

// TxOption overrides one transaction option.
type TxOption func(*TxOptions)

// WithIsolation sets the isolation level.
func WithIsolation(level pgx.TxIsoLevel) TxOption {
	return func(o *TxOptions) { o.Isolation = level }
}

// WithMaxWait sets how long to wait for the transaction to start.
func WithMaxWait(d time.Duration) TxOption {
	return func(o *TxOptions) { o.MaxWait = d }
}

// WithTimeout sets how long the callback may run.
func WithTimeout(d time.Duration) TxOption {
	return func(o *TxOptions) { o.Timeout = d }
}

// Transaction runs fn in a transaction. fn receives a transaction-scoped DB
// and a context that expires after the timeout. The transaction commits
// when fn returns nil and rolls back otherwise, including on panic.
// Starting a transaction on a transaction-scoped DB fails with
// ErrTxStarted.
func (db *DB) Transaction(ctx context.Context, fn func(ctx context.Context, tx *DB) error, opts ...TxOption) error {
	if db.InTransaction() {
		return &runtime.TransactionError{Message: "nested transactions are not supported", Err: runtime.ErrTxStarted}
	}
	o := db.txOpts
	for _, opt := range opts {
		opt(&o)
	}

	tx, err := db.begin(ctx, o)
	if err != nil {
		return err
	}
	db.logger.Debug("transaction begin", "isolation", o.Isolation)

	runCtx := ctx
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// The callback context may be expired; rollback must still reach
		// the server.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			db.logger.Warn("transaction rollback failed", "err", rbErr)
		}
	}()

	if err := fn(runCtx, db.scoped(tx)); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			db.metrics.ObserveTransaction("timeout")
			return &runtime.TransactionError{Message: fmt.Sprintf("transaction exceeded timeout of %s", o.Timeout), Err: err}
		}
		db.metrics.ObserveTransaction("rollback")
		db.logger.Debug("transaction rollback", "err", err)
		return err
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		db.metrics.ObserveTransaction("timeout")
		return &runtime.TransactionError{Message: fmt.Sprintf("transaction exceeded timeout of %s", o.Timeout), Err: runCtx.Err()}
	}

	if err := tx.Commit(ctx); err != nil {
		db.metrics.ObserveTransaction("rollback")
		return err
	}
	committed = true
	db.metrics.ObserveTransaction("commit")
	db.logger.Debug("transaction commit")
	return nil
}

// begin starts a transaction, giving up after MaxWait.
func (db *DB) begin(ctx context.Context, o TxOptions) (*runtime.Tx, error) {
	beginCtx := ctx
	if o.MaxWait > 0 {
		var cancel context.CancelFunc
		beginCtx, cancel = context.WithTimeout(ctx, o.MaxWait)
		defer cancel()
	}
	tx, err := db.beginner.Begin(beginCtx, pgx.TxOptions{IsoLevel: o.Isolation})
	if err != nil {
		if errors.Is(beginCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &runtime.TransactionError{
				Message: fmt.Sprintf("unable to start a transaction within %s", o.MaxWait),
				Err:     err,
			}
		}
		return nil, err
	}
	return tx, nil
}

// BatchOp is one deferred operation of a batch transaction.
type BatchOp func(ctx context.Context, tx *DB) (any, error)

// Batch runs ops in order in one transaction and returns their results in
// order. Any error rolls back every operation.
func (db *DB) Batch(ctx context.Context, ops ...BatchOp) ([]any, error) {
	results := make([]any, 0, len(ops))
	err := db.Transaction(ctx, func(ctx context.Context, tx *DB) error {
		for i, op := range ops {
			res, err := op(ctx, tx)
			if err != nil {
				return fmt.Errorf("batch operation %d: %w", i, err)
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
