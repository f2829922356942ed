package orm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/setlistdb/pkg/models"
	"github.com/marshallshelly/setlistdb/pkg/query"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
)

func TestTransaction_Commit(t *testing.T) {
	m := newTestMetrics()
	db, mock := newTestDB(t, WithMetrics(m))
	mock.ExpectBegin()
	mock.ExpectExec(`^DELETE FROM "votes" AS "t0" WHERE "t0"\."show_id" = \$1$`).WithArgs("s1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`^DELETE FROM "vote_analytics" AS "t0" WHERE "t0"\."show_id" = \$1$`).WithArgs("s1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	err := db.Transaction(context.Background(), func(ctx context.Context, tx *DB) error {
		assert.True(t, tx.InTransaction())
		if _, err := MustFor[models.Vote](tx).DeleteMany(ctx, &query.DeleteManyArgs{Where: query.Where{"showId": "s1"}}); err != nil {
			return err
		}
		_, err := MustFor[models.VoteAnalytics](tx).DeleteMany(ctx, &query.DeleteManyArgs{Where: query.Where{"showId": "s1"}})
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.False(t, db.InTransaction())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("commit")))
}

func TestTransaction_RollbackOnError(t *testing.T) {
	m := newTestMetrics()
	db, mock := newTestDB(t, WithMetrics(m))
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := db.Transaction(context.Background(), func(ctx context.Context, tx *DB) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("rollback")))
}

func TestTransaction_RollbackOnPanic(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = db.Transaction(context.Background(), func(ctx context.Context, tx *DB) error {
			panic("boom")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_Nested(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := db.Transaction(context.Background(), func(ctx context.Context, tx *DB) error {
		return tx.Transaction(ctx, func(context.Context, *DB) error { return nil })
	})
	var te *runtime.TransactionError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, runtime.ErrTxStarted)
}

func TestTransaction_Isolation(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectCommit()

	err := db.Transaction(context.Background(), func(context.Context, *DB) error { return nil }, WithIsolation(Serializable))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_Timeout(t *testing.T) {
	m := newTestMetrics()
	db, mock := newTestDB(t, WithMetrics(m))
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := db.Transaction(context.Background(), func(ctx context.Context, tx *DB) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithTimeout(10*time.Millisecond))

	var te *runtime.TransactionError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Message, "timeout")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("timeout")))
}

func TestTransaction_BeginFails(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := db.Transaction(context.Background(), func(context.Context, *DB) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestTransaction_DefaultsApply(t *testing.T) {
	db, mock := newTestDB(t, WithTxDefaults(WithIsolation(RepeatableRead)))
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	mock.ExpectCommit()

	require.NoError(t, db.Transaction(context.Background(), func(context.Context, *DB) error { return nil }))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("results in order", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM \(SELECT "t0"\.\* FROM "users" AS "t0"\) AS "t0"$`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(10)))
		mock.ExpectExec(`^DELETE FROM "sync_history" AS "t0"$`).
			WillReturnResult(pgxmock.NewResult("DELETE", 2))
		mock.ExpectCommit()

		results, err := db.Batch(ctx,
			func(ctx context.Context, tx *DB) (any, error) {
				return MustFor[models.User](tx).Count(ctx, nil)
			},
			func(ctx context.Context, tx *DB) (any, error) {
				return MustFor[models.SyncHistory](tx).DeleteMany(ctx, nil)
			},
		)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(10), int64(2)}, results)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("one failure rolls back every operation", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectExec(`^DELETE FROM "sync_history"`).
			WillReturnResult(pgxmock.NewResult("DELETE", 2))
		mock.ExpectRollback()

		results, err := db.Batch(ctx,
			func(ctx context.Context, tx *DB) (any, error) {
				return MustFor[models.SyncHistory](tx).DeleteMany(ctx, nil)
			},
			func(ctx context.Context, tx *DB) (any, error) {
				return MustFor[models.User](tx).Update(ctx, &query.UpdateArgs{})
			},
		)
		require.Error(t, err)
		assert.Nil(t, results)
		assert.Contains(t, err.Error(), "batch operation 1")
		assert.True(t, runtime.IsValidation(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
