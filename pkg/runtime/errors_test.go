package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		pgCode   string
		wantCode string
		sentinel error
	}{
		{"unique", "23505", CodeUniqueViolation, ErrDuplicateKey},
		{"foreign key", "23503", CodeForeignKeyViolation, ErrForeignKeyViolation},
		{"not null", "23502", CodeNullViolation, ErrNullViolation},
		{"check", "23514", CodeCheckViolation, ErrCheckViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pgErr := &pgconn.PgError{
				Code:           tt.pgCode,
				Message:        "violation",
				TableName:      "artists",
				ConstraintName: "artists_slug_key",
				ColumnName:     "slug",
			}
			err := Classify("INSERT ...", fmt.Errorf("exec: %w", pgErr))

			var known *KnownRequestError
			require.ErrorAs(t, err, &known)
			assert.Equal(t, tt.wantCode, known.Code)
			assert.Equal(t, "artists", known.Meta["table"])
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.wantCode, ErrorCode(err))

			var unwrapped *pgconn.PgError
			assert.ErrorAs(t, err, &unwrapped, "driver error stays reachable")
		})
	}

	t.Run("unique target", func(t *testing.T) {
		err := Classify("", &pgconn.PgError{Code: "23505", ConstraintName: "artists_slug_key"})
		var known *KnownRequestError
		require.ErrorAs(t, err, &known)
		assert.Equal(t, "artists_slug_key", known.Meta["target"])
		assert.True(t, IsUniqueViolation(err))
		assert.NotErrorIs(t, err, ErrForeignKeyViolation)
	})

	t.Run("unknown pg code", func(t *testing.T) {
		err := Classify("SELECT", &pgconn.PgError{Code: "42601"})
		var unknown *UnknownRequestError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "SELECT", unknown.Query)
		assert.Empty(t, ErrorCode(err))
	})

	t.Run("pass through", func(t *testing.T) {
		assert.NoError(t, Classify("", nil))
		assert.Same(t, context.Canceled, Classify("", context.Canceled))
		assert.ErrorIs(t, Classify("", pgx.ErrNoRows), pgx.ErrNoRows)

		v := Invalid("name", "unknown field")
		assert.Same(t, v, Classify("", v))
	})

	t.Run("closed transaction", func(t *testing.T) {
		err := Classify("", pgx.ErrTxClosed)
		var txErr *TransactionError
		require.ErrorAs(t, err, &txErr)
		assert.ErrorIs(t, err, ErrTransactionClosed)
	})
}

func TestNotFoundError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &NotFoundError{Model: "Artist", Operation: "findUniqueOrThrow"})
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, CodeNotFound, ErrorCode(err))
	assert.Contains(t, err.Error(), "Artist.findUniqueOrThrow")
	assert.False(t, IsNotFound(errors.New("other")))
}

func TestValidationError(t *testing.T) {
	err := Invalid("where.nme", "unknown field %q on %s", "nme", "Artist")
	assert.True(t, IsValidation(err))
	assert.Equal(t, `validation error on field where.nme: unknown field "nme" on Artist`, err.Error())
	assert.Equal(t, "validation error: bad", (&ValidationError{Message: "bad"}).Error())
}
