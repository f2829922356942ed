// Package runtime provides the connection pool, transaction handle and error
// taxonomy shared by the query layer.
package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when a unique constraint is violated.
	ErrDuplicateKey = errors.New("duplicate key value")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrNullViolation is returned when a required column receives NULL.
	ErrNullViolation = errors.New("null value in required column")

	// ErrCheckViolation is returned when a CHECK constraint fails.
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrTransactionClosed is returned when operating on a closed transaction.
	ErrTransactionClosed = errors.New("transaction already closed")

	// ErrTxStarted is returned when a transaction is started on a
	// transaction-scoped client.
	ErrTxStarted = errors.New("transaction already started")

	// ErrNoConnection is returned when no database connection is available.
	ErrNoConnection = errors.New("no database connection")
)

// Stable error codes surfaced by KnownRequestError and NotFoundError.
const (
	CodeUniqueViolation     = "P2002"
	CodeForeignKeyViolation = "P2003"
	CodeCheckViolation      = "P2004"
	CodeNullViolation       = "P2011"
	CodeNotFound            = "P2025"
)

var pgCodes = map[string]string{
	"23505": CodeUniqueViolation,
	"23503": CodeForeignKeyViolation,
	"23502": CodeNullViolation,
	"23514": CodeCheckViolation,
}

// KnownRequestError is a database error with a stable code.
type KnownRequestError struct {
	Code    string
	Message string
	Meta    map[string]any
	Err     error
}

// Error implements the error interface.
func (e *KnownRequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying driver error.
func (e *KnownRequestError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's code.
func (e *KnownRequestError) Is(target error) bool {
	switch target {
	case ErrDuplicateKey:
		return e.Code == CodeUniqueViolation
	case ErrForeignKeyViolation:
		return e.Code == CodeForeignKeyViolation
	case ErrNullViolation:
		return e.Code == CodeNullViolation
	case ErrCheckViolation:
		return e.Code == CodeCheckViolation
	}
	return false
}

// NotFoundError is returned by OrThrow reads and by writes addressing a row
// that does not exist.
type NotFoundError struct {
	Model     string
	Operation string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s.%s: no record found", CodeNotFound, e.Model, e.Operation)
}

// Code returns P2025.
func (e *NotFoundError) Code() string {
	return CodeNotFound
}

// Is reports whether the target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// UnknownRequestError wraps a driver error without a stable code.
type UnknownRequestError struct {
	Query string
	Err   error
}

// Error implements the error interface.
func (e *UnknownRequestError) Error() string {
	return fmt.Sprintf("query error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *UnknownRequestError) Unwrap() error {
	return e.Err
}

// ValidationError represents invalid query arguments, detected before any SQL
// is sent.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InitializationError is returned when the pool cannot be set up.
type InitializationError struct {
	Err error
}

// Error implements the error interface.
func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialization error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *InitializationError) Unwrap() error {
	return e.Err
}

// TransactionError is returned when a transaction cannot start in time, runs
// past its timeout or is used after it closed.
type TransactionError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *TransactionError) Error() string {
	if e.Err == nil {
		return "transaction error: " + e.Message
	}
	return fmt.Sprintf("transaction error: %s: %v", e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransactionError) Unwrap() error {
	return e.Err
}

// MigrationError represents a migration error.
type MigrationError struct {
	Version string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration error (version %s): %s: %v", e.Version, e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *MigrationError) Unwrap() error {
	return e.Err
}

// Classify converts a driver error into the taxonomy above. Context errors,
// pgx.ErrNoRows and errors already classified pass through unchanged.
func Classify(query string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var (
		known      *KnownRequestError
		unknown    *UnknownRequestError
		validation *ValidationError
		txErr      *TransactionError
	)
	if errors.As(err, &known) || errors.As(err, &unknown) ||
		errors.As(err, &validation) || errors.As(err, &txErr) {
		return err
	}

	if errors.Is(err, pgx.ErrTxClosed) {
		return &TransactionError{Message: "transaction is closed", Err: ErrTransactionClosed}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if code, ok := pgCodes[pgErr.Code]; ok {
			meta := map[string]any{"table": pgErr.TableName}
			switch code {
			case CodeUniqueViolation, CodeCheckViolation:
				meta["target"] = pgErr.ConstraintName
			case CodeForeignKeyViolation:
				meta["field_name"] = pgErr.ConstraintName
			case CodeNullViolation:
				meta["column"] = pgErr.ColumnName
			}
			return &KnownRequestError{
				Code:    code,
				Message: pgErr.Message,
				Meta:    meta,
				Err:     err,
			}
		}
	}

	return &UnknownRequestError{Query: query, Err: err}
}

// ErrorCode returns the stable code carried by err, or "".
func ErrorCode(err error) string {
	var known *KnownRequestError
	if errors.As(err, &known) {
		return known.Code
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Code()
	}
	return ""
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
