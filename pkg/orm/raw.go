package orm

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/marshallshelly/setlistdb/pkg/builder"
)

// QueryRaw runs a parameterized statement and returns its rows keyed by
// column name. Placeholders are $1, $2, ...
func (db *DB) QueryRaw(ctx context.Context, sql string, args ...any) (rows []map[string]any, err error) {
	start := time.Now()
	defer func() { db.observe("raw", "queryRaw", start, int64(len(rows)), err) }()
	db.metrics.ObserveRaw("query")

	r, err := db.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return builder.ScanMaps(r)
}

// ExecuteRaw runs a parameterized statement and returns the number of
// affected rows.
func (db *DB) ExecuteRaw(ctx context.Context, sql string, args ...any) (n int64, err error) {
	start := time.Now()
	defer func() { db.observe("raw", "executeRaw", start, n, err) }()
	db.metrics.ObserveRaw("execute")

	return db.q.Exec(ctx, sql, args...)
}

// QueryRawAs runs a parameterized statement and scans its rows into the
// registered model type T by column name.
func QueryRawAs[T any](ctx context.Context, db *DB, sql string, args ...any) ([]T, error) {
	t, err := db.reg.Get(reflect.TypeFor[T]())
	if err != nil {
		return nil, fmt.Errorf("queryRaw: %w", err)
	}
	db.metrics.ObserveRaw("query")
	r, err := db.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	items, err := builder.ScanAll(r, t)
	if err != nil {
		return nil, err
	}
	return slice[T](items), nil
}
