package orm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/marshallshelly/setlistdb/pkg/query"
)

// Delegate exposes the operation family for the model type T.
//
// Usage:
//
//	artists := orm.MustFor[models.Artist](db)
//	a, err := artists.FindUnique(ctx, &query.FindUniqueArgs{
//	    Where: query.WhereUnique{"slug": "radiohead"},
//	})
type Delegate[T any] struct {
	m *model
}

// For returns the delegate for T, which must be registered.
func For[T any](db *DB) (*Delegate[T], error) {
	t, err := db.reg.Get(reflect.TypeFor[T]())
	if err != nil {
		return nil, fmt.Errorf("no delegate for %s: %w", reflect.TypeFor[T](), err)
	}
	return &Delegate[T]{m: db.model(t)}, nil
}

// MustFor is For that panics when T is not registered.
func MustFor[T any](db *DB) *Delegate[T] {
	d, err := For[T](db)
	if err != nil {
		panic(err)
	}
	return d
}

// Model returns the name of the delegate's model.
func (d *Delegate[T]) Model() string {
	return d.m.name()
}

func ptr[T any](v reflect.Value) *T {
	if !v.IsValid() {
		return nil
	}
	return v.Interface().(*T)
}

func slice[T any](items []reflect.Value) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = *item.Interface().(*T)
	}
	return out
}

// FindUnique returns the row addressed by a unique selector, or nil.
func (d *Delegate[T]) FindUnique(ctx context.Context, args *query.FindUniqueArgs) (*T, error) {
	v, err := d.m.findUnique(ctx, args, false)
	if err != nil {
		return nil, err
	}
	return ptr[T](v), nil
}

// FindUniqueOrThrow is FindUnique that fails with a NotFoundError.
func (d *Delegate[T]) FindUniqueOrThrow(ctx context.Context, args *query.FindUniqueArgs) (*T, error) {
	v, err := d.m.findUnique(ctx, args, true)
	if err != nil {
		return nil, err
	}
	return ptr[T](v), nil
}

// FindFirst returns the first matching row in order, or nil.
func (d *Delegate[T]) FindFirst(ctx context.Context, args *query.FindFirstArgs) (*T, error) {
	v, err := d.m.findFirst(ctx, args, false)
	if err != nil {
		return nil, err
	}
	return ptr[T](v), nil
}

// FindFirstOrThrow is FindFirst that fails with a NotFoundError.
func (d *Delegate[T]) FindFirstOrThrow(ctx context.Context, args *query.FindFirstArgs) (*T, error) {
	v, err := d.m.findFirst(ctx, args, true)
	if err != nil {
		return nil, err
	}
	return ptr[T](v), nil
}

// FindMany returns every matching row. The result is never nil.
func (d *Delegate[T]) FindMany(ctx context.Context, args *query.FindManyArgs) ([]T, error) {
	items, err := d.m.findMany(ctx, args)
	if err != nil {
		return nil, err
	}
	return slice[T](items), nil
}

// Create inserts one row with its nested writes.
func (d *Delegate[T]) Create(ctx context.Context, args *query.CreateArgs) (*T, error) {
	v, err := d.m.create(ctx, args)
	if err != nil {
		return nil, err
	}
	return ptr[T](v), nil
}

// CreateMany inserts rows in one statement and returns how many were
// inserted.
func (d *Delegate[T]) CreateMany(ctx context.Context, args *query.CreateManyArgs) (int64, error) {
	return d.m.createMany(ctx, args)
}

// CreateManyAndReturn is CreateMany returning the inserted rows.
func (d *Delegate[T]) CreateManyAndReturn(ctx context.Context, args *query.CreateManyAndReturnArgs) ([]T, error) {
	items, err := d.m.createManyAndReturn(ctx, args)
	if err != nil {
		return nil, err
	}
	return slice[T](items), nil
}

// Update changes the row addressed by a unique selector. It fails with a
// NotFoundError when no row matches.
func (d *Delegate[T]) Update(ctx context.Context, args *query.UpdateArgs) (*T, error) {
	v, err := d.m.update(ctx, args)
	if err != nil {
		return nil, err
	}
	return ptr[T](v), nil
}

// UpdateMany changes every matching row and returns how many changed.
func (d *Delegate[T]) UpdateMany(ctx context.Context, args *query.UpdateManyArgs) (int64, error) {
	return d.m.updateMany(ctx, args)
}

// Upsert updates the addressed row, or creates it when missing.
func (d *Delegate[T]) Upsert(ctx context.Context, args *query.UpsertArgs) (*T, error) {
	v, err := d.m.upsert(ctx, args)
	if err != nil {
		return nil, err
	}
	return ptr[T](v), nil
}

// Delete removes the addressed row and returns it. It fails with a
// NotFoundError when no row matches.
func (d *Delegate[T]) Delete(ctx context.Context, args *query.DeleteArgs) (*T, error) {
	v, err := d.m.delete(ctx, args)
	if err != nil {
		return nil, err
	}
	return ptr[T](v), nil
}

// DeleteMany removes every matching row and returns how many were removed.
func (d *Delegate[T]) DeleteMany(ctx context.Context, args *query.DeleteManyArgs) (int64, error) {
	return d.m.deleteMany(ctx, args)
}

// Aggregate computes count, avg, sum, min and max over the matching rows.
func (d *Delegate[T]) Aggregate(ctx context.Context, args *query.AggregateArgs) (*query.AggregateResult, error) {
	return d.m.aggregate(ctx, args)
}

// GroupBy groups the matching rows and aggregates each group.
func (d *Delegate[T]) GroupBy(ctx context.Context, args *query.GroupByArgs) ([]query.GroupByRow, error) {
	return d.m.groupBy(ctx, args)
}

// Count returns the number of matching rows.
func (d *Delegate[T]) Count(ctx context.Context, args *query.CountArgs) (int64, error) {
	return d.m.count(ctx, args)
}

// CountFields counts the non-null values of each field in args.Select;
// "_all" counts rows.
func (d *Delegate[T]) CountFields(ctx context.Context, args *query.CountArgs) (map[string]int64, error) {
	return d.m.countFields(ctx, args)
}
