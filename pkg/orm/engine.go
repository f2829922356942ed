package orm

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"time"

	"github.com/marshallshelly/setlistdb/pkg/builder"
	"github.com/marshallshelly/setlistdb/pkg/query"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// Operation names, as used in logs, metrics and by Model.Exec.
const (
	OpFindUnique          = "findUnique"
	OpFindUniqueOrThrow   = "findUniqueOrThrow"
	OpFindFirst           = "findFirst"
	OpFindFirstOrThrow    = "findFirstOrThrow"
	OpFindMany            = "findMany"
	OpCreate              = "create"
	OpCreateMany          = "createMany"
	OpCreateManyAndReturn = "createManyAndReturn"
	OpUpdate              = "update"
	OpUpdateMany          = "updateMany"
	OpUpsert              = "upsert"
	OpDelete              = "delete"
	OpDeleteMany          = "deleteMany"
	OpAggregate           = "aggregate"
	OpGroupBy             = "groupBy"
	OpCount               = "count"
)

// Operations lists every operation name in a stable order.
func Operations() []string {
	return []string{
		OpFindUnique, OpFindUniqueOrThrow, OpFindFirst, OpFindFirstOrThrow, OpFindMany,
		OpCreate, OpCreateMany, OpCreateManyAndReturn,
		OpUpdate, OpUpdateMany, OpUpsert,
		OpDelete, OpDeleteMany,
		OpAggregate, OpGroupBy, OpCount,
	}
}

// model runs the operation family for one table. Results are pointers to
// new structs of the table's Go type.
type model struct {
	db    *DB
	table *schema.TableMetadata
}

func (db *DB) model(t *schema.TableMetadata) *model {
	return &model{db: db, table: t}
}

func (m *model) name() string {
	return m.table.ModelName
}

func (m *model) compiler() *builder.Compiler {
	return builder.NewCompiler(m.db.reg)
}

func (m *model) observe(op string, start time.Time, rows func() int64, err *error) {
	m.db.observe(m.name(), op, start, rows(), *err)
}

func one(v *reflect.Value) func() int64 {
	return func() int64 {
		if v.IsValid() {
			return 1
		}
		return 0
	}
}

func many(v *[]reflect.Value) func() int64 {
	return func() int64 { return int64(len(*v)) }
}

func affected(n *int64) func() int64 {
	return func() int64 { return *n }
}

func none() int64 { return 0 }

// fetch runs q and scans every row into the table's type.
func (m *model) fetch(ctx context.Context, q builder.Query) ([]reflect.Value, error) {
	sql, args, err := q.ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := m.db.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return builder.ScanAll(rows, m.table)
}

// exec runs q and returns the number of affected rows.
func (m *model) exec(ctx context.Context, q builder.Query) (int64, error) {
	sql, args, err := q.ToSQL()
	if err != nil {
		return 0, err
	}
	return m.db.q.Exec(ctx, sql, args...)
}

// values runs q and returns the rows positionally.
func (m *model) values(ctx context.Context, q builder.Query) ([][]any, error) {
	sql, args, err := q.ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := m.db.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return builder.ScanValues(rows)
}

func pageOf(args *query.FindManyArgs) builder.Page {
	return builder.Page{
		Where:    args.Where,
		OrderBy:  args.OrderBy,
		Cursor:   args.Cursor,
		Take:     args.Take,
		Skip:     args.Skip,
		Distinct: args.Distinct,
	}
}

// read runs a findMany without observing it.
func (m *model) read(ctx context.Context, args *query.FindManyArgs) ([]reflect.Value, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	p, err := m.projection(args.Select, args.Include, "")
	if err != nil {
		return nil, err
	}
	plan, err := m.compiler().FindMany(m.table, pageOf(args))
	if err != nil {
		return nil, err
	}
	items, err := m.fetch(ctx, plan.Query)
	if err != nil {
		return nil, err
	}
	if plan.Reverse {
		slices.Reverse(items)
	}
	if err := m.finish(ctx, items, p); err != nil {
		return nil, err
	}
	return items, nil
}

func (m *model) findUnique(ctx context.Context, args *query.FindUniqueArgs, orThrow bool) (item reflect.Value, err error) {
	op := OpFindUnique
	if orThrow {
		op = OpFindUniqueOrThrow
	}
	defer m.observe(op, time.Now(), one(&item), &err)

	if args == nil {
		args = &query.FindUniqueArgs{}
	}
	if err = args.Validate(); err != nil {
		return item, err
	}
	p, err := m.projection(args.Select, args.Include, "")
	if err != nil {
		return item, err
	}
	q, err := m.compiler().FindUnique(m.table, args.Where)
	if err != nil {
		return item, err
	}
	items, err := m.fetch(ctx, q)
	if err != nil {
		return item, err
	}
	if len(items) == 0 {
		if orThrow {
			err = &runtime.NotFoundError{Model: m.name(), Operation: op}
		}
		return item, err
	}
	if err = m.finish(ctx, items[:1], p); err != nil {
		return item, err
	}
	return items[0], nil
}

func (m *model) findFirst(ctx context.Context, args *query.FindFirstArgs, orThrow bool) (item reflect.Value, err error) {
	op := OpFindFirst
	if orThrow {
		op = OpFindFirstOrThrow
	}
	defer m.observe(op, time.Now(), one(&item), &err)

	first := query.FindManyArgs{}
	if args != nil {
		first = *args
	}
	if first.Take != nil && *first.Take < 0 {
		first.Take = query.Int(-1)
	} else {
		first.Take = query.Int(1)
	}
	items, err := m.read(ctx, &first)
	if err != nil {
		return item, err
	}
	if len(items) == 0 {
		if orThrow {
			err = &runtime.NotFoundError{Model: m.name(), Operation: op}
		}
		return item, err
	}
	return items[0], nil
}

func (m *model) findMany(ctx context.Context, args *query.FindManyArgs) (items []reflect.Value, err error) {
	defer m.observe(OpFindMany, time.Now(), many(&items), &err)
	if args == nil {
		args = &query.FindManyArgs{}
	}
	return m.read(ctx, args)
}

func (m *model) aggregate(ctx context.Context, args *query.AggregateArgs) (res *query.AggregateResult, err error) {
	defer m.observe(OpAggregate, time.Now(), none, &err)
	if args == nil {
		args = &query.AggregateArgs{}
	}
	if err = args.Validate(); err != nil {
		return nil, err
	}
	page := builder.Page{Where: args.Where, OrderBy: args.OrderBy, Cursor: args.Cursor, Take: args.Take, Skip: args.Skip}
	aggs := builder.Aggregates{Count: args.Count, Avg: args.Avg, Sum: args.Sum, Min: args.Min, Max: args.Max}
	q, cols, err := m.compiler().Aggregate(m.table, page, aggs)
	if err != nil {
		return nil, err
	}
	res = &query.AggregateResult{}
	if q == nil {
		return res, nil
	}
	rows, err := m.values(ctx, q)
	if err != nil {
		return nil, err
	}
	var row []any
	if len(rows) > 0 {
		row = rows[0]
	}
	fillAggregates(res, cols, row)
	return res, nil
}

func (m *model) count(ctx context.Context, args *query.CountArgs) (n int64, err error) {
	defer m.observe(OpCount, time.Now(), none, &err)
	counts, err := m.counts(ctx, args, nil)
	if err != nil {
		return 0, err
	}
	return counts[query.CountAll], nil
}

func (m *model) countFields(ctx context.Context, args *query.CountArgs) (counts map[string]int64, err error) {
	defer m.observe(OpCount, time.Now(), none, &err)
	var fields []string
	if args != nil {
		fields = args.Select
	}
	if len(fields) == 0 {
		fields = []string{query.CountAll}
	}
	return m.counts(ctx, args, fields)
}

func (m *model) counts(ctx context.Context, args *query.CountArgs, fields []string) (map[string]int64, error) {
	if args == nil {
		args = &query.CountArgs{}
	}
	if err := args.Validate(); err != nil {
		return nil, err
	}
	page := builder.Page{Where: args.Where, OrderBy: args.OrderBy, Cursor: args.Cursor, Take: args.Take, Skip: args.Skip}
	q, cols, err := m.compiler().Count(m.table, page, fields)
	if err != nil {
		return nil, err
	}
	rows, err := m.values(ctx, q)
	if err != nil {
		return nil, err
	}
	res := &query.AggregateResult{}
	var row []any
	if len(rows) > 0 {
		row = rows[0]
	}
	fillAggregates(res, cols, row)
	return res.Count, nil
}

func (m *model) groupBy(ctx context.Context, args *query.GroupByArgs) (groups []query.GroupByRow, err error) {
	defer m.observe(OpGroupBy, time.Now(), func() int64 { return int64(len(groups)) }, &err)
	if args == nil {
		args = &query.GroupByArgs{}
	}
	plan, err := m.compiler().GroupBy(m.table, args)
	if err != nil {
		return nil, err
	}
	rows, err := m.values(ctx, plan.Query)
	if err != nil {
		return nil, err
	}
	groups = make([]query.GroupByRow, 0, len(rows))
	for _, row := range rows {
		g := query.GroupByRow{Fields: make(map[string]any, len(plan.By))}
		for i, col := range plan.By {
			if i < len(row) {
				g.Fields[col.Field] = row[i]
			}
		}
		if len(row) > len(plan.By) {
			fillAggregates(&g.AggregateResult, plan.Aggregates, row[len(plan.By):])
		} else {
			fillAggregates(&g.AggregateResult, plan.Aggregates, nil)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// fillAggregates stores the aggregate values of one result row. Missing
// values are zero counts and nil averages.
func fillAggregates(res *query.AggregateResult, cols []builder.AggregateColumn, row []any) {
	for i, col := range cols {
		var v any
		if i < len(row) {
			v = row[i]
		}
		switch col.Op {
		case query.AggCount:
			if res.Count == nil {
				res.Count = make(map[string]int64)
			}
			n, _ := asInt64(v)
			res.Count[col.Field] = n
		case query.AggAvg:
			if res.Avg == nil {
				res.Avg = make(map[string]*float64)
			}
			if f, ok := asFloat64(v); ok {
				res.Avg[col.Field] = &f
			} else {
				res.Avg[col.Field] = nil
			}
		case query.AggSum:
			if res.Sum == nil {
				res.Sum = make(map[string]any)
			}
			res.Sum[col.Field] = v
		case query.AggMin:
			if res.Min == nil {
				res.Min = make(map[string]any)
			}
			res.Min[col.Field] = v
		case query.AggMax:
			if res.Max == nil {
				res.Max = make(map[string]any)
			}
			res.Max[col.Field] = v
		}
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func indexPath(path string, i, n int) string {
	if n == 1 {
		return path
	}
	return fmt.Sprintf("%s.%d", path, i)
}
