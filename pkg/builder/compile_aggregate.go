package builder

import (
	"fmt"

	"github.com/marshallshelly/setlistdb/pkg/query"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// AggregateColumn is one selected aggregate, in result column order.
type AggregateColumn struct {
	Op    string // query.AggCount, AggAvg, ...
	Field string // field name or query.CountAll
	Kind  schema.FieldKind
	SQL   string
}

// Aggregates lists the requested aggregates per operator.
type Aggregates struct {
	Count, Avg, Sum, Min, Max []string
}

// Empty reports whether no aggregate is requested.
func (a Aggregates) Empty() bool {
	return len(a.Count)+len(a.Avg)+len(a.Sum)+len(a.Min)+len(a.Max) == 0
}

// aggregateExpr renders one aggregate of col and the kind of its result.
func aggregateExpr(op string, col *schema.ColumnMetadata, alias, path string) (string, schema.FieldKind, error) {
	ref := Column(alias, col.Name)
	switch op {
	case query.AggCount:
		return Count(ref), schema.KindBigInt, nil
	case query.AggAvg, query.AggSum:
		if !col.Kind.IsNumeric() || col.IsList {
			return "", "", runtime.Invalid(path, "%s requires a numeric field, %s is %s", op, col.Field, col.Kind)
		}
		if op == query.AggAvg {
			return Avg(ref), schema.KindFloat, nil
		}
		if col.Kind == schema.KindFloat {
			return Sum(ref, false), schema.KindFloat, nil
		}
		return Sum(ref, true), schema.KindBigInt, nil
	case query.AggMin, query.AggMax:
		if col.IsJSON() || col.IsList {
			return "", "", runtime.Invalid(path, "%s is not supported on %s fields", op, col.Kind)
		}
		if op == query.AggMin {
			return Min(ref), col.Kind, nil
		}
		return Max(ref), col.Kind, nil
	}
	return "", "", runtime.Invalid(path, "unknown aggregate %q", op)
}

func (c *Compiler) aggregateColumns(t *schema.TableMetadata, alias string, a Aggregates) ([]AggregateColumn, error) {
	var out []AggregateColumn
	groups := []struct {
		op     string
		fields []string
	}{
		{query.AggCount, a.Count},
		{query.AggAvg, a.Avg},
		{query.AggSum, a.Sum},
		{query.AggMin, a.Min},
		{query.AggMax, a.Max},
	}
	for _, g := range groups {
		for _, f := range g.fields {
			p := joinPath(g.op, f)
			if g.op == query.AggCount && f == query.CountAll {
				out = append(out, AggregateColumn{Op: g.op, Field: f, Kind: schema.KindBigInt, SQL: CountAll()})
				continue
			}
			col := t.Field(f)
			if col == nil {
				return nil, unknownField(p, t, f)
			}
			sql, kind, err := aggregateExpr(g.op, col, alias, p)
			if err != nil {
				return nil, err
			}
			out = append(out, AggregateColumn{Op: g.op, Field: f, Kind: kind, SQL: sql})
		}
	}
	return out, nil
}

func aggregateSQL(cols []AggregateColumn) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.SQL
	}
	return out
}

// Aggregate compiles aggregate over the paged rows. It returns a nil query
// when nothing is selected.
func (c *Compiler) Aggregate(t *schema.TableMetadata, p Page, a Aggregates) (*SelectQuery, []AggregateColumn, error) {
	cols, err := c.aggregateColumns(t, RootAlias, a)
	if err != nil || len(cols) == 0 {
		return nil, nil, err
	}
	q, err := c.paged(t, p)
	if err != nil {
		return nil, nil, err
	}
	return q.Columns(aggregateSQL(cols)...), cols, nil
}

// Count compiles count. Without fields it counts rows; otherwise it counts
// the non-null values of each field ("_all" counts rows).
func (c *Compiler) Count(t *schema.TableMetadata, p Page, fields []string) (*SelectQuery, []AggregateColumn, error) {
	if len(fields) == 0 {
		fields = []string{query.CountAll}
	}
	return c.Aggregate(t, p, Aggregates{Count: fields})
}

// GroupByPlan is a compiled groupBy: the grouped fields come first in the
// result, followed by Aggregates.
type GroupByPlan struct {
	Query      *SelectQuery
	By         []*schema.ColumnMetadata
	Aggregates []AggregateColumn
}

// GroupBy compiles a groupBy.
func (c *Compiler) GroupBy(t *schema.TableMetadata, args *query.GroupByArgs) (*GroupByPlan, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	alias := RootAlias

	by := make([]*schema.ColumnMetadata, 0, len(args.By))
	byCols := make([]string, 0, len(args.By))
	for _, f := range args.By {
		col := t.Field(f)
		if col == nil {
			return nil, unknownField(joinPath("by", f), t, f)
		}
		by = append(by, col)
		byCols = append(byCols, Column(alias, col.Name))
	}

	aggs, err := c.aggregateColumns(t, alias, Aggregates{
		Count: args.Count, Avg: args.Avg, Sum: args.Sum, Min: args.Min, Max: args.Max,
	})
	if err != nil {
		return nil, err
	}
	where, err := c.Where(t, alias, args.Where)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string]bool, len(args.By))
	for _, f := range args.By {
		grouped[f] = true
	}
	having, err := c.having(t, alias, args.Having, grouped, "having")
	if err != nil {
		return nil, err
	}
	orders, err := c.OrderBy(t, alias, args.OrderBy)
	if err != nil {
		return nil, err
	}
	if args.Take != nil && *args.Take < 0 {
		return nil, runtime.Invalid("take", "must be non-negative for groupBy, got %d", *args.Take)
	}

	q := Select(t.Name).As(alias).
		Columns(append(byCols, aggregateSQL(aggs)...)...).
		Where(where...).
		GroupBy(byCols...).
		Having(having...).
		OrderBy(orders...)
	if args.Take != nil {
		q.Limit(*args.Take)
	}
	if args.Skip != nil && *args.Skip > 0 {
		q.Offset(*args.Skip)
	}
	return &GroupByPlan{Query: q, By: by, Aggregates: aggs}, nil
}

// having compiles groupBy filters. Plain filters apply to grouped columns,
// HavingAggregate filters to aggregate expressions of any field. Plain
// filters on fields outside grouped are rejected at any nesting depth.
func (c *Compiler) having(t *schema.TableMetadata, alias string, h query.Having, grouped map[string]bool, path string) ([]Condition, error) {
	var conds []Condition
	for _, key := range sortedKeys(h) {
		v := h[key]
		p := joinPath(path, key)

		switch key {
		case query.KeyAND, query.KeyOR, query.KeyNOT:
			var items []any
			if m, ok := query.AsMap(v); ok {
				items = []any{m}
			} else if list, ok := query.AsSlice(v); ok {
				items = list
			} else {
				return nil, runtime.Invalid(p, "expected an object or a list of objects")
			}
			parts := make([]Condition, 0, len(items))
			for i, item := range items {
				m, ok := query.AsMap(item)
				if !ok {
					return nil, runtime.Invalid(fmt.Sprintf("%s[%d]", p, i), "expected an object")
				}
				cs, err := c.having(t, alias, query.Having(m), grouped, fmt.Sprintf("%s[%d]", p, i))
				if err != nil {
					return nil, err
				}
				part := Group(cs...)
				if key == query.KeyNOT {
					part = Not(part)
				}
				parts = append(parts, part)
			}
			if key == query.KeyOR {
				conds = append(conds, AnyOf(parts...))
			} else {
				conds = append(conds, Group(parts...))
			}
			continue
		}

		col := t.Field(key)
		if col == nil {
			return nil, unknownField(p, t, key)
		}
		if agg, ok := query.AsHavingAggregate(v); ok {
			for _, op := range sortedKeys(toAnyMap(agg)) {
				ap := joinPath(p, op)
				expr, kind, err := aggregateExpr(op, col, alias, ap)
				if err != nil {
					return nil, err
				}
				synthetic := *col
				synthetic.Kind, synthetic.IsList, synthetic.EnumValues = kind, false, nil
				cs, err := c.scalarFilter(target{expr: expr, col: &synthetic}, agg[op], ap)
				if err != nil {
					return nil, err
				}
				conds = append(conds, cs...)
			}
			continue
		}
		if !grouped[key] {
			return nil, runtime.Invalid(p, "field must be included in by")
		}
		cs, err := c.fieldCondition(columnTarget(alias, col), v, p)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cs...)
	}
	return conds, nil
}

func toAnyMap(agg query.HavingAggregate) map[string]any {
	out := make(map[string]any, len(agg))
	for k, v := range agg {
		out[k] = v
	}
	return out
}
