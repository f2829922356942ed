package builder

import (
	"github.com/marshallshelly/setlistdb/pkg/query"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// OrderBy compiles sort keys against t.
func (c *Compiler) OrderBy(t *schema.TableMetadata, alias string, ob query.OrderBy) ([]OrderBy, error) {
	out := make([]OrderBy, 0, len(ob))
	for _, o := range ob {
		p := joinPath("orderBy", o.Field)
		col := t.Field(o.Field)
		if col == nil {
			return nil, unknownField(p, t, o.Field)
		}
		if col.IsJSON() || col.IsList {
			return nil, runtime.Invalid(p, "%s fields cannot be sorted", col.Kind)
		}
		ord := OrderBy{Column: Column(alias, col.Name), Direction: Asc}
		switch o.Sort {
		case query.Asc, "":
		case query.Desc:
			ord.Direction = Desc
		default:
			return nil, runtime.Invalid(p, "invalid sort order %q", o.Sort)
		}
		switch o.Nulls {
		case query.NullsFirst:
			ord.NullsPos = NullsFirst
		case query.NullsLast:
			ord.NullsPos = NullsLast
		case "":
		default:
			return nil, runtime.Invalid(p, "invalid nulls order %q", o.Nulls)
		}
		out = append(out, ord)
	}
	return out, nil
}

// WithTiebreaker appends the primary key fields missing from ob, so the
// order is total.
func WithTiebreaker(t *schema.TableMetadata, ob query.OrderBy) query.OrderBy {
	out := append(query.OrderBy{}, ob...)
	if t.PrimaryKey == nil {
		return out
	}
	for _, name := range t.PrimaryKey.Columns {
		col := t.GetColumn(name)
		if col != nil && !out.Has(col.Field) {
			out = append(out, query.By(col.Field, query.Asc))
		}
	}
	return out
}

func reverseOrder(ob query.OrderBy) query.OrderBy {
	out := make(query.OrderBy, len(ob))
	for i, o := range ob {
		out[i] = o.Reverse()
	}
	return out
}

// Cursor compiles a cursor into the condition selecting the cursor row and
// every row after it in order. order must be total (see WithTiebreaker).
// A cursor that matches no row yields no rows.
func (c *Compiler) Cursor(t *schema.TableMetadata, alias string, cursor query.WhereUnique, order query.OrderBy) (Condition, error) {
	ca := c.NextAlias()
	where, err := c.whereUnique(t, ca, cursor, "cursor")
	if err != nil {
		return Condition{}, err
	}

	cols := make([]*schema.ColumnMetadata, len(order))
	subs := make([]*Subquery, len(order))
	for i, o := range order {
		col := t.Field(o.Field)
		if col == nil {
			return Condition{}, unknownField(joinPath("orderBy", o.Field), t, o.Field)
		}
		sq, err := SubqueryOf(Select(t.Name).As(ca).Columns(Column(ca, col.Name)).Where(where...))
		if err != nil {
			return Condition{}, err
		}
		cols[i], subs[i] = col, sq
	}

	branches := make([]Condition, 0, len(order))
	for i, o := range order {
		parts := make([]Condition, 0, i+1)
		for j := 0; j < i; j++ {
			parts = append(parts, CompareSubquery(Column(alias, cols[j].Name), OpEqual, subs[j]))
		}
		op := OpGreaterThan
		if o.Sort == query.Desc {
			op = OpLessThan
		}
		if i == len(order)-1 {
			op += "="
		}
		parts = append(parts, CompareSubquery(Column(alias, cols[i].Name), op, subs[i]))
		branches = append(branches, Group(parts...))
	}
	return AnyOf(branches...), nil
}

// Page describes the rows a read operates on.
type Page struct {
	Where    query.Where
	OrderBy  query.OrderBy
	Cursor   query.WhereUnique
	Take     *int
	Skip     *int
	Distinct []string
}

// FindPlan is a compiled read. Reverse reports that the rows come back in
// the opposite of the requested order and must be reversed after scanning.
type FindPlan struct {
	Query   *SelectQuery
	Reverse bool
}

// FindUnique compiles a single-row read by unique selector.
func (c *Compiler) FindUnique(t *schema.TableMetadata, where query.WhereUnique) (*SelectQuery, error) {
	conds, err := c.WhereUnique(t, RootAlias, where)
	if err != nil {
		return nil, err
	}
	return Select(t.Name).As(RootAlias).Columns(SelectColumns(t, RootAlias)...).Where(conds...), nil
}

// FindMany compiles a paginated read selecting every scalar column.
func (c *Compiler) FindMany(t *schema.TableMetadata, p Page) (*FindPlan, error) {
	return c.page(t, p, SelectColumns(t, RootAlias))
}

func (c *Compiler) page(t *schema.TableMetadata, p Page, columns []string) (*FindPlan, error) {
	alias := RootAlias
	if p.Skip != nil && *p.Skip < 0 {
		return nil, runtime.Invalid("skip", "must be non-negative, got %d", *p.Skip)
	}
	conds, err := c.Where(t, alias, p.Where)
	if err != nil {
		return nil, err
	}

	reverse := p.Take != nil && *p.Take < 0
	order := p.OrderBy
	if len(p.Cursor) > 0 || reverse {
		order = WithTiebreaker(t, order)
	}
	if reverse {
		order = reverseOrder(order)
	}
	if len(p.Cursor) > 0 {
		cursor, err := c.Cursor(t, alias, p.Cursor, order)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cursor)
	}
	orders, err := c.OrderBy(t, alias, order)
	if err != nil {
		return nil, err
	}

	var q *SelectQuery
	if len(p.Distinct) > 0 {
		// DISTINCT ON keeps the first row of each group in the requested
		// order; the outer query restores that order and pages.
		var distinct []string
		var inner []OrderBy
		for _, f := range p.Distinct {
			col := t.Field(f)
			if col == nil {
				return nil, unknownField(joinPath("distinct", f), t, f)
			}
			distinct = append(distinct, Column(alias, col.Name))
			inner = append(inner, OrderBy{Column: Column(alias, col.Name), Direction: Asc})
		}
		innerQ := Select(t.Name).As(alias).Columns(columns...).Where(conds...).
			DistinctOn(distinct...).OrderBy(append(inner, orders...)...)
		sub, err := SubqueryOf(innerQ)
		if err != nil {
			return nil, err
		}
		q = SelectFrom(sub.As(alias)).Columns(QuoteIdent(alias) + ".*").OrderBy(orders...)
	} else {
		q = Select(t.Name).As(alias).Columns(columns...).Where(conds...).OrderBy(orders...)
	}

	if p.Take != nil {
		n := *p.Take
		if n < 0 {
			n = -n
		}
		q.Limit(n)
	}
	if p.Skip != nil && *p.Skip > 0 {
		q.Offset(*p.Skip)
	}
	return &FindPlan{Query: q, Reverse: reverse}, nil
}

// paged wraps a page in a FROM subquery aliased as the root alias, so
// aggregates see only the paged rows.
func (c *Compiler) paged(t *schema.TableMetadata, p Page) (*SelectQuery, error) {
	plan, err := c.page(t, p, []string{QuoteIdent(RootAlias) + ".*"})
	if err != nil {
		return nil, err
	}
	sub, err := SubqueryOf(plan.Query)
	if err != nil {
		return nil, err
	}
	return SelectFrom(sub.As(RootAlias)), nil
}
