package builder

import (
	"fmt"
	"strings"
)

// SelectQuery represents a SELECT statement.
type SelectQuery struct {
	table      string
	alias      string
	from       *Subquery
	columns    []string
	where      []Condition
	groupBy    []string
	having     []Condition
	orderBy    []OrderBy
	limit      *int
	offset     *int
	distinctOn []string
	forUpdate  bool
}

// Select starts a SELECT from a table. The name is quoted.
func Select(table string) *SelectQuery {
	return &SelectQuery{table: QuoteIdent(table)}
}

// SelectFrom starts a SELECT over a subquery.
func SelectFrom(sub *Subquery) *SelectQuery {
	return &SelectQuery{from: sub, alias: sub.Alias}
}

// As sets the table alias.
func (q *SelectQuery) As(alias string) *SelectQuery {
	q.alias = alias
	return q
}

// Alias returns the table alias.
func (q *SelectQuery) Alias() string {
	return q.alias
}

// Columns specifies which columns or expressions to select.
func (q *SelectQuery) Columns(cols ...string) *SelectQuery {
	q.columns = append(q.columns, cols...)
	return q
}

// Where adds WHERE conditions joined with AND.
func (q *SelectQuery) Where(conditions ...Condition) *SelectQuery {
	for _, c := range conditions {
		c.Logic = LogicAnd
		q.where = append(q.where, c)
	}
	return q
}

// OrderBy adds ORDER BY clauses.
func (q *SelectQuery) OrderBy(orders ...OrderBy) *SelectQuery {
	q.orderBy = append(q.orderBy, orders...)
	return q
}

// Limit sets the LIMIT clause.
func (q *SelectQuery) Limit(limit int) *SelectQuery {
	q.limit = &limit
	return q
}

// Offset sets the OFFSET clause.
func (q *SelectQuery) Offset(offset int) *SelectQuery {
	q.offset = &offset
	return q
}

// DistinctOn adds DISTINCT ON (exprs).
func (q *SelectQuery) DistinctOn(exprs ...string) *SelectQuery {
	q.distinctOn = append(q.distinctOn, exprs...)
	return q
}

// ForUpdate adds FOR UPDATE lock.
func (q *SelectQuery) ForUpdate() *SelectQuery {
	q.forUpdate = true
	return q
}

// GroupBy adds a GROUP BY clause.
func (q *SelectQuery) GroupBy(exprs ...string) *SelectQuery {
	q.groupBy = append(q.groupBy, exprs...)
	return q
}

// Having adds HAVING conditions joined with AND.
func (q *SelectQuery) Having(conditions ...Condition) *SelectQuery {
	for _, c := range conditions {
		c.Logic = LogicAnd
		q.having = append(q.having, c)
	}
	return q
}

// ToSQL generates the SQL query with `$n` placeholders.
func (q *SelectQuery) ToSQL() (string, []any, error) {
	sql, args, err := q.Fragment()
	if err != nil {
		return "", nil, err
	}
	return Rebind(sql, 1), args, nil
}

// Fragment renders the query with `?` placeholders for embedding.
func (q *SelectQuery) Fragment() (string, []any, error) {
	if q.table == "" && q.from == nil {
		return "", nil, fmt.Errorf("select: no table")
	}

	var sql strings.Builder
	var args []any

	sql.WriteString("SELECT ")
	if len(q.distinctOn) > 0 {
		sql.WriteString("DISTINCT ON (")
		sql.WriteString(strings.Join(q.distinctOn, ", "))
		sql.WriteString(") ")
	}
	if len(q.columns) == 0 {
		sql.WriteString("*")
	} else {
		sql.WriteString(strings.Join(q.columns, ", "))
	}

	// FROM clause
	sql.WriteString(" FROM ")
	if q.from != nil {
		fromSQL, fromArgs := q.from.ToSQL()
		sql.WriteString(fromSQL)
		args = append(args, fromArgs...)
	} else {
		sql.WriteString(q.table)
		if q.alias != "" {
			sql.WriteString(" AS ")
			sql.WriteString(QuoteIdent(q.alias))
		}
	}

	// WHERE clause
	if len(q.where) > 0 {
		whereSQL, whereArgs, err := NewFragmentBuilder(q.where...).Build()
		if err != nil {
			return "", nil, fmt.Errorf("failed to build WHERE clause: %w", err)
		}
		if whereSQL != "" {
			sql.WriteString(" ")
			sql.WriteString(whereSQL)
			args = append(args, whereArgs...)
		}
	}

	// GROUP BY clause
	if len(q.groupBy) > 0 {
		sql.WriteString(" GROUP BY ")
		sql.WriteString(strings.Join(q.groupBy, ", "))
	}

	// HAVING clause
	if len(q.having) > 0 {
		havingSQL, havingArgs, err := NewFragmentBuilder(q.having...).BuildExpr()
		if err != nil {
			return "", nil, fmt.Errorf("failed to build HAVING clause: %w", err)
		}
		if havingSQL != "" {
			sql.WriteString(" HAVING ")
			sql.WriteString(havingSQL)
			args = append(args, havingArgs...)
		}
	}

	// ORDER BY clause
	if len(q.orderBy) > 0 {
		sql.WriteString(" ORDER BY ")
		sql.WriteString(renderOrder(q.orderBy))
	}

	// LIMIT clause
	if q.limit != nil {
		sql.WriteString(fmt.Sprintf(" LIMIT %d", *q.limit))
	}

	// OFFSET clause
	if q.offset != nil {
		sql.WriteString(fmt.Sprintf(" OFFSET %d", *q.offset))
	}

	// FOR UPDATE clause
	if q.forUpdate {
		sql.WriteString(" FOR UPDATE")
	}

	return sql.String(), args, nil
}

func renderOrder(orders []OrderBy) string {
	parts := make([]string, len(orders))
	for i, order := range orders {
		dir := order.Direction
		if dir == "" {
			dir = Asc
		}
		parts[i] = order.Column + " " + string(dir)
		if order.NullsPos != NullsDefault {
			parts[i] += " " + string(order.NullsPos)
		}
	}
	return strings.Join(parts, ", ")
}

// QuoteIdent quotes an SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Column returns the qualified, quoted column reference alias.column.
func Column(alias, column string) string {
	if alias == "" {
		return QuoteIdent(column)
	}
	return QuoteIdent(alias) + "." + QuoteIdent(column)
}
