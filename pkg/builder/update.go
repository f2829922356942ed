package builder

import (
	"fmt"
	"strings"
)

// SetClause assigns a value or an Expr to a column.
type SetClause struct {
	Column string
	Value  any
}

// UpdateQuery represents an UPDATE statement.
type UpdateQuery struct {
	table     string
	alias     string
	sets      []SetClause
	where     []Condition
	returning []string
}

// Update starts an UPDATE of a table. The name is quoted.
func Update(table string) *UpdateQuery {
	return &UpdateQuery{table: QuoteIdent(table)}
}

// As sets the table alias.
func (q *UpdateQuery) As(alias string) *UpdateQuery {
	q.alias = alias
	return q
}

// Set sets a column value for the UPDATE. value may be an Expr.
func (q *UpdateQuery) Set(column string, value any) *UpdateQuery {
	q.sets = append(q.sets, SetClause{Column: column, Value: value})
	return q
}

// SetAll appends set clauses in order.
func (q *UpdateQuery) SetAll(sets []SetClause) *UpdateQuery {
	q.sets = append(q.sets, sets...)
	return q
}

// Where adds WHERE conditions joined with AND.
func (q *UpdateQuery) Where(conditions ...Condition) *UpdateQuery {
	for _, c := range conditions {
		c.Logic = LogicAnd
		q.where = append(q.where, c)
	}
	return q
}

// Returning specifies columns to return after update.
func (q *UpdateQuery) Returning(columns ...string) *UpdateQuery {
	q.returning = columns
	return q
}

// ToSQL generates the UPDATE SQL and arguments.
func (q *UpdateQuery) ToSQL() (string, []any, error) {
	if len(q.sets) == 0 {
		return "", nil, fmt.Errorf("no columns to update")
	}

	var sql strings.Builder
	var args []any

	sql.WriteString("UPDATE ")
	sql.WriteString(q.table)
	if q.alias != "" {
		sql.WriteString(" AS ")
		sql.WriteString(QuoteIdent(q.alias))
	}
	sql.WriteString(" SET ")

	// SET clause
	setClauses := make([]string, 0, len(q.sets))
	for _, s := range q.sets {
		if e, ok := s.Value.(Expr); ok {
			setClauses = append(setClauses, fmt.Sprintf("%s = %s", QuoteIdent(s.Column), e.SQL))
			args = append(args, e.Args...)
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", QuoteIdent(s.Column)))
		args = append(args, s.Value)
	}
	sql.WriteString(Rebind(strings.Join(setClauses, ", "), 1))

	// WHERE clause, numbered after the SET arguments
	if len(q.where) > 0 {
		wb := NewWhereBuilderWithStart(len(args) + 1)
		wb.Add(q.where...)
		whereSQL, whereArgs, err := wb.Build()
		if err != nil {
			return "", nil, fmt.Errorf("failed to build WHERE clause: %w", err)
		}
		if whereSQL != "" {
			sql.WriteString(" ")
			sql.WriteString(whereSQL)
			args = append(args, whereArgs...)
		}
	}

	// RETURNING clause
	if len(q.returning) > 0 {
		sql.WriteString(" RETURNING ")
		sql.WriteString(strings.Join(q.returning, ", "))
	}

	return sql.String(), args, nil
}
