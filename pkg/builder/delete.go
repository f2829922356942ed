package builder

import (
	"fmt"
	"strings"
)

// DeleteQuery represents a DELETE statement.
type DeleteQuery struct {
	table     string
	alias     string
	where     []Condition
	returning []string
}

// Delete starts a DELETE from a table. The name is quoted.
func Delete(table string) *DeleteQuery {
	return &DeleteQuery{table: QuoteIdent(table)}
}

// As sets the table alias.
func (q *DeleteQuery) As(alias string) *DeleteQuery {
	q.alias = alias
	return q
}

// Where adds WHERE conditions joined with AND.
func (q *DeleteQuery) Where(conditions ...Condition) *DeleteQuery {
	for _, c := range conditions {
		c.Logic = LogicAnd
		q.where = append(q.where, c)
	}
	return q
}

// Returning specifies columns to return after delete.
func (q *DeleteQuery) Returning(columns ...string) *DeleteQuery {
	q.returning = columns
	return q
}

// ToSQL generates the DELETE SQL and arguments.
func (q *DeleteQuery) ToSQL() (string, []any, error) {
	var sql strings.Builder
	var args []any

	sql.WriteString("DELETE FROM ")
	sql.WriteString(q.table)
	if q.alias != "" {
		sql.WriteString(" AS ")
		sql.WriteString(QuoteIdent(q.alias))
	}

	// WHERE clause
	if len(q.where) > 0 {
		wb := NewWhereBuilder()
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
