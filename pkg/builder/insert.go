package builder

import (
	"fmt"
	"strings"
)

// InsertQuery represents an INSERT statement.
type InsertQuery struct {
	table      string
	columns    []string
	rows       [][]any
	onConflict *OnConflict
	returning  []string
}

// Insert starts an INSERT into a table. The name is quoted.
func Insert(table string) *InsertQuery {
	return &InsertQuery{table: QuoteIdent(table)}
}

// Columns sets the column names (unquoted).
func (q *InsertQuery) Columns(columns ...string) *InsertQuery {
	q.columns = columns
	return q
}

// Values appends one row. Values may be Expr, for instance Default.
func (q *InsertQuery) Values(values ...any) *InsertQuery {
	q.rows = append(q.rows, values)
	return q
}

// Returning specifies columns to return after insert.
func (q *InsertQuery) Returning(columns ...string) *InsertQuery {
	q.returning = columns
	return q
}

// OnConflictDoNothing adds ON CONFLICT DO NOTHING clause.
func (q *InsertQuery) OnConflictDoNothing(columns ...string) *InsertQuery {
	q.onConflict = &OnConflict{
		Columns: columns,
		Action:  DoNothing,
	}
	return q
}

// ToSQL generates the INSERT SQL and arguments.
func (q *InsertQuery) ToSQL() (string, []any, error) {
	if len(q.rows) == 0 {
		return "", nil, fmt.Errorf("no values to insert")
	}

	var sql strings.Builder
	var args []any

	sql.WriteString("INSERT INTO ")
	sql.WriteString(q.table)

	if len(q.columns) == 0 {
		if len(q.rows) > 1 {
			return "", nil, fmt.Errorf("multi-row insert requires columns")
		}
		sql.WriteString(" DEFAULT VALUES")
	} else {
		quoted := make([]string, len(q.columns))
		for i, c := range q.columns {
			quoted[i] = QuoteIdent(c)
		}
		sql.WriteString(" (")
		sql.WriteString(strings.Join(quoted, ", "))
		sql.WriteString(") VALUES ")

		valueClauses := make([]string, len(q.rows))
		for i, row := range q.rows {
			if len(row) != len(q.columns) {
				return "", nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(q.columns))
			}
			placeholders := make([]string, len(row))
			for j, v := range row {
				if e, ok := v.(Expr); ok {
					placeholders[j] = e.SQL
					args = append(args, e.Args...)
					continue
				}
				placeholders[j] = "?"
				args = append(args, v)
			}
			valueClauses[i] = "(" + strings.Join(placeholders, ", ") + ")"
		}
		sql.WriteString(strings.Join(valueClauses, ", "))
	}

	// ON CONFLICT clause
	if q.onConflict != nil {
		sql.WriteString(" ON CONFLICT")
		if len(q.onConflict.Columns) > 0 {
			quoted := make([]string, len(q.onConflict.Columns))
			for i, c := range q.onConflict.Columns {
				quoted[i] = QuoteIdent(c)
			}
			sql.WriteString(" (")
			sql.WriteString(strings.Join(quoted, ", "))
			sql.WriteString(")")
		}
		sql.WriteString(" ")
		sql.WriteString(string(q.onConflict.Action))
	}

	// RETURNING clause
	if len(q.returning) > 0 {
		sql.WriteString(" RETURNING ")
		sql.WriteString(strings.Join(q.returning, ", "))
	}

	return Rebind(sql.String(), 1), args, nil
}
