package builder

import (
	"fmt"
)

// Subquery represents a subquery that can be used in various parts of a SQL
// statement. SQL uses `?` placeholders.
type Subquery struct {
	SQL   string
	Args  []any
	Alias string
}

// NewSubquery creates a new subquery
func NewSubquery(sql string, args ...any) *Subquery {
	return &Subquery{
		SQL:  sql,
		Args: args,
	}
}

// SubqueryOf renders a SELECT as a subquery.
func SubqueryOf(q *SelectQuery) (*Subquery, error) {
	sql, args, err := q.Fragment()
	if err != nil {
		return nil, err
	}
	return NewSubquery(sql, args...), nil
}

// As sets an alias for the subquery
func (s *Subquery) As(alias string) *Subquery {
	s.Alias = alias
	return s
}

// ToSQL returns the SQL representation of the subquery
func (s *Subquery) ToSQL() (string, []any) {
	if s.Alias != "" {
		return fmt.Sprintf("(%s) AS %s", s.SQL, QuoteIdent(s.Alias)), s.Args
	}
	return fmt.Sprintf("(%s)", s.SQL), s.Args
}

// ExistsSubquery creates an EXISTS condition with a subquery
func ExistsSubquery(subquery *Subquery) Condition {
	return Exists(subquery.SQL, subquery.Args...)
}

// NotExistsSubquery creates a NOT EXISTS condition with a subquery
func NotExistsSubquery(subquery *Subquery) Condition {
	return NotExists(subquery.SQL, subquery.Args...)
}

// CompareSubquery compares an expression with a scalar subquery.
func CompareSubquery(expr string, op Operator, subquery *Subquery) Condition {
	sql, args := subquery.ToSQL()
	return ExprCond(fmt.Sprintf("%s %s %s", expr, op, sql), args...)
}
