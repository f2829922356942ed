// Package builder renders PostgreSQL statements and compiles the query
// argument shapes of package query into them.
//
// Statements are assembled from Conditions and rendered with `?`
// placeholders; ToSQL renumbers them to `$n` so fragments can be nested
// freely (EXISTS subqueries, cursor subqueries, FROM subqueries).
package builder

// Query represents a renderable statement.
type Query interface {
	// ToSQL generates the SQL query and parameter values.
	ToSQL() (sql string, args []any, err error)
}

// Condition represents a WHERE/HAVING condition.
type Condition struct {
	Column   string
	Operator Operator
	Value    any
	Logic    LogicOperator
	Not      bool
	Group    []Condition // For grouped conditions
	Raw      bool        // true if Value should be used as raw SQL instead of parameterized
	Args     []any       // bound to the `?` placeholders of OpExpr and OpExists
}

// OrderBy represents an ORDER BY clause.
type OrderBy struct {
	Column    string
	Direction OrderDirection
	NullsPos  NullsPosition
}

// OnConflict represents an ON CONFLICT clause.
type OnConflict struct {
	Columns []string
	Action  ConflictAction
}

// Expr is a SQL fragment with `?` placeholders. It is accepted wherever a
// value is: insert rows, update sets and raw conditions.
type Expr struct {
	SQL  string
	Args []any
}

// Raw builds an Expr.
func Raw(sql string, args ...any) Expr {
	return Expr{SQL: sql, Args: args}
}

// Default is the DEFAULT keyword in an insert row.
var Default = Expr{SQL: "DEFAULT"}

// Operator represents a comparison operator.
type Operator string

const (
	// OpEqual represents the = operator.
	OpEqual Operator = "="
	// OpNotEqual represents the <> operator.
	OpNotEqual Operator = "<>"
	// OpGreaterThan represents the > operator.
	OpGreaterThan Operator = ">"
	// OpGreaterThanOrEqual represents the >= operator.
	OpGreaterThanOrEqual Operator = ">="
	// OpLessThan represents the < operator.
	OpLessThan Operator = "<"
	// OpLessThanOrEqual represents the <= operator.
	OpLessThanOrEqual Operator = "<="
	// OpIn represents the IN operator.
	OpIn Operator = "IN"
	// OpNotIn represents the NOT IN operator.
	OpNotIn Operator = "NOT IN"
	// OpLike represents the LIKE operator.
	OpLike Operator = "LIKE"
	// OpILike represents the ILIKE operator (case-insensitive).
	OpILike Operator = "ILIKE"
	// OpIsNull represents the IS NULL operator.
	OpIsNull Operator = "IS NULL"
	// OpIsNotNull represents the IS NOT NULL operator.
	OpIsNotNull Operator = "IS NOT NULL"
	// OpExists represents the EXISTS operator.
	OpExists Operator = "EXISTS"
	// OpAny compares against every element of an array parameter.
	OpAny Operator = "= ANY"
	// OpExpr is a raw SQL fragment carried in Value with Args.
	OpExpr Operator = "EXPR"

	// Array and JSONB operators.
	OpContains Operator = "@>"
	OpOverlap  Operator = "&&"
)

// LogicOperator represents a logical operator (AND/OR).
type LogicOperator string

const (
	// LogicAnd represents the AND operator.
	LogicAnd LogicOperator = "AND"
	// LogicOr represents the OR operator.
	LogicOr LogicOperator = "OR"
)

// OrderDirection represents the sort direction.
type OrderDirection string

const (
	// Asc represents ascending order.
	Asc OrderDirection = "ASC"
	// Desc represents descending order.
	Desc OrderDirection = "DESC"
)

// NullsPosition represents NULL positioning in ORDER BY.
type NullsPosition string

const (
	// NullsFirst positions NULL values first.
	NullsFirst NullsPosition = "NULLS FIRST"
	// NullsLast positions NULL values last.
	NullsLast NullsPosition = "NULLS LAST"
	// NullsDefault uses database default NULL positioning.
	NullsDefault NullsPosition = ""
)

// ConflictAction represents the action for ON CONFLICT.
type ConflictAction string

const (
	// DoNothing does nothing on conflict.
	DoNothing ConflictAction = "DO NOTHING"
)
