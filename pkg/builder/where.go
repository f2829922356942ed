package builder

import (
	"fmt"
	"strconv"
	"strings"
)

// WhereBuilder helps build WHERE clauses.
type WhereBuilder struct {
	conditions []Condition
	paramStart int
	// question renders `?` placeholders instead of `$n`, for fragments
	// embedded in a larger statement.
	question bool
}

// NewWhereBuilder creates a new WhereBuilder.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{
		conditions: make([]Condition, 0),
		paramStart: 1,
	}
}

// NewWhereBuilderWithStart creates a new WhereBuilder with a starting parameter number.
func NewWhereBuilderWithStart(paramStart int) *WhereBuilder {
	return &WhereBuilder{
		conditions: make([]Condition, 0),
		paramStart: paramStart,
	}
}

// NewFragmentBuilder creates a WhereBuilder rendering `?` placeholders.
func NewFragmentBuilder(conditions ...Condition) *WhereBuilder {
	return &WhereBuilder{conditions: conditions, paramStart: 1, question: true}
}

// Add adds a condition to the WHERE clause.
func (w *WhereBuilder) Add(condition ...Condition) {
	w.conditions = append(w.conditions, condition...)
}

// Build generates the WHERE clause SQL and arguments.
func (w *WhereBuilder) Build() (string, []any, error) {
	sql, args, err := w.BuildExpr()
	if err != nil || sql == "" {
		return "", nil, err
	}
	return "WHERE " + sql, args, nil
}

// BuildExpr generates the condition without the WHERE keyword.
func (w *WhereBuilder) BuildExpr() (string, []any, error) {
	if len(w.conditions) == 0 {
		return "", nil, nil
	}
	return w.buildConditions(w.conditions, w.paramStart)
}

func (w *WhereBuilder) param(n int) string {
	if w.question {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

// bind renumbers the `?` placeholders of a fragment.
func (w *WhereBuilder) bind(sql string, paramNum int) string {
	if w.question {
		return sql
	}
	return Rebind(sql, paramNum)
}

// buildConditions recursively builds conditions.
func (w *WhereBuilder) buildConditions(conditions []Condition, paramStart int) (string, []any, error) {
	if len(conditions) == 0 {
		return "", nil, nil
	}

	var parts []string
	var args []any
	paramNum := paramStart

	for i, cond := range conditions {
		var condSQL string
		var condArgs []any
		var err error

		if len(cond.Group) > 0 {
			condSQL, condArgs, err = w.buildConditions(cond.Group, paramNum)
			if err != nil {
				return "", nil, err
			}
			condSQL = "(" + condSQL + ")"
		} else {
			condSQL, condArgs, err = w.buildCondition(cond, paramNum)
			if err != nil {
				return "", nil, err
			}
		}
		if cond.Not {
			if len(cond.Group) > 0 {
				condSQL = "NOT " + condSQL
			} else {
				condSQL = "NOT (" + condSQL + ")"
			}
		}

		// Add logic operator between conditions
		if i > 0 {
			logic := cond.Logic
			if logic == "" {
				logic = LogicAnd
			}
			parts[len(parts)-1] += " " + string(logic)
		}

		parts = append(parts, condSQL)
		args = append(args, condArgs...)
		paramNum += len(condArgs)
	}

	return strings.Join(parts, " "), args, nil
}

// buildCondition builds a single condition.
func (w *WhereBuilder) buildCondition(cond Condition, paramNum int) (string, []any, error) {
	column := cond.Column
	operator := cond.Operator
	value := cond.Value

	switch operator {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual,
		OpLike, OpILike, OpContains, OpOverlap:
		if cond.Raw {
			return fmt.Sprintf("%s %s %v", column, operator, value), nil, nil
		}
		return fmt.Sprintf("%s %s %s", column, operator, w.param(paramNum)), []any{value}, nil

	case OpIn, OpNotIn:
		if cond.Raw {
			return fmt.Sprintf("%s %s %v", column, operator, value), nil, nil
		}
		values, ok := value.([]any)
		if !ok {
			return "", nil, fmt.Errorf("IN/NOT IN operator requires []any value")
		}
		if len(values) == 0 {
			if operator == OpIn {
				return "FALSE", nil, nil
			}
			return "TRUE", nil, nil
		}

		placeholders := make([]string, len(values))
		for i := range values {
			placeholders[i] = w.param(paramNum + i)
		}

		sql := fmt.Sprintf("%s %s (%s)", column, operator, strings.Join(placeholders, ", "))
		return sql, values, nil

	case OpAny:
		return fmt.Sprintf("%s = ANY(%s)", column, w.param(paramNum)), []any{value}, nil

	case OpIsNull:
		return fmt.Sprintf("%s IS NULL", column), nil, nil

	case OpIsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", column), nil, nil

	case OpExists:
		subquery, ok := value.(string)
		if !ok {
			return "", nil, fmt.Errorf("EXISTS operator requires subquery string")
		}
		return fmt.Sprintf("EXISTS (%s)", w.bind(subquery, paramNum)), cond.Args, nil

	case OpExpr:
		expr, ok := value.(string)
		if !ok {
			return "", nil, fmt.Errorf("EXPR operator requires a SQL string")
		}
		return w.bind(expr, paramNum), cond.Args, nil

	default:
		return "", nil, fmt.Errorf("unknown operator: %s", operator)
	}
}

// Rebind replaces each `?` placeholder with `$n`, numbering from start.
func Rebind(sql string, start int) string {
	if !strings.Contains(sql, "?") {
		return sql
	}
	var b strings.Builder
	b.Grow(len(sql) + 8)
	n := start
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(sql[i])
	}
	return b.String()
}

// Helper functions for building conditions

// Eq creates an equality condition.
func Eq(column string, value any) Condition {
	return Condition{
		Column:   column,
		Operator: OpEqual,
		Value:    value,
		Logic:    LogicAnd,
	}
}

// NotEq creates a not-equal condition.
func NotEq(column string, value any) Condition {
	return Condition{
		Column:   column,
		Operator: OpNotEqual,
		Value:    value,
		Logic:    LogicAnd,
	}
}

// Gt creates a greater-than condition.
func Gt(column string, value any) Condition {
	return Condition{
		Column:   column,
		Operator: OpGreaterThan,
		Value:    value,
		Logic:    LogicAnd,
	}
}

// Gte creates a greater-than-or-equal condition.
func Gte(column string, value any) Condition {
	return Condition{
		Column:   column,
		Operator: OpGreaterThanOrEqual,
		Value:    value,
		Logic:    LogicAnd,
	}
}

// Lt creates a less-than condition.
func Lt(column string, value any) Condition {
	return Condition{
		Column:   column,
		Operator: OpLessThan,
		Value:    value,
		Logic:    LogicAnd,
	}
}

// Lte creates a less-than-or-equal condition.
func Lte(column string, value any) Condition {
	return Condition{
		Column:   column,
		Operator: OpLessThanOrEqual,
		Value:    value,
		Logic:    LogicAnd,
	}
}

// In creates an IN condition.
func In(column string, values ...any) Condition {
	return Condition{
		Column:   column,
		Operator: OpIn,
		Value:    values,
		Logic:    LogicAnd,
	}
}

// NotIn creates a NOT IN condition.
func NotIn(column string, values ...any) Condition {
	return Condition{
		Column:   column,
		Operator: OpNotIn,
		Value:    values,
		Logic:    LogicAnd,
	}
}

// Any matches rows whose column equals one element of the array value.
func Any(column string, values any) Condition {
	return Condition{
		Column:   column,
		Operator: OpAny,
		Value:    values,
		Logic:    LogicAnd,
	}
}

// Like creates a LIKE condition.
func Like(column string, pattern string) Condition {
	return Condition{
		Column:   column,
		Operator: OpLike,
		Value:    pattern,
		Logic:    LogicAnd,
	}
}

// ILike creates an ILIKE condition (case-insensitive).
func ILike(column string, pattern string) Condition {
	return Condition{
		Column:   column,
		Operator: OpILike,
		Value:    pattern,
		Logic:    LogicAnd,
	}
}

// IsNull creates an IS NULL condition.
func IsNull(column string) Condition {
	return Condition{
		Column:   column,
		Operator: OpIsNull,
		Logic:    LogicAnd,
	}
}

// IsNotNull creates an IS NOT NULL condition.
func IsNotNull(column string) Condition {
	return Condition{
		Column:   column,
		Operator: OpIsNotNull,
		Logic:    LogicAnd,
	}
}

// Exists creates an EXISTS condition over a subquery rendered with `?`
// placeholders.
func Exists(subquery string, args ...any) Condition {
	return Condition{
		Operator: OpExists,
		Value:    subquery,
		Args:     args,
		Logic:    LogicAnd,
	}
}

// NotExists creates a NOT EXISTS condition.
func NotExists(subquery string, args ...any) Condition {
	return Not(Exists(subquery, args...))
}

// ExprCond wraps a SQL fragment with `?` placeholders.
func ExprCond(sql string, args ...any) Condition {
	return Condition{
		Operator: OpExpr,
		Value:    sql,
		Args:     args,
		Logic:    LogicAnd,
	}
}

// True matches every row.
func True() Condition { return ExprCond("TRUE") }

// False matches no row.
func False() Condition { return ExprCond("FALSE") }

// Or sets the logic operator to OR for the next condition.
func Or(cond Condition) Condition {
	cond.Logic = LogicOr
	return cond
}

// Not negates a condition.
func Not(cond Condition) Condition {
	cond.Not = !cond.Not
	return cond
}

// Group creates a grouped condition joined with AND. An empty group
// matches every row.
func Group(conditions ...Condition) Condition {
	if len(conditions) == 0 {
		return True()
	}
	return Condition{
		Group: conditions,
		Logic: LogicAnd,
	}
}

// AnyOf creates a grouped condition joined with OR. An empty group matches
// no row.
func AnyOf(conditions ...Condition) Condition {
	if len(conditions) == 0 {
		return False()
	}
	group := make([]Condition, len(conditions))
	for i, c := range conditions {
		group[i] = Or(c)
	}
	return Condition{
		Group: group,
		Logic: LogicAnd,
	}
}
