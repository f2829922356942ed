package builder

import (
	"fmt"

	"github.com/marshallshelly/setlistdb/pkg/query"
)

// PostgreSQL-specific functions and operators

// Array Operators

// ArrayContains checks if array contains every element of value
func ArrayContains(column string, value any) Condition {
	return Condition{
		Column:   column,
		Operator: OpContains,
		Value:    value,
		Logic:    LogicAnd,
	}
}

// ArrayOverlap checks if arrays have common elements
func ArrayOverlap(column string, value any) Condition {
	return Condition{
		Column:   column,
		Operator: OpOverlap,
		Value:    value,
		Logic:    LogicAnd,
	}
}

// ArrayHas checks if array contains a single value
func ArrayHas(column string, value any) Condition {
	return ExprCond(fmt.Sprintf("? = ANY(%s)", column), value)
}

// ArrayIsEmpty checks if array has no elements (true) or at least one
// element (false). NULL arrays match neither.
func ArrayIsEmpty(column string, empty bool) Condition {
	if empty {
		return ExprCond(fmt.Sprintf("cardinality(%s) = 0", column))
	}
	return ExprCond(fmt.Sprintf("cardinality(%s) > 0", column))
}

// ArrayAppend returns the SET expression appending one element.
func ArrayAppend(column string, value any) Expr {
	return Raw(fmt.Sprintf("array_append(%s, ?)", column), value)
}

// ArrayConcat returns the SET expression appending a list; a NULL array
// is treated as empty.
func ArrayConcat(column string, values any) Expr {
	return Raw(fmt.Sprintf("COALESCE(%s, '{}') || ?", column), values)
}

// JSONB Operators

// JSONBPath extracts the value at a path bound as a text[] parameter
// Usage: JSONBPath(`"t0"."data"`) -> ("t0"."data" #> ?)
func JSONBPath(column string) string {
	return fmt.Sprintf("(%s #> ?)", column)
}

// JSONBPathText extracts the value as text, at a bound path or at the root
func JSONBPathText(column string, withPath bool) string {
	if withPath {
		return fmt.Sprintf("(%s #>> ?)", column)
	}
	return fmt.Sprintf("(%s #>> '{}')", column)
}

// JSONBContains checks if left JSONB contains the encoded JSON document
func JSONBContains(expr string, exprArgs []any, document string) Condition {
	args := append(append([]any{}, exprArgs...), document)
	return ExprCond(fmt.Sprintf("%s @> ?::jsonb", expr), args...)
}

// JSONNullPredicate matches SQL NULL (DbNull), the JSON literal null
// (JsonNull) or either (AnyNull). negate inverts the match.
func JSONNullPredicate(expr string, exprArgs []any, null query.NullValue, negate bool) Condition {
	twice := append(append([]any{}, exprArgs...), exprArgs...)
	switch null {
	case query.DbNull:
		if negate {
			return ExprCond(expr+" IS NOT NULL", exprArgs...)
		}
		return ExprCond(expr+" IS NULL", exprArgs...)
	case query.JsonNull:
		if negate {
			return ExprCond(expr+" IS DISTINCT FROM 'null'::jsonb", exprArgs...)
		}
		return ExprCond(expr+" = 'null'::jsonb", exprArgs...)
	default:
		if negate {
			return ExprCond(fmt.Sprintf("(%s IS NOT NULL AND %s <> 'null'::jsonb)", expr, expr), twice...)
		}
		return ExprCond(fmt.Sprintf("(%s IS NULL OR %s = 'null'::jsonb)", expr, expr), twice...)
	}
}

// PostgreSQL Aggregate Functions (for use in SELECT)

// CountAll counts rows
func CountAll() string {
	return "COUNT(*)"
}

// Count counts non-null values
func Count(column string) string {
	return fmt.Sprintf("COUNT(%s)", column)
}

// Avg averages a numeric column as double precision
func Avg(column string) string {
	return fmt.Sprintf("AVG(%s)::float8", column)
}

// Sum sums a numeric column, cast to bigint or double precision
func Sum(column string, integer bool) string {
	if integer {
		return fmt.Sprintf("SUM(%s)::bigint", column)
	}
	return fmt.Sprintf("SUM(%s)::float8", column)
}

// Min returns the smallest value
func Min(column string) string {
	return fmt.Sprintf("MIN(%s)", column)
}

// Max returns the largest value
func Max(column string) string {
	return fmt.Sprintf("MAX(%s)", column)
}
