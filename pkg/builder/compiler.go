package builder

import (
	"fmt"
	"sort"

	"github.com/marshallshelly/setlistdb/pkg/registry"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// RootAlias is the alias of the model table in compiled statements.
const RootAlias = "t0"

// Compiler turns query arguments into statements for one model at a time.
// It validates every field and relation name against the registry. A
// Compiler hands out table aliases and is not safe for concurrent use;
// create one per operation.
type Compiler struct {
	reg     *registry.Registry
	aliases int
}

// NewCompiler creates a Compiler resolving relations through reg.
func NewCompiler(reg *registry.Registry) *Compiler {
	return &Compiler{reg: reg}
}

// NextAlias returns a fresh table alias.
func (c *Compiler) NextAlias() string {
	c.aliases++
	return fmt.Sprintf("t%d", c.aliases)
}

// Registry returns the registry the compiler resolves relations with.
func (c *Compiler) Registry() *registry.Registry {
	return c.reg
}

// SelectColumns lists every scalar column of t qualified by alias.
func SelectColumns(t *schema.TableMetadata, alias string) []string {
	cols := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		cols[i] = Column(alias, col.Name)
	}
	return cols
}

// ReturningColumns lists every scalar column of t for a RETURNING clause.
func ReturningColumns(t *schema.TableMetadata) []string {
	cols := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		cols[i] = QuoteIdent(col.Name)
	}
	return cols
}

// target is the left-hand side of a predicate: a column, a JSON path into
// a column or an aggregate expression.
type target struct {
	expr string
	args []any
	col  *schema.ColumnMetadata
}

func columnTarget(alias string, col *schema.ColumnMetadata) target {
	return target{expr: Column(alias, col.Name), col: col}
}

func (tg target) bound(extra ...any) []any {
	out := make([]any, 0, len(tg.args)+len(extra))
	out = append(out, tg.args...)
	return append(out, extra...)
}

var columnConds = map[Operator]func(column string, v any) Condition{
	OpEqual:              Eq,
	OpNotEqual:           NotEq,
	OpGreaterThan:        Gt,
	OpGreaterThanOrEqual: Gte,
	OpLessThan:           Lt,
	OpLessThanOrEqual:    Lte,
	OpLike:               func(column string, v any) Condition { return Like(column, fmt.Sprint(v)) },
	OpILike:              func(column string, v any) Condition { return ILike(column, fmt.Sprint(v)) },
}

func (tg target) compare(op Operator, v any) Condition {
	if len(tg.args) == 0 {
		if cond, ok := columnConds[op]; ok {
			return cond(tg.expr, v)
		}
		return Condition{Column: tg.expr, Operator: op, Value: v, Logic: LogicAnd}
	}
	return ExprCond(fmt.Sprintf("%s %s ?", tg.expr, op), tg.bound(v)...)
}

func (tg target) nullCheck(null bool) Condition {
	if len(tg.args) == 0 {
		if null {
			return IsNull(tg.expr)
		}
		return IsNotNull(tg.expr)
	}
	op := OpIsNull
	if !null {
		op = OpIsNotNull
	}
	return ExprCond(fmt.Sprintf("%s %s", tg.expr, op), tg.args...)
}

func (tg target) in(op Operator, values []any) Condition {
	if len(tg.args) == 0 {
		if op == OpNotIn {
			return NotIn(tg.expr, values...)
		}
		return In(tg.expr, values...)
	}
	if len(values) == 0 {
		if op == OpIn {
			return False()
		}
		return True()
	}
	sql := tg.expr + " " + string(op) + " ("
	for i := range values {
		if i > 0 {
			sql += ", "
		}
		sql += "?"
	}
	return ExprCond(sql+")", tg.bound(values...)...)
}

func (tg target) expr1(format string, v ...any) Condition {
	return ExprCond(fmt.Sprintf(format, tg.expr), tg.bound(v...)...)
}

func unknownField(path string, t *schema.TableMetadata, name string) error {
	return runtime.Invalid(path, "unknown field %q on model %s", name, t.ModelName)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
