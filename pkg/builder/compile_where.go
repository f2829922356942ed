package builder

import (
	"fmt"
	"strings"

	"github.com/marshallshelly/setlistdb/pkg/query"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// Where compiles a filter on t (aliased as alias) into conditions joined
// with AND.
func (c *Compiler) Where(t *schema.TableMetadata, alias string, w query.Where) ([]Condition, error) {
	return c.where(t, alias, w, "where")
}

func (c *Compiler) where(t *schema.TableMetadata, alias string, w query.Where, path string) ([]Condition, error) {
	var conds []Condition
	for _, key := range sortedKeys(w) {
		v := w[key]
		p := joinPath(path, key)

		switch key {
		case query.KeyAND, query.KeyOR, query.KeyNOT:
			list, ok := query.AsWhereList(v)
			if !ok {
				return nil, runtime.Invalid(p, "expected an object or a list of objects")
			}
			parts := make([]Condition, 0, len(list))
			for i, sub := range list {
				cs, err := c.where(t, alias, sub, fmt.Sprintf("%s[%d]", p, i))
				if err != nil {
					return nil, err
				}
				part := Group(cs...)
				if key == query.KeyNOT {
					part = Not(part)
				}
				parts = append(parts, part)
			}
			if key == query.KeyOR {
				conds = append(conds, AnyOf(parts...))
			} else {
				conds = append(conds, Group(parts...))
			}
			continue
		}

		if col := t.Field(key); col != nil {
			cs, err := c.fieldCondition(columnTarget(alias, col), v, p)
			if err != nil {
				return nil, err
			}
			conds = append(conds, cs...)
			continue
		}
		if rel := t.Relation(key); rel != nil {
			cs, err := c.relationCondition(alias, rel, v, p)
			if err != nil {
				return nil, err
			}
			conds = append(conds, cs...)
			continue
		}
		return nil, unknownField(p, t, key)
	}
	return conds, nil
}

// WhereUnique compiles a unique selector. At least one selector of t must
// be present; other keys filter as in Where.
func (c *Compiler) WhereUnique(t *schema.TableMetadata, alias string, wu query.WhereUnique) ([]Condition, error) {
	return c.whereUnique(t, alias, wu, "where")
}

func (c *Compiler) whereUnique(t *schema.TableMetadata, alias string, wu query.WhereUnique, path string) ([]Condition, error) {
	var conds []Condition
	rest := query.Where{}
	found := false

	for _, key := range sortedKeys(wu) {
		v := wu[key]
		p := joinPath(path, key)
		sel, ok := t.UniqueSelector(key)
		if !ok {
			rest[key] = v
			continue
		}
		if v == nil {
			return nil, runtime.Invalid(p, "unique selector value cannot be null")
		}
		if !sel.Compound {
			if _, isMap := query.AsMap(v); isMap {
				return nil, runtime.Invalid(p, "expected a value, got a filter")
			}
			col := t.Field(key)
			val, err := CoerceScalar(col, v, p)
			if err != nil {
				return nil, err
			}
			conds = append(conds, Eq(Column(alias, col.Name), val))
			found = true
			continue
		}

		m, ok := query.AsMap(v)
		if !ok {
			return nil, runtime.Invalid(p, "expected an object with fields %s", strings.Join(sel.Fields, ", "))
		}
		if len(m) != len(sel.Fields) {
			return nil, runtime.Invalid(p, "expected exactly the fields %s", strings.Join(sel.Fields, ", "))
		}
		for _, f := range sel.Fields {
			fv, present := m[f]
			if !present || fv == nil {
				return nil, runtime.Invalid(joinPath(p, f), "required by the compound unique selector")
			}
			col := t.Field(f)
			val, err := CoerceScalar(col, fv, joinPath(p, f))
			if err != nil {
				return nil, err
			}
			conds = append(conds, Eq(Column(alias, col.Name), val))
		}
		found = true
	}

	if !found {
		names := make([]string, 0)
		for _, s := range t.UniqueSelectors() {
			names = append(names, s.Name)
		}
		return nil, runtime.Invalid(path, "expected at least one of %s for %s", strings.Join(names, ", "), t.ModelName)
	}

	more, err := c.where(t, alias, rest, path)
	if err != nil {
		return nil, err
	}
	return append(conds, more...), nil
}

// fieldCondition compiles the value given for a scalar field: a shorthand
// equality, nil, or a filter object.
func (c *Compiler) fieldCondition(tg target, v any, path string) ([]Condition, error) {
	col := tg.col
	if col.IsJSON() {
		return c.jsonCondition(tg, v, path)
	}
	if v == nil {
		return []Condition{tg.nullCheck(true)}, nil
	}
	if m, ok := query.AsMap(v); ok {
		if col.IsList {
			return c.listFilter(tg, m, path)
		}
		return c.scalarFilter(tg, m, path)
	}
	if col.IsList {
		val, err := CoerceList(col, v, path)
		if err != nil {
			return nil, err
		}
		return []Condition{tg.compare(OpEqual, val)}, nil
	}
	val, err := CoerceScalar(col, v, path)
	if err != nil {
		return nil, err
	}
	return []Condition{tg.compare(OpEqual, val)}, nil
}

func (c *Compiler) scalarFilter(tg target, f map[string]any, path string) ([]Condition, error) {
	col := tg.col
	insensitive := false
	if mode, ok := f[query.OpMode]; ok {
		s := fmt.Sprint(mode)
		switch query.QueryMode(s) {
		case query.ModeInsensitive:
			insensitive = true
		case query.ModeDefault:
		default:
			return nil, runtime.Invalid(joinPath(path, query.OpMode), "expected default or insensitive, got %q", s)
		}
		if insensitive && col.Kind != schema.KindString {
			return nil, runtime.Invalid(joinPath(path, query.OpMode), "only string fields support insensitive mode")
		}
	}

	var conds []Condition
	for _, key := range sortedKeys(f) {
		v := f[key]
		p := joinPath(path, key)

		switch key {
		case query.OpMode:
			continue

		case query.OpEquals:
			if v == nil {
				conds = append(conds, tg.nullCheck(true))
				continue
			}
			val, err := CoerceScalar(col, v, p)
			if err != nil {
				return nil, err
			}
			if insensitive {
				conds = append(conds, tg.expr1("LOWER(%s) = LOWER(?)", val))
			} else {
				conds = append(conds, tg.compare(OpEqual, val))
			}

		case query.OpNot:
			if v == nil {
				conds = append(conds, tg.nullCheck(false))
				continue
			}
			if m, ok := query.AsMap(v); ok {
				inner, err := c.scalarFilter(tg, m, p)
				if err != nil {
					return nil, err
				}
				conds = append(conds, Not(Group(inner...)))
				continue
			}
			val, err := CoerceScalar(col, v, p)
			if err != nil {
				return nil, err
			}
			if insensitive {
				conds = append(conds, tg.expr1("LOWER(%s) <> LOWER(?)", val))
			} else {
				conds = append(conds, tg.compare(OpNotEqual, val))
			}

		case query.OpIn, query.OpNotIn:
			items, ok := query.AsSlice(v)
			if !ok {
				return nil, runtime.Invalid(p, "expected a list")
			}
			vals := make([]any, len(items))
			for i, item := range items {
				val, err := CoerceScalar(col, item, fmt.Sprintf("%s[%d]", p, i))
				if err != nil {
					return nil, err
				}
				vals[i] = val
			}
			op := OpIn
			if key == query.OpNotIn {
				op = OpNotIn
			}
			conds = append(conds, tg.in(op, vals))

		case query.OpLt, query.OpLte, query.OpGt, query.OpGte:
			if !col.Kind.IsOrderable() {
				return nil, runtime.Invalid(p, "%s fields cannot be compared", col.Kind)
			}
			if v == nil {
				return nil, runtime.Invalid(p, "cannot compare with null")
			}
			val, err := CoerceScalar(col, v, p)
			if err != nil {
				return nil, err
			}
			conds = append(conds, tg.compare(comparisonOps[key], val))

		case query.OpContains, query.OpStartsWith, query.OpEndsWith:
			if col.Kind != schema.KindString {
				return nil, runtime.Invalid(p, "only string fields support %s", key)
			}
			s, ok := v.(string)
			if !ok {
				return nil, runtime.Invalid(p, "expected a string, got %T", v)
			}
			op := OpLike
			if insensitive {
				op = OpILike
			}
			conds = append(conds, tg.compare(op, likePattern(key, s)))

		case query.OpIsNull:
			b, ok := v.(bool)
			if !ok {
				return nil, runtime.Invalid(p, "expected a boolean, got %T", v)
			}
			conds = append(conds, tg.nullCheck(b))

		default:
			return nil, runtime.Invalid(p, "unknown filter %q for %s field", key, col.Kind)
		}
	}
	return conds, nil
}

var comparisonOps = map[string]Operator{
	query.OpLt:  OpLessThan,
	query.OpLte: OpLessThanOrEqual,
	query.OpGt:  OpGreaterThan,
	query.OpGte: OpGreaterThanOrEqual,
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(op, s string) string {
	s = likeEscaper.Replace(s)
	switch op {
	case query.OpStartsWith, query.OpStringStartsWith:
		return s + "%"
	case query.OpEndsWith, query.OpStringEndsWith:
		return "%" + s
	default:
		return "%" + s + "%"
	}
}

func (c *Compiler) listFilter(tg target, f map[string]any, path string) ([]Condition, error) {
	col := tg.col
	var conds []Condition
	for _, key := range sortedKeys(f) {
		v := f[key]
		p := joinPath(path, key)

		switch key {
		case query.OpHas:
			if v == nil {
				return nil, runtime.Invalid(p, "cannot search a list for null")
			}
			val, err := CoerceScalar(col, v, p)
			if err != nil {
				return nil, err
			}
			conds = append(conds, ArrayHas(tg.expr, val))

		case query.OpHasEvery, query.OpHasSome:
			val, err := CoerceList(col, v, p)
			if err != nil {
				return nil, err
			}
			if val == nil {
				return nil, runtime.Invalid(p, "expected a list")
			}
			if key == query.OpHasEvery {
				conds = append(conds, ArrayContains(tg.expr, val))
			} else {
				conds = append(conds, ArrayOverlap(tg.expr, val))
			}

		case query.OpIsEmpty:
			b, ok := v.(bool)
			if !ok {
				return nil, runtime.Invalid(p, "expected a boolean, got %T", v)
			}
			conds = append(conds, ArrayIsEmpty(tg.expr, b))

		case query.OpEquals:
			if v == nil {
				conds = append(conds, tg.nullCheck(true))
				continue
			}
			val, err := CoerceList(col, v, p)
			if err != nil {
				return nil, err
			}
			conds = append(conds, tg.compare(OpEqual, val))

		default:
			return nil, runtime.Invalid(p, "unknown list filter %q", key)
		}
	}
	return conds, nil
}

var jsonFilterKeys = map[string]bool{
	query.OpEquals: true, query.OpNot: true, query.OpPath: true,
	query.OpStringContains: true, query.OpStringStartsWith: true,
	query.OpStringEndsWith: true, query.OpArrayContains: true,
}

func asJSONFilter(v any) (map[string]any, bool) {
	if f, ok := v.(query.JSONFilter); ok {
		return f, true
	}
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !jsonFilterKeys[k] {
			return nil, false
		}
	}
	return m, true
}

func (c *Compiler) jsonCondition(tg target, v any, path string) ([]Condition, error) {
	if v == nil {
		return nil, runtime.Invalid(path, "use DbNull, JsonNull or AnyNull to match null JSON values")
	}
	if n, ok := query.AsNullValue(v); ok {
		return []Condition{JSONNullPredicate(tg.expr, tg.args, n, false)}, nil
	}
	if f, ok := asJSONFilter(v); ok {
		return c.jsonFilter(tg, f, path)
	}
	js, err := JSONParam(v)
	if err != nil {
		return nil, runtime.Invalid(path, "%v", err)
	}
	return []Condition{tg.expr1("%s = ?::jsonb", js)}, nil
}

func (c *Compiler) jsonFilter(tg target, f map[string]any, path string) ([]Condition, error) {
	value := tg
	text := target{expr: JSONBPathText(tg.expr, false), args: tg.args, col: tg.col}
	if raw, ok := f[query.OpPath]; ok {
		var segments []string
		if s, ok := raw.(string); ok {
			segments = []string{s}
		} else if items, ok := query.AsSlice(raw); ok {
			for _, item := range items {
				s, ok := item.(string)
				if !ok {
					return nil, runtime.Invalid(joinPath(path, query.OpPath), "expected a list of strings")
				}
				segments = append(segments, s)
			}
		} else {
			return nil, runtime.Invalid(joinPath(path, query.OpPath), "expected a list of strings")
		}
		value = target{expr: JSONBPath(tg.expr), args: tg.bound(segments), col: tg.col}
		text = target{expr: JSONBPathText(tg.expr, true), args: tg.bound(segments), col: tg.col}
	}

	var conds []Condition
	for _, key := range sortedKeys(f) {
		v := f[key]
		p := joinPath(path, key)

		switch key {
		case query.OpPath:
			continue

		case query.OpEquals, query.OpNot:
			negate := key == query.OpNot
			if v == nil {
				return nil, runtime.Invalid(p, "use DbNull, JsonNull or AnyNull to match null JSON values")
			}
			if n, ok := query.AsNullValue(v); ok {
				conds = append(conds, JSONNullPredicate(value.expr, value.args, n, negate))
				continue
			}
			js, err := JSONParam(v)
			if err != nil {
				return nil, runtime.Invalid(p, "%v", err)
			}
			if negate {
				conds = append(conds, value.expr1("%s <> ?::jsonb", js))
			} else {
				conds = append(conds, value.expr1("%s = ?::jsonb", js))
			}

		case query.OpStringContains, query.OpStringStartsWith, query.OpStringEndsWith:
			s, ok := v.(string)
			if !ok {
				return nil, runtime.Invalid(p, "expected a string, got %T", v)
			}
			conds = append(conds, text.compare(OpLike, likePattern(key, s)))

		case query.OpArrayContains:
			if v == nil {
				return nil, runtime.Invalid(p, "expected a value")
			}
			if _, isList := query.AsSlice(v); !isList {
				v = []any{v}
			}
			js, err := JSONParam(v)
			if err != nil {
				return nil, runtime.Invalid(p, "%v", err)
			}
			conds = append(conds, JSONBContains(value.expr, value.args, js))

		default:
			return nil, runtime.Invalid(p, "unknown JSON filter %q", key)
		}
	}
	return conds, nil
}

// relationCondition compiles some/every/none and is/isNot into EXISTS
// subqueries correlated on the relation's join columns.
func (c *Compiler) relationCondition(alias string, rel *schema.RelationshipMetadata, v any, path string) ([]Condition, error) {
	tt, err := c.reg.Target(rel)
	if err != nil {
		return nil, err
	}

	// exists renders EXISTS over the related rows matching w, or NOT EXISTS
	// when absent is set.
	exists := func(w query.Where, negateInner, absent bool, p string) (Condition, error) {
		sub := c.NextAlias()
		link := ExprCond(fmt.Sprintf("%s = %s", Column(sub, rel.RemoteColumn()), Column(alias, rel.LocalColumn())))
		inner, err := c.where(tt, sub, w, p)
		if err != nil {
			return Condition{}, err
		}
		q := Select(tt.Name).As(sub).Columns("1").Where(link)
		if len(inner) > 0 {
			if negateInner {
				q.Where(Not(Group(inner...)))
			} else {
				q.Where(inner...)
			}
		}
		sq, err := SubqueryOf(q)
		if err != nil {
			return Condition{}, err
		}
		if absent {
			return NotExistsSubquery(sq), nil
		}
		return ExistsSubquery(sq), nil
	}

	if v == nil {
		if rel.Type.IsToMany() {
			return nil, runtime.Invalid(path, "expected some, every or none")
		}
		cond, err := exists(nil, false, true, path)
		if err != nil {
			return nil, err
		}
		return []Condition{cond}, nil
	}

	m, ok := query.AsMap(v)
	if !ok {
		return nil, runtime.Invalid(path, "expected a relation filter, got %T", v)
	}

	if !rel.Type.IsToMany() {
		_, hasIs := m[query.OpIs]
		_, hasIsNot := m[query.OpIsNot]
		if !hasIs && !hasIsNot {
			m = map[string]any{query.OpIs: m}
		}
	}

	var conds []Condition
	for _, key := range sortedKeys(m) {
		p := joinPath(path, key)
		var w query.Where
		if m[key] != nil {
			var ok bool
			if w, ok = query.AsWhere(m[key]); !ok {
				return nil, runtime.Invalid(p, "expected an object")
			}
		}

		valid := rel.Type.IsToMany() == (key == query.OpSome || key == query.OpEvery || key == query.OpNone)
		if !valid || (!rel.Type.IsToMany() && key != query.OpIs && key != query.OpIsNot) {
			return nil, runtime.Invalid(p, "unknown filter %q for %s relation %s", key, rel.Type, rel.Name)
		}

		var cond Condition
		var err error
		switch key {
		case query.OpSome:
			cond, err = exists(w, false, false, p)
		case query.OpNone:
			cond, err = exists(w, false, true, p)
		case query.OpEvery:
			cond, err = exists(w, true, true, p)
		case query.OpIs:
			cond, err = exists(w, false, m[key] == nil, p)
		case query.OpIsNot:
			cond, err = exists(w, false, m[key] != nil, p)
		}
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}
