package builder

import (
	"time"

	"github.com/google/uuid"

	"github.com/marshallshelly/setlistdb/pkg/query"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// RelationWriteOp is a nested write found in create or update data.
type RelationWriteOp struct {
	Relation *schema.RelationshipMetadata
	Write    query.RelationWrite
	Path     string
}

// SplitData separates scalar fields from nested relation writes. Unknown
// keys are rejected.
func SplitData(t *schema.TableMetadata, data query.Data, path string) (query.Data, []RelationWriteOp, error) {
	scalars := make(query.Data, len(data))
	var writes []RelationWriteOp
	for _, key := range sortedKeys(data) {
		v := data[key]
		p := joinPath(path, key)
		if t.Field(key) != nil {
			scalars[key] = v
			continue
		}
		if rel := t.Relation(key); rel != nil {
			rw, ok := query.AsRelationWrite(v)
			if !ok {
				return nil, nil, runtime.Invalid(p, "expected connect, create, connectOrCreate, upsert or disconnect")
			}
			writes = append(writes, RelationWriteOp{Relation: rel, Write: rw, Path: p})
			continue
		}
		return nil, nil, unknownField(p, t, key)
	}
	return scalars, writes, nil
}

// writeValue converts a value assigned to a column on create or update.
// The result may be an Expr.
func writeValue(col *schema.ColumnMetadata, v any, path string) (any, error) {
	if col.IsJSON() {
		if v == nil {
			return nil, runtime.Invalid(path, "use DbNull or JsonNull to store a null JSON value")
		}
		if n, ok := query.AsNullValue(v); ok {
			switch n {
			case query.DbNull:
				if !col.Nullable {
					return nil, runtime.Invalid(path, "field %s cannot be null", col.Field)
				}
				return nil, nil
			case query.JsonNull:
				return Raw("'null'::jsonb"), nil
			default:
				return nil, runtime.Invalid(path, "AnyNull is only valid in filters")
			}
		}
		js, err := JSONParam(v)
		if err != nil {
			return nil, runtime.Invalid(path, "%v", err)
		}
		return Raw("?::jsonb", js), nil
	}

	if deref(v) == nil {
		if !col.Nullable {
			return nil, runtime.Invalid(path, "field %s cannot be null", col.Field)
		}
		return nil, nil
	}
	if col.IsList {
		return CoerceList(col, v, path)
	}
	return CoerceScalar(col, v, path)
}

// CreateRow converts create data into column values. Client defaults are
// generated here: uuid() keys and updatedAt timestamps. Columns with a
// database default, and nullable columns, may be missing; any other
// missing column is a validation error.
func CreateRow(t *schema.TableMetadata, data query.Data, now time.Time, path string) (map[string]any, error) {
	for _, key := range sortedKeys(data) {
		if t.Field(key) == nil {
			return nil, unknownField(joinPath(path, key), t, key)
		}
	}

	row := make(map[string]any, len(t.Columns))
	for i := range t.Columns {
		col := &t.Columns[i]
		p := joinPath(path, col.Field)
		v, present := data[col.Field]
		if present {
			if op, ok := query.AsFieldOp(v); ok {
				if op.Op != query.OpSet {
					return nil, runtime.Invalid(p, "%s is only valid in updates", op.Op)
				}
				v = op.Value
			}
			val, err := writeValue(col, v, p)
			if err != nil {
				return nil, err
			}
			row[col.Name] = val
			continue
		}

		switch {
		case col.ClientDefault == "uuid":
			row[col.Name] = uuid.NewString()
		case col.UpdatedAt:
			row[col.Name] = now
		case col.Default != nil, col.Nullable:
		default:
			return nil, runtime.Invalid(p, "required field %s.%s is missing", t.ModelName, col.Field)
		}
	}
	return row, nil
}

// InsertRows builds a multi-row INSERT. The column list is the union of
// the rows' columns in table order; a row missing a column gets DEFAULT.
func InsertRows(t *schema.TableMetadata, rows []map[string]any) *InsertQuery {
	var columns []string
	for _, col := range t.Columns {
		for _, row := range rows {
			if _, ok := row[col.Name]; ok {
				columns = append(columns, col.Name)
				break
			}
		}
	}

	q := Insert(t.Name).Columns(columns...)
	for _, row := range rows {
		values := make([]any, len(columns))
		for i, name := range columns {
			if v, ok := row[name]; ok {
				values[i] = v
			} else {
				values[i] = Default
			}
		}
		q.Values(values...)
	}
	return q
}

var arithmetic = map[string]string{
	query.OpIncrement: "+",
	query.OpDecrement: "-",
	query.OpMultiply:  "*",
	query.OpDivide:    "/",
}

// UpdateSets converts update data into SET clauses in column order.
// updatedAt columns are stamped with now unless data sets them. Data that
// writes no column yields no clauses, so nothing is stamped.
func UpdateSets(t *schema.TableMetadata, data query.Data, now time.Time, path string) ([]SetClause, error) {
	for _, key := range sortedKeys(data) {
		if t.Field(key) == nil {
			return nil, unknownField(joinPath(path, key), t, key)
		}
	}

	if len(data) == 0 {
		return nil, nil
	}

	var sets []SetClause
	for i := range t.Columns {
		col := &t.Columns[i]
		p := joinPath(path, col.Field)
		v, present := data[col.Field]
		if !present {
			if col.UpdatedAt {
				sets = append(sets, SetClause{Column: col.Name, Value: now})
			}
			continue
		}

		op, isOp := query.AsFieldOp(v)
		if !isOp || op.Op == query.OpSet {
			if isOp {
				v = op.Value
			}
			val, err := writeValue(col, v, p)
			if err != nil {
				return nil, err
			}
			sets = append(sets, SetClause{Column: col.Name, Value: val})
			continue
		}

		p = joinPath(p, op.Op)
		quoted := QuoteIdent(col.Name)
		switch {
		case op.IsArithmetic():
			if !col.Kind.IsNumeric() || col.IsList {
				return nil, runtime.Invalid(p, "only numeric fields support %s", op.Op)
			}
			if op.Value == nil {
				return nil, runtime.Invalid(p, "expected a number")
			}
			val, err := CoerceScalar(col, op.Value, p)
			if err != nil {
				return nil, err
			}
			sets = append(sets, SetClause{Column: col.Name, Value: Raw(quoted+" "+arithmetic[op.Op]+" ?", val)})

		case op.Op == query.OpPush:
			if !col.IsList {
				return nil, runtime.Invalid(p, "only list fields support push")
			}
			if _, many := query.AsSlice(op.Value); many {
				val, err := CoerceList(col, op.Value, p)
				if err != nil {
					return nil, err
				}
				sets = append(sets, SetClause{Column: col.Name, Value: ArrayConcat(quoted, val)})
				continue
			}
			if op.Value == nil {
				return nil, runtime.Invalid(p, "cannot push null")
			}
			val, err := CoerceScalar(col, op.Value, p)
			if err != nil {
				return nil, err
			}
			sets = append(sets, SetClause{Column: col.Name, Value: ArrayAppend(quoted, val)})

		default:
			return nil, runtime.Invalid(p, "unknown update operator")
		}
	}
	return sets, nil
}

