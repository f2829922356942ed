package orm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/marshallshelly/setlistdb/pkg/query"
	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// Model runs operations by name with untyped arguments, as decoded from
// JSON. Results are maps keyed by field name that honor select and include.
type Model struct {
	m *model
}

// Model returns the dynamic handle for a model name such as "Artist".
func (db *DB) Model(name string) (*Model, error) {
	t, err := db.reg.GetByModel(name)
	if err != nil {
		return nil, err
	}
	return &Model{m: db.model(t)}, nil
}

// Name returns the model name.
func (mm *Model) Name() string {
	return mm.m.name()
}

// Table returns the model's metadata.
func (mm *Model) Table() *schema.TableMetadata {
	return mm.m.table
}

// Exec runs op with args. Single-row operations return map[string]any or
// nil, list operations []map[string]any, batch writes and count an int64,
// aggregate *query.AggregateResult and groupBy []query.GroupByRow.
func (mm *Model) Exec(ctx context.Context, op string, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	m := mm.m

	switch op {
	case OpFindUnique, OpFindUniqueOrThrow:
		a, err := query.DecodeFindUnique(args)
		if err != nil {
			return nil, err
		}
		v, err := m.findUnique(ctx, a, op == OpFindUniqueOrThrow)
		if err != nil {
			return nil, err
		}
		return m.shapeOne(v, a.Select, a.Include)

	case OpFindFirst, OpFindFirstOrThrow:
		a, err := query.DecodeFindMany(args)
		if err != nil {
			return nil, err
		}
		v, err := m.findFirst(ctx, a, op == OpFindFirstOrThrow)
		if err != nil {
			return nil, err
		}
		return m.shapeOne(v, a.Select, a.Include)

	case OpFindMany:
		a, err := query.DecodeFindMany(args)
		if err != nil {
			return nil, err
		}
		items, err := m.findMany(ctx, a)
		if err != nil {
			return nil, err
		}
		return m.shapeMany(items, a.Select, a.Include)

	case OpCreate:
		a, err := query.DecodeCreate(args)
		if err != nil {
			return nil, err
		}
		v, err := m.create(ctx, a)
		if err != nil {
			return nil, err
		}
		return m.shapeOne(v, a.Select, a.Include)

	case OpCreateMany:
		a, err := query.DecodeCreateMany(args)
		if err != nil {
			return nil, err
		}
		return m.createMany(ctx, a)

	case OpCreateManyAndReturn:
		a, err := query.DecodeCreateManyAndReturn(args)
		if err != nil {
			return nil, err
		}
		items, err := m.createManyAndReturn(ctx, a)
		if err != nil {
			return nil, err
		}
		return m.shapeMany(items, a.Select, nil)

	case OpUpdate:
		a, err := query.DecodeUpdate(args)
		if err != nil {
			return nil, err
		}
		v, err := m.update(ctx, a)
		if err != nil {
			return nil, err
		}
		return m.shapeOne(v, a.Select, a.Include)

	case OpUpdateMany:
		a, err := query.DecodeUpdateMany(args)
		if err != nil {
			return nil, err
		}
		return m.updateMany(ctx, a)

	case OpUpsert:
		a, err := query.DecodeUpsert(args)
		if err != nil {
			return nil, err
		}
		v, err := m.upsert(ctx, a)
		if err != nil {
			return nil, err
		}
		return m.shapeOne(v, a.Select, a.Include)

	case OpDelete:
		a, err := query.DecodeDelete(args)
		if err != nil {
			return nil, err
		}
		v, err := m.delete(ctx, a)
		if err != nil {
			return nil, err
		}
		return m.shapeOne(v, a.Select, a.Include)

	case OpDeleteMany:
		a, err := query.DecodeDeleteMany(args)
		if err != nil {
			return nil, err
		}
		return m.deleteMany(ctx, a)

	case OpAggregate:
		a, err := query.DecodeAggregate(args)
		if err != nil {
			return nil, err
		}
		return m.aggregate(ctx, a)

	case OpGroupBy:
		a, err := query.DecodeGroupBy(args)
		if err != nil {
			return nil, err
		}
		return m.groupBy(ctx, a)

	case OpCount:
		a, err := query.DecodeCount(args)
		if err != nil {
			return nil, err
		}
		if len(a.Select) > 0 {
			return m.countFields(ctx, a)
		}
		return m.count(ctx, a)
	}
	return nil, fmt.Errorf("unknown operation %q", op)
}

func (m *model) shapeOne(v reflect.Value, sel query.Select, inc query.Include) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	p, err := m.projection(sel, inc, "")
	if err != nil {
		return nil, err
	}
	return m.shape(v, p)
}

func (m *model) shapeMany(items []reflect.Value, sel query.Select, inc query.Include) (any, error) {
	p, err := m.projection(sel, inc, "")
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		row, err := m.shape(item, p)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// shape converts a loaded struct into a map holding the projected scalar
// fields and the loaded relations.
func (m *model) shape(item reflect.Value, p *projection) (map[string]any, error) {
	for item.Kind() == reflect.Ptr {
		item = item.Elem()
	}
	out := make(map[string]any, len(m.table.Columns)+len(p.loads))
	for _, col := range m.table.Columns {
		if p.keep != nil && !p.keep[col.Field] {
			continue
		}
		out[col.Field] = plain(item.FieldByName(col.GoField))
	}

	for _, l := range p.loads {
		target, err := m.db.reg.Target(l.rel)
		if err != nil {
			return nil, err
		}
		tm := m.db.model(target)
		args := l.args
		if args == nil {
			args = &query.FindManyArgs{}
		}
		nested, err := tm.projection(args.Select, args.Include, l.path)
		if err != nil {
			return nil, err
		}

		field := item.FieldByName(l.rel.SourceField)
		if l.rel.Type.IsToMany() {
			rows := make([]map[string]any, 0, field.Len())
			for i := 0; i < field.Len(); i++ {
				row, err := tm.shape(field.Index(i), nested)
				if err != nil {
					return nil, err
				}
				rows = append(rows, row)
			}
			out[l.rel.Name] = rows
			continue
		}
		if field.Kind() == reflect.Ptr && field.IsNil() {
			out[l.rel.Name] = nil
			continue
		}
		row, err := tm.shape(field, nested)
		if err != nil {
			return nil, err
		}
		out[l.rel.Name] = row
	}
	return out, nil
}

func plain(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}
