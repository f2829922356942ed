package orm

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/marshallshelly/setlistdb/pkg/builder"
	"github.com/marshallshelly/setlistdb/pkg/query"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// projection is a resolved select or include: the scalar fields to keep
// and the relations to load.
type projection struct {
	keep  map[string]bool // nil keeps every scalar field
	loads []load
}

// load is one relation to read eagerly. args is nil when the relation is
// loaded without arguments.
type load struct {
	rel  *schema.RelationshipMetadata
	args *query.FindManyArgs
	path string
}

func (m *model) projection(sel query.Select, inc query.Include, path string) (*projection, error) {
	if err := query.CheckProjection(sel, inc); err != nil {
		return nil, err
	}
	p := &projection{}

	if len(sel) > 0 {
		p.keep = make(map[string]bool, len(sel))
		for _, key := range sortedKeys(sel) {
			kp := joinPath(path, "select."+key)
			if m.table.Field(key) != nil {
				on, ok := sel[key].(bool)
				if !ok {
					return nil, runtime.Invalid(kp, "expected a boolean, got %T", sel[key])
				}
				if on {
					p.keep[key] = true
				}
				continue
			}
			l, on, err := m.nestedLoad(key, sel[key], kp)
			if err != nil {
				return nil, err
			}
			if on {
				p.loads = append(p.loads, l)
			}
		}
	}

	for _, key := range sortedKeys(inc) {
		kp := joinPath(path, "include."+key)
		l, on, err := m.nestedLoad(key, inc[key], kp)
		if err != nil {
			return nil, err
		}
		if on {
			p.loads = append(p.loads, l)
		}
	}
	return p, nil
}

func (m *model) nestedLoad(key string, v any, path string) (load, bool, error) {
	rel := m.table.Relation(key)
	if rel == nil {
		return load{}, false, runtime.Invalid(path, "unknown relation %q on model %s", key, m.name())
	}
	args, on, err := query.Nested(v)
	if err != nil {
		if runtime.IsValidation(err) {
			return load{}, false, err
		}
		return load{}, false, runtime.Invalid(path, "%v", err)
	}
	if err := args.Validate(); err != nil {
		return load{}, false, err
	}
	return load{rel: rel, args: args, path: path}, on, nil
}

// finish loads the requested relations onto items, then clears the scalar
// fields left out of a select. Keys are cleared last because loading reads
// them.
func (m *model) finish(ctx context.Context, items []reflect.Value, p *projection) error {
	if len(items) == 0 || p == nil {
		return nil
	}
	if err := m.loadRelations(ctx, items, p.loads); err != nil {
		return err
	}
	if p.keep != nil {
		for _, item := range items {
			builder.ZeroFields(item, m.table, p.keep)
		}
	}
	return nil
}

// loadRelations loads each relation with one query per relation. On a pool
// the relations load concurrently; a transaction has one connection, so
// they load in order.
func (m *model) loadRelations(ctx context.Context, items []reflect.Value, loads []load) error {
	if len(loads) == 0 {
		return nil
	}
	if m.db.InTransaction() || len(loads) == 1 {
		for _, l := range loads {
			if err := m.loadRelation(ctx, items, l); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range loads {
		g.Go(func() error {
			return m.loadRelation(gctx, items, l)
		})
	}
	return g.Wait()
}

// paginated reports whether nested arguments page per parent row.
func paginated(args *query.FindManyArgs) bool {
	return args.Take != nil || args.Skip != nil || len(args.Cursor) > 0 || len(args.Distinct) > 0
}

func (m *model) loadRelation(ctx context.Context, items []reflect.Value, l load) error {
	target, err := m.db.reg.Target(l.rel)
	if err != nil {
		return err
	}
	local := m.table.GetColumn(l.rel.LocalColumn())
	remote := target.GetColumn(l.rel.RemoteColumn())
	if local == nil || remote == nil {
		return fmt.Errorf("relation %s.%s: join columns not found", m.name(), l.rel.Name)
	}
	args := l.args
	if args == nil {
		args = &query.FindManyArgs{}
	}
	tm := m.db.model(target)
	nested, err := tm.projection(args.Select, args.Include, l.path)
	if err != nil {
		return err
	}

	idx := builder.IndexBy(items, local)
	byKey := make(map[any][]reflect.Value, len(idx.Keys))
	var related []reflect.Value

	switch {
	case len(idx.Keys) == 0:
	case l.rel.Type.IsToMany() && paginated(args):
		// take, skip, cursor and distinct apply to each parent's rows.
		for _, key := range idx.Keys {
			rows, err := tm.related(ctx, args, remote, key, l.path)
			if err != nil {
				return err
			}
			byKey[key] = rows
			related = append(related, rows...)
		}
	default:
		rows, err := tm.relatedBatch(ctx, args, remote, idx.Keys, l.path)
		if err != nil {
			return err
		}
		ri := builder.IndexBy(rows, remote)
		for key, positions := range ri.Rows {
			for _, i := range positions {
				byKey[key] = append(byKey[key], rows[i])
			}
		}
		related = rows
	}

	for _, item := range items {
		var rows []reflect.Value
		if key, ok := builder.FieldValue(item, local.GoField); ok {
			rows = byKey[key]
		}
		if err := builder.AssignRelation(item, l.rel, rows); err != nil {
			return err
		}
	}
	return tm.finish(ctx, related, nested)
}

// relatedBatch reads the rows of m whose remote column is one of keys.
func (m *model) relatedBatch(ctx context.Context, args *query.FindManyArgs, remote *schema.ColumnMetadata, keys []any, path string) ([]reflect.Value, error) {
	list, err := builder.CoerceList(remote, keys, path)
	if err != nil {
		return nil, err
	}
	plan, err := m.compiler().FindMany(m.table, builder.Page{Where: args.Where, OrderBy: args.OrderBy})
	if err != nil {
		return nil, err
	}
	plan.Query.Where(builder.Any(builder.Column(builder.RootAlias, remote.Name), list))
	return m.fetch(ctx, plan.Query)
}

// related reads one parent's page of rows.
func (m *model) related(ctx context.Context, args *query.FindManyArgs, remote *schema.ColumnMetadata, key any, path string) ([]reflect.Value, error) {
	page := pageOf(args)
	link := query.Where{remote.Field: key}
	if len(args.Where) > 0 {
		page.Where = query.Where{query.KeyAND: []query.Where{args.Where, link}}
	} else {
		page.Where = link
	}
	plan, err := m.compiler().FindMany(m.table, page)
	if err != nil {
		return nil, err
	}
	rows, err := m.fetch(ctx, plan.Query)
	if err != nil {
		return nil, err
	}
	if plan.Reverse {
		slices.Reverse(rows)
	}
	return rows, nil
}
