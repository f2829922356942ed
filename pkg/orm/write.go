package orm

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"time"

	"github.com/marshallshelly/setlistdb/pkg/builder"
	"github.com/marshallshelly/setlistdb/pkg/query"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// run executes fn in a transaction when nested writes need one, and
// directly otherwise.
func (m *model) run(ctx context.Context, needTx bool, fn func(ctx context.Context, tm *model) error) error {
	if !needTx {
		return fn(ctx, m)
	}
	return m.db.inTx(ctx, func(ctx context.Context, tx *DB) error {
		return fn(ctx, tx.model(m.table))
	})
}

func (m *model) create(ctx context.Context, args *query.CreateArgs) (item reflect.Value, err error) {
	defer m.observe(OpCreate, time.Now(), one(&item), &err)
	if args == nil {
		args = &query.CreateArgs{}
	}
	if err = args.Validate(); err != nil {
		return item, err
	}
	p, err := m.projection(args.Select, args.Include, "")
	if err != nil {
		return item, err
	}
	_, writes, err := builder.SplitData(m.table, args.Data, "data")
	if err != nil {
		return item, err
	}

	err = m.run(ctx, len(writes) > 0, func(ctx context.Context, tm *model) error {
		v, err := tm.insertOne(ctx, args.Data, "data")
		if err != nil {
			return err
		}
		if err := tm.finish(ctx, []reflect.Value{v}, p); err != nil {
			return err
		}
		item = v
		return nil
	})
	return item, err
}

func (m *model) createMany(ctx context.Context, args *query.CreateManyArgs) (n int64, err error) {
	defer m.observe(OpCreateMany, time.Now(), affected(&n), &err)
	if args == nil || len(args.Data) == 0 {
		return 0, nil
	}
	q, err := m.insertMany(args.Data, args.SkipDuplicates)
	if err != nil {
		return 0, err
	}
	return m.exec(ctx, q)
}

func (m *model) createManyAndReturn(ctx context.Context, args *query.CreateManyAndReturnArgs) (items []reflect.Value, err error) {
	defer m.observe(OpCreateManyAndReturn, time.Now(), many(&items), &err)
	if args == nil {
		args = &query.CreateManyAndReturnArgs{}
	}
	if err = args.Validate(); err != nil {
		return nil, err
	}
	p, err := m.projection(args.Select, nil, "")
	if err != nil {
		return nil, err
	}
	if len(args.Data) == 0 {
		return []reflect.Value{}, nil
	}
	q, err := m.insertMany(args.Data, args.SkipDuplicates)
	if err != nil {
		return nil, err
	}
	items, err = m.fetch(ctx, q.Returning(builder.ReturningColumns(m.table)...))
	if err != nil {
		return nil, err
	}
	if err = m.finish(ctx, items, p); err != nil {
		return nil, err
	}
	return items, nil
}

// insertMany builds one INSERT for every row. Nested writes are rejected.
func (m *model) insertMany(data []query.Data, skipDuplicates bool) (*builder.InsertQuery, error) {
	now := m.db.now()
	rows := make([]map[string]any, 0, len(data))
	for i, d := range data {
		path := fmt.Sprintf("data.%d", i)
		_, writes, err := builder.SplitData(m.table, d, path)
		if err != nil {
			return nil, err
		}
		if len(writes) > 0 {
			return nil, runtime.Invalid(writes[0].Path, "nested writes are not supported in bulk inserts")
		}
		row, err := builder.CreateRow(m.table, d, now, path)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	q := builder.InsertRows(m.table, rows)
	if skipDuplicates {
		q.OnConflictDoNothing()
	}
	return q, nil
}

// insertOne creates one row with its nested writes. Parents referenced by
// belongsTo writes are resolved first so the foreign key can be set;
// children are written after the row exists.
func (m *model) insertOne(ctx context.Context, data query.Data, path string) (reflect.Value, error) {
	scalars, writes, err := builder.SplitData(m.table, data, path)
	if err != nil {
		return reflect.Value{}, err
	}
	for _, w := range writes {
		if w.Relation.Type == schema.BelongsTo {
			if err := m.writeParent(ctx, scalars, w, false); err != nil {
				return reflect.Value{}, err
			}
		}
	}
	row, err := builder.CreateRow(m.table, scalars, m.db.now(), path)
	if err != nil {
		return reflect.Value{}, err
	}
	q := builder.InsertRows(m.table, []map[string]any{row}).Returning(builder.ReturningColumns(m.table)...)
	items, err := m.fetch(ctx, q)
	if err != nil {
		return reflect.Value{}, err
	}
	if len(items) == 0 {
		return reflect.Value{}, fmt.Errorf("insert into %s returned no row", m.table.Name)
	}
	for _, w := range writes {
		if w.Relation.Type != schema.BelongsTo {
			if err := m.writeChildren(ctx, items[0], w, false); err != nil {
				return reflect.Value{}, err
			}
		}
	}
	return items[0], nil
}

func (m *model) update(ctx context.Context, args *query.UpdateArgs) (item reflect.Value, err error) {
	defer m.observe(OpUpdate, time.Now(), one(&item), &err)
	if args == nil {
		args = &query.UpdateArgs{}
	}
	if err = args.Validate(); err != nil {
		return item, err
	}
	p, err := m.projection(args.Select, args.Include, "")
	if err != nil {
		return item, err
	}
	_, writes, err := builder.SplitData(m.table, args.Data, "data")
	if err != nil {
		return item, err
	}

	err = m.run(ctx, len(writes) > 0, func(ctx context.Context, tm *model) error {
		v, found, err := tm.updateOne(ctx, args.Where, args.Data, "data")
		if err != nil {
			return err
		}
		if !found {
			return &runtime.NotFoundError{Model: m.name(), Operation: OpUpdate}
		}
		if err := tm.finish(ctx, []reflect.Value{v}, p); err != nil {
			return err
		}
		item = v
		return nil
	})
	return item, err
}

// updateOne updates the row addressed by where and applies nested writes.
// It reports false when no row matched.
func (m *model) updateOne(ctx context.Context, where query.WhereUnique, data query.Data, path string) (reflect.Value, bool, error) {
	scalars, writes, err := builder.SplitData(m.table, data, path)
	if err != nil {
		return reflect.Value{}, false, err
	}
	for _, w := range writes {
		if w.Relation.Type == schema.BelongsTo {
			if err := m.writeParent(ctx, scalars, w, true); err != nil {
				return reflect.Value{}, false, err
			}
		}
	}

	c := m.compiler()
	conds, err := c.WhereUnique(m.table, builder.RootAlias, where)
	if err != nil {
		return reflect.Value{}, false, err
	}
	sets, err := builder.UpdateSets(m.table, scalars, m.db.now(), path)
	if err != nil {
		return reflect.Value{}, false, err
	}
	var q builder.Query
	if len(sets) == 0 {
		q = builder.Select(m.table.Name).As(builder.RootAlias).
			Columns(builder.SelectColumns(m.table, builder.RootAlias)...).Where(conds...)
	} else {
		q = builder.Update(m.table.Name).As(builder.RootAlias).SetAll(sets).
			Where(conds...).Returning(builder.ReturningColumns(m.table)...)
	}
	items, err := m.fetch(ctx, q)
	if err != nil {
		return reflect.Value{}, false, err
	}
	if len(items) == 0 {
		return reflect.Value{}, false, nil
	}
	for _, w := range writes {
		if w.Relation.Type != schema.BelongsTo {
			if err := m.writeChildren(ctx, items[0], w, true); err != nil {
				return reflect.Value{}, false, err
			}
		}
	}
	return items[0], true, nil
}

func (m *model) updateMany(ctx context.Context, args *query.UpdateManyArgs) (n int64, err error) {
	defer m.observe(OpUpdateMany, time.Now(), affected(&n), &err)
	if args == nil {
		args = &query.UpdateManyArgs{}
	}
	scalars, writes, err := builder.SplitData(m.table, args.Data, "data")
	if err != nil {
		return 0, err
	}
	if len(writes) > 0 {
		return 0, runtime.Invalid(writes[0].Path, "nested writes are not supported by updateMany")
	}
	sets, err := builder.UpdateSets(m.table, scalars, m.db.now(), "data")
	if err != nil {
		return 0, err
	}
	if len(sets) == 0 {
		counts, err := m.counts(ctx, &query.CountArgs{Where: args.Where}, nil)
		if err != nil {
			return 0, err
		}
		return counts[query.CountAll], nil
	}
	conds, err := m.compiler().Where(m.table, builder.RootAlias, args.Where)
	if err != nil {
		return 0, err
	}
	return m.exec(ctx, builder.Update(m.table.Name).As(builder.RootAlias).SetAll(sets).Where(conds...))
}

// upsert locks the addressed row, then updates it or creates it, in one
// transaction.
func (m *model) upsert(ctx context.Context, args *query.UpsertArgs) (item reflect.Value, err error) {
	defer m.observe(OpUpsert, time.Now(), one(&item), &err)
	if args == nil {
		args = &query.UpsertArgs{}
	}
	if err = args.Validate(); err != nil {
		return item, err
	}
	p, err := m.projection(args.Select, args.Include, "")
	if err != nil {
		return item, err
	}

	err = m.run(ctx, true, func(ctx context.Context, tm *model) error {
		q, err := tm.compiler().FindUnique(tm.table, args.Where)
		if err != nil {
			return err
		}
		existing, err := tm.fetch(ctx, q.ForUpdate())
		if err != nil {
			return err
		}
		var v reflect.Value
		if len(existing) > 0 {
			var found bool
			v, found, err = tm.updateOne(ctx, args.Where, args.Update, "update")
			if err == nil && !found {
				err = &runtime.NotFoundError{Model: m.name(), Operation: OpUpsert}
			}
		} else {
			v, err = tm.insertOne(ctx, args.Create, "create")
		}
		if err != nil {
			return err
		}
		if err := tm.finish(ctx, []reflect.Value{v}, p); err != nil {
			return err
		}
		item = v
		return nil
	})
	return item, err
}

func (m *model) delete(ctx context.Context, args *query.DeleteArgs) (item reflect.Value, err error) {
	defer m.observe(OpDelete, time.Now(), one(&item), &err)
	if args == nil {
		args = &query.DeleteArgs{}
	}
	if err = args.Validate(); err != nil {
		return item, err
	}
	p, err := m.projection(args.Select, args.Include, "")
	if err != nil {
		return item, err
	}

	// Relations are read before the row goes, since cascades remove them.
	err = m.run(ctx, len(p.loads) > 0, func(ctx context.Context, tm *model) error {
		conds, err := tm.compiler().WhereUnique(tm.table, builder.RootAlias, args.Where)
		if err != nil {
			return err
		}
		del := builder.Delete(tm.table.Name).As(builder.RootAlias).Where(conds...)
		var items []reflect.Value
		if len(p.loads) > 0 {
			sel := builder.Select(tm.table.Name).As(builder.RootAlias).
				Columns(builder.SelectColumns(tm.table, builder.RootAlias)...).Where(conds...).ForUpdate()
			if items, err = tm.fetch(ctx, sel); err != nil {
				return err
			}
			if len(items) == 0 {
				return &runtime.NotFoundError{Model: m.name(), Operation: OpDelete}
			}
			if err := tm.loadRelations(ctx, items, p.loads); err != nil {
				return err
			}
			if _, err := tm.exec(ctx, del); err != nil {
				return err
			}
		} else {
			if items, err = tm.fetch(ctx, del.Returning(builder.ReturningColumns(tm.table)...)); err != nil {
				return err
			}
			if len(items) == 0 {
				return &runtime.NotFoundError{Model: m.name(), Operation: OpDelete}
			}
		}
		if p.keep != nil {
			builder.ZeroFields(items[0], tm.table, p.keep)
		}
		item = items[0]
		return nil
	})
	return item, err
}

func (m *model) deleteMany(ctx context.Context, args *query.DeleteManyArgs) (n int64, err error) {
	defer m.observe(OpDeleteMany, time.Now(), affected(&n), &err)
	var where query.Where
	if args != nil {
		where = args.Where
	}
	conds, err := m.compiler().Where(m.table, builder.RootAlias, where)
	if err != nil {
		return 0, err
	}
	return m.exec(ctx, builder.Delete(m.table.Name).As(builder.RootAlias).Where(conds...))
}

// lookup returns the value of col on the row addressed by where.
func (m *model) lookup(ctx context.Context, where query.WhereUnique, col *schema.ColumnMetadata) (any, bool, error) {
	q, err := m.compiler().FindUnique(m.table, where)
	if err != nil {
		return nil, false, err
	}
	items, err := m.fetch(ctx, q)
	if err != nil || len(items) == 0 {
		return nil, false, err
	}
	v, ok := builder.FieldValue(items[0], col.GoField)
	return v, ok, nil
}

// updateWhere applies data to the row addressed by where and returns the
// number of rows changed.
func (m *model) updateWhere(ctx context.Context, where query.WhereUnique, data query.Data, path string) (int64, error) {
	conds, err := m.compiler().WhereUnique(m.table, builder.RootAlias, where)
	if err != nil {
		return 0, err
	}
	sets, err := builder.UpdateSets(m.table, data, m.db.now(), path)
	if err != nil {
		return 0, err
	}
	if len(sets) == 0 {
		rows, err := m.values(ctx, builder.Select(m.table.Name).As(builder.RootAlias).
			Columns(builder.CountAll()).Where(conds...))
		if err != nil || len(rows) == 0 {
			return 0, err
		}
		n, _ := rows[0][0].(int64)
		return n, nil
	}
	return m.exec(ctx, builder.Update(m.table.Name).As(builder.RootAlias).SetAll(sets).Where(conds...))
}

// writeParent applies a nested write on a belongsTo relation by setting
// the foreign key in scalars.
func (m *model) writeParent(ctx context.Context, scalars query.Data, w builder.RelationWriteOp, update bool) error {
	rel := w.Relation
	target, err := m.db.reg.Target(rel)
	if err != nil {
		return err
	}
	fk := m.table.GetColumn(rel.ForeignKey)
	ref := target.GetColumn(rel.References)
	if fk == nil || ref == nil {
		return fmt.Errorf("relation %s.%s: join columns not found", m.name(), rel.Name)
	}
	if _, set := scalars[fk.Field]; set {
		return runtime.Invalid(w.Path, "cannot set both %s and %s", fk.Field, rel.Name)
	}
	if len(w.Write) != 1 {
		return runtime.Invalid(w.Path, "expected exactly one nested write for relation %s", rel.Name)
	}
	tm := m.db.model(target)

	for key, v := range w.Write {
		p := joinPath(w.Path, key)
		var value any
		switch key {
		case query.WriteConnect:
			where, ok := query.AsWhereUnique(v)
			if !ok {
				return runtime.Invalid(p, "expected a unique selector")
			}
			found := false
			if value, found, err = tm.lookup(ctx, where, ref); err != nil {
				return err
			}
			if !found {
				return &runtime.NotFoundError{Model: target.ModelName, Operation: query.WriteConnect}
			}

		case query.WriteCreate:
			list, ok := query.AsDataList(v)
			if !ok || len(list) != 1 {
				return runtime.Invalid(p, "expected one object")
			}
			created, err := tm.insertOne(ctx, list[0], p)
			if err != nil {
				return err
			}
			value, _ = builder.FieldValue(created, ref.GoField)

		case query.WriteConnectOrCreate:
			list, ok := query.AsConnectOrCreateList(v)
			if !ok || len(list) != 1 {
				return runtime.Invalid(p, "expected one object with where and create")
			}
			found := false
			if value, found, err = tm.lookup(ctx, list[0].Where, ref); err != nil {
				return err
			}
			if !found {
				created, err := tm.insertOne(ctx, list[0].Create, joinPath(p, "create"))
				if err != nil {
					return err
				}
				value, _ = builder.FieldValue(created, ref.GoField)
			}

		case query.WriteUpsert:
			list, ok := query.AsUpsertList(v)
			if !ok || len(list) != 1 {
				return runtime.Invalid(p, "expected one object with where, create and update")
			}
			in := list[0]
			updated, found, err := tm.updateOne(ctx, in.Where, in.Update, joinPath(p, "update"))
			if err != nil {
				return err
			}
			if !found {
				if updated, err = tm.insertOne(ctx, in.Create, joinPath(p, "create")); err != nil {
					return err
				}
			}
			value, _ = builder.FieldValue(updated, ref.GoField)

		case query.WriteDisconnect:
			if !update {
				return runtime.Invalid(p, "disconnect is only valid in updates")
			}
			if on, _ := v.(bool); !on {
				return nil
			}
			if !fk.Nullable {
				return runtime.Invalid(p, "relation %s is required and cannot be disconnected", rel.Name)
			}
			value = nil
		}
		scalars[fk.Field] = value
	}
	return nil
}

// writeChildren applies a nested write on a hasMany or hasOne relation,
// whose foreign key lives on the related rows.
func (m *model) writeChildren(ctx context.Context, parent reflect.Value, w builder.RelationWriteOp, update bool) error {
	rel := w.Relation
	target, err := m.db.reg.Target(rel)
	if err != nil {
		return err
	}
	fk := target.GetColumn(rel.ForeignKey)
	local := m.table.GetColumn(rel.References)
	if fk == nil || local == nil {
		return fmt.Errorf("relation %s.%s: join columns not found", m.name(), rel.Name)
	}
	key, ok := builder.FieldValue(parent, local.GoField)
	if !ok {
		return fmt.Errorf("relation %s.%s: parent has no %s", m.name(), rel.Name, local.Field)
	}
	tm := m.db.model(target)
	link := query.Data{fk.Field: key}
	owned := func(where query.WhereUnique) query.WhereUnique {
		out := query.WhereUnique{}
		maps.Copy(out, where)
		out[fk.Field] = key
		return out
	}
	withLink := func(d query.Data, p string) (query.Data, error) {
		if _, set := d[fk.Field]; set {
			return nil, runtime.Invalid(joinPath(p, fk.Field), "set by the enclosing %s write", rel.Name)
		}
		out := query.Data{}
		maps.Copy(out, d)
		maps.Copy(out, link)
		return out, nil
	}

	for _, op := range sortedKeys(w.Write) {
		v := w.Write[op]
		p := joinPath(w.Path, op)
		switch op {
		case query.WriteConnect:
			list, ok := query.AsWhereUniqueList(v)
			if !ok {
				return runtime.Invalid(p, "expected a unique selector or a list of them")
			}
			for i, where := range list {
				n, err := tm.updateWhere(ctx, where, link, indexPath(p, i, len(list)))
				if err != nil {
					return err
				}
				if n == 0 {
					return &runtime.NotFoundError{Model: target.ModelName, Operation: query.WriteConnect}
				}
			}

		case query.WriteCreate:
			list, ok := query.AsDataList(v)
			if !ok {
				return runtime.Invalid(p, "expected an object or a list of objects")
			}
			for i, d := range list {
				ip := indexPath(p, i, len(list))
				data, err := withLink(d, ip)
				if err != nil {
					return err
				}
				if _, err := tm.insertOne(ctx, data, ip); err != nil {
					return err
				}
			}

		case query.WriteConnectOrCreate:
			list, ok := query.AsConnectOrCreateList(v)
			if !ok {
				return runtime.Invalid(p, "expected objects with where and create")
			}
			for i, in := range list {
				ip := indexPath(p, i, len(list))
				n, err := tm.updateWhere(ctx, in.Where, link, ip)
				if err != nil {
					return err
				}
				if n > 0 {
					continue
				}
				data, err := withLink(in.Create, joinPath(ip, "create"))
				if err != nil {
					return err
				}
				if _, err := tm.insertOne(ctx, data, joinPath(ip, "create")); err != nil {
					return err
				}
			}

		case query.WriteUpsert:
			if !update {
				return runtime.Invalid(p, "upsert is only valid in updates")
			}
			list, ok := query.AsUpsertList(v)
			if !ok {
				return runtime.Invalid(p, "expected objects with where, create and update")
			}
			for i, in := range list {
				ip := indexPath(p, i, len(list))
				_, found, err := tm.updateOne(ctx, owned(in.Where), in.Update, joinPath(ip, "update"))
				if err != nil {
					return err
				}
				if found {
					continue
				}
				data, err := withLink(in.Create, joinPath(ip, "create"))
				if err != nil {
					return err
				}
				if _, err := tm.insertOne(ctx, data, joinPath(ip, "create")); err != nil {
					return err
				}
			}

		case query.WriteDisconnect:
			if !update {
				return runtime.Invalid(p, "disconnect is only valid in updates")
			}
			if !fk.Nullable {
				return runtime.Invalid(p, "relation %s is required and cannot be disconnected", rel.Name)
			}
			unlink := query.Data{fk.Field: nil}
			if !rel.Type.IsToMany() {
				if on, _ := v.(bool); !on {
					continue
				}
				conds, err := tm.compiler().Where(target, builder.RootAlias, query.Where{fk.Field: key})
				if err != nil {
					return err
				}
				sets, err := builder.UpdateSets(target, unlink, m.db.now(), p)
				if err != nil {
					return err
				}
				if _, err := tm.exec(ctx, builder.Update(target.Name).As(builder.RootAlias).SetAll(sets).Where(conds...)); err != nil {
					return err
				}
				continue
			}
			list, ok := query.AsWhereUniqueList(v)
			if !ok {
				return runtime.Invalid(p, "expected a unique selector or a list of them")
			}
			for i, where := range list {
				if _, err := tm.updateWhere(ctx, owned(where), unlink, indexPath(p, i, len(list))); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
