package query

import (
	"fmt"
	"sort"

	"github.com/marshallshelly/setlistdb/pkg/runtime"
)

// The Decode functions turn decoded JSON objects (as produced by the CLI
// and by nested select/include values) into argument structs. Nested
// filters and data stay as maps; the compiler interprets them.

type decoder struct {
	m    map[string]any
	used map[string]bool
	path string
	err  error
}

func newDecoder(m map[string]any, path string) *decoder {
	return &decoder{m: m, used: make(map[string]bool, len(m)), path: path}
}

func (d *decoder) fail(field, format string, args ...any) {
	if d.err == nil {
		d.err = runtime.Invalid(d.path+field, format, args...)
	}
}

func (d *decoder) get(key string) (any, bool) {
	d.used[key] = true
	v, ok := d.m[key]
	return v, ok && v != nil
}

func (d *decoder) mapValue(key string) map[string]any {
	v, ok := d.get(key)
	if !ok {
		return nil
	}
	m, ok := AsMap(v)
	if !ok {
		d.fail(key, "expected an object, got %T", v)
	}
	return m
}

func (d *decoder) where(key string) Where {
	return Where(d.mapValue(key))
}

func (d *decoder) whereUnique(key string) WhereUnique {
	return WhereUnique(d.mapValue(key))
}

func (d *decoder) data(key string) Data {
	return Data(d.mapValue(key))
}

func (d *decoder) dataList(key string) []Data {
	v, ok := d.get(key)
	if !ok {
		return nil
	}
	list, ok := AsDataList(v)
	if !ok {
		d.fail(key, "expected an object or a list of objects")
	}
	return list
}

func (d *decoder) intPtr(key string) *int {
	v, ok := d.get(key)
	if !ok {
		return nil
	}
	n, ok := ToInt(v)
	if !ok {
		d.fail(key, "expected an integer, got %v", v)
		return nil
	}
	return &n
}

func (d *decoder) boolean(key string) bool {
	v, ok := d.get(key)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		d.fail(key, "expected a boolean, got %T", v)
	}
	return b
}

func (d *decoder) strings(key string) []string {
	v, ok := d.get(key)
	if !ok {
		return nil
	}
	if s, ok := v.(string); ok {
		return []string{s}
	}
	items, ok := AsSlice(v)
	if !ok {
		d.fail(key, "expected a list of field names")
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			d.fail(key, "expected a list of field names")
			return nil
		}
		out = append(out, s)
	}
	return out
}

// aggregate reads {"_avg": {"popularity": true}} style selections. _count
// also accepts true, meaning {"_all": true}.
func (d *decoder) aggregate(key string) []string {
	v, ok := d.get(key)
	if !ok {
		return nil
	}
	if b, ok := v.(bool); ok {
		if b && key == AggCount {
			return []string{CountAll}
		}
		if !b {
			return nil
		}
	}
	m, ok := AsMap(v)
	if !ok {
		d.fail(key, "expected an object of field names")
		return nil
	}
	var out []string
	for field, on := range m {
		if b, ok := on.(bool); ok && b {
			out = append(out, field)
		}
	}
	sort.Strings(out)
	return out
}

func (d *decoder) orderBy(key string) OrderBy {
	v, ok := d.get(key)
	if !ok {
		return nil
	}
	order, err := DecodeOrderBy(v)
	if err != nil {
		d.fail(key, "%v", err)
	}
	return order
}

func (d *decoder) projection() (Select, Include) {
	sel := Select(d.mapValue("select"))
	inc := Include(d.mapValue("include"))
	return sel, inc
}

func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	var unknown []string
	for k := range d.m {
		if !d.used[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return runtime.Invalid(d.path+unknown[0], "unknown argument")
	}
	return nil
}

// DecodeOrderBy accepts {"field": "asc"}, {"field": {"sort": "desc",
// "nulls": "last"}} or a list of those.
func DecodeOrderBy(v any) (OrderBy, error) {
	switch t := v.(type) {
	case OrderBy:
		return t, nil
	case Order:
		return OrderBy{t}, nil
	case []Order:
		return t, nil
	}
	var items []any
	if m, ok := v.(map[string]any); ok {
		// A multi-key object has no defined order; sort keys for stability.
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			items = append(items, map[string]any{k: m[k]})
		}
	} else if list, ok := AsSlice(v); ok {
		items = list
	} else {
		return nil, fmt.Errorf("expected an object or a list of objects")
	}

	var out OrderBy
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected an object, got %T", item)
		}
		for field, spec := range m {
			ord := Order{Field: field}
			switch s := spec.(type) {
			case string:
				ord.Sort = SortOrder(s)
			case map[string]any:
				sortVal, _ := s["sort"].(string)
				nulls, _ := s["nulls"].(string)
				ord.Sort, ord.Nulls = SortOrder(sortVal), NullsOrder(nulls)
			default:
				return nil, fmt.Errorf("invalid sort for %s: %v", field, spec)
			}
			if ord.Sort != Asc && ord.Sort != Desc {
				return nil, fmt.Errorf("invalid sort for %s: %q", field, ord.Sort)
			}
			if ord.Nulls != "" && ord.Nulls != NullsFirst && ord.Nulls != NullsLast {
				return nil, fmt.Errorf("invalid nulls for %s: %q", field, ord.Nulls)
			}
			out = append(out, ord)
		}
	}
	return out, nil
}

// DecodeFindUnique decodes findUnique arguments.
func DecodeFindUnique(m map[string]any) (*FindUniqueArgs, error) {
	d := newDecoder(m, "")
	args := &FindUniqueArgs{Where: d.whereUnique("where")}
	args.Select, args.Include = d.projection()
	return args, d.finish()
}

// DecodeFindMany decodes findMany and findFirst arguments.
func DecodeFindMany(m map[string]any) (*FindManyArgs, error) {
	d := newDecoder(m, "")
	args := &FindManyArgs{
		Where:    d.where("where"),
		OrderBy:  d.orderBy("orderBy"),
		Cursor:   d.whereUnique("cursor"),
		Take:     d.intPtr("take"),
		Skip:     d.intPtr("skip"),
		Distinct: d.strings("distinct"),
	}
	args.Select, args.Include = d.projection()
	return args, d.finish()
}

// DecodeCreate decodes create arguments.
func DecodeCreate(m map[string]any) (*CreateArgs, error) {
	d := newDecoder(m, "")
	args := &CreateArgs{Data: d.data("data")}
	args.Select, args.Include = d.projection()
	return args, d.finish()
}

// DecodeCreateMany decodes createMany arguments.
func DecodeCreateMany(m map[string]any) (*CreateManyArgs, error) {
	d := newDecoder(m, "")
	args := &CreateManyArgs{
		Data:           d.dataList("data"),
		SkipDuplicates: d.boolean("skipDuplicates"),
	}
	return args, d.finish()
}

// DecodeCreateManyAndReturn decodes createManyAndReturn arguments.
func DecodeCreateManyAndReturn(m map[string]any) (*CreateManyAndReturnArgs, error) {
	d := newDecoder(m, "")
	args := &CreateManyAndReturnArgs{
		Data:           d.dataList("data"),
		SkipDuplicates: d.boolean("skipDuplicates"),
	}
	args.Select, args.Include = d.projection()
	return args, d.finish()
}

// DecodeUpdate decodes update arguments.
func DecodeUpdate(m map[string]any) (*UpdateArgs, error) {
	d := newDecoder(m, "")
	args := &UpdateArgs{Where: d.whereUnique("where"), Data: d.data("data")}
	args.Select, args.Include = d.projection()
	return args, d.finish()
}

// DecodeUpdateMany decodes updateMany arguments.
func DecodeUpdateMany(m map[string]any) (*UpdateManyArgs, error) {
	d := newDecoder(m, "")
	args := &UpdateManyArgs{Where: d.where("where"), Data: d.data("data")}
	return args, d.finish()
}

// DecodeUpsert decodes upsert arguments.
func DecodeUpsert(m map[string]any) (*UpsertArgs, error) {
	d := newDecoder(m, "")
	args := &UpsertArgs{
		Where:  d.whereUnique("where"),
		Create: d.data("create"),
		Update: d.data("update"),
	}
	args.Select, args.Include = d.projection()
	return args, d.finish()
}

// DecodeDelete decodes delete arguments.
func DecodeDelete(m map[string]any) (*DeleteArgs, error) {
	d := newDecoder(m, "")
	args := &DeleteArgs{Where: d.whereUnique("where")}
	args.Select, args.Include = d.projection()
	return args, d.finish()
}

// DecodeDeleteMany decodes deleteMany arguments.
func DecodeDeleteMany(m map[string]any) (*DeleteManyArgs, error) {
	d := newDecoder(m, "")
	args := &DeleteManyArgs{Where: d.where("where")}
	return args, d.finish()
}

// DecodeCount decodes count arguments. select takes {"_all": true,
// "field": true}.
func DecodeCount(m map[string]any) (*CountArgs, error) {
	d := newDecoder(m, "")
	args := &CountArgs{
		Where:   d.where("where"),
		OrderBy: d.orderBy("orderBy"),
		Cursor:  d.whereUnique("cursor"),
		Take:    d.intPtr("take"),
		Skip:    d.intPtr("skip"),
	}
	if sel := d.mapValue("select"); sel != nil {
		for field, on := range sel {
			if b, ok := on.(bool); ok && b {
				args.Select = append(args.Select, field)
			}
		}
		sort.Strings(args.Select)
	}
	return args, d.finish()
}

// DecodeAggregate decodes aggregate arguments.
func DecodeAggregate(m map[string]any) (*AggregateArgs, error) {
	d := newDecoder(m, "")
	args := &AggregateArgs{
		Where:   d.where("where"),
		OrderBy: d.orderBy("orderBy"),
		Cursor:  d.whereUnique("cursor"),
		Take:    d.intPtr("take"),
		Skip:    d.intPtr("skip"),
		Count:   d.aggregate(AggCount),
		Avg:     d.aggregate(AggAvg),
		Sum:     d.aggregate(AggSum),
		Min:     d.aggregate(AggMin),
		Max:     d.aggregate(AggMax),
	}
	return args, d.finish()
}

// DecodeGroupBy decodes groupBy arguments. having values that are objects
// keyed by _count/_avg/_sum/_min/_max are aggregate filters.
func DecodeGroupBy(m map[string]any) (*GroupByArgs, error) {
	d := newDecoder(m, "")
	args := &GroupByArgs{
		By:      d.strings("by"),
		Where:   d.where("where"),
		OrderBy: d.orderBy("orderBy"),
		Take:    d.intPtr("take"),
		Skip:    d.intPtr("skip"),
		Count:   d.aggregate(AggCount),
		Avg:     d.aggregate(AggAvg),
		Sum:     d.aggregate(AggSum),
		Min:     d.aggregate(AggMin),
		Max:     d.aggregate(AggMax),
	}
	if having := d.mapValue("having"); having != nil {
		args.Having = make(Having, len(having))
		for field, v := range having {
			args.Having[field] = decodeHavingValue(v)
		}
	}
	return args, d.finish()
}

func decodeHavingValue(v any) any {
	if agg, ok := AsHavingAggregate(v); ok {
		return agg
	}
	return v
}
