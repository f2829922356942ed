package query

import (
	"reflect"

	"github.com/goccy/go-json"
)

// AsMap returns v as a plain map when it is one of the map-shaped argument
// types or a decoded JSON object.
func AsMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Where:
		return t, true
	case WhereUnique:
		return t, true
	case Data:
		return t, true
	case Filter:
		return t, true
	case ListFilter:
		return t, true
	case JSONFilter:
		return t, true
	case RelationFilter:
		return t, true
	case RelationWrite:
		return t, true
	case Select:
		return t, true
	case Include:
		return t, true
	case Having:
		return t, true
	}
	return nil, false
}

// AsWhere returns v as a Where. A nil value yields (nil, true).
func AsWhere(v any) (Where, bool) {
	if v == nil {
		return nil, true
	}
	m, ok := AsMap(v)
	return Where(m), ok
}

// AsWhereList returns v as a list of Where; a single Where is a list of one.
func AsWhereList(v any) ([]Where, bool) {
	switch t := v.(type) {
	case []Where:
		return t, true
	case []map[string]any:
		out := make([]Where, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, true
	}
	if w, ok := AsWhere(v); ok && v != nil {
		return []Where{w}, true
	}
	items, ok := AsSlice(v)
	if !ok {
		return nil, false
	}
	out := make([]Where, 0, len(items))
	for _, item := range items {
		w, ok := AsWhere(item)
		if !ok || w == nil {
			return nil, false
		}
		out = append(out, w)
	}
	return out, true
}

// AsWhereUnique returns v as a WhereUnique.
func AsWhereUnique(v any) (WhereUnique, bool) {
	m, ok := AsMap(v)
	return WhereUnique(m), ok
}

// AsSlice returns the elements of any slice or array value except []byte.
func AsSlice(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// AsNullValue recognizes DbNull, JsonNull and AnyNull in Go or JSON form.
func AsNullValue(v any) (NullValue, bool) {
	switch t := v.(type) {
	case NullValue:
		return t, true
	case *NullValue:
		if t != nil {
			return *t, true
		}
	}
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	s, ok := m[NullValueKey].(string)
	if !ok {
		return "", false
	}
	switch n := NullValue(s); n {
	case DbNull, JsonNull, AnyNull:
		return n, true
	}
	return "", false
}

var fieldOps = map[string]bool{
	OpSet: true, OpIncrement: true, OpDecrement: true,
	OpMultiply: true, OpDivide: true, OpPush: true,
}

// AsFieldOp recognizes an update operator: a FieldOp or a single-key JSON
// object such as {"increment": 1}.
func AsFieldOp(v any) (FieldOp, bool) {
	switch t := v.(type) {
	case FieldOp:
		return t, true
	case *FieldOp:
		if t != nil {
			return *t, true
		}
		return FieldOp{}, false
	}
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return FieldOp{}, false
	}
	for k, val := range m {
		if fieldOps[k] {
			return FieldOp{Op: k, Value: val}, true
		}
	}
	return FieldOp{}, false
}

var relationWrites = map[string]bool{
	WriteConnect: true, WriteCreate: true, WriteConnectOrCreate: true,
	WriteUpsert: true, WriteDisconnect: true,
}

// AsRelationWrite recognizes a nested relation write.
func AsRelationWrite(v any) (RelationWrite, bool) {
	if rw, ok := v.(RelationWrite); ok {
		return rw, true
	}
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !relationWrites[k] {
			return nil, false
		}
	}
	return RelationWrite(m), true
}

// AsDataList returns v as a list of Data; a single Data is a list of one.
func AsDataList(v any) ([]Data, bool) {
	switch t := v.(type) {
	case Data:
		return []Data{t}, true
	case []Data:
		return t, true
	case map[string]any:
		return []Data{t}, true
	}
	items, ok := AsSlice(v)
	if !ok {
		return nil, false
	}
	out := make([]Data, 0, len(items))
	for _, item := range items {
		m, ok := AsMap(item)
		if !ok {
			return nil, false
		}
		out = append(out, Data(m))
	}
	return out, true
}

// AsWhereUniqueList returns v as a list of WhereUnique.
func AsWhereUniqueList(v any) ([]WhereUnique, bool) {
	switch t := v.(type) {
	case WhereUnique:
		return []WhereUnique{t}, true
	case []WhereUnique:
		return t, true
	case map[string]any:
		return []WhereUnique{t}, true
	}
	items, ok := AsSlice(v)
	if !ok {
		return nil, false
	}
	out := make([]WhereUnique, 0, len(items))
	for _, item := range items {
		m, ok := AsMap(item)
		if !ok {
			return nil, false
		}
		out = append(out, WhereUnique(m))
	}
	return out, true
}

// AsConnectOrCreateList returns v as a list of ConnectOrCreateInput.
func AsConnectOrCreateList(v any) ([]ConnectOrCreateInput, bool) {
	switch t := v.(type) {
	case ConnectOrCreateInput:
		return []ConnectOrCreateInput{t}, true
	case []ConnectOrCreateInput:
		return t, true
	}
	var items []any
	if m, ok := v.(map[string]any); ok {
		items = []any{m}
	} else if s, ok := AsSlice(v); ok {
		items = s
	} else {
		return nil, false
	}
	out := make([]ConnectOrCreateInput, 0, len(items))
	for _, item := range items {
		if in, ok := item.(ConnectOrCreateInput); ok {
			out = append(out, in)
			continue
		}
		m, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		where, ok1 := AsWhereUnique(m["where"])
		create, ok2 := AsMap(m["create"])
		if !ok1 || !ok2 {
			return nil, false
		}
		out = append(out, ConnectOrCreateInput{Where: where, Create: Data(create)})
	}
	return out, true
}

// AsUpsertList returns v as a list of UpsertInput.
func AsUpsertList(v any) ([]UpsertInput, bool) {
	switch t := v.(type) {
	case UpsertInput:
		return []UpsertInput{t}, true
	case []UpsertInput:
		return t, true
	}
	var items []any
	if m, ok := v.(map[string]any); ok {
		items = []any{m}
	} else if s, ok := AsSlice(v); ok {
		items = s
	} else {
		return nil, false
	}
	out := make([]UpsertInput, 0, len(items))
	for _, item := range items {
		if in, ok := item.(UpsertInput); ok {
			out = append(out, in)
			continue
		}
		m, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		in := UpsertInput{}
		var okW, okC, okU bool
		in.Where, okW = AsWhereUnique(m["where"])
		var create, update map[string]any
		create, okC = AsMap(m["create"])
		update, okU = AsMap(m["update"])
		if !okW || !okC || !okU {
			return nil, false
		}
		in.Create, in.Update = create, update
		out = append(out, in)
	}
	return out, true
}

// ToInt converts a numeric argument (including json.Number) to int.
func ToInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float64:
		if t == float64(int(t)) {
			return int(t), true
		}
	case json.Number:
		n, err := t.Int64()
		if err == nil {
			return int(n), true
		}
	}
	return 0, false
}

// AsHavingAggregate recognizes a having entry keyed only by aggregate
// names, such as {"_avg": {"gt": 50}}.
func AsHavingAggregate(v any) (HavingAggregate, bool) {
	if agg, ok := v.(HavingAggregate); ok {
		return agg, true
	}
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	agg := HavingAggregate{}
	for k, f := range m {
		switch k {
		case AggCount, AggAvg, AggSum, AggMin, AggMax:
			fm, ok := AsMap(f)
			if !ok {
				return nil, false
			}
			agg[k] = Filter(fm)
		default:
			return nil, false
		}
	}
	return agg, true
}
