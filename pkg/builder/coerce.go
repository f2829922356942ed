package builder

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"time"

	"github.com/goccy/go-json"

	"github.com/marshallshelly/setlistdb/pkg/query"
	"github.com/marshallshelly/setlistdb/pkg/runtime"
	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// Values arrive as Go literals or decoded JSON (float64, json.Number,
// RFC 3339 strings). They are converted to the column's kind before they
// reach the driver.

func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

// CoerceScalar converts v to the Go representation of a scalar column.
func CoerceScalar(col *schema.ColumnMetadata, v any, path string) (any, error) {
	v = deref(v)
	if v == nil {
		return nil, nil
	}
	out, ok := convertScalar(col.Kind, v)
	if !ok {
		return nil, runtime.Invalid(path, "expected %s, got %T", col.Kind, v)
	}
	if len(col.EnumValues) > 0 {
		if s, ok := out.(string); ok && !slices.Contains(col.EnumValues, s) {
			return nil, runtime.Invalid(path, "%q is not one of %v", s, col.EnumValues)
		}
	}
	return out, nil
}

func convertScalar(kind schema.FieldKind, v any) (any, bool) {
	switch kind {
	case schema.KindString:
		switch s := v.(type) {
		case string:
			return s, true
		case fmt.Stringer:
			return s.String(), true
		}
	case schema.KindInt, schema.KindBigInt:
		return toInt64(v)
	case schema.KindFloat:
		return toFloat64(v)
	case schema.KindBoolean:
		b, ok := v.(bool)
		return b, ok
	case schema.KindDateTime:
		switch t := v.(type) {
		case time.Time:
			return t, true
		case string:
			for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
				if parsed, err := time.Parse(layout, t); err == nil {
					return parsed, true
				}
			}
		}
	case schema.KindBytes:
		switch b := v.(type) {
		case []byte:
			return b, true
		case string:
			return []byte(b), true
		}
	case schema.KindJSON:
		return v, true
	}
	return nil, false
}

func toInt64(v any) (any, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	case float32:
		if float32(int64(n)) == n {
			return int64(n), true
		}
	case float64:
		if float64(int64(n)) == n {
			return int64(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	}
	return nil, false
}

func toFloat64(v any) (any, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f, true
		}
		return nil, false
	}
	if i, ok := toInt64(v); ok {
		return float64(i.(int64)), true
	}
	return nil, false
}

// CoerceList converts v to a typed slice for a list column, so the driver
// encodes it as a PostgreSQL array.
func CoerceList(col *schema.ColumnMetadata, v any, path string) (any, error) {
	v = deref(v)
	if v == nil {
		return nil, nil
	}
	items, ok := query.AsSlice(v)
	if !ok {
		return nil, runtime.Invalid(path, "expected a list, got %T", v)
	}
	converted := make([]any, len(items))
	for i, item := range items {
		out, err := CoerceScalar(col, item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, runtime.Invalid(path, "list elements cannot be null")
		}
		converted[i] = out
	}
	return typedSlice(col.Kind, converted), nil
}

func typedSlice(kind schema.FieldKind, items []any) any {
	switch kind {
	case schema.KindString:
		return typed[string](items)
	case schema.KindInt, schema.KindBigInt:
		return typed[int64](items)
	case schema.KindFloat:
		return typed[float64](items)
	case schema.KindBoolean:
		return typed[bool](items)
	case schema.KindDateTime:
		return typed[time.Time](items)
	}
	return items
}

func typed[T any](items []any) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = item.(T)
	}
	return out
}

// JSONParam encodes a value for a `?::jsonb` parameter. Strings are JSON
// strings; schema.JSON and json.RawMessage are passed through.
func JSONParam(v any) (string, error) {
	switch t := v.(type) {
	case schema.JSON:
		if t == nil {
			return "null", nil
		}
		return string(t), nil
	case json.RawMessage:
		return string(t), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode JSON value: %w", err)
	}
	return string(b), nil
}
