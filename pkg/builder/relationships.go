package builder

import (
	"fmt"
	"reflect"

	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// Reflection helpers used to stitch eagerly loaded relations onto results.

// FieldValue returns the value of a struct field, dereferencing pointers.
// It reports false for a missing field, a nil pointer or a zero value.
func FieldValue(item reflect.Value, goField string) (any, bool) {
	for item.Kind() == reflect.Ptr {
		if item.IsNil() {
			return nil, false
		}
		item = item.Elem()
	}
	field := item.FieldByName(goField)
	if !field.IsValid() {
		return nil, false
	}
	for field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return nil, false
		}
		field = field.Elem()
	}
	if field.IsZero() {
		return nil, false
	}
	return field.Interface(), true
}

// KeyIndex groups items by the value of one field. Keys keeps the distinct
// values in first-seen order, Rows maps each value to the item indexes.
type KeyIndex struct {
	Keys []any
	Rows map[any][]int
}

// IndexBy builds a KeyIndex over items for the column's Go field. Items
// whose value is nil or zero are left out.
func IndexBy(items []reflect.Value, col *schema.ColumnMetadata) KeyIndex {
	idx := KeyIndex{Rows: make(map[any][]int)}
	for i, item := range items {
		v, ok := FieldValue(item, col.GoField)
		if !ok {
			continue
		}
		if _, seen := idx.Rows[v]; !seen {
			idx.Keys = append(idx.Keys, v)
		}
		idx.Rows[v] = append(idx.Rows[v], i)
	}
	return idx
}

// AssignRelation stores related rows on the relation field of item. To-many
// fields receive the slice (empty, not nil, when nothing matched); to-one
// fields receive the first row or stay nil.
func AssignRelation(item reflect.Value, rel *schema.RelationshipMetadata, related []reflect.Value) error {
	for item.Kind() == reflect.Ptr {
		item = item.Elem()
	}
	field := item.FieldByName(rel.SourceField)
	if !field.IsValid() || !field.CanSet() {
		return fmt.Errorf("relation field %s not found on %s", rel.SourceField, item.Type())
	}

	if rel.Type.IsToMany() {
		slice := reflect.MakeSlice(field.Type(), 0, len(related))
		elemIsPtr := field.Type().Elem().Kind() == reflect.Ptr
		for _, r := range related {
			if elemIsPtr {
				slice = reflect.Append(slice, r)
			} else {
				slice = reflect.Append(slice, r.Elem())
			}
		}
		field.Set(slice)
		return nil
	}

	if len(related) == 0 {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	if field.Kind() == reflect.Ptr {
		field.Set(related[0])
	} else {
		field.Set(related[0].Elem())
	}
	return nil
}

// ZeroFields resets every scalar field of item not present in keep.
func ZeroFields(item reflect.Value, table *schema.TableMetadata, keep map[string]bool) {
	for item.Kind() == reflect.Ptr {
		item = item.Elem()
	}
	for _, col := range table.Columns {
		if keep[col.Field] {
			continue
		}
		field := item.FieldByName(col.GoField)
		if field.IsValid() && field.CanSet() {
			field.Set(reflect.Zero(field.Type()))
		}
	}
}
