package schema

import (
	"reflect"
	"strings"
	"sync"
	"time"
)

// TypeMapper handles mapping between Go types and PostgreSQL types.
type TypeMapper struct {
	mu             sync.RWMutex
	customMappings map[reflect.Type]string
}

// NewTypeMapper creates a new TypeMapper instance.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{
		customMappings: make(map[reflect.Type]string),
	}
}

// RegisterType registers a custom type mapping.
func (tm *TypeMapper) RegisterType(goType reflect.Type, pgType string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.customMappings[goType] = pgType
}

var (
	timeType = reflect.TypeFor[time.Time]()
	jsonType = reflect.TypeFor[JSON]()
)

// GoTypeToPostgreSQL maps a Go type to its PostgreSQL equivalent.
// Returns empty string if the type needs an explicit SQL type in the tag.
func (tm *TypeMapper) GoTypeToPostgreSQL(t reflect.Type) string {
	tm.mu.RLock()
	pgType, ok := tm.customMappings[t]
	tm.mu.RUnlock()
	if ok {
		return pgType
	}

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t {
	case timeType:
		return "timestamptz"
	case jsonType:
		return "jsonb"
	}

	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int8, reflect.Int16, reflect.Uint8:
		return "smallint"
	case reflect.Int32, reflect.Int, reflect.Uint16:
		return "integer"
	case reflect.Int64, reflect.Uint32, reflect.Uint64:
		return "bigint"
	case reflect.Float32:
		return "real"
	case reflect.Float64:
		return "double precision"
	case reflect.String:
		return "text"
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "bytea"
		}
		if elemType := tm.GoTypeToPostgreSQL(t.Elem()); elemType != "" {
			return elemType + "[]"
		}
	case reflect.Map:
		if t.Key().Kind() == reflect.String {
			return "jsonb"
		}
	}
	return ""
}

// KindFor derives the query-layer kind of a column from its SQL type, falling
// back to the Go type when the SQL type is unknown.
func KindFor(goType reflect.Type, sqlType string) FieldKind {
	base := strings.ToLower(strings.TrimSuffix(sqlType, "[]"))
	if i := strings.Index(base, "("); i != -1 {
		base = base[:i]
	}
	base = strings.TrimSpace(base)

	switch {
	case base == "json" || base == "jsonb":
		return KindJSON
	case strings.HasPrefix(base, "timestamp") || base == "date":
		return KindDateTime
	case base == "boolean" || base == "bool":
		return KindBoolean
	case base == "smallint" || base == "integer" || base == "int" || base == "serial":
		return KindInt
	case base == "bigint" || base == "bigserial":
		return KindBigInt
	case base == "real" || base == "double precision" || base == "numeric" || base == "decimal":
		return KindFloat
	case base == "bytea":
		return KindBytes
	case base != "":
		return KindString
	}

	for goType.Kind() == reflect.Ptr || goType.Kind() == reflect.Slice {
		goType = goType.Elem()
	}
	switch goType.Kind() {
	case reflect.Bool:
		return KindBoolean
	case reflect.Int64:
		return KindBigInt
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return KindInt
	case reflect.Float32, reflect.Float64:
		return KindFloat
	}
	if goType == timeType {
		return KindDateTime
	}
	return KindString
}

// IsNullable checks if a Go type can hold SQL NULL.
func IsNullable(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr || t == jsonType
}

// DefaultTypeMapper is the global type mapper instance.
var DefaultTypeMapper = NewTypeMapper()
