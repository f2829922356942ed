package schema

import (
	"sync"
	"unicode"

	"github.com/go-openapi/inflect"
)

var (
	tableNamesMu     sync.RWMutex
	customTableNames = make(map[string]string) // model name -> table name
)

// RegisterTableName overrides the table name for a model. Model packages call
// it from init so names that do not pluralize cleanly stay stable.
//
//	func init() {
//	    schema.RegisterTableName("VoteAnalytics", "vote_analytics")
//	}
func RegisterTableName(modelName, tableName string) {
	tableNamesMu.Lock()
	defer tableNamesMu.Unlock()
	customTableNames[modelName] = tableName
}

// TableNameFor returns the table name for a model name.
func TableNameFor(modelName string) string {
	tableNamesMu.RLock()
	name, ok := customTableNames[modelName]
	tableNamesMu.RUnlock()
	if ok {
		return name
	}
	return inflect.Tableize(modelName)
}

// FieldNameFor converts a column name to its API field name
// (artist_id -> artistId).
func FieldNameFor(column string) string {
	return inflect.CamelizeDownFirst(column)
}

// ColumnNameFor converts a Go field name to a snake_case column name.
func ColumnNameFor(goField string) string {
	return inflect.Underscore(goField)
}

// ForeignKeyFor returns the conventional FK column pointing at a model
// (Artist -> artist_id).
func ForeignKeyFor(modelName string) string {
	return inflect.ForeignKey(modelName)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
