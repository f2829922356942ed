package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/marshallshelly/setlistdb/pkg/runtime"
	"github.com/marshallshelly/setlistdb/pkg/schema"
)

const introspectColumnsSQL = `SELECT c.table_name, c.column_name, c.data_type, c.udt_name,
	c.character_maximum_length, c.is_nullable, c.column_default
FROM information_schema.columns c
JOIN information_schema.tables t
	ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE' AND c.table_name <> $2
ORDER BY c.table_name, c.ordinal_position`

// Introspector reads table and column definitions from a live database.
type Introspector struct {
	q      runtime.Querier
	schema string
}

// NewIntrospector creates an introspector for the public schema.
func NewIntrospector(q runtime.Querier) *Introspector {
	return &Introspector{q: q, schema: "public"}
}

// WithSchema sets the PostgreSQL schema to inspect.
func (i *Introspector) WithSchema(name string) *Introspector {
	i.schema = name
	return i
}

// IntrospectSchema returns every base table except the migrations tracking
// table, keyed by name. Only columns are populated.
func (i *Introspector) IntrospectSchema(ctx context.Context) (map[string]*schema.TableMetadata, error) {
	rows, err := i.q.Query(ctx, introspectColumnsSQL, i.schema, trackingTable)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect columns: %w", err)
	}
	defer rows.Close()

	tables := make(map[string]*schema.TableMetadata)
	for rows.Next() {
		var (
			tableName, dataType, udtName, isNullable string
			maxLength                                *int
			col                                      schema.ColumnMetadata
		)
		if err := rows.Scan(&tableName, &col.Name, &dataType, &udtName, &maxLength, &isNullable, &col.Default); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col.SQLType = buildSQLType(dataType, udtName, maxLength)
		col.Nullable = isNullable == "YES"
		col.Field = schema.FieldNameFor(col.Name)

		table, ok := tables[tableName]
		if !ok {
			table = &schema.TableMetadata{Name: tableName}
			tables[tableName] = table
		}
		col.Position = len(table.Columns)
		table.Columns = append(table.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to introspect columns: %w", err)
	}
	return tables, nil
}

// buildSQLType reconstructs a type name from information_schema columns.
func buildSQLType(dataType, udtName string, maxLength *int) string {
	switch dataType {
	case "character varying":
		if maxLength != nil {
			return fmt.Sprintf("varchar(%d)", *maxLength)
		}
		return "varchar"
	case "character":
		if maxLength != nil {
			return fmt.Sprintf("char(%d)", *maxLength)
		}
		return "char"
	case "ARRAY":
		if base, ok := strings.CutPrefix(udtName, "_"); ok {
			return base + "[]"
		}
		return udtName
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}
