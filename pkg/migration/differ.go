package migration

import (
	"slices"
	"strings"

	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// Differ compares the model schema with an introspected database schema.
// It works at column granularity: indexes and constraints of existing
// tables are not compared.
type Differ struct{}

// NewDiffer creates a new schema differ.
func NewDiffer() *Differ {
	return &Differ{}
}

// FullSchema returns a diff that creates every table from scratch.
func FullSchema(tables []*schema.TableMetadata) *SchemaDiff {
	return &SchemaDiff{TablesAdded: tables}
}

// Compare diffs the models against dbSchema, keyed by table name. Results
// follow model order; dropped tables are sorted by name.
func (d *Differ) Compare(models []*schema.TableMetadata, dbSchema map[string]*schema.TableMetadata) *SchemaDiff {
	diff := &SchemaDiff{}
	known := make(map[string]bool, len(models))

	for _, table := range models {
		known[table.Name] = true
		dbTable, ok := dbSchema[table.Name]
		if !ok {
			diff.TablesAdded = append(diff.TablesAdded, table)
			continue
		}
		if td := d.compareTable(table, dbTable); td.HasChanges() {
			diff.TablesModified = append(diff.TablesModified, td)
		}
	}

	names := make([]string, 0, len(dbSchema))
	for name := range dbSchema {
		if !known[name] {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	for _, name := range names {
		diff.TablesDropped = append(diff.TablesDropped, dbSchema[name])
	}
	return diff
}

func (d *Differ) compareTable(model, dbTable *schema.TableMetadata) TableDiff {
	diff := TableDiff{TableName: model.Name}

	for _, col := range model.Columns {
		dbCol := dbTable.GetColumn(col.Name)
		if dbCol == nil {
			diff.ColumnsAdded = append(diff.ColumnsAdded, col)
			continue
		}
		cd := ColumnDiff{
			ColumnName:     col.Name,
			OldColumn:      *dbCol,
			NewColumn:      col,
			TypeChanged:    normalizeType(col.SQLType) != normalizeType(dbCol.SQLType),
			NullChanged:    col.Nullable != dbCol.Nullable,
			DefaultChanged: normalizeDefault(columnDefault(col)) != normalizeDefault(columnDefault(*dbCol)),
		}
		if cd.TypeChanged || cd.NullChanged || cd.DefaultChanged {
			diff.ColumnsModified = append(diff.ColumnsModified, cd)
		}
	}

	for _, col := range dbTable.Columns {
		if model.GetColumn(col.Name) == nil {
			diff.ColumnsDropped = append(diff.ColumnsDropped, col)
		}
	}
	return diff
}

// normalizeType maps PostgreSQL type aliases to one spelling.
func normalizeType(sqlType string) string {
	t := strings.Join(strings.Fields(strings.ToLower(sqlType)), " ")
	if base, ok := strings.CutSuffix(t, "[]"); ok {
		return normalizeType(base) + "[]"
	}
	switch t {
	case "int", "int4", "serial", "serial4":
		return "integer"
	case "int2", "smallserial", "serial2":
		return "smallint"
	case "int8", "bigserial", "serial8":
		return "bigint"
	case "float4":
		return "real"
	case "float8":
		return "double precision"
	case "bool":
		return "boolean"
	case "timestamp without time zone":
		return "timestamp"
	case "timestamp with time zone":
		return "timestamptz"
	case "character varying":
		return "varchar"
	}
	return t
}

// normalizeDefault strips casts and outer parentheses from a default
// expression.
func normalizeDefault(def string) string {
	n := strings.ToLower(strings.TrimSpace(def))
	for strings.HasPrefix(n, "(") && strings.HasSuffix(n, ")") {
		n = strings.TrimSpace(n[1 : len(n)-1])
	}
	if i := strings.Index(n, "::"); i != -1 {
		n = n[:i]
	}
	return strings.TrimSpace(n)
}
