// Package schema parses model struct tags into table, field and relation
// metadata.
package schema

import (
	"reflect"
	"strings"
)

// FieldKind is the scalar kind of a field as seen by the query layer.
type FieldKind string

const (
	KindString   FieldKind = "String"
	KindInt      FieldKind = "Int"
	KindBigInt   FieldKind = "BigInt"
	KindFloat    FieldKind = "Float"
	KindBoolean  FieldKind = "Boolean"
	KindDateTime FieldKind = "DateTime"
	KindJSON     FieldKind = "Json"
	KindBytes    FieldKind = "Bytes"
)

// IsNumeric reports whether avg/sum/increment are meaningful for the kind.
func (k FieldKind) IsNumeric() bool {
	return k == KindInt || k == KindBigInt || k == KindFloat
}

// IsOrderable reports whether min/max and range filters apply.
func (k FieldKind) IsOrderable() bool {
	return k.IsNumeric() || k == KindString || k == KindDateTime
}

// ReferenceAction is a foreign key ON DELETE / ON UPDATE action.
type ReferenceAction string

const (
	NoAction   ReferenceAction = "NO ACTION"
	Cascade    ReferenceAction = "CASCADE"
	Restrict   ReferenceAction = "RESTRICT"
	SetNull    ReferenceAction = "SET NULL"
	SetDefault ReferenceAction = "SET DEFAULT"
)

// RelationType is the cardinality of a relation field.
type RelationType string

const (
	BelongsTo RelationType = "belongsTo"
	HasOne    RelationType = "hasOne"
	HasMany   RelationType = "hasMany"
)

// IsToMany reports whether the relation loads a list.
func (r RelationType) IsToMany() bool {
	return r == HasMany
}

// TableMetadata describes one model and the table it maps to.
type TableMetadata struct {
	Name          string // table name
	ModelName     string // Go type name, e.g. "Artist"
	GoType        reflect.Type
	Columns       []ColumnMetadata
	PrimaryKey    *PrimaryKeyMetadata
	ForeignKeys   []ForeignKeyMetadata
	Indexes       []IndexMetadata
	Constraints   []ConstraintMetadata
	Relationships []RelationshipMetadata
}

// ColumnMetadata describes one scalar field.
type ColumnMetadata struct {
	Name          string // column name
	Field         string // API field name, e.g. "artistId"
	GoField       string
	GoType        reflect.Type
	SQLType       string
	Kind          FieldKind
	IsList        bool
	Nullable      bool
	Unique        bool
	Default       *string
	ClientDefault string // "uuid" when the client generates the value
	UpdatedAt     bool
	EnumValues    []string
	Position      int
}

// IsJSON reports whether the column stores JSON.
func (c *ColumnMetadata) IsJSON() bool {
	return c.Kind == KindJSON
}

// HasDefault reports whether the column may be omitted on create.
func (c *ColumnMetadata) HasDefault() bool {
	return c.Default != nil || c.ClientDefault != "" || c.UpdatedAt
}

// PrimaryKeyMetadata describes the primary key.
type PrimaryKeyMetadata struct {
	Name    string
	Columns []string
}

// ForeignKeyMetadata describes a foreign key constraint.
type ForeignKeyMetadata struct {
	Name              string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	OnDelete          ReferenceAction
	OnUpdate          ReferenceAction
}

// IndexMetadata describes a non-unique index.
type IndexMetadata struct {
	Name    string
	Columns []string
	Type    string
}

// ConstraintType is the kind of a table constraint.
type ConstraintType string

const (
	UniqueConstraint ConstraintType = "UNIQUE"
	CheckConstraint  ConstraintType = "CHECK"
)

// ConstraintMetadata describes a table-level constraint.
type ConstraintMetadata struct {
	Name       string
	Type       ConstraintType
	Columns    []string
	Expression string // CHECK only
}

// RelationshipMetadata describes a relation field.
type RelationshipMetadata struct {
	Name        string // API name, e.g. "shows"
	SourceField string // Go field name, e.g. "Shows"
	Type        RelationType
	TargetType  reflect.Type
	TargetModel string
	// ForeignKey is the FK column. For BelongsTo it lives on the source
	// table, for HasOne/HasMany on the target table.
	ForeignKey string
	// References is the referenced column on the other side (usually "id").
	References string
}

// UniqueSelector is one way to address a single row: the primary key, a
// single unique column or a compound unique constraint.
type UniqueSelector struct {
	Name     string   // "id", "slug" or "artistId_venueId_date"
	Fields   []string // API field names
	Compound bool
}

// GetColumn returns a column by column name.
func (t *TableMetadata) GetColumn(name string) *ColumnMetadata {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// GetColumnByField returns a column by API field name or Go field name.
func (t *TableMetadata) GetColumnByField(field string) *ColumnMetadata {
	for i := range t.Columns {
		if t.Columns[i].Field == field || t.Columns[i].GoField == field {
			return &t.Columns[i]
		}
	}
	return nil
}

// Field returns a column by API field name only.
func (t *TableMetadata) Field(name string) *ColumnMetadata {
	for i := range t.Columns {
		if t.Columns[i].Field == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// IsPrimaryKey reports whether the column is part of the primary key.
func (t *TableMetadata) IsPrimaryKey(column string) bool {
	if t.PrimaryKey == nil {
		return false
	}
	for _, c := range t.PrimaryKey.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// PrimaryKeyColumn returns the single primary key column, or nil for
// composite or missing keys.
func (t *TableMetadata) PrimaryKeyColumn() *ColumnMetadata {
	if t.PrimaryKey == nil || len(t.PrimaryKey.Columns) != 1 {
		return nil
	}
	return t.GetColumn(t.PrimaryKey.Columns[0])
}

// FieldNames returns the API names of all scalar fields in declaration order.
func (t *TableMetadata) FieldNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Field
	}
	return names
}

// UniqueSelectors lists every unique way of addressing a row.
func (t *TableMetadata) UniqueSelectors() []UniqueSelector {
	var out []UniqueSelector
	seen := make(map[string]bool)

	add := func(columns []string) {
		fields := make([]string, 0, len(columns))
		for _, name := range columns {
			if col := t.GetColumn(name); col != nil {
				fields = append(fields, col.Field)
			}
		}
		if len(fields) == 0 {
			return
		}
		sel := UniqueSelector{
			Name:     strings.Join(fields, "_"),
			Fields:   fields,
			Compound: len(fields) > 1,
		}
		if seen[sel.Name] {
			return
		}
		seen[sel.Name] = true
		out = append(out, sel)
	}

	if t.PrimaryKey != nil {
		add(t.PrimaryKey.Columns)
	}
	for _, c := range t.Columns {
		if c.Unique {
			add([]string{c.Name})
		}
	}
	for _, c := range t.Constraints {
		if c.Type == UniqueConstraint {
			add(c.Columns)
		}
	}
	return out
}

// UniqueSelector returns the selector with the given name.
func (t *TableMetadata) UniqueSelector(name string) (UniqueSelector, bool) {
	for _, s := range t.UniqueSelectors() {
		if s.Name == name {
			return s, true
		}
	}
	return UniqueSelector{}, false
}

// HasCheckConstraint reports whether a CHECK constraint exists on column.
func (t *TableMetadata) HasCheckConstraint(column string) bool {
	for _, c := range t.Constraints {
		if c.Type == CheckConstraint && len(c.Columns) == 1 && c.Columns[0] == column {
			return true
		}
	}
	return false
}
