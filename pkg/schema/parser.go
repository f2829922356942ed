package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

const (
	// StructTagKey is the key used in struct tags (e.g., `po:"..."`).
	StructTagKey = "po"
)

// Parser parses struct definitions to extract table metadata.
type Parser struct {
	typeMapper *TypeMapper
	mu         sync.Mutex
	cache      map[reflect.Type]*TableMetadata
}

// NewParser creates a new Parser instance.
func NewParser() *Parser {
	return &Parser{
		typeMapper: DefaultTypeMapper,
		cache:      make(map[reflect.Type]*TableMetadata),
	}
}

// Parse extracts TableMetadata from a Go struct type.
func (p *Parser) Parse(modelType reflect.Type) (*TableMetadata, error) {
	for modelType.Kind() == reflect.Ptr {
		modelType = modelType.Elem()
	}
	if modelType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a struct, got %s", modelType.Kind())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if cached, ok := p.cache[modelType]; ok {
		return cached, nil
	}

	table := &TableMetadata{
		Name:      TableNameFor(modelType.Name()),
		ModelName: modelType.Name(),
		GoType:    modelType,
	}

	uniqueGroups := make(map[string][]string)
	var groupOrder []string

	for i := 0; i < modelType.NumField(); i++ {
		field := modelType.Field(i)
		if !field.IsExported() {
			continue
		}
		tagValue := field.Tag.Get(StructTagKey)
		if tagValue == "" || tagValue == "-" {
			continue
		}

		opts, err := parseTag(tagValue)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tag for field %s: %w", field.Name, err)
		}

		if opts.isRelation() {
			rel, err := p.parseRelationship(field, opts, table)
			if err != nil {
				return nil, fmt.Errorf("failed to parse relationship for field %s: %w", field.Name, err)
			}
			table.Relationships = append(table.Relationships, *rel)
			continue
		}

		column, err := p.createColumnMetadata(field, opts, i)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}

		if opts.Has("primaryKey") {
			if table.PrimaryKey == nil {
				table.PrimaryKey = &PrimaryKeyMetadata{Name: table.Name + "_pkey"}
			}
			table.PrimaryKey.Columns = append(table.PrimaryKey.Columns, column.Name)
		}

		// unique(group) declares a compound unique; bare unique is per column.
		if group := opts.Get("unique"); group != "" {
			if _, ok := uniqueGroups[group]; !ok {
				groupOrder = append(groupOrder, group)
			}
			uniqueGroups[group] = append(uniqueGroups[group], column.Name)
		}

		if opts.Has("index") {
			name := opts.Get("index")
			if name == "" {
				name = fmt.Sprintf("idx_%s_%s", table.Name, column.Name)
			}
			table.Indexes = append(table.Indexes, IndexMetadata{
				Name:    name,
				Columns: []string{column.Name},
				Type:    indexTypeFor(column),
			})
		}

		if fk := opts.Get("fk"); fk != "" {
			refTable, refColumn, err := parseReference(fk)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field.Name, err)
			}
			table.ForeignKeys = append(table.ForeignKeys, ForeignKeyMetadata{
				Name:              fmt.Sprintf("fk_%s_%s", table.Name, column.Name),
				Columns:           []string{column.Name},
				ReferencedTable:   refTable,
				ReferencedColumns: []string{refColumn},
				OnDelete:          parseReferenceAction(opts.Get("onDelete")),
				OnUpdate:          parseReferenceAction(opts.Get("onUpdate")),
			})
		}

		if len(column.EnumValues) > 0 {
			quoted := make([]string, len(column.EnumValues))
			for j, v := range column.EnumValues {
				quoted[j] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
			}
			table.Constraints = append(table.Constraints, ConstraintMetadata{
				Name:       fmt.Sprintf("chk_%s_%s", table.Name, column.Name),
				Type:       CheckConstraint,
				Columns:    []string{column.Name},
				Expression: fmt.Sprintf(`"%s" IN (%s)`, column.Name, strings.Join(quoted, ", ")),
			})
		}

		table.Columns = append(table.Columns, column)
	}

	for _, group := range groupOrder {
		columns := uniqueGroups[group]
		if len(columns) == 1 {
			// A single-member group is just a unique column.
			table.GetColumn(columns[0]).Unique = true
			continue
		}
		table.Constraints = append(table.Constraints, ConstraintMetadata{
			Name:    fmt.Sprintf("uq_%s_%s", table.Name, strings.Join(columns, "_")),
			Type:    UniqueConstraint,
			Columns: columns,
		})
	}

	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("model %s has no %s-tagged fields", modelType.Name(), StructTagKey)
	}

	p.cache[modelType] = table
	return table, nil
}

// createColumnMetadata creates a ColumnMetadata from a struct field.
func (p *Parser) createColumnMetadata(field reflect.StructField, opts *TagOptions, position int) (ColumnMetadata, error) {
	column := ColumnMetadata{
		Name:     opts.Name,
		Field:    FieldNameFor(opts.Name),
		GoField:  field.Name,
		GoType:   field.Type,
		Position: position,
	}

	if sqlType := opts.GetSQLType(); sqlType != "" {
		column.SQLType = sqlType
	} else {
		column.SQLType = p.typeMapper.GoTypeToPostgreSQL(field.Type)
	}
	if column.SQLType == "" {
		return column, fmt.Errorf("cannot map Go type %s to a SQL type", field.Type)
	}

	column.IsList = strings.HasSuffix(column.SQLType, "[]")
	column.Kind = KindFor(field.Type, column.SQLType)

	column.Nullable = IsNullable(field.Type) && !opts.Has("notNull") && !opts.Has("primaryKey")
	column.Unique = opts.Has("unique") && opts.Get("unique") == ""
	column.UpdatedAt = opts.Has("updatedAt")

	if def, ok := opts.Options["default"]; ok && def != "" {
		if def == "uuid()" {
			column.ClientDefault = "uuid"
		} else {
			if err := ValidateDefaultValue(def); err != nil {
				return column, err
			}
			column.Default = &def
		}
	}

	if check := opts.Get("check"); check != "" {
		column.EnumValues = strings.Split(check, "|")
	}

	return column, nil
}

func indexTypeFor(col ColumnMetadata) string {
	if col.IsList || col.IsJSON() {
		return "gin"
	}
	return "btree"
}

// TagOptions represents parsed tag options.
type TagOptions struct {
	Name    string            // Column name (first element)
	Options map[string]string // Other options
}

// parseTag parses a struct tag value into TagOptions.
// Format: "column_name,option1,option2(value),option3"
func parseTag(tag string) (*TagOptions, error) {
	parts := splitTag(tag)
	if len(parts) == 0 || parts[0] == "" {
		return nil, fmt.Errorf("empty tag value")
	}
	opts := &TagOptions{
		Name:    parts[0],
		Options: make(map[string]string),
	}
	for _, opt := range parts[1:] {
		if idx := strings.Index(opt, "("); idx != -1 {
			if !strings.HasSuffix(opt, ")") {
				return nil, fmt.Errorf("invalid option format: %s", opt)
			}
			opts.Options[opt[:idx]] = opt[idx+1 : len(opt)-1]
			continue
		}
		opts.Options[opt] = ""
	}
	return opts, nil
}

// Has checks if an option exists.
func (t *TagOptions) Has(key string) bool {
	_, ok := t.Options[key]
	return ok
}

// Get returns the value of an option.
func (t *TagOptions) Get(key string) string {
	return t.Options[key]
}

func (t *TagOptions) isRelation() bool {
	return t.Has(string(BelongsTo)) || t.Has(string(HasOne)) || t.Has(string(HasMany))
}

var sqlTypeOptions = []string{
	"uuid", "varchar", "text", "char",
	"smallint", "integer", "bigint", "serial", "bigserial",
	"numeric", "decimal", "real", "double precision",
	"boolean",
	"date", "timestamp", "timestamptz",
	"json", "jsonb",
	"bytea",
}

// GetSQLType returns the SQL type from tag options.
func (t *TagOptions) GetSQLType() string {
	for key := range t.Options {
		if strings.HasSuffix(key, "[]") {
			return key
		}
	}
	for _, pgType := range sqlTypeOptions {
		if t.Has(pgType) {
			if value := t.Get(pgType); value != "" {
				return fmt.Sprintf("%s(%s)", pgType, value)
			}
			return pgType
		}
	}
	return ""
}

// splitTag splits a tag value by commas, handling nested parentheses.
func splitTag(tag string) []string {
	var parts []string
	var current strings.Builder
	depth := 0
	for _, ch := range tag {
		switch ch {
		case '(':
			depth++
			current.WriteRune(ch)
		case ')':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(current.String()))
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, strings.TrimSpace(current.String()))
	}
	return parts
}

// parseReference parses "table.column".
func parseReference(ref string) (string, string, error) {
	table, column, ok := strings.Cut(ref, ".")
	if !ok || table == "" || column == "" {
		return "", "", fmt.Errorf("invalid fk reference %q, want table.column", ref)
	}
	return table, column, nil
}

// parseReferenceAction converts a string to ReferenceAction.
func parseReferenceAction(action string) ReferenceAction {
	switch strings.ToUpper(strings.TrimSpace(action)) {
	case "CASCADE":
		return Cascade
	case "RESTRICT":
		return Restrict
	case "SETNULL", "SET NULL":
		return SetNull
	case "SETDEFAULT", "SET DEFAULT":
		return SetDefault
	default:
		return NoAction
	}
}
