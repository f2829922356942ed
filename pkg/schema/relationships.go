package schema

import (
	"fmt"
	"reflect"
)

// parseRelationship parses a relationship from a struct field.
func (p *Parser) parseRelationship(field reflect.StructField, opts *TagOptions, sourceTable *TableMetadata) (*RelationshipMetadata, error) {
	rel := &RelationshipMetadata{
		Name:        lowerFirst(field.Name),
		SourceField: field.Name,
	}

	switch {
	case opts.Has(string(BelongsTo)):
		rel.Type = BelongsTo
	case opts.Has(string(HasOne)):
		rel.Type = HasOne
	case opts.Has(string(HasMany)):
		rel.Type = HasMany
	default:
		return nil, fmt.Errorf("unknown relationship type")
	}

	fieldType := field.Type
	if rel.Type == HasMany {
		if fieldType.Kind() != reflect.Slice {
			return nil, fmt.Errorf("hasMany field must be a slice, got %s", fieldType)
		}
		fieldType = fieldType.Elem()
	}
	for fieldType.Kind() == reflect.Ptr {
		fieldType = fieldType.Elem()
	}
	if fieldType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("relation target must be a struct, got %s", fieldType)
	}
	rel.TargetType = fieldType
	rel.TargetModel = fieldType.Name()

	rel.ForeignKey = opts.Get("foreignKey")
	if rel.ForeignKey == "" {
		switch rel.Type {
		case BelongsTo:
			// FK lives on the source table (artist_id).
			rel.ForeignKey = ForeignKeyFor(rel.TargetModel)
		case HasOne, HasMany:
			// FK lives on the target table.
			rel.ForeignKey = ForeignKeyFor(sourceTable.ModelName)
		}
	}

	rel.References = opts.Get("references")
	if rel.References == "" {
		rel.References = "id"
	}

	return rel, nil
}

// LocalColumn returns the column on the source table used to join.
func (r *RelationshipMetadata) LocalColumn() string {
	if r.Type == BelongsTo {
		return r.ForeignKey
	}
	return r.References
}

// RemoteColumn returns the column on the target table used to join.
func (r *RelationshipMetadata) RemoteColumn() string {
	if r.Type == BelongsTo {
		return r.References
	}
	return r.ForeignKey
}

// GetRelationship returns a relationship by API name or Go field name.
func (t *TableMetadata) GetRelationship(name string) *RelationshipMetadata {
	for i := range t.Relationships {
		if t.Relationships[i].Name == name || t.Relationships[i].SourceField == name {
			return &t.Relationships[i]
		}
	}
	return nil
}

// Relation returns a relationship by API name only.
func (t *TableMetadata) Relation(name string) *RelationshipMetadata {
	for i := range t.Relationships {
		if t.Relationships[i].Name == name {
			return &t.Relationships[i]
		}
	}
	return nil
}

// GetRelationshipsByType returns all relationships of a specific type.
func (t *TableMetadata) GetRelationshipsByType(relType RelationType) []RelationshipMetadata {
	var result []RelationshipMetadata
	for _, rel := range t.Relationships {
		if rel.Type == relType {
			result = append(result, rel)
		}
	}
	return result
}

// HasRelationships checks if the table has any relationships.
func (t *TableMetadata) HasRelationships() bool {
	return len(t.Relationships) > 0
}
