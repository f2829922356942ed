package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ValidateDefaultValue checks if a default value expression is likely valid SQL.
// Returns an error with a suggested fix for common typos.
func ValidateDefaultValue(defaultVal string) error {
	trimmed := strings.TrimSpace(defaultVal)
	upperVal := strings.ToUpper(trimmed)

	commonMistakes := map[string]string{
		"CURRENT TIMESTAMP": "CURRENT_TIMESTAMP",
		"CURRENT DATE":      "CURRENT_DATE",
		"NOW ()":            "NOW()",
		"GEN RANDOM UUID":   "gen_random_uuid()",
	}
	for mistake, correct := range commonMistakes {
		if strings.Contains(upperVal, mistake) {
			return fmt.Errorf("invalid DEFAULT value %q: use %s", defaultVal, correct)
		}
	}

	keywords := map[string]bool{
		"NULL": true, "TRUE": true, "FALSE": true,
		"CURRENT_TIMESTAMP": true, "CURRENT_DATE": true, "LOCALTIMESTAMP": true,
	}
	if keywords[upperVal] || strings.ContainsAny(trimmed, "('") {
		return nil
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return nil
	}
	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "uuid") || strings.Contains(lower, "random") || lower == "now" {
		return fmt.Errorf("invalid DEFAULT value %q: looks like a function but is missing parentheses, try default(%s())", defaultVal, trimmed)
	}
	return nil
}

// ValidateTable checks that the keys and relations of a parsed table are
// consistent with its columns. Cross-table checks need the registry and live
// there.
func ValidateTable(t *TableMetadata) error {
	var errs []error

	if t.PrimaryKey == nil || len(t.PrimaryKey.Columns) == 0 {
		errs = append(errs, fmt.Errorf("%s: no primary key", t.ModelName))
	}

	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if seen[c.Field] {
			errs = append(errs, fmt.Errorf("%s: duplicate field %s", t.ModelName, c.Field))
		}
		seen[c.Field] = true
		if c.UpdatedAt && c.Kind != KindDateTime {
			errs = append(errs, fmt.Errorf("%s.%s: updatedAt requires a timestamp column", t.ModelName, c.Field))
		}
		if len(c.EnumValues) > 0 && c.Kind != KindString {
			errs = append(errs, fmt.Errorf("%s.%s: check values require a text column", t.ModelName, c.Field))
		}
	}

	for _, fk := range t.ForeignKeys {
		for _, col := range fk.Columns {
			if t.GetColumn(col) == nil {
				errs = append(errs, fmt.Errorf("%s: foreign key %s references unknown column %s", t.ModelName, fk.Name, col))
			}
		}
	}

	for _, rel := range t.Relationships {
		if seen[rel.Name] {
			errs = append(errs, fmt.Errorf("%s: relation %s shadows a field", t.ModelName, rel.Name))
		}
		if rel.Type == BelongsTo && t.GetColumn(rel.ForeignKey) == nil {
			errs = append(errs, fmt.Errorf("%s.%s: foreign key column %s not found", t.ModelName, rel.Name, rel.ForeignKey))
		}
		if rel.Type != BelongsTo && t.GetColumn(rel.References) == nil {
			errs = append(errs, fmt.Errorf("%s.%s: referenced column %s not found", t.ModelName, rel.Name, rel.References))
		}
	}

	return errors.Join(errs...)
}
