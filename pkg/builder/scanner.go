package builder

import (
	"fmt"
	"reflect"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/marshallshelly/setlistdb/pkg/schema"
)

// ScanStruct scans the current row into dest, a pointer to a struct of t's
// model type. Columns are matched by name; columns without a field are
// discarded.
func ScanStruct(rows pgx.Rows, dest any, table *schema.TableMetadata) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr {
		return fmt.Errorf("dest must be a pointer to struct")
	}

	destValue = destValue.Elem()
	if destValue.Kind() != reflect.Struct {
		return fmt.Errorf("dest must be a pointer to struct")
	}

	fieldDescriptions := rows.FieldDescriptions()

	scanTargets := make([]any, len(fieldDescriptions))
	jsonTargets := make(map[int]*jsonScanTarget)
	columnMap := make(map[string]int, len(fieldDescriptions))

	for i, fd := range fieldDescriptions {
		columnMap[fd.Name] = i
	}

	for _, col := range table.Columns {
		idx, ok := columnMap[col.Name]
		if !ok {
			continue
		}

		field := destValue.FieldByName(col.GoField)
		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// JSON fields that are not scanners are decoded after the scan.
		if col.IsJSON() && !implementsScanner(field.Type()) {
			target := &jsonScanTarget{field: field}
			scanTargets[idx] = target
			jsonTargets[idx] = target
		} else {
			scanTargets[idx] = field.Addr().Interface()
		}
	}

	var dummy any
	for i := range scanTargets {
		if scanTargets[i] == nil {
			scanTargets[i] = &dummy
		}
	}

	if err := rows.Scan(scanTargets...); err != nil {
		return fmt.Errorf("failed to scan %s row: %w", table.ModelName, err)
	}

	for _, target := range jsonTargets {
		if err := target.unmarshalIntoField(); err != nil {
			return fmt.Errorf("failed to decode json column: %w", err)
		}
	}

	return nil
}

// ScanAll scans every remaining row into new values of t's model type and
// closes rows. It returns pointers to the scanned structs.
func ScanAll(rows pgx.Rows, table *schema.TableMetadata) ([]reflect.Value, error) {
	defer rows.Close()

	var out []reflect.Value
	for rows.Next() {
		item := reflect.New(table.GoType)
		if err := ScanStruct(rows, item.Interface(), table); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ScanMaps scans every remaining row into a map keyed by column name and
// closes rows. Values are normalized with Normalize.
func ScanMaps(rows pgx.Rows) ([]map[string]any, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			if i < len(values) {
				row[fd.Name] = Normalize(values[i])
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ScanValues scans every remaining row into a positional slice and closes
// rows. Values are normalized with Normalize.
func ScanValues(rows pgx.Rows) ([][]any, error) {
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		for i := range values {
			values[i] = Normalize(values[i])
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

// Normalize converts driver values into plain Go values: uuids become their
// string form.
func Normalize(v any) any {
	switch t := v.(type) {
	case [16]byte:
		return uuid.UUID(t).String()
	case uuid.UUID:
		return t.String()
	}
	return v
}

// jsonScanTarget is an intermediate scan target for JSON columns whose
// field type does not implement sql.Scanner.
type jsonScanTarget struct {
	field reflect.Value
	data  []byte
}

// Scan implements sql.Scanner.
func (j *jsonScanTarget) Scan(value any) error {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case []byte:
		j.data = append([]byte(nil), v...)
	case string:
		j.data = []byte(v)
	default:
		var err error
		j.data, err = json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal decoded json: %w", err)
		}
	}
	return nil
}

func (j *jsonScanTarget) unmarshalIntoField() error {
	if j.data == nil {
		j.field.Set(reflect.Zero(j.field.Type()))
		return nil
	}
	return json.Unmarshal(j.data, j.field.Addr().Interface())
}

func implementsScanner(t reflect.Type) bool {
	scannerType := reflect.TypeOf((*interface{ Scan(any) error })(nil)).Elem()
	return t.Implements(scannerType) || reflect.PointerTo(t).Implements(scannerType)
}
