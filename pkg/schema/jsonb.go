package schema

import (
	"bytes"
	"database/sql/driver"
	"errors"

	"github.com/goccy/go-json"
)

// JSON is a jsonb column value kept as raw JSON text.
//
// A nil JSON is SQL NULL; the bytes `null` are the JSON null literal. The two
// are different values in PostgreSQL and the query layer keeps them apart:
//
//	type Song struct {
//	    AudioFeatures schema.JSON `po:"audio_features,jsonb"`
//	}
type JSON []byte

// MustJSON marshals v, panicking on failure. Meant for literals in tests and
// fixtures.
func MustJSON(v any) JSON {
	j, err := NewJSON(v)
	if err != nil {
		panic(err)
	}
	return j
}

// NewJSON marshals v into a JSON value.
func NewJSON(v any) (JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSON(b), nil
}

// IsDBNull reports whether the value is SQL NULL.
func (j JSON) IsDBNull() bool {
	return j == nil
}

// IsJSONNull reports whether the value is the JSON null literal.
func (j JSON) IsJSONNull() bool {
	return j != nil && bytes.Equal(bytes.TrimSpace(j), []byte("null"))
}

// Unmarshal decodes the value into v.
func (j JSON) Unmarshal(v any) error {
	if j == nil {
		return errors.New("cannot unmarshal SQL NULL json")
	}
	return json.Unmarshal(j, v)
}

// Value implements driver.Valuer.
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner.
func (j *JSON) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append(JSON(nil), v...)
	case string:
		*j = JSON(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return errors.New("failed to scan JSON: unsupported type")
		}
		*j = b
	}
	return nil
}

// MarshalJSON implements json.Marshaler. SQL NULL encodes as null.
func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = append(JSON(nil), data...)
	return nil
}
