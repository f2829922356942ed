package query

import (
	"fmt"
)

// Select picks the fields of the result. Scalar fields map to true; relation
// fields map to true or to nested *FindManyArgs, which loads the relation.
// Fields left out are returned as their zero value.
type Select map[string]any

// Include loads relations in addition to every scalar field. Values are true
// or nested *FindManyArgs.
type Include map[string]any

// SelectIncludeConflict is the message returned when both are supplied.
const SelectIncludeConflict = "Please either choose `select` or `include`."

// Nested interprets a Select or Include value. It reports whether the entry
// is enabled and returns nested arguments when present.
func Nested(v any) (*FindManyArgs, bool, error) {
	switch t := v.(type) {
	case nil:
		return nil, false, nil
	case bool:
		return nil, t, nil
	case FindManyArgs:
		return &t, true, nil
	case *FindManyArgs:
		if t == nil {
			return nil, false, nil
		}
		return t, true, nil
	case map[string]any:
		args, err := DecodeFindMany(t)
		if err != nil {
			return nil, false, err
		}
		return args, true, nil
	default:
		return nil, false, fmt.Errorf("expected true, false or nested arguments, got %T", v)
	}
}
