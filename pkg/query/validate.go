package query

import (
	"fmt"

	"github.com/marshallshelly/setlistdb/pkg/runtime"
)

// Structural checks that need no schema. Field-level validation happens in
// the compiler, which knows the model.

// CheckProjection rejects a Select combined with an Include.
func CheckProjection(sel Select, inc Include) error {
	if len(sel) > 0 && len(inc) > 0 {
		return &runtime.ValidationError{Message: SelectIncludeConflict}
	}
	return nil
}

// CheckPage rejects malformed take and skip values.
func CheckPage(take, skip *int) error {
	if skip != nil && *skip < 0 {
		return runtime.Invalid("skip", "must be non-negative, got %d", *skip)
	}
	return nil
}

// Validate checks a findMany argument tree, including nested reads.
func (a *FindManyArgs) Validate() error {
	if a == nil {
		return nil
	}
	if err := CheckProjection(a.Select, a.Include); err != nil {
		return err
	}
	return CheckPage(a.Take, a.Skip)
}

// Validate checks findUnique arguments.
func (a *FindUniqueArgs) Validate() error {
	if len(a.Where) == 0 {
		return runtime.Invalid("where", "a unique selector is required")
	}
	return CheckProjection(a.Select, a.Include)
}

// Validate checks create arguments.
func (a *CreateArgs) Validate() error {
	return CheckProjection(a.Select, a.Include)
}

// Validate checks createManyAndReturn arguments. Relations cannot be loaded
// from a bulk insert.
func (a *CreateManyAndReturnArgs) Validate() error {
	if err := CheckProjection(a.Select, a.Include); err != nil {
		return err
	}
	if len(a.Include) > 0 {
		return runtime.Invalid("include", "not supported by createManyAndReturn")
	}
	return nil
}

// Validate checks update arguments.
func (a *UpdateArgs) Validate() error {
	if len(a.Where) == 0 {
		return runtime.Invalid("where", "a unique selector is required")
	}
	return CheckProjection(a.Select, a.Include)
}

// Validate checks upsert arguments.
func (a *UpsertArgs) Validate() error {
	if len(a.Where) == 0 {
		return runtime.Invalid("where", "a unique selector is required")
	}
	return CheckProjection(a.Select, a.Include)
}

// Validate checks delete arguments.
func (a *DeleteArgs) Validate() error {
	if len(a.Where) == 0 {
		return runtime.Invalid("where", "a unique selector is required")
	}
	return CheckProjection(a.Select, a.Include)
}

// Validate checks count arguments.
func (a *CountArgs) Validate() error {
	return CheckPage(a.Take, a.Skip)
}

// Validate checks aggregate arguments.
func (a *AggregateArgs) Validate() error {
	return CheckPage(a.Take, a.Skip)
}

// Validate checks the groupBy rules: by is required, plain having filters
// and orderBy fields must be grouped, and take/skip need an orderBy.
func (a *GroupByArgs) Validate() error {
	if len(a.By) == 0 {
		return runtime.Invalid("by", "at least one field is required")
	}
	grouped := make(map[string]bool, len(a.By))
	for _, f := range a.By {
		grouped[f] = true
	}
	if err := checkHaving(a.Having, grouped, "having"); err != nil {
		return err
	}
	for _, ord := range a.OrderBy {
		if !grouped[ord.Field] {
			return runtime.Invalid("orderBy."+ord.Field, "field must be included in by")
		}
	}
	if (a.Take != nil || a.Skip != nil) && len(a.OrderBy) == 0 {
		return runtime.Invalid("orderBy", "required when take or skip is used")
	}
	return CheckPage(a.Take, a.Skip)
}

// checkHaving rejects plain having filters on fields that are not grouped,
// descending into AND, OR and NOT.
func checkHaving(h Having, grouped map[string]bool, path string) error {
	for field, v := range h {
		p := path + "." + field
		if field == KeyAND || field == KeyOR || field == KeyNOT {
			var items []any
			if m, ok := AsMap(v); ok {
				items = []any{m}
			} else if list, ok := AsSlice(v); ok {
				items = list
			}
			for i, item := range items {
				m, ok := AsMap(item)
				if !ok {
					continue
				}
				if err := checkHaving(Having(m), grouped, fmt.Sprintf("%s[%d]", p, i)); err != nil {
					return err
				}
			}
			continue
		}
		if _, ok := AsHavingAggregate(v); ok {
			continue
		}
		if !grouped[field] {
			return runtime.Invalid(p, "field must be included in by")
		}
	}
	return nil
}
