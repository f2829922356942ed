// Package query defines the argument shapes shared by every model: filters,
// unique selectors, ordering, projection, write data and aggregation.
//
// All shapes are plain maps and slices so they can be written as Go literals
// or decoded straight from JSON:
//
//	query.Where{
//	    "name":       query.Contains("head").Insensitive(),
//	    "popularity": query.Gte(50),
//	    "OR": []query.Where{{"slug": "radiohead"}, {"slug": "muse"}},
//	}
package query

// Logical combinator keys inside a Where.
const (
	KeyAND = "AND"
	KeyOR  = "OR"
	KeyNOT = "NOT"
)

// Where filters rows. Keys are field names, relation names or AND/OR/NOT.
// A field maps to a shorthand equality value (nil means IS NULL) or to a
// Filter, ListFilter or JSONFilter. A relation maps to a RelationFilter.
type Where map[string]any

// WhereUnique addresses at most one row. It must name the primary key, a
// unique field or a compound unique by its concatenated name, for example
//
//	query.WhereUnique{"artistId_venueId_date": map[string]any{
//	    "artistId": id, "venueId": venue, "date": day,
//	}}
//
// Other keys act as additional filters.
type WhereUnique map[string]any

// And combines conditions that must all match.
func And(conds ...Where) Where {
	return Where{KeyAND: conds}
}

// Or combines conditions of which at least one must match.
func Or(conds ...Where) Where {
	return Where{KeyOR: conds}
}

// Not negates every given condition.
func Not(conds ...Where) Where {
	return Where{KeyNOT: conds}
}

// Filter keys for scalar fields.
const (
	OpEquals     = "equals"
	OpNot        = "not"
	OpIn         = "in"
	OpNotIn      = "notIn"
	OpLt         = "lt"
	OpLte        = "lte"
	OpGt         = "gt"
	OpGte        = "gte"
	OpContains   = "contains"
	OpStartsWith = "startsWith"
	OpEndsWith   = "endsWith"
	OpMode       = "mode"
	OpIsNull     = "isNull"
)

// QueryMode selects case sensitivity for string filters.
type QueryMode string

const (
	ModeDefault     QueryMode = "default"
	ModeInsensitive QueryMode = "insensitive"
)

// Filter is a condition on a scalar field.
type Filter map[string]any

func (f Filter) with(key string, v any) Filter {
	out := make(Filter, len(f)+1)
	for k, val := range f {
		out[k] = val
	}
	out[key] = v
	return out
}

// Equals matches values equal to v.
func Equals(v any) Filter { return Filter{OpEquals: v} }

// NotEq matches values different from v. NotEq(nil) matches non-null values.
func NotEq(v any) Filter { return Filter{OpNot: v} }

// In matches values contained in vs.
func In(vs ...any) Filter { return Filter{OpIn: vs} }

// NotIn matches values not contained in vs.
func NotIn(vs ...any) Filter { return Filter{OpNotIn: vs} }

// Lt matches values less than v.
func Lt(v any) Filter { return Filter{OpLt: v} }

// Lte matches values less than or equal to v.
func Lte(v any) Filter { return Filter{OpLte: v} }

// Gt matches values greater than v.
func Gt(v any) Filter { return Filter{OpGt: v} }

// Gte matches values greater than or equal to v.
func Gte(v any) Filter { return Filter{OpGte: v} }

// Contains matches strings containing s.
func Contains(s string) Filter { return Filter{OpContains: s} }

// StartsWith matches strings starting with s.
func StartsWith(s string) Filter { return Filter{OpStartsWith: s} }

// EndsWith matches strings ending with s.
func EndsWith(s string) Filter { return Filter{OpEndsWith: s} }

// IsNull matches null (true) or non-null (false) values.
func IsNull(null bool) Filter { return Filter{OpIsNull: null} }

// Lt adds an upper bound.
func (f Filter) Lt(v any) Filter { return f.with(OpLt, v) }

// Lte adds an inclusive upper bound.
func (f Filter) Lte(v any) Filter { return f.with(OpLte, v) }

// Gt adds a lower bound.
func (f Filter) Gt(v any) Filter { return f.with(OpGt, v) }

// Gte adds an inclusive lower bound.
func (f Filter) Gte(v any) Filter { return f.with(OpGte, v) }

// Not adds a negated condition.
func (f Filter) Not(v any) Filter { return f.with(OpNot, v) }

// Insensitive makes string comparisons case-insensitive.
func (f Filter) Insensitive() Filter { return f.with(OpMode, ModeInsensitive) }

// List filter keys.
const (
	OpHas      = "has"
	OpHasEvery = "hasEvery"
	OpHasSome  = "hasSome"
	OpIsEmpty  = "isEmpty"
)

// ListFilter is a condition on a scalar list field.
type ListFilter map[string]any

// Has matches lists containing v.
func Has(v any) ListFilter { return ListFilter{OpHas: v} }

// HasEvery matches lists containing all of vs.
func HasEvery(vs ...any) ListFilter { return ListFilter{OpHasEvery: vs} }

// HasSome matches lists containing at least one of vs.
func HasSome(vs ...any) ListFilter { return ListFilter{OpHasSome: vs} }

// IsEmpty matches empty (true) or non-empty (false) lists.
func IsEmpty(empty bool) ListFilter { return ListFilter{OpIsEmpty: empty} }

// ListEquals matches lists equal to vs.
func ListEquals(vs ...any) ListFilter { return ListFilter{OpEquals: vs} }

// JSON filter keys.
const (
	OpPath             = "path"
	OpStringContains   = "string_contains"
	OpStringStartsWith = "string_starts_with"
	OpStringEndsWith   = "string_ends_with"
	OpArrayContains    = "array_contains"
)

// NullValue distinguishes the two kinds of null a JSON column can hold.
type NullValue string

const (
	// DbNull is SQL NULL: the column holds no value.
	DbNull NullValue = "DbNull"
	// JsonNull is the JSON literal null stored in the column.
	JsonNull NullValue = "JsonNull"
	// AnyNull matches either. Only valid in filters.
	AnyNull NullValue = "AnyNull"
)

// NullValueKey is the JSON input form of a NullValue: {"$null": "DbNull"}.
const NullValueKey = "$null"

// JSONFilter is a condition on a JSON field.
type JSONFilter map[string]any

// JSONEquals matches JSON values equal to v, or a NullValue.
func JSONEquals(v any) JSONFilter { return JSONFilter{OpEquals: v} }

// JSONNot matches JSON values different from v, or not matching a NullValue.
func JSONNot(v any) JSONFilter { return JSONFilter{OpNot: v} }

// JSONPath starts a filter on the value at path.
func JSONPath(path ...string) JSONFilter { return JSONFilter{OpPath: path} }

func (f JSONFilter) with(key string, v any) JSONFilter {
	out := make(JSONFilter, len(f)+1)
	for k, val := range f {
		out[k] = val
	}
	out[key] = v
	return out
}

// Equals compares the value at the filter's path.
func (f JSONFilter) Equals(v any) JSONFilter { return f.with(OpEquals, v) }

// StringContains matches string values containing s.
func (f JSONFilter) StringContains(s string) JSONFilter { return f.with(OpStringContains, s) }

// StringStartsWith matches string values starting with s.
func (f JSONFilter) StringStartsWith(s string) JSONFilter { return f.with(OpStringStartsWith, s) }

// StringEndsWith matches string values ending with s.
func (f JSONFilter) StringEndsWith(s string) JSONFilter { return f.with(OpStringEndsWith, s) }

// ArrayContains matches arrays containing v.
func (f JSONFilter) ArrayContains(v any) JSONFilter { return f.with(OpArrayContains, v) }

// Relation filter keys.
const (
	OpSome  = "some"
	OpEvery = "every"
	OpNone  = "none"
	OpIs    = "is"
	OpIsNot = "isNot"
)

// RelationFilter is a condition on related rows. To-many relations take
// some/every/none, to-one relations take is/isNot. A nil Where under is or
// isNot tests for the relation's absence or presence.
type RelationFilter map[string]any

// Some matches when at least one related row matches w.
func Some(w Where) RelationFilter { return RelationFilter{OpSome: w} }

// Every matches when all related rows match w.
func Every(w Where) RelationFilter { return RelationFilter{OpEvery: w} }

// None matches when no related row matches w.
func None(w Where) RelationFilter { return RelationFilter{OpNone: w} }

// Is matches when the related row matches w.
func Is(w Where) RelationFilter { return RelationFilter{OpIs: w} }

// IsNot matches when the related row does not match w.
func IsNot(w Where) RelationFilter { return RelationFilter{OpIsNot: w} }
