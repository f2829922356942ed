package query

// Int returns a pointer to n, for Take and Skip.
func Int(n int) *int {
	return &n
}

// FindUniqueArgs are the arguments of findUnique and findUniqueOrThrow.
type FindUniqueArgs struct {
	Where   WhereUnique
	Select  Select
	Include Include
}

// FindManyArgs are the arguments of findMany, findFirst and
// findFirstOrThrow, and of nested relation reads.
type FindManyArgs struct {
	Where   Where
	OrderBy OrderBy
	// Cursor starts the page at the addressed row, inclusive.
	Cursor WhereUnique
	// Take limits the page size. A negative value pages backwards.
	Take     *int
	Skip     *int
	Distinct []string
	Select   Select
	Include  Include
}

// FindFirstArgs are the arguments of findFirst.
type FindFirstArgs = FindManyArgs

// CreateArgs are the arguments of create.
type CreateArgs struct {
	Data    Data
	Select  Select
	Include Include
}

// CreateManyArgs are the arguments of createMany.
type CreateManyArgs struct {
	Data []Data
	// SkipDuplicates ignores rows that violate a unique constraint.
	SkipDuplicates bool
}

// CreateManyAndReturnArgs are the arguments of createManyAndReturn. Include
// is rejected.
type CreateManyAndReturnArgs struct {
	Data           []Data
	SkipDuplicates bool
	Select         Select
	Include        Include
}

// UpdateArgs are the arguments of update.
type UpdateArgs struct {
	Where   WhereUnique
	Data    Data
	Select  Select
	Include Include
}

// UpdateManyArgs are the arguments of updateMany.
type UpdateManyArgs struct {
	Where Where
	Data  Data
}

// UpsertArgs are the arguments of upsert.
type UpsertArgs struct {
	Where   WhereUnique
	Create  Data
	Update  Data
	Select  Select
	Include Include
}

// DeleteArgs are the arguments of delete.
type DeleteArgs struct {
	Where   WhereUnique
	Select  Select
	Include Include
}

// DeleteManyArgs are the arguments of deleteMany.
type DeleteManyArgs struct {
	Where Where
}

// CountArgs are the arguments of count.
type CountArgs struct {
	Where   Where
	OrderBy OrderBy
	Cursor  WhereUnique
	Take    *int
	Skip    *int
	// Select counts non-null values per field; "_all" counts rows.
	Select []string
}

// AggregateArgs are the arguments of aggregate. Count accepts "_all".
type AggregateArgs struct {
	Where   Where
	OrderBy OrderBy
	Cursor  WhereUnique
	Take    *int
	Skip    *int

	Count []string
	Avg   []string
	Sum   []string
	Min   []string
	Max   []string
}

// GroupByArgs are the arguments of groupBy.
type GroupByArgs struct {
	By      []string
	Where   Where
	Having  Having
	OrderBy OrderBy
	Take    *int
	Skip    *int

	Count []string
	Avg   []string
	Sum   []string
	Min   []string
	Max   []string
}

// Aggregate keys.
const (
	AggCount = "_count"
	AggAvg   = "_avg"
	AggSum   = "_sum"
	AggMin   = "_min"
	AggMax   = "_max"
	CountAll = "_all"
)

// Having filters groups. A field listed in By maps to a Filter; any field may
// map to a HavingAggregate.
type Having map[string]any

// HavingAggregate filters on an aggregate of a field, keyed by _count,
// _avg, _sum, _min or _max.
type HavingAggregate map[string]Filter
