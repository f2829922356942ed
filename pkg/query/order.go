package query

// SortOrder is a sort direction.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// NullsOrder places nulls before or after other values.
type NullsOrder string

const (
	NullsFirst NullsOrder = "first"
	NullsLast  NullsOrder = "last"
)

// Order sorts by one field.
type Order struct {
	Field string
	Sort  SortOrder
	Nulls NullsOrder
}

// OrderBy is a list of sort keys, most significant first.
type OrderBy []Order

// By sorts by field in the given direction.
func By(field string, sort SortOrder) Order {
	return Order{Field: field, Sort: sort}
}

// NullsFirst places nulls first.
func (o Order) NullsFirst() Order {
	o.Nulls = NullsFirst
	return o
}

// NullsLast places nulls last.
func (o Order) NullsLast() Order {
	o.Nulls = NullsLast
	return o
}

// Reverse flips the direction and the null placement.
func (o Order) Reverse() Order {
	if o.Sort == Desc {
		o.Sort = Asc
	} else {
		o.Sort = Desc
	}
	switch o.Nulls {
	case NullsFirst:
		o.Nulls = NullsLast
	case NullsLast:
		o.Nulls = NullsFirst
	}
	return o
}

// Fields returns the field names in order.
func (o OrderBy) Fields() []string {
	out := make([]string, len(o))
	for i, ord := range o {
		out[i] = ord.Field
	}
	return out
}

// Has reports whether field is one of the sort keys.
func (o OrderBy) Has(field string) bool {
	for _, ord := range o {
		if ord.Field == field {
			return true
		}
	}
	return false
}
