package query

// Data holds the values of a create or update. Scalar fields map to a plain
// value, nil (clears a nullable field), a NullValue (JSON fields) or a
// FieldOp. Relation fields map to a RelationWrite.
type Data map[string]any

// Field update operators.
const (
	OpSet       = "set"
	OpIncrement = "increment"
	OpDecrement = "decrement"
	OpMultiply  = "multiply"
	OpDivide    = "divide"
	OpPush      = "push"
)

// FieldOp is an update operator applied to a scalar field.
type FieldOp struct {
	Op    string
	Value any
}

// Set assigns v.
func Set(v any) FieldOp { return FieldOp{Op: OpSet, Value: v} }

// Increment adds n to a numeric field.
func Increment(n any) FieldOp { return FieldOp{Op: OpIncrement, Value: n} }

// Decrement subtracts n from a numeric field.
func Decrement(n any) FieldOp { return FieldOp{Op: OpDecrement, Value: n} }

// Multiply multiplies a numeric field by n.
func Multiply(n any) FieldOp { return FieldOp{Op: OpMultiply, Value: n} }

// Divide divides a numeric field by n.
func Divide(n any) FieldOp { return FieldOp{Op: OpDivide, Value: n} }

// Push appends one or more values to a list field.
func Push(vs ...any) FieldOp {
	if len(vs) == 1 {
		return FieldOp{Op: OpPush, Value: vs[0]}
	}
	return FieldOp{Op: OpPush, Value: vs}
}

// IsArithmetic reports whether the operator needs a numeric field.
func (o FieldOp) IsArithmetic() bool {
	switch o.Op {
	case OpIncrement, OpDecrement, OpMultiply, OpDivide:
		return true
	}
	return false
}

// Relation write keys.
const (
	WriteConnect         = "connect"
	WriteCreate          = "create"
	WriteConnectOrCreate = "connectOrCreate"
	WriteUpsert          = "upsert"
	WriteDisconnect      = "disconnect"
)

// RelationWrite is a nested write on a relation field. Values under each key
// may be a single item or a slice for to-many relations.
type RelationWrite map[string]any

// ConnectOrCreateInput connects the row matched by Where or creates Create.
type ConnectOrCreateInput struct {
	Where  WhereUnique
	Create Data
}

// UpsertInput updates the related row matched by Where or creates Create.
type UpsertInput struct {
	Where  WhereUnique
	Create Data
	Update Data
}

// Connect links existing rows.
func Connect(where ...WhereUnique) RelationWrite {
	if len(where) == 1 {
		return RelationWrite{WriteConnect: where[0]}
	}
	return RelationWrite{WriteConnect: where}
}

// CreateRelated creates related rows.
func CreateRelated(data ...Data) RelationWrite {
	if len(data) == 1 {
		return RelationWrite{WriteCreate: data[0]}
	}
	return RelationWrite{WriteCreate: data}
}

// ConnectOrCreate links an existing row or creates it.
func ConnectOrCreate(where WhereUnique, create Data) RelationWrite {
	return RelationWrite{WriteConnectOrCreate: ConnectOrCreateInput{Where: where, Create: create}}
}

// UpsertRelated updates a related row or creates it.
func UpsertRelated(where WhereUnique, create, update Data) RelationWrite {
	return RelationWrite{WriteUpsert: UpsertInput{Where: where, Create: create, Update: update}}
}

// Disconnect unlinks related rows. For to-one relations pass no arguments.
func Disconnect(where ...WhereUnique) RelationWrite {
	switch len(where) {
	case 0:
		return RelationWrite{WriteDisconnect: true}
	case 1:
		return RelationWrite{WriteDisconnect: where[0]}
	default:
		return RelationWrite{WriteDisconnect: where}
	}
}
