package filter

import (
	"github.com/nimburion/docstore/pkg/failure"
)

// Operator is a comparison operator accepted in filter expressions.
type Operator string

const (
	Eq  Operator = "$eq"
	Ne  Operator = "$ne"
	Gt  Operator = "$gt"
	Lt  Operator = "$lt"
	Gte Operator = "$gte"
	Lte Operator = "$lte"
	In  Operator = "$in"
)

var operators = map[Operator]struct{}{
	Eq: {}, Ne: {}, Gt: {}, Lt: {}, Gte: {}, Lte: {}, In: {},
}

// Operators returns the supported operators in a stable order.
func Operators() []Operator {
	return []Operator{Eq, Ne, Gt, Lt, Gte, Lte, In}
}

// ParseOperator resolves a textual operator.
func ParseOperator(s string) (Operator, error) {
	op := Operator(s)
	if !op.Valid() {
		return "", failure.Newf(failure.KindUnsupportedOperator, "unsupported operator %q", s).
			WithDetails(map[string]interface{}{"operator": s})
	}
	return op, nil
}

// Valid reports whether op belongs to the supported set.
func (op Operator) Valid() bool {
	_, ok := operators[op]
	return ok
}

func (op Operator) String() string {
	return string(op)
}
