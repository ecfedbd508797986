package filter

import (
	"strings"

	"github.com/nimburion/docstore/pkg/failure"
)

// Predicate is a single field comparison.
type Predicate struct {
	Field    string
	Operator Operator
	Value    Value
}

// Where builds a predicate from typed parts, applying the same field and operator rules as Parse.
func Where(field string, op Operator, value Value) (Predicate, error) {
	if err := validateField(field); err != nil {
		return Predicate{}, err
	}
	if !op.Valid() {
		return Predicate{}, failure.Newf(failure.KindUnsupportedOperator, "unsupported operator %q", string(op))
	}
	if op == In && value.Kind() != KindList {
		value = List(value)
	}
	return Predicate{Field: field, Operator: op, Value: value}, nil
}

// MustWhere is like Where but panics on error. Use it for constant predicates only.
func MustWhere(field string, op Operator, value Value) Predicate {
	p, err := Where(field, op, value)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the predicate as a filter expression. Predicates built with Where may hold
// values Parse cannot tokenize; see Value.String.
func (p Predicate) String() string {
	return p.Field + " " + string(p.Operator) + " " + p.Value.String()
}

// Equal reports whether two predicates are identical.
func (p Predicate) Equal(other Predicate) bool {
	return p.Field == other.Field && p.Operator == other.Operator && p.Value.Equal(other.Value)
}

func validateField(field string) error {
	switch {
	case field == "":
		return failure.New(failure.KindMalformedFilter, "field name is empty")
	case strings.HasPrefix(field, "$"):
		return failure.Newf(failure.KindMalformedFilter, "field name %q must not start with '$'", field)
	case strings.ContainsRune(field, 0):
		return failure.New(failure.KindMalformedFilter, "field name contains a NUL byte")
	case strings.HasPrefix(field, ".") || strings.HasSuffix(field, ".") || strings.Contains(field, ".."):
		return failure.Newf(failure.KindMalformedFilter, "field path %q has an empty segment", field)
	}
	return nil
}
