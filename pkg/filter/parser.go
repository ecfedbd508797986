// Package filter parses textual filter expressions of the form "field $op value" into typed predicates.
//
// Values may carry an explicit type tag ("int:5", "str:0123", "date:2024-01-31"). Untagged values
// are coerced in the order integer, float, boolean, string, which cannot tell the string "0123"
// apart from the number 123. Callers that need an exact type tag the value or build the predicate
// with Where.
package filter

import (
	"strings"

	"github.com/nimburion/docstore/pkg/failure"
)

// Parse converts "field $op value" into a Predicate.
//
// The expression must contain exactly three whitespace-separated tokens, so values containing
// whitespace are rejected. For $in the value is a comma-separated list.
func Parse(expression string) (Predicate, error) {
	tokens := strings.Fields(expression)
	if len(tokens) != 3 {
		return Predicate{}, failure.Newf(failure.KindMalformedFilter,
			"expected \"field $op value\", got %d token(s)", len(tokens)).
			WithDetails(map[string]interface{}{"expression": expression})
	}
	field, rawOp, rawValue := tokens[0], tokens[1], tokens[2]

	if err := validateField(field); err != nil {
		return Predicate{}, err
	}
	op, err := ParseOperator(rawOp)
	if err != nil {
		return Predicate{}, err
	}

	var value Value
	if op == In {
		value, err = parseList(rawValue)
	} else {
		value, err = parseScalar(rawValue)
	}
	if err != nil {
		return Predicate{}, failure.Wrap(failure.KindMalformedFilter, err, "invalid value").
			WithDetails(map[string]interface{}{"expression": expression})
	}

	return Predicate{Field: field, Operator: op, Value: value}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(expression string) Predicate {
	p, err := Parse(expression)
	if err != nil {
		panic(err)
	}
	return p
}

func parseScalar(token string) (Value, error) {
	if kind, literal, ok := splitTag(token); ok {
		return parseTagged(kind, literal)
	}
	return coerce(token), nil
}

// parseList reads an $in operand. A tag on the first element carries over to untagged followers.
func parseList(token string) (Value, error) {
	parts := strings.Split(token, ",")
	items := make([]Value, 0, len(parts))

	inherited, hasInherited := KindString, false
	for i, part := range parts {
		if part == "" {
			return Value{}, errEmptyListElement
		}
		kind, literal, tagged := splitTag(part)
		switch {
		case tagged:
			if i == 0 {
				inherited, hasInherited = kind, true
			}
			v, err := parseTagged(kind, literal)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		case hasInherited:
			v, err := parseTagged(inherited, part)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		default:
			items = append(items, coerce(part))
		}
	}
	return List(items...), nil
}

type listError string

func (e listError) Error() string { return string(e) }

const errEmptyListElement = listError("empty element in $in list")
