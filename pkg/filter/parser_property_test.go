package filter

import (
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/nimburion/docstore/pkg/failure"
)

// Property 1: Parsing is deterministic
//
// For any input string, two calls to Parse produce the same predicate or the same error kind.
func TestProperty_ParseDeterministic(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("same input, same outcome", prop.ForAll(
		func(expr string) bool {
			p1, err1 := Parse(expr)
			p2, err2 := Parse(expr)
			if (err1 == nil) != (err2 == nil) {
				return false
			}
			if err1 != nil {
				return failure.KindOf(err1) == failure.KindOf(err2)
			}
			return p1.Equal(p2)
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// Property 2: Well-formed triples always parse
//
// For any identifier field, supported operator and whitespace-free value, Parse returns a
// predicate carrying exactly that field and operator.
func TestProperty_WellFormedTriplesParse(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	opGen := gen.OneConstOf(Eq, Ne, Gt, Lt, Gte, Lte, In)

	properties.Property("field and operator preserved", prop.ForAll(
		func(field string, op Operator, value string) bool {
			p, err := Parse(field + " " + string(op) + " " + value)
			if err != nil {
				t.Logf("unexpected error: %v", err)
				return false
			}
			return p.Field == field && p.Operator == op
		},
		gen.Identifier(),
		opGen,
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.TestingRun(t)
}

// Property 3: Token count other than three is malformed
func TestProperty_WrongTokenCountIsMalformed(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("not three tokens fails", prop.ForAll(
		func(tokens []string) bool {
			if len(tokens) == 3 {
				return true
			}
			_, err := Parse(strings.Join(tokens, " "))
			return errors.Is(err, failure.ErrMalformedFilter)
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}

// Property 4: Integers survive parsing
func TestProperty_IntegerCoercion(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("untagged and tagged integers agree", prop.ForAll(
		func(n int64) bool {
			untagged := MustWhere("n", Eq, Int(n))
			p, err := Parse("n $eq " + untagged.Value.literal())
			if err != nil {
				return false
			}
			tagged, err := Parse(untagged.String())
			if err != nil {
				return false
			}
			return p.Equal(untagged) && tagged.Equal(untagged)
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// Property 5: Tagged strings keep their exact content
func TestProperty_TaggedStringsPreserved(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("str tag disables coercion", prop.ForAll(
		func(digits string) bool {
			p, err := Parse("code $eq str:" + digits)
			if err != nil {
				return false
			}
			return p.Value.Kind() == KindString && p.Value.Native() == digits
		},
		gen.NumString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.TestingRun(t)
}
