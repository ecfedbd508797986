package document

import (
	"strings"

	"github.com/nimburion/docstore/pkg/failure"
	"github.com/nimburion/docstore/pkg/filter"
)

// NormalizeCollection trims and lower-cases a collection name. It is idempotent.
func NormalizeCollection(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return "", failure.New(failure.KindInvalid, "collection name is required")
	}
	if strings.HasPrefix(n, "system.") || strings.ContainsAny(n, "$\x00") {
		return "", failure.Newf(failure.KindInvalid, "invalid collection name %q", name)
	}
	return n, nil
}

// PredicateFilter translates a predicate into a store-native filter.
func PredicateFilter(p filter.Predicate) Filter {
	return Filter{p.Field: map[string]interface{}{string(p.Operator): p.Value.Native()}}
}

// And combines predicates into one filter. Predicates on the same field are merged.
func And(preds ...filter.Predicate) Filter {
	out := Filter{}
	for _, p := range preds {
		cond, ok := out[p.Field].(map[string]interface{})
		if !ok {
			cond = map[string]interface{}{}
			out[p.Field] = cond
		}
		cond[string(p.Operator)] = p.Value.Native()
	}
	return out
}

func parseExpression(expr string) (Filter, error) {
	p, err := filter.Parse(expr)
	if err != nil {
		return nil, err
	}
	return PredicateFilter(p), nil
}
