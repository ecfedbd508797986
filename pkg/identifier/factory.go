package identifier

import (
	"fmt"
	"strings"
)

const (
	StrategyStateless  = "stateless"
	StrategySequential = "sequential"
)

// Binding assigns a strategy to an entity.
type Binding struct {
	Entity   string
	Strategy string
	// Digits overrides the strategy's default digit count when positive.
	Digits int
	// Counter overrides the sequential counter name.
	Counter string
}

// Build creates a registry from bindings. store is required only when a binding selects the
// sequential strategy.
func Build(bindings []Binding, store CounterStore, rec Recorder) (*Registry, error) {
	reg := NewRegistry(rec)
	for _, b := range bindings {
		s, err := newStrategy(b, store)
		if err != nil {
			return nil, fmt.Errorf("identifier binding %q: %w", b.Entity, err)
		}
		if err := reg.Register(b.Entity, s); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func newStrategy(b Binding, store CounterStore) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(b.Strategy)) {
	case StrategyStateless:
		return NewStateless(b.Digits)
	case StrategySequential:
		if store == nil {
			return nil, fmt.Errorf("sequential strategy requires a counter store")
		}
		opts := []SequentialOption{}
		if b.Digits > 0 {
			opts = append(opts, WithDigits(b.Digits))
		}
		if b.Counter != "" {
			opts = append(opts, WithCounter(b.Counter))
		}
		return NewSequential(store, opts...)
	default:
		return nil, fmt.Errorf("unsupported identifier strategy %q", b.Strategy)
	}
}
