// Package identifier mints numeric identifiers for new documents.
//
// Two strategies exist. Stateless draws a random token and folds its character codes into a
// fixed number of digits; collisions are improbable but possible. Sequential increments a
// shared counter atomically and combines it with the current time; it needs a counter store.
// Each entity is bound to exactly one strategy through a Registry.
package identifier

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nimburion/docstore/pkg/failure"
)

// Strategy produces identifiers.
type Strategy interface {
	Name() string
	Next(ctx context.Context) (int64, error)
}

// Recorder receives one observation per allocation attempt.
type Recorder interface {
	ObserveAllocation(entity, strategy, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAllocation(string, string, string) {}

// Registry binds entity names to strategies. Bindings are fixed after registration.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	recorder   Recorder
}

// NewRegistry returns an empty registry. rec may be nil.
func NewRegistry(rec Recorder) *Registry {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Registry{strategies: map[string]Strategy{}, recorder: rec}
}

// Register binds entity to s. Binding an entity twice is an error.
func (r *Registry) Register(entity string, s Strategy) error {
	if entity == "" {
		return fmt.Errorf("entity name is required")
	}
	if s == nil {
		return fmt.Errorf("strategy for %q is nil", entity)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.strategies[entity]; ok {
		return fmt.Errorf("entity %q already uses the %s strategy", entity, existing.Name())
	}
	r.strategies[entity] = s
	return nil
}

// For returns the strategy bound to entity.
func (r *Registry) For(entity string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[entity]
	if !ok {
		return nil, fmt.Errorf("no identifier strategy registered for %q", entity)
	}
	return s, nil
}

// Entities lists registered entity names in order.
func (r *Registry) Entities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.strategies))
	for k := range r.strategies {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Next mints an identifier for entity using its bound strategy.
func (r *Registry) Next(ctx context.Context, entity string) (int64, error) {
	s, err := r.For(entity)
	if err != nil {
		return 0, failure.Wrap(failure.KindIdentifierGeneration, err, "unknown entity")
	}
	id, err := s.Next(ctx)
	if err != nil {
		r.recorder.ObserveAllocation(entity, s.Name(), string(failure.KindOf(err)))
		return 0, err
	}
	r.recorder.ObserveAllocation(entity, s.Name(), "ok")
	return id, nil
}

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time
