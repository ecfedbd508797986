package identifier

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/nimburion/docstore/pkg/observability/tracing"
	"github.com/nimburion/docstore/pkg/resilience"
	mongostore "github.com/nimburion/docstore/pkg/store/mongodb"
	redisstore "github.com/nimburion/docstore/pkg/store/redis"
)

const (
	// DefaultCounterCollection holds one document per counter: {_id: <name>, sequence: <n>}.
	DefaultCounterCollection = "usercounters"
	// DefaultRedisCounterPrefix namespaces counter keys in Redis.
	DefaultRedisCounterPrefix = "counter:"

	counterField = "sequence"
)

// MongoCounterStore keeps counters in a MongoDB collection and increments them with
// findOneAndUpdate, so concurrent callers never observe the same value.
type MongoCounterStore struct {
	adapter    *mongostore.Adapter
	collection string
}

// NewMongoCounterStore returns a counter store over adapter. An empty collection selects
// DefaultCounterCollection.
func NewMongoCounterStore(adapter *mongostore.Adapter, collection string) (*MongoCounterStore, error) {
	if adapter == nil {
		return nil, fmt.Errorf("mongodb adapter is required")
	}
	if collection == "" {
		collection = DefaultCounterCollection
	}
	return &MongoCounterStore{adapter: adapter, collection: collection}, nil
}

func (s *MongoCounterStore) Backend() string { return "mongodb" }

func (s *MongoCounterStore) Increment(ctx context.Context, name string) (int64, error) {
	ctx, span := tracing.StartCounterSpan(ctx, s.Backend(), name)
	defer span.End()

	var doc struct {
		Sequence int64 `bson:"sequence"`
	}
	if err := s.adapter.IncrementField(ctx, s.collection, bson.M{"_id": name}, counterField, &doc); err != nil {
		tracing.RecordError(span, err)
		return 0, fmt.Errorf("increment counter %q: %w", name, err)
	}
	tracing.RecordSuccess(span)
	return doc.Sequence, nil
}

// RedisCounterStore keeps counters as Redis integers incremented with INCR.
type RedisCounterStore struct {
	adapter *redisstore.Adapter
	prefix  string
}

// NewRedisCounterStore returns a counter store over adapter.
func NewRedisCounterStore(adapter *redisstore.Adapter, prefix string) (*RedisCounterStore, error) {
	if adapter == nil {
		return nil, fmt.Errorf("redis adapter is required")
	}
	if prefix == "" {
		prefix = DefaultRedisCounterPrefix
	}
	return &RedisCounterStore{adapter: adapter, prefix: prefix}, nil
}

func (s *RedisCounterStore) Backend() string { return "redis" }

func (s *RedisCounterStore) Increment(ctx context.Context, name string) (int64, error) {
	ctx, span := tracing.StartCounterSpan(ctx, s.Backend(), name)
	defer span.End()

	n, err := s.adapter.Incr(ctx, s.prefix+name)
	if err != nil {
		tracing.RecordError(span, err)
		return 0, fmt.Errorf("increment counter %q: %w", name, err)
	}
	tracing.RecordSuccess(span)
	return n, nil
}

// MemoryCounterStore keeps counters in process memory. Values are lost on restart.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: map[string]int64{}}
}

func (s *MemoryCounterStore) Backend() string { return "memory" }

func (s *MemoryCounterStore) Increment(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name]++
	return s.counters[name], nil
}

// Current returns the last value handed out for name.
func (s *MemoryCounterStore) Current(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[name]
}

// GuardedCounterStore fails fast with resilience.ErrOpen while its backend keeps failing.
type GuardedCounterStore struct {
	store   CounterStore
	breaker *resilience.CircuitBreaker
}

// NewGuardedCounterStore wraps store with breaker.
func NewGuardedCounterStore(store CounterStore, breaker *resilience.CircuitBreaker) *GuardedCounterStore {
	return &GuardedCounterStore{store: store, breaker: breaker}
}

func (g *GuardedCounterStore) Backend() string { return g.store.Backend() }

// Breaker exposes the breaker for health reporting.
func (g *GuardedCounterStore) Breaker() *resilience.CircuitBreaker { return g.breaker }

func (g *GuardedCounterStore) Increment(ctx context.Context, name string) (int64, error) {
	var n int64
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		n, err = g.store.Increment(ctx, name)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
