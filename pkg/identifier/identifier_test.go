package identifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimburion/docstore/pkg/failure"
	"github.com/nimburion/docstore/pkg/resilience"
)

func fixedToken(token string) StatelessOption {
	return WithTokenSource(func(int) (string, error) { return token, nil })
}

func TestStateless_FoldsCharacterCodes(t *testing.T) {
	s, err := NewStateless(12, fixedToken("ABCDEFGHIJKL"))
	require.NoError(t, err)

	id, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(656667686970), id)

	s10, err := NewStateless(10, fixedToken("ABCDEFGHIJKL"))
	require.NoError(t, err)
	str, err := s10.NextString(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "6566676869", str)
}

func TestStateless_DefaultsAndBounds(t *testing.T) {
	s, err := NewStateless(0)
	require.NoError(t, err)
	assert.Equal(t, DefaultStatelessDigits, s.Digits())
	assert.Equal(t, "stateless", s.Name())

	_, err = NewStateless(19)
	assert.Error(t, err)
	_, err = NewStateless(-1)
	assert.Error(t, err)
}

func TestStateless_RandomIdentifiersHaveExactDigitCount(t *testing.T) {
	s, err := NewStateless(12)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		str, err := s.NextString(context.Background())
		require.NoError(t, err)
		assert.Len(t, str, 12)
		assert.NotEqual(t, byte('0'), str[0])
	}
}

func TestStateless_TokenFailure(t *testing.T) {
	s, err := NewStateless(12, WithTokenSource(func(int) (string, error) {
		return "", errors.New("entropy exhausted")
	}))
	require.NoError(t, err)

	_, err = s.Next(context.Background())
	assert.True(t, failure.IsKind(err, failure.KindIdentifierGeneration))
}

func TestStateless_ShortTokenFails(t *testing.T) {
	s, err := NewStateless(12, fixedToken("AB"))
	require.NoError(t, err)
	_, err = s.Next(context.Background())
	assert.True(t, failure.IsKind(err, failure.KindIdentifierGeneration))
}

func fixedClock(millis int64) Clock {
	return func() time.Time { return time.UnixMilli(millis) }
}

func TestSequential_ComposesTimeAndSequence(t *testing.T) {
	store := NewMemoryCounterStore()
	s, err := NewSequential(store, WithClock(fixedClock(1700000000123)))
	require.NoError(t, err)

	a, err := s.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Sequence)
	assert.Equal(t, int64(1230001), a.ID)

	for i := 0; i < 5; i++ {
		_, err := s.Next(context.Background())
		require.NoError(t, err)
	}
	a, err = s.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.Sequence)
	assert.Equal(t, int64(1230007), a.ID)
	assert.Equal(t, int64(7), store.Current(DefaultCounter))
}

func TestSequential_SequenceWiderThanPad(t *testing.T) {
	id, err := compose(1700000000123, 12345, DefaultSequencePad, DefaultSequentialDigits)
	require.NoError(t, err)
	assert.Equal(t, int64(12312345), id)
}

func TestSequential_CustomCounter(t *testing.T) {
	store := NewMemoryCounterStore()
	s, err := NewSequential(store, WithCounter("countOrders"))
	require.NoError(t, err)

	_, err = s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.Current("countOrders"))
	assert.Equal(t, int64(0), store.Current(DefaultCounter))
}

type failingStore struct{ err error }

func (f failingStore) Backend() string { return "failing" }
func (f failingStore) Increment(context.Context, string) (int64, error) {
	return 0, f.err
}

func TestSequential_CounterFailureYieldsNoIdentifier(t *testing.T) {
	s, err := NewSequential(failingStore{err: errors.New("connection refused")})
	require.NoError(t, err)

	a, err := s.Allocate(context.Background())
	require.Error(t, err)
	assert.Equal(t, Allocation{}, a)
	assert.True(t, errors.Is(err, failure.ErrIdentifierGeneration))
}

func TestGuardedCounterStore_FailsFastWhenOpen(t *testing.T) {
	backend := &countingStore{err: errors.New("connection refused")}
	breaker := resilience.NewCircuitBreaker("counter", 2, time.Hour)
	s, err := NewSequential(NewGuardedCounterStore(backend, breaker))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := s.Next(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, failure.ErrIdentifierGeneration))
	}
	assert.Equal(t, 2, backend.calls, "breaker should stop calling the backend once open")
	assert.Equal(t, resilience.StateOpen, breaker.State())

	_, err = s.Next(context.Background())
	assert.True(t, errors.Is(err, resilience.ErrOpen))
}

func TestGuardedCounterStore_PassesThrough(t *testing.T) {
	mem := NewMemoryCounterStore()
	g := NewGuardedCounterStore(mem, resilience.NewCircuitBreaker("counter", 1, time.Second))
	assert.Equal(t, "memory", g.Backend())

	n, err := g.Increment(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, resilience.StateClosed, g.Breaker().State())
}

type countingStore struct {
	calls int
	err   error
}

func (c *countingStore) Backend() string { return "counting" }
func (c *countingStore) Increment(context.Context, string) (int64, error) {
	c.calls++
	return 0, c.err
}

func TestSequential_Validation(t *testing.T) {
	_, err := NewSequential(nil)
	assert.Error(t, err)
	_, err = NewSequential(NewMemoryCounterStore(), WithCounter(""))
	assert.Error(t, err)
	_, err = NewSequential(NewMemoryCounterStore(), WithDigits(0))
	assert.Error(t, err)
	_, err = NewSequential(NewMemoryCounterStore(), WithPad(-1))
	assert.Error(t, err)
}

func TestSequential_ConcurrentAllocationsHaveDistinctSequences(t *testing.T) {
	store := NewMemoryCounterStore()
	s, err := NewSequential(store)
	require.NoError(t, err)

	const workers = 64
	results := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := s.Allocate(context.Background())
			if err == nil {
				results <- a.Sequence
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int64]bool{}
	for seq := range results {
		assert.False(t, seen[seq], "sequence %d handed out twice", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, workers)
	for i := int64(1); i <= workers; i++ {
		assert.True(t, seen[i], "sequence %d missing", i)
	}
}

func TestMemoryCounterStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryCounterStore().Increment(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

type recorded struct{ entity, strategy, outcome string }

type captureRecorder struct {
	mu   sync.Mutex
	seen []recorded
}

func (c *captureRecorder) ObserveAllocation(entity, strategy, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, recorded{entity, strategy, outcome})
}

func TestRegistry(t *testing.T) {
	rec := &captureRecorder{}
	reg := NewRegistry(rec)

	stateless, err := NewStateless(10, fixedToken("ABCDEFGHIJKL"))
	require.NoError(t, err)
	sequential, err := NewSequential(NewMemoryCounterStore(), WithClock(fixedClock(1700000000123)))
	require.NoError(t, err)

	require.NoError(t, reg.Register("product", stateless))
	require.NoError(t, reg.Register("user", sequential))
	assert.Error(t, reg.Register("user", stateless), "entity may use exactly one strategy")
	assert.Error(t, reg.Register("", stateless))
	assert.Error(t, reg.Register("order", nil))
	assert.Equal(t, []string{"product", "user"}, reg.Entities())

	id, err := reg.Next(context.Background(), "product")
	require.NoError(t, err)
	assert.Equal(t, int64(6566676869), id)

	id, err = reg.Next(context.Background(), "user")
	require.NoError(t, err)
	assert.Equal(t, int64(1230001), id)

	_, err = reg.Next(context.Background(), "invoice")
	assert.True(t, failure.IsKind(err, failure.KindIdentifierGeneration))

	assert.Equal(t, []recorded{
		{"product", "stateless", "ok"},
		{"user", "sequential", "ok"},
	}, rec.seen)
}

func TestRegistry_RecordsFailures(t *testing.T) {
	rec := &captureRecorder{}
	reg := NewRegistry(rec)
	s, err := NewSequential(failingStore{err: errors.New("down")})
	require.NoError(t, err)
	require.NoError(t, reg.Register("user", s))

	_, err = reg.Next(context.Background(), "user")
	require.Error(t, err)
	require.Len(t, rec.seen, 1)
	assert.Equal(t, string(failure.KindIdentifierGeneration), rec.seen[0].outcome)
}

func TestBuild(t *testing.T) {
	reg, err := Build([]Binding{
		{Entity: "user", Strategy: "Sequential"},
		{Entity: "product", Strategy: StrategyStateless, Digits: 10},
	}, NewMemoryCounterStore(), nil)
	require.NoError(t, err)

	s, err := reg.For("product")
	require.NoError(t, err)
	assert.Equal(t, 10, s.(*Stateless).Digits())

	_, err = Build([]Binding{{Entity: "user", Strategy: StrategySequential}}, nil, nil)
	assert.Error(t, err)

	_, err = Build([]Binding{{Entity: "user", Strategy: "uuid"}}, nil, nil)
	assert.Error(t, err)

	_, err = Build([]Binding{
		{Entity: "user", Strategy: StrategyStateless},
		{Entity: "user", Strategy: StrategyStateless},
	}, nil, nil)
	assert.Error(t, err)
}
