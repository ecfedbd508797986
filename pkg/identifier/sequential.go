package identifier

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nimburion/docstore/pkg/failure"
)

const (
	// DefaultCounter is the counter name used for user identifiers.
	DefaultCounter = "countUsers"
	// DefaultSequentialDigits is how many trailing digits of the composite are kept.
	DefaultSequentialDigits = 9
	// DefaultSequencePad is the zero-padded width of the sequence in the composite.
	DefaultSequencePad = 4
)

// CounterStore increments named counters atomically. The first increment of an absent
// counter returns 1.
type CounterStore interface {
	Backend() string
	Increment(ctx context.Context, name string) (int64, error)
}

// Allocation is one sequential identifier together with the counter value it consumed.
type Allocation struct {
	Sequence int64
	ID       int64
}

// Sequential composes identifiers from the current time and an atomically incremented counter.
//
// The composite "<unix millis><sequence padded to Pad>" is truncated to its last Digits
// characters. Truncation can wrap, so distinct sequences are guaranteed while distinct
// identifiers are only very likely.
type Sequential struct {
	store   CounterStore
	counter string
	digits  int
	pad     int
	now     Clock
}

// SequentialOption configures a Sequential strategy.
type SequentialOption func(*Sequential)

// WithCounter sets the counter name.
func WithCounter(name string) SequentialOption {
	return func(s *Sequential) { s.counter = name }
}

// WithDigits sets how many trailing digits are kept.
func WithDigits(n int) SequentialOption {
	return func(s *Sequential) { s.digits = n }
}

// WithPad sets the zero-padded sequence width.
func WithPad(n int) SequentialOption {
	return func(s *Sequential) { s.pad = n }
}

// WithClock replaces the time source.
func WithClock(c Clock) SequentialOption {
	return func(s *Sequential) { s.now = c }
}

// Cosa fa: costruisce la strategia sequenziale sopra un CounterStore.
// Cosa NON fa: non crea il contatore; il primo incremento lo inizializza.
// Esempio minimo: seq, err := identifier.NewSequential(identifier.NewMemoryCounterStore())
func NewSequential(store CounterStore, opts ...SequentialOption) (*Sequential, error) {
	if store == nil {
		return nil, fmt.Errorf("counter store is required")
	}
	s := &Sequential{
		store:   store,
		counter: DefaultCounter,
		digits:  DefaultSequentialDigits,
		pad:     DefaultSequencePad,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.counter == "" {
		return nil, fmt.Errorf("counter name is required")
	}
	if s.digits < 1 || s.digits > 18 {
		return nil, fmt.Errorf("sequential digits must be between 1 and 18, got %d", s.digits)
	}
	if s.pad < 0 {
		return nil, fmt.Errorf("sequence pad must not be negative")
	}
	return s, nil
}

func (s *Sequential) Name() string { return "sequential" }

// Next allocates and returns an identifier.
func (s *Sequential) Next(ctx context.Context) (int64, error) {
	a, err := s.Allocate(ctx)
	if err != nil {
		return 0, err
	}
	return a.ID, nil
}

// Allocate increments the counter and derives an identifier from it.
// When the counter cannot be incremented no identifier is produced.
func (s *Sequential) Allocate(ctx context.Context) (Allocation, error) {
	seq, err := s.store.Increment(ctx, s.counter)
	if err != nil {
		return Allocation{}, failure.Wrap(failure.KindIdentifierGeneration, err,
			fmt.Sprintf("counter %q unavailable", s.counter))
	}
	if seq < 1 {
		return Allocation{}, failure.Newf(failure.KindIdentifierGeneration,
			"counter %q returned invalid sequence %d", s.counter, seq)
	}
	id, err := compose(s.now().UnixMilli(), seq, s.pad, s.digits)
	if err != nil {
		return Allocation{}, err
	}
	return Allocation{Sequence: seq, ID: id}, nil
}

func compose(millis, seq int64, pad, digits int) (int64, error) {
	composite := fmt.Sprintf("%d%0*d", millis, pad, seq)
	if len(composite) > digits {
		composite = composite[len(composite)-digits:]
	}
	id, err := strconv.ParseInt(composite, 10, 64)
	if err != nil {
		return 0, failure.Wrap(failure.KindIdentifierGeneration, err, "identifier out of range")
	}
	return id, nil
}
