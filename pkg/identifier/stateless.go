package identifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/nimburion/docstore/pkg/failure"
)

const (
	// DefaultTokenSize is the length of the random token folded into an identifier.
	DefaultTokenSize = 12
	// DefaultStatelessDigits is the digit count of stateless identifiers.
	DefaultStatelessDigits = 12
	// MaxStatelessDigits keeps identifiers inside int64.
	MaxStatelessDigits = 18
)

// Stateless derives identifiers from random tokens without shared state.
//
// Every token character is replaced by its decimal character code and the concatenation is
// truncated to Digits. The nanoid alphabet only contains characters whose codes are two or
// three digits long and never start with zero, so the result always has exactly Digits digits.
type Stateless struct {
	digits    int
	tokenSize int
	token     func(size int) (string, error)
}

// StatelessOption configures a Stateless strategy.
type StatelessOption func(*Stateless)

// WithTokenSource replaces the random token source.
func WithTokenSource(fn func(size int) (string, error)) StatelessOption {
	return func(s *Stateless) { s.token = fn }
}

// WithTokenSize sets the random token length.
func WithTokenSize(n int) StatelessOption {
	return func(s *Stateless) { s.tokenSize = n }
}

// NewStateless returns a stateless strategy producing identifiers with the given digit count.
// A digit count of 0 selects DefaultStatelessDigits.
func NewStateless(digits int, opts ...StatelessOption) (*Stateless, error) {
	if digits == 0 {
		digits = DefaultStatelessDigits
	}
	if digits < 1 || digits > MaxStatelessDigits {
		return nil, fmt.Errorf("stateless digits must be between 1 and %d, got %d", MaxStatelessDigits, digits)
	}
	s := &Stateless{
		digits:    digits,
		tokenSize: DefaultTokenSize,
		token:     func(size int) (string, error) { return gonanoid.New(size) },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tokenSize < 1 {
		return nil, fmt.Errorf("token size must be positive")
	}
	return s, nil
}

func (s *Stateless) Name() string { return "stateless" }

// Digits returns the digit count of produced identifiers.
func (s *Stateless) Digits() int { return s.digits }

// Next returns a fresh identifier. The context is only checked for cancellation.
func (s *Stateless) Next(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, failure.Wrap(failure.KindIdentifierGeneration, err, "identifier generation aborted")
	}
	token, err := s.token(s.tokenSize)
	if err != nil {
		return 0, failure.Wrap(failure.KindIdentifierGeneration, err, "random token unavailable")
	}
	return fold(token, s.digits)
}

// NextString returns Next formatted in base 10.
func (s *Stateless) NextString(ctx context.Context) (string, error) {
	id, err := s.Next(ctx)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func fold(token string, digits int) (int64, error) {
	var b strings.Builder
	for _, r := range token {
		b.WriteString(strconv.Itoa(int(r)))
		if b.Len() >= digits {
			break
		}
	}
	codes := b.String()
	if len(codes) < digits {
		return 0, failure.Newf(failure.KindIdentifierGeneration,
			"token %q yields %d digits, need %d", token, len(codes), digits)
	}
	id, err := strconv.ParseInt(codes[:digits], 10, 64)
	if err != nil {
		return 0, failure.Wrap(failure.KindIdentifierGeneration, err, "identifier out of range")
	}
	return id, nil
}
