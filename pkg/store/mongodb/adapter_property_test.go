package mongodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property 3: Close prevents subsequent operations
func TestProperty_ClosePreventsPing(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 20
	properties := gopter.NewProperties(params)

	properties.Property("closed adapter always fails ping", prop.ForAll(
		func() bool {
			a := &Adapter{closed: true}
			return errors.Is(a.Ping(context.Background()), ErrClosed)
		},
	))

	properties.TestingRun(t)
}

// Property 4: The caller's deadline always wins over the adapter timeout
func TestProperty_CallerDeadlineWins(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("deadline preserved", prop.ForAll(
		func(adapterMs, callerMs int) bool {
			a := &Adapter{timeout: time.Duration(adapterMs) * time.Millisecond}
			parent, cancelParent := context.WithTimeout(context.Background(), time.Duration(callerMs)*time.Millisecond)
			defer cancelParent()

			ctx, cancel := a.withOperationTimeout(parent)
			defer cancel()

			want, _ := parent.Deadline()
			got, ok := ctx.Deadline()
			return ok && got.Equal(want)
		},
		gen.IntRange(1, 10000),
		gen.IntRange(1, 10000),
	))

	properties.TestingRun(t)
}
