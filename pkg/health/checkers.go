package health

import (
	"context"
	"strings"
	"time"

	"github.com/nimburion/docstore/pkg/resilience"
)

// Checkable is implemented by the store adapters.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// AdapterChecker reports the health of a Checkable within a timeout.
type AdapterChecker struct {
	name    string
	adapter Checkable
	timeout time.Duration
}

// NewAdapterChecker creates a new health checker for an adapter
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &AdapterChecker{
		name:    name,
		adapter: adapter,
		timeout: timeout,
	}
}

// NewStoreChecker checks the document store.
func NewStoreChecker(store Checkable) *AdapterChecker {
	return NewAdapterChecker("mongodb", store, 5*time.Second)
}

// NewCounterChecker checks the backend holding identifier counters.
func NewCounterChecker(backend string, counter Checkable) *AdapterChecker {
	return NewAdapterChecker("counter-"+backend, counter, 3*time.Second)
}

// Check performs the health check on the adapter
func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.adapter.HealthCheck(checkCtx)
	duration := time.Since(start)

	if err != nil {
		return CheckResult{
			Name:      c.name,
			Status:    StatusUnhealthy,
			Error:     err.Error(),
			Timestamp: time.Now(),
			Duration:  duration,
		}
	}
	return CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "OK",
		Timestamp: time.Now(),
		Duration:  duration,
	}
}

func (c *AdapterChecker) Name() string {
	return c.name
}

// PingChecker always reports healthy. It backs the liveness endpoint.
type PingChecker struct {
	name string
}

// NewPingChecker creates a new ping checker
func NewPingChecker(name string) *PingChecker {
	return &PingChecker{name: name}
}

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "Service is alive",
		Timestamp: time.Now(),
	}
}

func (c *PingChecker) Name() string {
	return c.name
}

// EntitiesChecker reports degraded when an entity has no identifier strategy bound.
type EntitiesChecker struct {
	required []string
	bound    func() []string
}

// NewEntitiesChecker checks that every required entity appears in bound().
func NewEntitiesChecker(bound func() []string, required ...string) *EntitiesChecker {
	return &EntitiesChecker{required: required, bound: bound}
}

func (c *EntitiesChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	have := map[string]bool{}
	for _, e := range c.bound() {
		have[e] = true
	}
	var missing []string
	for _, e := range c.required {
		if !have[e] {
			missing = append(missing, e)
		}
	}
	result := CheckResult{
		Name:      "identifiers",
		Status:    StatusHealthy,
		Message:   "all entities bound",
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
	if len(missing) > 0 {
		result.Status = StatusDegraded
		result.Message = ""
		result.Error = "no identifier strategy for: " + strings.Join(missing, ", ")
	}
	return result
}

func (c *EntitiesChecker) Name() string {
	return "identifiers"
}


// BreakerState is satisfied by resilience.CircuitBreaker.
type BreakerState interface {
	Name() string
	State() resilience.State
}

// BreakerChecker reports degraded while a circuit breaker is not closed.
type BreakerChecker struct {
	breaker BreakerState
}

func NewBreakerChecker(breaker BreakerState) *BreakerChecker {
	return &BreakerChecker{breaker: breaker}
}

func (c *BreakerChecker) Check(ctx context.Context) CheckResult {
	state := c.breaker.State()
	result := CheckResult{
		Name:      c.Name(),
		Status:    StatusHealthy,
		Message:   "circuit " + state.String(),
		Timestamp: time.Now(),
	}
	if state != resilience.StateClosed {
		result.Status = StatusDegraded
		result.Message = ""
		result.Error = "circuit " + state.String()
	}
	return result
}

func (c *BreakerChecker) Name() string {
	return "breaker-" + c.breaker.Name()
}
