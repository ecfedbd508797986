// Package ratelimit throttles public API traffic per client with a token bucket.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/nimburion/docstore/pkg/observability/logger"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(key string) bool
}

// TokenBucketLimiter keeps one token bucket per key.
//
// Buckets idle for longer than the configured TTL are dropped on the next sweep, so the
// map does not grow with every client ever seen.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	rate     rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
	lastGC   time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// DefaultIdleTTL is how long an unused bucket survives.
const DefaultIdleTTL = 10 * time.Minute

// Cosa fa: crea un limiter token bucket con rps medi e burst massimo per chiave.
// Cosa NON fa: non condivide lo stato tra istanze del servizio.
// Esempio minimo: limiter := ratelimit.NewTokenBucketLimiter(50, 100)
func NewTokenBucketLimiter(requestsPerSecond float64, burst int) *TokenBucketLimiter {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucketLimiter{
		limiters: map[string]*entry{},
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		ttl:      DefaultIdleTTL,
		now:      time.Now,
	}
}

// Allow consumes one token from key's bucket.
func (l *TokenBucketLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > l.ttl {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > l.ttl {
				delete(l.limiters, k)
			}
		}
		l.lastGC = now
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Size returns the number of tracked keys.
func (l *TokenBucketLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// KeyFunc extracts the throttling key from a request.
type KeyFunc func(*gin.Context) string

// ClientIP keys requests by the client address gin resolves.
func ClientIP(c *gin.Context) string { return c.ClientIP() }

// Config configures the middleware.
type Config struct {
	// KeyFunc defaults to ClientIP.
	KeyFunc KeyFunc
	// RetryAfter is advertised to rejected clients. Defaults to one second.
	RetryAfter time.Duration
}

// Middleware rejects requests over the limit with 429.
func Middleware(limiter Limiter, cfg Config) gin.HandlerFunc {
	keyFn := cfg.KeyFunc
	if keyFn == nil {
		keyFn = ClientIP
	}
	retryAfter := cfg.RetryAfter
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	retrySeconds := strconv.Itoa(int(retryAfter / time.Second))

	return func(c *gin.Context) {
		if limiter.Allow(keyFn(c)) {
			c.Next()
			return
		}
		c.Header("Retry-After", retrySeconds)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":      "too_many_requests",
			"code":       "request.rate_limited",
			"message":    "rate limit exceeded",
			"request_id": logger.RequestIDFromContext(c.Request.Context()),
		})
	}
}
