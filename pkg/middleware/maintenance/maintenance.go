// Package maintenance rejects traffic while the service is in maintenance mode.
package maintenance

import (
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/nimburion/docstore/pkg/observability/logger"
)

// DefaultMessage is returned when no message is configured.
const DefaultMessage = "service is under maintenance, please try again later"

// Gate holds the maintenance switch. It can be flipped at runtime.
type Gate struct {
	enabled atomic.Bool
	message atomic.Value
}

// NewGate returns a gate in the given state.
func NewGate(enabled bool, message string) *Gate {
	g := &Gate{}
	g.Set(enabled, message)
	return g
}

// Set changes the state and message.
func (g *Gate) Set(enabled bool, message string) {
	if strings.TrimSpace(message) == "" {
		message = DefaultMessage
	}
	g.message.Store(message)
	g.enabled.Store(enabled)
}

// Enabled reports whether requests are being rejected.
func (g *Gate) Enabled() bool { return g.enabled.Load() }

// Message returns the message sent to rejected clients.
func (g *Gate) Message() string {
	msg, _ := g.message.Load().(string)
	return msg
}

// Middleware answers 503 on every route while the gate is enabled.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.Enabled() {
			c.Next()
			return
		}
		c.Header("Retry-After", "120")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error":      "service_unavailable",
			"code":       "service.maintenance",
			"message":    g.Message(),
			"request_id": logger.RequestIDFromContext(c.Request.Context()),
		})
	}
}
