// Package recovery turns handler panics into 500 responses.
package recovery

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/nimburion/docstore/pkg/middleware/requestid"
	"github.com/nimburion/docstore/pkg/observability/logger"
)

// Recovery creates middleware that recovers from panics in HTTP handlers.
// It logs the panic with stack trace and returns HTTP 500 with an error response.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestID := requestid.GetRequestID(c.Request.Context())

				log.Error("panic recovered",
					"request_id", requestID,
					"panic", r,
					"stack", string(debug.Stack()),
				)

				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "internal_server_error",
					"message":    "an unexpected error occurred",
					"request_id": requestID,
				})
			}
		}()

		c.Next()
	}
}
