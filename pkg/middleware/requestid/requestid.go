package requestid

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nimburion/docstore/pkg/middleware"
	"github.com/nimburion/docstore/pkg/observability/logger"
)

// RequestIDHeader is the HTTP header name for request ID.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds client supplied identifiers.
const maxRequestIDLength = 128

// RequestID creates middleware that generates or extracts request IDs.
// It preserves a client X-Request-ID, generates a UUID otherwise,
// and adds the ID to response headers and the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = generateRequestID()
		}

		c.Set(string(middleware.RequestIDKey), requestID)
		c.Header(RequestIDHeader, requestID)

		ctx := logger.ContextWithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// generateRequestID generates a new UUID for request identification.
func generateRequestID() string {
	return uuid.New().String()
}

// GetRequestID extracts the request ID from a context.
// Returns empty string if no request ID is found.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	return logger.RequestIDFromContext(ctx)
}
