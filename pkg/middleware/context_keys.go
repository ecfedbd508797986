// Package middleware holds the gin middleware stack of the public and management routers.
package middleware

// ContextKey is a typed key for gin context values
type ContextKey string

const (
	// RequestIDKey is the gin context key for request ID
	RequestIDKey ContextKey = "request_id"
)
