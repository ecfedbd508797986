package logger

import (
	"context"
)

// Logger is the structured logging contract used across the service.
// Every method takes a message followed by alternating key-value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a child logger that carries args on every entry.
	With(args ...any) Logger

	// WithContext returns a child logger tagged with the request ID found in ctx, if any.
	WithContext(ctx context.Context) Logger
}

type requestIDKey struct{}

// ContextWithRequestID stores the request ID in ctx.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID stored by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Nop discards everything.
type Nop struct{}

// NewNop returns a logger that drops every entry.
func NewNop() Logger { return Nop{} }

func (Nop) Debug(string, ...any)                 {}
func (Nop) Info(string, ...any)                  {}
func (Nop) Warn(string, ...any)                  {}
func (Nop) Error(string, ...any)                 {}
func (n Nop) With(...any) Logger                 { return n }
func (n Nop) WithContext(context.Context) Logger { return n }
