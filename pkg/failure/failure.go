// Package failure defines the closed set of error kinds surfaced by the data-access layer.
//
// Every error leaving the filter parser, the repository, the identifier generators or the
// services is a *Error carrying one Kind. Callers branch on the kind with errors.Is against the
// exported sentinels or with KindOf.
package failure

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindMalformedFilter      Kind = "malformed_filter"
	KindUnsupportedOperator  Kind = "unsupported_operator"
	KindInvalid              Kind = "invalid"
	KindNotFound             Kind = "not_found"
	KindDuplicateKey         Kind = "duplicate_key"
	KindIdentifierGeneration Kind = "identifier_generation"
	KindStoreUnavailable     Kind = "store_unavailable"
	KindStoreFailure         Kind = "store_failure"
	KindTimeout              Kind = "timeout"
	KindCanceled             Kind = "canceled"
)

// StatusClientClosedRequest is the non-standard status used when the caller went away.
const StatusClientClosedRequest = 499

type kindInfo struct {
	code    string
	status  int
	message string
}

var kinds = map[Kind]kindInfo{
	KindMalformedFilter:      {"filter.malformed", http.StatusBadRequest, "malformed filter expression"},
	KindUnsupportedOperator:  {"filter.unsupported_operator", http.StatusBadRequest, "unsupported filter operator"},
	KindInvalid:              {"validation.failed", http.StatusBadRequest, "invalid request"},
	KindNotFound:             {"resource.not_found", http.StatusNotFound, "resource not found"},
	KindDuplicateKey:         {"resource.conflict", http.StatusConflict, "resource already exists"},
	KindIdentifierGeneration: {"identifier.generation_failed", http.StatusInternalServerError, "identifier generation failed"},
	KindStoreUnavailable:     {"store.unavailable", http.StatusServiceUnavailable, "document store unavailable"},
	KindStoreFailure:         {"store.failure", http.StatusInternalServerError, "document store failure"},
	KindTimeout:              {"store.timeout", http.StatusGatewayTimeout, "operation timed out"},
	KindCanceled:             {"request.canceled", StatusClientClosedRequest, "operation canceled"},
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrMalformedFilter      = &Error{Kind: KindMalformedFilter}
	ErrUnsupportedOperator  = &Error{Kind: KindUnsupportedOperator}
	ErrInvalid              = &Error{Kind: KindInvalid}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrDuplicateKey         = &Error{Kind: KindDuplicateKey}
	ErrIdentifierGeneration = &Error{Kind: KindIdentifierGeneration}
	ErrStoreUnavailable     = &Error{Kind: KindStoreUnavailable}
	ErrStoreFailure         = &Error{Kind: KindStoreFailure}
	ErrTimeout              = &Error{Kind: KindTimeout}
	ErrCanceled             = &Error{Kind: KindCanceled}
)

// Error is the typed failure contract shared across layers.
type Error struct {
	Kind    Kind
	Message string
	// Op names the operation that failed, e.g. "repository.get_one".
	Op      string
	Details map[string]interface{}
	Cause   error
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	label := e.Message
	if label == "" {
		label = DefaultMessage(e.Kind)
	}
	if e.Op != "" {
		label = e.Op + ": " + label
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", label, e.Cause)
	}
	return label
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return t.Kind == e.Kind
}

// WithOp sets the failing operation name.
func (e *Error) WithOp(op string) *Error {
	if e == nil {
		return nil
	}
	e.Op = op
	return e
}

// WithDetails attaches structured details.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	if e == nil {
		return nil
	}
	if len(details) == 0 {
		e.Details = nil
		return e
	}
	e.Details = make(map[string]interface{}, len(details))
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// Code returns the stable message code for the error kind.
func (e *Error) Code() string {
	if e == nil {
		return ""
	}
	return Code(e.Kind)
}

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Code returns the stable code for kind.
func Code(kind Kind) string {
	if info, ok := kinds[kind]; ok {
		return info.code
	}
	return "internal.error"
}

// HTTPStatus returns the HTTP status conventionally associated with kind.
func HTTPStatus(kind Kind) int {
	if info, ok := kinds[kind]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// DefaultMessage returns the fallback message for kind.
func DefaultMessage(kind Kind) string {
	if info, ok := kinds[kind]; ok {
		return info.message
	}
	return "an unexpected error occurred"
}

// Kinds returns every known kind.
func Kinds() []Kind {
	return []Kind{
		KindMalformedFilter,
		KindUnsupportedOperator,
		KindInvalid,
		KindNotFound,
		KindDuplicateKey,
		KindIdentifierGeneration,
		KindStoreUnavailable,
		KindStoreFailure,
		KindTimeout,
		KindCanceled,
	}
}
