package controller

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nimburion/docstore/pkg/failure"
	"github.com/nimburion/docstore/pkg/observability/logger"
)

// ErrorResponse represents the consistent error response format.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code,omitempty"`
	Message   string                 `json:"message,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// MapError maps failure kinds to HTTP responses. Errors without a kind become 500 and their
// text is not exposed.
func MapError(ctx context.Context, err error) (int, ErrorResponse) {
	requestID := logger.RequestIDFromContext(ctx)

	var fe *failure.Error
	if !errors.As(err, &fe) {
		return http.StatusInternalServerError, ErrorResponse{
			Error:     "internal_server_error",
			Message:   "an unexpected error occurred",
			RequestID: requestID,
		}
	}

	status := failure.HTTPStatus(fe.Kind)
	message := fe.Message
	if message == "" || status >= http.StatusInternalServerError {
		message = failure.DefaultMessage(fe.Kind)
	}

	return status, ErrorResponse{
		Error:     errorCategory(status, fe.Code()),
		Code:      fe.Code(),
		Message:   message,
		RequestID: requestID,
		Details:   fe.Details,
	}
}

func errorCategory(status int, code string) string {
	lowerCode := strings.ToLower(strings.TrimSpace(code))
	if strings.HasPrefix(lowerCode, "validation.") || strings.HasPrefix(lowerCode, "filter.") {
		return "validation_error"
	}

	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	case http.StatusGatewayTimeout:
		return "timeout"
	case failure.StatusClientClosedRequest:
		return "canceled"
	default:
		if status >= 500 {
			return "internal_server_error"
		}
		return "application_error"
	}
}
