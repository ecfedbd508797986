package failure

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := New(KindNotFound, "user 42 not found").WithOp("repository.get_by_id")
	wrapped := fmt.Errorf("service: %w", err)

	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatal("expected wrapped error to match ErrNotFound")
	}
	if errors.Is(wrapped, ErrTimeout) {
		t.Fatal("not found must not match timeout")
	}
	if KindOf(wrapped) != KindNotFound {
		t.Fatalf("expected kind %q, got %q", KindNotFound, KindOf(wrapped))
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"default message", &Error{Kind: KindTimeout}, "operation timed out"},
		{"explicit message", New(KindInvalid, "page must be >= 1"), "page must be >= 1"},
		{"op and cause", Wrap(KindStoreUnavailable, cause, "ping").WithOp("mongodb"), "mongodb: ping: connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindStoreFailure, cause, "insert")
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty kind, got %q", got)
	}
	if IsKind(nil, KindNotFound) {
		t.Fatal("nil error has no kind")
	}
}

func TestStatusAndCode(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
		code   string
	}{
		{KindMalformedFilter, http.StatusBadRequest, "filter.malformed"},
		{KindUnsupportedOperator, http.StatusBadRequest, "filter.unsupported_operator"},
		{KindNotFound, http.StatusNotFound, "resource.not_found"},
		{KindDuplicateKey, http.StatusConflict, "resource.conflict"},
		{KindStoreUnavailable, http.StatusServiceUnavailable, "store.unavailable"},
		{KindTimeout, http.StatusGatewayTimeout, "store.timeout"},
		{Kind("unknown"), http.StatusInternalServerError, "internal.error"},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.kind); got != tt.status {
			t.Errorf("HTTPStatus(%q) = %d, want %d", tt.kind, got, tt.status)
		}
		if got := Code(tt.kind); got != tt.code {
			t.Errorf("Code(%q) = %q, want %q", tt.kind, got, tt.code)
		}
	}
}

func TestEveryKindHasMetadata(t *testing.T) {
	for _, k := range Kinds() {
		if Code(k) == "internal.error" {
			t.Errorf("kind %q has no code", k)
		}
	}
}

func TestWithDetailsCopies(t *testing.T) {
	details := map[string]interface{}{"field": "email"}
	err := New(KindInvalid, "bad").WithDetails(details)
	details["field"] = "changed"
	if err.Details["field"] != "email" {
		t.Fatal("details must be copied")
	}
}
