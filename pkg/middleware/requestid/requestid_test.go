package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newEngine(seen *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		*seen = GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequestID_Generates(t *testing.T) {
	var seen string
	r := newEngine(&seen)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	header := rec.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(header); err != nil {
		t.Fatalf("expected a UUID header, got %q", header)
	}
	if seen != header {
		t.Errorf("context id %q differs from header %q", seen, header)
	}
}

func TestRequestID_PreservesIncoming(t *testing.T) {
	var seen string
	r := newEngine(&seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("header = %q", got)
	}
	if seen != "abc-123" {
		t.Errorf("context id = %q", seen)
	}
}

func TestRequestID_ReplacesOversized(t *testing.T) {
	var seen string
	r := newEngine(&seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLength+1))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("expected a generated id, got %q", seen)
	}
}

func TestGetRequestID_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	if got := GetRequestID(nil); got != "" {
		t.Errorf("GetRequestID(nil) = %q", got)
	}
}
