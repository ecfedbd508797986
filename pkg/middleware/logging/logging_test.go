package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nimburion/docstore/pkg/middleware/requestid"
	"github.com/nimburion/docstore/pkg/observability/logger"
)

func newLogger(t *testing.T, buf *bytes.Buffer) logger.Logger {
	t.Helper()
	log, err := logger.NewZapLogger(logger.Config{
		Level:  logger.DebugLevel,
		Format: logger.JSONFormat,
		Output: buf,
	})
	if err != nil {
		t.Fatalf("NewZapLogger: %v", err)
	}
	return log
}

func entries(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogging_WritesAccessEntry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(requestid.RequestID(), Logging(newLogger(t, &buf)))
	r.GET("/user/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req := httptest.NewRequest(http.MethodGet, "/user/42", nil)
	req.Header.Set(requestid.RequestIDHeader, "req-9")
	r.ServeHTTP(httptest.NewRecorder(), req)

	logs := entries(t, &buf)
	if len(logs) != 1 {
		t.Fatalf("expected one entry, got %d", len(logs))
	}
	e := logs[0]
	if e["level"] != "warn" || e[FieldRoute] != "/user/:id" || e[FieldPath] != "/user/42" {
		t.Errorf("unexpected entry %v", e)
	}
	if e[FieldStatus] != float64(http.StatusNotFound) || e[FieldRequestID] != "req-9" {
		t.Errorf("unexpected status or request id in %v", e)
	}
}

func TestLogging_ExcludedPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(WithConfig(newLogger(t, &buf), Config{Enabled: true, ExcludedPathPrefixes: []string{"/health"}}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if buf.Len() != 0 {
		t.Errorf("excluded path was logged: %s", buf.String())
	}
}

func TestLogging_ServerErrorsAtErrorLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(Logging(newLogger(t, &buf)))
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(http.ErrHandlerTimeout)
		c.Status(http.StatusServiceUnavailable)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	logs := entries(t, &buf)
	if len(logs) != 1 || logs[0]["level"] != "error" || logs[0][FieldError] == nil {
		t.Errorf("unexpected entries %v", logs)
	}
}
