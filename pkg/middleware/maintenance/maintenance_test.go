package maintenance

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func serve(g *Gate, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(g.Middleware())
	r.GET("/get/all/users", func(c *gin.Context) { c.Status(http.StatusOK) })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGate_Disabled(t *testing.T) {
	if rec := serve(NewGate(false, ""), "/get/all/users"); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestGate_EnabledRejectsEveryRoute(t *testing.T) {
	g := NewGate(true, "back at noon")
	for _, path := range []string{"/get/all/users", "/unknown"} {
		rec := serve(g, path)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d", path, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["message"] != "back at noon" {
			t.Errorf("message = %q", body["message"])
		}
	}
}

func TestGate_Toggle(t *testing.T) {
	g := NewGate(false, "")
	g.Set(true, "")
	if !g.Enabled() || g.Message() != DefaultMessage {
		t.Errorf("unexpected state enabled=%v message=%q", g.Enabled(), g.Message())
	}
	g.Set(false, "")
	if rec := serve(g, "/get/all/users"); rec.Code != http.StatusOK {
		t.Errorf("status after disable = %d", rec.Code)
	}
}
