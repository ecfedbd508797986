package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nimburion/docstore/pkg/observability/metrics"
)

func TestMetrics_RecordsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := metrics.NewRegistry("docstore")

	r := gin.New()
	r.Use(Metrics(reg.HTTP))
	r.GET("/user/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/user/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	expected := `
# HELP docstore_http_requests_total Total number of HTTP requests
# TYPE docstore_http_requests_total counter
docstore_http_requests_total{method="GET",path="/user/:id",status="200"} 3
docstore_http_requests_total{method="GET",path="unmatched",status="404"} 1
`
	if err := testutil.GatherAndCompare(reg.Gatherer(), strings.NewReader(expected), "docstore_http_requests_total"); err != nil {
		t.Error(err)
	}
}
