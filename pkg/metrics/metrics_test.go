package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware())
	r.GET("/v1/pedidos/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", Handler())

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/pedidos/:id", "200"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/pedidos/abc", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/pedidos/:id", "200"))
	assert.Equal(t, before+1, after)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "http_requests_total"))
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(derivedRecords.WithLabelValues("order"))
	DerivedRecord("order")
	assert.Equal(t, before+1, testutil.ToFloat64(derivedRecords.WithLabelValues("order")))

	placed := testutil.ToFloat64(outboundCallsPlaced.WithLabelValues("placed"))
	OutboundCalls("placed", 3)
	OutboundCalls("placed", 0)
	assert.Equal(t, placed+3, testutil.ToFloat64(outboundCallsPlaced.WithLabelValues("placed")))
}
