package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/invoices/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/invoices/1", "/invoices/2", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/invoices/:id", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("unmatched", "GET", "404")))
}

func TestTracker(t *testing.T) {
	m := New()
	boom := errors.New("boom")

	require.NoError(t, m.Track("import").End(nil))
	assert.ErrorIs(t, m.Track("import").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("import", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("import", "failure")))
}

func TestHandler_ServesRegistry(t *testing.T) {
	m := New()
	m.ObserveImport(3, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `produceledger_import_invoices_total{outcome="imported"} 3`)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveImport(1, 1)
	assert.NoError(t, m.Track("x").End(nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
