package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/predefine/adapters/metrics"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := metrics.New()
	b := metrics.New()

	a.OperationsTotal.WithLabelValues("post", "ok").Inc()

	assert.Contains(t, scrape(t, a), `predefine_operations_total{operation="post",result="ok"} 1`)
	assert.NotContains(t, scrape(t, b), `predefine_operations_total{operation="post"`)
}

func TestRequestsTotal(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.RequestsTotal.WithLabelValues("GET", "/predefines", "2xx").Inc()
	m.RequestsTotal.WithLabelValues("POST", "/predefines", "4xx").Add(5)

	families, err := reg.Gather()
	require.NoError(t, err)

	var series int
	for _, f := range families {
		if f.GetName() == "predefine_http_requests_total" {
			series = len(f.GetMetric())
		}
	}
	assert.Equal(t, 2, series)
	assert.Same(t, reg, m.Registry())
}

func TestHandler(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	m.SchemaInfo.WithLabelValues("Predefine", "abc").Set(1)

	assert.Contains(t, scrape(t, m), `predefine_schema_info{fingerprint="abc",model="Predefine"} 1`)
}

func scrape(t *testing.T, m *metrics.Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
