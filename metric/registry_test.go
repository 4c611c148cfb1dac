package metric

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryCoreMetrics(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r.Metrics)

	r.Metrics.RequestsTotal.WithLabelValues("basic", "go", "pass").Inc()
	r.Metrics.ListenerState.WithLabelValues("go").Set(2)

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["janus_requests_total"])
	assert.True(t, names["janus_listener_state"])
}

func TestRegisterCollectorDuplicate(t *testing.T) {
	r := NewRegistry()

	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "janus_test_counter"})
	require.NoError(t, r.RegisterCollector("stress", "test_counter", c))

	err := r.RegisterCollector("stress", "test_counter", c)
	assert.Error(t, err)

	assert.True(t, r.Unregister("stress", "test_counter"))
	assert.False(t, r.Unregister("stress", "test_counter"))

	// Re-registration after unregister works
	require.NoError(t, r.RegisterCollector("stress", "test_counter", c))
}

func TestHandlerServesTextFormat(t *testing.T) {
	r := NewRegistry()
	r.Metrics.RequestsTotal.WithLabelValues("burst", "rust", "fail").Inc()

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
