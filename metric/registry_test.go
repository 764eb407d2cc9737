package metric

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sivakumar999/village-eats/errors"
)

func TestRegister_AndGather(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "villageeats",
		Subsystem: "tracker",
		Name:      "test_events_total",
		Help:      "Test counter",
	})
	require.NoError(t, registry.Register("hub", "test_events", counter))

	counter.Add(3)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "villageeats_tracker_test_events_total" {
			found = true
			assert.Equal(t, float64(3), mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found, "registered counter should be gatherable")
}

func TestRegister_Duplicate(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "tracker_dup_gauge"})
	require.NoError(t, registry.Register("hub", "dup_gauge", gauge))

	err := registry.Register("hub", "dup_gauge", gauge)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestUnregister(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "tracker_tmp_gauge"})
	require.NoError(t, registry.Register("hub", "tmp_gauge", gauge))

	assert.True(t, registry.Unregister("hub", "tmp_gauge"))
	assert.False(t, registry.Unregister("hub", "tmp_gauge"))

	// Re-registration after unregister must succeed
	require.NoError(t, registry.Register("hub", "tmp_gauge", gauge))
}

func TestHandler_ServesExposition(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "tracker_handler_total"})
	require.NoError(t, registry.Register("hub", "handler_total", counter))
	counter.Inc()

	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "tracker_handler_total 1"))
}
