package track

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sivakumar999/village-eats/metric"
)

// Metrics holds Prometheus metrics for the tracking hub.
type Metrics struct {
	connectionsTotal   prometheus.Counter
	connectionsActive  prometheus.Gauge
	disconnectsTotal   *prometheus.CounterVec
	messagesReceived   *prometheus.CounterVec
	messagesDropped    *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec
	framesDelivered    *prometheus.CounterVec
	topicsActive       prometheus.Gauge
	heartbeatEvictions prometheus.Counter
	broadcastDuration  *prometheus.HistogramVec
}

// newMetrics creates and registers hub metrics. A nil registry returns nil
// and callers treat that as metrics disabled.
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "villageeats",
			Subsystem: "track",
			Name:      "connections_total",
			Help:      "Total WebSocket connections accepted",
		}),

		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "villageeats",
			Subsystem: "track",
			Name:      "connections_active",
			Help:      "Currently open WebSocket connections",
		}),

		disconnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "villageeats",
			Subsystem: "track",
			Name:      "disconnects_total",
			Help:      "Closed connections by reason",
		}, []string{"reason"}),

		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "villageeats",
			Subsystem: "track",
			Name:      "messages_received_total",
			Help:      "Inbound client frames by message type",
		}, []string{"type"}),

		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "villageeats",
			Subsystem: "track",
			Name:      "messages_dropped_total",
			Help:      "Inbound frames dropped without processing",
		}, []string{"reason"}),

		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "villageeats",
			Subsystem: "track",
			Name:      "events_published_total",
			Help:      "Events accepted for fan-out by type",
		}, []string{"type"}),

		framesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "villageeats",
			Subsystem: "track",
			Name:      "frames_delivered_total",
			Help:      "Frames written to subscribers by type",
		}, []string{"type"}),

		topicsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "villageeats",
			Subsystem: "track",
			Name:      "topics_active",
			Help:      "Topics with at least one subscriber",
		}),

		heartbeatEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "villageeats",
			Subsystem: "track",
			Name:      "heartbeat_evictions_total",
			Help:      "Connections closed by the liveness sweep",
		}),

		broadcastDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "villageeats",
			Subsystem: "track",
			Name:      "broadcast_duration_seconds",
			Help:      "Time to fan an event out to a topic",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"type"}),
	}

	registry.MustRegister("track", map[string]prometheus.Collector{
		"connections_total":          m.connectionsTotal,
		"connections_active":         m.connectionsActive,
		"disconnects_total":          m.disconnectsTotal,
		"messages_received_total":    m.messagesReceived,
		"messages_dropped_total":     m.messagesDropped,
		"events_published_total":     m.eventsPublished,
		"frames_delivered_total":     m.framesDelivered,
		"topics_active":              m.topicsActive,
		"heartbeat_evictions_total":  m.heartbeatEvictions,
		"broadcast_duration_seconds": m.broadcastDuration,
	})

	return m
}
