package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the core bridge metrics shared across components.
type Metrics struct {
	// Ingest pipeline
	MessagesReceived   prometheus.Counter
	MessagesProcessed  *prometheus.CounterVec
	MessagesDropped    *prometheus.CounterVec
	DecodeErrors       *prometheus.CounterVec
	DecomposedChildren prometheus.Counter

	// Store
	StoreValues        prometheus.Gauge
	StoreInstances     prometheus.Gauge
	StoreRelationships prometheus.Gauge

	// Subscriptions
	Subscriptions  prometheus.Gauge
	SSEConnections prometheus.Gauge

	// MQTT transport
	MQTTConnected  prometheus.Gauge
	MQTTReconnects prometheus.Counter

	// HTTP surface
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the core bridge metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "i3xbridge",
			Subsystem: "ingest",
			Name:      "messages_received_total",
			Help:      "Total MQTT messages delivered to the pipeline",
		}),
		MessagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "i3xbridge",
			Subsystem: "ingest",
			Name:      "messages_processed_total",
			Help:      "Total messages that reached the store",
		}, []string{"rule"}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "i3xbridge",
			Subsystem: "ingest",
			Name:      "messages_dropped_total",
			Help:      "Total messages dropped before the store",
		}, []string{"reason"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "i3xbridge",
			Subsystem: "ingest",
			Name:      "decode_errors_total",
			Help:      "Total codec failures by codec name",
		}, []string{"codec"}),
		DecomposedChildren: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "i3xbridge",
			Subsystem: "ingest",
			Name:      "decomposed_children_total",
			Help:      "Total component children produced by decomposition",
		}),

		StoreValues: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "i3xbridge",
			Subsystem: "store",
			Name:      "values",
			Help:      "Current number of stored values",
		}),
		StoreInstances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "i3xbridge",
			Subsystem: "store",
			Name:      "instances",
			Help:      "Current number of object instances",
		}),
		StoreRelationships: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "i3xbridge",
			Subsystem: "store",
			Name:      "relationships",
			Help:      "Current number of directed edges",
		}),

		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "i3xbridge",
			Subsystem: "subscription",
			Name:      "active",
			Help:      "Current number of subscriptions",
		}),
		SSEConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "i3xbridge",
			Subsystem: "subscription",
			Name:      "sse_connections",
			Help:      "Current number of attached SSE streams",
		}),

		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "i3xbridge",
			Subsystem: "mqtt",
			Name:      "connected",
			Help:      "MQTT connection status (0=disconnected, 1=connected)",
		}),
		MQTTReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "i3xbridge",
			Subsystem: "mqtt",
			Name:      "reconnects_total",
			Help:      "Total broker reconnections",
		}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "i3xbridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// RecordProcessed increments the processed counter for a rule.
func (m *Metrics) RecordProcessed(ruleID string) {
	m.MessagesProcessed.WithLabelValues(ruleID).Inc()
}

// RecordDropped increments the dropped counter for a reason.
func (m *Metrics) RecordDropped(reason string) {
	m.MessagesDropped.WithLabelValues(reason).Inc()
}

// RecordDecodeError increments the decode failure counter for a codec.
func (m *Metrics) RecordDecodeError(codecName string) {
	m.DecodeErrors.WithLabelValues(codecName).Inc()
}

// RecordMQTTStatus updates the broker connection gauge.
func (m *Metrics) RecordMQTTStatus(connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	m.MQTTConnected.Set(v)
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}
