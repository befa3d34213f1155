package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/i3xbridge/errors"
)

// MetricsRegistry manages the registration and lifecycle of metrics.
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
	registeredMetrics  map[string]prometheus.Collector
	mu                 sync.Mutex
}

// NewMetricsRegistry creates a registry pre-loaded with the core bridge
// metrics and the Go runtime and process collectors.
func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            NewMetrics(),
		registeredMetrics:  make(map[string]prometheus.Collector),
	}

	r.prometheusRegistry.MustRegister(
		r.Metrics.MessagesReceived,
		r.Metrics.MessagesProcessed,
		r.Metrics.MessagesDropped,
		r.Metrics.DecodeErrors,
		r.Metrics.DecomposedChildren,
		r.Metrics.StoreValues,
		r.Metrics.StoreInstances,
		r.Metrics.StoreRelationships,
		r.Metrics.Subscriptions,
		r.Metrics.SSEConnections,
		r.Metrics.MQTTConnected,
		r.Metrics.MQTTReconnects,
		r.Metrics.HTTPRequestDuration,
	)
	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the shared bridge metrics.
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	return r.Metrics
}

// Register adds a component-owned collector under component/name. A
// duplicate key or a Prometheus-level conflict is invalid; other
// registration failures are fatal.
func (r *MetricsRegistry) Register(component, name string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", component, name)
	if _, exists := r.registeredMetrics[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for %s", name, component),
			"MetricsRegistry", "Register", "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegistered) {
			return errors.WrapInvalid(err, "MetricsRegistry", "Register",
				fmt.Sprintf("prometheus conflict for metric %s", name))
		}
		return errors.WrapFatal(err, "MetricsRegistry", "Register",
			"register collector with prometheus")
	}

	r.registeredMetrics[key] = collector
	return nil
}

// Unregister removes a component-owned collector.
func (r *MetricsRegistry) Unregister(component, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", component, name)
	collector, exists := r.registeredMetrics[key]
	if !exists {
		return false
	}
	if !r.prometheusRegistry.Unregister(collector) {
		return false
	}
	delete(r.registeredMetrics, key)
	return true
}
