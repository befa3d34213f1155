package buffer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// QueueMetrics holds one set of Prometheus metric families shared by
// every queue bound to it. Individual queues are told apart by the
// "queue" label, so short-lived queues do not register collectors of
// their own.
type QueueMetrics struct {
	pushes      *prometheus.CounterVec
	drops       *prometheus.CounterVec
	depth       *prometheus.GaugeVec
	utilization *prometheus.GaugeVec
}

// NewQueueMetrics registers the queue metric families under the given
// name prefix. Returns nil (metrics off) when the registerer or prefix
// is missing, or when a family with the same name already exists.
func NewQueueMetrics(reg prometheus.Registerer, prefix string) *QueueMetrics {
	if reg == nil || prefix == "" {
		return nil
	}
	m := &QueueMetrics{
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_pushes_total",
			Help: "Total elements enqueued",
		}, []string{"queue"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_drops_total",
			Help: "Total elements evicted by drop-oldest overflow",
		}, []string{"queue"}),
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "_depth",
			Help: "Current queue depth",
		}, []string{"queue"}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "_utilization",
			Help: "Queue depth as a fraction of capacity",
		}, []string{"queue"}),
	}
	for _, c := range []prometheus.Collector{m.pushes, m.drops, m.depth, m.utilization} {
		if err := reg.Register(c); err != nil {
			return nil
		}
	}
	return m
}

// Remove drops the series for one queue, typically when its owner goes
// away. Safe on a nil receiver.
func (m *QueueMetrics) Remove(name string) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"queue": name}
	m.pushes.Delete(labels)
	m.drops.Delete(labels)
	m.depth.Delete(labels)
	m.utilization.Delete(labels)
}

// WithMetrics binds a queue to the shared families under the given
// queue label. A nil QueueMetrics or empty name leaves the queue
// unmetered.
func WithMetrics[T any](m *QueueMetrics, name string) Option[T] {
	return func(q *Queue[T]) {
		if m == nil || name == "" {
			return
		}
		q.metrics = &queueMetrics{
			pushes:      m.pushes.WithLabelValues(name),
			drops:       m.drops.WithLabelValues(name),
			depth:       m.depth.WithLabelValues(name),
			utilization: m.utilization.WithLabelValues(name),
		}
	}
}

// queueMetrics is one queue's bound series.
type queueMetrics struct {
	pushes      prometheus.Counter
	drops       prometheus.Counter
	depth       prometheus.Gauge
	utilization prometheus.Gauge
}

func (m *queueMetrics) recordPush(size, capacity int) {
	m.pushes.Inc()
	m.updateSize(size, capacity)
}

func (m *queueMetrics) recordDrop() {
	m.drops.Inc()
}

func (m *queueMetrics) updateSize(size, capacity int) {
	m.depth.Set(float64(size))
	if capacity > 0 {
		m.utilization.Set(float64(size) / float64(capacity))
	}
}
