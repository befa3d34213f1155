package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/c360/i3xbridge/health"
	"github.com/c360/i3xbridge/mqttclient"
)

// handleHealth reports the aggregated bridge health. The broker state
// drives the overall verdict: a reconnecting transport degrades the
// bridge, a dead one makes it unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.refreshHealth()
	status := s.monitor.AggregateHealth("i3xbridge")

	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) refreshHealth() {
	uptime := time.Since(s.startTime)

	if s.broker != nil {
		var brokerStatus health.Status
		switch s.broker.Status() {
		case mqttclient.StatusConnected:
			brokerStatus = health.NewHealthy("mqtt", "connected to broker")
		case mqttclient.StatusConnecting, mqttclient.StatusReconnecting:
			brokerStatus = health.NewDegraded("mqtt", "broker connection in progress")
		default:
			brokerStatus = health.NewUnhealthy("mqtt", "disconnected from broker")
		}
		brokerStatus.Metrics = &health.Metrics{
			Uptime:     uptime,
			Reconnects: s.broker.Reconnects(),
		}
		s.monitor.Update("mqtt", brokerStatus)
	}

	stats := s.objects.Stats()
	s.monitor.Update("store", health.NewHealthy("store",
		fmt.Sprintf("%d instances, %d relationships", stats.Instances, stats.Relationships)))

	if s.pipeline != nil {
		ps := s.pipeline.Stats()
		s.monitor.Update("pipeline",
			health.NewHealthy("pipeline", "processing messages").WithMetrics(&health.Metrics{
				Uptime:            uptime,
				ErrorCount:        int64(ps.Errors),
				MessagesProcessed: int64(ps.Processed),
			}))
	}

	s.monitor.Update("subscriptions", health.NewHealthy("subscriptions",
		fmt.Sprintf("%d active", len(s.subs.List()))))
}
