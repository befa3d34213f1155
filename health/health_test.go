package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusPredicates(t *testing.T) {
	assert.True(t, NewHealthy("a", "").IsHealthy())
	assert.True(t, NewDegraded("a", "").IsDegraded())
	assert.True(t, NewUnhealthy("a", "").IsUnhealthy())
	assert.False(t, NewDegraded("a", "").Healthy)
}

func TestAggregate(t *testing.T) {
	agg := Aggregate("bridge", nil)
	assert.True(t, agg.IsHealthy())

	agg = Aggregate("bridge", []Status{
		NewHealthy("mqtt", "connected"),
		NewHealthy("store", "ok"),
	})
	assert.True(t, agg.IsHealthy())
	assert.Len(t, agg.SubStatuses, 2)

	agg = Aggregate("bridge", []Status{
		NewHealthy("store", "ok"),
		NewDegraded("mqtt", "reconnecting"),
	})
	assert.True(t, agg.IsDegraded())

	agg = Aggregate("bridge", []Status{
		NewDegraded("mqtt", "reconnecting"),
		NewUnhealthy("store", "broken"),
	})
	assert.True(t, agg.IsUnhealthy())
}

func TestMonitorAggregateOrdersByName(t *testing.T) {
	m := NewMonitor()
	m.Update("store", NewHealthy("store", "ok"))
	m.Update("mqtt", NewUnhealthy("mqtt", "disconnected"))

	agg := m.AggregateHealth("bridge")
	assert.True(t, agg.IsUnhealthy())
	require.Len(t, agg.SubStatuses, 2)
	assert.Equal(t, "mqtt", agg.SubStatuses[0].Component)
	assert.Equal(t, "store", agg.SubStatuses[1].Component)

	m.Remove("mqtt")
	assert.Equal(t, 1, m.Count())
	assert.True(t, m.AggregateHealth("bridge").IsHealthy())
}

func TestSanitizeMessage(t *testing.T) {
	s := NewUnhealthy("mqtt", "dial tcp://broker.internal:1883 refused")
	assert.NotContains(t, s.Message, "broker.internal")
	assert.Contains(t, s.Message, "[URL]")

	s = NewUnhealthy("mqtt", "auth failed: password=hunter2")
	assert.NotContains(t, s.Message, "hunter2")
}

func TestMonitorGetAndTimestamp(t *testing.T) {
	m := NewMonitor()
	m.Update("pipeline", Status{Status: "healthy", Healthy: true})

	got, ok := m.Get("pipeline")
	require.True(t, ok)
	assert.Equal(t, "pipeline", got.Component)
	assert.False(t, got.Timestamp.IsZero())

	_, ok = m.Get("missing")
	assert.False(t, ok)
}
