package buffer

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushDrainFIFO(t *testing.T) {
	q := New[int](4)

	for i := 1; i <= 3; i++ {
		assert.False(t, q.Push(i))
	}
	assert.Equal(t, 3, q.Size())
	assert.Equal(t, 4, q.Capacity())

	assert.Equal(t, []int{1, 2, 3}, q.Drain())
	assert.Equal(t, 0, q.Size())

	// Empty drain is non-nil.
	out := q.Drain()
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestDropOldestOnOverflow(t *testing.T) {
	q := New[string](2)

	assert.False(t, q.Push("a"))
	assert.False(t, q.Push("b"))
	assert.True(t, q.Push("c"))

	assert.Equal(t, []string{"b", "c"}, q.Drain())
	assert.Equal(t, int64(1), q.Stats().Drops())
	assert.Equal(t, int64(3), q.Stats().Pushes())
	assert.Equal(t, int64(2), q.Stats().Drained())
}

func TestCapacityClampedToOne(t *testing.T) {
	q := New[int](0)
	assert.Equal(t, 1, q.Capacity())

	q.Push(1)
	assert.True(t, q.Push(2))
	assert.Equal(t, []int{2}, q.Drain())
}

func TestPeekAndSnapshot(t *testing.T) {
	q := New[int](3)

	_, ok := q.Peek()
	assert.False(t, ok)

	q.Push(10)
	q.Push(20)

	head, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, 10, head)

	// Neither inspection consumes.
	assert.Equal(t, []int{10, 20}, q.Snapshot())
	assert.Equal(t, 2, q.Size())
	assert.Equal(t, []int{10, 20}, q.Drain())
}

func TestDropCallback(t *testing.T) {
	var dropped []int
	q := New(2, WithDropCallback(func(v int) { dropped = append(dropped, v) }))

	q.Push(1)
	q.Push(2)
	q.Push(3)
	assert.Equal(t, []int{1}, dropped)

	q.Clear()
	assert.Equal(t, []int{1, 2, 3}, dropped)
	assert.Equal(t, 0, q.Size())
}

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestQueueMetricsSeriesPerQueue(t *testing.T) {
	reg := prometheus.NewRegistry()
	qm := NewQueueMetrics(reg, "test_queue")
	require.NotNil(t, qm)

	a := New(2, WithMetrics[int](qm, "alpha"))
	b := New(2, WithMetrics[int](qm, "beta"))

	a.Push(1)
	a.Push(2)
	a.Push(3) // drop
	b.Push(1)

	depth := gatherFamily(t, reg, "test_queue_depth")
	require.NotNil(t, depth)
	byQueue := make(map[string]float64)
	for _, m := range depth.GetMetric() {
		byQueue[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
	}
	assert.Equal(t, 2.0, byQueue["alpha"])
	assert.Equal(t, 1.0, byQueue["beta"])

	drops := gatherFamily(t, reg, "test_queue_drops_total")
	require.NotNil(t, drops)
	dropsByQueue := make(map[string]float64)
	for _, m := range drops.GetMetric() {
		dropsByQueue[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	assert.Equal(t, 1.0, dropsByQueue["alpha"])
	assert.Equal(t, 0.0, dropsByQueue["beta"])

	qm.Remove("alpha")
	depth = gatherFamily(t, reg, "test_queue_depth")
	require.NotNil(t, depth)
	require.Len(t, depth.GetMetric(), 1)
	assert.Equal(t, "beta", depth.GetMetric()[0].GetLabel()[0].GetValue())
}

func TestQueueMetricsDisabled(t *testing.T) {
	assert.Nil(t, NewQueueMetrics(nil, "x"))
	assert.Nil(t, NewQueueMetrics(prometheus.NewRegistry(), ""))

	// A nil QueueMetrics binding leaves the queue unmetered but working.
	q := New(1, WithMetrics[int](nil, "orphan"))
	q.Push(7)
	assert.Equal(t, []int{7}, q.Drain())
}
