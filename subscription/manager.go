package subscription

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/c360/i3xbridge/errors"
	"github.com/c360/i3xbridge/pkg/buffer"
	"github.com/c360/i3xbridge/types"
)

// DefaultQueueHighWaterMark bounds a subscription's pending queue when
// the creator does not choose one.
const DefaultQueueHighWaterMark = 10000

// streamBuffer is the per-subscription SSE channel depth. A stalled
// connection loses channel sends, not queued values.
const streamBuffer = 64

// CreateRequest carries the optional knobs for a new subscription.
type CreateRequest struct {
	MonitoredItems     []string `json:"monitoredItems,omitempty"`
	MaxDepth           *int     `json:"maxDepth,omitempty"`
	QueueHighWaterMark *int     `json:"queueHighWaterMark,omitempty"`
}

// Info is the externally visible state of a subscription.
type Info struct {
	ID                 string   `json:"subscriptionId"`
	CreatedAt          string   `json:"createdAt"`
	MonitoredItems     []string `json:"monitoredItems"`
	MaxDepth           int      `json:"maxDepth"`
	QueueHighWaterMark int      `json:"queueHighWaterMark"`
	PendingCount       int      `json:"pendingCount"`
	Streaming          bool     `json:"streaming"`
}

type subscription struct {
	id        string
	createdAt string
	maxDepth  int
	hwm       int

	mu        sync.Mutex
	monitored map[string]struct{}
	pending   *buffer.Queue[types.ObjectValue]
	stream    chan types.ObjectValue
	streamGen int
}

// Manager owns every subscription. Safe for concurrent use.
type Manager struct {
	mu           sync.RWMutex
	subs         map[string]*subscription
	queueMetrics *buffer.QueueMetrics
	logger       *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithQueueMetrics exposes every subscription's pending queue through
// the shared queue metric families, one series set per subscription id.
func WithQueueMetrics(qm *buffer.QueueMetrics) ManagerOption {
	return func(m *Manager) { m.queueMetrics = qm }
}

// NewManager creates an empty Manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		subs:   make(map[string]*subscription),
		logger: slog.Default().With("component", "subscription"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create makes a new subscription and returns its info. MaxDepth
// defaults to 0 (unspecified depth); the queue bound defaults to
// DefaultQueueHighWaterMark.
func (m *Manager) Create(req CreateRequest) Info {
	maxDepth := 0
	if req.MaxDepth != nil && *req.MaxDepth > 0 {
		maxDepth = *req.MaxDepth
	}
	hwm := DefaultQueueHighWaterMark
	if req.QueueHighWaterMark != nil && *req.QueueHighWaterMark > 0 {
		hwm = *req.QueueHighWaterMark
	}

	id := uuid.NewString()
	sub := &subscription{
		id:        id,
		createdAt: types.NowRFC3339(),
		maxDepth:  maxDepth,
		hwm:       hwm,
		monitored: make(map[string]struct{}, len(req.MonitoredItems)),
		pending: buffer.New(hwm,
			buffer.WithMetrics[types.ObjectValue](m.queueMetrics, id)),
	}
	for _, id := range req.MonitoredItems {
		if id != "" {
			sub.monitored[id] = struct{}{}
		}
	}

	m.mu.Lock()
	m.subs[sub.id] = sub
	m.mu.Unlock()

	m.logger.Info("subscription created",
		"subscription_id", sub.id,
		"monitored_items", len(sub.monitored),
		"queue_high_water_mark", hwm)
	return sub.info()
}

// Get returns a subscription's info.
func (m *Manager) Get(id string) (Info, error) {
	sub, err := m.lookup(id)
	if err != nil {
		return Info{}, err
	}
	return sub.info(), nil
}

// List returns every subscription's info, ordered by id.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.subs))
	for _, sub := range m.subs {
		out = append(out, sub.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Register adds elementIds to a subscription's watch set.
func (m *Manager) Register(id string, elementIDs []string) (Info, error) {
	sub, err := m.lookup(id)
	if err != nil {
		return Info{}, err
	}
	sub.mu.Lock()
	for _, eid := range elementIDs {
		if eid != "" {
			sub.monitored[eid] = struct{}{}
		}
	}
	sub.mu.Unlock()
	return sub.info(), nil
}

// Unregister removes elementIds from a subscription's watch set.
func (m *Manager) Unregister(id string, elementIDs []string) (Info, error) {
	sub, err := m.lookup(id)
	if err != nil {
		return Info{}, err
	}
	sub.mu.Lock()
	for _, eid := range elementIDs {
		delete(sub.monitored, eid)
	}
	sub.mu.Unlock()
	return sub.info(), nil
}

// Delete ends any attached stream, removes the subscription, and drops
// its queue.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	sub, ok := m.subs[id]
	if ok {
		delete(m.subs, id)
	}
	m.mu.Unlock()
	if !ok {
		return notFound("Delete", id)
	}

	sub.mu.Lock()
	if sub.stream != nil {
		close(sub.stream)
		sub.stream = nil
	}
	sub.pending.Clear()
	sub.mu.Unlock()

	m.queueMetrics.Remove(id)
	m.logger.Info("subscription deleted", "subscription_id", id)
	return nil
}

// NotifyChange fans a value change out to every subscription watching
// the elementId. The value always reaches the pending queue first;
// streaming is best-effort on top of it.
func (m *Manager) NotifyChange(elementID string, value types.ObjectValue) {
	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		sub.offer(elementID, value)
	}
}

// AttachStream binds an SSE consumer to the subscription and returns
// the channel it must drain. Attaching while another consumer is bound
// ends the previous one. DetachStream must be called with the returned
// generation when the consumer goes away.
func (m *Manager) AttachStream(id string) (<-chan types.ObjectValue, int, error) {
	sub, err := m.lookup(id)
	if err != nil {
		return nil, 0, err
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.stream != nil {
		close(sub.stream)
	}
	sub.stream = make(chan types.ObjectValue, streamBuffer)
	sub.streamGen++
	return sub.stream, sub.streamGen, nil
}

// DetachStream unbinds the consumer identified by gen. A stale gen
// (already replaced by a newer attach) is a no-op, so a finishing
// handler cannot tear down its successor's stream.
func (m *Manager) DetachStream(id string, gen int) {
	sub, err := m.lookup(id)
	if err != nil {
		return
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.stream != nil && sub.streamGen == gen {
		close(sub.stream)
		sub.stream = nil
	}
}

// Sync atomically drains and returns the subscription's pending queue
// in FIFO order.
func (m *Manager) Sync(id string) ([]types.ObjectValue, error) {
	sub, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return sub.pending.Drain(), nil
}

func (m *Manager) lookup(id string) (*subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, notFound("lookup", id)
	}
	return sub, nil
}

func notFound(method, id string) error {
	return errors.WrapNotFound(
		fmt.Errorf("%w: %q", errors.ErrSubscriptionNotFound, id),
		"subscription", method, "find subscription")
}

func (sub *subscription) info() Info {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	items := make([]string, 0, len(sub.monitored))
	for id := range sub.monitored {
		items = append(items, id)
	}
	sort.Strings(items)
	return Info{
		ID:                 sub.id,
		CreatedAt:          sub.createdAt,
		MonitoredItems:     items,
		MaxDepth:           sub.maxDepth,
		QueueHighWaterMark: sub.hwm,
		PendingCount:       sub.pending.Size(),
		Streaming:          sub.stream != nil,
	}
}

// offer enqueues a change if this subscription watches the element,
// then attempts a non-blocking handoff to the stream consumer. A full
// stream channel drops the handoff only; sync still recovers the value.
func (sub *subscription) offer(elementID string, value types.ObjectValue) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if _, watched := sub.monitored[elementID]; !watched {
		return
	}
	sub.pending.Push(value)
	if sub.stream == nil {
		return
	}
	select {
	case sub.stream <- value:
	default:
	}
}
