package store

import (
	"log/slog"
	"sync"

	"github.com/c360/i3xbridge/types"
)

// ChangeListener observes successful upserts. instance is nil when the
// upsert carried only a value. Listeners run synchronously in upsert
// order and must not block; panics are swallowed.
type ChangeListener func(elementID string, value types.ObjectValue, instance *types.ObjectInstance)

// Store is the in-memory entity graph. Safe for concurrent use.
type Store struct {
	// mu guards all maps and indices. notifyMu serializes listener
	// fanout; it is acquired before mu is released so notification
	// order matches mutation order.
	mu       sync.RWMutex
	notifyMu sync.Mutex

	values    map[string]types.ObjectValue
	instances map[string]types.ObjectInstance

	namespaces        map[string]types.Namespace
	objectTypes       map[string]types.ObjectType
	relationshipTypes map[string]types.RelationshipType

	namespaceIndex map[string]map[string]struct{}
	typeIndex      map[string]map[string]struct{}

	relationships map[string][]types.Relationship
	targetIndex   map[string]map[string]struct{}

	listenerSeq int
	listeners   []storeListener

	logger *slog.Logger
}

type storeListener struct {
	id int
	fn ChangeListener
}

// changeEvent is one pending listener notification, captured under the
// write lock and delivered after it is released.
type changeEvent struct {
	elementID string
	value     types.ObjectValue
	instance  *types.ObjectInstance
}

// New creates an empty Store seeded with the built-in relationship
// types and the default namespace.
func New() *Store {
	s := &Store{
		values:            make(map[string]types.ObjectValue),
		instances:         make(map[string]types.ObjectInstance),
		namespaces:        make(map[string]types.Namespace),
		objectTypes:       make(map[string]types.ObjectType),
		relationshipTypes: make(map[string]types.RelationshipType),
		namespaceIndex:    make(map[string]map[string]struct{}),
		typeIndex:         make(map[string]map[string]struct{}),
		relationships:     make(map[string][]types.Relationship),
		targetIndex:       make(map[string]map[string]struct{}),
		logger:            slog.Default().With("component", "store"),
	}
	for _, rt := range types.BuiltinRelationshipTypes() {
		s.relationshipTypes[rt.ElementID] = rt
	}
	s.namespaces[types.DefaultNamespace] = types.Namespace{
		URI:         types.DefaultNamespace,
		DisplayName: "Default",
	}
	s.namespaces[types.RelationshipNamespace] = types.Namespace{
		URI:         types.RelationshipNamespace,
		DisplayName: "Relationships",
	}
	return s
}

// AddChangeListener registers a listener and returns its handle.
func (s *Store) AddChangeListener(fn ChangeListener) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listenerSeq++
	s.listeners = append(s.listeners, storeListener{id: s.listenerSeq, fn: fn})
	return s.listenerSeq
}

// RemoveChangeListener unregisters a listener by handle.
func (s *Store) RemoveChangeListener(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// notify delivers pending events to every listener. Called with mu
// already released and notifyMu held.
func (s *Store) notify(events []changeEvent, listeners []storeListener) {
	for _, ev := range events {
		for _, l := range listeners {
			s.invoke(l, ev)
		}
	}
}

// invoke shields the store from listener panics; one broken listener
// must not stop the others.
func (s *Store) invoke(l storeListener, ev changeEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("change listener panicked",
				"element_id", ev.elementID,
				"panic", rec)
		}
	}()
	l.fn(ev.elementID, ev.value, ev.instance)
}

// Stats is a point-in-time count of everything the store holds.
type Stats struct {
	Values            int `json:"values"`
	Instances         int `json:"instances"`
	ObjectTypes       int `json:"objectTypes"`
	Namespaces        int `json:"namespaces"`
	RelationshipTypes int `json:"relationshipTypes"`
	Relationships     int `json:"relationships"`
}

// Stats returns current element and edge counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edges := 0
	for _, list := range s.relationships {
		edges += len(list)
	}
	return Stats{
		Values:            len(s.values),
		Instances:         len(s.instances),
		ObjectTypes:       len(s.objectTypes),
		Namespaces:        len(s.namespaces),
		RelationshipTypes: len(s.relationshipTypes),
		Relationships:     edges,
	}
}
