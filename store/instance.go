package store

import (
	"sort"

	"github.com/c360/i3xbridge/types"
)

// Upsert replaces the value for elementID and, when an instance is
// supplied, installs it, re-homes the secondary indices, and wires the
// dot-segment parent chain (creating Placeholder ancestors as needed).
// Every created or updated element is reported to change listeners
// before Upsert returns, in creation order.
func (s *Store) Upsert(elementID string, value types.ObjectValue, instance *types.ObjectInstance) {
	if elementID == "" {
		return
	}

	s.mu.Lock()
	var events []changeEvent

	value.ElementID = elementID
	s.values[elementID] = value

	var instCopy *types.ObjectInstance
	if instance != nil {
		inst := *instance
		inst.ElementID = elementID
		s.installInstanceLocked(inst, &events)
		instCopy = &inst
	}

	events = append(events, changeEvent{elementID: elementID, value: value, instance: instCopy})
	listeners := append([]storeListener(nil), s.listeners...)

	// Take the notification lock before giving up the write lock so a
	// concurrent upsert cannot overtake this one's fanout.
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	s.notify(events, listeners)
}

func (s *Store) installInstanceLocked(inst types.ObjectInstance, events *[]changeEvent) {
	if prev, ok := s.instances[inst.ElementID]; ok {
		s.removeFromIndicesLocked(prev)
	}
	s.instances[inst.ElementID] = inst
	s.addToIndicesLocked(inst)

	parentID := types.ParentID(inst.ElementID)
	if parentID == "" || parentID == inst.ElementID {
		return
	}

	s.ensureParentExistsLocked(parentID, inst.NamespaceURI, events)

	// A rename-by-upsert may point at a new parent; drop stale edges in
	// both directions first.
	for _, edge := range s.edgesByTypeLocked(inst.ElementID, types.RelHasParent) {
		s.removeEdgeLocked(edge.SourceID, edge.TargetID, edge.TypeID)
		s.removeEdgeLocked(edge.TargetID, edge.SourceID, types.RelHasChildren)
	}
	s.addEdgeLocked(inst.ElementID, parentID, types.RelHasParent)
	s.addEdgeLocked(parentID, inst.ElementID, types.RelHasChildren)
}

// ensureParentExistsLocked creates Placeholder instances up the
// ancestry chain. Recursion terminates at the root segment or when an
// ancestor already exists; a parent id is always a strict prefix of its
// child, so the chain cannot loop.
func (s *Store) ensureParentExistsLocked(elementID, namespaceURI string, events *[]changeEvent) {
	if elementID == "" {
		return
	}
	if _, exists := s.instances[elementID]; exists {
		return
	}

	parentID := types.ParentID(elementID)
	if parentID != "" && parentID != elementID {
		s.ensureParentExistsLocked(parentID, namespaceURI, events)
	}

	placeholder := types.ObjectInstance{
		ElementID:    elementID,
		DisplayName:  types.LastSegment(elementID),
		TypeID:       types.TypePlaceholder,
		NamespaceURI: namespaceURI,
	}
	s.instances[elementID] = placeholder
	s.addToIndicesLocked(placeholder)

	value := types.ObjectValue{
		ElementID: elementID,
		Value:     types.Null(),
		Timestamp: types.NowRFC3339(),
		Quality:   types.QualityUncertain,
	}
	s.values[elementID] = value

	if parentID != "" && parentID != elementID {
		s.addEdgeLocked(elementID, parentID, types.RelHasParent)
		s.addEdgeLocked(parentID, elementID, types.RelHasChildren)
	}

	inst := placeholder
	*events = append(*events, changeEvent{elementID: elementID, value: value, instance: &inst})
}

func (s *Store) addToIndicesLocked(inst types.ObjectInstance) {
	addToIndex(s.namespaceIndex, inst.NamespaceURI, inst.ElementID)
	addToIndex(s.typeIndex, inst.TypeID, inst.ElementID)
}

func (s *Store) removeFromIndicesLocked(inst types.ObjectInstance) {
	removeFromIndex(s.namespaceIndex, inst.NamespaceURI, inst.ElementID)
	removeFromIndex(s.typeIndex, inst.TypeID, inst.ElementID)
}

func addToIndex(index map[string]map[string]struct{}, key, id string) {
	if key == "" {
		return
	}
	set, ok := index[key]
	if !ok {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[id] = struct{}{}
}

func removeFromIndex(index map[string]map[string]struct{}, key, id string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}

// Delete removes an element's value, instance, and every edge touching
// it. Descendants are untouched; the dot hierarchy is naming, not
// ownership. Reports whether anything was removed.
func (s *Store) Delete(elementID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, hadValue := s.values[elementID]
	inst, hadInstance := s.instances[elementID]
	if !hadValue && !hadInstance {
		return false
	}

	delete(s.values, elementID)
	if hadInstance {
		s.removeFromIndicesLocked(inst)
		delete(s.instances, elementID)
	}
	s.clearRelationshipsLocked(elementID)
	return true
}

// Clear drops all values, instances, and relationships. The namespace,
// type, and relationship-type catalogues survive.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]types.ObjectValue)
	s.instances = make(map[string]types.ObjectInstance)
	s.namespaceIndex = make(map[string]map[string]struct{})
	s.typeIndex = make(map[string]map[string]struct{})
	s.relationships = make(map[string][]types.Relationship)
	s.targetIndex = make(map[string]map[string]struct{})
}

// GetValue returns the current value for an elementId.
func (s *Store) GetValue(elementID string) (types.ObjectValue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[elementID]
	return v, ok
}

// GetValues returns the values present for the requested ids, in
// request order. Missing ids are skipped.
func (s *Store) GetValues(elementIDs []string) []types.ObjectValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ObjectValue, 0, len(elementIDs))
	for _, id := range elementIDs {
		if v, ok := s.values[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

// GetAllValues returns every stored value, ordered by elementId.
func (s *Store) GetAllValues() []types.ObjectValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ObjectValue, 0, len(s.values))
	for _, v := range s.values {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ElementID < out[j].ElementID })
	return out
}

// GetInstance returns the instance for an elementId.
func (s *Store) GetInstance(elementID string) (types.ObjectInstance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[elementID]
	return inst, ok
}

// GetInstances returns the instances present for the requested ids, in
// request order. Missing ids are skipped.
func (s *Store) GetInstances(elementIDs []string) []types.ObjectInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ObjectInstance, 0, len(elementIDs))
	for _, id := range elementIDs {
		if inst, ok := s.instances[id]; ok {
			out = append(out, inst)
		}
	}
	return out
}

// GetAllInstances returns every instance, ordered by elementId.
func (s *Store) GetAllInstances() []types.ObjectInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ObjectInstance, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ElementID < out[j].ElementID })
	return out
}

// GetInstancesByNamespace returns the instances in a namespace, ordered
// by elementId.
func (s *Store) GetInstancesByNamespace(namespaceURI string) []types.ObjectInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instancesFromIndexLocked(s.namespaceIndex[namespaceURI])
}

// GetInstancesByType returns the instances of a type, ordered by
// elementId.
func (s *Store) GetInstancesByType(typeID string) []types.ObjectInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instancesFromIndexLocked(s.typeIndex[typeID])
}

func (s *Store) instancesFromIndexLocked(set map[string]struct{}) []types.ObjectInstance {
	out := make([]types.ObjectInstance, 0, len(set))
	for id := range set {
		if inst, ok := s.instances[id]; ok {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ElementID < out[j].ElementID })
	return out
}
