package store

import (
	"sort"

	"github.com/c360/i3xbridge/types"
)

// AddRelationship records a directed edge. Adding an identical edge is
// a no-op; reports whether the edge was new.
func (s *Store) AddRelationship(sourceID, targetID, typeID string) bool {
	if sourceID == "" || targetID == "" || typeID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addEdgeLocked(sourceID, targetID, typeID)
}

func (s *Store) addEdgeLocked(sourceID, targetID, typeID string) bool {
	for _, edge := range s.relationships[sourceID] {
		if edge.TargetID == targetID && edge.TypeID == typeID {
			return false
		}
	}
	s.relationships[sourceID] = append(s.relationships[sourceID], types.Relationship{
		SourceID: sourceID,
		TargetID: targetID,
		TypeID:   typeID,
	})
	addToIndex(s.targetIndex, targetID, sourceID)
	return true
}

// GetRelationships returns the outgoing edges of an element in
// insertion order, optionally filtered by type (empty typeID = all).
func (s *Store) GetRelationships(elementID, typeID string) []types.Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgesByTypeLocked(elementID, typeID)
}

func (s *Store) edgesByTypeLocked(elementID, typeID string) []types.Relationship {
	edges := s.relationships[elementID]
	out := make([]types.Relationship, 0, len(edges))
	for _, edge := range edges {
		if typeID == "" || edge.TypeID == typeID {
			out = append(out, edge)
		}
	}
	return out
}

// GetRelatedElementIDs returns the targets of an element's outgoing
// edges, optionally filtered by type, in edge insertion order without
// duplicates.
func (s *Store) GetRelatedElementIDs(elementID, typeID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, edge := range s.relationships[elementID] {
		if typeID != "" && edge.TypeID != typeID {
			continue
		}
		if _, dup := seen[edge.TargetID]; dup {
			continue
		}
		seen[edge.TargetID] = struct{}{}
		out = append(out, edge.TargetID)
	}
	return out
}

// GetSourcesForTarget returns every element with at least one edge
// pointing at targetID, sorted. The reverse index makes this O(degree).
func (s *Store) GetSourcesForTarget(targetID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.targetIndex[targetID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RemoveRelationship deletes matching edges from source to target.
// Empty typeID matches any type. Reports whether anything was removed.
func (s *Store) RemoveRelationship(sourceID, targetID, typeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if typeID != "" {
		return s.removeEdgeLocked(sourceID, targetID, typeID)
	}
	removed := false
	for _, edge := range s.edgesByTypeLocked(sourceID, "") {
		if edge.TargetID == targetID && s.removeEdgeLocked(sourceID, targetID, edge.TypeID) {
			removed = true
		}
	}
	return removed
}

// removeEdgeLocked deletes one exact edge and maintains the reverse
// index: when the source no longer points at the target at all, the
// source leaves the target's reverse set.
func (s *Store) removeEdgeLocked(sourceID, targetID, typeID string) bool {
	edges := s.relationships[sourceID]
	idx := -1
	for i, edge := range edges {
		if edge.TargetID == targetID && edge.TypeID == typeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	edges = append(edges[:idx], edges[idx+1:]...)
	if len(edges) == 0 {
		delete(s.relationships, sourceID)
	} else {
		s.relationships[sourceID] = edges
	}

	stillPoints := false
	for _, edge := range edges {
		if edge.TargetID == targetID {
			stillPoints = true
			break
		}
	}
	if !stillPoints {
		removeFromIndex(s.targetIndex, targetID, sourceID)
	}
	return true
}

// RemoveRelationshipsByType deletes every outgoing edge of the given
// type from an element.
func (s *Store) RemoveRelationshipsByType(elementID, typeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, edge := range s.edgesByTypeLocked(elementID, typeID) {
		s.removeEdgeLocked(edge.SourceID, edge.TargetID, edge.TypeID)
	}
}

// ClearRelationships deletes every edge touching an element, in both
// directions.
func (s *Store) ClearRelationships(elementID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearRelationshipsLocked(elementID)
}

func (s *Store) clearRelationshipsLocked(elementID string) {
	// Forward edges: drop the element from every target's reverse set.
	for _, edge := range s.relationships[elementID] {
		removeFromIndex(s.targetIndex, edge.TargetID, elementID)
	}
	delete(s.relationships, elementID)

	// Incoming edges: filter each source's forward list.
	for sourceID := range s.targetIndex[elementID] {
		edges := s.relationships[sourceID]
		kept := edges[:0]
		for _, edge := range edges {
			if edge.TargetID != elementID {
				kept = append(kept, edge)
			}
		}
		if len(kept) == 0 {
			delete(s.relationships, sourceID)
		} else {
			s.relationships[sourceID] = kept
		}
	}
	delete(s.targetIndex, elementID)
}

// GetParentID returns the target of the element's first HasParent edge,
// or "" when it has none.
func (s *Store) GetParentID(elementID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, edge := range s.relationships[elementID] {
		if edge.TypeID == types.RelHasParent {
			return edge.TargetID
		}
	}
	return ""
}

// HasChildren reports whether any element names this one as parent.
func (s *Store) HasChildren(elementID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, edge := range s.relationships[elementID] {
		if edge.TypeID == types.RelHasChildren {
			return true
		}
	}
	return false
}
