package store

import (
	"fmt"
	"sort"

	"github.com/c360/i3xbridge/errors"
	"github.com/c360/i3xbridge/types"
)

// RegisterNamespace installs or replaces a namespace.
func (s *Store) RegisterNamespace(ns types.Namespace) {
	if ns.URI == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespaces[ns.URI] = ns
}

// GetNamespace returns a namespace by URI.
func (s *Store) GetNamespace(uri string) (types.Namespace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns, ok := s.namespaces[uri]
	return ns, ok
}

// GetAllNamespaces returns every namespace, ordered by URI.
func (s *Store) GetAllNamespaces() []types.Namespace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Namespace, 0, len(s.namespaces))
	for _, ns := range s.namespaces {
		out = append(out, ns)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

// RegisterObjectType installs a new object type. An existing id is a
// conflict; use UpdateObjectType to replace.
func (s *Store) RegisterObjectType(ot types.ObjectType) error {
	if ot.ElementID == "" {
		return errors.WrapInvalid(
			fmt.Errorf("object type elementId is required"),
			"store", "RegisterObjectType", "register object type")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objectTypes[ot.ElementID]; exists {
		return errors.WrapConflict(
			fmt.Errorf("%w: object type %q", errors.ErrDuplicateID, ot.ElementID),
			"store", "RegisterObjectType", "register object type")
	}
	s.objectTypes[ot.ElementID] = ot
	return nil
}

// UpdateObjectType replaces an existing object type.
func (s *Store) UpdateObjectType(ot types.ObjectType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objectTypes[ot.ElementID]; !exists {
		return errors.WrapNotFound(
			fmt.Errorf("%w: object type %q", errors.ErrTypeNotFound, ot.ElementID),
			"store", "UpdateObjectType", "update object type")
	}
	s.objectTypes[ot.ElementID] = ot
	return nil
}

// GetObjectType returns an object type by id.
func (s *Store) GetObjectType(elementID string) (types.ObjectType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ot, ok := s.objectTypes[elementID]
	return ot, ok
}

// GetObjectTypes returns the object types present for the requested
// ids, in request order. Missing ids are skipped.
func (s *Store) GetObjectTypes(elementIDs []string) []types.ObjectType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ObjectType, 0, len(elementIDs))
	for _, id := range elementIDs {
		if ot, ok := s.objectTypes[id]; ok {
			out = append(out, ot)
		}
	}
	return out
}

// GetAllObjectTypes returns every object type, ordered by id.
func (s *Store) GetAllObjectTypes() []types.ObjectType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ObjectType, 0, len(s.objectTypes))
	for _, ot := range s.objectTypes {
		out = append(out, ot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ElementID < out[j].ElementID })
	return out
}

// GetObjectTypesByNamespace returns the object types in a namespace,
// ordered by id.
func (s *Store) GetObjectTypesByNamespace(namespaceURI string) []types.ObjectType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.ObjectType
	for _, ot := range s.objectTypes {
		if ot.NamespaceURI == namespaceURI {
			out = append(out, ot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ElementID < out[j].ElementID })
	return out
}

// DeleteObjectType removes an object type. A type with live instances
// cannot be deleted.
func (s *Store) DeleteObjectType(elementID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objectTypes[elementID]; !exists {
		return errors.WrapNotFound(
			fmt.Errorf("%w: object type %q", errors.ErrTypeNotFound, elementID),
			"store", "DeleteObjectType", "delete object type")
	}
	if len(s.typeIndex[elementID]) > 0 {
		return errors.WrapConflict(
			fmt.Errorf("%w: object type %q has %d instances",
				errors.ErrTypeInUse, elementID, len(s.typeIndex[elementID])),
			"store", "DeleteObjectType", "delete object type")
	}
	delete(s.objectTypes, elementID)
	return nil
}

// RegisterRelationshipType installs or replaces a relationship type.
func (s *Store) RegisterRelationshipType(rt types.RelationshipType) {
	if rt.ElementID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relationshipTypes[rt.ElementID] = rt
}

// GetRelationshipType returns a relationship type by id.
func (s *Store) GetRelationshipType(elementID string) (types.RelationshipType, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.relationshipTypes[elementID]
	return rt, ok
}

// GetRelationshipTypes returns the relationship types present for the
// requested ids, in request order. Missing ids are skipped.
func (s *Store) GetRelationshipTypes(elementIDs []string) []types.RelationshipType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.RelationshipType, 0, len(elementIDs))
	for _, id := range elementIDs {
		if rt, ok := s.relationshipTypes[id]; ok {
			out = append(out, rt)
		}
	}
	return out
}

// GetAllRelationshipTypes returns every relationship type, ordered by id.
func (s *Store) GetAllRelationshipTypes() []types.RelationshipType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.RelationshipType, 0, len(s.relationshipTypes))
	for _, rt := range s.relationshipTypes {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ElementID < out[j].ElementID })
	return out
}

// GetRelationshipTypesByNamespace returns the relationship types in a
// namespace, ordered by id.
func (s *Store) GetRelationshipTypesByNamespace(namespaceURI string) []types.RelationshipType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.RelationshipType
	for _, rt := range s.relationshipTypes {
		if rt.NamespaceURI == namespaceURI {
			out = append(out, rt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ElementID < out[j].ElementID })
	return out
}
