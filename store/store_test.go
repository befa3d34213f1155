package store

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/i3xbridge/errors"
	"github.com/c360/i3xbridge/types"
)

func value(v float64) types.ObjectValue {
	return types.ObjectValue{
		Value:     types.Number(v),
		Timestamp: "2026-03-01T12:00:00Z",
	}
}

func instance(elementID string) *types.ObjectInstance {
	return &types.ObjectInstance{
		ElementID:    elementID,
		DisplayName:  types.LastSegment(elementID),
		TypeID:       "Sensor",
		NamespaceURI: "urn:test",
	}
}

func TestUpsertValueOnly(t *testing.T) {
	s := New()
	s.Upsert("x.y", value(1), nil)

	v, ok := s.GetValue("x.y")
	require.True(t, ok)
	assert.Equal(t, "x.y", v.ElementID)
	n, _ := v.Value.AsNumber()
	assert.Equal(t, 1.0, n)

	// No instance was supplied, so no hierarchy was materialized.
	_, ok = s.GetInstance("x.y")
	assert.False(t, ok)
	_, ok = s.GetInstance("x")
	assert.False(t, ok)
}

func TestUpsertCreatesPlaceholderChain(t *testing.T) {
	s := New()
	s.Upsert("a.b.c.d", value(1), instance("a.b.c.d"))

	// Every proper ancestor exists as a Placeholder.
	for _, id := range []string{"a", "a.b", "a.b.c"} {
		inst, ok := s.GetInstance(id)
		require.True(t, ok, id)
		assert.Equal(t, types.TypePlaceholder, inst.TypeID, id)
		assert.Equal(t, types.LastSegment(id), inst.DisplayName, id)
		assert.Equal(t, "urn:test", inst.NamespaceURI, id)

		v, ok := s.GetValue(id)
		require.True(t, ok, id)
		assert.True(t, v.Value.IsNull(), id)
		assert.Equal(t, types.QualityUncertain, v.Quality, id)
		assert.NotEmpty(t, v.Timestamp, id)
	}

	// HasParent/HasChildren chain is intact and bidirectional.
	assert.Equal(t, "a.b.c", s.GetParentID("a.b.c.d"))
	assert.Equal(t, "a.b", s.GetParentID("a.b.c"))
	assert.Equal(t, "a", s.GetParentID("a.b"))
	assert.Equal(t, "", s.GetParentID("a"))

	assert.True(t, s.HasChildren("a"))
	assert.True(t, s.HasChildren("a.b"))
	assert.True(t, s.HasChildren("a.b.c"))
	assert.False(t, s.HasChildren("a.b.c.d"))
}

func TestPlaceholderReplacedByRealInstance(t *testing.T) {
	s := New()
	s.Upsert("a.b.c.d", value(1), instance("a.b.c.d"))

	edgesBefore := s.GetRelationships("a.b", "")
	s.Upsert("a.b", value(2), instance("a.b"))

	inst, ok := s.GetInstance("a.b")
	require.True(t, ok)
	assert.Equal(t, "Sensor", inst.TypeID)

	// Relationships are unchanged; the parent id derives from the same
	// elementId.
	assert.Equal(t, edgesBefore, s.GetRelationships("a.b", ""))
	assert.Equal(t, "a", s.GetParentID("a.b"))
	assert.True(t, s.HasChildren("a.b"))
}

func TestBidirectionalParenting(t *testing.T) {
	s := New()
	s.Upsert("p.q.r", value(1), instance("p.q.r"))

	for _, edge := range s.GetRelationships("p.q.r", types.RelHasParent) {
		inverse := s.GetRelationships(edge.TargetID, types.RelHasChildren)
		found := false
		for _, inv := range inverse {
			if inv.TargetID == edge.SourceID {
				found = true
			}
		}
		assert.True(t, found, "missing inverse for %v", edge)
	}
}

func TestUpsertReindexesOnChange(t *testing.T) {
	s := New()
	s.Upsert("x", value(1), instance("x"))

	moved := instance("x")
	moved.NamespaceURI = "urn:other"
	moved.TypeID = "Pump"
	s.Upsert("x", value(2), moved)

	assert.Empty(t, s.GetInstancesByNamespace("urn:test"))
	assert.Empty(t, s.GetInstancesByType("Sensor"))
	require.Len(t, s.GetInstancesByNamespace("urn:other"), 1)
	require.Len(t, s.GetInstancesByType("Pump"), 1)
}

func TestChangeListenersRunInOrder(t *testing.T) {
	s := New()
	var seen []string
	s.AddChangeListener(func(id string, _ types.ObjectValue, _ *types.ObjectInstance) {
		seen = append(seen, id)
	})

	s.Upsert("a.b.c", value(1), instance("a.b.c"))

	// Placeholders report top-down, then the upserted element itself.
	assert.Equal(t, []string{"a", "a.b", "a.b.c"}, seen)

	seen = nil
	s.Upsert("a.b.c", value(2), nil)
	assert.Equal(t, []string{"a.b.c"}, seen)
}

func TestListenerPanicIsSwallowed(t *testing.T) {
	s := New()
	s.AddChangeListener(func(string, types.ObjectValue, *types.ObjectInstance) {
		panic("broken listener")
	})
	var called bool
	s.AddChangeListener(func(string, types.ObjectValue, *types.ObjectInstance) {
		called = true
	})

	assert.NotPanics(t, func() { s.Upsert("x", value(1), nil) })
	assert.True(t, called, "later listeners still run")
}

func TestRemoveChangeListener(t *testing.T) {
	s := New()
	count := 0
	id := s.AddChangeListener(func(string, types.ObjectValue, *types.ObjectInstance) {
		count++
	})
	s.Upsert("x", value(1), nil)
	s.RemoveChangeListener(id)
	s.Upsert("x", value(2), nil)
	assert.Equal(t, 1, count)
}

func TestDeleteRootKeepsGrandchildren(t *testing.T) {
	s := New()
	s.Upsert("root.mid.leaf", value(1), instance("root.mid.leaf"))

	require.True(t, s.Delete("root"))

	_, ok := s.GetInstance("root")
	assert.False(t, ok)
	_, ok = s.GetInstance("root.mid")
	assert.True(t, ok)
	_, ok = s.GetInstance("root.mid.leaf")
	assert.True(t, ok)

	// Edges touching root are gone in both directions.
	assert.Empty(t, s.GetRelationships("root", ""))
	assert.Equal(t, "", s.GetParentID("root.mid"))
	assert.Empty(t, s.GetSourcesForTarget("root"))
}

func TestCascadeDelete(t *testing.T) {
	s := New()
	for _, id := range []string{"a", "mid", "z"} {
		s.Upsert(id, value(1), instance(id))
	}
	s.AddRelationship("a", "mid", "Feeds")
	s.AddRelationship("mid", "z", "Feeds")
	s.AddRelationship("z", "mid", "FedBy")

	require.True(t, s.Delete("mid"))

	assert.False(t, func() bool { _, ok := s.GetInstance("mid"); return ok }())
	assert.Empty(t, s.GetRelationships("mid", ""))
	assert.Empty(t, s.GetRelationships("a", ""))
	assert.Empty(t, s.GetRelationships("z", ""))
	assert.Empty(t, s.GetSourcesForTarget("mid"))

	// Unrelated nodes survive.
	_, ok := s.GetInstance("a")
	assert.True(t, ok)
	_, ok = s.GetInstance("z")
	assert.True(t, ok)
}

func TestDeleteMissing(t *testing.T) {
	s := New()
	assert.False(t, s.Delete("ghost"))
}

func TestRelationshipIdempotence(t *testing.T) {
	s := New()
	assert.True(t, s.AddRelationship("a", "b", "Feeds"))
	assert.False(t, s.AddRelationship("a", "b", "Feeds"))
	assert.Len(t, s.GetRelationships("a", ""), 1)

	// Same pair, different type is a distinct edge.
	assert.True(t, s.AddRelationship("a", "b", "Monitors"))
	assert.Len(t, s.GetRelationships("a", ""), 2)
}

func TestReverseIndexSoundness(t *testing.T) {
	s := New()
	s.AddRelationship("a", "t", "Feeds")
	s.AddRelationship("b", "t", "Feeds")
	s.AddRelationship("a", "t", "Monitors")

	assert.Equal(t, []string{"a", "b"}, s.GetSourcesForTarget("t"))

	// Removing one of a's two edges keeps a in the reverse set.
	require.True(t, s.RemoveRelationship("a", "t", "Feeds"))
	assert.Equal(t, []string{"a", "b"}, s.GetSourcesForTarget("t"))

	// Removing the last edge evicts a.
	require.True(t, s.RemoveRelationship("a", "t", "Monitors"))
	assert.Equal(t, []string{"b"}, s.GetSourcesForTarget("t"))

	require.True(t, s.RemoveRelationship("b", "t", ""))
	assert.Empty(t, s.GetSourcesForTarget("t"))
}

func TestRemoveRelationshipsByType(t *testing.T) {
	s := New()
	s.AddRelationship("a", "b", "Feeds")
	s.AddRelationship("a", "c", "Feeds")
	s.AddRelationship("a", "d", "Monitors")

	s.RemoveRelationshipsByType("a", "Feeds")
	edges := s.GetRelationships("a", "")
	require.Len(t, edges, 1)
	assert.Equal(t, "Monitors", edges[0].TypeID)
}

func TestGetRelatedElementIDs(t *testing.T) {
	s := New()
	s.AddRelationship("a", "b", "Feeds")
	s.AddRelationship("a", "c", "Feeds")
	s.AddRelationship("a", "b", "Monitors")

	assert.Equal(t, []string{"b", "c"}, s.GetRelatedElementIDs("a", ""))
	assert.Equal(t, []string{"b", "c"}, s.GetRelatedElementIDs("a", "Feeds"))
	assert.Equal(t, []string{"b"}, s.GetRelatedElementIDs("a", "Monitors"))
	assert.Empty(t, s.GetRelatedElementIDs("ghost", ""))
}

func TestRenameByUpsertReplacesParent(t *testing.T) {
	s := New()
	s.Upsert("old.child", value(1), instance("old.child"))

	// Manually retarget the HasParent edge, then upsert again; the
	// stale edge is dropped and the derived parent restored.
	s.RemoveRelationship("old.child", "old", types.RelHasParent)
	s.AddRelationship("old.child", "elsewhere", types.RelHasParent)

	s.Upsert("old.child", value(2), instance("old.child"))

	parents := s.GetRelationships("old.child", types.RelHasParent)
	require.Len(t, parents, 1)
	assert.Equal(t, "old", parents[0].TargetID)
}

func TestNamespaceRegistry(t *testing.T) {
	s := New()
	s.RegisterNamespace(types.Namespace{URI: "urn:plant", DisplayName: "Plant"})

	ns, ok := s.GetNamespace("urn:plant")
	require.True(t, ok)
	assert.Equal(t, "Plant", ns.DisplayName)

	all := s.GetAllNamespaces()
	uris := make([]string, len(all))
	for i, n := range all {
		uris[i] = n.URI
	}
	assert.Contains(t, uris, types.DefaultNamespace)
	assert.Contains(t, uris, types.RelationshipNamespace)
	assert.Contains(t, uris, "urn:plant")
}

func TestObjectTypeRegistry(t *testing.T) {
	s := New()
	ot := types.ObjectType{ElementID: "Pump", DisplayName: "Pump", NamespaceURI: "urn:plant"}
	require.NoError(t, s.RegisterObjectType(ot))

	err := s.RegisterObjectType(ot)
	assert.ErrorIs(t, err, errors.ErrDuplicateID)
	assert.True(t, errors.IsConflict(err))

	ot.DisplayName = "Centrifugal Pump"
	require.NoError(t, s.UpdateObjectType(ot))
	got, ok := s.GetObjectType("Pump")
	require.True(t, ok)
	assert.Equal(t, "Centrifugal Pump", got.DisplayName)

	assert.ErrorIs(t, s.UpdateObjectType(types.ObjectType{ElementID: "Ghost"}), errors.ErrTypeNotFound)

	byNS := s.GetObjectTypesByNamespace("urn:plant")
	require.Len(t, byNS, 1)

	batch := s.GetObjectTypes([]string{"Pump", "Ghost"})
	require.Len(t, batch, 1)
}

func TestDeleteObjectTypeInUse(t *testing.T) {
	s := New()
	require.NoError(t, s.RegisterObjectType(types.ObjectType{ElementID: "Pump"}))
	inst := instance("p1")
	inst.TypeID = "Pump"
	s.Upsert("p1", value(1), inst)

	err := s.DeleteObjectType("Pump")
	assert.ErrorIs(t, err, errors.ErrTypeInUse)
	assert.True(t, errors.IsConflict(err))

	require.True(t, s.Delete("p1"))
	require.NoError(t, s.DeleteObjectType("Pump"))
	assert.ErrorIs(t, s.DeleteObjectType("Pump"), errors.ErrTypeNotFound)
}

func TestBuiltinRelationshipTypesSeeded(t *testing.T) {
	s := New()
	for _, id := range []string{
		types.RelHasParent, types.RelHasChildren,
		types.RelHasComponent, types.RelComponentOf,
	} {
		rt, ok := s.GetRelationshipType(id)
		require.True(t, ok, id)
		assert.Equal(t, types.RelationshipNamespace, rt.NamespaceURI)
		assert.NotEmpty(t, rt.ReverseOf)
	}
	assert.NotEmpty(t, s.GetRelationshipTypesByNamespace(types.RelationshipNamespace))
}

func TestClearKeepsCatalogues(t *testing.T) {
	s := New()
	require.NoError(t, s.RegisterObjectType(types.ObjectType{ElementID: "Pump"}))
	s.Upsert("a.b", value(1), instance("a.b"))

	s.Clear()

	assert.Empty(t, s.GetAllValues())
	assert.Empty(t, s.GetAllInstances())
	assert.Empty(t, s.GetRelationships("a.b", ""))
	_, ok := s.GetObjectType("Pump")
	assert.True(t, ok)
	_, ok = s.GetRelationshipType(types.RelHasParent)
	assert.True(t, ok)
}

func TestStats(t *testing.T) {
	s := New()
	s.Upsert("a.b", value(1), instance("a.b"))

	stats := s.Stats()
	assert.Equal(t, 2, stats.Values)    // a placeholder + the element
	assert.Equal(t, 2, stats.Instances) // a + a.b
	assert.Equal(t, 2, stats.Relationships)
	assert.Equal(t, 4, stats.RelationshipTypes)
	assert.GreaterOrEqual(t, stats.Namespaces, 2)
}

func TestBatchGetters(t *testing.T) {
	s := New()
	s.Upsert("a", value(1), instance("a"))
	s.Upsert("b", value(2), instance("b"))

	vals := s.GetValues([]string{"b", "ghost", "a"})
	require.Len(t, vals, 2)
	assert.Equal(t, "b", vals[0].ElementID)
	assert.Equal(t, "a", vals[1].ElementID)

	insts := s.GetInstances([]string{"a", "ghost"})
	require.Len(t, insts, 1)
	assert.Equal(t, "a", insts[0].ElementID)
}

func TestParentChainInvariant(t *testing.T) {
	// Any reachable multi-segment instance has every ancestor present.
	s := New()
	ids := []string{"f.a.b.c", "f.a.x", "g.h", "solo"}
	for _, id := range ids {
		s.Upsert(id, value(1), instance(id))
	}

	for _, inst := range s.GetAllInstances() {
		segs := strings.Split(inst.ElementID, ".")
		for k := 1; k < len(segs); k++ {
			prefix := strings.Join(segs[:k], ".")
			_, ok := s.GetInstance(prefix)
			assert.True(t, ok, "missing ancestor %q of %q", prefix, inst.ElementID)
		}
	}
}

func TestConcurrentUpserts(t *testing.T) {
	s := New()
	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("load.g%d.i%d", g, i)
				s.Upsert(id, value(float64(i)), instance(id))
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
	assert.Equal(t, 8*50, len(s.GetInstancesByType("Sensor")))
	assert.True(t, s.HasChildren("load"))
}
