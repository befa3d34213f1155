// Package decompose breaks a structured payload into component
// instances linked to their primary element.
//
// Decomposition walks the decoded mapping recursively. Nested mappings
// become component children, non-mapping fields become ScalarProperty
// leaves, and every child carries the shallow scalar subset of its own
// fields as its value. The caller turns the emitted parent/child pairs
// into HasComponent and ComponentOf edges.
package decompose

import (
	"sort"
	"strings"

	"github.com/c360/i3xbridge/mapping"
	"github.com/c360/i3xbridge/types"
)

// DefaultMaxDepth bounds recursion when the rule does not set one.
const DefaultMaxDepth = 10

// Marker fields drive the abelara strategy and are never materialized
// as children or leaves.
var markerFields = map[string]struct{}{
	"_model": {},
	"_name":  {},
	"_path":  {},
}

// Parent identifies the element a decomposition hangs off.
type Parent struct {
	ElementID    string
	NamespaceURI string
}

// Entry is one decomposed child: the instance to upsert, its shallow
// scalar value (null when it has none), and the element it is a
// component of. Timestamp and quality are inherited from the primary
// by the caller.
type Entry struct {
	Instance types.ObjectInstance
	Value    types.Value
	ParentID string
}

// Decompose walks the decoded value per the rule's decompose config and
// returns the component entries in traversal order. A disabled config,
// a non-mapping (sub-)tree, or an empty mapping yields no entries.
func Decompose(decoded types.Value, cfg mapping.DecomposeConfig, parent Parent) []Entry {
	if !cfg.Enabled {
		return nil
	}

	root := decoded
	if cfg.Root != "" {
		narrowed, ok := mapping.Resolve(decoded, cfg.Root)
		if !ok {
			return nil
		}
		root = narrowed
	}
	m, ok := root.AsMap()
	if !ok {
		return nil
	}

	maxDepth := DefaultMaxDepth
	if cfg.MaxDepth != nil {
		maxDepth = *cfg.MaxDepth
	}

	d := &decomposer{
		strategy:  cfg.Strategy,
		pathIDs:   cfg.ChildIDStrategy == "path",
		maxDepth:  maxDepth,
		excluded:  make(map[string]struct{}, len(cfg.ExcludeFields)),
		namespace: parent.NamespaceURI,
	}
	for _, field := range cfg.ExcludeFields {
		d.excluded[field] = struct{}{}
	}

	d.walk(m, parent.ElementID, 1)
	return d.entries
}

type decomposer struct {
	strategy  string
	pathIDs   bool
	maxDepth  int
	excluded  map[string]struct{}
	namespace string
	entries   []Entry
}

func (d *decomposer) skip(key string) bool {
	if _, marker := markerFields[key]; marker {
		return true
	}
	_, excluded := d.excluded[key]
	return excluded
}

// walk processes one mapping level. depth counts levels below the
// primary, starting at 1; maxDepth 0 means unlimited.
func (d *decomposer) walk(m map[string]types.Value, parentID string, depth int) {
	if d.maxDepth != 0 && depth > d.maxDepth {
		return
	}

	// Deterministic traversal; the store and tests see a stable order.
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if d.skip(key) {
			continue
		}
		value := m[key]
		if child, isMap := value.AsMap(); isMap {
			d.walkChild(key, child, parentID, depth)
			continue
		}
		d.emitLeaf(key, value, parentID)
	}
}

func (d *decomposer) walkChild(key string, child map[string]types.Value, parentID string, depth int) {
	if len(child) == 0 {
		return
	}
	hasMarkers := hasString(child, "_name") || hasString(child, "_model")
	if d.strategy == "abelara" && !hasMarkers {
		return
	}

	displayName := key
	if name, ok := getString(child, "_name"); ok {
		displayName = name
	}
	typeID := types.TypeDecomposedComponent
	if model, ok := getString(child, "_model"); ok {
		if idx := strings.LastIndex(model, "/"); idx >= 0 {
			model = model[idx+1:]
		}
		if model != "" {
			typeID = model
		}
	}

	childID := parentID + "." + sanitizeKey(key)
	if d.pathIDs {
		if path, ok := getString(child, "_path"); ok {
			childID = strings.ReplaceAll(path, "/", ".")
		}
	}

	d.entries = append(d.entries, Entry{
		Instance: types.ObjectInstance{
			ElementID:     childID,
			DisplayName:   displayName,
			TypeID:        typeID,
			NamespaceURI:  d.namespace,
			IsComposition: false,
		},
		Value:    scalarSubset(child, d.excluded),
		ParentID: parentID,
	})

	d.walk(child, childID, depth+1)
}

// emitLeaf materializes a non-mapping field as a ScalarProperty child.
func (d *decomposer) emitLeaf(key string, value types.Value, parentID string) {
	d.entries = append(d.entries, Entry{
		Instance: types.ObjectInstance{
			ElementID:     parentID + "." + sanitizeKey(key),
			DisplayName:   key,
			TypeID:        types.TypeScalarProperty,
			NamespaceURI:  d.namespace,
			IsComposition: false,
		},
		Value:    value,
		ParentID: parentID,
	})
}

// scalarSubset collects the shallow non-mapping, non-list fields of a
// child, minus markers and excluded keys. Empty subsets become null.
func scalarSubset(m map[string]types.Value, excluded map[string]struct{}) types.Value {
	subset := make(map[string]types.Value)
	for key, value := range m {
		if _, marker := markerFields[key]; marker {
			continue
		}
		if _, skip := excluded[key]; skip {
			continue
		}
		switch value.Kind() {
		case types.KindMap, types.KindList:
			continue
		default:
			subset[key] = value
		}
	}
	if len(subset) == 0 {
		return types.Null()
	}
	return types.Map(subset)
}

// sanitizeKey lowercases a key and replaces separator characters so the
// result is a safe dot-segment.
func sanitizeKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, ".", "_")
	key = strings.ReplaceAll(key, "/", "_")
	return key
}

func getString(m map[string]types.Value, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	return v.AsString()
}

func hasString(m map[string]types.Value, key string) bool {
	_, ok := getString(m, key)
	return ok
}
