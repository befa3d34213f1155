package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Well-known identifiers used throughout the bridge.
const (
	// RelationshipNamespace holds the four built-in relationship types.
	RelationshipNamespace = "urn:i3x:relationships"

	// DefaultNamespace receives instances whose mapping rule names no
	// namespace and whose topic captures none.
	DefaultNamespace = "urn:default"

	// Built-in relationship type ids. HasParent/HasChildren model the
	// dot-segment hierarchy; HasComponent/ComponentOf model payload
	// decomposition.
	RelHasParent    = "HasParent"
	RelHasChildren  = "HasChildren"
	RelHasComponent = "HasComponent"
	RelComponentOf  = "ComponentOf"

	// Type ids assigned by the pipeline when no rule template applies.
	TypeGenericTag          = "GenericTag"
	TypePlaceholder         = "Placeholder"
	TypeDecomposedComponent = "DecomposedComponent"
	TypeScalarProperty      = "ScalarProperty"

	// QualityGood is the sentinel reported on the SSE wire when a value
	// carries no quality. QualityUncertain marks placeholder values.
	QualityGood      = "Good"
	QualityUncertain = "uncertain"
)

// Namespace groups types and instances under a URI.
type Namespace struct {
	URI         string `json:"uri"`
	DisplayName string `json:"displayName"`
}

// ObjectType is a catalogue entry for a class of instances. Schema is an
// optional JSON Schema document describing instance values; the bridge
// stores it verbatim and never validates payloads against it.
type ObjectType struct {
	ElementID    string          `json:"elementId"`
	DisplayName  string          `json:"displayName"`
	NamespaceURI string          `json:"namespaceUri"`
	Schema       json.RawMessage `json:"schema,omitempty"`
}

// ObjectInstance is a single live object in the graph. Instances are
// owned exclusively by the store; everything outside holds copies.
type ObjectInstance struct {
	ElementID     string `json:"elementId"`
	DisplayName   string `json:"displayName"`
	TypeID        string `json:"typeId"`
	NamespaceURI  string `json:"namespaceUri"`
	IsComposition bool   `json:"isComposition"`
}

// ObjectValue is the current value/timestamp/quality triple for an
// elementId. Timestamp is RFC 3339. Quality is empty when unknown.
type ObjectValue struct {
	ElementID string `json:"elementId"`
	Value     Value  `json:"value"`
	Timestamp string `json:"timestamp"`
	Quality   string `json:"quality,omitempty"`
}

// VQT is the wire record for a single value sample. Quality is a pointer
// so the REST value surface can carry an explicit null while the SSE
// surface substitutes the "Good" sentinel.
type VQT struct {
	Value     Value   `json:"value"`
	Quality   *string `json:"quality"`
	Timestamp string  `json:"timestamp"`
}

// VQTFromValue converts a stored ObjectValue into its wire record.
// An absent quality stays null.
func VQTFromValue(ov ObjectValue) VQT {
	rec := VQT{Value: ov.Value, Timestamp: ov.Timestamp}
	if ov.Quality != "" {
		q := ov.Quality
		rec.Quality = &q
	}
	return rec
}

// StreamVQT converts a stored ObjectValue into the SSE wire record,
// defaulting an absent quality to the "Good" sentinel.
func StreamVQT(ov ObjectValue) VQT {
	rec := VQTFromValue(ov)
	if rec.Quality == nil {
		q := QualityGood
		rec.Quality = &q
	}
	return rec
}

// RelationshipType is a catalogue entry for a directed edge type.
// ReverseOf names the paired inverse type.
type RelationshipType struct {
	ElementID    string `json:"elementId"`
	DisplayName  string `json:"displayName"`
	NamespaceURI string `json:"namespaceUri"`
	ReverseOf    string `json:"reverseOf"`
}

// BuiltinRelationshipTypes returns the four relationship types seeded
// into every store at construction.
func BuiltinRelationshipTypes() []RelationshipType {
	return []RelationshipType{
		{ElementID: RelHasParent, DisplayName: "Has Parent", NamespaceURI: RelationshipNamespace, ReverseOf: RelHasChildren},
		{ElementID: RelHasChildren, DisplayName: "Has Children", NamespaceURI: RelationshipNamespace, ReverseOf: RelHasParent},
		{ElementID: RelHasComponent, DisplayName: "Has Component", NamespaceURI: RelationshipNamespace, ReverseOf: RelComponentOf},
		{ElementID: RelComponentOf, DisplayName: "Component Of", NamespaceURI: RelationshipNamespace, ReverseOf: RelHasComponent},
	}
}

// Relationship is a directed, typed edge between two elements.
type Relationship struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
	TypeID   string `json:"typeId"`
}

// ParentID returns the dot-segment parent path of an elementId, or ""
// when the id has a single segment.
func ParentID(elementID string) string {
	idx := strings.LastIndex(elementID, ".")
	if idx <= 0 {
		return ""
	}
	return elementID[:idx]
}

// LastSegment returns the final dot-segment of an elementId, used as the
// display hint for placeholders.
func LastSegment(elementID string) string {
	idx := strings.LastIndex(elementID, ".")
	if idx < 0 {
		return elementID
	}
	return elementID[idx+1:]
}

// NowRFC3339 formats the current UTC instant the way every timestamp in
// the bridge is rendered.
func NowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
