// Package types defines the i3X information model shared across the bridge:
// the tagged Value variant carried by every object, the catalogue entries
// (namespaces, object types, relationship types), live object instances and
// their current values, and directed relationships.
//
// # Value Variant
//
// Decoded MQTT payloads arrive as untyped JSON or raw bytes. Value is a sum
// type over the shapes the bridge can carry: null, boolean, number, string,
// raw bytes, ordered list, or string-keyed mapping. Consumers switch on
// Kind() rather than type-asserting an any:
//
//	switch v.Kind() {
//	case types.KindNumber:
//	    f, _ := v.AsNumber()
//	case types.KindMap:
//	    for k, item := range v.AsMap() { ... }
//	}
//
// # Element Identity
//
// ElementIds are opaque strings, dot-segmented by convention ("a.b.c").
// The final segment is a display hint; the prefix names the parent path.
// ParentID and LastSegment implement that convention in one place.
package types
