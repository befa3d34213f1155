// Package store is the in-memory entity graph behind the bridge.
//
// It holds the current value and instance for every elementId, the
// namespace/type/relationship-type catalogues, and the typed edges
// between elements. The dot-segment hierarchy is materialized eagerly:
// upserting "a.b.c" creates Placeholder ancestors for "a" and "a.b" and
// wires HasParent/HasChildren edges in both directions.
//
// The store is logically single-writer, many-reader. All mutations take
// the write lock; change listeners run after the write lock is released
// but under a dedicated notification lock, so every successful upsert
// is reported exactly once, in upsert order.
package store
