// Package subscription manages change subscriptions over the store.
//
// Each subscription watches a set of elementIds and buffers their value
// changes in a bounded FIFO queue; overflow evicts the oldest entry so
// a slow or absent consumer always sees the most recent values. A
// subscription may additionally stream frames over one SSE connection
// at a time; delivery is at-least-once, with sync draining whatever the
// stream may or may not have already sent.
package subscription
