// Package i3xbridge is a read-only protocol bridge between MQTT
// telemetry and the i3X information model.
//
// # Philosophy: Decode Once, Serve Many
//
// The bridge turns opaque broker payloads into a typed, browsable
// entity graph. Ingest is strictly one-way: MQTT messages mutate the
// graph, HTTP clients only read it. Nothing the API surface does can
// publish back to the broker.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│        MQTT Transport               │  reconnect, topic replay,
//	│          (mqttclient)               │  connection state
//	└─────────────────────────────────────┘
//	           ↓ (topic, payload)
//	┌─────────────────────────────────────┐
//	│        Ingest Pipeline              │  pattern match → extract →
//	│  (mapping, codec, mapper,           │  decode → map → decompose
//	│   decompose, ingest)                │
//	└─────────────────────────────────────┘
//	           ↓ upserts
//	┌─────────────────────────────────────┐
//	│         Object Store                │  values, instances,
//	│           (store)                   │  relationships, catalogues
//	└─────────────────────────────────────┘
//	           ↓ change events
//	┌─────────────────────────────────────┐
//	│   Subscriptions + HTTP Surface      │  bounded queues, SSE,
//	│      (subscription, api)            │  sync drain, WS firehose
//	└─────────────────────────────────────┘
//
// Every decoded value lands in the store as a value/quality/timestamp
// triple attached to an object instance. Dot-segments in element ids
// imply a hierarchy; missing ancestors materialize as placeholders so
// the graph is always navigable from its roots.
//
// Packages:
//   - mapping: topic patterns, rule engine, path expressions
//   - codec: byte extraction and payload decoding
//   - mapper: rule output to element/value/timestamp/quality
//   - decompose: recursive payload decomposition into components
//   - store: the in-memory entity graph and catalogues
//   - subscription: change fanout with drop-oldest queues
//   - ingest: the per-message pipeline tying the above together
//   - mqttclient: the broker transport
//   - api: REST, SSE, WebSocket, and admin surface
//   - config: YAML configuration and seeds
//   - metric, health, errors, types: cross-cutting support
package i3xbridge
