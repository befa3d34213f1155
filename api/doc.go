// Package api is the bridge's HTTP surface: REST browse and value
// endpoints over the object store, subscription management with SSE
// streaming and sync drain, a WebSocket firehose of change events, and
// the admin surface for object types and mapping rules. The router is
// chi with CORS, bearer/API-key auth, per-client rate limiting, and
// request duration metrics; /health and /metrics bypass auth.
package api
