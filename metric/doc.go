// Package metric owns the Prometheus registry for the bridge.
//
// A MetricsRegistry wraps a private prometheus.Registry seeded with the
// core bridge metrics plus the Go runtime and process collectors.
// Components register their own collectors under a component/name key
// so duplicate registrations fail loudly at wiring time instead of
// silently at scrape time.
package metric
