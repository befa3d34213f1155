// Package health aggregates per-component health into the single
// document served on /health. Components report a Status; the Monitor
// keeps the latest report per component and folds them into one
// overall status (unhealthy beats degraded beats healthy).
package health
