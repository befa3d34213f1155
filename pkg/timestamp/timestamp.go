// Package timestamp provides standardized RFC 3339 timestamp handling.
//
// Every timestamp the bridge emits is an RFC 3339 instant in UTC. Payload
// sources report time as either RFC 3339 strings or epoch milliseconds;
// this package is the single place both get normalized.
package timestamp

import (
	"time"
)

// Format renders a time.Time as the canonical RFC 3339 UTC string.
func Format(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// FormatMillis renders epoch milliseconds as the canonical RFC 3339 UTC
// string. Fractional milliseconds are truncated.
func FormatMillis(ms float64) string {
	return Format(time.UnixMilli(int64(ms)))
}
