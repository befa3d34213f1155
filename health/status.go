package health

import (
	"regexp"
	"strings"
	"time"
)

// Error messages can leak broker URLs or credentials into the public
// health document; strip them before they leave the process.
var (
	urlRegex        = regexp.MustCompile(`(?:https?|tcp|ssl|mqtts?|wss?)://[^\s]+`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status is the health state of one component or of the whole bridge.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"` // "healthy", "degraded", "unhealthy"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"subStatuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics carries the component counters worth surfacing on /health.
type Metrics struct {
	Uptime            time.Duration `json:"uptime,omitempty"`
	ErrorCount        int64         `json:"errorCount,omitempty"`
	MessagesProcessed int64         `json:"messagesProcessed,omitempty"`
	Reconnects        int64         `json:"reconnects,omitempty"`
}

// IsHealthy reports whether the status is healthy.
func (s Status) IsHealthy() bool { return s.Status == "healthy" }

// IsDegraded reports whether the status is degraded.
func (s Status) IsDegraded() bool { return s.Status == "degraded" }

// IsUnhealthy reports whether the status is unhealthy.
func (s Status) IsUnhealthy() bool { return s.Status == "unhealthy" }

// WithMetrics returns a copy of the status with metrics attached.
func (s Status) WithMetrics(metrics *Metrics) Status {
	s.Metrics = metrics
	return s
}

func sanitizeMessage(msg string) string {
	if msg == "" {
		return ""
	}
	sanitized := urlRegex.ReplaceAllString(msg, "[URL]")
	lower := strings.ToLower(sanitized)
	if strings.Contains(lower, "password") || strings.Contains(lower, "token") ||
		strings.Contains(lower, "key") || strings.Contains(lower, "secret") ||
		strings.Contains(lower, "credential") {
		sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
	}
	return sanitized
}
