package health

import "time"

// NewHealthy creates a healthy status.
func NewHealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   true,
		Status:    "healthy",
		Message:   sanitizeMessage(message),
		Timestamp: time.Now(),
	}
}

// NewDegraded creates a degraded status.
func NewDegraded(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    "degraded",
		Message:   sanitizeMessage(message),
		Timestamp: time.Now(),
	}
}

// NewUnhealthy creates an unhealthy status.
func NewUnhealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    "unhealthy",
		Message:   sanitizeMessage(message),
		Timestamp: time.Now(),
	}
}

// Aggregate folds sub-statuses into one overall status. Any unhealthy
// sub-status makes the aggregate unhealthy; otherwise any degraded
// sub-status makes it degraded.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "no components reporting")
	}

	hasUnhealthy := false
	hasDegraded := false
	for _, sub := range subStatuses {
		switch {
		case sub.IsUnhealthy():
			hasUnhealthy = true
		case sub.IsDegraded():
			hasDegraded = true
		}
	}

	var status Status
	switch {
	case hasUnhealthy:
		status = NewUnhealthy(component, "one or more components are unhealthy")
	case hasDegraded:
		status = NewDegraded(component, "one or more components are degraded")
	default:
		status = NewHealthy(component, "all components healthy")
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)
	return status
}
