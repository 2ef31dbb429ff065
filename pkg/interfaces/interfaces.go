// Package interfaces defines the core interfaces used throughout the application.
package interfaces

import "time"

// IdleProbe reports how long the user has been idle.
type IdleProbe interface {
	IdleTime() (time.Duration, error)
}

// ActivityMarker records user activity observed outside the probe.
type ActivityMarker interface {
	MarkActivity()
}

// RateLimiter limits notification frequency.
type RateLimiter interface {
	Allow() bool
}

// StatusReporter reports notification delivery status.
type StatusReporter interface {
	ReportSending()
	ReportSuccess()
	ReportFailure()
}
