package notification

import (
	"time"

	"golang.org/x/time/rate"
)

// WindowRateLimiter allows at most maxMessages notifications per window, refilling
// evenly across the window.
type WindowRateLimiter struct {
	limiter *rate.Limiter
}

// NewWindowRateLimiter creates a limiter for maxMessages per window. A zero
// maxMessages or window disables limiting.
func NewWindowRateLimiter(window time.Duration, maxMessages int) *WindowRateLimiter {
	if maxMessages <= 0 || window <= 0 {
		return &WindowRateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	every := rate.Every(window / time.Duration(maxMessages))
	return &WindowRateLimiter{limiter: rate.NewLimiter(every, maxMessages)}
}

// Allow checks if a notification is allowed under the rate limit
func (l *WindowRateLimiter) Allow() bool {
	return l.limiter.Allow()
}

// AllowAt reports whether a notification at t is allowed.
func (l *WindowRateLimiter) AllowAt(t time.Time) bool {
	return l.limiter.AllowN(t, 1)
}
