package probe

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ActivityProbe measures idle time as the time since the last recorded
// activity. It serves as the fallback when no system probe is available and
// is fed by the PTY wrapper.
type ActivityProbe struct {
	clock clock.Clock

	mu           sync.RWMutex
	lastActivity time.Time
}

// NewActivityProbe creates an activity probe. A nil clock uses the wall clock.
func NewActivityProbe(c clock.Clock) *ActivityProbe {
	if c == nil {
		c = clock.New()
	}
	return &ActivityProbe{
		clock:        c,
		lastActivity: c.Now(),
	}
}

// IdleTime implements interfaces.IdleProbe. It never fails.
func (p *ActivityProbe) IdleTime() (time.Duration, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	idle := p.clock.Since(p.lastActivity)
	if idle < 0 {
		idle = 0
	}
	return idle, nil
}

// MarkActivity records activity at the current time.
func (p *ActivityProbe) MarkActivity() {
	p.MarkActivityAt(p.clock.Now())
}

// MarkActivityAt records activity at t. Times older than the current record
// are ignored.
func (p *ActivityProbe) MarkActivityAt(t time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t.After(p.lastActivity) {
		p.lastActivity = t
	}
}

// LastActivity returns the time of the most recent activity.
func (p *ActivityProbe) LastActivity() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastActivity
}
