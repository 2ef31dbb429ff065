package notification

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Batcher groups notifications within a time window
type Batcher struct {
	clock    clock.Clock
	window   time.Duration
	callback func([]Notification)

	mu      sync.Mutex
	pending []Notification
	timer   *clock.Timer
}

// NewBatcher creates a new notification batcher. A nil clock uses the wall clock.
func NewBatcher(c clock.Clock, window time.Duration, callback func([]Notification)) *Batcher {
	if c == nil {
		c = clock.New()
	}
	return &Batcher{
		clock:    c,
		window:   window,
		callback: callback,
	}
}

// Add adds a notification to the batch
func (b *Batcher) Add(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, n)

	// The window opens with the first pending notification.
	if b.timer == nil {
		b.timer = b.clock.AfterFunc(b.window, b.flush)
	}
}

// Pending returns how many notifications wait for the window to close.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Batcher) flush() {
	b.mu.Lock()
	toSend := b.pending
	b.pending = nil
	b.timer = nil
	b.mu.Unlock()

	if len(toSend) == 0 {
		return
	}
	b.callback(toSend)
}

// Flush immediately sends any pending notifications
func (b *Batcher) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.mu.Unlock()

	b.flush()
}
