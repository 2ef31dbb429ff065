// Package status draws a one-line presence and delivery indicator at the
// bottom of the terminal.
package status

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/afkwatch/pkg/presence"
	"github.com/benbjohnson/clock"
	"golang.org/x/term"
)

// Delivery represents the state of the most recent notification
type Delivery int

const (
	DeliveryNone Delivery = iota
	DeliverySending
	DeliverySuccess
	DeliveryFailed
)

const refreshInterval = 2 * time.Second

// Indicator manages the status display in the terminal
type Indicator struct {
	mu       sync.Mutex
	delivery Delivery
	lastSent time.Time
	enabled  bool
	writer   io.Writer
	clock    clock.Clock

	state presence.State
	since time.Time

	refreshChan chan struct{}
}

// NewIndicator creates a new status indicator
func NewIndicator(writer io.Writer, enabled bool) *Indicator {
	return NewIndicatorWithClock(writer, enabled, clock.New())
}

// NewIndicatorWithClock creates an indicator reading time from c.
func NewIndicatorWithClock(writer io.Writer, enabled bool, c clock.Clock) *Indicator {
	return &Indicator{
		delivery:    DeliveryNone,
		writer:      writer,
		enabled:     enabled,
		clock:       c,
		state:       presence.StateActive,
		since:       c.Now(),
		refreshChan: make(chan struct{}, 1),
	}
}

// NewTerminalIndicator creates an indicator on f that is enabled only when f
// is a terminal.
func NewTerminalIndicator(f *os.File) *Indicator {
	return NewIndicator(f, term.IsTerminal(int(f.Fd())))
}

// Enabled reports whether the indicator draws anything.
func (i *Indicator) Enabled() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.enabled
}

// SetDelivery updates the notification delivery state
func (i *Indicator) SetDelivery(d Delivery) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.delivery = d
	if d == DeliverySuccess {
		i.lastSent = i.clock.Now()
	}

	// Best effort - don't fail if we can't update the display
	_ = i.draw()
}

// SetPresence records the presence state and when it began.
func (i *Indicator) SetPresence(state presence.State, since time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.state = state
	i.since = since
	_ = i.draw()
}

// draw renders the status indicator
func (i *Indicator) draw() error {
	if !i.enabled || i.writer == nil {
		return nil
	}

	// \0337 saves the cursor, \033[r resets the scroll region, \033[999;1H
	// moves to the last line, \033[2K clears it, \0338 restores the cursor.
	sequence := fmt.Sprintf("\0337\033[r\033[999;1H\033[2K%s\0338", i.statusText())

	if _, err := fmt.Fprint(i.writer, sequence); err != nil {
		return err
	}

	return nil
}

// statusText returns the status line with color
func (i *Indicator) statusText() string {
	var parts []string

	elapsed := i.clock.Since(i.since).Truncate(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	if i.state == presence.StateIdle {
		parts = append(parts, fmt.Sprintf("\033[33mⓏ idle %s\033[0m", elapsed)) // Yellow Z for idle
	} else {
		parts = append(parts, fmt.Sprintf("\033[32m▶ active %s\033[0m", elapsed)) // Green play for active
	}

	switch i.delivery {
	case DeliverySending:
		parts = append(parts, "\033[33m⟳ ntfy\033[0m")
	case DeliverySuccess:
		parts = append(parts, fmt.Sprintf("\033[32m✓ ntfy %s\033[0m", i.lastSent.Format("15:04")))
	case DeliveryFailed:
		parts = append(parts, "\033[31m✗ ntfy\033[0m")
	}

	return strings.Join(parts, " ")
}

// Clear removes the status indicator
func (i *Indicator) Clear() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.enabled || i.writer == nil {
		return nil
	}

	sequence := "\0337\033[999;1H\033[2K\0338"
	if _, err := fmt.Fprint(i.writer, sequence); err != nil {
		return err
	}

	return nil
}

// Refresh asks the refresh loop to redraw, for example after the screen was
// written over.
func (i *Indicator) Refresh() {
	if !i.Enabled() {
		return
	}
	select {
	case i.refreshChan <- struct{}{}:
	default:
		// refresh already pending
	}
}

// StartAutoRefresh redraws periodically until stop is closed, then clears
// the line.
func (i *Indicator) StartAutoRefresh(stop <-chan struct{}) {
	go func() {
		ticker := i.clock.Ticker(refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
			case <-i.refreshChan:
			case <-stop:
				_ = i.Clear() // Best effort
				return
			}
			i.mu.Lock()
			_ = i.draw()
			i.mu.Unlock()
		}
	}()
}
