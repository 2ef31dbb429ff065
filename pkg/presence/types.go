// Package presence turns periodic idle-time samples into active/idle
// transitions and duration-gated timed events.
//
// A Watcher owns one threshold and one poll loop. A Registry owns a set of
// watchers keyed by WatcherID. Listeners subscribe to a state, optionally
// gated on how long that state has held:
//
//	w.On("idle", onAway)      // every active -> idle transition
//	w.On("idle:30", onLong)   // once per dwell, 30s past the threshold
//	w.On("active:300", onBusy) // once per dwell, 5m after coming back
package presence

import (
	"fmt"
	"time"
)

// State is the presence state of a watcher.
type State string

const (
	StateActive State = "active"
	StateIdle   State = "idle"
)

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	return s == StateActive || s == StateIdle
}

// ParseState converts a label into a State.
func ParseState(label string) (State, error) {
	s := State(label)
	if !s.Valid() {
		return "", &ConfigError{Field: "state", Value: label, Err: ErrInvalidState}
	}
	return s, nil
}

// Status labels a primary transition.
type Status string

const (
	// StatusAway is reported on active -> idle.
	StatusAway Status = "away"
	// StatusBack is reported on idle -> active.
	StatusBack Status = "back"
)

// WatcherID identifies a watcher within its registry.
type WatcherID uint64

func (id WatcherID) String() string {
	return fmt.Sprintf("%d", uint64(id))
}

// SubscriptionID identifies one listener registration on a watcher.
type SubscriptionID uint64

// Event is delivered to callbacks and listeners.
//
// Status is set only for primary transitions; timed events leave it empty
// and carry their name ("idle:30") in Name.
type Event struct {
	ID       WatcherID
	Name     string
	Status   Status
	State    State
	Previous State
	Seconds  float64
	At       time.Time
}

// Callback receives primary transitions and probe errors. On error the
// event is zero apart from ID and At.
type Callback func(event Event, err error)

// Listener receives events for one subscription.
type Listener func(event Event)
