package presence

import (
	"math"
	"regexp"
	"strconv"
	"sync"
	"time"
)

var eventNamePattern = regexp.MustCompile(`^(active|idle)(?::([0-9]+))?$`)

const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

// EventName is a parsed subscription name. A zero Duration means a bare
// transition event.
type EventName struct {
	State    State
	Duration time.Duration
}

// Timed reports whether the name is gated on a dwell duration.
func (n EventName) Timed() bool {
	return n.Duration > 0
}

func (n EventName) String() string {
	if !n.Timed() {
		return string(n.State)
	}
	if n.Duration%time.Second != 0 {
		return string(n.State) + ":" + n.Duration.String()
	}
	return string(n.State) + ":" + strconv.FormatInt(int64(n.Duration/time.Second), 10)
}

// ParseEventName parses "<state>" or "<state>:<seconds>" where seconds is a
// positive integer.
func ParseEventName(name string) (EventName, error) {
	m := eventNamePattern.FindStringSubmatch(name)
	if m == nil {
		return EventName{}, &ConfigError{Field: "event name", Value: name, Err: ErrInvalidEventName}
	}

	parsed := EventName{State: State(m[1])}
	if m[2] == "" {
		return parsed, nil
	}

	secs, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil || secs <= 0 || secs > maxDurationSeconds {
		return EventName{}, &ConfigError{Field: "event name", Value: name, Err: ErrInvalidEventName}
	}
	parsed.Duration = time.Duration(secs) * time.Second
	return parsed, nil
}

type subscription struct {
	id       SubscriptionID
	name     EventName
	listener Listener
	fired    bool
}

// firing is a listener selected for delivery by one evaluation pass.
type firing struct {
	name     EventName
	listener Listener
}

// dwell is the snapshot a timed evaluation runs against.
type dwell struct {
	state            State
	idle             time.Duration
	threshold        time.Duration
	now              time.Time
	lastTransitionAt time.Time
}

// router holds the subscriptions of one watcher. Listeners are returned to
// the caller and invoked outside the lock.
type router struct {
	mu     sync.Mutex
	nextID SubscriptionID
	subs   []*subscription
}

func (r *router) add(name EventName, listener Listener) SubscriptionID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.subs = append(r.subs, &subscription{
		id:       r.nextID,
		name:     name,
		listener: listener,
	})
	return r.nextID
}

// remove drops the subscription with the given id. When match is non-nil
// the subscription must also carry that name.
func (r *router) remove(id SubscriptionID, match *EventName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, sub := range r.subs {
		if sub.id != id {
			continue
		}
		if match != nil && sub.name != *match {
			return false
		}
		r.subs = append(r.subs[:i], r.subs[i+1:]...)
		return true
	}
	return false
}

func (r *router) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// reset re-arms every timed subscription. Called on each state change.
func (r *router) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range r.subs {
		sub.fired = false
	}
}

// transitions returns the bare listeners for entering state.
func (r *router) transitions(state State) []firing {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []firing
	for _, sub := range r.subs {
		if !sub.name.Timed() && sub.name.State == state {
			out = append(out, firing{name: sub.name, listener: sub.listener})
		}
	}
	return out
}

// due marks and returns the timed subscriptions whose dwell has elapsed.
//
// Idle dwell is measured from the threshold crossing using the idle time
// itself. Active dwell needs the wall clock because idle time resets to
// near zero on input.
func (r *router) due(d dwell) []firing {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []firing
	for _, sub := range r.subs {
		if !sub.name.Timed() || sub.fired || sub.name.State != d.state {
			continue
		}

		var elapsed time.Duration
		switch d.state {
		case StateIdle:
			elapsed = d.idle - d.threshold
		case StateActive:
			elapsed = d.now.Sub(d.lastTransitionAt)
		}
		if elapsed < sub.name.Duration {
			continue
		}

		sub.fired = true
		out = append(out, firing{name: sub.name, listener: sub.listener})
	}
	return out
}
