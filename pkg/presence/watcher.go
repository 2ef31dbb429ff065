package presence

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Veraticus/afkwatch/pkg/interfaces"
	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

// Watcher polls an idle probe and reports active/idle transitions for one
// threshold.
type Watcher struct {
	id        WatcherID
	threshold time.Duration
	callback  Callback

	probe            interfaces.IdleProbe
	clock            clock.Clock
	logger           logrus.FieldLogger
	pollInterval     time.Duration
	idlePollInterval time.Duration

	router router

	mu               sync.Mutex
	state            State
	lastTransitionAt time.Time
	running          bool
	ticker           *clock.Ticker
	done             chan struct{}

	stopped atomic.Bool
}

// NewWatcher creates a watcher in its initial state. Polling starts with
// Start. The callback may be nil when only listeners are used.
func NewWatcher(id WatcherID, threshold time.Duration, callback Callback, opts ...Option) (*Watcher, error) {
	if threshold <= 0 {
		return nil, &ConfigError{Field: "threshold", Value: threshold.String(), Err: ErrInvalidThreshold}
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.logger == nil {
		o.logger = defaultOptions().logger
	}

	return &Watcher{
		id:               id,
		threshold:        threshold,
		callback:         callback,
		probe:            o.probe,
		clock:            o.clock,
		logger:           o.logger.WithField("watcher", id),
		pollInterval:     o.pollInterval,
		idlePollInterval: o.idlePollInterval,
		state:            o.initialState,
		lastTransitionAt: o.clock.Now(),
	}, nil
}

// ID returns the watcher id.
func (w *Watcher) ID() WatcherID {
	return w.id
}

// Threshold returns the idle duration after which the user is away.
func (w *Watcher) Threshold() time.Duration {
	return w.threshold
}

// State returns the current state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// LastTransitionAt returns the time of the most recent state change.
func (w *Watcher) LastTransitionAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastTransitionAt
}

// Running reports whether the poll loop is live.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// SetState forces the watcher into s without emitting anything. Timed
// subscriptions are re-armed if the state changes.
func (w *Watcher) SetState(s State) error {
	if !s.Valid() {
		return &ConfigError{Field: "state", Value: string(s), Err: ErrInvalidState}
	}

	w.mu.Lock()
	changed := w.state != s
	if changed || s == StateActive {
		w.lastTransitionAt = w.clock.Now()
	}
	w.state = s
	if changed {
		w.retuneLocked()
	}
	w.mu.Unlock()

	if changed {
		w.router.reset()
	}
	return nil
}

// Start begins polling. It is a no-op if the watcher is already running or
// has been stopped.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running || w.stopped.Load() {
		return
	}

	w.running = true
	w.ticker = w.clock.Ticker(w.intervalLocked())
	w.done = make(chan struct{})
	go w.loop(w.ticker, w.done)

	w.logger.WithField("interval", w.pollInterval).Debug("watcher started")
}

// Stop ends polling. A poll already in flight checks the stopped flag before
// each callback and listener, so its remaining emissions are suppressed.
// Stop is idempotent and may be called from a callback.
func (w *Watcher) Stop() {
	if w.stopped.Swap(true) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ticker != nil {
		w.ticker.Stop()
		w.ticker = nil
	}
	if w.done != nil {
		close(w.done)
		w.done = nil
	}
	w.running = false

	w.logger.Debug("watcher stopped")
}

// Subscribe registers listener for state. A zero duration listens for
// transitions into state; a positive one fires once per dwell after the
// state has held for duration. Durations are whole seconds so every
// subscription has a name ParseEventName accepts.
func (w *Watcher) Subscribe(state State, duration time.Duration, listener Listener) (SubscriptionID, error) {
	if !state.Valid() {
		return 0, &ConfigError{Field: "state", Value: string(state), Err: ErrInvalidState}
	}
	if duration < 0 || duration%time.Second != 0 {
		return 0, &ConfigError{Field: "duration", Value: duration.String(), Err: ErrInvalidEventName}
	}
	if listener == nil {
		return 0, &ConfigError{Field: "listener", Err: ErrMissingListener}
	}
	return w.router.add(EventName{State: state, Duration: duration}, listener), nil
}

// Unsubscribe removes a subscription. It reports whether one was removed.
func (w *Watcher) Unsubscribe(id SubscriptionID) bool {
	return w.router.remove(id, nil)
}

// On subscribes listener to a named event such as "idle" or "active:300".
func (w *Watcher) On(name string, listener Listener) (SubscriptionID, error) {
	parsed, err := ParseEventName(name)
	if err != nil {
		return 0, err
	}
	return w.Subscribe(parsed.State, parsed.Duration, listener)
}

// Off removes the subscription id registered under name.
func (w *Watcher) Off(name string, id SubscriptionID) (bool, error) {
	parsed, err := ParseEventName(name)
	if err != nil {
		return false, err
	}
	return w.router.remove(id, &parsed), nil
}

// Subscriptions returns the number of registered listeners.
func (w *Watcher) Subscriptions() int {
	return w.router.len()
}

func (w *Watcher) loop(ticker *clock.Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll runs one sample. Only the loop goroutine calls it, so polls never
// overlap.
func (w *Watcher) poll() {
	if w.stopped.Load() {
		return
	}

	now := w.clock.Now()
	idle, err := w.probe.IdleTime()
	if err != nil {
		w.logger.WithError(err).Warn("idle probe failed")
		if w.callback != nil && !w.stopped.Load() {
			w.callback(Event{ID: w.id, At: now}, &ProbeError{Err: err})
		}
		return
	}
	if idle < 0 {
		idle = 0
	}

	w.mu.Lock()
	previous := w.state
	away := idle >= w.threshold

	var transition *Event
	switch {
	case previous == StateActive && away:
		w.state = StateIdle
		transition = &Event{Name: string(StateIdle), Status: StatusAway}
	case previous == StateIdle && !away:
		w.state = StateActive
		transition = &Event{Name: string(StateActive), Status: StatusBack}
	}
	if transition != nil {
		w.lastTransitionAt = now
		w.retuneLocked()
	}
	state := w.state
	lastTransitionAt := w.lastTransitionAt
	w.mu.Unlock()

	base := Event{
		ID:       w.id,
		State:    state,
		Previous: previous,
		Seconds:  idle.Seconds(),
		At:       now,
	}

	if transition != nil {
		w.router.reset()

		w.logger.WithFields(logrus.Fields{
			"state":        state,
			"idle_seconds": idle.Seconds(),
		}).Debug("state changed")

		ev := base
		ev.Name = transition.Name
		ev.Status = transition.Status
		if w.callback != nil && !w.stopped.Load() {
			w.callback(ev, nil)
		}
		for _, f := range w.router.transitions(state) {
			if w.stopped.Load() {
				return
			}
			f.listener(ev)
		}
	}

	for _, f := range w.router.due(dwell{
		state:            state,
		idle:             idle,
		threshold:        w.threshold,
		now:              now,
		lastTransitionAt: lastTransitionAt,
	}) {
		if w.stopped.Load() {
			return
		}
		ev := base
		ev.Name = f.name.String()
		w.logger.WithField("event", ev.Name).Debug("timed event fired")
		f.listener(ev)
	}
}

func (w *Watcher) intervalLocked() time.Duration {
	if w.state == StateIdle && w.idlePollInterval > 0 {
		return w.idlePollInterval
	}
	return w.pollInterval
}

// retuneLocked moves a running ticker to the interval for the current state.
func (w *Watcher) retuneLocked() {
	if w.ticker != nil && w.idlePollInterval > 0 {
		w.ticker.Reset(w.intervalLocked())
	}
}
