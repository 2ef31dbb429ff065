package presence

import (
	"io"
	"time"

	"github.com/Veraticus/afkwatch/pkg/interfaces"
	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is how often a watcher samples the probe.
const DefaultPollInterval = time.Second

type options struct {
	clock            clock.Clock
	probe            interfaces.IdleProbe
	logger           logrus.FieldLogger
	pollInterval     time.Duration
	idlePollInterval time.Duration
	initialState     State
}

// Option configures a Watcher or, passed to NewRegistry, every watcher the
// registry creates.
type Option func(*options)

// WithClock sets the time source. Tests pass clock.NewMock().
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithProbe sets the idle probe.
func WithProbe(p interfaces.IdleProbe) Option {
	return func(o *options) {
		o.probe = p
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithPollInterval sets the fixed poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithIdlePollInterval enables adaptive polling: the watcher polls at d
// while idle and at the regular poll interval while active. Zero disables it.
func WithIdlePollInterval(d time.Duration) Option {
	return func(o *options) {
		o.idlePollInterval = d
	}
}

// WithInitialState sets the state a new watcher starts in.
func WithInitialState(s State) Option {
	return func(o *options) {
		o.initialState = s
	}
}

func defaultOptions() options {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return options{
		clock:        clock.New(),
		logger:       logger,
		pollInterval: DefaultPollInterval,
		initialState: StateActive,
	}
}

func (o *options) validate() error {
	if o.probe == nil {
		return &ConfigError{Field: "probe", Err: ErrMissingProbe}
	}
	if o.pollInterval <= 0 {
		return &ConfigError{Field: "poll interval", Value: o.pollInterval.String(), Err: ErrInvalidInterval}
	}
	if o.idlePollInterval < 0 {
		return &ConfigError{Field: "idle poll interval", Value: o.idlePollInterval.String(), Err: ErrInvalidInterval}
	}
	if !o.initialState.Valid() {
		return &ConfigError{Field: "initial state", Value: string(o.initialState), Err: ErrInvalidState}
	}
	return nil
}
