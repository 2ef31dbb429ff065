package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Veraticus/afkwatch/pkg/config"
	"github.com/Veraticus/afkwatch/pkg/interfaces"
	"github.com/Veraticus/afkwatch/pkg/notification"
	"github.com/Veraticus/afkwatch/pkg/presence"
	"github.com/Veraticus/afkwatch/pkg/probe"
	"github.com/Veraticus/afkwatch/pkg/process"
	"github.com/Veraticus/afkwatch/pkg/status"
	"github.com/sirupsen/logrus"
)

// errClosed is returned when watchers are applied after Close.
var errClosed = errors.New("dependencies closed")

// DependencyOptions overrides parts of the default wiring.
type DependencyOptions struct {
	Logger *logrus.Logger
	// Probe replaces the probe built from the config.
	Probe interfaces.IdleProbe
	// Notifier replaces the ntfy or stdout notifier built from the config.
	Notifier notification.Notifier
	// StatusTTY receives the status line when it is a terminal.
	StatusTTY *os.File
	// Presence options are applied to every watcher.
	Presence []presence.Option
}

// Dependencies holds all the dependencies for the application
type Dependencies struct {
	Config              *config.Config
	Logger              *logrus.Logger
	Probe               interfaces.IdleProbe
	Registry            *presence.Registry
	Notifier            notification.Notifier
	RateLimiter         interfaces.RateLimiter
	NotificationManager *notification.Manager
	StatusIndicator     *status.Indicator
	StatusReporter      *status.Reporter
	stopChan            chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewDependencies creates all dependencies with the given configuration
func NewDependencies(cfg *config.Config, opts DependencyOptions) (*Dependencies, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Probe:    opts.Probe,
		stopChan: make(chan struct{}),
	}

	if deps.Probe == nil {
		p, err := probe.New(cfg.ProbeConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create idle probe: %w", err)
		}
		deps.Probe = p
	}

	// The status line only makes sense on a terminal we share with a child.
	if opts.StatusTTY != nil {
		deps.StatusIndicator = status.NewTerminalIndicator(opts.StatusTTY)
	} else {
		deps.StatusIndicator = status.NewIndicator(nil, false)
	}
	deps.StatusReporter = status.NewReporter(deps.StatusIndicator)
	if deps.StatusIndicator.Enabled() {
		deps.StatusIndicator.StartAutoRefresh(deps.stopChan)
	}

	deps.Notifier = opts.Notifier
	if deps.Notifier == nil {
		deps.Notifier = newNotifier(cfg, opts.StatusTTY)
	}
	deps.RateLimiter = notification.NewWindowRateLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxMessages)
	deps.NotificationManager = notification.NewManager(deps.Notifier, deps.RateLimiter, notification.ManagerConfig{
		BatchWindow: cfg.BatchWindow,
		Logger:      logger.WithField("component", "notification"),
		Reporter:    deps.StatusReporter,
	})

	presenceOpts := []presence.Option{
		presence.WithProbe(deps.Probe),
		presence.WithLogger(logger.WithField("component", "presence")),
	}
	deps.Registry = presence.NewRegistry(append(presenceOpts, opts.Presence...)...)

	return deps, nil
}

// newNotifier picks ntfy when a topic is configured and notifications are
// not silenced. Otherwise notifications are printed, on tty when a child
// owns stdout.
func newNotifier(cfg *config.Config, tty *os.File) notification.Notifier {
	if cfg.NtfyTopic != "" && !cfg.Quiet {
		return notification.NewContextNotifier(notification.NewNtfyClient(cfg.NtfyServer, cfg.NtfyTopic), "")
	}
	if tty != nil {
		return notification.NewWriterNotifier(tty)
	}
	return notification.NewStdoutNotifier()
}

// Close cleans up all dependencies
func (d *Dependencies) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	if d.stopChan != nil {
		select {
		case <-d.stopChan:
			// Already closed
		default:
			close(d.stopChan)
		}
		d.stopChan = nil
	}

	if d.Registry != nil {
		d.Registry.RemoveAllWatchers()
	}

	if d.NotificationManager != nil {
		_ = d.NotificationManager.Close()
	}

	if d.StatusIndicator != nil {
		_ = d.StatusIndicator.Clear() // Best effort
	}
}

func (d *Dependencies) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Application represents the main application
type Application struct {
	deps *Dependencies
	opts *globalOptions

	mu      sync.Mutex
	names   map[presence.WatcherID]string
	process *process.Manager
}

// NewApplication creates a new application with the given dependencies.
// opts are reapplied on every config reload.
func NewApplication(deps *Dependencies, opts *globalOptions) *Application {
	if opts == nil {
		opts = &globalOptions{}
	}
	return &Application{
		deps:  deps,
		opts:  opts,
		names: make(map[presence.WatcherID]string),
	}
}

// Apply replaces every watcher with the ones cfg describes.
func (a *Application) Apply(cfg *config.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.deps.isClosed() {
		return errClosed
	}

	registry := a.deps.Registry
	registry.RemoveAllWatchers()
	a.names = make(map[presence.WatcherID]string, len(cfg.Watchers))

	for i, wc := range cfg.Watchers {
		id, err := registry.AddWatcher(wc.Threshold, a.callback(wc.Name, i == 0),
			presence.WithPollInterval(cfg.PollInterval),
			presence.WithIdlePollInterval(cfg.IdlePollInterval),
		)
		if err != nil {
			return fmt.Errorf("failed to add watcher %q: %w", wc.Name, err)
		}
		a.names[id] = wc.Name

		w, ok := registry.Watcher(id)
		if !ok {
			// Close removed it between add and lookup.
			return fmt.Errorf("watcher %q: %w", wc.Name, errClosed)
		}
		for _, event := range eventsFor(wc) {
			if _, err := w.On(event, a.listener(wc.Name)); err != nil {
				return fmt.Errorf("failed to subscribe watcher %q to %q: %w", wc.Name, event, err)
			}
		}

		if i == 0 {
			a.deps.StatusIndicator.SetPresence(w.State(), w.LastTransitionAt())
		}
	}

	a.deps.Logger.WithField("watchers", len(cfg.Watchers)).Info("watchers configured")
	return nil
}

// WatcherName returns the configured name of a running watcher.
func (a *Application) WatcherName(id presence.WatcherID) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	name, ok := a.names[id]
	return name, ok
}

// callback handles primary transitions and probe errors. Only the primary
// watcher drives the status line.
func (a *Application) callback(name string, primary bool) presence.Callback {
	logger := a.deps.Logger.WithField("watcher", name)
	return func(ev presence.Event, err error) {
		if err != nil {
			// The watcher already logs the failure.
			logger.WithError(err).Debug("poll skipped")
			return
		}

		logger.WithFields(logrus.Fields{
			"status":       ev.Status,
			"idle_seconds": int64(ev.Seconds),
		}).Info("presence changed")

		if primary {
			a.deps.StatusReporter.ReportPresence(ev)
		}
	}
}

// listener turns subscribed events into notifications.
func (a *Application) listener(name string) presence.Listener {
	logger := a.deps.Logger.WithField("watcher", name)
	return func(ev presence.Event) {
		if err := a.deps.NotificationManager.Send(notificationFor(name, ev)); err != nil {
			logger.WithError(err).WithField("event", ev.Name).Debug("notification not delivered")
		}
	}
}

// Watch runs watchers until ctx is done.
func (a *Application) Watch(ctx context.Context) error {
	if err := a.Apply(a.deps.Config); err != nil {
		return err
	}
	a.startReload(ctx)

	<-ctx.Done()
	return nil
}

// Exec runs command under a PTY with keystrokes feeding activity and returns
// its exit code.
func (a *Application) Exec(ctx context.Context, activity interfaces.ActivityMarker, command string, args []string) (int, error) {
	if err := a.Apply(a.deps.Config); err != nil {
		return 0, err
	}
	a.startReload(ctx)

	proc := process.NewManager(activity, a.deps.StatusIndicator.Refresh, a.deps.Logger.WithField("component", "process"))
	a.mu.Lock()
	a.process = proc
	a.mu.Unlock()

	if err := proc.Start(command, args); err != nil {
		return 0, err
	}
	if err := proc.Wait(); err != nil {
		return proc.ExitCode(), fmt.Errorf("failed waiting for %s: %w", command, err)
	}
	return proc.ExitCode(), nil
}

// Stop gracefully stops the wrapped process, if any
func (a *Application) Stop() error {
	a.mu.Lock()
	proc := a.process
	a.mu.Unlock()

	if proc == nil {
		return nil
	}
	return proc.Stop()
}

func (a *Application) startReload(ctx context.Context) {
	path := a.deps.Config.Path()
	if path == "" {
		return
	}

	err := watchConfig(ctx, path, a.deps.Logger, func() {
		if ctx.Err() == nil {
			a.reload()
		}
	})
	if err != nil {
		a.deps.Logger.WithError(err).Debug("config reload disabled")
	}
}

// reload re-reads the config file and swaps the watchers. A config that
// fails to load leaves the running watchers alone.
func (a *Application) reload() {
	path := a.deps.Config.Path()
	logger := a.deps.Logger.WithField("path", path)

	cfg, err := config.Load(path)
	if err == nil {
		err = applyOverrides(cfg, a.opts)
	}
	if err != nil {
		logger.WithError(err).Warn("config reload failed, keeping current watchers")
		return
	}

	if err := a.Apply(cfg); err != nil {
		if errors.Is(err, errClosed) {
			return
		}
		logger.WithError(err).Error("failed to apply reloaded config")
		return
	}
	a.deps.Logger.SetLevel(cfg.Level())
	logger.Info("config reloaded")
}
