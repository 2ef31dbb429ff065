package notification

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/afkwatch/pkg/interfaces"
	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

// ManagerConfig tunes a Manager.
type ManagerConfig struct {
	// BatchWindow groups notifications sent within the window; zero sends
	// each one immediately.
	BatchWindow time.Duration
	Clock       clock.Clock
	Logger      logrus.FieldLogger
	Reporter    interfaces.StatusReporter
}

// Manager orchestrates notification sending with batching and rate limiting
type Manager struct {
	notifier    Notifier
	rateLimiter interfaces.RateLimiter
	reporter    interfaces.StatusReporter
	logger      logrus.FieldLogger
	clock       clock.Clock
	batcher     *Batcher

	mu sync.Mutex
}

// NewManager creates a new notification manager. A nil rate limiter allows
// everything.
func NewManager(notifier Notifier, rateLimiter interfaces.RateLimiter, cfg ManagerConfig) *Manager {
	m := &Manager{
		notifier:    notifier,
		rateLimiter: rateLimiter,
		reporter:    cfg.Reporter,
		logger:      cfg.Logger,
		clock:       cfg.Clock,
	}
	if m.clock == nil {
		m.clock = clock.New()
	}
	if m.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		m.logger = l
	}

	if cfg.BatchWindow > 0 {
		m.batcher = NewBatcher(m.clock, cfg.BatchWindow, m.sendBatch)
	}

	return m
}

// Send sends or batches a notification. Rate-limited notifications are
// dropped without error. Delivery runs without the manager lock, so a slow
// notifier only blocks its own caller.
func (m *Manager) Send(notification Notification) error {
	if notification.Time.IsZero() {
		notification.Time = m.clock.Now()
	}

	m.mu.Lock()
	allowed := m.rateLimiter == nil || m.rateLimiter.Allow()
	batcher := m.batcher
	m.mu.Unlock()

	if !allowed {
		m.logger.WithField("event", notification.Event).Debug("notification dropped by rate limit")
		return nil
	}

	if batcher != nil {
		batcher.Add(notification)
		return nil
	}

	return m.deliver(notification)
}

func (m *Manager) deliver(notification Notification) error {
	if m.reporter != nil {
		m.reporter.ReportSending()
	}

	if err := m.notifier.Send(notification); err != nil {
		if m.reporter != nil {
			m.reporter.ReportFailure()
		}
		m.logger.WithError(err).WithField("event", notification.Event).Warn("notification failed")
		return fmt.Errorf("failed to send notification: %w", err)
	}

	if m.reporter != nil {
		m.reporter.ReportSuccess()
	}
	return nil
}

// sendBatch sends a batch of notifications as a single notification
func (m *Manager) sendBatch(notifications []Notification) {
	if len(notifications) == 0 {
		return
	}

	if len(notifications) == 1 {
		_ = m.deliver(notifications[0])
		return
	}

	combined := Notification{
		Title:   fmt.Sprintf("afkwatch: %d presence events", len(notifications)),
		Message: formatBatchMessage(notifications),
		Time:    notifications[len(notifications)-1].Time,
		Event:   "batch",
		Tags:    notifications[len(notifications)-1].Tags,
	}

	// Errors are logged by deliver, batches are best effort.
	_ = m.deliver(combined)
}

// Close gracefully shuts down the manager
func (m *Manager) Close() error {
	m.mu.Lock()
	batcher := m.batcher
	m.mu.Unlock()

	// Flush any pending batches
	if batcher != nil {
		batcher.Flush()
	}

	return nil
}

// formatBatchMessage formats multiple notifications into a single message
func formatBatchMessage(notifications []Notification) string {
	var b strings.Builder
	for i, n := range notifications {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s %s: %s", n.Time.Format("15:04:05"), n.Event, n.Message)
	}
	return b.String()
}
