// Package testutil provides shared test doubles.
package testutil

import (
	"sync"
	"time"

	"github.com/Veraticus/afkwatch/pkg/notification"
)

// ProbeResult is one scripted answer of a MockProbe.
type ProbeResult struct {
	Idle time.Duration
	Err  error
}

// Idle returns a successful probe result.
func Idle(d time.Duration) ProbeResult {
	return ProbeResult{Idle: d}
}

// Fail returns a failing probe result.
func Fail(err error) ProbeResult {
	return ProbeResult{Err: err}
}

// MockProbe is a thread-safe scripted implementation of interfaces.IdleProbe.
// It replays its results in order and repeats the last one forever.
type MockProbe struct {
	mu      sync.Mutex
	results []ProbeResult
	calls   int
}

// NewMockProbe creates a probe that replays results.
func NewMockProbe(results ...ProbeResult) *MockProbe {
	return &MockProbe{results: results}
}

// IdleTime implements the IdleProbe interface
func (m *MockProbe) IdleTime() (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if len(m.results) == 0 {
		return 0, nil
	}

	i := m.calls - 1
	if i >= len(m.results) {
		i = len(m.results) - 1
	}
	r := m.results[i]
	return r.Idle, r.Err
}

// SetResults replaces the remaining script.
func (m *MockProbe) SetResults(results ...ProbeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(make([]ProbeResult, m.calls), results...)
}

// Calls returns how many times IdleTime was called
func (m *MockProbe) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// WaitForCalls blocks until IdleTime has been called n times or the timeout
// elapses. It reports whether the count was reached.
func (m *MockProbe) WaitForCalls(n int, timeout time.Duration) bool {
	return Eventually(timeout, func() bool { return m.Calls() >= n })
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// MockNotifier is a thread-safe mock implementation of notification.Notifier for testing
type MockNotifier struct {
	mu            sync.Mutex
	notifications []notification.Notification
	attempts      []notification.Notification // Track all send attempts
	sendErr       error
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Send implements the Notifier interface
func (m *MockNotifier) Send(n notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts = append(m.attempts, n)
	if m.sendErr != nil {
		return m.sendErr
	}

	m.notifications = append(m.notifications, n)
	return nil
}

// GetNotifications returns a copy of successfully sent notifications
func (m *MockNotifier) GetNotifications() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]notification.Notification, len(m.notifications))
	copy(result, m.notifications)
	return result
}

// GetAttempts returns a copy of all attempted sends (including failures)
func (m *MockNotifier) GetAttempts() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]notification.Notification, len(m.attempts))
	copy(result, m.attempts)
	return result
}

// SetError sets the error to return on Send calls
func (m *MockNotifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// MockRateLimiter is a mock implementation of interfaces.RateLimiter for testing
type MockRateLimiter struct {
	mu          sync.Mutex
	allowResult bool
	allowCount  int
}

// NewMockRateLimiter creates a new mock rate limiter
func NewMockRateLimiter(allowResult bool) *MockRateLimiter {
	return &MockRateLimiter{allowResult: allowResult}
}

// Allow implements the RateLimiter interface
func (m *MockRateLimiter) Allow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowCount++
	return m.allowResult
}

// GetAllowCount returns how many times Allow was called
func (m *MockRateLimiter) GetAllowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowCount
}

// MockStatusReporter records delivery status reports.
type MockStatusReporter struct {
	mu       sync.Mutex
	sending  int
	success  int
	failures int
}

// ReportSending implements interfaces.StatusReporter
func (m *MockStatusReporter) ReportSending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sending++
}

// ReportSuccess implements interfaces.StatusReporter
func (m *MockStatusReporter) ReportSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.success++
}

// ReportFailure implements interfaces.StatusReporter
func (m *MockStatusReporter) ReportFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

// Counts returns the number of sending, success and failure reports.
func (m *MockStatusReporter) Counts() (sending, success, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sending, m.success, m.failures
}
