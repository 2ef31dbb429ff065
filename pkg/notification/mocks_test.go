package notification

import (
	"sync"
)

// mockNotifier for testing
type mockNotifier struct {
	mu            sync.Mutex
	notifications []Notification
	attempts      []Notification // Track all send attempts
	sendErr       error
}

func (m *mockNotifier) Send(n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Always track the attempt
	m.attempts = append(m.attempts, n)

	if m.sendErr != nil {
		return m.sendErr
	}

	m.notifications = append(m.notifications, n)
	return nil
}

func (m *mockNotifier) getNotifications() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]Notification, len(m.notifications))
	copy(result, m.notifications)
	return result
}

func (m *mockNotifier) getAttempts() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]Notification, len(m.attempts))
	copy(result, m.attempts)
	return result
}

// mockRateLimiter for testing
type mockRateLimiter struct {
	mu          sync.Mutex
	allowResult bool
	callCount   int
}

func (m *mockRateLimiter) Allow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	return m.allowResult
}

func (m *mockRateLimiter) getCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// mockReporter counts delivery reports.
type mockReporter struct {
	mu                        sync.Mutex
	sending, success, failure int
}

func (m *mockReporter) ReportSending() { m.mu.Lock(); m.sending++; m.mu.Unlock() }
func (m *mockReporter) ReportSuccess() { m.mu.Lock(); m.success++; m.mu.Unlock() }
func (m *mockReporter) ReportFailure() { m.mu.Lock(); m.failure++; m.mu.Unlock() }

func (m *mockReporter) counts() (int, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sending, m.success, m.failure
}

// blockingNotifier holds every Send until release is closed.
type blockingNotifier struct {
	mu      sync.Mutex
	started int
	release chan struct{}
}

func (b *blockingNotifier) Send(Notification) error {
	b.mu.Lock()
	b.started++
	b.mu.Unlock()
	<-b.release
	return nil
}

func (b *blockingNotifier) getStarted() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}
