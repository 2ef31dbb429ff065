package notification

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestManager_Send(t *testing.T) {
	tests := []struct {
		name              string
		rateLimiterAllows bool
		notifierError     error
		wantAttempts      int
		wantSent          int
		wantErr           bool
		wantReports       [3]int
	}{
		{
			name:              "successful send",
			rateLimiterAllows: true,
			wantAttempts:      1,
			wantSent:          1,
			wantReports:       [3]int{1, 1, 0},
		},
		{
			name:              "rate limited",
			rateLimiterAllows: false,
			wantAttempts:      0,
			wantSent:          0,
			wantReports:       [3]int{0, 0, 0},
		},
		{
			name:              "notifier error",
			rateLimiterAllows: true,
			notifierError:     errors.New("send failed"),
			wantAttempts:      1,
			wantSent:          0,
			wantErr:           true,
			wantReports:       [3]int{1, 0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &mockNotifier{sendErr: tt.notifierError}
			limiter := &mockRateLimiter{allowResult: tt.rateLimiterAllows}
			reporter := &mockReporter{}

			manager := NewManager(notifier, limiter, ManagerConfig{Reporter: reporter})
			defer func() { _ = manager.Close() }()

			err := manager.Send(Notification{Title: "Away", Message: "idle for 2m", Event: "idle"})
			if (err != nil) != tt.wantErr {
				t.Errorf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}

			if got := len(notifier.getAttempts()); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
			if got := len(notifier.getNotifications()); got != tt.wantSent {
				t.Errorf("sent = %d, want %d", got, tt.wantSent)
			}
			if limiter.getCallCount() != 1 {
				t.Errorf("rate limiter called %d times, want 1", limiter.getCallCount())
			}

			sending, success, failure := reporter.counts()
			if got := [3]int{sending, success, failure}; got != tt.wantReports {
				t.Errorf("reports = %v, want %v", got, tt.wantReports)
			}
		})
	}
}

func TestManager_SendStampsTime(t *testing.T) {
	mock := clock.NewMock()
	mock.Add(time.Hour)
	notifier := &mockNotifier{}

	manager := NewManager(notifier, nil, ManagerConfig{Clock: mock})
	if err := manager.Send(Notification{Title: "Back"}); err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	sent := notifier.getNotifications()
	if len(sent) != 1 || !sent[0].Time.Equal(mock.Now()) {
		t.Errorf("notification time = %v, want %v", sent, mock.Now())
	}
}

func TestManager_SendWithBatching(t *testing.T) {
	mock := clock.NewMock()
	notifier := &mockNotifier{}

	manager := NewManager(notifier, nil, ManagerConfig{BatchWindow: 5 * time.Second, Clock: mock})
	defer func() { _ = manager.Close() }()

	for _, event := range []string{"idle", "idle:30", "idle:60"} {
		if err := manager.Send(Notification{Title: "Away", Message: event, Event: event}); err != nil {
			t.Fatalf("Send() unexpected error: %v", err)
		}
	}

	if got := len(notifier.getAttempts()); got != 0 {
		t.Fatalf("sent %d notifications before the batch window closed", got)
	}

	mock.Add(5 * time.Second)
	waitFor(t, func() bool { return len(notifier.getNotifications()) == 1 })

	batch := notifier.getNotifications()[0]
	if batch.Event != "batch" {
		t.Errorf("batch event = %q, want batch", batch.Event)
	}
	if !strings.Contains(batch.Title, "3 presence events") {
		t.Errorf("batch title = %q", batch.Title)
	}
	for _, event := range []string{"idle:30", "idle:60"} {
		if !strings.Contains(batch.Message, event) {
			t.Errorf("batch message %q is missing %s", batch.Message, event)
		}
	}
}

func TestManager_SingleNotificationBatch(t *testing.T) {
	mock := clock.NewMock()
	notifier := &mockNotifier{}

	manager := NewManager(notifier, nil, ManagerConfig{BatchWindow: time.Second, Clock: mock})
	_ = manager.Send(Notification{Title: "Away", Event: "idle"})

	mock.Add(time.Second)
	waitFor(t, func() bool { return len(notifier.getNotifications()) == 1 })

	if got := notifier.getNotifications()[0]; got.Event != "idle" || got.Title != "Away" {
		t.Errorf("a lone notification should pass through unchanged, got %+v", got)
	}
}

func TestManager_Close(t *testing.T) {
	tests := []struct {
		name         string
		batchWindow  time.Duration
		pendingCount int
		wantSent     int
	}{
		{name: "close without batching", wantSent: 0},
		{name: "close flushes pending batch", batchWindow: time.Hour, pendingCount: 3, wantSent: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &mockNotifier{}
			manager := NewManager(notifier, nil, ManagerConfig{BatchWindow: tt.batchWindow, Clock: clock.NewMock()})

			for i := 0; i < tt.pendingCount; i++ {
				_ = manager.Send(Notification{Title: "Away"})
			}

			if err := manager.Close(); err != nil {
				t.Errorf("Close() unexpected error: %v", err)
			}
			if got := len(notifier.getNotifications()); got != tt.wantSent {
				t.Errorf("sent %d notifications on close, want %d", got, tt.wantSent)
			}
		})
	}
}

func TestManager_SlowNotifierDoesNotSerializeSends(t *testing.T) {
	notifier := &blockingNotifier{release: make(chan struct{})}
	manager := NewManager(notifier, nil, ManagerConfig{Clock: clock.NewMock()})

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			done <- manager.Send(Notification{Title: "Away", Event: "idle"})
		}()
	}

	// Both sends reach the notifier while the first is still blocked.
	waitFor(t, func() bool { return notifier.getStarted() == 2 })

	close(notifier.release)
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
}
