package status

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/afkwatch/pkg/presence"
	"github.com/benbjohnson/clock"
)

func TestNewIndicator(t *testing.T) {
	buf := &bytes.Buffer{}
	indicator := NewIndicator(buf, true)

	if indicator.delivery != DeliveryNone {
		t.Errorf("expected initial delivery to be DeliveryNone, got %v", indicator.delivery)
	}
	if indicator.state != presence.StateActive {
		t.Errorf("expected initial state to be active, got %v", indicator.state)
	}
	if indicator.writer != buf {
		t.Errorf("expected writer to be set")
	}
	if !indicator.Enabled() {
		t.Errorf("expected indicator to be enabled")
	}
}

func TestNewTerminalIndicator(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "status")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if NewTerminalIndicator(f).Enabled() {
		t.Error("expected indicator on a regular file to be disabled")
	}
}

func TestIndicatorSetDelivery(t *testing.T) {
	tests := []struct {
		name           string
		delivery       Delivery
		expectedOutput string
		enabled        bool
	}{
		{name: "sending", delivery: DeliverySending, expectedOutput: "⟳ ntfy", enabled: true},
		{name: "success", delivery: DeliverySuccess, expectedOutput: "✓ ntfy", enabled: true},
		{name: "failed", delivery: DeliveryFailed, expectedOutput: "✗ ntfy", enabled: true},
		{name: "none shows presence only", delivery: DeliveryNone, expectedOutput: "▶ active", enabled: true},
		{name: "disabled indicator shows nothing", delivery: DeliverySuccess, expectedOutput: "", enabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			indicator := NewIndicatorWithClock(buf, tt.enabled, clock.NewMock())

			indicator.SetDelivery(tt.delivery)

			output := buf.String()
			if tt.expectedOutput == "" {
				if output != "" {
					t.Errorf("expected no output, got %q", output)
				}
				return
			}
			if !strings.Contains(output, tt.expectedOutput) {
				t.Errorf("expected output to contain %q, got %q", tt.expectedOutput, output)
			}
			if !strings.HasPrefix(output, "\0337") || !strings.HasSuffix(output, "\0338") {
				t.Errorf("expected output wrapped in cursor save/restore, got %q", output)
			}
		})
	}
}

func TestIndicatorSetPresence(t *testing.T) {
	mock := clock.NewMock()
	buf := &bytes.Buffer{}
	indicator := NewIndicatorWithClock(buf, true, mock)

	since := mock.Now()
	mock.Add(90 * time.Second)
	indicator.SetPresence(presence.StateIdle, since)

	if output := buf.String(); !strings.Contains(output, "Ⓩ idle 1m30s") {
		t.Errorf("expected idle with elapsed time, got %q", output)
	}

	buf.Reset()
	indicator.SetPresence(presence.StateActive, mock.Now())
	if output := buf.String(); !strings.Contains(output, "▶ active 0s") {
		t.Errorf("expected active, got %q", output)
	}
}

func TestIndicatorClear(t *testing.T) {
	buf := &bytes.Buffer{}
	indicator := NewIndicator(buf, true)

	indicator.SetDelivery(DeliverySuccess)

	buf.Reset()
	if err := indicator.Clear(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "ntfy") {
		t.Errorf("expected cleared output to not contain ntfy text, got %q", output)
	}
	if !strings.Contains(output, "\033[2K") {
		t.Errorf("expected a clear-line sequence in output, got %q", output)
	}
}

// safeBuffer is a buffer safe for the refresh goroutine.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) draws() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), "\0337\033[r")
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

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

func TestIndicatorAutoRefresh(t *testing.T) {
	mock := clock.NewMock()
	sb := &safeBuffer{}
	indicator := NewIndicatorWithClock(sb, true, mock)

	indicator.SetDelivery(DeliverySuccess)

	stop := make(chan struct{})
	indicator.StartAutoRefresh(stop)

	// Let the loop create its ticker before moving the clock.
	time.Sleep(10 * time.Millisecond)
	mock.Add(refreshInterval)
	waitFor(t, func() bool { return sb.draws() >= 2 })

	indicator.Refresh()
	waitFor(t, func() bool { return sb.draws() >= 3 })

	close(stop)
	waitFor(t, func() bool { return strings.HasSuffix(sb.String(), "\0337\033[999;1H\033[2K\0338") })
}

func TestIndicatorRefreshDisabled(t *testing.T) {
	indicator := NewIndicator(&bytes.Buffer{}, false)

	// Never blocks even without a refresh loop.
	indicator.Refresh()
	indicator.Refresh()
}
