package notification

import (
	"fmt"
	"io"
	"os"
)

// StdoutNotifier prints notifications, for quiet local use and testing.
type StdoutNotifier struct {
	out io.Writer
}

// NewStdoutNotifier creates a notifier printing to stdout.
func NewStdoutNotifier() *StdoutNotifier {
	return NewWriterNotifier(os.Stdout)
}

// NewWriterNotifier creates a notifier printing to w.
func NewWriterNotifier(w io.Writer) *StdoutNotifier {
	return &StdoutNotifier{out: w}
}

// Send prints the notification
func (n *StdoutNotifier) Send(notification Notification) error {
	_, err := fmt.Fprintf(n.out, "[NOTIFICATION] %s: %s (Event: %s)\n",
		notification.Title,
		notification.Message,
		notification.Event)
	return err
}
