package notification

import (
	"os"
	"strings"
)

// ContextNotifier wraps another notifier and prefixes titles with the host
// the watcher runs on, so notifications from several machines can be told
// apart on one topic.
type ContextNotifier struct {
	underlying Notifier
	host       string
}

// NewContextNotifier creates a context notifier. An empty host uses the
// machine's short hostname.
func NewContextNotifier(underlying Notifier, host string) *ContextNotifier {
	if host == "" {
		if name, err := os.Hostname(); err == nil {
			host = name
		}
	}
	host, _, _ = strings.Cut(host, ".")

	return &ContextNotifier{
		underlying: underlying,
		host:       host,
	}
}

// Send implements the Notifier interface
func (cn *ContextNotifier) Send(notification Notification) error {
	if cn.host != "" {
		if notification.Title == "" {
			notification.Title = cn.host
		} else {
			notification.Title = cn.host + ": " + notification.Title
		}
	}
	return cn.underlying.Send(notification)
}
