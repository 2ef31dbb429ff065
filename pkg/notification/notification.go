// Package notification delivers presence notifications to the user.
package notification

import "time"

// Notification represents a notification to be sent.
type Notification struct {
	Title   string
	Message string
	Time    time.Time
	// Event is the presence event name that produced the notification,
	// such as "idle" or "active:300".
	Event string
	Tags  []string
	// Priority follows the ntfy scale of 1 to 5; zero leaves the server default.
	Priority int
}

// Notifier sends notifications.
type Notifier interface {
	Send(notification Notification) error
}
