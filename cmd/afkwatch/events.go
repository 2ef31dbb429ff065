package main

import (
	"fmt"
	"time"

	"github.com/Veraticus/afkwatch/pkg/config"
	"github.com/Veraticus/afkwatch/pkg/notification"
	"github.com/Veraticus/afkwatch/pkg/presence"
)

// defaultEvents are subscribed when a watcher lists none.
var defaultEvents = []string{string(presence.StateIdle), string(presence.StateActive)}

func eventsFor(wc config.WatcherConfig) []string {
	if len(wc.Events) == 0 {
		return defaultEvents
	}
	return wc.Events
}

// notificationFor describes a presence event for a person reading it on
// their phone.
func notificationFor(watcher string, ev presence.Event) notification.Notification {
	n := notification.Notification{
		Time:  ev.At,
		Event: ev.Name,
	}
	idle := time.Duration(ev.Seconds * float64(time.Second)).Truncate(time.Second)

	switch ev.Status {
	case presence.StatusAway:
		n.Title = "Away"
		n.Message = fmt.Sprintf("%s: no input for %s", watcher, idle)
		n.Tags = []string{"zzz"}
		return n
	case presence.StatusBack:
		n.Title = "Back"
		n.Message = fmt.Sprintf("%s: activity resumed", watcher)
		n.Tags = []string{"wave"}
		return n
	}

	name, err := presence.ParseEventName(ev.Name)
	if err != nil {
		n.Title = ev.Name
		n.Message = fmt.Sprintf("%s: %s", watcher, ev.Name)
		return n
	}

	switch name.State {
	case presence.StateIdle:
		n.Title = "Still away"
		n.Message = fmt.Sprintf("%s: no input for %s", watcher, idle)
		n.Tags = []string{"hourglass"}
	default:
		n.Title = "Still active"
		n.Message = fmt.Sprintf("%s: active for %s, time for a break?", watcher, name.Duration)
		n.Tags = []string{"coffee"}
	}
	return n
}
