package probe

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNotInTmux is returned by the tmux probe outside a tmux session.
var ErrNotInTmux = errors.New("not in a tmux session")

// TmuxProbe reports the smallest client idle time of a tmux session.
type TmuxProbe struct {
	sessionName string
	cmdExecutor cmdExecutor
	getenv      func(string) string
	now         func() time.Time
}

// NewTmuxProbe creates a tmux probe.
// If sessionName is empty, the current session is used.
func NewTmuxProbe(sessionName string) *TmuxProbe {
	return &TmuxProbe{
		sessionName: sessionName,
		cmdExecutor: defaultCmdExecutor,
		getenv:      os.Getenv,
		now:         time.Now,
	}
}

// IdleTime implements interfaces.IdleProbe.
func (p *TmuxProbe) IdleTime() (time.Duration, error) {
	if !p.inTmux() {
		return 0, fmt.Errorf("tmux probe: %w", ErrNotInTmux)
	}

	sessionName := p.sessionName
	if sessionName == "" {
		name, err := p.currentSessionName()
		if err != nil {
			return 0, fmt.Errorf("tmux probe: failed to get current session name: %w", err)
		}
		sessionName = name
	}

	idle, err := p.sessionIdleTime(sessionName)
	if err != nil {
		return 0, fmt.Errorf("tmux probe: failed to get idle time of session %s: %w", sessionName, err)
	}
	return idle, nil
}

// Available reports whether we are inside tmux and the tmux binary runs.
func (p *TmuxProbe) Available() bool {
	if !p.inTmux() {
		return false
	}
	_, err := p.cmdExecutor("tmux", "-V")
	return err == nil
}

func (p *TmuxProbe) inTmux() bool {
	return p.getenv("TMUX") != ""
}

func (p *TmuxProbe) currentSessionName() (string, error) {
	output, err := p.cmdExecutor("tmux", "display-message", "-p", "#{session_name}")
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(string(output))
	if name == "" {
		return "", errors.New("empty session name")
	}
	return name, nil
}

// sessionIdleTime returns the idle time of the most recently active client.
func (p *TmuxProbe) sessionIdleTime(sessionName string) (time.Duration, error) {
	output, err := p.cmdExecutor("tmux", "list-clients", "-t", sessionName, "-F", "#{client_activity}")
	if err != nil {
		return 0, err
	}

	var latest time.Time
	for _, line := range bytes.Split(bytes.TrimSpace(output), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		// client_activity is seconds since epoch
		secs, err := strconv.ParseInt(string(bytes.TrimSpace(line)), 10, 64)
		if err != nil {
			continue
		}
		if at := time.Unix(secs, 0); at.After(latest) {
			latest = at
		}
	}

	if latest.IsZero() {
		return 0, fmt.Errorf("no client activity for session %s", sessionName)
	}

	idle := p.now().Sub(latest)
	if idle < 0 {
		// clock skew
		idle = 0
	}
	return idle, nil
}
