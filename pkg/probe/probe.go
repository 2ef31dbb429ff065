// Package probe provides idle probes that report how long the user has been
// away from the keyboard.
package probe

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Veraticus/afkwatch/pkg/interfaces"
)

// Kind names a probe implementation.
type Kind string

// Supported probe kinds.
const (
	KindAuto     Kind = "auto"
	KindTmux     Kind = "tmux"
	KindIoreg    Kind = "ioreg"
	KindCommand  Kind = "command"
	KindActivity Kind = "activity"
)

// DefaultCommand is the command used by the command probe when none is configured.
const DefaultCommand = "xprintidle"

// ErrUnknownKind is returned by New for an unrecognised probe kind.
var ErrUnknownKind = errors.New("unknown probe kind")

// ErrUnsupported is returned when a probe cannot run on this platform.
var ErrUnsupported = errors.New("probe not supported on this platform")

// Kinds lists every probe kind accepted by New.
func Kinds() []Kind {
	return []Kind{KindAuto, KindTmux, KindIoreg, KindCommand, KindActivity}
}

// ParseKind validates a probe kind label.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Config selects and configures a probe.
type Config struct {
	Kind Kind
	// Command is the command line run by the command probe.
	Command string
	// Unit is the unit the command prints its idle time in.
	Unit time.Duration
	// Session pins the tmux probe to a session; empty means the current one.
	Session string
}

// Func adapts a plain function to the IdleProbe interface.
type Func func() (time.Duration, error)

// IdleTime calls f.
func (f Func) IdleTime() (time.Duration, error) {
	return f()
}

// cmdExecutor runs a command and returns its standard output.
type cmdExecutor func(name string, args ...string) ([]byte, error)

func defaultCmdExecutor(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

// New creates the probe described by cfg.
func New(cfg Config) (interfaces.IdleProbe, error) {
	switch cfg.Kind {
	case "", KindAuto:
		return newPlatformProbe(cfg)
	case KindTmux:
		return NewTmuxProbe(cfg.Session), nil
	case KindIoreg:
		return newIoregProbe()
	case KindCommand:
		command := cfg.Command
		if command == "" {
			command = DefaultCommand
		}
		cmd, err := NewCommandProbe(command, cfg.Unit)
		if err != nil {
			return nil, err
		}
		return cmd, nil
	case KindActivity:
		return NewActivityProbe(nil), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// FallbackProbe asks each probe in order and returns the first answer.
type FallbackProbe struct {
	probes []interfaces.IdleProbe
}

// NewFallbackProbe creates a probe that falls through probes on error.
func NewFallbackProbe(probes ...interfaces.IdleProbe) *FallbackProbe {
	return &FallbackProbe{probes: probes}
}

// IdleTime returns the idle time of the first probe that succeeds.
func (p *FallbackProbe) IdleTime() (time.Duration, error) {
	if len(p.probes) == 0 {
		return 0, errors.New("fallback probe: no probes configured")
	}

	var errs []error
	for _, candidate := range p.probes {
		idle, err := candidate.IdleTime()
		if err == nil {
			return idle, nil
		}
		errs = append(errs, err)
	}
	return 0, errors.Join(errs...)
}

// MarkActivity forwards activity to every probe that records it.
func (p *FallbackProbe) MarkActivity() {
	for _, candidate := range p.probes {
		if m, ok := candidate.(interfaces.ActivityMarker); ok {
			m.MarkActivity()
		}
	}
}
