//go:build linux

package probe

import (
	"fmt"
	"runtime"

	"github.com/Veraticus/afkwatch/pkg/interfaces"
)

func newIoregProbe() (interfaces.IdleProbe, error) {
	return nil, fmt.Errorf("ioreg probe on %s: %w", runtime.GOOS, ErrUnsupported)
}

// newPlatformProbe builds a chain of the probes usable here: tmux when running
// inside a session, then the command probe when it is on PATH, then activity.
func newPlatformProbe(cfg Config) (interfaces.IdleProbe, error) {
	var chain []interfaces.IdleProbe

	tmux := NewTmuxProbe(cfg.Session)
	if tmux.Available() {
		chain = append(chain, tmux)
	}

	command := cfg.Command
	if command == "" {
		command = DefaultCommand
	}
	cmd, err := NewCommandProbe(command, cfg.Unit)
	if err != nil {
		return nil, err
	}
	if cmd.Available() {
		chain = append(chain, cmd)
	}

	if len(chain) == 0 {
		return NewActivityProbe(nil), nil
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return NewFallbackProbe(chain...), nil
}
