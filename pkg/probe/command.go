package probe

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// CommandProbe runs an external command that prints the idle time as a
// number, such as xprintidle which prints milliseconds.
type CommandProbe struct {
	name        string
	args        []string
	unit        time.Duration
	cmdExecutor cmdExecutor
	lookPath    func(string) (string, error)
}

// NewCommandProbe parses a shell-style command line. A zero unit means
// milliseconds.
func NewCommandProbe(command string, unit time.Duration) (*CommandProbe, error) {
	words, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse probe command %q: %w", command, err)
	}
	if len(words) == 0 {
		return nil, errors.New("probe command is empty")
	}
	if unit < 0 {
		return nil, fmt.Errorf("probe unit must be positive, got %v", unit)
	}
	if unit == 0 {
		unit = time.Millisecond
	}

	return &CommandProbe{
		name:        words[0],
		args:        words[1:],
		unit:        unit,
		cmdExecutor: defaultCmdExecutor,
		lookPath:    exec.LookPath,
	}, nil
}

// IdleTime implements interfaces.IdleProbe.
func (p *CommandProbe) IdleTime() (time.Duration, error) {
	output, err := p.cmdExecutor(p.name, p.args...)
	if err != nil {
		return 0, fmt.Errorf("command probe %s: %w", p.name, err)
	}

	text := strings.TrimSpace(string(output))
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("command probe %s: failed to parse output %q: %w", p.name, text, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("command probe %s: negative idle time %v", p.name, value)
	}

	return time.Duration(value * float64(p.unit)), nil
}

// Available reports whether the command is on PATH.
func (p *CommandProbe) Available() bool {
	_, err := p.lookPath(p.name)
	return err == nil
}

// String returns the command line as it would be typed.
func (p *CommandProbe) String() string {
	return shellquote.Join(append([]string{p.name}, p.args...)...)
}
