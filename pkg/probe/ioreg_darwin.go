//go:build darwin

package probe

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/afkwatch/pkg/interfaces"
)

// DarwinProbe reads the HID idle time reported by ioreg.
type DarwinProbe struct {
	cmdExecutor cmdExecutor
}

// NewDarwinProbe creates an ioreg-backed probe.
func NewDarwinProbe() *DarwinProbe {
	return &DarwinProbe{cmdExecutor: defaultCmdExecutor}
}

// IdleTime implements interfaces.IdleProbe.
func (p *DarwinProbe) IdleTime() (time.Duration, error) {
	output, err := p.cmdExecutor("ioreg", "-c", "IOHIDSystem", "-d", "4")
	if err != nil {
		return 0, fmt.Errorf("ioreg probe: failed to execute ioreg: %w", err)
	}

	nanos, err := parseHIDIdleTime(output)
	if err != nil {
		return 0, fmt.Errorf("ioreg probe: %w", err)
	}
	return time.Duration(nanos), nil
}

// parseHIDIdleTime extracts the HIDIdleTime value in nanoseconds.
func parseHIDIdleTime(output []byte) (int64, error) {
	for _, line := range bytes.Split(output, []byte("\n")) {
		text := string(bytes.TrimSpace(line))
		if !strings.Contains(text, "HIDIdleTime") {
			continue
		}

		// "HIDIdleTime" = 123456789
		_, value, ok := strings.Cut(text, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(strings.Trim(strings.TrimSpace(value), `"`))

		nanos, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse HIDIdleTime %q: %w", value, err)
		}
		return nanos, nil
	}

	return 0, errors.New("HIDIdleTime not found in ioreg output")
}

func newIoregProbe() (interfaces.IdleProbe, error) {
	return NewDarwinProbe(), nil
}

// newPlatformProbe prefers ioreg on macOS.
func newPlatformProbe(_ Config) (interfaces.IdleProbe, error) {
	return NewDarwinProbe(), nil
}
