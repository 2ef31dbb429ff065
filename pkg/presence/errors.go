package presence

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by ConfigError. Match them with errors.Is.
var (
	ErrInvalidThreshold = errors.New("must be positive")
	ErrInvalidInterval  = errors.New("must be positive")
	ErrInvalidEventName = errors.New("expected <state> or <state>:<seconds>")
	ErrInvalidState     = errors.New("unknown state")
	ErrMissingProbe     = errors.New("idle probe is required")
	ErrMissingListener  = errors.New("listener is required")
)

// ConfigError reports misuse at construction or subscription time.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ProbeError wraps a failure of the idle probe. It is delivered through the
// watcher callback and never stops polling.
type ProbeError struct {
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("idle probe failed: %v", e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// IsProbeError reports whether err is or wraps a ProbeError.
func IsProbeError(err error) bool {
	var pe *ProbeError
	return errors.As(err, &pe)
}
