//go:build !linux && !darwin

package probe

import (
	"fmt"
	"runtime"

	"github.com/Veraticus/afkwatch/pkg/interfaces"
)

func newIoregProbe() (interfaces.IdleProbe, error) {
	return nil, fmt.Errorf("ioreg probe on %s: %w", runtime.GOOS, ErrUnsupported)
}

// newPlatformProbe falls back to activity tracking on unsupported platforms.
func newPlatformProbe(_ Config) (interfaces.IdleProbe, error) {
	return NewActivityProbe(nil), nil
}
