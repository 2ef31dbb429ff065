// Package process runs a child command under a pseudo-terminal and reports
// the user's keystrokes as activity.
package process

import (
	"io"
	"os"
)

// PTY defines the interface for PTY operations
type PTY interface {
	Start(command string, args []string, env []string) error
	Wait() error
	ProcessState() *os.ProcessState
	Process() *os.Process
	GetPTY() *os.File
	// CopyIO pumps stdin to the child and the child's output to stdout.
	// onInput sees every chunk typed by the user, onOutput every chunk the
	// child writes. Either may be nil.
	CopyIO(stdin io.Reader, stdout io.Writer, onInput, onOutput func([]byte)) error
	Stop() error
}
