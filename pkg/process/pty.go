package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// PTYManager handles PTY-based process execution
type PTYManager struct {
	cmd         *exec.Cmd
	pty         *os.File
	mu          sync.Mutex
	stopChan    chan struct{}
	wg          sync.WaitGroup
	restoreFunc func()
	logger      logrus.FieldLogger
}

// Ensure PTYManager implements PTY
var _ PTY = (*PTYManager)(nil)

// NewPTYManager creates a new PTY manager. A nil logger discards output.
func NewPTYManager(logger logrus.FieldLogger) *PTYManager {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &PTYManager{
		stopChan: make(chan struct{}),
		logger:   logger,
	}
}

// Start starts a process with PTY
func (p *PTYManager) Start(command string, args []string, env []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return fmt.Errorf("process already started")
	}

	cmd := exec.Command(command, args...)
	cmd.Env = env

	f, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("failed to start PTY: %w", err)
	}
	p.cmd = cmd
	p.pty = f

	// Some environments have no terminal to copy from.
	if err := p.copyTerminalSize(); err != nil {
		p.logger.WithError(err).Debug("failed to copy terminal size")
	}

	p.wg.Add(1)
	go p.monitorTerminalSize()

	return nil
}

// GetPTY returns the PTY file descriptor
func (p *PTYManager) GetPTY() *os.File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pty
}

// Wait waits for the process to complete
func (p *PTYManager) Wait() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil {
		return fmt.Errorf("process not started")
	}

	err := cmd.Wait()

	close(p.stopChan)
	p.wg.Wait()

	p.mu.Lock()
	if p.pty != nil {
		_ = p.pty.Close()
	}
	p.mu.Unlock()

	return err
}

// ProcessState returns the process state
func (p *PTYManager) ProcessState() *os.ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return nil
	}
	return p.cmd.ProcessState
}

// Process returns the underlying process
func (p *PTYManager) Process() *os.Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return nil
	}
	return p.cmd.Process
}

// Stop restores the terminal state
func (p *PTYManager) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.restoreFunc != nil {
		p.restoreFunc()
		p.restoreFunc = nil
	}

	return nil
}

// copyTerminalSize copies the terminal size from stdin to the PTY
func (p *PTYManager) copyTerminalSize() error {
	size, err := pty.GetsizeFull(os.Stdin)
	if err != nil {
		return err
	}

	return pty.Setsize(p.pty, size)
}

// monitorTerminalSize monitors for terminal size changes
func (p *PTYManager) monitorTerminalSize() {
	defer p.wg.Done()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGWINCH)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-sigChan:
			p.mu.Lock()
			if p.pty != nil {
				if err := p.copyTerminalSize(); err != nil {
					p.logger.WithError(err).Debug("failed to resize PTY")
				}
			}
			p.mu.Unlock()
		case <-p.stopChan:
			return
		}
	}
}

// makeRaw puts stdin into raw mode when it is a terminal. Keystrokes then
// reach the child unbuffered.
func (p *PTYManager) makeRaw(stdin io.Reader) {
	file, ok := stdin.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return
	}

	state, err := term.MakeRaw(int(file.Fd()))
	if err != nil {
		p.logger.WithError(err).Debug("failed to set raw mode")
		return
	}

	p.mu.Lock()
	p.restoreFunc = func() { _ = term.Restore(int(file.Fd()), state) }
	p.mu.Unlock()
}

// CopyIO handles copying between PTY and standard streams
func (p *PTYManager) CopyIO(stdin io.Reader, stdout io.Writer, onInput, onOutput func([]byte)) error {
	p.mu.Lock()
	if p.pty == nil {
		p.mu.Unlock()
		return fmt.Errorf("PTY not initialized")
	}
	ptyFile := p.pty
	p.mu.Unlock()

	p.makeRaw(stdin)
	defer func() { _ = p.Stop() }()

	errChan := make(chan error, 2)

	// stdin is never closed by us, so only the output side is waited on.
	go func() {
		if _, err := io.Copy(ptyFile, &tapReader{reader: stdin, handler: onInput}); err != nil {
			errChan <- fmt.Errorf("stdin copy error: %w", err)
		}
	}()

	_, err := io.Copy(stdout, &tapReader{reader: ptyFile, handler: onOutput})
	if err != nil && !isPTYClosed(err) {
		return fmt.Errorf("stdout copy error: %w", err)
	}

	select {
	case err := <-errChan:
		if !isPTYClosed(err) {
			return err
		}
	default:
	}
	return nil
}

// isPTYClosed reports errors that only mean the child side went away.
func isPTYClosed(err error) bool {
	return errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.EOF)
}

// tapReader wraps a reader and calls a handler for each chunk of data
type tapReader struct {
	reader  io.Reader
	handler func([]byte)
}

func (r *tapReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 && r.handler != nil {
		r.handler(p[:n])
	}
	return n, err
}
