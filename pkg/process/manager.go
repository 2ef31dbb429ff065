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

	"github.com/Veraticus/afkwatch/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// wrappedEnv marks a child started by afkwatch exec.
const wrappedEnv = "AFKWATCH_WRAPPED"

// Manager manages the wrapped child process
type Manager struct {
	ptyManager PTY
	activity   interfaces.ActivityMarker
	onOutput   func()
	logger     logrus.FieldLogger
	stdin      io.Reader
	stdout     io.Writer

	exitCode int
	mu       sync.Mutex
	sigChan  chan os.Signal
	done     chan struct{}
}

// NewManager creates a new process manager. Keystrokes mark activity on
// activity; onOutput, when set, runs after each chunk of child output.
func NewManager(activity interfaces.ActivityMarker, onOutput func(), logger logrus.FieldLogger) *Manager {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Manager{
		ptyManager: NewPTYManager(logger),
		activity:   activity,
		onOutput:   onOutput,
		logger:     logger,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		done:       make(chan struct{}),
	}
}

// Start starts the child process
func (m *Manager) Start(command string, args []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if os.Getenv(wrappedEnv) == "1" {
		return fmt.Errorf("already wrapped by afkwatch exec")
	}

	env := append(os.Environ(), wrappedEnv+"=1")

	if err := m.ptyManager.Start(command, args, env); err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	var onInput func([]byte)
	if m.activity != nil {
		onInput = func([]byte) { m.activity.MarkActivity() }
	}
	var onOutput func([]byte)
	if m.onOutput != nil {
		onOutput = func([]byte) { m.onOutput() }
	}

	go func() {
		if err := m.ptyManager.CopyIO(m.stdin, m.stdout, onInput, onOutput); err != nil {
			m.logger.WithError(err).Warn("I/O error")
		}
	}()

	m.setupSignalForwarding()

	return nil
}

// Wait waits for the process to exit. A non-zero exit is not an error; read
// it from ExitCode.
func (m *Manager) Wait() error {
	if m.ptyManager == nil {
		return fmt.Errorf("process not started")
	}

	err := m.ptyManager.Wait()

	m.mu.Lock()
	if state := m.ptyManager.ProcessState(); state != nil {
		m.exitCode = state.ExitCode()
	}
	m.mu.Unlock()

	// Ensure terminal is restored
	_ = m.ptyManager.Stop()

	close(m.done)
	m.cleanupSignals()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// ExitCode returns the exit code of the process
func (m *Manager) ExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitCode
}

// setupSignalForwarding sets up signal forwarding to the child process
func (m *Manager) setupSignalForwarding() {
	m.sigChan = make(chan os.Signal, 1)
	signal.Notify(m.sigChan,
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGHUP,
		syscall.SIGQUIT,
		syscall.SIGUSR1,
		syscall.SIGUSR2,
	)

	go m.forwardSignals(m.sigChan)
}

// forwardSignals forwards signals to the child process
func (m *Manager) forwardSignals(sigChan <-chan os.Signal) {
	for {
		select {
		case sig, ok := <-sigChan:
			if !ok {
				return
			}
			if proc := m.ptyManager.Process(); proc != nil {
				if err := proc.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
					m.logger.WithError(err).WithField("signal", sig).Warn("signal forward error")
				}
			}
		case <-m.done:
			return
		}
	}
}

// cleanupSignals stops signal forwarding
func (m *Manager) cleanupSignals() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sigChan != nil {
		signal.Stop(m.sigChan)
		m.sigChan = nil
	}
}

// Stop terminates the child and restores the terminal
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ptyManager == nil {
		return nil
	}

	_ = m.ptyManager.Stop()

	if proc := m.ptyManager.Process(); proc != nil {
		// SIGTERM first, then force kill
		if err := proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return proc.Kill()
		}
	}

	return nil
}
