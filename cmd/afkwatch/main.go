package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Veraticus/afkwatch/pkg/config"
	"github.com/Veraticus/afkwatch/pkg/probe"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath string
	quiet      bool
	logLevel   string
	probe      string
}

// exitCodeError carries the wrapped child's exit status back to main.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}

	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.code)
	}
	fmt.Fprintf(os.Stderr, "afkwatch: %v\n", err)
	os.Exit(1)
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "afkwatch",
		Short:         "Notify when you step away from the keyboard and when you come back",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addGlobalFlags(root.PersistentFlags(), opts)

	root.AddCommand(
		newIdleCmd(opts),
		newWatchCmd(opts),
		newExecCmd(opts),
	)
	return root
}

func addGlobalFlags(fs *flag.FlagSet, opts *globalOptions) {
	fs.StringVar(&opts.configPath, "config", "", "Path to config file")
	fs.BoolVar(&opts.quiet, "quiet", false, "Disable ntfy delivery and print notifications instead")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	fs.StringVar(&opts.probe, "probe", "", fmt.Sprintf("Idle probe to use %v", probe.Kinds()))
}

// loadConfig loads configuration and applies command line overrides.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, opts); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, opts *globalOptions) error {
	if opts.quiet {
		cfg.Quiet = true
	}
	if opts.logLevel != "" {
		if _, err := logrus.ParseLevel(opts.logLevel); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		cfg.LogLevel = opts.logLevel
	}
	if opts.probe != "" {
		kind, err := probe.ParseKind(opts.probe)
		if err != nil {
			return fmt.Errorf("invalid --probe: %w", err)
		}
		cfg.Probe = string(kind)
	}
	return nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(cfg.Level())
	return logger
}

func newIdleCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "idle",
		Short: "Print the current idle time in seconds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			p, err := probe.New(cfg.ProbeConfig())
			if err != nil {
				return fmt.Errorf("failed to create idle probe: %w", err)
			}
			idle, err := p.IdleTime()
			if err != nil {
				return fmt.Errorf("failed to read idle time: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%.0f\n", idle.Round(time.Second).Seconds())
			return nil
		},
	}
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch idle time and notify on away and back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			deps, err := NewDependencies(cfg, DependencyOptions{Logger: logger})
			if err != nil {
				return fmt.Errorf("failed to create dependencies: %w", err)
			}
			defer deps.Close()

			if _, ok := deps.Probe.(*probe.ActivityProbe); ok {
				logger.Warn("no system idle source found; nothing marks activity outside afkwatch exec")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app := NewApplication(deps, opts)
			return app.Watch(ctx)
		},
	}
}

func newExecCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec -- command [args...]",
		Short: "Run a command under a PTY and treat its keystrokes as activity",
		Long: `Run a command under a PTY and treat its keystrokes as activity.

Idle time comes from keystrokes sent to the command, so the probe setting
and --probe do not apply here.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			warnIgnoredProbe(cfg, logger)

			activity := probe.NewActivityProbe(nil)
			deps, err := NewDependencies(cfg, DependencyOptions{
				Logger:    logger,
				Probe:     activity,
				StatusTTY: os.Stderr,
			})
			if err != nil {
				return fmt.Errorf("failed to create dependencies: %w", err)
			}
			defer deps.Close()

			app := NewApplication(deps, opts)

			// Ensure terminal restoration on panic
			defer func() {
				if r := recover(); r != nil {
					_ = app.Stop()
					panic(r)
				}
			}()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			code, err := app.Exec(ctx, activity, args[0], args[1:])
			if err != nil {
				return err
			}
			if code != 0 {
				return &exitCodeError{code: code}
			}
			return nil
		},
	}
	// Flags after the command belong to the child.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// warnIgnoredProbe reports a configured probe that exec will not use.
func warnIgnoredProbe(cfg *config.Config, logger logrus.FieldLogger) {
	kind := cfg.ProbeConfig().Kind
	if kind == "" || kind == probe.KindAuto || kind == probe.KindActivity {
		return
	}
	logger.WithField("probe", kind).Warn("exec measures idle time from keystrokes, ignoring configured probe")
}
