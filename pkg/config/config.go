// Package config loads afkwatch configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/afkwatch/pkg/presence"
	"github.com/Veraticus/afkwatch/pkg/probe"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for afkwatch
type Config struct {
	// Watcher defaults
	Threshold        time.Duration `yaml:"threshold" env:"AFKWATCH_THRESHOLD"`
	PollInterval     time.Duration `yaml:"poll_interval" env:"AFKWATCH_POLL_INTERVAL"`
	IdlePollInterval time.Duration `yaml:"idle_poll_interval" env:"AFKWATCH_IDLE_POLL_INTERVAL"`

	// Probe selection
	Probe        string        `yaml:"probe" env:"AFKWATCH_PROBE"`
	ProbeCommand string        `yaml:"probe_command" env:"AFKWATCH_PROBE_COMMAND"`
	ProbeUnit    time.Duration `yaml:"probe_unit"`
	TmuxSession  string        `yaml:"tmux_session"`

	Watchers []WatcherConfig `yaml:"watchers"`

	// Notification settings
	NtfyTopic  string `yaml:"ntfy_topic" env:"AFKWATCH_NTFY_TOPIC"`
	NtfyServer string `yaml:"ntfy_server" env:"AFKWATCH_NTFY_SERVER"`
	Quiet      bool   `yaml:"quiet" env:"AFKWATCH_QUIET"`

	// Rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	// BatchWindow groups notifications sent close together; zero disables.
	BatchWindow time.Duration `yaml:"batch_window" env:"AFKWATCH_BATCH_WINDOW"`

	LogLevel string `yaml:"log_level" env:"AFKWATCH_LOG_LEVEL"`

	path string
}

// WatcherConfig describes one watcher and the events it subscribes to.
type WatcherConfig struct {
	Name string `yaml:"name"`
	// Threshold falls back to Config.Threshold when zero.
	Threshold time.Duration `yaml:"threshold"`
	// Events are event names such as "idle", "active" or "idle:300".
	Events []string `yaml:"events"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Window      time.Duration `yaml:"window"`
	MaxMessages int           `yaml:"max_messages"`
}

// DefaultConfig returns the default configuration, ready to use without
// Load.
func DefaultConfig() *Config {
	cfg := baseConfig()
	applyDefaults(cfg)
	return cfg
}

// baseConfig is DefaultConfig with watcher thresholds left unset, so Load
// can resolve them after the file and environment are read.
func baseConfig() *Config {
	return &Config{
		Threshold:    2 * time.Minute,
		PollInterval: presence.DefaultPollInterval,
		Probe:        string(probe.KindAuto),
		ProbeCommand: probe.DefaultCommand,
		ProbeUnit:    time.Millisecond,
		Watchers: []WatcherConfig{
			{Name: "default"},
		},
		NtfyServer: "https://ntfy.sh",
		RateLimit: RateLimitConfig{
			Window:      1 * time.Minute,
			MaxMessages: 5,
		},
		LogLevel: "info",
	}
}

// Load loads configuration from a file and the environment. An empty path
// resolves the default location, where a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := baseConfig()

	explicit := path != ""
	if !explicit {
		path = getConfigPath()
	}
	cfg.path = path

	if path != "" {
		err := loadFromFile(cfg, path)
		if err != nil && (explicit || !errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Path returns the config file path that Load resolved, whether or not the
// file exists.
func (c *Config) Path() string {
	return c.path
}

// Level returns the parsed log level.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// ProbeConfig returns the probe factory settings.
func (c *Config) ProbeConfig() probe.Config {
	return probe.Config{
		Kind:    probe.Kind(strings.ToLower(c.Probe)),
		Command: c.ProbeCommand,
		Unit:    c.ProbeUnit,
		Session: c.TmuxSession,
	}
}

// getConfigPath returns the config file path
func getConfigPath() string {
	// Check for explicit config path
	if path := os.Getenv("AFKWATCH_CONFIG"); path != "" {
		return path
	}

	// Check XDG config directory
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "afkwatch", "config.yaml")
	}

	// Fall back to home directory
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "afkwatch", "config.yaml")
	}

	return ""
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, path string) error {
	// #nosec G304 - The config file path comes from trusted sources (flag, env var or standard locations)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(cfg *Config) error {
	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"AFKWATCH_THRESHOLD", &cfg.Threshold},
		{"AFKWATCH_POLL_INTERVAL", &cfg.PollInterval},
		{"AFKWATCH_IDLE_POLL_INTERVAL", &cfg.IdlePollInterval},
		{"AFKWATCH_BATCH_WINDOW", &cfg.BatchWindow},
	}
	for _, d := range durations {
		value := os.Getenv(d.key)
		if value == "" {
			continue
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.target = parsed
	}

	strs := []struct {
		key    string
		target *string
	}{
		{"AFKWATCH_PROBE", &cfg.Probe},
		{"AFKWATCH_PROBE_COMMAND", &cfg.ProbeCommand},
		{"AFKWATCH_NTFY_TOPIC", &cfg.NtfyTopic},
		{"AFKWATCH_NTFY_SERVER", &cfg.NtfyServer},
		{"AFKWATCH_LOG_LEVEL", &cfg.LogLevel},
	}
	for _, s := range strs {
		if value := os.Getenv(s.key); value != "" {
			*s.target = value
		}
	}

	if quiet := os.Getenv("AFKWATCH_QUIET"); quiet != "" {
		switch quiet {
		case "true", "1", "yes":
			cfg.Quiet = true
		case "false", "0", "no":
			cfg.Quiet = false
		default:
			return fmt.Errorf("invalid AFKWATCH_QUIET value: %q (use true/false)", quiet)
		}
	}

	return nil
}

// applyDefaults fills watcher thresholds left unset in the file.
func applyDefaults(cfg *Config) {
	for i := range cfg.Watchers {
		if cfg.Watchers[i].Threshold == 0 {
			cfg.Watchers[i].Threshold = cfg.Threshold
		}
	}
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive")
	}

	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	if cfg.IdlePollInterval < 0 {
		return fmt.Errorf("idle_poll_interval must be non-negative")
	}

	if _, err := probe.ParseKind(cfg.Probe); err != nil {
		return fmt.Errorf("probe: %w", err)
	}

	if cfg.ProbeUnit < 0 {
		return fmt.Errorf("probe_unit must be non-negative")
	}

	if len(cfg.Watchers) == 0 {
		return fmt.Errorf("at least one watcher is required")
	}

	seen := make(map[string]bool, len(cfg.Watchers))
	for i, w := range cfg.Watchers {
		if w.Name == "" {
			return fmt.Errorf("watchers[%d]: name is required", i)
		}
		if seen[w.Name] {
			return fmt.Errorf("watchers[%d]: duplicate name %q", i, w.Name)
		}
		seen[w.Name] = true

		if w.Threshold <= 0 {
			return fmt.Errorf("watcher %q: threshold must be positive", w.Name)
		}
		for _, event := range w.Events {
			if _, err := presence.ParseEventName(event); err != nil {
				return fmt.Errorf("watcher %q: %w", w.Name, err)
			}
		}
	}

	if cfg.RateLimit.MaxMessages < 0 {
		return fmt.Errorf("rate_limit.max_messages must be non-negative")
	}

	if cfg.RateLimit.Window < 0 {
		return fmt.Errorf("rate_limit.window must be non-negative")
	}

	if cfg.BatchWindow < 0 {
		return fmt.Errorf("batch_window must be non-negative")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	return nil
}
