// Package config loads the nudge daemon configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the daemon configuration.
type Config struct {
	// ListenAddr is the HTTP API listen address.
	ListenAddr string `yaml:"listen_addr"`
	// DBPath is the SQLite database location.
	DBPath string `yaml:"db_path"`
	// Notifier selects the notification backend: desktop or log.
	Notifier string `yaml:"notifier"`
	// NotifierBin overrides the desktop notification binary.
	NotifierBin string `yaml:"notifier_bin,omitempty"`
	// SnoozeHours is the default snooze duration for notification actions.
	SnoozeHours int `yaml:"snooze_hours"`
	// AllowPastTriggers bypasses the past-trigger filter when scheduling
	// reminders. Diagnostics only; leave off in normal use.
	AllowPastTriggers bool `yaml:"allow_past_triggers,omitempty"`
	// OverdueAlerts fires an immediate alert for overdue tasks at startup.
	OverdueAlerts bool `yaml:"overdue_alerts"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		ListenAddr:    "127.0.0.1:7534",
		DBPath:        filepath.Join(home, ".nudge", "nudge.db"),
		Notifier:      "desktop",
		SnoozeHours:   24,
		OverdueAlerts: true,
	}
}

// LoadConfig loads configuration from a YAML file. A missing file yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadConfigFromHome loads configuration from ~/.nudge/config.yaml.
func LoadConfigFromHome() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(filepath.Join(home, ".nudge", "config.yaml"))
}

// SaveConfig saves configuration to a YAML file, creating parent
// directories if needed.
func SaveConfig(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.SnoozeHours < 1 {
		return fmt.Errorf("snooze_hours must be at least 1")
	}
	switch c.Notifier {
	case "desktop", "log":
	default:
		return fmt.Errorf("invalid notifier %q, must be: desktop or log", c.Notifier)
	}
	return nil
}
