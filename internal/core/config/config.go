// Package config handles configuration loading and validation for inbox.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colonyops/inbox/internal/core/notify"
	"github.com/colonyops/inbox/internal/core/styles"
)

// Environment variables that override the config file.
const (
	EnvToken   = "INBOX_TOKEN"
	EnvBaseURL = "INBOX_BASE_URL"
)

// Config holds the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Stream   StreamConfig   `yaml:"stream"`
	Sync     SyncConfig     `yaml:"sync"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Theme    string         `yaml:"theme"`
}

// ServerConfig locates the backend and the session used against it.
type ServerConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	UserID  string        `yaml:"user_id"`
	Timeout time.Duration `yaml:"timeout"`
}

// StreamConfig tunes the push stream and its reconnect policy.
type StreamConfig struct {
	Transport    string        `yaml:"transport"` // sse or websocket
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	MaxAttempts  int           `yaml:"max_attempts"`
	StableWindow time.Duration `yaml:"stable_window"`
	Buffer       int           `yaml:"buffer"`
}

// SyncConfig controls the polling fallback.
type SyncConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"` // 0 disables polling
}

// DeliveryConfig controls local side effects for new notifications.
type DeliveryConfig struct {
	// Desktop enables native notifications. nil means enabled.
	Desktop      *bool  `yaml:"desktop"`
	SoundCommand string `yaml:"sound_command"`
	SoundFile    string `yaml:"sound_file"`
	// Defaults apply until the server's preferences are loaded.
	Defaults notify.Preferences `yaml:"defaults"`
}

// DesktopEnabled reports whether native notifications are enabled.
func (d DeliveryConfig) DesktopEnabled() bool {
	return d.Desktop == nil || *d.Desktop
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			BaseURL: "http://127.0.0.1:8080",
			Timeout: 15 * time.Second,
		},
		Stream: StreamConfig{
			Transport:    "sse",
			BaseDelay:    time.Second,
			MaxDelay:     30 * time.Second,
			MaxAttempts:  5,
			StableWindow: 5 * time.Second,
			Buffer:       64,
		},
		Sync: SyncConfig{
			PollInterval: time.Minute,
		},
		Theme: styles.DefaultTheme,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/inbox/config.yaml, falling back to
// ~/.config/inbox/config.yaml.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "inbox", "config.yaml")
}

// Load reads configuration from the given path. If configPath is empty or
// doesn't exist, defaults are used. Environment overrides are applied last.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvToken)); v != "" {
		c.Server.Token = v
	}
	if v := strings.TrimSpace(getenv(EnvBaseURL)); v != "" {
		c.Server.BaseURL = v
	}
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaults.Server.BaseURL
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = defaults.Server.Timeout
	}
	c.Stream.Transport = strings.ToLower(strings.TrimSpace(c.Stream.Transport))
	if c.Stream.Transport == "" {
		c.Stream.Transport = defaults.Stream.Transport
	}
	if c.Stream.BaseDelay == 0 {
		c.Stream.BaseDelay = defaults.Stream.BaseDelay
	}
	if c.Stream.MaxDelay == 0 {
		c.Stream.MaxDelay = defaults.Stream.MaxDelay
	}
	if c.Stream.MaxAttempts == 0 {
		c.Stream.MaxAttempts = defaults.Stream.MaxAttempts
	}
	if c.Stream.StableWindow == 0 {
		c.Stream.StableWindow = defaults.Stream.StableWindow
	}
	if c.Stream.Buffer == 0 {
		c.Stream.Buffer = defaults.Stream.Buffer
	}
	if c.Theme == "" {
		c.Theme = defaults.Theme
	}
}
