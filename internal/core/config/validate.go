package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/inbox/internal/core/styles"
	"github.com/colonyops/inbox/internal/core/validate"
)

// Validate checks that the configuration is structurally valid. All problems
// are reported together as criterio.FieldErrors.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("server.base_url", c.Server.BaseURL, httpURL),
		criterio.Run("server.timeout", c.Server.Timeout, positive),
		criterio.Run("stream.transport", c.Stream.Transport, validate.OneOf("sse", "websocket")),
		criterio.Run("stream.base_delay", c.Stream.BaseDelay, positive),
		criterio.Run("stream.max_delay", c.Stream.MaxDelay, atLeast(c.Stream.BaseDelay)),
		criterio.Run("stream.max_attempts", c.Stream.MaxAttempts, func(n int) error {
			if n < 1 {
				return fmt.Errorf("must be at least 1")
			}
			return nil
		}),
		criterio.Run("stream.stable_window", c.Stream.StableWindow, nonNegative),
		criterio.Run("stream.buffer", c.Stream.Buffer, func(n int) error {
			if n < 1 {
				return fmt.Errorf("must be at least 1")
			}
			return nil
		}),
		criterio.Run("theme", c.Theme, validate.OneOf(styles.ThemeNames()...)),
		criterio.Run("sync.poll_interval", c.Sync.PollInterval, func(d time.Duration) error {
			if d != 0 && d < time.Second {
				return fmt.Errorf("must be 0 (disabled) or at least 1s")
			}
			return nil
		}),
	)
}

// RequireSession checks the settings needed to talk to the backend.
func (c *Config) RequireSession() error {
	err := criterio.ValidateStruct(
		criterio.Run("server.token", c.Server.Token, validate.Required),
	)
	if err != nil {
		return fmt.Errorf("%w (set it in the config file or %s)", err, EnvToken)
	}
	return nil
}

func httpURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

func positive(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func nonNegative(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func atLeast(min time.Duration) func(time.Duration) error {
	return func(d time.Duration) error {
		if d < min {
			return fmt.Errorf("must be at least %s", min)
		}
		return nil
	}
}
