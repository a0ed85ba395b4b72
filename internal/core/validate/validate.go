// Package validate provides shared field validators for notification payloads
// and configuration values.
package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hay-kot/criterio"
)

// MaxTitleLen and MaxMessageLen bound user supplied notification text.
const (
	MaxTitleLen   = 200
	MaxMessageLen = 5000
)

// Required rejects values that are empty after trimming whitespace.
func Required(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("is required")
	}
	return nil
}

// MaxLen returns a validator limiting a string to n runes.
func MaxLen(n int) func(string) error {
	return func(value string) error {
		if utf8.RuneCountInString(value) > n {
			return fmt.Errorf("must be at most %d characters", n)
		}
		return nil
	}
}

// OneOf returns a validator accepting only the listed values. The empty string
// is accepted so optional fields can fall back to a default.
func OneOf[T ~string](allowed ...T) func(T) error {
	return func(value T) error {
		if value == "" {
			return nil
		}
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		names := make([]string, len(allowed))
		for i, a := range allowed {
			names[i] = string(a)
		}
		return fmt.Errorf("must be one of %s", strings.Join(names, ", "))
	}
}

// All chains validators, stopping at the first failure.
func All[T any](checks ...func(T) error) func(T) error {
	return func(value T) error {
		for _, check := range checks {
			if err := check(value); err != nil {
				return err
			}
		}
		return nil
	}
}

// Title validates a notification title.
func Title(field, title string) error {
	return criterio.Run(field, title, All(Required, MaxLen(MaxTitleLen)))
}

// Message validates a notification body.
func Message(field, message string) error {
	return criterio.Run(field, message, All(Required, MaxLen(MaxMessageLen)))
}

// UserID validates a recipient identifier.
func UserID(field, id string) error {
	return criterio.Run(field, id, Required)
}
