package notify

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks. Every typed error below matches exactly one.
var (
	ErrNetwork    = errors.New("network error")
	ErrAuth       = errors.New("not authorized")
	ErrValidation = errors.New("invalid request")
	ErrStream     = errors.New("stream disconnected")
	ErrParse      = errors.New("malformed payload")
	ErrNotFound   = errors.New("notification not found")
)

// NetworkError is a transient failure reaching the backend. Safe to retry.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: http %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: http %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": " + ErrNetwork.Error()
}

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }
func (e *NetworkError) Unwrap() error        { return e.Err }

// AuthError is terminal for the current session and is never retried.
type AuthError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = ErrAuth.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// ValidationError is a rejected payload. Err holds field level detail when the
// rejection happened locally.
type ValidationError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = ErrValidation.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *ValidationError) Unwrap() error        { return e.Err }

// StreamError is a transport level disconnect of the push stream.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	if e.Err == nil {
		return ErrStream.Error()
	}
	return fmt.Sprintf("%s: %v", ErrStream, e.Err)
}

func (e *StreamError) Is(target error) bool { return target == ErrStream }
func (e *StreamError) Unwrap() error        { return e.Err }

// ParseError is a push payload that could not be decoded into a Notification.
type ParseError struct {
	Payload string
	Err     error
}

const maxPayloadInError = 256

// NewParseError truncates the payload so a huge frame cannot flood the logs.
func NewParseError(payload []byte, err error) *ParseError {
	p := string(payload)
	if len(p) > maxPayloadInError {
		p = p[:maxPayloadInError] + "..."
	}
	return &ParseError{Payload: p, Err: err}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", ErrParse, e.Err)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }
func (e *ParseError) Unwrap() error        { return e.Err }

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrStream)
}
