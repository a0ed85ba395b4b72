// Package logutils builds the process logger.
package logutils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// New returns a logger writing JSON to file. If file is empty, logs go to
// stderr, using the human readable console format when stderr is a terminal.
//
// The level parameter can be one of: debug, info, warn, error, fatal.
func New(level string, file string) (zerolog.Logger, func(), error) {
	if file == "" {
		return NewWriter(level, os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return zerolog.Logger{}, func() {}, fmt.Errorf("create logs dir: %w", err)
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Logger{}, func() {}, err
	}

	l, _, err := NewWriter(level, f, false)
	if err != nil {
		_ = f.Close()
		return zerolog.Logger{}, func() {}, err
	}

	return l, func() { _ = f.Close() }, nil
}

// NewWriter returns a logger writing to w. The returned closer is a no-op;
// the caller owns w.
func NewWriter(level string, w io.Writer, console bool) (zerolog.Logger, func(), error) {
	closer := func() {}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, closer, err
	}

	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	l := zerolog.New(w).
		With().
		Timestamp().
		Logger().
		Level(lvl)

	return l, closer, nil
}
