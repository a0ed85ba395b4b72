// Package executil runs external commands behind an interface so callers can
// be tested without spawning processes.
package executil

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const maxStderrLen = 500

// limitedWriter caps writes to a bytes.Buffer at a maximum byte count.
// Bytes beyond the limit are silently discarded.
type limitedWriter struct {
	buf *bytes.Buffer
	n   int64
	max int64
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.n >= w.max {
		return len(p), nil
	}
	remaining := w.max - w.n
	origLen := len(p)
	if int64(origLen) > remaining {
		p = p[:remaining]
	}
	n, err := w.buf.Write(p)
	w.n += int64(n)
	if err != nil {
		return n, err
	}
	return origLen, nil
}

// Executor runs external commands.
type Executor interface {
	// Run executes a command and returns its stdout. On failure the error
	// carries the first 500 bytes of stderr.
	Run(ctx context.Context, cmd string, args ...string) ([]byte, error)
	// LookPath reports where cmd is installed.
	LookPath(cmd string) (string, error)
}

// RealExecutor calls actual commands.
type RealExecutor struct{}

var _ Executor = (*RealExecutor)(nil)

// Run executes a command and returns its stdout. The original *exec.ExitError
// is preserved via wrapping so callers can inspect exit codes with errors.As.
func (e *RealExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &limitedWriter{buf: &stderr, max: maxStderrLen}
	if err := c.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("exec %s: %s: %w", cmd, msg, err)
		}
		return stdout.Bytes(), fmt.Errorf("exec %s: %w", cmd, err)
	}
	return stdout.Bytes(), nil
}

func (e *RealExecutor) LookPath(cmd string) (string, error) {
	return exec.LookPath(cmd)
}
