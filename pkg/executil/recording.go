package executil

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// RecordedCommand captures a command that was executed.
type RecordedCommand struct {
	Cmd  string
	Args []string
}

// RecordingExecutor captures commands for testing.
// Configure Outputs, Errors and Missing to control return values.
type RecordingExecutor struct {
	mu       sync.Mutex
	commands []RecordedCommand

	// Outputs maps command names to their output.
	Outputs map[string][]byte

	// Errors maps command names to their error.
	Errors map[string]error

	// Missing lists commands LookPath reports as not installed.
	Missing []string
}

var _ Executor = (*RecordingExecutor)(nil)

// Run records the command and returns configured output/error.
func (e *RecordingExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.commands = append(e.commands, RecordedCommand{Cmd: cmd, Args: slices.Clone(args)})

	var out []byte
	var err error
	if e.Outputs != nil {
		out = e.Outputs[cmd]
	}
	if e.Errors != nil {
		err = e.Errors[cmd]
	}
	return out, err
}

// LookPath succeeds for every command not listed in Missing.
func (e *RecordingExecutor) LookPath(cmd string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if slices.Contains(e.Missing, cmd) {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", cmd)
	}
	return "/usr/bin/" + cmd, nil
}

// Commands returns a copy of the recorded commands.
func (e *RecordingExecutor) Commands() []RecordedCommand {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.commands)
}

// Reset clears recorded commands.
func (e *RecordingExecutor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = nil
}
