// Package desktop delivers notifications to the local desktop: a native
// notification popup and an audible cue. Both shell out through
// executil.Executor.
package desktop

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/colonyops/inbox/internal/core/notify"
	"github.com/colonyops/inbox/pkg/executil"
)

const appName = "inbox"

// Notifier shows desktop notifications with notify-send on Linux and
// osascript on macOS.
type Notifier struct {
	exec executil.Executor
	goos string
}

// NewNotifier returns a notifier for the running platform.
func NewNotifier(exec executil.Executor) *Notifier {
	return NewNotifierFor(exec, runtime.GOOS)
}

// NewNotifierFor returns a notifier for goos.
func NewNotifierFor(exec executil.Executor, goos string) *Notifier {
	return &Notifier{exec: exec, goos: goos}
}

func (n *Notifier) binary() string {
	switch n.goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return "notify-send"
	case "darwin":
		return "osascript"
	}
	return ""
}

// Permitted reports whether the platform notifier is installed.
func (n *Notifier) Permitted() bool {
	bin := n.binary()
	if bin == "" {
		return false
	}
	_, err := n.exec.LookPath(bin)
	return err == nil
}

// Notify shows one notification.
func (n *Notifier) Notify(ctx context.Context, item notify.Notification) error {
	switch bin := n.binary(); bin {
	case "notify-send":
		_, err := n.exec.Run(ctx, bin,
			"--app-name="+appName,
			"--urgency="+urgency(item.Priority),
			"--",
			item.Title,
			item.Message,
		)
		return err
	case "osascript":
		script := fmt.Sprintf("display notification %s with title %s subtitle %s",
			appleString(item.Message), appleString(appName), appleString(item.Title))
		_, err := n.exec.Run(ctx, bin, "-e", script)
		return err
	}
	return fmt.Errorf("desktop notifications are not supported on %s", n.goos)
}

func urgency(p notify.Priority) string {
	switch p {
	case notify.PriorityLow:
		return "low"
	case notify.PriorityHigh:
		return "critical"
	}
	return "normal"
}

// appleString quotes s as an AppleScript string literal.
func appleString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// Sound plays an audible cue. With no command configured it rings the
// terminal bell on Bell.
type Sound struct {
	exec    executil.Executor
	command []string
	file    string
	bell    io.Writer
}

// NewSound builds a sound cue. command is split on whitespace; file, when
// set, is appended as the last argument.
func NewSound(exec executil.Executor, command, file string, bell io.Writer) *Sound {
	return &Sound{
		exec:    exec,
		command: strings.Fields(command),
		file:    strings.TrimSpace(file),
		bell:    bell,
	}
}

// DefaultSoundCommand picks the stock player for goos.
func DefaultSoundCommand(goos string) string {
	switch goos {
	case "darwin":
		return "afplay"
	case "linux":
		return "paplay"
	}
	return ""
}

// Play emits the cue.
func (s *Sound) Play(ctx context.Context) error {
	if len(s.command) == 0 || (s.file == "" && len(s.command) == 1 && isStockPlayer(s.command[0])) {
		if s.bell == nil {
			return nil
		}
		_, err := io.WriteString(s.bell, "\a")
		return err
	}

	args := append([]string{}, s.command[1:]...)
	if s.file != "" {
		args = append(args, s.file)
	}
	_, err := s.exec.Run(ctx, s.command[0], args...)
	return err
}

// isStockPlayer reports players that need a file argument to make a sound.
func isStockPlayer(cmd string) bool {
	return cmd == "afplay" || cmd == "paplay"
}
