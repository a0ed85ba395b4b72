package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/inbox/internal/core/config"
	"github.com/colonyops/inbox/internal/core/notify"
	"github.com/colonyops/inbox/internal/core/styles"
	"github.com/colonyops/inbox/internal/data/stream"
	"github.com/colonyops/inbox/internal/inbox"
	"github.com/colonyops/inbox/internal/integration/desktop"
	"github.com/colonyops/inbox/pkg/executil"
)

type WatchCmd struct {
	flags *Flags
	exec  executil.Executor
	goos  string

	jsonOutput bool
	noDelivery bool
}

// NewWatchCmd creates a new watch command
func NewWatchCmd(flags *Flags) *WatchCmd {
	return &WatchCmd{flags: flags, exec: &executil.RealExecutor{}, goos: runtime.GOOS}
}

// Register adds the watch command to the application
func (cmd *WatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "watch",
		Usage:     "Follow the inbox in real time",
		UsageText: "inbox watch [--json] [--no-delivery]",
		Description: `Loads the inbox, then subscribes to the push stream and prints each new
unread notification as it arrives. Desktop notifications and sounds follow
the server-side preferences (see 'inbox prefs').

When the stream cannot be kept open the inbox is refreshed every
sync.poll_interval instead. Delivery settings in the config file are
reloaded when the file changes.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print arrivals as JSON lines",
				Destination: &cmd.jsonOutput,
			},
			&cli.BoolFlag{
				Name:        "no-delivery",
				Usage:       "do not raise desktop notifications or sounds",
				Destination: &cmd.noDelivery,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *WatchCmd) run(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := cmd.flags.Config
	client, err := cmd.flags.repository()
	if err != nil {
		return err
	}

	dialer, err := stream.New(cfg.Stream.Transport, cfg.Server.BaseURL, cfg.Server.Token)
	if err != nil {
		return err
	}

	out := &lockedWriter{w: c.Root().Writer}

	sub := inbox.NewSubscription(dialer, inbox.SubscriptionConfig{
		Policy: inbox.Policy{
			Base:        cfg.Stream.BaseDelay,
			Cap:         cfg.Stream.MaxDelay,
			MaxAttempts: cfg.Stream.MaxAttempts,
		},
		StableWindow: cfg.Stream.StableWindow,
	})

	store := inbox.NewStore(inbox.StoreConfig{
		Repository:         client,
		Subscription:       sub,
		UserID:             cfg.Server.UserID,
		PollInterval:       cfg.Sync.PollInterval,
		EventBuffer:        cfg.Stream.Buffer,
		Preferences:        cfg.Delivery.Defaults,
		OnConnectionChange: func(st notify.ConnectionState) { cmd.printState(out, st) },
	})
	defer func() { _ = store.Close() }()

	unsubscribe := store.Bus().Subscribe(func(n notify.Notification) { cmd.printArrival(out, n) })
	defer unsubscribe()

	if !cmd.noDelivery {
		notifier, sound := cmd.outputs(cfg)
		sink := inbox.NewDeliverySink(store.Preferences, notifier, sound, inbox.DefaultBufferLimit)
		detach := sink.Attach(store.Bus())
		defer detach()
		sink.Start(ctx)
		defer sink.Stop()

		if w := cmd.watchConfig(); w != nil {
			defer func() { _ = w.Close() }()
			go w.Run(ctx, func(next *config.Config) {
				sink.SetOutputs(cmd.outputs(next))
			})
		}
	}

	if err := store.Initialize(ctx); err != nil {
		return fmt.Errorf("load inbox: %w", err)
	}

	if !cmd.jsonOutput {
		_, _ = fmt.Fprintf(out, "%s %d unread\n", styles.HeaderStyle.Render("Inbox"), store.UnreadCount())
	}

	<-ctx.Done()
	return nil
}

// outputs builds the delivery side effects for cfg. Disabled outputs are
// returned as untyped nil so the sink skips them.
func (cmd *WatchCmd) outputs(cfg *config.Config) (inbox.Notifier, inbox.SoundPlayer) {
	var notifier inbox.Notifier
	if cfg.Delivery.DesktopEnabled() {
		notifier = desktop.NewNotifierFor(cmd.exec, cmd.goos)
	}

	command := cfg.Delivery.SoundCommand
	if command == "" {
		command = desktop.DefaultSoundCommand(cmd.goos)
	}
	return notifier, desktop.NewSound(cmd.exec, command, cfg.Delivery.SoundFile, os.Stderr)
}

func (cmd *WatchCmd) watchConfig() *config.Watcher {
	path := cmd.flags.ConfigPath
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	w, err := config.NewWatcher(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config reload disabled")
		return nil
	}
	return w
}

func (cmd *WatchCmd) printArrival(w io.Writer, n notify.Notification) {
	if cmd.jsonOutput {
		if err := json.NewEncoder(w).Encode(n); err != nil {
			log.Error().Err(err).Str("id", n.ID).Msg("encode arrival")
		}
		return
	}
	_, _ = fmt.Fprintln(w, renderLine(n))
}

func (cmd *WatchCmd) printState(w io.Writer, st notify.ConnectionState) {
	if cmd.jsonOutput {
		return
	}

	label := string(st.Status)
	switch st.Status {
	case notify.ConnOpen:
		label = styles.IconLive + " live"
	case notify.ConnReconnecting:
		label = fmt.Sprintf("reconnecting (attempt %d)", st.Attempt)
	case notify.ConnFailed:
		label = styles.IconPoll + " real-time updates unavailable, polling"
	case notify.ConnIdle, notify.ConnConnecting:
		return
	}
	_, _ = fmt.Fprintln(w, styles.ConnectionStyle(st.Status).Render(label))
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
