package commands

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/inbox/internal/core/notify"
	"github.com/colonyops/inbox/pkg/iojson"
)

type StatsCmd struct {
	flags *Flags

	window     time.Duration
	jsonOutput bool
}

// NewStatsCmd creates a new stats command
func NewStatsCmd(flags *Flags) *StatsCmd {
	return &StatsCmd{flags: flags}
}

// Register adds the stats command to the application
func (cmd *StatsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "stats",
		Usage:     "Show inbox statistics",
		UsageText: "inbox stats [--window 24h] [--json]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:        "window",
				Usage:       "how far back counts as recent",
				Value:       notify.DefaultRecentWindow,
				Destination: &cmd.window,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *StatsCmd) run(ctx context.Context, c *cli.Command) error {
	store, err := cmd.flags.loadStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats := store.Stats(cmd.window)
	if cmd.jsonOutput {
		return iojson.WriteWith(c.Root().Writer, stats)
	}
	return renderStats(c.Root().Writer, stats, cmd.window)
}
