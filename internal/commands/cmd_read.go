package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"
)

type ReadCmd struct {
	flags *Flags

	all bool
}

// NewReadCmd creates a new read command
func NewReadCmd(flags *Flags) *ReadCmd {
	return &ReadCmd{flags: flags}
}

// Register adds the read command to the application
func (cmd *ReadCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "read",
		Usage:     "Mark notifications as read",
		UsageText: "inbox read <id>... | inbox read --all",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "all",
				Aliases:     []string{"a"},
				Usage:       "mark every notification as read",
				Destination: &cmd.all,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ReadCmd) run(ctx context.Context, c *cli.Command) error {
	ids := c.Args().Slice()
	if cmd.all == (len(ids) > 0) {
		return fmt.Errorf("pass notification ids or --all")
	}

	store, err := cmd.flags.loadStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	out := c.Root().Writer
	if cmd.all {
		before := store.UnreadCount()
		if err := store.MarkAllAsRead(ctx); err != nil {
			return fmt.Errorf("mark all read: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Marked %d notification(s) as read\n", before)
		return nil
	}

	var errs []error
	for _, id := range ids {
		if err := store.MarkAsRead(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		_, _ = fmt.Fprintf(out, "Marked %s as read\n", id)
	}
	return errors.Join(errs...)
}
