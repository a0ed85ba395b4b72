package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/inbox/internal/core/notify"
)

type RmCmd struct {
	flags *Flags

	read bool
}

// NewRmCmd creates a new rm command
func NewRmCmd(flags *Flags) *RmCmd {
	return &RmCmd{flags: flags}
}

// Register adds the rm command to the application
func (cmd *RmCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "rm",
		Usage:     "Delete notifications",
		UsageText: "inbox rm <id>... | inbox rm --read",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "read",
				Usage:       "delete every read notification",
				Destination: &cmd.read,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *RmCmd) run(ctx context.Context, c *cli.Command) error {
	ids := c.Args().Slice()
	if cmd.read == (len(ids) > 0) {
		return fmt.Errorf("pass notification ids or --read")
	}

	store, err := cmd.flags.loadStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	out := c.Root().Writer
	if cmd.read {
		count := len(store.Filtered(notify.Filters{Status: notify.StatusRead}))
		if err := store.DeleteAllRead(ctx); err != nil {
			return fmt.Errorf("delete read: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Deleted %d read notification(s)\n", count)
		return nil
	}

	var errs []error
	for _, id := range ids {
		if err := store.Delete(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		_, _ = fmt.Fprintf(out, "Deleted %s\n", id)
	}
	return errors.Join(errs...)
}
