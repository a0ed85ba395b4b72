package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/inbox/internal/core/notify"
	"github.com/colonyops/inbox/pkg/iojson"
)

type LsCmd struct {
	flags *Flags

	// flags
	typ        string
	status     string
	priority   string
	search     string
	jsonOutput bool
}

// NewLsCmd creates a new ls command
func NewLsCmd(flags *Flags) *LsCmd {
	return &LsCmd{flags: flags}
}

// Register adds the ls command to the application
func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "ls",
		Usage:     "List notifications",
		UsageText: "inbox ls [--type T] [--status S] [--priority P] [--search Q] [--json]",
		Description: `Lists the first page of the inbox, newest first.

Filters are applied locally and combine with AND. --search matches the title
or message, ignoring case.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "type",
				Aliases:     []string{"t"},
				Usage:       "filter by type (info, success, warning, error)",
				Destination: &cmd.typ,
			},
			&cli.StringFlag{
				Name:        "status",
				Aliases:     []string{"s"},
				Usage:       "filter by read state (all, read, unread)",
				Value:       string(notify.StatusAll),
				Destination: &cmd.status,
			},
			&cli.StringFlag{
				Name:        "priority",
				Aliases:     []string{"p"},
				Usage:       "filter by priority (low, medium, high)",
				Destination: &cmd.priority,
			},
			&cli.StringFlag{
				Name:        "search",
				Aliases:     []string{"q"},
				Usage:       "case-insensitive text search",
				Destination: &cmd.search,
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

func (cmd *LsCmd) filters() (notify.Filters, error) {
	f := notify.Filters{
		Type:     notify.Type(cmd.typ),
		Status:   notify.Status(cmd.status),
		Priority: notify.Priority(cmd.priority),
		Search:   cmd.search,
	}
	if f.Type != "" && !f.Type.IsValid() {
		return f, fmt.Errorf("unknown type %q", cmd.typ)
	}
	if f.Priority != "" && !f.Priority.IsValid() {
		return f, fmt.Errorf("unknown priority %q", cmd.priority)
	}
	switch f.Status {
	case "", notify.StatusAll, notify.StatusRead, notify.StatusUnread:
	default:
		return f, fmt.Errorf("unknown status %q", cmd.status)
	}
	return f, nil
}

func (cmd *LsCmd) run(ctx context.Context, c *cli.Command) error {
	filters, err := cmd.filters()
	if err != nil {
		return err
	}

	store, err := cmd.flags.loadStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	items := store.Filtered(filters)
	out := c.Root().Writer

	if cmd.jsonOutput {
		return iojson.WriteWith(out, notify.ListResult{Items: items, UnreadCount: store.UnreadCount()})
	}

	if len(items) == 0 {
		fmt.Fprintf(os.Stderr, "No notifications found\n")
		return nil
	}

	return renderNotifications(out, items, time.Now())
}
