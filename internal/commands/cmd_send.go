package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/inbox/internal/core/notify"
	"github.com/colonyops/inbox/pkg/iojson"
)

// sendInput is the JSON document accepted by send -f.
type sendInput struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Type     string   `json:"type"`
	Priority string   `json:"priority"`
	UserIDs  []string `json:"userIds"`
}

type SendCmd struct {
	flags *Flags
	input iojson.FileReader[sendInput]

	title      string
	message    string
	typ        string
	priority   string
	to         []string
	jsonOutput bool
}

// NewSendCmd creates a new send command
func NewSendCmd(flags *Flags) *SendCmd {
	return &SendCmd{flags: flags}
}

// SetStdin overrides the reader used for send -f -.
func (cmd *SendCmd) SetStdin(r io.Reader) {
	cmd.input.Stdin = r
}

// Register adds the send command to the application
func (cmd *SendCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "send",
		Usage:     "Send a notification",
		UsageText: "inbox send --title T --message M [--to user]... | inbox send -f payload.json",
		Description: `Creates a notification for one or more recipients.

Without --to the notification is sent to the signed-in user. Two or more
recipients are sent in a single bulk request.

Examples:
  inbox send --title "Deploy finished" --message "v1.4.2 is live" --type success
  inbox send -t "Standup" -m "in 5 minutes" --to user-2 --to user-3
  echo '{"title":"Hi","message":"there","userIds":["user-2"]}' | inbox send -f -`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "title",
				Aliases:     []string{"t"},
				Usage:       "notification title",
				Destination: &cmd.title,
			},
			&cli.StringFlag{
				Name:        "message",
				Aliases:     []string{"m"},
				Usage:       "notification body",
				Destination: &cmd.message,
			},
			&cli.StringFlag{
				Name:        "type",
				Usage:       "info, success, warning or error",
				Destination: &cmd.typ,
			},
			&cli.StringFlag{
				Name:        "priority",
				Aliases:     []string{"p"},
				Usage:       "low, medium or high",
				Destination: &cmd.priority,
			},
			&cli.StringSliceFlag{
				Name:        "to",
				Usage:       "recipient user id (repeatable)",
				Destination: &cmd.to,
			},
			cmd.input.Flag(),
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output the created notifications as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SendCmd) payload() (sendInput, error) {
	if cmd.input.Set() {
		if cmd.title != "" || cmd.message != "" {
			return sendInput{}, fmt.Errorf("--file cannot be combined with --title or --message")
		}
		return cmd.input.Read()
	}
	return sendInput{
		Title:    cmd.title,
		Message:  cmd.message,
		Type:     cmd.typ,
		Priority: cmd.priority,
		UserIDs:  cmd.to,
	}, nil
}

func (cmd *SendCmd) run(ctx context.Context, c *cli.Command) error {
	in, err := cmd.payload()
	if err != nil {
		return err
	}

	self := cmd.flags.Config.Server.UserID
	if len(in.UserIDs) == 0 {
		if self == "" {
			return fmt.Errorf("no recipient: pass --to or set server.user_id")
		}
		in.UserIDs = []string{self}
	}

	store, err := cmd.flags.loadStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var created []notify.Notification
	if len(in.UserIDs) == 1 {
		n, err := store.Create(ctx, notify.CreatePayload{
			Title:    in.Title,
			Message:  in.Message,
			Type:     notify.Type(in.Type),
			Priority: notify.Priority(in.Priority),
			UserID:   in.UserIDs[0],
		})
		if err != nil {
			return err
		}
		created = []notify.Notification{n}
	} else {
		created, err = store.CreateBulk(ctx, notify.BulkPayload{
			Title:    in.Title,
			Message:  in.Message,
			Type:     notify.Type(in.Type),
			Priority: notify.Priority(in.Priority),
			UserIDs:  in.UserIDs,
			SenderID: self,
		})
		if err != nil {
			return err
		}
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		return iojson.WriteWith(out, created)
	}
	for _, n := range created {
		_, _ = fmt.Fprintf(out, "Sent %s\n", n.ID)
	}
	return nil
}
