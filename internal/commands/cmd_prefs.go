package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/inbox/internal/core/notify"
	"github.com/colonyops/inbox/pkg/iojson"
)

type PrefsCmd struct {
	flags *Flags

	desktop    bool
	sound      bool
	jsonOutput bool
}

// NewPrefsCmd creates a new prefs command
func NewPrefsCmd(flags *Flags) *PrefsCmd {
	return &PrefsCmd{flags: flags}
}

// Register adds the prefs command to the application
func (cmd *PrefsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "prefs",
		Usage: "Show or change delivery preferences",
		Description: `Delivery preferences decide whether new notifications raise a desktop
notification and play a sound while 'inbox watch' is running. They are stored
on the server and shared by every client of the account.`,
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Show the current preferences",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOutput},
				},
				Action: cmd.runGet,
			},
			{
				Name:      "set",
				Usage:     "Change preferences",
				UsageText: "inbox prefs set [--desktop=true|false] [--sound=true|false]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "desktop", Usage: "raise desktop notifications", Destination: &cmd.desktop},
					&cli.BoolFlag{Name: "sound", Usage: "play a sound", Destination: &cmd.sound},
					&cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOutput},
				},
				Action: cmd.runSet,
			},
		},
	})

	return app
}

func (cmd *PrefsCmd) runGet(ctx context.Context, c *cli.Command) error {
	client, err := cmd.flags.repository()
	if err != nil {
		return err
	}

	prefs, err := client.GetPreferences(ctx)
	if err != nil {
		return fmt.Errorf("get preferences: %w", err)
	}
	return cmd.print(c.Root().Writer, prefs)
}

func (cmd *PrefsCmd) runSet(ctx context.Context, c *cli.Command) error {
	if !c.IsSet("desktop") && !c.IsSet("sound") {
		return fmt.Errorf("pass --desktop and/or --sound")
	}

	client, err := cmd.flags.repository()
	if err != nil {
		return err
	}

	prefs, err := client.GetPreferences(ctx)
	if err != nil {
		return fmt.Errorf("get preferences: %w", err)
	}
	if c.IsSet("desktop") {
		prefs.BrowserNotifications = cmd.desktop
	}
	if c.IsSet("sound") {
		prefs.SoundNotifications = cmd.sound
	}

	saved, err := client.SetPreferences(ctx, prefs)
	if err != nil {
		return fmt.Errorf("set preferences: %w", err)
	}
	return cmd.print(c.Root().Writer, saved)
}

func (cmd *PrefsCmd) print(w io.Writer, prefs notify.Preferences) error {
	if cmd.jsonOutput {
		return iojson.WriteWith(w, prefs)
	}
	_, err := fmt.Fprintf(w, "desktop: %s\nsound:   %s\n", onOff(prefs.BrowserNotifications), onOff(prefs.SoundNotifications))
	return err
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
