package styles

import "github.com/colonyops/inbox/internal/core/notify"

var (
	IconUnread = "●"
	IconRead   = "○"
	IconLive   = "⚡"
	IconPoll   = "↻"
)

// TypeIcon returns a short glyph for a notification type.
func TypeIcon(t notify.Type) string {
	switch t {
	case notify.TypeSuccess:
		return "✓"
	case notify.TypeWarning:
		return "!"
	case notify.TypeError:
		return "✗"
	default:
		return "i"
	}
}
