// Package styles provides shared lipgloss styles for CLI output.
package styles

import (
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/colonyops/inbox/internal/core/notify"
)

// Palette defines a minimal semantic theme palette.
type Palette struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
}

// DefaultTheme is the name of the default theme.
const DefaultTheme = "tokyo-night"

var themes = map[string]Palette{
	"tokyo-night": {
		Primary:    lipgloss.Color("#7aa2f7"),
		Secondary:  lipgloss.Color("#7dcfff"),
		Foreground: lipgloss.Color("#c0caf5"),
		Muted:      lipgloss.Color("#565f89"),
		Success:    lipgloss.Color("#9ece6a"),
		Warning:    lipgloss.Color("#e0af68"),
		Error:      lipgloss.Color("#f7768e"),
	},
	"gruvbox": {
		Primary:    lipgloss.Color("#83a598"),
		Secondary:  lipgloss.Color("#8ec07c"),
		Foreground: lipgloss.Color("#ebdbb2"),
		Muted:      lipgloss.Color("#665c54"),
		Success:    lipgloss.Color("#b8bb26"),
		Warning:    lipgloss.Color("#fabd2f"),
		Error:      lipgloss.Color("#fb4934"),
	},
}

// ThemeNames returns sorted names of all built-in themes.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPalette returns the palette for the given theme name.
func GetPalette(name string) (Palette, bool) {
	p, ok := themes[name]
	return p, ok
}

// Style exports. Rebuilt by SetTheme.
var (
	HeaderStyle  lipgloss.Style
	MutedStyle   lipgloss.Style
	UnreadStyle  lipgloss.Style
	SuccessStyle lipgloss.Style
	WarningStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	InfoStyle    lipgloss.Style
)

func init() {
	SetTheme(themes[DefaultTheme])
}

// SetTheme sets the active palette and rebuilds all global styles.
func SetTheme(p Palette) {
	HeaderStyle = lipgloss.NewStyle().Foreground(p.Primary).Bold(true)
	MutedStyle = lipgloss.NewStyle().Foreground(p.Muted)
	UnreadStyle = lipgloss.NewStyle().Foreground(p.Foreground).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(p.Success)
	WarningStyle = lipgloss.NewStyle().Foreground(p.Warning)
	ErrorStyle = lipgloss.NewStyle().Foreground(p.Error)
	InfoStyle = lipgloss.NewStyle().Foreground(p.Secondary)
}

// TypeStyle returns the style used for a notification type label.
func TypeStyle(t notify.Type) lipgloss.Style {
	switch t {
	case notify.TypeSuccess:
		return SuccessStyle
	case notify.TypeWarning:
		return WarningStyle
	case notify.TypeError:
		return ErrorStyle
	default:
		return InfoStyle
	}
}

// PriorityStyle returns the style used for a priority label.
func PriorityStyle(p notify.Priority) lipgloss.Style {
	switch p {
	case notify.PriorityHigh:
		return ErrorStyle.Bold(true)
	case notify.PriorityLow:
		return MutedStyle
	default:
		return lipgloss.NewStyle()
	}
}

// ConnectionStyle returns the style for a connection status badge.
func ConnectionStyle(s notify.ConnectionStatus) lipgloss.Style {
	switch s {
	case notify.ConnOpen:
		return SuccessStyle
	case notify.ConnConnecting, notify.ConnReconnecting:
		return WarningStyle
	case notify.ConnFailed:
		return ErrorStyle
	default:
		return MutedStyle
	}
}
