package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/inbox/internal/core/notify"
)

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	assert.Equal(t, []string{"gruvbox", "tokyo-night"}, names)

	_, ok := GetPalette(DefaultTheme)
	assert.True(t, ok)
	_, ok = GetPalette("solarized")
	assert.False(t, ok)
}

func TestSetTheme_RebuildsStyles(t *testing.T) {
	t.Cleanup(func() { SetTheme(themes[DefaultTheme]) })

	p, ok := GetPalette("gruvbox")
	require.True(t, ok)
	SetTheme(p)

	assert.Equal(t, p.Error, ErrorStyle.GetForeground())
	assert.Equal(t, p.Error, TypeStyle(notify.TypeError).GetForeground())
	assert.Equal(t, p.Success, ConnectionStyle(notify.ConnOpen).GetForeground())
	assert.Equal(t, p.Muted, PriorityStyle(notify.PriorityLow).GetForeground())
}

func TestTypeIcon(t *testing.T) {
	seen := map[string]bool{}
	for _, typ := range notify.Types {
		seen[TypeIcon(typ)] = true
	}
	assert.Len(t, seen, len(notify.Types))
}
