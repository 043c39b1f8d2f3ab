// Package ui holds the terminal styling and the small interactive pieces of
// the postdesk CLI.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	LightForeground = lipgloss.Color("#1d2433")
	LightPrimary    = lipgloss.Color("#1f4e79")
	LightAccent     = lipgloss.Color("#2e8b57")
	LightMuted      = lipgloss.Color("#8a94a6")

	DarkForeground = lipgloss.Color("#eceff4")
	DarkPrimary    = lipgloss.Color("#88c0d0")
	DarkAccent     = lipgloss.Color("#a3be8c")
	DarkMuted      = lipgloss.Color("#616e88")

	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#43a047")
	Warning     = lipgloss.Color("#ffb300")
)

// Theme is the active color scheme.
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	IsDark     bool
}

func LightTheme() Theme {
	return Theme{Foreground: LightForeground, Primary: LightPrimary, Accent: LightAccent, Muted: LightMuted}
}

func DarkTheme() Theme {
	return Theme{Foreground: DarkForeground, Primary: DarkPrimary, Accent: DarkAccent, Muted: DarkMuted, IsDark: true}
}

// DetectTheme reads COLORFGBG and POSTDESK_DARK_MODE; light is the default.
func DetectTheme() Theme {
	if parts := strings.Split(os.Getenv("COLORFGBG"), ";"); len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil && ((bg >= 0 && bg <= 6) || bg == 8) {
			return DarkTheme()
		}
	}
	if os.Getenv("POSTDESK_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles holds every style the CLI renders with.
type Styles struct {
	Theme Theme

	Title   lipgloss.Style
	Body    lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Prompt  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Badge   lipgloss.Style
}

func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		Body: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Prompt: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),

		Badge: lipgloss.NewStyle().
			Background(theme.Accent).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 1).
			Bold(true),
	}
}

// DefaultStyles uses the detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}
