// Package ui renders rmi's terminal output: import previews, results and
// field listings. Uses the Ayu color theme with adaptive light/dark support.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	}
)

var (
	passStyle     = lipgloss.NewStyle().Foreground(ColorPass)
	warnStyle     = lipgloss.NewStyle().Foreground(ColorWarn)
	failStyle     = lipgloss.NewStyle().Foreground(ColorFail)
	mutedStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	accentStyle   = lipgloss.NewStyle().Foreground(ColorAccent)
	categoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"

	TreeChild      = "⎿ "
	SeparatorLight = "──────────────────────────────────────────"
)

// Theme applies the palette, or nothing when color is off.
type Theme struct {
	Color bool
}

func (t Theme) render(style lipgloss.Style, s string) string {
	if !t.Color {
		return s
	}
	return style.Render(s)
}

// Pass renders text in the pass (green) color.
func (t Theme) Pass(s string) string { return t.render(passStyle, s) }

// Warn renders text in the warning (yellow) color.
func (t Theme) Warn(s string) string { return t.render(warnStyle, s) }

// Fail renders text in the fail (red) color.
func (t Theme) Fail(s string) string { return t.render(failStyle, s) }

// Muted renders text in the muted (gray) color.
func (t Theme) Muted(s string) string { return t.render(mutedStyle, s) }

// Accent renders text in the accent (blue) color.
func (t Theme) Accent(s string) string { return t.render(accentStyle, s) }

// Category renders a section header in bold uppercase.
func (t Theme) Category(s string) string { return t.render(categoryStyle, strings.ToUpper(s)) }

// Separator renders a light rule.
func (t Theme) Separator() string { return t.Muted(SeparatorLight) }
