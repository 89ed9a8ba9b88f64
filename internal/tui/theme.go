package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorHeart  = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#E53935"}
	colorError  = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}
	colorBorder = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#42a5f5"}
	colorSelect = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#4fc3f7"}
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	valueStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorHeart).Padding(1, 2)
	errorStyle    = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	hintStyle     = lipgloss.NewStyle().Faint(true).MarginTop(1)
	selectedStyle = lipgloss.NewStyle().Foreground(colorSelect).Bold(true)
	pickerStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
)

// symbols switch between Unicode glyphs and plain ASCII.
type symbols struct {
	Heart  string
	Cursor string
	Error  string
}

var (
	unicodeSymbols = symbols{Heart: "♥", Cursor: "›", Error: "✗"}
	asciiSymbols   = symbols{Heart: "<3", Cursor: ">", Error: "[ERR]"}
)
