package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("#7D56F4")
	colorError  = lipgloss.Color("#FF5F87")
	colorMuted  = lipgloss.Color("#767676")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(colorAccent).
			Padding(0, 1)

	errorStyle  = lipgloss.NewStyle().Foreground(colorError)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F"))
	helpStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)

	formStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(1, 2)
)
