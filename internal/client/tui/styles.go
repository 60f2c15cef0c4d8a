package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	Title    lipgloss.Style
	Muted    lipgloss.Style
	Label    lipgloss.Style
	Error    lipgloss.Style
	Info     lipgloss.Style
	Dialog   lipgloss.Style
	Selected lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1),
		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Label: lipgloss.NewStyle().Width(16).Bold(true),
		Error: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")),
		Info:  lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		Dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(1, 2),
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true),
	}
}
