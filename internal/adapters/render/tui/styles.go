package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	pane        lipgloss.Style
	paneFocused lipgloss.Style
	paneTitle   lipgloss.Style
	statusBar   lipgloss.Style
	statusState lipgloss.Style
	inputFrame  lipgloss.Style
	errLine     lipgloss.Style
	hint        lipgloss.Style
}

func newStyles() styles {
	border := lipgloss.RoundedBorder()
	return styles{
		pane:        lipgloss.NewStyle().Border(border).BorderForeground(lipgloss.Color("238")),
		paneFocused: lipgloss.NewStyle().Border(border).BorderForeground(lipgloss.Color("39")),
		paneTitle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		statusBar:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		statusState: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("159")),
		inputFrame:  lipgloss.NewStyle().Border(border).BorderForeground(lipgloss.Color("244")),
		errLine:     lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		hint:        lipgloss.NewStyle().Faint(true),
	}
}
