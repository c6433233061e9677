package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	inputHeight   = 3
	statusHeight  = 1
	paneChrome    = 2 // border rows
	minPaneWidth  = 20
	minPaneHeight = 3
)

func (m *model) resize() {
	paneWidth := m.width/2 - paneChrome
	if paneWidth < minPaneWidth {
		paneWidth = minPaneWidth
	}
	paneHeight := m.height - inputHeight - statusHeight - paneChrome - 1
	if paneHeight < minPaneHeight {
		paneHeight = minPaneHeight
	}

	m.gdbView.Width = paneWidth
	m.gdbView.Height = paneHeight
	m.aiView.Width = paneWidth
	m.aiView.Height = paneHeight
	m.input.Width = m.width - 6

	m.gdbView.SetContent(strings.Join(m.gdbLines, "\n"))
	m.aiView.SetContent(strings.Join(m.aiLines, "\n"))
	m.gdbView.GotoBottom()
	m.aiView.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "starting..."
	}

	gdbPane := m.renderPane("gdb [F6]", m.gdbView.View(), m.focus == focusGDB)
	aiPane := m.renderPane("analysis [F7]", m.aiView.View(), m.focus == focusAI)
	panes := lipgloss.JoinHorizontal(lipgloss.Top, gdbPane, aiPane)

	inputStyle := m.styles.inputFrame
	if m.focus == focusInput {
		inputStyle = m.styles.paneFocused
	}
	inputLine := inputStyle.Width(m.width - paneChrome).Render(m.input.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		panes,
		inputLine,
		m.statusLine(),
	)
}

func (m model) renderPane(title, content string, focused bool) string {
	frame := m.styles.pane
	if focused {
		frame = m.styles.paneFocused
	}
	header := m.styles.paneTitle.Render(title)
	return frame.Render(lipgloss.JoinVertical(lipgloss.Left, header, content))
}

func (m model) statusLine() string {
	state := m.styles.statusState.Render(string(m.opts.Session.State()))

	var parts []string
	parts = append(parts, "session: "+state)
	if target := m.opts.Session.Target(); target.ExecutablePath != "" {
		parts = append(parts, m.styles.statusBar.Render(target.ExecutablePath))
	}
	if m.busy {
		parts = append(parts, m.spin.View()+m.styles.statusBar.Render(m.busyLabel))
	}
	parts = append(parts, m.styles.hint.Render("Tab input · F6/F7 panes · Ctrl+C quit"))

	return strings.Join(parts, "  ")
}
