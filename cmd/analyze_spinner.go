package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type analyzeStepDoneMsg struct {
	err error
}

// analyzeStatusMsg replaces the spinner label while the step runs, so
// long phases can report which sub-step they are on.
type analyzeStatusMsg struct {
	text string
}

type analyzeSpinnerModel struct {
	spinner spinner.Model
	label   string
	work    tea.Cmd
	err     error
	done    bool
}

func newAnalyzeSpinnerModel(label string, work tea.Cmd) analyzeSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return analyzeSpinnerModel{
		spinner: s,
		label:   label,
		work:    work,
	}
}

func (m analyzeSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.work)
}

func (m analyzeSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case analyzeStatusMsg:
		m.label = msg.text
		return m, nil
	case analyzeStepDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m analyzeSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

func runWithSpinner(ctx context.Context, output io.Writer, label string, work func(ctx context.Context, status func(string)) error) error {
	var p *tea.Program
	workCmd := func() tea.Msg {
		status := func(text string) {
			p.Send(analyzeStatusMsg{text: text})
		}
		return analyzeStepDoneMsg{err: work(ctx, status)}
	}

	p = tea.NewProgram(
		newAnalyzeSpinnerModel(label, workCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(analyzeSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}
