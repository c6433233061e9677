// Package tui is the interactive debug console: a GDB log pane fed by
// the session's notification stream, an analysis pane for model
// output, and a command line that accepts slash commands or free text
// for the agent.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sprookie/aigdb/internal/domain"
	"github.com/sprookie/aigdb/internal/gdb"
	"github.com/sprookie/aigdb/internal/ports"
)

// Session is the slice of the gdb controller the console drives.
type Session interface {
	Load(ctx context.Context, exePath, corePath string) error
	Run(ctx context.Context, text string) (domain.Result, error)
	ConsoleText(ctx context.Context, cliCmd string) (string, error)
	State() domain.SessionState
	Target() domain.Target
	Subscribe(filter gdb.RecordFilter, buffer int) *gdb.Subscription
}

// AgentRunner answers free-text questions, calling debugger tools as
// needed.
type AgentRunner interface {
	Ask(ctx context.Context, input string) (string, error)
}

// Analyzer runs the fixed diagnostic script over the loaded session.
type Analyzer interface {
	Analyze(ctx context.Context) (domain.AutopsyReport, error)
}

type Options struct {
	Session   Session
	Agent     AgentRunner
	Analyzer  Analyzer // narrative-producing engine
	Collector Analyzer // facts only, no model call
	Targets   ports.TargetRepository
}

type focusArea int

const (
	focusInput focusArea = iota
	focusGDB
	focusAI
)

const streamBuffer = 512

type subscribedMsg struct{ sub *gdb.Subscription }

type recordMsg struct {
	rec domain.Record
	ok  bool
}

type loadDoneMsg struct {
	exe  string
	core string
	err  error
}

type gdbCommandDoneMsg struct {
	command string
	text    string
	err     error
}

type agentDoneMsg struct {
	answer string
	err    error
}

type analyzeDoneMsg struct {
	report  domain.AutopsyReport
	rawOnly bool
	err     error
}

type model struct {
	opts   Options
	styles styles

	input   textinput.Model
	gdbView viewport.Model
	aiView  viewport.Model
	spin    spinner.Model

	gdbLines []string
	aiLines  []string

	focus     focusArea
	busy      bool
	busyLabel string
	width     int
	height    int
	ready     bool

	sub *gdb.Subscription
}

func newModel(opts Options) model {
	input := textinput.New()
	input.Placeholder = "/load <exe> <core>, /cmd <gdb command>, /analyze, /collect, or ask a question"
	input.Prompt = "> "
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return model{
		opts:    opts,
		styles:  newStyles(),
		input:   input,
		gdbView: viewport.New(0, 0),
		aiView:  viewport.New(0, 0),
		spin:    spin,
		gdbLines: []string{
			"no session loaded; use /load <executable> <core>",
		},
		aiLines: []string{
			"ask a question or run /analyze once a core is loaded",
		},
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.subscribeCmd())
}

func (m model) subscribeCmd() tea.Cmd {
	session := m.opts.Session
	return func() tea.Msg {
		return subscribedMsg{sub: session.Subscribe(nil, streamBuffer)}
	}
}

func waitRecord(sub *gdb.Subscription) tea.Cmd {
	return func() tea.Msg {
		rec, ok := <-sub.Records()
		return recordMsg{rec: rec, ok: ok}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case subscribedMsg:
		if m.sub != nil {
			m.sub.Cancel()
		}
		m.sub = msg.sub
		return m, waitRecord(m.sub)

	case recordMsg:
		if !msg.ok {
			// Stream closed: the session was torn down or replaced.
			// A fresh /load resubscribes.
			m.sub = nil
			return m, nil
		}
		m.appendGDB(msg.rec.DisplayText())
		return m, waitRecord(m.sub)

	case loadDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.appendGDB(m.styles.errLine.Render("load failed: " + msg.err.Error()))
			return m, nil
		}
		m.appendGDB(fmt.Sprintf("loaded exe=%s core=%s", msg.exe, msg.core))
		// Loading tears down any previous session, which closes the
		// old stream; attach to the new one.
		return m, m.subscribeCmd()

	case gdbCommandDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.appendGDB(m.styles.errLine.Render(msg.command + ": " + msg.err.Error()))
			return m, nil
		}
		m.appendGDB("(gdb) " + msg.command)
		for _, line := range splitLines(msg.text) {
			m.appendGDB(line)
		}
		return m, nil

	case agentDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.appendAI(m.styles.errLine.Render("agent: " + msg.err.Error()))
			return m, nil
		}
		for _, line := range splitLines(msg.answer) {
			m.appendAI(line)
		}
		return m, nil

	case analyzeDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.appendAI(m.styles.errLine.Render("analyze: " + msg.err.Error()))
			return m, nil
		}
		m.renderReport(msg.report, msg.rawOnly)
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m.updateFocused(msg)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q":
		if m.focus != focusInput {
			return m, tea.Quit
		}
	case "tab":
		m.focus = focusInput
		m.input.Focus()
		return m, textinput.Blink
	case "f6":
		m.focus = focusGDB
		m.input.Blur()
		return m, nil
	case "f7":
		m.focus = focusAI
		m.input.Blur()
		return m, nil
	case "enter":
		if m.focus == focusInput && !m.busy {
			value := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if value == "" {
				return m, nil
			}
			return m.dispatch(value)
		}
	}

	return m.updateFocused(msg)
}

func (m model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case focusInput:
		m.input, cmd = m.input.Update(msg)
	case focusGDB:
		m.gdbView, cmd = m.gdbView.Update(msg)
	case focusAI:
		m.aiView, cmd = m.aiView.Update(msg)
	}
	return m, cmd
}

func (m model) dispatch(value string) (tea.Model, tea.Cmd) {
	if !strings.HasPrefix(value, "/") {
		if m.opts.Agent == nil {
			m.appendAI(m.styles.errLine.Render("no model configured; set OPENAI_API_KEY"))
			return m, nil
		}
		m.appendAI("> " + value)
		return m.startBusy("thinking", m.askCmd(value))
	}

	command, rest, _ := strings.Cut(value[1:], " ")
	rest = strings.TrimSpace(rest)

	switch command {
	case "load":
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			m.appendGDB(m.styles.errLine.Render("usage: /load <executable> <core>"))
			return m, nil
		}
		return m.startBusy("loading", m.loadCmd(fields[0], fields[1]))
	case "cmd":
		if rest == "" {
			m.appendGDB(m.styles.errLine.Render("usage: /cmd <gdb command>"))
			return m, nil
		}
		return m.startBusy("running", m.gdbCmd(rest))
	case "analyze", "analyse":
		if m.opts.Analyzer == nil {
			m.appendAI(m.styles.errLine.Render("no model configured; use /collect for raw facts"))
			return m, nil
		}
		m.appendAI("> running crash analysis")
		return m.startBusy("analyzing", m.analyzeCmd(m.opts.Analyzer, false))
	case "collect":
		if m.opts.Collector == nil {
			m.appendAI(m.styles.errLine.Render("collector unavailable"))
			return m, nil
		}
		m.appendAI("> collecting crash facts")
		return m.startBusy("collecting", m.analyzeCmd(m.opts.Collector, true))
	case "quit", "exit":
		return m, tea.Quit
	default:
		m.appendGDB(m.styles.errLine.Render("unknown command: /" + command))
		return m, nil
	}
}

func (m model) startBusy(label string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.busy = true
	m.busyLabel = label
	return m, tea.Batch(m.spin.Tick, cmd)
}

func (m model) loadCmd(exe, core string) tea.Cmd {
	session := m.opts.Session
	targets := m.opts.Targets
	return func() tea.Msg {
		if err := session.Load(context.Background(), exe, core); err != nil {
			return loadDoneMsg{exe: exe, core: core, err: err}
		}
		if targets != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			// History is best effort; a read-only home dir must not
			// fail the load.
			_ = targets.Record(ctx, domain.Target{
				ExecutablePath: exe,
				CorePath:       core,
				LastLoadedAt:   time.Now(),
			})
		}
		return loadDoneMsg{exe: exe, core: core}
	}
}

func (m model) gdbCmd(command string) tea.Cmd {
	session := m.opts.Session
	return func() tea.Msg {
		if strings.HasPrefix(command, "-") {
			result, err := session.Run(context.Background(), command)
			if err != nil {
				return gdbCommandDoneMsg{command: command, err: err}
			}
			if result.Failed() {
				return gdbCommandDoneMsg{command: command, text: "^error: " + result.ErrorMessage()}
			}
			return gdbCommandDoneMsg{command: command, text: result.ConsoleText()}
		}

		text, err := session.ConsoleText(context.Background(), command)
		return gdbCommandDoneMsg{command: command, text: text, err: err}
	}
}

func (m model) askCmd(question string) tea.Cmd {
	agent := m.opts.Agent
	return func() tea.Msg {
		answer, err := agent.Ask(context.Background(), question)
		return agentDoneMsg{answer: answer, err: err}
	}
}

func (m model) analyzeCmd(engine Analyzer, rawOnly bool) tea.Cmd {
	return func() tea.Msg {
		report, err := engine.Analyze(context.Background())
		return analyzeDoneMsg{report: report, rawOnly: rawOnly, err: err}
	}
}

func (m *model) renderReport(report domain.AutopsyReport, rawOnly bool) {
	if rawOnly || report.Narrative == "" {
		for _, line := range splitLines(report.Evidence()) {
			m.appendAI(line)
		}
	} else {
		for _, line := range splitLines(report.Narrative) {
			m.appendAI(line)
		}
	}
	if failed := report.FailedSteps(); len(failed) > 0 {
		m.appendAI(m.styles.errLine.Render("incomplete steps: " + strings.Join(failed, ", ")))
	}
}

func (m *model) appendGDB(line string) {
	m.gdbLines = append(m.gdbLines, line)
	m.gdbView.SetContent(strings.Join(m.gdbLines, "\n"))
	m.gdbView.GotoBottom()
}

func (m *model) appendAI(line string) {
	m.aiLines = append(m.aiLines, line)
	m.aiView.SetContent(strings.Join(m.aiLines, "\n"))
	m.aiView.GotoBottom()
}

func splitLines(text string) []string {
	trimmed := strings.TrimRight(text, "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

// Run starts the interactive console and blocks until the user quits.
func Run(opts Options) error {
	p := tea.NewProgram(newModel(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
