package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
	"github.com/piotrzwolinski/synapseos-sub000/internal/graph"
	"github.com/piotrzwolinski/synapseos-sub000/internal/session"
)

// Messages fed to the program by the controller observer and by commands.
type (
	stepsMsg      []domain.StepRecord
	backgroundMsg struct {
		msg domain.Message
		err error
	}
	turnDoneMsg struct {
		result *session.TurnResult
		err    error
	}
	rateDoneMsg struct{ err error }
)

type chatModel struct {
	ctx      context.Context
	ctrl     *session.Controller
	styles   styles
	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model

	busy   bool
	steps  []domain.StepRecord
	graph  *graph.Graph
	status string
	width  int
	height int
}

func newChatModel(ctx context.Context, ctrl *session.Controller) chatModel {
	in := textinput.New()
	in.Placeholder = "Ask a question, or /rate N, /graph, /reset, /quit"
	in.Prompt = "> "
	in.CharLimit = 4000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return chatModel{
		ctx:      ctx,
		ctrl:     ctrl,
		styles:   newStyles(),
		input:    in,
		timeline: viewport.New(80, 20),
		spinner:  sp,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = msg.Width - 4
		m.timeline.Width = msg.Width
		m.timeline.Height = max(msg.Height-12, 5)
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if text == "" {
				break
			}
			cmd, quit := m.handleInput(text)
			if quit {
				return m, tea.Quit
			}
			cmds = append(cmds, cmd)
		}

	case stepsMsg:
		m.steps = msg
		m.refresh()

	case turnDoneMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.status = m.styles.failure.Render(msg.err.Error())
		default:
			m.steps = msg.result.Steps
			m.graph = msg.result.Graph
			m.status = ""
		}
		m.refresh()

	case backgroundMsg:
		if msg.err != nil {
			m.status = m.styles.muted.Render(fmt.Sprintf("evaluation of turn %d failed: %v", msg.msg.TurnNumber, msg.err))
		}
		m.refresh()

	case rateDoneMsg:
		if msg.err != nil {
			m.status = m.styles.failure.Render("rating not saved: " + msg.err.Error())
		}
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.timeline, cmd = m.timeline.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleInput runs a slash command or submits a turn.
func (m *chatModel) handleInput(text string) (tea.Cmd, bool) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/quit", "/exit":
		return nil, true

	case "/reset":
		if err := m.ctrl.Reset(); err != nil {
			m.status = m.styles.failure.Render(err.Error())
			return nil, false
		}
		m.steps, m.graph = nil, nil
		m.status = m.styles.muted.Render("new session started")
		m.refresh()
		return nil, false

	case "/rate":
		n, err := parseArg(fields, 0)
		if err != nil {
			m.status = m.styles.failure.Render("usage: /rate N (1-5)")
			return nil, false
		}
		msg, ok := lastEvaluated(m.ctrl.Messages())
		if !ok {
			m.status = m.styles.failure.Render(domain.ErrNoBackgroundResult.Error())
			return nil, false
		}
		ctx, ctrl := m.ctx, m.ctrl
		done := func() tea.Msg { return rateDoneMsg{err: ctrl.Rate(ctx, msg.ID, n)} }
		m.status = ""
		return done, false

	case "/graph":
		step, err := parseArg(fields, 1)
		if err != nil {
			m.status = m.styles.failure.Render("usage: /graph [step]")
			return nil, false
		}
		if m.graph == nil {
			m.status = m.styles.muted.Render("the last answer carried no traversals")
			return nil, false
		}
		m.status = ""
		m.timeline.SetContent(m.styles.renderPlayback(m.graph, m.graph.Playback(step-1)))
		return nil, false
	}

	if m.busy {
		m.status = m.styles.failure.Render(domain.ErrTurnInFlight.Error())
		return nil, false
	}
	m.busy = true
	m.steps = nil
	m.status = ""

	ctx, ctrl := m.ctx, m.ctrl
	submit := func() tea.Msg {
		res, err := ctrl.Submit(ctx, text)
		return turnDoneMsg{result: res, err: err}
	}
	return submit, false
}

// parseArg returns fields[1] as an int, or def when absent.
func parseArg(fields []string, def int) (int, error) {
	if len(fields) < 2 {
		if def == 0 {
			return 0, errors.New("missing argument")
		}
		return def, nil
	}
	return strconv.Atoi(fields[1])
}

// lastEvaluated returns the newest assistant message with a background result.
func lastEvaluated(msgs []domain.Message) (domain.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleAssistant && msgs[i].BackgroundResult != nil {
			return msgs[i], true
		}
	}
	return domain.Message{}, false
}

// refresh re-renders the transcript and scrolls to the end.
func (m *chatModel) refresh() {
	msgs := m.ctrl.Messages()
	blocks := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		blocks = append(blocks, m.styles.renderMessage(msg))
	}
	m.timeline.SetContent(strings.Join(blocks, "\n\n"))
	m.timeline.GotoBottom()
}

func (m chatModel) View() string {
	header := m.styles.header.Render("synapse") + m.styles.muted.Render("session "+shortID(m.ctrl.SessionID()))
	if locked := m.ctrl.Locked(); !locked.IsZero() {
		header += m.styles.muted.Render("  locked: " + locked.String())
	}

	var b strings.Builder
	b.WriteString(header + "\n")
	b.WriteString(m.timeline.View() + "\n")

	if steps := m.styles.renderSteps(m.steps); steps != "" {
		b.WriteString(m.styles.panel.Render(steps) + "\n")
	}
	if m.busy {
		b.WriteString(m.spinner.View() + " thinking...\n")
	}
	if m.status != "" {
		b.WriteString(m.status + "\n")
	}
	b.WriteString(m.input.View())
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runChat(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var p *tea.Program
	observer := session.ObserverFuncs{
		Step: func(steps []domain.StepRecord) { p.Send(stepsMsg(steps)) },
		Background: func(msg domain.Message, err error) {
			p.Send(backgroundMsg{msg: msg, err: err})
		},
	}

	ctrl := newController(cfg, logger, observer)
	p = tea.NewProgram(newChatModel(ctx, ctrl), tea.WithAltScreen())

	_, err = p.Run()

	// Abort a streaming turn, then drop outstanding evaluations.
	cancel()
	for ctrl.InFlight() {
		time.Sleep(10 * time.Millisecond)
	}
	_ = ctrl.Reset()
	return err
}
