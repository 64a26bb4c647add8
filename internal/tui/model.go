// Package tui implements the interactive terminal game against a trained
// policy, built on Bubble Tea. The session engine runs on its own goroutine
// and talks to the model through messages; the model never touches game state
// directly.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/idea-realm/one-card-limit/internal/game"
	"github.com/idea-realm/one-card-limit/internal/session"
)

// Messages sent to the model from the session goroutine.
type (
	handStartedMsg struct {
		handNo   int
		card     string
		position game.Position
	}

	actionTakenMsg struct {
		actor  string
		action game.Action
		pot    int
	}

	handFinishedMsg struct {
		record game.HandRecord
		stacks map[string]int
	}

	// decisionMsg asks the human for an action. The model answers on reply.
	decisionMsg struct {
		legal  []game.Action
		card   string
		pot    int
		toCall int
		reply  chan game.Action
	}

	matchOverMsg struct {
		result *session.Result
		err    error
	}
)

// Model is the Bubble Tea model for interactive play.
type Model struct {
	rules     game.Rules
	humanName string

	logViewport viewport.Model
	actionInput textinput.Model

	gameLog  []string
	pending  *decisionMsg
	stacks   map[string]int
	card     string
	position game.Position
	handNo   int

	result   *session.Result
	matchErr error
	over     bool
	quitting bool
	quit     chan struct{}

	width       int
	height      int
	initialized bool
}

// NewModel builds the play model. The quit channel is closed when the user
// leaves mid-match so the session goroutine can stop.
func NewModel(rules game.Rules, humanName string, quit chan struct{}) *Model {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "check, bet, call, raise, fold (or x/b/c/r/f)"
	ti.Focus()
	ti.CharLimit = 32
	ti.Width = 60
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	ti.Prompt = "> "

	return &Model{
		rules:       rules,
		humanName:   humanName,
		logViewport: vp,
		actionInput: ti,
		stacks:      map[string]int{},
		quit:        quit,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case handStartedMsg:
		m.handNo = msg.handNo
		m.card = msg.card
		m.position = msg.position
		m.appendLog(HeaderStyle.Render(fmt.Sprintf(" Hand %d ", msg.handNo)))
		m.appendLog(fmt.Sprintf("You are %s holding %s",
			msg.position, CardStyle.Render(msg.card)))

	case actionTakenMsg:
		m.appendLog(fmt.Sprintf("%s %s (pot %d)",
			msg.actor, ActionsStyle.Render(msg.action.String()), msg.pot))

	case handFinishedMsg:
		m.stacks = msg.stacks
		m.appendLog(m.describeResult(msg.record))
		m.appendLog("")

	case decisionMsg:
		m.pending = &msg
		m.appendLog(m.describePrompt(msg))

	case matchOverMsg:
		m.over = true
		m.result = msg.result
		m.matchErr = msg.err
		if msg.err != nil {
			m.appendLog(ErrorStyle.Render(fmt.Sprintf("session error: %v", msg.err)))
		} else if msg.result != nil {
			m.appendLog(HeaderStyle.Render(" Match over "))
			net := msg.result.Net[m.humanName]
			verdict := SuccessStyle.Render(fmt.Sprintf("you finished up %+d", net))
			if net < 0 {
				verdict = ErrorStyle.Render(fmt.Sprintf("you finished down %+d", net))
			} else if net == 0 {
				verdict = InfoStyle.Render("you broke even")
			}
			m.appendLog(fmt.Sprintf("%d hands played, %s", msg.result.HandsPlayed, verdict))
		}
		m.appendLog(InfoStyle.Render("press enter to exit"))

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, m.leave()
		case "enter":
			if m.over {
				return m, m.leave()
			}
			input := strings.TrimSpace(m.actionInput.Value())
			m.actionInput.SetValue("")
			if input != "" {
				if cmd := m.handleInput(input); cmd != nil {
					return m, cmd
				}
			}
		case "pgup":
			m.logViewport.HalfPageUp()
		case "pgdown":
			m.logViewport.HalfPageDown()
		}
	}

	var cmd tea.Cmd
	m.actionInput, cmd = m.actionInput.Update(msg)
	cmds = append(cmds, cmd)
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// leave closes the quit channel once and tears the program down.
func (m *Model) leave() tea.Cmd {
	if !m.quitting {
		m.quitting = true
		close(m.quit)
	}
	return tea.Sequence(tea.ClearScreen, tea.Quit)
}

// handleInput parses and answers a pending decision, or complains.
func (m *Model) handleInput(input string) tea.Cmd {
	if input == "quit" || input == "q" {
		m.appendLog(InfoStyle.Render("leaving the table"))
		return m.leave()
	}
	if m.pending == nil {
		m.appendLog(InfoStyle.Render("not your turn"))
		return nil
	}

	action, err := game.ParseAction(input)
	if err != nil {
		m.appendLog(ErrorStyle.Render(fmt.Sprintf("don't know %q, try one of %s",
			input, legalString(m.pending.legal))))
		return nil
	}
	for _, a := range m.pending.legal {
		if a == action {
			m.pending.reply <- action
			m.pending = nil
			return nil
		}
	}
	m.appendLog(ErrorStyle.Render(fmt.Sprintf("%s is not legal here, try %s",
		action, legalString(m.pending.legal))))
	return nil
}

func (m *Model) describePrompt(msg decisionMsg) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Your turn holding %s, %s",
		CardStyle.Render(msg.card),
		PotStyle.Render(fmt.Sprintf("pot %d", msg.pot))))
	if msg.toCall > 0 {
		b.WriteString(fmt.Sprintf(", %d to call", msg.toCall))
	}
	b.WriteString(fmt.Sprintf(". Actions: %s", ActionsStyle.Render(legalString(msg.legal))))
	return b.String()
}

func (m *Model) describeResult(rec game.HandRecord) string {
	yourNet := rec.OPNet
	if rec.IPName == m.humanName {
		yourNet = rec.IPNet
	}
	line := fmt.Sprintf("Hand over: %s vs %s, pot %d", rec.OPCard, rec.IPCard, rec.Pot)
	if !rec.Showdown {
		line = fmt.Sprintf("Hand over: fold, pot %d", rec.Pot)
	}
	if yourNet > 0 {
		return line + ", " + SuccessStyle.Render(fmt.Sprintf("you win %+d", yourNet))
	}
	if yourNet < 0 {
		return line + ", " + ErrorStyle.Render(fmt.Sprintf("you lose %+d", yourNet))
	}
	return line
}

func legalString(actions []game.Action) string {
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = fmt.Sprintf("%s(%c)", a, a.Letter())
	}
	return strings.Join(parts, " ")
}

func (m *Model) appendLog(line string) {
	m.gameLog = append(m.gameLog, line)
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	m.logViewport.GotoBottom()
}

// View renders the model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	inputPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#04B575")).
		Width(max(m.width-2, 1)).
		Render(m.actionInput.View())
	inputHeight := lipgloss.Height(inputPane)

	statusPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(max(m.width-2, 1)).
		Render(m.renderStatus())
	statusHeight := lipgloss.Height(statusPane)

	m.logViewport.Width = max(m.width-2, 1)
	m.logViewport.Height = max(m.height-inputHeight-statusHeight-2, 1)
	if !m.initialized && m.logViewport.Height > 1 {
		m.logViewport.GotoBottom()
		m.initialized = true
	}

	logPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(m.logViewport.Width).
		Height(m.logViewport.Height).
		Render(m.logViewport.View())

	return lipgloss.JoinVertical(lipgloss.Top, logPane, statusPane, inputPane)
}

func (m *Model) renderStatus() string {
	names := make([]string, 0, len(m.stacks))
	for name := range m.stacks {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		label := name
		if name == m.humanName {
			label = name + " (you)"
		}
		parts = append(parts, fmt.Sprintf("%s: %d", label, m.stacks[name]))
	}
	if len(parts) == 0 {
		return InfoStyle.Render(m.rules.String())
	}
	return PotStyle.Render(strings.Join(parts, "   ")) + "  " + InfoStyle.Render(m.rules.String())
}
