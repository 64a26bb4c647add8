package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/idea-realm/one-card-limit/internal/game"
	"github.com/idea-realm/one-card-limit/internal/randutil"
	"github.com/idea-realm/one-card-limit/internal/session"
	"github.com/idea-realm/one-card-limit/sdk/solver/runtime"
)

// errQuit signals that the human left the table mid-hand.
var errQuit = errors.New("player quit")

// PlayConfig describes an interactive match against a trained policy.
type PlayConfig struct {
	Rules         game.Rules
	Policy        *runtime.Policy
	Hands         int
	StartingStack int
	Seed          int64
	HumanName     string
	BotName       string
	ThinkDelay    time.Duration
	HistoryPath   string
	Logger        *log.Logger
}

// humanActor bridges the session goroutine to the TUI: each decision is sent
// to the program and blocks until the model answers or the user quits.
type humanActor struct {
	name    string
	rules   game.Rules
	program *tea.Program
	quit    <-chan struct{}
}

func (a *humanActor) Name() string { return a.name }

func (a *humanActor) Act(h *game.HandState) (game.Action, error) {
	pos := h.ActingPosition()
	msg := decisionMsg{
		legal:  h.LegalActions(),
		card:   h.CardFor(pos).Glyph(h.Rules()),
		pot:    h.Pot(),
		toCall: h.FacingBet(),
		reply:  make(chan game.Action, 1),
	}
	a.program.Send(msg)

	select {
	case action := <-msg.reply:
		return action, nil
	case <-a.quit:
		return 0, errQuit
	}
}

// programObserver forwards session events to the running program.
type programObserver struct {
	program   *tea.Program
	humanName string
	rules     game.Rules
}

func (o *programObserver) HandStarted(handNo int, h *game.HandState, opName, ipName string) {
	pos := game.OutOfPosition
	if ipName == o.humanName {
		pos = game.InPosition
	}
	o.program.Send(handStartedMsg{
		handNo:   handNo,
		card:     h.CardFor(pos).Glyph(o.rules),
		position: pos,
	})
}

func (o *programObserver) ActionTaken(actorName string, pos game.Position, action game.Action, h *game.HandState) {
	o.program.Send(actionTakenMsg{actor: actorName, action: action, pot: h.Pot()})
}

func (o *programObserver) HandFinished(record game.HandRecord, stacks map[string]int) {
	o.program.Send(handFinishedMsg{record: record, stacks: stacks})
}

// Play runs the interactive match until the requested hands are done, a
// stack is busted, or the user quits.
func Play(ctx context.Context, cfg PlayConfig) (*session.Result, error) {
	if cfg.Policy == nil {
		return nil, errors.New("nil policy")
	}
	if err := cfg.Policy.CompatibleWith(cfg.Rules); err != nil {
		return nil, err
	}
	if cfg.HumanName == "" {
		cfg.HumanName = "you"
	}
	if cfg.BotName == "" {
		cfg.BotName = "bot"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr)
	}

	quit := make(chan struct{})
	model := NewModel(cfg.Rules, cfg.HumanName, quit)
	program := tea.NewProgram(model, tea.WithAltScreen())

	rng := randutil.New(cfg.Seed)
	human := &humanActor{name: cfg.HumanName, rules: cfg.Rules, program: program, quit: quit}
	bot, err := session.NewPolicyActor(cfg.BotName, cfg.Policy, rng)
	if err != nil {
		return nil, err
	}

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithObserver(&programObserver{program: program, humanName: cfg.HumanName, rules: cfg.Rules}),
	}
	if cfg.ThinkDelay > 0 {
		opts = append(opts, session.WithThinkDelay(cfg.ThinkDelay))
	}
	if cfg.HistoryPath != "" {
		f, err := os.OpenFile(cfg.HistoryPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open history file: %w", err)
		}
		defer f.Close()
		opts = append(opts, session.WithHistoryWriter(game.NewHistoryWriter(f)))
	}

	manager, err := session.NewManager(cfg.Rules, human, bot, cfg.StartingStack, rng, opts...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result *session.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := manager.Run(ctx, cfg.Hands)
		if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
			err = nil
		}
		done <- outcome{result: res, err: err}
		program.Send(matchOverMsg{result: res, err: err})
	}()

	// Stop the session if the user leaves before the match ends.
	go func() {
		<-quit
		cancel()
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("terminal ui: %w", err)
	}
	out := <-done
	return out.result, out.err
}
