package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	rand "math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/idea-realm/one-card-limit/internal/game"
)

// maxRetries bounds how often a misbehaving actor may submit an illegal
// action before the hand is folded for them.
const maxRetries = 3

// Manager runs a heads-up match between two actors. Seats alternate every
// hand so neither player keeps the positional edge.
type Manager struct {
	rules   game.Rules
	players [2]Actor
	stacks  [2]int
	rng     *rand.Rand

	logger     *log.Logger
	clock      quartz.Clock
	thinkDelay time.Duration
	history    *game.HistoryWriter
	observer   Observer

	handsPlayed int
}

// Observer receives hand lifecycle callbacks, used by the TUI and server to
// render play as it happens. All methods are called from the session
// goroutine.
type Observer interface {
	HandStarted(handNo int, h *game.HandState, opName, ipName string)
	ActionTaken(actorName string, pos game.Position, action game.Action, h *game.HandState)
	HandFinished(record game.HandRecord, stacks map[string]int)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock substitutes the wall clock, letting tests drive think delays.
func WithClock(clock quartz.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithThinkDelay pauses before each decision so interactive play does not
// feel instantaneous.
func WithThinkDelay(d time.Duration) Option {
	return func(m *Manager) { m.thinkDelay = d }
}

// WithHistoryWriter records every finished hand to the writer.
func WithHistoryWriter(w *game.HistoryWriter) Option {
	return func(m *Manager) { m.history = w }
}

// WithObserver attaches a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// NewManager sets up a match between two actors starting from equal stacks.
// Actor a takes the out-of-position seat in the first hand.
func NewManager(rules game.Rules, a, b Actor, startingStack int, rng *rand.Rand, opts ...Option) (*Manager, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, errors.New("both actors are required")
	}
	if a.Name() == b.Name() {
		return nil, fmt.Errorf("actors must have distinct names, both are %q", a.Name())
	}
	if startingStack < rules.Ante {
		return nil, fmt.Errorf("starting stack %d cannot cover the ante %d", startingStack, rules.Ante)
	}
	if rng == nil {
		return nil, errors.New("nil random source")
	}

	m := &Manager{
		rules:   rules,
		players: [2]Actor{a, b},
		stacks:  [2]int{startingStack, startingStack},
		rng:     rng,
		logger:  log.New(io.Discard),
		clock:   quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Stacks returns the current stack for each player by name.
func (m *Manager) Stacks() map[string]int {
	return map[string]int{
		m.players[0].Name(): m.stacks[0],
		m.players[1].Name(): m.stacks[1],
	}
}

// HandsPlayed returns how many hands have finished.
func (m *Manager) HandsPlayed() int { return m.handsPlayed }

// Result summarizes a finished match.
type Result struct {
	HandsPlayed int
	Stacks      map[string]int
	Net         map[string]int
}

// Run plays up to the requested number of hands, stopping early when the
// context is cancelled or either stack can no longer cover the ante.
func (m *Manager) Run(ctx context.Context, hands int) (*Result, error) {
	if hands < 1 {
		return nil, fmt.Errorf("hand count must be positive, got %d", hands)
	}
	start := m.Stacks()

	for i := 0; i < hands; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.stacks[0] < m.rules.Ante || m.stacks[1] < m.rules.Ante {
			m.logger.Info("match over, a stack cannot cover the ante",
				"hands", m.handsPlayed)
			break
		}
		if err := m.playHand(ctx); err != nil {
			return nil, err
		}
	}

	res := &Result{
		HandsPlayed: m.handsPlayed,
		Stacks:      m.Stacks(),
		Net:         make(map[string]int, 2),
	}
	for name, stack := range res.Stacks {
		res.Net[name] = stack - start[name]
	}
	return res, nil
}

// playHand deals and runs one complete hand, updating stacks.
func (m *Manager) playHand(ctx context.Context) error {
	// Even hands seat player 0 out of position, odd hands swap.
	opIdx := m.handsPlayed % 2
	ipIdx := 1 - opIdx
	op, ip := m.players[opIdx], m.players[ipIdx]

	deck := game.NewDeck(m.rules)
	deck.Shuffle(m.rng)
	h, err := game.NewHand(m.rules, deck.Deal(), deck.Deal())
	if err != nil {
		return err
	}
	handNo := m.handsPlayed + 1

	m.logger.Debug("hand dealt",
		"hand", handNo,
		"op", op.Name(),
		"ip", ip.Name())
	if m.observer != nil {
		m.observer.HandStarted(handNo, h, op.Name(), ip.Name())
	}

	for !h.IsTerminal() {
		if err := m.thinkPause(ctx); err != nil {
			return err
		}

		actor := op
		if h.ActingPosition() == game.InPosition {
			actor = ip
		}
		pos := h.ActingPosition()

		action, err := m.decide(actor, h)
		if err != nil {
			return fmt.Errorf("hand %d: %s: %w", handNo, actor.Name(), err)
		}
		if err := h.Apply(action); err != nil {
			return fmt.Errorf("hand %d: %s: %w", handNo, actor.Name(), err)
		}

		m.logger.Debug("action",
			"hand", handNo,
			"player", actor.Name(),
			"position", pos,
			"action", action,
			"pot", h.Pot())
		if m.observer != nil {
			m.observer.ActionTaken(actor.Name(), pos, action, h)
		}
	}

	opNet := h.Payoff(game.OutOfPosition)
	m.stacks[opIdx] += opNet
	m.stacks[ipIdx] += h.Payoff(game.InPosition)
	m.handsPlayed++

	record, err := game.NewHandRecord(handNo, h, op.Name(), ip.Name())
	if err != nil {
		return err
	}
	if m.history != nil {
		if err := m.history.Write(record); err != nil {
			return fmt.Errorf("hand %d: record history: %w", handNo, err)
		}
	}
	m.logger.Info("hand finished",
		"hand", handNo,
		"history", h.HistoryString(),
		"pot", h.Pot(),
		"op_net", opNet)
	if m.observer != nil {
		m.observer.HandFinished(record, m.Stacks())
	}
	return nil
}

// decide asks the actor for an action, retrying a bounded number of times on
// illegal choices before folding (or checking when folding is not legal).
func (m *Manager) decide(actor Actor, h *game.HandState) (game.Action, error) {
	legal := h.LegalActions()
	for attempt := 0; attempt < maxRetries; attempt++ {
		action, err := actor.Act(h)
		if err != nil {
			return 0, err
		}
		for _, a := range legal {
			if a == action {
				return action, nil
			}
		}
		m.logger.Warn("illegal action, asking again",
			"player", actor.Name(),
			"action", action)
	}
	m.logger.Warn("too many illegal actions, forcing a default",
		"player", actor.Name())
	for _, a := range legal {
		if a == game.Fold {
			return game.Fold, nil
		}
	}
	return legal[0], nil
}

// thinkPause waits for the configured delay using the injected clock so tests
// stay instantaneous.
func (m *Manager) thinkPause(ctx context.Context) error {
	if m.thinkDelay <= 0 {
		return nil
	}
	fired := make(chan struct{})
	timer := m.clock.AfterFunc(m.thinkDelay, func() {
		close(fired)
	})
	defer timer.Stop()

	select {
	case <-fired:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
