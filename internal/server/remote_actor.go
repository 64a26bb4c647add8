package server

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/idea-realm/one-card-limit/internal/game"
)

// remoteActor plays for the connected client. Each decision sends an
// action_required frame and waits for the matching player_decision, folding
// on timeout so one silent client cannot stall the match.
type remoteActor struct {
	name     string
	conn     *playConn
	logger   *log.Logger
	clock    quartz.Clock
	timeout  time.Duration
	decision chan game.Action
	gone     chan struct{}
}

func newRemoteActor(name string, conn *playConn, logger *log.Logger, timeout time.Duration, clock quartz.Clock) *remoteActor {
	return &remoteActor{
		name:     name,
		conn:     conn,
		logger:   logger,
		clock:    clock,
		timeout:  timeout,
		decision: make(chan game.Action, 1),
		gone:     make(chan struct{}),
	}
}

func (a *remoteActor) Name() string { return a.name }

func (a *remoteActor) Act(h *game.HandState) (game.Action, error) {
	pos := h.ActingPosition()
	legal := h.LegalActions()
	names := make([]string, len(legal))
	for i, act := range legal {
		names[i] = act.String()
	}

	data := ActionRequiredData{
		Card:           h.CardFor(pos).Glyph(h.Rules()),
		Pot:            h.Pot(),
		ToCall:         h.FacingBet(),
		ValidActions:   names,
		TimeoutSeconds: int(a.timeout / time.Second),
	}
	if err := a.conn.send(MessageTypeActionRequired, data); err != nil {
		return 0, err
	}

	timedOut := make(chan struct{})
	timer := a.clock.AfterFunc(a.timeout, func() {
		close(timedOut)
	})
	defer timer.Stop()

	select {
	case action := <-a.decision:
		return action, nil

	case <-timedOut:
		a.logger.Warn("decision timeout, folding for player", "player", a.name)
		return a.defaultAction(legal), nil

	case <-a.gone:
		a.logger.Info("player disconnected mid-hand, folding", "player", a.name)
		return a.defaultAction(legal), nil
	}
}

// defaultAction folds when legal, otherwise checks the hand down.
func (a *remoteActor) defaultAction(legal []game.Action) game.Action {
	for _, act := range legal {
		if act == game.Fold {
			return game.Fold
		}
	}
	return legal[0]
}

// handleDecision routes a frame from the read pump into a waiting Act call.
// Frames that arrive while no decision is pending are dropped.
func (a *remoteActor) handleDecision(data PlayerDecisionData) {
	action, err := game.ParseAction(data.Action)
	if err != nil {
		a.logger.Warn("unparseable action from client", "action", data.Action)
		_ = a.conn.sendError("bad_action", "unknown action "+data.Action)
		return
	}
	select {
	case a.decision <- action:
	default:
		a.logger.Debug("dropping decision, none pending", "action", data.Action)
	}
}

// disconnected tells a blocked Act call to give up.
func (a *remoteActor) disconnected() {
	close(a.gone)
}
