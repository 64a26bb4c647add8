package game

import (
	"fmt"
	"slices"
)

// HandState is the mutable state of a single hand. Everything except the two
// private cards is public: the betting position, pot, facing bet and raise
// count are all pure functions of the rules and the action history.
type HandState struct {
	rules   Rules
	cards   [2]Card
	history []Action

	acting    Position
	facingBet int
	raises    int
	pot       int
	contrib   [2]int

	over     bool
	showdown bool
	winner   Position
}

// NewHand starts a hand with both antes posted and OP to act. The two cards
// must be distinct ranks from the rule set's deck.
func NewHand(r Rules, opCard, ipCard Card) (*HandState, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	for _, c := range [2]Card{opCard, ipCard} {
		if int(c) < 1 || int(c) > r.DeckSize {
			return nil, fmt.Errorf("card %d outside deck of size %d", c, r.DeckSize)
		}
	}
	if opCard == ipCard {
		return nil, fmt.Errorf("both players dealt card %d", opCard)
	}
	h := &HandState{
		rules:  r,
		cards:  [2]Card{opCard, ipCard},
		acting: OutOfPosition,
		pot:    2 * r.Ante,
	}
	h.contrib[OutOfPosition] = r.Ante
	h.contrib[InPosition] = r.Ante
	return h, nil
}

// Replay rebuilds a hand from a recorded action sequence, failing on the
// first illegal action.
func Replay(r Rules, opCard, ipCard Card, actions []Action) (*HandState, error) {
	h, err := NewHand(r, opCard, ipCard)
	if err != nil {
		return nil, err
	}
	for _, a := range actions {
		if err := h.Apply(a); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// LegalActions returns the actions available to the acting player. The set
// depends only on the facing bet and the raise count, never on anything else
// in the history.
func (h *HandState) LegalActions() []Action {
	if h.over {
		return nil
	}
	if h.facingBet == 0 {
		return []Action{Check, Bet}
	}
	if h.raises < h.rules.MaxRaises {
		return []Action{Call, Raise, Fold}
	}
	return []Action{Call, Fold}
}

// Apply advances the hand by one action. An action outside the legal set is a
// caller bug and returns an error without mutating the hand.
func (h *HandState) Apply(a Action) error {
	if h.over {
		return fmt.Errorf("hand is over, cannot %s", a)
	}
	if !slices.Contains(h.LegalActions(), a) {
		return fmt.Errorf("illegal action %s for %s (facing %d, %d raises used)", a, h.acting, h.facingBet, h.raises)
	}

	switch a {
	case Check:
		// A check by IP only happens after OP checked, which ends the hand.
		if h.acting == InPosition {
			h.finish(true)
		}
	case Bet:
		h.facingBet = h.rules.Ante
		h.put(h.facingBet)
	case Call:
		h.put(h.facingBet)
		h.finish(true)
	case Raise:
		h.facingBet *= 2
		h.put(h.facingBet)
		h.raises++
	case Fold:
		h.winner = h.acting.Opponent()
		h.finish(false)
	}

	h.history = append(h.history, a)
	h.acting = h.acting.Opponent()
	return nil
}

func (h *HandState) put(chips int) {
	h.pot += chips
	h.contrib[h.acting] += chips
}

func (h *HandState) finish(showdown bool) {
	h.over = true
	h.showdown = showdown
	if showdown {
		h.winner = OutOfPosition
		if h.cards[InPosition].Beats(h.cards[OutOfPosition]) {
			h.winner = InPosition
		}
	}
}

// IsTerminal reports whether the hand has ended.
func (h *HandState) IsTerminal() bool {
	return h.over
}

// Showdown reports whether a terminal hand ended by card comparison rather
// than a fold.
func (h *HandState) Showdown() bool {
	return h.over && h.showdown
}

// Winner returns the winning position of a terminal hand.
func (h *HandState) Winner() (Position, error) {
	if !h.over {
		return 0, fmt.Errorf("hand is not over")
	}
	return h.winner, nil
}

// Payoff returns the net chip result for the given position: the winner gains
// the loser's total contribution, the loser loses their own. The two payoffs
// always sum to zero.
func (h *HandState) Payoff(pos Position) int {
	if !h.over {
		return 0
	}
	if pos == h.winner {
		return h.pot - h.contrib[pos]
	}
	return -h.contrib[pos]
}

// ActingPosition returns whose turn it is.
func (h *HandState) ActingPosition() Position {
	return h.acting
}

// CardFor returns the private card held by the given position.
func (h *HandState) CardFor(pos Position) Card {
	return h.cards[pos]
}

// Pot returns the chips in the middle, antes included.
func (h *HandState) Pot() int {
	return h.pot
}

// FacingBet returns the amount the acting player must call.
func (h *HandState) FacingBet() int {
	return h.facingBet
}

// RaisesUsed returns how many raises the hand has seen.
func (h *HandState) RaisesUsed() int {
	return h.raises
}

// Contribution returns the chips the given position has put in, ante included.
func (h *HandState) Contribution(pos Position) int {
	return h.contrib[pos]
}

// Rules returns the rule set this hand is played under.
func (h *HandState) Rules() Rules {
	return h.rules
}

// History returns a copy of the actions taken so far.
func (h *HandState) History() []Action {
	return slices.Clone(h.history)
}

// HistoryString returns the compact public history, e.g. "brc".
func (h *HandState) HistoryString() string {
	return EncodeHistory(h.history)
}

// Clone returns an independent copy of the hand.
func (h *HandState) Clone() *HandState {
	dup := *h
	dup.history = slices.Clone(h.history)
	return &dup
}

func (h *HandState) String() string {
	s := fmt.Sprintf("%s%s", h.cards[OutOfPosition].Glyph(h.rules), h.cards[InPosition].Glyph(h.rules))
	if len(h.history) > 0 {
		s += "-(" + h.HistoryString() + ")"
	}
	return s
}
