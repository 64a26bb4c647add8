package solver

import (
	"github.com/idea-realm/one-card-limit/internal/game"
)

// gameValue computes OP's expected payoff over all deals when both players
// follow the distributions returned by strat.
func gameValue(rules game.Rules, strat func(InfoSetKey, int) []float64) float64 {
	total := 0.0
	weight := game.DealWeight(rules)
	for _, d := range game.Deals(rules) {
		h, err := game.NewHand(rules, d.OP, d.IP)
		if err != nil {
			continue
		}
		total += weight * expectedValue(h, strat)
	}
	return total
}

func expectedValue(h *game.HandState, strat func(InfoSetKey, int) []float64) float64 {
	if h.IsTerminal() {
		return float64(h.Payoff(game.OutOfPosition))
	}

	pos := h.ActingPosition()
	actions := h.LegalActions()
	key := InfoSetKey{Position: pos, Card: h.CardFor(pos), History: h.HistoryString()}
	probs := strat(key, len(actions))

	value := 0.0
	for i, a := range actions {
		if probs[i] == 0 {
			continue
		}
		next := h.Clone()
		if err := next.Apply(a); err != nil {
			continue
		}
		value += probs[i] * expectedValue(next, strat)
	}
	return value
}
