// Package runtime exposes read-only access to trained blueprints for live
// play: probability lookups and action sampling, never training-time regret
// matching.
package runtime

import (
	"errors"
	"fmt"
	rand "math/rand/v2"

	"github.com/idea-realm/one-card-limit/internal/game"
	"github.com/idea-realm/one-card-limit/sdk/solver"
)

// Policy is an immutable view over a blueprint's averaged strategies.
type Policy struct {
	blueprint *solver.Blueprint
}

// Load constructs a runtime policy from a stored blueprint file.
func Load(path string) (*Policy, error) {
	bp, err := solver.LoadBlueprint(path)
	if err != nil {
		return nil, err
	}
	return &Policy{blueprint: bp}, nil
}

// FromBlueprint wraps an in-memory blueprint, typically straight after
// training.
func FromBlueprint(bp *solver.Blueprint) (*Policy, error) {
	if bp == nil {
		return nil, errors.New("nil blueprint")
	}
	return &Policy{blueprint: bp}, nil
}

// Blueprint returns the underlying blueprint metadata (read-only).
func (p *Policy) Blueprint() *solver.Blueprint {
	if p == nil {
		return nil
	}
	return p.blueprint
}

// Rules returns the rule set the policy was trained for.
func (p *Policy) Rules() game.Rules {
	return p.blueprint.Rules
}

// CompatibleWith reports whether the policy may drive play under the given
// rules.
func (p *Policy) CompatibleWith(rules game.Rules) error {
	if p == nil || p.blueprint == nil {
		return errors.New("nil policy")
	}
	return p.blueprint.CompatibleWith(rules)
}

// ActionWeights returns the stored probability distribution for the key, or a
// uniform distribution when the information set was never visited during
// training. The permissive fallback keeps partially trained policies playable.
func (p *Policy) ActionWeights(key solver.InfoSetKey, actionCount int) ([]float64, error) {
	if p == nil || p.blueprint == nil {
		return nil, errors.New("nil policy")
	}
	if actionCount <= 0 {
		return nil, errors.New("action count must be positive")
	}

	if strat, ok := p.blueprint.Strategy(key); ok && len(strat) == actionCount {
		return append([]float64(nil), strat...), nil
	}

	out := make([]float64, actionCount)
	v := 1.0 / float64(actionCount)
	for i := range out {
		out[i] = v
	}
	return out, nil
}

// Sample draws one of the legal actions according to the policy. The random
// source is always supplied by the caller; the policy itself holds none, so
// play stays reproducible under a fixed seed.
func (p *Policy) Sample(key solver.InfoSetKey, actions []game.Action, rng *rand.Rand) (game.Action, error) {
	if len(actions) == 0 {
		return 0, errors.New("no legal actions to sample")
	}
	if rng == nil {
		return 0, errors.New("nil random source")
	}

	weights, err := p.ActionWeights(key, len(actions))
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, w := range weights {
		if w < 0 {
			return 0, fmt.Errorf("negative weight %v in policy for %s", w, key)
		}
		total += w
	}
	if total <= 0 {
		return actions[rng.IntN(len(actions))], nil
	}

	r := rng.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return actions[i], nil
		}
	}
	return actions[len(actions)-1], nil
}

// Decide looks up the distribution for the acting player of a live hand and
// samples their action. This is the single entry point the session layer and
// server use.
func (p *Policy) Decide(h *game.HandState, rng *rand.Rand) (game.Action, error) {
	pos := h.ActingPosition()
	key := solver.InfoSetKey{
		Position: pos,
		Card:     h.CardFor(pos),
		History:  h.HistoryString(),
	}
	return p.Sample(key, h.LegalActions(), rng)
}
