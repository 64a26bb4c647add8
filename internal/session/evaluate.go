package session

import (
	"context"
	"fmt"

	"github.com/idea-realm/one-card-limit/internal/game"
	"github.com/idea-realm/one-card-limit/internal/randutil"
	"github.com/idea-realm/one-card-limit/sdk/solver/runtime"
)

// EvalResult reports a head-to-head match between two policies.
type EvalResult struct {
	Hands    int
	NetA     int
	NetB     int
	PerHandA float64 // player A's average net per hand, in antes
}

// Evaluate plays two policies against each other for the given number of
// hands under a fixed seed. Seats alternate each hand, so the result is not
// skewed by position.
func Evaluate(ctx context.Context, rules game.Rules, a, b *runtime.Policy, hands int, seed int64) (*EvalResult, error) {
	if err := a.CompatibleWith(rules); err != nil {
		return nil, fmt.Errorf("policy A: %w", err)
	}
	if err := b.CompatibleWith(rules); err != nil {
		return nil, fmt.Errorf("policy B: %w", err)
	}

	rng := randutil.New(seed)
	actorA, err := NewPolicyActor("A", a, rng)
	if err != nil {
		return nil, err
	}
	actorB, err := NewPolicyActor("B", b, rng)
	if err != nil {
		return nil, err
	}

	// Stacks are bookkeeping only here; size them so no realistic match can
	// bust a player mid-run.
	stack := hands * rules.Ante * (1 << (rules.MaxRaises + 1))
	m, err := NewManager(rules, actorA, actorB, stack, rng)
	if err != nil {
		return nil, err
	}

	res, err := m.Run(ctx, hands)
	if err != nil {
		return nil, err
	}

	er := &EvalResult{
		Hands: res.HandsPlayed,
		NetA:  res.Net["A"],
		NetB:  res.Net["B"],
	}
	if er.Hands > 0 {
		er.PerHandA = float64(er.NetA) / float64(er.Hands) / float64(rules.Ante)
	}
	return er, nil
}
