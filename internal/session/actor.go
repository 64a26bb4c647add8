// Package session runs hands between two actors, tracking stacks and seat
// rotation across a match and recording hand history.
package session

import (
	"errors"
	rand "math/rand/v2"

	"github.com/idea-realm/one-card-limit/internal/game"
	"github.com/idea-realm/one-card-limit/sdk/solver/runtime"
)

// Actor is anything that can choose an action for a live hand: a trained
// policy, a human at a terminal, or a remote player. Actors receive the hand
// state read-only and must pick from its legal actions.
type Actor interface {
	Name() string
	Act(h *game.HandState) (game.Action, error)
}

// PolicyActor plays according to a trained blueprint policy.
type PolicyActor struct {
	name   string
	policy *runtime.Policy
	rng    *rand.Rand
}

// NewPolicyActor wraps a policy as an actor. The random source drives action
// sampling and must not be shared with concurrent users.
func NewPolicyActor(name string, policy *runtime.Policy, rng *rand.Rand) (*PolicyActor, error) {
	if policy == nil {
		return nil, errors.New("nil policy")
	}
	if rng == nil {
		return nil, errors.New("nil random source")
	}
	return &PolicyActor{name: name, policy: policy, rng: rng}, nil
}

func (a *PolicyActor) Name() string { return a.name }

func (a *PolicyActor) Act(h *game.HandState) (game.Action, error) {
	return a.policy.Decide(h, a.rng)
}

// ActorFunc adapts a plain function into an Actor, mostly for tests and
// scripted opponents.
type ActorFunc struct {
	ActorName string
	Fn        func(h *game.HandState) (game.Action, error)
}

func (a ActorFunc) Name() string { return a.ActorName }

func (a ActorFunc) Act(h *game.HandState) (game.Action, error) { return a.Fn(h) }
