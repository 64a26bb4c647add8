package session

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idea-realm/one-card-limit/internal/game"
	"github.com/idea-realm/one-card-limit/internal/randutil"
	"github.com/idea-realm/one-card-limit/sdk/solver"
	"github.com/idea-realm/one-card-limit/sdk/solver/runtime"
)

func testRules(t *testing.T) game.Rules {
	t.Helper()
	rules, err := game.NewRules(4, 1, 2)
	require.NoError(t, err)
	return rules
}

// alwaysCheckCall checks when possible and calls otherwise, never folding.
func alwaysCheckCall(name string) Actor {
	return ActorFunc{
		ActorName: name,
		Fn: func(h *game.HandState) (game.Action, error) {
			for _, a := range h.LegalActions() {
				if a == game.Check || a == game.Call {
					return a, nil
				}
			}
			return h.LegalActions()[0], nil
		},
	}
}

func TestManagerValidation(t *testing.T) {
	rules := testRules(t)
	rng := randutil.New(1)
	a, b := alwaysCheckCall("a"), alwaysCheckCall("b")

	_, err := NewManager(rules, a, nil, 100, rng)
	assert.Error(t, err)
	_, err = NewManager(rules, a, alwaysCheckCall("a"), 100, rng)
	assert.Error(t, err, "duplicate names must be rejected")
	_, err = NewManager(rules, a, b, 0, rng)
	assert.Error(t, err, "stack below ante must be rejected")
	_, err = NewManager(rules, a, b, 100, nil)
	assert.Error(t, err)
}

func TestRunConservesChips(t *testing.T) {
	rules := testRules(t)
	m, err := NewManager(rules, alwaysCheckCall("a"), alwaysCheckCall("b"), 100, randutil.New(7))
	require.NoError(t, err)

	res, err := m.Run(context.Background(), 50)
	require.NoError(t, err)

	assert.Equal(t, 50, res.HandsPlayed)
	assert.Equal(t, 200, res.Stacks["a"]+res.Stacks["b"], "chips must be conserved")
	assert.Equal(t, 0, res.Net["a"]+res.Net["b"], "match is zero sum")
}

func TestRunAlternatesSeats(t *testing.T) {
	rules := testRules(t)
	var opSeats []string

	obs := &recordingObserver{onStart: func(opName string) {
		opSeats = append(opSeats, opName)
	}}
	m, err := NewManager(rules, alwaysCheckCall("a"), alwaysCheckCall("b"), 100,
		randutil.New(3), WithObserver(obs))
	require.NoError(t, err)

	_, err = m.Run(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a", "b"}, opSeats)
}

type recordingObserver struct {
	onStart  func(opName string)
	finished []game.HandRecord
}

func (o *recordingObserver) HandStarted(handNo int, h *game.HandState, opName, ipName string) {
	if o.onStart != nil {
		o.onStart(opName)
	}
}

func (o *recordingObserver) ActionTaken(string, game.Position, game.Action, *game.HandState) {}

func (o *recordingObserver) HandFinished(record game.HandRecord, stacks map[string]int) {
	o.finished = append(o.finished, record)
}

func TestRunStopsWhenStackCannotCoverAnte(t *testing.T) {
	rules := testRules(t)

	// The folder loses one ante per hand regardless of seat.
	folder := ActorFunc{ActorName: "folder", Fn: func(h *game.HandState) (game.Action, error) {
		for _, a := range h.LegalActions() {
			if a == game.Fold {
				return a, nil
			}
		}
		return game.Check, nil
	}}
	bettor := ActorFunc{ActorName: "bettor", Fn: func(h *game.HandState) (game.Action, error) {
		for _, a := range h.LegalActions() {
			if a == game.Bet {
				return a, nil
			}
		}
		return game.Call, nil
	}}

	m, err := NewManager(rules, folder, bettor, 3, randutil.New(11))
	require.NoError(t, err)

	res, err := m.Run(context.Background(), 1000)
	require.NoError(t, err)
	assert.Less(t, res.HandsPlayed, 1000, "match must end when a stack is exhausted")
	assert.GreaterOrEqual(t, res.Stacks["folder"], 0)
}

func TestIllegalActionsFallBackToDefault(t *testing.T) {
	rules := testRules(t)

	// Always answers with a raise, which is illegal at the root.
	stubborn := ActorFunc{ActorName: "stubborn", Fn: func(h *game.HandState) (game.Action, error) {
		return game.Raise, nil
	}}

	m, err := NewManager(rules, stubborn, alwaysCheckCall("b"), 100, randutil.New(5))
	require.NoError(t, err)

	res, err := m.Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.HandsPlayed)
	assert.Equal(t, 200, res.Stacks["stubborn"]+res.Stacks["b"])
}

func TestHistoryWriterRecordsEveryHand(t *testing.T) {
	rules := testRules(t)
	var buf bytes.Buffer

	m, err := NewManager(rules, alwaysCheckCall("a"), alwaysCheckCall("b"), 100,
		randutil.New(9), WithHistoryWriter(game.NewHistoryWriter(&buf)))
	require.NoError(t, err)

	_, err = m.Run(context.Background(), 5)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	for i, line := range lines {
		var rec game.HandRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, i+1, rec.Hand)
		assert.Equal(t, 0, rec.OPNet+rec.IPNet, "recorded hand must be zero sum")
	}
}

func TestThinkDelayUsesInjectedClock(t *testing.T) {
	rules := testRules(t)
	mClock := quartz.NewMock(t)

	m, err := NewManager(rules, alwaysCheckCall("a"), alwaysCheckCall("b"), 100,
		randutil.New(2), WithClock(mClock), WithThinkDelay(time.Second))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := m.Run(context.Background(), 1)
		done <- err
	}()

	// Drive the mock clock forward until the hand finishes. Each decision
	// waits behind a one second timer, so real time never passes.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			assert.Equal(t, 1, m.HandsPlayed())
			return
		default:
			mClock.Advance(100 * time.Millisecond).MustWait(ctx)
		}
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	rules := testRules(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := NewManager(rules, alwaysCheckCall("a"), alwaysCheckCall("b"), 100, randutil.New(4))
	require.NoError(t, err)
	_, err = m.Run(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluateIsSeedDeterministic(t *testing.T) {
	rules, err := game.NewRules(3, 1, 1)
	require.NoError(t, err)

	trainer, err := solver.NewTrainer(rules, solver.TrainingConfig{Iterations: 500, Workers: 1})
	require.NoError(t, err)
	require.NoError(t, trainer.Run(context.Background(), nil))
	policy, err := runtime.FromBlueprint(trainer.Blueprint())
	require.NoError(t, err)

	first, err := Evaluate(context.Background(), rules, policy, policy, 200, 17)
	require.NoError(t, err)
	second, err := Evaluate(context.Background(), rules, policy, policy, 200, 17)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 200, first.Hands)
	assert.Equal(t, 0, first.NetA+first.NetB)
}

func TestEvaluateRejectsIncompatiblePolicy(t *testing.T) {
	rules, err := game.NewRules(3, 1, 1)
	require.NoError(t, err)
	other, err := game.NewRules(4, 1, 1)
	require.NoError(t, err)

	trainer, err := solver.NewTrainer(other, solver.TrainingConfig{Iterations: 1, Workers: 1})
	require.NoError(t, err)
	require.NoError(t, trainer.Run(context.Background(), nil))
	policy, err := runtime.FromBlueprint(trainer.Blueprint())
	require.NoError(t, err)

	_, err = Evaluate(context.Background(), rules, policy, policy, 10, 1)
	assert.Error(t, err)
}
