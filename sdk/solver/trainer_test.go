package solver

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/idea-realm/one-card-limit/internal/game"
)

func mustRules(t *testing.T, deck, ante, raises int) game.Rules {
	t.Helper()
	r, err := game.NewRules(deck, ante, raises)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	return r
}

func trainTable(t *testing.T, rules game.Rules, cfg TrainingConfig) *Trainer {
	t.Helper()
	trainer, err := NewTrainer(rules, cfg)
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}
	if err := trainer.Run(context.Background(), nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	return trainer
}

func tablesEqual(t *testing.T, a, b *RegretTable) {
	t.Helper()
	ea, eb := a.Entries(), b.Entries()
	if len(ea) != len(eb) {
		t.Fatalf("table sizes differ: %d vs %d", len(ea), len(eb))
	}
	for key, entryA := range ea {
		entryB, ok := eb[key]
		if !ok {
			t.Fatalf("key %s missing from second table", key)
		}
		for i := range entryA.RegretSum {
			if entryA.RegretSum[i] != entryB.RegretSum[i] {
				t.Fatalf("%s regret[%d]: %v vs %v", key, i, entryA.RegretSum[i], entryB.RegretSum[i])
			}
			if entryA.StrategySum[i] != entryB.StrategySum[i] {
				t.Fatalf("%s strategy[%d]: %v vs %v", key, i, entryA.StrategySum[i], entryB.StrategySum[i])
			}
		}
	}
}

func TestNewTrainerValidatesInputs(t *testing.T) {
	rules := mustRules(t, 3, 1, 1)

	if _, err := NewTrainer(game.Rules{DeckSize: 2, Ante: 1}, DefaultTrainingConfig()); err == nil {
		t.Fatal("expected error for invalid rules")
	}
	if _, err := NewTrainer(rules, TrainingConfig{Iterations: 0}); err == nil {
		t.Fatal("expected error for zero iterations")
	}
}

// Exhaustive deal enumeration has no chance sampling, so two runs with the
// same inputs must produce bit-identical accumulator tables.
func TestTrainingIsDeterministic(t *testing.T) {
	rules := mustRules(t, 4, 1, 2)
	cfg := TrainingConfig{Iterations: 50, Workers: 1}

	a := trainTable(t, rules, cfg)
	b := trainTable(t, rules, cfg)
	tablesEqual(t, a.Table(), b.Table())
}

func TestParallelTrainingIsDeterministic(t *testing.T) {
	rules := mustRules(t, 5, 1, 2)
	cfg := TrainingConfig{Iterations: 30, Workers: 4}

	a := trainTable(t, rules, cfg)
	b := trainTable(t, rules, cfg)
	tablesEqual(t, a.Table(), b.Table())
}

func TestAverageStrategiesAreDistributions(t *testing.T) {
	rules := mustRules(t, 3, 1, 2)
	trainer := trainTable(t, rules, TrainingConfig{Iterations: 10, Workers: 1})

	entries := trainer.Table().Entries()
	if len(entries) == 0 {
		t.Fatal("expected visited information sets")
	}
	for key, entry := range entries {
		avg := entry.AverageStrategy()
		sum := 0.0
		for i, p := range avg {
			if p < 0 {
				t.Fatalf("%s: negative probability %v", key, p)
			}
			if p == 0 && entry.StrategySum[i] != 0 {
				t.Fatalf("%s: zero probability despite non-zero strategy sum", key)
			}
			sum += p
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Fatalf("%s: probabilities sum to %v", key, sum)
		}
	}
}

// With deck size 3 and no raises, the game is exactly Kuhn poker: OP's
// equilibrium value is -1/18 and several pure equilibrium actions are known.
func TestConvergesToKuhnEquilibrium(t *testing.T) {
	rules := mustRules(t, 3, 1, 0)
	trainer := trainTable(t, rules, TrainingConfig{Iterations: 5000, Workers: 1})

	gv := trainer.GameValue()
	if math.Abs(gv-(-1.0/18.0)) > 0.01 {
		t.Fatalf("game value %v, want about %v", gv, -1.0/18.0)
	}

	// OP never opens with a bet holding the middle card in any equilibrium.
	middleOpen := trainer.Table().Lookup(InfoSetKey{Position: game.OutOfPosition, Card: 2, History: ""})
	if middleOpen == nil {
		t.Fatal("OP middle card root infoset never visited")
	}
	avg := middleOpen.AverageStrategy()
	// Root legal actions are [check, bet].
	if avg[1] > 0.05 {
		t.Fatalf("OP bets the middle card with probability %v, want near 0", avg[1])
	}

	// IP holding the worst card always folds when facing a bet.
	worstFacingBet := trainer.Table().Lookup(InfoSetKey{Position: game.InPosition, Card: 1, History: "b"})
	if worstFacingBet == nil {
		t.Fatal("IP worst card facing bet never visited")
	}
	avg = worstFacingBet.AverageStrategy()
	// Legal actions with no raises left are [call, fold].
	if avg[1] < 0.95 {
		t.Fatalf("IP folds the worst card with probability %v, want near 1", avg[1])
	}
}

func TestCFRPlusConvergesToo(t *testing.T) {
	rules := mustRules(t, 3, 1, 0)
	trainer := trainTable(t, rules, TrainingConfig{Iterations: 2000, Workers: 1, UseCFRPlus: true})

	gv := trainer.GameValue()
	if math.Abs(gv-(-1.0/18.0)) > 0.01 {
		t.Fatalf("CFR+ game value %v, want about %v", gv, -1.0/18.0)
	}
}

func TestProgressCallbackFires(t *testing.T) {
	rules := mustRules(t, 3, 1, 1)
	trainer, err := NewTrainer(rules, TrainingConfig{Iterations: 10, Workers: 1, ProgressEvery: 5})
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}

	var calls []Progress
	if err := trainer.Run(context.Background(), func(p Progress) {
		calls = append(calls, p)
	}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(calls) < 2 {
		t.Fatalf("expected at least 2 progress callbacks, got %d", len(calls))
	}
	last := calls[len(calls)-1]
	if last.Iteration != 10 {
		t.Fatalf("final progress iteration %d, want 10", last.Iteration)
	}
	if last.InfoSets == 0 || last.Stats.NodesVisited == 0 {
		t.Fatalf("progress missing stats: %+v", last)
	}
}

func TestRunHonoursContextCancellation(t *testing.T) {
	rules := mustRules(t, 3, 1, 1)
	trainer, err := NewTrainer(rules, TrainingConfig{Iterations: 1000000, Workers: 1})
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := trainer.Run(ctx, nil); err == nil {
		t.Fatal("expected context error")
	}
}

func TestCheckpointResumeMatchesStraightRun(t *testing.T) {
	rules := mustRules(t, 3, 1, 2)

	straight := trainTable(t, rules, TrainingConfig{Iterations: 10, Workers: 1})

	partial := trainTable(t, rules, TrainingConfig{Iterations: 5, Workers: 1})
	path := filepath.Join(t.TempDir(), "trainer.ckpt.json")
	if err := partial.SaveCheckpoint(path); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	resumed, err := LoadTrainerFromCheckpoint(path)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if resumed.Iteration() != 5 {
		t.Fatalf("resumed at iteration %d, want 5", resumed.Iteration())
	}
	if err := resumed.SetTotalIterations(10); err != nil {
		t.Fatalf("extend iterations: %v", err)
	}
	if err := resumed.Run(context.Background(), nil); err != nil {
		t.Fatalf("resume run: %v", err)
	}

	tablesEqual(t, straight.Table(), resumed.Table())
}

func TestSetTotalIterationsRejectsRollback(t *testing.T) {
	rules := mustRules(t, 3, 1, 0)
	trainer := trainTable(t, rules, TrainingConfig{Iterations: 5, Workers: 1})
	if err := trainer.SetTotalIterations(3); err == nil {
		t.Fatal("expected error shrinking below completed iterations")
	}
}
