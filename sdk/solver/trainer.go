package solver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/idea-realm/one-card-limit/internal/game"
)

// TraversalStats captures instrumentation metrics for a single CFR iteration.
type TraversalStats struct {
	NodesVisited  int64
	TerminalNodes int64
	MaxDepth      int
	IterationTime time.Duration
}

// Progress contains metadata emitted during long-running training.
type Progress struct {
	Iteration int
	InfoSets  int
	GameValue float64
	Stats     TraversalStats
}

// Trainer runs exhaustive vanilla CFR over the one card limit game tree. Each
// iteration walks every ordered deal at weight 1/(N*(N-1)), so the run is
// fully deterministic: no chance sampling, no seeds.
type Trainer struct {
	rules     game.Rules
	cfg       TrainingConfig
	regrets   *RegretTable
	iteration atomic.Int64

	statsMu sync.Mutex
	stats   TraversalStats

	checkpointPath  string
	checkpointEvery int
}

// NewTrainer constructs a trainer for the given rules and training config.
func NewTrainer(rules game.Rules, cfg TrainingConfig) (*Trainer, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Trainer{
		rules:   rules,
		cfg:     cfg,
		regrets: NewRegretTable(),
	}, nil
}

// Run executes the configured number of iterations, resuming from wherever a
// restored checkpoint left off. Iteration boundaries are the only points where
// cancellation and checkpointing happen.
func (t *Trainer) Run(ctx context.Context, progress func(Progress)) error {
	batch := t.cfg.Iterations / 100
	if batch == 0 {
		batch = 1
	}
	if t.cfg.ProgressEvery > 0 {
		batch = t.cfg.ProgressEvery
	}

	for i := int(t.iteration.Load()); i < t.cfg.Iterations; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		startIter := time.Now()
		stats, err := t.singleIteration(i + 1)
		if err != nil {
			return err
		}
		stats.IterationTime = time.Since(startIter)
		t.setStats(stats)
		iter := int(t.iteration.Add(1))

		if t.checkpointPath != "" && t.checkpointEvery > 0 && iter%t.checkpointEvery == 0 {
			if err := t.SaveCheckpoint(t.checkpointPath); err != nil {
				return err
			}
		}

		if progress != nil && iter%batch == 0 {
			progress(t.progress(stats))
		}
	}

	if progress != nil {
		progress(t.progress(t.Stats()))
	}

	if t.checkpointPath != "" && t.checkpointEvery > 0 {
		if err := t.SaveCheckpoint(t.checkpointPath); err != nil {
			return err
		}
	}
	return nil
}

func (t *Trainer) progress(stats TraversalStats) Progress {
	return Progress{
		Iteration: int(t.iteration.Load()),
		InfoSets:  t.regrets.Size(),
		GameValue: t.GameValue(),
		Stats:     stats,
	}
}

func (t *Trainer) singleIteration(iter int) (TraversalStats, error) {
	deals := game.Deals(t.rules)
	weight := game.DealWeight(t.rules)
	opts := t.updateOpts(iter)

	if t.cfg.Workers <= 1 {
		stats := TraversalStats{}
		src := &tableSource{table: t.regrets, opts: opts}
		for _, d := range deals {
			h, err := game.NewHand(t.rules, d.OP, d.IP)
			if err != nil {
				return stats, err
			}
			t.traverse(src, h, 1.0, 1.0, weight, &stats, 0)
		}
		return stats, nil
	}

	return t.parallelIteration(deals, weight, opts)
}

func (t *Trainer) updateOpts(iter int) RegretUpdateOptions {
	return RegretUpdateOptions{
		ClampNegativeRegrets: t.cfg.UseCFRPlus,
		LinearAveraging:      t.cfg.UseCFRPlus,
		Iteration:            iter,
	}
}

// Blueprint materialises the averaged strategy accumulated so far, stamped
// with the rules it is only valid for.
func (t *Trainer) Blueprint() *Blueprint {
	entries := t.regrets.Entries()
	strategies := make(map[string][]float64, len(entries))
	for key, entry := range entries {
		strategies[key.String()] = entry.AverageStrategy()
	}
	return &Blueprint{
		Version:     blueprintFileVersion,
		GeneratedAt: time.Now().UTC(),
		Iterations:  int(t.iteration.Load()),
		Rules:       t.rules,
		Strategies:  strategies,
	}
}

// GameValue returns OP's expected chips per hand when both players follow the
// averaged strategy accumulated so far, uniform at unvisited sets.
func (t *Trainer) GameValue() float64 {
	return gameValue(t.rules, func(key InfoSetKey, n int) []float64 {
		if e := t.regrets.Lookup(key); e != nil {
			return e.AverageStrategy()
		}
		s := make([]float64, n)
		uniform(s)
		return s
	})
}

// Table exposes the regret table for inspection; callers must not mutate it.
func (t *Trainer) Table() *RegretTable {
	return t.regrets
}

// Rules returns the rule set this trainer was built for.
func (t *Trainer) Rules() game.Rules {
	return t.rules
}

// TrainingConfig returns the active training parameters.
func (t *Trainer) TrainingConfig() TrainingConfig {
	return t.cfg
}

// Iteration returns the number of completed iterations.
func (t *Trainer) Iteration() int64 {
	return t.iteration.Load()
}

// SetTotalIterations extends or shortens the run target, typically after
// resuming from a checkpoint.
func (t *Trainer) SetTotalIterations(n int) error {
	current := int(t.iteration.Load())
	if n < current {
		return errTooFewIterations(n, current)
	}
	t.cfg.Iterations = n
	return nil
}

// SetProgressEvery overrides the progress callback interval.
func (t *Trainer) SetProgressEvery(n int) {
	if n < 0 {
		n = 0
	}
	t.cfg.ProgressEvery = n
}

func (t *Trainer) setStats(stats TraversalStats) {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	t.stats = stats
}

// Stats returns the most recent iteration's traversal statistics.
func (t *Trainer) Stats() TraversalStats {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.stats
}
