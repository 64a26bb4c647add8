package solver

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/idea-realm/one-card-limit/internal/game"
)

// strategySource abstracts where the traversal reads current strategies and
// writes accumulator updates. Sequential training reads and writes the shared
// table in place; parallel workers read the iteration-start table and buffer
// their writes for a merge at the iteration boundary.
type strategySource interface {
	strategy(key InfoSetKey, actionCount int) []float64
	update(key InfoSetKey, regrets, strategy []float64, reachWeight float64)
}

type tableSource struct {
	table *RegretTable
	opts  RegretUpdateOptions
}

func (s *tableSource) strategy(key InfoSetKey, actionCount int) []float64 {
	return s.table.Get(key, actionCount).Strategy()
}

func (s *tableSource) update(key InfoSetKey, regrets, strategy []float64, reachWeight float64) {
	s.table.Get(key, len(regrets)).Update(regrets, strategy, reachWeight, s.opts)
}

// deltaSource buffers updates against a read-only view of the base table.
// Keys keep first-seen order so merges are reproducible.
type deltaSource struct {
	base   *RegretTable
	opts   RegretUpdateOptions
	order  []InfoSetKey
	deltas map[InfoSetKey]*accumulatorDelta
}

type accumulatorDelta struct {
	regrets  []float64
	strategy []float64
}

func newDeltaSource(base *RegretTable, opts RegretUpdateOptions) *deltaSource {
	return &deltaSource{
		base:   base,
		opts:   opts,
		deltas: make(map[InfoSetKey]*accumulatorDelta),
	}
}

func (s *deltaSource) strategy(key InfoSetKey, actionCount int) []float64 {
	if entry := s.base.Lookup(key); entry != nil {
		return entry.Strategy()
	}
	strat := make([]float64, actionCount)
	uniform(strat)
	return strat
}

func (s *deltaSource) update(key InfoSetKey, regrets, strategy []float64, reachWeight float64) {
	d, ok := s.deltas[key]
	if !ok {
		d = &accumulatorDelta{
			regrets:  make([]float64, len(regrets)),
			strategy: make([]float64, len(regrets)),
		}
		s.deltas[key] = d
		s.order = append(s.order, key)
	}

	weight := reachWeight
	if s.opts.LinearAveraging {
		iter := s.opts.Iteration
		if iter <= 0 {
			iter = 1
		}
		weight *= float64(iter)
	}
	for i := range regrets {
		d.regrets[i] += regrets[i]
		d.strategy[i] += weight * strategy[i]
	}
}

func (s *deltaSource) mergeInto(table *RegretTable) {
	for _, key := range s.order {
		d := s.deltas[key]
		table.Get(key, len(d.regrets)).merge(d.regrets, d.strategy, s.opts.ClampNegativeRegrets)
	}
}

func (e *RegretEntry) merge(regrets, strategySum []float64, clamp bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	for i := range regrets {
		e.RegretSum[i] += regrets[i]
		if clamp && e.RegretSum[i] < 0 {
			e.RegretSum[i] = 0
		}
		e.StrategySum[i] += strategySum[i]
	}
}

// traverse evaluates the betting subtree below h and returns OP's expected
// payoff. reachOP and reachIP are each player's probability of playing to h;
// dealWeight is the chance probability of the deal and scales every update.
func (t *Trainer) traverse(src strategySource, h *game.HandState, reachOP, reachIP, dealWeight float64, stats *TraversalStats, depth int) float64 {
	stats.NodesVisited++
	if depth > stats.MaxDepth {
		stats.MaxDepth = depth
	}

	if h.IsTerminal() {
		stats.TerminalNodes++
		return float64(h.Payoff(game.OutOfPosition))
	}

	pos := h.ActingPosition()
	actions := h.LegalActions()
	key := InfoSetKey{Position: pos, Card: h.CardFor(pos), History: h.HistoryString()}
	strat := src.strategy(key, len(actions))

	util := make([]float64, len(actions))
	nodeValue := 0.0
	for i, a := range actions {
		next := h.Clone()
		if err := next.Apply(a); err != nil {
			// LegalActions and Apply disagree only on a broken state machine.
			panic(fmt.Sprintf("traversal applied illegal action: %v", err))
		}
		if pos == game.OutOfPosition {
			util[i] = t.traverse(src, next, reachOP*strat[i], reachIP, dealWeight, stats, depth+1)
		} else {
			util[i] = t.traverse(src, next, reachOP, reachIP*strat[i], dealWeight, stats, depth+1)
		}
		nodeValue += strat[i] * util[i]
	}

	// Utilities are from OP's perspective; IP regrets flip the sign. Regret
	// scales by the opponent's counterfactual reach, the strategy sum by the
	// actor's own reach.
	sign, ownReach, oppReach := 1.0, reachOP, reachIP
	if pos == game.InPosition {
		sign, ownReach, oppReach = -1.0, reachIP, reachOP
	}

	regrets := make([]float64, len(actions))
	for i := range actions {
		regrets[i] = sign * (util[i] - nodeValue) * oppReach * dealWeight
	}
	src.update(key, regrets, strat, ownReach*dealWeight)

	return nodeValue
}

func (t *Trainer) parallelIteration(deals []game.Deal, weight float64, opts RegretUpdateOptions) (TraversalStats, error) {
	workers := t.cfg.Workers
	if workers > len(deals) {
		workers = len(deals)
	}

	sources := make([]*deltaSource, workers)
	statsSlice := make([]TraversalStats, workers)

	var g errgroup.Group
	chunk := (len(deals) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		w := w
		lo := w * chunk
		hi := min(lo+chunk, len(deals))
		g.Go(func() error {
			src := newDeltaSource(t.regrets, opts)
			sources[w] = src
			for _, d := range deals[lo:hi] {
				h, err := game.NewHand(t.rules, d.OP, d.IP)
				if err != nil {
					return err
				}
				t.traverse(src, h, 1.0, 1.0, weight, &statsSlice[w], 0)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TraversalStats{}, err
	}

	// Merge in worker order so parallel runs stay reproducible for a fixed
	// worker count.
	aggregated := TraversalStats{}
	for w := 0; w < workers; w++ {
		sources[w].mergeInto(t.regrets)
		aggregated.NodesVisited += statsSlice[w].NodesVisited
		aggregated.TerminalNodes += statsSlice[w].TerminalNodes
		if statsSlice[w].MaxDepth > aggregated.MaxDepth {
			aggregated.MaxDepth = statsSlice[w].MaxDepth
		}
	}
	return aggregated, nil
}

func errTooFewIterations(requested, completed int) error {
	return fmt.Errorf("total iterations %d less than completed %d", requested, completed)
}
