package solver

import "sync"

// RegretEntry accumulates per-action regrets and strategy weight for one
// information set. Slices are indexed by the legal-action order the betting
// machine reports, which is deterministic for a given history.
type RegretEntry struct {
	RegretSum   []float64
	StrategySum []float64
	mutex       sync.Mutex
}

// RegretUpdateOptions selects the accumulation rule. Vanilla CFR leaves
// regrets signed and weights every iteration equally; CFR+ clamps regrets at
// zero and weights the strategy sum linearly by iteration.
type RegretUpdateOptions struct {
	ClampNegativeRegrets bool
	LinearAveraging      bool
	Iteration            int
}

func (e *RegretEntry) ensureSize(n int) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if len(e.RegretSum) >= n {
		return
	}
	missing := n - len(e.RegretSum)
	e.RegretSum = append(e.RegretSum, make([]float64, missing)...)
	e.StrategySum = append(e.StrategySum, make([]float64, missing)...)
}

// Strategy returns the current regret-matching distribution: positive regrets
// normalised, uniform when no action has positive regret. This is the
// training-time strategy, distinct from AverageStrategy.
func (e *RegretEntry) Strategy() []float64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return regretMatch(e.RegretSum)
}

func regretMatch(regrets []float64) []float64 {
	strat := make([]float64, len(regrets))
	total := 0.0
	for i, r := range regrets {
		if r > 0 {
			strat[i] = r
			total += r
		}
	}
	if total <= 0 {
		uniform(strat)
		return strat
	}
	for i := range strat {
		strat[i] /= total
	}
	return strat
}

func uniform(dst []float64) {
	if len(dst) == 0 {
		return
	}
	v := 1.0 / float64(len(dst))
	for i := range dst {
		dst[i] = v
	}
}

// Update adds one traversal's contribution: regrets are already scaled by the
// opponent's counterfactual reach, strategy weight by the actor's own reach.
func (e *RegretEntry) Update(regret, strategy []float64, reachWeight float64, opts RegretUpdateOptions) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	weight := reachWeight
	if opts.LinearAveraging {
		iter := opts.Iteration
		if iter <= 0 {
			iter = 1
		}
		weight *= float64(iter)
	}

	for i := range regret {
		e.RegretSum[i] += regret[i]
		if opts.ClampNegativeRegrets && e.RegretSum[i] < 0 {
			e.RegretSum[i] = 0
		}
		e.StrategySum[i] += weight * strategy[i]
	}
}

// AverageStrategy normalises the accumulated strategy sum. This is the
// distribution that converges toward equilibrium; unvisited entries fall back
// to uniform.
func (e *RegretEntry) AverageStrategy() []float64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	strat := make([]float64, len(e.StrategySum))
	total := 0.0
	for _, v := range e.StrategySum {
		total += v
	}
	if total <= 0 {
		uniform(strat)
		return strat
	}
	for i, v := range e.StrategySum {
		strat[i] = v / total
	}
	return strat
}

func (e *RegretEntry) snapshot() regretSnapshot {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return regretSnapshot{
		RegretSum:   append([]float64(nil), e.RegretSum...),
		StrategySum: append([]float64(nil), e.StrategySum...),
	}
}

func newRegretEntryFromSnapshot(snap regretSnapshot) *RegretEntry {
	return &RegretEntry{
		RegretSum:   append([]float64(nil), snap.RegretSum...),
		StrategySum: append([]float64(nil), snap.StrategySum...),
	}
}

const regretTableShardCount = 64
const regretTableShardMask = regretTableShardCount - 1

type regretShard struct {
	mu      sync.RWMutex
	entries map[InfoSetKey]*RegretEntry
}

// RegretTable holds every information set touched during a training run.
// Entries are created lazily on first access and never removed.
type RegretTable struct {
	shards [regretTableShardCount]regretShard
}

// NewRegretTable returns an empty table.
func NewRegretTable() *RegretTable {
	t := &RegretTable{}
	for i := range t.shards {
		t.shards[i].entries = make(map[InfoSetKey]*RegretEntry)
	}
	return t
}

// Get returns the entry for key, creating a zeroed one sized for actionCount
// on first access.
func (t *RegretTable) Get(key InfoSetKey, actionCount int) *RegretEntry {
	shard := t.shardFor(key)

	shard.mu.RLock()
	entry, ok := shard.entries[key]
	shard.mu.RUnlock()
	if ok {
		entry.ensureSize(actionCount)
		return entry
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if entry, ok = shard.entries[key]; ok {
		entry.ensureSize(actionCount)
		return entry
	}
	entry = &RegretEntry{}
	entry.ensureSize(actionCount)
	shard.entries[key] = entry
	return entry
}

// Lookup returns the entry for key or nil, without creating one. Parallel
// workers read iteration-start state through this path.
func (t *RegretTable) Lookup(key InfoSetKey) *RegretEntry {
	shard := t.shardFor(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	return shard.entries[key]
}

// Entries returns a point-in-time view of the table for serialisation.
func (t *RegretTable) Entries() map[InfoSetKey]*RegretEntry {
	out := make(map[InfoSetKey]*RegretEntry)
	for i := range t.shards {
		shard := &t.shards[i]
		shard.mu.RLock()
		for k, v := range shard.entries {
			out[k] = v
		}
		shard.mu.RUnlock()
	}
	return out
}

// Size returns the number of information sets tracked.
func (t *RegretTable) Size() int {
	total := 0
	for i := range t.shards {
		shard := &t.shards[i]
		shard.mu.RLock()
		total += len(shard.entries)
		shard.mu.RUnlock()
	}
	return total
}

func (t *RegretTable) shardFor(key InfoSetKey) *regretShard {
	return &t.shards[hashKey(key.String())&regretTableShardMask]
}

func hashKey(key string) uint32 {
	const offset32 = 2166136261
	const prime32 = 16777619
	var hash uint32 = offset32
	for i := 0; i < len(key); i++ {
		hash ^= uint32(key[i])
		hash *= prime32
	}
	return hash
}
