package solver

import "errors"

// TrainingConfig controls a CFR run. The deal loop is exhaustive, so unlike a
// sampling trainer there is no seed here: two runs with equal config and
// rules produce identical tables.
type TrainingConfig struct {
	// Iterations is the number of full passes over every ordered deal.
	Iterations int `json:"iterations"`

	// Workers splits each iteration's deals across goroutines. Workers <= 1
	// updates the table in place during traversal; more workers accumulate
	// per-worker deltas against the iteration-start table and merge them at
	// the iteration boundary.
	Workers int `json:"workers"`

	// ProgressEvery emits a progress callback every N iterations; zero picks
	// roughly one percent of the run.
	ProgressEvery int `json:"progress_every"`

	// UseCFRPlus clamps negative regrets and weights the average strategy
	// linearly by iteration.
	UseCFRPlus bool `json:"use_cfr_plus"`
}

// Validate ensures the training parameters are safe to use.
func (c TrainingConfig) Validate() error {
	if c.Iterations <= 0 {
		return errors.New("iterations must be > 0")
	}
	if c.Workers < 0 {
		return errors.New("workers cannot be negative")
	}
	if c.ProgressEvery < 0 {
		return errors.New("progress interval cannot be negative")
	}
	return nil
}

// DefaultTrainingConfig returns a configuration that converges well on small
// decks in a few seconds.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Iterations:    10000,
		Workers:       1,
		ProgressEvery: 0,
		UseCFRPlus:    false,
	}
}
