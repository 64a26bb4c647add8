package solver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/idea-realm/one-card-limit/internal/game"
)

const checkpointFileVersion = 1

// checkpointSnapshot is the full resumable trainer state. The exhaustive deal
// loop has no RNG, so iteration count plus accumulators is everything.
type checkpointSnapshot struct {
	Version   int                       `json:"version"`
	Iteration int64                     `json:"iteration"`
	Rules     game.Rules                `json:"rules"`
	Training  TrainingConfig            `json:"training"`
	Regrets   map[string]regretSnapshot `json:"regrets"`
	Stats     TraversalStats            `json:"stats"`
}

type regretSnapshot struct {
	RegretSum   []float64 `json:"regret_sum"`
	StrategySum []float64 `json:"strategy_sum"`
}

// EnableCheckpoints configures the trainer to write checkpoints every n
// iterations.
func (t *Trainer) EnableCheckpoints(path string, every int) {
	t.checkpointPath = path
	t.checkpointEvery = every
}

// SaveCheckpoint writes a snapshot of the trainer state to path, atomically
// via a temp file so an interrupted write never corrupts the previous
// checkpoint.
func (t *Trainer) SaveCheckpoint(path string) error {
	snap := t.buildCheckpoint()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close checkpoint temp: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("persist checkpoint: %w", err)
	}
	return nil
}

// LoadTrainerFromCheckpoint restores a trainer from a previously saved
// checkpoint, ready for Run to continue where it stopped.
func LoadTrainerFromCheckpoint(path string) (*Trainer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	snap, err := decodeCheckpoint(f)
	if err != nil {
		return nil, err
	}

	trainer, err := NewTrainer(snap.Rules, snap.Training)
	if err != nil {
		return nil, err
	}
	trainer.iteration.Store(snap.Iteration)
	trainer.stats = snap.Stats

	for keyStr, entrySnap := range snap.Regrets {
		key, err := ParseInfoSetKey(keyStr)
		if err != nil {
			return nil, fmt.Errorf("checkpoint regrets corrupt: %w", err)
		}
		shard := trainer.regrets.shardFor(key)
		shard.mu.Lock()
		shard.entries[key] = newRegretEntryFromSnapshot(entrySnap)
		shard.mu.Unlock()
	}
	return trainer, nil
}

func (t *Trainer) buildCheckpoint() *checkpointSnapshot {
	snap := &checkpointSnapshot{
		Version:   checkpointFileVersion,
		Iteration: t.iteration.Load(),
		Rules:     t.rules,
		Training:  t.cfg,
		Regrets:   make(map[string]regretSnapshot),
		Stats:     t.Stats(),
	}
	for key, entry := range t.regrets.Entries() {
		snap.Regrets[key.String()] = entry.snapshot()
	}
	return snap
}

func decodeCheckpoint(r io.Reader) (*checkpointSnapshot, error) {
	var snap checkpointSnapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, err
	}
	if snap.Version != checkpointFileVersion {
		return nil, errors.New("unsupported checkpoint version")
	}
	if err := snap.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("checkpoint rules invalid: %w", err)
	}
	if err := snap.Training.Validate(); err != nil {
		return nil, fmt.Errorf("checkpoint training config invalid: %w", err)
	}
	return &snap, nil
}
