package solver

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/idea-realm/one-card-limit/internal/game"
)

const blueprintFileVersion = 1

// Blueprint is the persisted form of a trained policy: the averaged strategy
// for every visited information set, stamped with the rules it was trained
// under so it can never be silently replayed against a different game.
type Blueprint struct {
	Version     int                  `json:"version"`
	GeneratedAt time.Time            `json:"generated_at"`
	Iterations  int                  `json:"iterations"`
	Rules       game.Rules           `json:"rules"`
	Strategies  map[string][]float64 `json:"strategies"`
}

// Save writes the blueprint to disk as JSON.
func (b *Blueprint) Save(path string) error {
	if b == nil {
		return errors.New("nil blueprint")
	}
	if path == "" {
		return errors.New("destination path is required")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// LoadBlueprint reads a blueprint from disk, rejecting unknown versions and
// unplayable rule sets.
func LoadBlueprint(path string) (*Blueprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var bp Blueprint
	if err := json.NewDecoder(f).Decode(&bp); err != nil {
		return nil, fmt.Errorf("decode blueprint: %w", err)
	}
	if bp.Version != blueprintFileVersion {
		return nil, fmt.Errorf("unsupported blueprint version %d", bp.Version)
	}
	if err := bp.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("blueprint rules invalid: %w", err)
	}
	for key := range bp.Strategies {
		if _, err := ParseInfoSetKey(key); err != nil {
			return nil, fmt.Errorf("blueprint strategy table corrupt: %w", err)
		}
	}
	return &bp, nil
}

// CompatibleWith reports whether the blueprint may be used for the given
// rules. A mismatch is recoverable: the caller decides whether to retrain.
func (b *Blueprint) CompatibleWith(rules game.Rules) error {
	if b == nil {
		return errors.New("nil blueprint")
	}
	if b.Rules != rules {
		return fmt.Errorf("blueprint trained for %s, game uses %s", b.Rules, rules)
	}
	return nil
}

// Strategy returns the stored average distribution for the given key.
func (b *Blueprint) Strategy(key InfoSetKey) ([]float64, bool) {
	if b == nil {
		return nil, false
	}
	strat, ok := b.Strategies[key.String()]
	return strat, ok
}

// GameValue returns OP's expected chips per hand when both players follow the
// stored averaged strategy, uniform at unseen sets.
func (b *Blueprint) GameValue() float64 {
	return gameValue(b.Rules, func(key InfoSetKey, n int) []float64 {
		if strat, ok := b.Strategy(key); ok && len(strat) == n {
			return strat
		}
		s := make([]float64, n)
		uniform(s)
		return s
	})
}
