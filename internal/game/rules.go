package game

import "fmt"

// Bounds on the configurable rule set.
const (
	MinDeckSize = 3
	MaxDeckSize = 13
	MaxRaiseCap = 2
)

// Rules fixes the shape of every hand in a match: how many ranks are in the
// deck, the ante both players post, and how many raises a hand allows. The
// bet size always equals the ante.
type Rules struct {
	DeckSize  int `json:"deck_size"`
	Ante      int `json:"ante"`
	MaxRaises int `json:"max_raises"`
}

// NewRules validates and returns a rule set.
func NewRules(deckSize, ante, maxRaises int) (Rules, error) {
	r := Rules{DeckSize: deckSize, Ante: ante, MaxRaises: maxRaises}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

// DefaultRules returns the standard configuration: four ranks, ante of one,
// up to two raises.
func DefaultRules() Rules {
	return Rules{DeckSize: 4, Ante: 1, MaxRaises: 2}
}

// Validate checks the rule set against the supported bounds.
func (r Rules) Validate() error {
	if r.DeckSize < MinDeckSize || r.DeckSize > MaxDeckSize {
		return fmt.Errorf("deck size must be between %d and %d, got %d", MinDeckSize, MaxDeckSize, r.DeckSize)
	}
	if r.Ante < 1 {
		return fmt.Errorf("ante must be positive, got %d", r.Ante)
	}
	if r.MaxRaises < 0 || r.MaxRaises > MaxRaiseCap {
		return fmt.Errorf("max raises must be between 0 and %d, got %d", MaxRaiseCap, r.MaxRaises)
	}
	return nil
}

func (r Rules) String() string {
	return fmt.Sprintf("deck=%d ante=%d raises=%d", r.DeckSize, r.Ante, r.MaxRaises)
}
