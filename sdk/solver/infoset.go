package solver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/idea-realm/one-card-limit/internal/game"
)

// InfoSetKey identifies everything a player knows at a decision point: their
// role, their own card, and the public action history. Both accumulators and
// persisted strategies are keyed by it; the string form must stay stable
// across releases or saved blueprints become unreadable.
type InfoSetKey struct {
	Position game.Position
	Card     game.Card
	History  string
}

func (k InfoSetKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Position, k.Card, k.History)
}

// ParseInfoSetKey inverts String. Used when restoring checkpoints and when
// rendering saved strategy tables.
func ParseInfoSetKey(s string) (InfoSetKey, error) {
	parts := strings.SplitN(s, "/", 3)
	if len(parts) != 3 {
		return InfoSetKey{}, fmt.Errorf("malformed info set key %q", s)
	}

	var pos game.Position
	switch parts[0] {
	case "OP":
		pos = game.OutOfPosition
	case "IP":
		pos = game.InPosition
	default:
		return InfoSetKey{}, fmt.Errorf("info set key %q: unknown position %q", s, parts[0])
	}

	rank, err := strconv.Atoi(parts[1])
	if err != nil || rank < 1 || rank > 13 {
		return InfoSetKey{}, fmt.Errorf("info set key %q: bad card %q", s, parts[1])
	}

	if _, err := game.DecodeHistory(parts[2]); err != nil {
		return InfoSetKey{}, fmt.Errorf("info set key %q: %w", s, err)
	}

	return InfoSetKey{Position: pos, Card: game.Card(rank), History: parts[2]}, nil
}
