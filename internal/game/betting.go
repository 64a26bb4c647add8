package game

import (
	"fmt"
	"strings"
)

// Position identifies a seat's role within a single hand. OP acts first.
type Position uint8

const (
	OutOfPosition Position = iota
	InPosition
)

func (p Position) String() string {
	if p == OutOfPosition {
		return "OP"
	}
	return "IP"
}

// Opponent returns the other position.
func (p Position) Opponent() Position {
	return 1 - p
}

// Action is a betting decision.
type Action uint8

const (
	Check Action = iota
	Bet
	Call
	Raise
	Fold
)

func (a Action) String() string {
	return [...]string{"check", "bet", "call", "raise", "fold"}[a]
}

// Letter is the single-character encoding used in histories and info-set
// keys; check encodes as x so it cannot collide with call.
func (a Action) Letter() byte {
	return [...]byte{'x', 'b', 'c', 'r', 'f'}[a]
}

// ParseAction accepts an action name or its single-letter form.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "check", "x":
		return Check, nil
	case "bet", "b":
		return Bet, nil
	case "call", "c":
		return Call, nil
	case "raise", "r":
		return Raise, nil
	case "fold", "f":
		return Fold, nil
	default:
		return 0, fmt.Errorf("unknown action %q", s)
	}
}

// EncodeHistory renders an action sequence in its compact letter form.
func EncodeHistory(actions []Action) string {
	var sb strings.Builder
	for _, a := range actions {
		sb.WriteByte(a.Letter())
	}
	return sb.String()
}

// DecodeHistory parses a compact history string back into actions.
func DecodeHistory(s string) ([]Action, error) {
	out := make([]Action, 0, len(s))
	for i := 0; i < len(s); i++ {
		a, err := ParseAction(string(s[i]))
		if err != nil {
			return nil, fmt.Errorf("history %q: %w", s, err)
		}
		out = append(out, a)
	}
	return out, nil
}
