package game

import (
	"math"
	"testing"

	"github.com/idea-realm/one-card-limit/internal/randutil"
)

func TestCardGlyphsTrackDeckSize(t *testing.T) {
	t.Parallel()
	three, _ := NewRules(3, 1, 2)
	if got := Card(3).Glyph(three); got != "A" {
		t.Errorf("top card of 3 deck should be A, got %s", got)
	}
	if got := Card(2).Glyph(three); got != "K" {
		t.Errorf("middle card of 3 deck should be K, got %s", got)
	}
	if got := Card(1).Glyph(three); got != "Q" {
		t.Errorf("bottom card of 3 deck should be Q, got %s", got)
	}

	full, _ := NewRules(13, 1, 2)
	if got := Card(1).Glyph(full); got != "2" {
		t.Errorf("bottom card of full deck should be 2, got %s", got)
	}
}

func TestParseCardRoundTrip(t *testing.T) {
	t.Parallel()
	rules, _ := NewRules(5, 1, 2)
	for v := 1; v <= rules.DeckSize; v++ {
		card := Card(v)
		parsed, err := ParseCard(card.Glyph(rules), rules)
		if err != nil {
			t.Fatalf("parse %s: %v", card.Glyph(rules), err)
		}
		if parsed != card {
			t.Errorf("round trip %d -> %s -> %d", v, card.Glyph(rules), parsed)
		}
	}

	if _, err := ParseCard("2", rules); err == nil {
		t.Error("expected error for rank below a 5 card deck")
	}
	if _, err := ParseCard("zz", rules); err == nil {
		t.Error("expected error for junk input")
	}
}

func TestDealsEnumeratesOrderedPairs(t *testing.T) {
	t.Parallel()
	rules, _ := NewRules(4, 1, 2)
	deals := Deals(rules)

	if want := 4 * 3; len(deals) != want {
		t.Fatalf("expected %d ordered deals, got %d", want, len(deals))
	}

	seen := make(map[Deal]bool, len(deals))
	for _, d := range deals {
		if d.OP == d.IP {
			t.Fatalf("deal %+v repeats a card", d)
		}
		if seen[d] {
			t.Fatalf("deal %+v enumerated twice", d)
		}
		seen[d] = true
	}

	if w := DealWeight(rules); math.Abs(w*float64(len(deals))-1.0) > 1e-12 {
		t.Errorf("deal weights should sum to 1, got %v", w*float64(len(deals)))
	}
}

func TestDeckShuffleIsSeedDeterministic(t *testing.T) {
	t.Parallel()
	rules, _ := NewRules(13, 1, 2)

	a := NewDeck(rules)
	a.Shuffle(randutil.New(99))
	b := NewDeck(rules)
	b.Shuffle(randutil.New(99))

	for a.Remaining() > 0 {
		if ca, cb := a.Deal(), b.Deal(); ca != cb {
			t.Fatalf("same seed produced different orders: %d vs %d", ca, cb)
		}
	}
}
