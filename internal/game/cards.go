package game

import (
	"fmt"
	rand "math/rand/v2"
)

const rankGlyphs = "23456789TJQKA"

// Card is a rank in 1..DeckSize. Higher ranks win at showdown; there are no
// suits and the two dealt cards are always distinct, so ties cannot occur.
type Card uint8

// Beats reports whether c wins a showdown against other.
func (c Card) Beats(other Card) bool {
	return c > other
}

// Glyph renders the card as the matching rank of a standard deck: the highest
// card of any deck size is always the ace.
func (c Card) Glyph(r Rules) string {
	idx := len(rankGlyphs) - r.DeckSize + int(c) - 1
	if c == 0 || idx < 0 || idx >= len(rankGlyphs) {
		return "?"
	}
	return string(rankGlyphs[idx])
}

func (c Card) String() string {
	return fmt.Sprintf("%d", uint8(c))
}

// ParseCard resolves a rank glyph ("A", "K", ...) back to a card under the
// given rules. Used when reading persisted info-set keys.
func ParseCard(glyph string, r Rules) (Card, error) {
	if len(glyph) != 1 {
		return 0, fmt.Errorf("invalid card %q", glyph)
	}
	for i := 0; i < len(rankGlyphs); i++ {
		if rankGlyphs[i] == glyph[0] {
			rank := i - (len(rankGlyphs) - r.DeckSize) + 1
			if rank < 1 || rank > r.DeckSize {
				return 0, fmt.Errorf("card %q is not in a %d card deck", glyph, r.DeckSize)
			}
			return Card(rank), nil
		}
	}
	return 0, fmt.Errorf("invalid card %q", glyph)
}

// Deck holds the undealt cards for live play. Training never uses a Deck; it
// enumerates Deals exhaustively instead.
type Deck struct {
	cards []Card
}

// NewDeck returns an ordered deck for the given rules.
func NewDeck(r Rules) *Deck {
	cards := make([]Card, r.DeckSize)
	for i := range cards {
		cards[i] = Card(i + 1)
	}
	return &Deck{cards: cards}
}

// Shuffle permutes the deck using the supplied source. Callers own the seed so
// sessions stay reproducible.
func (d *Deck) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Deal removes and returns the top card.
func (d *Deck) Deal() Card {
	c := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return c
}

// Remaining returns the number of undealt cards.
func (d *Deck) Remaining() int {
	return len(d.cards)
}

// Deal is one ordered assignment of private cards.
type Deal struct {
	OP Card
	IP Card
}

// Deals enumerates every ordered pair of distinct cards. Each deal carries
// probability 1/(N*(N-1)); see DealWeight.
func Deals(r Rules) []Deal {
	out := make([]Deal, 0, r.DeckSize*(r.DeckSize-1))
	for op := 1; op <= r.DeckSize; op++ {
		for ip := 1; ip <= r.DeckSize; ip++ {
			if op == ip {
				continue
			}
			out = append(out, Deal{OP: Card(op), IP: Card(ip)})
		}
	}
	return out
}

// DealWeight is the uniform probability of any single ordered deal.
func DealWeight(r Rules) float64 {
	n := float64(r.DeckSize)
	return 1.0 / (n * (n - 1))
}
