package engine

import (
	"fmt"
	"strings"
)

// Card is a two character card code such as "As" or "Td".
type Card string

// Concealed is substituted for any card the viewer may not see.
const Concealed Card = "??"

const (
	ranks = "23456789TJQKA"
	suits = "cdhs"
)

// Rank returns the rank character of the card.
func (c Card) Rank() byte {
	if len(c) != 2 {
		return '?'
	}
	return c[0]
}

// Suit returns the suit character of the card.
func (c Card) Suit() byte {
	if len(c) != 2 {
		return '?'
	}
	return c[1]
}

// Valid reports whether the card is a real card (not concealed or malformed).
func (c Card) Valid() bool {
	return len(c) == 2 && strings.IndexByte(ranks, c[0]) >= 0 && strings.IndexByte(suits, c[1]) >= 0
}

func (c Card) String() string {
	return string(c)
}

// NewDeck returns the 52 cards in a fixed order.
func NewDeck() []Card {
	deck := make([]Card, 0, len(ranks)*len(suits))
	for i := 0; i < len(suits); i++ {
		for j := 0; j < len(ranks); j++ {
			deck = append(deck, Card([]byte{ranks[j], suits[i]}))
		}
	}
	return deck
}

// ParseCards parses concatenated card codes, ignoring whitespace, e.g.
// "AsKd" or "As Kd". Lower-case ranks and "10" are accepted.
func ParseCards(raw string) ([]Card, error) {
	raw = strings.Join(strings.Fields(raw), "")
	raw = strings.ReplaceAll(raw, "10", "T")
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("engine: malformed cards %q", raw)
	}

	cards := make([]Card, 0, len(raw)/2)
	for i := 0; i < len(raw); i += 2 {
		card := Card([]byte{strings.ToUpper(raw[i : i+1])[0], strings.ToLower(raw[i+1 : i+2])[0]})
		if !card.Valid() {
			return nil, fmt.Errorf("engine: invalid card %q", raw[i:i+2])
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// JoinCards renders cards back to their concatenated form.
func JoinCards(cards []Card) string {
	var b strings.Builder
	for _, c := range cards {
		b.WriteString(string(c))
	}
	return b.String()
}
