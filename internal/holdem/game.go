// Package holdem is a fixed-ante, two-blind, no-limit Texas hold'em engine
// implementing engine.State one dealer or player operation at a time.
package holdem

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/lox/cardroom/internal/engine"
	"github.com/lox/cardroom/internal/randutil"
)

// Variant is the PHH variant code of no-limit Texas hold'em.
const Variant = "NT"

// Settings holds the forced bets of a game.
type Settings struct {
	Ante       int
	SmallBlind int
	BigBlind   int
	MinBet     int
}

// Game creates hold'em hands. It is not safe for concurrent use; each table
// owns its own Game.
type Game struct {
	settings Settings
	rng      *rand.Rand
	stacked  []engine.Card
}

// Option configures a Game.
type Option func(*Game)

// WithRand sets the random source used to shuffle decks.
func WithRand(rng *rand.Rand) Option {
	return func(g *Game) {
		g.rng = rng
	}
}

// WithDeck stacks the top of every deck with cards, in order. The remaining
// cards follow in a fixed order. Intended for tests and replays.
func WithDeck(cards []engine.Card) Option {
	return func(g *Game) {
		g.stacked = slices.Clone(cards)
	}
}

// New validates settings and returns a game.
func New(settings Settings, opts ...Option) (*Game, error) {
	if settings.BigBlind <= 0 {
		return nil, errors.New("holdem: big blind must be positive")
	}
	if settings.SmallBlind < 0 || settings.SmallBlind > settings.BigBlind {
		return nil, errors.New("holdem: small blind must be between zero and the big blind")
	}
	if settings.Ante < 0 {
		return nil, errors.New("holdem: ante must not be negative")
	}
	if settings.MinBet == 0 {
		settings.MinBet = settings.BigBlind
	}

	g := &Game{settings: settings}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = randutil.NewFromTime()
	}
	return g, nil
}

// ButtonStatus reports true: hold'em rotates a dealer button.
func (g *Game) ButtonStatus() bool {
	return true
}

// Settings returns the forced bets.
func (g *Game) Settings() Settings {
	return g.settings
}

// Descriptor describes the street structure and forced bets.
func (g *Game) Descriptor() engine.Descriptor {
	var antes []int
	if g.settings.Ante > 0 {
		antes = []int{g.settings.Ante}
	}
	return engine.Descriptor{
		Variant:           Variant,
		HoleDealing:       [][]bool{{false, false}, {}, {}, {}},
		BoardDealing:      []int{0, 3, 1, 1},
		Draw:              []bool{false, false, false, false},
		Antes:             antes,
		BlindsOrStraddles: []int{g.settings.SmallBlind, g.settings.BigBlind},
		MinBet:            g.settings.MinBet,
	}
}

// NewState starts a hand. Players are ordered small blind first and button
// last.
func (g *Game) NewState(startingStacks []int, playerCount int) (engine.State, error) {
	if playerCount < 2 {
		return nil, fmt.Errorf("holdem: need at least two players, got %d", playerCount)
	}
	if len(startingStacks) != playerCount {
		return nil, fmt.Errorf("holdem: %d starting stacks for %d players", len(startingStacks), playerCount)
	}
	for i, stack := range startingStacks {
		if stack <= 0 {
			return nil, fmt.Errorf("holdem: player %d has no chips", i+1)
		}
	}
	return newState(g.settings, g.deck(), startingStacks), nil
}

func (g *Game) deck() []engine.Card {
	if g.stacked != nil {
		deck := slices.Clone(g.stacked)
		for _, card := range engine.NewDeck() {
			if !slices.Contains(g.stacked, card) {
				deck = append(deck, card)
			}
		}
		return deck
	}

	deck := engine.NewDeck()
	g.rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}
