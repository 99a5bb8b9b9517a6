package engine

import "errors"

var (
	// ErrIllegal is returned by a State command invoked while its guard is false.
	ErrIllegal = errors.New("engine: illegal operation")
)

// Disclosure selects what a player does with their hole cards at showdown.
type Disclosure int

const (
	// DiscloseAuto shows the hand if it can still win and mucks otherwise.
	DiscloseAuto Disclosure = iota
	DiscloseShow
	DiscloseMuck
)

func (d Disclosure) String() string {
	switch d {
	case DiscloseShow:
		return "show"
	case DiscloseMuck:
		return "muck"
	default:
		return "auto"
	}
}

// Pot is a main or side pot.
type Pot struct {
	Amount        int   `json:"amount"`
	PlayerIndices []int `json:"player_indices"`
}

// Descriptor describes the structure of a game for viewers and hand histories.
type Descriptor struct {
	Variant           string   `json:"variant"`
	HoleDealing       [][]bool `json:"hole"`  // per street, face-up flag of every hole card dealt
	BoardDealing      []int    `json:"board"` // per street, board cards dealt
	Draw              []bool   `json:"draw"`  // per street, whether players may discard
	Antes             []int    `json:"antes"`
	BlindsOrStraddles []int    `json:"blinds_or_straddles"`
	BringIn           int      `json:"bring_in,omitempty"`
	MinBet            int      `json:"min_bet"`
}

// Game creates hand states from the starting stacks of the dealt-in seats.
type Game interface {
	NewState(startingStacks []int, playerCount int) (State, error)
	// ButtonStatus reports whether the game rotates a dealer button.
	ButtonStatus() bool
	Descriptor() Descriptor
}

// State is the rules-engine view of one hand. Player indices run from 0 to
// PlayerCount()-1 in deal order. Index accessors return -1 when nobody is
// due to act.
type State interface {
	Status() bool
	PlayerCount() int

	TurnIndex() int
	ActorIndex() int
	StanderPatOrDiscarderIndex() int
	ShowdownIndex() int

	StartingStacks() []int
	Bets() []int
	Stacks() []int
	Pots() []Pot
	BoardCards() []Card
	HoleCards(player int) []Card
	// HoleCardStatuses reports, per hole card, whether it is publicly disclosed.
	HoleCardStatuses(player int) []bool
	// Actions returns the hand's operations in PHH notation.
	Actions() []string

	CanPostAnte() bool
	PostAnte() error
	CanCollectBets() bool
	CollectBets() error
	CanPostBlindOrStraddle() bool
	PostBlindOrStraddle() error
	CanBurnCard() bool
	BurnCard() error
	CanDealHole() bool
	DealHole() error
	CanDealBoard() bool
	DealBoard() error

	CanStandPatOrDiscard(cards ...Card) bool
	StandPatOrDiscard(cards ...Card) error
	CanFold() bool
	Fold() error
	CanCheckOrCall() bool
	CheckOrCall() error
	CheckingOrCallingAmount() int
	CanPostBringIn() bool
	PostBringIn() error
	BringIn() int
	CanCompleteBetOrRaiseTo() bool
	VerifyCompletionBetOrRaiseTo(amount int) error
	CompleteBetOrRaiseTo(amount int) error
	MinCompletionBetOrRaiseToAmount() int
	MaxCompletionBetOrRaiseToAmount() int
	// CompletionStatus reports whether the next bet completes a bring-in.
	CompletionStatus() bool
	CanShowOrMuckHoleCards() bool
	ShowOrMuckHoleCards(d Disclosure) error
	CanWinNow(player int) bool

	CanKillHand() bool
	KillHand() error
	CanPushChips() bool
	PushChips() error
	CanPullChips() bool
	PullChips() error
}
