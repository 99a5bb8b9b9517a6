// Package frame renders per-viewer snapshots of a table. A viewer sees their
// own hole cards and any card the engine has disclosed; every other card is
// replaced by engine.Concealed.
package frame

import (
	"slices"
	"time"

	"github.com/lox/cardroom/internal/engine"
	"github.com/lox/cardroom/internal/table"
)

// Anonymous is the viewer key of everyone without a seat. Its frame offers
// the vacant seats.
const Anonymous = ""

// Timestamps are empty when nobody is due to act, otherwise the start of
// the turn followed by its deadline.
type Timestamps []time.Time

// Seat is one chair as seen by a viewer.
type Seat struct {
	User       string        `json:"user"`
	Button     bool          `json:"button"`
	Bet        *int          `json:"bet"`
	Stack      *int          `json:"stack"`
	Hole       []engine.Card `json:"hole"`
	Timestamps Timestamps    `json:"timestamps,omitempty"`
	Active     bool          `json:"active"`
	Turn       bool          `json:"turn"`
}

// Range is an inclusive chip range.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Completion describes the bet, raise or bring-in completion on offer.
type Completion struct {
	Completion bool `json:"completion"`
	Raise      bool `json:"raise"`
	Min        int  `json:"min"`
	Max        int  `json:"max"`
}

// Actions lists what the viewer may do right now. Nil and false fields are
// unavailable actions.
type Actions struct {
	Join                 []int       `json:"j,omitempty"`
	Leave                bool        `json:"l,omitempty"`
	SitOut               bool        `json:"s,omitempty"`
	BeBack               bool        `json:"b,omitempty"`
	BuyRebuyTopOff       *Range      `json:"brtr,omitempty"`
	StandPatOrDiscard    bool        `json:"sd,omitempty"`
	Fold                 bool        `json:"f,omitempty"`
	CheckOrCall          *int        `json:"cc,omitempty"`
	PostBringIn          *int        `json:"pb,omitempty"`
	CompleteBetOrRaiseTo *Completion `json:"cbr,omitempty"`
	// ShowOrMuck is offered with a hint of whether the hand can still win.
	ShowOrMuck *bool `json:"sm,omitempty"`
}

// Frame is an immutable snapshot of a table for one viewer.
type Frame struct {
	Seats   []Seat            `json:"seats"`
	Pots    []int             `json:"pots"`
	Board   []engine.Card     `json:"board"`
	Game    engine.Descriptor `json:"game"`
	Actions Actions           `json:"actions"`
}

// Set maps viewers to their frames.
type Set map[string]Frame

// For returns the frame of user, falling back to the anonymous frame.
func (s Set) For(user string) Frame {
	if f, ok := s[user]; ok {
		return f
	}
	return s[Anonymous]
}

// Viewers returns the viewers with a frame of their own, sorted.
func (s Set) Viewers() []string {
	viewers := make([]string, 0, len(s))
	for v := range s {
		viewers = append(viewers, v)
	}
	slices.Sort(viewers)
	return viewers
}

// FromTable renders one frame for every seated user and one for the
// anonymous viewer. ts is shown on the seat whose turn it is.
func FromTable(t *table.Table, ts Timestamps) Set {
	keys := append(t.Users(), Anonymous)

	state := t.State()
	var (
		pots  []int
		board []engine.Card
	)
	if state != nil {
		for _, pot := range state.Pots() {
			pots = append(pots, pot.Amount)
		}
		board = state.BoardCards()
	}
	descriptor := t.Game().Descriptor()
	seats := t.Seats()

	set := make(Set, len(keys))
	for _, viewer := range keys {
		set[viewer] = Frame{
			Seats:   seatViews(t, seats, viewer, ts),
			Pots:    slices.Clone(pots),
			Board:   slices.Clone(board),
			Game:    descriptor,
			Actions: actionsFor(t, viewer),
		}
	}
	return set
}

func seatViews(t *table.Table, seats []table.Seat, viewer string, ts Timestamps) []Seat {
	state := t.State()
	button := t.Button().SeatIndex
	turn, hasTurn := t.TurnSeat()

	views := make([]Seat, len(seats))
	for i, seat := range seats {
		view := Seat{
			User:   seat.User,
			Button: i == button,
			Active: seat.Active,
		}
		if seat.PlayerIndex == nil || state == nil {
			view.Stack = seat.StartingStack
			views[i] = view
			continue
		}

		p := *seat.PlayerIndex
		bet, stack := state.Bets()[p], state.Stacks()[p]
		view.Bet, view.Stack = &bet, &stack
		view.Hole = censor(state.HoleCards(p), state.HoleCardStatuses(p), viewer != Anonymous && viewer == seat.User)
		if hasTurn && turn.Index == i {
			view.Turn = true
			view.Timestamps = slices.Clone(ts)
		}
		views[i] = view
	}
	return views
}

func censor(cards []engine.Card, public []bool, owner bool) []engine.Card {
	out := make([]engine.Card, len(cards))
	for k, card := range cards {
		if owner || (k < len(public) && public[k]) {
			out[k] = card
		} else {
			out[k] = engine.Concealed
		}
	}
	return out
}

func actionsFor(t *table.Table, viewer string) Actions {
	var a Actions
	if viewer == Anonymous {
		a.Join = t.EmptySeatIndices()
		return a
	}

	if t.CanJoin(viewer, -1) {
		a.Join = t.EmptySeatIndices()
	}
	a.Leave = t.CanLeave(viewer)
	a.SitOut = t.CanSitOut(viewer)
	a.BeBack = t.CanBeBack(viewer)
	if _, seated := t.SeatOf(viewer); seated && t.VerifyBuyRebuyTopOffOrRatHole(viewer, t.MaxStartingStack()) == nil {
		a.BuyRebuyTopOff = &Range{Min: t.MinStartingStack(), Max: t.MaxStartingStack()}
	}

	turn, ok := t.TurnSeat()
	state := t.State()
	if !ok || turn.User != viewer {
		return a
	}

	a.StandPatOrDiscard = state.CanStandPatOrDiscard()
	a.Fold = state.CanFold()
	if state.CanCheckOrCall() {
		amount := state.CheckingOrCallingAmount()
		a.CheckOrCall = &amount
	}
	if state.CanPostBringIn() {
		amount := state.BringIn()
		a.PostBringIn = &amount
	}
	if state.CanCompleteBetOrRaiseTo() {
		a.CompleteBetOrRaiseTo = &Completion{
			Completion: state.CompletionStatus(),
			Raise:      slices.ContainsFunc(state.Bets(), func(b int) bool { return b > 0 }),
			Min:        state.MinCompletionBetOrRaiseToAmount(),
			Max:        state.MaxCompletionBetOrRaiseToAmount(),
		}
	}
	if state.CanShowOrMuckHoleCards() {
		canWin := state.CanWinNow(state.ShowdownIndex())
		a.ShowOrMuck = &canWin
	}
	return a
}
