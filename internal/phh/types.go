// Package phh reads and writes hands in the Poker Hand History format, a
// TOML document describing the game, the players and every action.
package phh

import "time"

// HandHistory is one recorded hand.
type HandHistory struct {
	Variant           string   `toml:"variant"`
	Table             string   `toml:"table,omitempty"`
	SeatCount         int      `toml:"seat_count,omitempty"`
	Seats             []int    `toml:"seats,omitempty"`
	Antes             []int    `toml:"antes"`
	BlindsOrStraddles []int    `toml:"blinds_or_straddles"`
	BringIn           int      `toml:"bring_in,omitempty"`
	MinBet            int      `toml:"min_bet"`
	StartingStacks    []int    `toml:"starting_stacks"`
	FinishingStacks   []int    `toml:"finishing_stacks,omitempty"`
	Winnings          []int    `toml:"winnings,omitempty"`
	Actions           []string `toml:"actions"`
	Players           []string `toml:"players,omitempty"`
	HandID            string   `toml:"hand"`
	Time              string   `toml:"time,omitempty"`
	TimeZone          string   `toml:"time_zone,omitempty"`
	Day               int      `toml:"day,omitempty"`
	Month             int      `toml:"month,omitempty"`
	Year              int      `toml:"year,omitempty"`

	Timestamp time.Time `toml:"-"`
}

// SetTimestamp fills the date and time fields from ts.
func (h *HandHistory) SetTimestamp(ts time.Time) {
	h.Timestamp = ts
	h.Time = ts.Format(time.TimeOnly)
	h.TimeZone = ts.Location().String()
	h.Day = ts.Day()
	h.Month = int(ts.Month())
	h.Year = ts.Year()
}

// Net returns each player's result: finishing minus starting stack.
func (h *HandHistory) Net() []int {
	if len(h.FinishingStacks) != len(h.StartingStacks) {
		return nil
	}
	net := make([]int, len(h.StartingStacks))
	for i := range net {
		net[i] = h.FinishingStacks[i] - h.StartingStacks[i]
	}
	return net
}
