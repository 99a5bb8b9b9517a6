package phh

import (
	"fmt"
	"strconv"
	"strings"
)

// Action is one parsed line of a hand's action list.
type Action struct {
	// Player is the zero-based player index, or -1 for the dealer.
	Player int
	Verb   string
	Args   []string
	// Comment is the text after "#", if any.
	Comment string
}

// ParseAction splits an action such as "p2 cbr 40" or "d db AsKdQh".
func ParseAction(line string) (Action, error) {
	body, comment, _ := strings.Cut(line, "#")
	fields := strings.Fields(body)
	if len(fields) < 2 {
		return Action{}, fmt.Errorf("phh: malformed action %q", line)
	}

	a := Action{Player: -1, Verb: fields[1], Args: fields[2:], Comment: strings.TrimSpace(comment)}
	switch actor := fields[0]; {
	case actor == "d":
	case strings.HasPrefix(actor, "p"):
		n, err := strconv.Atoi(actor[1:])
		if err != nil || n < 1 {
			return Action{}, fmt.Errorf("phh: malformed actor %q", actor)
		}
		a.Player = n - 1
	default:
		return Action{}, fmt.Errorf("phh: malformed actor %q", actor)
	}
	return a, nil
}

// SplitCards splits concatenated two-character card codes.
func SplitCards(raw string) []string {
	var cards []string
	for i := 0; i+1 < len(raw); i += 2 {
		cards = append(cards, raw[i:i+2])
	}
	return cards
}

// Board returns the board cards dealt in hand, in order.
func (h *HandHistory) Board() []string {
	var board []string
	for _, line := range h.Actions {
		a, err := ParseAction(line)
		if err != nil || a.Player >= 0 || a.Verb != "db" || len(a.Args) == 0 {
			continue
		}
		board = append(board, SplitCards(a.Args[0])...)
	}
	return board
}

// Shown returns, per player, the hole cards revealed at showdown. Mucked or
// unseen hands are nil.
func (h *HandHistory) Shown() [][]string {
	shown := make([][]string, len(h.StartingStacks))
	for _, line := range h.Actions {
		a, err := ParseAction(line)
		if err != nil || a.Player < 0 || a.Player >= len(shown) || a.Verb != "sm" || len(a.Args) == 0 || a.Args[0] == "-" {
			continue
		}
		shown[a.Player] = SplitCards(a.Args[0])
	}
	return shown
}
