package holdem

import (
	"github.com/chehsunliu/poker"

	"github.com/lox/cardroom/internal/engine"
)

// evaluate ranks the best five-card hand; lower is stronger.
func evaluate(hole, board []engine.Card) int32 {
	cards := make([]poker.Card, 0, len(hole)+len(board))
	for _, c := range hole {
		cards = append(cards, poker.NewCard(string(c)))
	}
	for _, c := range board {
		cards = append(cards, poker.NewCard(string(c)))
	}
	return poker.Evaluate(cards)
}

// Describe names the best hand made from hole and board, e.g. "Full House".
// It returns an empty string when fewer than five cards are available.
func Describe(hole, board []engine.Card) string {
	if len(hole)+len(board) < 5 {
		return ""
	}
	return poker.RankString(evaluate(hole, board))
}
