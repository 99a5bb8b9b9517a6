package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnknownAction is returned for tokens that name no engine action.
	ErrUnknownAction = errors.New("unknown action")
	// ErrNotPermitted is returned when the action is not legal right now.
	ErrNotPermitted = errors.New("action not permitted")
	// ErrExplicitShowdown rejects a showdown that names the cards to reveal.
	ErrExplicitShowdown = errors.New("explicitly stating showdown cards is not permitted")
	// ErrContract marks a command that failed although its guard allowed it.
	ErrContract = errors.New("engine contract violation")
)

// ParseValue converts a raw amount token into chips.
func ParseValue(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if value < 0 {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}

// StripComment drops everything from the first "#" token onwards.
func StripComment(tokens []string) []string {
	for i, token := range tokens {
		if strings.HasPrefix(token, "#") {
			return tokens[:i]
		}
	}
	return tokens
}

// Apply performs the action described by tokens for the player in turn.
// Rejections wrap ErrUnknownAction, ErrNotPermitted or ErrExplicitShowdown;
// a failure of the engine itself wraps ErrContract.
func Apply(s State, tokens []string) error {
	tokens = StripComment(tokens)
	if len(tokens) == 0 {
		return fmt.Errorf("empty action: %w", ErrUnknownAction)
	}

	name, args := tokens[0], tokens[1:]
	switch name {
	case "f", "fold":
		if len(args) != 0 {
			return fmt.Errorf("fold takes no arguments: %w", ErrUnknownAction)
		}
		if !s.CanFold() {
			return fmt.Errorf("folding: %w", ErrNotPermitted)
		}
		return contract(s.Fold())

	case "cc", "check-or-call":
		if len(args) != 0 {
			return fmt.Errorf("check or call takes no arguments: %w", ErrUnknownAction)
		}
		if !s.CanCheckOrCall() {
			return fmt.Errorf("checking or calling: %w", ErrNotPermitted)
		}
		return contract(s.CheckOrCall())

	case "pb", "post-bring-in":
		if len(args) != 0 {
			return fmt.Errorf("bring-in takes no arguments: %w", ErrUnknownAction)
		}
		if !s.CanPostBringIn() {
			return fmt.Errorf("posting the bring-in: %w", ErrNotPermitted)
		}
		return contract(s.PostBringIn())

	case "cbr", "complete-bet-or-raise-to":
		if len(args) != 1 {
			return fmt.Errorf("bet or raise needs exactly one amount: %w", ErrUnknownAction)
		}
		amount, err := ParseValue(args[0])
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrUnknownAction)
		}
		if err := s.VerifyCompletionBetOrRaiseTo(amount); err != nil {
			return fmt.Errorf("%v: %w", err, ErrNotPermitted)
		}
		return contract(s.CompleteBetOrRaiseTo(amount))

	case "sd", "stand-pat-or-discard":
		cards, err := ParseCards(strings.Join(args, ""))
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrUnknownAction)
		}
		if !s.CanStandPatOrDiscard(cards...) {
			return fmt.Errorf("standing pat or discarding: %w", ErrNotPermitted)
		}
		return contract(s.StandPatOrDiscard(cards...))

	case "sm", "show-or-muck":
		disclosure := DiscloseShow
		switch {
		case len(args) == 0:
		case len(args) == 1 && args[0] == "-":
			disclosure = DiscloseMuck
		default:
			return ErrExplicitShowdown
		}
		if !s.CanShowOrMuckHoleCards() {
			return fmt.Errorf("showing or mucking: %w", ErrNotPermitted)
		}
		return contract(s.ShowOrMuckHoleCards(disclosure))
	}

	return fmt.Errorf("%q: %w", name, ErrUnknownAction)
}

func contract(err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContract, err)
	}
	return nil
}
