package table

import (
	"errors"
	"fmt"
)

// Rejection reasons carried by *Error.
var (
	ErrSystemUser        = errors.New("the system user cannot take a seat")
	ErrUserAlreadySeated = errors.New("user already seated")
	ErrInvalidSeat       = errors.New("invalid seat index")
	ErrSeatOccupied      = errors.New("seat occupied")
	ErrTableFull         = errors.New("table full")
	ErrUserNotSeated     = errors.New("user not seated")
	ErrPlayerInHand      = errors.New("player in hand")
	ErrAlreadyInactive   = errors.New("already sitting out")
	ErrAlreadyActive     = errors.New("already active")
	ErrInactiveUser      = errors.New("user is sitting out")
	ErrBelowMinimum      = errors.New("below minimum starting stack")
	ErrAboveMaximum      = errors.New("above maximum starting stack")
	ErrRatHoling         = errors.New("stack lower than current stack")
	ErrStateExists       = errors.New("hand in progress")
	ErrNotEnoughPlayers  = errors.New("not enough ready players")
	ErrNoState           = errors.New("no hand in progress")
	ErrStateActive       = errors.New("hand not finished")
)

// Error is a rejected table operation.
type Error struct {
	Op     string
	User   string
	Reason error
}

func (e *Error) Error() string {
	if e.User == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.User, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Reason
}

func reject(op, user string, reason error) error {
	return &Error{Op: op, User: user, Reason: reason}
}
