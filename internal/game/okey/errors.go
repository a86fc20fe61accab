package okey

import (
	"errors"
	"fmt"
)

// Engine failures. Every operation returns its input state unchanged alongside one
// of these, so callers can map them to user messages with errors.Is.
var (
	ErrNotYourTurn        = errors.New("not your turn")
	ErrWrongPhase         = errors.New("wrong turn phase")
	ErrPileEmpty          = errors.New("draw pile is empty")
	ErrDiscardEmpty       = errors.New("discard pile is empty")
	ErrTileNotInHand      = errors.New("tile not in hand")
	ErrInvalidWinningHand = errors.New("invalid winning hand")
	ErrGameNotActive      = errors.New("game not active")
	ErrWrongTileCount     = errors.New("wrong tile count")

	ErrSeatsFull     = errors.New("all seats taken")
	ErrAlreadySeated = errors.New("player already seated")
	ErrNotInGame     = errors.New("player not in game")
	ErrSeatsEmpty    = errors.New("empty seats remain")
	ErrUnknownAction = errors.New("unknown action")
)

// WinError carries the evaluator's reason for a rejected win.
type WinError struct {
	Reason Reason
}

func (e *WinError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidWinningHand, e.Reason)
}

// Is matches ErrInvalidWinningHand.
func (e *WinError) Is(target error) bool {
	return target == ErrInvalidWinningHand
}
