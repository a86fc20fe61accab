package okey

import (
	"fmt"
	"time"
)

// Action is a closed set of player and scheduler inputs: Draw, Discard, Finish
// and Timeout.
type Action interface {
	action()
}

// Draw takes the top of the draw pile, or the newest discard when FromDiscard is set.
type Draw struct {
	Seat        int
	FromDiscard bool
}

// Discard throws TileID and ends the turn.
type Discard struct {
	Seat   int
	TileID string
}

// Finish declares a win, setting TileID aside.
type Finish struct {
	Seat   int
	TileID string
}

// Timeout is fired by the scheduler when a turn may have expired.
type Timeout struct{}

func (Draw) action()    {}
func (Discard) action() {}
func (Finish) action()  {}
func (Timeout) action() {}

// Apply dispatches a to the matching operation.
func Apply(s State, a Action, now time.Time) (State, error) {
	switch a := a.(type) {
	case Draw:
		if a.FromDiscard {
			return DrawFromDiscard(s, a.Seat, now)
		}
		return DrawFromPile(s, a.Seat, now)
	case Discard:
		return DiscardTile(s, a.Seat, a.TileID, now)
	case Finish:
		return DeclareWin(s, a.Seat, a.TileID, now)
	case Timeout:
		return HandleTimeout(s, now)
	default:
		return s, fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}
}
