package okey

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// MoveType tags an entry of the move log.
type MoveType string

const (
	MoveDrawPile    MoveType = "DRAW_PILE"
	MoveDrawDiscard MoveType = "DRAW_DISCARD"
	MoveDiscard     MoveType = "DISCARD"
	MoveFinish      MoveType = "FINISH"
	MoveTimeout     MoveType = "TIMEOUT"
)

// Move is one applied action. The log is append-only and ordered by Seq.
type Move struct {
	ID   string    `json:"id"`
	Seq  int       `json:"seq"`
	Seat int       `json:"seat"`
	Type MoveType  `json:"type"`
	Tile *Tile     `json:"tile,omitempty"`
	At   time.Time `json:"at"`
}

// moveNamespace scopes move ids so the same game id and sequence always map to
// the same id.
var moveNamespace = uuid.MustParse("8f2d8c34-5b8e-4c5f-9a52-0e6f4f7b5a10")

func (s *State) record(seat int, typ MoveType, tile *Tile, now time.Time) {
	seq := len(s.Moves) + 1
	var t *Tile
	if tile != nil {
		cp := *tile
		t = &cp
	}
	s.Moves = append(s.Moves, Move{
		ID:   uuid.NewSHA1(moveNamespace, []byte(s.ID+"/"+strconv.Itoa(seq))).String(),
		Seq:  seq,
		Seat: seat,
		Type: typ,
		Tile: t,
		At:   now,
	})
}

// MovesSince returns the moves with Seq greater than seq.
func MovesSince(s State, seq int) []Move {
	if seq < 0 {
		seq = 0
	}
	if seq >= len(s.Moves) {
		return nil
	}
	return append([]Move(nil), s.Moves[seq:]...)
}

// Replay rebuilds s from its seed and roster and re-applies its move log.
// The result equals s for any state produced by this package.
func Replay(s State) (State, error) {
	if s.Status == StatusWaiting || s.Status == StatusStarting {
		return s.Clone(), nil
	}
	if len(s.Players) == 0 || s.Indicator == nil {
		// cancelled before the deal
		return s.Clone(), nil
	}

	r := State{
		ID:         s.ID,
		Status:     StatusStarting,
		Rules:      s.Rules,
		MaxPlayers: s.MaxPlayers,
		WinnerSeat: NoSeat,
		Players:    make([]*Player, len(s.Players)),
	}
	for i, p := range s.Players {
		r.Players[i] = &Player{ID: p.ID, Seat: p.Seat, IsAI: p.IsAI, IsReady: p.IsReady, IsConnected: p.IsConnected}
	}
	r, err := Start(r, s.Seed, s.StartedAt)
	if err != nil {
		return s, fmt.Errorf("replay start: %w", err)
	}

	for len(r.Moves) < len(s.Moves) {
		m := s.Moves[len(r.Moves)]
		before := len(r.Moves)
		var a Action
		switch m.Type {
		case MoveDrawPile:
			a = Draw{Seat: m.Seat}
		case MoveDrawDiscard:
			a = Draw{Seat: m.Seat, FromDiscard: true}
		case MoveDiscard:
			a = Discard{Seat: m.Seat, TileID: m.Tile.ID}
		case MoveFinish:
			a = Finish{Seat: m.Seat, TileID: m.Tile.ID}
		case MoveTimeout:
			a = Timeout{}
		default:
			return s, fmt.Errorf("replay move %d: %w: %s", m.Seq, ErrUnknownAction, m.Type)
		}
		if r, err = Apply(r, a, m.At); err != nil {
			return s, fmt.Errorf("replay move %d: %w", m.Seq, err)
		}
		if len(r.Moves) == before {
			return s, fmt.Errorf("replay move %d: %s had no effect", m.Seq, m.Type)
		}
	}
	if s.Status == StatusCancelled {
		r.Status = StatusCancelled
	}
	for i, p := range s.Players {
		r.Players[i].IsReady = p.IsReady
		r.Players[i].IsConnected = p.IsConnected
	}
	return r, nil
}

// SameGame reports whether two states hold the same tiles, turn and log.
func SameGame(a, b State) bool {
	return a.Status == b.Status &&
		a.CurrentSeat == b.CurrentSeat &&
		a.Phase == b.Phase &&
		a.WinnerSeat == b.WinnerSeat &&
		reflect.DeepEqual(a.DrawPile, b.DrawPile) &&
		reflect.DeepEqual(a.DiscardPile, b.DiscardPile) &&
		reflect.DeepEqual(a.Players, b.Players) &&
		reflect.DeepEqual(a.Moves, b.Moves)
}
