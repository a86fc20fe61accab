// Package bot plays Okey for computer-controlled seats.
package bot

import (
	"fmt"
	"math/rand/v2"
	"time"

	"okey/internal/game/okey"
)

const (
	MinThinking = 600 * time.Millisecond
	MaxThinking = 2500 * time.Millisecond
)

// Decision is the move a bot makes and how long it waits before making it.
type Decision struct {
	Action       okey.MoveType
	TileID       string
	ThinkingTime time.Duration
}

// For turns d into an engine action for seat.
func (d Decision) For(seat int) (okey.Action, error) {
	switch d.Action {
	case okey.MoveDrawPile:
		return okey.Draw{Seat: seat}, nil
	case okey.MoveDrawDiscard:
		return okey.Draw{Seat: seat, FromDiscard: true}, nil
	case okey.MoveDiscard:
		return okey.Discard{Seat: seat, TileID: d.TileID}, nil
	case okey.MoveFinish:
		return okey.Finish{Seat: seat, TileID: d.TileID}, nil
	}
	return nil, fmt.Errorf("%w: %s", okey.ErrUnknownAction, d.Action)
}

// Decide picks seat's next move. The same state, seat and seed always give the
// same decision.
func Decide(s okey.State, seat int, seed uint64) (Decision, error) {
	if s.Status != okey.StatusPlaying {
		return Decision{}, okey.ErrGameNotActive
	}
	if seat != s.CurrentSeat {
		return Decision{}, okey.ErrNotYourTurn
	}
	if s.Phase == okey.PhaseDraw && len(s.DrawPile) == 0 && len(s.DiscardPile) == 0 {
		return Decision{}, okey.ErrPileEmpty
	}
	return Choose(TableFor(s, seat), seed), nil
}

// Choose decides from a table alone.
func Choose(t Table, seed uint64) Decision {
	d := Decision{ThinkingTime: thinking(seed, t.TurnLimit)}
	if t.Phase == okey.PhaseDraw {
		d.Action = okey.MoveDrawPile
		if t.Top != nil && (t.PileEmpty || wantsDiscard(t, *t.Top)) {
			d.Action = okey.MoveDrawDiscard
		}
		return d
	}
	if id, _, ok := t.Rules.CanFinish(t.Hand, t.Okey); ok {
		d.Action = okey.MoveFinish
		d.TileID = id
		return d
	}
	d.Action = okey.MoveDiscard
	d.TileID = worstTile(t.Hand, t.Okey).ID
	return d
}

func thinking(seed uint64, limit time.Duration) time.Duration {
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))
	d := MinThinking + time.Duration(rng.Int64N(int64(MaxThinking-MinThinking)+1))
	if limit > 0 && d > limit {
		d = limit
	}
	return d
}

// wantsDiscard reports whether top is worth taking: a wildcard, the tile that
// lets the hand finish, or a tile that makes a new group of three with real tiles.
func wantsDiscard(t Table, top okey.Tile) bool {
	if top.IsWildcard(t.Okey) {
		return true
	}
	hand := append(append([]okey.Tile(nil), t.Hand...), top)
	if len(hand) == okey.DealerHandSize {
		if _, _, ok := t.Rules.CanFinish(hand, t.Okey); ok {
			return true
		}
	}
	return formsGroup(t.Hand, t.Okey, top)
}

// formsGroup reports whether tile completes a run or set with tiles from hand
// that the hand does not already have.
func formsGroup(hand []okey.Tile, okeyFace okey.Face, tile okey.Tile) bool {
	faces := realFaces(hand, okeyFace)
	f := tile.Face()
	if faces[f] > 0 {
		return false
	}
	has := func(n int) bool {
		return n >= okey.MinNumber && n <= okey.MaxNumber && faces[okey.Face{Number: n, Color: f.Color}] > 0
	}
	n := f.Number
	if (has(n-2) && has(n-1)) || (has(n-1) && has(n+1)) || (has(n+1) && has(n+2)) {
		return true
	}
	colors := 0
	for _, c := range okey.Colors {
		if c != f.Color && faces[okey.Face{Number: n, Color: c}] > 0 {
			colors++
		}
	}
	return colors >= 2
}

func realFaces(hand []okey.Tile, okeyFace okey.Face) map[okey.Face]int {
	faces := make(map[okey.Face]int, len(hand))
	for _, t := range hand {
		if !t.IsWildcard(okeyFace) {
			faces[t.Face()]++
		}
	}
	return faces
}

// Brain implements okey.Bot for the server's computer seats.
type Brain struct {
	// Salt varies decisions between servers sharing a seed.
	Salt uint64
}

// Next decides for seat, seeding from the game seed and the move count so a
// replayed game makes the same choices.
func (b Brain) Next(s okey.State, seat int) (okey.Action, time.Duration, error) {
	d, err := Decide(s, seat, s.Seed+uint64(len(s.Moves))+uint64(seat)+b.Salt)
	if err != nil {
		return nil, 0, err
	}
	a, err := d.For(seat)
	return a, d.ThinkingTime, err
}
