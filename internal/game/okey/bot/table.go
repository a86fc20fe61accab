package bot

import (
	"time"

	"okey/internal/game/okey"
)

// Table is what a seat knows when it has to move: its own hand and the public
// part of the board.
type Table struct {
	Hand      []okey.Tile
	Okey      okey.Face
	Top       *okey.Tile
	Phase     okey.Phase
	PileEmpty bool
	TurnLimit time.Duration
	Rules     okey.HandRules
}

// TableFor reads seat's table from the full game state.
func TableFor(s okey.State, seat int) Table {
	t := Table{
		Hand:      append([]okey.Tile(nil), s.Hand(seat)...),
		Okey:      s.Okey,
		Phase:     s.Phase,
		PileEmpty: len(s.DrawPile) == 0,
		TurnLimit: s.TurnTimeLimit,
		Rules:     s.Rules.Hand,
	}
	if top, ok := s.TopDiscard(); ok {
		t.Top = &top
	}
	return t
}

// TableFromView reads the table from a player's view, as a remote client sees it.
func TableFromView(v okey.View) Table {
	t := Table{
		Hand:      append([]okey.Tile(nil), v.Hand...),
		Okey:      v.Okey,
		Phase:     v.Phase,
		PileEmpty: v.DrawCount == 0,
		TurnLimit: time.Duration(v.TurnLimit) * time.Millisecond,
		Rules:     v.HandRules,
	}
	if len(v.DiscardPile) > 0 {
		top := v.DiscardPile[0]
		t.Top = &top
	}
	return t
}
