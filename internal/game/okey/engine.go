package okey

import (
	"sort"
	"time"
)

func checkTurn(s State, seat int, phase Phase) error {
	if s.Status != StatusPlaying {
		return ErrGameNotActive
	}
	if seat != s.CurrentSeat {
		return ErrNotYourTurn
	}
	if s.Phase != phase {
		return ErrWrongPhase
	}
	return nil
}

// DrawFromPile moves the top of the draw pile into seat's hand.
func DrawFromPile(s State, seat int, now time.Time) (State, error) {
	if err := checkTurn(s, seat, PhaseDraw); err != nil {
		return s, err
	}
	if len(s.DrawPile) == 0 {
		return s, ErrPileEmpty
	}
	n := s.Clone()
	t := n.DrawPile[0]
	n.DrawPile = n.DrawPile[1:]
	n.take(seat, t, MoveDrawPile, now)
	return n, nil
}

// DrawFromDiscard moves the newest discard into seat's hand.
func DrawFromDiscard(s State, seat int, now time.Time) (State, error) {
	if err := checkTurn(s, seat, PhaseDraw); err != nil {
		return s, err
	}
	if len(s.DiscardPile) == 0 {
		return s, ErrDiscardEmpty
	}
	n := s.Clone()
	t := n.DiscardPile[0]
	n.DiscardPile = n.DiscardPile[1:]
	n.take(seat, t, MoveDrawDiscard, now)
	return n, nil
}

func (s *State) take(seat int, t Tile, typ MoveType, now time.Time) {
	p := s.Players[seat]
	p.Tiles = append(p.Tiles, t)
	s.Phase = PhaseDiscard
	s.record(seat, typ, &t, now)
}

// DiscardTile throws tileID from seat's 15-tile hand and passes the turn.
func DiscardTile(s State, seat int, tileID string, now time.Time) (State, error) {
	if err := checkTurn(s, seat, PhaseDiscard); err != nil {
		return s, err
	}
	hand := s.Hand(seat)
	if len(hand) != DealerHandSize {
		return s, ErrWrongTileCount
	}
	i := indexOfTile(hand, tileID)
	if i < 0 {
		return s, ErrTileNotInHand
	}

	n := s.Clone()
	t := n.throw(seat, i)
	n.record(seat, MoveDiscard, &t, now)

	if n.Rules.EndOnEmptyPile && len(n.DrawPile) == 0 {
		n.settle(NoSeat, "", t)
		return n, nil
	}
	n.CurrentSeat = n.nextSeat(seat)
	n.Phase = PhaseDraw
	n.TurnStartedAt = now
	return n, nil
}

// throw moves hand[i] of seat onto the discard pile.
func (s *State) throw(seat, i int) Tile {
	p := s.Players[seat]
	t := p.Tiles[i]
	p.Tiles = removeAt(p.Tiles, i)
	s.DiscardPile = append([]Tile{t}, s.DiscardPile...)
	return t
}

// DeclareWin finishes the game if seat's hand, less tileID, is a winning hand.
// A rejected hand leaves the state untouched and returns a *WinError.
func DeclareWin(s State, seat int, tileID string, now time.Time) (State, error) {
	if err := checkTurn(s, seat, PhaseDiscard); err != nil {
		return s, err
	}
	hand := s.Hand(seat)
	if len(hand) != DealerHandSize {
		return s, ErrWrongTileCount
	}
	v := s.Rules.Hand.Evaluate(hand, s.Okey, tileID)
	if !v.Valid {
		return s, &WinError{Reason: v.Reason}
	}

	n := s.Clone()
	t := n.throw(seat, indexOfTile(hand, tileID))
	n.settle(seat, v.Kind, t)
	n.record(seat, MoveFinish, &t, now)
	return n, nil
}

// HandleTimeout resolves an expired turn for the active seat: it draws from the pile
// (or the discard pile when the pile is empty) if needed, then discards by the
// timeout policy. Calling it before the deadline, or again after the turn has
// moved on, returns the state unchanged.
func HandleTimeout(s State, now time.Time) (State, error) {
	if !s.Expired(now) {
		return s, nil
	}
	seat := s.CurrentSeat
	n := s.Clone()
	n.record(seat, MoveTimeout, nil, now)

	var err error
	if n.Phase == PhaseDraw {
		switch {
		case len(n.DrawPile) > 0:
			n, err = DrawFromPile(n, seat, now)
		case len(n.DiscardPile) > 0:
			n, err = DrawFromDiscard(n, seat, now)
		default:
			n.settle(NoSeat, "", Tile{})
			return n, nil
		}
		if err != nil {
			return s, err
		}
	}
	t := AutoDiscard(n.Hand(seat), n.Okey, n.Rules.Timeout)
	if n, err = DiscardTile(n, seat, t.ID, now); err != nil {
		return s, err
	}
	return n, nil
}

// AutoDiscard picks the tile thrown on a player's behalf.
func AutoDiscard(hand []Tile, okey Face, policy TimeoutPolicy) Tile {
	if len(hand) == 0 {
		return Tile{}
	}
	if policy != TimeoutDiscardLowest {
		return hand[len(hand)-1]
	}
	best := -1
	for i, t := range hand {
		if t.IsWildcard(okey) {
			continue
		}
		if best < 0 || t.Number < hand[best].Number ||
			(t.Number == hand[best].Number && t.Color.index() < hand[best].Color.index()) {
			best = i
		}
	}
	if best < 0 {
		return hand[len(hand)-1]
	}
	return hand[best]
}

// settle ends the game and scores every seat. winner is NoSeat when the tiles ran out.
func (s *State) settle(winner int, kind WinKind, final Tile) {
	s.Status = StatusFinished
	s.WinnerSeat = winner

	penalty := s.Rules.FixedPenalty
	if kind == WinPairs {
		penalty *= 2
	}
	if final.IsWildcard(s.Okey) && winner != NoSeat {
		penalty *= 2
	}

	for seat, p := range s.Players {
		p.IsWinner = seat == winner
		switch {
		case p.IsWinner:
			p.Score = 0
		case s.Rules.Scoring == ScoreFixed && winner == NoSeat:
			p.Score = 0
		case s.Rules.Scoring == ScoreFixed:
			p.Score = penalty
		default:
			p.Score = HandPenalty(p.Tiles, s.Okey, s.Rules.WildcardPenalty)
		}
	}

	order := make([]*Player, len(s.Players))
	copy(order, s.Players)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].IsWinner != order[j].IsWinner {
			return order[i].IsWinner
		}
		return order[i].Score < order[j].Score
	})
	for i, p := range order {
		p.FinishOrder = i + 1
	}
}

// HandPenalty sums the numbers left in hand, counting each wildcard as wildcard.
func HandPenalty(hand []Tile, okey Face, wildcard int) int {
	sum := 0
	for _, t := range hand {
		if t.IsWildcard(okey) {
			sum += wildcard
			continue
		}
		sum += t.Number
	}
	return sum
}
