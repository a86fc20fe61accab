package okey

import (
	"fmt"
	"strconv"
	"time"
)

// AIPrefix starts the player id of every computer-controlled seat.
const AIPrefix = "ai-"

// NewGame creates an empty table in the WAITING state.
func NewGame(id string, maxPlayers int, rules Rules) (State, error) {
	if maxPlayers < MinPlayers || maxPlayers > MaxPlayers {
		return State{}, fmt.Errorf("max players must be %d..%d, got %d", MinPlayers, MaxPlayers, maxPlayers)
	}
	if err := rules.Validate(); err != nil {
		return State{}, fmt.Errorf("rules: %w", err)
	}
	return State{
		ID:            id,
		Status:        StatusWaiting,
		Rules:         rules,
		MaxPlayers:    maxPlayers,
		Players:       make([]*Player, maxPlayers),
		TurnTimeLimit: rules.TurnTimeLimit,
		WinnerSeat:    NoSeat,
	}, nil
}

// Join seats a human player in the lowest free seat.
func Join(s State, playerID string) (State, error) {
	if s.Status != StatusWaiting {
		return s, ErrGameNotActive
	}
	if s.SeatOf(playerID) != NoSeat {
		return s, ErrAlreadySeated
	}
	seat := freeSeat(s)
	if seat == NoSeat {
		return s, ErrSeatsFull
	}
	n := s.Clone()
	n.Players[seat] = &Player{ID: playerID, Seat: seat, IsConnected: true}
	return n, nil
}

// Leave frees a seat before the game starts.
func Leave(s State, playerID string) (State, error) {
	if s.Status != StatusWaiting {
		return s, ErrGameNotActive
	}
	seat := s.SeatOf(playerID)
	if seat == NoSeat {
		return s, ErrNotInGame
	}
	n := s.Clone()
	n.Players[seat] = nil
	return n, nil
}

// SetReady flags a seated player as ready.
func SetReady(s State, playerID string, ready bool) (State, error) {
	if s.Status != StatusWaiting && s.Status != StatusStarting {
		return s, ErrGameNotActive
	}
	seat := s.SeatOf(playerID)
	if seat == NoSeat {
		return s, ErrNotInGame
	}
	n := s.Clone()
	n.Players[seat].IsReady = ready
	return n, nil
}

// SetConnected records a player's transport connection. It never changes the turn.
func SetConnected(s State, playerID string, connected bool) (State, error) {
	if s.Status.Terminal() {
		return s, ErrGameNotActive
	}
	seat := s.SeatOf(playerID)
	if seat == NoSeat {
		return s, ErrNotInGame
	}
	n := s.Clone()
	n.Players[seat].IsConnected = connected
	return n, nil
}

// BeginStart closes the lobby.
func BeginStart(s State) (State, error) {
	if s.Status != StatusWaiting {
		return s, ErrGameNotActive
	}
	n := s.Clone()
	n.Status = StatusStarting
	return n, nil
}

// FillWithAI seats up to count computer players in the free seats, lowest first.
func FillWithAI(s State, count int) (State, error) {
	if s.Status != StatusStarting {
		return s, ErrGameNotActive
	}
	n := s.Clone()
	for ; count > 0; count-- {
		seat := freeSeat(n)
		if seat == NoSeat {
			break
		}
		n.Players[seat] = &Player{
			ID:          AIPrefix + strconv.Itoa(seat),
			Seat:        seat,
			IsAI:        true,
			IsReady:     true,
			IsConnected: true,
		}
	}
	return n, nil
}

// Start builds and deals the tiles once every seat is taken. The dealer opens in
// the discard phase holding 15 tiles.
func Start(s State, seed uint64, now time.Time) (State, error) {
	if s.Status != StatusStarting {
		return s, ErrGameNotActive
	}
	if freeSeat(s) != NoSeat {
		return s, ErrSeatsEmpty
	}

	pile, indicator, okey := BuildDeck(seed)
	hands, rest, err := Deal(pile, s.MaxPlayers)
	if err != nil {
		return s, err
	}

	n := s.Clone()
	for seat, p := range n.Players {
		p.Tiles = hands[seat]
		p.Score, p.IsWinner, p.FinishOrder = 0, false, 0
	}
	n.Status = StatusPlaying
	n.Seed = seed
	n.DrawPile = rest
	n.DiscardPile = nil
	n.Indicator = &indicator
	n.Okey = okey
	n.CurrentSeat = DealerSeat
	n.Phase = PhaseDiscard
	n.TurnStartedAt = now
	n.TurnTimeLimit = s.Rules.TurnTimeLimit
	n.WinnerSeat = NoSeat
	n.StartedAt = now
	n.Moves = nil
	return n, nil
}

// Cancel abandons a game that has not ended.
func Cancel(s State) (State, error) {
	if s.Status.Terminal() {
		return s, ErrGameNotActive
	}
	n := s.Clone()
	n.Status = StatusCancelled
	return n, nil
}

func freeSeat(s State) int {
	for i, p := range s.Players {
		if p == nil {
			return i
		}
	}
	return NoSeat
}
