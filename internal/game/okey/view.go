package okey

import "time"

// SeatView is what every player sees of a seat.
type SeatView struct {
	ID          string `json:"id"`
	Seat        int    `json:"seat"`
	IsAI        bool   `json:"isAI"`
	IsConnected bool   `json:"isConnected"`
	TileCount   int    `json:"tileCount"`
	Score       int    `json:"score"`
	IsWinner    bool   `json:"isWinner"`
	FinishOrder int    `json:"finishOrder,omitempty"`
	// Tiles are revealed once the game is over.
	Tiles []Tile `json:"tiles,omitempty"`
}

// View is one player's picture of the table. Other hands and the draw pile
// order stay hidden.
type View struct {
	ID           string     `json:"id"`
	Status       Status     `json:"status"`
	You          int        `json:"you"`
	Players      []SeatView `json:"players"`
	Hand         []Tile     `json:"hand"`
	DrawCount    int        `json:"drawCount"`
	DiscardPile  []Tile     `json:"discardPile"`
	Indicator    *Tile      `json:"indicator,omitempty"`
	Okey         Face       `json:"okey"`
	HandRules    HandRules  `json:"handRules"`
	CurrentSeat  int        `json:"currentSeat"`
	Phase        Phase      `json:"phase"`
	TurnDeadline time.Time  `json:"turnDeadline"`
	TurnLimit    int64      `json:"turnLimitMs"`
	WinnerSeat   int        `json:"winnerSeat"`
	LastSeq      int        `json:"lastSeq"`
}

// ViewFor builds the view for playerID; spectators get seat NoSeat and no hand.
func ViewFor(s State, playerID string) View {
	v := View{
		ID:           s.ID,
		Status:       s.Status,
		You:          s.SeatOf(playerID),
		Players:      make([]SeatView, 0, len(s.Players)),
		DrawCount:    len(s.DrawPile),
		DiscardPile:  append([]Tile(nil), s.DiscardPile...),
		Indicator:    s.Indicator,
		Okey:         s.Okey,
		HandRules:    s.Rules.Hand,
		CurrentSeat:  s.CurrentSeat,
		Phase:        s.Phase,
		TurnDeadline: s.Deadline(),
		TurnLimit:    s.TurnTimeLimit.Milliseconds(),
		WinnerSeat:   s.WinnerSeat,
		LastSeq:      len(s.Moves),
	}
	if v.You != NoSeat {
		v.Hand = append([]Tile(nil), s.Players[v.You].Tiles...)
	}
	for seat, p := range s.Players {
		if p == nil {
			v.Players = append(v.Players, SeatView{Seat: seat})
			continue
		}
		sv := SeatView{
			ID:          p.ID,
			Seat:        seat,
			IsAI:        p.IsAI,
			IsConnected: p.IsConnected,
			TileCount:   len(p.Tiles),
			Score:       p.Score,
			IsWinner:    p.IsWinner,
			FinishOrder: p.FinishOrder,
		}
		if s.Status == StatusFinished {
			sv.Tiles = append([]Tile(nil), p.Tiles...)
		}
		v.Players = append(v.Players, sv)
	}
	return v
}
