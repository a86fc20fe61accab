package okey

import "time"

const (
	MinPlayers = 2
	MaxPlayers = 4
	// NoSeat marks an unset WinnerSeat.
	NoSeat = -1
	// DealerSeat opens the game holding the extra tile.
	DealerSeat = 0
)

// Status is the game lifecycle stage.
type Status string

const (
	StatusWaiting   Status = "WAITING"
	StatusStarting  Status = "STARTING"
	StatusPlaying   Status = "PLAYING"
	StatusFinished  Status = "FINISHED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// Phase is the step of the active seat's turn.
type Phase string

const (
	PhaseDraw    Phase = "draw"
	PhaseDiscard Phase = "discard"
)

// Player is one seat at the table.
type Player struct {
	ID          string `json:"id"`
	Seat        int    `json:"seat"`
	Tiles       []Tile `json:"tiles"`
	IsAI        bool   `json:"isAI"`
	IsReady     bool   `json:"isReady"`
	IsConnected bool   `json:"isConnected"`
	Score       int    `json:"score"`
	IsWinner    bool   `json:"isWinner"`
	FinishOrder int    `json:"finishOrder"`
}

// State is the whole of one game. It is plain data: operations copy it and never
// hold references into external storage.
type State struct {
	ID            string        `json:"id"`
	Status        Status        `json:"status"`
	Rules         Rules         `json:"rules"`
	MaxPlayers    int           `json:"maxPlayers"`
	Seed          uint64        `json:"seed"`
	Players       []*Player     `json:"players"`
	DrawPile      []Tile        `json:"drawPile"`
	DiscardPile   []Tile        `json:"discardPile"` // index 0 is the newest discard
	Indicator     *Tile         `json:"indicator,omitempty"`
	Okey          Face          `json:"okey"`
	CurrentSeat   int           `json:"currentSeat"`
	Phase         Phase         `json:"phase"`
	TurnStartedAt time.Time     `json:"turnStartedAt"`
	TurnTimeLimit time.Duration `json:"turnTimeLimit"`
	WinnerSeat    int           `json:"winnerSeat"`
	StartedAt     time.Time     `json:"startedAt"`
	Moves         []Move        `json:"moves"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	c := s
	c.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		if p == nil {
			continue
		}
		cp := *p
		cp.Tiles = append([]Tile(nil), p.Tiles...)
		c.Players[i] = &cp
	}
	c.DrawPile = append([]Tile(nil), s.DrawPile...)
	c.DiscardPile = append([]Tile(nil), s.DiscardPile...)
	if s.Indicator != nil {
		ind := *s.Indicator
		c.Indicator = &ind
	}
	c.Moves = append([]Move(nil), s.Moves...)
	return c
}

// Player returns the player in seat, or nil.
func (s State) Player(seat int) *Player {
	if seat < 0 || seat >= len(s.Players) {
		return nil
	}
	return s.Players[seat]
}

// SeatOf returns the seat of playerID, or NoSeat.
func (s State) SeatOf(playerID string) int {
	for i, p := range s.Players {
		if p != nil && p.ID == playerID {
			return i
		}
	}
	return NoSeat
}

// Hand returns the tiles held in seat.
func (s State) Hand(seat int) []Tile {
	if p := s.Player(seat); p != nil {
		return p.Tiles
	}
	return nil
}

// TopDiscard returns the newest discard.
func (s State) TopDiscard() (Tile, bool) {
	if len(s.DiscardPile) == 0 {
		return Tile{}, false
	}
	return s.DiscardPile[0], true
}

// TileCount counts every tile the game holds, the face-up indicator included.
// It is TotalTiles for the whole life of a started game.
func (s State) TileCount() int {
	n := len(s.DrawPile) + len(s.DiscardPile)
	for _, p := range s.Players {
		if p != nil {
			n += len(p.Tiles)
		}
	}
	if s.Indicator != nil {
		n++
	}
	return n
}

// Deadline is when the current turn times out.
func (s State) Deadline() time.Time {
	return s.TurnStartedAt.Add(s.TurnTimeLimit)
}

// Expired reports whether the turn deadline has passed at now.
func (s State) Expired(now time.Time) bool {
	return s.Status == StatusPlaying && !now.Before(s.Deadline())
}

// FirstTurn reports whether the dealer has yet to make the opening discard.
func (s State) FirstTurn() bool {
	for _, m := range s.Moves {
		if m.Type == MoveDiscard || m.Type == MoveFinish {
			return false
		}
	}
	return true
}

func (s State) nextSeat(seat int) int {
	return (seat + 1) % s.MaxPlayers
}
