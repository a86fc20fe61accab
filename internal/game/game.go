package game

import (
	"encoding/json"
	"time"
)

// GameInfo describes a game type for the lobby.
type GameInfo struct {
	Name       string `json:"name"`
	MinPlayers int    `json:"minPlayers"`
	MaxPlayers int    `json:"maxPlayers"`
}

// MatchConfig holds settings for creating a new match.
type MatchConfig struct {
	MatchID   string
	PlayerIDs []string
	Seed      uint64
	Now       time.Time
}

// Action represents a move a player can make.
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PlayerResult holds the outcome for one player.
type PlayerResult struct {
	PlayerID string `json:"playerId"`
	Rank     int    `json:"rank"` // 1 = first place
	Score    int    `json:"score"`
}

// Event is one entry of a match's append-only log, in a form the transport can
// relay without knowing the rules.
type Event struct {
	ID   string          `json:"id"`
	Seq  int             `json:"seq"`
	Type string          `json:"type"`
	Seat int             `json:"seat"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Game describes a game type.
type Game interface {
	Info() GameInfo
	NewMatch(config MatchConfig) (Match, error)
}

// Match is one in-progress game session.
type Match interface {
	State(playerID string) any
	ValidActions(playerID string) []Action
	ApplyAction(playerID string, action Action) error
	IsOver() bool
	Results() []PlayerResult
	// MarshalJSON / UnmarshalJSON support for persistence
	MarshalJSON() ([]byte, error)
	UnmarshalJSON(data []byte) error
}

// Ticker is a Match with time-driven behavior: turn timeouts and computer players.
// Tick reports whether the match changed.
type Ticker interface {
	Tick(now time.Time) bool
}

// Validator previews an action without applying it.
type Validator interface {
	Validate(playerID string, action Action) (any, error)
}

// Journal exposes the match's event log. Events with Seq > since are returned
// in order; viewer decides what hidden information is redacted.
type Journal interface {
	Events(viewer string, since int) []Event
	LastSeq() int
}

// Presence is a Match that tracks whether players are connected.
type Presence interface {
	SetConnected(playerID string, connected bool) error
}
