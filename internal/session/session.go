package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"okey/internal/game"
)

// Status represents the session lifecycle.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

var (
	ErrNotFound   = errors.New("session not found")
	ErrNotWaiting = errors.New("session is not accepting players")
	ErrNotPlaying = errors.New("session is not playing")
	ErrFull       = errors.New("session is full")
)

// Player is a member of a session and their outbound queue.
type Player struct {
	ID        string
	Send      chan []byte // outbound messages
	Connected bool
}

// Session is one table with its members. Order is join order, which becomes
// seat order when the match starts.
type Session struct {
	mu       sync.RWMutex
	Code     string
	GameType string
	Status   Status
	HostID   string
	Players  map[string]*Player
	Order    []string
	Match    game.Match
	// SentSeq is the last match event relayed to clients.
	SentSeq int

	// saveMu serializes persistence so a stale copy is never written last.
	saveMu   sync.Mutex
	savedSeq int
	game     game.Game
}

// NewSession creates a session in the waiting state.
func NewSession(code, gameType string, g game.Game) *Session {
	return &Session{
		Code:     code,
		GameType: gameType,
		Status:   StatusWaiting,
		Players:  make(map[string]*Player),
		game:     g,
	}
}

// AddPlayer seats a player in the lobby. The first player becomes host.
func (s *Session) AddPlayer(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusWaiting {
		return ErrNotWaiting
	}
	if _, exists := s.Players[playerID]; exists {
		return fmt.Errorf("player %s already in session", playerID)
	}
	if len(s.Players) >= s.game.Info().MaxPlayers {
		return ErrFull
	}
	s.addLocked(playerID)
	return nil
}

func (s *Session) addLocked(playerID string) {
	s.Players[playerID] = &Player{
		ID:   playerID,
		Send: make(chan []byte, 64),
	}
	s.Order = append(s.Order, playerID)
	if s.HostID == "" {
		s.HostID = playerID
	}
}

// RemovePlayer drops a player from the session when send is their current
// channel, and closes it. A request from an older connection of the same
// player is ignored. Host passes to the next player in join order.
func (s *Session) RemovePlayer(playerID string, send chan []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Players[playerID]
	if !ok || p.Send != send {
		return false
	}
	close(send)
	delete(s.Players, playerID)
	for i, id := range s.Order {
		if id == playerID {
			s.Order = append(s.Order[:i:i], s.Order[i+1:]...)
			break
		}
	}
	if s.HostID == playerID {
		s.HostID = ""
		if len(s.Order) > 0 {
			s.HostID = s.Order[0]
		}
	}
	s.presenceLocked(playerID, false)
	return true
}

// ConnectPlayer replaces the Send channel for a (re)connecting player.
func (s *Session) ConnectPlayer(playerID string, send chan []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Players[playerID]
	if !ok {
		return false
	}
	p.Send = send
	p.Connected = true
	s.presenceLocked(playerID, true)
	return true
}

// DisconnectPlayer marks a player offline if send is still their current
// channel. A newer connection for the same player is left alone.
func (s *Session) DisconnectPlayer(playerID string, send chan []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Players[playerID]
	if !ok || p.Send != send {
		return false
	}
	p.Connected = false
	s.presenceLocked(playerID, false)
	return true
}

func (s *Session) presenceLocked(playerID string, connected bool) {
	if pr, ok := s.Match.(game.Presence); ok && !s.Match.IsOver() {
		pr.SetConnected(playerID, connected)
	}
}

// PlayerIDs returns the player IDs in join order.
func (s *Session) PlayerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.Order...)
}

// Start deals the match. Players take seats in join order.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusWaiting {
		return ErrNotWaiting
	}
	info := s.game.Info()
	if len(s.Order) < info.MinPlayers {
		return fmt.Errorf("need at least %d players, have %d", info.MinPlayers, len(s.Order))
	}
	match, err := s.game.NewMatch(game.MatchConfig{
		MatchID:   s.Code,
		PlayerIDs: append([]string(nil), s.Order...),
	})
	if err != nil {
		return fmt.Errorf("new match: %w", err)
	}
	s.Match = match
	s.Status = StatusPlaying
	for _, p := range s.Players {
		if !p.Connected {
			s.presenceLocked(p.ID, false)
		}
	}
	return nil
}

// Apply runs a player's action against the match.
func (s *Session) Apply(playerID string, action game.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status != StatusPlaying || s.Match == nil {
		return ErrNotPlaying
	}
	if err := s.Match.ApplyAction(playerID, action); err != nil {
		return err
	}
	s.settleLocked()
	return nil
}

// Tick advances a time-driven match and reports whether it changed.
func (s *Session) Tick(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status != StatusPlaying {
		return false
	}
	t, ok := s.Match.(game.Ticker)
	if !ok || !t.Tick(now) {
		return false
	}
	s.settleLocked()
	return true
}

func (s *Session) settleLocked() {
	if s.Match.IsOver() {
		s.Status = StatusFinished
	}
}

// Finish marks the session as finished.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = StatusFinished
}

// Broadcast sends a message to all connected players.
func (s *Session) Broadcast(msg []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.Players {
		select {
		case p.Send <- msg:
		default:
			// drop message if buffer full
		}
	}
}

// GetPlayer returns a player, or nil if not found.
func (s *Session) GetPlayer(playerID string) *Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Players[playerID]
}

// Info returns session info for the API.
type Info struct {
	Code      string   `json:"code"`
	GameType  string   `json:"gameType"`
	Status    Status   `json:"status"`
	Players   []string `json:"players"`
	Connected []string `json:"connected"`
	HostID    string   `json:"hostId"`
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infoLocked()
}

// InfoLocked returns info without acquiring the lock (caller must hold it).
func (s *Session) InfoLocked() Info {
	return s.infoLocked()
}

func (s *Session) infoLocked() Info {
	connected := []string{}
	for _, id := range s.Order {
		if s.Players[id].Connected {
			connected = append(connected, id)
		}
	}
	return Info{
		Code:      s.Code,
		GameType:  s.GameType,
		Status:    s.Status,
		Players:   append([]string{}, s.Order...),
		Connected: connected,
		HostID:    s.HostID,
	}
}

// Lock/RLock/Unlock/RUnlock expose the mutex for the server's websocket handler.
func (s *Session) Lock()    { s.mu.Lock() }
func (s *Session) Unlock()  { s.mu.Unlock() }
func (s *Session) RLock()   { s.mu.RLock() }
func (s *Session) RUnlock() { s.mu.RUnlock() }
