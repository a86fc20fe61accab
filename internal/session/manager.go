package session

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"okey/internal/game"
	"okey/internal/storage"
)

// Manager manages all active sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	registry *game.Registry
	store    *storage.Store

	// OnChange is called after the tick loop changes a session.
	OnChange func(*Session)
}

// NewManager creates a session manager.
func NewManager(registry *game.Registry, store *storage.Store) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		registry: registry,
		store:    store,
	}
}

// Create makes a new session and persists it.
func (m *Manager) Create(gameType string) (*Session, error) {
	g, ok := m.registry.Get(gameType)
	if !ok {
		return nil, fmt.Errorf("unknown game type: %s", gameType)
	}
	code := generateCode()
	if err := m.store.CreateSession(code, gameType); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	s := NewSession(code, gameType, g)
	m.mu.Lock()
	m.sessions[code] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns a session by code.
func (m *Manager) Get(code string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[code]
	return s, ok
}

// List returns info for all active sessions, ordered by code.
func (m *Manager) List() []Info {
	infos := make([]Info, 0)
	for _, s := range m.snapshot() {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Code < infos[j].Code })
	return infos
}

func (m *Manager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// SaveMatchState persists the session status, the match state and any match
// events not yet written to the move log.
func (m *Manager) SaveMatchState(s *Session) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	match := s.Match
	status := s.Status
	var events []game.Event
	seq := 0
	if j, ok := match.(game.Journal); ok {
		events = j.Events("", s.savedSeq)
		seq = j.LastSeq()
	}
	var data []byte
	var err error
	if match != nil {
		data, err = match.MarshalJSON()
	}
	s.mu.RUnlock()

	if err := m.store.UpdateSessionStatus(s.Code, string(status)); err != nil {
		return err
	}
	if match == nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("marshal match state: %w", err)
	}
	if err := m.store.SaveMatchState(s.Code, string(data), seq); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	rows := make([]storage.MoveRow, 0, len(events))
	for _, e := range events {
		rows = append(rows, storage.MoveRow{
			SessionCode: s.Code,
			Seq:         e.Seq,
			MoveID:      e.ID,
			Type:        e.Type,
			Seat:        e.Seat,
			At:          e.At,
			Data:        string(e.Data),
		})
	}
	if err := m.store.AppendMoves(rows); err != nil {
		return fmt.Errorf("append moves: %w", err)
	}
	s.mu.Lock()
	if last := events[len(events)-1].Seq; last > s.savedSeq {
		s.savedSeq = last
	}
	s.mu.Unlock()
	return nil
}

// Moves returns the persisted move log of a session after since.
func (m *Manager) Moves(code string, since int) ([]game.Event, error) {
	if _, err := m.store.GetSession(code); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	rows, err := m.store.ListMoves(code, since)
	if err != nil {
		return nil, err
	}
	events := make([]game.Event, 0, len(rows))
	for _, r := range rows {
		e := game.Event{ID: r.MoveID, Seq: r.Seq, Type: r.Type, Seat: r.Seat, At: r.At}
		if r.Data != "" {
			e.Data = json.RawMessage(r.Data)
		}
		events = append(events, e)
	}
	return events, nil
}

// Restore loads unfinished sessions from the database on startup. Restored
// players are offline until they reconnect.
func (m *Manager) Restore() error {
	rows, err := m.store.ListSessions("")
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, row := range rows {
		if row.Status == string(StatusFinished) {
			continue
		}
		log := logrus.WithField("session", row.Code)
		g, ok := m.registry.Get(row.GameType)
		if !ok {
			log.Warnf("skipping session: unknown game type %s", row.GameType)
			continue
		}
		s := NewSession(row.Code, row.GameType, g)
		s.Status = Status(row.Status)
		if err := m.loadSessionPlayers(s); err != nil {
			log.Warnf("skipping session: players: %v", err)
			continue
		}

		if s.Status == StatusPlaying {
			if err := m.restoreMatch(s, g); err != nil {
				log.Warnf("skipping session: %v", err)
				continue
			}
		}
		m.mu.Lock()
		m.sessions[row.Code] = s
		m.mu.Unlock()
		log.Infof("restored %s session with %d players", s.Status, len(s.Order))
	}
	return nil
}

func (m *Manager) restoreMatch(s *Session, g game.Game) error {
	stateJSON, err := m.store.GetMatchState(s.Code)
	if err != nil {
		return fmt.Errorf("no match state: %w", err)
	}
	match, err := g.NewMatch(game.MatchConfig{MatchID: s.Code, PlayerIDs: s.Order})
	if err != nil {
		return fmt.Errorf("new match: %w", err)
	}
	if err := match.UnmarshalJSON([]byte(stateJSON)); err != nil {
		return fmt.Errorf("unmarshal match state: %w", err)
	}
	s.Match = match
	if s.savedSeq, err = m.store.LastMoveSeq(s.Code); err != nil {
		return fmt.Errorf("last move: %w", err)
	}
	if j, ok := match.(game.Journal); ok {
		s.SentSeq = j.LastSeq()
	}
	for _, id := range s.Order {
		s.presenceLocked(id, false)
	}
	return nil
}

// Remove deletes a session from memory and storage.
func (m *Manager) Remove(code string) {
	m.mu.Lock()
	delete(m.sessions, code)
	m.mu.Unlock()
	if err := m.store.DeleteSession(code); err != nil {
		logrus.WithField("session", code).Errorf("delete session: %v", err)
	}
}

// TickLoop drives turn timers and computer players.
func (m *Manager) TickLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for now := range ticker.C {
		m.tick(now)
	}
}

func (m *Manager) tick(now time.Time) {
	for _, s := range m.snapshot() {
		if !s.Tick(now) {
			continue
		}
		if err := m.SaveMatchState(s); err != nil {
			logrus.WithField("session", s.Code).Errorf("save match state: %v", err)
		}
		if m.OnChange != nil {
			m.OnChange(s)
		}
	}
}

// CleanupLoop removes stale sessions periodically.
func (m *Manager) CleanupLoop(interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for now := range ticker.C {
		m.cleanup(now, maxAge)
	}
}

func (m *Manager) cleanup(now time.Time, maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, s := range m.sessions {
		s.mu.RLock()
		empty := len(s.Players) == 0
		finished := s.Status == StatusFinished
		s.mu.RUnlock()

		if finished || empty {
			row, err := m.store.GetSession(code)
			if err != nil {
				delete(m.sessions, code)
				continue
			}
			if now.Sub(row.CreatedAt) > maxAge || empty {
				logrus.WithField("session", code).Info("cleaning up session")
				m.store.DeleteSession(code)
				delete(m.sessions, code)
			}
		}
	}
}

func generateCode() string {
	b := make([]byte, 3) // 6 hex chars
	rand.Read(b)
	return hex.EncodeToString(b)
}

// sessionSnapshot is the persisted roster.
type sessionSnapshot struct {
	Players []string `json:"players"`
	HostID  string   `json:"hostId"`
}

// SaveSessionPlayers persists the roster in join order.
func (m *Manager) SaveSessionPlayers(s *Session) error {
	s.mu.RLock()
	snap := sessionSnapshot{
		Players: append([]string{}, s.Order...),
		HostID:  s.HostID,
	}
	s.mu.RUnlock()
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return m.store.SaveSessionPlayers(s.Code, string(data))
}

func (m *Manager) loadSessionPlayers(s *Session) error {
	data, err := m.store.GetSessionPlayers(s.Code)
	if err != nil {
		return err
	}
	var snap sessionSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return err
	}
	for _, id := range snap.Players {
		s.addLocked(id)
	}
	if snap.HostID != "" {
		s.HostID = snap.HostID
	}
	return nil
}
