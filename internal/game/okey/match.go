package okey

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"okey/internal/game"
)

// Action types accepted by Match.ApplyAction.
const (
	ActionDrawPile    = "draw_pile"
	ActionDrawDiscard = "draw_discard"
	ActionDiscard     = "discard"
	ActionFinish      = "finish"
	ActionEvaluate    = "evaluate"
)

// Bot chooses the next action for a computer-controlled seat and how long to
// pretend to think about it.
type Bot interface {
	Next(s State, seat int) (Action, time.Duration, error)
}

// Game implements game.Game for Okey.
type Game struct {
	Rules Rules
	Seats int
	Bot   Bot
}

func (g Game) seats() int {
	if g.Seats == 0 {
		return MaxPlayers
	}
	return g.Seats
}

func (g Game) Info() game.GameInfo {
	return game.GameInfo{
		Name:       "okey",
		MinPlayers: 1, // empty seats are filled with computer players
		MaxPlayers: g.seats(),
	}
}

// NewMatch seats the players in order, fills the rest with computer players and deals.
func (g Game) NewMatch(config game.MatchConfig) (game.Match, error) {
	id := config.MatchID
	if id == "" {
		id = uuid.NewString()
	}
	seed := config.Seed
	if seed == 0 {
		seed = randomSeed()
	}
	now := config.Now
	if now.IsZero() {
		now = time.Now()
	}

	s, err := NewGame(id, g.seats(), g.Rules)
	if err != nil {
		return nil, err
	}
	for _, pid := range config.PlayerIDs {
		if s, err = Join(s, pid); err != nil {
			return nil, fmt.Errorf("seat %s: %w", pid, err)
		}
	}
	if s, err = BeginStart(s); err != nil {
		return nil, err
	}
	if s, err = FillWithAI(s, g.seats()); err != nil {
		return nil, err
	}
	if s, err = Start(s, seed, now); err != nil {
		return nil, err
	}
	return &Match{St: s, bot: g.Bot}, nil
}

func randomSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// Match implements game.Match around an engine State. The engine is pure; Match
// is the caller that holds the current state, and its owner serializes access.
type Match struct {
	St  State
	bot Bot

	plan *botPlan
}

type botPlan struct {
	seq    int
	action Action
	due    time.Time
}

// Now is the clock used for player actions.
var Now = time.Now

func (m *Match) State(playerID string) any {
	return ViewFor(m.St, playerID)
}

type tilePayload struct {
	TileID string `json:"tileId"`
}

// ValidActions lists the draws open to the active player, or a discard for
// every tile in hand plus a finish for each tile that leaves a winning hand.
func (m *Match) ValidActions(playerID string) []game.Action {
	seat := m.St.SeatOf(playerID)
	if m.St.Status != StatusPlaying || seat != m.St.CurrentSeat {
		return nil
	}
	var actions []game.Action
	if m.St.Phase == PhaseDraw {
		if len(m.St.DrawPile) > 0 {
			actions = append(actions, game.Action{Type: ActionDrawPile})
		}
		if len(m.St.DiscardPile) > 0 {
			actions = append(actions, game.Action{Type: ActionDrawDiscard})
		}
		return actions
	}
	hand := m.St.Hand(seat)
	for _, t := range hand {
		payload, _ := json.Marshal(tilePayload{TileID: t.ID})
		actions = append(actions, game.Action{Type: ActionDiscard, Payload: payload})
		if m.St.Rules.Hand.Evaluate(hand, m.St.Okey, t.ID).Valid {
			actions = append(actions, game.Action{Type: ActionFinish, Payload: payload})
		}
	}
	return actions
}

// decode turns a transport action into an engine Action for seat.
func decode(seat int, action game.Action) (Action, error) {
	var p tilePayload
	switch action.Type {
	case ActionDrawPile:
		return Draw{Seat: seat}, nil
	case ActionDrawDiscard:
		return Draw{Seat: seat, FromDiscard: true}, nil
	case ActionDiscard, ActionFinish, ActionEvaluate:
		if len(action.Payload) > 0 {
			if err := json.Unmarshal(action.Payload, &p); err != nil {
				return nil, fmt.Errorf("invalid %s payload: %w", action.Type, err)
			}
		}
		if action.Type == ActionDiscard {
			return Discard{Seat: seat, TileID: p.TileID}, nil
		}
		return Finish{Seat: seat, TileID: p.TileID}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action.Type)
}

func (m *Match) ApplyAction(playerID string, action game.Action) error {
	seat := m.St.SeatOf(playerID)
	if seat == NoSeat {
		return ErrNotInGame
	}
	if action.Type == ActionEvaluate {
		return fmt.Errorf("%w: %s is read-only", ErrUnknownAction, action.Type)
	}
	a, err := decode(seat, action)
	if err != nil {
		return err
	}
	next, err := Apply(m.St, a, Now())
	if err != nil {
		return err
	}
	m.St = next
	return nil
}

// Validate evaluates the player's hand without committing. The payload's tileId
// names the tile set aside; without one the hand must hold 14 tiles.
func (m *Match) Validate(playerID string, action game.Action) (any, error) {
	seat := m.St.SeatOf(playerID)
	if seat == NoSeat {
		return nil, ErrNotInGame
	}
	a, err := decode(seat, action)
	if err != nil {
		return nil, err
	}
	f, ok := a.(Finish)
	if !ok {
		return nil, fmt.Errorf("%w: only finish and evaluate can be validated", ErrUnknownAction)
	}
	return m.St.Rules.Hand.Evaluate(m.St.Hand(seat), m.St.Okey, f.TileID), nil
}

// Tick plays computer seats whose thinking time has passed and resolves expired
// turns. It reports whether the state changed.
func (m *Match) Tick(now time.Time) bool {
	if m.St.Status != StatusPlaying {
		return false
	}
	if p := m.St.Player(m.St.CurrentSeat); p != nil && p.IsAI && m.bot != nil {
		if changed, err := m.playBot(now); err == nil {
			return changed
		}
		// a failing bot falls back to the timeout policy
	}
	next, err := HandleTimeout(m.St, now)
	if err != nil {
		return false
	}
	changed := len(next.Moves) != len(m.St.Moves) || next.Status != m.St.Status
	m.St = next
	return changed
}

func (m *Match) playBot(now time.Time) (bool, error) {
	seq := len(m.St.Moves)
	if m.plan == nil || m.plan.seq != seq {
		a, think, err := m.bot.Next(m.St, m.St.CurrentSeat)
		if err != nil {
			m.plan = nil
			return false, err
		}
		m.plan = &botPlan{seq: seq, action: a, due: m.lastActivity().Add(think)}
	}
	if now.Before(m.plan.due) {
		return false, nil
	}
	next, err := Apply(m.St, m.plan.action, now)
	m.plan = nil
	if err != nil {
		return false, err
	}
	m.St = next
	return true, nil
}

func (m *Match) lastActivity() time.Time {
	t := m.St.TurnStartedAt
	if n := len(m.St.Moves); n > 0 && m.St.Moves[n-1].At.After(t) {
		t = m.St.Moves[n-1].At
	}
	return t
}

// SetConnected records a player's connection. It never changes the turn.
func (m *Match) SetConnected(playerID string, connected bool) error {
	next, err := SetConnected(m.St, playerID, connected)
	if err != nil {
		return err
	}
	m.St = next
	return nil
}

func (m *Match) IsOver() bool {
	return m.St.Status.Terminal()
}

func (m *Match) Results() []game.PlayerResult {
	if m.St.Status != StatusFinished {
		return nil
	}
	results := make([]game.PlayerResult, 0, len(m.St.Players))
	for _, p := range m.St.Players {
		results = append(results, game.PlayerResult{PlayerID: p.ID, Rank: p.FinishOrder, Score: p.Score})
	}
	return results
}

type moveData struct {
	Tile *Tile `json:"tile,omitempty"`
}

// Events returns the log after since. A tile drawn from the pile is shown only
// to the seat that drew it.
func (m *Match) Events(viewer string, since int) []game.Event {
	seat := m.St.SeatOf(viewer)
	moves := MovesSince(m.St, since)
	events := make([]game.Event, 0, len(moves))
	for _, mv := range moves {
		d := moveData{Tile: mv.Tile}
		if mv.Type == MoveDrawPile && mv.Seat != seat && viewer != "" {
			d.Tile = nil
		}
		data, _ := json.Marshal(d)
		events = append(events, game.Event{
			ID:   mv.ID,
			Seq:  mv.Seq,
			Type: string(mv.Type),
			Seat: mv.Seat,
			At:   mv.At,
			Data: data,
		})
	}
	return events
}

func (m *Match) LastSeq() int {
	return len(m.St.Moves)
}

func (m *Match) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.St)
}

func (m *Match) UnmarshalJSON(data []byte) error {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s.ID == "" {
		return errors.New("okey: state without id")
	}
	m.St = s
	m.plan = nil
	return nil
}
