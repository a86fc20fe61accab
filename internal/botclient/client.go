// Package botclient plays a seat of a remote session over the websocket API,
// deciding with package bot from what the seat can see.
package botclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"okey/internal/game"
	"okey/internal/game/okey"
	"okey/internal/game/okey/bot"
	"okey/internal/session"
)

const writeWait = 10 * time.Second

// ErrRejected wraps an error message sent by the server.
var ErrRejected = errors.New("server rejected")

// message mirrors the server's envelope.
type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type stateMessage struct {
	State       json.RawMessage     `json:"state"`
	SessionInfo sessionInfo         `json:"sessionInfo"`
	Results     []game.PlayerResult `json:"results"`
}

type sessionInfo struct {
	Status  string   `json:"status"`
	HostID  string   `json:"hostId"`
	Players []string `json:"players"`
}

type errorMessage struct {
	Message string `json:"message"`
}

// Client joins a session as PlayerID and plays until the match ends.
type Client struct {
	URL      string // ws://host/api/sessions/{code}/ws
	PlayerID string
	Seed     uint64
	// StartAt starts the match, if this client is host, once this many
	// players have joined. Zero leaves starting to someone else.
	StartAt int

	Dialer *websocket.Dialer
	// Sleep waits out the thinking time.
	Sleep func(ctx context.Context, d time.Duration) error

	log     *logrus.Entry
	started bool
	acted   string
}

// Result is the end of a played match.
type Result struct {
	Status  okey.Status
	Results []game.PlayerResult
}

// Run dials, joins and plays. It returns when the match is over, the
// connection drops, or ctx is done.
func (c *Client) Run(ctx context.Context) (Result, error) {
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	if c.Sleep == nil {
		c.Sleep = sleep
	}
	c.log = logrus.WithField("player", c.PlayerID)

	conn, _, err := dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := send(conn, "join", map[string]string{"playerId": c.PlayerID}); err != nil {
		return Result{}, err
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			return Result{}, fmt.Errorf("read: %w", err)
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			return Result{}, fmt.Errorf("decode message: %w", err)
		}
		switch msg.Type {
		case "state":
			res, done, err := c.onState(ctx, conn, msg.Payload)
			if err != nil || done {
				return res, err
			}
		case "error":
			var e errorMessage
			json.Unmarshal(msg.Payload, &e)
			if overtaken(e.Message) {
				c.log.Infof("action overtaken: %s", e.Message)
				continue
			}
			return Result{}, fmt.Errorf("%w: %s", ErrRejected, e.Message)
		case "event":
			c.log.Debugf("event %s", msg.Payload)
		}
	}
}

func (c *Client) onState(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) (Result, bool, error) {
	var sm stateMessage
	if err := json.Unmarshal(payload, &sm); err != nil {
		return Result{}, false, fmt.Errorf("decode state: %w", err)
	}
	if len(sm.State) == 0 || string(sm.State) == "null" {
		if c.StartAt > 0 && !c.started && sm.SessionInfo.HostID == c.PlayerID && len(sm.SessionInfo.Players) >= c.StartAt {
			c.started = true
			return Result{}, false, send(conn, "start", struct{}{})
		}
		return Result{}, false, nil
	}
	var v okey.View
	if err := json.Unmarshal(sm.State, &v); err != nil {
		return Result{}, false, fmt.Errorf("decode view: %w", err)
	}
	if v.Status.Terminal() {
		return Result{Status: v.Status, Results: sm.Results}, true, nil
	}
	if v.Status != okey.StatusPlaying || v.You != v.CurrentSeat {
		return Result{}, false, nil
	}
	// one action per turn step
	key := fmt.Sprintf("%d/%s", v.LastSeq, v.Phase)
	if key == c.acted {
		return Result{}, false, nil
	}
	c.acted = key

	d := bot.Choose(bot.TableFromView(v), c.Seed+uint64(v.LastSeq))
	if err := c.Sleep(ctx, d.ThinkingTime); err != nil {
		return Result{}, false, err
	}
	a, err := Action(d)
	if err != nil {
		return Result{}, false, err
	}
	c.log.WithField("seq", v.LastSeq).Debugf("%s %s", a.Type, d.TileID)
	return Result{}, false, send(conn, "action", map[string]game.Action{"action": a})
}

// overtakenErrs are rejections of an action the table had already moved past,
// such as a turn that timed out while the bot was thinking. The next state
// decides again.
var overtakenErrs = []error{
	okey.ErrNotYourTurn,
	okey.ErrWrongPhase,
	okey.ErrGameNotActive,
	session.ErrNotPlaying,
}

func overtaken(message string) bool {
	for _, err := range overtakenErrs {
		if strings.Contains(message, err.Error()) {
			return true
		}
	}
	return false
}

// Action turns a bot decision into a transport action.
func Action(d bot.Decision) (game.Action, error) {
	switch d.Action {
	case okey.MoveDrawPile:
		return game.Action{Type: okey.ActionDrawPile}, nil
	case okey.MoveDrawDiscard:
		return game.Action{Type: okey.ActionDrawDiscard}, nil
	case okey.MoveDiscard, okey.MoveFinish:
		payload, err := json.Marshal(map[string]string{"tileId": d.TileID})
		if err != nil {
			return game.Action{}, err
		}
		typ := okey.ActionDiscard
		if d.Action == okey.MoveFinish {
			typ = okey.ActionFinish
		}
		return game.Action{Type: typ, Payload: payload}, nil
	}
	return game.Action{}, fmt.Errorf("%w: %s", okey.ErrUnknownAction, d.Action)
}

func send(conn *websocket.Conn, msgType string, payload any) error {
	p, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(message{Type: msgType, Payload: p})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", msgType, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreateSession opens an okey session on the server at baseURL with playerID
// as host and returns its code.
func CreateSession(ctx context.Context, client *http.Client, baseURL, playerID string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	body, err := json.Marshal(map[string]string{"gameType": "okey", "playerId": playerID})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(baseURL, "/")+"/api/sessions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return "", fmt.Errorf("%w: %d %s", ErrRejected, resp.StatusCode, e.Error)
	}
	var created struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode session: %w", err)
	}
	return created.Code, nil
}

// SessionURL is the websocket address of session code on the server at baseURL.
func SessionURL(baseURL, code string) string {
	u := strings.TrimSuffix(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/sessions/" + code + "/ws"
}
