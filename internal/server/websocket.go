package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"

	"okey/internal/game"
	"okey/internal/session"
)

// WSMessage is the JSON envelope for WebSocket messages.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	PlayerID string `json:"playerId"`
}

type actionPayload struct {
	Action game.Action `json:"action"`
}

type validatePayload struct {
	TileID string `json:"tileId"`
}

type statePayload struct {
	State        any                 `json:"state"`
	ValidActions []game.Action       `json:"validActions"`
	SessionInfo  session.Info        `json:"sessionInfo"`
	Results      []game.PlayerResult `json:"results,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin for dev
	})
	if err != nil {
		logrus.WithField("session", code).Warnf("websocket accept: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// First message must be a join
	_, data, err := conn.Read(ctx)
	if err != nil {
		return
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "join" {
		sendWSError(ctx, conn, "first message must be a join")
		return
	}
	var join joinPayload
	if err := json.Unmarshal(msg.Payload, &join); err != nil || join.PlayerID == "" {
		sendWSError(ctx, conn, "invalid join payload")
		return
	}

	playerID := join.PlayerID
	log := logrus.WithFields(logrus.Fields{"session": code, "player": playerID})
	send := make(chan []byte, 64)

	// Try to reconnect existing player, or add new one
	if !sess.ConnectPlayer(playerID, send) {
		if err := sess.AddPlayer(playerID); err != nil {
			sendWSError(ctx, conn, err.Error())
			return
		}
		s.savePlayers(sess)
		sess.ConnectPlayer(playerID, send)
	}
	log.Info("player connected")

	// Notify all players about the roster change
	s.broadcastState(sess)

	// Writer goroutine: send messages from the channel to the websocket
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-send:
				if !ok {
					cancel()
					return
				}
				if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop: handle incoming messages
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWSMsg(send, "error", errorPayload{Message: "invalid message"})
			continue
		}
		if !s.handleMessage(sess, playerID, send, msg) {
			break
		}
	}

	// Player disconnected. The seat is kept for a reconnect.
	if sess.DisconnectPlayer(playerID, send) {
		log.Info("player disconnected")
		s.broadcastState(sess)
	}
}

// handleMessage processes one client message and reports whether the
// connection stays open.
func (s *Server) handleMessage(sess *session.Session, playerID string, send chan []byte, msg WSMessage) bool {
	switch msg.Type {
	case "action":
		var ap actionPayload
		if err := json.Unmarshal(msg.Payload, &ap); err != nil {
			sendWSMsg(send, "error", errorPayload{Message: "invalid action payload"})
			return true
		}
		if err := sess.Apply(playerID, ap.Action); err != nil {
			sendWSMsg(send, "error", errorPayload{Message: err.Error()})
			return true
		}
		s.persist(sess)
		s.broadcastState(sess)

	case "validate":
		var vp validatePayload
		if err := json.Unmarshal(msg.Payload, &vp); err != nil {
			sendWSMsg(send, "error", errorPayload{Message: "invalid validate payload"})
			return true
		}
		verdict, err := validate(sess, playerID, vp.TileID)
		if err != nil {
			sendWSMsg(send, "error", errorPayload{Message: err.Error()})
			return true
		}
		sendWSMsg(send, "verdict", verdict)

	case "start":
		if sess.Info().HostID != playerID {
			sendWSMsg(send, "error", errorPayload{Message: "only the host can start"})
			return true
		}
		if err := sess.Start(); err != nil {
			sendWSMsg(send, "error", errorPayload{Message: err.Error()})
			return true
		}
		s.persist(sess)
		s.broadcastState(sess)

	case "leave":
		if sess.Info().Status != session.StatusWaiting {
			sendWSMsg(send, "error", errorPayload{Message: "cannot leave a started game"})
			return true
		}
		if sess.RemovePlayer(playerID, send) {
			s.savePlayers(sess)
			s.broadcastState(sess)
		}
		return false

	default:
		sendWSMsg(send, "error", errorPayload{Message: "unknown message type: " + msg.Type})
	}
	return true
}

// broadcastState relays match events not yet sent, then each connected
// player's view of the table. Events are redacted per viewer.
func (s *Server) broadcastState(sess *session.Session) {
	sess.Lock()
	defer sess.Unlock()

	info := sess.InfoLocked()
	match := sess.Match
	journal, _ := match.(game.Journal)
	for _, pid := range info.Players {
		p := sess.Players[pid]
		if p == nil || !p.Connected {
			continue
		}
		if journal != nil {
			for _, e := range journal.Events(pid, sess.SentSeq) {
				sendWSMsg(p.Send, "event", e)
			}
		}
		sp := statePayload{SessionInfo: info}
		if match != nil && info.Status != session.StatusWaiting {
			sp.State = match.State(pid)
			sp.ValidActions = match.ValidActions(pid)
			if match.IsOver() {
				sp.Results = match.Results()
			}
		}
		sendWSMsg(p.Send, "state", sp)
	}
	if journal != nil {
		sess.SentSeq = journal.LastSeq()
	}
}

func sendWSMsg(send chan []byte, msgType string, payload any) {
	p, _ := json.Marshal(payload)
	msg, _ := json.Marshal(WSMessage{Type: msgType, Payload: p})
	select {
	case send <- msg:
	default:
	}
}

func sendWSError(ctx context.Context, conn *websocket.Conn, message string) {
	p, _ := json.Marshal(errorPayload{Message: message})
	msg, _ := json.Marshal(WSMessage{Type: "error", Payload: p})
	conn.Write(ctx, websocket.MessageText, msg)
}
