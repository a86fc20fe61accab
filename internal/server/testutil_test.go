package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"nhooyr.io/websocket"

	"okey/internal/game"
	"okey/internal/game/okey"
	"okey/internal/session"
	"okey/internal/storage"
)

// --- Test environment ---

type testEnv struct {
	ts  *httptest.Server
	mgr *session.Manager
}

// setupTestEnv serves a two-seat okey table with no computer brain, so empty
// seats only move on timeouts.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := game.NewRegistry()
	reg.Register(okey.Game{Rules: okey.DefaultRules(), Seats: 2})
	mgr := session.NewManager(reg, store)

	webFS := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html><body>test</body></html>")},
	}
	srv := New(reg, mgr, webFS)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, mgr: mgr}
}

func timeoutCtx(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// --- REST API helpers ---

func createSessionViaAPI(t *testing.T, ts *httptest.Server, gameType, playerID string) string {
	t.Helper()
	body := fmt.Sprintf(`{"gameType":%q,"playerId":%q}`, gameType, playerID)
	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var result createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result.Code
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if into != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

// --- WebSocket helpers ---

func wsURL(ts *httptest.Server, code string) string {
	return strings.Replace(ts.URL, "http://", "ws://", 1) + "/api/sessions/" + code + "/ws"
}

// wsConnect dials a WebSocket, sends a join message, and returns the connection.
// The connection is closed when the test ends.
func wsConnect(t *testing.T, ts *httptest.Server, code, playerID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := timeoutCtx(t)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(ts, code), nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	wsSend(ctx, t, conn, "join", joinPayload{PlayerID: playerID})
	return conn
}

// wsSend marshals and sends a typed WebSocket message.
func wsSend(ctx context.Context, t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	p, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	data, _ := json.Marshal(WSMessage{Type: msgType, Payload: p})
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("ws write: %v", err)
	}
}

// wsRead reads a message and expects it to have the given type.
func wsRead(ctx context.Context, t *testing.T, conn *websocket.Conn, msgType string) WSMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("ws read: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal ws message: %v", err)
	}
	if msg.Type != msgType {
		t.Fatalf("expected %s message, got %q: %s", msgType, msg.Type, string(msg.Payload))
	}
	return msg
}

func readState(ctx context.Context, t *testing.T, conn *websocket.Conn) statePayload {
	t.Helper()
	var sp statePayload
	if err := json.Unmarshal(wsRead(ctx, t, conn, "state").Payload, &sp); err != nil {
		t.Fatalf("unmarshal state payload: %v", err)
	}
	return sp
}

func readError(ctx context.Context, t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	var ep errorPayload
	if err := json.Unmarshal(wsRead(ctx, t, conn, "error").Payload, &ep); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	return ep.Message
}

func readEvent(ctx context.Context, t *testing.T, conn *websocket.Conn) (game.Event, *okey.Tile) {
	t.Helper()
	var e game.Event
	if err := json.Unmarshal(wsRead(ctx, t, conn, "event").Payload, &e); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	var d struct {
		Tile *okey.Tile `json:"tile"`
	}
	json.Unmarshal(e.Data, &d)
	return e, d.Tile
}

// viewOf decodes the table view carried in a state message.
func viewOf(t *testing.T, sp statePayload) okey.View {
	t.Helper()
	data, err := json.Marshal(sp.State)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	var v okey.View
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("unmarshal view: %v", err)
	}
	return v
}

func tileAction(typ, tileID string) actionPayload {
	payload, _ := json.Marshal(map[string]string{"tileId": tileID})
	return actionPayload{Action: game.Action{Type: typ, Payload: payload}}
}

// startTable seats alice and bob over websockets and starts the match, with
// every broadcast so far drained. Alice is the dealer.
func startTable(t *testing.T, env *testEnv) (code string, alice, bob *websocket.Conn, aliceView okey.View) {
	t.Helper()
	ctx, cancel := timeoutCtx(t)
	defer cancel()

	code = createSessionViaAPI(t, env.ts, "okey", "alice")
	alice = wsConnect(t, env.ts, code, "alice")
	readState(ctx, t, alice)
	bob = wsConnect(t, env.ts, code, "bob")
	readState(ctx, t, alice)
	readState(ctx, t, bob)

	wsSend(ctx, t, alice, "start", struct{}{})
	aliceView = viewOf(t, readState(ctx, t, alice))
	readState(ctx, t, bob)
	return code, alice, bob, aliceView
}

func containsPlayer(players []string, id string) bool {
	for _, p := range players {
		if p == id {
			return true
		}
	}
	return false
}
