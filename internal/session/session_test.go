package session

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"okey/internal/game"
	"okey/internal/game/okey"
	"okey/internal/storage"
)

func newRegistry() *game.Registry {
	reg := game.NewRegistry()
	reg.Register(okey.Game{Rules: okey.DefaultRules(), Seats: 2})
	return reg
}

func setupTest(t *testing.T) (*Manager, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewManager(newRegistry(), store), store
}

func startedSession(t *testing.T, mgr *Manager, players ...string) *Session {
	t.Helper()
	sess, err := mgr.Create("okey")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, p := range players {
		if err := sess.AddPlayer(p); err != nil {
			t.Fatalf("add %s: %v", p, err)
		}
	}
	if err := sess.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return sess
}

func okeyState(s *Session) okey.State {
	return s.Match.(*okey.Match).St
}

func discard(t *testing.T, s *Session, playerID string) {
	t.Helper()
	st := okeyState(s)
	tile := st.Hand(st.SeatOf(playerID))[0]
	payload, _ := json.Marshal(map[string]string{"tileId": tile.ID})
	if err := s.Apply(playerID, game.Action{Type: okey.ActionDiscard, Payload: payload}); err != nil {
		t.Fatalf("discard: %v", err)
	}
}

func TestCreateAndJoin(t *testing.T) {
	mgr, _ := setupTest(t)

	sess, err := mgr.Create("okey")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.Code == "" {
		t.Fatal("expected non-empty code")
	}
	if err := sess.AddPlayer("alice"); err != nil {
		t.Fatalf("add alice: %v", err)
	}
	if err := sess.AddPlayer("bob"); err != nil {
		t.Fatalf("add bob: %v", err)
	}

	info := sess.Info()
	if len(info.Players) != 2 || info.Players[0] != "alice" {
		t.Fatalf("expected [alice bob], got %v", info.Players)
	}
	if info.Status != StatusWaiting {
		t.Fatalf("expected waiting, got %s", info.Status)
	}
	if len(info.Connected) != 0 {
		t.Fatalf("nobody has connected yet, got %v", info.Connected)
	}
}

func TestSessionFull(t *testing.T) {
	mgr, _ := setupTest(t)

	sess, _ := mgr.Create("okey")
	sess.AddPlayer("alice")
	sess.AddPlayer("bob")

	if err := sess.AddPlayer("charlie"); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
}

func TestStartSeatsInJoinOrder(t *testing.T) {
	mgr, _ := setupTest(t)
	sess := startedSession(t, mgr, "zed", "amy")

	if sess.Status != StatusPlaying {
		t.Fatalf("expected playing, got %s", sess.Status)
	}
	st := okeyState(sess)
	if st.SeatOf("zed") != 0 || st.SeatOf("amy") != 1 {
		t.Fatal("seats do not follow join order")
	}
	if st.ID != sess.Code {
		t.Fatalf("match id %s, want %s", st.ID, sess.Code)
	}
}

func TestStartFillsWithComputerPlayers(t *testing.T) {
	mgr, _ := setupTest(t)
	sess := startedSession(t, mgr, "alice")
	if p := okeyState(sess).Player(1); p == nil || !p.IsAI {
		t.Fatal("empty seat was not given to a computer player")
	}
}

func TestStartNotEnoughPlayers(t *testing.T) {
	mgr, _ := setupTest(t)
	sess, _ := mgr.Create("okey")
	if err := sess.Start(); err == nil {
		t.Fatal("expected error for not enough players")
	}
}

func TestApply(t *testing.T) {
	mgr, _ := setupTest(t)
	waiting, _ := mgr.Create("okey")
	if err := waiting.Apply("alice", game.Action{Type: okey.ActionDrawPile}); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("expected ErrNotPlaying, got %v", err)
	}

	sess := startedSession(t, mgr, "alice", "bob")
	if err := sess.Apply("bob", game.Action{Type: okey.ActionDrawPile}); !errors.Is(err, okey.ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	discard(t, sess, "alice")
	if okeyState(sess).CurrentSeat != 1 {
		t.Fatal("turn did not pass to bob")
	}
}

func TestPersistence(t *testing.T) {
	mgr, store := setupTest(t)
	sess := startedSession(t, mgr, "alice", "bob")
	if err := mgr.SaveSessionPlayers(sess); err != nil {
		t.Fatalf("save players: %v", err)
	}
	sess.ConnectPlayer("alice", make(chan []byte, 1))
	discard(t, sess, "alice")

	if err := mgr.SaveMatchState(sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	// a second save does not duplicate the log
	if err := mgr.SaveMatchState(sess); err != nil {
		t.Fatalf("save again: %v", err)
	}
	moves, err := mgr.Moves(sess.Code, 0)
	if err != nil {
		t.Fatalf("moves: %v", err)
	}
	if len(moves) != 1 || moves[0].Type != string(okey.MoveDiscard) || moves[0].Seq != 1 {
		t.Fatalf("unexpected move log %+v", moves)
	}

	mgr2 := NewManager(newRegistry(), store)
	if err := mgr2.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	sess2, ok := mgr2.Get(sess.Code)
	if !ok {
		t.Fatal("session not restored")
	}
	if sess2.Status != StatusPlaying || sess2.Match == nil {
		t.Fatalf("expected playing match, got %s", sess2.Status)
	}
	if ids := sess2.PlayerIDs(); len(ids) != 2 || ids[0] != "alice" || ids[1] != "bob" {
		t.Fatalf("roster not restored: %v", ids)
	}
	if sess2.HostID != "alice" {
		t.Fatalf("expected host alice, got %s", sess2.HostID)
	}
	if !okey.SameGame(okeyState(sess2), okeyState(sess)) {
		t.Fatal("restored match differs")
	}
	if okeyState(sess2).Players[0].IsConnected {
		t.Fatal("restored players should be offline until they reconnect")
	}
	if sess2.SentSeq != 1 || sess2.savedSeq != 1 {
		t.Fatalf("sequence not restored: sent %d saved %d", sess2.SentSeq, sess2.savedSeq)
	}
}

func draw(t *testing.T, s *Session, playerID string) {
	t.Helper()
	if err := s.Apply(playerID, game.Action{Type: okey.ActionDrawPile}); err != nil {
		t.Fatalf("draw: %v", err)
	}
}

// storedSeq restores the session into a fresh manager and reports the move
// count of its stored match and the last seq of its stored log.
func storedSeq(t *testing.T, store *storage.Store, code string) (state, log int) {
	t.Helper()
	mgr := NewManager(newRegistry(), store)
	if err := mgr.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	sess, ok := mgr.Get(code)
	if !ok {
		t.Fatal("session not restored")
	}
	log, err := store.LastMoveSeq(code)
	if err != nil {
		t.Fatalf("last move: %v", err)
	}
	return sess.Match.(game.Journal).LastSeq(), log
}

func TestSaveMatchStateIgnoresOlderCopy(t *testing.T) {
	mgr, store := setupTest(t)
	sess := startedSession(t, mgr, "alice", "bob")
	mgr.SaveSessionPlayers(sess)

	older, err := sess.Match.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	discard(t, sess, "alice")
	if err := mgr.SaveMatchState(sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	// a slower writer lands the copy it took before the discard
	if err := store.SaveMatchState(sess.Code, string(older), 0); err != nil {
		t.Fatalf("late save: %v", err)
	}
	if state, log := storedSeq(t, store, sess.Code); state != 1 || log != 1 {
		t.Fatalf("stored state at seq %d, log at %d", state, log)
	}

	mgr2 := NewManager(newRegistry(), store)
	mgr2.Restore()
	sess2, _ := mgr2.Get(sess.Code)
	draw(t, sess2, "bob")
	if err := mgr2.SaveMatchState(sess2); err != nil {
		t.Fatalf("save after restore: %v", err)
	}
	moves, _ := mgr2.Moves(sess.Code, 1)
	if len(moves) != 1 || moves[0].Seq != 2 || moves[0].Type != string(okey.MoveDrawPile) {
		t.Fatalf("next move missing from the log: %+v", moves)
	}
}

func TestSaveMatchStateConcurrentWithTick(t *testing.T) {
	mgr, store := setupTest(t)
	sess := startedSession(t, mgr, "alice", "bob")
	mgr.SaveSessionPlayers(sess)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				mgr.SaveMatchState(sess)
			}
		}
	}()

	discard(t, sess, "alice")
	mgr.SaveMatchState(sess)
	for range 10 {
		for _, p := range []string{"bob", "alice"} {
			draw(t, sess, p)
			mgr.SaveMatchState(sess)
			discard(t, sess, p)
			mgr.SaveMatchState(sess)
		}
	}
	close(stop)
	<-done

	state, log := storedSeq(t, store, sess.Code)
	if want := 1 + 10*4; state != want || log != want {
		t.Fatalf("stored state at seq %d, log at %d, want %d", state, log, want)
	}
}

func TestRestoreWaitingRoster(t *testing.T) {
	mgr, store := setupTest(t)
	sess, _ := mgr.Create("okey")
	sess.AddPlayer("alice")
	mgr.SaveSessionPlayers(sess)

	mgr2 := NewManager(newRegistry(), store)
	mgr2.Restore()
	sess2, ok := mgr2.Get(sess.Code)
	if !ok || sess2.Status != StatusWaiting {
		t.Fatal("waiting session not restored")
	}
	if sess2.GetPlayer("alice") == nil {
		t.Fatal("alice not restored")
	}
	if err := sess2.AddPlayer("bob"); err != nil {
		t.Fatalf("restored lobby rejects players: %v", err)
	}
}

func TestRestoreSkipsFinished(t *testing.T) {
	mgr, store := setupTest(t)
	sess := startedSession(t, mgr, "alice", "bob")
	sess.Finish()
	mgr.SaveMatchState(sess)

	mgr2 := NewManager(newRegistry(), store)
	mgr2.Restore()
	if _, ok := mgr2.Get(sess.Code); ok {
		t.Fatal("finished session restored")
	}
}

func TestTickResolvesTimeouts(t *testing.T) {
	mgr, _ := setupTest(t)
	sess := startedSession(t, mgr, "alice")

	var changed []string
	mgr.OnChange = func(s *Session) { changed = append(changed, s.Code) }

	mgr.tick(time.Now())
	if len(changed) != 0 {
		t.Fatal("tick before the deadline changed the session")
	}
	mgr.tick(time.Now().Add(time.Hour))
	if len(changed) != 1 || changed[0] != sess.Code {
		t.Fatalf("expected one change for %s, got %v", sess.Code, changed)
	}
	moves, _ := mgr.Moves(sess.Code, 0)
	if len(moves) == 0 || moves[0].Type != string(okey.MoveTimeout) {
		t.Fatalf("timeout not persisted: %+v", moves)
	}
}

func TestTickSkipsWaiting(t *testing.T) {
	mgr, _ := setupTest(t)
	sess, _ := mgr.Create("okey")
	sess.AddPlayer("alice")
	if sess.Tick(time.Now().Add(time.Hour)) {
		t.Fatal("waiting session ticked")
	}
}

// --- Session mutation tests ---

func TestRemovePlayer(t *testing.T) {
	mgr, _ := setupTest(t)

	sess, _ := mgr.Create("okey")
	sess.AddPlayer("alice")
	sess.AddPlayer("bob")

	send := sess.GetPlayer("alice").Send
	if !sess.RemovePlayer("alice", send) {
		t.Fatal("expected alice to be removed")
	}

	info := sess.Info()
	if len(info.Players) != 1 || info.Players[0] != "bob" {
		t.Fatalf("expected [bob], got %v", info.Players)
	}
	if info.HostID != "bob" {
		t.Fatalf("expected host to pass to bob, got %s", info.HostID)
	}
	if _, ok := <-send; ok {
		t.Fatal("expected send channel to be closed")
	}
}

func TestRemovePlayerNonexistent(t *testing.T) {
	mgr, _ := setupTest(t)
	sess, _ := mgr.Create("okey")
	if sess.RemovePlayer("nobody", make(chan []byte)) {
		t.Fatal("removed a player who never joined")
	}
}

func TestRemovePlayerFromOlderConnection(t *testing.T) {
	mgr, _ := setupTest(t)
	sess, _ := mgr.Create("okey")
	sess.AddPlayer("alice")

	older := make(chan []byte, 1)
	newer := make(chan []byte, 1)
	sess.ConnectPlayer("alice", older)
	sess.ConnectPlayer("alice", newer)

	if sess.RemovePlayer("alice", older) {
		t.Fatal("older connection removed alice")
	}
	if sess.GetPlayer("alice") == nil {
		t.Fatal("alice was dropped")
	}
	// the newer connection's channel is still open
	sess.Broadcast([]byte("still here"))
	if msg := <-newer; string(msg) != "still here" {
		t.Fatalf("unexpected message %q", msg)
	}
	if !sess.RemovePlayer("alice", newer) {
		t.Fatal("current connection could not leave")
	}
	if _, ok := <-newer; ok {
		t.Fatal("expected the current channel to be closed")
	}
}

func TestConnectAndDisconnect(t *testing.T) {
	mgr, _ := setupTest(t)
	sess := startedSession(t, mgr, "alice", "bob")

	first := make(chan []byte, 64)
	if !sess.ConnectPlayer("alice", first) {
		t.Fatal("expected ConnectPlayer to return true")
	}
	if sess.GetPlayer("alice").Send != first {
		t.Fatal("expected Send channel to be replaced")
	}
	if !okeyState(sess).Players[0].IsConnected {
		t.Fatal("match does not see alice online")
	}

	second := make(chan []byte, 64)
	sess.ConnectPlayer("alice", second)
	if sess.DisconnectPlayer("alice", first) {
		t.Fatal("a stale connection must not mark alice offline")
	}
	if !sess.DisconnectPlayer("alice", second) {
		t.Fatal("expected DisconnectPlayer to return true")
	}
	if okeyState(sess).Players[0].IsConnected {
		t.Fatal("match still sees alice online")
	}
	if okeyState(sess).CurrentSeat != 0 {
		t.Fatal("presence changed the turn")
	}
	if got := sess.Info().Connected; len(got) != 0 {
		t.Fatalf("expected nobody connected, got %v", got)
	}
}

func TestConnectPlayerNonexistent(t *testing.T) {
	mgr, _ := setupTest(t)
	sess, _ := mgr.Create("okey")
	if sess.ConnectPlayer("nobody", make(chan []byte, 1)) {
		t.Fatal("expected ConnectPlayer to return false for unknown player")
	}
}

func TestBroadcastDelivery(t *testing.T) {
	mgr, _ := setupTest(t)

	sess, _ := mgr.Create("okey")
	sess.AddPlayer("alice")
	sess.AddPlayer("bob")

	msg := []byte(`{"type":"test"}`)
	sess.Broadcast(msg)

	for _, id := range []string{"alice", "bob"} {
		select {
		case got := <-sess.GetPlayer(id).Send:
			if string(got) != string(msg) {
				t.Fatalf("%s got %s, expected %s", id, got, msg)
			}
		default:
			t.Fatalf("expected %s to receive broadcast", id)
		}
	}
}

func TestBroadcastBufferFull(t *testing.T) {
	mgr, _ := setupTest(t)

	sess, _ := mgr.Create("okey")
	sess.AddPlayer("alice")

	p := sess.GetPlayer("alice")
	for i := 0; i < cap(p.Send); i++ {
		p.Send <- []byte("filler")
	}
	// Should not panic or block
	sess.Broadcast([]byte(`{"type":"dropped"}`))
}

func TestAddPlayerDuplicate(t *testing.T) {
	mgr, _ := setupTest(t)
	sess, _ := mgr.Create("okey")
	sess.AddPlayer("alice")
	if err := sess.AddPlayer("alice"); err == nil {
		t.Fatal("expected error on duplicate player")
	}
}

func TestAddPlayerToStartedSession(t *testing.T) {
	mgr, _ := setupTest(t)
	sess := startedSession(t, mgr, "alice")
	if err := sess.AddPlayer("charlie"); !errors.Is(err, ErrNotWaiting) {
		t.Fatalf("expected ErrNotWaiting, got %v", err)
	}
	if err := sess.Start(); !errors.Is(err, ErrNotWaiting) {
		t.Fatalf("expected ErrNotWaiting on second start, got %v", err)
	}
}

// --- Manager edge case tests ---

func TestUnknownGameType(t *testing.T) {
	mgr, _ := setupTest(t)
	if _, err := mgr.Create("nonexistent"); err == nil {
		t.Fatal("expected error for unknown game type")
	}
}

func TestMovesUnknownSession(t *testing.T) {
	mgr, _ := setupTest(t)
	if _, err := mgr.Moves("nope", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManagerListSorted(t *testing.T) {
	mgr, _ := setupTest(t)
	for i := 0; i < 5; i++ {
		mgr.Create("okey")
	}
	infos := mgr.List()
	if len(infos) != 5 {
		t.Fatalf("expected 5 sessions, got %d", len(infos))
	}
	for i := 1; i < len(infos); i++ {
		if infos[i-1].Code > infos[i].Code {
			t.Fatalf("list not ordered: %s before %s", infos[i-1].Code, infos[i].Code)
		}
	}
}

func TestManagerRemove(t *testing.T) {
	mgr, store := setupTest(t)
	sess, _ := mgr.Create("okey")
	mgr.Remove(sess.Code)

	if _, ok := mgr.Get(sess.Code); ok {
		t.Fatal("expected session to be removed")
	}
	if _, err := store.GetSession(sess.Code); err == nil {
		t.Fatal("expected session to be deleted from storage")
	}
}

func TestCleanup(t *testing.T) {
	mgr, _ := setupTest(t)
	empty, _ := mgr.Create("okey")
	finished := startedSession(t, mgr, "alice")
	finished.Finish()
	live := startedSession(t, mgr, "bob")

	mgr.cleanup(time.Now(), time.Hour)
	if _, ok := mgr.Get(empty.Code); ok {
		t.Fatal("empty session kept")
	}
	if _, ok := mgr.Get(finished.Code); !ok {
		t.Fatal("recently finished session removed")
	}

	mgr.cleanup(time.Now().Add(2*time.Hour), time.Hour)
	if _, ok := mgr.Get(finished.Code); ok {
		t.Fatal("old finished session kept")
	}
	if _, ok := mgr.Get(live.Code); !ok {
		t.Fatal("live session removed")
	}
}
