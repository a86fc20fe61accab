package storage

import (
	"database/sql"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateSession(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateSession("abc123", "okey"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	// Duplicate code should error
	if err := s.CreateSession("abc123", "okey"); err == nil {
		t.Fatal("expected error on duplicate code")
	}
}

func TestGetSession(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("abc123", "okey")

	row, err := s.GetSession("abc123")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if row.Code != "abc123" {
		t.Fatalf("expected code abc123, got %s", row.Code)
	}
	if row.GameType != "okey" {
		t.Fatalf("expected gameType okey, got %s", row.GameType)
	}
	if row.Status != "waiting" {
		t.Fatalf("expected status waiting, got %s", row.Status)
	}
	if row.CreatedAt.IsZero() {
		t.Fatal("expected non-zero CreatedAt")
	}
}

func TestGetSessionNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSession("nonexistent")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestUpdateSessionStatus(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("abc123", "okey")

	if err := s.UpdateSessionStatus("abc123", "playing"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	row, err := s.GetSession("abc123")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if row.Status != "playing" {
		t.Fatalf("expected playing, got %s", row.Status)
	}
}

func TestListSessionsAll(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("aaa", "okey")
	s.CreateSession("bbb", "okey")
	s.CreateSession("ccc", "okey")

	rows, err := s.ListSessions("")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(rows))
	}
}

func TestListSessionsFiltered(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("aaa", "okey")
	s.CreateSession("bbb", "okey")
	s.UpdateSessionStatus("bbb", "playing")

	rows, err := s.ListSessions("waiting")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 waiting session, got %d", len(rows))
	}
	if rows[0].Code != "aaa" {
		t.Fatalf("expected code aaa, got %s", rows[0].Code)
	}
}

func TestSaveAndGetMatchState(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("abc123", "okey")

	stateJSON := `{"id":"abc123","status":"PLAYING","currentSeat":1,"phase":"draw"}`
	if err := s.SaveMatchState("abc123", stateJSON, 0); err != nil {
		t.Fatalf("save match state: %v", err)
	}
	got, err := s.GetMatchState("abc123")
	if err != nil {
		t.Fatalf("get match state: %v", err)
	}
	if got != stateJSON {
		t.Fatalf("expected %s, got %s", stateJSON, got)
	}
}

func TestSaveMatchStateUpsert(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("abc123", "okey")

	s.SaveMatchState("abc123", `{"v":1}`, 1)
	s.SaveMatchState("abc123", `{"v":2}`, 2)

	got, err := s.GetMatchState("abc123")
	if err != nil {
		t.Fatalf("get match state: %v", err)
	}
	if got != `{"v":2}` {
		t.Fatalf("expected upserted value, got %s", got)
	}
}

func TestSaveMatchStateKeepsNewer(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("abc123", "okey")

	s.SaveMatchState("abc123", `{"v":5}`, 5)
	if err := s.SaveMatchState("abc123", `{"v":4}`, 4); err != nil {
		t.Fatalf("save older state: %v", err)
	}
	got, _ := s.GetMatchState("abc123")
	if got != `{"v":5}` {
		t.Fatalf("older state overwrote newer one: %s", got)
	}
	// the same seq still replaces, e.g. a presence change between moves
	s.SaveMatchState("abc123", `{"v":5,"online":true}`, 5)
	got, _ = s.GetMatchState("abc123")
	if got != `{"v":5,"online":true}` {
		t.Fatalf("state at the same seq not saved: %s", got)
	}
}

func TestDeleteSession(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("abc123", "okey")
	s.SaveMatchState("abc123", `{"v":1}`, 1)

	if err := s.DeleteSession("abc123"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	_, err := s.GetSession("abc123")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows after delete, got %v", err)
	}
	_, err = s.GetMatchState("abc123")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows for match state after delete, got %v", err)
	}
}

func TestGetMatchStateNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetMatchState("nonexistent")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestSessionPlayers(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("abc123", "okey")

	got, err := s.GetSessionPlayers("abc123")
	if err != nil {
		t.Fatalf("get players: %v", err)
	}
	if got != "{}" {
		t.Fatalf("expected empty snapshot, got %s", got)
	}
	snap := `{"players":["alice","bob"],"hostId":"alice"}`
	if err := s.SaveSessionPlayers("abc123", snap); err != nil {
		t.Fatalf("save players: %v", err)
	}
	if got, _ := s.GetSessionPlayers("abc123"); got != snap {
		t.Fatalf("expected %s, got %s", snap, got)
	}
	if err := s.SaveSessionPlayers("nonexistent", snap); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func moveRows(code string, from, to int) []MoveRow {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var rows []MoveRow
	for seq := from; seq <= to; seq++ {
		rows = append(rows, MoveRow{
			SessionCode: code,
			Seq:         seq,
			MoveID:      "move-" + string(rune('a'+seq)),
			Type:        "DISCARD",
			Seat:        seq % 4,
			At:          at.Add(time.Duration(seq) * time.Second),
			Data:        `{"tile":{"id":"red-01-1"}}`,
		})
	}
	return rows
}

func TestAppendAndListMoves(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("abc123", "okey")

	if err := s.AppendMoves(moveRows("abc123", 1, 5)); err != nil {
		t.Fatalf("append moves: %v", err)
	}
	all, err := s.ListMoves("abc123", 0)
	if err != nil {
		t.Fatalf("list moves: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 moves, got %d", len(all))
	}
	for i, m := range all {
		if m.Seq != i+1 {
			t.Fatalf("move %d has seq %d", i, m.Seq)
		}
	}
	if !all[2].At.Equal(time.Date(2024, 3, 1, 12, 0, 3, 0, time.UTC)) {
		t.Fatalf("unexpected time %s", all[2].At)
	}
	if all[0].Data != `{"tile":{"id":"red-01-1"}}` {
		t.Fatalf("unexpected data %s", all[0].Data)
	}

	tail, _ := s.ListMoves("abc123", 3)
	if len(tail) != 2 || tail[0].Seq != 4 {
		t.Fatalf("unexpected tail %+v", tail)
	}
	seq, err := s.LastMoveSeq("abc123")
	if err != nil || seq != 5 {
		t.Fatalf("expected last seq 5, got %d (%v)", seq, err)
	}
}

func TestAppendMovesKeepsExisting(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("abc123", "okey")
	s.AppendMoves(moveRows("abc123", 1, 3))

	again := moveRows("abc123", 2, 4)
	again[0].Type = "FINISH"
	if err := s.AppendMoves(again); err != nil {
		t.Fatalf("append moves: %v", err)
	}
	all, _ := s.ListMoves("abc123", 0)
	if len(all) != 4 {
		t.Fatalf("expected 4 moves, got %d", len(all))
	}
	if all[1].Type != "DISCARD" {
		t.Fatalf("stored move was overwritten: %s", all[1].Type)
	}
}

func TestLastMoveSeqEmpty(t *testing.T) {
	s := newTestStore(t)
	seq, err := s.LastMoveSeq("nothing")
	if err != nil || seq != 0 {
		t.Fatalf("expected 0, got %d (%v)", seq, err)
	}
}

func TestDeleteSessionRemovesMoves(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("abc123", "okey")
	s.AppendMoves(moveRows("abc123", 1, 2))
	if err := s.DeleteSession("abc123"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if moves, _ := s.ListMoves("abc123", 0); len(moves) != 0 {
		t.Fatalf("expected moves deleted, got %d", len(moves))
	}
}
