package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SessionRow represents a session in the database.
type SessionRow struct {
	Code      string
	GameType  string
	Status    string // "waiting", "playing", "finished"
	CreatedAt time.Time
}

// MoveRow is one persisted entry of a match's move log.
type MoveRow struct {
	SessionCode string
	Seq         int
	MoveID      string
	Type        string
	Seat        int
	At          time.Time
	Data        string
}

// Store handles SQLite persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			code         TEXT PRIMARY KEY,
			game_type    TEXT NOT NULL,
			status       TEXT NOT NULL DEFAULT 'waiting',
			players_json TEXT NOT NULL DEFAULT '{}',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS match_state (
			session_code TEXT PRIMARY KEY REFERENCES sessions(code),
			state_json   TEXT NOT NULL,
			seq          INTEGER NOT NULL DEFAULT 0,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS moves (
			session_code TEXT NOT NULL REFERENCES sessions(code),
			seq          INTEGER NOT NULL,
			move_id      TEXT NOT NULL,
			type         TEXT NOT NULL,
			seat         INTEGER NOT NULL,
			at           DATETIME NOT NULL,
			data         TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (session_code, seq)
		);
	`)
	return err
}

// CreateSession inserts a new session.
func (s *Store) CreateSession(code, gameType string) error {
	_, err := s.db.Exec(
		"INSERT INTO sessions (code, game_type, status) VALUES (?, ?, 'waiting')",
		code, gameType,
	)
	return err
}

// GetSession retrieves a session by code.
func (s *Store) GetSession(code string) (*SessionRow, error) {
	row := s.db.QueryRow("SELECT code, game_type, status, created_at FROM sessions WHERE code = ?", code)
	var sr SessionRow
	if err := row.Scan(&sr.Code, &sr.GameType, &sr.Status, &sr.CreatedAt); err != nil {
		return nil, err
	}
	return &sr, nil
}

// UpdateSessionStatus changes a session's status.
func (s *Store) UpdateSessionStatus(code, status string) error {
	_, err := s.db.Exec("UPDATE sessions SET status = ? WHERE code = ?", status, code)
	return err
}

// ListSessions returns all sessions with the given status (or all if status is empty).
func (s *Store) ListSessions(status string) ([]SessionRow, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.Query("SELECT code, game_type, status, created_at FROM sessions ORDER BY created_at DESC")
	} else {
		rows, err = s.db.Query("SELECT code, game_type, status, created_at FROM sessions WHERE status = ? ORDER BY created_at DESC", status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []SessionRow
	for rows.Next() {
		var sr SessionRow
		if err := rows.Scan(&sr.Code, &sr.GameType, &sr.Status, &sr.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, sr)
	}
	return result, rows.Err()
}

// SaveSessionPlayers stores the session's roster snapshot.
func (s *Store) SaveSessionPlayers(code, playersJSON string) error {
	res, err := s.db.Exec("UPDATE sessions SET players_json = ? WHERE code = ?", playersJSON, code)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetSessionPlayers returns the roster snapshot saved for a session.
func (s *Store) GetSessionPlayers(code string) (string, error) {
	var playersJSON string
	err := s.db.QueryRow("SELECT players_json FROM sessions WHERE code = ?", code).Scan(&playersJSON)
	return playersJSON, err
}

// SaveMatchState upserts match state JSON taken at move seq. A state older
// than the stored one is ignored.
func (s *Store) SaveMatchState(sessionCode, stateJSON string, seq int) error {
	_, err := s.db.Exec(`
		INSERT INTO match_state (session_code, state_json, seq, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_code) DO UPDATE SET state_json = excluded.state_json, seq = excluded.seq, updated_at = excluded.updated_at
		WHERE excluded.seq >= match_state.seq
	`, sessionCode, stateJSON, seq)
	return err
}

// GetMatchState retrieves match state JSON.
func (s *Store) GetMatchState(sessionCode string) (string, error) {
	var stateJSON string
	err := s.db.QueryRow("SELECT state_json FROM match_state WHERE session_code = ?", sessionCode).Scan(&stateJSON)
	return stateJSON, err
}

// AppendMoves writes moves in one transaction. The log is append-only: a move
// whose sequence number is already stored is left as it is.
func (s *Store) AppendMoves(moves []MoveRow) error {
	if len(moves) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO moves (session_code, seq, move_id, type, seat, at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_code, seq) DO NOTHING
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, m := range moves {
		if _, err := stmt.Exec(m.SessionCode, m.Seq, m.MoveID, m.Type, m.Seat, m.At.UTC(), m.Data); err != nil {
			tx.Rollback()
			return fmt.Errorf("move %d: %w", m.Seq, err)
		}
	}
	return tx.Commit()
}

// ListMoves returns a session's moves with seq greater than since, in order.
func (s *Store) ListMoves(sessionCode string, since int) ([]MoveRow, error) {
	rows, err := s.db.Query(
		"SELECT session_code, seq, move_id, type, seat, at, data FROM moves WHERE session_code = ? AND seq > ? ORDER BY seq",
		sessionCode, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []MoveRow
	for rows.Next() {
		var m MoveRow
		if err := rows.Scan(&m.SessionCode, &m.Seq, &m.MoveID, &m.Type, &m.Seat, &m.At, &m.Data); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// LastMoveSeq returns the highest stored seq for a session, or 0.
func (s *Store) LastMoveSeq(sessionCode string) (int, error) {
	var seq sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(seq) FROM moves WHERE session_code = ?", sessionCode).Scan(&seq)
	return int(seq.Int64), err
}

// DeleteSession removes a session with its match state and moves.
func (s *Store) DeleteSession(code string) error {
	for _, q := range []string{
		"DELETE FROM moves WHERE session_code = ?",
		"DELETE FROM match_state WHERE session_code = ?",
		"DELETE FROM sessions WHERE code = ?",
	} {
		if _, err := s.db.Exec(q, code); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
