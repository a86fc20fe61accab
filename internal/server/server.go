package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"okey/internal/game"
	"okey/internal/game/okey"
	"okey/internal/session"
)

// Server is the HTTP server.
type Server struct {
	mux      *http.ServeMux
	registry *game.Registry
	manager  *session.Manager
	webFS    fs.FS
}

// New creates a server with all routes and subscribes it to the manager's
// tick loop. webFS, when not nil, is served at /.
func New(registry *game.Registry, manager *session.Manager, webFS fs.FS) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		registry: registry,
		manager:  manager,
		webFS:    webFS,
	}
	manager.OnChange = s.broadcastState
	s.routes()
	return s
}

func (s *Server) routes() {
	// API routes
	s.mux.HandleFunc("GET /api/games", s.handleListGames)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{code}", s.handleGetSession)
	s.mux.HandleFunc("GET /api/sessions/{code}/ws", s.handleWebSocket)
	s.mux.HandleFunc("POST /api/sessions/{code}/start", s.handleStartSession)
	s.mux.HandleFunc("POST /api/sessions/{code}/validate", s.handleValidate)
	s.mux.HandleFunc("GET /api/sessions/{code}/moves", s.handleMoves)

	if s.webFS != nil {
		s.mux.Handle("/", http.FileServer(http.FS(s.webFS)))
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logrus.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).Debug("request")
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.List())
}

type createSessionRequest struct {
	GameType string `json:"gameType"`
	PlayerID string `json:"playerId"`
}

type createSessionResponse struct {
	Code string `json:"code"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.GameType = strings.TrimSpace(req.GameType)
	req.PlayerID = strings.TrimSpace(req.PlayerID)
	if req.GameType == "" || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "gameType and playerId required")
		return
	}

	sess, err := s.manager.Create(req.GameType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := sess.AddPlayer(req.PlayerID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.savePlayers(sess)

	writeJSON(w, http.StatusCreated, createSessionResponse{Code: sess.Code})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Start(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.persist(sess)
	s.broadcastState(sess)
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

type validateRequest struct {
	PlayerID string `json:"playerId"`
	TileID   string `json:"tileId"`
}

// handleValidate previews whether the player's hand would win with tileId set
// aside. The match is not changed.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "playerId required")
		return
	}
	verdict, err := validate(sess, req.PlayerID, req.TileID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func validate(sess *session.Session, playerID, tileID string) (any, error) {
	payload, _ := json.Marshal(map[string]string{"tileId": tileID})
	sess.RLock()
	defer sess.RUnlock()
	v, ok := sess.Match.(game.Validator)
	if !ok || sess.Status != session.StatusPlaying {
		return nil, session.ErrNotPlaying
	}
	return v.Validate(playerID, game.Action{Type: okey.ActionEvaluate, Payload: payload})
}

// handleMoves returns the move log after ?since=N. A live match serves its own
// journal with hidden draws redacted for ?playerId; otherwise the persisted log
// is returned.
func (s *Server) handleMoves(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	since := 0
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}
	viewer := r.URL.Query().Get("playerId")

	if sess, ok := s.manager.Get(code); ok {
		sess.RLock()
		j, live := sess.Match.(game.Journal)
		live = live && sess.Status == session.StatusPlaying
		var events []game.Event
		if live && viewer != "" {
			events = j.Events(viewer, since)
		}
		sess.RUnlock()
		if live && viewer == "" {
			writeError(w, http.StatusBadRequest, "playerId required while the match is live")
			return
		}
		if live {
			writeJSON(w, http.StatusOK, events)
			return
		}
	}

	events, err := s.manager.Moves(code, since)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.manager.Get(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, session.ErrNotFound.Error())
	}
	return sess, ok
}

func (s *Server) persist(sess *session.Session) {
	if err := s.manager.SaveMatchState(sess); err != nil {
		logrus.WithField("session", sess.Code).Errorf("save match state: %v", err)
	}
}

func (s *Server) savePlayers(sess *session.Session) {
	if err := s.manager.SaveSessionPlayers(sess); err != nil {
		logrus.WithField("session", sess.Code).Errorf("save players: %v", err)
	}
}

// statusFor maps session and engine failures onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, okey.ErrNotInGame):
		return http.StatusForbidden
	case errors.Is(err, session.ErrNotWaiting),
		errors.Is(err, session.ErrNotPlaying),
		errors.Is(err, session.ErrFull),
		errors.Is(err, okey.ErrNotYourTurn),
		errors.Is(err, okey.ErrWrongPhase),
		errors.Is(err, okey.ErrGameNotActive):
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
