// internal/mockserver/server.go
package mockserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/holosync/internal/middleware"
	"github.com/jason-s-yu/holosync/internal/models"
	"github.com/sirupsen/logrus"
)

// maxRequestBody caps request bodies.
const maxRequestBody = 1 << 20

// ErrMatchNotFound is returned by test hooks for an unknown match id.
var ErrMatchNotFound = errors.New("match not found")

// Server is an in-memory rules server covering the session, lobby and turn-cycle endpoints.
// It is a development and test counterpart of the real server, not a rules engine.
type Server struct {
	logger *logrus.Logger
	tokens *issuer

	mu      sync.Mutex
	players map[string]string // identity -> player id
	matches map[string]*match
	codes   map[string]string // room code -> match id
}

// New creates a server. tokenTTL of zero issues non-expiring tokens.
func New(logger *logrus.Logger, tokenTTL time.Duration) (*Server, error) {
	tokens, err := newIssuer(tokenTTL)
	if err != nil {
		return nil, err
	}
	return &Server{
		logger:  logger,
		tokens:  tokens,
		players: map[string]string{},
		matches: map[string]*match{},
		codes:   map[string]string{},
	}, nil
}

// Handler returns the routed, request-logged HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /session", s.handleSession)
	mux.HandleFunc("POST /matches", s.authed(s.handleCreate))
	mux.HandleFunc("POST /matches/join", s.authed(s.handleJoin))
	mux.HandleFunc("GET /matches/{id}", s.authed(s.handleGetMatch))
	mux.HandleFunc("POST /matches/{id}/ready", s.authed(s.handleReady))
	mux.HandleFunc("POST /matches/{id}/start", s.authed(s.handleStart))
	mux.HandleFunc("POST /matches/{id}/concede", s.authed(s.handleConcede))
	mux.HandleFunc("GET /matches/{id}/state", s.authed(s.handleState))
	mux.HandleFunc("POST /matches/{id}/actions/{kind}", s.authed(s.handleAction))
	mux.HandleFunc("GET /matches/{id}/ws", s.authed(s.handlePush))
	mux.HandleFunc("GET /cards/{id}", s.authed(s.handleCard))

	return middleware.LogMiddleware(s.logger)(mux)
}

// ExpireTokens revokes every issued token; the next authenticated call gets a 401.
func (s *Server) ExpireTokens() {
	s.tokens.revokeAll()
}

// InjectDecision appends a pending decision to a started match and pushes the new state.
func (s *Server) InjectDecision(matchID string, d models.PendingDecision) error {
	return s.mutate(matchID, func(m *match) error {
		if m.state == nil {
			return conflict("match has not started")
		}
		m.state.PendingDecisions = append(append([]models.PendingDecision(nil), m.state.PendingDecisions...), d)
		return nil
	})
}

// InjectInteraction appends a pending interaction to a started match and pushes the new state.
func (s *Server) InjectInteraction(matchID string, in models.PendingInteraction) error {
	return s.mutate(matchID, func(m *match) error {
		if m.state == nil {
			return conflict("match has not started")
		}
		m.state.PendingInteractions = append(append([]models.PendingInteraction(nil), m.state.PendingInteractions...), in)
		return nil
	})
}

func (s *Server) lookup(matchID string) (*match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	return m, ok
}

// mutate runs fn under the match lock and, on success, pushes a SYNC to subscribers.
func (s *Server) mutate(matchID string, fn func(m *match) error) error {
	m, ok := s.lookup(matchID)
	if !ok {
		return ErrMatchNotFound
	}
	_, err := s.apply(m, fn)
	return err
}

// apply runs fn under m's lock, returns the resulting summary and broadcasts the new state.
func (s *Server) apply(m *match, fn func(m *match) error) (models.MatchSummary, error) {
	m.mu.Lock()
	if err := fn(m); err != nil {
		m.mu.Unlock()
		return models.MatchSummary{}, err
	}
	summary := m.summary
	msg, err := m.syncMessage()
	m.mu.Unlock()

	if err != nil {
		s.logger.WithError(err).WithField("match_id", summary.ID).Error("failed to encode sync message")
	} else {
		m.publish(msg)
	}
	return summary, nil
}

func (s *Server) authed(next func(w http.ResponseWriter, r *http.Request, playerID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		playerID, err := s.tokens.authenticate(token)
		if err != nil {
			s.logger.WithError(err).Debug("rejected bearer token")
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r, playerID)
	}
}

type sessionRequest struct {
	Identity string `json:"identity"`
}

type sessionResponse struct {
	Token    string `json:"token"`
	PlayerID string `json:"playerId"`
}

// handleSession issues a token for a mock identity. The same identity always maps to the
// same player id for the lifetime of the server.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.Identity) == "" {
		writeError(w, http.StatusBadRequest, "identity is required")
		return
	}

	s.mu.Lock()
	playerID, ok := s.players[req.Identity]
	if !ok {
		playerID = uuid.NewString()
		s.players[req.Identity] = playerID
	}
	s.mu.Unlock()

	token, err := s.tokens.issue(playerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	s.logger.WithFields(logrus.Fields{"identity": req.Identity, "player_id": playerID}).Info("session issued")
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, PlayerID: playerID})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, playerID string) {
	s.mu.Lock()
	code := s.newCodeLocked()
	m := newMatch(playerID, code)
	s.matches[m.summary.ID] = m
	s.codes[code] = m.summary.ID
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"match_id": m.summary.ID, "code": code, "host": playerID}).Info("match created")
	s.respond(w, m, func(*match) error { return nil })
}

type joinRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request, playerID string) {
	var req joinRequest
	if err := decodeBody(r, &req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	s.mu.Lock()
	id, ok := s.codes[strings.ToUpper(req.Code)]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "no match with that code")
		return
	}
	m, _ := s.lookup(id)
	s.respond(w, m, func(m *match) error { return m.join(playerID) })
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request, playerID string) {
	m, ok := s.member(w, r, playerID)
	if !ok {
		return
	}
	m.mu.Lock()
	summary := m.summary
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, summary)
}

type readyRequest struct {
	Ready bool `json:"ready"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request, playerID string) {
	m, ok := s.member(w, r, playerID)
	if !ok {
		return
	}
	var req readyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad ready payload")
		return
	}
	s.respond(w, m, func(m *match) error { return m.setReady(playerID, req.Ready) })
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, playerID string) {
	if m, ok := s.member(w, r, playerID); ok {
		s.respond(w, m, func(m *match) error { return m.start(playerID) })
	}
}

func (s *Server) handleConcede(w http.ResponseWriter, r *http.Request, playerID string) {
	if m, ok := s.member(w, r, playerID); ok {
		s.respond(w, m, func(m *match) error { return m.concede(playerID) })
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request, playerID string) {
	m, ok := s.member(w, r, playerID)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		writeError(w, http.StatusNotFound, "match has not started")
		return
	}
	writeJSON(w, http.StatusOK, m.state)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request, playerID string) {
	m, ok := s.member(w, r, playerID)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	kind := r.PathValue("kind")
	var payload json.RawMessage
	if len(strings.TrimSpace(string(body))) > 0 {
		if !json.Valid(body) {
			writeError(w, http.StatusBadRequest, "payload is not valid JSON")
			return
		}
		payload = body
	}
	s.respond(w, m, func(m *match) error { return m.act(playerID, kind, payload) })
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request, _ string) {
	info, ok := builtinCards[r.PathValue("id")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown card")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// member resolves the {id} path value to a match the caller belongs to.
func (s *Server) member(w http.ResponseWriter, r *http.Request, playerID string) (*match, bool) {
	m, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "match not found")
		return nil, false
	}
	m.mu.Lock()
	in := m.summary.HasPlayer(playerID)
	m.mu.Unlock()
	if !in {
		writeError(w, http.StatusForbidden, "not a player in this match")
		return nil, false
	}
	return m, true
}

// respond applies fn and answers with the resulting MatchSummary or the rule error.
func (s *Server) respond(w http.ResponseWriter, m *match, fn func(m *match) error) {
	summary, err := s.apply(m, fn)
	if err != nil {
		var re *ruleError
		if errors.As(err, &re) {
			writeError(w, re.status, re.msg)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// newCodeLocked returns an unused six-character room code. Caller holds s.mu.
func (s *Server) newCodeLocked() string {
	for {
		code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
		if _, taken := s.codes[code]; !taken {
			return code
		}
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
