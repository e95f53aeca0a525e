// Package httpapi is the widget gateway: REST endpoints for session
// lifecycle plus a websocket that carries the conversation.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/evernorth/melodie/internal/bridge"
	"github.com/evernorth/melodie/internal/config"
	"github.com/evernorth/melodie/internal/observability"
	"github.com/evernorth/melodie/internal/realtime"
	"github.com/evernorth/melodie/internal/session"
)

// Conversation bundles the per-session collaborators the gateway relays
// between: the agent and the host-page event hub.
type Conversation struct {
	Agent *realtime.Manager
	Host  *bridge.Hub
}

// ConversationFactory builds the agent stack for one new session.
type ConversationFactory func(sessionID string, userID, companyID int) *Conversation

type Server struct {
	cfg      config.Config
	sessions *session.Registry
	factory  ConversationFactory
	metrics  *observability.Metrics
	upgrader websocket.Upgrader

	mu     sync.Mutex
	convos map[string]*Conversation
}

func New(cfg config.Config, sessions *session.Registry, factory ConversationFactory, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		factory:  factory,
		metrics:  metrics,
		convos:   make(map[string]*Conversation),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections may drive a session
				// unless the deployment opts out.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/widget/session", s.handleCreateSession)
	r.Post("/v1/widget/session/{id}/end", s.handleEndSession)
	r.Get("/v1/widget/session/{id}", s.handleGetSession)
	r.Get("/v1/widget/session/ws", s.handleSessionWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

type createSessionRequest struct {
	// SessionID resumes a prior session: the agent reloads its persisted
	// transcript under the same id. Empty starts a fresh session.
	SessionID string `json:"session_id"`
	UserID    int    `json:"user_id"`
	CompanyID int    `json:"company_id"`
	Mode      string `json:"mode"`
}

type createSessionResponse struct {
	SessionID       string `json:"session_id"`
	Mode            string `json:"mode"`
	InactivityTTLMS int64  `json:"inactivity_ttl_ms"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	mode := strings.TrimSpace(req.Mode)
	if mode == "" {
		mode = string(realtime.ModeChat)
	}
	if mode != string(realtime.ModeChat) && mode != string(realtime.ModeVoice) {
		respondError(w, http.StatusBadRequest, "invalid_mode", "mode must be chat or voice")
		return
	}

	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		id = session.NewSessionID()
	}
	convo := s.factory(id, req.UserID, req.CompanyID)
	s.mu.Lock()
	s.convos[id] = convo
	s.mu.Unlock()
	s.sessions.Add(id, req.UserID, req.CompanyID, convo.Agent)

	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("created").Inc()
	}
	respondJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:       id,
		Mode:            mode,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	entry, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.mu.Lock()
	delete(s.convos, id)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	}
	respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	entry, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (s *Server) conversation(id string) (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	convo, ok := s.convos[id]
	return convo, ok
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
