// Package termhttp provides the HTTP/WebSocket server that the kanban
// desktop app talks to: REST endpoints for per-project terminal state and
// a WebSocket endpoint for attaching to live shell sessions.
package termhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/taskdeck/deckterm/internal/domain"
	"github.com/taskdeck/deckterm/internal/domain/events"
	"github.com/taskdeck/deckterm/internal/domain/ports"
	"github.com/taskdeck/deckterm/internal/projects"
	"github.com/taskdeck/deckterm/internal/state"
	"github.com/taskdeck/deckterm/internal/terminal"
)

// Application-level heartbeat interval. Sent as a JSON event, not a
// WebSocket ping, so the desktop app can surface daemon liveness.
const heartbeatInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The daemon binds localhost; the desktop webview origin varies.
		return true
	},
}

// Server is the terminal daemon's HTTP/WebSocket server.
type Server struct {
	controller *terminal.Controller
	store      *state.Store
	registry   *projects.Registry
	hub        ports.EventHub

	addr       string
	httpServer *http.Server

	mu    sync.RWMutex
	conns map[string]*conn

	heartbeatDone chan struct{}
	heartbeatSeq  int64
	startTime     time.Time
}

// NewServer creates a new terminal server.
func NewServer(
	host string,
	port int,
	controller *terminal.Controller,
	store *state.Store,
	registry *projects.Registry,
	hub ports.EventHub,
) *Server {
	return &Server{
		controller:    controller,
		store:         store,
		registry:      registry,
		hub:           hub,
		addr:          fmt.Sprintf("%s:%d", host, port),
		conns:         make(map[string]*conn),
		heartbeatDone: make(chan struct{}),
		startTime:     time.Now(),
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	// Live shell sessions
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")

	// Per-project terminal tab state
	api.HandleFunc("/projects/{id}/terminals", s.handleGetTerminals).Methods("GET")
	api.HandleFunc("/projects/{id}/terminals", s.handleAddTerminal).Methods("POST")
	api.HandleFunc("/projects/{id}/terminals/active", s.handleSetActive).Methods("PUT")
	api.HandleFunc("/projects/{id}/terminals/split", s.handleSetSplit).Methods("PUT")
	api.HandleFunc("/projects/{id}/terminals/{session_id}", s.handleCloseTerminal).Methods("DELETE")
	api.HandleFunc("/projects/{id}/terminals/{session_id}", s.handleRenameTerminal).Methods("PATCH")
	api.HandleFunc("/projects/{id}/terminals/{session_id}/move", s.handleMoveTerminal).Methods("POST")
	api.HandleFunc("/projects/{id}", s.handleRemoveProject).Methods("DELETE")

	// WebSocket endpoint for terminal I/O and lifecycle events
	router.HandleFunc("/ws", s.handleWebSocket)

	handler := corsMiddleware(router)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: handler,
		// No Read/WriteTimeout: they would sever long-lived WebSocket
		// connections. gorilla/websocket manages its own deadlines.
		IdleTimeout: 120 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("terminal server starting")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("terminal server error")
		}
	}()

	go s.heartbeatLoop()

	return nil
}

// Stop gracefully stops the server and closes all client connections.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("terminal server stopping")

	close(s.heartbeatDone)

	s.mu.Lock()
	for _, cn := range s.conns {
		cn.client.Close()
	}
	s.conns = make(map[string]*conn)
	s.mu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

func (s *Server) getConn(clientID string) *conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conns[clientID]
}

// handleWebSocket handles WebSocket upgrade requests.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := NewClient(wsConn, s.handleFrame, func(id string) {
		s.dropConn(id)
	})
	cn := newConn(client)

	s.mu.Lock()
	s.conns[client.ID()] = cn
	s.mu.Unlock()

	log.Info().
		Str("client_id", client.ID()).
		Str("remote_addr", wsConn.RemoteAddr().String()).
		Msg("client connected")

	client.Start()
}

// dropConn runs when a client's connection closes: it detaches every
// session the client was attached to so output falls back to the buffers,
// and unsubscribes it from the event hub.
func (s *Server) dropConn(id string) {
	s.mu.Lock()
	cn := s.conns[id]
	delete(s.conns, id)
	s.mu.Unlock()

	if cn == nil {
		return
	}

	for sessionID, a := range cn.drainAttachments() {
		s.controller.Detach(sessionID, a)
	}

	cn.mu.Lock()
	hasSub := cn.subscriber != nil
	cn.mu.Unlock()
	if hasSub && s.hub != nil {
		s.hub.Unsubscribe(id)
	}

	log.Info().Str("client_id", id).Msg("client disconnected")
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"service":       "deckterm",
		"live_sessions": s.controller.Count(),
		"timestamp":     time.Now().Unix(),
	})
}

// handleListSessions handles GET /api/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	infos := s.controller.Sessions()
	projectID := r.URL.Query().Get("project_id")
	if projectID != "" {
		filtered := infos[:0]
		for _, info := range infos {
			if info.ProjectID == projectID {
				filtered = append(filtered, info)
			}
		}
		infos = filtered
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": infos,
	})
}

// handleGetTerminals handles GET /api/projects/{id}/terminals.
// A project that has never been seen gets a default single-tab record.
func (s *Server) handleGetTerminals(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	record := s.store.EnsureProject(projectID)
	s.respondTerminals(w, http.StatusOK, projectID, record)
}

// handleAddTerminal handles POST /api/projects/{id}/terminals
func (s *Server) handleAddTerminal(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]

	ref, err := s.store.AddSession(projectID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionLimit) {
			s.respondErrorCode(w, http.StatusConflict, domain.ErrCodeSessionLimit, err.Error())
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.publishStateChanged(projectID)

	record, _ := s.store.Get(projectID)
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"session": ref,
		"state":   record,
	})
}

// handleCloseTerminal handles DELETE /api/projects/{id}/terminals/{session_id}.
// Closing a tab is explicit teardown: the backing process is killed too.
func (s *Server) handleCloseTerminal(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID := vars["id"]
	sessionID := vars["session_id"]

	record, err := s.store.CloseSession(projectID, sessionID)
	if err != nil {
		s.respondStateError(w, err)
		return
	}

	s.controller.Kill(sessionID)
	s.publishStateChanged(projectID)
	s.respondTerminals(w, http.StatusOK, projectID, record)
}

// handleRenameTerminal handles PATCH /api/projects/{id}/terminals/{session_id}
func (s *Server) handleRenameTerminal(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID := vars["id"]
	sessionID := vars["session_id"]

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.store.RenameSession(projectID, sessionID, req.Name); err != nil {
		s.respondStateError(w, err)
		return
	}

	s.publishStateChanged(projectID)
	record, _ := s.store.Get(projectID)
	s.respondTerminals(w, http.StatusOK, projectID, record)
}

// handleMoveTerminal handles POST /api/projects/{id}/terminals/{session_id}/move
func (s *Server) handleMoveTerminal(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID := vars["id"]
	sessionID := vars["session_id"]

	var req struct {
		To int `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.store.MoveSession(projectID, sessionID, req.To); err != nil {
		s.respondStateError(w, err)
		return
	}

	s.publishStateChanged(projectID)
	record, _ := s.store.Get(projectID)
	s.respondTerminals(w, http.StatusOK, projectID, record)
}

// handleSetActive handles PUT /api/projects/{id}/terminals/active
func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]

	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.store.SetActive(projectID, req.SessionID); err != nil {
		s.respondStateError(w, err)
		return
	}

	s.publishStateChanged(projectID)
	record, _ := s.store.Get(projectID)
	s.respondTerminals(w, http.StatusOK, projectID, record)
}

// handleSetSplit handles PUT /api/projects/{id}/terminals/split
func (s *Server) handleSetSplit(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]

	var req struct {
		SplitView bool `json:"split_view"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.store.SetSplitView(projectID, req.SplitView); err != nil {
		s.respondStateError(w, err)
		return
	}

	s.publishStateChanged(projectID)
	record, _ := s.store.Get(projectID)
	s.respondTerminals(w, http.StatusOK, projectID, record)
}

// handleRemoveProject handles DELETE /api/projects/{id}. Used when a
// project is deleted from the board: all shells die and state is dropped.
func (s *Server) handleRemoveProject(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]

	s.controller.KillProject(projectID)
	s.store.RemoveProject(projectID)
	s.publishStateChanged(projectID)

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Project %s terminals removed", projectID),
	})
}

func (s *Server) publishStateChanged(projectID string) {
	if s.hub != nil {
		s.hub.Publish(events.NewStateChangedEvent(projectID))
	}
}

func (s *Server) respondTerminals(w http.ResponseWriter, status int, projectID string, record state.ProjectTerminals) {
	s.respondJSON(w, status, map[string]interface{}{
		"project_id": projectID,
		"state":      record,
	})
}

// respondStateError maps state store errors to HTTP statuses.
func (s *Server) respondStateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProjectNotFound):
		s.respondErrorCode(w, http.StatusNotFound, domain.ErrCodeProjectNotFound, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrNotAMember):
		s.respondErrorCode(w, http.StatusNotFound, domain.ErrCodeSessionNotFound, err.Error())
	case errors.Is(err, domain.ErrSessionLimit):
		s.respondErrorCode(w, http.StatusConflict, domain.ErrCodeSessionLimit, err.Error())
	default:
		s.respondError(w, http.StatusBadRequest, err.Error())
	}
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// respondError sends an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"error": message,
	})
}

func (s *Server) respondErrorCode(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"error": message,
		"code":  code,
	})
}

// heartbeatLoop broadcasts periodic heartbeat events to connected clients.
func (s *Server) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	log.Debug().Dur("interval", heartbeatInterval).Msg("heartbeat loop started")

	for {
		select {
		case <-s.heartbeatDone:
			log.Debug().Msg("heartbeat loop stopped")
			return

		case <-ticker.C:
			s.broadcastHeartbeat()
		}
	}
}

// broadcastHeartbeat sends a heartbeat event to all connected clients.
func (s *Server) broadcastHeartbeat() {
	s.mu.RLock()
	clientCount := len(s.conns)
	s.mu.RUnlock()

	if clientCount == 0 {
		return
	}

	seq := atomic.AddInt64(&s.heartbeatSeq, 1)
	uptimeSeconds := int64(time.Since(s.startTime).Seconds())
	heartbeat := events.NewHeartbeatEvent(seq, s.controller.Count(), uptimeSeconds)

	data, err := heartbeat.ToJSON()
	if err != nil {
		log.Warn().Err(err).Msg("failed to serialize heartbeat")
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cn := range s.conns {
		cn.client.Send(data)
	}
	log.Trace().Int64("seq", seq).Int("clients", clientCount).Msg("heartbeat sent")
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		// Allow local development origins
		if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
