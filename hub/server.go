// Author: Toluwalase Mebaanne
// Package main provides the HTTP and WebSocket server for the SnipBridge hub.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tmair/snipbridge/shared/dispatch"
	"github.com/tmair/snipbridge/shared/frame"
	"github.com/tmair/snipbridge/shared/models"
	"github.com/tmair/snipbridge/shared/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	shutdownTimeout     = 5 * time.Second
)

// Server is the network frontend for the hub.
// WHY one mux for HTTP and WebSocket: clients configure a single address,
// and the root path must accept sockets for extensions that connect to "/".
type Server struct {
	dispatcher *dispatch.Dispatcher
	store      store.Store
	sessions   *Sessions
	upgrader   websocket.Upgrader
	mux        *http.ServeMux
}

// NewServer creates a Server that runs sessions through d and answers
// history queries from st.
func NewServer(d *dispatch.Dispatcher, st store.Store) *Server {
	s := &Server{
		dispatcher: d,
		store:      st,
		sessions:   NewSessions(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			// Editors and browser extensions connect from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/messages", s.handleMessages)
	s.mux.HandleFunc("/ws", s.handleSocket)
	s.mux.HandleFunc("/", s.handleSocket)
}

// ServeHTTP delegates to the internal mux so Server satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then closes every session.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("hub listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.sessions.CloseAll("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleSocket upgrades the request and runs one session on it.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusUpgradeRequired)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	codec := frame.NewSocketCodec(conn)
	id := s.sessions.Add(codec)
	defer s.sessions.Remove(id)

	if err := s.dispatcher.Serve(r.Context(), codec); err != nil {
		log.Warn().Err(err).Uint64("session", id).Msg("session ended with error")
	}
}

// handleHealth is a lightweight liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Count(),
	})
}

// handleMessages returns recently stored assistant messages, newest first.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch messages")
		http.Error(w, "failed to fetch messages", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}
