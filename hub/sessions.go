// Author: Toluwalase Mebaanne
// Package main tracks the live WebSocket sessions of the SnipBridge hub.

package main

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tmair/snipbridge/shared/frame"
)

// Sessions is the set of connected clients. Sessions never talk to each
// other; the set exists for health reporting and shutdown.
// WHY a registry: http.Server.Shutdown does not track hijacked connections,
// so without it a stopping hub would drop WebSocket clients without a
// close frame.
type Sessions struct {
	// mu protects conns and next.
	mu    sync.Mutex
	next  uint64
	conns map[uint64]*frame.SocketCodec
}

// NewSessions creates an empty session set.
func NewSessions() *Sessions {
	return &Sessions{
		conns: make(map[uint64]*frame.SocketCodec),
	}
}

// Add registers a connection and returns its session id.
// WHY numeric ids: a client may open several sessions, so remote addresses
// are not unique enough to key the map.
func (s *Sessions) Add(conn *frame.SocketCodec) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	s.conns[s.next] = conn
	log.Info().Uint64("session", s.next).Int("total", len(s.conns)).Msg("session opened")
	return s.next
}

// Remove unregisters a session and closes its connection.
func (s *Sessions) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conn, ok := s.conns[id]; ok {
		conn.Close()
		delete(s.conns, id)
		log.Info().Uint64("session", id).Int("total", len(s.conns)).Msg("session closed")
	}
}

// Count returns the number of live sessions.
func (s *Sessions) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// CloseAll tells every client the hub is going away and drops them.
func (s *Sessions) CloseAll(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, conn := range s.conns {
		if err := conn.Shutdown(reason); err != nil {
			log.Debug().Err(err).Uint64("session", id).Msg("close handshake failed")
		}
		delete(s.conns, id)
	}
}
