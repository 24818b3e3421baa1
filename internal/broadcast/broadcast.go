// Package broadcast fans out serialized JSON payloads to sets of WebSocket
// clients (spec §4.5). Each Set serializes a payload once, then writes it to
// every member; a write failure evicts that member. There is no per-client
// queue — slow clients fall behind via TCP backpressure and get dropped by
// the eviction rule, never by slowing the publisher down.
package broadcast

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hudwear/hudserver/internal/protocol"
	"github.com/hudwear/hudserver/internal/ratelog"
)

// Set is a registry of WebSocket connections that all receive the same
// broadcast traffic (the HUD /events set, or the HUD /stt set).
type Set struct {
	mu      sync.Mutex
	members map[*websocket.Conn]struct{}
	log     ratelog.Logger
}

// NewSet creates an empty Set.
func NewSet(log ratelog.Logger) *Set {
	return &Set{members: make(map[*websocket.Conn]struct{}), log: log}
}

// Add registers conn as a broadcast member.
func (s *Set) Add(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[conn] = struct{}{}
}

// Remove deregisters conn; safe to call more than once.
func (s *Set) Remove(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, conn)
}

// Len reports the current member count.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// Send serializes v once and writes it to every member, evicting any that
// fail to write.
func (s *Set) Send(v any) {
	payload, err := protocol.Dumps(v)
	if err != nil {
		s.log.Errorf("marshal broadcast payload: %v", err)
		return
	}
	s.SendRaw(payload)
}

// SendRaw writes an already-serialized payload to every member.
func (s *Set) SendRaw(payload []byte) {
	s.mu.Lock()
	targets := make([]*websocket.Conn, 0, len(s.members))
	for c := range s.members {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	var dead []*websocket.Conn
	for _, c := range targets {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			dead = append(dead, c)
		}
	}
	if len(dead) == 0 {
		return
	}
	s.mu.Lock()
	for _, c := range dead {
		delete(s.members, c)
	}
	s.mu.Unlock()
}
