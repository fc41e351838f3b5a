package ws

import (
	"context"
	"sync"

	"github.com/cwrk-planet/breakout-service/internal/domain"
	"github.com/cwrk-planet/breakout-service/internal/signaling"
)

type Conn interface {
	Send(msg Message) error
	Close() error
	SessionID() string
	ParticipantID() domain.ParticipantID
}

// Hub tracks live connections per session. It is both an event subscriber
// (fan-out to every connection of the session) and a signaling notifier
// (directives go only to the target participant).
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[Conn]struct{} // sessionID -> set of connections
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]map[Conn]struct{})}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cs, ok := h.sessions[c.SessionID()]
	if !ok {
		cs = make(map[Conn]struct{})
		h.sessions[c.SessionID()] = cs
	}
	cs[c] = struct{}{}
}

// Remove drops c and reports whether the participant has no other
// connection left in the session.
func (h *Hub) Remove(c Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	cs, ok := h.sessions[c.SessionID()]
	if !ok {
		return true
	}
	delete(cs, c)
	if len(cs) == 0 {
		delete(h.sessions, c.SessionID())
		return true
	}
	for other := range cs {
		if other.ParticipantID() == c.ParticipantID() {
			return false
		}
	}
	return true
}

// Count reports how many live connections pid has in the session.
func (h *Hub) Count(sessionID string, pid domain.ParticipantID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.sessions[sessionID] {
		if c.ParticipantID() == pid {
			n++
		}
	}
	return n
}

func (h *Hub) Broadcast(sessionID string, msg Message) {
	for _, c := range h.conns(sessionID, "") {
		_ = c.Send(msg) // best-effort
	}
}

// SendTo delivers msg to every connection of one participant and reports
// how many got it.
func (h *Hub) SendTo(sessionID string, pid domain.ParticipantID, msg Message) int {
	n := 0
	for _, c := range h.conns(sessionID, pid) {
		if c.Send(msg) == nil {
			n++
		}
	}
	return n
}

func (h *Hub) HandleEvent(_ context.Context, ev domain.Event) {
	h.Broadcast(ev.SessionID, Message{Type: TypeEvent, Payload: ev})
}

func (h *Hub) Notify(_ context.Context, d signaling.Directive) error {
	h.SendTo(d.SessionID, d.ParticipantID, Message{Type: TypeDirective, Payload: d})
	return nil
}

// conns copies the matching connections so sends happen outside the lock.
func (h *Hub) conns(sessionID string, pid domain.ParticipantID) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Conn, 0, len(h.sessions[sessionID]))
	for c := range h.sessions[sessionID] {
		if pid == "" || c.ParticipantID() == pid {
			out = append(out, c)
		}
	}
	return out
}
