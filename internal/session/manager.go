package session

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/cwrk-planet/breakout-service/internal/domain"
	"github.com/cwrk-planet/breakout-service/pkg/logger"
)

// Manager maps live event ids to their sessions.
type Manager struct {
	cfg Config
	pub Publisher
	log *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewManager(cfg Config, pub Publisher, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		pub:      pub,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session of eventID, starting it on first use.
func (m *Manager) Open(eventID string) (*Session, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, fmt.Errorf("%w: event id is required", domain.ErrInvalidConfiguration)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, domain.ErrSessionClosed
	}
	if s, ok := m.sessions[eventID]; ok {
		return s, nil
	}
	s := New(eventID, m.cfg, m.pub, m.log)
	m.sessions[eventID] = s
	m.log.Info("session opened", logger.EventID(eventID))
	return s, nil
}

// Get returns an existing session.
func (m *Manager) Get(eventID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", eventID, domain.ErrNotFound)
	}
	return s, nil
}

// IDs returns the open event ids, sorted.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// CloseSession stops one session and forgets it.
func (m *Manager) CloseSession(eventID string) error {
	m.mu.Lock()
	s, ok := m.sessions[eventID]
	delete(m.sessions, eventID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("event %s: %w", eventID, domain.ErrNotFound)
	}
	s.Close()
	m.log.Info("session closed", logger.EventID(eventID))
	return nil
}

// Close stops every session; Open fails afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range all {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()
}
