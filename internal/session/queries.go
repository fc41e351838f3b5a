package session

import (
	"github.com/cwrk-planet/breakout-service/internal/domain"
)

// State is a consistent view of the whole session.
type State struct {
	SessionID    string                 `json:"session_id"`
	Seq          uint64                 `json:"seq"`
	Participants []domain.Participant   `json:"participants"`
	Unassigned   []domain.ParticipantID `json:"unassigned"`
	Rooms        []domain.Room          `json:"rooms"`
	Queue        []domain.QueueEntry    `json:"queue"`
	Presenting   domain.PresentingSet   `json:"presenting"`
}

func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		SessionID:    s.id,
		Seq:          s.seq,
		Participants: s.reg.List(),
		Unassigned:   s.reg.Unassigned(),
		Rooms:        s.rooms.List(),
		Queue:        s.queue.Pending(),
		Presenting:   s.queue.Presenting(),
	}
}

func (s *Session) RoomSnapshot(id domain.RoomID) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms.Get(id)
}

func (s *Session) ListRooms() []domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms.List()
}

// UnassignedPool returns the main session pool in arrival order.
func (s *Session) UnassignedPool() []domain.ParticipantID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Unassigned()
}

func (s *Session) Participants() []domain.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.List()
}

func (s *Session) Participant(id domain.ParticipantID) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Get(id)
}

func (s *Session) QueuePosition(id domain.ParticipantID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue.Position(id)
}

func (s *Session) PresenterQueue() []domain.QueueEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue.Pending()
}

func (s *Session) PresentingSet() domain.PresentingSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue.Presenting()
}
