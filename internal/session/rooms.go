package session

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/breakout-service/internal/domain"
	"github.com/cwrk-planet/breakout-service/internal/rooms"
)

// CreateRooms creates rooms in Created and assigns the unassigned pool to them
// unless the strategy is manual.
func (s *Session) CreateRooms(ctx context.Context, caller domain.ParticipantID, p rooms.CreateParams) ([]domain.Room, error) {
	var out []domain.Room
	err := s.do(ctx, "create_rooms", false, func(tx *txn) error {
		if err := s.requireModerator(caller); err != nil {
			return err
		}
		created, err := s.rooms.Create(p)
		if err != nil {
			return err
		}
		out = created
		s.releaseDisallowedScreenShare(tx, caller, domain.Unassigned)
		tx.emit(domain.Event{Type: domain.EventRoomsCreated, ActorID: caller, Rooms: cloneRooms(created)})
		return nil
	})
	return out, err
}

// StartAll moves every Created room to Active and starts its countdown.
func (s *Session) StartAll(ctx context.Context, caller domain.ParticipantID) ([]domain.Room, error) {
	var out []domain.Room
	err := s.do(ctx, "start_all", false, func(tx *txn) error {
		if err := s.requireModerator(caller); err != nil {
			return err
		}
		started, err := s.rooms.StartAll()
		if err != nil {
			return err
		}
		out = started
		for _, r := range started {
			room := r.Clone()
			tx.emit(domain.Event{Type: domain.EventRoomStarted, RoomID: r.ID, ActorID: caller, Room: &room})
			s.startTimer(r.ID)
		}
		return nil
	})
	return out, err
}

// EndAll sends every Active room to Ending and cancels rooms that never
// started. It returns all rooms as they are after the command.
func (s *Session) EndAll(ctx context.Context, caller domain.ParticipantID) ([]domain.Room, error) {
	var out []domain.Room
	err := s.do(ctx, "end_all", false, func(tx *txn) error {
		if err := s.requireModerator(caller); err != nil {
			return err
		}
		ending, cancelled, err := s.rooms.EndAll()
		if err != nil {
			return err
		}
		for _, c := range cancelled {
			emitClosed(tx, c, caller, "cancelled")
		}
		for _, r := range ending {
			s.stopTimer(r.ID)
			room := r.Clone()
			tx.emit(domain.Event{Type: domain.EventRoomEnding, RoomID: r.ID, ActorID: caller, Room: &room, Reason: "ended"})
		}
		for _, r := range ending {
			s.finishLocked(tx, r.ID)
		}
		out = s.rooms.List()
		return nil
	})
	return out, err
}

// ExtendRoom adds seconds to an Active room; 0 means the configured step.
func (s *Session) ExtendRoom(ctx context.Context, caller domain.ParticipantID, id domain.RoomID, seconds int) (domain.Room, error) {
	var out domain.Room
	err := s.do(ctx, "extend_room", false, func(tx *txn) error {
		if err := s.requireModerator(caller); err != nil {
			return err
		}
		room, added, err := s.rooms.Extend(id, seconds)
		if err != nil {
			return err
		}
		out = room
		snap := room.Clone()
		tx.emit(domain.Event{Type: domain.EventRoomExtended, RoomID: id, ActorID: caller, Room: &snap, Seconds: added})
		return nil
	})
	return out, err
}

// CancelRoom closes a room that was never started.
func (s *Session) CancelRoom(ctx context.Context, caller domain.ParticipantID, id domain.RoomID) (domain.Room, error) {
	var out domain.Room
	err := s.do(ctx, "cancel_room", false, func(tx *txn) error {
		if err := s.requireModerator(caller); err != nil {
			return err
		}
		c, err := s.rooms.Cancel(id)
		if err != nil {
			return err
		}
		out = c.Room
		emitClosed(tx, c, caller, "cancelled")
		return nil
	})
	return out, err
}

// CloseRoom force-closes an Active room, skipping Ending.
func (s *Session) CloseRoom(ctx context.Context, caller domain.ParticipantID, id domain.RoomID) (domain.Room, error) {
	var out domain.Room
	err := s.do(ctx, "close_room", false, func(tx *txn) error {
		if err := s.requireModerator(caller); err != nil {
			return err
		}
		c, err := s.rooms.ForceClose(id)
		if err != nil {
			return err
		}
		s.stopTimer(id)
		out = c.Room
		emitClosed(tx, c, caller, "closed")
		return nil
	})
	return out, err
}

// MoveParticipant relocates pid from one place to another; Unassigned is the
// main session pool. Moving oneself needs AllowSelfMove, moving others needs a
// moderator. from == to succeeds without an event.
func (s *Session) MoveParticipant(ctx context.Context, caller, pid domain.ParticipantID, from, to domain.RoomID) (domain.Move, error) {
	mv := domain.Move{From: from, To: to}
	err := s.do(ctx, "move_participant", false, func(tx *txn) error {
		if caller == pid && s.cfg.AllowSelfMove {
			if err := s.requireMember(caller); err != nil {
				return err
			}
		} else if err := s.requireModerator(caller); err != nil {
			return err
		}
		changed, err := s.rooms.Move(pid, from, to)
		if err != nil || !changed {
			return err
		}
		s.releaseDisallowedScreenShare(tx, caller, from)
		m := mv
		tx.emit(domain.Event{Type: domain.EventParticipantMoved, ParticipantID: pid, RoomID: to, ActorID: caller, Move: &m})
		return nil
	})
	return mv, err
}

// RecordRoomMessage counts a chat message sent in an Active room by one of its
// members.
func (s *Session) RecordRoomMessage(ctx context.Context, caller domain.ParticipantID, id domain.RoomID) (domain.Room, error) {
	var out domain.Room
	err := s.do(ctx, "record_room_message", false, func(tx *txn) error {
		loc, err := s.reg.Location(caller)
		if err != nil {
			return fmt.Errorf("%w: %s is not in the session", domain.ErrPermissionDenied, caller)
		}
		if loc != id {
			if err := s.requireModerator(caller); err != nil {
				return err
			}
		}
		room, err := s.rooms.RecordMessage(id)
		if err != nil {
			return err
		}
		out = room
		tx.emit(domain.Event{Type: domain.EventRoomMessage, RoomID: id, ParticipantID: caller, Room: &room})
		return nil
	})
	return out, err
}

// Tick advances one room countdown by a second through the command stream.
// A tick for a room that is no longer Active is a silent no-op.
func (s *Session) Tick(ctx context.Context, id domain.RoomID) error {
	return s.do(ctx, "tick", false, func(tx *txn) error {
		s.tickLocked(tx, id)
		return nil
	})
}

func (s *Session) tickLocked(tx *txn, id domain.RoomID) {
	res, ok := s.rooms.Tick(id)
	if !ok {
		return
	}
	if res.Warning > 0 {
		room := res.Room.Clone()
		tx.emit(domain.Event{Type: domain.EventRoomTimerWarning, RoomID: id, Room: &room, Seconds: res.Warning})
	}
	if res.Ending {
		s.stopTimer(id)
		room := res.Room.Clone()
		tx.emit(domain.Event{Type: domain.EventRoomEnding, RoomID: id, Room: &room, Reason: "timeout"})
		s.finishLocked(tx, id)
	}
}

// finishLocked merges an Ending room now or after the grace window.
func (s *Session) finishLocked(tx *txn, id domain.RoomID) {
	if s.cfg.EndingGrace > 0 {
		s.scheduleFinalize(id)
		return
	}
	s.finalizeLocked(tx, id)
}

func (s *Session) finalizeLocked(tx *txn, id domain.RoomID) {
	delete(s.graces, id)
	c, err := s.rooms.Finalize(id)
	if err != nil {
		// комната уже закрыта другим путём
		return
	}
	room := c.Room
	tx.emit(domain.Event{Type: domain.EventRoomMerged, RoomID: id, Room: &room, Returned: c.Returned})
}

func emitClosed(tx *txn, c rooms.Closure, actor domain.ParticipantID, reason string) {
	room := c.Room
	tx.emit(domain.Event{
		Type:     domain.EventRoomClosed,
		RoomID:   room.ID,
		ActorID:  actor,
		Room:     &room,
		Returned: c.Returned,
		Reason:   reason,
	})
}

func cloneRooms(in []domain.Room) []domain.Room {
	out := make([]domain.Room, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
