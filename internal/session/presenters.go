package session

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/breakout-service/internal/domain"
)

// RequestPresenter queues the caller and returns its entry and position.
func (s *Session) RequestPresenter(ctx context.Context, caller domain.ParticipantID) (domain.QueueEntry, int, error) {
	var (
		entry domain.QueueEntry
		pos   int
	)
	err := s.do(ctx, "request_presenter", false, func(tx *txn) error {
		if err := s.requireMember(caller); err != nil {
			return err
		}
		e, p, err := s.queue.Request(caller)
		if err != nil {
			return err
		}
		entry, pos = e, p
		tx.emit(domain.Event{Type: domain.EventPresenterRequested, ParticipantID: caller, Entry: &e, Position: p})
		return nil
	})
	return entry, pos, err
}

// WithdrawPresenter drops the caller's own pending request.
func (s *Session) WithdrawPresenter(ctx context.Context, caller domain.ParticipantID) (domain.QueueEntry, error) {
	var out domain.QueueEntry
	err := s.do(ctx, "withdraw_presenter", false, func(tx *txn) error {
		if err := s.requireMember(caller); err != nil {
			return err
		}
		e, err := s.queue.Withdraw(caller)
		if err != nil {
			return err
		}
		out = e
		tx.emit(domain.Event{Type: domain.EventPresenterWithdrawn, ParticipantID: caller, ActorID: caller, Entry: &e, Reason: "withdrawn"})
		return nil
	})
	return out, err
}

func (s *Session) ApprovePresenter(ctx context.Context, caller, pid domain.ParticipantID) (domain.PresentingSet, error) {
	var out domain.PresentingSet
	err := s.do(ctx, "approve_presenter", false, func(tx *txn) error {
		if err := s.requireModerator(caller); err != nil {
			return err
		}
		e, err := s.queue.Approve(pid)
		if err != nil {
			return err
		}
		out = s.queue.Presenting()
		tx.emit(domain.Event{Type: domain.EventPresenterApproved, ParticipantID: pid, RoomID: s.where(pid), ActorID: caller, Entry: &e})
		return nil
	})
	return out, err
}

func (s *Session) DenyPresenter(ctx context.Context, caller, pid domain.ParticipantID) (domain.QueueEntry, error) {
	var out domain.QueueEntry
	err := s.do(ctx, "deny_presenter", false, func(tx *txn) error {
		if err := s.requireModerator(caller); err != nil {
			return err
		}
		e, err := s.queue.Deny(pid)
		if err != nil {
			return err
		}
		out = e
		tx.emit(domain.Event{Type: domain.EventPresenterDenied, ParticipantID: pid, ActorID: caller, Entry: &e})
		return nil
	})
	return out, err
}

// StopPresenting removes pid from the presenting set, releasing its screen share.
func (s *Session) StopPresenting(ctx context.Context, caller, pid domain.ParticipantID) (domain.PresentingSet, error) {
	var out domain.PresentingSet
	err := s.do(ctx, "stop_presenting", false, func(tx *txn) error {
		if err := s.requireSelfOrModerator(caller, pid); err != nil {
			return err
		}
		released, err := s.queue.StopPresenting(pid)
		if err != nil {
			return err
		}
		if released {
			s.reg.SetScreenSharing(pid, false)
			tx.emit(domain.Event{Type: domain.EventScreenShareRelease, ParticipantID: pid, RoomID: s.where(pid), ActorID: caller})
		}
		tx.emit(domain.Event{Type: domain.EventPresenterStopped, ParticipantID: pid, RoomID: s.where(pid), ActorID: caller})
		out = s.queue.Presenting()
		return nil
	})
	return out, err
}

// RequestScreenShare hands the single screen-share slot to the caller.
func (s *Session) RequestScreenShare(ctx context.Context, caller domain.ParticipantID) (domain.PresentingSet, error) {
	var out domain.PresentingSet
	err := s.do(ctx, "request_screen_share", false, func(tx *txn) error {
		if err := s.requireMember(caller); err != nil {
			return err
		}
		if s.queue.Presenting().Has(caller) {
			if err := s.checkScreenShareAllowed(caller); err != nil {
				return err
			}
		}
		granted, err := s.queue.RequestScreenShare(caller)
		if err != nil {
			return err
		}
		if granted {
			s.reg.SetScreenSharing(caller, true)
			tx.emit(domain.Event{Type: domain.EventScreenShareGranted, ParticipantID: caller, RoomID: s.where(caller)})
		}
		out = s.queue.Presenting()
		return nil
	})
	return out, err
}

// StopScreenShare releases pid's screen share. Moderators may stop anyone's.
func (s *Session) StopScreenShare(ctx context.Context, caller, pid domain.ParticipantID) (domain.PresentingSet, error) {
	var out domain.PresentingSet
	err := s.do(ctx, "stop_screen_share", false, func(tx *txn) error {
		if err := s.requireSelfOrModerator(caller, pid); err != nil {
			return err
		}
		if err := s.queue.StopScreenShare(pid); err != nil {
			return err
		}
		s.reg.SetScreenSharing(pid, false)
		tx.emit(domain.Event{Type: domain.EventScreenShareRelease, ParticipantID: pid, RoomID: s.where(pid), ActorID: caller})
		out = s.queue.Presenting()
		return nil
	})
	return out, err
}

// releaseDisallowedScreenShare frees the screen-share slot when its owner now
// sits in a room without screen share; from is where the share was published.
func (s *Session) releaseDisallowedScreenShare(tx *txn, actor domain.ParticipantID, from domain.RoomID) {
	pid := s.queue.ScreenSharer()
	if pid == "" || s.checkScreenShareAllowed(pid) == nil {
		return
	}
	if err := s.queue.StopScreenShare(pid); err != nil {
		return
	}
	s.reg.SetScreenSharing(pid, false)
	tx.emit(domain.Event{Type: domain.EventScreenShareRelease, ParticipantID: pid, RoomID: from, ActorID: actor, Reason: "room_disallows_screen_share"})
}

// where is the room pid is in; Unassigned for the main session.
func (s *Session) where(pid domain.ParticipantID) domain.RoomID {
	loc, err := s.reg.Location(pid)
	if err != nil {
		return domain.Unassigned
	}
	return loc
}

func (s *Session) checkScreenShareAllowed(id domain.ParticipantID) error {
	loc, err := s.reg.Location(id)
	if err != nil || loc == domain.Unassigned {
		return err
	}
	room, err := s.rooms.Get(loc)
	if err != nil {
		return err
	}
	if !room.Features.AllowScreenShare {
		return fmt.Errorf("screen share in room %s: %w", loc, domain.ErrPermissionDenied)
	}
	return nil
}
