package session

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/breakout-service/internal/domain"
)

// Join регистрирует участника в общем пуле основной сессии.
func (s *Session) Join(ctx context.Context, p domain.Participant) (domain.Participant, error) {
	var out domain.Participant
	err := s.do(ctx, "join", false, func(tx *txn) error {
		joined, err := s.reg.Join(p)
		if err != nil {
			return err
		}
		out = joined
		tx.emit(domain.Event{
			Type:          domain.EventParticipantJoined,
			ParticipantID: joined.ID,
			Participant:   &joined,
		})
		return nil
	})
	return out, err
}

// UpdateMedia sets target's audio/video flags. A moderator acting on someone
// else may only switch things off.
func (s *Session) UpdateMedia(ctx context.Context, caller, target domain.ParticipantID, m domain.MediaState) (domain.Participant, error) {
	var out domain.Participant
	err := s.do(ctx, "update_media", false, func(tx *txn) error {
		cur, err := s.reg.Get(target)
		if err != nil {
			return err
		}
		if caller != target {
			if err := s.requireModerator(caller); err != nil {
				return err
			}
			if (m.AudioEnabled && !cur.Media.AudioEnabled) || (m.VideoEnabled && !cur.Media.VideoEnabled) {
				return fmt.Errorf("%w: moderators may only mute other participants", domain.ErrPermissionDenied)
			}
		} else if err := s.requireMember(caller); err != nil {
			return err
		}
		if cur.Media == m {
			out = cur
			return nil
		}
		p, err := s.reg.SetMedia(target, m)
		if err != nil {
			return err
		}
		out = p
		media := p.Media
		tx.emit(domain.Event{
			Type:          domain.EventParticipantMediaChanged,
			ParticipantID: target,
			ActorID:       caller,
			Media:         &media,
		})
		return nil
	})
	return out, err
}

// RemoveParticipant removes target from every set it belongs to. Participants
// may remove themselves; removing someone else needs a moderator.
func (s *Session) RemoveParticipant(ctx context.Context, caller, target domain.ParticipantID) error {
	return s.do(ctx, "remove_participant", true, func(tx *txn) error {
		reason := "left"
		if caller != target {
			if err := s.requireModerator(caller); err != nil {
				return err
			}
			reason = "removed"
		}
		return s.removeLocked(tx, target, caller, reason)
	})
}

// Disconnect is the transport-initiated removal of a participant whose
// connection dropped. It takes priority over queued commands.
func (s *Session) Disconnect(ctx context.Context, target domain.ParticipantID) error {
	return s.do(ctx, "disconnect", true, func(tx *txn) error {
		return s.removeLocked(tx, target, "", "disconnected")
	})
}

func (s *Session) removeLocked(tx *txn, id, actor domain.ParticipantID, reason string) error {
	if !s.reg.Contains(id) {
		return fmt.Errorf("participant %s: %w", id, domain.ErrNotFound)
	}

	at := s.where(id)
	rem := s.queue.Remove(id)
	if rem.ReleasedScreen {
		tx.emit(domain.Event{Type: domain.EventScreenShareRelease, ParticipantID: id, RoomID: at, ActorID: actor, Reason: reason})
	}
	if rem.WasPresenting {
		tx.emit(domain.Event{Type: domain.EventPresenterStopped, ParticipantID: id, RoomID: at, ActorID: actor, Reason: reason})
	}
	if rem.Entry != nil {
		e := *rem.Entry
		tx.emit(domain.Event{Type: domain.EventPresenterWithdrawn, ParticipantID: id, ActorID: actor, Entry: &e, Reason: reason})
	}

	room := s.rooms.Evict(id)
	p, _, err := s.reg.Remove(id)
	if err != nil {
		return err
	}
	tx.emit(domain.Event{
		Type:          domain.EventParticipantRemoved,
		ParticipantID: id,
		RoomID:        room,
		ActorID:       actor,
		Participant:   &p,
		Reason:        reason,
	})
	return nil
}

// -------- role checks --------

func (s *Session) requireMember(id domain.ParticipantID) error {
	if !s.reg.Contains(id) {
		return fmt.Errorf("%w: %s is not in the session", domain.ErrPermissionDenied, id)
	}
	return nil
}

func (s *Session) requireModerator(id domain.ParticipantID) error {
	role, err := s.reg.Role(id)
	if err != nil {
		return fmt.Errorf("%w: %s is not in the session", domain.ErrPermissionDenied, id)
	}
	if !role.CanModerate() {
		return fmt.Errorf("%w: %s is %s", domain.ErrPermissionDenied, id, role)
	}
	return nil
}

// requireSelfOrModerator lets a participant act on itself and moderators act on anyone.
func (s *Session) requireSelfOrModerator(caller, target domain.ParticipantID) error {
	if caller == target {
		return s.requireMember(caller)
	}
	return s.requireModerator(caller)
}
