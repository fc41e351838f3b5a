// Package signaling turns committed session events into instructions for the
// media signaling layer. The layer is told, never asked.
package signaling

import (
	"context"
	"log/slog"

	"github.com/cwrk-planet/breakout-service/internal/domain"
)

type Action string

const (
	ActionPublish   Action = "publish"
	ActionUnpublish Action = "unpublish"
	ActionJoinRoom  Action = "join_room"
	ActionLeaveRoom Action = "leave_room"
)

type Track string

const (
	TrackMedia  Track = "media"
	TrackScreen Track = "screen"
)

// Directive targets one participant. RoomID "" is the main session.
type Directive struct {
	SessionID     string               `json:"session_id"`
	EventSeq      uint64               `json:"event_seq"`
	Action        Action               `json:"action"`
	ParticipantID domain.ParticipantID `json:"participant_id"`
	RoomID        domain.RoomID        `json:"room_id,omitempty"`
	Track         Track                `json:"track,omitempty"`
}

// Derive lists the directives implied by ev, in the order they should be applied.
func Derive(ev domain.Event) []Directive {
	d := func(a Action, p domain.ParticipantID, room domain.RoomID, tr Track) Directive {
		return Directive{
			SessionID:     ev.SessionID,
			EventSeq:      ev.Seq,
			Action:        a,
			ParticipantID: p,
			RoomID:        room,
			Track:         tr,
		}
	}

	switch ev.Type {
	// публикация идёт в комнату, где сейчас находится участник
	case domain.EventPresenterApproved:
		return []Directive{d(ActionPublish, ev.ParticipantID, ev.RoomID, TrackMedia)}
	case domain.EventPresenterStopped:
		return []Directive{d(ActionUnpublish, ev.ParticipantID, ev.RoomID, TrackMedia)}
	case domain.EventScreenShareGranted:
		return []Directive{d(ActionPublish, ev.ParticipantID, ev.RoomID, TrackScreen)}
	case domain.EventScreenShareRelease:
		return []Directive{d(ActionUnpublish, ev.ParticipantID, ev.RoomID, TrackScreen)}

	case domain.EventParticipantMoved:
		if ev.Move == nil {
			return nil
		}
		return []Directive{
			d(ActionLeaveRoom, ev.ParticipantID, ev.Move.From, ""),
			d(ActionJoinRoom, ev.ParticipantID, ev.Move.To, ""),
		}

	case domain.EventRoomStarted:
		if ev.Room == nil {
			return nil
		}
		out := make([]Directive, 0, 2*len(ev.Room.MemberIDs))
		for _, p := range ev.Room.MemberIDs {
			out = append(out,
				d(ActionLeaveRoom, p, domain.Unassigned, ""),
				d(ActionJoinRoom, p, ev.RoomID, ""))
		}
		return out

	case domain.EventRoomMerged, domain.EventRoomClosed:
		out := make([]Directive, 0, 2*len(ev.Returned))
		for _, p := range ev.Returned {
			out = append(out,
				d(ActionLeaveRoom, p, ev.RoomID, ""),
				d(ActionJoinRoom, p, domain.Unassigned, ""))
		}
		return out

	case domain.EventParticipantRemoved:
		return []Directive{d(ActionLeaveRoom, ev.ParticipantID, ev.RoomID, "")}
	}
	return nil
}

type Notifier interface {
	Notify(ctx context.Context, d Directive) error
}

// Dispatcher is an events.Handler that forwards derived directives to a Notifier.
type Dispatcher struct {
	n Notifier
}

func NewDispatcher(n Notifier) *Dispatcher {
	return &Dispatcher{n: n}
}

func (d *Dispatcher) HandleEvent(ctx context.Context, ev domain.Event) {
	for _, dir := range Derive(ev) {
		if err := d.n.Notify(ctx, dir); err != nil {
			slog.Warn("signaling notify failed",
				"session", dir.SessionID,
				"participant", dir.ParticipantID,
				"action", dir.Action,
				"err", err)
		}
	}
}

// LogNotifier only logs directives; used when no signaling transport is attached.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, d Directive) error {
	slog.DebugContext(ctx, "signaling directive",
		"session", d.SessionID,
		"seq", d.EventSeq,
		"action", d.Action,
		"participant", d.ParticipantID,
		"room", d.RoomID,
		"track", d.Track)
	return nil
}

// MultiNotifier sends to every notifier and returns the first error.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, d Directive) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, d); err != nil && first == nil {
			first = err
		}
	}
	return first
}
