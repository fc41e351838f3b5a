package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cwrk-planet/breakout-service/internal/domain"
)

type eventAppender interface {
	Append(ctx context.Context, ev domain.Event) error
}

type roomUpserter interface {
	Upsert(ctx context.Context, sessionID string, room domain.Room) error
}

// Recorder is a bus subscriber that persists events and room snapshots.
// Failures are logged and never reach the session.
type Recorder struct {
	events  eventAppender
	rooms   roomUpserter
	timeout time.Duration
	log     *slog.Logger
}

func NewRecorder(events *EventRepo, rooms *RoomRepo, log *slog.Logger) *Recorder {
	return newRecorder(events, rooms, log)
}

func newRecorder(events eventAppender, rooms roomUpserter, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{events: events, rooms: rooms, timeout: 5 * time.Second, log: log}
}

func (r *Recorder) HandleEvent(ctx context.Context, ev domain.Event) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// доставка at-least-once: повтор события с тем же id не ошибка
	switch err := r.events.Append(ctx, ev); {
	case errors.Is(err, ErrDuplicate):
		r.log.Debug("event already stored", "event_id", ev.SessionID, "id", ev.ID, "seq", ev.Seq)
	case err != nil:
		r.log.Error("append event", "event_id", ev.SessionID, "seq", ev.Seq, "type", ev.Type, "err", err)
	}

	snapshots := append([]domain.Room(nil), ev.Rooms...)
	if ev.Room != nil {
		snapshots = append(snapshots, *ev.Room)
	}
	for _, room := range snapshots {
		if err := r.rooms.Upsert(ctx, ev.SessionID, room); err != nil {
			r.log.Error("upsert room", "event_id", ev.SessionID, "room_id", room.ID, "err", err)
		}
	}
}
