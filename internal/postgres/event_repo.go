package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cwrk-planet/breakout-service/internal/domain"
)

// EventRepo is the append-only log of committed session events.
type EventRepo struct {
	q querier
}

func NewEventRepo(q querier) *EventRepo {
	return &EventRepo{q: q}
}

// Append stores ev. Events are keyed by their id, so a redelivered event
// returns ErrDuplicate while distinct events sharing a seq are both kept.
func (r *EventRepo) Append(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	tag, err := r.q.Exec(ctx, queryAppendEvent, ev.ID, ev.SessionID, int64(ev.Seq), string(ev.Type), ev.At, payload)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", ev.ID, ErrDuplicate)
	}
	return nil
}

// History возвращает события сессии в порядке записи с курсорной пагинацией.
func (r *EventRepo) History(ctx context.Context, sessionID, after string, limit int) ([]domain.Event, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	cur, err := DecodeCursor(after, sessionID)
	if err != nil {
		return nil, "", err
	}

	rows, err := r.q.Query(ctx, queryEventHistory, sessionID, cur.Pos, limit)
	if err != nil {
		return nil, "", mapPgError(err)
	}
	defer rows.Close()

	var (
		out  []domain.Event
		last int64
	)
	for rows.Next() {
		var (
			pos     int64
			payload []byte
		)
		if err := rows.Scan(&pos, &payload); err != nil {
			return nil, "", err
		}
		last = pos
		var ev domain.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, "", fmt.Errorf("unmarshal event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, "", mapPgError(err)
	}

	var next string
	if len(out) == limit {
		next = Cursor{Session: sessionID, Pos: last}.Encode()
	}
	return out, next, nil
}
