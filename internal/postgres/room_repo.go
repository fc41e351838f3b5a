package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cwrk-planet/breakout-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

// RoomRepo keeps the latest snapshot of every room, including finished ones,
// so their analytics outlive the session.
type RoomRepo struct {
	q querier
}

func NewRoomRepo(q querier) *RoomRepo {
	return &RoomRepo{q: q}
}

func (r *RoomRepo) Upsert(ctx context.Context, sessionID string, room domain.Room) error {
	members := room.MemberIDs
	if members == nil {
		members = []domain.ParticipantID{}
	}
	memberJSON, err := json.Marshal(members)
	if err != nil {
		return err
	}
	features, err := json.Marshal(room.Features)
	if err != nil {
		return err
	}
	analytics, err := json.Marshal(room.Analytics)
	if err != nil {
		return err
	}

	_, err = r.q.Exec(ctx, queryUpsertRoom,
		sessionID,
		string(room.ID),
		room.Name,
		string(room.Status),
		room.Capacity,
		room.DurationSeconds,
		room.RemainingSeconds,
		memberJSON,
		features,
		analytics,
		room.CreatedAt,
		room.StartedAt,
		room.EndedAt,
	)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (r *RoomRepo) Get(ctx context.Context, sessionID string, id domain.RoomID) (domain.Room, error) {
	room, err := scanRoom(r.q.QueryRow(ctx, queryGetRoom, sessionID, string(id)))
	if err != nil {
		return domain.Room{}, fmt.Errorf("room %s: %w", id, mapPgError(err))
	}
	return room, nil
}

func (r *RoomRepo) ListBySession(ctx context.Context, sessionID string) ([]domain.Room, error) {
	rows, err := r.q.Query(ctx, queryListRooms, sessionID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func scanRoom(row pgx.Row) (domain.Room, error) {
	var (
		room                 domain.Room
		id, status           string
		members, feat, stats []byte
		startedAt, endedAt   *time.Time
	)
	err := row.Scan(
		&id,
		&room.Name,
		&status,
		&room.Capacity,
		&room.DurationSeconds,
		&room.RemainingSeconds,
		&members,
		&feat,
		&stats,
		&room.CreatedAt,
		&startedAt,
		&endedAt,
	)
	if err != nil {
		return domain.Room{}, err
	}
	room.ID = domain.RoomID(id)
	room.Status = domain.RoomStatus(status)
	room.StartedAt = startedAt
	room.EndedAt = endedAt
	if err := json.Unmarshal(members, &room.MemberIDs); err != nil {
		return domain.Room{}, err
	}
	if err := json.Unmarshal(feat, &room.Features); err != nil {
		return domain.Room{}, err
	}
	if err := json.Unmarshal(stats, &room.Analytics); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}
