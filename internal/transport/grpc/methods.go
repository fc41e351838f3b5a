package grpcx

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/breakout-service/internal/domain"
	"github.com/cwrk-planet/breakout-service/internal/rooms"
)

type method struct {
	name string
	open bool // Join создаёт сессию, остальные требуют существующую
	fn   func(ctx context.Context, c call) (any, error)
}

type createRoomsReq struct {
	Count           int              `json:"count"`
	DurationSeconds int              `json:"duration_seconds"`
	NamePrefix      string           `json:"name_prefix"`
	Strategy        string           `json:"strategy"`
	Capacity        int              `json:"capacity"`
	Features        *domain.Features `json:"features,omitempty"`
}

type moveReq struct {
	ParticipantID domain.ParticipantID `json:"participant_id"`
	From          domain.RoomID        `json:"from"`
	To            domain.RoomID        `json:"to"`
}

type mediaReq struct {
	ParticipantID domain.ParticipantID `json:"participant_id"`
	domain.MediaState
}

type extendReq struct {
	RoomID  domain.RoomID `json:"room_id"`
	Seconds int           `json:"seconds"`
}

var methods = []method{
	{name: "GetState", fn: func(_ context.Context, c call) (any, error) {
		return c.sess.Snapshot(), nil
	}},
	{name: "Join", open: true, fn: func(ctx context.Context, c call) (any, error) {
		return c.sess.Join(ctx, domain.Participant{ID: c.me.ID, DisplayName: str(c.req, "display_name"), Role: c.me.Role})
	}},
	{name: "UpdateMedia", fn: func(ctx context.Context, c call) (any, error) {
		var req mediaReq
		if err := decode(c.req, &req); err != nil {
			return nil, err
		}
		return c.sess.UpdateMedia(ctx, c.me.ID, targetOrSelf(req.ParticipantID, c), req.MediaState)
	}},
	{name: "RemoveParticipant", fn: func(ctx context.Context, c call) (any, error) {
		target := targetOrSelf(domain.ParticipantID(str(c.req, "participant_id")), c)
		return map[string]any{"participant_id": target}, c.sess.RemoveParticipant(ctx, c.me.ID, target)
	}},
	{name: "MoveParticipant", fn: func(ctx context.Context, c call) (any, error) {
		var req moveReq
		if err := decode(c.req, &req); err != nil {
			return nil, err
		}
		return c.sess.MoveParticipant(ctx, c.me.ID, req.ParticipantID, req.From, req.To)
	}},
	{name: "CreateRooms", fn: func(ctx context.Context, c call) (any, error) {
		var req createRoomsReq
		if err := decode(c.req, &req); err != nil {
			return nil, err
		}
		var strategy domain.Strategy
		if req.Strategy != "" {
			st, ok := domain.ParseStrategy(req.Strategy)
			if !ok {
				return nil, fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidConfiguration, req.Strategy)
			}
			strategy = st
		}
		return c.sess.CreateRooms(ctx, c.me.ID, rooms.CreateParams{
			Count:           req.Count,
			DurationSeconds: req.DurationSeconds,
			NamePrefix:      req.NamePrefix,
			Strategy:        strategy,
			Capacity:        req.Capacity,
			Features:        req.Features,
		})
	}},
	{name: "ListRooms", fn: func(_ context.Context, c call) (any, error) {
		return c.sess.ListRooms(), nil
	}},
	{name: "GetRoom", fn: func(_ context.Context, c call) (any, error) {
		return c.sess.RoomSnapshot(domain.RoomID(str(c.req, "room_id")))
	}},
	{name: "StartAll", fn: func(ctx context.Context, c call) (any, error) {
		return c.sess.StartAll(ctx, c.me.ID)
	}},
	{name: "EndAll", fn: func(ctx context.Context, c call) (any, error) {
		return c.sess.EndAll(ctx, c.me.ID)
	}},
	{name: "ExtendRoom", fn: func(ctx context.Context, c call) (any, error) {
		var req extendReq
		if err := decode(c.req, &req); err != nil {
			return nil, err
		}
		return c.sess.ExtendRoom(ctx, c.me.ID, req.RoomID, req.Seconds)
	}},
	{name: "CancelRoom", fn: func(ctx context.Context, c call) (any, error) {
		return c.sess.CancelRoom(ctx, c.me.ID, domain.RoomID(str(c.req, "room_id")))
	}},
	{name: "CloseRoom", fn: func(ctx context.Context, c call) (any, error) {
		return c.sess.CloseRoom(ctx, c.me.ID, domain.RoomID(str(c.req, "room_id")))
	}},
	{name: "RequestPresenter", fn: func(ctx context.Context, c call) (any, error) {
		entry, pos, err := c.sess.RequestPresenter(ctx, c.me.ID)
		return map[string]any{"entry": entry, "position": pos}, err
	}},
	{name: "WithdrawPresenter", fn: func(ctx context.Context, c call) (any, error) {
		return c.sess.WithdrawPresenter(ctx, c.me.ID)
	}},
	{name: "ApprovePresenter", fn: func(ctx context.Context, c call) (any, error) {
		return c.sess.ApprovePresenter(ctx, c.me.ID, domain.ParticipantID(str(c.req, "participant_id")))
	}},
	{name: "DenyPresenter", fn: func(ctx context.Context, c call) (any, error) {
		return c.sess.DenyPresenter(ctx, c.me.ID, domain.ParticipantID(str(c.req, "participant_id")))
	}},
	{name: "StopPresenting", fn: func(ctx context.Context, c call) (any, error) {
		return c.sess.StopPresenting(ctx, c.me.ID, targetOrSelf(domain.ParticipantID(str(c.req, "participant_id")), c))
	}},
	{name: "RequestScreenShare", fn: func(ctx context.Context, c call) (any, error) {
		return c.sess.RequestScreenShare(ctx, c.me.ID)
	}},
	{name: "StopScreenShare", fn: func(ctx context.Context, c call) (any, error) {
		return c.sess.StopScreenShare(ctx, c.me.ID, targetOrSelf(domain.ParticipantID(str(c.req, "participant_id")), c))
	}},
	{name: "PresenterQueue", fn: func(_ context.Context, c call) (any, error) {
		return map[string]any{"queue": c.sess.PresenterQueue(), "presenting": c.sess.PresentingSet()}, nil
	}},
	{name: "QueuePosition", fn: func(_ context.Context, c call) (any, error) {
		target := targetOrSelf(domain.ParticipantID(str(c.req, "participant_id")), c)
		pos, err := c.sess.QueuePosition(target)
		return map[string]any{"participant_id": target, "position": pos}, err
	}},
}

func targetOrSelf(id domain.ParticipantID, c call) domain.ParticipantID {
	if id == "" {
		return c.me.ID
	}
	return id
}
