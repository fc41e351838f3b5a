package http

import (
	"fmt"
	"net/http"

	"github.com/cwrk-planet/breakout-service/internal/domain"
	"github.com/cwrk-planet/breakout-service/internal/rooms"
)

// POST /events/{eventID}/rooms
func (h *Handler) CreateRooms(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomsRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	var strategy domain.Strategy
	if req.Strategy != "" {
		st, valid := domain.ParseStrategy(req.Strategy)
		if !valid {
			fail(w, r, fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidConfiguration, req.Strategy))
			return
		}
		strategy = st
	}
	s, found := h.session(w, r)
	if !found {
		return
	}
	created, err := s.CreateRooms(r.Context(), caller(r), rooms.CreateParams{
		Count:           req.Count,
		DurationSeconds: req.DurationSeconds,
		NamePrefix:      req.NamePrefix,
		Strategy:        strategy,
		Capacity:        req.Capacity,
		Features:        req.Features,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, created)
}

// GET /events/{eventID}/rooms
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	ok(w, http.StatusOK, s.ListRooms())
}

// GET /events/{eventID}/rooms/{roomID}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	room, err := s.RoomSnapshot(roomParam(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, room)
}

// POST /events/{eventID}/rooms/start
func (h *Handler) StartAll(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	started, err := s.StartAll(r.Context(), caller(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, started)
}

// POST /events/{eventID}/rooms/end
func (h *Handler) EndAll(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	out, err := s.EndAll(r.Context(), caller(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, out)
}

// POST /events/{eventID}/rooms/{roomID}/extend
func (h *Handler) ExtendRoom(w http.ResponseWriter, r *http.Request) {
	var req ExtendRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	s, found := h.session(w, r)
	if !found {
		return
	}
	room, err := s.ExtendRoom(r.Context(), caller(r), roomParam(r), req.Seconds)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, room)
}

// POST /events/{eventID}/rooms/{roomID}/cancel
func (h *Handler) CancelRoom(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	room, err := s.CancelRoom(r.Context(), caller(r), roomParam(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, room)
}

// POST /events/{eventID}/rooms/{roomID}/close
func (h *Handler) CloseRoom(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	room, err := s.CloseRoom(r.Context(), caller(r), roomParam(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, room)
}

// POST /events/{eventID}/rooms/{roomID}/messages
func (h *Handler) RecordRoomMessage(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	room, err := s.RecordRoomMessage(r.Context(), caller(r), roomParam(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, room)
}
