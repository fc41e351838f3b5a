package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/breakout-service/internal/domain"
	"github.com/cwrk-planet/breakout-service/internal/session"
	httpmw "github.com/cwrk-planet/breakout-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
)

// HistoryStore pages persisted session events.
type HistoryStore interface {
	History(ctx context.Context, sessionID, after string, limit int) ([]domain.Event, string, error)
}

// RoomArchive reads room snapshots kept for analytics after rooms closed.
type RoomArchive interface {
	ListBySession(ctx context.Context, sessionID string) ([]domain.Room, error)
	Get(ctx context.Context, sessionID string, id domain.RoomID) (domain.Room, error)
}

type Handler struct {
	sessions *session.Manager
	history  HistoryStore
	archive  RoomArchive
}

// NewHandler; history and archive may be nil when persistence is off.
func NewHandler(sessions *session.Manager, history HistoryStore, archive RoomArchive) *Handler {
	return &Handler{sessions: sessions, history: history, archive: archive}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "eventID"))
	if err != nil {
		fail(w, r, err)
		return nil, false
	}
	return s, true
}

func caller(r *http.Request) domain.ParticipantID {
	id, _ := httpmw.IdentityFromCtx(r.Context())
	return id.ID
}

func participantParam(r *http.Request) domain.ParticipantID {
	return domain.ParticipantID(chi.URLParam(r, "participantID"))
}

func roomParam(r *http.Request) domain.RoomID {
	return domain.RoomID(chi.URLParam(r, "roomID"))
}

// GET /events
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ok(w, http.StatusOK, h.sessions.IDs())
}

// DELETE /events/{eventID}
// Закрывает живую сессию целиком; только модератор.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	p, err := s.Participant(caller(r))
	if err != nil || !p.Role.CanModerate() {
		fail(w, r, fmt.Errorf("%w: closing the session needs a moderator", domain.ErrPermissionDenied))
		return
	}
	if err := h.sessions.CloseSession(s.ID()); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /events/{eventID}
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	ok(w, http.StatusOK, s.Snapshot())
}

// POST /events/{eventID}/participants
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	s, err := h.sessions.Open(chi.URLParam(r, "eventID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	id, _ := httpmw.IdentityFromCtx(r.Context())
	p, err := s.Join(r.Context(), domain.Participant{ID: id.ID, DisplayName: req.DisplayName, Role: id.Role})
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, p)
}

// GET /events/{eventID}/participants
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	ok(w, http.StatusOK, s.Participants())
}

// GET /events/{eventID}/unassigned
func (h *Handler) UnassignedPool(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	ok(w, http.StatusOK, s.UnassignedPool())
}

// PUT /events/{eventID}/participants/{participantID}/media
func (h *Handler) UpdateMedia(w http.ResponseWriter, r *http.Request) {
	var req domain.MediaState
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	s, found := h.session(w, r)
	if !found {
		return
	}
	p, err := s.UpdateMedia(r.Context(), caller(r), participantParam(r), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, p)
}

// DELETE /events/{eventID}/participants/{participantID}
func (h *Handler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	if err := s.RemoveParticipant(r.Context(), caller(r), participantParam(r)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /events/{eventID}/participants/{participantID}/move
func (h *Handler) MoveParticipant(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	s, found := h.session(w, r)
	if !found {
		return
	}
	mv, err := s.MoveParticipant(r.Context(), caller(r), participantParam(r), req.From, req.To)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, mv)
}

// GET /events/{eventID}/history?after=&limit=
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		fail(w, r, errHistoryDisabled)
		return
	}
	if _, found := h.session(w, r); !found {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fail(w, r, fmt.Errorf("%w: limit %q", domain.ErrInvalidConfiguration, v))
			return
		}
		limit = n
	}
	items, next, err := h.history.History(r.Context(), chi.URLParam(r, "eventID"), r.URL.Query().Get("after"), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Event{}
	}
	ok(w, http.StatusOK, HistoryResponse{Items: items, NextCursor: next})
}

// GET /events/{eventID}/archive/rooms
// Работает и после закрытия сессии: читает снимки из Postgres.
func (h *Handler) ArchivedRooms(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		fail(w, r, errHistoryDisabled)
		return
	}
	rooms, err := h.archive.ListBySession(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	ok(w, http.StatusOK, rooms)
}

// GET /events/{eventID}/archive/rooms/{roomID}
func (h *Handler) ArchivedRoom(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		fail(w, r, errHistoryDisabled)
		return
	}
	room, err := h.archive.Get(r.Context(), chi.URLParam(r, "eventID"), roomParam(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, room)
}
