package http

import (
	"net/http"
)

// POST /events/{eventID}/presenters/requests
func (h *Handler) RequestPresenter(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	entry, pos, err := s.RequestPresenter(r.Context(), caller(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, PresenterRequestResponse{Entry: entry, Position: pos})
}

// DELETE /events/{eventID}/presenters/requests
func (h *Handler) WithdrawPresenter(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	entry, err := s.WithdrawPresenter(r.Context(), caller(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, entry)
}

// GET /events/{eventID}/presenters/queue
func (h *Handler) PresenterQueue(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	ok(w, http.StatusOK, s.PresenterQueue())
}

// GET /events/{eventID}/presenters/queue/{participantID}
func (h *Handler) QueuePosition(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	id := participantParam(r)
	pos, err := s.QueuePosition(id)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, QueuePositionResponse{ParticipantID: id, Position: pos})
}

// GET /events/{eventID}/presenters
func (h *Handler) PresentingSet(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	ok(w, http.StatusOK, s.PresentingSet())
}

// POST /events/{eventID}/presenters/{participantID}/approve
func (h *Handler) ApprovePresenter(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	set, err := s.ApprovePresenter(r.Context(), caller(r), participantParam(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, set)
}

// POST /events/{eventID}/presenters/{participantID}/deny
func (h *Handler) DenyPresenter(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	entry, err := s.DenyPresenter(r.Context(), caller(r), participantParam(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, entry)
}

// DELETE /events/{eventID}/presenters/{participantID}
func (h *Handler) StopPresenting(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	set, err := s.StopPresenting(r.Context(), caller(r), participantParam(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, set)
}

// POST /events/{eventID}/screen-share
func (h *Handler) RequestScreenShare(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	set, err := s.RequestScreenShare(r.Context(), caller(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, set)
}

// DELETE /events/{eventID}/screen-share/{participantID}
func (h *Handler) StopScreenShare(w http.ResponseWriter, r *http.Request) {
	s, found := h.session(w, r)
	if !found {
		return
	}
	set, err := s.StopScreenShare(r.Context(), caller(r), participantParam(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, set)
}
