// Package presenter keeps the presenter request queue, the set of
// participants currently presenting and the single screen-share owner.
//
// A Queue is not safe for concurrent use; the owning session serialises access.
package presenter

import (
	"fmt"
	"slices"

	"github.com/cwrk-planet/breakout-service/internal/domain"
)

type Queue struct {
	seq     uint64
	entries []domain.QueueEntry

	presenting []domain.ParticipantID
	sharer     domain.ParticipantID

	// maxPresenters caps the presenting set; 0 means no cap.
	maxPresenters int
}

func NewQueue(maxPresenters int) *Queue {
	return &Queue{maxPresenters: maxPresenters}
}

// Request appends a pending entry and returns it with its queue position.
func (q *Queue) Request(id domain.ParticipantID) (domain.QueueEntry, int, error) {
	if q.isPresenting(id) {
		return domain.QueueEntry{}, 0, fmt.Errorf("participant %s: %w", id, domain.ErrAlreadyPresenting)
	}
	if q.index(id) >= 0 {
		return domain.QueueEntry{}, 0, fmt.Errorf("participant %s: %w", id, domain.ErrAlreadyQueued)
	}
	q.seq++
	e := domain.QueueEntry{ParticipantID: id, RequestedAt: q.seq, Status: domain.QueuePending}
	q.entries = append(q.entries, e)
	pos, _ := q.Position(id)
	return e, pos, nil
}

// Withdraw drops the participant's own pending request.
func (q *Queue) Withdraw(id domain.ParticipantID) (domain.QueueEntry, error) {
	i := q.index(id)
	if i < 0 {
		return domain.QueueEntry{}, fmt.Errorf("presenter request of %s: %w", id, domain.ErrNotFound)
	}
	e := q.entries[i]
	q.entries = slices.Delete(q.entries, i, i+1)
	return e, nil
}

// Approve moves a pending request into the presenting set.
func (q *Queue) Approve(id domain.ParticipantID) (domain.QueueEntry, error) {
	i := q.index(id)
	if i < 0 {
		return domain.QueueEntry{}, fmt.Errorf("presenter request of %s: %w", id, domain.ErrNotFound)
	}
	if q.entries[i].Status != domain.QueuePending {
		return domain.QueueEntry{}, fmt.Errorf("%w: request of %s is %s", domain.ErrInvalidTransition, id, q.entries[i].Status)
	}
	if q.maxPresenters > 0 && len(q.presenting) >= q.maxPresenters {
		return domain.QueueEntry{}, fmt.Errorf("presenting set holds %d: %w", q.maxPresenters, domain.ErrCapacityExceeded)
	}
	e := q.entries[i]
	e.Status = domain.QueueApproved
	q.entries = slices.Delete(q.entries, i, i+1)
	q.presenting = append(q.presenting, id)
	return e, nil
}

// Deny removes a pending request. The returned entry is marked Denied and not kept.
func (q *Queue) Deny(id domain.ParticipantID) (domain.QueueEntry, error) {
	i := q.index(id)
	if i < 0 {
		return domain.QueueEntry{}, fmt.Errorf("presenter request of %s: %w", id, domain.ErrNotFound)
	}
	if q.entries[i].Status != domain.QueuePending {
		return domain.QueueEntry{}, fmt.Errorf("%w: request of %s is %s", domain.ErrInvalidTransition, id, q.entries[i].Status)
	}
	e := q.entries[i]
	e.Status = domain.QueueDenied
	q.entries = slices.Delete(q.entries, i, i+1)
	return e, nil
}

// StopPresenting removes id from the presenting set, releasing the screen
// share if it held it. releasedScreen reports whether that happened.
func (q *Queue) StopPresenting(id domain.ParticipantID) (releasedScreen bool, err error) {
	if !q.isPresenting(id) {
		return false, fmt.Errorf("participant %s: %w", id, domain.ErrNotPresenting)
	}
	q.presenting = slices.DeleteFunc(q.presenting, func(p domain.ParticipantID) bool { return p == id })
	if q.sharer == id {
		q.sharer = ""
		return true, nil
	}
	return false, nil
}

// RequestScreenShare grants the exclusive screen share. granted is false when
// id already owned it.
func (q *Queue) RequestScreenShare(id domain.ParticipantID) (granted bool, err error) {
	if !q.isPresenting(id) {
		return false, fmt.Errorf("participant %s: %w", id, domain.ErrNotPresenting)
	}
	switch q.sharer {
	case id:
		return false, nil
	case "":
		q.sharer = id
		return true, nil
	default:
		return false, fmt.Errorf("%w: held by %s", domain.ErrScreenShareInUse, q.sharer)
	}
}

func (q *Queue) StopScreenShare(id domain.ParticipantID) error {
	if q.sharer != id || id == "" {
		return fmt.Errorf("%w: participant %s is not sharing a screen", domain.ErrInvalidTransition, id)
	}
	q.sharer = ""
	return nil
}

type Removal struct {
	Entry          *domain.QueueEntry
	WasPresenting  bool
	ReleasedScreen bool
}

// Remove clears every trace of a leaving participant.
func (q *Queue) Remove(id domain.ParticipantID) Removal {
	var r Removal
	if e, err := q.Withdraw(id); err == nil {
		r.Entry = &e
	}
	if q.isPresenting(id) {
		r.WasPresenting = true
		r.ReleasedScreen, _ = q.StopPresenting(id)
	}
	return r
}

// Position is 1 + the number of pending entries requested before id's.
func (q *Queue) Position(id domain.ParticipantID) (int, error) {
	i := q.index(id)
	if i < 0 {
		return 0, fmt.Errorf("presenter request of %s: %w", id, domain.ErrNotFound)
	}
	mine := q.entries[i].RequestedAt
	pos := 1
	for _, e := range q.entries {
		if e.Status == domain.QueuePending && e.RequestedAt < mine {
			pos++
		}
	}
	return pos, nil
}

// Pending returns queued requests sorted by RequestedAt.
func (q *Queue) Pending() []domain.QueueEntry {
	return slices.Clone(q.entries)
}

func (q *Queue) Presenting() domain.PresentingSet {
	return domain.PresentingSet{
		ParticipantIDs: slices.Clone(q.presenting),
		ScreenSharerID: q.sharer,
	}
}

func (q *Queue) ScreenSharer() domain.ParticipantID { return q.sharer }

func (q *Queue) isPresenting(id domain.ParticipantID) bool {
	return slices.Contains(q.presenting, id)
}

func (q *Queue) index(id domain.ParticipantID) int {
	return slices.IndexFunc(q.entries, func(e domain.QueueEntry) bool { return e.ParticipantID == id })
}

func (q *Queue) Clone() *Queue {
	return &Queue{
		seq:           q.seq,
		entries:       slices.Clone(q.entries),
		presenting:    slices.Clone(q.presenting),
		sharer:        q.sharer,
		maxPresenters: q.maxPresenters,
	}
}
