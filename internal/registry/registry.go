// Package registry holds the canonical participant set of one live session
// and where each participant currently is: the unassigned pool or a room.
//
// A Registry is not safe for concurrent use; the owning session serialises access.
package registry

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cwrk-planet/breakout-service/internal/domain"
)

type Registry struct {
	participants map[domain.ParticipantID]*domain.Participant
	location     map[domain.ParticipantID]domain.RoomID
	order        []domain.ParticipantID
	pool         []domain.ParticipantID

	now func() time.Time
}

func New() *Registry {
	return &Registry{
		participants: make(map[domain.ParticipantID]*domain.Participant),
		location:     make(map[domain.ParticipantID]domain.RoomID),
		now:          time.Now,
	}
}

// Join registers p in the unassigned pool.
func (r *Registry) Join(p domain.Participant) (domain.Participant, error) {
	p.ID = domain.ParticipantID(strings.TrimSpace(string(p.ID)))
	if p.ID == "" {
		return domain.Participant{}, fmt.Errorf("%w: participant id is required", domain.ErrInvalidConfiguration)
	}
	if p.Role == "" {
		p.Role = domain.RoleAttendee
	}
	if _, ok := domain.ParseRole(string(p.Role)); !ok {
		return domain.Participant{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidConfiguration, p.Role)
	}
	if _, ok := r.participants[p.ID]; ok {
		return domain.Participant{}, fmt.Errorf("participant %s: %w", p.ID, domain.ErrAlreadyJoined)
	}
	if strings.TrimSpace(p.DisplayName) == "" {
		p.DisplayName = string(p.ID)
	}
	p.ScreenSharing = false
	if p.JoinedAt.IsZero() {
		p.JoinedAt = r.now()
	}

	stored := p
	r.participants[p.ID] = &stored
	r.location[p.ID] = domain.Unassigned
	r.order = append(r.order, p.ID)
	r.pool = append(r.pool, p.ID)
	return stored, nil
}

func (r *Registry) Get(id domain.ParticipantID) (domain.Participant, error) {
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, fmt.Errorf("participant %s: %w", id, domain.ErrNotFound)
	}
	return *p, nil
}

func (r *Registry) Contains(id domain.ParticipantID) bool {
	_, ok := r.participants[id]
	return ok
}

func (r *Registry) Role(id domain.ParticipantID) (domain.Role, error) {
	p, err := r.Get(id)
	if err != nil {
		return "", err
	}
	return p.Role, nil
}

// Location returns the room the participant is in, or domain.Unassigned.
func (r *Registry) Location(id domain.ParticipantID) (domain.RoomID, error) {
	loc, ok := r.location[id]
	if !ok {
		return domain.Unassigned, fmt.Errorf("participant %s: %w", id, domain.ErrNotFound)
	}
	return loc, nil
}

func (r *Registry) SetMedia(id domain.ParticipantID, m domain.MediaState) (domain.Participant, error) {
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, fmt.Errorf("participant %s: %w", id, domain.ErrNotFound)
	}
	p.Media = m
	return *p, nil
}

func (r *Registry) SetScreenSharing(id domain.ParticipantID, on bool) {
	if p, ok := r.participants[id]; ok {
		p.ScreenSharing = on
	}
}

// Unassigned returns the pool in the order participants entered it.
func (r *Registry) Unassigned() []domain.ParticipantID {
	return slices.Clone(r.pool)
}

// List returns all participants in join order.
func (r *Registry) List() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.participants[id])
	}
	return out
}

func (r *Registry) Len() int { return len(r.participants) }

// Relocate records that id now lives in room to. Moving into the pool appends
// to its tail. Membership of the rooms themselves is kept by the rooms manager.
func (r *Registry) Relocate(id domain.ParticipantID, to domain.RoomID) error {
	from, ok := r.location[id]
	if !ok {
		return fmt.Errorf("participant %s: %w", id, domain.ErrNotFound)
	}
	if from == to {
		return nil
	}
	if from == domain.Unassigned {
		r.pool = slices.DeleteFunc(r.pool, func(p domain.ParticipantID) bool { return p == id })
	}
	if to == domain.Unassigned {
		r.pool = append(r.pool, id)
	}
	r.location[id] = to
	return nil
}

// Remove forgets the participant and returns where it was.
func (r *Registry) Remove(id domain.ParticipantID) (domain.Participant, domain.RoomID, error) {
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, domain.Unassigned, fmt.Errorf("participant %s: %w", id, domain.ErrNotFound)
	}
	loc := r.location[id]
	delete(r.participants, id)
	delete(r.location, id)
	r.order = slices.DeleteFunc(r.order, func(p domain.ParticipantID) bool { return p == id })
	r.pool = slices.DeleteFunc(r.pool, func(p domain.ParticipantID) bool { return p == id })
	return *p, loc, nil
}

// Clone returns a deep copy; the session keeps one to roll back a failed command.
func (r *Registry) Clone() *Registry {
	out := &Registry{
		participants: make(map[domain.ParticipantID]*domain.Participant, len(r.participants)),
		location:     make(map[domain.ParticipantID]domain.RoomID, len(r.location)),
		order:        slices.Clone(r.order),
		pool:         slices.Clone(r.pool),
		now:          r.now,
	}
	for id, p := range r.participants {
		cp := *p
		out.participants[id] = &cp
	}
	for id, loc := range r.location {
		out.location[id] = loc
	}
	return out
}
