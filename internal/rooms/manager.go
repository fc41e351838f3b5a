// Package rooms owns breakout rooms, their status machine and countdowns.
//
//	Created --start--> Active --end/timeout--> Ending --finalize--> Merged
//	Created --cancel--> Closed
//	Active  --forceClose--> Closed
//
// All membership changes go through Manager so that every participant is
// either in the unassigned pool or in exactly one room. A Manager is not safe
// for concurrent use; the owning session serialises access.
package rooms

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/cwrk-planet/breakout-service/internal/assign"
	"github.com/cwrk-planet/breakout-service/internal/domain"
	"github.com/cwrk-planet/breakout-service/internal/registry"

	"github.com/google/uuid"
)

// Upper bounds for client-supplied sizes.
const (
	MaxRoomCount       = 100
	MaxDurationSeconds = 24 * 60 * 60
)

type Config struct {
	DefaultCapacity        int
	DefaultDurationSeconds int
	DefaultFeatures        domain.Features
	ExtendStepSeconds      int
	// WarningSeconds are remaining-time thresholds that raise a one-shot warning.
	WarningSeconds []int
}

func DefaultConfig() Config {
	return Config{
		DefaultCapacity:        20,
		DefaultDurationSeconds: 30 * 60,
		DefaultFeatures:        domain.DefaultFeatures(),
		ExtendStepSeconds:      5 * 60,
		WarningSeconds:         []int{300, 60},
	}
}

type Manager struct {
	cfg   Config
	reg   *registry.Registry
	rooms map[domain.RoomID]*roomState
	order []domain.RoomID

	newID func() domain.RoomID
	now   func() time.Time
}

type roomState struct {
	room domain.Room

	entered   map[domain.ParticipantID]time.Time
	seen      map[domain.ParticipantID]struct{}
	stayTotal time.Duration
	stayCount int
	warned    map[int]bool
}

func NewManager(cfg Config, reg *registry.Registry) *Manager {
	return &Manager{
		cfg:   cfg,
		reg:   reg,
		rooms: make(map[domain.RoomID]*roomState),
		newID: func() domain.RoomID { return domain.RoomID(uuid.NewString()) },
		now:   time.Now,
	}
}

// SetClock replaces the wall clock used for timestamps and stay analytics.
func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

type CreateParams struct {
	Count           int
	DurationSeconds int
	NamePrefix      string
	Strategy        domain.Strategy
	Capacity        int
	Features        *domain.Features
}

// Closure reports a room leaving the open states and who went back to the pool.
type Closure struct {
	Room     domain.Room
	Returned []domain.ParticipantID
}

// Create makes Count rooms in Created and, unless the strategy is manual,
// assigns the whole unassigned pool to them.
func (m *Manager) Create(p CreateParams) ([]domain.Room, error) {
	if p.Count <= 0 {
		return nil, fmt.Errorf("%w: room count must be positive, got %d", domain.ErrInvalidConfiguration, p.Count)
	}
	if p.Count > MaxRoomCount {
		return nil, fmt.Errorf("%w: at most %d rooms, got %d", domain.ErrInvalidConfiguration, MaxRoomCount, p.Count)
	}
	if p.DurationSeconds < 0 || p.Capacity < 0 {
		return nil, fmt.Errorf("%w: duration and capacity must not be negative", domain.ErrInvalidConfiguration)
	}
	if p.DurationSeconds > MaxDurationSeconds {
		return nil, fmt.Errorf("%w: duration is capped at %d seconds, got %d", domain.ErrInvalidConfiguration, MaxDurationSeconds, p.DurationSeconds)
	}
	for _, id := range m.order {
		if st := m.rooms[id].room.Status; !st.Finished() {
			return nil, fmt.Errorf("%w: room %s is still %s", domain.ErrInvalidTransition, id, st)
		}
	}

	duration := p.DurationSeconds
	if duration == 0 {
		duration = m.cfg.DefaultDurationSeconds
	}
	capacity := p.Capacity
	if capacity == 0 {
		capacity = m.cfg.DefaultCapacity
	}
	features := m.cfg.DefaultFeatures
	if p.Features != nil {
		features = *p.Features
	}
	strategy := p.Strategy
	if strategy == "" {
		strategy = domain.StrategyBalanced
	}
	prefix := strings.TrimSpace(p.NamePrefix)
	if prefix == "" {
		prefix = "Breakout Room"
	}

	now := m.now()
	created := make([]*roomState, 0, p.Count)
	ids := make([]domain.RoomID, 0, p.Count)
	for i := 0; i < p.Count; i++ {
		st := &roomState{
			room: domain.Room{
				ID:               m.newID(),
				Name:             fmt.Sprintf("%s %d", prefix, i+1),
				Status:           domain.RoomCreated,
				Capacity:         capacity,
				DurationSeconds:  duration,
				RemainingSeconds: duration,
				MemberIDs:        []domain.ParticipantID{},
				Features:         features,
				CreatedAt:        now,
			},
			entered: make(map[domain.ParticipantID]time.Time),
			seen:    make(map[domain.ParticipantID]struct{}),
			warned:  make(map[int]bool),
		}
		created = append(created, st)
		ids = append(ids, st.room.ID)
	}

	result, err := assign.Assign(assign.Request{
		Strategy:       strategy,
		RoomIDs:        ids,
		ParticipantIDs: m.reg.Unassigned(),
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Room, 0, len(created))
	for _, st := range created {
		m.rooms[st.room.ID] = st
		m.order = append(m.order, st.room.ID)
		for _, pid := range result[st.room.ID] {
			m.enter(st, pid)
		}
		out = append(out, st.room.Clone())
	}
	return out, nil
}

// StartAll moves every Created room to Active.
func (m *Manager) StartAll() ([]domain.Room, error) {
	var started []domain.Room
	now := m.now()
	for _, id := range m.order {
		st := m.rooms[id]
		if st.room.Status != domain.RoomCreated {
			continue
		}
		st.room.Status = domain.RoomActive
		st.room.RemainingSeconds = st.room.DurationSeconds
		t := now
		st.room.StartedAt = &t
		for _, pid := range st.room.MemberIDs {
			st.entered[pid] = now
		}
		started = append(started, st.room.Clone())
	}
	if len(started) == 0 {
		return nil, fmt.Errorf("%w: no created rooms to start", domain.ErrInvalidTransition)
	}
	return started, nil
}

// EndAll moves every Active room to Ending and cancels rooms that never started.
func (m *Manager) EndAll() (ending []domain.Room, cancelled []Closure, err error) {
	if !slices.ContainsFunc(m.order, func(id domain.RoomID) bool { return m.rooms[id].room.Status.Open() }) {
		return nil, nil, fmt.Errorf("%w: no open rooms to end", domain.ErrInvalidTransition)
	}
	for _, id := range m.order {
		st := m.rooms[id]
		switch st.room.Status {
		case domain.RoomActive:
			st.room.Status = domain.RoomEnding
			ending = append(ending, st.room.Clone())
		case domain.RoomCreated:
			cancelled = append(cancelled, m.close(st, domain.RoomClosed))
		}
	}
	return ending, cancelled, nil
}

type TickResult struct {
	Room domain.Room
	// Warning is the threshold crossed by this tick, 0 when none.
	Warning int
	Ending  bool
}

// Tick advances an Active room's countdown by one second. It reports false,
// with no other effect, when the room is unknown or not Active.
func (m *Manager) Tick(id domain.RoomID) (TickResult, bool) {
	st, ok := m.rooms[id]
	if !ok || st.room.Status != domain.RoomActive {
		return TickResult{}, false
	}
	if st.room.RemainingSeconds > 0 {
		st.room.RemainingSeconds--
	}

	var res TickResult
	for _, w := range m.cfg.WarningSeconds {
		if w > 0 && st.room.RemainingSeconds == w && !st.warned[w] {
			st.warned[w] = true
			res.Warning = w
		}
	}
	if st.room.RemainingSeconds == 0 {
		st.room.Status = domain.RoomEnding
		res.Ending = true
	}
	res.Room = st.room.Clone()
	return res, true
}

// Extend adds seconds to an Active room; zero means the configured step.
func (m *Manager) Extend(id domain.RoomID, seconds int) (domain.Room, int, error) {
	st, err := m.state(id)
	if err != nil {
		return domain.Room{}, 0, err
	}
	if seconds < 0 {
		return domain.Room{}, 0, fmt.Errorf("%w: cannot extend by %d seconds", domain.ErrInvalidConfiguration, seconds)
	}
	if seconds == 0 {
		seconds = m.cfg.ExtendStepSeconds
	}
	if seconds > MaxDurationSeconds-st.room.RemainingSeconds {
		return domain.Room{}, 0, fmt.Errorf("%w: remaining time is capped at %d seconds", domain.ErrInvalidConfiguration, MaxDurationSeconds)
	}
	if st.room.Status != domain.RoomActive {
		return domain.Room{}, 0, fmt.Errorf("%w: room %s is %s", domain.ErrInvalidTransition, id, st.room.Status)
	}
	st.room.RemainingSeconds += seconds
	for w := range st.warned {
		if w < st.room.RemainingSeconds {
			delete(st.warned, w)
		}
	}
	return st.room.Clone(), seconds, nil
}

// Finalize merges an Ending room back into the main session.
func (m *Manager) Finalize(id domain.RoomID) (Closure, error) {
	st, err := m.state(id)
	if err != nil {
		return Closure{}, err
	}
	if st.room.Status != domain.RoomEnding {
		return Closure{}, fmt.Errorf("%w: room %s is %s", domain.ErrInvalidTransition, id, st.room.Status)
	}
	return m.close(st, domain.RoomMerged), nil
}

// Cancel closes a room that was never started.
func (m *Manager) Cancel(id domain.RoomID) (Closure, error) {
	st, err := m.state(id)
	if err != nil {
		return Closure{}, err
	}
	if st.room.Status != domain.RoomCreated {
		return Closure{}, fmt.Errorf("%w: room %s is %s", domain.ErrInvalidTransition, id, st.room.Status)
	}
	return m.close(st, domain.RoomClosed), nil
}

// ForceClose closes an Active room without the Ending grace window.
func (m *Manager) ForceClose(id domain.RoomID) (Closure, error) {
	st, err := m.state(id)
	if err != nil {
		return Closure{}, err
	}
	if st.room.Status != domain.RoomActive {
		return Closure{}, fmt.Errorf("%w: room %s is %s", domain.ErrInvalidTransition, id, st.room.Status)
	}
	return m.close(st, domain.RoomClosed), nil
}

// Move relocates a participant. from must match where the participant is now;
// a stale drag gets ErrInvalidTransition. It reports false when from == to.
func (m *Manager) Move(pid domain.ParticipantID, from, to domain.RoomID) (bool, error) {
	loc, err := m.reg.Location(pid)
	if err != nil {
		return false, err
	}
	if loc != from {
		return false, fmt.Errorf("%w: participant %s is not in %s", domain.ErrInvalidTransition, pid, label(from))
	}
	if from == to {
		return false, nil
	}

	var src, dst *roomState
	if from != domain.Unassigned {
		src = m.rooms[from]
		if !src.room.Status.Open() {
			return false, fmt.Errorf("%w: room %s is %s", domain.ErrInvalidTransition, from, src.room.Status)
		}
	}
	if to != domain.Unassigned {
		if dst, err = m.state(to); err != nil {
			return false, err
		}
		if !dst.room.Status.Open() {
			return false, fmt.Errorf("%w: room %s is %s", domain.ErrInvalidTransition, to, dst.room.Status)
		}
		if dst.room.Capacity > 0 && len(dst.room.MemberIDs) >= dst.room.Capacity {
			return false, fmt.Errorf("room %s holds %d: %w", to, dst.room.Capacity, domain.ErrCapacityExceeded)
		}
	}

	if src != nil {
		m.leave(src, pid)
	}
	if dst != nil {
		m.enter(dst, pid)
	} else {
		_ = m.reg.Relocate(pid, domain.Unassigned)
	}
	return true, nil
}

// Evict drops a leaving participant from whatever room holds it, in any
// status, and returns that room. The registry entry is left to the caller.
func (m *Manager) Evict(pid domain.ParticipantID) domain.RoomID {
	loc, err := m.reg.Location(pid)
	if err != nil || loc == domain.Unassigned {
		return domain.Unassigned
	}
	if st, ok := m.rooms[loc]; ok {
		m.leave(st, pid)
	}
	return loc
}

// RecordMessage counts one chat message for an Active room.
func (m *Manager) RecordMessage(id domain.RoomID) (domain.Room, error) {
	st, err := m.state(id)
	if err != nil {
		return domain.Room{}, err
	}
	if st.room.Status != domain.RoomActive {
		return domain.Room{}, fmt.Errorf("%w: room %s is %s", domain.ErrInvalidTransition, id, st.room.Status)
	}
	if !st.room.Features.EnableChat {
		return domain.Room{}, fmt.Errorf("chat in room %s: %w", id, domain.ErrPermissionDenied)
	}
	st.room.Analytics.MessageCount++
	m.refresh(st)
	return st.room.Clone(), nil
}

func (m *Manager) Get(id domain.RoomID) (domain.Room, error) {
	st, err := m.state(id)
	if err != nil {
		return domain.Room{}, err
	}
	return st.room.Clone(), nil
}

// List returns rooms in creation order.
func (m *Manager) List() []domain.Room {
	out := make([]domain.Room, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.rooms[id].room.Clone())
	}
	return out
}

func (m *Manager) state(id domain.RoomID) (*roomState, error) {
	st, ok := m.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, domain.ErrNotFound)
	}
	return st, nil
}

func (m *Manager) enter(st *roomState, pid domain.ParticipantID) {
	st.room.MemberIDs = append(st.room.MemberIDs, pid)
	st.seen[pid] = struct{}{}
	if st.room.Status == domain.RoomActive {
		st.entered[pid] = m.now()
	}
	_ = m.reg.Relocate(pid, st.room.ID)
	m.refresh(st)
}

func (m *Manager) leave(st *roomState, pid domain.ParticipantID) {
	st.room.MemberIDs = slices.DeleteFunc(st.room.MemberIDs, func(p domain.ParticipantID) bool { return p == pid })
	if at, ok := st.entered[pid]; ok {
		st.stayTotal += m.now().Sub(at)
		st.stayCount++
		delete(st.entered, pid)
	}
	m.refresh(st)
}

// close returns every member to the pool, in room order, and sets the final status.
func (m *Manager) close(st *roomState, status domain.RoomStatus) Closure {
	returned := slices.Clone(st.room.MemberIDs)
	for _, pid := range returned {
		m.leave(st, pid)
		_ = m.reg.Relocate(pid, domain.Unassigned)
	}
	now := m.now()
	st.room.Status = status
	st.room.RemainingSeconds = 0
	st.room.EndedAt = &now
	return Closure{Room: st.room.Clone(), Returned: returned}
}

func (m *Manager) refresh(st *roomState) {
	if st.stayCount > 0 {
		st.room.Analytics.AvgStaySeconds = st.stayTotal.Seconds() / float64(st.stayCount)
	}
	if len(st.seen) > 0 {
		st.room.Analytics.EngagementScore = float64(st.room.Analytics.MessageCount) / float64(len(st.seen))
	}
}

func label(id domain.RoomID) string {
	if id == domain.Unassigned {
		return "the unassigned pool"
	}
	return "room " + string(id)
}

// CloneWith returns a deep copy bound to reg, which must be the matching
// clone of the registry this manager works on.
func (m *Manager) CloneWith(reg *registry.Registry) *Manager {
	out := &Manager{
		cfg:   m.cfg,
		reg:   reg,
		rooms: make(map[domain.RoomID]*roomState, len(m.rooms)),
		order: slices.Clone(m.order),
		newID: m.newID,
		now:   m.now,
	}
	for id, st := range m.rooms {
		out.rooms[id] = st.clone()
	}
	return out
}

func (st *roomState) clone() *roomState {
	return &roomState{
		room:      st.room.Clone(),
		entered:   maps.Clone(st.entered),
		seen:      maps.Clone(st.seen),
		stayTotal: st.stayTotal,
		stayCount: st.stayCount,
		warned:    maps.Clone(st.warned),
	}
}
