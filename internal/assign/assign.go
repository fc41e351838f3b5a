// Package assign computes room -> participants mappings. It holds no state.
package assign

import (
	"fmt"
	"math/rand/v2"

	"github.com/cwrk-planet/breakout-service/internal/domain"
)

// Request is consumed once by Assign.
type Request struct {
	Strategy       domain.Strategy
	RoomIDs        []domain.RoomID
	ParticipantIDs []domain.ParticipantID
	// Manual is the caller supplied mapping, only read for domain.StrategyManual.
	Manual map[domain.RoomID][]domain.ParticipantID
}

// Result maps every requested room to its participants, in assignment order.
// Rooms that receive nobody map to an empty slice.
type Result map[domain.RoomID][]domain.ParticipantID

// Assign distributes participants over rooms. Room capacity is not checked here.
func Assign(req Request) (Result, error) {
	return assign(req, rand.Shuffle)
}

type shuffleFunc func(n int, swap func(i, j int))

func assign(req Request, shuffle shuffleFunc) (Result, error) {
	if len(req.RoomIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one room is required", domain.ErrInvalidConfiguration)
	}
	if err := checkUnique(req.RoomIDs, req.ParticipantIDs); err != nil {
		return nil, err
	}

	switch req.Strategy {
	case domain.StrategyManual:
		return manual(req)
	case domain.StrategyRandom:
		ids := append([]domain.ParticipantID(nil), req.ParticipantIDs...)
		shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		return roundRobin(req.RoomIDs, ids), nil
	case domain.StrategyBalanced:
		return balanced(req.RoomIDs, req.ParticipantIDs), nil
	case domain.StrategyRoundRobin:
		return roundRobin(req.RoomIDs, req.ParticipantIDs), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidConfiguration, req.Strategy)
	}
}

func newResult(rooms []domain.RoomID) Result {
	out := make(Result, len(rooms))
	for _, r := range rooms {
		out[r] = []domain.ParticipantID{}
	}
	return out
}

// roundRobin interleaves: participant i goes to room i % R.
func roundRobin(rooms []domain.RoomID, ids []domain.ParticipantID) Result {
	out := newResult(rooms)
	for i, id := range ids {
		r := rooms[i%len(rooms)]
		out[r] = append(out[r], id)
	}
	return out
}

// balanced fills rooms in contiguous blocks of floor(P/R), the first P mod R
// rooms taking one extra participant.
func balanced(rooms []domain.RoomID, ids []domain.ParticipantID) Result {
	out := newResult(rooms)
	per, extra := len(ids)/len(rooms), len(ids)%len(rooms)

	next := 0
	for i, r := range rooms {
		size := per
		if i < extra {
			size++
		}
		out[r] = append(out[r], ids[next:next+size]...)
		next += size
	}
	return out
}

func manual(req Request) (Result, error) {
	known := make(map[domain.ParticipantID]struct{}, len(req.ParticipantIDs))
	for _, id := range req.ParticipantIDs {
		known[id] = struct{}{}
	}
	out := newResult(req.RoomIDs)
	seen := make(map[domain.ParticipantID]domain.RoomID)

	for room, ids := range req.Manual {
		if _, ok := out[room]; !ok {
			return nil, fmt.Errorf("room %s: %w", room, domain.ErrNotFound)
		}
		for _, id := range ids {
			if _, ok := known[id]; !ok {
				return nil, fmt.Errorf("participant %s: %w", id, domain.ErrNotFound)
			}
			if prev, dup := seen[id]; dup {
				return nil, fmt.Errorf("%w: participant %s assigned to %s and %s",
					domain.ErrInvalidConfiguration, id, prev, room)
			}
			seen[id] = room
		}
	}
	// copy in room order so the result does not alias the caller's slices
	for _, room := range req.RoomIDs {
		out[room] = append(out[room], req.Manual[room]...)
	}
	return out, nil
}

func checkUnique(rooms []domain.RoomID, ids []domain.ParticipantID) error {
	rs := make(map[domain.RoomID]struct{}, len(rooms))
	for _, r := range rooms {
		if _, dup := rs[r]; dup {
			return fmt.Errorf("%w: room %s listed twice", domain.ErrInvalidConfiguration, r)
		}
		rs[r] = struct{}{}
	}
	ps := make(map[domain.ParticipantID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := ps[id]; dup {
			return fmt.Errorf("%w: participant %s listed twice", domain.ErrInvalidConfiguration, id)
		}
		ps[id] = struct{}{}
	}
	return nil
}
