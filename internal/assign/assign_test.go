package assign

import (
	"fmt"
	"slices"
	"testing"

	"github.com/cwrk-planet/breakout-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func participants(n int) []domain.ParticipantID {
	out := make([]domain.ParticipantID, n)
	for i := range out {
		out[i] = domain.ParticipantID(fmt.Sprintf("p%d", i))
	}
	return out
}

var abc = []domain.RoomID{"rA", "rB", "rC"}

func TestBalanced_RemainderGoesToEarlierRooms(t *testing.T) {
	req := Request{Strategy: domain.StrategyBalanced, RoomIDs: abc, ParticipantIDs: participants(10)}

	got, err := Assign(req)
	require.NoError(t, err)
	assert.Equal(t, []domain.ParticipantID{"p0", "p1", "p2", "p3"}, got["rA"])
	assert.Equal(t, []domain.ParticipantID{"p4", "p5", "p6"}, got["rB"])
	assert.Equal(t, []domain.ParticipantID{"p7", "p8", "p9"}, got["rC"])

	again, err := Assign(req)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestRoundRobinDiffersFromBalanced(t *testing.T) {
	ids := participants(7)

	rr, err := Assign(Request{Strategy: domain.StrategyRoundRobin, RoomIDs: abc, ParticipantIDs: ids})
	require.NoError(t, err)
	bal, err := Assign(Request{Strategy: domain.StrategyBalanced, RoomIDs: abc, ParticipantIDs: ids})
	require.NoError(t, err)

	assert.Equal(t, []domain.ParticipantID{"p0", "p3", "p6"}, rr["rA"])
	assert.Equal(t, []domain.ParticipantID{"p1", "p4"}, rr["rB"])
	assert.Equal(t, []domain.ParticipantID{"p2", "p5"}, rr["rC"])

	assert.Equal(t, []domain.ParticipantID{"p0", "p1", "p2"}, bal["rA"])
	assert.Equal(t, []domain.ParticipantID{"p3", "p4"}, bal["rB"])
	assert.Equal(t, []domain.ParticipantID{"p5", "p6"}, bal["rC"])

	assert.NotEqual(t, rr, bal)
}

func TestRandom_IsAPartition(t *testing.T) {
	ids := participants(11)
	got, err := Assign(Request{Strategy: domain.StrategyRandom, RoomIDs: abc, ParticipantIDs: ids})
	require.NoError(t, err)

	var all []domain.ParticipantID
	for _, r := range abc {
		n := len(got[r])
		assert.True(t, n == 3 || n == 4, "room %s has %d", r, n)
		all = append(all, got[r]...)
	}
	slices.Sort(all)
	want := slices.Clone(ids)
	slices.Sort(want)
	assert.Equal(t, want, all)
}

func TestRandom_ShufflesBeforeRoundRobin(t *testing.T) {
	reverse := func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}
	got, err := assign(Request{
		Strategy:       domain.StrategyRandom,
		RoomIDs:        []domain.RoomID{"r1", "r2"},
		ParticipantIDs: participants(4),
	}, reverse)
	require.NoError(t, err)
	assert.Equal(t, []domain.ParticipantID{"p3", "p1"}, got["r1"])
	assert.Equal(t, []domain.ParticipantID{"p2", "p0"}, got["r2"])
}

func TestZeroRooms(t *testing.T) {
	for _, s := range []domain.Strategy{domain.StrategyManual, domain.StrategyRandom, domain.StrategyBalanced, domain.StrategyRoundRobin} {
		_, err := Assign(Request{Strategy: s, ParticipantIDs: participants(3)})
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration, string(s))
	}
}

func TestUnknownStrategy(t *testing.T) {
	_, err := Assign(Request{Strategy: "weighted", RoomIDs: abc})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestMoreParticipantsThanRooms_NoParticipantsIsFine(t *testing.T) {
	got, err := Assign(Request{Strategy: domain.StrategyBalanced, RoomIDs: abc})
	require.NoError(t, err)
	for _, r := range abc {
		assert.Empty(t, got[r])
	}
}

func TestManual(t *testing.T) {
	ids := participants(3)

	got, err := Assign(Request{
		Strategy:       domain.StrategyManual,
		RoomIDs:        abc,
		ParticipantIDs: ids,
		Manual:         map[domain.RoomID][]domain.ParticipantID{"rB": {"p2", "p0"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.ParticipantID{"p2", "p0"}, got["rB"])
	assert.Empty(t, got["rA"])
	assert.Empty(t, got["rC"])

	_, err = Assign(Request{
		Strategy: domain.StrategyManual, RoomIDs: abc, ParticipantIDs: ids,
		Manual: map[domain.RoomID][]domain.ParticipantID{"rZ": {"p0"}},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = Assign(Request{
		Strategy: domain.StrategyManual, RoomIDs: abc, ParticipantIDs: ids,
		Manual: map[domain.RoomID][]domain.ParticipantID{"rA": {"p9"}},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = Assign(Request{
		Strategy: domain.StrategyManual, RoomIDs: abc, ParticipantIDs: ids,
		Manual: map[domain.RoomID][]domain.ParticipantID{"rA": {"p1"}, "rB": {"p1"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestDuplicateInputs(t *testing.T) {
	_, err := Assign(Request{Strategy: domain.StrategyBalanced, RoomIDs: []domain.RoomID{"r", "r"}})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = Assign(Request{Strategy: domain.StrategyBalanced, RoomIDs: abc, ParticipantIDs: []domain.ParticipantID{"a", "a"}})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}
