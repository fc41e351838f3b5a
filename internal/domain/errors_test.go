package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindScreenShareInUse, KindOf(fmt.Errorf("%w: held by p1", ErrScreenShareInUse)))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("room r1: %w", ErrNotFound)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestParseStrategy(t *testing.T) {
	s, ok := ParseStrategy("Round-Robin")
	assert.True(t, ok)
	assert.Equal(t, StrategyRoundRobin, s)

	_, ok = ParseStrategy("weighted")
	assert.False(t, ok)
}

func TestRoleCanModerate(t *testing.T) {
	assert.True(t, RoleAdmin.CanModerate())
	assert.True(t, RoleModerator.CanModerate())
	assert.False(t, RoleAttendee.CanModerate())

	r, ok := ParseRole(" Moderator ")
	assert.True(t, ok)
	assert.Equal(t, RoleModerator, r)
}

func TestRoomCloneIsIndependent(t *testing.T) {
	r := Room{ID: "r1", MemberIDs: []ParticipantID{"a", "b"}}
	c := r.Clone()
	c.MemberIDs[0] = "z"

	assert.Equal(t, ParticipantID("a"), r.MemberIDs[0])
	assert.True(t, r.Has("b"))
	assert.False(t, r.Has("z"))
}
