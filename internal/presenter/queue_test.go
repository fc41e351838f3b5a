package presenter

import (
	"fmt"
	"testing"

	"github.com/cwrk-planet/breakout-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_OrdersByArrival(t *testing.T) {
	q := NewQueue(0)
	for i := 0; i < 5; i++ {
		id := domain.ParticipantID(fmt.Sprintf("p%d", i))
		e, pos, err := q.Request(id)
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), e.RequestedAt)
		assert.Equal(t, i+1, pos)
	}

	_, err := q.Deny("p1")
	require.NoError(t, err)
	_, err = q.Approve("p3")
	require.NoError(t, err)

	for want, id := range []domain.ParticipantID{"p0", "p2", "p4"} {
		pos, err := q.Position(id)
		require.NoError(t, err)
		assert.Equal(t, want+1, pos, string(id))
	}
	_, err = q.Position("p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequest_Duplicates(t *testing.T) {
	q := NewQueue(0)
	_, _, err := q.Request("a")
	require.NoError(t, err)

	_, _, err = q.Request("a")
	assert.ErrorIs(t, err, domain.ErrAlreadyQueued)

	_, err = q.Approve("a")
	require.NoError(t, err)
	_, _, err = q.Request("a")
	assert.ErrorIs(t, err, domain.ErrAlreadyPresenting)
}

func TestApproveDeny_Unknown(t *testing.T) {
	q := NewQueue(0)
	_, err := q.Approve("x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = q.Deny("x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeny_ReturnsDeniedEntryAndForgetsIt(t *testing.T) {
	q := NewQueue(0)
	_, _, _ = q.Request("a")

	e, err := q.Deny("a")
	require.NoError(t, err)
	assert.Equal(t, domain.QueueDenied, e.Status)
	assert.Empty(t, q.Pending())

	_, _, err = q.Request("a")
	assert.NoError(t, err, "denied participant may ask again")
}

func TestApprove_Cap(t *testing.T) {
	q := NewQueue(1)
	_, _, _ = q.Request("a")
	_, _, _ = q.Request("b")

	_, err := q.Approve("a")
	require.NoError(t, err)
	_, err = q.Approve("b")
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
	assert.Len(t, q.Pending(), 1, "rejected approval must leave the request queued")

	_, _ = q.StopPresenting("a")
	_, err = q.Approve("b")
	assert.NoError(t, err)
}

func TestScreenShareExclusive(t *testing.T) {
	q := NewQueue(0)
	for _, id := range []domain.ParticipantID{"a", "b"} {
		_, _, _ = q.Request(id)
		_, err := q.Approve(id)
		require.NoError(t, err)
	}

	_, err := q.RequestScreenShare("c")
	assert.ErrorIs(t, err, domain.ErrNotPresenting)

	granted, err := q.RequestScreenShare("a")
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = q.RequestScreenShare("a")
	require.NoError(t, err)
	assert.False(t, granted)

	_, err = q.RequestScreenShare("b")
	assert.ErrorIs(t, err, domain.ErrScreenShareInUse)

	assert.ErrorIs(t, q.StopScreenShare("b"), domain.ErrInvalidTransition)
	require.NoError(t, q.StopScreenShare("a"))

	granted, err = q.RequestScreenShare("b")
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, domain.ParticipantID("b"), q.Presenting().ScreenSharerID)
}

func TestStopPresenting_ReleasesScreen(t *testing.T) {
	q := NewQueue(0)
	_, _, _ = q.Request("a")
	_, _ = q.Approve("a")
	_, _ = q.RequestScreenShare("a")

	released, err := q.StopPresenting("a")
	require.NoError(t, err)
	assert.True(t, released)
	assert.Empty(t, q.Presenting().ParticipantIDs)
	assert.Empty(t, q.ScreenSharer())

	_, err = q.StopPresenting("a")
	assert.ErrorIs(t, err, domain.ErrNotPresenting)
}

func TestRemove(t *testing.T) {
	q := NewQueue(0)
	_, _, _ = q.Request("a")
	_, _ = q.Approve("a")
	_, _ = q.RequestScreenShare("a")
	_, _, _ = q.Request("b")

	r := q.Remove("a")
	assert.Nil(t, r.Entry)
	assert.True(t, r.WasPresenting)
	assert.True(t, r.ReleasedScreen)

	r = q.Remove("b")
	require.NotNil(t, r.Entry)
	assert.Equal(t, domain.ParticipantID("b"), r.Entry.ParticipantID)
	assert.False(t, r.WasPresenting)

	assert.Equal(t, Removal{}, q.Remove("nobody"))
}

func TestPresentingSetInvariant(t *testing.T) {
	q := NewQueue(0)
	_, _, _ = q.Request("a")
	_, _ = q.Approve("a")
	_, _ = q.RequestScreenShare("a")

	set := q.Presenting()
	assert.True(t, set.Has(set.ScreenSharerID))
}
