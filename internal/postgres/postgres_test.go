package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/breakout-service/internal/domain"

	"github.com/jackc/pgx/v5"
	pgconn "github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor(t *testing.T) {
	c, err := DecodeCursor("", "ev1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.Pos)

	s := Cursor{Session: "ev1", Pos: 42}.Encode()
	c, err = DecodeCursor(s, "ev1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), c.Pos)

	_, err = DecodeCursor(s, "ev2")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = DecodeCursor("%%%", "ev1")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestMapPgError(t *testing.T) {
	assert.ErrorIs(t, mapPgError(pgx.ErrNoRows), domain.ErrNotFound)
	assert.ErrorIs(t, mapPgError(&pgconn.PgError{Code: "23505"}), ErrDuplicate)

	other := errors.New("boom")
	assert.Equal(t, other, mapPgError(other))
}

type execCall struct {
	sql  string
	args []any
}

// fakeQuerier records Exec calls; reads are not used by these tests.
// With keyed set it behaves like INSERT ... ON CONFLICT DO NOTHING on args[0].
type fakeQuerier struct {
	mu    sync.Mutex
	calls []execCall
	err   error
	keyed map[any]bool
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, execCall{sql, args})
	if f.keyed != nil && len(args) > 0 {
		if f.keyed[args[0]] {
			return pgconn.NewCommandTag("INSERT 0 0"), f.err
		}
		f.keyed[args[0]] = true
	}
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeQuerier) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func (f *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func TestEventRepo_Append(t *testing.T) {
	q := &fakeQuerier{}
	ev := domain.Event{ID: "e-1", SessionID: "s", Seq: 3, Type: domain.EventRoomStarted, RoomID: "r1"}
	require.NoError(t, NewEventRepo(q).Append(context.Background(), ev))

	require.Len(t, q.calls, 1)
	args := q.calls[0].args
	assert.Equal(t, "e-1", args[0])
	assert.Equal(t, int64(3), args[2])
	assert.Equal(t, "room_started", args[3])

	var back domain.Event
	require.NoError(t, json.Unmarshal(args[5].([]byte), &back))
	assert.Equal(t, ev.RoomID, back.RoomID)

	q.err = &pgconn.PgError{Code: "23505"}
	assert.ErrorIs(t, NewEventRepo(q).Append(context.Background(), ev), ErrDuplicate)
}

func TestEventRepo_SameSeqDifferentEvents(t *testing.T) {
	q := &fakeQuerier{keyed: map[any]bool{}}
	repo := NewEventRepo(q)
	ctx := context.Background()

	// событие открыли заново: новый экземпляр сессии снова начинает с seq=1
	first := domain.Event{ID: "e-a", SessionID: "ev-1", Seq: 1, Type: domain.EventParticipantJoined, ParticipantID: "a"}
	second := domain.Event{ID: "e-b", SessionID: "ev-1", Seq: 1, Type: domain.EventParticipantJoined, ParticipantID: "b"}
	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, second))

	assert.ErrorIs(t, repo.Append(ctx, first), ErrDuplicate, "redelivery of the same event")
	assert.Contains(t, q.calls[0].sql, "ON CONFLICT (id) DO NOTHING")
}

func TestSchema_LogOrderedByPosition(t *testing.T) {
	assert.NotContains(t, schema, "UNIQUE (session_id, seq)")
	assert.Contains(t, schema, "pos         BIGSERIAL")
	assert.Contains(t, queryEventHistory, "ORDER BY pos")
}

type recordingAppender struct {
	repo *EventRepo
	errs []error
}

func (a *recordingAppender) Append(ctx context.Context, ev domain.Event) error {
	err := a.repo.Append(ctx, ev)
	a.errs = append(a.errs, err)
	return err
}

func TestRecorder_KeepsEventsSharingSeq(t *testing.T) {
	q := &fakeQuerier{keyed: map[any]bool{}}
	app := &recordingAppender{repo: NewEventRepo(q)}
	rec := newRecorder(app, NewRoomRepo(&fakeQuerier{}), nil)

	ctx := context.Background()
	rec.HandleEvent(ctx, domain.Event{ID: "e-a", SessionID: "ev-1", Seq: 1, Type: domain.EventParticipantJoined})
	rec.HandleEvent(ctx, domain.Event{ID: "e-b", SessionID: "ev-1", Seq: 1, Type: domain.EventParticipantJoined})

	require.Len(t, app.errs, 2)
	assert.NoError(t, app.errs[0])
	assert.NoError(t, app.errs[1], "a different event with the same seq must be stored")
	assert.Len(t, q.keyed, 2)
}

func TestMigrate(t *testing.T) {
	q := &fakeQuerier{}
	require.NoError(t, Migrate(context.Background(), q))
	require.Len(t, q.calls, 1)
	assert.Contains(t, q.calls[0].sql, "session_events")
	assert.Contains(t, q.calls[0].sql, "session_rooms")
}

func TestRecorder_PersistsEventAndRooms(t *testing.T) {
	evq, roomq := &fakeQuerier{err: &pgconn.PgError{Code: "23505"}}, &fakeQuerier{}
	rec := NewRecorder(NewEventRepo(evq), NewRoomRepo(roomq), nil)

	room := domain.Room{ID: "r1", Name: "Room 1", Status: domain.RoomActive}
	rec.HandleEvent(context.Background(), domain.Event{
		SessionID: "s",
		Seq:       1,
		Type:      domain.EventRoomsCreated,
		Rooms:     []domain.Room{{ID: "r0"}},
		Room:      &room,
	})

	assert.Len(t, evq.calls, 1)
	require.Len(t, roomq.calls, 2)
	assert.Equal(t, "r0", roomq.calls[0].args[1])
	assert.Equal(t, "r1", roomq.calls[1].args[1])
	assert.Equal(t, "active", roomq.calls[1].args[3])
	assert.JSONEq(t, `[]`, string(roomq.calls[0].args[7].([]byte)))
}

func TestTune(t *testing.T) {
	pc, err := pgxpool.ParseConfig("postgres://u:p@localhost:5432/breakout")
	require.NoError(t, err)

	tune(pc, Config{MaxConns: 7, MaxConnIdleTime: time.Minute, ApplicationName: "breakout-service"})
	assert.Equal(t, int32(7), pc.MaxConns)
	assert.Equal(t, time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, "breakout-service", pc.ConnConfig.RuntimeParams["application_name"])
}
