package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/breakout-service/internal/auth"
	"github.com/cwrk-planet/breakout-service/internal/domain"
	"github.com/cwrk-planet/breakout-service/internal/events"
	"github.com/cwrk-planet/breakout-service/internal/session"
	"github.com/cwrk-planet/breakout-service/internal/signaling"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu   sync.Mutex
	sid  string
	pid  domain.ParticipantID
	msgs []Message
}

func (f *fakeConn) Send(m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m)
	return nil
}
func (f *fakeConn) Close() error                        { return nil }
func (f *fakeConn) SessionID() string                   { return f.sid }
func (f *fakeConn) ParticipantID() domain.ParticipantID { return f.pid }

func TestHub_RoutesByParticipant(t *testing.T) {
	h := NewHub()
	a1 := &fakeConn{sid: "s", pid: "a"}
	a2 := &fakeConn{sid: "s", pid: "a"}
	b := &fakeConn{sid: "s", pid: "b"}
	other := &fakeConn{sid: "t", pid: "a"}
	for _, c := range []Conn{a1, a2, b, other} {
		h.Add(c)
	}

	require.NoError(t, h.Notify(context.Background(), signaling.Directive{SessionID: "s", ParticipantID: "a", Action: signaling.ActionPublish}))
	assert.Len(t, a1.msgs, 1)
	assert.Len(t, a2.msgs, 1)
	assert.Empty(t, b.msgs)
	assert.Empty(t, other.msgs)

	h.HandleEvent(context.Background(), domain.Event{SessionID: "s", Type: domain.EventRoomStarted})
	assert.Len(t, b.msgs, 1)
	assert.Equal(t, TypeEvent, b.msgs[0].Type)

	assert.False(t, h.Remove(a1), "a still has a2")
	assert.True(t, h.Remove(a2))
	assert.True(t, h.Remove(b))
	assert.Equal(t, 0, h.SendTo("s", "b", Message{Type: TypeChat}))
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readUntil(t *testing.T, c *websocket.Conn, match func(envelope) bool) envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, c.SetReadDeadline(deadline))
		var m envelope
		require.NoError(t, c.ReadJSON(&m))
		if match(m) {
			return m
		}
	}
}

func TestServer_SelfServiceAndDisconnect(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	cfg := session.DefaultConfig()
	cfg.TickInterval = 0
	mgr := session.NewManager(cfg, bus, nil)
	defer mgr.Close()

	hub := NewHub()
	bus.Subscribe("ws", hub)
	bus.Subscribe("signaling", signaling.NewDispatcher(hub))

	r := chi.NewRouter()
	r.Get("/ws/events/{eventID}", NewServer(hub, mgr, auth.NewVerifier("", "")).HandleWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events/ev1?user_id=alice&display_name=Alice"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	state := readUntil(t, conn, func(m envelope) bool { return m.Type == TypeState })
	var st session.State
	require.NoError(t, json.Unmarshal(state.Payload, &st))
	require.Len(t, st.Participants, 1)
	assert.Equal(t, "Alice", st.Participants[0].DisplayName)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": CmdRequestPresenter, "request_id": "r1"}))
	res := readUntil(t, conn, func(m envelope) bool { return m.Type == TypeResult })
	var rp ResultPayload
	require.NoError(t, json.Unmarshal(res.Payload, &rp))
	assert.True(t, rp.OK)
	assert.Equal(t, "r1", rp.RequestID)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": CmdRequestScreenShare, "request_id": "r2"}))
	res = readUntil(t, conn, func(m envelope) bool { return m.Type == TypeResult })
	require.NoError(t, json.Unmarshal(res.Payload, &rp))
	assert.False(t, rp.OK)
	require.NotNil(t, rp.Error)
	assert.Equal(t, "not_presenting", rp.Error.Kind)

	s, err := mgr.Get("ev1")
	require.NoError(t, err)
	ctx := context.Background()
	_, err = s.Join(ctx, domain.Participant{ID: "mod", Role: domain.RoleModerator})
	require.NoError(t, err)
	_, err = s.ApprovePresenter(ctx, "mod", "alice")
	require.NoError(t, err)

	dir := readUntil(t, conn, func(m envelope) bool { return m.Type == TypeDirective })
	var d signaling.Directive
	require.NoError(t, json.Unmarshal(dir.Payload, &d))
	assert.Equal(t, signaling.ActionPublish, d.Action)
	assert.Equal(t, signaling.TrackMedia, d.Track)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		_, err := s.Participant("alice")
		return err != nil
	}, 3*time.Second, 10*time.Millisecond)
	assert.Empty(t, s.PresentingSet().ParticipantIDs)
}

func TestServer_RejectsAnonymous(t *testing.T) {
	mgr := session.NewManager(session.DefaultConfig(), nil, nil)
	defer mgr.Close()
	r := chi.NewRouter()
	r.Get("/ws/events/{eventID}", NewServer(NewHub(), mgr, auth.NewVerifier("", "")).HandleWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/events/ev1", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestServer_ReconnectKeepsParticipant(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	cfg := session.DefaultConfig()
	cfg.TickInterval = 0
	mgr := session.NewManager(cfg, bus, nil)
	defer mgr.Close()

	hub := NewHub()
	bus.Subscribe("ws", hub)

	r := chi.NewRouter()
	r.Get("/ws/events/{eventID}", NewServer(hub, mgr, auth.NewVerifier("", "")).HandleWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events/ev1?user_id=alice"
	old, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	readUntil(t, old, func(m envelope) bool { return m.Type == TypeState })

	// новое соединение открывается, пока старое закрывается
	for i := 0; i < 20; i++ {
		fresh, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		require.NoError(t, old.Close())
		readUntil(t, fresh, func(m envelope) bool { return m.Type == TypeState })
		old = fresh
	}

	require.Eventually(t, func() bool {
		return hub.Count("ev1", "alice") == 1
	}, 3*time.Second, 10*time.Millisecond)

	s, err := mgr.Get("ev1")
	require.NoError(t, err)
	_, err = s.Participant("alice")
	require.NoError(t, err, "alice still has an open connection")

	require.NoError(t, old.Close())
	require.Eventually(t, func() bool {
		_, err := s.Participant("alice")
		return err != nil
	}, 3*time.Second, 10*time.Millisecond)
}
