package grpcx

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/cwrk-planet/breakout-service/internal/auth"
	"github.com/cwrk-planet/breakout-service/internal/domain"
	"github.com/cwrk-planet/breakout-service/internal/events"
	"github.com/cwrk-planet/breakout-service/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type client struct {
	t    *testing.T
	conn *grpc.ClientConn
}

func startServer(t *testing.T) (*client, *session.Manager) {
	t.Helper()
	bus := events.NewBus()
	cfg := session.DefaultConfig()
	cfg.TickInterval = 0
	mgr := session.NewManager(cfg, bus, nil)

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	Register(gs, NewServer(mgr, auth.NewVerifier("", ""), bus))
	go func() { _ = gs.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		gs.Stop()
		mgr.Close()
		bus.Close()
	})
	return &client{t: t, conn: conn}, mgr
}

func as(user, role string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(),
		mdUserID, user, mdUserRole, role, mdEventID, "ev1")
}

func (c *client) call(ctx context.Context, name string, req map[string]any) (map[string]any, error) {
	c.t.Helper()
	in, err := structpb.NewStruct(req)
	require.NoError(c.t, err)
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(name), in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func TestGRPC_RoomsFlow(t *testing.T) {
	c, _ := startServer(t)

	_, err := c.call(as("mod", "moderator"), "Join", map[string]any{"display_name": "Host"})
	require.NoError(t, err)
	for _, u := range []string{"u1", "u2", "u3"} {
		_, err = c.call(as(u, ""), "Join", nil)
		require.NoError(t, err)
	}

	_, err = c.call(as("u1", ""), "Join", nil)
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	_, err = c.call(as("u1", ""), "CreateRooms", map[string]any{"count": 2, "duration_seconds": 60})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = c.call(as("mod", ""), "CreateRooms", map[string]any{"count": 0})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	out, err := c.call(as("mod", ""), "CreateRooms", map[string]any{"count": 2, "duration_seconds": 60, "strategy": "random"})
	require.NoError(t, err)
	assert.Len(t, out["data"], 2)

	out, err = c.call(as("mod", ""), "StartAll", nil)
	require.NoError(t, err)
	started := out["data"].([]any)
	require.Len(t, started, 2)
	roomID := started[0].(map[string]any)["id"].(string)

	_, err = c.call(as("mod", ""), "StartAll", nil)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	out, err = c.call(as("mod", ""), "ExtendRoom", map[string]any{"room_id": roomID, "seconds": 30})
	require.NoError(t, err)
	room := out["data"].(map[string]any)
	assert.EqualValues(t, 90, room["remaining_seconds"])

	out, err = c.call(as("mod", ""), "CloseRoom", map[string]any{"room_id": roomID})
	require.NoError(t, err)
	assert.Equal(t, string(domain.RoomClosed), out["data"].(map[string]any)["status"])

	_, err = c.call(as("mod", ""), "GetRoom", map[string]any{"room_id": "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPC_MetadataErrors(t *testing.T) {
	c, _ := startServer(t)

	ctx := metadata.AppendToOutgoingContext(context.Background(), mdEventID, "ev1")
	_, err := c.call(ctx, "GetState", nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx = metadata.AppendToOutgoingContext(context.Background(), mdUserID, "u1")
	_, err = c.call(ctx, "GetState", nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.call(as("u1", ""), "GetState", nil)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPC_WatchEvents(t *testing.T) {
	c, mgr := startServer(t)

	_, err := c.call(as("u1", ""), "Join", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(as("u1", ""), 5*time.Second)
	defer cancel()
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], FullMethod(watchEventsStream))
	require.NoError(t, err)
	in, err := structpb.NewStruct(map[string]any{})
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(in))
	require.NoError(t, stream.CloseSend())

	snap := new(structpb.Struct)
	require.NoError(t, stream.RecvMsg(snap))
	assert.Equal(t, "ev1", snap.AsMap()["data"].(map[string]any)["session_id"])

	// подписка регистрируется до отправки снапшота, событие не потеряется
	s, err := mgr.Get("ev1")
	require.NoError(t, err)
	_, _, err = s.RequestPresenter(context.Background(), "u1")
	require.NoError(t, err)

	ev := new(structpb.Struct)
	require.NoError(t, stream.RecvMsg(ev))
	data := ev.AsMap()["data"].(map[string]any)
	assert.Equal(t, string(domain.EventPresenterRequested), data["type"])
	assert.NotEmpty(t, ev.AsMap()["at"])
}

func TestGRPC_WatchEvents_BurstKeepsEveryEvent(t *testing.T) {
	c, mgr := startServer(t)

	_, err := c.call(as("u0", ""), "Join", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(as("u0", ""), 20*time.Second)
	defer cancel()
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], FullMethod(watchEventsStream))
	require.NoError(t, err)
	in, err := structpb.NewStruct(map[string]any{})
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(in))
	require.NoError(t, stream.CloseSend())

	snap := new(structpb.Struct)
	require.NoError(t, stream.RecvMsg(snap))
	lastSeq := uint64(snap.AsMap()["data"].(map[string]any)["seq"].(float64))

	s, err := mgr.Get("ev1")
	require.NoError(t, err)
	const burst = 2000
	for i := 0; i < burst; i++ {
		_, err := s.Join(context.Background(), domain.Participant{ID: domain.ParticipantID(fmt.Sprintf("b%d", i))})
		require.NoError(t, err)
	}

	// клиент читает медленнее, чем сессия коммитит: пропусков быть не должно
	for i := 0; i < burst; i++ {
		ev := new(structpb.Struct)
		require.NoError(t, stream.RecvMsg(ev))
		seq := uint64(ev.AsMap()["data"].(map[string]any)["seq"].(float64))
		require.Equal(t, lastSeq+1, seq)
		lastSeq = seq
	}
}
