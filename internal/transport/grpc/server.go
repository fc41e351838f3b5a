package grpcx

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cwrk-planet/breakout-service/internal/auth"
	"github.com/cwrk-planet/breakout-service/internal/domain"
	"github.com/cwrk-planet/breakout-service/internal/events"
	"github.com/cwrk-planet/breakout-service/internal/session"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	mdAuthorization = "authorization"
	mdUserID        = "x-user-id"
	mdUserRole      = "x-user-role"
	mdEventID       = "x-event-id"
)

const watchBuffer = 64

type Server struct {
	sessions *session.Manager
	verifier *auth.Verifier
	bus      *events.Bus
}

// NewServer; bus may be nil, then WatchEvents is Unimplemented.
func NewServer(sessions *session.Manager, verifier *auth.Verifier, bus *events.Bus) *Server {
	return &Server{sessions: sessions, verifier: verifier, bus: bus}
}

func (*Server) isBreakoutServer() {}

// call is what every method gets after metadata was checked.
type call struct {
	sess *session.Session
	me   auth.Identity
	req  *structpb.Struct
}

func (s *Server) invoke(ctx context.Context, m method, in *structpb.Struct) (*structpb.Struct, error) {
	me, eventID, err := s.identify(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	var sess *session.Session
	if m.open {
		sess, err = s.sessions.Open(eventID)
	} else {
		sess, err = s.sessions.Get(eventID)
	}
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := m.fn(ctx, call{sess: sess, me: me, req: in})
	if err != nil {
		return nil, toStatus(err)
	}
	resp, err := encode(out)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

func (s *Server) identify(ctx context.Context) (auth.Identity, string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return auth.Identity{}, "", status.Error(codes.Unauthenticated, "missing metadata")
	}
	id, err := s.verifier.Identify(first(md.Get(mdAuthorization)), first(md.Get(mdUserID)), first(md.Get(mdUserRole)))
	if err != nil {
		return auth.Identity{}, "", err
	}
	eventID := strings.TrimSpace(first(md.Get(mdEventID)))
	if eventID == "" {
		return auth.Identity{}, "", status.Error(codes.InvalidArgument, "missing x-event-id")
	}
	return id, eventID, nil
}

// watchEvents стримит события одной сессии, пока клиент не отключится.
func (s *Server) watchEvents(in *structpb.Struct, stream grpc.ServerStream) error {
	if s.bus == nil {
		return status.Error(codes.Unimplemented, "event stream is not configured")
	}
	ctx := stream.Context()
	me, eventID, err := s.identify(ctx)
	if err != nil {
		return toStatus(err)
	}
	sess, err := s.sessions.Get(eventID)
	if err != nil {
		return toStatus(err)
	}
	afterSeq := uint64(in.GetFields()["after_seq"].GetNumberValue())

	// шина держит для подписчика свою очередь, поэтому здесь можно ждать клиента,
	// а не терять события; quit отпускает доставку после выхода из стрима
	ch := make(chan domain.Event, watchBuffer)
	quit := make(chan struct{})
	cancel := s.bus.Subscribe("grpc-watch:"+string(me.ID), events.HandlerFunc(func(_ context.Context, ev domain.Event) {
		if ev.SessionID != sess.ID() || ev.Seq <= afterSeq {
			return
		}
		select {
		case ch <- ev:
		case <-quit:
		}
	}))
	defer cancel()
	defer close(quit)

	// сначала снапшот, чтобы клиент знал, с какого seq читать поток
	snap, err := encode(sess.Snapshot())
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	if err := stream.SendMsg(snap); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ch:
			msg, err := encodeEvent(ev)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

// -------- helpers --------

// encode wraps v as {"data": v}.
func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(map[string]any{"data": v})
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}

func encodeEvent(ev domain.Event) (*structpb.Struct, error) {
	out, err := encode(ev)
	if err != nil {
		return nil, err
	}
	at, err := protojson.Marshal(timestamppb.New(ev.At))
	if err != nil {
		return nil, fmt.Errorf("encode event time: %w", err)
	}
	out.Fields["at"] = structpb.NewStringValue(strings.Trim(string(at), `"`))
	return out, nil
}

// decode fills v from the request struct through its JSON form.
func decode(req *structpb.Struct, v any) error {
	b, err := protojson.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	return nil
}

func str(req *structpb.Struct, key string) string {
	return strings.TrimSpace(req.GetFields()[key].GetStringValue())
}

func first(ss []string) string {
	if len(ss) == 0 {
		return ""
	}

	return ss[0]
}
