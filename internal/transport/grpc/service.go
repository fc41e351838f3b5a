package grpcx

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the full gRPC service name. Requests and responses are
// google.protobuf.Struct, so clients need no generated stubs.
const ServiceName = "breakout.v1.BreakoutService"

const watchEventsStream = "WatchEvents"

// BreakoutServer marks implementations accepted by Register.
type BreakoutServer interface {
	isBreakoutServer()
}

// FullMethod returns "/breakout.v1.BreakoutService/<name>".
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// ServiceDesc describes the service for grpc.Server.RegisterService and for
// clients calling through grpc.ClientConn.Invoke / NewStream.
var ServiceDesc = buildServiceDesc()

func buildServiceDesc() grpc.ServiceDesc {
	desc := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*BreakoutServer)(nil),
		Streams: []grpc.StreamDesc{{
			StreamName:    watchEventsStream,
			Handler:       watchEventsHandler,
			ServerStreams: true,
		}},
		Metadata: "breakout/v1/breakout.proto",
	}
	for _, m := range methods {
		desc.Methods = append(desc.Methods, unaryDesc(m))
	}
	return desc
}

func unaryDesc(m method) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: m.name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Server)
			if interceptor == nil {
				return s.invoke(ctx, m, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(m.name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return s.invoke(ctx, m, req.(*structpb.Struct))
			})
		},
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(*Server).watchEvents(in, stream)
}

func Register(grpcServer *grpc.Server, s *Server) {
	grpcServer.RegisterService(&ServiceDesc, s)
}
