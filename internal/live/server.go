package live

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// MarketDataServer is the server API of the market-data service.
type MarketDataServer interface {
	Latest(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error)
}

var _ MarketDataServer = (*Server)(nil)

// Server exposes a Provider as the market-data gRPC service.
type Server struct {
	source Provider
	log    *slog.Logger
}

// NewServer creates a server relaying source.
func NewServer(source Provider, log *slog.Logger) *Server {
	return &Server{source: source, log: log}
}

// RegisterGRPC registers the server on the given gRPC server instance.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// Latest answers one poll with the source's current points.
func (s *Server) Latest(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	points, err := s.source.Latest(ctx)
	if err != nil {
		s.log.Warn("source poll failed", "error", err)
		return nil, status.Errorf(codes.Unavailable, "source: %v", err)
	}
	s.log.Debug("served points", "symbol", req.GetFields()["symbol"].GetStringValue(), "count", len(points))
	return pointsToList(points)
}

func latestHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MarketDataServer).Latest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DefaultMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MarketDataServer).Latest(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MarketDataServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Latest", Handler: latestHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "live.proto",
}
