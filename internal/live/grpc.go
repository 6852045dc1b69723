package live

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

var _ Provider = (*GRPCProvider)(nil)

// Service and method names of the market-data gRPC service. Requests are a
// google.protobuf.Struct ({"symbol": ...}); responses a google.protobuf.ListValue
// of {date, close} structs.
const (
	ServiceName   = "algotemplate.live.v1.MarketData"
	DefaultMethod = "/" + ServiceName + "/Latest"
)

// GRPCProvider issues one unary call per poll.
type GRPCProvider struct {
	conn   grpc.ClientConnInterface
	closer func() error
	method string
	symbol string
}

// DialGRPC connects to target with insecure transport credentials. Extra
// dial options are appended.
func DialGRPC(target, method, symbol string, opts ...grpc.DialOption) (*GRPCProvider, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", target, err)
	}
	p := NewGRPCProvider(conn, method, symbol)
	p.closer = conn.Close
	return p, nil
}

// NewGRPCProvider wraps an existing connection. An empty method selects
// DefaultMethod.
func NewGRPCProvider(conn grpc.ClientConnInterface, method, symbol string) *GRPCProvider {
	if method == "" {
		method = DefaultMethod
	}
	return &GRPCProvider{conn: conn, method: method, symbol: symbol}
}

// Latest performs one unary call.
func (p *GRPCProvider) Latest(ctx context.Context) ([]Point, error) {
	req, err := structpb.NewStruct(map[string]any{"symbol": p.symbol})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	resp := &structpb.ListValue{}
	if err := p.conn.Invoke(ctx, p.method, req, resp); err != nil {
		return nil, fmt.Errorf("calling %s: %w", p.method, err)
	}
	points, err := pointsFromList(resp)
	if err != nil {
		return nil, err
	}
	return points, validatePoints(points)
}

// Close releases the connection when the provider dialed it.
func (p *GRPCProvider) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

func pointsFromList(list *structpb.ListValue) ([]Point, error) {
	points := make([]Point, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("%w: element %d is not a struct", ErrUnsupportedPayload, i)
		}
		date, ok := s.GetFields()["date"]
		if !ok {
			return nil, fmt.Errorf("%w: element %d has no date", ErrUnsupportedPayload, i)
		}
		closeVal, ok := s.GetFields()["close"]
		if !ok {
			return nil, fmt.Errorf("%w: element %d has no close", ErrUnsupportedPayload, i)
		}
		points = append(points, Point{Date: date.GetStringValue(), Close: closeVal.GetNumberValue()})
	}
	return points, nil
}

func pointsToList(points []Point) (*structpb.ListValue, error) {
	values := make([]any, len(points))
	for i, p := range points {
		values[i] = map[string]any{"date": p.Date, "close": p.Close}
	}
	return structpb.NewList(values)
}
