package live

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"algotemplate/internal/domain"
	"algotemplate/internal/util"
)

func TestHTTPProviderLatest(t *testing.T) {
	var gotSymbol string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		gotSymbol = req["symbol"]
		w.Write([]byte(`[{"date":"2024-01-02","close":185.5},{"date":"2024-01-03","close":186}]`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "AAPL", time.Second)
	points, err := p.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if gotSymbol != "AAPL" {
		t.Errorf("request symbol = %q, want AAPL", gotSymbol)
	}
	if len(points) != 2 || points[1].Close != 186 || points[0].Date != "2024-01-02" {
		t.Errorf("points = %+v, unexpected", points)
	}
}

func TestHTTPProviderEmptyAndErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
		wantLen int
	}{
		{name: "empty array", status: 200, body: `[]`},
		{name: "null", status: 200, body: `null`},
		{name: "server error", status: 500, body: `boom`, wantErr: true},
		{name: "bad json", status: 200, body: `{"date":1}`, wantErr: true},
		{name: "zero close", status: 200, body: `[{"date":"2024-01-02","close":0}]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			points, err := NewHTTPProvider(srv.URL, "", time.Second).Latest(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Latest error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(points) != tt.wantLen {
				t.Errorf("len(points) = %d, want %d", len(points), tt.wantLen)
			}
		})
	}
}

func TestGRPCProviderOverBufconn(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	bars := []domain.Bar{
		domain.FlatBar("SIM", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 10),
		domain.FlatBar("SIM", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), 11),
	}
	NewServer(NewReplayProvider(bars), util.DiscardLogger()).RegisterGRPC(gs)
	go gs.Serve(lis)
	defer gs.Stop()

	p, err := DialGRPC("passthrough:///bufnet", "", "SIM",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("DialGRPC: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := p.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest (1): %v", err)
	}
	if len(first) != 1 || first[0].Close != 10 || first[0].Date != "2024-01-02" {
		t.Errorf("first poll = %+v, want one point at 10", first)
	}

	second, err := p.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest (2): %v", err)
	}
	if len(second) != 2 || second[1].Close != 11 {
		t.Errorf("second poll = %+v, want two points ending at 11", second)
	}
}

type failingProvider struct{}

func (failingProvider) Latest(context.Context) ([]Point, error) {
	return nil, errors.New("upstream down")
}

func TestGRPCServerSourceError(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	NewServer(failingProvider{}, util.DiscardLogger()).RegisterGRPC(gs)
	go gs.Serve(lis)
	defer gs.Stop()

	p, err := DialGRPC("passthrough:///bufnet", DefaultMethod, "SIM",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("DialGRPC: %v", err)
	}
	defer p.Close()

	if _, err := p.Latest(context.Background()); err == nil {
		t.Error("Latest returned nil error for failing source")
	}
}

type stubBars struct {
	req  marketdata.GetBarsRequest
	bars []marketdata.Bar
	err  error
}

func (s *stubBars) GetBars(_ string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	s.req = req
	return s.bars, s.err
}

func TestAlpacaProviderLatest(t *testing.T) {
	now := time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)
	stub := &stubBars{bars: []marketdata.Bar{
		{Timestamp: time.Date(2024, 1, 8, 5, 0, 0, 0, time.UTC), Close: 100},
		{Timestamp: time.Date(2024, 1, 9, 5, 0, 0, 0, time.UTC), Close: 101},
	}}
	p := newAlpacaProvider(stub, "aapl", "")
	p.now = func() time.Time { return now }

	points, err := p.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(points) != 2 || points[1].Date != "2024-01-09" || points[1].Close != 101 {
		t.Errorf("points = %+v, unexpected", points)
	}
	if stub.req.TimeFrame != marketdata.OneDay || !stub.req.End.Equal(now) {
		t.Errorf("request = %+v, want daily bars ending now", stub.req)
	}

	stub.err = errors.New("rate limited")
	if _, err := p.Latest(context.Background()); err == nil {
		t.Error("Latest returned nil error when client failed")
	}
}

func TestReplayProviderReveals(t *testing.T) {
	bars := []domain.Bar{
		domain.FlatBar("SIM", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 10),
		domain.FlatBar("SIM", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), 11),
	}
	p := NewReplayProvider(bars)
	for i, want := range []int{1, 2, 2} {
		points, _ := p.Latest(context.Background())
		if len(points) != want {
			t.Errorf("poll %d returned %d points, want %d", i, len(points), want)
		}
	}
}
