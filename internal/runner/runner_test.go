package runner

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"algotemplate/internal/config"
	"algotemplate/internal/domain"
	"algotemplate/internal/live"
	"algotemplate/internal/pricepath"
	"algotemplate/internal/store"
	"algotemplate/internal/util"
)

const flatCSV = `dt,sym,open,high,low,close,vol
2024-01-02,SIM,100,100,100,100,0
2024-01-03,SIM,100,100,100,100,0
2024-01-04,SIM,100,100,100,100,0
2024-01-05,SIM,100,100,100,100,0
`

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing csv: %v", err)
	}
	return path
}

func baseConfig(t *testing.T, mode string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Feed: config.FeedConfig{
			Mode:    mode,
			Source:  config.SourceCSV,
			CSVPath: writeCSV(t, flatCSV),
		},
		Run: config.RunConfig{AlgoName: "algo_test", Account: "42"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func opts() Options {
	return Options{Logger: util.DiscardLogger()}
}

func TestSimulatedFlatNoopRun(t *testing.T) {
	cfg := baseConfig(t, config.ModeSimulated)
	// Fri 2024-01-05 to Thu 2024-01-11 spans 4 business days: 5 bars.
	cfg.Feed.HorizonDate = "2024-01-11"

	o := opts()
	o.Source = pricepath.NewSource(1)
	r, err := Build(context.Background(), cfg, o)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer r.Close()

	var out bytes.Buffer
	rep, err := r.Execute(context.Background(), &out)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rep.TotalPnL != 0 || rep.TotalClosed != 0 || rep.StrikeRate != 0 {
		t.Errorf("report = %+v, want zero pnl, trades and strike rate", rep)
	}
	if rep.MaxDrawdownPct != 0 || rep.MaxDrawdownMoney != 0 {
		t.Errorf("drawdown = %v%%/%v, want 0", rep.MaxDrawdownPct, rep.MaxDrawdownMoney)
	}
	if rep.FinalValue != config.DefaultInitialCash {
		t.Errorf("FinalValue = %v, want %v", rep.FinalValue, config.DefaultInitialCash)
	}
	if !strings.Contains(out.String(), "Trade Analysis Results") {
		t.Errorf("output missing analysis table:\n%s", out.String())
	}
}

func TestReplayBuyAndHoldSubmits(t *testing.T) {
	var hits atomic.Int32
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		query = r.URL.RawQuery
	}))
	defer srv.Close()

	csv := writeCSV(t, "2024-01-02,SIM,10,10,10,10,0\n2024-01-03,SIM,12,12,12,12,0\n2024-01-04,SIM,11,11,11,11,0\n")
	cfg := baseConfig(t, config.ModeReplay)
	cfg.Feed.CSVPath = csv
	cfg.Broker.InitialCash = 100
	cfg.Run.Strategy = "buy-and-hold"
	cfg.Run.SubmitURL = srv.URL

	r, err := Build(context.Background(), cfg, opts())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rep, err := r.Execute(context.Background(), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// 10 shares @ 10, marked at 11.
	if rep.FinalValue != 110 || rep.TotalOpen != 1 || rep.TotalClosed != 0 {
		t.Errorf("report = %+v, want value 110 with one open trade", rep)
	}
	if rep.MaxDrawdownMoney != 10 {
		t.Errorf("MaxDrawdownMoney = %v, want 10", rep.MaxDrawdownMoney)
	}
	if hits.Load() != 1 {
		t.Errorf("submission hits = %d, want 1", hits.Load())
	}
	for _, want := range []string{"id=algo_test", "name=user%4042", "trades=0", "pnl=10"} {
		if !strings.Contains(query, want) {
			t.Errorf("submission query %q missing %q", query, want)
		}
	}
}

func TestReplayFromParquetAndSQLite(t *testing.T) {
	bars := []domain.Bar{
		domain.FlatBar("SIM", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 10),
		domain.FlatBar("SIM", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), 11),
		domain.FlatBar("SIM", time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), 12),
	}
	ctx := context.Background()
	dir := t.TempDir()

	if err := store.NewParquetStore(dir).WriteBars(ctx, bars); err != nil {
		t.Fatalf("parquet WriteBars: %v", err)
	}
	dbPath := filepath.Join(dir, "bars.db")
	sq, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := sq.WriteBars(ctx, bars); err != nil {
		t.Fatalf("sqlite WriteBars: %v", err)
	}
	sq.Close()

	for _, source := range []string{config.SourceParquet, config.SourceSQLite} {
		t.Run(source, func(t *testing.T) {
			cfg := baseConfig(t, config.ModeReplay)
			cfg.Feed.Source = source
			cfg.Feed.Symbol = "SIM"
			cfg.Feed.StartDate = "2024-01-03"
			cfg.Storage.DataDir = dir
			cfg.Storage.SQLitePath = dbPath

			r, err := Build(ctx, cfg, opts())
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			defer r.Close()
			rep, err := r.Execute(ctx, &bytes.Buffer{})
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if rep.FinalValue != config.DefaultInitialCash {
				t.Errorf("FinalValue = %v, want unchanged cash", rep.FinalValue)
			}
		})
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{"missing algo name", func(cfg *config.Config) { cfg.Run.AlgoName = "" }},
		{"unknown strategy", func(cfg *config.Config) { cfg.Run.Strategy = "martingale" }},
		{"bad strategy params", func(cfg *config.Config) {
			cfg.Run.Strategy = "sma-cross"
			cfg.Run.Params = map[string]any{"short_period": 30, "long_period": 10}
		}},
		{"missing csv", func(cfg *config.Config) { cfg.Feed.CSVPath = "/nonexistent/history.csv" }},
		{"short history", func(cfg *config.Config) {
			cfg.Feed.EndDate = "2024-01-02"
		}},
		{"horizon in the past", func(cfg *config.Config) { cfg.Feed.HorizonDate = "2023-12-01" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig(t, config.ModeSimulated)
			cfg.Feed.HorizonDate = "2024-02-01"
			tt.mutate(cfg)
			if _, err := Build(context.Background(), cfg, opts()); err == nil {
				t.Error("Build returned nil error")
			}
		})
	}
}

// flakyProvider fails twice, then serves a fixed point.
type flakyProvider struct{ calls atomic.Int32 }

func (p *flakyProvider) Latest(context.Context) ([]live.Point, error) {
	if p.calls.Add(1) <= 2 {
		return nil, errors.New("market data unavailable")
	}
	return []live.Point{{Date: "2024-01-05", Close: 100}}, nil
}

func TestLiveRunStopsOnCancel(t *testing.T) {
	cfg := baseConfig(t, config.ModeLive)
	cfg.Feed.Provider = config.ProviderHTTP
	cfg.Feed.Endpoint = "http://unused.invalid"
	cfg.Feed.Backoff = time.Millisecond
	cfg.Feed.PollInterval = 2 * time.Millisecond

	provider := &flakyProvider{}
	o := opts()
	o.Provider = provider
	r, err := Build(context.Background(), cfg, o)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for provider.calls.Load() < 6 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	rep, err := r.Execute(ctx, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rep.TotalPnL != 0 {
		t.Errorf("TotalPnL = %v, want 0", rep.TotalPnL)
	}
}
