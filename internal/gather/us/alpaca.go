package us

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"algotemplate/internal/domain"
	"algotemplate/internal/gather"
	"algotemplate/internal/store"
	"algotemplate/internal/util"
)

// ---------------------------------------------------------------------------
// Compile-time interface checks
// ---------------------------------------------------------------------------

var _ gather.Gatherer = (*DailyBarGatherer)(nil)

// multiBarsClient is the subset of *marketdata.Client used for history.
type multiBarsClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// DailyBarConfig parameterises a DailyBarGatherer.
type DailyBarConfig struct {
	APIKey    string
	APISecret string
	DataURL   string // market-data API; empty uses the SDK default
	BaseURL   string // trading API, for the calendar
	Feed      string // "sip" or "iex"

	Symbols     []string
	Start       time.Time
	End         time.Time // zero: latest finished trading day
	BatchSize   int       // symbols per API call
	MaxWorkers  int       // concurrent batches
	ProgressDir string    // empty disables resume
}

// DailyBarGatherer downloads daily OHLCV bars for a list of US symbols from
// the Alpaca market-data API into a BarStore, for later replay or GBM
// calibration. Batches are fetched concurrently and retried with backoff.
type DailyBarGatherer struct {
	client    multiBarsClient
	calendar  calendarClient
	store     store.BarStore
	cfg       DailyBarConfig
	now       func() time.Time
	retryBase time.Duration
	writeMu   sync.Mutex
	log       *slog.Logger
}

// NewDailyBarGatherer creates a DailyBarGatherer writing to s.
func NewDailyBarGatherer(cfg DailyBarConfig, s store.BarStore) *DailyBarGatherer {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	return newDailyBarGatherer(cfg, s, marketdata.NewClient(opts),
		NewCalendarClient(cfg.APIKey, cfg.APISecret, cfg.BaseURL))
}

func newDailyBarGatherer(cfg DailyBarConfig, s store.BarStore, client multiBarsClient, cal calendarClient) *DailyBarGatherer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.Feed == "" {
		cfg.Feed = "iex"
	}
	symbols := make([]string, 0, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
			symbols = append(symbols, sym)
		}
	}
	cfg.Symbols = symbols
	return &DailyBarGatherer{
		client:    client,
		calendar:  cal,
		store:     s,
		cfg:       cfg,
		now:       time.Now,
		retryBase: time.Second,
		log:       slog.Default().With("gatherer", "us-daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "us-daily" }

// Run fetches bars for every configured symbol from its resume point (or the
// configured start) through the end date. Symbols already fetched through
// the end date are skipped.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	if len(g.cfg.Symbols) == 0 {
		return errors.New("no symbols to fetch")
	}

	end := g.cfg.End
	if end.IsZero() {
		var err error
		end, err = LatestFinishedTradingDay(g.calendar, g.now())
		if err != nil {
			return fmt.Errorf("determining end date: %w", err)
		}
	}
	endStr := end.Format("2006-01-02")

	var tracker *progressTracker
	if g.cfg.ProgressDir != "" {
		var err error
		if tracker, err = newProgressTracker(g.cfg.ProgressDir); err != nil {
			return err
		}
	}

	// Group symbols by start date so every batch shares one request window.
	groups := make(map[time.Time][]string)
	for _, sym := range g.cfg.Symbols {
		start := g.cfg.Start
		if tracker != nil {
			if last := tracker.LastFetched(sym); last >= endStr {
				continue
			} else if last != "" {
				if t, err := time.Parse("2006-01-02", last); err == nil && t.AddDate(0, 0, 1).After(start) {
					start = t.AddDate(0, 0, 1)
				}
			}
		}
		groups[start] = append(groups[start], sym)
	}

	type batch struct {
		start   time.Time
		symbols []string
	}
	var batches []batch
	for start, syms := range groups {
		for i := 0; i < len(syms); i += g.cfg.BatchSize {
			batches = append(batches, batch{start: start, symbols: syms[i:min(i+g.cfg.BatchSize, len(syms))]})
		}
	}

	g.log.Info("starting us-daily", "endDate", endStr, "symbols", len(g.cfg.Symbols), "batches", len(batches))
	if len(batches) == 0 {
		g.log.Info("all symbols up to date")
		return nil
	}

	batchCh := make(chan batch, len(batches))
	for _, b := range batches {
		batchCh <- b
	}
	close(batchCh)

	var (
		wg        sync.WaitGroup
		totalBars atomic.Int64
		failed    atomic.Int64
		runStart  = time.Now()
	)
	for w := 0; w < min(g.cfg.MaxWorkers, len(batches)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range batchCh {
				if ctx.Err() != nil {
					return
				}
				n, err := g.fetchBatch(ctx, b.symbols, b.start, end, tracker, endStr)
				if err != nil {
					failed.Add(1)
					g.log.Error("batch failed", "symbols", len(b.symbols), "err", err)
					continue
				}
				totalBars.Add(int64(n))
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	g.log.Info("complete",
		"bars", totalBars.Load(),
		"failedBatches", failed.Load(),
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d batches failed", n, len(batches))
	}
	return nil
}

func (g *DailyBarGatherer) fetchBatch(ctx context.Context, symbols []string, start, end time.Time, tracker *progressTracker, endStr string) (int, error) {
	var bars []domain.Bar
	err := util.Retry(ctx, 3, g.retryBase, func() error {
		var err error
		bars, err = g.fetchMultiBars(ctx, symbols, start, end)
		return err
	})
	if err != nil {
		return 0, err
	}

	if len(bars) > 0 {
		g.writeMu.Lock()
		err = g.store.WriteBars(ctx, bars)
		g.writeMu.Unlock()
		if err != nil {
			return 0, fmt.Errorf("writing bars: %w", err)
		}
	}
	if tracker != nil {
		if err := tracker.MarkFetched(symbols, endStr); err != nil {
			return len(bars), err
		}
	}
	return len(bars), nil
}

// fetchMultiBars fetches daily bars for multiple symbols in a single API call.
func (g *DailyBarGatherer) fetchMultiBars(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	multiBars, err := g.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end.AddDate(0, 0, 1),
		Feed:      marketdata.Feed(g.cfg.Feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			y, m, d := ab.Timestamp.Date()
			bars = append(bars, domain.Bar{
				Symbol:    strings.ToUpper(symbol),
				Timestamp: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
				Open:      ab.Open,
				High:      ab.High,
				Low:       ab.Low,
				Close:     ab.Close,
				Volume:    float64(ab.Volume),
			})
		}
	}
	return bars, nil
}
