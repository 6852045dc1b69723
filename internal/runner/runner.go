// Package runner assembles a run from configuration: it loads history,
// builds the feed, strategy, ledger and engine, and reports the result.
// Every input error surfaces from Build, before the first bar is pulled.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"algotemplate/internal/analyzer"
	"algotemplate/internal/broker"
	"algotemplate/internal/config"
	"algotemplate/internal/domain"
	"algotemplate/internal/engine"
	"algotemplate/internal/feed"
	"algotemplate/internal/live"
	"algotemplate/internal/pricepath"
	"algotemplate/internal/store"
	"algotemplate/internal/strategy"
	"algotemplate/internal/strategy/builtins"
	"algotemplate/internal/util"
)

// Options carries the injectable parts of a run. Zero values select the
// production defaults.
type Options struct {
	Registry *strategy.Registry
	Provider live.Provider     // overrides the configured live provider
	Source   pricepath.NormalSource
	Now      func() time.Time
	Logger   *slog.Logger
}

// Run is a fully wired, ready-to-execute run.
type Run struct {
	cfg      *config.Config
	engine   *engine.Engine
	reporter *analyzer.Reporter
	log      *slog.Logger
	closers  []func() error
}

// Build validates cfg and wires a run. It performs all I/O needed before the
// engine loop: reading history, generating paths and dialing providers.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Registry == nil {
		opts.Registry = builtins.NewRegistry()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	log := opts.Logger.With("algo", cfg.Run.AlgoName)

	r := &Run{cfg: cfg, log: log}

	strat, err := opts.Registry.New(cfg.Run.Strategy)
	if err != nil {
		return nil, err
	}
	if err := strat.Init(ctx, &cfg.Run); err != nil {
		return nil, fmt.Errorf("initialising strategy %s: %w", strat.Name(), err)
	}

	f, err := r.buildFeed(ctx, opts)
	if err != nil {
		r.Close()
		return nil, err
	}

	b := broker.NewSimulatorBroker(cfg.Broker.InitialCash)
	risk := engine.NewRiskManager(cfg.Broker.MaxPositionPct, cfg.Broker.AllowShort)
	r.engine = engine.NewEngine(f, b, strat, risk, log)
	r.reporter = analyzer.NewReporter(cfg.Run.SubmitURL, config.DefaultSubmitTimeout, log)
	return r, nil
}

// Stop asks the engine to finish before its next pull.
func (r *Run) Stop() { r.engine.Stop() }

// Close releases provider connections and stores opened by Build.
func (r *Run) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c())
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Execute runs the engine to completion, writes the trade analysis to out
// and submits the report. A partial report is returned alongside an engine
// error.
func (r *Run) Execute(ctx context.Context, out io.Writer) (*analyzer.Report, error) {
	r.log.Info("starting portfolio value", "value", r.cfg.Broker.InitialCash, "chart", r.cfg.Run.ChartEnabled())

	res, runErr := r.engine.Run(ctx)
	if res == nil {
		return nil, runErr
	}

	rep := analyzer.Analyze(res, analyzer.Options{
		RiskFreeRate:   r.cfg.Analyzer.RiskFree(),
		PeriodsPerYear: r.cfg.Analyzer.PeriodsPerYear,
	})
	if err := rep.WriteTable(out); err != nil {
		r.log.Warn("writing report", "error", err)
	}
	r.log.Info("final portfolio value", "value", rep.FinalValue, "pnl", rep.TotalPnL)

	// Submission outlives a cancelled run context.
	r.reporter.Submit(context.WithoutCancel(ctx), &r.cfg.Run, rep)
	return rep, runErr
}

func (r *Run) buildFeed(ctx context.Context, opts Options) (feed.Feed, error) {
	fc := r.cfg.Feed
	switch fc.Mode {
	case config.ModeReplay:
		bars, err := LoadHistory(ctx, r.cfg)
		if err != nil {
			return nil, err
		}
		r.log.Info("replaying history", "bars", len(bars), "symbol", fc.Symbol)
		return feed.NewReplay(bars)

	case config.ModeSimulated:
		bars, err := r.simulate(ctx, opts)
		if err != nil {
			return nil, err
		}
		return feed.NewSimulated(bars)

	case config.ModeLive:
		provider := opts.Provider
		if provider == nil {
			p, err := r.dialProvider()
			if err != nil {
				return nil, err
			}
			provider = p
		}
		return feed.NewLivePolled(fc.Symbol, provider,
			feed.RetryPolicy{Backoff: fc.Backoff, MaxAttempts: fc.MaxAttempts},
			feed.WithLimiter(util.NewIntervalLimiter(fc.PollInterval)),
			feed.WithLogger(r.log),
		), nil
	}
	return nil, fmt.Errorf("unsupported feed mode %q", fc.Mode)
}

// simulate calibrates GBM on the loaded history and stamps the chosen
// scenario with the business days up to the horizon.
func (r *Run) simulate(ctx context.Context, opts Options) ([]domain.Bar, error) {
	fc := r.cfg.Feed
	history, err := LoadHistory(ctx, r.cfg)
	if err != nil {
		return nil, err
	}

	horizon, err := config.ParseDate(fc.HorizonDate)
	if err != nil {
		return nil, err
	}
	if horizon.IsZero() {
		horizon = opts.Now()
	}
	last := history[len(history)-1].Timestamp
	cal := util.NewTradingCalendar(last.Location())
	steps := cal.BusinessDaysBetween(last, horizon)
	if steps <= 0 {
		return nil, fmt.Errorf("horizon %s is not after last known date %s", horizon.Format("2006-01-02"), last.Format("2006-01-02"))
	}

	src := opts.Source
	if src == nil {
		seed := fc.Seed
		if seed == 0 {
			seed = uint64(opts.Now().UnixNano())
		}
		src = pricepath.NewSource(seed)
	}
	paths, err := pricepath.Generate(store.Closes(history), steps, fc.Scenarios, src)
	if err != nil {
		return nil, fmt.Errorf("generating price paths: %w", err)
	}

	symbol := fc.Symbol
	if symbol == "" {
		symbol = history[0].Symbol
	}
	r.log.Info("simulated price paths",
		"history", len(history),
		"steps", steps,
		"scenarios", len(paths),
		"scenario", fc.Scenario,
		"from", last.Format("2006-01-02"),
		"to", horizon.Format("2006-01-02"),
	)
	return pricepath.ToBars(symbol, cal.NextBusinessDays(last, steps), paths[fc.Scenario]), nil
}

// LoadHistory reads the configured feed source (CSV, parquet or SQLite),
// restricted to the feed's date range.
func LoadHistory(ctx context.Context, cfg *config.Config) ([]domain.Bar, error) {
	fc := cfg.Feed
	start, err := config.ParseDate(fc.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := config.ParseDate(fc.EndDate)
	if err != nil {
		return nil, err
	}

	var bars []domain.Bar
	switch fc.Source {
	case config.SourceCSV:
		bars, err = store.ReadCSVFile(fc.CSVPath, fc.Symbol)
		if err == nil {
			bars = store.FilterRange(bars, start, end)
		}
	case config.SourceParquet:
		bars, err = store.NewParquetStore(cfg.Storage.DataDir).ReadBars(ctx, fc.Symbol, fc.Market, start, end)
	case config.SourceSQLite:
		var s *store.SQLiteStore
		s, err = store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		bars, err = s.ReadBars(ctx, fc.Symbol, fc.Market, start, end)
	default:
		return nil, fmt.Errorf("unsupported feed source %q", fc.Source)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s history: %w", fc.Source, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no %s history for %q in range", fc.Source, fc.Symbol)
	}
	return bars, nil
}

func (r *Run) dialProvider() (live.Provider, error) {
	fc := r.cfg.Feed
	switch fc.Provider {
	case config.ProviderHTTP:
		return live.NewHTTPProvider(fc.Endpoint, fc.Symbol, fc.Timeout), nil
	case config.ProviderGRPC:
		p, err := live.DialGRPC(fc.Endpoint, fc.Method, fc.Symbol)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, p.Close)
		return p, nil
	case config.ProviderAlpaca:
		a := r.cfg.Alpaca
		return live.NewAlpacaProvider(a.APIKey, a.APISecret, a.DataURL, fc.Symbol, a.Feed), nil
	}
	return nil, fmt.Errorf("unsupported live provider %q", fc.Provider)
}
