// Package engine drives a strategy bar by bar against a feed and settles its
// orders on the broker ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"algotemplate/internal/broker"
	"algotemplate/internal/domain"
	"algotemplate/internal/feed"
	"algotemplate/internal/strategy"
)

// State is the engine lifecycle state.
type State int32

const (
	StateInitializing State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Result is the outcome of one run.
type Result struct {
	RunID      string
	Bars       int
	Trades     []domain.TradeRecord
	Equity     []domain.EquityPoint
	StartValue float64
	FinalValue float64
	OpenTrades int
	Portfolio  domain.Portfolio
}

// Values returns the portfolio value series starting with StartValue.
func (r *Result) Values() []float64 {
	vals := make([]float64, 0, len(r.Equity)+1)
	vals = append(vals, r.StartValue)
	for _, e := range r.Equity {
		vals = append(vals, e.Value)
	}
	return vals
}

// Engine orchestrates a run by pulling bars from a feed, notifying the
// strategy and delegating settlement to a broker after risk checks. An
// Engine runs once; each run owns its feed and ledger.
type Engine struct {
	feed        feed.Feed
	broker      broker.Broker
	strategy    strategy.Strategy
	riskChecker *RiskManager
	log         *slog.Logger

	state atomic.Int32
	stop  atomic.Bool

	prev       time.Time
	monthValue float64
}

// NewEngine creates a new Engine wired with the given dependencies. The
// strategy must already be initialised.
func NewEngine(
	f feed.Feed,
	b broker.Broker,
	s strategy.Strategy,
	riskChecker *RiskManager,
	log *slog.Logger,
) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		feed:        f,
		broker:      b,
		strategy:    s,
		riskChecker: riskChecker,
		log:         log.With("component", "engine", "strategy", s.Name(), "feed", f.Name()),
	}
}

// State returns the current lifecycle state. Safe for concurrent use.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Stop asks a running engine to finish before its next pull. Safe for
// concurrent use.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

// Run loops until the feed is exhausted, Stop is called or ctx is cancelled,
// all of which end the run normally. Errors from the feed other than
// exhaustion and no-data, and errors from the strategy, abort the run; the
// partial result is still returned.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:      uuid.NewString(),
		StartValue: e.broker.Portfolio().Value,
	}
	log := e.log.With("run", res.RunID)
	runStart := time.Now()
	e.monthValue = res.StartValue

	if err := e.feed.Start(ctx); err != nil {
		e.state.Store(int32(StateStopped))
		return nil, fmt.Errorf("starting %s feed: %w", e.feed.Name(), err)
	}
	defer e.feed.Stop()

	log.Info("run started", "cash", res.StartValue)

	runErr := e.loop(ctx, log, res)
	e.state.Store(int32(StateStopped))

	p := e.broker.Portfolio()
	res.Trades = e.broker.Trades()
	res.OpenTrades = e.broker.OpenTrades()
	res.Portfolio = p
	res.FinalValue = p.Value

	log.Info("run stopped",
		"bars", res.Bars,
		"trades", len(res.Trades),
		"value", p.Value,
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	return res, runErr
}

func (e *Engine) loop(ctx context.Context, log *slog.Logger, res *Result) error {
	for {
		if e.stop.Load() {
			log.Info("stop requested")
			return nil
		}
		if ctx.Err() != nil {
			log.Info("context cancelled")
			return nil
		}

		bar, err := e.feed.Pull(ctx)
		switch {
		case err == nil:
		case errors.Is(err, feed.ErrEndOfStream):
			return nil
		case errors.Is(err, feed.ErrNoData):
			continue
		case ctx.Err() != nil:
			// Only the run's own context ends it cleanly; a provider timeout
			// wrapped in a feed error is a failure.
			log.Info("context cancelled")
			return nil
		default:
			return fmt.Errorf("pulling bar %d: %w", res.Bars, err)
		}

		if err := bar.Validate(); err != nil {
			return fmt.Errorf("bar %d from %s feed: %w", res.Bars, e.feed.Name(), err)
		}
		if e.State() == StateInitializing {
			e.state.Store(int32(StateRunning))
		}

		if err := e.step(ctx, log, res.Bars, bar); err != nil {
			return err
		}
		res.Bars++
		res.Equity = append(res.Equity, domain.EquityPoint{
			Timestamp: bar.Timestamp,
			Value:     e.broker.Portfolio().Value,
		})
	}
}

// step processes one bar: calendar notifications, the strategy callback and
// settlement of the returned orders.
func (e *Engine) step(ctx context.Context, log *slog.Logger, idx int, bar domain.Bar) error {
	e.broker.Mark(bar)
	p := e.broker.Portfolio()

	first := e.prev.IsZero()
	if !first && monthChanged(e.prev, bar.Timestamp) {
		log.Info("month start",
			"month", bar.Timestamp.Format("2006-01"),
			"value", p.Value,
			"change", p.Value-e.monthValue,
		)
		e.monthValue = p.Value
		e.strategy.OnMonthStart(ctx, bar, p)
	}
	if first || dayChanged(e.prev, bar.Timestamp) {
		e.strategy.OnDayStart(ctx, bar, p)
	}
	e.prev = bar.Timestamp

	orders, err := e.strategy.OnBar(ctx, bar, p)
	if err != nil {
		return fmt.Errorf("strategy %s on bar %d: %w", e.strategy.Name(), idx, err)
	}

	for _, o := range orders {
		o.BarIndex = idx
		if err := e.riskChecker.CheckOrder(ctx, o, bar, e.broker.Portfolio()); err != nil {
			log.Warn("order skipped", "side", o.Side, "size", o.Size, "error", err)
			continue
		}
		fill, err := e.broker.SubmitOrder(ctx, o, bar)
		if err != nil {
			log.Warn("order failed", "side", o.Side, "size", o.Size, "error", err)
			continue
		}
		log.Info(strings.ToUpper(string(o.Side))+" EXECUTED",
			"bar", idx,
			"size", o.Size,
			"price", fill.Price,
			"pnl", fill.RealizedPnL,
			"cash", fill.Cash,
		)
	}
	return nil
}

func monthChanged(prev, cur time.Time) bool {
	return prev.Year() != cur.Year() || prev.Month() != cur.Month()
}

func dayChanged(prev, cur time.Time) bool {
	py, pm, pd := prev.Date()
	cy, cm, cd := cur.Date()
	return py != cy || pm != cm || pd != cd
}
