package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"algotemplate/internal/domain"
	"algotemplate/internal/live"
	"algotemplate/internal/util"
)

var _ Feed = (*Polled)(nil)

// DefaultBackoff is the pause after a failed poll.
const DefaultBackoff = 5 * time.Second

// RetryPolicy controls how a live feed handles failed polls.
type RetryPolicy struct {
	// Backoff is slept after each failure before control returns to the
	// engine. Zero means DefaultBackoff.
	Backoff time.Duration

	// MaxAttempts caps consecutive failures; 0 retries forever.
	MaxAttempts int
}

// Option configures a Polled feed.
type Option func(*Polled)

// WithClock replaces the wall clock used to stamp bars.
func WithClock(now func() time.Time) Option {
	return func(p *Polled) { p.now = now }
}

// WithSleeper replaces the backoff sleep.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Polled) { p.sleep = sleep }
}

// WithLimiter paces polls.
func WithLimiter(rl *util.RateLimiter) Option {
	return func(p *Polled) { p.limiter = rl }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Polled) { p.log = log }
}

// Polled issues one provider request per pull and turns the most recent
// point into a bar stamped with the wall clock. The provider's own dates are
// only logged; their granularity is coarser than the poll rate.
type Polled struct {
	pullMu   sync.Mutex // serialises Pull; guards failures and last
	mu       sync.Mutex // guards state and stopped
	symbol   string
	provider live.Provider
	policy   RetryPolicy
	limiter  *util.RateLimiter
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	log      *slog.Logger

	state    domain.FeedState
	stopped  bool
	failures int
	last     time.Time
}

// NewLivePolled creates a live feed in the DISCONNECTED state.
func NewLivePolled(symbol string, provider live.Provider, policy RetryPolicy, opts ...Option) *Polled {
	if policy.Backoff <= 0 {
		policy.Backoff = DefaultBackoff
	}
	p := &Polled{
		symbol:   symbol,
		provider: provider,
		policy:   policy,
		now:      time.Now,
		sleep:    util.Sleep,
		log:      slog.Default(),
		state:    domain.FeedDisconnected,
	}
	for _, o := range opts {
		o(p)
	}
	p.log = p.log.With("component", "feed", "feed", "live", "symbol", symbol)
	return p
}

// Name returns "live".
func (p *Polled) Name() string { return "live" }

// Start moves the feed to CONNECTING.
func (p *Polled) Start(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == domain.FeedDisconnected && !p.stopped {
		p.state = domain.FeedConnecting
	}
	return nil
}

// Stop disconnects the feed.
func (p *Polled) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	p.state = domain.FeedDisconnected
	return nil
}

// Pull polls the provider once. A failed poll is logged, leaves the feed
// CONNECTING, sleeps the backoff and returns ErrNoData. An empty response
// returns ErrNoData without changing state. The state lock is not held while
// polling or sleeping, so Stop and State never wait on a pull.
func (p *Polled) Pull(ctx context.Context) (domain.Bar, error) {
	p.pullMu.Lock()
	defer p.pullMu.Unlock()

	if !p.setState(domain.FeedConnecting, true) {
		return domain.Bar{}, ErrEndOfStream
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return domain.Bar{}, err
	}

	points, err := p.provider.Latest(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Bar{}, ctx.Err()
		}
		return domain.Bar{}, p.fail(ctx, err)
	}
	p.failures = 0

	if len(points) == 0 {
		p.log.Debug("poll returned no points")
		return domain.Bar{}, ErrNoData
	}

	latest := points[len(points)-1]
	ts := p.now()
	if !ts.After(p.last) {
		ts = p.last.Add(time.Nanosecond)
	}
	if !p.setState(domain.FeedLive, false) {
		return domain.Bar{}, ErrEndOfStream
	}
	p.last = ts

	p.log.Debug("poll", "points", len(points), "date", latest.Date, "close", latest.Close)
	return domain.FlatBar(p.symbol, ts, latest.Close), nil
}

// setState moves a running feed to s and reports false once the feed is
// stopped. With onlyFromDisconnected set, only a DISCONNECTED feed moves.
func (p *Polled) setState(s domain.FeedState, onlyFromDisconnected bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	if !onlyFromDisconnected || p.state == domain.FeedDisconnected {
		p.state = s
	}
	return true
}

func (p *Polled) fail(ctx context.Context, cause error) error {
	p.failures++
	if !p.setState(domain.FeedConnecting, false) {
		return ErrEndOfStream
	}
	p.log.Warn("poll failed", "error", cause, "attempt", p.failures, "backoff", p.policy.Backoff)

	if p.policy.MaxAttempts > 0 && p.failures >= p.policy.MaxAttempts {
		return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, p.failures, cause)
	}
	if err := p.sleep(ctx, p.policy.Backoff); err != nil {
		return err
	}
	return ErrNoData
}

// State returns the connection state.
func (p *Polled) State() domain.FeedState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsLive is always true.
func (p *Polled) IsLive() bool { return true }

// HasData reports whether the last poll succeeded.
func (p *Polled) HasData() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == domain.FeedLive
}
