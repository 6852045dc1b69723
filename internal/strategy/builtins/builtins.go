// Package builtins provides built-in strategy implementations that ship with
// the algotemplate runner.
package builtins

import (
	"context"
	"math"

	"algotemplate/internal/config"
	"algotemplate/internal/domain"
	"algotemplate/internal/strategy"
)

// Register adds every built-in strategy to r.
func Register(r *strategy.Registry) {
	r.Register("noop", func() strategy.Strategy { return &Noop{} })
	r.Register("buy-and-hold", func() strategy.Strategy { return &BuyAndHold{} })
	r.Register("sma-cross", func() strategy.Strategy { return &SMACross{} })
}

// NewRegistry returns a registry holding the built-in strategies.
func NewRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	Register(r)
	return r
}

var (
	_ strategy.Strategy = (*Noop)(nil)
	_ strategy.Strategy = (*BuyAndHold)(nil)
)

// Noop never trades.
type Noop struct {
	strategy.CalendarHooks
}

func (*Noop) Name() string                                  { return "noop" }
func (*Noop) Init(context.Context, *config.RunConfig) error { return nil }
func (*Noop) OnBar(context.Context, domain.Bar, domain.Portfolio) ([]domain.Order, error) {
	return nil, nil
}

// BuyAndHold buys once on the first bar and holds until the run ends. The
// "size" parameter fixes the quantity; without it the strategy spends all
// available cash on whole shares.
type BuyAndHold struct {
	strategy.CalendarHooks
	size   float64
	bought bool
}

// Name returns "buy-and-hold".
func (*BuyAndHold) Name() string { return "buy-and-hold" }

// Init reads the optional size parameter.
func (s *BuyAndHold) Init(_ context.Context, rc *config.RunConfig) error {
	s.size = rc.ParamFloat("size", 0)
	return nil
}

// OnBar buys on the first bar only.
func (s *BuyAndHold) OnBar(_ context.Context, bar domain.Bar, p domain.Portfolio) ([]domain.Order, error) {
	if s.bought {
		return nil, nil
	}
	s.bought = true
	size := s.size
	if size <= 0 {
		size = math.Floor(p.Cash / bar.Close)
	}
	if size <= 0 {
		return nil, nil
	}
	return []domain.Order{domain.Buy(size)}, nil
}
