package builtins

import (
	"context"
	"fmt"

	"algotemplate/internal/config"
	"algotemplate/internal/domain"
	"algotemplate/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It buys
// when the short-period SMA crosses above the long-period SMA and closes the
// position when it crosses below.
//
// Parameters: short_period (default 10), long_period (default 30), size
// (default 1).
type SMACross struct {
	strategy.CalendarHooks

	shortPeriod int
	longPeriod  int
	size        float64

	closes   []float64
	prevDiff float64
	primed   bool
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods.
func NewSMACross(short, long int, size float64) *SMACross {
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
		size:        size,
	}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Init reads the periods and size from rc, keeping any values already set
// by NewSMACross as defaults.
func (s *SMACross) Init(_ context.Context, rc *config.RunConfig) error {
	s.shortPeriod = rc.ParamInt("short_period", orInt(s.shortPeriod, 10))
	s.longPeriod = rc.ParamInt("long_period", orInt(s.longPeriod, 30))
	s.size = rc.ParamFloat("size", orFloat(s.size, 1))

	if s.shortPeriod <= 0 || s.longPeriod <= s.shortPeriod {
		return fmt.Errorf("sma-cross: need 0 < short_period < long_period, got %d/%d", s.shortPeriod, s.longPeriod)
	}
	if s.size <= 0 {
		return fmt.Errorf("sma-cross: size must be positive, got %v", s.size)
	}
	s.closes = make([]float64, 0, s.longPeriod)
	s.primed = false
	return nil
}

// OnBar appends the close to the price window and trades on crossovers.
func (s *SMACross) OnBar(_ context.Context, bar domain.Bar, p domain.Portfolio) ([]domain.Order, error) {
	if len(s.closes) == s.longPeriod {
		s.closes = s.closes[1:]
	}
	s.closes = append(s.closes, bar.Close)
	if len(s.closes) < s.longPeriod {
		return nil, nil
	}

	diff := mean(s.closes[len(s.closes)-s.shortPeriod:]) - mean(s.closes)
	prev, primed := s.prevDiff, s.primed
	s.prevDiff, s.primed = diff, true
	if !primed {
		return nil, nil
	}

	switch {
	case prev <= 0 && diff > 0 && p.Holdings == 0:
		return []domain.Order{domain.Buy(s.size)}, nil
	case prev >= 0 && diff < 0 && p.Holdings > 0:
		return []domain.Order{domain.Sell(p.Holdings)}, nil
	}
	return nil, nil
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}
