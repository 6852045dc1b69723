// Package strategy defines the Strategy interface for trading strategies and
// provides a Registry for constructing them by name.
package strategy

import (
	"context"
	"fmt"
	"sort"

	"algotemplate/internal/config"
	"algotemplate/internal/domain"
)

// Strategy is the interface that all trading strategies must implement. The
// engine owns the portfolio; strategies only read the snapshot they are
// given and return order intents.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Init performs any one-time setup required before the strategy begins
	// processing market data. Parameter errors returned here abort the run.
	Init(ctx context.Context, rc *config.RunConfig) error

	// OnBar is called for every bar with the current portfolio snapshot. It
	// returns zero or more orders to settle at the bar's close.
	OnBar(ctx context.Context, bar domain.Bar, p domain.Portfolio) ([]domain.Order, error)

	// OnDayStart is called once before the first bar of each new day.
	OnDayStart(ctx context.Context, bar domain.Bar, p domain.Portfolio)

	// OnMonthStart is called once before the first bar of each new month,
	// except the month the run starts in.
	OnMonthStart(ctx context.Context, bar domain.Bar, p domain.Portfolio)
}

// CalendarHooks provides no-op day and month hooks for embedding.
type CalendarHooks struct{}

// OnDayStart does nothing.
func (CalendarHooks) OnDayStart(context.Context, domain.Bar, domain.Portfolio) {}

// OnMonthStart does nothing.
func (CalendarHooks) OnMonthStart(context.Context, domain.Bar, domain.Portfolio) {}

// Factory constructs a fresh, uninitialised strategy.
type Factory func() Strategy

// Registry holds named strategy constructors for lookup and enumeration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a constructor under name, replacing any previous entry.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New constructs the strategy registered under name.
func (r *Registry) New(name string) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (available: %v)", name, r.List())
	}
	return f(), nil
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
