// Package store defines the bar storage interface used by historical replay
// and price-path calibration, with Parquet, SQLite and CSV backends.
package store

import (
	"context"
	"time"

	"algotemplate/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end],
	// ordered by timestamp ascending.
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)
}

// Closes extracts the close prices of bars in order.
func Closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// inRange reports whether ts lies in [start, end]. A zero end is unbounded.
func inRange(ts, start, end time.Time) bool {
	if ts.Before(start) {
		return false
	}
	return end.IsZero() || !ts.After(end)
}

// FilterRange returns the bars whose timestamps lie in [start, end]. A zero
// start or end leaves that side unbounded.
func FilterRange(bars []domain.Bar, start, end time.Time) []domain.Bar {
	out := bars[:0:0]
	for _, b := range bars {
		if inRange(b.Timestamp, start, end) {
			out = append(out, b)
		}
	}
	return out
}
