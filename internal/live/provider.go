// Package live provides the market-data providers polled by the live feed:
// an HTTP JSON endpoint, a unary gRPC service and the Alpaca daily-bar API.
// It also serves any provider over gRPC so that a replayed history can act
// as a live market.
package live

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnsupportedPayload is returned when a provider response cannot be
// decoded into points.
var ErrUnsupportedPayload = errors.New("unsupported market data payload")

// Point is one {date, close} record returned by a provider.
type Point struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// Validate rejects points without a positive close.
func (p Point) Validate() error {
	if !(p.Close > 0) {
		return fmt.Errorf("%w: close %v on %q", ErrUnsupportedPayload, p.Close, p.Date)
	}
	return nil
}

// Provider returns the most recent points, oldest first. An empty slice with
// a nil error means no data this poll.
type Provider interface {
	Latest(ctx context.Context) ([]Point, error)
}

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string { return t.Format(dateLayout) }

func validatePoints(points []Point) error {
	for _, p := range points {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
