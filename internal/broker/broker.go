// Package broker defines the Broker interface and the in-memory ledger that
// settles strategy orders at bar close.
package broker

import (
	"context"
	"errors"

	"algotemplate/internal/domain"
)

// ErrInvalidOrder is returned for orders with an unknown side or a
// non-positive size.
var ErrInvalidOrder = errors.New("invalid order")

// Broker abstracts order settlement and the cash/position ledger.
type Broker interface {
	// Name returns the broker identifier (e.g. "simulator").
	Name() string

	// SubmitOrder settles the order in full at the bar's close price.
	SubmitOrder(ctx context.Context, order domain.Order, bar domain.Bar) (*domain.Fill, error)

	// Mark revalues open holdings at the bar's close price.
	Mark(bar domain.Bar)

	// Portfolio returns a snapshot of the ledger.
	Portfolio() domain.Portfolio

	// Trades returns every closed round trip in chronological order.
	Trades() []domain.TradeRecord

	// OpenTrades returns the number of trades still open (0 or 1).
	OpenTrades() int
}
