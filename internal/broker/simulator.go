package broker

import (
	"context"
	"fmt"
	"math"
	"time"

	"algotemplate/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*SimulatorBroker)(nil)

type openTrade struct {
	bar  int
	at   time.Time
	size float64
	pnl  float64
}

// SimulatorBroker implements the Broker interface for backtesting and paper
// trading. Orders fill immediately and completely at the bar close; there is
// no slippage, commission or order book.
type SimulatorBroker struct {
	cash      float64
	holdings  float64
	avgPrice  float64
	realized  float64
	lastPrice float64

	open   *openTrade
	trades []domain.TradeRecord
}

// NewSimulatorBroker creates a SimulatorBroker holding initialCash and no
// position.
func NewSimulatorBroker(initialCash float64) *SimulatorBroker {
	return &SimulatorBroker{cash: initialCash}
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string {
	return "simulator"
}

// SubmitOrder settles order at bar.Close, updating cash and holdings. A fill
// that takes the position back to flat appends a TradeRecord; a fill that
// crosses through flat closes the current trade and opens a new one with the
// remainder.
func (b *SimulatorBroker) SubmitOrder(_ context.Context, order domain.Order, bar domain.Bar) (*domain.Fill, error) {
	if order.Side != domain.OrderSideBuy && order.Side != domain.OrderSideSell {
		return nil, fmt.Errorf("%w: side %q", ErrInvalidOrder, order.Side)
	}
	if !(order.Size > 0) || math.IsInf(order.Size, 0) {
		return nil, fmt.Errorf("%w: size %v", ErrInvalidOrder, order.Size)
	}

	price := bar.Close
	delta := order.Signed()
	b.cash -= delta * price
	b.lastPrice = price

	switch {
	case isFlat(b.holdings):
		b.openTrade(order.BarIndex, bar.Timestamp, delta, price)

	case sameSign(b.holdings, delta):
		total := math.Abs(b.holdings) + math.Abs(delta)
		b.avgPrice = (b.avgPrice*math.Abs(b.holdings) + price*math.Abs(delta)) / total
		b.holdings += delta

	default:
		closing := math.Min(math.Abs(delta), math.Abs(b.holdings))
		pnl := (price - b.avgPrice) * closing * sign(b.holdings)
		b.realized += pnl
		b.open.pnl += pnl

		remaining := b.holdings + delta
		switch {
		case isFlat(remaining):
			b.closeTrade(order.BarIndex, bar.Timestamp)
		case !sameSign(remaining, b.holdings):
			b.closeTrade(order.BarIndex, bar.Timestamp)
			b.openTrade(order.BarIndex, bar.Timestamp, remaining, price)
		default:
			b.holdings = remaining
		}
	}

	p := b.Portfolio()
	return &domain.Fill{
		Order:       order,
		Price:       price,
		Timestamp:   bar.Timestamp,
		RealizedPnL: p.RealizedPnL,
		Cash:        p.Cash,
		Value:       p.Value,
	}, nil
}

// Mark revalues holdings at bar.Close.
func (b *SimulatorBroker) Mark(bar domain.Bar) {
	if bar.Close > 0 {
		b.lastPrice = bar.Close
	}
}

// Portfolio returns the current ledger snapshot.
func (b *SimulatorBroker) Portfolio() domain.Portfolio {
	return domain.Portfolio{
		Cash:        b.cash,
		Holdings:    b.holdings,
		AvgPrice:    b.avgPrice,
		RealizedPnL: b.realized,
		Value:       b.cash + b.holdings*b.lastPrice,
	}
}

// Trades returns a copy of the closed trade records.
func (b *SimulatorBroker) Trades() []domain.TradeRecord {
	out := make([]domain.TradeRecord, len(b.trades))
	copy(out, b.trades)
	return out
}

// OpenTrades returns 1 while a position is held, else 0.
func (b *SimulatorBroker) OpenTrades() int {
	if b.open != nil {
		return 1
	}
	return 0
}

func (b *SimulatorBroker) openTrade(barIdx int, at time.Time, size, price float64) {
	b.holdings = size
	b.avgPrice = price
	b.open = &openTrade{bar: barIdx, at: at, size: size}
}

func (b *SimulatorBroker) closeTrade(barIdx int, at time.Time) {
	b.trades = append(b.trades, domain.TradeRecord{
		OpenBar:  b.open.bar,
		CloseBar: barIdx,
		OpenedAt: b.open.at,
		ClosedAt: at,
		Size:     b.open.size,
		PnL:      b.open.pnl,
	})
	b.open = nil
	b.holdings = 0
	b.avgPrice = 0
}

func isFlat(x float64) bool { return domain.IsFlatSize(x) }

func sameSign(a, b float64) bool { return (a > 0) == (b > 0) }

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
