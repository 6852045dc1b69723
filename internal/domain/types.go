// Package domain holds the core value types shared by feeds, the execution
// engine, strategies and the performance analyzer.
package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidBar is returned when a bar fails validation.
var ErrInvalidBar = errors.New("invalid bar")

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is one OHLCV price observation at a point in time.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// IsZero reports whether every price and volume field is zero. Such a bar is
// only ever a placeholder and must not be emitted by a feed.
func (b Bar) IsZero() bool {
	return b.Open == 0 && b.High == 0 && b.Low == 0 && b.Close == 0 && b.Volume == 0
}

// Validate checks that the bar carries a timestamp and real prices.
func (b Bar) Validate() error {
	if b.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidBar)
	}
	if b.IsZero() {
		return fmt.Errorf("%w: all-zero bar at %s", ErrInvalidBar, b.Timestamp.Format(time.RFC3339))
	}
	if b.Close <= 0 {
		return fmt.Errorf("%w: non-positive close %v at %s", ErrInvalidBar, b.Close, b.Timestamp.Format(time.RFC3339))
	}
	return nil
}

// FlatBar builds a bar whose open, high, low and close are all price.
func FlatBar(symbol string, ts time.Time, price float64) Bar {
	return Bar{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
	}
}

// FeedState is the connection/data state of a feed.
type FeedState int

const (
	FeedDisconnected FeedState = iota
	FeedConnecting
	FeedLive
	FeedExhausted
)

func (s FeedState) String() string {
	switch s {
	case FeedDisconnected:
		return "DISCONNECTED"
	case FeedConnecting:
		return "CONNECTING"
	case FeedLive:
		return "LIVE"
	case FeedExhausted:
		return "EXHAUSTED"
	default:
		return fmt.Sprintf("FeedState(%d)", int(s))
	}
}

// ---------------------------------------------------------------------------
// Orders and the ledger
// ---------------------------------------------------------------------------

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Order is a strategy's intent to trade, settled within the bar it was
// issued on.
type Order struct {
	Side     OrderSide
	Size     float64
	BarIndex int
}

// Buy returns a buy order for size units.
func Buy(size float64) Order { return Order{Side: OrderSideBuy, Size: size} }

// Sell returns a sell order for size units.
func Sell(size float64) Order { return Order{Side: OrderSideSell, Size: size} }

// Signed returns the order size with sells negative.
func (o Order) Signed() float64 {
	if o.Side == OrderSideSell {
		return -o.Size
	}
	return o.Size
}

// Fill is the result of settling one order at a bar's close.
type Fill struct {
	Order       Order
	Price       float64
	Timestamp   time.Time
	RealizedPnL float64 // cumulative realized PnL of the ledger after this fill
	Cash        float64
	Value       float64
}

// Portfolio is a read-only snapshot of the ledger.
type Portfolio struct {
	Cash        float64
	Holdings    float64 // signed position size; negative when short
	AvgPrice    float64
	RealizedPnL float64
	Value       float64 // cash + holdings marked at the last price
}

// Flat reports whether the portfolio holds no position.
func (p Portfolio) Flat() bool { return p.Holdings == 0 }

// TradeRecord describes one round trip from a flat position back to flat.
type TradeRecord struct {
	OpenBar  int
	CloseBar int
	OpenedAt time.Time
	ClosedAt time.Time
	Size     float64 // signed size at open
	PnL      float64
}

// Duration returns the trade length in bars.
func (t TradeRecord) Duration() int { return t.CloseBar - t.OpenBar }

// Won reports whether the trade was profitable. A break-even trade counts as
// lost.
func (t TradeRecord) Won() bool { return t.PnL > 0 }

// SizeEpsilon absorbs float noise in position sizes and cash comparisons.
const SizeEpsilon = 1e-9

// IsFlatSize reports whether a position size is zero within SizeEpsilon.
func IsFlatSize(x float64) bool { return math.Abs(x) < SizeEpsilon }

// EquityPoint is the marked portfolio value after a bar settled.
type EquityPoint struct {
	Timestamp time.Time
	Value     float64
}
