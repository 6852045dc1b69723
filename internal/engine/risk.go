package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"algotemplate/internal/domain"
)

// ErrRiskRejected is returned by CheckOrder for orders that break a limit.
var ErrRiskRejected = errors.New("order rejected by risk checks")

// RiskManager enforces pre-trade rules: no margin on buys, an optional cap on
// position exposure, and an optional ban on short positions. A nil
// RiskManager accepts every well-formed order.
type RiskManager struct {
	maxPositionPct float64
	allowShort     bool
}

// NewRiskManager creates a RiskManager with the specified thresholds.
//
//   - maxPositionPct: maximum fraction of portfolio value allowed in the
//     position after the fill (e.g. 0.10 for 10%); 0 disables the check.
//   - allowShort: whether a sell may take holdings below zero.
func NewRiskManager(maxPositionPct float64, allowShort bool) *RiskManager {
	return &RiskManager{
		maxPositionPct: maxPositionPct,
		allowShort:     allowShort,
	}
}

// CheckOrder evaluates whether the proposed order, filled at bar.Close,
// complies with the configured limits given the current portfolio.
func (rm *RiskManager) CheckOrder(_ context.Context, order domain.Order, bar domain.Bar, p domain.Portfolio) error {
	if !(order.Size > 0) || math.IsInf(order.Size, 0) {
		return fmt.Errorf("%w: size %v", ErrRiskRejected, order.Size)
	}
	if rm == nil {
		return nil
	}

	price := bar.Close
	next := p.Holdings + order.Signed()

	if order.Side == domain.OrderSideBuy && order.Size*price > p.Cash+domain.SizeEpsilon {
		return fmt.Errorf("%w: buy %v @ %.2f needs %.2f, cash %.2f",
			ErrRiskRejected, order.Size, price, order.Size*price, p.Cash)
	}
	if !rm.allowShort && next < -domain.SizeEpsilon {
		return fmt.Errorf("%w: sell %v would leave holdings %v and shorting is disabled",
			ErrRiskRejected, order.Size, next)
	}
	if rm.maxPositionPct > 0 && math.Abs(next) > math.Abs(p.Holdings) {
		limit := rm.maxPositionPct * p.Value
		if exposure := math.Abs(next) * price; exposure > limit+domain.SizeEpsilon {
			return fmt.Errorf("%w: exposure %.2f exceeds %.0f%% of value %.2f",
				ErrRiskRejected, exposure, rm.maxPositionPct*100, p.Value)
		}
	}
	return nil
}
