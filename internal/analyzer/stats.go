// Package analyzer derives performance statistics from a completed run and
// reports them to the console and an optional submission endpoint.
package analyzer

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"algotemplate/internal/domain"
)

// StrikeRate returns won/closed*100, or 0 when no trade has closed.
func StrikeRate(won, closed int) float64 {
	if closed <= 0 {
		return 0
	}
	return float64(won) / float64(closed) * 100
}

// Streaks returns the longest consecutive runs of winning and losing trades,
// in the order given.
func Streaks(trades []domain.TradeRecord) (win, lose int) {
	var curWin, curLose int
	for _, t := range trades {
		if t.Won() {
			curWin++
			curLose = 0
		} else {
			curLose++
			curWin = 0
		}
		win = max(win, curWin)
		lose = max(lose, curLose)
	}
	return win, lose
}

// Drawdown returns the largest peak-to-trough decline of values, as a
// percentage of the peak and in money. Both are tracked independently.
func Drawdown(values []float64) (pct, money float64) {
	var peak float64
	for i, v := range values {
		if i == 0 || v > peak {
			peak = v
			continue
		}
		dd := peak - v
		money = math.Max(money, dd)
		if peak > 0 {
			pct = math.Max(pct, dd/peak*100)
		}
	}
	return pct, money
}

// SQN returns the System Quality Number sqrt(n)*mean(pnl)/stdev(pnl) of the
// closed trades, or 0 when it is undefined.
func SQN(trades []domain.TradeRecord) float64 {
	if len(trades) == 0 {
		return 0
	}
	pnl := make([]float64, len(trades))
	for i, t := range trades {
		pnl[i] = t.PnL
	}
	mean, std := stat.PopMeanStdDev(pnl, nil)
	return finiteOrZero(math.Sqrt(float64(len(pnl))) * mean / std)
}

// Sharpe returns the annualised Sharpe ratio of the per-period returns of
// values in excess of riskFree (an annual rate), or 0 when it is undefined.
func Sharpe(values []float64, riskFree float64, periodsPerYear int) float64 {
	if len(values) < 3 || periodsPerYear <= 0 {
		return 0
	}
	rfPeriod := math.Pow(1+riskFree, 1/float64(periodsPerYear)) - 1

	excess := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			return 0
		}
		excess = append(excess, values[i]/values[i-1]-1-rfPeriod)
	}
	mean, std := stat.PopMeanStdDev(excess, nil)
	if std < 1e-12 {
		return 0
	}
	return finiteOrZero(mean / std * math.Sqrt(float64(periodsPerYear)))
}

func finiteOrZero(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
