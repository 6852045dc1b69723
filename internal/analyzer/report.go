package analyzer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"algotemplate/internal/engine"
)

// Options tunes the Sharpe ratio.
type Options struct {
	RiskFreeRate   float64
	PeriodsPerYear int
}

// Report summarises a completed run. It is computed once and not modified.
type Report struct {
	RunID string

	TotalOpen   int
	TotalClosed int
	TotalWon    int
	TotalLost   int
	WinStreak   int
	LoseStreak  int

	PnLNet           float64
	StrikeRate       float64
	MaxDrawdownPct   float64
	MaxDrawdownMoney float64
	SQN              float64
	Sharpe           float64

	StartValue float64
	FinalValue float64
	TotalPnL   float64
}

// Analyze computes the report for res.
func Analyze(res *engine.Result, opts Options) *Report {
	r := &Report{
		RunID:       res.RunID,
		TotalOpen:   res.OpenTrades,
		TotalClosed: len(res.Trades),
		StartValue:  res.StartValue,
		FinalValue:  res.FinalValue,
		TotalPnL:    res.FinalValue - res.StartValue,
	}
	for _, t := range res.Trades {
		r.PnLNet += t.PnL
		if t.Won() {
			r.TotalWon++
		}
	}
	r.TotalLost = r.TotalClosed - r.TotalWon
	r.StrikeRate = StrikeRate(r.TotalWon, r.TotalClosed)
	r.WinStreak, r.LoseStreak = Streaks(res.Trades)

	values := res.Values()
	r.MaxDrawdownPct, r.MaxDrawdownMoney = Drawdown(values)
	r.SQN = SQN(res.Trades)
	r.Sharpe = Sharpe(values, opts.RiskFreeRate, opts.PeriodsPerYear)
	return r
}

// round2 rounds money and percentages for display and submission.
func round2(x float64) decimal.Decimal {
	return decimal.NewFromFloat(x).Round(2)
}

// WriteTable prints the trade analysis table followed by the summary line.
func (r *Report) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Trade Analysis Results\t\t\t\t")
	fmt.Fprintln(tw, "Total Open\tTotal Closed\tTotal Won\tTotal Lost\t")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t\n", r.TotalOpen, r.TotalClosed, r.TotalWon, r.TotalLost)
	fmt.Fprintln(tw, "Strike Rate\tWin Streak\tLosing Streak\tPnL Net\t")
	fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t\n", round2(r.StrikeRate), r.WinStreak, r.LoseStreak, round2(r.PnLNet))
	fmt.Fprintln(tw, "DrawDown Pct\tMoneyDown\t\t\t")
	fmt.Fprintf(tw, "%s\t%s\t\t\t\n", round2(r.MaxDrawdownPct), round2(r.MaxDrawdownMoney))
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "SQN: %s  Sharpe Ratio: %s  Final Portfolio: %s  Total PnL: %s\n",
		round2(r.SQN), round2(r.Sharpe), round2(r.FinalValue), round2(r.TotalPnL))
	return err
}
