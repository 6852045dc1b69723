package analyzer

import (
	"context"
	"log/slog"
	"time"

	"algotemplate/internal/config"
	"algotemplate/pkg/leaderboard"
)

// Reporter forwards reports to the submission endpoint. Submission is best
// effort: failures are logged and never returned.
type Reporter struct {
	client *leaderboard.Client
	log    *slog.Logger
}

// NewReporter creates a Reporter for submitURL. An empty URL disables
// submission.
func NewReporter(submitURL string, timeout time.Duration, log *slog.Logger) *Reporter {
	r := &Reporter{log: log.With("component", "reporter")}
	if submitURL != "" {
		r.client = leaderboard.NewClient(submitURL, timeout)
	}
	return r
}

// Submission builds the payload for rep under rc's identity. The pnl field is
// the portfolio's total change in value, open positions included.
func Submission(rc *config.RunConfig, rep *Report) leaderboard.Submission {
	return leaderboard.Submission{
		ID:          rc.AlgoName,
		Name:        rc.Name(),
		Trades:      rep.TotalClosed,
		StrikeRate:  round2(rep.StrikeRate),
		MaxDrawdown: round2(rep.MaxDrawdownPct),
		PnL:         round2(rep.TotalPnL),
		SQN:         round2(rep.SQN),
		SharpeRatio: round2(rep.Sharpe),
	}
}

// Submit sends rep once and reports whether the collector accepted it.
func (r *Reporter) Submit(ctx context.Context, rc *config.RunConfig, rep *Report) bool {
	if r.client == nil {
		r.log.Debug("submission disabled")
		return false
	}
	s := Submission(rc, rep)
	if err := r.client.Submit(ctx, s); err != nil {
		r.log.Warn("submission failed", "id", s.ID, "name", s.Name, "error", err)
		return false
	}
	r.log.Info("submitted", "id", s.ID, "name", s.Name, "trades", s.Trades, "pnl", s.PnL.String())
	return true
}
