// Package leaderboard is a small client for the run-submission endpoint that
// collects strategy performance results.
package leaderboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds a submission request.
const DefaultTimeout = 3 * time.Second

// Submission is one run's result as sent to the collector.
type Submission struct {
	ID          string
	Name        string
	Trades      int
	StrikeRate  decimal.Decimal
	MaxDrawdown decimal.Decimal
	PnL         decimal.Decimal
	SQN         decimal.Decimal
	SharpeRatio decimal.Decimal
}

// Query encodes the submission as URL query parameters.
func (s Submission) Query() url.Values {
	q := url.Values{}
	q.Set("id", s.ID)
	q.Set("name", s.Name)
	q.Set("trades", strconv.Itoa(s.Trades))
	q.Set("strike_rate", s.StrikeRate.String())
	q.Set("max_drawdown", s.MaxDrawdown.String())
	q.Set("pnl", s.PnL.String())
	q.Set("sqn", s.SQN.String())
	q.Set("sharpe_ratio", s.SharpeRatio.String())
	return q
}

// StatusError is returned when the collector answers with a non-200 status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("submission returned status %d: %s", e.Code, e.Body)
}

// Client submits results with a GET request carrying query parameters.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. A non-positive timeout uses
// DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Submit sends one submission. It does not retry.
func (c *Client) Submit(ctx context.Context, s Submission) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parsing submit url: %w", err)
	}
	q := u.Query()
	for k, v := range s.Query() {
		q[k] = v
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submitting: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return nil
}
