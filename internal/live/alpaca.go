package live

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

var _ Provider = (*AlpacaProvider)(nil)

// barsClient is the subset of *marketdata.Client used by AlpacaProvider.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaProvider polls recent daily bars for one symbol.
type AlpacaProvider struct {
	client   barsClient
	symbol   string
	feed     string
	lookback time.Duration
	now      func() time.Time
}

// NewAlpacaProvider creates a provider backed by the Alpaca market-data API.
// An empty dataURL uses the SDK default; an empty feed uses "iex".
func NewAlpacaProvider(apiKey, apiSecret, dataURL, symbol, feed string) *AlpacaProvider {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return newAlpacaProvider(marketdata.NewClient(opts), symbol, feed)
}

func newAlpacaProvider(client barsClient, symbol, feed string) *AlpacaProvider {
	if feed == "" {
		feed = "iex"
	}
	return &AlpacaProvider{
		client:   client,
		symbol:   strings.ToUpper(symbol),
		feed:     feed,
		lookback: 10 * 24 * time.Hour,
		now:      time.Now,
	}
}

// Latest fetches the daily bars of the last ten calendar days.
func (p *AlpacaProvider) Latest(ctx context.Context) ([]Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	end := p.now()
	bars, err := p.client.GetBars(p.symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     end.Add(-p.lookback),
		End:       end,
		Feed:      marketdata.Feed(p.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", p.symbol, err)
	}

	points := make([]Point, 0, len(bars))
	for _, b := range bars {
		points = append(points, Point{Date: formatDate(b.Timestamp), Close: b.Close})
	}
	return points, validatePoints(points)
}
