package live

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

var _ Provider = (*HTTPProvider)(nil)

// HTTPProvider POSTs a JSON request to a market-data function endpoint and
// decodes a JSON array of points from the response body.
type HTTPProvider struct {
	endpoint string
	request  map[string]any
	client   *http.Client
}

// NewHTTPProvider creates a provider for endpoint. A non-empty symbol is sent
// as {"symbol": ...}; otherwise the request body is an empty object.
func NewHTTPProvider(endpoint, symbol string, timeout time.Duration) *HTTPProvider {
	req := map[string]any{}
	if symbol != "" {
		req["symbol"] = symbol
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		endpoint: endpoint,
		request:  req,
		client:   &http.Client{Timeout: timeout},
	}
}

// Latest performs one request and returns the decoded points.
func (p *HTTPProvider) Latest(ctx context.Context) ([]Point, error) {
	body, err := json.Marshal(p.request)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", p.endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market data endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}

	var points []Point
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedPayload, err)
	}
	if err := validatePoints(points); err != nil {
		return nil, err
	}
	return points, nil
}
