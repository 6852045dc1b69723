package leaderboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8080", 0)
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q, want %q", c.baseURL, "http://localhost:8080")
	}
	if c.httpClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, DefaultTimeout)
	}
}

func TestSubmitSendsQuery(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		got = map[string]string{}
		for k := range r.URL.Query() {
			got[k] = r.URL.Query().Get(k)
		}
	}))
	defer srv.Close()

	s := Submission{
		ID:          "algo_sma",
		Name:        "user@42",
		Trades:      3,
		StrikeRate:  decimal.NewFromFloat(66.67),
		MaxDrawdown: decimal.NewFromFloat(12.5),
		PnL:         decimal.NewFromFloat(-4.2),
		SQN:         decimal.Zero,
		SharpeRatio: decimal.NewFromFloat(1.1),
	}
	if err := NewClient(srv.URL+"/submit?token=abc", time.Second).Submit(context.Background(), s); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	want := map[string]string{
		"token": "abc", "id": "algo_sma", "name": "user@42", "trades": "3",
		"strike_rate": "66.67", "max_drawdown": "12.5", "pnl": "-4.2", "sqn": "0", "sharpe_ratio": "1.1",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("query %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestSubmitNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).Submit(context.Background(), Submission{ID: "x"})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Fatalf("Submit error = %v, want StatusError 403", err)
	}
}
