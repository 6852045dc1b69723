package builtins

import (
	"context"
	"testing"
	"time"

	"algotemplate/internal/config"
	"algotemplate/internal/domain"
)

func bar(i int, price float64) domain.Bar {
	return domain.FlatBar("SIM", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i), price)
}

func TestNewRegistryHasBuiltins(t *testing.T) {
	names := NewRegistry().List()
	want := []string{"buy-and-hold", "noop", "sma-cross"}
	if len(names) != len(want) {
		t.Fatalf("List() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestNoopNeverTrades(t *testing.T) {
	s := &Noop{}
	for i := 0; i < 5; i++ {
		orders, err := s.OnBar(context.Background(), bar(i, 100), domain.Portfolio{Cash: 1000})
		if err != nil || len(orders) != 0 {
			t.Fatalf("OnBar = %v, %v; want no orders", orders, err)
		}
	}
}

func TestBuyAndHoldAllIn(t *testing.T) {
	s := &BuyAndHold{}
	if err := s.Init(context.Background(), &config.RunConfig{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	orders, _ := s.OnBar(context.Background(), bar(0, 30), domain.Portfolio{Cash: 100})
	if len(orders) != 1 || orders[0].Side != domain.OrderSideBuy || orders[0].Size != 3 {
		t.Fatalf("first OnBar orders = %+v, want buy 3", orders)
	}
	orders, _ = s.OnBar(context.Background(), bar(1, 30), domain.Portfolio{Cash: 10, Holdings: 3})
	if len(orders) != 0 {
		t.Errorf("second OnBar orders = %+v, want none", orders)
	}
}

func TestSMACrossInitValidation(t *testing.T) {
	rc := &config.RunConfig{Params: map[string]any{"short_period": "5", "long_period": "3"}}
	if err := (&SMACross{}).Init(context.Background(), rc); err == nil {
		t.Error("Init accepted short_period >= long_period")
	}
}

func TestSMACrossSignals(t *testing.T) {
	s := NewSMACross(2, 3, 10)
	if err := s.Init(context.Background(), &config.RunConfig{}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	ctx := context.Background()
	var p domain.Portfolio
	prices := []float64{10, 9, 8, 7, 9, 12, 11, 8, 6}
	var sides []domain.OrderSide
	for i, price := range prices {
		orders, err := s.OnBar(ctx, bar(i, price), p)
		if err != nil {
			t.Fatalf("OnBar %d: %v", i, err)
		}
		for _, o := range orders {
			sides = append(sides, o.Side)
			p.Holdings += o.Signed()
		}
	}

	if len(sides) != 2 || sides[0] != domain.OrderSideBuy || sides[1] != domain.OrderSideSell {
		t.Fatalf("order sides = %v, want [buy sell]", sides)
	}
	if p.Holdings != 0 {
		t.Errorf("holdings = %v after round trip, want 0", p.Holdings)
	}
}
