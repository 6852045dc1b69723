package pricepath

import (
	"errors"
	"math"
	"testing"
	"time"

	"algotemplate/internal/util"
)

// constSource always returns the same shock.
type constSource float64

func (c constSource) NormFloat64() float64 { return float64(c) }

func TestCalibrate(t *testing.T) {
	p, err := Calibrate([]float64{100, 110, 99})
	if err != nil {
		t.Fatalf("Calibrate returned error: %v", err)
	}
	// Returns are +0.10 and -0.10.
	if math.Abs(p.Mu) > 1e-12 {
		t.Errorf("Mu = %v, want 0", p.Mu)
	}
	if math.Abs(p.Sigma-0.1) > 1e-12 {
		t.Errorf("Sigma = %v, want 0.1", p.Sigma)
	}
}

func TestCalibrateInsufficientHistory(t *testing.T) {
	for _, closes := range [][]float64{nil, {100}} {
		if _, err := Calibrate(closes); !errors.Is(err, ErrInsufficientHistory) {
			t.Errorf("Calibrate(%v) error = %v, want ErrInsufficientHistory", closes, err)
		}
	}
}

func TestPathStartsAtLastClose(t *testing.T) {
	closes := []float64{10, 10.5, 10.2, 11.7, 12.345}
	for seed := uint64(0); seed < 20; seed++ {
		paths, err := Generate(closes, 30, 3, NewSource(seed))
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if len(paths) != 3 {
			t.Fatalf("Generate returned %d paths, want 3", len(paths))
		}
		for i, p := range paths {
			if len(p) != 31 {
				t.Fatalf("path %d has %d points, want 31", i, len(p))
			}
			if p[0] != 12.345 {
				t.Errorf("seed %d path %d: price_0 = %v, want 12.345", seed, i, p[0])
			}
		}
	}
}

func TestPathFormula(t *testing.T) {
	g, err := NewGenerator([]float64{100, 110, 99}, constSource(1))
	if err != nil {
		t.Fatalf("NewGenerator returned error: %v", err)
	}
	path := g.Path(2)
	sigma := g.Params().Sigma
	drift := g.Params().Mu - 0.5*sigma*sigma

	// With a constant shock of 1, W_t = t.
	for tt := 1; tt <= 2; tt++ {
		want := 99 * math.Exp(drift*float64(tt)+sigma*float64(tt))
		if math.Abs(path[tt]-want) > 1e-9 {
			t.Errorf("path[%d] = %v, want %v", tt, path[tt], want)
		}
	}
}

func TestScenariosIndependent(t *testing.T) {
	g, err := NewGenerator([]float64{100, 101, 99, 102}, NewSource(42))
	if err != nil {
		t.Fatalf("NewGenerator returned error: %v", err)
	}
	paths := g.Scenarios(2, 10)
	same := true
	for i := 1; i < len(paths[0]); i++ {
		if paths[0][i] != paths[1][i] {
			same = false
		}
	}
	if same {
		t.Error("two scenarios produced identical paths")
	}
}

func TestSameSeedReproducible(t *testing.T) {
	closes := []float64{100, 101, 99, 102}
	a, _ := Generate(closes, 10, 1, NewSource(7))
	b, _ := Generate(closes, 10, 1, NewSource(7))
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("seeded paths diverge at %d: %v vs %v", i, a[0][i], b[0][i])
		}
	}
}

func TestToBarsStrictlyIncreasing(t *testing.T) {
	cal := util.NewTradingCalendar(nil)
	last := time.Date(2017, 8, 11, 0, 0, 0, 0, time.UTC)
	horizon := time.Date(2017, 9, 11, 0, 0, 0, 0, time.UTC)
	steps := cal.BusinessDaysBetween(last, horizon)

	paths, err := Generate([]float64{50, 51, 52}, steps, 1, NewSource(1))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	bars := ToBars("SIM", cal.NextBusinessDays(last, steps), paths[0])
	if len(bars) != steps+1 {
		t.Fatalf("ToBars returned %d bars, want %d", len(bars), steps+1)
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			t.Fatalf("bar %d timestamp %v not after %v", i, bars[i].Timestamp, bars[i-1].Timestamp)
		}
		if err := bars[i].Validate(); err != nil {
			t.Errorf("bar %d invalid: %v", i, err)
		}
	}
	if bars[0].Close != 52 {
		t.Errorf("first bar close = %v, want 52", bars[0].Close)
	}
}
