// Package pricepath synthesises future close-price paths with geometric
// Brownian motion calibrated from a historical close series.
package pricepath

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat"

	"algotemplate/internal/domain"
)

// ErrInsufficientHistory is returned when fewer than two closes are supplied,
// which leaves no return to estimate drift and volatility from.
var ErrInsufficientHistory = errors.New("price history needs at least 2 closes")

// NormalSource draws standard-normal variates. *rand.Rand from math/rand/v2
// satisfies it.
type NormalSource interface {
	NormFloat64() float64
}

// NewSource returns a seeded, reproducible NormalSource.
func NewSource(seed uint64) NormalSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Params are the GBM drift and volatility per step.
type Params struct {
	Mu    float64
	Sigma float64
}

// Calibrate estimates drift and volatility from simple daily returns
// r_t = (c_t - c_{t-1}) / c_{t-1}. Sigma is the population standard
// deviation.
func Calibrate(closes []float64) (Params, error) {
	if len(closes) < 2 {
		return Params{}, fmt.Errorf("%w: got %d", ErrInsufficientHistory, len(closes))
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev == 0 {
			return Params{}, fmt.Errorf("zero close at index %d", i-1)
		}
		returns = append(returns, (closes[i]-prev)/prev)
	}
	mu, sigma := stat.PopMeanStdDev(returns, nil)
	return Params{Mu: mu, Sigma: sigma}, nil
}

// Generator produces GBM scenario paths.
type Generator struct {
	params Params
	start  float64
	src    NormalSource
}

// NewGenerator calibrates from closes and anchors every path at the last
// close.
func NewGenerator(closes []float64, src NormalSource) (*Generator, error) {
	if src == nil {
		return nil, errors.New("pricepath: nil random source")
	}
	p, err := Calibrate(closes)
	if err != nil {
		return nil, err
	}
	return &Generator{params: p, start: closes[len(closes)-1], src: src}, nil
}

// Params returns the calibrated drift and volatility.
func (g *Generator) Params() Params { return g.params }

// Path draws one path of steps+1 prices; element 0 is the anchor price.
func (g *Generator) Path(steps int) []float64 {
	if steps < 0 {
		steps = 0
	}
	path := make([]float64, steps+1)
	path[0] = g.start

	drift := g.params.Mu - 0.5*g.params.Sigma*g.params.Sigma
	w := 0.0
	for t := 1; t <= steps; t++ {
		w += g.src.NormFloat64()
		path[t] = g.start * math.Exp(drift*float64(t)+g.params.Sigma*w)
	}
	return path
}

// Scenarios draws n independent paths, each from its own shock sequence.
func (g *Generator) Scenarios(n, steps int) [][]float64 {
	paths := make([][]float64, n)
	for i := range paths {
		paths[i] = g.Path(steps)
	}
	return paths
}

// Generate is a convenience wrapper: calibrate from closes and draw
// scenarios paths of steps steps each.
func Generate(closes []float64, steps, scenarios int, src NormalSource) ([][]float64, error) {
	g, err := NewGenerator(closes, src)
	if err != nil {
		return nil, err
	}
	return g.Scenarios(scenarios, steps), nil
}

// ToBars stamps prices onto dates as flat bars. The shorter of the two
// slices bounds the result.
func ToBars(symbol string, dates []time.Time, prices []float64) []domain.Bar {
	n := min(len(dates), len(prices))
	bars := make([]domain.Bar, n)
	for i := 0; i < n; i++ {
		bars[i] = domain.FlatBar(symbol, dates[i], prices[i])
	}
	return bars
}
