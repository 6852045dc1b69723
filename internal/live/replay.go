package live

import (
	"context"
	"sync"

	"algotemplate/internal/domain"
)

var _ Provider = (*ReplayProvider)(nil)

// ReplayProvider reveals a stored history one bar per poll: the n-th call
// returns the first n bars as points. Once every bar is revealed it keeps
// returning the full history.
type ReplayProvider struct {
	mu       sync.Mutex
	points   []Point
	revealed int
}

// NewReplayProvider converts bars into points.
func NewReplayProvider(bars []domain.Bar) *ReplayProvider {
	points := make([]Point, len(bars))
	for i, b := range bars {
		points[i] = Point{Date: formatDate(b.Timestamp), Close: b.Close}
	}
	return &ReplayProvider{points: points}
}

// Latest returns the revealed window.
func (p *ReplayProvider) Latest(_ context.Context) ([]Point, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.revealed < len(p.points) {
		p.revealed++
	}
	out := make([]Point, p.revealed)
	copy(out, p.points[:p.revealed])
	return out, nil
}
