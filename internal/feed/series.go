package feed

import (
	"context"
	"fmt"
	"sync"

	"algotemplate/internal/domain"
)

var _ Feed = (*Series)(nil)

// Series serves a pre-materialised, strictly increasing sequence of bars. It
// backs both the simulated and the historical-replay variants.
type Series struct {
	mu    sync.Mutex
	name  string
	bars  []domain.Bar
	pos   int
	state domain.FeedState
}

// NewSimulated creates a feed over a generated price path.
func NewSimulated(bars []domain.Bar) (*Series, error) {
	return newSeries("simulated", bars)
}

// NewReplay creates a feed over bars loaded from storage.
func NewReplay(bars []domain.Bar) (*Series, error) {
	return newSeries("replay", bars)
}

func newSeries(name string, bars []domain.Bar) (*Series, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s feed: no bars", name)
	}
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("%s feed: bar %d: %w", name, i, err)
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("%s feed: bar %d at %s not after %s: %w",
				name, i, b.Timestamp, bars[i-1].Timestamp, domain.ErrInvalidBar)
		}
	}
	owned := make([]domain.Bar, len(bars))
	copy(owned, bars)
	return &Series{name: name, bars: owned, state: domain.FeedLive}, nil
}

// Name returns the variant name.
func (s *Series) Name() string { return s.name }

// Start is a no-op; the data is already loaded.
func (s *Series) Start(context.Context) error { return nil }

// Stop ends the session early.
func (s *Series) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.FeedExhausted {
		s.state = domain.FeedDisconnected
	}
	return nil
}

// Pull returns the next bar in order. Once the series is exhausted every
// further call returns ErrEndOfStream and changes nothing.
func (s *Series) Pull(ctx context.Context) (domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return domain.Bar{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.FeedLive {
		return domain.Bar{}, ErrEndOfStream
	}
	if s.pos >= len(s.bars) {
		s.state = domain.FeedExhausted
		return domain.Bar{}, ErrEndOfStream
	}
	b := s.bars[s.pos]
	s.pos++
	return b, nil
}

// State reports LIVE until the series is exhausted or stopped.
func (s *Series) State() domain.FeedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsLive is always false.
func (s *Series) IsLive() bool { return false }

// HasData reports whether bars remain.
func (s *Series) HasData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == domain.FeedLive && s.pos < len(s.bars)
}

// Len returns the total number of bars.
func (s *Series) Len() int { return len(s.bars) }
