// Package feed delivers time-ordered bars to the execution engine from a
// simulated path, a replayed history or a polled live provider.
package feed

import (
	"context"
	"errors"

	"algotemplate/internal/domain"
)

var (
	// ErrEndOfStream signals that the feed has no more bars. It is the
	// normal termination signal of a run.
	ErrEndOfStream = errors.New("end of stream")

	// ErrNoData means the pull produced no bar but the feed may produce one
	// later (live feeds only).
	ErrNoData = errors.New("no data this pull")

	// ErrRetriesExhausted is returned by a live feed whose retry policy
	// caps consecutive failures.
	ErrRetriesExhausted = errors.New("live feed retries exhausted")
)

// Feed is the "next bar" protocol shared by every data source. Pull is not
// safe to call from more than one goroutine at a time on stateful sources,
// so implementations serialise it.
type Feed interface {
	// Name identifies the variant ("simulated", "replay", "live").
	Name() string

	// Start prepares the feed. Pre-materialised feeds are ready on
	// construction; live feeds move to CONNECTING.
	Start(ctx context.Context) error

	// Stop ends the session. Subsequent pulls return ErrEndOfStream.
	Stop() error

	// Pull returns the next bar, ErrEndOfStream when the feed is done, or
	// ErrNoData when a live poll yielded nothing.
	Pull(ctx context.Context) (domain.Bar, error)

	// State reports the connection state.
	State() domain.FeedState

	// IsLive reports whether bars come from a live source.
	IsLive() bool

	// HasData reports whether a pull can currently yield a bar.
	HasData() bool
}
