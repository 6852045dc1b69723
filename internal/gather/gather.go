// Package gather defines the interface of the data preparation jobs that
// fill the bar stores used by replay and simulation.
package gather

import "context"

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run fetches and stores data. It returns when done or when ctx is
	// cancelled.
	Run(ctx context.Context) error
}
