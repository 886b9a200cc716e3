package telemetry

import "context"

// Source supplies battery readings on demand.
type Source interface {
	Read(ctx context.Context) (Reading, error)
}

// Reading is a single battery observation.
type Reading struct {
	// StateOfCharge is the remaining capacity in percent, within [0, 100].
	StateOfCharge float64
	// SecondsRemaining is the platform's own estimate until empty (or full
	// while charging). Only meaningful when RemainingKnown is set.
	SecondsRemaining int
	RemainingKnown   bool
}
