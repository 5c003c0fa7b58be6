package resync

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer enforces a process-wide minimum spacing between outbound platform
// calls: N requests per second, with no bypass. Wait blocks (honoring ctx
// cancellation) until a slot is available.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer builds a Pacer allowing requestsPerSecond sustained, with a burst
// of 1 so calls are evenly spaced rather than allowed to batch.
func NewPacer(requestsPerSecond float64) *Pacer {
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1)}
}

// Wait blocks until the pacer permits the next call, or ctx is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
