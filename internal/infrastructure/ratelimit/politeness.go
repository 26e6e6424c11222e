// Package ratelimit paces requests that a single adapter sends to one site.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Politeness enforces a minimum interval between consecutive requests of one
// adapter. There is no shared state between instances.
type Politeness struct {
	interval time.Duration
	jitter   time.Duration
	limiter  *rate.Limiter
	jitterFn func(max time.Duration) time.Duration
}

// NewPoliteness creates a limiter that keeps at least interval between requests,
// plus a random extra delay in [0, jitter) whenever a request has to wait.
func NewPoliteness(interval, jitter time.Duration) *Politeness {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Politeness{
		interval: interval,
		jitter:   jitter,
		limiter:  rate.NewLimiter(limit, 1),
		jitterFn: randomJitter,
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}

// Interval returns the configured minimum interval
func (p *Politeness) Interval() time.Duration {
	return p.interval
}

// Wait blocks until the adapter may send its next request. It returns
// ctx.Err() if the context ends first; the reserved slot is then given back.
func (p *Politeness) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r := p.limiter.Reserve()
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	delay += p.jitterFn(p.jitter)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
