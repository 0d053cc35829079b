package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiterFacade wraps golang.org/x/time/rate.Limiter so AdaptiveLimiter
// can swap whole instances atomically without exposing x/time/rate's own
// mutable-field API to callers outside this package.
type rateLimiterFacade struct {
	inner             *rate.Limiter
	blockedUntilNanos atomic.Int64
}

func newRateLimiterFacade(eventsPerSecond float64, burst int) *rateLimiterFacade {
	if eventsPerSecond <= 0 {
		eventsPerSecond = 0.01
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimiterFacade{inner: rate.NewLimiter(rate.Limit(eventsPerSecond), burst)}
}

func (f *rateLimiterFacade) Wait(ctx context.Context) error {
	if blocked := time.Until(f.blockedUntil()); blocked > 0 {
		t := time.NewTimer(blocked)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return f.inner.Wait(ctx)
}

func (f *rateLimiterFacade) blockedUntil() time.Time {
	return time.Unix(0, f.blockedUntilNanos.Load())
}

// ReserveDelay imposes a hard floor on the next Wait call: no token will be
// handed out until d has elapsed, modelling a server-supplied Retry-After.
func (f *rateLimiterFacade) ReserveDelay(d time.Duration) {
	f.blockedUntilNanos.Store(time.Now().Add(d).UnixNano())
}
