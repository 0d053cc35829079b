// Package ratelimit implements the per-backend adaptive rate limiter (§4.6):
// a token-bucket quota that backs off multiplicatively on HTTP 429 and
// recovers after a cooldown with no further 429s.
//
// The token bucket itself is golang.org/x/time/rate. The adaptive backoff
// wraps it in an atomically-swapped state struct rather than locking around
// mutable fields, the same technique catrate.Limiter uses to let Allow
// callers race a worker goroutine without a exclusive lock on the hot path
// (see _staging/catrate/limiter.go's atomic [2]int64 swap within an RWMutex
// section) — here a whole *rate.Limiter plus its bookkeeping is swapped via
// atomic.Pointer instead of two packed ints, since the quota itself (not
// just a timestamp) changes shape when it widens or narrows.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// MaxBackoffMultiplier caps how far a backend's quota can be throttled down
// relative to its baseline (§4.6: "doubles on 429, caps at 16x").
const MaxBackoffMultiplier = 16

// CooldownPeriod is how long a backend must go without a 429 before its
// multiplier resets to 1x on the next acquire (§4.6).
const CooldownPeriod = 60 * time.Second

// MaxRetries bounds the number of acquire-then-retry attempts a caller makes
// after repeated 429s before giving up (§4.6).
const MaxRetries = 3

// MaxBackoff caps the exponential-backoff-with-jitter sleep between retries.
const MaxBackoff = 30 * time.Second

type state struct {
	rate       float64 // baseline events/sec
	burst      int
	multiplier int
	lastThrot  time.Time // zero if never throttled, or restored
	limiter    *rateLimiterFacade
}

// AdaptiveLimiter is a per-backend rate limiter whose effective quota
// shrinks under sustained 429s and recovers once the backend has been quiet
// for CooldownPeriod.
type AdaptiveLimiter struct {
	baseRate  float64
	baseBurst int
	st        atomic.Pointer[state]
}

// New creates an AdaptiveLimiter with the given baseline events/sec and
// burst size (§4.6 gives per-backend baselines, e.g. CrossRef 1/s or 3/s
// with a mailto, arXiv one request per 3s).
func New(eventsPerSecond float64, burst int) *AdaptiveLimiter {
	l := &AdaptiveLimiter{baseRate: eventsPerSecond, baseBurst: burst}
	l.st.Store(&state{
		rate:       eventsPerSecond,
		burst:      burst,
		multiplier: 1,
		limiter:    newRateLimiterFacade(eventsPerSecond, burst),
	})
	return l
}

// Wait blocks until a token is available or ctx is cancelled. It applies
// the recovery check (restore to 1x if quiet for CooldownPeriod) before
// waiting.
func (l *AdaptiveLimiter) Wait(ctx context.Context) error {
	l.maybeRecover()
	return l.st.Load().limiter.Wait(ctx)
}

// Throttle registers a 429 response, doubling the current backoff
// multiplier (capped at MaxBackoffMultiplier) and narrowing the effective
// rate accordingly. retryAfter, if non-nil, is honored as a floor on the
// next allowed acquire: Wait blocks until retryAfter has elapsed before
// taking a token.
func (l *AdaptiveLimiter) Throttle(retryAfter *time.Duration) {
	for {
		old := l.st.Load()
		mult := old.multiplier * 2
		if mult > MaxBackoffMultiplier {
			mult = MaxBackoffMultiplier
		}
		newRate := l.baseRate / float64(mult)
		burst := old.burst
		if burst < 1 {
			burst = 1
		}
		next := &state{
			rate:       newRate,
			burst:      burst,
			multiplier: mult,
			lastThrot:  now(),
			limiter:    newRateLimiterFacade(newRate, burst),
		}
		if l.st.CompareAndSwap(old, next) {
			if retryAfter != nil {
				next.limiter.ReserveDelay(*retryAfter)
			}
			return
		}
	}
}

// maybeRecover resets the multiplier to 1x if the backend has gone
// CooldownPeriod since its last throttle with no further 429s.
func (l *AdaptiveLimiter) maybeRecover() {
	old := l.st.Load()
	if old.multiplier == 1 {
		return
	}
	if old.lastThrot.IsZero() || now().Sub(old.lastThrot) < CooldownPeriod {
		return
	}
	next := &state{
		rate:       l.baseRate,
		burst:      l.baseBurst,
		multiplier: 1,
		limiter:    newRateLimiterFacade(l.baseRate, l.baseBurst),
	}
	l.st.CompareAndSwap(old, next)
}

// Multiplier reports the current backoff multiplier, for logging/telemetry.
func (l *AdaptiveLimiter) Multiplier() int {
	return l.st.Load().multiplier
}

// additiveJitter bounds the random component added on top of the
// exponential base (§4.6: "jitter in [0, 500ms]").
const additiveJitter = 500 * time.Millisecond

// BackoffWithJitter returns the sleep duration for retry attempt n
// (0-indexed): exponential base 1s doubling per attempt, plus additive
// jitter in [0, 500ms], capped at MaxBackoff.
func BackoffWithJitter(attempt int) time.Duration {
	base := time.Second << attempt
	if base <= 0 || base > MaxBackoff {
		base = MaxBackoff
	}
	d := base + time.Duration(rand.Int64N(int64(additiveJitter)+1))
	if d > MaxBackoff {
		d = MaxBackoff
	}
	return d
}

var now = time.Now
