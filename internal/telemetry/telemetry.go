// Package telemetry wires the engine's structured logging, following the
// teacher's own approach of building loggers atop github.com/joeycumines/
// logiface rather than logging directly through zerolog or the standard
// library.
package telemetry

import (
	"io"
	"time"

	"github.com/joeycumines/logiface"
	izerolog "github.com/joeycumines/logiface-zerolog"
	"github.com/rs/zerolog"
)

// Logger is the engine-wide structured logger type.
type Logger = logiface.Logger[*izerolog.Event]

// New builds a Logger writing leveled, timestamped JSON to w. level accepts
// the usual zerolog level names ("debug", "info", "warn", "error"); an
// unrecognised value falls back to "info".
func New(w io.Writer, level string) *Logger {
	zl := zerolog.New(w).With().Timestamp().Logger()
	return logiface.New[*izerolog.Event](
		izerolog.WithZerolog(zl),
		logiface.WithLevel[*izerolog.Event](parseLevel(level)),
	)
}

// Nop returns a Logger that discards everything, for callers (tests, library
// consumers) that don't want engine logs.
func Nop() *Logger {
	return New(io.Discard, "error")
}

func parseLevel(level string) logiface.Level {
	switch level {
	case "trace":
		return logiface.LevelTrace
	case "debug":
		return logiface.LevelDebug
	case "warn", "warning":
		return logiface.LevelWarning
	case "error":
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

// BackendFailure logs a single backend query failure. Called from the
// Checker's retry loop so a malformed or erroring backend leaves a trail
// without the Checker depending on a concrete logging implementation.
func BackendFailure(log *Logger, dbName string, attempt int, err error) {
	log.Warning().
		Str("db", dbName).
		Int("attempt", attempt).
		Err(err).
		Log("backend query failed")
}

// RateLimiterThrottled logs an adaptive rate limiter backing off after a 429.
func RateLimiterThrottled(log *Logger, dbName string, multiplier int, retryAfter *time.Duration) {
	b := log.Notice().
		Str("db", dbName).
		Int("multiplier", multiplier)
	if retryAfter != nil {
		b = b.Dur("retry_after", *retryAfter)
	}
	b.Log("rate limiter throttled")
}

// RateLimiterRecovered logs an adaptive rate limiter resetting to baseline
// after its cooldown period elapses without further throttling.
func RateLimiterRecovered(log *Logger, dbName string) {
	log.Info().Str("db", dbName).Log("rate limiter recovered to baseline")
}

// PoolStarted logs Validation Pool startup (§4.8).
func PoolStarted(log *Logger, workers int) {
	log.Info().Int("workers", workers).Log("validation pool started")
}

// PoolShutdown logs Validation Pool shutdown.
func PoolShutdown(log *Logger) {
	log.Info().Log("validation pool shutdown")
}

// CacheStats logs a snapshot of the query cache's hit/miss counters, for
// periodic reporting by a long-running batch driver.
func CacheStats(log *Logger, hits, misses uint64) {
	log.Info().
		Uint64("hits", hits).
		Uint64("misses", misses).
		Log("query cache stats")
}
