// Package cache implements the in-memory Query Cache (§4.4): a TTL cache
// keyed by (normalized title, backend name), avoiding redundant HTTP calls
// when the same title is queried against the same database more than once
// in a batch.
//
// Storage is github.com/patrickmn/go-cache (grounded on
// jnauber-labe/tools/spindel/server.go, which layers a comparable TTL cache
// in front of the same kind of backend-metadata lookup); QueryCache adds the
// per-entry positive/negative TTL selection, the cache-key composition, and
// hit/miss counters go-cache doesn't track itself. Only successful outcomes
// (found or clean not-found) are ever inserted — callers must not insert
// transient errors, timeouts, or 429s.
package cache

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/CristianCantoro/hallucinator/internal/backend"
	"github.com/CristianCantoro/hallucinator/internal/normalize"
)

// DefaultPositiveTTL is the default time-to-live for "found" entries.
const DefaultPositiveTTL = 24 * time.Hour

// DefaultNegativeTTL is the default time-to-live for "not found" entries.
const DefaultNegativeTTL = 6 * time.Hour

// QueryCache is a thread-safe cache of backend query results.
type QueryCache struct {
	store       *gocache.Cache
	positiveTTL time.Duration
	negativeTTL time.Duration
	hits        atomic.Uint64
	misses      atomic.Uint64

	// group collapses concurrent cache-miss queries for the same
	// (title, backend) key into a single in-flight call, so that two
	// references sharing a title in the same batch never double-query the
	// same backend (Testable Property 5 / scenario S3).
	group singleflight.Group
}

// New creates a QueryCache with the given positive/negative TTLs. A zero
// duration falls back to the package default for that kind of entry.
func New(positiveTTL, negativeTTL time.Duration) *QueryCache {
	if positiveTTL <= 0 {
		positiveTTL = DefaultPositiveTTL
	}
	if negativeTTL <= 0 {
		negativeTTL = DefaultNegativeTTL
	}
	return &QueryCache{
		store:       gocache.New(gocache.NoExpiration, 10*time.Minute),
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
	}
}

func cacheKey(title, dbName string) string {
	return normalize.Title(title) + "\x00" + dbName
}

// Get looks up a cached result for (title, dbName). ok is false on a miss
// or an expired entry (expired entries stay stored until go-cache's
// periodic cleanup removes them).
func (c *QueryCache) Get(title, dbName string) (result backend.DbQueryResult, ok bool) {
	key := cacheKey(title, dbName)
	v, found := c.store.Get(key)
	if !found {
		c.misses.Add(1)
		return backend.DbQueryResult{}, false
	}
	c.hits.Add(1)
	return v.(backend.DbQueryResult), true
}

// Insert stores a successful query result. Only call this for well-formed
// outcomes (found or not-found) — never for transient errors, timeouts, or
// rate limiting (§4.4).
func (c *QueryCache) Insert(title, dbName string, result backend.DbQueryResult) {
	key := cacheKey(title, dbName)
	ttl := c.negativeTTL
	if result.Found() {
		ttl = c.positiveTTL
	}
	c.store.Set(key, result, ttl)
}

// GetOrQuery returns the cached result for (title, dbName) if present;
// otherwise it calls query exactly once even if multiple goroutines request
// the same key concurrently, caches a successful result, and returns it to
// every waiter.
func (c *QueryCache) GetOrQuery(
	title, dbName string,
	query func() (backend.DbQueryResult, error),
) (backend.DbQueryResult, bool, error) {
	if result, ok := c.Get(title, dbName); ok {
		return result, true, nil
	}

	key := cacheKey(title, dbName)
	v, err, _ := c.group.Do(key, func() (any, error) {
		result, err := query()
		if err != nil {
			return backend.DbQueryResult{}, err
		}
		c.Insert(title, dbName, result)
		return result, nil
	})
	if err != nil {
		return backend.DbQueryResult{}, false, err
	}
	return v.(backend.DbQueryResult), false, nil
}

// Hits returns the number of cache hits since creation.
func (c *QueryCache) Hits() uint64 { return c.hits.Load() }

// Misses returns the number of cache misses since creation.
func (c *QueryCache) Misses() uint64 { return c.misses.Load() }

// Len returns the number of entries currently cached (including not-yet
// pruned expired entries).
func (c *QueryCache) Len() int { return c.store.ItemCount() }
