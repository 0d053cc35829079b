package cache

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CristianCantoro/hallucinator/internal/backend"
)

func strPtr(s string) *string { return &s }

func TestGetMissThenInsertThenHit(t *testing.T) {
	c := New(time.Minute, time.Minute)

	_, ok := c.Get("Attention Is All You Need", "crossref")
	assert.False(t, ok)
	assert.EqualValues(t, 1, c.Misses())

	result := backend.DbQueryResult{FoundTitle: strPtr("Attention Is All You Need")}
	c.Insert("Attention Is All You Need", "crossref", result)

	got, ok := c.Get("Attention Is All You Need", "crossref")
	require.True(t, ok)
	assert.Equal(t, result, got)
	assert.EqualValues(t, 1, c.Hits())
}

func TestKeyIsNormalizedAndPerBackend(t *testing.T) {
	c := New(time.Minute, time.Minute)
	result := backend.DbQueryResult{FoundTitle: strPtr("X")}
	c.Insert("Résumé of Methods", "crossref", result)

	_, ok := c.Get("RESUME OF METHODS!!", "crossref")
	assert.True(t, ok, "cache key must normalize titles before comparing")

	_, ok = c.Get("Résumé of Methods", "arxiv")
	assert.False(t, ok, "different backend must be a different cache entry")
}

func TestNegativeResultCachedSeparately(t *testing.T) {
	c := New(time.Minute, time.Minute)
	c.Insert("Nonexistent Paper", "crossref", backend.DbQueryResult{})

	got, ok := c.Get("Nonexistent Paper", "crossref")
	require.True(t, ok)
	assert.False(t, got.Found())
}

func TestGetOrQuerySingleflightCollapsesDuplicateCalls(t *testing.T) {
	c := New(time.Minute, time.Minute)
	var calls atomic.Int32

	query := func() (backend.DbQueryResult, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return backend.DbQueryResult{FoundTitle: strPtr("Shared Title")}, nil
	}

	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		go func() {
			_, _, err := c.GetOrQuery("Shared Title", "crossref", query)
			assert.NoError(t, err)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}
	assert.EqualValues(t, 1, calls.Load(), "concurrent misses on the same key must collapse to one query call")
}

func TestGetOrQueryReturnsCachedOnSecondCall(t *testing.T) {
	c := New(time.Minute, time.Minute)
	var calls atomic.Int32
	query := func() (backend.DbQueryResult, error) {
		calls.Add(1)
		return backend.DbQueryResult{FoundTitle: strPtr("T")}, nil
	}

	_, fromCache1, err := c.GetOrQuery("T", "arxiv", query)
	require.NoError(t, err)
	assert.False(t, fromCache1)

	_, fromCache2, err := c.GetOrQuery("T", "arxiv", query)
	require.NoError(t, err)
	assert.True(t, fromCache2)
	assert.EqualValues(t, 1, calls.Load())
}
