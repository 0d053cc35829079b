// Package backend defines the uniform backend contract (§4.3) and the
// registry of scholarly-database clients that implement it (§4.5).
package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/CristianCantoro/hallucinator/internal/hallerr"
)

// DbQueryResult is one backend's answer for one title query: a found title
// plus authors and URL, or a "not found" verdict when FoundTitle is nil
// (§3). Authors is empty in the not-found case.
type DbQueryResult struct {
	FoundTitle *string
	Authors    []string
	URL        *string
}

// Found reports whether the result represents a match.
func (r DbQueryResult) Found() bool { return r.FoundTitle != nil }

// ProbeStatus classifies the outcome of one backend probe (§3 DbResult).
type ProbeStatus string

const (
	StatusFound       ProbeStatus = "found"
	StatusNotFound    ProbeStatus = "not_found"
	StatusTimeout     ProbeStatus = "timeout"
	StatusError       ProbeStatus = "error"
	StatusRateLimited ProbeStatus = "rate_limited"
)

// DbResult records bookkeeping about one backend probe: which backend, what
// happened, how long it took, and (on success) the result itself (§3).
type DbResult struct {
	DBName  string
	Status  ProbeStatus
	Elapsed time.Duration
	Result  *DbQueryResult
}

// ErrNotFound marks a well-formed empty response: not an error (§7).
var ErrNotFound = hallerr.ErrNotFound

// RateLimitedError wraps an HTTP 429 response, carrying the server-supplied
// Retry-After if any (§4.6).
type RateLimitedError struct {
	RetryAfter *time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter != nil {
		return fmt.Sprintf("backend: rate limited, retry after %s", *e.RetryAfter)
	}
	return "backend: rate limited"
}

// MalformedResponseError wraps a parse failure from a backend response
// (§7 BackendMalformedResponse): treated like a transient failure, plus a
// log warning at the call site.
type MalformedResponseError struct {
	Backend string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("backend %s: malformed response: %v", e.Backend, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Backend is the uniform capability set every scholarly-database client
// implements (§4.3) — a small interface rather than an inheritance
// hierarchy, per §9's "capability set, not inheritance" design note.
//
// Query returns (result, nil) on a well-formed answer (found or not found —
// ErrNotFound is NOT returned for a clean not-found; it is signalled by
// DbQueryResult.FoundTitle == nil), a *RateLimitedError on HTTP 429, or any
// other error for a transient failure. Backends must treat a missing title
// as an immediate not-found without performing I/O.
type Backend interface {
	Name() string
	Query(ctx context.Context, title string, client *http.Client) (DbQueryResult, error)
	AuthorCheckEnabled() bool
}
