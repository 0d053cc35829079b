// Package checker implements the Reference Checker (§4.7): for one
// reference, fans out to all enabled backends concurrently, arbitrates
// their responses per §4.2, and enriches the result with DOI/arXiv/
// retraction probes.
package checker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CristianCantoro/hallucinator/internal/backend"
	"github.com/CristianCantoro/hallucinator/internal/cache"
	"github.com/CristianCantoro/hallucinator/internal/match"
	"github.com/CristianCantoro/hallucinator/internal/normalize"
	"github.com/CristianCantoro/hallucinator/internal/probes"
	"github.com/CristianCantoro/hallucinator/internal/ratelimit"
	"github.com/CristianCantoro/hallucinator/internal/telemetry"
)

// Status is the per-reference verdict (§3 "Status semantics").
type Status string

const (
	StatusVerified       Status = "verified"
	StatusNotFound       Status = "not_found"
	StatusAuthorMismatch Status = "author_mismatch"
)

// Reference is one bibliographic citation to validate (§3). Immutable
// after extraction — the engine never mutates it.
type Reference struct {
	RawCitation string
	Title       *string
	Authors     []string
	DOI         *string
	ArxivID     *string
}

// DoiInfo records the DOI-resolution probe outcome (§3, §4.10).
type DoiInfo struct {
	Valid bool
	Title *string
}

// ArxivInfo records the arXiv-identifier probe outcome (§3, §4.10).
type ArxivInfo struct {
	Valid bool
	Title *string
}

// RetractionInfo records the retraction-check outcome (§3, §4.10).
type RetractionInfo struct {
	IsRetracted bool
	NoticeDOI   *string
	Source      *string
}

// ValidationResult is the per-reference output (§3).
type ValidationResult struct {
	Title          string
	RawCitation    string
	Status         Status
	Source         *string
	RefAuthors     []string
	FoundAuthors   []string
	PaperURL       *string
	FailedDBs      []string
	DoiInfo        *DoiInfo
	ArxivInfo      *ArxivInfo
	RetractionInfo *RetractionInfo
}

// DbResult and DbQueryResult are re-exported from internal/backend so
// callers of this package (internal/pool, the root package) don't need to
// import both.
type DbResult = backend.DbResult
type DbQueryResult = backend.DbQueryResult

// PerBackendCallback is invoked once per completed backend probe (§4.7 step
// 3d), primarily so the Validation Pool can emit DatabaseQueryComplete
// events without the Checker depending on internal/progress directly.
type PerBackendCallback func(DbResult)

// Deps bundles the collaborators the Checker shares across all of its
// concurrent Check calls (one HTTP client, one cache, one limiter set).
type Deps struct {
	Registry *backend.Registry
	Cache    *cache.QueryCache
	Limiters map[string]*ratelimit.AdaptiveLimiter
	Client   *http.Client
	Prober   *probes.Prober
	// Log receives structured diagnostics (backend failures, rate-limiter
	// transitions). A nil Log is replaced with telemetry.Nop().
	Log *telemetry.Logger
}

// Checker runs the per-reference validation algorithm (§4.7).
type Checker struct {
	deps Deps
}

func New(deps Deps) *Checker {
	if deps.Log == nil {
		deps.Log = telemetry.Nop()
	}
	return &Checker{deps: deps}
}

// Check runs one pass of the algorithm (§4.7 steps 1-9) against ref, using
// timeout as the per-backend deadline (10s first pass, 5s retry pass) and
// restricting the backend set to onlyBackends when non-nil (the retry
// pass's "restricted to the failed backends").
func (c *Checker) Check(
	ctx context.Context,
	ref Reference,
	timeout time.Duration,
	onlyBackends map[string]struct{},
	onProbe PerBackendCallback,
) ValidationResult {
	rawTitle := ""
	if ref.Title != nil {
		rawTitle = *ref.Title
	}

	result := ValidationResult{
		Title:       rawTitle,
		RawCitation: ref.RawCitation,
		Status:      StatusNotFound,
		RefAuthors:  ref.Authors,
	}

	if ref.Title == nil || *ref.Title == "" {
		return result
	}

	dbResults := c.probeBackends(ctx, *ref.Title, timeout, onlyBackends, onProbe)

	status, source, foundAuthors, paperURL := c.arbitrate(*ref.Title, ref.Authors, dbResults)
	result.Status = status
	result.Source = source
	result.FoundAuthors = foundAuthors
	result.PaperURL = paperURL

	if ref.DOI != nil && *ref.DOI != "" {
		doiResult := c.deps.Prober.ResolveDOI(ctx, c.deps.Client, *ref.DOI)
		result.DoiInfo = &DoiInfo{Valid: doiResult.Valid, Title: doiResult.Title}
	}
	if ref.ArxivID != nil && *ref.ArxivID != "" {
		arxivResult := c.deps.Prober.ResolveArxiv(ctx, c.deps.Client, *ref.ArxivID)
		result.ArxivInfo = &ArxivInfo{Valid: arxivResult.Valid, Title: arxivResult.Title}
	}

	retractionDOI := ""
	if ref.DOI != nil {
		retractionDOI = *ref.DOI
	}
	if retractionDOI != "" {
		retraction := c.deps.Prober.CheckRetraction(ctx, c.deps.Client, retractionDOI)
		result.RetractionInfo = &RetractionInfo{
			IsRetracted: retraction.IsRetracted,
			NoticeDOI:   retraction.NoticeDOI,
			Source:      retraction.Source,
		}
	}

	result.FailedDBs = failedBackendNames(dbResults)
	return result
}

// CheckWithRetry runs the first pass, then the retry pass per §4.7's "Retry
// pass" rule: if the first pass is NotFound and failed_dbs is non-empty,
// retry restricted to the failed backends with the shorter timeout; if the
// retry elevates the status, it replaces the first-pass result.
func (c *Checker) CheckWithRetry(
	ctx context.Context,
	ref Reference,
	firstTimeout, retryTimeout time.Duration,
	onProbe PerBackendCallback,
) (result ValidationResult, retried bool) {
	first := c.Check(ctx, ref, firstTimeout, nil, onProbe)
	if first.Status != StatusNotFound || len(first.FailedDBs) == 0 {
		return first, false
	}

	restricted := make(map[string]struct{}, len(first.FailedDBs))
	for _, name := range first.FailedDBs {
		restricted[name] = struct{}{}
	}

	retry := c.Check(ctx, ref, retryTimeout, restricted, onProbe)
	if retry.Status == StatusNotFound {
		return first, true
	}
	// retry.FailedDBs is the retry pass's own failed set, which correctly
	// excludes whichever restricted backend just rescued this reference.
	return retry, true
}

// arbitrate applies §4.2's classification rules across all backend
// results: Verified if some backend's title matches and its authors
// overlap (or author-checking is disabled for it); AuthorMismatch if some
// backend's title matches but none of the title-matching backends' authors
// overlap; otherwise NotFound. Among multiple matching backends, the first
// in fixed priority order is the arbitrating source (§9 Open Question,
// resolved — see DESIGN.md).
func (c *Checker) arbitrate(refTitle string, refAuthors []string, results []DbResult) (
	status Status, source *string, foundAuthors []string, paperURL *string,
) {
	backends := c.deps.Registry.Backends()
	byName := make(map[string]backend.Backend, len(backends))
	for _, b := range backends {
		byName[b.Name()] = b
	}

	var titleMatchName string
	var titleMatchAuthors []string
	var titleMatchURL *string
	matchedAny := false
	citedAuthors := normalize.Authors(refAuthors)

	for _, r := range results {
		if r.Status != backend.StatusFound || r.Result == nil || !r.Result.Found() {
			continue
		}
		if !match.TitleMatches(refTitle, *r.Result.FoundTitle, 0) {
			continue
		}

		b := byName[r.DBName]
		authorsOK := len(refAuthors) == 0 ||
			(b != nil && !b.AuthorCheckEnabled()) ||
			match.AuthorsMatch(citedAuthors, normalize.Authors(r.Result.Authors), 0)

		if authorsOK {
			name := r.DBName
			return StatusVerified, &name, r.Result.Authors, r.Result.URL
		}

		if !matchedAny {
			matchedAny = true
			titleMatchName = r.DBName
			titleMatchAuthors = r.Result.Authors
			titleMatchURL = r.Result.URL
		}
	}

	if matchedAny {
		name := titleMatchName
		return StatusAuthorMismatch, &name, titleMatchAuthors, titleMatchURL
	}
	return StatusNotFound, nil, nil, nil
}

func (c *Checker) probeBackends(
	ctx context.Context,
	title string,
	timeout time.Duration,
	onlyBackends map[string]struct{},
	onProbe PerBackendCallback,
) []DbResult {
	backends := c.deps.Registry.Backends()
	results := make([]DbResult, len(backends))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range backends {
		i, b := i, b
		if onlyBackends != nil {
			if _, ok := onlyBackends[b.Name()]; !ok {
				results[i] = DbResult{DBName: b.Name(), Status: backend.StatusNotFound}
				continue
			}
		}
		g.Go(func() error {
			results[i] = c.probeOne(gctx, b, title, timeout)
			if onProbe != nil {
				onProbe(results[i])
			}
			return nil
		})
	}
	_ = g.Wait() // probeOne never returns an error; all outcomes are encoded in DbResult

	return results
}

// probeOne runs one backend's query for one title, routed through the
// Query Cache's GetOrQuery so that concurrent probes for the same
// (title, backend) pair — e.g. two references sharing a title within the
// same batch — collapse into a single backend call instead of racing past
// the cache-miss check independently (§4.4 / Testable Property 5).
func (c *Checker) probeOne(ctx context.Context, b backend.Backend, title string, timeout time.Duration) DbResult {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limiter := c.deps.Limiters[b.Name()]

	result, _, err := c.deps.Cache.GetOrQuery(title, b.Name(), func() (backend.DbQueryResult, error) {
		var lastResult backend.DbQueryResult
		var lastErr error
		for attempt := 0; attempt < ratelimit.MaxRetries; attempt++ {
			if limiter != nil {
				if err := limiter.Wait(reqCtx); err != nil {
					return backend.DbQueryResult{}, err
				}
			}

			lastResult, lastErr = b.Query(reqCtx, title, c.deps.Client)
			if lastErr == nil {
				return lastResult, nil
			}

			var rle *backend.RateLimitedError
			if !errors.As(lastErr, &rle) {
				telemetry.BackendFailure(c.deps.Log, b.Name(), attempt, lastErr)
				return backend.DbQueryResult{}, lastErr
			}

			if limiter != nil {
				limiter.Throttle(rle.RetryAfter)
				telemetry.RateLimiterThrottled(c.deps.Log, b.Name(), limiter.Multiplier(), rle.RetryAfter)
			}

			wait := ratelimit.BackoffWithJitter(attempt)
			if rle.RetryAfter != nil {
				wait = *rle.RetryAfter
			}
			select {
			case <-reqCtx.Done():
				return backend.DbQueryResult{}, reqCtx.Err()
			case <-time.After(wait):
			}
		}

		return backend.DbQueryResult{}, lastErr
	})

	if err != nil {
		var rle *backend.RateLimitedError
		if errors.As(err, &rle) {
			return DbResult{DBName: b.Name(), Status: backend.StatusRateLimited, Elapsed: time.Since(start)}
		}
		return classifyError(b.Name(), err, start)
	}

	return DbResult{
		DBName:  b.Name(),
		Status:  statusForResult(result),
		Elapsed: time.Since(start),
		Result:  &result,
	}
}

func classifyError(dbName string, err error, start time.Time) DbResult {
	status := backend.StatusError
	if errors.Is(err, context.DeadlineExceeded) {
		status = backend.StatusTimeout
	}
	return DbResult{DBName: dbName, Status: status, Elapsed: time.Since(start)}
}

func statusForResult(r backend.DbQueryResult) backend.ProbeStatus {
	if r.Found() {
		return backend.StatusFound
	}
	return backend.StatusNotFound
}

// failedBackendNames returns the names of every backend whose final status
// is Timeout, Error, or RateLimited (§4.7 step 9).
func failedBackendNames(results []DbResult) []string {
	var names []string
	for _, r := range results {
		switch r.Status {
		case backend.StatusTimeout, backend.StatusError, backend.StatusRateLimited:
			names = append(names, r.DBName)
		}
	}
	return names
}
