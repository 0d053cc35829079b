// Package pool implements the Validation Pool (§4.8) and Batch Driver
// (§4.9): a worker pool consuming per-reference jobs, plus the batch-level
// orchestration that submits one job per reference and aggregates results.
package pool

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/CristianCantoro/hallucinator/internal/backend"
	"github.com/CristianCantoro/hallucinator/internal/cache"
	"github.com/CristianCantoro/hallucinator/internal/checker"
	"github.com/CristianCantoro/hallucinator/internal/config"
	"github.com/CristianCantoro/hallucinator/internal/hallerr"
	"github.com/CristianCantoro/hallucinator/internal/probes"
	"github.com/CristianCantoro/hallucinator/internal/progress"
	"github.com/CristianCantoro/hallucinator/internal/ratelimit"
	"github.com/CristianCantoro/hallucinator/internal/telemetry"
)

// job carries everything one worker needs to process a single reference
// (§4.8: "Each job carries: the Reference, a one-shot result channel, the
// reference's position within its paper, the paper's total reference
// count, and a cloneable progress sink").
type job struct {
	ref        checker.Reference
	paperIndex int
	refIndex   int
	total      int
	sink       progress.Sink
	resultCh   chan jobResult
}

// jobResult carries a completed job's verdict plus whether its retry pass
// ran, so a paper-level caller (the Batch Driver) can tell whether any of
// its references needed a retry without the worker itself knowing what
// paper-scoped event, if any, that should trigger.
type jobResult struct {
	result  checker.ValidationResult
	retried bool
}

// CheckStats aggregates per-batch counters (§3 "Counters maintained by
// consumers").
type CheckStats struct {
	Total          int
	Verified       int
	NotFound       int
	AuthorMismatch int
	Retracted      int
	Skipped        int
}

func (s *CheckStats) record(r checker.ValidationResult) {
	s.Total++
	switch r.Status {
	case checker.StatusVerified:
		s.Verified++
	case checker.StatusAuthorMismatch:
		s.AuthorMismatch++
	default:
		s.NotFound++
	}
	if r.RetractionInfo != nil && r.RetractionInfo.IsRetracted {
		s.Retracted++
	}
}

// buildChecker wires one Checker with the resources its workers share (§5:
// one HTTP client, one cache, one limiter set). Every CheckReferences and
// CheckBatch call builds its own set, so cache entries and rate-limiter
// state do not carry over from one call to the next. The only error it can return is construction-time misconfiguration (§7
// Fatal) — currently just an unopenable offline DBLP index.
func buildChecker(cfg config.Config, log *telemetry.Logger) (*checker.Checker, error) {
	client := &http.Client{}

	var backends []backend.Backend
	backends = append(backends, backend.NewCrossRef(cfg.CrossrefMailto))
	backends = append(backends, backend.NewArxiv())
	if cfg.DBLPOfflinePath != "" {
		offline, err := backend.NewDBLPOffline(cfg.DBLPOfflinePath)
		if err != nil {
			return nil, fmt.Errorf("%w: open offline DBLP index %q: %v", hallerr.ErrMisconfigured, cfg.DBLPOfflinePath, err)
		}
		backends = append(backends, offline)
	} else {
		backends = append(backends, backend.NewDBLPOnline())
	}
	backends = append(backends, backend.NewSemanticScholar(cfg.S2APIKey))
	backends = append(backends, backend.NewEuropePMC())
	backends = append(backends, backend.NewPubMed())
	backends = append(backends, backend.NewOpenAlex(cfg.OpenAlexKey, cfg.CheckOpenAlexAuthors))
	backends = append(backends, backend.NewACLAnthology())

	registry := backend.NewRegistry(backends, cfg.DisabledDBs)

	limiters := map[string]*ratelimit.AdaptiveLimiter{
		"crossref":        ratelimit.New(crossrefRate(cfg.CrossrefMailto), 2),
		"arxiv":           ratelimit.New(1.0/3, 1),
		"dblp":            ratelimit.New(1, 1),
		"semanticscholar": ratelimit.New(semanticScholarRate(cfg.S2APIKey), 2),
		"europepmc":       ratelimit.New(2, 2),
		"pubmed":          ratelimit.New(3, 3),
		"aclanthology":    ratelimit.New(2, 2),
		"openalex":        ratelimit.New(1000, 50), // "uncapped" per §4.6, rendered as a very wide bucket
	}

	return checker.New(checker.Deps{
		Registry: registry,
		Cache:    cache.New(cache.DefaultPositiveTTL, cache.DefaultNegativeTTL),
		Limiters: limiters,
		Client:   client,
		Prober:   probes.NewProber(),
		Log:      log,
	}), nil
}

func crossrefRate(mailto string) float64 {
	if mailto != "" {
		return 3
	}
	return 1
}

func semanticScholarRate(apiKey string) float64 {
	if apiKey != "" {
		return 1
	}
	return 10
}

// Pool runs N worker goroutines over a job channel (§4.8).
type Pool struct {
	jobs    chan job
	workers int
	wg      sync.WaitGroup
	checker *checker.Checker
	cfg     config.Config
	log     *telemetry.Logger
}

func newPool(workers int, c *checker.Checker, cfg config.Config, log *telemetry.Logger) *Pool {
	p := &Pool{
		jobs:    make(chan job, workers*2),
		workers: workers,
		checker: c,
		cfg:     cfg,
		log:     log,
	}
	return p
}

func (p *Pool) start(ctx context.Context) {
	telemetry.PoolStarted(p.log, p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// worker implements §4.8's loop invariants: one job at a time, Checking
// before the Checker runs, abandonment on cancellation, and exactly one
// Result per completed job, preceded by one Warning when any backend failed.
// Abandonment is driven by ctx only: the result channel has capacity 1, so
// the single send never blocks and a caller that stops reading it is not
// detected.
func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			p.runJob(ctx, j)
		}
	}
}

func (p *Pool) runJob(ctx context.Context, j job) {
	progress.Emit(j.sink, progress.Event{
		Kind:       progress.KindChecking,
		Index:      j.refIndex,
		Total:      j.total,
		Title:      refTitle(j.ref),
		PaperIndex: j.paperIndex,
		RefIndex:   j.refIndex,
	})

	onProbe := func(r checker.DbResult) {
		progress.Emit(j.sink, progress.Event{
			Kind:       progress.KindDatabaseQueryComplete,
			PaperIndex: j.paperIndex,
			RefIndex:   j.refIndex,
			DBName:     r.DBName,
			DBStatus:   r.Status,
			Elapsed:    r.Elapsed,
		})
	}

	result, retried := p.checker.CheckWithRetry(ctx, j.ref, p.cfg.DBTimeout(), p.cfg.DBTimeoutShort(), onProbe)
	if ctx.Err() != nil {
		// Cancelled mid-flight: no partial result is ever emitted (§5).
		return
	}

	if len(result.FailedDBs) > 0 {
		progress.Emit(j.sink, progress.Event{
			Kind:      progress.KindWarning,
			Index:     j.refIndex,
			Total:     j.total,
			Title:     result.Title,
			FailedDBs: result.FailedDBs,
			Message:   "one or more backends failed for this reference",
		})
	}

	progress.Emit(j.sink, progress.Event{
		Kind:   progress.KindResult,
		Index:  j.refIndex,
		Total:  j.total,
		Result: result,
	})

	select {
	case j.resultCh <- jobResult{result: result, retried: retried}:
	case <-ctx.Done():
	}
}

func refTitle(r checker.Reference) string {
	if r.Title == nil {
		return ""
	}
	return *r.Title
}

func (p *Pool) shutdown() {
	close(p.jobs)
	p.wg.Wait()
	telemetry.PoolShutdown(p.log)
}

// CheckReferences is the external interface (§6): runs refs through a
// freshly-built Pool and aggregates ValidationResults plus CheckStats.
func CheckReferences(
	ctx context.Context,
	refs []checker.Reference,
	cfg config.Config,
	sink progress.Sink,
) ([]checker.ValidationResult, CheckStats, error) {
	log := telemetry.New(os.Stderr, cfg.LogLevel)
	c, err := buildChecker(cfg, log)
	if err != nil {
		return nil, CheckStats{}, err
	}
	p := newPool(cfg.Workers(), c, cfg, log)
	p.start(ctx)

	var stats CheckStats

	resultChans := make([]chan jobResult, len(refs))
	for i, ref := range refs {
		resultChans[i] = make(chan jobResult, 1)
		j := job{ref: ref, paperIndex: 0, refIndex: i, total: len(refs), sink: sink, resultCh: resultChans[i]}
		select {
		case p.jobs <- j:
		case <-ctx.Done():
			p.shutdown()
			return collected(resultChans, &stats), stats, nil
		}
	}
	p.shutdown()

	return collected(resultChans, &stats), stats, nil
}

// collected drains every result channel that has a value ready, compacting
// results into an order-preserving slice (completed references keep their
// relative order; cancelled ones are simply absent) while aggregating
// stats. Completion is not guaranteed to be a prefix of the input under
// concurrent workers, so this builds the output by appending rather than
// by truncating at a count (§8 Testable Property 7 / scenario S6: stats
// reflect only completed refs).
func collected(chans []chan jobResult, stats *CheckStats) []checker.ValidationResult {
	out := make([]checker.ValidationResult, 0, len(chans))
	for _, ch := range chans {
		select {
		case jr, ok := <-ch:
			if !ok {
				continue
			}
			out = append(out, jr.result)
			stats.record(jr.result)
		default:
		}
	}
	return out
}

// PaperInput pairs a paper's index with its references. When an
// ExtractorFunc is supplied to CheckBatch, References is the raw material
// the extractor works from (e.g. nil, with the paper's source held
// elsewhere by the caller); when no ExtractorFunc is given, References is
// taken as already-extracted and used as-is.
type PaperInput struct {
	PaperIndex int
	References []checker.Reference
}

// ExtractionResult is what an ExtractorFunc produces for one paper: the
// reference list the Batch Driver then validates.
type ExtractionResult struct {
	References []checker.Reference
}

// ExtractorFunc is the injected PDF-extraction collaborator (§4.9): the
// Batch Driver never assumes how references are pulled out of a paper, only
// that this function eventually returns them or an error.
type ExtractorFunc func(context.Context, PaperInput) (ExtractionResult, error)

// passThroughExtractor is the default ExtractorFunc used when CheckBatch is
// called with extract == nil: it treats PaperInput.References as already
// extracted, so existing callers that pre-extract references outside the
// engine pay no extraction-pool overhead.
func passThroughExtractor(_ context.Context, p PaperInput) (ExtractionResult, error) {
	return ExtractionResult{References: p.References}, nil
}

// CheckBatch implements the Batch Driver (§4.9): for each paper
// sequentially, runs extract (bounded by a blocking-work pool, §5), submits
// one job per extracted reference, awaits all result channels, and emits
// paper/batch-level events. extract may be nil, in which case
// paper.References is used as already-extracted.
func CheckBatch(
	ctx context.Context,
	papers []PaperInput,
	cfg config.Config,
	sink progress.Sink,
	extract ExtractorFunc,
) ([][]checker.ValidationResult, CheckStats, error) {
	log := telemetry.New(os.Stderr, cfg.LogLevel)
	c, err := buildChecker(cfg, log)
	if err != nil {
		return nil, CheckStats{}, err
	}
	p := newPool(cfg.Workers(), c, cfg, log)
	p.start(ctx)
	defer p.shutdown()

	if extract == nil {
		extract = passThroughExtractor
	}
	extractors := telemetry.NewBlockingPool(cfg.Workers())

	var stats CheckStats
	allResults := make([][]checker.ValidationResult, len(papers))

	for _, paper := range papers {
		if ctx.Err() != nil {
			break
		}

		progress.Emit(sink, progress.Event{Kind: progress.KindExtractionStarted, PaperIndex: paper.PaperIndex})

		extraction, err := telemetry.RunBlocking(ctx, extractors, func() (ExtractionResult, error) {
			return extract(ctx, paper)
		})
		if err != nil {
			progress.Emit(sink, progress.Event{
				Kind:       progress.KindExtractionFailed,
				PaperIndex: paper.PaperIndex,
				Err:        err,
			})
			continue
		}

		progress.Emit(sink, progress.Event{
			Kind:       progress.KindExtractionComplete,
			PaperIndex: paper.PaperIndex,
			RefCount:   len(extraction.References),
		})

		refs := extraction.References
		results := make([]checker.ValidationResult, len(refs))
		resultChans := make([]chan jobResult, len(refs))
		for i, ref := range refs {
			resultChans[i] = make(chan jobResult, 1)
			j := job{
				ref:        ref,
				paperIndex: paper.PaperIndex,
				refIndex:   i,
				total:      len(refs),
				sink:       sink,
				resultCh:   resultChans[i],
			}
			select {
			case p.jobs <- j:
			case <-ctx.Done():
			}
		}

		anyRetried := false
		for i, ch := range resultChans {
			select {
			case jr, ok := <-ch:
				if !ok {
					continue
				}
				results[i] = jr.result
				stats.record(jr.result)
				anyRetried = anyRetried || jr.retried
			case <-ctx.Done():
			}
		}
		if anyRetried {
			progress.Emit(sink, progress.Event{Kind: progress.KindRetryPass, PaperIndex: paper.PaperIndex, RetryCount: 1})
		}

		allResults[paper.PaperIndex] = results
		progress.Emit(sink, progress.Event{Kind: progress.KindPaperComplete, PaperIndex: paper.PaperIndex})
	}

	progress.Emit(sink, progress.Event{Kind: progress.KindBatchComplete})
	return allResults, stats, nil
}
