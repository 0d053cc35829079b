// Package hallucinator validates bibliographic references extracted from
// academic PDFs against a federation of scholarly databases, reporting
// whether each reference was found, which databases found it, whether its
// authors match, and whether the paper has since been retracted.
package hallucinator

import (
	"context"

	"github.com/CristianCantoro/hallucinator/internal/checker"
	"github.com/CristianCantoro/hallucinator/internal/config"
	"github.com/CristianCantoro/hallucinator/internal/pool"
	"github.com/CristianCantoro/hallucinator/internal/progress"
)

// Reference is a parsed citation, produced by the (external) PDF extraction
// collaborator. It is immutable after extraction; the engine never mutates
// it.
type Reference = checker.Reference

// DbQueryResult is the per-backend query outcome: a found title plus its
// authors and URL, or a "not found" verdict (FoundTitle == nil).
type DbQueryResult = checker.DbQueryResult

// DbResult records bookkeeping about one backend probe for one reference.
type DbResult = checker.DbResult

// Status classifies a ValidationResult.
type Status = checker.Status

const (
	StatusVerified       = checker.StatusVerified
	StatusNotFound       = checker.StatusNotFound
	StatusAuthorMismatch = checker.StatusAuthorMismatch
)

// ValidationResult is the final per-reference verdict.
type ValidationResult = checker.ValidationResult

// DoiInfo, ArxivInfo and RetractionInfo describe the outcome of the
// identifier and retraction probes (§4.10).
type DoiInfo = checker.DoiInfo
type ArxivInfo = checker.ArxivInfo
type RetractionInfo = checker.RetractionInfo

// Config configures the engine. See internal/config for environment-variable
// loading; CLI flag overrides are the caller's responsibility.
type Config = config.Config

// ConfigFromEnv loads a Config from the process environment.
func ConfigFromEnv() (Config, error) {
	return config.FromEnv()
}

// ProgressEvent is emitted by the engine as validation proceeds. Consumers
// should switch on Kind; the sink must never block (§9).
type ProgressEvent = progress.Event
type ProgressEventKind = progress.Kind

const (
	KindChecking              = progress.KindChecking
	KindDatabaseQueryComplete = progress.KindDatabaseQueryComplete
	KindWarning               = progress.KindWarning
	KindResult                = progress.KindResult
	KindRetryPass             = progress.KindRetryPass
	KindExtractionStarted     = progress.KindExtractionStarted
	KindExtractionFailed      = progress.KindExtractionFailed
	KindExtractionComplete    = progress.KindExtractionComplete
	KindPaperComplete         = progress.KindPaperComplete
	KindBatchComplete         = progress.KindBatchComplete
)

// CheckStats summarizes a completed (or cancelled) batch.
type CheckStats = pool.CheckStats

// PaperInput is one paper's worth of work handed to the Batch Driver: a
// reference list plus whatever identifying metadata the caller wants echoed
// back on progress events. When CheckBatch is called with a non-nil
// ExtractorFunc, References may be left empty and the extractor is
// responsible for populating the ExtractionResult instead.
type PaperInput struct {
	PaperIndex int
	References []Reference
}

// ExtractionResult is what an ExtractorFunc produces for one paper.
type ExtractionResult = pool.ExtractionResult

// ExtractorFunc is the injected PDF-extraction collaborator the Batch
// Driver runs (on a bounded blocking-work pool) to turn a PaperInput into
// its ExtractionResult. Pass nil to CheckBatch to use PaperInput.References
// as already-extracted.
type ExtractorFunc func(context.Context, PaperInput) (ExtractionResult, error)

// CheckReferences validates refs concurrently across all enabled backends,
// racing queries through a shared worker pool, merging results, retrying
// partial failures, and streaming ProgressEvents to sink. sink is called
// synchronously from worker goroutines and must not block (§9).
//
// ctx doubles as the engine's cancellation token (the idiomatic Go rendering
// of the spec's CancellationToken, see DESIGN.md): cancelling it stops new
// jobs being taken, wins any select against in-flight probes, and causes no
// partial ValidationResult to be emitted for in-flight references.
//
// CheckReferences returns a non-nil error only for construction-time
// misconfiguration (§7 Fatal); runtime backend failures always resolve to a
// ValidationResult of status NotFound with a populated FailedDBs.
func CheckReferences(
	ctx context.Context,
	refs []Reference,
	cfg Config,
	sink func(ProgressEvent),
) ([]ValidationResult, CheckStats, error) {
	return pool.CheckReferences(ctx, refs, cfg, sink)
}

// CheckBatch validates a sequence of papers, each contributing a slice of
// References, emitting paper-scoped progress events (§4.9 Batch Driver) in
// addition to the per-reference events CheckReferences already emits.
// extract, if non-nil, is run once per paper (bounded by a fixed-size
// blocking-work pool) to turn each PaperInput into an ExtractionResult
// before its references are validated; pass nil to use PaperInput.References
// directly.
func CheckBatch(
	ctx context.Context,
	papers []PaperInput,
	cfg Config,
	sink func(ProgressEvent),
	extract ExtractorFunc,
) ([][]ValidationResult, CheckStats, error) {
	var poolExtract pool.ExtractorFunc
	if extract != nil {
		poolExtract = func(ctx context.Context, p pool.PaperInput) (pool.ExtractionResult, error) {
			return extract(ctx, PaperInput{PaperIndex: p.PaperIndex, References: p.References})
		}
	}
	return pool.CheckBatch(ctx, toPoolPapers(papers), cfg, sink, poolExtract)
}

func toPoolPapers(papers []PaperInput) []pool.PaperInput {
	out := make([]pool.PaperInput, len(papers))
	for i, p := range papers {
		out[i] = pool.PaperInput{PaperIndex: p.PaperIndex, References: p.References}
	}
	return out
}
