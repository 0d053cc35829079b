package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CristianCantoro/hallucinator/internal/checker"
	"github.com/CristianCantoro/hallucinator/internal/config"
	"github.com/CristianCantoro/hallucinator/internal/progress"
)

func strPtr(s string) *string { return &s }

func collectEvents() (progress.Sink, func() []progress.Event) {
	var mu sync.Mutex
	var events []progress.Event
	sink := func(ev progress.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}
	return sink, func() []progress.Event {
		mu.Lock()
		defer mu.Unlock()
		out := make([]progress.Event, len(events))
		copy(out, events)
		return out
	}
}

func TestCheckReferencesAllDisabledYieldsNotFoundForEach(t *testing.T) {
	cfg := config.Config{DisabledDBs: map[string]struct{}{
		"crossref": {}, "arxiv": {}, "dblp": {}, "semanticscholar": {},
		"europepmc": {}, "pubmed": {}, "openalex": {}, "aclanthology": {},
	}}
	refs := []checker.Reference{
		{RawCitation: "a", Title: strPtr("Some Title")},
		{RawCitation: "b", Title: strPtr("Another Title")},
	}

	sink, getEvents := collectEvents()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	results, stats, err := CheckReferences(ctx, refs, cfg, sink)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.NotFound)

	events := getEvents()
	var sawChecking, sawResult bool
	for _, ev := range events {
		switch ev.Kind {
		case progress.KindChecking:
			sawChecking = true
		case progress.KindResult:
			sawResult = true
			assert.True(t, sawChecking, "Checking must precede Result")
		}
	}
	assert.True(t, sawResult)
}

func TestCheckReferencesOutputLengthMatchesInput(t *testing.T) {
	cfg := config.Config{DisabledDBs: allDisabled()}
	refs := make([]checker.Reference, 5)
	for i := range refs {
		refs[i] = checker.Reference{Title: strPtr("T")}
	}

	results, stats, err := CheckReferences(context.Background(), refs, cfg, nil)
	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.Equal(t, 5, stats.Total)
}

func TestCheckReferencesCancellationStopsEarly(t *testing.T) {
	cfg := config.Config{DisabledDBs: allDisabled()}
	refs := make([]checker.Reference, 50)
	for i := range refs {
		refs[i] = checker.Reference{Title: strPtr("T")}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancelled before any work starts

	results, stats, err := CheckReferences(ctx, refs, cfg, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 50)
	assert.Equal(t, len(results), stats.Total)
}

func TestCheckBatchDefaultExtractorUsesPaperReferences(t *testing.T) {
	cfg := config.Config{DisabledDBs: allDisabled()}
	papers := []PaperInput{
		{PaperIndex: 0, References: []checker.Reference{{Title: strPtr("A")}, {Title: strPtr("B")}}},
		{PaperIndex: 1, References: []checker.Reference{{Title: strPtr("C")}}},
	}

	sink, getEvents := collectEvents()
	results, stats, err := CheckBatch(context.Background(), papers, cfg, sink, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Len(t, results[0], 2)
	assert.Len(t, results[1], 1)
	assert.Equal(t, 3, stats.Total)

	var extractionComplete, paperComplete, batchComplete int
	var failed int
	for _, ev := range getEvents() {
		switch ev.Kind {
		case progress.KindExtractionComplete:
			extractionComplete++
		case progress.KindExtractionFailed:
			failed++
		case progress.KindPaperComplete:
			paperComplete++
		case progress.KindBatchComplete:
			batchComplete++
		}
	}
	assert.Equal(t, 2, extractionComplete)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 2, paperComplete)
	assert.Equal(t, 1, batchComplete)
}

func TestCheckBatchExtractorFailureEmitsExtractionFailedAndSkipsPaper(t *testing.T) {
	cfg := config.Config{DisabledDBs: allDisabled()}
	papers := []PaperInput{
		{PaperIndex: 0, References: []checker.Reference{{Title: strPtr("A")}}},
		{PaperIndex: 1, References: []checker.Reference{{Title: strPtr("B")}}},
	}

	extractErr := assert.AnError
	extract := func(_ context.Context, p PaperInput) (ExtractionResult, error) {
		if p.PaperIndex == 0 {
			return ExtractionResult{}, extractErr
		}
		return ExtractionResult{References: p.References}, nil
	}

	sink, getEvents := collectEvents()
	results, stats, err := CheckBatch(context.Background(), papers, cfg, sink, extract)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Nil(t, results[0], "the paper whose extraction failed must have no results")
	assert.Len(t, results[1], 1)
	assert.Equal(t, 1, stats.Total, "the failed extraction's reference was never checked")

	var sawFailed bool
	for _, ev := range getEvents() {
		if ev.Kind == progress.KindExtractionFailed {
			sawFailed = true
			assert.Equal(t, 0, ev.PaperIndex)
			assert.ErrorIs(t, ev.Err, extractErr)
		}
	}
	assert.True(t, sawFailed)
}

func TestCheckBatchNoRetryPassEventWhenNothingRetries(t *testing.T) {
	cfg := config.Config{DisabledDBs: allDisabled()}
	papers := []PaperInput{
		{PaperIndex: 0, References: []checker.Reference{{Title: strPtr("A")}}},
	}

	sink, getEvents := collectEvents()
	_, _, err := CheckBatch(context.Background(), papers, cfg, sink, nil)
	require.NoError(t, err)

	for _, ev := range getEvents() {
		assert.NotEqual(t, progress.KindRetryPass, ev.Kind, "no job retried, so RetryPass must never fire")
	}
}

func allDisabled() map[string]struct{} {
	return map[string]struct{}{
		"crossref": {}, "arxiv": {}, "dblp": {}, "semanticscholar": {},
		"europepmc": {}, "pubmed": {}, "openalex": {}, "aclanthology": {},
	}
}
