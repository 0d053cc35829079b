// Package progress defines the typed event stream from the engine to
// callers (§6/§4.8): a tagged struct with a Kind field, not an interface,
// so consumers switch on .Kind rather than a type switch — the same
// "capability set over inheritance" preference the teacher states
// explicitly for backend polymorphism (§9).
package progress

import (
	"time"

	"github.com/CristianCantoro/hallucinator/internal/backend"
)

// Kind identifies which fields of Event are populated.
type Kind string

const (
	KindChecking              Kind = "checking"
	KindDatabaseQueryComplete Kind = "database_query_complete"
	KindWarning               Kind = "warning"
	KindResult                Kind = "result"
	KindRetryPass             Kind = "retry_pass"
	KindExtractionStarted     Kind = "extraction_started"
	KindExtractionFailed      Kind = "extraction_failed"
	KindExtractionComplete    Kind = "extraction_complete"
	KindPaperComplete         Kind = "paper_complete"
	KindBatchComplete         Kind = "batch_complete"
)

// Event is one entry on the Progress Bus (§6 "ProgressEvent variants").
// Only the fields relevant to Kind are populated; callers switch on Kind.
type Event struct {
	Kind Kind

	// Checking, Warning, Result (reference-level events)
	Index int
	Total int
	Title string

	// DatabaseQueryComplete
	PaperIndex int
	RefIndex   int
	DBName     string
	DBStatus   backend.ProbeStatus
	Elapsed    time.Duration

	// Warning
	FailedDBs []string
	Message   string

	// Result — the payload is typed as `any` so that internal/progress does
	// not depend on internal/checker; the Validation Pool stores a
	// checker.ValidationResult value here, so callers type-assert to
	// checker.ValidationResult (not a pointer).
	Result any

	// RetryPass
	RetryCount int

	// ExtractionStarted / ExtractionFailed / ExtractionComplete
	RefCount  int
	RefTitles []string
	SkipStats string
	Err       error
}

// Sink is a thread-safe function-like consumer of Events (§6
// "progress_sink is a thread-safe function-like object"). It must never
// block for long and must never panic — the engine does not recover from a
// panicking sink.
type Sink func(Event)

// Emit calls sink if non-nil, so callers don't need a nil check at every
// call site.
func Emit(sink Sink, ev Event) {
	if sink == nil {
		return
	}
	sink(ev)
}
