// Package hallerr holds the engine's sentinel errors (§7), shared across
// internal packages so callers can use errors.Is/errors.As without
// depending on the package that happened to originate the error.
package hallerr

import "errors"

var (
	// ErrNotFound marks a well-formed empty response; never surfaced as the
	// error return from a public CheckReferences/CheckBatch call. Backends
	// do not return it either: a clean "no match" is a nil error with
	// DbQueryResult.FoundTitle == nil (see backend.Backend).
	ErrNotFound = errors.New("hallucinator: not found")

	// ErrCancelled marks work abandoned because its context was cancelled.
	ErrCancelled = errors.New("hallucinator: cancelled")

	// ErrMisconfigured marks a construction-time configuration failure
	// (§7 Fatal) — e.g. an offline DBLP index path that cannot be opened.
	// This is the only class of error CheckReferences/CheckBatch return;
	// every runtime backend failure instead resolves into a
	// ValidationResult with status NotFound and a populated FailedDBs.
	ErrMisconfigured = errors.New("hallucinator: misconfigured")
)
