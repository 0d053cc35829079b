// Package match scores title similarity and author-set overlap (§4.2).
// Combining per-backend outcomes into a verdict is done by the Checker
// (internal/checker), using these scores.
package match

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/CristianCantoro/hallucinator/internal/normalize"
)

// TitleThreshold is the default token-set similarity threshold above which
// two titles are considered a match (§4.2).
const TitleThreshold = 0.85

// AuthorOverlapThreshold is the default fraction of the smaller author set
// that must overlap for an author check to pass (§4.2).
const AuthorOverlapThreshold = 0.5

// TitleSimilarity returns the token-set ratio of two (already-or-not
// normalized) titles, in [0, 1]. It normalizes both inputs internally so
// callers may pass raw titles.
//
// Token-set ratio (per the well-known fuzzywuzzy/rapidfuzz algorithm) is
// robust to reordering and interstitial words: it compares the intersection
// of tokens against each side's full token set, and takes the best of three
// pairwise ratios, so "A: B" and "B: A" score a perfect match. No Go port of
// this exact algorithm exists in the reference corpus; the token-set
// construction here is original, but the pairwise edit-distance ratio uses
// github.com/agnivade/levenshtein (grounded on its use in
// open-policy-agent-eopa and jordigilh-kubernaut for fuzzy string
// comparison) rather than a hand-rolled distance function.
func TitleSimilarity(a, b string) float64 {
	na, nb := normalize.Title(a), normalize.Title(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	ta := tokenSet(na)
	tb := tokenSet(nb)
	intersection := sortedJoin(setIntersection(ta, tb))
	sortedA := sortedJoin(ta)
	sortedB := sortedJoin(tb)

	best := ratio(intersection, sortedA)
	if r := ratio(intersection, sortedB); r > best {
		best = r
	}
	if r := ratio(sortedA, sortedB); r > best {
		best = r
	}
	return best
}

// TitleMatches reports whether a and b clear threshold (TitleThreshold if
// threshold <= 0).
func TitleMatches(a, b string, threshold float64) bool {
	if threshold <= 0 {
		threshold = TitleThreshold
	}
	return TitleSimilarity(a, b) >= threshold
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, unicode.IsPunct)
		if f == "" {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

func setIntersection(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func sortedJoin(set map[string]struct{}) string {
	toks := make([]string, 0, len(set))
	for t := range set {
		toks = append(toks, t)
	}
	sort.Strings(toks)
	return strings.Join(toks, " ")
}

// ratio returns a normalized similarity in [0, 1] derived from Levenshtein
// edit distance, the same shape python-Levenshtein/rapidfuzz's ratio() uses:
// 1 - distance / (len(a) + len(b)).
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(total)
}

// AuthorOverlap returns the fraction of overlap between two normalized
// last-name sets: |intersection| / min(|cited|, |found|). An empty cited
// set is treated as a pass (overlap = 1) per §4.2.
func AuthorOverlap(cited, found []string) float64 {
	if len(cited) == 0 {
		return 1
	}
	if len(found) == 0 {
		return 0
	}

	cs := toSet(cited)
	fs := toSet(found)

	overlap := 0
	for name := range cs {
		if _, ok := fs[name]; ok {
			overlap++
		}
	}

	smaller := len(cs)
	if len(fs) < smaller {
		smaller = len(fs)
	}
	if smaller == 0 {
		return 0
	}
	return float64(overlap) / float64(smaller)
}

func toSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

// AuthorsMatch reports whether cited and found clear threshold
// (AuthorOverlapThreshold if threshold <= 0). Both slices must already be
// normalized (see normalize.Authors).
func AuthorsMatch(cited, found []string, threshold float64) bool {
	if threshold <= 0 {
		threshold = AuthorOverlapThreshold
	}
	return AuthorOverlap(cited, found) >= threshold
}
