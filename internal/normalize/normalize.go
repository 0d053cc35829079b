// Package normalize canonicalizes titles and author names so that trivially
// different renderings of the same citation compare equal (§4.1). Both
// Title and Authors are total and idempotent: Title(Title(s)) == Title(s).
package normalize

import (
	"html"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// greekFold maps common Greek letters to their ASCII spelling, and a few
// math symbols citations sometimes render literally (e.g. "α-synuclein").
// This table is the spec, not a library concern: no ecosystem package folds
// Greek letters to Latin transliterations for citation-matching purposes.
var greekFold = map[rune]string{
	'α': "alpha", 'β': "beta", 'γ': "gamma", 'δ': "delta", 'ε': "epsilon",
	'ζ': "zeta", 'η': "eta", 'θ': "theta", 'ι': "iota", 'κ': "kappa",
	'λ': "lambda", 'μ': "mu", 'ν': "nu", 'ξ': "xi", 'ο': "omicron",
	'π': "pi", 'ρ': "rho", 'σ': "sigma", 'ς': "sigma", 'τ': "tau",
	'υ': "upsilon", 'φ': "phi", 'χ': "chi", 'ψ': "psi", 'ω': "omega",
	'Α': "Alpha", 'Β': "Beta", 'Γ': "Gamma", 'Δ': "Delta", 'Ε': "Epsilon",
	'Ζ': "Zeta", 'Η': "Eta", 'Θ': "Theta", 'Ι': "Iota", 'Κ': "Kappa",
	'Λ': "Lambda", 'Μ': "Mu", 'Ν': "Nu", 'Ξ': "Xi", 'Ο': "Omicron",
	'Π': "Pi", 'Ρ': "Rho", 'Σ': "Sigma", 'Τ': "Tau", 'Υ': "Upsilon",
	'Φ': "Phi", 'Χ': "Chi", 'Ψ': "Psi", 'Ω': "Omega",
	'×': "x", '÷': "div", '±': "+/-", '≈': "~", '∞': "inf",
}

// stripDiacritics removes combining marks after NFKD decomposition, e.g.
// turning "Résumé" into "Resume". Built from golang.org/x/text, following
// the same transform.Chain technique taibuivan-yomira uses for its slug
// package (golang.org/x/text/unicode/norm + golang.org/x/text/runes).
var stripDiacritics = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldSymbols(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := greekFold[r]; ok {
			b.WriteString(repl)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func asciiFold(s string) string {
	out, _, err := transform.String(stripDiacritics, s)
	if err != nil {
		return s
	}
	return out
}

// Title canonicalizes a title for comparison and caching: HTML-entity
// decode, Greek/math symbol folding, Unicode NFKD decomposition with
// diacritic stripping, lower-casing, whitespace collapsing, and stripping
// leading/trailing punctuation.
func Title(s string) string {
	s = html.UnescapeString(s)
	s = foldSymbols(s)
	s = asciiFold(s)
	s = strings.ToLower(s)
	s = collapseWhitespace(s)
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	return s
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// Authors splits a citation's author list on "and"/commas and reduces each
// name to a normalized last name: strip titles/initials, lower-case, strip
// diacritics. Empty results are dropped.
func Authors(raw []string) []string {
	var names []string
	for _, entry := range raw {
		names = append(names, splitAuthorEntry(entry)...)
	}

	out := make([]string, 0, len(names))
	for _, n := range names {
		last := lastName(n)
		if last == "" {
			continue
		}
		out = append(out, last)
	}
	return out
}

// splitAuthorEntry handles a single raw author field that may itself contain
// multiple names joined by "and", "&" or commas (common when authors arrive
// as one semi-structured citation string rather than a pre-split list).
func splitAuthorEntry(entry string) []string {
	entry = strings.ReplaceAll(entry, "&", " and ")
	parts := strings.FieldsFunc(entry, func(r rune) bool {
		return r == ','
	})
	var out []string
	for _, p := range parts {
		for _, w := range splitOnWord(p, "and") {
			w = strings.TrimSpace(w)
			if w != "" {
				out = append(out, w)
			}
		}
	}
	return out
}

func splitOnWord(s, word string) []string {
	lower := strings.ToLower(s)
	var out []string
	for {
		idx := indexWord(lower, word)
		if idx < 0 {
			out = append(out, s)
			return out
		}
		out = append(out, s[:idx])
		s = s[idx+len(word):]
		lower = lower[idx+len(word):]
	}
}

// indexWord finds " and " (or "and" at a boundary) as a whole word.
func indexWord(lower, word string) int {
	start := 0
	for {
		i := strings.Index(lower[start:], word)
		if i < 0 {
			return -1
		}
		i += start
		leftOK := i == 0 || !isLetter(rune(lower[i-1]))
		rightIdx := i + len(word)
		rightOK := rightIdx >= len(lower) || !isLetter(rune(lower[rightIdx]))
		if leftOK && rightOK {
			return i
		}
		start = i + len(word)
	}
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

// lastName reduces a person's name to a normalized last name: drops
// parenthetical/bracketed content, drops single-letter initials and common
// titles, keeps the final remaining token, lower-cases and strips
// diacritics.
func lastName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	// "Last, F. M." citation form: last name is before the comma.
	if idx := strings.Index(name, ","); idx > 0 {
		return cleanToken(name[:idx])
	}

	tokens := strings.Fields(name)
	var candidates []string
	for _, t := range tokens {
		t = strings.Trim(t, ".")
		if t == "" {
			continue
		}
		if isTitleWord(t) {
			continue
		}
		if isInitial(t) {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return ""
	}
	return cleanToken(candidates[len(candidates)-1])
}

func isInitial(t string) bool {
	letters := []rune(t)
	return len(letters) == 1 && unicode.IsLetter(letters[0])
}

var titleWords = map[string]struct{}{
	"dr": {}, "prof": {}, "mr": {}, "mrs": {}, "ms": {}, "jr": {}, "sr": {},
	"phd": {}, "md": {},
}

func isTitleWord(t string) bool {
	_, ok := titleWords[strings.ToLower(t)]
	return ok
}

func cleanToken(t string) string {
	t = strings.TrimSpace(t)
	t = strings.ToLower(t)
	t = asciiFold(t)
	return t
}
