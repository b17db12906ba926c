// Package textutil provides deterministic text tokenization and snippet
// helpers shared by the scoring and search layers.
package textutil

import (
	"strings"
	"unicode"
)

// stopwords are dropped during tokenization. The list is intentionally small;
// retrieval quality matters more than linguistic completeness.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "such": {},
	"that": {}, "the": {}, "their": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "will": {}, "with": {},
}

// IsStopword reports whether the lowercase token is a stopword.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// Tokenize lowercases text and splits on Unicode word boundaries, dropping
// stopwords. Repeated calls on the same input yield identical output.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if IsStopword(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// TokenizeAll tokenizes each text in turn, for corpus-wide scoring.
func TokenizeAll(texts []string) [][]string {
	out := make([][]string, len(texts))
	for i, t := range texts {
		out[i] = Tokenize(t)
	}
	return out
}

// TermFrequencies counts token occurrences.
func TermFrequencies(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

// Snippet extracts a window of at most maxLen bytes around the span
// [start, end) of s, preferring to begin at a word boundary. It returns the
// snippet and the span's offsets within it.
func Snippet(s string, start, end, maxLen int) (string, int, int) {
	if start < 0 || end > len(s) || start > end {
		return Truncate(s, maxLen), 0, 0
	}
	if len(s) <= maxLen {
		return s, start, end
	}

	// Center the window on the match.
	span := end - start
	lead := (maxLen - span) / 2
	from := start - lead
	if from < 0 {
		from = 0
	}
	to := from + maxLen
	if to > len(s) {
		to = len(s)
		from = to - maxLen
		if from < 0 {
			from = 0
		}
	}

	// Nudge the start forward to a word boundary when possible.
	if from > 0 {
		if idx := strings.IndexByte(s[from:start], ' '); idx >= 0 && from+idx+1 <= start {
			from += idx + 1
		}
	}

	return s[from:to], start - from, end - from
}

// Truncate shortens s to at most maxLen bytes at a rune boundary.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	n := 0
	for _, r := range runes {
		rl := len(string(r))
		if n+rl > maxLen {
			break
		}
		out = append(out, r)
		n += rl
	}
	return string(out)
}

// HasPrefixFold reports whether s begins with prefix, case-insensitively.
func HasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
