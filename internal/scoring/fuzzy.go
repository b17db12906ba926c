package scoring

import (
	"strings"

	"github.com/agext/levenshtein"
)

// ScoreFuzzy returns the normalized edit-distance similarity between query
// and content, defined as 1 - distance/max_len over the lowercased inputs.
// The second return is false when similarity falls below threshold.
func ScoreFuzzy(query, content string, threshold float64) (float64, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	c := strings.ToLower(strings.TrimSpace(content))
	if q == "" || c == "" {
		return 0, false
	}

	maxLen := len([]rune(q))
	if l := len([]rune(c)); l > maxLen {
		maxLen = l
	}
	dist := levenshtein.Distance(q, c, nil)
	sim := 1 - float64(dist)/float64(maxLen)
	if sim < threshold {
		return sim, false
	}
	return sim, true
}

// BestWindowSimilarity slides the query across content word windows and
// returns the highest similarity plus the byte span of the best window. Used
// when content is much longer than the query, where whole-string distance
// would drown the match.
func BestWindowSimilarity(query, content string, threshold float64) (float64, int, int, bool) {
	qTokens := strings.Fields(query)
	if len(qTokens) == 0 {
		return 0, 0, 0, false
	}

	type span struct{ start, end int }
	var windows []span
	fields := strings.Fields(content)
	if len(fields) < len(qTokens) {
		sim, ok := ScoreFuzzy(query, content, threshold)
		return sim, 0, len(content), ok
	}

	// Precompute field byte offsets.
	offsets := make([]int, 0, len(fields))
	idx := 0
	for _, f := range fields {
		at := strings.Index(content[idx:], f)
		offsets = append(offsets, idx+at)
		idx += at + len(f)
	}

	for i := 0; i+len(qTokens) <= len(fields); i++ {
		start := offsets[i]
		last := i + len(qTokens) - 1
		end := offsets[last] + len(fields[last])
		windows = append(windows, span{start, end})
	}

	best := -1.0
	bestSpan := span{}
	for _, w := range windows {
		sim, _ := ScoreFuzzy(query, content[w.start:w.end], 0)
		if sim > best {
			best = sim
			bestSpan = w
		}
	}
	if best < threshold {
		return best, 0, 0, false
	}
	return best, bestSpan.start, bestSpan.end, true
}
