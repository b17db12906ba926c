package search

import (
	"strings"

	"github.com/locaidev/locai/pkg/textutil"
)

// Intent classifies what kind of retrieval the caller likely wants.
type Intent string

const (
	IntentLookup      Intent = "lookup"
	IntentQuestion    Intent = "question"
	IntentConceptual  Intent = "conceptual"
	IntentEnumerative Intent = "enumerative"
	IntentRecent      Intent = "recent"
	IntentUnknown     Intent = "unknown"
)

// Strategy names the retrieval plan chosen for a query.
type Strategy string

const (
	StrategyBM25   Strategy = "bm25"
	StrategyHybrid Strategy = "hybrid"
	StrategyRecent Strategy = "recent"
)

// QueryAnalysis is the result of lightweight rule-based query classification.
type QueryAnalysis struct {
	Intent            Intent   `json:"intent"`
	Strategy          Strategy `json:"strategy"`
	Tokens            []string `json:"tokens"`
	EntitiesMentioned []string `json:"entities_mentioned,omitempty"`
	Confidence        float64  `json:"confidence"`
}

var interrogatives = map[string]bool{
	"who": true, "what": true, "when": true, "where": true,
	"why": true, "how": true, "which": true,
}

var recencyWords = map[string]bool{
	"recent": true, "recently": true, "latest": true, "today": true,
	"yesterday": true, "newest": true, "last": true,
}

var enumerativeWords = map[string]bool{
	"list": true, "all": true, "every": true, "enumerate": true, "show": true,
}

// AnalyzeQuery tokenizes the query and detects intent from closed rules.
// Confidence reflects how decisively a rule fired.
func AnalyzeQuery(q string) QueryAnalysis {
	trimmed := strings.TrimSpace(q)
	tokens := textutil.Tokenize(trimmed)
	entities := capitalizedWords(trimmed)

	analysis := QueryAnalysis{
		Tokens:            tokens,
		EntitiesMentioned: entities,
	}

	if trimmed == "" {
		analysis.Intent = IntentUnknown
		analysis.Strategy = StrategyBM25
		return analysis
	}

	lower := strings.ToLower(trimmed)
	firstWord := ""
	if fields := strings.Fields(lower); len(fields) > 0 {
		firstWord = strings.Trim(fields[0], "?.,!")
	}

	switch {
	case strings.HasSuffix(trimmed, "?") || interrogatives[firstWord]:
		analysis.Intent = IntentQuestion
		analysis.Strategy = StrategyHybrid
		analysis.Confidence = 0.9
	case containsAny(lower, recencyWords):
		analysis.Intent = IntentRecent
		analysis.Strategy = StrategyRecent
		analysis.Confidence = 0.8
	case enumerativeWords[firstWord]:
		analysis.Intent = IntentEnumerative
		analysis.Strategy = StrategyBM25
		analysis.Confidence = 0.7
	case len(tokens) > 0 && len(tokens) <= 3:
		analysis.Intent = IntentLookup
		analysis.Strategy = StrategyBM25
		analysis.Confidence = 0.6
	case len(tokens) > 3:
		analysis.Intent = IntentConceptual
		analysis.Strategy = StrategyHybrid
		analysis.Confidence = 0.5
	default:
		analysis.Intent = IntentUnknown
		analysis.Strategy = StrategyBM25
		analysis.Confidence = 0.2
	}
	return analysis
}

func containsAny(lower string, words map[string]bool) bool {
	for _, f := range strings.Fields(lower) {
		if words[strings.Trim(f, "?.,!")] {
			return true
		}
	}
	return false
}

// capitalizedWords collects words that look like proper nouns, skipping the
// sentence-initial position.
func capitalizedWords(q string) []string {
	fields := strings.Fields(q)
	var out []string
	for i, f := range fields {
		f = strings.Trim(f, "?.,!\"'")
		if i == 0 || f == "" {
			continue
		}
		r := []rune(f)
		if r[0] >= 'A' && r[0] <= 'Z' {
			out = append(out, f)
		}
	}
	return out
}
