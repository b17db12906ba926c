package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeQuery_Intents(t *testing.T) {
	tests := []struct {
		query    string
		intent   Intent
		strategy Strategy
	}{
		{"what is machine learning?", IntentQuestion, StrategyHybrid},
		{"how do goroutines work", IntentQuestion, StrategyHybrid},
		{"recent deployment notes", IntentRecent, StrategyRecent},
		{"list all memories about Paris", IntentEnumerative, StrategyBM25},
		{"kubernetes", IntentLookup, StrategyBM25},
		{"database migration plan", IntentLookup, StrategyBM25},
		{"strategies for scaling distributed training workloads across regions", IntentConceptual, StrategyHybrid},
		{"", IntentUnknown, StrategyBM25},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			a := AnalyzeQuery(tt.query)
			assert.Equal(t, tt.intent, a.Intent)
			assert.Equal(t, tt.strategy, a.Strategy)
			assert.GreaterOrEqual(t, a.Confidence, 0.0)
			assert.LessOrEqual(t, a.Confidence, 1.0)
		})
	}
}

func TestAnalyzeQuery_TokensAndEntities(t *testing.T) {
	a := AnalyzeQuery("meetings with Alice about the Budget")
	assert.Contains(t, a.Tokens, "meetings")
	assert.NotContains(t, a.Tokens, "the")
	assert.Contains(t, a.EntitiesMentioned, "Alice")
	assert.Contains(t, a.EntitiesMentioned, "Budget")
}
