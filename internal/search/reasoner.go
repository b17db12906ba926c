package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/locaidev/locai/internal/models"
	"github.com/locaidev/locai/internal/scoring"
)

const (
	defaultReasonerCandidates = 10
	reasonerMaxTokens         = 512
)

// scoreFuzzyTerm wraps the scoring primitive for suggestion helpers.
func scoreFuzzyTerm(a, b string) (float64, bool) {
	return scoring.ScoreFuzzy(a, b, 0)
}

// Reasoner re-ranks fused search results with Claude. Similarity finds
// related content; the model can judge which memories actually answer the
// query. Any API failure degrades gracefully to the original order.
type Reasoner struct {
	client *anthropic.Client
	model  string
	logger *slog.Logger
}

// NewReasoner creates a Reasoner backed by the Anthropic API.
func NewReasoner(apiKey, model string, logger *slog.Logger) *Reasoner {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Reasoner{client: &c, model: model, logger: logger}
}

// ReRank reorders the top maxCandidates results by model-judged relevance.
// Results beyond maxCandidates keep their position after the re-ranked set.
func (r *Reasoner) ReRank(ctx context.Context, query string, results []models.SearchResult, maxCandidates int) ([]models.SearchResult, error) {
	if len(results) == 0 {
		return results, nil
	}
	if maxCandidates <= 0 {
		maxCandidates = defaultReasonerCandidates
	}

	candidates := results
	var tail []models.SearchResult
	if len(results) > maxCandidates {
		candidates = results[:maxCandidates]
		tail = results[maxCandidates:]
	}

	var sb strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&sb, "[%d] %s\n", i, xmlEscape(c.Memory.Content))
	}

	prompt := fmt.Sprintf(`You are a memory relevance ranker for an AI agent memory system.

Given the query and a numbered list of memory snippets, output a JSON array of the indices ordered from MOST to LEAST relevant to the query. Include every index exactly once.

Output ONLY a valid JSON array of integers, nothing else. Example: [2, 0, 3, 1]

<query>%s</query>

<memories>
%s</memories>`,
		xmlEscape(query),
		sb.String(),
	)

	resp, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: reasonerMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		r.logger.Warn("re-ranker API call failed, keeping original order", "error", err)
		return results, nil
	}

	var responseText string
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			responseText = strings.TrimSpace(resp.Content[i].Text)
			break
		}
	}
	if responseText == "" {
		r.logger.Warn("re-ranker returned empty response, keeping original order")
		return results, nil
	}

	var order []int
	if err := json.Unmarshal([]byte(responseText), &order); err != nil {
		r.logger.Warn("re-ranker response was not a JSON index array, keeping original order",
			"response", responseText, "error", err)
		return results, nil
	}

	seen := make(map[int]bool, len(candidates))
	reranked := make([]models.SearchResult, 0, len(candidates))
	for _, idx := range order {
		if idx >= 0 && idx < len(candidates) && !seen[idx] {
			reranked = append(reranked, candidates[idx])
			seen[idx] = true
		}
	}
	for i := range candidates {
		if !seen[i] {
			reranked = append(reranked, candidates[i])
		}
	}

	r.logger.Debug("re-ranked results", "candidates", len(candidates), "order", order)
	return append(reranked, tail...), nil
}

// xmlEscape escapes characters with special meaning in XML so memory content
// cannot break out of the prompt structure.
func xmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
