package search

import (
	"context"
	"sort"
	"strings"

	"github.com/locaidev/locai/internal/models"
	"github.com/locaidev/locai/pkg/textutil"
)

// SuggestionKind names the category of a suggestion.
type SuggestionKind string

const (
	SuggestionQueryRefinement SuggestionKind = "query_refinement"
	SuggestionRelatedEntity   SuggestionKind = "related_entity"
	SuggestionTermCorrection  SuggestionKind = "term_correction"
	SuggestionTagFilter       SuggestionKind = "tag_filter"
)

// Suggestion is a proposed query improvement with a human explanation.
type Suggestion struct {
	Kind        SuggestionKind `json:"kind"`
	Text        string         `json:"text"`
	Explanation string         `json:"explanation"`
	Confidence  float64        `json:"confidence"`
}

// Autocomplete returns distinct memory contents whose prefix matches,
// ordered by access count descending, then most recently created.
func (e *Engine) Autocomplete(ctx context.Context, prefix string, limit int) ([]string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	mems, err := e.candidates(ctx, nil)
	if err != nil {
		return nil, err
	}

	var matched []models.Memory
	for i := range mems {
		if textutil.HasPrefixFold(mems[i].Content, prefix) {
			matched = append(matched, mems[i])
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].AccessCount != matched[j].AccessCount {
			return matched[i].AccessCount > matched[j].AccessCount
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	seen := make(map[string]bool)
	var out []string
	for _, mem := range matched {
		content := textutil.Truncate(mem.Content, maxSnippetLen)
		if seen[content] {
			continue
		}
		seen[content] = true
		out = append(out, content)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Suggest proposes refinements for a prefix: tag filters from matching
// memories, term corrections against the corpus vocabulary, and entity
// mentions from related memories.
func (e *Engine) Suggest(ctx context.Context, prefix string, contextTags []string) ([]Suggestion, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, nil
	}

	mems, err := e.candidates(ctx, nil)
	if err != nil {
		return nil, err
	}

	var suggestions []Suggestion

	// Tag filters from memories that match the prefix text.
	tagCounts := make(map[string]int)
	for i := range mems {
		if !strings.Contains(strings.ToLower(mems[i].Content), strings.ToLower(prefix)) {
			continue
		}
		for _, tag := range mems[i].Tags {
			tagCounts[tag]++
		}
	}
	for _, tag := range topKeys(tagCounts, 3) {
		if containsFold(contextTags, tag) {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Kind:        SuggestionTagFilter,
			Text:        tag,
			Explanation: "memories matching this query often carry this tag",
			Confidence:  0.6,
		})
	}

	// Term corrections: query tokens absent from the corpus vocabulary get
	// their nearest vocabulary term when it is close enough.
	vocab := make(map[string]bool)
	for i := range mems {
		for _, term := range textutil.Tokenize(mems[i].Content) {
			vocab[term] = true
		}
	}
	for _, term := range textutil.Tokenize(prefix) {
		if vocab[term] {
			continue
		}
		if best, sim := nearestTerm(term, vocab); best != "" && sim >= 0.7 {
			suggestions = append(suggestions, Suggestion{
				Kind:        SuggestionTermCorrection,
				Text:        strings.Replace(prefix, term, best, 1),
				Explanation: "did you mean " + best + "?",
				Confidence:  sim,
			})
		}
	}

	// Related entities mentioned alongside matching content.
	entityCounts := make(map[string]int)
	for i := range mems {
		if !strings.Contains(strings.ToLower(mems[i].Content), strings.ToLower(prefix)) {
			continue
		}
		for _, ent := range capitalizedWords(mems[i].Content) {
			entityCounts[ent]++
		}
	}
	for _, ent := range topKeys(entityCounts, 2) {
		suggestions = append(suggestions, Suggestion{
			Kind:        SuggestionRelatedEntity,
			Text:        ent,
			Explanation: "frequently mentioned near this query",
			Confidence:  0.5,
		})
	}

	// A longer-query refinement when the prefix is a single token.
	if tokens := textutil.Tokenize(prefix); len(tokens) == 1 {
		if completions, _ := e.Autocomplete(ctx, prefix, 1); len(completions) > 0 {
			suggestions = append(suggestions, Suggestion{
				Kind:        SuggestionQueryRefinement,
				Text:        completions[0],
				Explanation: "expand to the most accessed matching memory",
				Confidence:  0.4,
			})
		}
	}
	return suggestions, nil
}

func topKeys(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func nearestTerm(term string, vocab map[string]bool) (string, float64) {
	best := ""
	bestSim := 0.0
	for v := range vocab {
		sim, _ := scoreFuzzyTerm(term, v)
		if sim > bestSim || (sim == bestSim && v < best) {
			best, bestSim = v, sim
		}
	}
	return best, bestSim
}
