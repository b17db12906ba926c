package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/locaidev/locai/internal/errs"
	"github.com/locaidev/locai/internal/metrics"
	"github.com/locaidev/locai/internal/models"
	"github.com/locaidev/locai/internal/scoring"
	"github.com/locaidev/locai/pkg/textutil"
)

const (
	// DefaultLimit applies when the caller passes limit <= 0.
	DefaultLimit = 10

	maxSnippetLen = 200
)

// Store is the slice of the storage layer the search engine consumes.
type Store interface {
	ListMemories(ctx context.Context, f *models.MemoryFilter, limit, offset int) ([]models.Memory, error)
}

// Engine implements query analysis, the individual retrieval modes, and
// hybrid fusion over them.
type Engine struct {
	store         Store
	params        scoring.Params
	vectorEnabled func() bool
	reasoner      *Reasoner
	logger        *slog.Logger
}

// NewEngine creates a search engine. vectorEnabled gates the semantic modes;
// while it reports false, vector and hybrid requests fail with
// CapabilityMissing. It is a func so the capability can appear at runtime,
// e.g. once an embedding dimension is known.
func NewEngine(st Store, params scoring.Params, vectorEnabled func() bool, logger *slog.Logger) *Engine {
	if vectorEnabled == nil {
		vectorEnabled = func() bool { return false }
	}
	return &Engine{
		store:         st,
		params:        params,
		vectorEnabled: vectorEnabled,
		logger:        logger,
	}
}

// SetReasoner attaches an optional LLM re-ranker applied to hybrid results.
func (e *Engine) SetReasoner(r *Reasoner) { e.reasoner = r }

func (e *Engine) candidates(ctx context.Context, f *models.MemoryFilter) ([]models.Memory, error) {
	return e.store.ListMemories(ctx, f, 0, 0)
}

// BM25Search scores candidates with Okapi BM25 and returns matches with a
// highlight for the first matched term.
func (e *Engine) BM25Search(ctx context.Context, q string, f *models.MemoryFilter, limit int) ([]models.SearchResult, error) {
	metrics.Inc(metrics.SearchTotal)
	queryTerms := textutil.Tokenize(q)
	if len(queryTerms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	mems, err := e.candidates(ctx, f)
	if err != nil {
		return nil, err
	}

	tokenized := make([][]string, len(mems))
	for i := range mems {
		tokenized[i] = textutil.Tokenize(mems[i].Content)
	}
	stats := scoring.BuildCorpusStats(tokenized)

	now := time.Now().UTC()
	var results []models.SearchResult
	for i := range mems {
		bm25 := scoring.ScoreBM25(queryTerms, tokenized[i], stats, e.params.K1, e.params.B)
		if bm25 == 0 {
			continue
		}
		results = append(results, models.SearchResult{
			Memory:      mems[i],
			Score:       scoring.ApplyBoosts(bm25, 0, &mems[i], now, e.params),
			BM25Score:   bm25,
			MatchMethod: models.MatchText,
			Highlight:   highlightFirstTerm(mems[i].Content, queryTerms),
		})
	}
	sortResults(results)
	return clip(results, limit), nil
}

// FuzzySearch matches by normalized edit distance. threshold <= 0 uses the
// configured default. Ties break by higher similarity, then earlier id.
func (e *Engine) FuzzySearch(ctx context.Context, q string, threshold float64, limit int) ([]models.SearchResult, error) {
	metrics.Inc(metrics.SearchTotal)
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}
	if threshold <= 0 {
		threshold = e.params.FuzzyThreshold
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	mems, err := e.candidates(ctx, nil)
	if err != nil {
		return nil, err
	}

	var results []models.SearchResult
	for i := range mems {
		sim, start, end, ok := scoring.BestWindowSimilarity(q, mems[i].Content, threshold)
		if !ok {
			continue
		}
		snippet, relStart, relEnd := textutil.Snippet(mems[i].Content, start, end, maxSnippetLen)
		results = append(results, models.SearchResult{
			Memory:      mems[i],
			Score:       sim,
			MatchMethod: models.MatchFuzzy,
			Highlight:   &models.Highlight{Snippet: snippet, Start: relStart, End: relEnd},
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})
	return clip(results, limit), nil
}

// VectorSearch ranks memories by cosine similarity against qVec. Memories
// without embeddings are skipped; a stored embedding of a different dimension
// fails the whole search with InvalidEmbedding.
func (e *Engine) VectorSearch(ctx context.Context, qVec []float32, f *models.MemoryFilter, limit int) ([]models.SearchResult, error) {
	metrics.Inc(metrics.SearchTotal)
	if !e.vectorEnabled() {
		return nil, errs.CapabilityMissing("vector_search")
	}
	if len(qVec) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	mems, err := e.candidates(ctx, f)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var results []models.SearchResult
	for i := range mems {
		if len(mems[i].Embedding) == 0 {
			continue
		}
		sim, err := scoring.ScoreVector(qVec, mems[i].Embedding)
		if err != nil {
			return nil, err
		}
		results = append(results, models.SearchResult{
			Memory:      mems[i],
			Score:       scoring.ApplyBoosts(0, sim, &mems[i], now, e.params),
			VectorScore: sim,
			MatchMethod: models.MatchSemantic,
		})
	}
	sortResults(results)
	return clip(results, limit), nil
}

// TagSearch returns memories carrying the given tags. matchAll requires every
// tag; otherwise any single tag matches. Results order by created_at desc.
func (e *Engine) TagSearch(ctx context.Context, tags []string, matchAll bool, limit int) ([]models.SearchResult, error) {
	metrics.Inc(metrics.SearchTotal)
	if len(tags) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	mems, err := e.candidates(ctx, nil)
	if err != nil {
		return nil, err
	}

	var results []models.SearchResult
	for i := range mems {
		matched := 0
		for _, tag := range tags {
			if mems[i].HasTag(tag) {
				matched++
			}
		}
		if matchAll && matched < len(tags) {
			continue
		}
		if matched == 0 {
			continue
		}
		results = append(results, models.SearchResult{
			Memory:      mems[i],
			Score:       float64(matched) / float64(len(tags)),
			MatchMethod: models.MatchTag,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Memory.CreatedAt.After(results[j].Memory.CreatedAt)
	})
	return clip(results, limit), nil
}

// IntelligentSearch analyzes the query, runs the chosen strategy, fuses BM25
// and vector scores per the configured weights, dedupes by memory id keeping
// the max score, and returns up to limit results sorted descending.
func (e *Engine) IntelligentSearch(ctx context.Context, q string, qVec []float32, f *models.MemoryFilter, limit int) ([]models.SearchResult, error) {
	metrics.Inc(metrics.SearchTotal)
	if strings.TrimSpace(q) == "" && len(qVec) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	analysis := AnalyzeQuery(q)
	wantVector := len(qVec) > 0
	if wantVector && !e.vectorEnabled() {
		return nil, errs.CapabilityMissing("vector_search")
	}

	if analysis.Strategy == StrategyRecent && f == nil {
		cutoff := time.Now().UTC().Add(-7 * 24 * time.Hour)
		f = &models.MemoryFilter{CreatedAfter: &cutoff}
	}

	mems, err := e.candidates(ctx, f)
	if err != nil {
		return nil, err
	}

	queryTerms := analysis.Tokens
	tokenized := make([][]string, len(mems))
	for i := range mems {
		tokenized[i] = textutil.Tokenize(mems[i].Content)
	}
	stats := scoring.BuildCorpusStats(tokenized)

	now := time.Now().UTC()
	byID := make(map[string]models.SearchResult)
	for i := range mems {
		bm25 := scoring.ScoreBM25(queryTerms, tokenized[i], stats, e.params.K1, e.params.B)

		var vec float64
		hasVec := false
		if wantVector && len(mems[i].Embedding) > 0 {
			vec, err = scoring.ScoreVector(qVec, mems[i].Embedding)
			if err != nil {
				return nil, err
			}
			hasVec = true
		}
		if bm25 == 0 && !hasVec {
			continue
		}

		method := models.MatchText
		switch {
		case bm25 > 0 && hasVec:
			method = models.MatchTextSemantic
		case hasVec:
			method = models.MatchSemantic
		}

		result := models.SearchResult{
			Memory:      mems[i],
			Score:       scoring.ApplyBoosts(bm25, vec, &mems[i], now, e.params),
			BM25Score:   bm25,
			VectorScore: vec,
			MatchMethod: method,
		}
		if bm25 > 0 {
			result.Highlight = highlightFirstTerm(mems[i].Content, queryTerms)
		}
		if prev, ok := byID[mems[i].ID]; !ok || result.Score > prev.Score {
			byID[mems[i].ID] = result
		}
	}

	results := make([]models.SearchResult, 0, len(byID))
	for _, r := range byID {
		results = append(results, r)
	}
	sortResults(results)
	results = clip(results, limit)

	if e.reasoner != nil && strings.TrimSpace(q) != "" {
		results, err = e.reasoner.ReRank(ctx, q, results, 0)
		if err != nil {
			e.logger.Warn("re-rank failed, keeping fused order", "error", err)
		}
	}
	return results, nil
}

// highlightFirstTerm finds the first query term occurring in content and
// builds a snippet marking its span.
func highlightFirstTerm(content string, queryTerms []string) *models.Highlight {
	lower := strings.ToLower(content)
	bestStart := -1
	bestEnd := 0
	for _, term := range queryTerms {
		at := strings.Index(lower, term)
		if at >= 0 && (bestStart == -1 || at < bestStart) {
			bestStart = at
			bestEnd = at + len(term)
		}
	}
	if bestStart == -1 {
		snippet := textutil.Truncate(content, maxSnippetLen)
		return &models.Highlight{Snippet: snippet}
	}
	snippet, relStart, relEnd := textutil.Snippet(content, bestStart, bestEnd, maxSnippetLen)
	return &models.Highlight{Snippet: snippet, Start: relStart, End: relEnd}
}

func sortResults(results []models.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})
}

func clip(results []models.SearchResult, limit int) []models.SearchResult {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
