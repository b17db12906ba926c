package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locaidev/locai/internal/errs"
	"github.com/locaidev/locai/internal/models"
	"github.com/locaidev/locai/pkg/textutil"
)

func defaultParams() Params {
	return Params{
		K1:             DefaultK1,
		B:              DefaultB,
		BM25Weight:     0.7,
		VectorWeight:   0.3,
		RecencyBoost:   0.1,
		AccessBoost:    0.05,
		PriorityBoost:  0.1,
		DecayFunction:  DecayExponential,
		DecayRate:      0.001,
		FuzzyThreshold: 0.3,
	}
}

func TestScoreBM25_RanksByRelevanceAndPriority(t *testing.T) {
	docs := []string{
		"machine learning is a subfield of AI",
		"quantum computing may accelerate machine learning",
		"the capital of France is Paris",
	}
	priorities := []models.Priority{models.PriorityHigh, models.PriorityNormal, models.PriorityLow}

	tokenized := textutil.TokenizeAll(docs)
	stats := BuildCorpusStats(tokenized)
	query := textutil.Tokenize("machine learning")

	now := time.Now().UTC()
	p := defaultParams()

	scores := make([]float64, len(docs))
	for i := range docs {
		bm25 := ScoreBM25(query, tokenized[i], stats, p.K1, p.B)
		mem := &models.Memory{Content: docs[i], CreatedAt: now, Priority: priorities[i]}
		scores[i] = ApplyBoosts(bm25, 0, mem, now, p)
	}

	zero := ScoreBM25(query, tokenized[2], stats, p.K1, p.B)
	assert.Zero(t, zero, "no term overlap yields zero BM25")
	assert.Greater(t, scores[0], scores[1])
	assert.Greater(t, scores[1], scores[2])
}

func TestScoreBM25_EmptyInputs(t *testing.T) {
	stats := BuildCorpusStats([][]string{{"a"}})
	assert.Zero(t, ScoreBM25(nil, []string{"a"}, stats, DefaultK1, DefaultB))
	assert.Zero(t, ScoreBM25([]string{"a"}, nil, stats, DefaultK1, DefaultB))
	assert.Zero(t, ScoreBM25([]string{"a"}, []string{"a"}, CorpusStats{}, DefaultK1, DefaultB))
}

func TestScoreBM25_RarerTermScoresHigher(t *testing.T) {
	tokenized := textutil.TokenizeAll([]string{
		"go channels and goroutines",
		"go maps and slices",
		"go interfaces and channels",
	})
	stats := BuildCorpusStats(tokenized)

	// "goroutines" appears in one doc, "channels" in two.
	rare := ScoreBM25([]string{"goroutines"}, tokenized[0], stats, DefaultK1, DefaultB)
	common := ScoreBM25([]string{"channels"}, tokenized[0], stats, DefaultK1, DefaultB)
	assert.Greater(t, rare, common)
}

func TestScoreFuzzy_TypoTolerance(t *testing.T) {
	sim, ok := ScoreFuzzy("machien lerning", "machine learning", 0.3)
	require.True(t, ok)
	assert.GreaterOrEqual(t, sim, 0.7)
}

func TestScoreFuzzy_BelowThreshold(t *testing.T) {
	_, ok := ScoreFuzzy("xyzqw", "machine learning", 0.3)
	assert.False(t, ok)
}

func TestScoreFuzzy_EmptyInputs(t *testing.T) {
	_, ok := ScoreFuzzy("", "content", 0.3)
	assert.False(t, ok)
	_, ok = ScoreFuzzy("query", "", 0.3)
	assert.False(t, ok)
}

func TestBestWindowSimilarity_LongContent(t *testing.T) {
	content := "yesterday we talked about how machine learning models handle sparse data in production"
	sim, start, end, ok := BestWindowSimilarity("machien lerning", content, 0.3)
	require.True(t, ok)
	assert.GreaterOrEqual(t, sim, 0.7)
	assert.Equal(t, "machine learning", content[start:end])
}

func TestScoreVector_Cosine(t *testing.T) {
	sim, err := ScoreVector([]float32{1, 0, 0}, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, err = ScoreVector([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)

	sim, err = ScoreVector([]float32{1, 2, 3}, []float32{-1, -2, -3})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, sim, 1e-9)
}

func TestScoreVector_DimensionMismatch(t *testing.T) {
	_, err := ScoreVector([]float32{1, 2}, []float32{1, 2, 3})
	assert.True(t, errs.IsKind(err, errs.KindInvalidEmbedding))
}

func TestScoreVector_ZeroVector(t *testing.T) {
	sim, err := ScoreVector([]float32{0, 0, 0}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Zero(t, sim)
}

func TestDecayFunctions(t *testing.T) {
	assert.Equal(t, 1.0, Decay(DecayNone, 100, 0.5))
	assert.Equal(t, 1.0, Decay(DecayLinear, 0, 0.1))
	assert.Equal(t, 0.0, Decay(DecayLinear, 100, 1))
	assert.InDelta(t, 1.0, Decay(DecayExponential, 0, 0.1), 1e-9)
	assert.Less(t, Decay(DecayExponential, 10, 0.1), 1.0)
	assert.InDelta(t, 1.0, Decay(DecayLogarithmic, 0, 0.1), 1e-9)
	assert.Less(t, Decay(DecayLogarithmic, 100, 0.5), 1.0)
}

func TestApplyBoosts_PriorityOrdering(t *testing.T) {
	now := time.Now().UTC()
	p := defaultParams()

	low := &models.Memory{CreatedAt: now, Priority: models.PriorityLow}
	critical := &models.Memory{CreatedAt: now, Priority: models.PriorityCritical}

	assert.Greater(t, ApplyBoosts(1, 0, critical, now, p), ApplyBoosts(1, 0, low, now, p))
}

func TestApplyBoosts_AccessCapped(t *testing.T) {
	now := time.Now().UTC()
	p := defaultParams()
	p.DecayFunction = DecayNone

	busy := &models.Memory{CreatedAt: now, AccessCount: 1_000_000}
	busier := &models.Memory{CreatedAt: now, AccessCount: 10_000_000}

	assert.Equal(t, ApplyBoosts(0, 0, busy, now, p), ApplyBoosts(0, 0, busier, now, p))
}
