package scoring

import (
	"math"

	"github.com/locaidev/locai/pkg/textutil"
)

// CorpusStats is a snapshot of corpus-level statistics needed by BM25. It is
// built per search over the candidate set and cached by callers between bulk
// changes.
type CorpusStats struct {
	DocCount  int
	AvgDocLen float64
	DocFreq   map[string]int
}

// BuildCorpusStats computes document frequencies and average length over
// tokenized documents.
func BuildCorpusStats(docs [][]string) CorpusStats {
	stats := CorpusStats{
		DocCount: len(docs),
		DocFreq:  make(map[string]int),
	}
	totalLen := 0
	for _, doc := range docs {
		totalLen += len(doc)
		seen := make(map[string]bool, len(doc))
		for _, term := range doc {
			if !seen[term] {
				seen[term] = true
				stats.DocFreq[term]++
			}
		}
	}
	if stats.DocCount > 0 {
		stats.AvgDocLen = float64(totalLen) / float64(stats.DocCount)
	}
	return stats
}

// ScoreBM25 computes the Okapi BM25 score of a tokenized document against
// query terms. Scores are unbounded above; zero means no term overlap.
func ScoreBM25(queryTerms, docTokens []string, stats CorpusStats, k1, b float64) float64 {
	if len(queryTerms) == 0 || len(docTokens) == 0 || stats.DocCount == 0 {
		return 0
	}

	tf := textutil.TermFrequencies(docTokens)
	docLen := float64(len(docTokens))
	avgLen := stats.AvgDocLen
	if avgLen == 0 {
		avgLen = docLen
	}

	score := 0.0
	for _, term := range queryTerms {
		f := float64(tf[term])
		if f == 0 {
			continue
		}
		df := float64(stats.DocFreq[term])
		idf := math.Log(1 + (float64(stats.DocCount)-df+0.5)/(df+0.5))
		score += idf * (f * (k1 + 1)) / (f + k1*(1-b+b*docLen/avgLen))
	}
	return score
}
