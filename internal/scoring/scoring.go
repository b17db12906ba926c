// Package scoring computes relevance scores for memory retrieval: Okapi BM25
// over tokenized content, normalized edit-distance fuzzy similarity, cosine
// similarity over caller-supplied embeddings, and additive lifecycle boosts.
package scoring

import (
	"github.com/locaidev/locai/internal/config"
)

const (
	// Okapi BM25 defaults.
	DefaultK1 = 1.2
	DefaultB  = 0.75

	// Cap on the log-scaled access contribution before weighting.
	AccessCap = 5.0
)

// Params holds the knobs the scorer needs. Derived from config so the
// package has no dependency on where settings come from at call sites.
type Params struct {
	K1             float64
	B              float64
	BM25Weight     float64
	VectorWeight   float64
	RecencyBoost   float64
	AccessBoost    float64
	PriorityBoost  float64
	DecayFunction  string
	DecayRate      float64
	FuzzyThreshold float64
}

// ParamsFromConfig maps the search config onto scoring parameters,
// filling in BM25 constants.
func ParamsFromConfig(sc config.SearchConfig) Params {
	return Params{
		K1:             DefaultK1,
		B:              DefaultB,
		BM25Weight:     sc.Scoring.BM25Weight,
		VectorWeight:   sc.Scoring.VectorWeight,
		RecencyBoost:   sc.Scoring.RecencyBoost,
		AccessBoost:    sc.Scoring.AccessBoost,
		PriorityBoost:  sc.Scoring.PriorityBoost,
		DecayFunction:  sc.Scoring.DecayFunction,
		DecayRate:      sc.Scoring.DecayRate,
		FuzzyThreshold: sc.Fuzzy.DefaultThreshold,
	}
}
