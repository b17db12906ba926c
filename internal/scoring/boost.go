package scoring

import (
	"math"
	"time"

	"github.com/locaidev/locai/internal/models"
)

// Decay function names accepted in config.
const (
	DecayNone        = "none"
	DecayLinear      = "linear"
	DecayExponential = "exponential"
	DecayLogarithmic = "logarithmic"
)

// Decay maps memory age in hours to a [0,1] freshness factor.
func Decay(fn string, ageHours, rate float64) float64 {
	if ageHours < 0 {
		ageHours = 0
	}
	switch fn {
	case DecayLinear:
		return math.Max(0, 1-ageHours*rate)
	case DecayExponential:
		return math.Exp(-rate * ageHours)
	case DecayLogarithmic:
		return 1 / (1 + math.Log(1+ageHours*rate))
	default:
		return 1
	}
}

// ApplyBoosts fuses the base text and vector scores with additive lifecycle
// boosts:
//
//	final = bm25_weight*s_bm25 + vector_weight*s_vec + recency + access + priority
//
// The additive form keeps per-factor contributions interpretable.
func ApplyBoosts(bm25Score, vectorScore float64, mem *models.Memory, now time.Time, p Params) float64 {
	ageHours := now.Sub(mem.CreatedAt).Hours()

	recency := Decay(p.DecayFunction, ageHours, p.DecayRate) * p.RecencyBoost
	access := math.Min(math.Log1p(float64(mem.AccessCount)), AccessCap) * p.AccessBoost
	priority := float64(mem.Priority) * p.PriorityBoost

	return p.BM25Weight*bm25Score + p.VectorWeight*vectorScore + recency + access + priority
}
