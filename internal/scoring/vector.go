package scoring

import (
	"math"

	"github.com/locaidev/locai/internal/errs"
)

// ScoreVector computes cosine similarity between a query vector and a stored
// embedding. Dimension mismatches and non-finite components are rejected with
// InvalidEmbedding.
func ScoreVector(q, d []float32) (float64, error) {
	if len(q) == 0 || len(d) == 0 {
		return 0, errs.E(errs.KindInvalidEmbedding, "empty vector")
	}
	if len(q) != len(d) {
		return 0, errs.E(errs.KindInvalidEmbedding, "dimension mismatch: query %d vs embedding %d", len(q), len(d))
	}

	var dot, qNorm, dNorm float64
	for i := range q {
		qv, dv := float64(q[i]), float64(d[i])
		if math.IsNaN(qv) || math.IsInf(qv, 0) || math.IsNaN(dv) || math.IsInf(dv, 0) {
			return 0, errs.E(errs.KindInvalidEmbedding, "non-finite vector component at index %d", i)
		}
		dot += qv * dv
		qNorm += qv * qv
		dNorm += dv * dv
	}
	if qNorm == 0 || dNorm == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(qNorm) * math.Sqrt(dNorm)), nil
}
