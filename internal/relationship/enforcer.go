package relationship

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/locaidev/locai/internal/models"
)

// manualInverseWindow bounds how far apart two relationships may be created
// and still count as a manual inverse pair.
const manualInverseWindow = 5 * time.Second

// EnforcementResult describes what a create must write: the primary record
// and any additional records that belong in the same transaction.
type EnforcementResult struct {
	Primary     models.Relationship
	Additional  []models.Relationship
	Enforced    bool
	Description string
}

// Metrics is a snapshot of enforcement counters with derived percentages.
type Metrics struct {
	TotalCreated        int64   `json:"total_created"`
	SymmetricCreated    int64   `json:"symmetric_created"`
	TransitiveCreated   int64   `json:"transitive_created"`
	ManualInversePairs  int64   `json:"manual_inverse_pairs"`
	EnforcementEnabled  int64   `json:"enforcement_enabled"`
	EnforcementDisabled int64   `json:"enforcement_disabled"`
	SymmetricPercent    float64 `json:"symmetric_percent"`
	TransitivePercent   float64 `json:"transitive_percent"`
}

// Enforcer applies relationship type constraints on create and delete.
// Symmetric types are represented as two mutual records written in one
// transaction; asymmetric labeled inverses are informational only.
type Enforcer struct {
	registry *Registry
	logger   *slog.Logger

	totalCreated        atomic.Int64
	symmetricCreated    atomic.Int64
	transitiveCreated   atomic.Int64
	manualInversePairs  atomic.Int64
	enforcementEnabled  atomic.Int64
	enforcementDisabled atomic.Int64
}

// NewEnforcer creates an enforcer over a registry.
func NewEnforcer(registry *Registry, logger *slog.Logger) *Enforcer {
	return &Enforcer{registry: registry, logger: logger}
}

// EnforceOnCreate decides what records a relationship create produces. With
// enforcement off, the primary passes through unchanged and the manual-mode
// counter ticks.
func (e *Enforcer) EnforceOnCreate(rel models.Relationship, enforce bool) EnforcementResult {
	e.totalCreated.Add(1)

	if !enforce {
		e.enforcementDisabled.Add(1)
		return EnforcementResult{
			Primary:     rel,
			Description: "enforcement disabled, primary record only",
		}
	}
	e.enforcementEnabled.Add(1)

	result := EnforcementResult{Primary: rel, Enforced: true, Description: "no constraints for type"}

	def, err := e.registry.Get(rel.RelationshipType)
	if err != nil {
		return result
	}

	if def.Transitive {
		e.transitiveCreated.Add(1)
		result.Description = "transitive type recorded, closure resolved at query time"
	}

	if def.Symmetric {
		e.symmetricCreated.Add(1)
		mirror := rel.Clone()
		mirror.ID = uuid.NewString()
		mirror.SourceID = rel.TargetID
		mirror.TargetID = rel.SourceID
		result.Additional = append(result.Additional, mirror)
		result.Description = "symmetric type, mutual record added"
	}
	return result
}

// EnforceOnDelete returns the ids that a delete must remove. For symmetric
// types with enforcement on, the mirror record found in candidates is
// cascaded; candidates should be the relationships touching either endpoint.
func (e *Enforcer) EnforceOnDelete(rel models.Relationship, candidates []models.Relationship, enforce bool) []string {
	ids := []string{rel.ID}
	if !enforce {
		return ids
	}

	def, err := e.registry.Get(rel.RelationshipType)
	if err != nil || !def.Symmetric {
		return ids
	}

	for _, c := range candidates {
		if c.ID == rel.ID {
			continue
		}
		if c.RelationshipType == rel.RelationshipType &&
			c.SourceID == rel.TargetID && c.TargetID == rel.SourceID {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// RecordManualInverse ticks the manual-inverse counter when two existing
// relationships of the same type have swapped endpoints and were created
// within the detection window.
func (e *Enforcer) RecordManualInverse(a, b models.Relationship) bool {
	if a.RelationshipType != b.RelationshipType {
		return false
	}
	if a.SourceID != b.TargetID || a.TargetID != b.SourceID {
		return false
	}
	gap := a.CreatedAt.Sub(b.CreatedAt)
	if gap < 0 {
		gap = -gap
	}
	if gap > manualInverseWindow {
		return false
	}
	e.manualInversePairs.Add(1)
	return true
}

// Snapshot returns current counter values with derived percentages.
func (e *Enforcer) Snapshot() Metrics {
	m := Metrics{
		TotalCreated:        e.totalCreated.Load(),
		SymmetricCreated:    e.symmetricCreated.Load(),
		TransitiveCreated:   e.transitiveCreated.Load(),
		ManualInversePairs:  e.manualInversePairs.Load(),
		EnforcementEnabled:  e.enforcementEnabled.Load(),
		EnforcementDisabled: e.enforcementDisabled.Load(),
	}
	if m.TotalCreated > 0 {
		m.SymmetricPercent = 100 * float64(m.SymmetricCreated) / float64(m.TotalCreated)
		m.TransitivePercent = 100 * float64(m.TransitiveCreated) / float64(m.TotalCreated)
	}
	return m
}
