package version

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/locaidev/locai/internal/errs"
	"github.com/locaidev/locai/internal/metrics"
	"github.com/locaidev/locai/internal/models"
	"github.com/locaidev/locai/internal/scoring"
	"github.com/locaidev/locai/pkg/textutil"
)

// RestoreMode selects how a snapshot is applied.
type RestoreMode string

const (
	// RestoreOverwrite replaces live memory state with the snapshot state and
	// records the restore as a new terminal version.
	RestoreOverwrite RestoreMode = "overwrite"
	// RestoreNewVersion appends a version equal to the snapshot state without
	// touching live memory records.
	RestoreNewVersion RestoreMode = "create_new_version"
)

// CreateSnapshot fixes the current state of the given memories (all memories
// when ids is empty) by creating a version for each and recording the ids.
func (m *Manager) CreateSnapshot(ctx context.Context, memoryIDs []string, description string) (*models.Snapshot, error) {
	all := len(memoryIDs) == 0
	if all {
		mems, err := m.store.ListMemories(ctx, nil, 0, 0)
		if err != nil {
			return nil, err
		}
		for _, mem := range mems {
			memoryIDs = append(memoryIDs, mem.ID)
		}
	}

	snap := models.Snapshot{
		SnapshotID:  uuid.NewString(),
		Description: description,
		CreatedAt:   time.Now().UTC(),
		All:         all,
		VersionIDs:  make(map[string]string, len(memoryIDs)),
	}

	for _, id := range memoryIDs {
		mem, err := m.store.GetMemory(ctx, id)
		if err != nil {
			return nil, err
		}
		v, err := m.CreateVersion(ctx, mem, "snapshot "+snap.SnapshotID)
		if err != nil {
			return nil, err
		}
		snap.VersionIDs[id] = v.ID
	}
	snap.MemoryCount = len(snap.VersionIDs)

	if err := m.store.CreateSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	metrics.Inc(metrics.SnapshotsCreated)
	m.logger.Info("snapshot created", "snapshot_id", snap.SnapshotID, "memories", snap.MemoryCount)
	return &snap, nil
}

// GetSnapshot returns a snapshot record.
func (m *Manager) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	return m.store.GetSnapshot(ctx, id)
}

// ListSnapshots returns all snapshot records.
func (m *Manager) ListSnapshots(ctx context.Context) ([]models.Snapshot, error) {
	return m.store.ListSnapshots(ctx)
}

// DeleteSnapshot removes a snapshot record. Versions it referenced stay.
func (m *Manager) DeleteSnapshot(ctx context.Context, id string) error {
	return m.store.DeleteSnapshot(ctx, id)
}

// RestoreSnapshot applies the snapshot per the given mode. Memories deleted
// since the snapshot are recreated under Overwrite and skipped otherwise.
func (m *Manager) RestoreSnapshot(ctx context.Context, snapshotID string, mode RestoreMode) error {
	snap, err := m.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return err
	}

	// Deterministic order for reproducible restores.
	memIDs := make([]string, 0, len(snap.VersionIDs))
	for id := range snap.VersionIDs {
		memIDs = append(memIDs, id)
	}
	sort.Strings(memIDs)

	for _, memID := range memIDs {
		verID := snap.VersionIDs[memID]
		state, err := m.GetVersion(ctx, memID, verID)
		if err != nil {
			return err
		}

		switch mode {
		case RestoreOverwrite:
			mem, err := m.store.GetMemory(ctx, memID)
			if errs.IsKind(err, errs.KindNotFound) {
				recreated := models.Memory{
					ID:         memID,
					Content:    state.Content,
					MemoryType: models.MemoryTypeFact,
					CreatedAt:  time.Now().UTC(),
					Tags:       state.Tags,
					Priority:   state.Priority,
					Properties: state.Props,
				}
				if err := m.store.CreateMemory(ctx, recreated); err != nil {
					return err
				}
				mem = &recreated
			} else if err != nil {
				return err
			} else {
				mem.Content = state.Content
				mem.Tags = append([]string(nil), state.Tags...)
				mem.Priority = state.Priority
				mem.Properties = state.Props
				if err := m.store.UpdateMemory(ctx, *mem); err != nil {
					return err
				}
			}
			if _, err := m.CreateVersion(ctx, mem, "restored from snapshot "+snapshotID); err != nil {
				return err
			}

		case RestoreNewVersion:
			chain, err := m.store.ListVersions(ctx, memID)
			if err != nil {
				return err
			}
			if _, err := m.appendVersion(ctx, chain, memID, state.Content, state.Tags, state.Priority, state.Props,
				"restored from snapshot "+snapshotID); err != nil {
				return err
			}

		default:
			return errs.E(errs.KindValidation, "unknown restore mode %q", mode)
		}
	}
	metrics.Inc(metrics.SnapshotsRestored)
	m.logger.Info("snapshot restored", "snapshot_id", snapshotID, "mode", string(mode))
	return nil
}

// SnapshotMatch is one hit of a snapshot-scoped search.
type SnapshotMatch struct {
	MemoryID  string  `json:"memory_id"`
	VersionID string  `json:"version_id"`
	Preview   string  `json:"preview"`
	Score     float64 `json:"score"`
}

// SearchSnapshot runs a BM25 query over the contents fixed by a snapshot.
func (m *Manager) SearchSnapshot(ctx context.Context, snapshotID, query string, limit int) ([]SnapshotMatch, error) {
	queryTerms := textutil.Tokenize(query)
	if len(queryTerms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	snap, err := m.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	memIDs := make([]string, 0, len(snap.VersionIDs))
	for id := range snap.VersionIDs {
		memIDs = append(memIDs, id)
	}
	sort.Strings(memIDs)

	contents := make([]string, 0, len(memIDs))
	for _, memID := range memIDs {
		state, err := m.GetVersion(ctx, memID, snap.VersionIDs[memID])
		if err != nil {
			return nil, err
		}
		contents = append(contents, state.Content)
	}

	tokenized := textutil.TokenizeAll(contents)
	stats := scoring.BuildCorpusStats(tokenized)

	var matches []SnapshotMatch
	for i, memID := range memIDs {
		score := scoring.ScoreBM25(queryTerms, tokenized[i], stats, scoring.DefaultK1, scoring.DefaultB)
		if score == 0 {
			continue
		}
		matches = append(matches, SnapshotMatch{
			MemoryID:  memID,
			VersionID: snap.VersionIDs[memID],
			Preview:   textutil.Truncate(contents[i], previewLen),
			Score:     score,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].MemoryID < matches[j].MemoryID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
