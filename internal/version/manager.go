// Package version implements temporal versioning for memories: delta-encoded
// chains with periodic full copies, optional payload compression, snapshots,
// diffs, and integrity validation/repair.
package version

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/locaidev/locai/internal/errs"
	"github.com/locaidev/locai/internal/metrics"
	"github.com/locaidev/locai/internal/models"
	"github.com/locaidev/locai/internal/store"
	"github.com/locaidev/locai/pkg/textutil"
)

const previewLen = 100

// State is a reconstructed point-in-time view of a memory.
type State struct {
	VersionID string          `json:"version_id"`
	MemoryID  string          `json:"memory_id"`
	Content   string          `json:"content"`
	Tags      []string        `json:"tags,omitempty"`
	Priority  models.Priority `json:"priority"`
	Props     map[string]any  `json:"props,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Manager owns version chains. All mutation goes through the storage adapter;
// the manager never caches chain state between calls.
type Manager struct {
	store         store.Store
	fullCopyEvery int
	codec         Codec
	logger        *slog.Logger
}

// NewManager creates a version manager. fullCopyEvery <= 0 uses the default
// of 10. codec nil means identity.
func NewManager(st store.Store, fullCopyEvery int, codec Codec, logger *slog.Logger) *Manager {
	if fullCopyEvery <= 0 {
		fullCopyEvery = 10
	}
	if codec == nil {
		codec = identityCodec{}
	}
	return &Manager{store: st, fullCopyEvery: fullCopyEvery, codec: codec, logger: logger}
}

func checksumHex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// CreateVersion appends a version capturing the memory's current state. The
// first version of a chain, and every fullCopyEvery-th version, is stored as
// a full copy; the rest are deltas against their predecessor.
func (m *Manager) CreateVersion(ctx context.Context, mem *models.Memory, description string) (*models.Version, error) {
	chain, err := m.store.ListVersions(ctx, mem.ID)
	if err != nil {
		return nil, err
	}
	return m.appendVersion(ctx, chain, mem.ID, mem.Content, mem.Tags, mem.Priority, mem.Properties, description)
}

func (m *Manager) appendVersion(ctx context.Context, chain []models.Version, memoryID, content string, tags []string, priority models.Priority, props map[string]any, description string) (*models.Version, error) {
	v := models.Version{
		ID:             uuid.NewString(),
		MemoryID:       memoryID,
		Description:    description,
		CreatedAt:      time.Now().UTC(),
		Checksum:       checksumHex(content),
		ContentPreview: textutil.Truncate(content, previewLen),
		Tags:           models.NormalizeTags(tags),
		Priority:       priority,
		Props:          props,
	}

	writeFull := len(chain) == 0 || deltasSinceFull(chain)+1 >= m.fullCopyEvery
	var raw []byte
	if writeFull {
		v.IsDelta = false
		v.StorageForm = models.StorageFormFull
		raw = []byte(content)
	} else {
		pred := chain[len(chain)-1]
		predContent, err := m.reconstructContent(ctx, chain, &pred)
		if err != nil {
			return nil, err
		}
		hunks := ComputeHunks(predContent, content)
		raw, err = json.Marshal(hunks)
		if err != nil {
			return nil, errs.Wrap(errs.KindStorage, err, "encoding delta for %s", memoryID)
		}
		v.IsDelta = true
		v.StorageForm = models.StorageFormDelta
		v.PredecessorID = pred.ID
	}

	encoded, err := m.codec.Encode(raw)
	if err != nil {
		return nil, err
	}
	v.Payload = encoded
	v.Codec = m.codec.Name()
	v.SizeBytes = int64(len(encoded))
	if !v.IsDelta && v.Codec == CodecGzip {
		v.StorageForm = models.StorageFormCompressed
	}

	if err := m.store.CreateVersion(ctx, v); err != nil {
		return nil, err
	}
	metrics.Inc(metrics.VersionsCreated)
	m.logger.Debug("version created",
		"memory_id", memoryID, "version_id", v.ID, "is_delta", v.IsDelta, "size_bytes", v.SizeBytes)
	return &v, nil
}

// deltasSinceFull counts chain entries after the most recent full copy.
func deltasSinceFull(chain []models.Version) int {
	n := 0
	for i := len(chain) - 1; i >= 0; i-- {
		if !chain[i].IsDelta {
			break
		}
		n++
	}
	return n
}

// decodePayload reverses the recorded codec.
func decodePayload(v *models.Version) ([]byte, error) {
	codec, err := CodecByName(v.Codec)
	if err != nil {
		return nil, err
	}
	return codec.Decode(v.Payload)
}

// reconstructContent rolls a version forward from its nearest full copy,
// verifying predecessor checksums along the way.
func (m *Manager) reconstructContent(ctx context.Context, chain []models.Version, v *models.Version) (string, error) {
	byID := make(map[string]*models.Version, len(chain))
	for i := range chain {
		byID[chain[i].ID] = &chain[i]
	}

	// Walk back to the base full copy, collecting deltas newest-first.
	var deltas []*models.Version
	cur := v
	visited := map[string]bool{}
	for cur.IsDelta {
		if visited[cur.ID] {
			return "", errs.E(errs.KindIntegrityError, "version chain cycle at %s", cur.ID)
		}
		visited[cur.ID] = true
		if cur.PredecessorID == "" {
			return "", errs.E(errs.KindIntegrityError, "delta version %s has no predecessor", cur.ID)
		}
		deltas = append(deltas, cur)
		pred, ok := byID[cur.PredecessorID]
		if !ok {
			return "", errs.E(errs.KindIntegrityError, "version %s references missing predecessor %s", cur.ID, cur.PredecessorID)
		}
		cur = pred
	}

	raw, err := decodePayload(cur)
	if err != nil {
		return "", err
	}
	content := string(raw)
	if cur.Checksum != "" && checksumHex(content) != cur.Checksum {
		return "", errs.E(errs.KindIntegrityError, "checksum mismatch on full copy %s", cur.ID)
	}

	// Apply deltas oldest-first.
	for i := len(deltas) - 1; i >= 0; i-- {
		d := deltas[i]
		raw, err := decodePayload(d)
		if err != nil {
			return "", err
		}
		var hunks []Hunk
		if err := json.Unmarshal(raw, &hunks); err != nil {
			return "", errs.Wrap(errs.KindIntegrityError, err, "decoding delta %s", d.ID)
		}
		content, err = ApplyHunks(content, hunks)
		if err != nil {
			return "", err
		}
		if d.Checksum != "" && checksumHex(content) != d.Checksum {
			return "", errs.E(errs.KindIntegrityError, "checksum mismatch reconstructing %s", d.ID)
		}
	}
	return content, nil
}

func stateOf(v *models.Version, content string) *State {
	return &State{
		VersionID: v.ID,
		MemoryID:  v.MemoryID,
		Content:   content,
		Tags:      append([]string(nil), v.Tags...),
		Priority:  v.Priority,
		Props:     v.Props,
		CreatedAt: v.CreatedAt,
	}
}

// GetVersion reconstructs the memory state recorded by versionID.
func (m *Manager) GetVersion(ctx context.Context, memoryID, versionID string) (*State, error) {
	chain, err := m.store.ListVersions(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	for i := range chain {
		if chain[i].ID == versionID {
			content, err := m.reconstructContent(ctx, chain, &chain[i])
			if err != nil {
				return nil, err
			}
			return stateOf(&chain[i], content), nil
		}
	}
	return nil, errs.NotFound("version", versionID)
}

// GetCurrentVersion reconstructs the newest version of a memory.
func (m *Manager) GetCurrentVersion(ctx context.Context, memoryID string) (*State, error) {
	chain, err := m.store.ListVersions(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, errs.NotFound("version chain", memoryID)
	}
	last := &chain[len(chain)-1]
	content, err := m.reconstructContent(ctx, chain, last)
	if err != nil {
		return nil, err
	}
	return stateOf(last, content), nil
}

// GetMemoryAtTime returns the latest version created at or before instant,
// or nil when the chain has no version that old.
func (m *Manager) GetMemoryAtTime(ctx context.Context, memoryID string, instant time.Time) (*State, error) {
	chain, err := m.store.ListVersions(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if !chain[i].CreatedAt.After(instant) {
			content, err := m.reconstructContent(ctx, chain, &chain[i])
			if err != nil {
				return nil, err
			}
			return stateOf(&chain[i], content), nil
		}
	}
	return nil, nil
}

// ListVersions returns chain metadata oldest to newest, payloads omitted.
func (m *Manager) ListVersions(ctx context.Context, memoryID string) ([]models.Version, error) {
	chain, err := m.store.ListVersions(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	for i := range chain {
		chain[i].Payload = nil
	}
	return chain, nil
}

// PromoteVersionToFullCopy rewrites a delta version in place as a standalone
// full copy. Successors keep their predecessor reference.
func (m *Manager) PromoteVersionToFullCopy(ctx context.Context, memoryID, versionID string) error {
	chain, err := m.store.ListVersions(ctx, memoryID)
	if err != nil {
		return err
	}
	for i := range chain {
		if chain[i].ID != versionID {
			continue
		}
		if !chain[i].IsDelta {
			return nil
		}
		content, err := m.reconstructContent(ctx, chain, &chain[i])
		if err != nil {
			return err
		}
		encoded, err := m.codec.Encode([]byte(content))
		if err != nil {
			return err
		}
		v := chain[i]
		v.IsDelta = false
		v.StorageForm = models.StorageFormFull
		if m.codec.Name() == CodecGzip {
			v.StorageForm = models.StorageFormCompressed
		}
		v.PredecessorID = ""
		v.Payload = encoded
		v.Codec = m.codec.Name()
		v.Checksum = checksumHex(content)
		v.SizeBytes = int64(len(encoded))
		return m.store.UpdateVersion(ctx, v)
	}
	return errs.NotFound("version", versionID)
}

// CompactOptions scopes a compaction run.
type CompactOptions struct {
	KeepLast  int        // always retain this many newest versions
	OlderThan *time.Time // only remove versions created before this instant
}

// CompactVersions removes intermediate delta versions of a memory. Survivors
// whose predecessor is removed are promoted to full copies first. Refuses
// with WouldOrphanSnapshot when a removal target is referenced by a snapshot.
func (m *Manager) CompactVersions(ctx context.Context, memoryID string, opts CompactOptions) (int, error) {
	chain, err := m.store.ListVersions(ctx, memoryID)
	if err != nil {
		return 0, err
	}
	if len(chain) <= 1 {
		return 0, nil
	}

	protected := len(chain) - opts.KeepLast
	removable := make(map[string]bool)
	for i := range chain {
		// The chain head and tail are endpoints; only intermediate deltas go.
		if i == 0 || i == len(chain)-1 || !chain[i].IsDelta {
			continue
		}
		if opts.KeepLast > 0 && i >= protected {
			continue
		}
		if opts.OlderThan != nil && !chain[i].CreatedAt.Before(*opts.OlderThan) {
			continue
		}
		removable[chain[i].ID] = true
	}
	if len(removable) == 0 {
		return 0, nil
	}

	snaps, err := m.store.ListSnapshots(ctx)
	if err != nil {
		return 0, err
	}
	for _, snap := range snaps {
		for _, vid := range snap.VersionIDs {
			if removable[vid] {
				return 0, errs.E(errs.KindWouldOrphanSnapshot,
					"version %s is referenced by snapshot %s", vid, snap.SnapshotID)
			}
		}
	}

	// Promote survivors that would lose their predecessor.
	for i := range chain {
		if removable[chain[i].ID] {
			continue
		}
		if chain[i].IsDelta && removable[chain[i].PredecessorID] {
			if err := m.PromoteVersionToFullCopy(ctx, memoryID, chain[i].ID); err != nil {
				return 0, err
			}
		}
	}

	removed := 0
	for id := range removable {
		if err := m.store.DeleteVersion(ctx, id); err != nil {
			return removed, err
		}
		removed++
		metrics.Inc(metrics.VersionsCompacted)
	}
	m.logger.Info("compacted version chain", "memory_id", memoryID, "removed", removed)
	return removed, nil
}

// Stats summarizes a version scope.
type Stats struct {
	Total              int     `json:"total"`
	FullCopies         int     `json:"full_copies"`
	Deltas             int     `json:"deltas"`
	DeltaRatio         float64 `json:"delta_ratio"`
	StoredBytes        int64   `json:"stored_bytes"`
	ContentBytes       int64   `json:"content_bytes"`
	CompressionSavings float64 `json:"compression_savings"`
}

// ComputeStats reports counts, delta ratio, and byte totals for one memory's
// chain, or for every chain when memoryID is empty.
func (m *Manager) ComputeStats(ctx context.Context, memoryID string) (*Stats, error) {
	var versions []models.Version
	var err error
	if memoryID == "" {
		versions, err = m.store.ListAllVersions(ctx)
	} else {
		versions, err = m.store.ListVersions(ctx, memoryID)
	}
	if err != nil {
		return nil, err
	}

	stats := &Stats{Total: len(versions)}
	for i := range versions {
		if versions[i].IsDelta {
			stats.Deltas++
		} else {
			stats.FullCopies++
		}
		stats.StoredBytes += versions[i].SizeBytes
		if raw, err := decodePayload(&versions[i]); err == nil {
			stats.ContentBytes += int64(len(raw))
		}
	}
	if stats.Total > 0 {
		stats.DeltaRatio = float64(stats.Deltas) / float64(stats.Total)
	}
	if stats.ContentBytes > 0 {
		stats.CompressionSavings = 1 - float64(stats.StoredBytes)/float64(stats.ContentBytes)
	}
	return stats, nil
}
