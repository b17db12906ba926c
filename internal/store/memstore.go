package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/locaidev/locai/internal/errs"
	"github.com/locaidev/locai/internal/models"
)

// MemStore is an embedded in-memory implementation of Store. It backs tests
// and the embedded engine mode. All reads return deep copies so callers can
// never mutate stored state through aliases.
type MemStore struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	memories      map[string]models.Memory
	entities      map[string]models.Entity
	relationships map[string]models.Relationship
	relTypes      map[string]models.RelationshipTypeDef
	versions      map[string]models.Version
	versionSeq    map[string]int64
	snapshots     map[string]models.Snapshot
	nextSeq       int64
}

func newMemState() *memState {
	return &memState{
		memories:      make(map[string]models.Memory),
		entities:      make(map[string]models.Entity),
		relationships: make(map[string]models.Relationship),
		relTypes:      make(map[string]models.RelationshipTypeDef),
		versions:      make(map[string]models.Version),
		versionSeq:    make(map[string]int64),
		snapshots:     make(map[string]models.Snapshot),
	}
}

func (s *memState) clone() *memState {
	out := newMemState()
	out.nextSeq = s.nextSeq
	for k, v := range s.memories {
		out.memories[k] = v.Clone()
	}
	for k, v := range s.entities {
		out.entities[k] = v.Clone()
	}
	for k, v := range s.relationships {
		out.relationships[k] = v.Clone()
	}
	for k, v := range s.relTypes {
		out.relTypes[k] = v.Clone()
	}
	for k, v := range s.versions {
		out.versions[k] = v.Clone()
	}
	for k, v := range s.versionSeq {
		out.versionSeq[k] = v
	}
	for k, v := range s.snapshots {
		out.snapshots[k] = v.Clone()
	}
	return out
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{state: newMemState()}
}

// Init is a no-op for the in-memory store.
func (m *MemStore) Init(_ context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *MemStore) Close(_ context.Context) error { return nil }

// --- memories ---

func (m *MemStore) CreateMemory(_ context.Context, mem models.Memory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createMemory(mem)
}

func (s *memState) createMemory(mem models.Memory) error {
	if _, ok := s.memories[mem.ID]; ok {
		return errs.E(errs.KindConflict, "memory %s already exists", mem.ID).WithHint(mem.ID)
	}
	s.memories[mem.ID] = mem.Clone()
	return nil
}

func (m *MemStore) GetMemory(_ context.Context, id string) (*models.Memory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getMemory(id)
}

func (s *memState) getMemory(id string) (*models.Memory, error) {
	mem, ok := s.memories[id]
	if !ok {
		return nil, errs.NotFound("memory", id)
	}
	out := mem.Clone()
	return &out, nil
}

func (m *MemStore) UpdateMemory(_ context.Context, mem models.Memory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateMemory(mem)
}

func (s *memState) updateMemory(mem models.Memory) error {
	if _, ok := s.memories[mem.ID]; !ok {
		return errs.NotFound("memory", mem.ID)
	}
	s.memories[mem.ID] = mem.Clone()
	return nil
}

func (m *MemStore) DeleteMemory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteMemory(id)
}

func (s *memState) deleteMemory(id string) error {
	if _, ok := s.memories[id]; !ok {
		return errs.NotFound("memory", id)
	}
	delete(s.memories, id)
	return nil
}

func (m *MemStore) ListMemories(_ context.Context, f *models.MemoryFilter, limit, offset int) ([]models.Memory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]models.Memory, 0, len(m.state.memories))
	for _, mem := range m.state.memories {
		if !f.Matches(&mem) {
			continue
		}
		all = append(all, mem.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return page(all, limit, offset), nil
}

func (m *MemStore) CountMemories(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.state.memories)), nil
}

func (m *MemStore) TouchMemory(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.state.memories[id]
	if !ok {
		return errs.NotFound("memory", id)
	}
	mem.AccessCount++
	if mem.LastAccessed == nil || at.After(*mem.LastAccessed) {
		t := at
		mem.LastAccessed = &t
	}
	m.state.memories[id] = mem
	return nil
}

// --- entities ---

func (m *MemStore) CreateEntity(_ context.Context, e models.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createEntity(e)
}

func (s *memState) createEntity(e models.Entity) error {
	if _, ok := s.entities[e.ID]; ok {
		return errs.E(errs.KindConflict, "entity %s already exists", e.ID).WithHint(e.ID)
	}
	s.entities[e.ID] = e.Clone()
	return nil
}

func (m *MemStore) GetEntity(_ context.Context, id string) (*models.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getEntity(id)
}

func (s *memState) getEntity(id string) (*models.Entity, error) {
	e, ok := s.entities[id]
	if !ok {
		return nil, errs.NotFound("entity", id)
	}
	out := e.Clone()
	return &out, nil
}

func (m *MemStore) UpdateEntity(_ context.Context, e models.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateEntity(e)
}

func (s *memState) updateEntity(e models.Entity) error {
	if _, ok := s.entities[e.ID]; !ok {
		return errs.NotFound("entity", e.ID)
	}
	s.entities[e.ID] = e.Clone()
	return nil
}

func (m *MemStore) DeleteEntity(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteEntity(id)
}

func (s *memState) deleteEntity(id string) error {
	if _, ok := s.entities[id]; !ok {
		return errs.NotFound("entity", id)
	}
	delete(s.entities, id)
	return nil
}

func (m *MemStore) ListEntities(_ context.Context, f *models.EntityFilter, limit, offset int) ([]models.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]models.Entity, 0, len(m.state.entities))
	for _, e := range m.state.entities {
		if !f.Matches(&e) {
			continue
		}
		all = append(all, e.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return page(all, limit, offset), nil
}

// --- relationships ---

func (m *MemStore) CreateRelationship(_ context.Context, r models.Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createRelationship(r)
}

func (s *memState) createRelationship(r models.Relationship) error {
	if _, ok := s.relationships[r.ID]; ok {
		return errs.E(errs.KindConflict, "relationship %s already exists", r.ID).WithHint(r.ID)
	}
	s.relationships[r.ID] = r.Clone()
	return nil
}

func (m *MemStore) GetRelationship(_ context.Context, id string) (*models.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getRelationship(id)
}

func (s *memState) getRelationship(id string) (*models.Relationship, error) {
	r, ok := s.relationships[id]
	if !ok {
		return nil, errs.NotFound("relationship", id)
	}
	out := r.Clone()
	return &out, nil
}

func (m *MemStore) UpdateRelationship(_ context.Context, r models.Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateRelationship(r)
}

func (s *memState) updateRelationship(r models.Relationship) error {
	if _, ok := s.relationships[r.ID]; !ok {
		return errs.NotFound("relationship", r.ID)
	}
	s.relationships[r.ID] = r.Clone()
	return nil
}

func (m *MemStore) DeleteRelationship(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteRelationship(id)
}

func (s *memState) deleteRelationship(id string) error {
	if _, ok := s.relationships[id]; !ok {
		return errs.NotFound("relationship", id)
	}
	delete(s.relationships, id)
	return nil
}

func (m *MemStore) ListRelationships(_ context.Context, f *models.RelationshipFilter, limit, offset int) ([]models.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]models.Relationship, 0, len(m.state.relationships))
	for _, r := range m.state.relationships {
		if !f.Matches(&r) {
			continue
		}
		all = append(all, r.Clone())
	}
	sortRelationships(all)
	return page(all, limit, offset), nil
}

func (m *MemStore) ListRelationshipsFor(_ context.Context, nodeID string) ([]models.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []models.Relationship
	for _, r := range m.state.relationships {
		if r.SourceID == nodeID || r.TargetID == nodeID {
			all = append(all, r.Clone())
		}
	}
	sortRelationships(all)
	return all, nil
}

func sortRelationships(rels []models.Relationship) {
	sort.Slice(rels, func(i, j int) bool {
		if !rels[i].CreatedAt.Equal(rels[j].CreatedAt) {
			return rels[i].CreatedAt.Before(rels[j].CreatedAt)
		}
		return rels[i].ID < rels[j].ID
	})
}

// --- versions ---

func (m *MemStore) CreateVersion(_ context.Context, v models.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createVersion(v)
}

func (s *memState) createVersion(v models.Version) error {
	if _, ok := s.versions[v.ID]; ok {
		return errs.E(errs.KindConflict, "version %s already exists", v.ID).WithHint(v.ID)
	}
	s.nextSeq++
	s.versions[v.ID] = v.Clone()
	s.versionSeq[v.ID] = s.nextSeq
	return nil
}

func (m *MemStore) UpdateVersion(_ context.Context, v models.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.versions[v.ID]; !ok {
		return errs.NotFound("version", v.ID)
	}
	m.state.versions[v.ID] = v.Clone()
	return nil
}

func (m *MemStore) DeleteVersion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.versions[id]; !ok {
		return errs.NotFound("version", id)
	}
	delete(m.state.versions, id)
	delete(m.state.versionSeq, id)
	return nil
}

func (m *MemStore) GetVersion(_ context.Context, id string) (*models.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.state.versions[id]
	if !ok {
		return nil, errs.NotFound("version", id)
	}
	out := v.Clone()
	return &out, nil
}

func (m *MemStore) ListVersions(_ context.Context, memoryID string) ([]models.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []models.Version
	for _, v := range m.state.versions {
		if v.MemoryID == memoryID {
			all = append(all, v.Clone())
		}
	}
	m.sortVersions(all)
	return all, nil
}

func (m *MemStore) ListAllVersions(_ context.Context) ([]models.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]models.Version, 0, len(m.state.versions))
	for _, v := range m.state.versions {
		all = append(all, v.Clone())
	}
	m.sortVersions(all)
	return all, nil
}

// sortVersions orders by insertion sequence, which respects creation order
// even when timestamps collide at clock resolution.
func (m *MemStore) sortVersions(all []models.Version) {
	sort.Slice(all, func(i, j int) bool {
		return m.state.versionSeq[all[i].ID] < m.state.versionSeq[all[j].ID]
	})
}

// --- snapshots ---

func (m *MemStore) CreateSnapshot(_ context.Context, s models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.snapshots[s.SnapshotID]; ok {
		return errs.E(errs.KindConflict, "snapshot %s already exists", s.SnapshotID).WithHint(s.SnapshotID)
	}
	m.state.snapshots[s.SnapshotID] = s.Clone()
	return nil
}

func (m *MemStore) GetSnapshot(_ context.Context, id string) (*models.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.state.snapshots[id]
	if !ok {
		return nil, errs.NotFound("snapshot", id)
	}
	out := s.Clone()
	return &out, nil
}

func (m *MemStore) ListSnapshots(_ context.Context) ([]models.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]models.Snapshot, 0, len(m.state.snapshots))
	for _, s := range m.state.snapshots {
		all = append(all, s.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].SnapshotID < all[j].SnapshotID
	})
	return all, nil
}

func (m *MemStore) DeleteSnapshot(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.snapshots[id]; !ok {
		return errs.NotFound("snapshot", id)
	}
	delete(m.state.snapshots, id)
	return nil
}

// --- relationship types ---

func (m *MemStore) PutRelationshipType(_ context.Context, def models.RelationshipTypeDef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.relTypes[def.Name] = def.Clone()
	return nil
}

func (m *MemStore) GetRelationshipType(_ context.Context, name string) (*models.RelationshipTypeDef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, ok := m.state.relTypes[name]
	if !ok {
		return nil, errs.NotFound("relationship type", name)
	}
	out := def.Clone()
	return &out, nil
}

func (m *MemStore) ListRelationshipTypes(_ context.Context) ([]models.RelationshipTypeDef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]models.RelationshipTypeDef, 0, len(m.state.relTypes))
	for _, def := range m.state.relTypes {
		all = append(all, def.Clone())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func (m *MemStore) DeleteRelationshipType(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.relTypes[name]; !ok {
		return errs.NotFound("relationship type", name)
	}
	delete(m.state.relTypes, name)
	return nil
}

// --- graph traversal ---

func (m *MemStore) Neighbors(_ context.Context, id string, relType string, depth int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if depth <= 0 {
		depth = 1
	}
	visited := map[string]bool{id: true}
	frontier := []string{id}
	var out []string

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []string
		for _, node := range frontier {
			for _, r := range m.state.relationships {
				if relType != "" && r.RelationshipType != relType {
					continue
				}
				var other string
				switch node {
				case r.SourceID:
					other = r.TargetID
				case r.TargetID:
					other = r.SourceID
				default:
					continue
				}
				if visited[other] {
					continue
				}
				visited[other] = true
				next = append(next, other)
				out = append(out, other)
			}
		}
		frontier = next
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemStore) Paths(_ context.Context, fromID, toID string, maxDepth int) ([][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if maxDepth <= 0 {
		maxDepth = 3
	}

	adj := make(map[string][]string)
	for _, r := range m.state.relationships {
		adj[r.SourceID] = append(adj[r.SourceID], r.TargetID)
		adj[r.TargetID] = append(adj[r.TargetID], r.SourceID)
	}
	for _, nbrs := range adj {
		sort.Strings(nbrs)
	}

	var paths [][]string
	var walk func(node string, path []string)
	walk = func(node string, path []string) {
		if node == toID {
			paths = append(paths, append([]string(nil), path...))
			return
		}
		if len(path)-1 >= maxDepth {
			return
		}
		for _, next := range adj[node] {
			if containsStr(path, next) {
				continue
			}
			walk(next, append(path, next))
		}
	}
	walk(fromID, []string{fromID})
	return paths, nil
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// --- stats ---

func (m *MemStore) Stats(_ context.Context) (*models.EngineStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.EngineStats{
		TotalMemories:      int64(len(m.state.memories)),
		TotalEntities:      int64(len(m.state.entities)),
		TotalRelationships: int64(len(m.state.relationships)),
		TotalVersions:      int64(len(m.state.versions)),
		ByMemoryType:       make(map[string]int64),
	}
	for _, mem := range m.state.memories {
		stats.ByMemoryType[string(mem.MemoryType)]++
	}
	return stats, nil
}

// --- transactions ---

// memTx runs against a staged deep copy of the store state. On success the
// staged state replaces the live state wholesale; on failure it is discarded.
type memTx struct {
	state *memState
}

func (t *memTx) CreateMemory(_ context.Context, mem models.Memory) error {
	return t.state.createMemory(mem)
}
func (t *memTx) GetMemory(_ context.Context, id string) (*models.Memory, error) {
	return t.state.getMemory(id)
}
func (t *memTx) UpdateMemory(_ context.Context, mem models.Memory) error {
	return t.state.updateMemory(mem)
}
func (t *memTx) DeleteMemory(_ context.Context, id string) error { return t.state.deleteMemory(id) }

func (t *memTx) CreateEntity(_ context.Context, e models.Entity) error {
	return t.state.createEntity(e)
}
func (t *memTx) GetEntity(_ context.Context, id string) (*models.Entity, error) {
	return t.state.getEntity(id)
}
func (t *memTx) UpdateEntity(_ context.Context, e models.Entity) error {
	return t.state.updateEntity(e)
}
func (t *memTx) DeleteEntity(_ context.Context, id string) error { return t.state.deleteEntity(id) }

func (t *memTx) CreateRelationship(_ context.Context, r models.Relationship) error {
	return t.state.createRelationship(r)
}
func (t *memTx) GetRelationship(_ context.Context, id string) (*models.Relationship, error) {
	return t.state.getRelationship(id)
}
func (t *memTx) UpdateRelationship(_ context.Context, r models.Relationship) error {
	return t.state.updateRelationship(r)
}
func (t *memTx) DeleteRelationship(_ context.Context, id string) error {
	return t.state.deleteRelationship(id)
}

func (t *memTx) CreateVersion(_ context.Context, v models.Version) error {
	return t.state.createVersion(v)
}
func (t *memTx) UpdateVersion(_ context.Context, v models.Version) error {
	if _, ok := t.state.versions[v.ID]; !ok {
		return errs.NotFound("version", v.ID)
	}
	t.state.versions[v.ID] = v.Clone()
	return nil
}
func (t *memTx) DeleteVersion(_ context.Context, id string) error {
	if _, ok := t.state.versions[id]; !ok {
		return errs.NotFound("version", id)
	}
	delete(t.state.versions, id)
	delete(t.state.versionSeq, id)
	return nil
}

// ExecTx stages fn against a deep copy and commits atomically on success.
func (m *MemStore) ExecTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.state.clone()
	if err := fn(&memTx{state: staged}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		// Cancelled before commit: nothing becomes visible.
		return errs.Wrap(errs.KindTimeout, err, "transaction cancelled before commit")
	}
	m.state = staged
	return nil
}

// page applies limit/offset to a sorted slice.
func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}
