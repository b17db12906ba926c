// Package engine composes the storage adapter, search, versioning,
// relationship enforcement, hooks, batching, and live notifications behind a
// single memory-manager facade. All writes flow through here so hooks fire,
// versions append, and change events publish consistently.
package engine

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/locaidev/locai/internal/batch"
	"github.com/locaidev/locai/internal/config"
	"github.com/locaidev/locai/internal/errs"
	"github.com/locaidev/locai/internal/hooks"
	"github.com/locaidev/locai/internal/live"
	"github.com/locaidev/locai/internal/models"
	"github.com/locaidev/locai/internal/relationship"
	"github.com/locaidev/locai/internal/scoring"
	"github.com/locaidev/locai/internal/search"
	"github.com/locaidev/locai/internal/store"
	"github.com/locaidev/locai/internal/version"
)

// Engine is the memory manager facade.
type Engine struct {
	cfg        *config.Config
	store      store.Store
	search     *search.Engine
	versions   *version.Manager
	relTypes   *relationship.Registry
	enforcer   *relationship.Enforcer
	hooks      *hooks.Registry
	dispatcher *live.Dispatcher
	batch      *batch.Executor
	logger     *slog.Logger

	versioning     bool
	enforceDefault bool

	// embeddingDim guards the engine-wide vector dimension. 0 with dimAuto
	// means unset: the first embedded memory fixes it for the engine's
	// lifetime.
	dimMu        sync.Mutex
	embeddingDim int
	dimAuto      bool
}

// New builds an engine over the given store. Call Init before use.
func New(cfg *config.Config, st store.Store, logger *slog.Logger) (*Engine, error) {
	codecName := ""
	if cfg.Versioning.Compression.Enabled {
		codecName = cfg.Versioning.Compression.Codec
	}
	codec, err := version.CodecByName(codecName)
	if err != nil {
		return nil, err
	}

	nodeID := cfg.LiveQuery.NodeID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	e := &Engine{
		cfg:            cfg,
		store:          st,
		versions:       version.NewManager(st, cfg.Versioning.FullCopyEvery, codec, logger),
		relTypes:       relationship.NewRegistry(st, logger),
		hooks:          hooks.NewRegistry(logger),
		dispatcher:     live.NewDispatcher(nodeID, cfg.LiveQuery.BufferSize, logger),
		logger:         logger,
		versioning:     cfg.Versioning.Enabled,
		enforceDefault: cfg.Relationship.EnforcementDefault,
		embeddingDim:   cfg.Embedding.ExpectedDimension,
		dimAuto:        cfg.Embedding.ExpectedDimension == 0,
	}
	e.enforcer = relationship.NewEnforcer(e.relTypes, logger)

	e.search = search.NewEngine(st, scoring.ParamsFromConfig(cfg.Search), e.vectorCapable, logger)
	if cfg.Claude.APIKey != "" {
		e.search.SetReasoner(search.NewReasoner(cfg.Claude.APIKey, cfg.Claude.Model, logger))
	}

	e.batch = batch.NewExecutor(st, logger,
		batch.WithMaxBatchSize(cfg.Batch.MaxBatchSize),
		batch.WithRelationshipExpander(e.expandRelationship))
	return e, nil
}

// Init prepares storage schema and hydrates the relationship type registry,
// seeding the built-in types on first run.
func (e *Engine) Init(ctx context.Context) error {
	if err := e.store.Init(ctx); err != nil {
		return err
	}
	if err := e.relTypes.Load(ctx); err != nil {
		return err
	}
	return e.relTypes.SeedCommonTypes(ctx)
}

// Close releases the underlying store.
func (e *Engine) Close(ctx context.Context) error {
	return e.store.Close(ctx)
}

// Hooks returns the hook registry for lifecycle hook registration.
func (e *Engine) Hooks() *hooks.Registry { return e.hooks }

// RelationshipTypes returns the relationship type registry.
func (e *Engine) RelationshipTypes() *relationship.Registry { return e.relTypes }

// EnforcementMetrics returns a snapshot of constraint-enforcement counters.
func (e *Engine) EnforcementMetrics() relationship.Metrics { return e.enforcer.Snapshot() }

// NodeID identifies this engine instance on published change events.
func (e *Engine) NodeID() string { return e.dispatcher.NodeID() }

// checkEmbedding enforces the engine-wide vector dimension. In auto mode the
// first embedded record fixes the dimension; afterwards it is immutable.
func (e *Engine) checkEmbedding(embedding []float32) error {
	if len(embedding) == 0 {
		return nil
	}
	e.dimMu.Lock()
	defer e.dimMu.Unlock()
	if e.embeddingDim == 0 && e.dimAuto {
		e.embeddingDim = len(embedding)
		e.logger.Info("embedding dimension fixed", "dimension", e.embeddingDim)
		return nil
	}
	if len(embedding) != e.embeddingDim {
		return errs.E(errs.KindInvalidEmbedding,
			"embedding has %d dimensions, engine expects %d", len(embedding), e.embeddingDim).
			WithHint("embedding")
	}
	return nil
}

// checkQueryVector validates a query vector against the fixed dimension.
// Unlike stored embeddings, query vectors never fix the dimension.
func (e *Engine) checkQueryVector(qVec []float32) error {
	e.dimMu.Lock()
	defer e.dimMu.Unlock()
	if e.embeddingDim == 0 || len(qVec) == e.embeddingDim {
		return nil
	}
	return errs.E(errs.KindInvalidEmbedding,
		"query vector has %d dimensions, engine expects %d", len(qVec), e.embeddingDim).
		WithHint("query_vector")
}

// EmbeddingDimension reports the fixed dimension, 0 while still unset.
func (e *Engine) EmbeddingDimension() int {
	e.dimMu.Lock()
	defer e.dimMu.Unlock()
	return e.embeddingDim
}

// vectorCapable reports whether semantic search is available. The dimension
// must be known, either configured up front or fixed by a stored embedding.
func (e *Engine) vectorCapable() bool { return e.EmbeddingDimension() > 0 }

// StoreMemory validates, persists, versions, and announces a new memory.
// Embedding dimension mismatches fail before any write.
func (e *Engine) StoreMemory(ctx context.Context, m models.Memory) (*models.Memory, error) {
	if m.Content == "" {
		return nil, errs.E(errs.KindValidation, "memory content must not be empty").WithHint("content")
	}
	if !m.MemoryType.IsValid() {
		return nil, errs.E(errs.KindValidation, "memory type must not be empty").WithHint("memory_type")
	}
	if !m.Priority.IsValid() {
		return nil, errs.E(errs.KindValidation, "priority %d is out of range", m.Priority).WithHint("priority")
	}
	if err := e.checkEmbedding(m.Embedding); err != nil {
		return nil, err
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.NormalizeTags()

	if err := e.store.CreateMemory(ctx, m); err != nil {
		return nil, err
	}

	var ver *models.Version
	if e.versioning {
		v, err := e.versions.CreateVersion(ctx, &m, "created")
		if err != nil {
			return nil, err
		}
		ver = v
	}

	e.hooks.ExecuteOnCreated(ctx, &m)
	e.publish(models.EventMemoryCreated, &m, nil, nil, "")
	if ver != nil {
		e.dispatcher.Publish(models.ChangeEvent{
			Type: models.EventVersionCreated, Timestamp: time.Now().UTC(), Version: ver,
		})
	}
	e.logger.Debug("memory stored", "memory_id", m.ID, "memory_type", m.MemoryType)
	return &m, nil
}

// GetMemory returns a memory, recording the access: access_count increments,
// last_accessed moves forward, and on-accessed hooks fire.
func (e *Engine) GetMemory(ctx context.Context, id string) (*models.Memory, error) {
	m, err := e.store.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := e.store.TouchMemory(ctx, id, now); err != nil {
		return nil, err
	}
	m.AccessCount++
	m.LastAccessed = &now
	e.hooks.ExecuteOnAccessed(ctx, m)
	return m, nil
}

// PeekMemory returns a memory without recording the access.
func (e *Engine) PeekMemory(ctx context.Context, id string) (*models.Memory, error) {
	return e.store.GetMemory(ctx, id)
}

// RecordAccess bumps access bookkeeping without returning content. No
// version is produced.
func (e *Engine) RecordAccess(ctx context.Context, id string) error {
	m, err := e.store.GetMemory(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := e.store.TouchMemory(ctx, id, now); err != nil {
		return err
	}
	m.AccessCount++
	m.LastAccessed = &now
	e.hooks.ExecuteOnAccessed(ctx, m)
	return nil
}

// TagMemory adds tags to a memory. Newly added tags append a version;
// tagging with only already-present tags leaves the record untouched.
func (e *Engine) TagMemory(ctx context.Context, id string, tags []string) (*models.Memory, error) {
	if len(tags) == 0 {
		return nil, errs.E(errs.KindValidation, "at least one tag is required").WithHint("tags")
	}
	m, err := e.store.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}
	old := m.Clone()
	m.Tags = append(m.Tags, tags...)
	m.NormalizeTags()
	if len(m.Tags) == len(old.Tags) {
		return m, nil
	}

	if err := e.store.UpdateMemory(ctx, *m); err != nil {
		return nil, err
	}
	if e.versioning {
		if _, err := e.versions.CreateVersion(ctx, m, "tagged"); err != nil {
			return nil, err
		}
	}
	e.hooks.ExecuteOnUpdated(ctx, &old, m)
	e.publish(models.EventMemoryUpdated, m, nil, nil, "")
	return m, nil
}

// AddRelated links two memories with the symmetric related_to type, so the
// link is traversable from either side. Both memories' related_memories
// lists pick up the other's id; entity endpoints only get the edge.
func (e *Engine) AddRelated(ctx context.Context, sourceID, targetID string) (*relationship.EnforcementResult, error) {
	res, err := e.CreateRelationship(ctx, models.Relationship{
		SourceID:         sourceID,
		TargetID:         targetID,
		RelationshipType: "related_to",
	})
	if err != nil {
		return nil, err
	}

	for _, pair := range [][2]string{{sourceID, targetID}, {targetID, sourceID}} {
		m, err := e.store.GetMemory(ctx, pair[0])
		if err != nil {
			if errs.IsKind(err, errs.KindNotFound) {
				continue
			}
			return nil, err
		}
		if slices.Contains(m.RelatedMemories, pair[1]) {
			continue
		}
		m.RelatedMemories = append(m.RelatedMemories, pair[1])
		if err := e.store.UpdateMemory(ctx, *m); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// UpdateMemory replaces a memory's content and metadata. Access bookkeeping
// and creation time are preserved from the stored record.
func (e *Engine) UpdateMemory(ctx context.Context, m models.Memory) (*models.Memory, error) {
	if m.ID == "" {
		return nil, errs.E(errs.KindValidation, "memory id must not be empty").WithHint("id")
	}
	if m.Content == "" {
		return nil, errs.E(errs.KindValidation, "memory content must not be empty").WithHint("content")
	}
	if err := e.checkEmbedding(m.Embedding); err != nil {
		return nil, err
	}

	old, err := e.store.GetMemory(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = old.CreatedAt
	m.AccessCount = old.AccessCount
	m.LastAccessed = old.LastAccessed
	if m.MemoryType == "" {
		m.MemoryType = old.MemoryType
	}
	m.NormalizeTags()

	if err := e.store.UpdateMemory(ctx, m); err != nil {
		return nil, err
	}
	if e.versioning {
		if _, err := e.versions.CreateVersion(ctx, &m, "updated"); err != nil {
			return nil, err
		}
	}
	e.hooks.ExecuteOnUpdated(ctx, old, &m)
	e.publish(models.EventMemoryUpdated, &m, nil, nil, "")
	return &m, nil
}

// DeleteMemory removes a memory with its versions and incident
// relationships. Deleting a missing memory reports false without error; a
// pre-delete hook veto aborts with errs.KindVetoed.
func (e *Engine) DeleteMemory(ctx context.Context, id string) (bool, error) {
	m, err := e.store.GetMemory(ctx, id)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			return false, nil
		}
		return false, err
	}

	if allow, reason := e.hooks.ExecuteBeforeDeleted(ctx, m); !allow {
		return false, errs.Vetoed(reason)
	}

	rels, err := e.store.ListRelationshipsFor(ctx, id)
	if err != nil {
		return false, err
	}
	vers, err := e.store.ListVersions(ctx, id)
	if err != nil {
		return false, err
	}

	// Versions captured by an explicit snapshot survive the cascade so the
	// snapshot stays restorable. A surviving delta loses its predecessors,
	// so it is promoted to a standalone full copy first.
	snaps, err := e.store.ListSnapshots(ctx)
	if err != nil {
		return false, err
	}
	preserved := make(map[string]bool)
	for _, snap := range snaps {
		if vid, ok := snap.VersionIDs[id]; ok {
			preserved[vid] = true
		}
	}
	for vid := range preserved {
		if err := e.versions.PromoteVersionToFullCopy(ctx, id, vid); err != nil {
			return false, err
		}
	}

	err = e.store.ExecTx(ctx, func(tx store.Tx) error {
		for _, r := range rels {
			if err := tx.DeleteRelationship(ctx, r.ID); err != nil {
				return err
			}
		}
		for _, v := range vers {
			if preserved[v.ID] {
				continue
			}
			if err := tx.DeleteVersion(ctx, v.ID); err != nil {
				return err
			}
		}
		return tx.DeleteMemory(ctx, id)
	})
	if err != nil {
		return false, err
	}

	e.publish(models.EventMemoryDeleted, nil, nil, nil, id)
	for _, r := range rels {
		e.publish(models.EventRelationshipDeleted, nil, nil, nil, r.ID)
	}
	e.logger.Debug("memory deleted", "memory_id", id, "relationships_removed", len(rels))
	return true, nil
}

// ListMemories returns memories matching the filter with paging.
func (e *Engine) ListMemories(ctx context.Context, f *models.MemoryFilter, limit, offset int) ([]models.Memory, error) {
	return e.store.ListMemories(ctx, f, limit, offset)
}

// CreateEntity persists a new entity node.
func (e *Engine) CreateEntity(ctx context.Context, ent models.Entity) (*models.Entity, error) {
	if !ent.EntityType.IsValid() {
		return nil, errs.E(errs.KindValidation, "entity type must not be empty").WithHint("entity_type")
	}
	if ent.ID == "" {
		ent.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if ent.CreatedAt.IsZero() {
		ent.CreatedAt = now
	}
	ent.UpdatedAt = now

	if err := e.store.CreateEntity(ctx, ent); err != nil {
		return nil, err
	}
	e.publish(models.EventEntityCreated, nil, &ent, nil, "")
	return &ent, nil
}

// GetEntity returns an entity by id.
func (e *Engine) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	return e.store.GetEntity(ctx, id)
}

// UpdateEntity replaces an entity's type and properties.
func (e *Engine) UpdateEntity(ctx context.Context, ent models.Entity) (*models.Entity, error) {
	old, err := e.store.GetEntity(ctx, ent.ID)
	if err != nil {
		return nil, err
	}
	ent.CreatedAt = old.CreatedAt
	ent.UpdatedAt = time.Now().UTC()
	if err := e.store.UpdateEntity(ctx, ent); err != nil {
		return nil, err
	}
	e.publish(models.EventEntityUpdated, nil, &ent, nil, "")
	return &ent, nil
}

// DeleteEntity removes an entity and its incident relationships. Missing
// entities report false without error.
func (e *Engine) DeleteEntity(ctx context.Context, id string) (bool, error) {
	if _, err := e.store.GetEntity(ctx, id); err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	rels, err := e.store.ListRelationshipsFor(ctx, id)
	if err != nil {
		return false, err
	}
	err = e.store.ExecTx(ctx, func(tx store.Tx) error {
		for _, r := range rels {
			if err := tx.DeleteRelationship(ctx, r.ID); err != nil {
				return err
			}
		}
		return tx.DeleteEntity(ctx, id)
	})
	if err != nil {
		return false, err
	}
	e.publish(models.EventEntityDeleted, nil, nil, nil, id)
	return true, nil
}

// ListEntities returns entities matching the filter with paging.
func (e *Engine) ListEntities(ctx context.Context, f *models.EntityFilter, limit, offset int) ([]models.Entity, error) {
	return e.store.ListEntities(ctx, f, limit, offset)
}

// nodeExists reports whether id names a memory or an entity.
func (e *Engine) nodeExists(ctx context.Context, id string) (bool, error) {
	if _, err := e.store.GetMemory(ctx, id); err == nil {
		return true, nil
	} else if !errs.IsKind(err, errs.KindNotFound) {
		return false, err
	}
	if _, err := e.store.GetEntity(ctx, id); err == nil {
		return true, nil
	} else if !errs.IsKind(err, errs.KindNotFound) {
		return false, err
	}
	return false, nil
}

// expandRelationship maps one relationship create to the full set of records
// to persist, adding the symmetric mirror when enforcement applies.
func (e *Engine) expandRelationship(r models.Relationship) []models.Relationship {
	res := e.enforcer.EnforceOnCreate(r, e.enforceDefault)
	return append([]models.Relationship{res.Primary}, res.Additional...)
}

// CreateRelationship persists a relationship between two existing nodes.
// When the type is symmetric and enforcement is on, the mirror record is
// written in the same transaction.
func (e *Engine) CreateRelationship(ctx context.Context, r models.Relationship) (*relationship.EnforcementResult, error) {
	if r.SourceID == "" || r.TargetID == "" || r.RelationshipType == "" {
		return nil, errs.E(errs.KindValidation,
			"relationship requires source_id, target_id and relationship_type")
	}
	if !e.relTypes.Has(r.RelationshipType) {
		return nil, errs.E(errs.KindValidation,
			"relationship type %q is not registered", r.RelationshipType).
			WithHint(r.RelationshipType)
	}
	for _, id := range []string{r.SourceID, r.TargetID} {
		ok, err := e.nodeExists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.NotFound("relationship endpoint", id)
		}
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	res := e.enforcer.EnforceOnCreate(r, e.enforceDefault)
	records := append([]models.Relationship{res.Primary}, res.Additional...)

	// Track agents that write both halves of a symmetric pair themselves.
	if !res.Enforced {
		if existing, err := e.store.ListRelationshipsFor(ctx, r.SourceID); err == nil {
			for i := range existing {
				if e.enforcer.RecordManualInverse(existing[i], r) {
					break
				}
			}
		}
	}

	err := e.store.ExecTx(ctx, func(tx store.Tx) error {
		for _, rec := range records {
			if err := tx.CreateRelationship(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range records {
		e.publish(models.EventRelationshipCreated, nil, nil, &records[i], "")
	}
	return &res, nil
}

// GetRelationship returns a relationship by id.
func (e *Engine) GetRelationship(ctx context.Context, id string) (*models.Relationship, error) {
	return e.store.GetRelationship(ctx, id)
}

// ListRelationships returns relationships matching the filter with paging.
func (e *Engine) ListRelationships(ctx context.Context, f *models.RelationshipFilter, limit, offset int) ([]models.Relationship, error) {
	return e.store.ListRelationships(ctx, f, limit, offset)
}

// DeleteRelationship removes a relationship; with enforcement on, the
// symmetric mirror goes with it in the same transaction. Missing
// relationships report false without error.
func (e *Engine) DeleteRelationship(ctx context.Context, id string) (bool, error) {
	r, err := e.store.GetRelationship(ctx, id)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			return false, nil
		}
		return false, err
	}

	candidates, err := e.store.ListRelationshipsFor(ctx, r.SourceID)
	if err != nil {
		return false, err
	}
	ids := e.enforcer.EnforceOnDelete(*r, candidates, e.enforceDefault)

	err = e.store.ExecTx(ctx, func(tx store.Tx) error {
		for _, rid := range ids {
			if err := tx.DeleteRelationship(ctx, rid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	for _, rid := range ids {
		e.publish(models.EventRelationshipDeleted, nil, nil, nil, rid)
	}
	return true, nil
}

// Search runs the analyzer-driven hybrid search.
func (e *Engine) Search(ctx context.Context, q string, qVec []float32, f *models.MemoryFilter, limit int) ([]models.SearchResult, error) {
	if len(qVec) > 0 {
		if err := e.checkQueryVector(qVec); err != nil {
			return nil, err
		}
	}
	return e.search.IntelligentSearch(ctx, q, qVec, f, limit)
}

// SearchBM25 runs keyword-only search.
func (e *Engine) SearchBM25(ctx context.Context, q string, f *models.MemoryFilter, limit int) ([]models.SearchResult, error) {
	return e.search.BM25Search(ctx, q, f, limit)
}

// SearchFuzzy runs typo-tolerant search. threshold <= 0 uses the configured
// default.
func (e *Engine) SearchFuzzy(ctx context.Context, q string, threshold float64, limit int) ([]models.SearchResult, error) {
	if threshold <= 0 {
		threshold = e.cfg.Search.Fuzzy.DefaultThreshold
	}
	return e.search.FuzzySearch(ctx, q, threshold, limit)
}

// SearchVector runs similarity search over stored embeddings.
func (e *Engine) SearchVector(ctx context.Context, qVec []float32, f *models.MemoryFilter, limit int) ([]models.SearchResult, error) {
	if err := e.checkQueryVector(qVec); err != nil {
		return nil, err
	}
	return e.search.VectorSearch(ctx, qVec, f, limit)
}

// SearchTags returns memories carrying the given tags.
func (e *Engine) SearchTags(ctx context.Context, tags []string, matchAll bool, limit int) ([]models.SearchResult, error) {
	return e.search.TagSearch(ctx, tags, matchAll, limit)
}

// Autocomplete returns content completions for a prefix.
func (e *Engine) Autocomplete(ctx context.Context, prefix string, limit int) ([]string, error) {
	return e.search.Autocomplete(ctx, prefix, limit)
}

// Suggest returns query refinements, corrections, and related filters.
func (e *Engine) Suggest(ctx context.Context, prefix string, contextTags []string) ([]search.Suggestion, error) {
	return e.search.Suggest(ctx, prefix, contextTags)
}

// Versions returns the version manager for history, snapshot, and
// maintenance operations.
func (e *Engine) Versions() *version.Manager { return e.versions }

// RollbackMemory rewrites a memory's live state from an earlier version. The
// rollback itself appends a new version; history is never truncated.
func (e *Engine) RollbackMemory(ctx context.Context, memoryID, versionID string) (*models.Memory, error) {
	state, err := e.versions.GetVersion(ctx, memoryID, versionID)
	if err != nil {
		return nil, err
	}
	m, err := e.store.GetMemory(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	m.Content = state.Content
	m.Tags = append([]string(nil), state.Tags...)
	m.Priority = state.Priority
	m.Properties = state.Props

	if err := e.store.UpdateMemory(ctx, *m); err != nil {
		return nil, err
	}
	if e.versioning {
		if _, err := e.versions.CreateVersion(ctx, m, "rollback to "+versionID); err != nil {
			return nil, err
		}
	}
	e.publish(models.EventMemoryUpdated, m, nil, nil, "")
	return m, nil
}

// ExecuteBatch runs a heterogeneous operation batch. Relationship creates in
// the batch get the same symmetric-mirror treatment as single creates.
func (e *Engine) ExecuteBatch(ctx context.Context, ops []batch.Operation, opts batch.Options) (*batch.Response, error) {
	return e.batch.Execute(ctx, ops, opts)
}

// Subscribe registers a live change feed.
func (e *Engine) Subscribe(f live.Filter) *live.Subscription {
	return e.dispatcher.Subscribe(f)
}

// Unsubscribe cancels a live change feed.
func (e *Engine) Unsubscribe(id string) {
	e.dispatcher.Unsubscribe(id)
}

// Stats summarizes the store.
func (e *Engine) Stats(ctx context.Context) (*models.EngineStats, error) {
	return e.store.Stats(ctx)
}

func (e *Engine) publish(typ models.EventType, m *models.Memory, ent *models.Entity, rel *models.Relationship, deletedID string) {
	e.dispatcher.Publish(models.ChangeEvent{
		Type:         typ,
		Timestamp:    time.Now().UTC(),
		Memory:       m,
		Entity:       ent,
		Relationship: rel,
		DeletedID:    deletedID,
	})
}
