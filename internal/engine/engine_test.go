package engine

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locaidev/locai/internal/batch"
	"github.com/locaidev/locai/internal/config"
	"github.com/locaidev/locai/internal/errs"
	"github.com/locaidev/locai/internal/hooks"
	"github.com/locaidev/locai/internal/live"
	"github.com/locaidev/locai/internal/models"
	"github.com/locaidev/locai/internal/store"
	"github.com/locaidev/locai/internal/version"
)

func testConfig() *config.Config {
	return &config.Config{
		Search: config.SearchConfig{
			Scoring: config.ScoringConfig{
				BM25Weight:    0.6,
				VectorWeight:  0.4,
				RecencyBoost:  0.1,
				AccessBoost:   0.05,
				PriorityBoost: 0.05,
				DecayFunction: "none",
				DecayRate:     0.01,
			},
			Fuzzy: config.FuzzyConfig{DefaultThreshold: config.DefaultFuzzyThreshold},
		},
		Versioning:   config.VersioningConfig{Enabled: true, FullCopyEvery: config.DefaultFullCopyEvery},
		Batch:        config.BatchConfig{MaxBatchSize: config.DefaultMaxBatchSize, DefaultTimeoutMS: config.DefaultStorageTimeoutMS},
		LiveQuery:    config.LiveQueryConfig{BufferSize: config.DefaultLiveBufferSize},
		Relationship: config.RelationshipConfig{EnforcementDefault: true},
	}
}

func newTestEngine(t *testing.T, mutate ...func(*config.Config)) *Engine {
	t.Helper()
	cfg := testConfig()
	for _, fn := range mutate {
		fn(cfg)
	}
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	e, err := New(cfg, store.NewMemStore(), logger)
	require.NoError(t, err)
	require.NoError(t, e.Init(context.Background()))
	return e
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func storeFact(t *testing.T, e *Engine, content string) *models.Memory {
	t.Helper()
	m, err := e.StoreMemory(context.Background(), models.Memory{
		Content:    content,
		MemoryType: models.MemoryTypeFact,
	})
	require.NoError(t, err)
	return m
}

func TestStoreMemoryAssignsDefaultsAndVersions(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	m := storeFact(t, e, "Go channels synchronize goroutines")
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())

	chain, err := e.Versions().ListVersions(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, "created", chain[0].Description)
}

func TestStoreMemoryValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.StoreMemory(ctx, models.Memory{MemoryType: models.MemoryTypeFact})
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	_, err = e.StoreMemory(ctx, models.Memory{Content: "no type"})
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestGetMemoryRecordsAccess(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m := storeFact(t, e, "accessed memory")

	got, err := e.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.AccessCount)
	require.NotNil(t, got.LastAccessed)

	got, err = e.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), got.AccessCount)

	// Peek does not count.
	peeked, err := e.PeekMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), peeked.AccessCount)
}

func TestRecordAccessTouchesWithoutReturning(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m := storeFact(t, e, "touched memory")

	require.NoError(t, e.RecordAccess(ctx, m.ID))
	require.NoError(t, e.RecordAccess(ctx, m.ID))

	peeked, err := e.PeekMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), peeked.AccessCount)
	require.NotNil(t, peeked.LastAccessed)

	// No version appended for access bookkeeping.
	chain, err := e.Versions().ListVersions(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, chain, 1)

	err = e.RecordAccess(ctx, "missing")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestTagMemory(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m := storeFact(t, e, "taggable memory")

	tagged, err := e.TagMemory(ctx, m.ID, []string{"beta", "alpha"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, tagged.Tags)

	chain, err := e.Versions().ListVersions(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "tagged", chain[1].Description)

	// Re-tagging with already-present tags is a no-op.
	again, err := e.TagMemory(ctx, m.ID, []string{"alpha"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, again.Tags)
	chain, err = e.Versions().ListVersions(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, chain, 2)

	_, err = e.TagMemory(ctx, m.ID, nil)
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestAddRelatedLinksBothDirections(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	a := storeFact(t, e, "first of a pair")
	b := storeFact(t, e, "second of a pair")

	res, err := e.AddRelated(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, res.Enforced)
	assert.Equal(t, "related_to", res.Primary.RelationshipType)

	gotA, err := e.PeekMemory(ctx, a.ID)
	require.NoError(t, err)
	assert.Contains(t, gotA.RelatedMemories, b.ID)
	gotB, err := e.PeekMemory(ctx, b.ID)
	require.NoError(t, err)
	assert.Contains(t, gotB.RelatedMemories, a.ID)

	// The symmetric edge makes the link traversable from either side.
	neighbors, err := e.Neighbors(ctx, b.ID, "related_to", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, neighbors)
}

func TestUpdateMemoryPreservesBookkeeping(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m := storeFact(t, e, "original text")
	_, err := e.GetMemory(ctx, m.ID)
	require.NoError(t, err)

	updated, err := e.UpdateMemory(ctx, models.Memory{
		ID:         m.ID,
		Content:    "revised text",
		MemoryType: models.MemoryTypeFact,
	})
	require.NoError(t, err)
	assert.Equal(t, m.CreatedAt, updated.CreatedAt)
	assert.Equal(t, uint32(1), updated.AccessCount)

	chain, err := e.Versions().ListVersions(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "updated", chain[1].Description)
}

func TestEmbeddingDimensionAutoSetThenEnforced(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	require.Zero(t, e.EmbeddingDimension())

	_, err := e.StoreMemory(ctx, models.Memory{
		Content:    "first embedded memory",
		MemoryType: models.MemoryTypeFact,
		Embedding:  []float32{0.1, 0.2, 0.3},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, e.EmbeddingDimension())

	_, err = e.StoreMemory(ctx, models.Memory{
		Content:    "wrong dimension",
		MemoryType: models.MemoryTypeFact,
		Embedding:  []float32{0.1, 0.2},
	})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInvalidEmbedding))

	// The rejected record never reached the store.
	all, err := e.ListMemories(ctx, nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEmbeddingDimensionFromConfigIsImmediate(t *testing.T) {
	e := newTestEngine(t, func(c *config.Config) { c.Embedding.ExpectedDimension = 4 })
	_, err := e.StoreMemory(context.Background(), models.Memory{
		Content:    "short vector",
		MemoryType: models.MemoryTypeFact,
		Embedding:  []float32{1, 2},
	})
	assert.True(t, errs.IsKind(err, errs.KindInvalidEmbedding))
}

type vetoHook struct {
	hooks.BaseHook
	protect string
}

func (h vetoHook) BeforeDeleted(_ context.Context, mem *models.Memory) hooks.Decision {
	if mem.HasTag(h.protect) {
		return hooks.Veto("retention: " + h.protect)
	}
	return hooks.Continue()
}

func TestDeleteMemoryVetoAndMissing(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.Hooks().Register(vetoHook{BaseHook: hooks.BaseHook{HookName: "retention"}, protect: "keep"})

	kept, err := e.StoreMemory(ctx, models.Memory{
		Content: "protected", MemoryType: models.MemoryTypeFact, Tags: []string{"keep"},
	})
	require.NoError(t, err)

	deleted, err := e.DeleteMemory(ctx, kept.ID)
	require.Error(t, err)
	assert.False(t, deleted)
	assert.True(t, errs.IsKind(err, errs.KindVetoed))

	_, err = e.PeekMemory(ctx, kept.ID)
	require.NoError(t, err, "vetoed delete must leave the record intact")

	deleted, err = e.DeleteMemory(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteMemoryCascades(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	a := storeFact(t, e, "node a")
	b := storeFact(t, e, "node b")

	_, err := e.CreateRelationship(ctx, models.Relationship{
		SourceID: a.ID, TargetID: b.ID, RelationshipType: "knows",
	})
	require.NoError(t, err)

	deleted, err := e.DeleteMemory(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	chain, err := e.Versions().ListVersions(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, chain)

	rels, err := e.ListRelationships(ctx, nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, rels, "incident relationships go with the memory")
}

func TestSearchVectorRequiresKnownDimension(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	storeFact(t, e, "plain text memory")

	_, err := e.SearchVector(ctx, []float32{0.1, 0.2, 0.3}, nil, 10)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindCapabilityMissing))
	assert.Equal(t, 0, e.EmbeddingDimension(), "query vectors must not fix the dimension")

	// The first stored embedding fixes the dimension and unlocks vector search.
	embedded, err := e.StoreMemory(ctx, models.Memory{
		Content:    "embedded memory",
		MemoryType: models.MemoryTypeFact,
		Embedding:  []float32{0.1, 0.2, 0.3, 0.4, 0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, e.EmbeddingDimension())

	results, err := e.SearchVector(ctx, []float32{0.1, 0.2, 0.3, 0.4, 0.5}, nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, embedded.ID, results[0].Memory.ID)

	_, err = e.SearchVector(ctx, []float32{0.1, 0.2, 0.3}, nil, 10)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInvalidEmbedding))
}

func TestDeleteMemoryPreservesSnapshotVersions(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m := storeFact(t, e, "original wording")

	m.Content = "revised wording"
	_, err := e.UpdateMemory(ctx, *m)
	require.NoError(t, err)

	snap, err := e.Versions().CreateSnapshot(ctx, []string{m.ID}, "pre-delete")
	require.NoError(t, err)

	deleted, err := e.DeleteMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	chain, err := e.Versions().ListVersions(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, chain, 1, "snapshot-captured version outlives the cascade")
	assert.Equal(t, snap.VersionIDs[m.ID], chain[0].ID)

	require.NoError(t, e.Versions().RestoreSnapshot(ctx, snap.SnapshotID, version.RestoreOverwrite))

	restored, err := e.PeekMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "revised wording", restored.Content)
}

func TestCreateRelationshipSymmetricMirror(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	alice := storeFact(t, e, "alice profile")
	bob := storeFact(t, e, "bob profile")

	res, err := e.CreateRelationship(ctx, models.Relationship{
		SourceID: alice.ID, TargetID: bob.ID, RelationshipType: "married_to",
	})
	require.NoError(t, err)
	assert.True(t, res.Enforced)
	require.Len(t, res.Additional, 1)
	assert.Equal(t, bob.ID, res.Additional[0].SourceID)
	assert.Equal(t, alice.ID, res.Additional[0].TargetID)

	rels, err := e.ListRelationships(ctx, nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, rels, 2)
}

func TestCreateRelationshipRejectsUnknownTypeAndEndpoint(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	a := storeFact(t, e, "a")
	b := storeFact(t, e, "b")

	_, err := e.CreateRelationship(ctx, models.Relationship{
		SourceID: a.ID, TargetID: b.ID, RelationshipType: "never_registered",
	})
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	_, err = e.CreateRelationship(ctx, models.Relationship{
		SourceID: a.ID, TargetID: "ghost", RelationshipType: "knows",
	})
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestDeleteRelationshipRemovesMirror(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	a := storeFact(t, e, "a")
	b := storeFact(t, e, "b")

	res, err := e.CreateRelationship(ctx, models.Relationship{
		SourceID: a.ID, TargetID: b.ID, RelationshipType: "sibling_of",
	})
	require.NoError(t, err)

	deleted, err := e.DeleteRelationship(ctx, res.Primary.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	rels, err := e.ListRelationships(ctx, nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, rels, "mirror is deleted with the primary")

	deleted, err = e.DeleteRelationship(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestGraphTraversal(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a := storeFact(t, e, "a")
	b := storeFact(t, e, "b")
	c := storeFact(t, e, "c")
	d := storeFact(t, e, "d")
	for _, pair := range [][2]string{{a.ID, b.ID}, {b.ID, c.ID}, {c.ID, d.ID}} {
		_, err := e.CreateRelationship(ctx, models.Relationship{
			SourceID: pair[0], TargetID: pair[1], RelationshipType: "knows",
		})
		require.NoError(t, err)
	}

	near, err := e.Neighbors(ctx, a.ID, "", 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b.ID}, near)

	sub, err := e.GetSubgraph(ctx, a.ID, "", 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b.ID, c.ID}, sub.NodeIDs)

	connected, err := e.Connected(ctx, a.ID, d.ID, 3)
	require.NoError(t, err)
	assert.True(t, connected)

	connected, err = e.Connected(ctx, a.ID, d.ID, 2)
	require.NoError(t, err)
	assert.False(t, connected)

	_, err = e.Neighbors(ctx, "ghost", "", 2)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestRollbackMemoryAppendsVersion(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m := storeFact(t, e, "version one")

	_, err := e.UpdateMemory(ctx, models.Memory{ID: m.ID, Content: "version two", MemoryType: m.MemoryType})
	require.NoError(t, err)

	chain, err := e.Versions().ListVersions(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)

	rolled, err := e.RollbackMemory(ctx, m.ID, chain[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "version one", rolled.Content)

	chain, err = e.Versions().ListVersions(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, chain, 3, "rollback appends, never truncates")

	current, err := e.PeekMemory(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "version one", current.Content)
}

func TestBatchThroughEngineWritesSymmetricMirror(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	a := storeFact(t, e, "a")
	b := storeFact(t, e, "b")

	resp, err := e.ExecuteBatch(ctx, []batch.Operation{{
		Kind: batch.OpCreateRelationship,
		Relationship: &models.Relationship{
			SourceID: a.ID, TargetID: b.ID, RelationshipType: "ally_of",
		},
	}}, batch.Options{Transactional: true})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Completed)

	rels, err := e.ListRelationships(ctx, nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, rels, 2)
}

func TestLiveEventsFlowFromWrites(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	sub := e.Subscribe(live.Filter{Types: []models.EventType{
		models.EventMemoryCreated, models.EventMemoryDeleted,
	}})
	defer e.Unsubscribe(sub.ID)

	m := storeFact(t, e, "watched memory")
	n := <-sub.C
	assert.Equal(t, models.EventMemoryCreated, n.Event.Type)
	assert.Equal(t, m.ID, n.Event.Memory.ID)
	assert.Equal(t, e.NodeID(), n.Event.NodeID)

	_, err := e.DeleteMemory(ctx, m.ID)
	require.NoError(t, err)
	n = <-sub.C
	assert.Equal(t, models.EventMemoryDeleted, n.Event.Type)
	assert.Equal(t, m.ID, n.Event.DeletedID)
}

func TestSweepExpired(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	expired, err := e.StoreMemory(ctx, models.Memory{
		Content: "stale", MemoryType: models.MemoryTypeFact, ExpiresAt: &past,
	})
	require.NoError(t, err)
	fresh := storeFact(t, e, "fresh")

	report, err := e.SweepExpired(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{expired.ID}, report.Expired)
	_, err = e.PeekMemory(ctx, expired.ID)
	require.NoError(t, err, "dry run must not delete")

	report, err = e.SweepExpired(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{expired.ID}, report.Expired)

	_, err = e.PeekMemory(ctx, expired.ID)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
	_, err = e.PeekMemory(ctx, fresh.ID)
	require.NoError(t, err)
}

func TestSweepExpiredRespectsVeto(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.Hooks().Register(vetoHook{BaseHook: hooks.BaseHook{HookName: "retention"}, protect: "legal-hold"})

	past := time.Now().UTC().Add(-time.Minute)
	held, err := e.StoreMemory(ctx, models.Memory{
		Content: "held", MemoryType: models.MemoryTypeFact,
		ExpiresAt: &past, Tags: []string{"legal-hold"},
	})
	require.NoError(t, err)

	report, err := e.SweepExpired(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, report.Expired)
	assert.Equal(t, []string{held.ID}, report.Vetoed)

	_, err = e.PeekMemory(ctx, held.ID)
	require.NoError(t, err)
}

func TestSearchThroughEngine(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	storeFact(t, e, "Go uses goroutines for concurrency")
	storeFact(t, e, "Python threads contend on the GIL")

	results, err := e.Search(ctx, "goroutines concurrency", nil, nil, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Memory.Content, "goroutines")

	fuzzy, err := e.SearchFuzzy(ctx, "gorutines", 0, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, fuzzy)
}

func TestConcurrentStores(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_, err := e.StoreMemory(ctx, models.Memory{
					Content: "concurrent write", MemoryType: models.MemoryTypeFact,
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	all, err := e.ListMemories(ctx, nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 40)
}
