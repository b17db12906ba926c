package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locaidev/locai/internal/errs"
	"github.com/locaidev/locai/internal/models"
)

func testMemory(id, content string) models.Memory {
	return models.Memory{
		ID:         id,
		Content:    content,
		MemoryType: models.MemoryTypeFact,
		CreatedAt:  time.Now().UTC(),
		Priority:   models.PriorityNormal,
		Tags:       []string{"test"},
		Source:     "test",
	}
}

func testRelationship(id, src, dst, relType string) models.Relationship {
	return models.Relationship{
		ID:               id,
		SourceID:         src,
		TargetID:         dst,
		RelationshipType: relType,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestMemStore_MemoryCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	mem := testMemory("m1", "Go is statically typed")
	require.NoError(t, s.CreateMemory(ctx, mem))

	got, err := s.GetMemory(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Go is statically typed", got.Content)

	got.Content = "updated"
	require.NoError(t, s.UpdateMemory(ctx, *got))

	got2, err := s.GetMemory(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "updated", got2.Content)

	require.NoError(t, s.DeleteMemory(ctx, "m1"))
	_, err = s.GetMemory(ctx, "m1")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestMemStore_CreateDuplicateConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	require.NoError(t, s.CreateMemory(ctx, testMemory("m1", "a")))
	err := s.CreateMemory(ctx, testMemory("m1", "b"))
	assert.True(t, errs.IsKind(err, errs.KindConflict))
}

func TestMemStore_GetReturnsDeepCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	mem := testMemory("m1", "original")
	mem.Properties = map[string]any{"k": "v"}
	require.NoError(t, s.CreateMemory(ctx, mem))

	got, err := s.GetMemory(ctx, "m1")
	require.NoError(t, err)
	got.Properties["k"] = "mutated"
	got.Tags[0] = "mutated"

	again, err := s.GetMemory(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Properties["k"])
	assert.Equal(t, []string{"test"}, again.Tags)
}

func TestMemStore_ListMemoriesFilterAndPaging(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		mem := testMemory(fmt.Sprintf("m%d", i), fmt.Sprintf("content %d", i))
		mem.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if i%2 == 0 {
			mem.MemoryType = models.MemoryTypeEpisodic
		}
		require.NoError(t, s.CreateMemory(ctx, mem))
	}

	episodicType := models.MemoryTypeEpisodic
	episodic, err := s.ListMemories(ctx, &models.MemoryFilter{MemoryType: &episodicType}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, episodic, 3)

	paged, err := s.ListMemories(ctx, nil, 2, 1)
	require.NoError(t, err)
	require.Len(t, paged, 2)
	assert.Equal(t, "m1", paged[0].ID)
	assert.Equal(t, "m2", paged[1].ID)

	past, err := s.ListMemories(ctx, nil, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestMemStore_TouchMemory(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	require.NoError(t, s.CreateMemory(ctx, testMemory("m1", "a")))
	at := time.Now().UTC()
	require.NoError(t, s.TouchMemory(ctx, "m1", at))
	require.NoError(t, s.TouchMemory(ctx, "m1", at.Add(time.Second)))

	got, err := s.GetMemory(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), got.AccessCount)
	require.NotNil(t, got.LastAccessed)
	assert.Equal(t, at.Add(time.Second), *got.LastAccessed)
}

func TestMemStore_RelationshipsForNode(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	require.NoError(t, s.CreateRelationship(ctx, testRelationship("r1", "a", "b", "knows")))
	require.NoError(t, s.CreateRelationship(ctx, testRelationship("r2", "b", "c", "knows")))
	require.NoError(t, s.CreateRelationship(ctx, testRelationship("r3", "c", "d", "knows")))

	rels, err := s.ListRelationshipsFor(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, rels, 2)
}

func TestMemStore_NeighborsDepth(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	// a - b - c - d chain plus a - e with a different type.
	require.NoError(t, s.CreateRelationship(ctx, testRelationship("r1", "a", "b", "knows")))
	require.NoError(t, s.CreateRelationship(ctx, testRelationship("r2", "b", "c", "knows")))
	require.NoError(t, s.CreateRelationship(ctx, testRelationship("r3", "c", "d", "knows")))
	require.NoError(t, s.CreateRelationship(ctx, testRelationship("r4", "a", "e", "likes")))

	depth1, err := s.Neighbors(ctx, "a", "", 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "e"}, depth1)

	depth2, err := s.Neighbors(ctx, "a", "knows", 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, depth2)
}

func TestMemStore_Paths(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	require.NoError(t, s.CreateRelationship(ctx, testRelationship("r1", "a", "b", "knows")))
	require.NoError(t, s.CreateRelationship(ctx, testRelationship("r2", "b", "c", "knows")))
	require.NoError(t, s.CreateRelationship(ctx, testRelationship("r3", "a", "c", "knows")))

	paths, err := s.Paths(ctx, "a", "c", 3)
	require.NoError(t, err)
	assert.Contains(t, paths, []string{"a", "c"})
	assert.Contains(t, paths, []string{"a", "b", "c"})
}

func TestMemStore_VersionOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		v := models.Version{
			ID:        fmt.Sprintf("v%d", i),
			MemoryID:  "m1",
			CreatedAt: now, // identical timestamps; insertion order must win
		}
		require.NoError(t, s.CreateVersion(ctx, v))
	}

	versions, err := s.ListVersions(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, "v0", versions[0].ID)
	assert.Equal(t, "v2", versions[2].ID)
}

func TestMemStore_ExecTxCommit(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	err := s.ExecTx(ctx, func(tx Tx) error {
		if err := tx.CreateMemory(ctx, testMemory("m1", "a")); err != nil {
			return err
		}
		return tx.CreateMemory(ctx, testMemory("m2", "b"))
	})
	require.NoError(t, err)

	count, err := s.CountMemories(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMemStore_ExecTxRollback(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	err := s.ExecTx(ctx, func(tx Tx) error {
		if err := tx.CreateMemory(ctx, testMemory("m1", "a")); err != nil {
			return err
		}
		return errs.E(errs.KindValidation, "forced failure")
	})
	require.Error(t, err)

	count, err := s.CountMemories(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "nothing from a failed transaction is visible")
}

func TestMemStore_RelationshipTypes(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	def := models.RelationshipTypeDef{Name: "married_to", Symmetric: true, Version: 1, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.PutRelationshipType(ctx, def))

	got, err := s.GetRelationshipType(ctx, "married_to")
	require.NoError(t, err)
	assert.True(t, got.Symmetric)

	all, err := s.ListRelationshipTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteRelationshipType(ctx, "married_to"))
	_, err = s.GetRelationshipType(ctx, "married_to")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestMemStore_Stats(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	m1 := testMemory("m1", "a")
	m2 := testMemory("m2", "b")
	m2.MemoryType = models.MemoryTypeEpisodic
	require.NoError(t, s.CreateMemory(ctx, m1))
	require.NoError(t, s.CreateMemory(ctx, m2))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalMemories)
	assert.Equal(t, int64(1), stats.ByMemoryType["fact"])
	assert.Equal(t, int64(1), stats.ByMemoryType["episodic"])
}
