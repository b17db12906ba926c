package batch

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locaidev/locai/internal/errs"
	"github.com/locaidev/locai/internal/models"
	"github.com/locaidev/locai/internal/store"
)

func newTestExecutor(t *testing.T, opts ...Option) (*Executor, *store.MemStore) {
	t.Helper()
	st := store.NewMemStore()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	return NewExecutor(st, logger, opts...), st
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func createOp(content string) Operation {
	return Operation{Kind: OpCreateMemory, Memory: &models.Memory{
		Content:    content,
		MemoryType: models.MemoryTypeFact,
	}}
}

func TestTransactionalBatchRollsBackOnFailure(t *testing.T) {
	e, st := newTestExecutor(t)
	ctx := context.Background()

	ops := []Operation{
		createOp("first memory"),
		createOp("second memory"),
		{Kind: OpDeleteMemory, ID: "does-not-exist"},
	}
	resp, err := e.Execute(ctx, ops, Options{Transactional: true})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.Completed)
	assert.Equal(t, 1, resp.Failed)
	assert.NotEmpty(t, resp.TransactionID)
	assert.Contains(t, resp.Reason, "operation 2 failed")

	assert.Equal(t, StatusRolledBack, resp.Results[0].Status)
	assert.Empty(t, resp.Results[0].CreatedID)
	assert.Equal(t, StatusRolledBack, resp.Results[1].Status)
	assert.Equal(t, StatusFailed, resp.Results[2].Status)
	assert.Equal(t, errs.KindNotFound, resp.Results[2].ErrorKind)

	count, err := st.CountMemories(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "rolled-back creates must not be visible")
}

func TestTransactionalBatchCommitsWhenAllSucceed(t *testing.T) {
	e, st := newTestExecutor(t)
	ctx := context.Background()

	resp, err := e.Execute(ctx, []Operation{createOp("a"), createOp("b")}, Options{Transactional: true})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Completed)
	assert.Zero(t, resp.Failed)
	for _, r := range resp.Results {
		assert.Equal(t, StatusApplied, r.Status)
		assert.NotEmpty(t, r.CreatedID)
	}

	count, err := st.CountMemories(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSequentialBatchStopsAtFirstFailure(t *testing.T) {
	e, st := newTestExecutor(t)
	ctx := context.Background()

	ops := []Operation{
		createOp("kept"),
		{Kind: OpDeleteMemory, ID: "missing"},
		createOp("never reached"),
	}
	resp, err := e.Execute(ctx, ops, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Completed)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, StatusApplied, resp.Results[0].Status)
	assert.Equal(t, StatusFailed, resp.Results[1].Status)
	assert.Equal(t, StatusSkipped, resp.Results[2].Status)

	count, err := st.CountMemories(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "successful operation before the failure stays applied")
}

func TestSequentialBatchContinuesOnError(t *testing.T) {
	e, st := newTestExecutor(t)
	ctx := context.Background()

	ops := []Operation{
		createOp("one"),
		{Kind: OpDeleteMemory, ID: "missing"},
		createOp("two"),
	}
	resp, err := e.Execute(ctx, ops, Options{ContinueOnError: true})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Completed)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, StatusApplied, resp.Results[2].Status)

	count, err := st.CountMemories(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestBatchSizeLimit(t *testing.T) {
	e, _ := newTestExecutor(t, WithMaxBatchSize(3))
	ctx := context.Background()

	atLimit := make([]Operation, 3)
	for i := range atLimit {
		atLimit[i] = createOp(fmt.Sprintf("memory %d", i))
	}
	resp, err := e.Execute(ctx, atLimit, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Completed)

	overLimit := append(atLimit, createOp("one too many"))
	_, err = e.Execute(ctx, overLimit, Options{})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindBatchTooLarge))
}

func TestEmptyBatch(t *testing.T) {
	e, _ := newTestExecutor(t)
	resp, err := e.Execute(context.Background(), nil, Options{Transactional: true})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.Completed)
}

func TestValidationFailuresCarryKinds(t *testing.T) {
	e, _ := newTestExecutor(t)
	ctx := context.Background()

	ops := []Operation{
		{Kind: OpCreateMemory, Memory: &models.Memory{MemoryType: models.MemoryTypeFact}}, // no content
		{Kind: OpCreateMemory},       // no payload
		{Kind: OpKind("frobnicate")}, // unknown kind
		{Kind: OpDeleteMemory},       // no id
	}
	resp, err := e.Execute(ctx, ops, Options{ContinueOnError: true})
	require.NoError(t, err)

	assert.Equal(t, 4, resp.Failed)
	for _, r := range resp.Results {
		assert.Equal(t, StatusFailed, r.Status)
		assert.Equal(t, errs.KindValidation, r.ErrorKind)
	}
}

func TestCreateRelationshipWithExpander(t *testing.T) {
	expand := func(r models.Relationship) []models.Relationship {
		mirror := r.Clone()
		mirror.ID = uuid.NewString()
		mirror.SourceID, mirror.TargetID = r.TargetID, r.SourceID
		return []models.Relationship{r, mirror}
	}
	e, st := newTestExecutor(t, WithRelationshipExpander(expand))
	ctx := context.Background()

	aliceID := mustCreateMemory(t, st, "alice profile")
	bobID := mustCreateMemory(t, st, "bob profile")

	ops := []Operation{{
		Kind: OpCreateRelationship,
		Relationship: &models.Relationship{
			SourceID:         aliceID,
			TargetID:         bobID,
			RelationshipType: "married_to",
		},
	}}
	resp, err := e.Execute(ctx, ops, Options{Transactional: true})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Completed)

	rels, err := st.ListRelationshipsFor(ctx, aliceID)
	require.NoError(t, err)
	require.Len(t, rels, 2, "expander writes the mirror in the same transaction")

	endpoints := map[string]bool{}
	for _, r := range rels {
		endpoints[r.SourceID+"->"+r.TargetID] = true
	}
	assert.True(t, endpoints[aliceID+"->"+bobID])
	assert.True(t, endpoints[bobID+"->"+aliceID])
}

func TestUpdateMetadataPatch(t *testing.T) {
	e, st := newTestExecutor(t)
	ctx := context.Background()

	id := mustCreateMemory(t, st, "project notes")
	seed, err := st.GetMemory(ctx, id)
	require.NoError(t, err)
	seed.Tags = []string{"draft", "project"}
	seed.Properties = map[string]any{"owner": "alice", "stale": true}
	require.NoError(t, st.UpdateMemory(ctx, *seed))

	hi := models.PriorityHigh
	ops := []Operation{{
		Kind: OpUpdateMetadata,
		ID:   id,
		Metadata: &MetadataPatch{
			AddTags:          []string{"reviewed"},
			RemoveTags:       []string{"draft"},
			Priority:         &hi,
			SetProperties:    map[string]any{"owner": "bob"},
			RemoveProperties: []string{"stale"},
		},
	}}
	resp, err := e.Execute(ctx, ops, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Completed)

	got, err := st.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"project", "reviewed"}, got.Tags)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Equal(t, "bob", got.Properties["owner"])
	assert.NotContains(t, got.Properties, "stale")
}

func mustCreateMemory(t *testing.T, st *store.MemStore, content string) string {
	t.Helper()
	m := models.Memory{
		ID:         uuid.NewString(),
		Content:    content,
		MemoryType: models.MemoryTypeFact,
	}
	require.NoError(t, st.CreateMemory(context.Background(), m))
	return m.ID
}
