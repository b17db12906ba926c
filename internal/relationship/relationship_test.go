package relationship

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locaidev/locai/internal/errs"
	"github.com/locaidev/locai/internal/models"
	"github.com/locaidev/locai/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(store.NewMemStore(), slog.Default())
}

func TestRegistry_RegisterGetDelete(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, models.RelationshipTypeDef{Name: "married_to", Symmetric: true}))

	def, err := r.Get("married_to")
	require.NoError(t, err)
	assert.True(t, def.Symmetric)
	assert.Equal(t, uint32(1), def.Version)
	assert.Equal(t, 1, r.Count())

	require.NoError(t, r.Delete(ctx, "married_to"))
	_, err = r.Get("married_to")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestRegistry_DuplicateRegistrationConflicts(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, models.RelationshipTypeDef{Name: "knows"}))
	err := r.Register(ctx, models.RelationshipTypeDef{Name: "knows"})
	assert.True(t, errs.IsKind(err, errs.KindConflict))
}

func TestRegistry_InvalidNameRejected(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Register(context.Background(), models.RelationshipTypeDef{Name: "has space"})
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestRegistry_UpdateBumpsVersion(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, models.RelationshipTypeDef{Name: "owns"}))
	require.NoError(t, r.Update(ctx, models.RelationshipTypeDef{Name: "owns", Inverse: "owned_by"}))

	def, err := r.Get("owns")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), def.Version)
	assert.Equal(t, "owned_by", def.Inverse)

	err = r.Update(ctx, models.RelationshipTypeDef{Name: "never_registered"})
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestRegistry_LoadFromStore(t *testing.T) {
	s := store.NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.PutRelationshipType(ctx, models.RelationshipTypeDef{Name: "persisted", Version: 3}))

	r := NewRegistry(s, slog.Default())
	require.NoError(t, r.Load(ctx))
	def, err := r.Get("persisted")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), def.Version)
}

func TestRegistry_SeedCommonTypesIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.SeedCommonTypes(ctx))
	first := r.Count()
	assert.Greater(t, first, 0)
	assert.True(t, r.Has("married_to"))

	require.NoError(t, r.SeedCommonTypes(ctx))
	assert.Equal(t, first, r.Count())
}

func rel(id, src, dst, relType string) models.Relationship {
	return models.Relationship{
		ID:               id,
		SourceID:         src,
		TargetID:         dst,
		RelationshipType: relType,
		CreatedAt:        time.Now().UTC(),
	}
}

func newTestEnforcer(t *testing.T) *Enforcer {
	t.Helper()
	r := newTestRegistry(t)
	require.NoError(t, r.SeedCommonTypes(context.Background()))
	return NewEnforcer(r, slog.Default())
}

func TestEnforcer_SymmetricEmitsMirror(t *testing.T) {
	e := newTestEnforcer(t)

	result := e.EnforceOnCreate(rel("r1", "alice", "bob", "married_to"), true)
	require.True(t, result.Enforced)
	require.Len(t, result.Additional, 1)

	mirror := result.Additional[0]
	assert.Equal(t, "bob", mirror.SourceID)
	assert.Equal(t, "alice", mirror.TargetID)
	assert.Equal(t, "married_to", mirror.RelationshipType)
	assert.NotEqual(t, result.Primary.ID, mirror.ID)
}

func TestEnforcer_DisabledPassesThrough(t *testing.T) {
	e := newTestEnforcer(t)

	result := e.EnforceOnCreate(rel("r1", "alice", "bob", "married_to"), false)
	assert.False(t, result.Enforced)
	assert.Empty(t, result.Additional)

	m := e.Snapshot()
	assert.Equal(t, int64(1), m.EnforcementDisabled)
}

func TestEnforcer_LabeledInverseNotAutomatic(t *testing.T) {
	e := newTestEnforcer(t)

	result := e.EnforceOnCreate(rel("r1", "alice", "acme", "member_of"), true)
	assert.True(t, result.Enforced)
	assert.Empty(t, result.Additional, "labeled inverses are informational only")
}

func TestEnforcer_DeleteCascadesMirror(t *testing.T) {
	e := newTestEnforcer(t)

	primary := rel("r1", "alice", "bob", "married_to")
	mirror := rel("r2", "bob", "alice", "married_to")
	other := rel("r3", "alice", "carol", "knows")

	ids := e.EnforceOnDelete(primary, []models.Relationship{primary, mirror, other}, true)
	assert.ElementsMatch(t, []string{"r1", "r2"}, ids)

	ids = e.EnforceOnDelete(primary, []models.Relationship{primary, mirror}, false)
	assert.Equal(t, []string{"r1"}, ids)
}

func TestEnforcer_ManualInverseDetection(t *testing.T) {
	e := newTestEnforcer(t)

	a := rel("r1", "alice", "bob", "owns")
	b := rel("r2", "bob", "alice", "owns")
	assert.True(t, e.RecordManualInverse(a, b))

	late := rel("r3", "bob", "alice", "owns")
	late.CreatedAt = a.CreatedAt.Add(time.Minute)
	assert.False(t, e.RecordManualInverse(a, late))

	unrelated := rel("r4", "bob", "carol", "owns")
	assert.False(t, e.RecordManualInverse(a, unrelated))
}

func TestEnforcer_SnapshotPercentages(t *testing.T) {
	e := newTestEnforcer(t)

	e.EnforceOnCreate(rel("r1", "a", "b", "married_to"), true)
	e.EnforceOnCreate(rel("r2", "a", "b", "owns"), true)

	m := e.Snapshot()
	assert.Equal(t, int64(2), m.TotalCreated)
	assert.Equal(t, int64(1), m.SymmetricCreated)
	assert.InDelta(t, 50.0, m.SymmetricPercent, 1e-9)
}
