// Package relationship owns the relationship type registry and constraint
// enforcement for typed edges.
package relationship

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/locaidev/locai/internal/errs"
	"github.com/locaidev/locai/internal/models"
	"github.com/locaidev/locai/internal/store"
)

// Registry is the process-wide relationship type table: persisted at the
// storage adapter, loaded on init, and cached behind a read-mostly lock.
type Registry struct {
	mu     sync.RWMutex
	types  map[string]models.RelationshipTypeDef
	store  store.Store
	logger *slog.Logger
}

// NewRegistry creates an empty registry bound to a store.
func NewRegistry(st store.Store, logger *slog.Logger) *Registry {
	return &Registry{
		types:  make(map[string]models.RelationshipTypeDef),
		store:  st,
		logger: logger,
	}
}

// Load hydrates the cache from persisted definitions.
func (r *Registry) Load(ctx context.Context) error {
	defs, err := r.store.ListRelationshipTypes(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, def := range defs {
		r.types[def.Name] = def
	}
	r.logger.Info("relationship types loaded", "count", len(defs))
	return nil
}

// Register adds a new type definition. Duplicate names fail with Conflict.
func (r *Registry) Register(ctx context.Context, def models.RelationshipTypeDef) error {
	if !models.ValidRelationshipTypeName(def.Name) {
		return errs.E(errs.KindValidation, "relationship type name %q must match [A-Za-z0-9_-]+", def.Name).WithHint("name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[def.Name]; ok {
		return errs.E(errs.KindConflict, "relationship type %s already exists", def.Name).WithHint(def.Name)
	}
	def.Version = 1
	def.CreatedAt = time.Now().UTC()
	if err := r.store.PutRelationshipType(ctx, def); err != nil {
		return err
	}
	r.types[def.Name] = def
	return nil
}

// Update replaces an existing definition and bumps its version.
func (r *Registry) Update(ctx context.Context, def models.RelationshipTypeDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.types[def.Name]
	if !ok {
		return errs.NotFound("relationship type", def.Name)
	}
	def.Version = existing.Version + 1
	def.CreatedAt = existing.CreatedAt
	if err := r.store.PutRelationshipType(ctx, def); err != nil {
		return err
	}
	r.types[def.Name] = def
	return nil
}

// Get returns a definition by name.
func (r *Registry) Get(name string) (*models.RelationshipTypeDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.types[name]
	if !ok {
		return nil, errs.NotFound("relationship type", name)
	}
	out := def.Clone()
	return &out, nil
}

// Has reports whether a type name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[name]
	return ok
}

// List returns all definitions.
func (r *Registry) List() []models.RelationshipTypeDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.RelationshipTypeDef, 0, len(r.types))
	for _, def := range r.types {
		out = append(out, def.Clone())
	}
	return out
}

// Count returns the number of registered types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// Delete removes a type definition.
func (r *Registry) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[name]; !ok {
		return errs.NotFound("relationship type", name)
	}
	if err := r.store.DeleteRelationshipType(ctx, name); err != nil {
		return err
	}
	delete(r.types, name)
	return nil
}

// SeedCommonTypes registers a baseline vocabulary of relationship types.
// Types already present are left untouched.
func (r *Registry) SeedCommonTypes(ctx context.Context) error {
	seeds := []models.RelationshipTypeDef{
		{Name: "parent_of", Inverse: "child_of"},
		{Name: "child_of", Inverse: "parent_of"},
		{Name: "sibling_of", Symmetric: true},
		{Name: "married_to", Symmetric: true},
		{Name: "knows", Symmetric: true},
		{Name: "ally_of", Symmetric: true},
		{Name: "enemy_of", Symmetric: true},
		{Name: "located_in", Inverse: "contains", Transitive: true},
		{Name: "contains", Inverse: "located_in", Transitive: true},
		{Name: "owns", Inverse: "owned_by"},
		{Name: "member_of", Inverse: "has_member"},
		{Name: "created", Inverse: "created_by"},
		{Name: "related_to", Symmetric: true},
		{Name: "part_of", Inverse: "has_part", Transitive: true},
	}

	for _, def := range seeds {
		err := r.Register(ctx, def)
		if err != nil && !errs.IsKind(err, errs.KindConflict) {
			return err
		}
	}
	r.logger.Info("seeded common relationship types", "count", len(seeds))
	return nil
}
