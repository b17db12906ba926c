// Package store defines the persistence port for the memory engine and its
// two adapters: a Neo4j-backed graph store and an embedded in-memory store.
//
// The store is the sole materializer of records. Components address records
// by id and never hold cross-component references. Referential integrity
// between relationship endpoints is the engine's responsibility, not the
// adapter's.
package store

import (
	"context"
	"time"

	"github.com/locaidev/locai/internal/models"
)

// Tx is the mutating subset of Store available inside a transaction.
// ExecTx runs every call in fn against the same storage transaction; the
// transaction is the sole linearization point for multi-record mutations.
type Tx interface {
	CreateMemory(ctx context.Context, m models.Memory) error
	GetMemory(ctx context.Context, id string) (*models.Memory, error)
	UpdateMemory(ctx context.Context, m models.Memory) error
	DeleteMemory(ctx context.Context, id string) error

	CreateEntity(ctx context.Context, e models.Entity) error
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	UpdateEntity(ctx context.Context, e models.Entity) error
	DeleteEntity(ctx context.Context, id string) error

	CreateRelationship(ctx context.Context, r models.Relationship) error
	GetRelationship(ctx context.Context, id string) (*models.Relationship, error)
	UpdateRelationship(ctx context.Context, r models.Relationship) error
	DeleteRelationship(ctx context.Context, id string) error

	CreateVersion(ctx context.Context, v models.Version) error
	UpdateVersion(ctx context.Context, v models.Version) error
	DeleteVersion(ctx context.Context, id string) error
}

// Store is the full persistence port.
type Store interface {
	Tx

	// Init creates schema objects (constraints, indexes) if missing.
	Init(ctx context.Context) error

	ListMemories(ctx context.Context, f *models.MemoryFilter, limit, offset int) ([]models.Memory, error)
	CountMemories(ctx context.Context) (int64, error)

	// TouchMemory increments access_count and moves last_accessed forward.
	TouchMemory(ctx context.Context, id string, at time.Time) error

	ListEntities(ctx context.Context, f *models.EntityFilter, limit, offset int) ([]models.Entity, error)

	ListRelationships(ctx context.Context, f *models.RelationshipFilter, limit, offset int) ([]models.Relationship, error)

	// ListRelationshipsFor returns relationships incident to the given node
	// id, in either direction.
	ListRelationshipsFor(ctx context.Context, nodeID string) ([]models.Relationship, error)

	GetVersion(ctx context.Context, id string) (*models.Version, error)
	// ListVersions returns a memory's version chain ordered oldest to newest.
	ListVersions(ctx context.Context, memoryID string) ([]models.Version, error)
	// ListAllVersions returns every version record, for global maintenance.
	ListAllVersions(ctx context.Context) ([]models.Version, error)

	CreateSnapshot(ctx context.Context, s models.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]models.Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error

	PutRelationshipType(ctx context.Context, def models.RelationshipTypeDef) error
	GetRelationshipType(ctx context.Context, name string) (*models.RelationshipTypeDef, error)
	ListRelationshipTypes(ctx context.Context) ([]models.RelationshipTypeDef, error)
	DeleteRelationshipType(ctx context.Context, name string) error

	// Neighbors returns ids of nodes reachable from id within depth hops,
	// optionally restricted to one relationship type. The center id is not
	// included.
	Neighbors(ctx context.Context, id string, relType string, depth int) ([]string, error)

	// Paths returns all simple paths (as node id sequences, inclusive of
	// endpoints) from one node to another, up to maxDepth hops.
	Paths(ctx context.Context, fromID, toID string, maxDepth int) ([][]string, error)

	Stats(ctx context.Context) (*models.EngineStats, error)

	// ExecTx executes fn atomically. If fn returns an error, no mutation
	// made through tx is visible afterwards.
	ExecTx(ctx context.Context, fn func(tx Tx) error) error

	Close(ctx context.Context) error
}
