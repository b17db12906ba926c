package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"golang.org/x/sync/errgroup"

	"github.com/locaidev/locai/internal/errs"
	"github.com/locaidev/locai/internal/models"
)

const (
	neo4jDialTimeout  = 10 * time.Second
	neo4jReadTimeout  = 10 * time.Second
	neo4jWriteTimeout = 30 * time.Second
)

func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}

// Neo4jStore implements Store on a Neo4j database. Each record is a node
// carrying its full JSON document in a `doc` property alongside a few scalar
// properties used for indexing and ordering. Relationships are REL edges
// whose semantic type lives in the `type` edge property, which keeps edge
// creation parameterizable.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jStore connects to Neo4j and verifies connectivity.
func NewNeo4jStore(uri, username, password, database string, logger *slog.Logger) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("connecting to Neo4j at %s: %w", uri, err)
	}

	dialCtx, dialCancel := context.WithTimeout(context.Background(), neo4jDialTimeout)
	defer dialCancel()
	if err := driver.VerifyConnectivity(dialCtx); err != nil {
		_ = driver.Close(context.Background())
		return nil, fmt.Errorf("verifying Neo4j connection at %s: %w", uri, err)
	}

	logger.Info("connected to Neo4j", "uri", uri, "database", database)

	return &Neo4jStore{driver: driver, database: database, logger: logger}, nil
}

// Init creates uniqueness constraints and indexes. Idempotent.
func (s *Neo4jStore) Init(ctx context.Context) error {
	stmts := []string{
		"CREATE CONSTRAINT memory_id IF NOT EXISTS FOR (m:Memory) REQUIRE m.id IS UNIQUE",
		"CREATE CONSTRAINT entity_id IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE",
		"CREATE CONSTRAINT version_id IF NOT EXISTS FOR (v:Version) REQUIRE v.id IS UNIQUE",
		"CREATE CONSTRAINT snapshot_id IF NOT EXISTS FOR (sn:Snapshot) REQUIRE sn.id IS UNIQUE",
		"CREATE CONSTRAINT reltype_name IF NOT EXISTS FOR (rt:RelType) REQUIRE rt.name IS UNIQUE",
		"CREATE INDEX memory_type IF NOT EXISTS FOR (m:Memory) ON (m.type)",
		"CREATE INDEX memory_created IF NOT EXISTS FOR (m:Memory) ON (m.created_at)",
		"CREATE INDEX version_memory IF NOT EXISTS FOR (v:Version) ON (v.memory_id)",
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: s.database})
	defer session.Close(ctx)

	for _, stmt := range stmts {
		wctx, cancel := withTimeout(ctx, neo4jWriteTimeout)
		_, err := session.Run(wctx, stmt, nil)
		cancel()
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "initializing schema")
		}
	}
	s.logger.Info("Neo4j schema initialized")
	return nil
}

// Close releases the driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4jStore) readSession(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: s.database})
}

func (s *Neo4jStore) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: s.database})
}

// execWrite runs fn inside a managed write transaction with a timeout.
func (s *Neo4jStore) execWrite(ctx context.Context, fn func(ctx context.Context, tx neo4j.ManagedTransaction) error) error {
	wctx, cancel := withTimeout(ctx, neo4jWriteTimeout)
	defer cancel()
	session := s.writeSession(wctx)
	defer session.Close(wctx)
	_, err := session.ExecuteWrite(wctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(wctx, tx)
	})
	return err
}

// execRead runs fn inside a managed read transaction with a timeout.
func (s *Neo4jStore) execRead(ctx context.Context, fn func(ctx context.Context, tx neo4j.ManagedTransaction) error) error {
	rctx, cancel := withTimeout(ctx, neo4jReadTimeout)
	defer cancel()
	session := s.readSession(rctx)
	defer session.Close(rctx)
	_, err := session.ExecuteRead(rctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(rctx, tx)
	})
	return err
}

// --- document encoding ---

func encodeDoc(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errs.Wrap(errs.KindStorage, err, "encoding document")
	}
	return string(b), nil
}

func decodeDoc[T any](raw any) (*T, error) {
	str, ok := raw.(string)
	if !ok {
		return nil, errs.E(errs.KindStorage, "document property has unexpected type %T", raw)
	}
	var out T
	if err := json.Unmarshal([]byte(str), &out); err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "decoding document")
	}
	return &out, nil
}

func collectDocs[T any](ctx context.Context, result neo4j.ResultWithContext) ([]T, error) {
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "collecting results")
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		raw, _ := rec.Get("doc")
		doc, err := decodeDoc[T](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, nil
}

// --- transaction-scoped operations, shared by Store and Tx paths ---

func txCreateMemory(ctx context.Context, tx neo4j.ManagedTransaction, mem models.Memory) error {
	doc, err := encodeDoc(mem)
	if err != nil {
		return err
	}
	result, err := tx.Run(ctx, `
		MERGE (m:Memory {id: $id})
		ON CREATE SET m.doc = $doc, m.type = $type, m.created_at = $created, m.fresh = true
		ON MATCH SET m.fresh = false
		RETURN m.fresh AS fresh`,
		map[string]any{"id": mem.ID, "doc": doc, "type": string(mem.MemoryType), "created": mem.CreatedAt.UnixNano()})
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "creating memory %s", mem.ID)
	}
	rec, err := result.Single(ctx)
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "creating memory %s", mem.ID)
	}
	if fresh, _ := rec.Get("fresh"); fresh != true {
		return errs.E(errs.KindConflict, "memory %s already exists", mem.ID).WithHint(mem.ID)
	}
	return nil
}

func txGetMemory(ctx context.Context, tx neo4j.ManagedTransaction, id string) (*models.Memory, error) {
	result, err := tx.Run(ctx, "MATCH (m:Memory {id: $id}) RETURN m.doc AS doc", map[string]any{"id": id})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "fetching memory %s", id)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "fetching memory %s", id)
	}
	if len(records) == 0 {
		return nil, errs.NotFound("memory", id)
	}
	raw, _ := records[0].Get("doc")
	return decodeDoc[models.Memory](raw)
}

func txUpdateMemory(ctx context.Context, tx neo4j.ManagedTransaction, mem models.Memory) error {
	doc, err := encodeDoc(mem)
	if err != nil {
		return err
	}
	result, err := tx.Run(ctx, `
		MATCH (m:Memory {id: $id})
		SET m.doc = $doc, m.type = $type
		RETURN m.id AS id`,
		map[string]any{"id": mem.ID, "doc": doc, "type": string(mem.MemoryType)})
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "updating memory %s", mem.ID)
	}
	return requireMatched(ctx, result, "memory", mem.ID)
}

func txDeleteMemory(ctx context.Context, tx neo4j.ManagedTransaction, id string) error {
	result, err := tx.Run(ctx, `
		MATCH (m:Memory {id: $id})
		WITH m, m.id AS id
		DETACH DELETE m
		RETURN id`,
		map[string]any{"id": id})
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "deleting memory %s", id)
	}
	return requireMatched(ctx, result, "memory", id)
}

func txCreateEntity(ctx context.Context, tx neo4j.ManagedTransaction, e models.Entity) error {
	doc, err := encodeDoc(e)
	if err != nil {
		return err
	}
	result, err := tx.Run(ctx, `
		MERGE (n:Entity {id: $id})
		ON CREATE SET n.doc = $doc, n.type = $type, n.created_at = $created, n.fresh = true
		ON MATCH SET n.fresh = false
		RETURN n.fresh AS fresh`,
		map[string]any{"id": e.ID, "doc": doc, "type": string(e.EntityType), "created": e.CreatedAt.UnixNano()})
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "creating entity %s", e.ID)
	}
	rec, err := result.Single(ctx)
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "creating entity %s", e.ID)
	}
	if fresh, _ := rec.Get("fresh"); fresh != true {
		return errs.E(errs.KindConflict, "entity %s already exists", e.ID).WithHint(e.ID)
	}
	return nil
}

func txGetEntity(ctx context.Context, tx neo4j.ManagedTransaction, id string) (*models.Entity, error) {
	result, err := tx.Run(ctx, "MATCH (n:Entity {id: $id}) RETURN n.doc AS doc", map[string]any{"id": id})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "fetching entity %s", id)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "fetching entity %s", id)
	}
	if len(records) == 0 {
		return nil, errs.NotFound("entity", id)
	}
	raw, _ := records[0].Get("doc")
	return decodeDoc[models.Entity](raw)
}

func txUpdateEntity(ctx context.Context, tx neo4j.ManagedTransaction, e models.Entity) error {
	doc, err := encodeDoc(e)
	if err != nil {
		return err
	}
	result, err := tx.Run(ctx, `
		MATCH (n:Entity {id: $id})
		SET n.doc = $doc, n.type = $type
		RETURN n.id AS id`,
		map[string]any{"id": e.ID, "doc": doc, "type": string(e.EntityType)})
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "updating entity %s", e.ID)
	}
	return requireMatched(ctx, result, "entity", e.ID)
}

func txDeleteEntity(ctx context.Context, tx neo4j.ManagedTransaction, id string) error {
	result, err := tx.Run(ctx, `
		MATCH (n:Entity {id: $id})
		WITH n, n.id AS id
		DETACH DELETE n
		RETURN id`,
		map[string]any{"id": id})
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "deleting entity %s", id)
	}
	return requireMatched(ctx, result, "entity", id)
}

func txCreateRelationship(ctx context.Context, tx neo4j.ManagedTransaction, r models.Relationship) error {
	doc, err := encodeDoc(r)
	if err != nil {
		return err
	}
	// Source and target may be memories or entities; match on either label.
	result, err := tx.Run(ctx, `
		MATCH (a) WHERE (a:Memory OR a:Entity) AND a.id = $src
		MATCH (b) WHERE (b:Memory OR b:Entity) AND b.id = $dst
		CREATE (a)-[rel:REL {id: $id, type: $type, doc: $doc, created_at: $created}]->(b)
		RETURN rel.id AS id`,
		map[string]any{
			"src": r.SourceID, "dst": r.TargetID,
			"id": r.ID, "type": r.RelationshipType, "doc": doc,
			"created": r.CreatedAt.UnixNano(),
		})
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "creating relationship %s", r.ID)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "creating relationship %s", r.ID)
	}
	if len(records) == 0 {
		return errs.E(errs.KindNotFound, "relationship endpoints not found: %s -> %s", r.SourceID, r.TargetID)
	}
	return nil
}

func txGetRelationship(ctx context.Context, tx neo4j.ManagedTransaction, id string) (*models.Relationship, error) {
	result, err := tx.Run(ctx, "MATCH ()-[rel:REL {id: $id}]->() RETURN rel.doc AS doc", map[string]any{"id": id})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "fetching relationship %s", id)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "fetching relationship %s", id)
	}
	if len(records) == 0 {
		return nil, errs.NotFound("relationship", id)
	}
	raw, _ := records[0].Get("doc")
	return decodeDoc[models.Relationship](raw)
}

func txUpdateRelationship(ctx context.Context, tx neo4j.ManagedTransaction, r models.Relationship) error {
	doc, err := encodeDoc(r)
	if err != nil {
		return err
	}
	result, err := tx.Run(ctx, `
		MATCH ()-[rel:REL {id: $id}]->()
		SET rel.doc = $doc, rel.type = $type
		RETURN rel.id AS id`,
		map[string]any{"id": r.ID, "doc": doc, "type": r.RelationshipType})
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "updating relationship %s", r.ID)
	}
	return requireMatched(ctx, result, "relationship", r.ID)
}

func txDeleteRelationship(ctx context.Context, tx neo4j.ManagedTransaction, id string) error {
	result, err := tx.Run(ctx, `
		MATCH ()-[rel:REL {id: $id}]->()
		WITH rel, rel.id AS id
		DELETE rel
		RETURN id`,
		map[string]any{"id": id})
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "deleting relationship %s", id)
	}
	return requireMatched(ctx, result, "relationship", id)
}

func txCreateVersion(ctx context.Context, tx neo4j.ManagedTransaction, v models.Version) error {
	doc, err := encodeDoc(v)
	if err != nil {
		return err
	}
	result, err := tx.Run(ctx, `
		MERGE (ver:Version {id: $id})
		ON CREATE SET ver.doc = $doc, ver.memory_id = $memoryID, ver.seq = $seq, ver.fresh = true
		ON MATCH SET ver.fresh = false
		RETURN ver.fresh AS fresh`,
		map[string]any{"id": v.ID, "doc": doc, "memoryID": v.MemoryID, "seq": time.Now().UnixNano()})
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "creating version %s", v.ID)
	}
	rec, err := result.Single(ctx)
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "creating version %s", v.ID)
	}
	if fresh, _ := rec.Get("fresh"); fresh != true {
		return errs.E(errs.KindConflict, "version %s already exists", v.ID).WithHint(v.ID)
	}
	return nil
}

func txUpdateVersion(ctx context.Context, tx neo4j.ManagedTransaction, v models.Version) error {
	doc, err := encodeDoc(v)
	if err != nil {
		return err
	}
	result, err := tx.Run(ctx, `
		MATCH (ver:Version {id: $id})
		SET ver.doc = $doc
		RETURN ver.id AS id`,
		map[string]any{"id": v.ID, "doc": doc})
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "updating version %s", v.ID)
	}
	return requireMatched(ctx, result, "version", v.ID)
}

func txDeleteVersion(ctx context.Context, tx neo4j.ManagedTransaction, id string) error {
	result, err := tx.Run(ctx, `
		MATCH (ver:Version {id: $id})
		WITH ver, ver.id AS id
		DETACH DELETE ver
		RETURN id`,
		map[string]any{"id": id})
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "deleting version %s", id)
	}
	return requireMatched(ctx, result, "version", id)
}

// requireMatched converts an empty write result into NotFound.
func requireMatched(ctx context.Context, result neo4j.ResultWithContext, what, id string) error {
	records, err := result.Collect(ctx)
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "%s %s", what, id)
	}
	if len(records) == 0 {
		return errs.NotFound(what, id)
	}
	return nil
}

// --- Store interface: single-operation paths ---

func (s *Neo4jStore) CreateMemory(ctx context.Context, mem models.Memory) error {
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		return txCreateMemory(ctx, tx, mem)
	})
}

func (s *Neo4jStore) GetMemory(ctx context.Context, id string) (*models.Memory, error) {
	var out *models.Memory
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		var err error
		out, err = txGetMemory(ctx, tx, id)
		return err
	})
	return out, err
}

func (s *Neo4jStore) UpdateMemory(ctx context.Context, mem models.Memory) error {
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		return txUpdateMemory(ctx, tx, mem)
	})
}

func (s *Neo4jStore) DeleteMemory(ctx context.Context, id string) error {
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		return txDeleteMemory(ctx, tx, id)
	})
}

func (s *Neo4jStore) ListMemories(ctx context.Context, f *models.MemoryFilter, limit, offset int) ([]models.Memory, error) {
	// Type and creation-window predicates are pushed down; the remaining
	// filter fields are applied after decoding.
	query := "MATCH (m:Memory) WHERE 1=1"
	params := map[string]any{}
	if f != nil && f.MemoryType != nil {
		query += " AND m.type = $type"
		params["type"] = string(*f.MemoryType)
	}
	if f != nil && f.CreatedAfter != nil {
		query += " AND m.created_at >= $after"
		params["after"] = f.CreatedAfter.UnixNano()
	}
	if f != nil && f.CreatedBefore != nil {
		query += " AND m.created_at <= $before"
		params["before"] = f.CreatedBefore.UnixNano()
	}
	query += " RETURN m.doc AS doc ORDER BY m.created_at, m.id"

	var decoded []models.Memory
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "listing memories")
		}
		decoded, err = collectDocs[models.Memory](ctx, result)
		return err
	})
	if err != nil {
		return nil, err
	}

	var all []models.Memory
	for i := range decoded {
		if f.Matches(&decoded[i]) {
			all = append(all, decoded[i])
		}
	}
	return page(all, limit, offset), nil
}

func (s *Neo4jStore) CountMemories(ctx context.Context) (int64, error) {
	var count int64
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, "MATCH (m:Memory) RETURN count(m) AS c", nil)
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "counting memories")
		}
		rec, err := result.Single(ctx)
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "counting memories")
		}
		raw, _ := rec.Get("c")
		count, _ = raw.(int64)
		return nil
	})
	return count, err
}

func (s *Neo4jStore) TouchMemory(ctx context.Context, id string, at time.Time) error {
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		mem, err := txGetMemory(ctx, tx, id)
		if err != nil {
			return err
		}
		mem.AccessCount++
		if mem.LastAccessed == nil || at.After(*mem.LastAccessed) {
			t := at
			mem.LastAccessed = &t
		}
		return txUpdateMemory(ctx, tx, *mem)
	})
}

func (s *Neo4jStore) CreateEntity(ctx context.Context, e models.Entity) error {
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		return txCreateEntity(ctx, tx, e)
	})
}

func (s *Neo4jStore) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	var out *models.Entity
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		var err error
		out, err = txGetEntity(ctx, tx, id)
		return err
	})
	return out, err
}

func (s *Neo4jStore) UpdateEntity(ctx context.Context, e models.Entity) error {
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		return txUpdateEntity(ctx, tx, e)
	})
}

func (s *Neo4jStore) DeleteEntity(ctx context.Context, id string) error {
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		return txDeleteEntity(ctx, tx, id)
	})
}

func (s *Neo4jStore) ListEntities(ctx context.Context, f *models.EntityFilter, limit, offset int) ([]models.Entity, error) {
	query := "MATCH (n:Entity)"
	params := map[string]any{}
	if f != nil && f.EntityType != nil {
		query += " WHERE n.type = $type"
		params["type"] = string(*f.EntityType)
	}
	query += " RETURN n.doc AS doc ORDER BY n.created_at, n.id"

	var decoded []models.Entity
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "listing entities")
		}
		decoded, err = collectDocs[models.Entity](ctx, result)
		return err
	})
	if err != nil {
		return nil, err
	}

	var all []models.Entity
	for i := range decoded {
		if f.Matches(&decoded[i]) {
			all = append(all, decoded[i])
		}
	}
	return page(all, limit, offset), nil
}

func (s *Neo4jStore) CreateRelationship(ctx context.Context, r models.Relationship) error {
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		return txCreateRelationship(ctx, tx, r)
	})
}

func (s *Neo4jStore) GetRelationship(ctx context.Context, id string) (*models.Relationship, error) {
	var out *models.Relationship
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		var err error
		out, err = txGetRelationship(ctx, tx, id)
		return err
	})
	return out, err
}

func (s *Neo4jStore) UpdateRelationship(ctx context.Context, r models.Relationship) error {
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		return txUpdateRelationship(ctx, tx, r)
	})
}

func (s *Neo4jStore) DeleteRelationship(ctx context.Context, id string) error {
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		return txDeleteRelationship(ctx, tx, id)
	})
}

func (s *Neo4jStore) ListRelationships(ctx context.Context, f *models.RelationshipFilter, limit, offset int) ([]models.Relationship, error) {
	query := "MATCH ()-[rel:REL]->()"
	params := map[string]any{}
	if f != nil && f.RelationshipType != nil {
		query += " WHERE rel.type = $type"
		params["type"] = *f.RelationshipType
	}
	query += " RETURN rel.doc AS doc ORDER BY rel.created_at, rel.id"

	var decoded []models.Relationship
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "listing relationships")
		}
		decoded, err = collectDocs[models.Relationship](ctx, result)
		return err
	})
	if err != nil {
		return nil, err
	}

	var all []models.Relationship
	for i := range decoded {
		if f.Matches(&decoded[i]) {
			all = append(all, decoded[i])
		}
	}
	return page(all, limit, offset), nil
}

func (s *Neo4jStore) ListRelationshipsFor(ctx context.Context, nodeID string) ([]models.Relationship, error) {
	var out []models.Relationship
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, `
			MATCH (n)-[rel:REL]-() WHERE n.id = $id
			RETURN DISTINCT rel.doc AS doc ORDER BY rel.created_at, rel.id`,
			map[string]any{"id": nodeID})
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "listing relationships for %s", nodeID)
		}
		out, err = collectDocs[models.Relationship](ctx, result)
		return err
	})
	return out, err
}

func (s *Neo4jStore) CreateVersion(ctx context.Context, v models.Version) error {
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		return txCreateVersion(ctx, tx, v)
	})
}

func (s *Neo4jStore) UpdateVersion(ctx context.Context, v models.Version) error {
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		return txUpdateVersion(ctx, tx, v)
	})
}

func (s *Neo4jStore) DeleteVersion(ctx context.Context, id string) error {
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		return txDeleteVersion(ctx, tx, id)
	})
}

func (s *Neo4jStore) GetVersion(ctx context.Context, id string) (*models.Version, error) {
	var out *models.Version
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, "MATCH (ver:Version {id: $id}) RETURN ver.doc AS doc", map[string]any{"id": id})
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "fetching version %s", id)
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "fetching version %s", id)
		}
		if len(records) == 0 {
			return errs.NotFound("version", id)
		}
		raw, _ := records[0].Get("doc")
		out, err = decodeDoc[models.Version](raw)
		return err
	})
	return out, err
}

func (s *Neo4jStore) ListVersions(ctx context.Context, memoryID string) ([]models.Version, error) {
	var out []models.Version
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, `
			MATCH (ver:Version {memory_id: $memoryID})
			RETURN ver.doc AS doc ORDER BY ver.seq`,
			map[string]any{"memoryID": memoryID})
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "listing versions for %s", memoryID)
		}
		out, err = collectDocs[models.Version](ctx, result)
		return err
	})
	return out, err
}

func (s *Neo4jStore) ListAllVersions(ctx context.Context) ([]models.Version, error) {
	var out []models.Version
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, "MATCH (ver:Version) RETURN ver.doc AS doc ORDER BY ver.seq", nil)
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "listing versions")
		}
		out, err = collectDocs[models.Version](ctx, result)
		return err
	})
	return out, err
}

func (s *Neo4jStore) CreateSnapshot(ctx context.Context, snap models.Snapshot) error {
	doc, err := encodeDoc(snap)
	if err != nil {
		return err
	}
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, `
			MERGE (sn:Snapshot {id: $id})
			ON CREATE SET sn.doc = $doc, sn.created_at = $created, sn.fresh = true
			ON MATCH SET sn.fresh = false
			RETURN sn.fresh AS fresh`,
			map[string]any{"id": snap.SnapshotID, "doc": doc, "created": snap.CreatedAt.UnixNano()})
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "creating snapshot %s", snap.SnapshotID)
		}
		rec, err := result.Single(ctx)
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "creating snapshot %s", snap.SnapshotID)
		}
		if fresh, _ := rec.Get("fresh"); fresh != true {
			return errs.E(errs.KindConflict, "snapshot %s already exists", snap.SnapshotID)
		}
		return nil
	})
}

func (s *Neo4jStore) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	var out *models.Snapshot
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, "MATCH (sn:Snapshot {id: $id}) RETURN sn.doc AS doc", map[string]any{"id": id})
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "fetching snapshot %s", id)
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "fetching snapshot %s", id)
		}
		if len(records) == 0 {
			return errs.NotFound("snapshot", id)
		}
		raw, _ := records[0].Get("doc")
		out, err = decodeDoc[models.Snapshot](raw)
		return err
	})
	return out, err
}

func (s *Neo4jStore) ListSnapshots(ctx context.Context) ([]models.Snapshot, error) {
	var out []models.Snapshot
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, "MATCH (sn:Snapshot) RETURN sn.doc AS doc ORDER BY sn.created_at, sn.id", nil)
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "listing snapshots")
		}
		out, err = collectDocs[models.Snapshot](ctx, result)
		return err
	})
	return out, err
}

func (s *Neo4jStore) DeleteSnapshot(ctx context.Context, id string) error {
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, `
			MATCH (sn:Snapshot {id: $id})
			WITH sn, sn.id AS id
			DETACH DELETE sn
			RETURN id`,
			map[string]any{"id": id})
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "deleting snapshot %s", id)
		}
		return requireMatched(ctx, result, "snapshot", id)
	})
}

func (s *Neo4jStore) PutRelationshipType(ctx context.Context, def models.RelationshipTypeDef) error {
	doc, err := encodeDoc(def)
	if err != nil {
		return err
	}
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		_, err := tx.Run(ctx, `
			MERGE (rt:RelType {name: $name})
			SET rt.doc = $doc`,
			map[string]any{"name": def.Name, "doc": doc})
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "storing relationship type %s", def.Name)
		}
		return nil
	})
}

func (s *Neo4jStore) GetRelationshipType(ctx context.Context, name string) (*models.RelationshipTypeDef, error) {
	var out *models.RelationshipTypeDef
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, "MATCH (rt:RelType {name: $name}) RETURN rt.doc AS doc", map[string]any{"name": name})
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "fetching relationship type %s", name)
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "fetching relationship type %s", name)
		}
		if len(records) == 0 {
			return errs.NotFound("relationship type", name)
		}
		raw, _ := records[0].Get("doc")
		out, err = decodeDoc[models.RelationshipTypeDef](raw)
		return err
	})
	return out, err
}

func (s *Neo4jStore) ListRelationshipTypes(ctx context.Context) ([]models.RelationshipTypeDef, error) {
	var out []models.RelationshipTypeDef
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, "MATCH (rt:RelType) RETURN rt.doc AS doc ORDER BY rt.name", nil)
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "listing relationship types")
		}
		out, err = collectDocs[models.RelationshipTypeDef](ctx, result)
		return err
	})
	return out, err
}

func (s *Neo4jStore) DeleteRelationshipType(ctx context.Context, name string) error {
	return s.execWrite(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, `
			MATCH (rt:RelType {name: $name})
			WITH rt, rt.name AS name
			DELETE rt
			RETURN name`,
			map[string]any{"name": name})
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "deleting relationship type %s", name)
		}
		return requireMatched(ctx, result, "relationship type", name)
	})
}

func (s *Neo4jStore) Neighbors(ctx context.Context, id string, relType string, depth int) ([]string, error) {
	if depth <= 0 {
		depth = 1
	}
	query := fmt.Sprintf(`
		MATCH (start {id: $id})-[rels:REL*1..%d]-(n)
		WHERE n.id <> $id AND ($type = '' OR all(r IN rels WHERE r.type = $type))
		RETURN DISTINCT n.id AS id ORDER BY id`, depth)

	var out []string
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, query, map[string]any{"id": id, "type": relType})
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "traversing neighbors of %s", id)
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "traversing neighbors of %s", id)
		}
		for _, rec := range records {
			raw, _ := rec.Get("id")
			if str, ok := raw.(string); ok {
				out = append(out, str)
			}
		}
		return nil
	})
	return out, err
}

func (s *Neo4jStore) Paths(ctx context.Context, fromID, toID string, maxDepth int) ([][]string, error) {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	query := fmt.Sprintf(`
		MATCH p = (a {id: $from})-[:REL*1..%d]-(b {id: $to})
		RETURN [n IN nodes(p) | n.id] AS path`, maxDepth)

	var out [][]string
	err := s.execRead(ctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
		result, err := tx.Run(ctx, query, map[string]any{"from": fromID, "to": toID})
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "finding paths %s -> %s", fromID, toID)
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return errs.Wrap(errs.KindStorage, err, "finding paths %s -> %s", fromID, toID)
		}
		for _, rec := range records {
			raw, _ := rec.Get("path")
			nodes, ok := raw.([]any)
			if !ok {
				continue
			}
			path := make([]string, 0, len(nodes))
			for _, n := range nodes {
				if str, ok := n.(string); ok {
					path = append(path, str)
				}
			}
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

func (s *Neo4jStore) Stats(ctx context.Context) (*models.EngineStats, error) {
	stats := &models.EngineStats{ByMemoryType: make(map[string]int64)}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.execRead(gctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
			result, err := tx.Run(ctx, `
				MATCH (m:Memory)
				RETURN m.type AS type, count(m) AS c`, nil)
			if err != nil {
				return errs.Wrap(errs.KindStorage, err, "collecting stats")
			}
			records, err := result.Collect(ctx)
			if err != nil {
				return errs.Wrap(errs.KindStorage, err, "collecting stats")
			}
			for _, rec := range records {
				rawType, _ := rec.Get("type")
				rawCount, _ := rec.Get("c")
				t, _ := rawType.(string)
				c, _ := rawCount.(int64)
				stats.ByMemoryType[t] = c
				stats.TotalMemories += c
			}
			return nil
		})
	})

	counts := []struct {
		query string
		dst   *int64
	}{
		{"MATCH (n:Entity) RETURN count(n) AS c", &stats.TotalEntities},
		{"MATCH ()-[rel:REL]->() RETURN count(rel) AS c", &stats.TotalRelationships},
		{"MATCH (ver:Version) RETURN count(ver) AS c", &stats.TotalVersions},
	}
	for _, q := range counts {
		g.Go(func() error {
			return s.execRead(gctx, func(ctx context.Context, tx neo4j.ManagedTransaction) error {
				result, err := tx.Run(ctx, q.query, nil)
				if err != nil {
					return errs.Wrap(errs.KindStorage, err, "collecting stats")
				}
				rec, err := result.Single(ctx)
				if err != nil {
					return errs.Wrap(errs.KindStorage, err, "collecting stats")
				}
				raw, _ := rec.Get("c")
				*q.dst, _ = raw.(int64)
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// --- transactions ---

type neo4jTx struct {
	tx neo4j.ManagedTransaction
}

func (t *neo4jTx) CreateMemory(ctx context.Context, mem models.Memory) error {
	return txCreateMemory(ctx, t.tx, mem)
}
func (t *neo4jTx) GetMemory(ctx context.Context, id string) (*models.Memory, error) {
	return txGetMemory(ctx, t.tx, id)
}
func (t *neo4jTx) UpdateMemory(ctx context.Context, mem models.Memory) error {
	return txUpdateMemory(ctx, t.tx, mem)
}
func (t *neo4jTx) DeleteMemory(ctx context.Context, id string) error {
	return txDeleteMemory(ctx, t.tx, id)
}
func (t *neo4jTx) CreateEntity(ctx context.Context, e models.Entity) error {
	return txCreateEntity(ctx, t.tx, e)
}
func (t *neo4jTx) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	return txGetEntity(ctx, t.tx, id)
}
func (t *neo4jTx) UpdateEntity(ctx context.Context, e models.Entity) error {
	return txUpdateEntity(ctx, t.tx, e)
}
func (t *neo4jTx) DeleteEntity(ctx context.Context, id string) error {
	return txDeleteEntity(ctx, t.tx, id)
}
func (t *neo4jTx) CreateRelationship(ctx context.Context, r models.Relationship) error {
	return txCreateRelationship(ctx, t.tx, r)
}
func (t *neo4jTx) GetRelationship(ctx context.Context, id string) (*models.Relationship, error) {
	return txGetRelationship(ctx, t.tx, id)
}
func (t *neo4jTx) UpdateRelationship(ctx context.Context, r models.Relationship) error {
	return txUpdateRelationship(ctx, t.tx, r)
}
func (t *neo4jTx) DeleteRelationship(ctx context.Context, id string) error {
	return txDeleteRelationship(ctx, t.tx, id)
}
func (t *neo4jTx) CreateVersion(ctx context.Context, v models.Version) error {
	return txCreateVersion(ctx, t.tx, v)
}
func (t *neo4jTx) UpdateVersion(ctx context.Context, v models.Version) error {
	return txUpdateVersion(ctx, t.tx, v)
}
func (t *neo4jTx) DeleteVersion(ctx context.Context, id string) error {
	return txDeleteVersion(ctx, t.tx, id)
}

// ExecTx runs fn inside a single managed write transaction. A returned error
// rolls the whole transaction back.
func (s *Neo4jStore) ExecTx(ctx context.Context, fn func(tx Tx) error) error {
	wctx, cancel := withTimeout(ctx, neo4jWriteTimeout)
	defer cancel()
	session := s.writeSession(wctx)
	defer session.Close(wctx)

	_, err := session.ExecuteWrite(wctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(&neo4jTx{tx: tx})
	})
	return err
}
