package engine

import (
	"context"

	"github.com/locaidev/locai/internal/errs"
	"github.com/locaidev/locai/internal/models"
)

// DefaultTraversalDepth bounds graph walks when the caller passes no depth.
const DefaultTraversalDepth = 3

// Subgraph is a traversal result rooted at one node.
type Subgraph struct {
	CenterID      string                `json:"center_id"`
	NodeIDs       []string              `json:"node_ids"`
	Relationships []models.Relationship `json:"relationships"`
}

// Neighbors returns ids of nodes within depth hops of id, optionally
// restricted to one relationship type.
func (e *Engine) Neighbors(ctx context.Context, id, relType string, depth int) ([]string, error) {
	if depth <= 0 {
		depth = DefaultTraversalDepth
	}
	if ok, err := e.nodeExists(ctx, id); err != nil {
		return nil, err
	} else if !ok {
		return nil, errs.NotFound("node", id)
	}
	return e.store.Neighbors(ctx, id, relType, depth)
}

// GetSubgraph returns the neighborhood of a node together with the
// relationships incident to every node in it.
func (e *Engine) GetSubgraph(ctx context.Context, id, relType string, depth int) (*Subgraph, error) {
	nodeIDs, err := e.Neighbors(ctx, id, relType, depth)
	if err != nil {
		return nil, err
	}

	inSet := make(map[string]struct{}, len(nodeIDs)+1)
	inSet[id] = struct{}{}
	for _, n := range nodeIDs {
		inSet[n] = struct{}{}
	}

	seen := make(map[string]struct{})
	var rels []models.Relationship
	for node := range inSet {
		incident, err := e.store.ListRelationshipsFor(ctx, node)
		if err != nil {
			return nil, err
		}
		for _, r := range incident {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			if _, okS := inSet[r.SourceID]; !okS {
				continue
			}
			if _, okT := inSet[r.TargetID]; !okT {
				continue
			}
			seen[r.ID] = struct{}{}
			rels = append(rels, r)
		}
	}

	return &Subgraph{CenterID: id, NodeIDs: nodeIDs, Relationships: rels}, nil
}

// FindPaths returns every simple path between two nodes up to maxDepth hops,
// each as a node id sequence including both endpoints.
func (e *Engine) FindPaths(ctx context.Context, fromID, toID string, maxDepth int) ([][]string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultTraversalDepth
	}
	for _, id := range []string{fromID, toID} {
		if ok, err := e.nodeExists(ctx, id); err != nil {
			return nil, err
		} else if !ok {
			return nil, errs.NotFound("node", id)
		}
	}
	return e.store.Paths(ctx, fromID, toID, maxDepth)
}

// Connected reports whether any path of at most maxDepth hops joins the two
// nodes.
func (e *Engine) Connected(ctx context.Context, fromID, toID string, maxDepth int) (bool, error) {
	paths, err := e.FindPaths(ctx, fromID, toID, maxDepth)
	if err != nil {
		return false, err
	}
	return len(paths) > 0, nil
}
