// Package mcp implements the Model Context Protocol server for locai.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/locaidev/locai/internal/engine"
	"github.com/locaidev/locai/internal/models"
)

// defaultSearchLimit is the default number of results for search tools.
const defaultSearchLimit = 10

// Server wraps an MCPServer around the memory engine.
type Server struct {
	mcp    *mcpserver.MCPServer
	engine *engine.Engine
	logger *slog.Logger
}

// NewServer creates a new MCP server. If eng is nil, tool calls return an
// error response instead of panicking.
func NewServer(eng *engine.Engine, logger *slog.Logger) *Server {
	s := &Server{engine: eng, logger: logger}

	mcpSrv := mcpserver.NewMCPServer(
		"locai",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildRememberTool(), s.handleRemember)
	mcpSrv.AddTool(buildRecallTool(), s.handleRecall)
	mcpSrv.AddTool(buildForgetTool(), s.handleForget)
	mcpSrv.AddTool(buildRelateTool(), s.handleRelate)
	mcpSrv.AddTool(buildNeighborsTool(), s.handleNeighbors)
	mcpSrv.AddTool(buildHistoryTool(), s.handleHistory)
	mcpSrv.AddTool(buildStatsTool(), s.handleStats)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleRemember is the exported handler for the "remember" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleRemember(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleRemember(ctx, req)
}

// HandleRecall is the exported handler for the "recall" tool.
func (s *Server) HandleRecall(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleRecall(ctx, req)
}

// HandleForget is the exported handler for the "forget" tool.
func (s *Server) HandleForget(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleForget(ctx, req)
}

// HandleRelate is the exported handler for the "relate" tool.
func (s *Server) HandleRelate(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleRelate(ctx, req)
}

// HandleNeighbors is the exported handler for the "neighbors" tool.
func (s *Server) HandleNeighbors(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleNeighbors(ctx, req)
}

// HandleHistory is the exported handler for the "history" tool.
func (s *Server) HandleHistory(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleHistory(ctx, req)
}

// HandleStats is the exported handler for the "stats" tool.
func (s *Server) HandleStats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleStats(ctx, req)
}

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// --- tool definitions ---

func buildRememberTool() mcpgo.Tool {
	return mcpgo.NewTool("remember",
		mcpgo.WithDescription("Store a memory in locai. Creates the record with an initial version and fires lifecycle hooks."),
		mcpgo.WithString("content",
			mcpgo.Required(),
			mcpgo.Description("The text content to remember"),
		),
		mcpgo.WithString("type",
			mcpgo.Description("Memory type: conversation, fact, procedural, episodic, identity, world, action, event, wisdom, or a custom name (default: fact)"),
		),
		mcpgo.WithString("priority",
			mcpgo.Description("Priority: low, normal, high, or critical (default: normal)"),
		),
		mcpgo.WithString("tags",
			mcpgo.Description("Comma-separated tags"),
		),
		mcpgo.WithString("source",
			mcpgo.Description("Where the memory came from"),
		),
	)
}

func buildRecallTool() mcpgo.Tool {
	return mcpgo.NewTool("recall",
		mcpgo.WithDescription("Retrieve relevant memories. Analyzes the query and routes it through keyword, fuzzy, or hybrid ranking."),
		mcpgo.WithString("query",
			mcpgo.Required(),
			mcpgo.Description("The query to recall memories for"),
		),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum number of results (default: 10)"),
		),
		mcpgo.WithString("type",
			mcpgo.Description("Restrict results to one memory type"),
		),
	)
}

func buildForgetTool() mcpgo.Tool {
	return mcpgo.NewTool("forget",
		mcpgo.WithDescription("Delete a memory by ID, with its versions and relationships. Pre-delete hooks may veto."),
		mcpgo.WithString("id",
			mcpgo.Required(),
			mcpgo.Description("The ID of the memory to delete"),
		),
	)
}

func buildRelateTool() mcpgo.Tool {
	return mcpgo.NewTool("relate",
		mcpgo.WithDescription("Create a typed relationship between two memories or entities. Symmetric types get their mirror record automatically."),
		mcpgo.WithString("source_id",
			mcpgo.Required(),
			mcpgo.Description("ID of the source node"),
		),
		mcpgo.WithString("target_id",
			mcpgo.Required(),
			mcpgo.Description("ID of the target node"),
		),
		mcpgo.WithString("type",
			mcpgo.Required(),
			mcpgo.Description("Registered relationship type name, e.g. married_to, knows, located_in"),
		),
	)
}

func buildNeighborsTool() mcpgo.Tool {
	return mcpgo.NewTool("neighbors",
		mcpgo.WithDescription("Traverse the graph around a node and return the connected subgraph."),
		mcpgo.WithString("id",
			mcpgo.Required(),
			mcpgo.Description("ID of the center node"),
		),
		mcpgo.WithNumber("depth",
			mcpgo.Description("Maximum hops from the center (default: 3)"),
		),
		mcpgo.WithString("type",
			mcpgo.Description("Restrict traversal to one relationship type"),
		),
	)
}

func buildHistoryTool() mcpgo.Tool {
	return mcpgo.NewTool("history",
		mcpgo.WithDescription("List a memory's version chain, oldest first."),
		mcpgo.WithString("id",
			mcpgo.Required(),
			mcpgo.Description("The ID of the memory"),
		),
	)
}

func buildStatsTool() mcpgo.Tool {
	return mcpgo.NewTool("stats",
		mcpgo.WithDescription("Get engine statistics: totals for memories, entities, relationships, and versions."),
	)
}

// --- tool handlers ---

func (s *Server) handleRemember(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}

	content := req.GetString("content", "")
	if strings.TrimSpace(content) == "" {
		return mcpgo.NewToolResultError("content is required and must not be empty"), nil
	}

	memType := models.MemoryTypeFact
	if t := req.GetString("type", ""); t != "" {
		memType = models.MemoryType(t)
	}

	var tags []string
	if raw := req.GetString("tags", ""); raw != "" {
		tags = strings.Split(raw, ",")
	}

	mem, err := s.engine.StoreMemory(ctx, models.Memory{
		Content:    content,
		MemoryType: memType,
		Priority:   models.ParsePriority(req.GetString("priority", "")),
		Tags:       tags,
		Source:     req.GetString("source", "mcp"),
	})
	if err != nil {
		return mcpgo.NewToolResultErrorf("store failed: %s", err.Error()), nil
	}

	s.logger.Info("mcp: remember stored memory", "id", mem.ID, "type", mem.MemoryType)
	return toolResultJSON(map[string]any{"id": mem.ID, "stored": true})
}

func (s *Server) handleRecall(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}

	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcpgo.NewToolResultError("query is required and must not be empty"), nil
	}

	limit := req.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var filter *models.MemoryFilter
	if t := req.GetString("type", ""); t != "" {
		mt := models.MemoryType(t)
		filter = &models.MemoryFilter{MemoryType: &mt}
	}

	results, err := s.engine.Search(ctx, query, nil, filter, limit)
	if err != nil {
		return mcpgo.NewToolResultErrorf("search failed: %s", err.Error()), nil
	}
	return toolResultJSON(map[string]any{"results": results})
}

func (s *Server) handleForget(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}

	id := req.GetString("id", "")
	if strings.TrimSpace(id) == "" {
		return mcpgo.NewToolResultError("id is required and must not be empty"), nil
	}

	deleted, err := s.engine.DeleteMemory(ctx, id)
	if err != nil {
		return mcpgo.NewToolResultErrorf("delete failed: %s", err.Error()), nil
	}

	s.logger.Info("mcp: forget deleted memory", "id", id, "deleted", deleted)
	return toolResultJSON(map[string]any{"deleted": deleted})
}

func (s *Server) handleRelate(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}

	sourceID := req.GetString("source_id", "")
	targetID := req.GetString("target_id", "")
	relType := req.GetString("type", "")
	if sourceID == "" || targetID == "" || relType == "" {
		return mcpgo.NewToolResultError("source_id, target_id and type are required"), nil
	}

	res, err := s.engine.CreateRelationship(ctx, models.Relationship{
		SourceID:         sourceID,
		TargetID:         targetID,
		RelationshipType: relType,
	})
	if err != nil {
		return mcpgo.NewToolResultErrorf("relate failed: %s", err.Error()), nil
	}
	return toolResultJSON(map[string]any{
		"id":       res.Primary.ID,
		"enforced": res.Enforced,
		"records":  1 + len(res.Additional),
	})
}

func (s *Server) handleNeighbors(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}

	id := req.GetString("id", "")
	if strings.TrimSpace(id) == "" {
		return mcpgo.NewToolResultError("id is required and must not be empty"), nil
	}

	sub, err := s.engine.GetSubgraph(ctx, id, req.GetString("type", ""), req.GetInt("depth", 0))
	if err != nil {
		return mcpgo.NewToolResultErrorf("traversal failed: %s", err.Error()), nil
	}
	return toolResultJSON(sub)
}

func (s *Server) handleHistory(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}

	id := req.GetString("id", "")
	if strings.TrimSpace(id) == "" {
		return mcpgo.NewToolResultError("id is required and must not be empty"), nil
	}

	versions, err := s.engine.Versions().ListVersions(ctx, id)
	if err != nil {
		return mcpgo.NewToolResultErrorf("history failed: %s", err.Error()), nil
	}
	return toolResultJSON(map[string]any{"versions": versions})
}

func (s *Server) handleStats(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}

	stats, err := s.engine.Stats(ctx)
	if err != nil {
		return mcpgo.NewToolResultErrorf("stats failed: %s", err.Error()), nil
	}
	return toolResultJSON(stats)
}
