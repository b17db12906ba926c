// Package api exposes the memory engine over HTTP with optional Bearer
// authentication. Errors map from the engine taxonomy to status codes.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/locaidev/locai/internal/batch"
	"github.com/locaidev/locai/internal/engine"
	"github.com/locaidev/locai/internal/errs"
	"github.com/locaidev/locai/internal/live"
	"github.com/locaidev/locai/internal/models"
	"github.com/locaidev/locai/internal/version"
)

const maxBodyBytes = 1 << 20 // 1 MB limit

// Server is an HTTP API server over the memory engine.
type Server struct {
	engine    *engine.Engine
	logger    *slog.Logger
	authToken string // empty = no auth required
}

// NewServer creates a new Server with the given dependencies.
func NewServer(eng *engine.Engine, logger *slog.Logger, authToken string) *Server {
	return &Server{engine: eng, logger: logger, authToken: authToken}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health and metrics — no auth required.
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /debug/vars", expvar.Handler())

	mux.HandleFunc("POST /v1/memories", s.auth(s.handleCreateMemory))
	mux.HandleFunc("GET /v1/memories", s.auth(s.handleListMemories))
	mux.HandleFunc("GET /v1/memories/{id}", s.auth(s.handleGetMemory))
	mux.HandleFunc("PUT /v1/memories/{id}", s.auth(s.handleUpdateMemory))
	mux.HandleFunc("DELETE /v1/memories/{id}", s.auth(s.handleDeleteMemory))

	mux.HandleFunc("POST /v1/memories/{id}/access", s.auth(s.handleRecordAccess))
	mux.HandleFunc("POST /v1/memories/{id}/tags", s.auth(s.handleTagMemory))
	mux.HandleFunc("POST /v1/memories/{id}/related", s.auth(s.handleAddRelated))

	mux.HandleFunc("GET /v1/memories/{id}/versions", s.auth(s.handleListVersions))
	mux.HandleFunc("POST /v1/memories/{id}/rollback", s.auth(s.handleRollback))

	mux.HandleFunc("POST /v1/search", s.auth(s.handleSearch))
	mux.HandleFunc("GET /v1/suggest", s.auth(s.handleSuggest))
	mux.HandleFunc("GET /v1/autocomplete", s.auth(s.handleAutocomplete))

	mux.HandleFunc("POST /v1/entities", s.auth(s.handleCreateEntity))
	mux.HandleFunc("GET /v1/entities", s.auth(s.handleListEntities))
	mux.HandleFunc("GET /v1/entities/{id}", s.auth(s.handleGetEntity))
	mux.HandleFunc("PUT /v1/entities/{id}", s.auth(s.handleUpdateEntity))
	mux.HandleFunc("DELETE /v1/entities/{id}", s.auth(s.handleDeleteEntity))

	mux.HandleFunc("POST /v1/relationships", s.auth(s.handleCreateRelationship))
	mux.HandleFunc("GET /v1/relationships", s.auth(s.handleListRelationships))
	mux.HandleFunc("GET /v1/relationships/{id}", s.auth(s.handleGetRelationship))
	mux.HandleFunc("DELETE /v1/relationships/{id}", s.auth(s.handleDeleteRelationship))
	mux.HandleFunc("GET /v1/relationship-types", s.auth(s.handleListRelationshipTypes))
	mux.HandleFunc("POST /v1/relationship-types", s.auth(s.handleRegisterRelationshipType))

	mux.HandleFunc("GET /v1/graph/{id}/neighbors", s.auth(s.handleNeighbors))
	mux.HandleFunc("GET /v1/graph/paths", s.auth(s.handlePaths))

	mux.HandleFunc("POST /v1/snapshots", s.auth(s.handleCreateSnapshot))
	mux.HandleFunc("GET /v1/snapshots", s.auth(s.handleListSnapshots))
	mux.HandleFunc("POST /v1/snapshots/{id}/restore", s.auth(s.handleRestoreSnapshot))
	mux.HandleFunc("DELETE /v1/snapshots/{id}", s.auth(s.handleDeleteSnapshot))

	mux.HandleFunc("POST /v1/batch", s.auth(s.handleBatch))
	mux.HandleFunc("GET /v1/events", s.auth(s.handleEvents))
	mux.HandleFunc("GET /v1/stats", s.auth(s.handleStats))

	return mux
}

// --- middleware ---

// auth wraps a handler with Bearer token authentication when authToken is set.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var m models.Memory
	if !s.decode(w, r, &m) {
		return
	}
	stored, err := s.engine.StoreMemory(r.Context(), m)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f *models.MemoryFilter
	if t := q.Get("type"); t != "" {
		mt := models.MemoryType(t)
		f = &models.MemoryFilter{MemoryType: &mt}
	}
	if tag := q.Get("tag"); tag != "" {
		if f == nil {
			f = &models.MemoryFilter{}
		}
		f.Tags = []string{tag}
	}
	limit, offset := paging(q.Get("limit"), q.Get("offset"))
	memories, err := s.engine.ListMemories(r.Context(), f, limit, offset)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"memories": memories})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var mem *models.Memory
	var err error
	if r.URL.Query().Get("peek") == "true" {
		mem, err = s.engine.PeekMemory(r.Context(), id)
	} else {
		mem, err = s.engine.GetMemory(r.Context(), id)
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, mem)
}

func (s *Server) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	var m models.Memory
	if !s.decode(w, r, &m) {
		return
	}
	m.ID = r.PathValue("id")
	updated, err := s.engine.UpdateMemory(r.Context(), m)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.engine.DeleteMemory(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (s *Server) handleRecordAccess(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RecordAccess(r.Context(), r.PathValue("id")); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"recorded": true})
}

func (s *Server) handleTagMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tags []string `json:"tags"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	mem, err := s.engine.TagMemory(r.Context(), r.PathValue("id"), req.Tags)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, mem)
}

func (s *Server) handleAddRelated(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetID string `json:"target_id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.TargetID == "" {
		s.writeError(w, http.StatusBadRequest, "target_id is required")
		return
	}
	res, err := s.engine.AddRelated(r.Context(), r.PathValue("id"), req.TargetID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.engine.Versions().ListVersions(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VersionID string `json:"version_id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.VersionID == "" {
		s.writeError(w, http.StatusBadRequest, "version_id is required")
		return
	}
	mem, err := s.engine.RollbackMemory(r.Context(), r.PathValue("id"), req.VersionID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, mem)
}

// searchRequest is the body accepted by POST /v1/search.
type searchRequest struct {
	Query     string               `json:"query"`
	Mode      string               `json:"mode"` // intelligent, bm25, fuzzy, vector, tags
	Embedding []float32            `json:"embedding,omitempty"`
	Tags      []string             `json:"tags,omitempty"`
	MatchAll  bool                 `json:"match_all,omitempty"`
	Threshold float64              `json:"threshold,omitempty"`
	Filter    *models.MemoryFilter `json:"filter,omitempty"`
	Limit     int                  `json:"limit,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	var results []models.SearchResult
	var err error
	switch req.Mode {
	case "", "intelligent":
		results, err = s.engine.Search(r.Context(), req.Query, req.Embedding, req.Filter, req.Limit)
	case "bm25":
		results, err = s.engine.SearchBM25(r.Context(), req.Query, req.Filter, req.Limit)
	case "fuzzy":
		results, err = s.engine.SearchFuzzy(r.Context(), req.Query, req.Threshold, req.Limit)
	case "vector":
		results, err = s.engine.SearchVector(r.Context(), req.Embedding, req.Filter, req.Limit)
	case "tags":
		results, err = s.engine.SearchTags(r.Context(), req.Tags, req.MatchAll, req.Limit)
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown search mode %q", req.Mode))
		return
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		s.writeError(w, http.StatusBadRequest, "prefix is required")
		return
	}
	suggestions, err := s.engine.Suggest(r.Context(), prefix, r.URL.Query()["tag"])
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefix := q.Get("prefix")
	if prefix == "" {
		s.writeError(w, http.StatusBadRequest, "prefix is required")
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	completions, err := s.engine.Autocomplete(r.Context(), prefix, limit)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"completions": completions})
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var ent models.Entity
	if !s.decode(w, r, &ent) {
		return
	}
	created, err := s.engine.CreateEntity(r.Context(), ent)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f *models.EntityFilter
	if t := q.Get("type"); t != "" {
		et := models.EntityType(t)
		f = &models.EntityFilter{EntityType: &et}
	}
	if name := q.Get("name"); name != "" {
		if f == nil {
			f = &models.EntityFilter{}
		}
		f.NameSubstring = name
	}
	limit, offset := paging(q.Get("limit"), q.Get("offset"))
	entities, err := s.engine.ListEntities(r.Context(), f, limit, offset)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entities": entities})
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	ent, err := s.engine.GetEntity(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ent)
}

func (s *Server) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	var ent models.Entity
	if !s.decode(w, r, &ent) {
		return
	}
	ent.ID = r.PathValue("id")
	updated, err := s.engine.UpdateEntity(r.Context(), ent)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.engine.DeleteEntity(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	var rel models.Relationship
	if !s.decode(w, r, &rel) {
		return
	}
	res, err := s.engine.CreateRelationship(r.Context(), rel)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListRelationships(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f *models.RelationshipFilter
	setField := func(assign func(*models.RelationshipFilter)) {
		if f == nil {
			f = &models.RelationshipFilter{}
		}
		assign(f)
	}
	if t := q.Get("type"); t != "" {
		setField(func(f *models.RelationshipFilter) { f.RelationshipType = &t })
	}
	if src := q.Get("source"); src != "" {
		setField(func(f *models.RelationshipFilter) { f.SourceID = &src })
	}
	if dst := q.Get("target"); dst != "" {
		setField(func(f *models.RelationshipFilter) { f.TargetID = &dst })
	}
	limit, offset := paging(q.Get("limit"), q.Get("offset"))
	rels, err := s.engine.ListRelationships(r.Context(), f, limit, offset)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"relationships": rels})
}

func (s *Server) handleGetRelationship(w http.ResponseWriter, r *http.Request) {
	rel, err := s.engine.GetRelationship(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rel)
}

func (s *Server) handleDeleteRelationship(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.engine.DeleteRelationship(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (s *Server) handleListRelationshipTypes(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"types": s.engine.RelationshipTypes().List()})
}

func (s *Server) handleRegisterRelationshipType(w http.ResponseWriter, r *http.Request) {
	var def models.RelationshipTypeDef
	if !s.decode(w, r, &def) {
		return
	}
	if err := s.engine.RelationshipTypes().Register(r.Context(), def); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, def)
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	depth, _ := strconv.Atoi(q.Get("depth"))
	sub, err := s.engine.GetSubgraph(r.Context(), r.PathValue("id"), q.Get("type"), depth)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handlePaths(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		s.writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	depth, _ := strconv.Atoi(q.Get("depth"))
	paths, err := s.engine.FindPaths(r.Context(), from, to, depth)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"paths": paths})
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemoryIDs   []string `json:"memory_ids,omitempty"`
		Description string   `json:"description"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	snap, err := s.engine.Versions().CreateSnapshot(r.Context(), req.MemoryIDs, req.Description)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.engine.Versions().ListSnapshots(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	mode := version.RestoreMode(req.Mode)
	if mode == "" {
		mode = version.RestoreOverwrite
	}
	if err := s.engine.Versions().RestoreSnapshot(r.Context(), r.PathValue("id"), mode); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"restored": true})
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Versions().DeleteSnapshot(r.Context(), r.PathValue("id")); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Operations []batch.Operation `json:"operations"`
		Options    batch.Options     `json:"options"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.engine.ExecuteBatch(r.Context(), req.Operations, req.Options)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleEvents streams change notifications as server-sent events until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var filter live.Filter
	q := r.URL.Query()
	for _, t := range q["type"] {
		filter.Types = append(filter.Types, models.EventType(t))
	}
	if mt := q.Get("memory_type"); mt != "" {
		filter.MemoryType = models.MemoryType(mt)
	}

	sub := s.engine.Subscribe(filter)
	defer s.engine.Unsubscribe(sub.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case n := <-sub.C:
			payload, err := json.Marshal(n)
			if err != nil {
				s.logger.Error("failed to encode event", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"store":       stats,
		"enforcement": s.engine.EnforcementMetrics(),
	})
}

// --- helpers ---

// paging parses limit/offset query values; bad or missing values become 0,
// which the store treats as unlimited / start-of-list.
func paging(limitStr, offsetStr string) (limit, offset int) {
	limit, _ = strconv.Atoi(limitStr)
	offset, _ = strconv.Atoi(offsetStr)
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// decode reads a JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps an engine error kind to a status code.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case errs.KindNotFound:
		status = http.StatusNotFound
	case errs.KindValidation, errs.KindInvalidEmbedding:
		status = http.StatusBadRequest
	case errs.KindConflict, errs.KindWouldOrphanSnapshot:
		status = http.StatusConflict
	case errs.KindVetoed:
		status = http.StatusForbidden
	case errs.KindBatchTooLarge:
		status = http.StatusRequestEntityTooLarge
	case errs.KindCapabilityMissing:
		status = http.StatusNotImplemented
	case errs.KindTimeout:
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error(), "kind": string(kind)})
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
