package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locaidev/locai/internal/batch"
	"github.com/locaidev/locai/internal/config"
	"github.com/locaidev/locai/internal/engine"
	"github.com/locaidev/locai/internal/models"
	"github.com/locaidev/locai/internal/store"
)

func newTestServer(t *testing.T, authToken string) (*Server, *engine.Engine) {
	t.Helper()
	cfg := &config.Config{
		Search: config.SearchConfig{
			Scoring: config.ScoringConfig{
				BM25Weight: 0.6, VectorWeight: 0.4,
				RecencyBoost: 0.1, AccessBoost: 0.05, PriorityBoost: 0.05,
				DecayFunction: "none", DecayRate: 0.01,
			},
			Fuzzy: config.FuzzyConfig{DefaultThreshold: config.DefaultFuzzyThreshold},
		},
		Versioning:   config.VersioningConfig{Enabled: true, FullCopyEvery: config.DefaultFullCopyEvery},
		Batch:        config.BatchConfig{MaxBatchSize: config.DefaultMaxBatchSize, DefaultTimeoutMS: config.DefaultStorageTimeoutMS},
		LiveQuery:    config.LiveQueryConfig{BufferSize: config.DefaultLiveBufferSize},
		Relationship: config.RelationshipConfig{EnforcementDefault: true},
	}
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	eng, err := engine.New(cfg, store.NewMemStore(), logger)
	require.NoError(t, err)
	require.NoError(t, eng.Init(context.Background()))
	return NewServer(eng, logger, authToken), eng
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthzNoAuth(t *testing.T) {
	srv, _ := newTestServer(t, "secret")
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t, "secret")
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/v1/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMemoryLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, "")
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/memories", models.Memory{
		Content:    "HTTP-created memory",
		MemoryType: models.MemoryTypeFact,
		Tags:       []string{"api"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Memory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = doJSON(t, h, http.MethodGet, "/v1/memories/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Memory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint32(1), got.AccessCount)

	rec = doJSON(t, h, http.MethodPut, "/v1/memories/"+created.ID, models.Memory{
		Content: "revised over HTTP", MemoryType: models.MemoryTypeFact,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/memories/"+created.ID+"/versions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var versions struct {
		Versions []models.Version `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &versions))
	assert.Len(t, versions.Versions, 2)

	rec = doJSON(t, h, http.MethodDelete, "/v1/memories/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/memories/"+created.ID+"?peek=true", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidationErrorsMapTo400(t *testing.T) {
	srv, _ := newTestServer(t, "")
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/memories", models.Memory{MemoryType: models.MemoryTypeFact})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation", body["kind"])
}

func TestSearchOverHTTP(t *testing.T) {
	srv, eng := newTestServer(t, "")
	h := srv.Handler()
	ctx := context.Background()

	for _, content := range []string{
		"goroutines make concurrency easy",
		"generics arrived in go 1.18",
	} {
		_, err := eng.StoreMemory(ctx, models.Memory{Content: content, MemoryType: models.MemoryTypeFact})
		require.NoError(t, err)
	}

	rec := doJSON(t, h, http.MethodPost, "/v1/search", searchRequest{Query: "goroutines concurrency", Mode: "bm25"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Results []models.SearchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Contains(t, resp.Results[0].Memory.Content, "goroutines")

	rec = doJSON(t, h, http.MethodPost, "/v1/search", searchRequest{Query: "x", Mode: "frobnicate"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRelationshipEndpoints(t *testing.T) {
	srv, eng := newTestServer(t, "")
	h := srv.Handler()
	ctx := context.Background()

	a, err := eng.StoreMemory(ctx, models.Memory{Content: "a", MemoryType: models.MemoryTypeFact})
	require.NoError(t, err)
	b, err := eng.StoreMemory(ctx, models.Memory{Content: "b", MemoryType: models.MemoryTypeFact})
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/v1/relationships", models.Relationship{
		SourceID: a.ID, TargetID: b.ID, RelationshipType: "married_to",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/v1/graph/%s/neighbors?depth=1", a.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sub engine.Subgraph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, []string{b.ID}, sub.NodeIDs)

	rec = doJSON(t, h, http.MethodGet, "/v1/relationship-types", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/relationships", models.Relationship{
		SourceID: a.ID, TargetID: "ghost", RelationshipType: "knows",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEntityEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, "")
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/entities", models.Entity{
		EntityType: models.EntityTypePerson,
		Properties: map[string]any{"name": "Ada Lovelace"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Entity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = doJSON(t, h, http.MethodGet, "/v1/entities?type=person&name=lovelace", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Entities []models.Entity `json:"entities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Entities, 1)
	assert.Equal(t, created.ID, listed.Entities[0].ID)

	rec = doJSON(t, h, http.MethodPut, "/v1/entities/"+created.ID, models.Entity{
		EntityType: models.EntityTypePerson,
		Properties: map[string]any{"name": "Ada Lovelace", "field": "mathematics"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.Entity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "mathematics", updated.Properties["field"])

	rec = doJSON(t, h, http.MethodDelete, "/v1/entities/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/entities/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAndGetRelationships(t *testing.T) {
	srv, eng := newTestServer(t, "")
	h := srv.Handler()
	ctx := context.Background()

	a, err := eng.StoreMemory(ctx, models.Memory{Content: "a", MemoryType: models.MemoryTypeFact})
	require.NoError(t, err)
	b, err := eng.StoreMemory(ctx, models.Memory{Content: "b", MemoryType: models.MemoryTypeFact})
	require.NoError(t, err)
	res, err := eng.CreateRelationship(ctx, models.Relationship{
		SourceID: a.ID, TargetID: b.ID, RelationshipType: "knows",
	})
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodGet, "/v1/relationships?type=knows&source="+a.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Relationships []models.Relationship `json:"relationships"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Relationships, 1)
	assert.Equal(t, b.ID, listed.Relationships[0].TargetID)

	rec = doJSON(t, h, http.MethodGet, "/v1/relationships/"+res.Primary.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/relationships/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAutocompleteEndpoint(t *testing.T) {
	srv, eng := newTestServer(t, "")
	h := srv.Handler()

	_, err := eng.StoreMemory(context.Background(), models.Memory{
		Content: "machine learning pipelines", MemoryType: models.MemoryTypeFact,
	})
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodGet, "/v1/autocomplete?prefix=machine", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Completions []string `json:"completions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Completions)

	rec = doJSON(t, h, http.MethodGet, "/v1/autocomplete", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchOverHTTP(t *testing.T) {
	srv, eng := newTestServer(t, "")
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/batch", map[string]any{
		"operations": []batch.Operation{
			{Kind: batch.OpCreateMemory, Memory: &models.Memory{Content: "one", MemoryType: models.MemoryTypeFact}},
			{Kind: batch.OpDeleteMemory, ID: "missing"},
		},
		"options": batch.Options{Transactional: true},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp batch.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Completed)
	assert.Equal(t, 1, resp.Failed)

	all, err := eng.ListMemories(context.Background(), nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStatsEndpoint(t *testing.T) {
	srv, eng := newTestServer(t, "")
	_, err := eng.StoreMemory(context.Background(), models.Memory{Content: "m", MemoryType: models.MemoryTypeFact})
	require.NoError(t, err)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Store models.EngineStats `json:"store"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Store.TotalMemories)
}
