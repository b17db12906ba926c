package models

// MatchMethod records which retrieval path produced a search result.
type MatchMethod string

const (
	MatchText         MatchMethod = "text"
	MatchSemantic     MatchMethod = "semantic"
	MatchTextSemantic MatchMethod = "text+semantic"
	MatchFuzzy        MatchMethod = "fuzzy"
	MatchTag          MatchMethod = "tag"
)

// Highlight marks the span of the first matched term inside a snippet.
// Offsets are byte positions within Snippet and are informational only.
type Highlight struct {
	Snippet string `json:"snippet"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

// SearchResult wraps a memory with its score and match provenance.
type SearchResult struct {
	Memory      Memory      `json:"memory"`
	Score       float64     `json:"score"`
	BM25Score   float64     `json:"bm25_score,omitempty"`
	VectorScore float64     `json:"vector_score,omitempty"`
	MatchMethod MatchMethod `json:"match_method"`
	Highlight   *Highlight  `json:"highlight,omitempty"`
}

// EngineStats summarizes the store for observability surfaces.
type EngineStats struct {
	TotalMemories      int64            `json:"total_memories"`
	TotalEntities      int64            `json:"total_entities"`
	TotalRelationships int64            `json:"total_relationships"`
	TotalVersions      int64            `json:"total_versions"`
	ByMemoryType       map[string]int64 `json:"by_memory_type,omitempty"`
}
