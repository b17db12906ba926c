package models

import (
	"sort"
	"strings"
	"time"
)

// MemoryType classifies the kind of memory. The engine ships a closed set of
// well-known types; any other non-empty name is treated as a custom type.
type MemoryType string

const (
	MemoryTypeConversation MemoryType = "conversation"
	MemoryTypeFact         MemoryType = "fact"
	MemoryTypeProcedural   MemoryType = "procedural"
	MemoryTypeEpisodic     MemoryType = "episodic"
	MemoryTypeIdentity     MemoryType = "identity"
	MemoryTypeWorld        MemoryType = "world"
	MemoryTypeAction       MemoryType = "action"
	MemoryTypeEvent        MemoryType = "event"
	MemoryTypeWisdom       MemoryType = "wisdom"
)

// WellKnownMemoryTypes is the set of built-in memory types.
var WellKnownMemoryTypes = []MemoryType{
	MemoryTypeConversation,
	MemoryTypeFact,
	MemoryTypeProcedural,
	MemoryTypeEpisodic,
	MemoryTypeIdentity,
	MemoryTypeWorld,
	MemoryTypeAction,
	MemoryTypeEvent,
	MemoryTypeWisdom,
}

// IsWellKnown returns true if the memory type is one of the built-in types.
func (mt MemoryType) IsWellKnown() bool {
	for _, v := range WellKnownMemoryTypes {
		if mt == v {
			return true
		}
	}
	return false
}

// IsValid returns true for built-in types and for non-empty custom names.
func (mt MemoryType) IsValid() bool {
	return mt.IsWellKnown() || strings.TrimSpace(string(mt)) != ""
}

// Priority orders memories by importance. Higher values rank higher.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

var priorityNames = map[Priority]string{
	PriorityLow:      "low",
	PriorityNormal:   "normal",
	PriorityHigh:     "high",
	PriorityCritical: "critical",
}

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "normal"
}

// ParsePriority maps a name to a Priority, defaulting to normal.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityCritical
	default:
		return PriorityNormal
	}
}

// IsValid returns true if the priority is one of the four defined levels.
func (p Priority) IsValid() bool {
	_, ok := priorityNames[p]
	return ok
}

// Memory is a content-bearing node in the engine's graph.
type Memory struct {
	ID              string         `json:"id"`
	Content         string         `json:"content"`
	MemoryType      MemoryType     `json:"memory_type"`
	CreatedAt       time.Time      `json:"created_at"`
	LastAccessed    *time.Time     `json:"last_accessed,omitempty"`
	AccessCount     uint32         `json:"access_count"`
	Priority        Priority       `json:"priority"`
	Tags            []string       `json:"tags,omitempty"`
	Source          string         `json:"source,omitempty"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty"`
	Properties      map[string]any `json:"properties,omitempty"`
	RelatedMemories []string       `json:"related_memories,omitempty"`
	Embedding       []float32      `json:"embedding,omitempty"`
}

// NormalizeTags deduplicates and sorts the memory's tags in place.
func (m *Memory) NormalizeTags() {
	m.Tags = NormalizeTags(m.Tags)
}

// HasTag reports whether the memory carries the given tag.
func (m *Memory) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so stored records are never aliased by callers.
func (m Memory) Clone() Memory {
	out := m
	if m.LastAccessed != nil {
		t := *m.LastAccessed
		out.LastAccessed = &t
	}
	if m.ExpiresAt != nil {
		t := *m.ExpiresAt
		out.ExpiresAt = &t
	}
	if len(m.Tags) > 0 {
		out.Tags = append([]string(nil), m.Tags...)
	}
	if len(m.RelatedMemories) > 0 {
		out.RelatedMemories = append([]string(nil), m.RelatedMemories...)
	}
	if len(m.Embedding) > 0 {
		out.Embedding = append([]float32(nil), m.Embedding...)
	}
	if len(m.Properties) > 0 {
		out.Properties = cloneProperties(m.Properties)
	}
	return out
}

// NormalizeTags deduplicates and sorts a tag set. Order is irrelevant to
// callers; sorting keeps comparisons and persistence deterministic.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func cloneProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
