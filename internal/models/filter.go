package models

import (
	"strings"
	"time"
)

// MemoryFilter narrows memory listings and searches. All fields are
// optional and combined with AND.
type MemoryFilter struct {
	MemoryType       *MemoryType    `json:"memory_type,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	ContentSubstring string         `json:"content_substring,omitempty"`
	Source           *string        `json:"source,omitempty"`
	CreatedAfter     *time.Time     `json:"created_after,omitempty"`
	CreatedBefore    *time.Time     `json:"created_before,omitempty"`
	PropertiesEquals map[string]any `json:"properties_equals,omitempty"`
}

// Matches reports whether the memory satisfies every set field.
func (f *MemoryFilter) Matches(m *Memory) bool {
	if f == nil {
		return true
	}
	if f.MemoryType != nil && m.MemoryType != *f.MemoryType {
		return false
	}
	for _, tag := range f.Tags {
		if !m.HasTag(tag) {
			return false
		}
	}
	if f.ContentSubstring != "" && !strings.Contains(strings.ToLower(m.Content), strings.ToLower(f.ContentSubstring)) {
		return false
	}
	if f.Source != nil && m.Source != *f.Source {
		return false
	}
	if f.CreatedAfter != nil && !m.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !m.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	for k, want := range f.PropertiesEquals {
		got, ok := m.Properties[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// EntityFilter narrows entity listings.
type EntityFilter struct {
	EntityType       *EntityType    `json:"entity_type,omitempty"`
	NameSubstring    string         `json:"name_substring,omitempty"`
	PropertiesEquals map[string]any `json:"properties_equals,omitempty"`
	CreatedAfter     *time.Time     `json:"created_after,omitempty"`
	CreatedBefore    *time.Time     `json:"created_before,omitempty"`
}

// Matches reports whether the entity satisfies every set field.
func (f *EntityFilter) Matches(e *Entity) bool {
	if f == nil {
		return true
	}
	if f.EntityType != nil && e.EntityType != *f.EntityType {
		return false
	}
	if f.NameSubstring != "" && !strings.Contains(strings.ToLower(e.Name()), strings.ToLower(f.NameSubstring)) {
		return false
	}
	for k, want := range f.PropertiesEquals {
		got, ok := e.Properties[k]
		if !ok || got != want {
			return false
		}
	}
	if f.CreatedAfter != nil && !e.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !e.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}

// RelationshipFilter narrows relationship listings.
type RelationshipFilter struct {
	RelationshipType *string `json:"relationship_type,omitempty"`
	SourceID         *string `json:"source_id,omitempty"`
	TargetID         *string `json:"target_id,omitempty"`
}

// Matches reports whether the relationship satisfies every set field.
func (f *RelationshipFilter) Matches(r *Relationship) bool {
	if f == nil {
		return true
	}
	if f.RelationshipType != nil && r.RelationshipType != *f.RelationshipType {
		return false
	}
	if f.SourceID != nil && r.SourceID != *f.SourceID {
		return false
	}
	if f.TargetID != nil && r.TargetID != *f.TargetID {
		return false
	}
	return true
}
