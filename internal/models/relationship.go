package models

import (
	"regexp"
	"time"
)

// Relationship is a typed directed edge between two records (memory or
// entity, addressed by id).
type Relationship struct {
	ID               string         `json:"id"`
	SourceID         string         `json:"source_id"`
	TargetID         string         `json:"target_id"`
	RelationshipType string         `json:"relationship_type"`
	Properties       map[string]any `json:"properties,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	// Social-graph analytics dimensions. Optional; zero values are valid.
	Intensity   float64 `json:"intensity,omitempty"`   // [-1.0, 1.0]
	TrustLevel  float64 `json:"trust_level,omitempty"` // [0.0, 1.0]
	Familiarity float64 `json:"familiarity,omitempty"` // [0.0, 1.0]
}

// Clone returns a deep copy of the relationship.
func (r Relationship) Clone() Relationship {
	out := r
	if len(r.Properties) > 0 {
		out.Properties = cloneProperties(r.Properties)
	}
	return out
}

// ValidateDimensions checks the optional analytics dimensions are in range.
func (r Relationship) ValidateDimensions() bool {
	if r.Intensity < -1.0 || r.Intensity > 1.0 {
		return false
	}
	if r.TrustLevel < 0.0 || r.TrustLevel > 1.0 {
		return false
	}
	if r.Familiarity < 0.0 || r.Familiarity > 1.0 {
		return false
	}
	return true
}

// relTypeNamePattern constrains registered relationship type names.
var relTypeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidRelationshipTypeName reports whether name is a legal type name.
func ValidRelationshipTypeName(name string) bool {
	return relTypeNamePattern.MatchString(name)
}

// RelationshipTypeDef is a registered edge label with its constraint flags.
type RelationshipTypeDef struct {
	Name           string         `json:"name"`
	Inverse        string         `json:"inverse,omitempty"`
	Symmetric      bool           `json:"symmetric"`
	Transitive     bool           `json:"transitive"`
	MetadataSchema map[string]any `json:"metadata_schema,omitempty"`
	Version        uint32         `json:"version"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Clone returns a deep copy of the type definition.
func (d RelationshipTypeDef) Clone() RelationshipTypeDef {
	out := d
	if len(d.MetadataSchema) > 0 {
		out.MetadataSchema = cloneProperties(d.MetadataSchema)
	}
	return out
}
