package models

import (
	"strings"
	"time"
)

// EntityType classifies the kind of entity. As with memory types, the set is
// open: unknown non-empty names are accepted as custom types.
type EntityType string

const (
	EntityTypePerson        EntityType = "person"
	EntityTypeOrganization  EntityType = "organization"
	EntityTypeLocation      EntityType = "location"
	EntityTypeEmail         EntityType = "email"
	EntityTypeURL           EntityType = "url"
	EntityTypePhoneNumber   EntityType = "phone_number"
	EntityTypeDate          EntityType = "date"
	EntityTypeTime          EntityType = "time"
	EntityTypeMoney         EntityType = "money"
	EntityTypeMiscellaneous EntityType = "miscellaneous"
)

// WellKnownEntityTypes is the set of built-in entity types.
var WellKnownEntityTypes = []EntityType{
	EntityTypePerson,
	EntityTypeOrganization,
	EntityTypeLocation,
	EntityTypeEmail,
	EntityTypeURL,
	EntityTypePhoneNumber,
	EntityTypeDate,
	EntityTypeTime,
	EntityTypeMoney,
	EntityTypeMiscellaneous,
}

// IsValid returns true for built-in types and non-empty custom names.
func (et EntityType) IsValid() bool {
	for _, v := range WellKnownEntityTypes {
		if et == v {
			return true
		}
	}
	return strings.TrimSpace(string(et)) != ""
}

// Entity represents an extracted or declared referent linked to memories.
type Entity struct {
	ID         string         `json:"id"`
	EntityType EntityType     `json:"entity_type"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Name returns the entity's name property when present.
func (e Entity) Name() string {
	if e.Properties == nil {
		return ""
	}
	if name, ok := e.Properties["name"].(string); ok {
		return name
	}
	return ""
}

// Clone returns a deep copy of the entity.
func (e Entity) Clone() Entity {
	out := e
	if len(e.Properties) > 0 {
		out.Properties = cloneProperties(e.Properties)
	}
	return out
}
