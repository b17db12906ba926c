package models

import "time"

// EventType discriminates change events on the wire.
type EventType string

const (
	EventMemoryCreated       EventType = "memory_created"
	EventMemoryUpdated       EventType = "memory_updated"
	EventMemoryDeleted       EventType = "memory_deleted"
	EventEntityCreated       EventType = "entity_created"
	EventEntityUpdated       EventType = "entity_updated"
	EventEntityDeleted       EventType = "entity_deleted"
	EventRelationshipCreated EventType = "relationship_created"
	EventRelationshipDeleted EventType = "relationship_deleted"
	EventVersionCreated      EventType = "version_created"
)

// ChangeEvent is the typed change notification delivered to subscribers.
// NodeID identifies the publishing engine instance so subscribers can
// suppress echoes of their own writes in multi-instance deployments.
type ChangeEvent struct {
	Type      EventType `json:"type"`
	Sequence  uint64    `json:"sequence"`
	NodeID    string    `json:"node_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Memory       *Memory       `json:"memory,omitempty"`
	Entity       *Entity       `json:"entity,omitempty"`
	Relationship *Relationship `json:"relationship,omitempty"`
	Version      *Version      `json:"version,omitempty"`

	// DeletedID carries the record id for delete events, where the full
	// record is no longer available.
	DeletedID string `json:"deleted_id,omitempty"`
}
