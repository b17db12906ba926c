package models

import "time"

// StorageForm describes how a version's content is physically stored.
type StorageForm string

const (
	StorageFormFull       StorageForm = "full_content"
	StorageFormDelta      StorageForm = "delta"
	StorageFormCompressed StorageForm = "compressed"
)

// Version is an immutable point-in-time record of a memory's content and
// metadata. Deltas reference a predecessor version; full copies stand alone.
type Version struct {
	ID             string      `json:"id"`
	MemoryID       string      `json:"memory_id,omitempty"` // empty for global snapshot records
	Description    string      `json:"description,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	IsDelta        bool        `json:"is_delta"`
	StorageForm    StorageForm `json:"storage_form"`
	PredecessorID  string      `json:"predecessor_id,omitempty"`
	Codec          string      `json:"codec,omitempty"` // set when StorageForm is compressed
	Payload        []byte      `json:"payload,omitempty"`
	Checksum       string      `json:"checksum,omitempty"` // sha256 hex of the full content
	SizeBytes      int64       `json:"size_bytes"`
	ContentPreview string      `json:"content_preview,omitempty"`

	// Metadata captured alongside the content at version time.
	Tags     []string       `json:"tags,omitempty"`
	Priority Priority       `json:"priority"`
	Props    map[string]any `json:"props,omitempty"`
}

// Clone returns a deep copy of the version record.
func (v Version) Clone() Version {
	out := v
	if len(v.Payload) > 0 {
		out.Payload = append([]byte(nil), v.Payload...)
	}
	if len(v.Tags) > 0 {
		out.Tags = append([]string(nil), v.Tags...)
	}
	if len(v.Props) > 0 {
		out.Props = cloneProperties(v.Props)
	}
	return out
}

// Snapshot fixes a concrete version id per included memory.
type Snapshot struct {
	SnapshotID  string            `json:"snapshot_id"`
	Description string            `json:"description,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	All         bool              `json:"all"` // true when the snapshot covered every memory
	MemoryCount int               `json:"memory_count"`
	VersionIDs  map[string]string `json:"version_ids"` // memory id -> version id
}

// Clone returns a deep copy of the snapshot record.
func (s Snapshot) Clone() Snapshot {
	out := s
	if len(s.VersionIDs) > 0 {
		out.VersionIDs = make(map[string]string, len(s.VersionIDs))
		for k, v := range s.VersionIDs {
			out.VersionIDs[k] = v
		}
	}
	return out
}

// Vector is a standalone stored embedding with metadata.
type Vector struct {
	ID        string         `json:"id"`
	Vector    []float32      `json:"vector"`
	Dimension int            `json:"dimension"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
