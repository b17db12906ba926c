package version

import (
	"context"
	"fmt"
	"sort"

	"github.com/locaidev/locai/internal/models"
)

// ChangeKind discriminates the entries of a version diff.
type ChangeKind string

const (
	ChangeContent    ChangeKind = "content_changed"
	ChangeTagAdded   ChangeKind = "tag_added"
	ChangeTagRemoved ChangeKind = "tag_removed"
	ChangePriority   ChangeKind = "priority_changed"
	ChangeProperty   ChangeKind = "property_changed"
)

// Change is one entry of a version diff. Only the fields relevant to its
// kind are populated.
type Change struct {
	Kind ChangeKind `json:"kind"`

	OldContent string `json:"old_content,omitempty"`
	NewContent string `json:"new_content,omitempty"`
	Hunks      []Hunk `json:"hunks,omitempty"`

	Tag string `json:"tag,omitempty"`

	OldPriority models.Priority `json:"old_priority,omitempty"`
	NewPriority models.Priority `json:"new_priority,omitempty"`

	Key      string `json:"key,omitempty"`
	OldValue any    `json:"old_value,omitempty"`
	NewValue any    `json:"new_value,omitempty"`
}

// DiffVersions reports the ordered changes between two versions of the same
// memory: content first, then tags, priority, and properties.
func (m *Manager) DiffVersions(ctx context.Context, memoryID, oldID, newID string) ([]Change, error) {
	oldState, err := m.GetVersion(ctx, memoryID, oldID)
	if err != nil {
		return nil, err
	}
	newState, err := m.GetVersion(ctx, memoryID, newID)
	if err != nil {
		return nil, err
	}

	var changes []Change

	if oldState.Content != newState.Content {
		changes = append(changes, Change{
			Kind:       ChangeContent,
			OldContent: oldState.Content,
			NewContent: newState.Content,
			Hunks:      ComputeHunks(oldState.Content, newState.Content),
		})
	}

	oldTags := tagSet(oldState.Tags)
	newTags := tagSet(newState.Tags)
	for _, tag := range sortedKeys(newTags) {
		if !oldTags[tag] {
			changes = append(changes, Change{Kind: ChangeTagAdded, Tag: tag})
		}
	}
	for _, tag := range sortedKeys(oldTags) {
		if !newTags[tag] {
			changes = append(changes, Change{Kind: ChangeTagRemoved, Tag: tag})
		}
	}

	if oldState.Priority != newState.Priority {
		changes = append(changes, Change{
			Kind:        ChangePriority,
			OldPriority: oldState.Priority,
			NewPriority: newState.Priority,
		})
	}

	keys := make(map[string]bool)
	for k := range oldState.Props {
		keys[k] = true
	}
	for k := range newState.Props {
		keys[k] = true
	}
	for _, k := range sortedKeys(keys) {
		oldVal, hadOld := oldState.Props[k]
		newVal, hasNew := newState.Props[k]
		if hadOld && hasNew && fmt.Sprint(oldVal) == fmt.Sprint(newVal) {
			continue
		}
		changes = append(changes, Change{
			Kind:     ChangeProperty,
			Key:      k,
			OldValue: oldVal,
			NewValue: newVal,
		})
	}
	return changes, nil
}

func tagSet(tags []string) map[string]bool {
	out := make(map[string]bool, len(tags))
	for _, t := range tags {
		out[t] = true
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
