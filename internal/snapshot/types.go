// Package snapshot provides deterministic YAML snapshots of a vault
// database. Snapshots are the canonical text form of a vault: UUID-keyed
// maps, sorted keys, timestamps at serialized (second) precision. They are
// used for export/import and as the input to textual diffs.
package snapshot

import (
	"time"
)

// Snapshot is the complete canonical state of a vault database.
type Snapshot struct {
	Meta           Meta                  `yaml:"meta"`
	Groups         map[string]GroupEntry `yaml:"groups,omitempty"`
	Entries        map[string]EntryItem  `yaml:"entries,omitempty"`
	DeletedObjects []DeletedObjectEntry  `yaml:"deleted_objects,omitempty"`
	CustomIcons    map[string]string     `yaml:"custom_icons,omitempty"`
}

// Meta contains database-scoped settings.
type Meta struct {
	SchemaVersion   int    `yaml:"schema_version"`
	Name            string `yaml:"name,omitempty"`
	HistoryMaxItems int    `yaml:"history_max_items"`
}

// GroupEntry represents a group. Keys under "groups" are UUIDs.
type GroupEntry struct {
	Name       string   `yaml:"name"`
	Notes      string   `yaml:"notes,omitempty"`
	ParentUUID string   `yaml:"parent_uuid,omitempty"`
	Position   int      `yaml:"position"`
	IconNumber int      `yaml:"icon_number,omitempty"`
	IconUUID   string   `yaml:"icon_uuid,omitempty"`
	MergeMode  string   `yaml:"merge_mode,omitempty"`
	Times      TimeInfo `yaml:"times"`
}

// EntryItem represents an entry. Keys under "entries" are UUIDs.
type EntryItem struct {
	GroupUUID  string            `yaml:"group_uuid"`
	Position   int               `yaml:"position"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
	Times      TimeInfo          `yaml:"times"`
	History    []HistoryItem     `yaml:"history,omitempty"`
}

// HistoryItem is an archived entry revision, oldest first.
type HistoryItem struct {
	Attributes map[string]string `yaml:"attributes,omitempty"`
	Times      TimeInfo          `yaml:"times"`
}

// TimeInfo is the serialized timestamp bundle.
type TimeInfo struct {
	Creation         string `yaml:"creation"`
	LastModification string `yaml:"last_modification"`
	LastAccess       string `yaml:"last_access"`
	Expiry           string `yaml:"expiry"`
	LocationChanged  string `yaml:"location_changed"`
	Expires          bool   `yaml:"expires,omitempty"`
	UsageCount       int    `yaml:"usage_count,omitempty"`
}

// DeletedObjectEntry is a tombstone, ordered by UUID for determinism.
type DeletedObjectEntry struct {
	UUID         string `yaml:"uuid"`
	DeletionTime string `yaml:"deletion_time"`
}

// SchemaVersion is the current snapshot schema version.
const SchemaVersion = 1

const timestampLayout = "2006-01-02T15:04:05Z"

// FormatTimestamp formats a time at serialized precision with a Z suffix.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timestampLayout)
}

// ParseTimestamp parses a serialized-precision timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}
