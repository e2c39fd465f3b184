package snapshot

import (
	"encoding/base64"
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/lherron/vaultq/internal/domain"
)

// Capture builds the canonical snapshot of a vault database.
func Capture(vault *domain.Database) *Snapshot {
	snap := &Snapshot{
		Meta: Meta{
			SchemaVersion:   SchemaVersion,
			Name:            vault.Name(),
			HistoryMaxItems: vault.HistoryMaxItems(),
		},
		Groups:  make(map[string]GroupEntry),
		Entries: make(map[string]EntryItem),
	}

	captureGroup(snap, vault.Root(), "", 0)

	objects := vault.DeletedObjects()
	sort.Slice(objects, func(i, j int) bool { return objects[i].UUID.String() < objects[j].UUID.String() })
	for _, obj := range objects {
		snap.DeletedObjects = append(snap.DeletedObjects, DeletedObjectEntry{
			UUID:         obj.UUID.String(),
			DeletionTime: FormatTimestamp(obj.DeletionTime),
		})
	}

	iconIDs := vault.CustomIconUUIDs()
	if len(iconIDs) > 0 {
		snap.CustomIcons = make(map[string]string, len(iconIDs))
		for _, id := range iconIDs {
			snap.CustomIcons[id.String()] = base64.StdEncoding.EncodeToString(vault.CustomIcon(id))
		}
	}
	return snap
}

func captureGroup(snap *Snapshot, g *domain.Group, parentUUID string, position int) {
	entry := GroupEntry{
		Name:       g.Name(),
		Notes:      g.Notes(),
		ParentUUID: parentUUID,
		Position:   position,
		IconNumber: g.IconNumber(),
		Times:      captureTimeInfo(g.TimeInfo()),
	}
	if g.IconUUID() != uuid.Nil {
		entry.IconUUID = g.IconUUID().String()
	}
	if g.MergeMode() != domain.ModeInherit {
		entry.MergeMode = g.MergeMode().String()
	}
	snap.Groups[g.UUID().String()] = entry

	for i, e := range g.Entries() {
		item := EntryItem{
			GroupUUID: g.UUID().String(),
			Position:  i,
			Times:     captureTimeInfo(e.TimeInfo()),
		}
		if keys := e.AttributeKeys(); len(keys) > 0 {
			item.Attributes = make(map[string]string, len(keys))
			for _, k := range keys {
				item.Attributes[k] = e.Attribute(k)
			}
		}
		for _, h := range e.History() {
			hi := HistoryItem{Times: captureTimeInfo(h.TimeInfo())}
			if keys := h.AttributeKeys(); len(keys) > 0 {
				hi.Attributes = make(map[string]string, len(keys))
				for _, k := range keys {
					hi.Attributes[k] = h.Attribute(k)
				}
			}
			item.History = append(item.History, hi)
		}
		snap.Entries[e.UUID().String()] = item
	}

	for i, child := range g.Children() {
		captureGroup(snap, child, g.UUID().String(), i)
	}
}

func captureTimeInfo(ti domain.TimeInfo) TimeInfo {
	return TimeInfo{
		Creation:         FormatTimestamp(ti.CreationTime),
		LastModification: FormatTimestamp(ti.LastModificationTime),
		LastAccess:       FormatTimestamp(ti.LastAccessTime),
		Expiry:           FormatTimestamp(ti.ExpiryTime),
		LocationChanged:  FormatTimestamp(ti.LocationChanged),
		Expires:          ti.Expires,
		UsageCount:       ti.UsageCount,
	}
}

// Marshal renders the snapshot as canonical YAML. yaml.v3 writes map keys
// in sorted order, which keeps the output deterministic.
func Marshal(snap *Snapshot) ([]byte, error) {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// Export writes the canonical snapshot of a vault to a file.
func Export(vault *domain.Database, path string) error {
	data, err := Marshal(Capture(vault))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
