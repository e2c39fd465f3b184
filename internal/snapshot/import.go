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

// Restore rebuilds a vault database from a snapshot and validates its
// invariants, rejecting snapshots where a UUID is both live and tombstoned.
func Restore(snap *Snapshot) (*domain.Database, error) {
	vault := domain.New(snap.Meta.Name)
	vault.SetHistoryMaxItems(snap.Meta.HistoryMaxItems)

	groups := make(map[string]*domain.Group, len(snap.Groups))
	childrenOf := make(map[string][]string)
	var rootUUID string
	for key, ge := range snap.Groups {
		g, err := restoreGroup(key, ge)
		if err != nil {
			return nil, err
		}
		groups[key] = g
		if ge.ParentUUID == "" {
			if rootUUID != "" {
				return nil, fmt.Errorf("snapshot has multiple root groups")
			}
			rootUUID = key
			continue
		}
		childrenOf[ge.ParentUUID] = append(childrenOf[ge.ParentUUID], key)
	}
	if rootUUID == "" {
		return nil, fmt.Errorf("snapshot has no root group")
	}
	vault.SetRoot(groups[rootUUID])

	// Attach children ordered by position so traversal order survives the
	// round trip.
	for parentKey, childKeys := range childrenOf {
		parent, ok := groups[parentKey]
		if !ok {
			return nil, fmt.Errorf("group %s references missing parent %s", childKeys[0], parentKey)
		}
		sort.Slice(childKeys, func(i, j int) bool {
			return snap.Groups[childKeys[i]].Position < snap.Groups[childKeys[j]].Position
		})
		for _, childKey := range childKeys {
			attachGroup(groups[childKey], parent)
		}
	}

	entryKeys := sortedKeys(snap.Entries)
	sort.SliceStable(entryKeys, func(i, j int) bool {
		a, b := snap.Entries[entryKeys[i]], snap.Entries[entryKeys[j]]
		if a.GroupUUID != b.GroupUUID {
			return a.GroupUUID < b.GroupUUID
		}
		return a.Position < b.Position
	})
	for _, key := range entryKeys {
		item := snap.Entries[key]
		parent, ok := groups[item.GroupUUID]
		if !ok {
			return nil, fmt.Errorf("entry %s references missing group %s", key, item.GroupUUID)
		}
		e, err := restoreEntry(key, item)
		if err != nil {
			return nil, err
		}
		attachEntry(e, parent)
	}

	for _, de := range snap.DeletedObjects {
		id, err := uuid.Parse(de.UUID)
		if err != nil {
			return nil, fmt.Errorf("invalid tombstone uuid %q: %w", de.UUID, err)
		}
		when, err := ParseTimestamp(de.DeletionTime)
		if err != nil {
			return nil, fmt.Errorf("invalid deletion_time for %s: %w", de.UUID, err)
		}
		objects := append(vault.DeletedObjects(), domain.DeletedObject{UUID: id, DeletionTime: when})
		vault.SetDeletedObjects(objects)
	}

	for key, data := range snap.CustomIcons {
		id, err := uuid.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("invalid icon uuid %q: %w", key, err)
		}
		payload, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("invalid icon payload for %s: %w", key, err)
		}
		vault.AddCustomIcon(id, payload)
	}

	if err := vault.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot failed validation: %w", err)
	}
	return vault, nil
}

// Load parses a snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &snap, nil
}

// Import reads a snapshot file and rebuilds the vault it describes.
func Import(path string) (*domain.Database, error) {
	snap, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Restore(snap)
}

func restoreGroup(key string, ge GroupEntry) (*domain.Group, error) {
	id, err := uuid.Parse(key)
	if err != nil {
		return nil, fmt.Errorf("invalid group uuid %q: %w", key, err)
	}
	g := domain.NewGroup(ge.Name)
	g.SetUUID(id)
	g.SetUpdateTimeInfo(false)
	g.SetNotes(ge.Notes)
	if ge.IconUUID != "" {
		iconID, err := uuid.Parse(ge.IconUUID)
		if err != nil {
			return nil, fmt.Errorf("invalid icon uuid %q: %w", ge.IconUUID, err)
		}
		g.SetIconUUID(iconID)
	} else {
		g.SetIconNumber(ge.IconNumber)
	}
	mode := domain.ModeInherit
	if ge.MergeMode != "" {
		if mode, err = domain.ParseMergeMode(ge.MergeMode); err != nil {
			return nil, err
		}
	}
	g.SetMergeMode(mode)
	ti, err := restoreTimeInfo(ge.Times)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", key, err)
	}
	g.SetTimeInfo(ti)
	g.SetUpdateTimeInfo(true)
	return g, nil
}

func restoreEntry(key string, item EntryItem) (*domain.Entry, error) {
	id, err := uuid.Parse(key)
	if err != nil {
		return nil, fmt.Errorf("invalid entry uuid %q: %w", key, err)
	}
	e := domain.NewEntry()
	e.SetUUID(id)
	e.SetUpdateTimeInfo(false)
	for k, v := range item.Attributes {
		e.SetAttribute(k, v)
	}
	for _, hi := range item.History {
		h := domain.NewEntry()
		h.SetUUID(id)
		h.SetUpdateTimeInfo(false)
		for k, v := range hi.Attributes {
			h.SetAttribute(k, v)
		}
		hti, err := restoreTimeInfo(hi.Times)
		if err != nil {
			return nil, fmt.Errorf("history of entry %s: %w", key, err)
		}
		h.SetTimeInfo(hti)
		h.SetUpdateTimeInfo(true)
		e.AddHistoryItem(h)
	}
	ti, err := restoreTimeInfo(item.Times)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", key, err)
	}
	e.SetTimeInfo(ti)
	e.SetUpdateTimeInfo(true)
	return e, nil
}

func restoreTimeInfo(ti TimeInfo) (domain.TimeInfo, error) {
	var out domain.TimeInfo
	var err error
	if out.CreationTime, err = ParseTimestamp(ti.Creation); err != nil {
		return out, fmt.Errorf("invalid creation time: %w", err)
	}
	if out.LastModificationTime, err = ParseTimestamp(ti.LastModification); err != nil {
		return out, fmt.Errorf("invalid last modification time: %w", err)
	}
	if out.LastAccessTime, err = ParseTimestamp(ti.LastAccess); err != nil {
		return out, fmt.Errorf("invalid last access time: %w", err)
	}
	if out.ExpiryTime, err = ParseTimestamp(ti.Expiry); err != nil {
		return out, fmt.Errorf("invalid expiry time: %w", err)
	}
	if out.LocationChanged, err = ParseTimestamp(ti.LocationChanged); err != nil {
		return out, fmt.Errorf("invalid location changed time: %w", err)
	}
	out.Expires = ti.Expires
	out.UsageCount = ti.UsageCount
	return out, nil
}

// attachGroup wires a restored child under its parent without disturbing
// the restored timestamps.
func attachGroup(g, parent *domain.Group) {
	gti := g.TimeInfo()
	pti := parent.TimeInfo()
	g.SetUpdateTimeInfo(false)
	parent.SetUpdateTimeInfo(false)
	g.SetParent(parent)
	g.SetTimeInfo(gti)
	parent.SetTimeInfo(pti)
	g.SetUpdateTimeInfo(true)
	parent.SetUpdateTimeInfo(true)
}

func attachEntry(e *domain.Entry, parent *domain.Group) {
	eti := e.TimeInfo()
	pti := parent.TimeInfo()
	e.SetUpdateTimeInfo(false)
	parent.SetUpdateTimeInfo(false)
	e.SetGroup(parent)
	e.SetTimeInfo(eti)
	parent.SetTimeInfo(pti)
	e.SetUpdateTimeInfo(true)
	parent.SetUpdateTimeInfo(true)
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
