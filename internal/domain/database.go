package domain

import (
	"sort"

	"github.com/google/uuid"
	"github.com/lherron/vaultq/internal/clock"
)

// DefaultHistoryMaxItems is the default per-entry history truncation limit.
const DefaultHistoryMaxItems = 10

// Database is a fully-materialized vault snapshot: one root group, the
// tombstone set, and the database-scoped custom icon table.
type Database struct {
	name            string
	historyMaxItems int
	root            *Group
	deletedObjects  []DeletedObject
	customIcons     map[uuid.UUID][]byte
	modified        bool
}

// New creates an empty database with a root group.
func New(name string) *Database {
	d := &Database{
		name:            name,
		historyMaxItems: DefaultHistoryMaxItems,
		customIcons:     make(map[uuid.UUID][]byte),
	}
	root := NewGroup("Root")
	root.db = d
	d.root = root
	return d
}

// Name returns the database display name.
func (d *Database) Name() string {
	return d.name
}

// SetName updates the database display name.
func (d *Database) SetName(name string) {
	d.name = name
}

// HistoryMaxItems returns the history truncation limit. Negative means
// unlimited.
func (d *Database) HistoryMaxItems() int {
	return d.historyMaxItems
}

// SetHistoryMaxItems updates the history truncation limit.
func (d *Database) SetHistoryMaxItems(n int) {
	d.historyMaxItems = n
}

// Root returns the root group.
func (d *Database) Root() *Group {
	return d.root
}

// SetRoot replaces the root group. Only loaders should call this.
func (d *Database) SetRoot(root *Group) {
	if d.root != nil {
		d.root.db = nil
	}
	root.db = d
	d.root = root
}

// Modified reports whether the database changed since the last save or
// ResetModified.
func (d *Database) Modified() bool {
	return d.modified
}

// MarkAsModified flags the database as changed.
func (d *Database) MarkAsModified() {
	d.modified = true
}

// ResetModified clears the modified flag. Writers call this after a save.
func (d *Database) ResetModified() {
	d.modified = false
}

// DeletedObjects returns a copy of the tombstone set.
func (d *Database) DeletedObjects() []DeletedObject {
	objects := make([]DeletedObject, len(d.deletedObjects))
	copy(objects, d.deletedObjects)
	return objects
}

// SetDeletedObjects replaces the tombstone set wholesale.
func (d *Database) SetDeletedObjects(objects []DeletedObject) {
	d.deletedObjects = append([]DeletedObject(nil), objects...)
}

// AddDeletedObject records a tombstone for the UUID at the current time.
func (d *Database) AddDeletedObject(id uuid.UUID) {
	d.deletedObjects = append(d.deletedObjects, DeletedObject{UUID: id, DeletionTime: clock.Now()})
}

// ContainsDeletedObject reports whether the UUID has a tombstone.
func (d *Database) ContainsDeletedObject(id uuid.UUID) bool {
	for _, obj := range d.deletedObjects {
		if obj.UUID == id {
			return true
		}
	}
	return false
}

// RemoveEntry detaches an entry from its parent group and records a
// tombstone. The merge engine suppresses the tombstone by saving and
// restoring the set around this call.
func (d *Database) RemoveEntry(e *Entry) {
	e.SetGroup(nil)
	d.AddDeletedObject(e.UUID())
}

// RemoveGroup detaches a group, recursively removing its entries and child
// groups, and records tombstones for everything removed.
func (d *Database) RemoveGroup(g *Group) {
	for _, e := range g.Entries() {
		d.RemoveEntry(e)
	}
	for _, child := range g.Children() {
		d.RemoveGroup(child)
	}
	g.SetParent(nil)
	d.AddDeletedObject(g.UUID())
}

// CustomIcon returns the icon payload for a UUID, or nil.
func (d *Database) CustomIcon(id uuid.UUID) []byte {
	return d.customIcons[id]
}

// ContainsCustomIcon reports whether the icon table holds the UUID.
func (d *Database) ContainsCustomIcon(id uuid.UUID) bool {
	_, ok := d.customIcons[id]
	return ok
}

// AddCustomIcon stores an icon payload under its UUID.
func (d *Database) AddCustomIcon(id uuid.UUID, data []byte) {
	d.customIcons[id] = append([]byte(nil), data...)
}

// CustomIconUUIDs returns the icon UUIDs sorted for deterministic iteration.
func (d *Database) CustomIconUUIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(d.customIcons))
	for id := range d.customIcons {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Clone returns a deep copy of the database: same UUIDs, same timestamps,
// independent objects.
func (d *Database) Clone() *Database {
	clone := &Database{
		name:            d.name,
		historyMaxItems: d.historyMaxItems,
		customIcons:     make(map[uuid.UUID][]byte, len(d.customIcons)),
	}
	root := d.root.CloneDeep()
	root.db = clone
	clone.root = root
	clone.deletedObjects = append([]DeletedObject(nil), d.deletedObjects...)
	for id, data := range d.customIcons {
		clone.customIcons[id] = append([]byte(nil), data...)
	}
	return clone
}
