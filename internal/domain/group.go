package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lherron/vaultq/internal/clock"
)

// Group is a named node in the vault tree. A group owns an ordered list of
// child groups and an ordered list of entries; every non-root group has
// exactly one parent in the same database.
type Group struct {
	id             uuid.UUID
	name           string
	notes          string
	iconNumber     int
	iconUUID       uuid.UUID
	timeInfo       TimeInfo
	mergeMode      MergeMode
	parent         *Group
	db             *Database
	children       []*Group
	entries        []*Entry
	updateTimeInfo bool
}

// NewGroup creates a detached group with a fresh UUID.
func NewGroup(name string) *Group {
	return &Group{
		id:             uuid.New(),
		name:           name,
		timeInfo:       NewTimeInfo(),
		mergeMode:      ModeInherit,
		updateTimeInfo: true,
	}
}

// UUID returns the group's identity.
func (g *Group) UUID() uuid.UUID {
	return g.id
}

// SetUUID overrides the group's identity. Only loaders should call this.
func (g *Group) SetUUID(id uuid.UUID) {
	g.id = id
}

// Name returns the group name.
func (g *Group) Name() string {
	return g.name
}

// SetName renames the group and touches the modification time.
func (g *Group) SetName(name string) {
	if g.name == name {
		return
	}
	g.name = name
	g.touch()
}

// Notes returns the group notes.
func (g *Group) Notes() string {
	return g.notes
}

// SetNotes updates the notes and touches the modification time.
func (g *Group) SetNotes(notes string) {
	if g.notes == notes {
		return
	}
	g.notes = notes
	g.touch()
}

// IconNumber returns the built-in icon index, or 0 when a custom icon UUID
// is set. The two icon kinds are mutually exclusive.
func (g *Group) IconNumber() int {
	return g.iconNumber
}

// IconUUID returns the custom icon reference, or uuid.Nil.
func (g *Group) IconUUID() uuid.UUID {
	return g.iconUUID
}

// SetIconNumber selects a built-in icon and clears any custom icon.
func (g *Group) SetIconNumber(n int) {
	if g.iconNumber == n && g.iconUUID == uuid.Nil {
		return
	}
	g.iconNumber = n
	g.iconUUID = uuid.Nil
	g.touch()
}

// SetIconUUID selects a custom icon and clears the built-in index.
func (g *Group) SetIconUUID(id uuid.UUID) {
	if g.iconUUID == id && g.iconNumber == 0 {
		return
	}
	g.iconNumber = 0
	g.iconUUID = id
	g.touch()
}

// ExpiryTime returns the expiry timestamp.
func (g *Group) ExpiryTime() time.Time {
	return g.timeInfo.ExpiryTime
}

// SetExpiryTime updates the expiry timestamp.
func (g *Group) SetExpiryTime(t time.Time) {
	if g.timeInfo.ExpiryTime.Equal(t) {
		return
	}
	g.timeInfo.ExpiryTime = t
	g.touch()
}

// MergeMode returns the configured (possibly inherit) merge mode.
func (g *Group) MergeMode() MergeMode {
	return g.mergeMode
}

// SetMergeMode configures the conflict policy for the subtree.
func (g *Group) SetMergeMode(m MergeMode) {
	g.mergeMode = m
}

// EffectiveMergeMode resolves inherit up the parent chain. The root's
// effective mode defaults to keep_newer.
func (g *Group) EffectiveMergeMode() MergeMode {
	if g.mergeMode != ModeInherit {
		return g.mergeMode
	}
	if g.parent != nil {
		return g.parent.EffectiveMergeMode()
	}
	return ModeKeepNewer
}

// TimeInfo returns the group's timestamp bundle.
func (g *Group) TimeInfo() TimeInfo {
	return g.timeInfo
}

// SetTimeInfo replaces the timestamp bundle without touching anything else.
func (g *Group) SetTimeInfo(ti TimeInfo) {
	g.timeInfo = ti
}

// CanUpdateTimeInfo reports whether mutations touch the modification time.
func (g *Group) CanUpdateTimeInfo() bool {
	return g.updateTimeInfo
}

// SetUpdateTimeInfo enables or disables implicit timestamp bookkeeping.
func (g *Group) SetUpdateTimeInfo(v bool) {
	g.updateTimeInfo = v
}

func (g *Group) touch() {
	if !g.updateTimeInfo {
		return
	}
	now := clock.Now()
	g.timeInfo.LastModificationTime = now
	g.timeInfo.LastAccessTime = now
}

// Parent returns the parent group, or nil for the root.
func (g *Group) Parent() *Group {
	return g.parent
}

// Database returns the database owning this group's tree.
func (g *Group) Database() *Database {
	if g.db != nil {
		return g.db
	}
	if g.parent != nil {
		return g.parent.Database()
	}
	return nil
}

// SetParent attaches the group under a new parent, detaching it from its
// current one first. Location bookkeeping follows the update-timeinfo flag.
func (g *Group) SetParent(parent *Group) {
	if g.parent == parent {
		return
	}
	if g.parent != nil {
		g.parent.removeChild(g)
	}
	if parent != nil {
		parent.addChild(g)
	}
	g.parent = parent
	if g.updateTimeInfo {
		g.timeInfo.LocationChanged = clock.Now()
	}
}

// Children returns the ordered child groups. The slice is a copy.
func (g *Group) Children() []*Group {
	children := make([]*Group, len(g.children))
	copy(children, g.children)
	return children
}

// Entries returns the ordered entries. The slice is a copy.
func (g *Group) Entries() []*Entry {
	entries := make([]*Entry, len(g.entries))
	copy(entries, g.entries)
	return entries
}

func (g *Group) addEntry(e *Entry) {
	g.entries = append(g.entries, e)
	g.touch()
}

func (g *Group) removeEntry(e *Entry) {
	for i, other := range g.entries {
		if other == e {
			g.entries = append(g.entries[:i], g.entries[i+1:]...)
			g.touch()
			return
		}
	}
}

func (g *Group) addChild(child *Group) {
	g.children = append(g.children, child)
	g.touch()
}

func (g *Group) removeChild(child *Group) {
	for i, other := range g.children {
		if other == child {
			g.children = append(g.children[:i], g.children[i+1:]...)
			g.touch()
			return
		}
	}
}

// FindEntry searches the subtree for an entry by UUID.
func (g *Group) FindEntry(id uuid.UUID) *Entry {
	for _, e := range g.entries {
		if e.UUID() == id {
			return e
		}
	}
	for _, child := range g.children {
		if found := child.FindEntry(id); found != nil {
			return found
		}
	}
	return nil
}

// FindGroup searches the subtree, including g itself, for a group by UUID.
func (g *Group) FindGroup(id uuid.UUID) *Group {
	if g.UUID() == id {
		return g
	}
	for _, child := range g.children {
		if found := child.FindGroup(id); found != nil {
			return found
		}
	}
	return nil
}

// FindChildByName returns the first direct child with the given name.
func (g *Group) FindChildByName(name string) *Group {
	for _, child := range g.children {
		if child.Name() == name {
			return child
		}
	}
	return nil
}

// EntriesRecursive returns every entry in the subtree, depth-first.
func (g *Group) EntriesRecursive() []*Entry {
	entries := make([]*Entry, 0, len(g.entries))
	entries = append(entries, g.entries...)
	for _, child := range g.children {
		entries = append(entries, child.EntriesRecursive()...)
	}
	return entries
}

// GroupsRecursive returns every group in the subtree, excluding g itself.
func (g *Group) GroupsRecursive() []*Group {
	var groups []*Group
	for _, child := range g.children {
		groups = append(groups, child)
		groups = append(groups, child.GroupsRecursive()...)
	}
	return groups
}

// IsAncestorOf reports whether g is on other's parent chain.
func (g *Group) IsAncestorOf(other *Group) bool {
	for p := other.Parent(); p != nil; p = p.Parent() {
		if p == g {
			return true
		}
	}
	return false
}

// CloneShell copies the group's identity and content without children or
// entries. Subsequent recursion populates descendants.
func (g *Group) CloneShell() *Group {
	return &Group{
		id:             g.id,
		name:           g.name,
		notes:          g.notes,
		iconNumber:     g.iconNumber,
		iconUUID:       g.iconUUID,
		timeInfo:       g.timeInfo,
		mergeMode:      g.mergeMode,
		updateTimeInfo: true,
	}
}

// CloneDeep copies the group with all descendants and entry histories.
func (g *Group) CloneDeep() *Group {
	clone := g.CloneShell()
	for _, e := range g.entries {
		ec := e.Clone(CloneIncludeHistory)
		ec.group = clone
		clone.entries = append(clone.entries, ec)
	}
	for _, child := range g.children {
		cc := child.CloneDeep()
		cc.parent = clone
		clone.children = append(clone.children, cc)
	}
	return clone
}
