package domain

import (
	"sort"

	"github.com/google/uuid"
	"github.com/lherron/vaultq/internal/clock"
)

// Well-known attribute keys.
const (
	AttrTitle    = "Title"
	AttrUsername = "UserName"
	AttrPassword = "Password"
	AttrURL      = "URL"
	AttrNotes    = "Notes"
	// AttrMerged marks the older of two entries kept side by side by a
	// keep_both merge.
	AttrMerged = "merged"
)

// Entry is a leaf carrying credential fields as a string attribute map.
// An attached entry has exactly one parent group; history items are
// parent-less entry snapshots stored oldest-first.
type Entry struct {
	id             uuid.UUID
	attributes     map[string]string
	timeInfo       TimeInfo
	history        []*Entry
	group          *Group
	updateTimeInfo bool
	backup         *Entry
}

// NewEntry creates a detached entry with a fresh UUID.
func NewEntry() *Entry {
	return &Entry{
		id:             uuid.New(),
		attributes:     make(map[string]string),
		timeInfo:       NewTimeInfo(),
		updateTimeInfo: true,
	}
}

// UUID returns the entry's identity.
func (e *Entry) UUID() uuid.UUID {
	return e.id
}

// SetUUID overrides the entry's identity. Only loaders should call this.
func (e *Entry) SetUUID(id uuid.UUID) {
	e.id = id
}

// Group returns the parent group, or nil for detached and history entries.
func (e *Entry) Group() *Group {
	return e.group
}

// Database returns the database owning the entry via its parent chain.
func (e *Entry) Database() *Database {
	if e.group == nil {
		return nil
	}
	return e.group.Database()
}

// TimeInfo returns the entry's timestamp bundle.
func (e *Entry) TimeInfo() TimeInfo {
	return e.timeInfo
}

// SetTimeInfo replaces the timestamp bundle without touching anything else.
func (e *Entry) SetTimeInfo(ti TimeInfo) {
	e.timeInfo = ti
}

// CanUpdateTimeInfo reports whether mutations touch the modification time.
func (e *Entry) CanUpdateTimeInfo() bool {
	return e.updateTimeInfo
}

// SetUpdateTimeInfo enables or disables implicit timestamp bookkeeping.
func (e *Entry) SetUpdateTimeInfo(v bool) {
	e.updateTimeInfo = v
}

func (e *Entry) touch() {
	if !e.updateTimeInfo {
		return
	}
	now := clock.Now()
	e.timeInfo.LastModificationTime = now
	e.timeInfo.LastAccessTime = now
}

func (e *Entry) touchLocation() {
	if !e.updateTimeInfo {
		return
	}
	e.timeInfo.LocationChanged = clock.Now()
}

// Attribute returns the value for a key, or the empty string.
func (e *Entry) Attribute(key string) string {
	return e.attributes[key]
}

// HasAttribute reports whether the key is present.
func (e *Entry) HasAttribute(key string) bool {
	_, ok := e.attributes[key]
	return ok
}

// SetAttribute sets a credential field and touches the modification time.
func (e *Entry) SetAttribute(key, value string) {
	if v, ok := e.attributes[key]; ok && v == value {
		return
	}
	e.attributes[key] = value
	e.touch()
}

// AttributeKeys returns the attribute keys in sorted order.
func (e *Entry) AttributeKeys() []string {
	keys := make([]string, 0, len(e.attributes))
	for k := range e.attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Title returns the Title attribute.
func (e *Entry) Title() string {
	return e.attributes[AttrTitle]
}

// SetTitle sets the Title attribute.
func (e *Entry) SetTitle(title string) {
	e.SetAttribute(AttrTitle, title)
}

// Password returns the Password attribute.
func (e *Entry) Password() string {
	return e.attributes[AttrPassword]
}

// SetPassword sets the Password attribute.
func (e *Entry) SetPassword(password string) {
	e.SetAttribute(AttrPassword, password)
}

// Notes returns the Notes attribute.
func (e *Entry) Notes() string {
	return e.attributes[AttrNotes]
}

// SetNotes sets the Notes attribute.
func (e *Entry) SetNotes(notes string) {
	e.SetAttribute(AttrNotes, notes)
}

// SetGroup attaches the entry to a group, detaching it from its current
// parent first. Location bookkeeping follows the update-timeinfo flag.
func (e *Entry) SetGroup(g *Group) {
	if e.group == g {
		return
	}
	if e.group != nil {
		e.group.removeEntry(e)
	}
	if g != nil {
		g.addEntry(e)
	}
	e.group = g
	e.touchLocation()
}

// History returns the history items oldest-first. The returned slice is a
// copy; the items are not.
func (e *Entry) History() []*Entry {
	items := make([]*Entry, len(e.history))
	copy(items, e.history)
	return items
}

// AddHistoryItem appends a parent-less snapshot to the history.
func (e *Entry) AddHistoryItem(item *Entry) {
	if item.group != nil {
		panic("domain: history item must not have a parent group")
	}
	e.history = append(e.history, item)
}

// RemoveAllHistory drops every history item.
func (e *Entry) RemoveAllHistory() {
	e.history = nil
}

// TruncateHistory drops the oldest items until at most maxItems remain.
// A negative maxItems means unlimited.
func (e *Entry) TruncateHistory(maxItems int) {
	if maxItems < 0 {
		return
	}
	if excess := len(e.history) - maxItems; excess > 0 {
		e.history = append([]*Entry(nil), e.history[excess:]...)
	}
}

// BeginUpdate snapshots the entry so EndUpdate can archive the pre-edit
// revision into history.
func (e *Entry) BeginUpdate() {
	e.backup = e.Clone(CloneNoFlags)
}

// EndUpdate archives the BeginUpdate snapshot as a history item if the entry
// changed, then applies the database history truncation policy. Returns true
// when a revision was recorded.
func (e *Entry) EndUpdate() bool {
	backup := e.backup
	e.backup = nil
	if backup == nil {
		return false
	}
	if e.EqualsIgnoring(backup, CompareIgnoreMilliseconds|CompareIgnoreHistory|CompareIgnoreLocation|CompareIgnoreStatistics) {
		return false
	}
	e.AddHistoryItem(backup)
	if db := e.Database(); db != nil {
		e.TruncateHistory(db.HistoryMaxItems())
	}
	e.touch()
	return true
}

// Clone returns a copy of the entry according to the flags. The clone is
// always detached and keeps the original timestamps.
func (e *Entry) Clone(flags CloneFlags) *Entry {
	clone := &Entry{
		id:             e.id,
		attributes:     make(map[string]string, len(e.attributes)),
		timeInfo:       e.timeInfo,
		updateTimeInfo: true,
	}
	if flags&CloneNewUUID != 0 {
		clone.id = uuid.New()
	}
	for k, v := range e.attributes {
		clone.attributes[k] = v
	}
	if flags&CloneIncludeHistory != 0 {
		clone.history = make([]*Entry, 0, len(e.history))
		for _, item := range e.history {
			clone.history = append(clone.history, item.Clone(CloneNoFlags))
		}
	}
	return clone
}

// EqualsIgnoring compares two entries under the given compare options.
func (e *Entry) EqualsIgnoring(other *Entry, options CompareOptions) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.id != other.id {
		return false
	}
	if len(e.attributes) != len(other.attributes) {
		return false
	}
	for k, v := range e.attributes {
		ov, ok := other.attributes[k]
		if !ok || ov != v {
			return false
		}
	}
	if !e.timeInfo.Equals(other.timeInfo, options) {
		return false
	}
	if options&CompareIgnoreHistory == 0 {
		if len(e.history) != len(other.history) {
			return false
		}
		for i := range e.history {
			if !e.history[i].EqualsIgnoring(other.history[i], options) {
				return false
			}
		}
	}
	return true
}
