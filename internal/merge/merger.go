// Package merge implements the three-way merge engine reconciling a source
// vault database into a target that shares common ancestry. Reconciliation
// is UUID-anchored: an object's identity is its UUID, never its path or
// name. One run executes three passes in order: the structural pass walks
// the source tree creating, relocating and resolving objects; the deletion
// pass reconciles the unioned tombstone sets against local edits; the
// metadata pass imports referenced custom icons the target lacks. The order
// is load-bearing: objects may be created before they are deleted again.
package merge

import (
	"errors"
	"fmt"

	"github.com/lherron/vaultq/internal/domain"
)

// Context pairs the databases, their roots, and the current group pair the
// structural pass is reconciling. Recursion produces child contexts that
// keep the root pair constant and advance the current pair.
type Context struct {
	SourceDB    *domain.Database
	TargetDB    *domain.Database
	SourceRoot  *domain.Group
	TargetRoot  *domain.Group
	SourceGroup *domain.Group
	TargetGroup *domain.Group
}

// Merger drives a target database toward convergence with a source. The
// source is never mutated; objects cloned from it become the target's
// exclusive property.
type Merger struct {
	ctx       Context
	forced    domain.MergeMode
	hasForced bool
	changes   ChangeList
}

// New creates a merger over two whole databases, rooted at their root
// groups.
func New(sourceDB, targetDB *domain.Database) (*Merger, error) {
	if sourceDB == nil || targetDB == nil {
		return nil, errors.New("merge: source and target databases are required")
	}
	return &Merger{ctx: Context{
		SourceDB:    sourceDB,
		TargetDB:    targetDB,
		SourceRoot:  sourceDB.Root(),
		TargetRoot:  targetDB.Root(),
		SourceGroup: sourceDB.Root(),
		TargetGroup: targetDB.Root(),
	}}, nil
}

// NewForGroups creates a merger over two subtrees. The subtrees' databases
// supply tombstones, custom icons and the history truncation limit.
func NewForGroups(sourceGroup, targetGroup *domain.Group) (*Merger, error) {
	if sourceGroup == nil || targetGroup == nil {
		return nil, errors.New("merge: source and target groups are required")
	}
	sourceDB := sourceGroup.Database()
	targetDB := targetGroup.Database()
	if sourceDB == nil || targetDB == nil {
		return nil, errors.New("merge: groups must be attached to a database")
	}
	return &Merger{ctx: Context{
		SourceDB:    sourceDB,
		TargetDB:    targetDB,
		SourceRoot:  sourceDB.Root(),
		TargetRoot:  targetDB.Root(),
		SourceGroup: sourceGroup,
		TargetGroup: targetGroup,
	}}, nil
}

// SetForcedMode overrides the per-group merge mode lookup for this run.
func (m *Merger) SetForcedMode(mode domain.MergeMode) {
	m.forced = mode
	m.hasForced = true
}

// ResetForcedMode restores the per-group merge mode lookup.
func (m *Merger) ResetForcedMode() {
	m.forced = domain.ModeInherit
	m.hasForced = false
}

// Merge runs the three passes and returns true iff any change was applied.
// When true, the target is marked modified. A second run with no
// intervening edits is a no-op for modes other than keep_both.
func (m *Merger) Merge() bool {
	m.changes = nil
	if m.ctx.SourceDB == nil || m.ctx.TargetDB == nil {
		return false
	}

	changes := m.mergeGroup(m.ctx)
	changes = append(changes, m.mergeDeletions(m.ctx)...)
	changes = append(changes, m.mergeMetadata(m.ctx)...)
	m.changes = changes

	if len(changes) > 0 {
		m.ctx.TargetDB.MarkAsModified()
		return true
	}
	return false
}

// Changes returns the edits applied by the last Merge call.
func (m *Merger) Changes() ChangeList {
	return m.changes
}

// mergeGroup is the structural pass over one group pair. Entries are
// reconciled before recursing so that an entry moved across groups is
// relocated once, by the first pass that encounters it under the new
// parent.
func (m *Merger) mergeGroup(ctx Context) ChangeList {
	var changes ChangeList

	for _, sourceEntry := range ctx.SourceGroup.Entries() {
		targetEntry := ctx.TargetRoot.FindEntry(sourceEntry.UUID())
		if targetEntry == nil {
			// This entry does not exist at all. Create it.
			changes = append(changes, Change{
				Kind:    ChangeCreated,
				UUID:    sourceEntry.UUID(),
				Name:    sourceEntry.Title(),
				Message: fmt.Sprintf("Creating missing %s [%s]", sourceEntry.Title(), sourceEntry.UUID()),
			})
			targetEntry = sourceEntry.Clone(domain.CloneIncludeHistory)
			m.moveEntry(targetEntry, ctx.TargetGroup)
		} else {
			locationChanged := targetEntry.TimeInfo().LocationChanged.Before(sourceEntry.TimeInfo().LocationChanged)
			if locationChanged && targetEntry.Group() != ctx.TargetGroup {
				changes = append(changes, Change{
					Kind:    ChangeRelocated,
					UUID:    sourceEntry.UUID(),
					Name:    sourceEntry.Title(),
					Message: fmt.Sprintf("Relocating %s [%s]", sourceEntry.Title(), sourceEntry.UUID()),
				})
				m.moveEntry(targetEntry, ctx.TargetGroup)
				ti := targetEntry.TimeInfo()
				ti.LocationChanged = sourceEntry.TimeInfo().LocationChanged
				targetEntry.SetTimeInfo(ti)
			}
			changes = append(changes, m.resolveEntryConflict(ctx, sourceEntry, targetEntry)...)
		}
	}

	for _, sourceChild := range ctx.SourceGroup.Children() {
		targetChild := ctx.TargetRoot.FindGroup(sourceChild.UUID())
		if targetChild == nil {
			changes = append(changes, Change{
				Kind:    ChangeCreated,
				UUID:    sourceChild.UUID(),
				Name:    sourceChild.Name(),
				Message: fmt.Sprintf("Creating missing %s [%s]", sourceChild.Name(), sourceChild.UUID()),
			})
			targetChild = sourceChild.CloneShell()
			m.moveGroup(targetChild, ctx.TargetGroup)
			ti := targetChild.TimeInfo()
			ti.LocationChanged = sourceChild.TimeInfo().LocationChanged
			targetChild.SetTimeInfo(ti)
		} else {
			locationChanged := targetChild.TimeInfo().LocationChanged.Before(sourceChild.TimeInfo().LocationChanged)
			if locationChanged && targetChild.Parent() != ctx.TargetGroup {
				changes = append(changes, Change{
					Kind:    ChangeRelocated,
					UUID:    sourceChild.UUID(),
					Name:    sourceChild.Name(),
					Message: fmt.Sprintf("Relocating %s [%s]", sourceChild.Name(), sourceChild.UUID()),
				})
				m.moveGroup(targetChild, ctx.TargetGroup)
				ti := targetChild.TimeInfo()
				ti.LocationChanged = sourceChild.TimeInfo().LocationChanged
				targetChild.SetTimeInfo(ti)
			}
			changes = append(changes, m.resolveGroupConflict(ctx, sourceChild, targetChild)...)
		}

		subcontext := Context{
			SourceDB:    ctx.SourceDB,
			TargetDB:    ctx.TargetDB,
			SourceRoot:  ctx.SourceRoot,
			TargetRoot:  ctx.TargetRoot,
			SourceGroup: sourceChild,
			TargetGroup: targetChild,
		}
		changes = append(changes, m.mergeGroup(subcontext)...)
	}
	return changes
}

// resolveGroupConflict applies the implicit newer-wins rule for groups: a
// group's identity is its UUID, not its content, so keep_both and
// synchronize never apply. Content fields are copied with timestamp
// bookkeeping suspended, and the target adopts the source's modification
// time instead of the current time.
func (m *Merger) resolveGroupConflict(ctx Context, sourceChild, targetChild *domain.Group) ChangeList {
	var changes ChangeList

	timeExisting := targetChild.TimeInfo().LastModificationTime
	timeOther := sourceChild.TimeInfo().LastModificationTime

	if timeExisting.Before(timeOther) {
		changes = append(changes, Change{
			Kind:    ChangeOverwritten,
			UUID:    sourceChild.UUID(),
			Name:    sourceChild.Name(),
			Message: fmt.Sprintf("Overwriting %s [%s]", sourceChild.Name(), sourceChild.UUID()),
		})
		restore := suspendTimeInfo(targetChild)
		targetChild.SetName(sourceChild.Name())
		targetChild.SetNotes(sourceChild.Notes())
		if sourceChild.IconNumber() == 0 {
			targetChild.SetIconUUID(sourceChild.IconUUID())
		} else {
			targetChild.SetIconNumber(sourceChild.IconNumber())
		}
		ti := targetChild.TimeInfo()
		ti.ExpiryTime = sourceChild.TimeInfo().ExpiryTime
		ti.Expires = sourceChild.TimeInfo().Expires
		// Adopt the source's modification time so repeated merges converge
		// instead of re-reporting the same overwrite.
		ti.LastModificationTime = sourceChild.TimeInfo().LastModificationTime
		targetChild.SetTimeInfo(ti)
		restore()
	}
	return changes
}

// resolveEntryConflict dispatches two entries sharing a UUID to the
// effective merge mode: the forced mode if one is configured, otherwise the
// current target group's. Modification times are compared at serialized
// precision so that millisecond drift never causes a spurious conflict.
func (m *Merger) resolveEntryConflict(ctx Context, sourceEntry, targetEntry *domain.Entry) ChangeList {
	var changes ChangeList

	timeTarget := clockSerialized(targetEntry.TimeInfo().LastModificationTime)
	timeSource := clockSerialized(sourceEntry.TimeInfo().LastModificationTime)

	mode := m.forced
	if !m.hasForced {
		mode = ctx.TargetGroup.EffectiveMergeMode()
	}

	switch mode {
	case domain.ModeKeepBoth:
		// One side is newer: keep both, cloning the source under a fresh
		// UUID and marking the older of the two.
		if timeTarget.After(timeSource) {
			cloned := sourceEntry.Clone(domain.CloneNewUUID | domain.CloneIncludeHistory)
			m.moveEntry(cloned, ctx.TargetGroup)
			m.markOlderEntry(cloned)
			changes = append(changes, Change{
				Kind:    ChangeBackupAdded,
				UUID:    sourceEntry.UUID(),
				Name:    sourceEntry.Title(),
				Message: fmt.Sprintf("Adding backup for older source %s [%s]", sourceEntry.Title(), sourceEntry.UUID()),
			})
		} else if timeTarget.Before(timeSource) {
			cloned := sourceEntry.Clone(domain.CloneNewUUID | domain.CloneIncludeHistory)
			m.moveEntry(cloned, ctx.TargetGroup)
			m.markOlderEntry(targetEntry)
			changes = append(changes, Change{
				Kind:    ChangeBackupAdded,
				UUID:    targetEntry.UUID(),
				Name:    targetEntry.Title(),
				Message: fmt.Sprintf("Adding backup for older target %s [%s]", targetEntry.Title(), targetEntry.UUID()),
			})
		}

	case domain.ModeKeepNewer:
		if timeTarget.Before(timeSource) {
			// Only if the source entry is newer, replace the existing one.
			cloned := sourceEntry.Clone(domain.CloneIncludeHistory)
			currentGroup := targetEntry.Group()
			m.moveEntry(cloned, currentGroup)
			m.eraseEntry(targetEntry)
			changes = append(changes, Change{
				Kind:    ChangeOverwritten,
				UUID:    cloned.UUID(),
				Name:    cloned.Title(),
				Message: fmt.Sprintf("Overwriting %s [%s]", cloned.Title(), cloned.UUID()),
			})
		}

	case domain.ModeKeepExisting:
		// Never touch an existing target entry.

	case domain.ModeSynchronize:
		if timeTarget.Before(timeSource) {
			currentGroup := targetEntry.Group()
			cloned := sourceEntry.Clone(domain.CloneIncludeHistory)
			changes = append(changes, Change{
				Kind:    ChangeSynchronized,
				UUID:    targetEntry.UUID(),
				Name:    targetEntry.Title(),
				Message: fmt.Sprintf("Synchronizing from newer source %s [%s]", targetEntry.Title(), targetEntry.UUID()),
			})
			m.moveEntry(cloned, currentGroup)
			m.mergeHistory(targetEntry, cloned)
			m.eraseEntry(targetEntry)
		} else {
			changed := m.mergeHistory(sourceEntry, targetEntry)
			if changed {
				changes = append(changes, Change{
					Kind:    ChangeSynchronized,
					UUID:    targetEntry.UUID(),
					Name:    targetEntry.Title(),
					Message: fmt.Sprintf("Synchronizing from older source %s [%s]", targetEntry.Title(), targetEntry.UUID()),
				})
			}
		}
	}
	return changes
}

// markOlderEntry tags the older of two keep_both entries so users can tell
// the copies apart.
func (m *Merger) markOlderEntry(entry *domain.Entry) {
	entry.SetAttribute(domain.AttrMerged,
		fmt.Sprintf("older entry merged from database %q", m.ctx.TargetDB.Name()))
}

// moveEntry attaches an entry under targetGroup with timestamp bookkeeping
// suspended on the affected objects: the merge engine is authoritative
// about TimeInfo.
func (m *Merger) moveEntry(entry *domain.Entry, targetGroup *domain.Group) {
	if entry.Group() == targetGroup {
		return
	}
	holders := make([]timeInfoHolder, 0, 3)
	if g := entry.Group(); g != nil {
		holders = append(holders, g)
	}
	if targetGroup != nil {
		holders = append(holders, targetGroup)
	}
	holders = append(holders, entry)
	restore := suspendTimeInfo(holders...)
	defer restore()
	entry.SetGroup(targetGroup)
}

// moveGroup attaches a group under targetGroup with timestamp bookkeeping
// suspended, like moveEntry.
func (m *Merger) moveGroup(group *domain.Group, targetGroup *domain.Group) {
	if group.Parent() == targetGroup {
		return
	}
	holders := make([]timeInfoHolder, 0, 3)
	if p := group.Parent(); p != nil {
		holders = append(holders, p)
	}
	if targetGroup != nil {
		holders = append(holders, targetGroup)
	}
	holders = append(holders, group)
	restore := suspendTimeInfo(holders...)
	defer restore()
	group.SetParent(targetGroup)
}

// eraseEntry removes an entry without letting the removal register a
// tombstone: the engine owns the tombstone set for the whole run.
func (m *Merger) eraseEntry(entry *domain.Entry) {
	db := m.ctx.TargetDB
	deletions := db.DeletedObjects()
	parent := entry.Group()
	if parent != nil {
		restore := suspendTimeInfo(parent)
		defer restore()
	}
	db.RemoveEntry(entry)
	db.SetDeletedObjects(deletions)
}

// eraseGroup removes a group without letting the removal register
// tombstones.
func (m *Merger) eraseGroup(group *domain.Group) {
	db := m.ctx.TargetDB
	deletions := db.DeletedObjects()
	parent := group.Parent()
	if parent != nil {
		restore := suspendTimeInfo(parent)
		defer restore()
	}
	db.RemoveGroup(group)
	db.SetDeletedObjects(deletions)
}

// timeInfoHolder is anything carrying a suspendable update-timeinfo flag.
type timeInfoHolder interface {
	CanUpdateTimeInfo() bool
	SetUpdateTimeInfo(bool)
}

// suspendTimeInfo disables implicit timestamp bookkeeping on the holders and
// returns a restore function. Callers must invoke restore on every exit
// path.
func suspendTimeInfo(holders ...timeInfoHolder) (restore func()) {
	saved := make([]bool, len(holders))
	for i, h := range holders {
		saved[i] = h.CanUpdateTimeInfo()
		h.SetUpdateTimeInfo(false)
	}
	return func() {
		for i, h := range holders {
			h.SetUpdateTimeInfo(saved[i])
		}
	}
}
