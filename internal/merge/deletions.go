package merge

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/lherron/vaultq/internal/domain"
)

// mergeDeletions reconciles the unioned tombstone sets against the live
// target tree. A tombstone only deletes an object whose last modification
// does not post-date it; an object edited after the peer's tombstone
// survives and the tombstone is dropped (reincarnation). The final set
// replaces the target's tombstones atomically at the end of the pass.
func (m *Merger) mergeDeletions(ctx Context) ChangeList {
	var changes ChangeList
	targetDeletions := ctx.TargetDB.DeletedObjects()
	sourceDeletions := ctx.SourceDB.DeletedObjects()

	var deletions []domain.DeletedObject
	merged := make(map[uuid.UUID]domain.DeletedObject)
	var entries []*domain.Entry
	var groups []*domain.Group
	var dead []uuid.UUID
	for _, object := range append(targetDeletions, sourceDeletions...) {
		if existing, ok := merged[object.UUID]; ok {
			// Keep the earliest tombstone: it is the one nearest to the
			// actual delete event.
			if existing.DeletionTime.After(object.DeletionTime) {
				merged[object.UUID] = object
			}
			continue
		}
		merged[object.UUID] = object

		if entry := ctx.TargetRoot.FindEntry(object.UUID); entry != nil {
			entries = append(entries, entry)
			continue
		}
		if group := ctx.TargetRoot.FindGroup(object.UUID); group != nil {
			groups = append(groups, group)
			continue
		}
		dead = append(dead, object.UUID)
	}
	// Resolve dead tombstones only after the whole union settled on the
	// earliest time per UUID.
	for _, id := range dead {
		deletions = append(deletions, merged[id])
	}

	for len(entries) > 0 {
		entry := entries[0]
		entries = entries[1:]
		object := merged[entry.UUID()]
		if entry.TimeInfo().LastModificationTime.After(object.DeletionTime) {
			// Keep the entry: it was changed after the deletion date.
			continue
		}
		deletions = append(deletions, object)
		changes = append(changes, deletionChange(entry.UUID(), entry.Title(), entry.Group() != nil))
		m.eraseEntry(entry)
	}

	for len(groups) > 0 {
		group := groups[0]
		groups = groups[1:]
		if queueHasDescendant(groups, group) {
			// All descendants must be settled before we can tell whether
			// this group may be removed.
			groups = append(groups, group)
			continue
		}
		object := merged[group.UUID()]
		if group.TimeInfo().LastModificationTime.After(object.DeletionTime) {
			continue
		}
		if len(group.EntriesRecursive()) > 0 || len(group.GroupsRecursive()) > 0 {
			// Keep the group: it still contains undeleted content.
			continue
		}
		deletions = append(deletions, object)
		changes = append(changes, deletionChange(group.UUID(), group.Name(), group.Parent() != nil))
		m.eraseGroup(group)
	}

	if !deletedObjectsEqual(deletions, ctx.TargetDB.DeletedObjects()) {
		changes = append(changes, Change{
			Kind:    ChangeTombstones,
			Message: "Changed deleted objects",
		})
	}
	ctx.TargetDB.SetDeletedObjects(deletions)
	return changes
}

func deletionChange(id uuid.UUID, name string, attached bool) Change {
	kind := "orphan"
	if attached {
		kind = "child"
	}
	return Change{
		Kind:    ChangeDeleted,
		UUID:    id,
		Name:    name,
		Message: fmt.Sprintf("Deleting %s %s [%s]", kind, name, id),
	}
}

func queueHasDescendant(queue []*domain.Group, group *domain.Group) bool {
	for _, other := range queue {
		if group.IsAncestorOf(other) {
			return true
		}
	}
	return false
}

func deletedObjectsEqual(a, b []domain.DeletedObject) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].UUID != b[i].UUID || !a[i].DeletionTime.Equal(b[i].DeletionTime) {
			return false
		}
	}
	return true
}
