package merge

import (
	"testing"
	"time"

	"github.com/lherron/vaultq/internal/domain"
	"github.com/lherron/vaultq/internal/testutil"
)

// An entry deleted in the source disappears from the target when nothing
// touched it afterwards, and the tombstone is retained.
func TestDeletedEntry(t *testing.T) {
	c := testutil.NewClock(t, testutil.DefaultStart)
	target := testutil.TestVault(t, c, "target")
	source := target.Clone()

	c.Advance(time.Second)
	sourceEntry := testutil.FindEntryByTitle(source.Root(), "entry1")
	deletedUUID := sourceEntry.UUID()
	source.RemoveEntry(sourceEntry)

	m := mustMerger(t, source, target)
	if !m.Merge() {
		t.Fatal("expected deletion to propagate")
	}

	if testutil.FindEntryByTitle(target.Root(), "entry1") != nil {
		t.Error("expected entry1 to be deleted in target")
	}
	if !target.ContainsDeletedObject(deletedUUID) {
		t.Error("expected tombstone for the deleted entry")
	}
	if got := len(target.Root().EntriesRecursive()); got != 1 {
		t.Errorf("expected 1 remaining entry, got %d", got)
	}
}

// An entry edited in the target after the peer's tombstone survives the
// merge and the tombstone is dropped (reincarnation).
func TestDeletedRevertedEntry(t *testing.T) {
	c := testutil.NewClock(t, testutil.DefaultStart)
	target := testutil.TestVault(t, c, "target")
	source := target.Clone()

	c.Advance(time.Second)
	sourceEntry := testutil.FindEntryByTitle(source.Root(), "entry1")
	revivedUUID := sourceEntry.UUID()
	source.RemoveEntry(sourceEntry)

	c.Advance(time.Second)
	targetEntry := testutil.FindEntryByTitle(target.Root(), "entry1")
	targetEntry.BeginUpdate()
	targetEntry.SetPassword("edited after delete")
	targetEntry.EndUpdate()

	m := mustMerger(t, source, target)
	m.Merge()

	survivor := testutil.FindEntryByTitle(target.Root(), "entry1")
	if survivor == nil {
		t.Fatal("expected edited entry to survive the peer's tombstone")
	}
	if survivor.Password() != "edited after delete" {
		t.Errorf("unexpected surviving content %q", survivor.Password())
	}
	if target.ContainsDeletedObject(revivedUUID) {
		t.Error("expected the shadowed tombstone to be dropped")
	}
}

// Deleting a group deletes its empty subtree and keeps tombstones for every
// removed object.
func TestDeletedGroup(t *testing.T) {
	c := testutil.NewClock(t, testutil.DefaultStart)
	target := testutil.TestVault(t, c, "target")
	source := target.Clone()

	c.Advance(time.Second)
	sourceGroup := source.Root().FindChildByName("group1")
	groupUUID := sourceGroup.UUID()
	entryUUIDs := make(map[string]bool)
	for _, e := range sourceGroup.EntriesRecursive() {
		entryUUIDs[e.UUID().String()] = true
	}
	source.RemoveGroup(sourceGroup)

	m := mustMerger(t, source, target)
	if !m.Merge() {
		t.Fatal("expected group deletion to propagate")
	}

	if target.Root().FindGroup(groupUUID) != nil {
		t.Error("expected group1 to be deleted in target")
	}
	if !target.ContainsDeletedObject(groupUUID) {
		t.Error("expected tombstone for the deleted group")
	}
	for u := range entryUUIDs {
		found := false
		for _, obj := range target.DeletedObjects() {
			if obj.UUID.String() == u {
				found = true
			}
		}
		if !found {
			t.Errorf("expected tombstone for entry %s", u)
		}
	}
	if got := len(target.Root().EntriesRecursive()); got != 0 {
		t.Errorf("expected no entries left, got %d", got)
	}
}

// A deleted group whose child was edited after the tombstone survives as
// the container of that child; only the untouched sibling is deleted.
func TestDeletedRevertedGroup(t *testing.T) {
	c := testutil.NewClock(t, testutil.DefaultStart)
	target := testutil.TestVault(t, c, "target")
	source := target.Clone()

	c.Advance(time.Second)
	sourceGroup := source.Root().FindChildByName("group1")
	groupUUID := sourceGroup.UUID()
	entry2UUID := testutil.FindEntryByTitle(sourceGroup, "entry2").UUID()
	source.RemoveGroup(sourceGroup)

	c.Advance(time.Second)
	targetEntry := testutil.FindEntryByTitle(target.Root(), "entry1")
	targetEntry.BeginUpdate()
	targetEntry.SetPassword("revived")
	targetEntry.EndUpdate()

	m := mustMerger(t, source, target)
	if !m.Merge() {
		t.Fatal("expected merge to apply")
	}

	group := target.Root().FindGroup(groupUUID)
	if group == nil {
		t.Fatal("expected group1 to survive as container of the edited entry")
	}
	if testutil.FindEntryByTitle(group, "entry1") == nil {
		t.Error("expected edited entry1 to survive")
	}
	if testutil.FindEntryByTitle(group, "entry2") != nil {
		t.Error("expected untouched entry2 to be deleted")
	}
	if target.ContainsDeletedObject(groupUUID) {
		t.Error("expected the group tombstone to be dropped")
	}
	if !target.ContainsDeletedObject(entry2UUID) {
		t.Error("expected tombstone for deleted entry2")
	}
}

// Nested deleted groups settle deepest-first so parents see their final
// child set before the empty check.
func TestDeletedNestedGroups(t *testing.T) {
	c := testutil.NewClock(t, testutil.DefaultStart)
	target := testutil.TestVault(t, c, "target")

	c.Advance(time.Second)
	inner := domain.NewGroup("inner")
	inner.SetParent(target.Root().FindChildByName("group2"))
	source := target.Clone()

	c.Advance(time.Second)
	sourceOuter := source.Root().FindChildByName("group2")
	outerUUID := sourceOuter.UUID()
	innerUUID := inner.UUID()
	source.RemoveGroup(sourceOuter)

	m := mustMerger(t, source, target)
	if !m.Merge() {
		t.Fatal("expected nested deletion to propagate")
	}

	if target.Root().FindGroup(outerUUID) != nil {
		t.Error("expected outer group to be deleted")
	}
	if target.Root().FindGroup(innerUUID) != nil {
		t.Error("expected inner group to be deleted")
	}
	if !target.ContainsDeletedObject(outerUUID) || !target.ContainsDeletedObject(innerUUID) {
		t.Error("expected tombstones for both groups")
	}
}

// An edit on one side and a delete on the other converge by timestamps:
// the tombstone is older than the edited object's modification, so the
// object survives.
func TestEditVersusDelete(t *testing.T) {
	c := testutil.NewClock(t, testutil.DefaultStart)
	target := testutil.TestVault(t, c, "target")
	source := target.Clone()

	c.Advance(time.Second)
	targetEntry := testutil.FindEntryByTitle(target.Root(), "entry2")
	source2 := testutil.FindEntryByTitle(source.Root(), "entry2")
	source.RemoveEntry(source2)
	sourceDeletionTime := source.DeletedObjects()[0].DeletionTime

	c.Advance(time.Second)
	targetEntry.BeginUpdate()
	targetEntry.SetNotes("still here")
	targetEntry.EndUpdate()

	m := mustMerger(t, source, target)
	m.Merge()

	if testutil.FindEntryByTitle(target.Root(), "entry2") == nil {
		t.Error("expected later edit to win over the tombstone")
	}

	// When both sides end up carrying a tombstone for the same UUID, the
	// union keeps the earliest deletion time.
	c.Advance(time.Second)
	targetEntry2 := testutil.FindEntryByTitle(target.Root(), "entry2")
	target.RemoveEntry(targetEntry2)
	m2 := mustMerger(t, source, target)
	m2.Merge()

	var kept []domain.DeletedObject
	for _, obj := range target.DeletedObjects() {
		if obj.UUID == targetEntry2.UUID() {
			kept = append(kept, obj)
		}
	}
	if len(kept) != 1 {
		t.Fatalf("expected exactly one tombstone for entry2, got %d", len(kept))
	}
	if !kept[0].DeletionTime.Equal(sourceDeletionTime) {
		t.Errorf("expected the earliest deletion time %v, got %v", sourceDeletionTime, kept[0].DeletionTime)
	}
}
