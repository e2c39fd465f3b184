package merge

import (
	"testing"
	"time"

	"github.com/lherron/vaultq/internal/clock"
	"github.com/lherron/vaultq/internal/domain"
	"github.com/lherron/vaultq/internal/testutil"
)

// Two divergent edit timelines fold into one linear history under
// synchronize: the shared revisions appear once, the divergent source
// revision is materialized, and the live entry keeps the newest state with
// its modification time untouched by the fold.
func TestSynchronizeInterleavedHistories(t *testing.T) {
	c := testutil.NewClock(t, testutil.DefaultStart)
	target := testutil.TestVault(t, c, "target")
	target.Root().SetMergeMode(domain.ModeSynchronize)
	source := target.Clone()
	source.SetName("source")

	targetEntry := testutil.FindEntryByTitle(target.Root(), "entry1")
	sourceEntry := testutil.FindEntryByTitle(source.Root(), "entry1")

	// Shared edit on both sides at the same second.
	c.Advance(10 * time.Second)
	for _, e := range []*domain.Entry{targetEntry, sourceEntry} {
		e.BeginUpdate()
		e.SetNotes("common")
		e.EndUpdate()
	}

	// Divergent source edit, then a later target edit.
	c.Advance(10 * time.Second)
	sourceEntry.BeginUpdate()
	sourceEntry.SetNotes("from source")
	sourceEntry.EndUpdate()
	sourceTime := sourceEntry.TimeInfo().LastModificationTime

	c.Advance(10 * time.Second)
	targetEntry.BeginUpdate()
	targetEntry.SetNotes("from target")
	targetEntry.EndUpdate()
	targetTime := targetEntry.TimeInfo().LastModificationTime

	m := mustMerger(t, source, target)
	if !m.Merge() {
		t.Fatal("expected synchronize to fold histories")
	}

	if targetEntry.Notes() != "from target" {
		t.Errorf("expected the newer target state to stay live, got %q", targetEntry.Notes())
	}
	if !targetEntry.TimeInfo().LastModificationTime.Equal(targetTime) {
		t.Error("folding history must not bump the entry's modification time")
	}

	history := targetEntry.History()
	if len(history) != 4 {
		t.Fatalf("expected 4 history items, got %d", len(history))
	}
	for i := 1; i < len(history); i++ {
		prev := clock.Serialized(history[i-1].TimeInfo().LastModificationTime)
		cur := clock.Serialized(history[i].TimeInfo().LastModificationTime)
		if !prev.Before(cur) {
			t.Fatal("expected history strictly ascending at serialized precision")
		}
	}
	last := history[len(history)-1]
	if last.Notes() != "from source" {
		t.Errorf("expected the divergent source revision in history, got %q", last.Notes())
	}
	if !clock.SerializedEqual(last.TimeInfo().LastModificationTime, sourceTime) {
		t.Error("expected the materialized source revision to keep its timestamp")
	}

	// Folding again changes nothing.
	m2 := mustMerger(t, source, target)
	if m2.Merge() {
		t.Errorf("expected converged state, got %v", m2.Changes().Messages())
	}
}

// When the source is newer, the target entry is replaced by a clone of the
// source and the original target revision survives as a history item.
func TestSynchronizeSourceNewer(t *testing.T) {
	c := testutil.NewClock(t, testutil.DefaultStart)
	target := testutil.TestVault(t, c, "target")
	target.Root().SetMergeMode(domain.ModeSynchronize)
	source := target.Clone()

	targetEntry := testutil.FindEntryByTitle(target.Root(), "entry1")
	targetUUID := targetEntry.UUID()
	oldTargetTime := targetEntry.TimeInfo().LastModificationTime

	sourceEntry := testutil.FindEntryByTitle(source.Root(), "entry1")
	c.Advance(5 * time.Second)
	sourceEntry.BeginUpdate()
	sourceEntry.SetPassword("synced")
	sourceEntry.EndUpdate()

	m := mustMerger(t, source, target)
	if !m.Merge() {
		t.Fatal("expected synchronize to replace the older target")
	}

	merged := target.Root().FindEntry(targetUUID)
	if merged == nil {
		t.Fatal("entry1 missing after synchronize")
	}
	if merged.Password() != "synced" {
		t.Errorf("expected source content live, got %q", merged.Password())
	}
	var found bool
	for _, item := range merged.History() {
		if clock.SerializedEqual(item.TimeInfo().LastModificationTime, oldTargetTime) {
			found = true
		}
	}
	if !found {
		t.Error("expected the replaced target revision to be preserved in history")
	}
	if len(target.DeletedObjects()) != 0 {
		t.Errorf("synchronize must not leave tombstones, got %d", len(target.DeletedObjects()))
	}
}

// Millisecond drift between otherwise identical timestamps never causes
// conflict dispatch or history duplication.
func TestMillisecondDriftIsNotAConflict(t *testing.T) {
	c := testutil.NewClock(t, testutil.DefaultStart)
	target := testutil.TestVault(t, c, "target")
	target.Root().SetMergeMode(domain.ModeSynchronize)
	source := target.Clone()

	sourceEntry := testutil.FindEntryByTitle(source.Root(), "entry1")
	ti := sourceEntry.TimeInfo()
	ti.LastModificationTime = ti.LastModificationTime.Add(400 * time.Millisecond)
	sourceEntry.SetTimeInfo(ti)

	m := mustMerger(t, source, target)
	if m.Merge() {
		t.Fatalf("expected millisecond drift to be ignored, got %v", m.Changes().Messages())
	}

	targetEntry := testutil.FindEntryByTitle(target.Root(), "entry1")
	if got := len(targetEntry.History()); got != 1 {
		t.Errorf("expected history untouched, got %d items", got)
	}
}

// History folds respect the database truncation limit.
func TestSynchronizeTruncatesHistory(t *testing.T) {
	c := testutil.NewClock(t, testutil.DefaultStart)
	target := testutil.TestVault(t, c, "target")
	target.Root().SetMergeMode(domain.ModeSynchronize)
	target.SetHistoryMaxItems(3)
	source := target.Clone()

	sourceEntry := testutil.FindEntryByTitle(source.Root(), "entry1")
	for i := 0; i < 5; i++ {
		c.Advance(time.Second)
		sourceEntry.BeginUpdate()
		sourceEntry.SetNotes("rev")
		sourceEntry.SetPassword(sourceEntry.Password() + "x")
		sourceEntry.EndUpdate()
	}

	m := mustMerger(t, source, target)
	if !m.Merge() {
		t.Fatal("expected synchronize to apply")
	}

	targetEntry := testutil.FindEntryByTitle(target.Root(), "entry1")
	if got := len(targetEntry.History()); got > 3 {
		t.Errorf("expected history truncated to 3 items, got %d", got)
	}
}
