package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEffectiveMergeMode(t *testing.T) {
	fakeClock(t, testEpoch)
	db := New("vault")
	child := NewGroup("child")
	child.SetParent(db.Root())
	grandchild := NewGroup("grandchild")
	grandchild.SetParent(child)

	// The root's effective mode defaults to keep_newer.
	if got := grandchild.EffectiveMergeMode(); got != ModeKeepNewer {
		t.Errorf("expected keep_newer default, got %s", got)
	}

	db.Root().SetMergeMode(ModeSynchronize)
	if got := grandchild.EffectiveMergeMode(); got != ModeSynchronize {
		t.Errorf("expected inherited synchronize, got %s", got)
	}

	child.SetMergeMode(ModeKeepBoth)
	if got := grandchild.EffectiveMergeMode(); got != ModeKeepBoth {
		t.Errorf("expected nearest configured mode, got %s", got)
	}
	if got := db.Root().EffectiveMergeMode(); got != ModeSynchronize {
		t.Errorf("expected root's own mode, got %s", got)
	}
}

func TestMergeModeRoundTrip(t *testing.T) {
	modes := []MergeMode{ModeInherit, ModeKeepNewer, ModeKeepExisting, ModeKeepBoth, ModeSynchronize}
	for _, mode := range modes {
		parsed, err := ParseMergeMode(mode.String())
		if err != nil {
			t.Fatalf("failed to parse %s: %v", mode, err)
		}
		if parsed != mode {
			t.Errorf("round trip changed %s to %s", mode, parsed)
		}
	}
	if _, err := ParseMergeMode("bogus"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestGroupIconKindsAreExclusive(t *testing.T) {
	fakeClock(t, testEpoch)
	g := NewGroup("g")

	g.SetIconNumber(12)
	if g.IconUUID() != uuid.Nil {
		t.Error("expected numeric icon to clear the custom icon")
	}

	custom := uuid.New()
	g.SetIconUUID(custom)
	if g.IconNumber() != 0 {
		t.Error("expected custom icon to clear the numeric index")
	}
	if g.IconUUID() != custom {
		t.Error("expected custom icon UUID to stick")
	}
}

func TestGroupFindAndRecursive(t *testing.T) {
	fakeClock(t, testEpoch)
	db := New("vault")
	g1 := NewGroup("g1")
	g1.SetParent(db.Root())
	g2 := NewGroup("g2")
	g2.SetParent(g1)

	e := NewEntry()
	e.SetGroup(g2)

	if db.Root().FindGroup(g2.UUID()) != g2 {
		t.Error("expected deep group lookup by UUID")
	}
	if db.Root().FindGroup(db.Root().UUID()) != db.Root() {
		t.Error("expected FindGroup to include the receiver")
	}
	if db.Root().FindEntry(e.UUID()) != e {
		t.Error("expected deep entry lookup by UUID")
	}
	if db.Root().FindEntry(uuid.New()) != nil {
		t.Error("expected miss for unknown UUID")
	}

	if got := len(db.Root().GroupsRecursive()); got != 2 {
		t.Errorf("expected 2 recursive groups, got %d", got)
	}
	if got := len(db.Root().EntriesRecursive()); got != 1 {
		t.Errorf("expected 1 recursive entry, got %d", got)
	}
	if !g1.IsAncestorOf(g2) || g2.IsAncestorOf(g1) {
		t.Error("ancestor relation broken")
	}
}

func TestGroupMoveUpdatesLocation(t *testing.T) {
	advance := fakeClock(t, testEpoch)
	db := New("vault")
	g1 := NewGroup("g1")
	g1.SetParent(db.Root())
	g2 := NewGroup("g2")
	g2.SetParent(db.Root())

	advance(time.Second)
	g2.SetParent(g1)
	if !g2.TimeInfo().LocationChanged.Equal(testEpoch.Add(time.Second)) {
		t.Error("expected relocation to update location_changed")
	}

	g2.SetUpdateTimeInfo(false)
	advance(time.Second)
	g2.SetParent(db.Root())
	if !g2.TimeInfo().LocationChanged.Equal(testEpoch.Add(time.Second)) {
		t.Error("expected suspended bookkeeping to freeze location_changed")
	}
}

func TestGroupCloneShell(t *testing.T) {
	fakeClock(t, testEpoch)
	db := New("vault")
	g := NewGroup("g")
	g.SetParent(db.Root())
	g.SetNotes("notes")
	e := NewEntry()
	e.SetGroup(g)

	shell := g.CloneShell()
	if shell.UUID() != g.UUID() {
		t.Error("expected shell to keep the UUID")
	}
	if shell.Name() != "g" || shell.Notes() != "notes" {
		t.Error("expected shell to carry content fields")
	}
	if len(shell.Entries()) != 0 || len(shell.Children()) != 0 {
		t.Error("expected shell without entries or children")
	}
	if shell.Parent() != nil {
		t.Error("expected detached shell")
	}
}

func TestDatabaseCloneIsDeepAndIdentical(t *testing.T) {
	advance := fakeClock(t, testEpoch)
	db := New("vault")
	g := NewGroup("g")
	g.SetParent(db.Root())
	e := NewEntry()
	e.SetGroup(g)
	e.SetTitle("account")
	advance(time.Second)
	e.BeginUpdate()
	e.SetPassword("v1")
	e.EndUpdate()
	db.AddDeletedObject(uuid.New())
	db.AddCustomIcon(uuid.New(), []byte{1, 2, 3})

	clone := db.Clone()

	ce := clone.Root().FindEntry(e.UUID())
	if ce == nil || ce == e {
		t.Fatal("expected an independent entry with the same UUID")
	}
	if !ce.EqualsIgnoring(e, CompareDefault) {
		t.Error("expected identical clone content")
	}
	if len(clone.DeletedObjects()) != 1 || len(clone.CustomIconUUIDs()) != 1 {
		t.Error("expected tombstones and icons to be cloned")
	}

	ce.SetPassword("mutated")
	if e.Password() == "mutated" {
		t.Error("expected clone mutation to leave the original alone")
	}
}

func TestValidateRejectsLiveTombstoneCollision(t *testing.T) {
	fakeClock(t, testEpoch)
	db := New("vault")
	e := NewEntry()
	e.SetGroup(db.Root())

	if err := db.Validate(); err != nil {
		t.Fatalf("expected valid database, got %v", err)
	}

	db.AddDeletedObject(e.UUID())
	if err := db.Validate(); err == nil {
		t.Error("expected live+tombstone collision to be rejected")
	}
}
