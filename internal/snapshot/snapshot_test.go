package snapshot

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lherron/vaultq/internal/domain"
	"github.com/lherron/vaultq/internal/testutil"
)

func TestCaptureRestoreRoundTrip(t *testing.T) {
	c := testutil.NewClock(t, testutil.DefaultStart)
	vault := testutil.TestVault(t, c, "roundtrip")
	vault.Root().FindChildByName("group1").SetMergeMode(domain.ModeSynchronize)
	vault.AddDeletedObject(uuid.New())
	vault.AddCustomIcon(uuid.New(), []byte{0xca, 0xfe})

	snap := Capture(vault)
	restored, err := Restore(snap)
	if err != nil {
		t.Fatalf("failed to restore snapshot: %v", err)
	}

	if restored.Name() != "roundtrip" {
		t.Errorf("expected name to survive, got %q", restored.Name())
	}
	if restored.HistoryMaxItems() != vault.HistoryMaxItems() {
		t.Error("expected history limit to survive")
	}
	if got := len(restored.Root().Children()); got != 2 {
		t.Fatalf("expected 2 child groups, got %d", got)
	}
	if got := restored.Root().Children()[0].Name(); got != "group1" {
		t.Errorf("expected child order to survive, got %s first", got)
	}
	if got := restored.Root().FindChildByName("group1").MergeMode(); got != domain.ModeSynchronize {
		t.Errorf("expected merge mode to survive, got %s", got)
	}

	entry := testutil.FindEntryByTitle(restored.Root(), "entry1")
	if entry == nil {
		t.Fatal("entry1 missing after round trip")
	}
	if entry.Password() != "p1" {
		t.Errorf("expected password to survive, got %q", entry.Password())
	}
	if got := len(entry.History()); got != 1 {
		t.Errorf("expected history to survive, got %d items", got)
	}
	original := testutil.FindEntryByTitle(vault.Root(), "entry1")
	if entry.UUID() != original.UUID() {
		t.Error("expected UUIDs to survive")
	}
	if !entry.TimeInfo().Equals(original.TimeInfo(), domain.CompareIgnoreMilliseconds) {
		t.Error("expected timestamps to survive at serialized precision")
	}
	if len(restored.DeletedObjects()) != 1 {
		t.Error("expected tombstone to survive")
	}
	if len(restored.CustomIconUUIDs()) != 1 {
		t.Error("expected custom icon to survive")
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	c := testutil.NewClock(t, testutil.DefaultStart)
	vault := testutil.TestVault(t, c, "deterministic")

	first, err := Marshal(Capture(vault))
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	second, err := Marshal(Capture(vault))
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("expected identical output for identical input")
	}
}

func TestExportImportFile(t *testing.T) {
	c := testutil.NewClock(t, testutil.DefaultStart)
	vault := testutil.TestVault(t, c, "file")
	path := filepath.Join(t.TempDir(), "vault.yaml")

	if err := Export(vault, path); err != nil {
		t.Fatalf("failed to export: %v", err)
	}
	restored, err := Import(path)
	if err != nil {
		t.Fatalf("failed to import: %v", err)
	}
	if got := len(restored.Root().EntriesRecursive()); got != 2 {
		t.Errorf("expected 2 entries after file round trip, got %d", got)
	}
}

func TestRestoreRejectsLiveTombstoneCollision(t *testing.T) {
	c := testutil.NewClock(t, testutil.DefaultStart)
	vault := testutil.TestVault(t, c, "invalid")
	snap := Capture(vault)

	entry := testutil.FindEntryByTitle(vault.Root(), "entry1")
	snap.DeletedObjects = append(snap.DeletedObjects, DeletedObjectEntry{
		UUID:         entry.UUID().String(),
		DeletionTime: FormatTimestamp(time.Now()),
	})

	if _, err := Restore(snap); err == nil {
		t.Error("expected live+tombstone collision to be rejected")
	}
}

func TestRestoreRejectsMissingRoot(t *testing.T) {
	snap := &Snapshot{Meta: Meta{SchemaVersion: SchemaVersion, HistoryMaxItems: 10}}
	if _, err := Restore(snap); err == nil {
		t.Error("expected snapshot without a root group to be rejected")
	}
}
