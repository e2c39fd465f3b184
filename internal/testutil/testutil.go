// Package testutil provides shared test fixtures: a controllable clock and
// the canonical two-group test vault.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/lherron/vaultq/internal/clock"
	"github.com/lherron/vaultq/internal/domain"
)

// Clock is a deterministic time source. Merge semantics compare timestamps
// at second precision, so tests advance the clock explicitly instead of
// sleeping.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock installs a fake clock starting at start and restores the real
// clock when the test finishes.
func NewClock(t *testing.T, start time.Time) *Clock {
	t.Helper()
	c := &Clock{now: start.UTC()}
	restore := clock.SetSource(c.Now)
	t.Cleanup(restore)
	return c
}

// Now returns the fake current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the fake clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// DefaultStart is the fixture epoch used by tests.
var DefaultStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// TestVault builds the canonical fixture at the current clock time:
//
//	Root
//	  group1/  entry1 (password p1, one history item)
//	           entry2 (password p2, one history item)
//	  group2/
//
// The clock advances one second per entry edit so revisions stay distinct
// at serialized precision.
func TestVault(t *testing.T, c *Clock, name string) *domain.Database {
	t.Helper()
	vault := domain.New(name)

	group1 := domain.NewGroup("group1")
	group1.SetParent(vault.Root())
	group2 := domain.NewGroup("group2")
	group2.SetParent(vault.Root())

	entry1 := domain.NewEntry()
	entry1.SetGroup(group1)
	entry1.SetTitle("entry1")
	c.Advance(time.Second)
	entry1.BeginUpdate()
	entry1.SetPassword("p1")
	if !entry1.EndUpdate() {
		t.Fatal("expected entry1 update to record history")
	}

	entry2 := domain.NewEntry()
	entry2.SetGroup(group1)
	entry2.SetTitle("entry2")
	c.Advance(time.Second)
	entry2.BeginUpdate()
	entry2.SetPassword("p2")
	if !entry2.EndUpdate() {
		t.Fatal("expected entry2 update to record history")
	}

	if err := vault.Validate(); err != nil {
		t.Fatalf("test vault failed validation: %v", err)
	}
	return vault
}

// FindEntryByTitle walks a subtree for the first entry with the given
// title.
func FindEntryByTitle(g *domain.Group, title string) *domain.Entry {
	for _, e := range g.EntriesRecursive() {
		if e.Title() == title {
			return e
		}
	}
	return nil
}
