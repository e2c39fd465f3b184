// Package domain defines the in-memory vault data model: a tree of groups
// holding credential entries, identified by UUID, plus the tombstone set and
// custom icon table carried at database scope. Objects are mutated through
// methods so that timestamp bookkeeping can be suspended while the merge
// engine is authoritative about TimeInfo.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MergeMode selects the conflict-resolution policy for entries under a group.
type MergeMode int

const (
	// ModeInherit delegates to the parent group's effective mode.
	ModeInherit MergeMode = iota
	// ModeKeepNewer replaces the target entry when the source is newer.
	ModeKeepNewer
	// ModeKeepExisting never touches an existing target entry.
	ModeKeepExisting
	// ModeKeepBoth keeps both sides, cloning the source under a fresh UUID.
	ModeKeepBoth
	// ModeSynchronize replaces with the newer side and folds the histories.
	ModeSynchronize
)

// String returns the stable lowercase name used in storage and on the CLI.
func (m MergeMode) String() string {
	switch m {
	case ModeInherit:
		return "inherit"
	case ModeKeepNewer:
		return "keep_newer"
	case ModeKeepExisting:
		return "keep_existing"
	case ModeKeepBoth:
		return "keep_both"
	case ModeSynchronize:
		return "synchronize"
	default:
		return fmt.Sprintf("merge_mode(%d)", int(m))
	}
}

// ParseMergeMode parses the stable name back into a MergeMode.
func ParseMergeMode(s string) (MergeMode, error) {
	switch s {
	case "inherit":
		return ModeInherit, nil
	case "keep_newer":
		return ModeKeepNewer, nil
	case "keep_existing":
		return ModeKeepExisting, nil
	case "keep_both":
		return ModeKeepBoth, nil
	case "synchronize":
		return ModeSynchronize, nil
	default:
		return ModeInherit, fmt.Errorf("invalid merge mode %q: must be one of: inherit, keep_newer, keep_existing, keep_both, synchronize", s)
	}
}

// DeletedObject is a tombstone recording that the object with the given UUID
// was deleted at the given time. The UUID is the unique key within a set.
type DeletedObject struct {
	UUID         uuid.UUID
	DeletionTime time.Time
}

// CompareOptions relax object equality checks.
type CompareOptions int

const (
	// CompareDefault compares every field at native precision.
	CompareDefault CompareOptions = 0
	// CompareIgnoreMilliseconds compares timestamps at serialized precision.
	CompareIgnoreMilliseconds CompareOptions = 1 << iota
	// CompareIgnoreStatistics skips access time and usage count.
	CompareIgnoreStatistics
	// CompareIgnoreHistory skips entry history items.
	CompareIgnoreHistory
	// CompareIgnoreLocation skips the location-changed timestamp.
	CompareIgnoreLocation
)

// CloneFlags control how much of an entry a clone carries.
type CloneFlags int

const (
	// CloneNoFlags copies content and timestamps, keeping the UUID and
	// dropping history.
	CloneNoFlags CloneFlags = 0
	// CloneNewUUID assigns a fresh UUID to the clone.
	CloneNewUUID CloneFlags = 1 << iota
	// CloneIncludeHistory deep-copies the history items.
	CloneIncludeHistory
)
