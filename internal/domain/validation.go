package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/lherron/vaultq/internal/clock"
)

// ValidationError describes a violated database invariant.
type ValidationError struct {
	UUID   uuid.UUID
	Reason string
}

func (e *ValidationError) Error() string {
	if e.UUID == uuid.Nil {
		return fmt.Sprintf("invalid database: %s", e.Reason)
	}
	return fmt.Sprintf("invalid database: %s [%s]", e.Reason, e.UUID)
}

// Validate checks the structural invariants a consistent database upholds:
// UUID uniqueness across groups and entries, no UUID both live and
// tombstoned, parent chains terminating at the root, and strictly ascending
// entry histories at serialized precision.
func (d *Database) Validate() error {
	if d.root == nil {
		return &ValidationError{Reason: "missing root group"}
	}
	if d.root.Parent() != nil {
		return &ValidationError{UUID: d.root.UUID(), Reason: "root group has a parent"}
	}

	seen := make(map[uuid.UUID]bool)
	groups := append([]*Group{d.root}, d.root.GroupsRecursive()...)
	for _, g := range groups {
		if seen[g.UUID()] {
			return &ValidationError{UUID: g.UUID(), Reason: "duplicate UUID"}
		}
		seen[g.UUID()] = true
		for _, child := range g.Children() {
			if child.Parent() != g {
				return &ValidationError{UUID: child.UUID(), Reason: "child group parent link broken"}
			}
		}
		for _, e := range g.Entries() {
			if e.Group() != g {
				return &ValidationError{UUID: e.UUID(), Reason: "entry parent link broken"}
			}
		}
	}
	for _, e := range d.root.EntriesRecursive() {
		if seen[e.UUID()] {
			return &ValidationError{UUID: e.UUID(), Reason: "duplicate UUID"}
		}
		seen[e.UUID()] = true
		if err := validateHistory(e); err != nil {
			return err
		}
	}

	tombstoned := make(map[uuid.UUID]bool)
	for _, obj := range d.deletedObjects {
		if tombstoned[obj.UUID] {
			return &ValidationError{UUID: obj.UUID, Reason: "duplicate tombstone"}
		}
		tombstoned[obj.UUID] = true
		if seen[obj.UUID] {
			return &ValidationError{UUID: obj.UUID, Reason: "UUID is both live and tombstoned"}
		}
	}
	return nil
}

func validateHistory(e *Entry) error {
	history := e.History()
	for i, item := range history {
		if item.Group() != nil {
			return &ValidationError{UUID: e.UUID(), Reason: "history item has a parent group"}
		}
		if len(item.History()) != 0 {
			return &ValidationError{UUID: e.UUID(), Reason: "history item has nested history"}
		}
		if i == 0 {
			continue
		}
		prev := clock.Serialized(history[i-1].TimeInfo().LastModificationTime)
		cur := clock.Serialized(item.TimeInfo().LastModificationTime)
		if !prev.Before(cur) {
			return &ValidationError{UUID: e.UUID(), Reason: "history not strictly ascending"}
		}
	}
	return nil
}
