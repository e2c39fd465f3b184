package merge

import (
	"github.com/google/uuid"
)

// ChangeKind classifies an applied merge edit.
type ChangeKind string

const (
	// ChangeCreated records a missing object cloned into the target.
	ChangeCreated ChangeKind = "created"
	// ChangeRelocated records an object moved under a different parent.
	ChangeRelocated ChangeKind = "relocated"
	// ChangeOverwritten records target content replaced by newer source
	// content.
	ChangeOverwritten ChangeKind = "overwritten"
	// ChangeBackupAdded records a keep_both clone attached alongside the
	// original.
	ChangeBackupAdded ChangeKind = "backup_added"
	// ChangeSynchronized records entry histories folded together.
	ChangeSynchronized ChangeKind = "synchronized"
	// ChangeDeleted records an object removed by the deletion pass.
	ChangeDeleted ChangeKind = "deleted"
	// ChangeTombstones records a rewritten tombstone set.
	ChangeTombstones ChangeKind = "tombstones"
	// ChangeIconAdded records a custom icon imported from the source.
	ChangeIconAdded ChangeKind = "icon_added"
)

// Change is one applied merge edit. Message is the human-readable rendering
// used by the CLI; consumers wanting structure use Kind, UUID and Name.
type Change struct {
	Kind    ChangeKind
	UUID    uuid.UUID
	Name    string
	Message string
}

// ChangeList is the ordered sequence of edits one merge run applied.
type ChangeList []Change

// Messages returns the human-readable rendering of every change, in order.
func (cl ChangeList) Messages() []string {
	msgs := make([]string, len(cl))
	for i, c := range cl {
		msgs[i] = c.Message
	}
	return msgs
}
