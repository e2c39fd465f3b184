package store

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/lherron/vaultq/internal/merge"
)

// EventWriter appends merge outcomes to the event log so a vault's history
// of reconciliations stays inspectable.
type EventWriter struct {
	store *Store
}

// Events returns an event writer for the store's connection.
func (s *Store) Events() *EventWriter {
	return &EventWriter{store: s}
}

// LogMergeChanges records one event row per applied merge change.
func (w *EventWriter) LogMergeChanges(changes merge.ChangeList) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := w.store.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range changes {
		var objectUUID interface{}
		if c.UUID != uuid.Nil {
			objectUUID = c.UUID.String()
		}
		if _, err := tx.Exec(`
			INSERT INTO event_log (event_type, object_uuid, object_name, message)
			VALUES (?, ?, ?, ?)
		`, "merge."+string(c.Kind), objectUUID, c.Name, c.Message); err != nil {
			return fmt.Errorf("failed to write merge event: %w", err)
		}
	}
	return tx.Commit()
}
