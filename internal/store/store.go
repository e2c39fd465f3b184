// Package store persists a vault database to SQLite and loads it back,
// rebuilding the in-memory tree with its invariants intact. Saves are
// transactional wholesale replacements; the merge engine never touches the
// store directly.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lherron/vaultq/internal/db"
	"github.com/lherron/vaultq/internal/domain"
)

// timeLayout keeps native precision on disk; merge comparisons truncate to
// seconds regardless.
const timeLayout = time.RFC3339Nano

// Store reads and writes vault databases on one SQLite connection.
type Store struct {
	db *db.DB
}

// New creates a store wrapping the given database connection.
func New(database *db.DB) *Store {
	return &Store{db: database}
}

// DB returns the underlying database connection.
func (s *Store) DB() *db.DB {
	return s.db
}

// Load reads the whole vault and validates its invariants.
func (s *Store) Load() (*domain.Database, error) {
	vault := domain.New("")

	meta, err := s.loadMeta()
	if err != nil {
		return nil, err
	}
	vault.SetName(meta["name"])
	if v, ok := meta["history_max_items"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid history_max_items %q: %w", v, err)
		}
		vault.SetHistoryMaxItems(n)
	}

	root, err := s.loadGroups()
	if err != nil {
		return nil, err
	}
	if root != nil {
		vault.SetRoot(root)
	}

	if err := s.loadEntries(vault); err != nil {
		return nil, err
	}
	if err := s.loadDeletedObjects(vault); err != nil {
		return nil, err
	}
	if err := s.loadCustomIcons(vault); err != nil {
		return nil, err
	}

	if err := vault.Validate(); err != nil {
		return nil, fmt.Errorf("loaded vault failed validation: %w", err)
	}
	return vault, nil
}

func (s *Store) loadMeta() (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, value FROM meta")
	if err != nil {
		return nil, fmt.Errorf("failed to query meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan meta row: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

type groupRow struct {
	uuid       string
	parentUUID sql.NullString
	name       string
	notes      string
	iconNumber int
	iconUUID   sql.NullString
	mergeMode  string
	ti         timeInfoRow
}

type timeInfoRow struct {
	creation     string
	lastModified string
	lastAccess   string
	expiry       string
	location     string
	expires      bool
	usageCount   int
}

func (r timeInfoRow) decode() (domain.TimeInfo, error) {
	var ti domain.TimeInfo
	var err error
	if ti.CreationTime, err = time.Parse(timeLayout, r.creation); err != nil {
		return ti, fmt.Errorf("invalid creation_time: %w", err)
	}
	if ti.LastModificationTime, err = time.Parse(timeLayout, r.lastModified); err != nil {
		return ti, fmt.Errorf("invalid last_modification_time: %w", err)
	}
	if ti.LastAccessTime, err = time.Parse(timeLayout, r.lastAccess); err != nil {
		return ti, fmt.Errorf("invalid last_access_time: %w", err)
	}
	if ti.ExpiryTime, err = time.Parse(timeLayout, r.expiry); err != nil {
		return ti, fmt.Errorf("invalid expiry_time: %w", err)
	}
	if ti.LocationChanged, err = time.Parse(timeLayout, r.location); err != nil {
		return ti, fmt.Errorf("invalid location_changed: %w", err)
	}
	ti.Expires = r.expires
	ti.UsageCount = r.usageCount
	return ti, nil
}

func encodeTimeInfo(ti domain.TimeInfo) []interface{} {
	return []interface{}{
		ti.CreationTime.UTC().Format(timeLayout),
		ti.LastModificationTime.UTC().Format(timeLayout),
		ti.LastAccessTime.UTC().Format(timeLayout),
		ti.ExpiryTime.UTC().Format(timeLayout),
		ti.LocationChanged.UTC().Format(timeLayout),
		ti.Expires,
		ti.UsageCount,
	}
}

func (s *Store) loadGroups() (*domain.Group, error) {
	rows, err := s.db.Query(`
		SELECT uuid, parent_uuid, name, notes, icon_number, icon_uuid, merge_mode,
		       creation_time, last_modification_time, last_access_time,
		       expiry_time, location_changed, expires, usage_count
		FROM groups ORDER BY parent_uuid, position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var ordered []groupRow
	for rows.Next() {
		var r groupRow
		if err := rows.Scan(&r.uuid, &r.parentUUID, &r.name, &r.notes, &r.iconNumber, &r.iconUUID, &r.mergeMode,
			&r.ti.creation, &r.ti.lastModified, &r.ti.lastAccess, &r.ti.expiry, &r.ti.location,
			&r.ti.expires, &r.ti.usageCount); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		ordered = append(ordered, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}
	if len(ordered) == 0 {
		return nil, nil
	}

	groups := make(map[string]*domain.Group, len(ordered))
	var root *domain.Group
	for _, r := range ordered {
		id, err := uuid.Parse(r.uuid)
		if err != nil {
			return nil, fmt.Errorf("invalid group uuid %q: %w", r.uuid, err)
		}
		mode, err := domain.ParseMergeMode(r.mergeMode)
		if err != nil {
			return nil, err
		}
		ti, err := r.ti.decode()
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", r.uuid, err)
		}

		g := domain.NewGroup(r.name)
		g.SetUUID(id)
		g.SetUpdateTimeInfo(false)
		g.SetNotes(r.notes)
		if r.iconUUID.Valid && r.iconUUID.String != "" {
			iconID, err := uuid.Parse(r.iconUUID.String)
			if err != nil {
				return nil, fmt.Errorf("invalid icon uuid %q: %w", r.iconUUID.String, err)
			}
			g.SetIconUUID(iconID)
		} else {
			g.SetIconNumber(r.iconNumber)
		}
		g.SetMergeMode(mode)
		g.SetTimeInfo(ti)
		g.SetUpdateTimeInfo(true)
		groups[r.uuid] = g
		if !r.parentUUID.Valid {
			if root != nil {
				return nil, fmt.Errorf("multiple root groups in store")
			}
			root = g
		}
	}
	if root == nil {
		return nil, fmt.Errorf("no root group in store")
	}

	// Attach children in position order with bookkeeping suspended so the
	// stored location timestamps survive.
	for _, r := range ordered {
		if !r.parentUUID.Valid {
			continue
		}
		parent, ok := groups[r.parentUUID.String]
		if !ok {
			return nil, fmt.Errorf("group %s references missing parent %s", r.uuid, r.parentUUID.String)
		}
		g := groups[r.uuid]
		ti := g.TimeInfo()
		parentTI := parent.TimeInfo()
		g.SetUpdateTimeInfo(false)
		parent.SetUpdateTimeInfo(false)
		g.SetParent(parent)
		g.SetTimeInfo(ti)
		parent.SetTimeInfo(parentTI)
		g.SetUpdateTimeInfo(true)
		parent.SetUpdateTimeInfo(true)
	}
	return root, nil
}

func (s *Store) loadEntries(vault *domain.Database) error {
	rows, err := s.db.Query(`
		SELECT uuid, group_uuid,
		       creation_time, last_modification_time, last_access_time,
		       expiry_time, location_changed, expires, usage_count
		FROM entries ORDER BY group_uuid, position
	`)
	if err != nil {
		return fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	type entryRow struct {
		uuid      string
		groupUUID string
		ti        timeInfoRow
	}
	var ordered []entryRow
	for rows.Next() {
		var r entryRow
		if err := rows.Scan(&r.uuid, &r.groupUUID,
			&r.ti.creation, &r.ti.lastModified, &r.ti.lastAccess, &r.ti.expiry, &r.ti.location,
			&r.ti.expires, &r.ti.usageCount); err != nil {
			return fmt.Errorf("failed to scan entry row: %w", err)
		}
		ordered = append(ordered, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating entries: %w", err)
	}

	entries := make(map[string]*domain.Entry, len(ordered))
	for _, r := range ordered {
		id, err := uuid.Parse(r.uuid)
		if err != nil {
			return fmt.Errorf("invalid entry uuid %q: %w", r.uuid, err)
		}
		groupID, err := uuid.Parse(r.groupUUID)
		if err != nil {
			return fmt.Errorf("invalid entry group uuid %q: %w", r.groupUUID, err)
		}
		group := vault.Root().FindGroup(groupID)
		if group == nil {
			return fmt.Errorf("entry %s references missing group %s", r.uuid, r.groupUUID)
		}
		ti, err := r.ti.decode()
		if err != nil {
			return fmt.Errorf("entry %s: %w", r.uuid, err)
		}

		e := domain.NewEntry()
		e.SetUUID(id)
		e.SetUpdateTimeInfo(false)
		groupTI := group.TimeInfo()
		group.SetUpdateTimeInfo(false)
		e.SetGroup(group)
		group.SetTimeInfo(groupTI)
		group.SetUpdateTimeInfo(true)
		e.SetTimeInfo(ti)
		entries[r.uuid] = e
	}

	if err := s.loadEntryAttributes(entries); err != nil {
		return err
	}
	if err := s.loadEntryHistory(entries); err != nil {
		return err
	}
	for _, e := range entries {
		e.SetUpdateTimeInfo(true)
	}
	return nil
}

func (s *Store) loadEntryAttributes(entries map[string]*domain.Entry) error {
	rows, err := s.db.Query("SELECT entry_uuid, key, value FROM entry_attributes")
	if err != nil {
		return fmt.Errorf("failed to query entry attributes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entryUUID, key, value string
		if err := rows.Scan(&entryUUID, &key, &value); err != nil {
			return fmt.Errorf("failed to scan attribute row: %w", err)
		}
		e, ok := entries[entryUUID]
		if !ok {
			return fmt.Errorf("attribute references missing entry %s", entryUUID)
		}
		ti := e.TimeInfo()
		e.SetAttribute(key, value)
		e.SetTimeInfo(ti)
	}
	return rows.Err()
}

func (s *Store) loadEntryHistory(entries map[string]*domain.Entry) error {
	rows, err := s.db.Query(`
		SELECT entry_uuid, attributes,
		       creation_time, last_modification_time, last_access_time,
		       expiry_time, location_changed, expires, usage_count
		FROM entry_history ORDER BY entry_uuid, position
	`)
	if err != nil {
		return fmt.Errorf("failed to query entry history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entryUUID, attrsJSON string
		var tr timeInfoRow
		if err := rows.Scan(&entryUUID, &attrsJSON,
			&tr.creation, &tr.lastModified, &tr.lastAccess, &tr.expiry, &tr.location,
			&tr.expires, &tr.usageCount); err != nil {
			return fmt.Errorf("failed to scan history row: %w", err)
		}
		e, ok := entries[entryUUID]
		if !ok {
			return fmt.Errorf("history references missing entry %s", entryUUID)
		}
		ti, err := tr.decode()
		if err != nil {
			return fmt.Errorf("history of entry %s: %w", entryUUID, err)
		}
		var attrs map[string]string
		if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
			return fmt.Errorf("invalid history attributes for entry %s: %w", entryUUID, err)
		}

		item := domain.NewEntry()
		item.SetUUID(e.UUID())
		item.SetUpdateTimeInfo(false)
		for k, v := range attrs {
			item.SetAttribute(k, v)
		}
		item.SetTimeInfo(ti)
		item.SetUpdateTimeInfo(true)
		e.AddHistoryItem(item)
	}
	return rows.Err()
}

func (s *Store) loadDeletedObjects(vault *domain.Database) error {
	rows, err := s.db.Query("SELECT uuid, deletion_time FROM deleted_objects ORDER BY uuid")
	if err != nil {
		return fmt.Errorf("failed to query deleted objects: %w", err)
	}
	defer rows.Close()

	var objects []domain.DeletedObject
	for rows.Next() {
		var u, t string
		if err := rows.Scan(&u, &t); err != nil {
			return fmt.Errorf("failed to scan deleted object row: %w", err)
		}
		id, err := uuid.Parse(u)
		if err != nil {
			return fmt.Errorf("invalid tombstone uuid %q: %w", u, err)
		}
		when, err := time.Parse(timeLayout, t)
		if err != nil {
			return fmt.Errorf("invalid deletion_time for %s: %w", u, err)
		}
		objects = append(objects, domain.DeletedObject{UUID: id, DeletionTime: when})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating deleted objects: %w", err)
	}
	vault.SetDeletedObjects(objects)
	return nil
}

func (s *Store) loadCustomIcons(vault *domain.Database) error {
	rows, err := s.db.Query("SELECT uuid, data FROM custom_icons")
	if err != nil {
		return fmt.Errorf("failed to query custom icons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u string
		var data []byte
		if err := rows.Scan(&u, &data); err != nil {
			return fmt.Errorf("failed to scan custom icon row: %w", err)
		}
		id, err := uuid.Parse(u)
		if err != nil {
			return fmt.Errorf("invalid icon uuid %q: %w", u, err)
		}
		vault.AddCustomIcon(id, data)
	}
	return rows.Err()
}

// Save writes the whole vault, replacing previous contents, and clears the
// vault's modified flag on success.
func (s *Store) Save(vault *domain.Database) error {
	if err := vault.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid vault: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"entry_history", "entry_attributes", "entries", "groups", "deleted_objects", "custom_icons", "meta"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if _, err := tx.Exec("INSERT INTO meta (key, value) VALUES ('name', ?), ('history_max_items', ?)",
		vault.Name(), strconv.Itoa(vault.HistoryMaxItems())); err != nil {
		return fmt.Errorf("failed to write meta: %w", err)
	}

	if err := saveGroup(tx, vault.Root(), nil, 0); err != nil {
		return err
	}

	for _, obj := range vault.DeletedObjects() {
		if _, err := tx.Exec("INSERT INTO deleted_objects (uuid, deletion_time) VALUES (?, ?)",
			obj.UUID.String(), obj.DeletionTime.UTC().Format(timeLayout)); err != nil {
			return fmt.Errorf("failed to write tombstone %s: %w", obj.UUID, err)
		}
	}
	for _, id := range vault.CustomIconUUIDs() {
		if _, err := tx.Exec("INSERT INTO custom_icons (uuid, data) VALUES (?, ?)",
			id.String(), vault.CustomIcon(id)); err != nil {
			return fmt.Errorf("failed to write custom icon %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit save: %w", err)
	}
	vault.ResetModified()
	return nil
}

func saveGroup(tx *sql.Tx, g *domain.Group, parent *domain.Group, position int) error {
	var parentUUID interface{}
	if parent != nil {
		parentUUID = parent.UUID().String()
	}
	var iconUUID interface{}
	if g.IconUUID() != uuid.Nil {
		iconUUID = g.IconUUID().String()
	}
	args := []interface{}{g.UUID().String(), parentUUID, position, g.Name(), g.Notes(), g.IconNumber(), iconUUID, g.MergeMode().String()}
	args = append(args, encodeTimeInfo(g.TimeInfo())...)
	if _, err := tx.Exec(`
		INSERT INTO groups (uuid, parent_uuid, position, name, notes, icon_number, icon_uuid, merge_mode,
		                    creation_time, last_modification_time, last_access_time,
		                    expiry_time, location_changed, expires, usage_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...); err != nil {
		return fmt.Errorf("failed to write group %s: %w", g.UUID(), err)
	}

	for i, e := range g.Entries() {
		if err := saveEntry(tx, e, g, i); err != nil {
			return err
		}
	}
	for i, child := range g.Children() {
		if err := saveGroup(tx, child, g, i); err != nil {
			return err
		}
	}
	return nil
}

func saveEntry(tx *sql.Tx, e *domain.Entry, g *domain.Group, position int) error {
	args := []interface{}{e.UUID().String(), g.UUID().String(), position}
	args = append(args, encodeTimeInfo(e.TimeInfo())...)
	if _, err := tx.Exec(`
		INSERT INTO entries (uuid, group_uuid, position,
		                     creation_time, last_modification_time, last_access_time,
		                     expiry_time, location_changed, expires, usage_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", e.UUID(), err)
	}

	for _, key := range e.AttributeKeys() {
		if _, err := tx.Exec("INSERT INTO entry_attributes (entry_uuid, key, value) VALUES (?, ?, ?)",
			e.UUID().String(), key, e.Attribute(key)); err != nil {
			return fmt.Errorf("failed to write attribute %s of entry %s: %w", key, e.UUID(), err)
		}
	}

	for i, item := range e.History() {
		attrs := make(map[string]string, len(item.AttributeKeys()))
		for _, key := range item.AttributeKeys() {
			attrs[key] = item.Attribute(key)
		}
		attrsJSON, err := json.Marshal(attrs)
		if err != nil {
			return fmt.Errorf("failed to encode history attributes of entry %s: %w", e.UUID(), err)
		}
		args := []interface{}{e.UUID().String(), i, string(attrsJSON)}
		args = append(args, encodeTimeInfo(item.TimeInfo())...)
		if _, err := tx.Exec(`
			INSERT INTO entry_history (entry_uuid, position, attributes,
			                           creation_time, last_modification_time, last_access_time,
			                           expiry_time, location_changed, expires, usage_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, args...); err != nil {
			return fmt.Errorf("failed to write history of entry %s: %w", e.UUID(), err)
		}
	}
	return nil
}
