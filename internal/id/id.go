// Package id provides UUID string helpers. Identity in a vault is
// UUID-only; there are no friendly IDs or path-based identifiers.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// IsUUID checks if a string is a valid UUID
func IsUUID(s string) bool {
	_, err := uuid.Parse(strings.TrimSpace(s))
	return err == nil
}

// Parse parses a UUID string, trimming surrounding whitespace.
func Parse(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid UUID %q: %w", s, err)
	}
	return id, nil
}

// Short returns the first eight hex digits of a UUID, for compact display.
func Short(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}
