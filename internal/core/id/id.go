// Package id provides UUIDv7 identifiers for all stored entities.
package id

import (
	"github.com/google/uuid"
)

// ID is the primary key type of every table.
type ID = uuid.UUID

// New returns a time-ordered UUIDv7, so inserts stay append-only in B-tree indexes.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts a string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsNil reports whether v is the zero UUID.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
