// Package duid gives depot's package identity a concrete type: a
// 128-bit UUID, lexicographically ordered by its canonical
// hex-dashed string form (the order the resolver's tie-break rule and
// Manifest's deterministic serialization both rely on).
package duid

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a package's UUID. The zero value is not a valid ID.
type ID struct {
	u uuid.UUID
}

// New generates a fresh random ID, for scaffolding a new publishable
// package's `self` entry.
func New() ID { return ID{u: uuid.New()} }

// Parse parses a canonical hex-dashed UUID string.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("bad uuid %q: %w", s, err)
	}
	return ID{u: u}, nil
}

// String renders the canonical hex-dashed form.
func (id ID) String() string { return id.u.String() }

// Less orders IDs lexicographically by their string form, the
// tie-break the resolver and manifest serialization both use.
func (id ID) Less(other ID) bool { return id.String() < other.String() }

// Zero reports whether id is the unset zero value.
func (id ID) Zero() bool { return id.u == uuid.Nil }

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
