// Package id generates identifiers for stored records. UUIDv7 keeps audit
// rows naturally ordered by creation time.
package id

import (
	"github.com/google/uuid"
)

// ID aliases uuid.UUID so call sites stay decoupled from the library.
type ID = uuid.UUID

// New returns a time-ordered UUIDv7, falling back to v4 if the clock
// reading fails.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// NewString returns New rendered in canonical text form.
func NewString() string {
	return New().String()
}

// Parse validates and converts a textual identifier.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}
