package model

import "github.com/oklog/ulid/v2"

// NewID returns a new ULID string for a check record.
func NewID() string {
	return ulid.Make().String()
}

// ValidID reports whether s is a well-formed check ID.
func ValidID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
