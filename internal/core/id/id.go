// Package id generates and parses entity identifiers.
// Every row key is a UUIDv7, so ids sort by creation time.
package id

import (
	"strings"

	"github.com/google/uuid"
)

type ID = uuid.UUID

// New returns a fresh UUIDv7, falling back to v4 if the clock source fails.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

func Parse(s string) (ID, error) {
	return uuid.Parse(strings.TrimSpace(s))
}

// ParseOptional parses s, returning nil for an empty string.
func ParseOptional(s string) (*ID, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// MustParse panics on malformed input. Tests and constants only.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

func IsNil(v ID) bool {
	return v == uuid.Nil
}
