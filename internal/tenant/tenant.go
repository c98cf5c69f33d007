// Package tenant holds the tenant identifier rules shared by every layer.
//
// A tenant identifier is always passed explicitly as a parameter. Nothing in
// this module keeps a "current tenant" in global or goroutine-local state.
package tenant

import (
	"errors"
	"fmt"
)

const MaxIDLength = 128

var ErrInvalidID = errors.New("invalid tenant id")

// Validate reports whether id can be used to scope a query. Identifiers are
// opaque to the service but must be non-empty, bounded, and limited to
// characters that are safe in cache keys and URLs.
func Validate(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidID, MaxIDLength)
	}
	for _, r := range id {
		if !allowed(r) {
			return fmt.Errorf("%w: unexpected character %q", ErrInvalidID, r)
		}
	}
	return nil
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '.':
		return true
	}
	return false
}
