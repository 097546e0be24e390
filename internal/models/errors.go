package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation.
var (
	ErrMissingEntityType = errors.New("entity type is required")
	ErrMissingEntityID   = errors.New("entity id is required")
	ErrInvalidAction     = errors.New("action must be create, update, or delete")
	ErrPartialGroup      = errors.New("group tag and comment must be set together")
)

// Sentinel errors for lookups and registration.
var (
	ErrEntityNotFound = errors.New("entity not found")
	ErrUnknownType    = errors.New("entity type is not audited")
)

// ErrVersionConflict indicates concurrent writers raced on version assignment
// and the bounded retry was exhausted.
var ErrVersionConflict = errors.New("version conflict: concurrent audit writers")

// ErrDuplicateKey indicates a unique constraint violation (maps to HTTP 409 Conflict).
var ErrDuplicateKey = errors.New("duplicate key")

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, maxLen)
}
