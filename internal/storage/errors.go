package storage

import "errors"

// Sentinel errors returned by every journal backend. Backends map driver
// errors onto these so callers can use errors.Is regardless of the store.
var (
	// ErrNotFound means no position or event has the requested id.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey means a record with the same id was already journaled.
	ErrDuplicateKey = errors.New("record already exists")

	// ErrInvalidInput means the record is incomplete or its status would
	// move backwards.
	ErrInvalidInput = errors.New("invalid record")
)
