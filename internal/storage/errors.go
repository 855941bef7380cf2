package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record with a
	// key that already exists, including a flip leg reusing a transaction id.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBusy is returned when the datastore stayed locked by a concurrent
	// writer after the retry policy was exhausted.
	ErrBusy = errors.New("datastore busy: retries exhausted")
)
