package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrStaleState means a compare-and-swap lost: the stored version no
	// longer matches the one the caller read.
	ErrStaleState = errors.New("stale state")
)
