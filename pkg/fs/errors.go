package fs

import "errors"

// StoreError represents a domain error from file store operations.
//
// These are business logic errors (path not found, wrong node kind, cache
// corruption) as opposed to infrastructure errors (block backend failures),
// which are wrapped and propagated unchanged.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the filesystem path related to the error (if applicable)
	Path Path
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + string(e.Path)
	}
	return e.Message
}

// ErrorCode represents the category of a store error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested path doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates an entry with the name already exists
	ErrAlreadyExists

	// ErrIsDirectory indicates operation expected a file but got a directory
	ErrIsDirectory

	// ErrNotDirectory indicates operation expected a directory but got a file
	ErrNotDirectory

	// ErrCorrupted indicates on-disk structure that violates an invariant
	// (undecryptable node, malformed serialization, unexpected node in the
	// sharing cache shadow tree). Fatal: never retried or repaired.
	ErrCorrupted

	// ErrInvalidArgument indicates invalid parameters were provided
	ErrInvalidArgument

	// ErrReadOnly indicates the caller holds no write capability for the tree
	ErrReadOnly

	// ErrNoKey indicates no key material is available for the tree's owner
	ErrNoKey
)

// IsNotFound reports whether err is a StoreError with code ErrNotFound.
func IsNotFound(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.Code == ErrNotFound
}

// IsCorrupted reports whether err is a StoreError with code ErrCorrupted.
func IsCorrupted(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.Code == ErrCorrupted
}
