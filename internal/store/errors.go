package store

import (
	"github.com/matsen/plaindb/internal/filelock"
	"github.com/matsen/plaindb/internal/schema"
)

// Errors returned by Store operations. Validation and storage failures are
// always returned to the caller; corrupted files are logged and read as empty.
var (
	// ErrValidation matches any *ValidationError via errors.Is.
	ErrValidation = schema.ErrValidation

	// ErrStorage matches any *StorageError via errors.Is.
	ErrStorage = filelock.ErrStorage
)

// ValidationError reports an undefined table or a field type mismatch.
type ValidationError = schema.ValidationError

// StorageError reports a file that could not be opened, locked or written.
type StorageError = filelock.StorageError

// IsValidation returns true if err is or wraps a ValidationError.
func IsValidation(err error) bool {
	return schema.IsValidation(err)
}

// IsStorage returns true if err is or wraps a StorageError.
func IsStorage(err error) bool {
	return filelock.IsStorage(err)
}
