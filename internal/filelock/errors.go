package filelock

import (
	"errors"
	"fmt"
)

// ErrStorage is matched by every *StorageError via errors.Is.
var ErrStorage = errors.New("storage error")

// StorageError reports that a file could not be opened, locked or written.
type StorageError struct {
	Op   string // "open", "lock", "write", ...
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorage) match any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// IsStorage returns true if err is or wraps a StorageError.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}
