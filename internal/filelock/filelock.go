// Package filelock serializes writers of a data file across processes and
// replaces file contents atomically.
//
// A lock is taken on a sidecar "<path>.lock" file rather than on the data
// file itself: the data file is replaced by rename, which would leave a lock
// held on the old inode behind.
package filelock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LockSuffix is appended to a data file path to form its lock file path.
const LockSuffix = ".lock"

// Lock is an exclusive advisory lock held on a data file.
type Lock struct {
	f *os.File
}

// Acquire blocks until it holds the exclusive lock for the data file at path.
// There is no timeout. Callers must Release the lock.
func Acquire(path string) (*Lock, error) {
	lockPath := path + LockSuffix
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, &StorageError{Op: "open", Path: lockPath, Err: err}
	}
	f, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, &StorageError{Op: "open", Path: lockPath, Err: err}
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, &StorageError{Op: "lock", Path: lockPath, Err: err}
	}
	return &Lock{f: f}, nil
}

// Release unlocks and closes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	uerr := unlockFile(f)
	cerr := f.Close()
	if uerr != nil {
		return &StorageError{Op: "unlock", Path: f.Name(), Err: uerr}
	}
	if cerr != nil {
		return &StorageError{Op: "close", Path: f.Name(), Err: cerr}
	}
	return nil
}

// WriteJSON serializes v as indented JSON and atomically replaces path with it.
// Uses temp file + rename so readers never see partial content.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	return WriteFile(path, data)
}

// WriteFile atomically replaces the contents of path with data.
func WriteFile(path string, data []byte) error {
	// Create temp file in same directory for atomic rename
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*-"+filepath.Base(path))
	if err != nil {
		return &StorageError{Op: "create temp file for", Path: path, Err: err}
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on error
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return &StorageError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return &StorageError{Op: "sync", Path: tmpPath, Err: err}
	}
	if err := tmpFile.Close(); err != nil {
		return &StorageError{Op: "close", Path: tmpPath, Err: err}
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return &StorageError{Op: "chmod", Path: tmpPath, Err: err}
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return &StorageError{Op: "rename", Path: path, Err: err}
	}

	success = true
	return nil
}
