//go:build !unix

package filelock

import (
	"errors"
	"os"
)

var errUnsupported = errors.New("advisory file locking is not supported on this platform")

func lockFile(f *os.File) error {
	return errUnsupported
}

func unlockFile(f *os.File) error {
	return errUnsupported
}
