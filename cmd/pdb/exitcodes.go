package main

import (
	"errors"

	"github.com/matsen/plaindb/internal/schema"
	"github.com/matsen/plaindb/internal/store"
)

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, storage failure)
	ExitConfigError = 2 // Configuration error / record not found
	ExitDataError   = 3 // Data error (malformed input, validation failure)

	ExitNotFound = ExitConfigError
)

// exitCodeFor maps a store error to an exit code.
func exitCodeFor(err error) int {
	switch {
	case store.IsValidation(err):
		return ExitDataError
	case store.IsStorage(err):
		return ExitError
	}
	var cerr *schema.ConfigError
	if errors.As(err, &cerr) {
		return ExitConfigError
	}
	return ExitError
}
