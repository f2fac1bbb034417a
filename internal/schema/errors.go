package schema

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation error")

// ValidationError reports a write rejected by the schema: either the table
// is undefined or a field has the wrong type.
type ValidationError struct {
	Table  string
	Field  string
	Want   FieldType
	Got    string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("table '%s' %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("field '%s' in table '%s' must be of type '%s', got %s", e.Field, e.Table, e.Want, e.Got)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IsValidation returns true if err is or wraps a ValidationError.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// ConfigError reports a schema source that is missing or cannot be parsed.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("schema config: %v", e.Err)
	}
	return fmt.Sprintf("schema config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
