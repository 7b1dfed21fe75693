package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates inputs that do not fit together: wrong
	// counts, a malformed time grid or invalid solver settings.
	ErrConfiguration = errors.New("engine: invalid batch configuration")

	// ErrAllocation indicates output buffers that cannot be allocated.
	ErrAllocation = errors.New("engine: cannot allocate output buffers")
)

// ConfigError names the offending input.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

func configErrorf(field, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
