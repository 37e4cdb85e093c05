package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks an invalid diagnostic setting. It aborts the run.
	ErrConfiguration = errors.New("configuration error")
	// ErrMissingMetadata marks an input record lacking a required field.
	ErrMissingMetadata = errors.New("missing metadata")
)

// ConfigError describes an invalid setting value.
type ConfigError struct {
	Setting string
	Value   string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s %q: %s", e.Setting, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrConfiguration.
func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}
