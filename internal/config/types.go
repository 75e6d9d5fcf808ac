// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultProjectFile is the project file name searched for by default.
	DefaultProjectFile = "peru.yaml"
	// DefaultStateDir is the state directory, relative to the project root.
	DefaultStateDir = ".peru"
	// DefaultJobs is the default number of parallel fetches.
	DefaultJobs = 4
)

var (
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidJobs is returned when Jobs is not positive.
	ErrInvalidJobs = errors.New("jobs must be at least 1")
	// ErrInvalidProjectFile is returned when File is empty or contains a separator.
	ErrInvalidProjectFile = errors.New("project file must be a plain file name")
)

type (
	// Config is peru's tool configuration.
	Config struct {
		// File is the project file name (default peru.yaml).
		File string `json:"file" mapstructure:"file"`
		// Dir is the state directory; empty means DefaultStateDir under the project root.
		Dir string `json:"dir" mapstructure:"dir"`
		// Cache is the cache directory; empty means "cache" under Dir.
		Cache string `json:"cache" mapstructure:"cache"`
		// Jobs bounds parallel fetches.
		Jobs int `json:"jobs" mapstructure:"jobs"`
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		File: DefaultProjectFile,
		Jobs: DefaultJobs,
	}
}

// Validate checks the fields CUE cannot see, such as values from the environment.
func (c *Config) Validate() error {
	var errs []error
	if c.File == "" || strings.ContainsAny(c.File, `/\`) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidProjectFile, c.File))
	}
	if c.Jobs < 1 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidJobs, c.Jobs))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig followed by the field errors, so errors.Is()
// matches either.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
