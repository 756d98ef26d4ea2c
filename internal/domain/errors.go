package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable.
// Nothing in the simulation core is: it is pure computation without I/O.
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

var (
	// ErrInvalidEvent is wrapped by every ValidationError.
	ErrInvalidEvent = errors.New("invalid order event")

	// ErrInvalidConfig is returned when a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTopologyMismatch is returned when the requested agent count differs from the node count.
	ErrTopologyMismatch = errors.New("agent count does not match topology")

	// ErrInvariantBroken marks an internal invariant violation. Never expected at runtime.
	ErrInvariantBroken = errors.New("internal invariant broken")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)

// ValidationError reports a malformed OrderEvent.
type ValidationError struct {
	Row   int    // 1-based input row, 0 when unknown
	Field string // Offending column (e.g. "Block", "SubaccountID")
	Value string // Raw value as received
	Err   error
}

func (e *ValidationError) Error() string {
	msg := "validation error [" + e.Field + "]"
	if e.Row > 0 {
		msg += fmt.Sprintf(" row %d", e.Row)
	}
	if e.Value != "" {
		msg += fmt.Sprintf(" value %q", e.Value)
	}
	return msg + ": " + e.Err.Error()
}

func (e *ValidationError) IsRetriable() bool {
	return false
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError wraps reason under ErrInvalidEvent.
func NewValidationError(row int, field, value, reason string) *ValidationError {
	return &ValidationError{
		Row:   row,
		Field: field,
		Value: value,
		Err:   fmt.Errorf("%w: %s", ErrInvalidEvent, reason),
	}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError wraps a formatted reason under ErrInvalidConfig.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{
		Field: field,
		Err:   fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)),
	}
}

// InvariantError signals a broken internal invariant. Callers must abort.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return "invariant [" + e.Op + "]: " + e.Detail
}

func (e *InvariantError) IsRetriable() bool {
	return false
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantBroken
}
