/*
Copyright 2024 Tim St. Pierre
Error types returned by the i2clcd driver
*/
package i2clcd

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBegun is matched by a LifecycleError raised when an operation
	// is issued before Begin succeeded, or after Close.
	ErrNotBegun = errors.New("i2clcd: not initialized")
	// ErrAlreadyBegun is matched by a LifecycleError raised by a second
	// Begin on the same handle.
	ErrAlreadyBegun = errors.New("i2clcd: already initialized")

	errNoOpener  = errors.New("i2clcd: nil Opener")
	errNoChannel = errors.New("opener returned no channel")
)

// LifecycleError reports an operation issued in a state that does not allow
// it. No bus traffic happened.
type LifecycleError struct {
	Op    string
	State State
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("i2clcd: %s: invalid in state %s", e.Op, e.State)
}

// Is lets errors.Is match ErrNotBegun and ErrAlreadyBegun.
func (e *LifecycleError) Is(target error) bool {
	switch target {
	case ErrAlreadyBegun:
		return e.State == StateBegun
	case ErrNotBegun:
		return e.State != StateBegun
	}
	return false
}

// BusError wraps a failure of the underlying I²C transport. The operation
// was aborted at the failing byte; the display is in an undefined state.
type BusError struct {
	Op  string
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("i2clcd: %s: %v", e.Op, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports an option or argument outside the configured
// geometry or the supported address range.
type ConfigurationError struct {
	Field string
	Value int
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("i2clcd: %s %d out of range", e.Field, e.Value)
}
