package errors

import (
	"fmt"
)

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// NotADirectory represents when a path that must be a directory refers to
// something else.
type NotADirectory struct {
	Path string
}

func (err NotADirectory) Error() string {
	return fmt.Sprintf("%q is not a directory", err.Path)
}

// ConfigurationError represents malformed or missing user input. It's
// detected before any files are touched.
type ConfigurationError struct {
	Err error
}

func (err ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", err.Err)
}

func (err ConfigurationError) Unwrap() error {
	return err.Err
}

// FriendlyMessage returns the user facing message.
func (err ConfigurationError) FriendlyMessage() string {
	return fmt.Sprintf("Invalid configuration: %s", err.Err)
}

// UnexpectedFailure wraps a value recovered from a panic.
type UnexpectedFailure struct {
	Value interface{}
}

func (err UnexpectedFailure) Error() string {
	return fmt.Sprintf("unexpected failure: %v", err.Value)
}
