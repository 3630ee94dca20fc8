package config

import (
	"errors"
	"fmt"
)

// ErrTypeMismatch indicates a setting holds a value of the wrong type.
var ErrTypeMismatch = errors.New("type mismatch")

// TypeError describes a setting whose value cannot be decoded.
type TypeError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("setting %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

func (e *TypeError) Unwrap() error {
	return ErrTypeMismatch
}

// ValidationError describes a setting with an out-of-range value.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("setting %s: %s", e.Path, e.Message)
}
