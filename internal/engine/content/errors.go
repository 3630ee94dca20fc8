package content

import (
	"errors"
	"fmt"
)

// Precondition errors. These indicate a caller bug.
var (
	// ErrClosed is returned by every operation after Dispose.
	ErrClosed = errors.New("content disposed")

	// ErrInvalidPosition is returned for negative positions.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrInvalidRange is returned for negative or inverted spans.
	ErrInvalidRange = errors.New("invalid range")

	// ErrInvalidSelection is returned when a selection ends before it starts.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrFileInUse is returned when asked to write over a file the content reads from.
	ErrFileInUse = errors.New("file in use by content")
)

// IOError reports a failed file operation together with its cause.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func ioError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ioe *IOError
	if errors.As(err, &ioe) {
		return err
	}
	return &IOError{Op: op, Path: path, Err: err}
}
