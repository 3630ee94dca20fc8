package engine

import (
	"errors"

	"github.com/dshills/hexstorm/internal/engine/content"
)

// Errors returned by engine operations.
var (
	// ErrClosed indicates the engine was closed.
	ErrClosed = errors.New("engine closed")

	// ErrReadOnly indicates an edit was attempted on a read-only engine.
	ErrReadOnly = errors.New("engine is read-only")

	// ErrNoPath indicates Save was called on content that was never saved.
	ErrNoPath = errors.New("content has no file")

	// ErrBackingFileChanged indicates a file the content reads from was
	// modified by another program, so saving would write corrupt data.
	ErrBackingFileChanged = errors.New("backing file changed on disk")

	// ErrFileInUse indicates a write target is a file the content reads from.
	ErrFileInUse = content.ErrFileInUse

	// ErrInvalidSelection indicates a selection outside the content.
	ErrInvalidSelection = content.ErrInvalidSelection
)
