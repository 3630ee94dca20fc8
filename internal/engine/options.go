package engine

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/hexstorm/internal/clock"
	"github.com/dshills/hexstorm/internal/engine/content"
	"github.com/dshills/hexstorm/internal/engine/history"
	"github.com/dshills/hexstorm/internal/logging"
)

// Default configuration values.
const (
	DefaultMergeWindow    = history.DefaultMergeWindow
	DefaultChunkSize      = content.DefaultChunkSize
	DefaultSpillThreshold = 1 << 20
)

// DefaultSpillDir returns the directory spill files go to by default.
func DefaultSpillDir() string {
	return filepath.Join(os.TempDir(), "hexstorm")
}

// Option configures an Engine during creation.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the clock used by the undo merge window.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithMergeWindow sets how long consecutive keystrokes keep merging into
// one undo step.
func WithMergeWindow(d time.Duration) Option {
	return func(e *Engine) {
		e.mergeWindow = d
	}
}

// WithMaxUndoEntries caps the undo log. Zero means unlimited.
func WithMaxUndoEntries(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxUndo = n
		}
	}
}

// WithHistory turns undo history on or off.
func WithHistory(enabled bool) Option {
	return func(e *Engine) {
		e.history = enabled
	}
}

// WithChunkSize sets the buffer size used when writing files.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithSpillDir sets where large streamed inserts are spilled.
func WithSpillDir(dir string) Option {
	return func(e *Engine) {
		if dir != "" {
			e.spillDir = dir
		}
	}
}

// WithSpillThreshold sets the size above which streamed inserts are
// spilled to disk.
func WithSpillThreshold(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.spillThreshold = n
		}
	}
}

// WithReadOnly creates a read-only engine.
// Edit operations will return ErrReadOnly.
func WithReadOnly() Option {
	return func(e *Engine) {
		e.readOnly = true
	}
}
