package engine

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/dshills/hexstorm/internal/engine/content"
)

// Save writes the content back to its file.
func (e *Engine) Save() error {
	e.mu.RLock()
	path := e.path
	e.mu.RUnlock()
	if path == "" {
		return ErrNoPath
	}
	return e.SaveAs(path)
}

// SaveAs writes the content to path and reopens the engine from it, which
// leaves the content clean with an empty undo history.
//
// The content is written to a temporary file next to path and renamed over
// it, so path may be the file the content was opened from. Any other file
// the content reads from is refused with ErrFileInUse.
func (e *Engine) SaveAs(path string) error {
	e.mu.Lock()
	err := e.saveAs(path)
	fire := e.takeListeners()
	e.mu.Unlock()

	for _, l := range fire {
		l.Modified()
	}
	return err
}

func (e *Engine) saveAs(path string) error {
	if e.closed {
		return ErrClosed
	}
	if len(e.stale) > 0 {
		return fmt.Errorf("%w: %v", ErrBackingFileChanged, slices.Sorted(maps.Keys(e.stale)))
	}
	if e.store.UsesFile(path) && !sameFile(path, e.path) {
		return fmt.Errorf("%w: %s", ErrFileInUse, path)
	}

	tmp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	n, err := e.store.WriteFile(tmp)
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &content.IOError{Op: "rename", Path: path, Err: err}
	}

	s, err := content.Open(path, e.storeOptions()...)
	if err != nil {
		return err
	}
	if err := e.store.Dispose(); err != nil {
		e.logger.Warn("releasing previous content: %v", err)
	}
	e.attach(s)
	e.path = path
	e.stale = make(map[string]bool)
	e.changed = true
	if err := e.removeSpills(); err != nil {
		e.logger.Warn("removing spill files: %v", err)
	}
	e.logger.Info("saved %s (%d bytes)", path, n)
	return nil
}

// SaveSelectionAs writes the selected bytes to path. The engine keeps its
// content and file.
func (e *Engine) SaveSelectionAs(path string, sel Selection) (int64, error) {
	if _, err := NewSelection(sel.Start, sel.End); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	if sel.End > e.store.Length() {
		return 0, fmt.Errorf("%w: %v past end %d", ErrInvalidSelection, sel, e.store.Length())
	}
	if len(e.stale) > 0 {
		return 0, ErrBackingFileChanged
	}
	n, err := e.store.WriteFileRange(path, sel.Start, sel.Len())
	if err != nil {
		return n, err
	}
	e.logger.Info("saved selection %v to %s", sel, path)
	return n, nil
}

func sameFile(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	ia, err := os.Stat(a)
	if err != nil {
		return false
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ia, ib)
}

// removeSpills deletes spill files no longer referenced. Callers hold the
// write lock and have released the store that read them.
func (e *Engine) removeSpills() error {
	var errs []error
	for _, p := range e.spills {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	e.spills = nil
	return errors.Join(errs...)
}
