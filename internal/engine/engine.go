package engine

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/hexstorm/internal/clock"
	"github.com/dshills/hexstorm/internal/engine/content"
	"github.com/dshills/hexstorm/internal/engine/history"
	"github.com/dshills/hexstorm/internal/logging"
)

// Re-export commonly used types for convenience.
type (
	// Selection is a span [Start, End) of the content.
	Selection = content.Selection

	// Span is a run of modified bytes.
	Span = content.Span

	// ModifyListener is notified after the content changes.
	ModifyListener = content.ModifyListener

	// ListenerFunc adapts a function to ModifyListener.
	ListenerFunc = content.ListenerFunc

	// ListenerID identifies a registered listener.
	ListenerID = content.ListenerID
)

// NewSelection validates and returns a selection.
func NewSelection(start, end int64) (Selection, error) {
	return content.NewSelection(start, end)
}

// Engine is editable binary content with file orchestration around it.
type Engine struct {
	mu sync.RWMutex

	id     uuid.UUID
	store  *content.Store
	path   string
	logger *logging.Logger

	// Configuration
	clock          clock.Clock
	mergeWindow    time.Duration
	maxUndo        int
	history        bool
	chunkSize      int
	spillDir       string
	spillThreshold int64
	readOnly       bool

	spills    []string
	stale     map[string]bool
	listeners map[ListenerID]ModifyListener
	nextID    ListenerID
	changed   bool
	closed    bool
}

func newEngine(opts []Option) *Engine {
	e := &Engine{
		id:             uuid.New(),
		logger:         logging.Nop(),
		clock:          clock.Real{},
		mergeWindow:    DefaultMergeWindow,
		history:        true,
		chunkSize:      DefaultChunkSize,
		spillDir:       DefaultSpillDir(),
		spillThreshold: DefaultSpillThreshold,
		stale:          make(map[string]bool),
		listeners:      make(map[ListenerID]ModifyListener),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("engine").WithField("session", e.id.String()[:8])
	return e
}

// New creates an engine over empty content.
func New(opts ...Option) *Engine {
	e := newEngine(opts)
	e.attach(content.New(e.storeOptions()...))
	return e
}

// Open creates an engine over the file at path.
func Open(path string, opts ...Option) (*Engine, error) {
	e := newEngine(opts)
	s, err := content.Open(path, e.storeOptions()...)
	if err != nil {
		return nil, err
	}
	e.attach(s)
	e.path = path
	e.logger.Info("opened %s (%d bytes)", path, s.Length())
	return e, nil
}

func (e *Engine) storeOptions() []content.Option {
	return []content.Option{
		content.WithLogger(e.logger),
		content.WithChunkSize(e.chunkSize),
		content.WithHistory(e.history),
		content.WithHistoryOptions(
			history.WithClock(e.clock),
			history.WithMergeWindow(e.mergeWindow),
			history.WithMaxEntries(e.maxUndo),
		),
	}
}

// attach makes s the engine's content.
func (e *Engine) attach(s *content.Store) {
	e.store = s
	s.AddModifyListener(content.ListenerFunc(func() { e.changed = true }))
}

// ID returns the session identifier of the engine.
func (e *Engine) ID() uuid.UUID {
	return e.id
}

// Path returns the file the content was opened from or last saved to.
func (e *Engine) Path() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.path
}

// ============================================================================
// Read Operations
// ============================================================================

// Length returns the content size in bytes.
func (e *Engine) Length() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Length()
}

// Read fills dst from pos and returns the number of bytes copied.
func (e *Engine) Read(dst []byte, pos int64) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return 0, ErrClosed
	}
	return e.store.Read(dst, pos)
}

// ReadModified is Read that also reports which bytes were modified.
func (e *Engine) ReadModified(dst []byte, pos int64) (int, []Span, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return 0, nil, ErrClosed
	}
	return e.store.ReadModified(dst, pos)
}

// ReadAt implements io.ReaderAt.
func (e *Engine) ReadAt(p []byte, off int64) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return 0, ErrClosed
	}
	return e.store.ReadAt(p, off)
}

// IsDirty reports whether the content changed since it was opened.
func (e *Engine) IsDirty() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.IsDirty()
}

// IsDirtySize reports whether the content size may have changed.
func (e *Engine) IsDirtySize() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.IsDirtySize()
}

// OpenFiles returns the files the content reads from.
func (e *Engine) OpenFiles() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.OpenFiles()
}

// CanUndo reports whether Undo would change the content.
func (e *Engine) CanUndo() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.CanUndo()
}

// CanRedo reports whether Redo would change the content.
func (e *Engine) CanRedo() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.CanRedo()
}

// HistoryDepth returns the number of undo and redo steps available.
func (e *Engine) HistoryDepth() (undo, redo int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.HistoryDepth()
}

// String describes the range layout of the content.
func (e *Engine) String() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.String()
}

// ============================================================================
// Edit Operations
// ============================================================================

// edit runs f under the write lock and fires listeners once it is released.
func (e *Engine) edit(f func(s *content.Store) error) error {
	e.mu.Lock()
	var err error
	switch {
	case e.closed:
		err = ErrClosed
	case e.readOnly:
		err = ErrReadOnly
	default:
		err = f(e.store)
	}
	fire := e.takeListeners()
	e.mu.Unlock()

	for _, l := range fire {
		l.Modified()
	}
	return err
}

// takeListeners returns the listeners to notify and clears the change flag.
// Callers hold the write lock.
func (e *Engine) takeListeners() []ModifyListener {
	if !e.changed {
		return nil
	}
	e.changed = false
	out := make([]ModifyListener, 0, len(e.listeners))
	for _, l := range e.listeners {
		out = append(out, l)
	}
	return out
}

// InsertByte inserts b at pos.
func (e *Engine) InsertByte(b byte, pos int64) error {
	return e.edit(func(s *content.Store) error { return s.InsertByte(b, pos) })
}

// Insert inserts a copy of data at pos.
func (e *Engine) Insert(data []byte, pos int64) error {
	return e.edit(func(s *content.Store) error { return s.Insert(data, pos) })
}

// InsertFile inserts the contents of the file at path at pos.
func (e *Engine) InsertFile(path string, pos int64) error {
	return e.edit(func(s *content.Store) error { return s.InsertFile(path, pos) })
}

// OverwriteByte replaces the byte at pos.
func (e *Engine) OverwriteByte(b byte, pos int64) error {
	return e.edit(func(s *content.Store) error { return s.OverwriteByte(b, pos) })
}

// OverwriteBits replaces length bits of the byte at pos starting offset
// bits from its most significant bit.
func (e *Engine) OverwriteBits(b byte, offset, length int, pos int64) error {
	return e.edit(func(s *content.Store) error { return s.OverwriteBits(b, offset, length, pos) })
}

// Overwrite writes a copy of data over the content at pos.
func (e *Engine) Overwrite(data []byte, pos int64) error {
	return e.edit(func(s *content.Store) error { return s.Overwrite(data, pos) })
}

// OverwriteFile writes the contents of the file at path over the content at pos.
func (e *Engine) OverwriteFile(path string, pos int64) error {
	return e.edit(func(s *content.Store) error { return s.OverwriteFile(path, pos) })
}

// Delete removes up to length bytes at pos.
func (e *Engine) Delete(pos, length int64) error {
	return e.edit(func(s *content.Store) error { return s.Delete(pos, length) })
}

// DeleteSelection removes the selected bytes.
func (e *Engine) DeleteSelection(sel Selection) error {
	if _, err := NewSelection(sel.Start, sel.End); err != nil {
		return err
	}
	return e.Delete(sel.Start, sel.Len())
}

// Trim deletes everything outside sel. The tail and the head are removed
// as two undo steps.
func (e *Engine) Trim(sel Selection) error {
	if _, err := NewSelection(sel.Start, sel.End); err != nil {
		return err
	}
	return e.edit(func(s *content.Store) error {
		if sel.End > s.Length() {
			return fmt.Errorf("%w: %v past end %d", ErrInvalidSelection, sel, s.Length())
		}
		if err := s.Delete(sel.End, s.Length()-sel.End); err != nil {
			return err
		}
		return s.Delete(0, sel.Start)
	})
}

// EndAction closes the undo step being accumulated, so the next edit
// starts a new one even inside the merge window.
func (e *Engine) EndAction() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.store.EndAction()
	}
}

// Undo reverses the last action and returns the span it touched.
func (e *Engine) Undo() (start, end int64, ok bool) {
	e.edit(func(s *content.Store) error {
		start, end, ok = s.Undo()
		return nil
	})
	return start, end, ok
}

// Redo replays the last undone action and returns the span it touched.
func (e *Engine) Redo() (start, end int64, ok bool) {
	e.edit(func(s *content.Store) error {
		start, end, ok = s.Redo()
		return nil
	})
	return start, end, ok
}

// ============================================================================
// Listeners
// ============================================================================

// AddModifyListener registers l. Listeners run after the engine lock is
// released and survive a reload of the content by SaveAs.
func (e *Engine) AddModifyListener(l ModifyListener) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	e.listeners[e.nextID] = l
	return e.nextID
}

// RemoveModifyListener unregisters the listener with id.
func (e *Engine) RemoveModifyListener(id ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners, id)
}

// ============================================================================
// Backing files
// ============================================================================

// MarkStale records that path, a file the content reads from, was changed
// by another program.
func (e *Engine) MarkStale(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.stale[path] {
		e.logger.Warn("backing file changed: %s", path)
	}
	e.stale[path] = true
}

// CheckBackingFiles compares every backing file with its state when the
// content opened it and marks the ones that differ as stale. It returns the
// stale paths. Files rewritten by SaveAs are reopened and do not count.
func (e *Engine) CheckBackingFiles() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	for _, path := range e.store.ChangedFiles() {
		if !e.stale[path] {
			e.logger.Warn("backing file changed: %s", path)
		}
		e.stale[path] = true
	}
	return slices.Sorted(maps.Keys(e.stale))
}

// Stale reports whether any backing file was changed on disk.
func (e *Engine) Stale() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.stale) > 0
}

// ============================================================================
// Lifecycle
// ============================================================================

// Close releases every file handle and removes spill files.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	err := e.store.Dispose()
	err = errors.Join(err, e.removeSpills())
	e.logger.Debug("closed")
	return err
}

// WriteTo streams the content to w.
func (e *Engine) WriteTo(w io.Writer) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	return e.store.WriteTo(w)
}
