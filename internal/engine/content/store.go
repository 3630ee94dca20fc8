package content

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dshills/hexstorm/internal/engine/history"
	"github.com/dshills/hexstorm/internal/engine/rangeset"
	"github.com/dshills/hexstorm/internal/logging"
)

// ModifyListener is notified after every successful change to the content.
type ModifyListener interface {
	Modified()
}

// ListenerFunc adapts a function to ModifyListener.
type ListenerFunc func()

// Modified calls f.
func (f ListenerFunc) Modified() { f() }

// ListenerID identifies a registered listener.
type ListenerID uint64

// run is the pending edit buffer.
type run struct {
	position int64
	data     []byte
	insert   bool
}

func (r *run) end() int64 {
	return r.position + int64(len(r.data))
}

func (r *run) contains(pos int64) bool {
	return pos >= r.position && pos < r.end()
}

// Store is editable binary content.
type Store struct {
	set     rangeset.Set
	pending *run

	dirty     bool
	dirtySize bool
	// lastNibble is the position of the last upper-nibble write, or -1.
	lastNibble int64

	history     *history.History
	historyOn   bool
	historyOpts []history.Option

	listeners map[ListenerID]ModifyListener
	nextID    ListenerID

	// sources are the files opened by the store; each is closed once by Dispose.
	sources []*rangeset.Source
	path    string

	logger    *logging.Logger
	chunkSize int
	closed    bool
}

// New creates an empty store. History is on unless WithHistory(false) is given.
func New(opts ...Option) *Store {
	s := &Store{
		lastNibble: -1,
		historyOn:  true,
		listeners:  make(map[ListenerID]ModifyListener),
		logger:     logging.Nop(),
		chunkSize:  DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.historyOn {
		s.history = history.New(s, s.historyOpts...)
	}
	return s
}

// Open creates a store over the contents of path.
func Open(path string, opts ...Option) (*Store, error) {
	s := New(opts...)
	if err := s.Load(path); err != nil {
		_ = s.Dispose()
		return nil, err
	}
	return s, nil
}

// Load replaces the content with the file at path. The whole file becomes
// one clean Range. On failure the store is left empty.
func (s *Store) Load(path string) error {
	if s.closed {
		return ErrClosed
	}
	s.reset()

	src, err := rangeset.OpenFile(path)
	if err != nil {
		return ioError("open", path, err)
	}
	s.sources = append(s.sources, src)
	s.path = path
	if src.Size() > 0 {
		s.set.Insert(rangeset.NewSourceRange(0, src, false))
	}
	s.logger.Debug("loaded %s (%d bytes)", path, src.Size())
	return nil
}

// reset drops all content, history, and sources.
func (s *Store) reset() {
	s.closeSources()
	s.set.Reset()
	s.pending = nil
	s.dirty = false
	s.dirtySize = false
	s.lastNibble = -1
	s.path = ""
	if s.history != nil {
		s.history.Clear()
	}
}

// Path returns the file the content was loaded from, or "".
func (s *Store) Path() string {
	return s.path
}

// Length returns the logical size of the content.
func (s *Store) Length() int64 {
	n := s.set.Length()
	if p := s.pending; p != nil {
		if p.insert {
			n += int64(len(p.data))
		} else if p.end() > n {
			n = p.end()
		}
	}
	return n
}

// IsDirty reports whether the content was changed since it was loaded.
func (s *Store) IsDirty() bool { return s.dirty }

// IsDirtySize reports whether the length may differ from the loaded file.
func (s *Store) IsDirtySize() bool { return s.dirtySize }

// Ranges returns copies of the committed ranges covering [start, end).
func (s *Store) Ranges(start, end int64) []rangeset.Range {
	return s.set.Ranges(start, end)
}

// Validate checks that the committed ranges tile the content and that the
// pending run fits inside it.
func (s *Store) Validate() error {
	if err := s.set.Validate(); err != nil {
		return err
	}
	if p := s.pending; p != nil {
		if len(p.data) == 0 {
			return errors.New("empty pending run")
		}
		if p.position < 0 || p.position > s.set.Length() {
			return fmt.Errorf("pending run at %d outside [0,%d]", p.position, s.set.Length())
		}
		if !p.insert && p.end() > s.set.Length() {
			return fmt.Errorf("pending overwrite [%d,%d) past end %d", p.position, p.end(), s.set.Length())
		}
	}
	return nil
}

// AddModifyListener registers l and returns its id.
func (s *Store) AddModifyListener(l ModifyListener) ListenerID {
	s.nextID++
	s.listeners[s.nextID] = l
	return s.nextID
}

// RemoveModifyListener unregisters the listener with id.
func (s *Store) RemoveModifyListener(id ListenerID) {
	delete(s.listeners, id)
}

func (s *Store) notify() {
	for _, l := range s.listeners {
		l.Modified()
	}
}

// EnableHistory starts recording edits for undo. It is a no-op when
// history is already on.
func (s *Store) EnableHistory() {
	if s.closed || s.history != nil {
		return
	}
	s.CommitChanges()
	s.historyOn = true
	s.history = history.New(s, s.historyOpts...)
}

// DisableHistory stops recording and drops the recorded entries.
func (s *Store) DisableHistory() {
	if s.history == nil {
		return
	}
	s.history.EndAction()
	s.history.Clear()
	s.history = nil
	s.historyOn = false
}

// HistoryEnabled reports whether edits are being recorded.
func (s *Store) HistoryEnabled() bool {
	return s.history != nil
}

// EndAction closes the undo step being accumulated, if any.
func (s *Store) EndAction() {
	if s.history != nil {
		s.history.EndAction()
	}
}

// OpenFiles returns the paths of the files the content reads from.
func (s *Store) OpenFiles() []string {
	var paths []string
	for _, src := range s.sources {
		if !src.Closed() {
			paths = append(paths, src.Path())
		}
	}
	return paths
}

// UsesFile reports whether path names one of the files the content reads from.
func (s *Store) UsesFile(path string) bool {
	target, err := os.Stat(path)
	if err != nil {
		return false
	}
	for _, src := range s.sources {
		if src.Closed() {
			continue
		}
		if info, err := os.Stat(src.Path()); err == nil && os.SameFile(info, target) {
			return true
		}
	}
	return false
}

// ChangedFiles returns the paths of backing files modified, replaced or
// removed on disk since they were opened.
func (s *Store) ChangedFiles() []string {
	var paths []string
	for _, src := range s.sources {
		if !src.Closed() && src.Changed() {
			paths = append(paths, src.Path())
		}
	}
	return paths
}

func (s *Store) closeSources() error {
	var errs []error
	for _, src := range s.sources {
		if err := src.Close(); err != nil {
			s.logger.Warn("closing %s: %v", src.Path(), err)
			errs = append(errs, ioError("close", src.Path(), err))
		}
	}
	s.sources = nil
	return errors.Join(errs...)
}

// Dispose closes every file the content or its history reads from and
// invalidates the store. Close failures are collected; they do not stop
// the remaining files from being closed.
func (s *Store) Dispose() error {
	if s.closed {
		return nil
	}
	err := s.closeSources()
	s.closed = true
	s.set.Reset()
	s.pending = nil
	s.history = nil
	s.listeners = nil
	return err
}

// String lists the committed ranges and the pending run.
func (s *Store) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "length=%d dirty=%t dirtySize=%t\n", s.Length(), s.dirty, s.dirtySize)
	b.WriteString(s.set.String())
	if p := s.pending; p != nil {
		kind := "overwrite"
		if p.insert {
			kind = "insert"
		}
		fmt.Fprintf(&b, "pending %s [%d:%d)\n", kind, p.position, p.end())
	}
	return b.String()
}

func (s *Store) check(pos int64) error {
	if s.closed {
		return ErrClosed
	}
	if pos < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPosition, pos)
	}
	return nil
}
