// Package watcher reports changes to the files that back open content.
//
// fsnotify loses track of a file that is replaced by rename, which is how
// most programs save. The watcher therefore watches the parent directory of
// every file and filters events down to the watched names.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/hexstorm/internal/clock"
	"github.com/dshills/hexstorm/internal/logging"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrNotWatching   = errors.New("path is not being watched")
	ErrPathNotExist  = errors.New("path does not exist")
)

// Op represents the type of file system operation.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	names := []struct {
		op   Op
		name string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
		{OpChmod, "CHMOD"},
	}
	var out string
	for _, n := range names {
		if op.Has(n.op) {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	if out == "" {
		return "UNKNOWN"
	}
	return out
}

// Has returns true if the operation includes o.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event is a change to a watched file.
type Event struct {
	Path      string
	Op        Op
	Timestamp time.Time
}

// Handler receives events from Run.
type Handler func(Event)

// Config holds watcher configuration options.
type Config struct {
	// BufferSize is the size of the event and error channels.
	BufferSize int

	// DebounceDelay merges events for one path that arrive within the
	// delay when delivered through Run. Zero delivers every event.
	DebounceDelay time.Duration

	Logger *logging.Logger
	Clock  clock.Clock
}

// DefaultConfig returns the default watcher configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize:    64,
		DebounceDelay: 100 * time.Millisecond,
		Logger:        logging.Nop(),
		Clock:         clock.Real{},
	}
}

// Option configures a watcher.
type Option func(*Config)

// WithBufferSize sets the channel buffer size.
func WithBufferSize(size int) Option {
	return func(c *Config) { c.BufferSize = size }
}

// WithDebounceDelay sets the debounce delay used by Run.
func WithDebounceDelay(d time.Duration) Option {
	return func(c *Config) { c.DebounceDelay = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithClock sets the clock used to stamp events.
func WithClock(clk clock.Clock) Option {
	return func(c *Config) {
		if clk != nil {
			c.Clock = clk
		}
	}
}

// Watcher watches individual files through their directories.
type Watcher struct {
	mu sync.RWMutex

	fsw    *fsnotify.Watcher
	config Config
	logger *logging.Logger

	files map[string]int // watched file -> reference count
	dirs  map[string]int // watched directory -> number of files in it

	events chan Event
	errors chan error

	dropped atomic.Int64

	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New creates a watcher and starts its event loop.
func New(opts ...Option) (*Watcher, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 64
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		config:  config,
		logger:  config.Logger.WithComponent("watcher"),
		files:   make(map[string]int),
		dirs:    make(map[string]int),
		events:  make(chan Event, config.BufferSize),
		errors:  make(chan error, config.BufferSize),
		closeCh: make(chan struct{}),
	}

	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

// Watch starts watching the file at path. Watching a file twice needs two
// calls to Unwatch.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}

	if w.files[abs] > 0 {
		w.files[abs]++
		return nil
	}
	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.files[abs] = 1
	w.logger.Debug("watching %s", abs)
	return nil
}

// Unwatch drops one reference to path.
func (w *Watcher) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}

	n := w.files[abs]
	if n == 0 {
		return ErrNotWatching
	}
	if n > 1 {
		w.files[abs] = n - 1
		return nil
	}
	delete(w.files, abs)

	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	if err := w.fsw.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return err
	}
	return nil
}

// IsWatching reports whether path is being watched.
func (w *Watcher) IsWatching(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.files[abs] > 0
}

// WatchedFiles returns the watched paths in sorted order.
func (w *Watcher) WatchedFiles() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	paths := make([]string, 0, len(w.files))
	for p := range w.files {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Events returns the event channel. It is closed by Close.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel. It is closed by Close.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Dropped returns the number of events discarded because the event
// channel was full.
func (w *Watcher) Dropped() int64 {
	return w.dropped.Load()
}

// Close stops the watcher. Closing twice is not an error.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsw.Close()
}

// Run delivers events to h until ctx is done or the watcher is closed.
// Events for one path that arrive within the debounce delay reach h once,
// with their operations combined.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	delay := w.config.DebounceDelay
	pending := make(map[string]Event)
	var timer *time.Timer
	var fire <-chan time.Time
	errs := w.errors

	flush := func() {
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		slices.Sort(paths)
		for _, p := range paths {
			h(pending[p])
		}
		clear(pending)
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.events:
			if !ok {
				flush()
				return nil
			}
			if delay <= 0 {
				h(ev)
				continue
			}
			if prev, ok := pending[ev.Path]; ok {
				ev.Op |= prev.Op
			}
			pending[ev.Path] = ev
			if timer == nil {
				timer = time.NewTimer(delay)
				fire = timer.C
			}

		case <-fire:
			timer, fire = nil, nil
			flush()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("watch error: %v", err)
		}
	}
}

func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				w.logger.Warn("dropping watch error: %v", err)
			}
		}
	}
}

func (w *Watcher) handleFSEvent(fsEvent fsnotify.Event) {
	path := filepath.Clean(fsEvent.Name)
	w.mu.RLock()
	watched := w.files[path] > 0
	w.mu.RUnlock()
	if !watched {
		return
	}

	op := convertOp(fsEvent.Op)
	if op == 0 {
		return
	}

	event := Event{Path: path, Op: op, Timestamp: w.config.Clock.Now()}
	select {
	case w.events <- event:
	default:
		w.dropped.Add(1)
		w.logger.Warn("event channel full, dropping %s %s", op, path)
	}
}

func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if fsOp.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}
