// Package app wires the hexstorm components together: configuration, the
// logger, open documents with their engines, and the watcher that notices
// when files backing a document change on disk.
package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/dshills/hexstorm/internal/config"
	"github.com/dshills/hexstorm/internal/engine"
	"github.com/dshills/hexstorm/internal/logging"
	"github.com/dshills/hexstorm/internal/script"
	"github.com/dshills/hexstorm/internal/watcher"
)

// Application owns the documents of one hexstorm process.
type Application struct {
	mu sync.RWMutex

	// Core infrastructure
	config  *config.Config
	logger  *logging.Logger
	logFile io.Closer

	// Document management
	documents *DocumentManager

	// File watching
	watcher *watcher.Watcher
	cancel  context.CancelFunc
	done    chan struct{}

	closed       bool
	shutdownOnce sync.Once
	shutdownErr  error

	// Options
	opts Options
}

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string

	// ConfigOptions are passed to config.Load after the file option.
	ConfigOptions []config.Option

	// LogLevel overrides logging.level when set.
	LogLevel string

	// LogOutput overrides logging.file when set.
	LogOutput io.Writer

	// ScriptOutput receives print output of scripts. Defaults to stdout.
	ScriptOutput io.Writer

	// ReadOnly opens files in read-only mode.
	ReadOnly bool
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "hexstorm", "config.toml")
}

// New creates a new Application with the given options.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts:      opts,
		documents: NewDocumentManager(),
	}
	if err := app.bootstrap(); err != nil {
		app.Shutdown()
		return nil, err
	}
	return app, nil
}

// bootstrap initializes all components in dependency order.
func (app *Application) bootstrap() error {
	// 1. Config
	var cfgOpts []config.Option
	if app.opts.ConfigPath != "" {
		cfgOpts = append(cfgOpts, config.WithFile(app.opts.ConfigPath))
	}
	cfg, err := config.Load(append(cfgOpts, app.opts.ConfigOptions...)...)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	if app.opts.LogLevel != "" {
		if _, err := logging.ParseLevel(app.opts.LogLevel); err != nil {
			return &InitError{Component: "logging", Err: err}
		}
		cfg.Logging.Level = app.opts.LogLevel
	}
	app.config = cfg

	// 2. Logger
	out := app.opts.LogOutput
	if out == nil && cfg.Logging.File != "" {
		f, err := logging.OpenFile(cfg.Logging.File)
		if err != nil {
			return &InitError{Component: "logging", Err: err}
		}
		app.logFile = f
		out = f
	}
	lc := logging.DefaultConfig()
	lc.Level = cfg.LogLevel()
	if out != nil {
		lc.Output = out
	}
	app.logger = logging.New(lc)
	if cfg.Source != "" {
		app.logger.Debug("config loaded from %s", cfg.Source)
	}

	// 3. Watcher
	if cfg.Watch.Enabled {
		w, err := watcher.New(watcher.WithLogger(app.logger))
		if err != nil {
			return &InitError{Component: "watcher", Err: err}
		}
		ctx, cancel := context.WithCancel(context.Background())
		app.watcher = w
		app.cancel = cancel
		app.done = make(chan struct{})
		go func() {
			defer close(app.done)
			w.Run(ctx, app.handleFileEvent)
		}()
	}
	return nil
}

// Config returns the resolved configuration.
func (app *Application) Config() *config.Config {
	return app.config
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// Documents returns the document manager.
func (app *Application) Documents() *DocumentManager {
	return app.documents
}

// Watching reports whether backing files are watched.
func (app *Application) Watching() bool {
	return app.watcher != nil
}

// DroppedEvents returns the number of file events the watcher discarded
// because they arrived faster than they were handled.
func (app *Application) DroppedEvents() int64 {
	if app.watcher == nil {
		return 0
	}
	return app.watcher.Dropped()
}

// EngineOptions returns the engine options the configuration selects.
func (app *Application) EngineOptions() []engine.Option {
	ec := app.config.Engine
	opts := []engine.Option{
		engine.WithLogger(app.logger),
		engine.WithMergeWindow(ec.MergeWindow),
		engine.WithMaxUndoEntries(ec.MaxUndo),
		engine.WithHistory(ec.History),
		engine.WithChunkSize(ec.ChunkSize),
		engine.WithSpillDir(ec.SpillDir),
		engine.WithSpillThreshold(ec.SpillThreshold),
	}
	if app.opts.ReadOnly {
		opts = append(opts, engine.WithReadOnly())
	}
	return opts
}

// Open opens the file at path, or returns the document already open for it.
func (app *Application) Open(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, NewOperationError("open", path, err)
	}

	app.mu.Lock()
	defer app.mu.Unlock()
	if app.closed {
		return nil, ErrClosed
	}
	if doc, ok := app.documents.Get(abs); ok {
		return doc, nil
	}

	eng, err := engine.Open(abs, app.EngineOptions()...)
	if err != nil {
		return nil, NewOperationError("open", abs, err)
	}
	doc := NewDocument(abs, eng)
	doc.ReadOnly = app.opts.ReadOnly
	app.documents.Add(doc)
	doc.onEdit = eng.AddModifyListener(engine.ListenerFunc(func() {
		app.syncWatches(doc)
	}))
	app.syncWatches(doc)
	return doc, nil
}

// Save writes doc back to its file.
func (app *Application) Save(doc *Document) error {
	if doc.ReadOnly {
		return NewOperationError("save", doc.Path, ErrReadOnly)
	}
	if err := doc.Engine.Save(); err != nil {
		return NewOperationError("save", doc.Path, err)
	}
	app.syncWatches(doc)
	return nil
}

// SaveAs writes doc to path, which becomes the document's file.
func (app *Application) SaveAs(doc *Document, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return NewOperationError("save", path, err)
	}
	app.mu.Lock()
	defer app.mu.Unlock()
	if other, ok := app.documents.Get(abs); ok && other != doc {
		return NewOperationError("save", abs, engine.ErrFileInUse)
	}
	if err := doc.Engine.SaveAs(abs); err != nil {
		return NewOperationError("save", abs, err)
	}
	if abs != doc.Path {
		if err := app.documents.Rename(doc.Path, abs); err != nil {
			return NewOperationError("save", abs, err)
		}
		doc.Path = abs
		doc.Name = filepath.Base(abs)
	}
	app.syncWatches(doc)
	return nil
}

// CloseDocument closes doc. Unsaved changes are refused unless force is
// set.
func (app *Application) CloseDocument(doc *Document, force bool) error {
	if doc.IsModified() && !force {
		return NewOperationError("close", doc.Path, ErrUnsavedChanges)
	}
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.closeDocument(doc)
}

func (app *Application) closeDocument(doc *Document) error {
	if err := app.documents.Remove(doc.Path); err != nil {
		return NewOperationError("close", doc.Path, err)
	}
	doc.Engine.RemoveModifyListener(doc.onEdit)
	if app.watcher != nil {
		_, removed := doc.reconcile(nil)
		for _, f := range removed {
			app.watcher.Unwatch(f)
		}
	}
	if err := doc.Engine.Close(); err != nil {
		return NewOperationError("close", doc.Path, err)
	}
	return nil
}

// NewRunner returns a script runner over doc configured from
// script.timeout.
func (app *Application) NewRunner(doc *Document) *script.Runner {
	out := app.opts.ScriptOutput
	if out == nil {
		out = os.Stdout
	}
	return script.New(doc.Engine,
		script.WithTimeout(app.config.Script.Timeout),
		script.WithLogger(app.logger),
		script.WithOutput(out),
	)
}

// syncWatches registers the files backing doc with the watcher and drops
// the ones it no longer reads from.
func (app *Application) syncWatches(doc *Document) {
	if app.watcher == nil {
		return
	}
	var files []string
	for _, f := range doc.Engine.OpenFiles() {
		if abs, err := filepath.Abs(f); err == nil {
			files = append(files, abs)
		}
	}
	added, removed := doc.reconcile(files)
	for _, f := range added {
		if err := app.watcher.Watch(f); err != nil {
			app.logger.Warn("cannot watch %s: %v", f, err)
		}
	}
	for _, f := range removed {
		app.watcher.Unwatch(f)
	}
}

// handleFileEvent re-checks every document reading from the changed file.
func (app *Application) handleFileEvent(ev watcher.Event) {
	for _, doc := range app.documents.All() {
		if !doc.usesFile(ev.Path) {
			continue
		}
		if stale := doc.Engine.CheckBackingFiles(); len(stale) > 0 {
			// SaveAs renames documents under app.mu.
			app.mu.Lock()
			name := doc.Name
			app.mu.Unlock()
			app.logger.WithField("document", name).Warn("%s changed on disk (%s)", ev.Path, ev.Op)
		}
	}
}

// Shutdown closes every document, stops the watcher and closes the log
// file. It is safe to call more than once.
func (app *Application) Shutdown() error {
	app.shutdownOnce.Do(func() {
		app.mu.Lock()
		app.closed = true
		var errs []error
		for _, doc := range app.documents.All() {
			errs = append(errs, app.closeDocument(doc))
		}
		app.mu.Unlock()

		if app.cancel != nil {
			app.cancel()
		}
		if app.watcher != nil {
			errs = append(errs, app.watcher.Close())
			<-app.done
			if n := app.watcher.Dropped(); n > 0 {
				app.logger.Warn("watcher dropped %d events", n)
			}
		}
		if app.logFile != nil {
			errs = append(errs, app.logFile.Close())
		}
		app.shutdownErr = errors.Join(errs...)
	})
	return app.shutdownErr
}
