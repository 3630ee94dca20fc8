// Package config provides layered configuration for hexstorm.
//
// Settings are resolved from three layers, lowest precedence first:
// built-in defaults, an optional TOML or YAML file, and HEXSTORM_*
// environment variables. The merged tree is decoded into a typed Config
// and validated.
//
// Keys use dot paths with camelCase setting names:
//
//	engine.mergeWindow    = "1500ms"
//	engine.chunkSize      = 2097152
//	engine.maxUndo        = 0
//	engine.history        = true
//	engine.spillThreshold = 1048576
//	engine.spillDir       = "/tmp/hexstorm"
//	logging.level         = "info"
//	logging.file          = ""
//	watch.enabled         = true
//	script.timeout        = "5s"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/hexstorm/internal/config/loader"
	"github.com/dshills/hexstorm/internal/logging"
)

// EngineConfig holds content engine settings.
type EngineConfig struct {
	// MergeWindow is how long consecutive single-byte edits keep merging
	// into one undo step. Zero or negative disables merging.
	MergeWindow time.Duration

	// ChunkSize is the buffer size used when writing content out.
	ChunkSize int

	// MaxUndo caps the undo stack. Zero means unlimited.
	MaxUndo int

	// History enables undo/redo recording.
	History bool

	// SpillThreshold is the size above which streamed inserts are
	// written to a temp file instead of held in memory.
	SpillThreshold int64

	// SpillDir is where spill files are created.
	SpillDir string
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string
	File  string // empty means stderr
}

// WatchConfig holds backing file watcher settings.
type WatchConfig struct {
	Enabled bool
}

// ScriptConfig holds Lua script settings.
type ScriptConfig struct {
	Timeout time.Duration
}

// Config is the resolved hexstorm configuration.
type Config struct {
	Engine  EngineConfig
	Logging LoggingConfig
	Watch   WatchConfig
	Script  ScriptConfig

	// Source is the config file that contributed, if any.
	Source string
}

// Default returns the built-in configuration.
func Default() *Config {
	c, err := decode(defaultTree())
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return c
}

func defaultTree() map[string]any {
	return map[string]any{
		"engine": map[string]any{
			"mergeWindow":    "1500ms",
			"chunkSize":      int64(2 << 20),
			"maxUndo":        int64(0),
			"history":        true,
			"spillThreshold": int64(1 << 20),
			"spillDir":       filepath.Join(os.TempDir(), "hexstorm"),
		},
		"logging": map[string]any{
			"level": "info",
			"file":  "",
		},
		"watch": map[string]any{
			"enabled": true,
		},
		"script": map[string]any{
			"timeout": "5s",
		},
	}
}

// Option configures Load.
type Option func(*options)

type options struct {
	fs      loader.FileSystem
	path    string
	env     loader.Loader
	noEnv   bool
	maxIncl int
}

// WithFile reads settings from path. The format follows the extension.
// A missing file is not an error.
func WithFile(path string) Option {
	return func(o *options) { o.path = path }
}

// WithFileSystem reads config files through fsys.
func WithFileSystem(fsys loader.FileSystem) Option {
	return func(o *options) { o.fs = fsys }
}

// WithEnv overrides the environment layer.
func WithEnv(l loader.Loader) Option {
	return func(o *options) { o.env = l }
}

// WithoutEnv skips the environment layer.
func WithoutEnv() Option {
	return func(o *options) { o.noEnv = true }
}

// Load resolves the configuration layers.
func Load(opts ...Option) (*Config, error) {
	o := options{fs: loader.DefaultFS(), maxIncl: 8}
	for _, opt := range opts {
		opt(&o)
	}

	tree := defaultTree()
	source := ""

	if o.path != "" {
		fl, err := loader.ForPath(o.fs, o.path)
		if err != nil {
			return nil, err
		}
		var file map[string]any
		if il, ok := fl.(interface {
			LoadWithIncludes(string, int) (map[string]any, error)
		}); ok {
			file, err = il.LoadWithIncludes(o.path, o.maxIncl)
		} else {
			file, err = fl.Load()
		}
		if err != nil {
			return nil, err
		}
		if file != nil {
			source = o.path
			tree = loader.DeepMerge(tree, file)
		}
	}

	if !o.noEnv {
		env := o.env
		if env == nil {
			env = loader.NewEnvLoader(loader.DefaultEnvPrefix)
		}
		vars, err := env.Load()
		if err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
		tree = loader.DeepMerge(tree, vars)
	}

	c, err := decode(tree)
	if err != nil {
		return nil, err
	}
	c.Source = source
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// decode maps a merged tree onto Config.
func decode(tree map[string]any) (*Config, error) {
	d := decoder{tree: tree}
	c := &Config{
		Engine: EngineConfig{
			MergeWindow:    d.getDuration("engine.mergeWindow"),
			ChunkSize:      int(d.getInt("engine.chunkSize")),
			MaxUndo:        int(d.getInt("engine.maxUndo")),
			History:        d.getBool("engine.history"),
			SpillThreshold: d.getInt("engine.spillThreshold"),
			SpillDir:       d.getString("engine.spillDir"),
		},
		Logging: LoggingConfig{
			Level: d.getString("logging.level"),
			File:  d.getString("logging.file"),
		},
		Watch: WatchConfig{
			Enabled: d.getBool("watch.enabled"),
		},
		Script: ScriptConfig{
			Timeout: d.getDuration("script.timeout"),
		},
	}
	if d.err != nil {
		return nil, d.err
	}
	return c, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Engine.ChunkSize <= 0:
		return &ValidationError{Path: "engine.chunkSize", Message: "must be positive"}
	case c.Engine.MaxUndo < 0:
		return &ValidationError{Path: "engine.maxUndo", Message: "must not be negative"}
	case c.Engine.SpillThreshold < 0:
		return &ValidationError{Path: "engine.spillThreshold", Message: "must not be negative"}
	case c.Engine.SpillDir == "":
		return &ValidationError{Path: "engine.spillDir", Message: "must not be empty"}
	case c.Script.Timeout < 0:
		return &ValidationError{Path: "script.timeout", Message: "must not be negative"}
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return &ValidationError{Path: "logging.level", Message: err.Error()}
	}
	return nil
}

// LogLevel returns the parsed logging level.
func (c *Config) LogLevel() logging.Level {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return logging.LevelInfo
	}
	return level
}
