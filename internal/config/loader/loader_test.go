package loader

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"
)

// MemFS is an in-memory file system for testing.
type MemFS struct {
	files map[string][]byte
}

func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

func (m *MemFS) AddFile(path string, content string) {
	m.files[path] = []byte(content)
}

func (m *MemFS) Open(name string) (fs.File, error) {
	return nil, fs.ErrNotExist
}

func (m *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (m *MemFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m.files[path]; ok {
		return &memFileInfo{name: path}, nil
	}
	return nil, fs.ErrNotExist
}

type memFileInfo struct {
	name string
}

func (f *memFileInfo) Name() string       { return f.name }
func (f *memFileInfo) Size() int64        { return 0 }
func (f *memFileInfo) Mode() fs.FileMode  { return 0644 }
func (f *memFileInfo) ModTime() time.Time { return time.Time{} }
func (f *memFileInfo) IsDir() bool        { return false }
func (f *memFileInfo) Sys() any           { return nil }

const tomlConfig = `
[engine]
mergeWindow = "2s"
maxUndo = 50
history = true

[logging]
level = "debug"
`

const yamlConfig = `
engine:
  mergeWindow: 2s
  maxUndo: 50
  history: true
logging:
  level: debug
`

func TestFileLoaders(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/hexstorm.toml", tomlConfig)
	memfs.AddFile("/hexstorm.yaml", yamlConfig)

	for _, path := range []string{"/hexstorm.toml", "/hexstorm.yaml"} {
		t.Run(path, func(t *testing.T) {
			fl, err := ForPath(memfs, path)
			if err != nil {
				t.Fatalf("ForPath: %v", err)
			}
			config, err := fl.Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			if v, _ := GetPath(config, "engine.maxUndo"); v != int64(50) {
				t.Errorf("engine.maxUndo = %v (%T), want 50", v, v)
			}
			if v, _ := GetPath(config, "engine.history"); v != true {
				t.Errorf("engine.history = %v, want true", v)
			}
			if v, _ := GetPath(config, "engine.mergeWindow"); v != "2s" {
				t.Errorf("engine.mergeWindow = %v, want \"2s\"", v)
			}
			if v, _ := GetPath(config, "logging.level"); v != "debug" {
				t.Errorf("logging.level = %v, want debug", v)
			}
		})
	}
}

func TestForPath_Unsupported(t *testing.T) {
	if _, err := ForPath(nil, "/hexstorm.ini"); err == nil {
		t.Error("expected error for .ini")
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"a.toml", FormatTOML},
		{"a.TOML", FormatTOML},
		{"a.yaml", FormatYAML},
		{"a.yml", FormatYAML},
		{"a.json", FormatUnknown},
		{"noext", FormatUnknown},
	}
	for _, tt := range tests {
		if got := FormatOf(tt.path); got != tt.want {
			t.Errorf("FormatOf(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestLoadNonExistent(t *testing.T) {
	memfs := NewMemFS()
	loaders := []Loader{
		NewTOMLLoaderWithFS(memfs, "/missing.toml"),
		NewYAMLLoaderWithFS(memfs, "/missing.yaml"),
	}
	for _, l := range loaders {
		config, err := l.Load()
		if err != nil {
			t.Fatalf("expected no error for missing file, got: %v", err)
		}
		if config != nil {
			t.Error("expected nil config for missing file")
		}
	}
}

func TestTOMLLoader_LoadInvalid(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/invalid.toml", "[engine\nmaxUndo = 4\n")

	_, err := NewTOMLLoaderWithFS(memfs, "/invalid.toml").Load()
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T (%v)", err, err)
	}
	if pe.Path != "/invalid.toml" {
		t.Errorf("Path = %q, want /invalid.toml", pe.Path)
	}
	if pe.Line == 0 {
		t.Error("Line not reported")
	}
}

func TestYAMLLoader_LoadInvalid(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/bad.yaml", "engine: [unclosed\n")
	memfs.AddFile("/list.yaml", "- a\n- b\n")

	for _, path := range []string{"/bad.yaml", "/list.yaml"} {
		_, err := NewYAMLLoaderWithFS(memfs, path).Load()
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("%s: expected *ParseError, got %T (%v)", path, err, err)
		}
	}
}

func TestYAMLLoader_Empty(t *testing.T) {
	config, err := (&YAMLLoader{}).LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if len(config) != 0 {
		t.Errorf("config = %v, want empty", config)
	}
}

func TestLoadFromReader(t *testing.T) {
	config, err := (&TOMLLoader{}).LoadFromReader(strings.NewReader("chunkSize = 12\n"))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if config["chunkSize"] != int64(12) {
		t.Errorf("chunkSize = %v, want 12", config["chunkSize"])
	}

	config, err = (&YAMLLoader{}).LoadFromReader(strings.NewReader("chunkSize: 12\n"))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if config["chunkSize"] != int64(12) {
		t.Errorf("chunkSize = %v (%T), want 12", config["chunkSize"], config["chunkSize"])
	}
}

func TestLoadWithIncludes(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/conf/main.toml", `
"@include" = ["base.toml"]

[engine]
maxUndo = 10
`)
	memfs.AddFile("/conf/base.toml", `
[engine]
maxUndo = 100
history = false

[logging]
level = "warn"
`)
	memfs.AddFile("/conf/main.yaml", `
"@include": base.yaml
engine:
  maxUndo: 10
`)
	memfs.AddFile("/conf/base.yaml", `
engine:
  maxUndo: 100
  history: false
logging:
  level: warn
`)

	tests := []struct {
		name string
		fl   interface {
			LoadWithIncludes(string, int) (map[string]any, error)
		}
		path string
	}{
		{"toml", NewTOMLLoaderWithFS(memfs, ""), "/conf/main.toml"},
		{"yaml", NewYAMLLoaderWithFS(memfs, ""), "/conf/main.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := tt.fl.LoadWithIncludes(tt.path, 5)
			if err != nil {
				t.Fatalf("LoadWithIncludes failed: %v", err)
			}
			if v, _ := GetPath(config, "engine.maxUndo"); v != int64(10) {
				t.Errorf("engine.maxUndo = %v, want 10 (main overrides include)", v)
			}
			if v, _ := GetPath(config, "engine.history"); v != false {
				t.Errorf("engine.history = %v, want false (from include)", v)
			}
			if v, _ := GetPath(config, "logging.level"); v != "warn" {
				t.Errorf("logging.level = %v, want warn", v)
			}
			if _, ok := config[includeKey]; ok {
				t.Error("include directive left in result")
			}
		})
	}
}

func TestLoadWithIncludes_DepthExceeded(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/a.toml", `"@include" = ["b.toml"]`)
	memfs.AddFile("/b.toml", `"@include" = ["c.toml"]`)
	memfs.AddFile("/c.toml", `value = 1`)

	l := NewTOMLLoaderWithFS(memfs, "/a.toml")
	if _, err := l.LoadWithIncludes("/a.toml", 2); err == nil || !strings.Contains(err.Error(), "depth exceeded") {
		t.Fatalf("expected depth exceeded error, got: %v", err)
	}

	config, err := l.LoadWithIncludes("/a.toml", 5)
	if err != nil {
		t.Fatalf("expected success with depth 5, got: %v", err)
	}
	if config["value"] != int64(1) {
		t.Errorf("value = %v, want 1", config["value"])
	}
}

func TestDeepMerge(t *testing.T) {
	tests := []struct {
		name string
		dst  map[string]any
		src  map[string]any
		path string
		want any
	}{
		{"nil dst", nil, map[string]any{"a": 1}, "a", 1},
		{"nil src", map[string]any{"a": 1}, nil, "a", 1},
		{"src overrides", map[string]any{"a": 1}, map[string]any{"a": 2}, "a", 2},
		{
			"nested keeps siblings",
			map[string]any{"engine": map[string]any{"maxUndo": 4}},
			map[string]any{"engine": map[string]any{"history": true}},
			"engine.maxUndo", 4,
		},
		{
			"nested override",
			map[string]any{"engine": map[string]any{"maxUndo": 4}},
			map[string]any{"engine": map[string]any{"maxUndo": 2}},
			"engine.maxUndo", 2,
		},
		{
			"scalar replaces map",
			map[string]any{"engine": map[string]any{"maxUndo": 4}},
			map[string]any{"engine": "off"},
			"engine", "off",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GetPath(DeepMerge(tt.dst, tt.src), tt.path)
			if !ok || got != tt.want {
				t.Errorf("%s = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestClone(t *testing.T) {
	original := map[string]any{
		"string": "value",
		"nested": map[string]any{"deep": "data"},
		"array":  []any{"a", map[string]any{"k": "v"}},
	}

	cloned := Clone(original)

	original["string"] = "changed"
	original["nested"].(map[string]any)["deep"] = "modified"
	original["array"].([]any)[0] = "x"
	original["array"].([]any)[1].(map[string]any)["k"] = "w"

	if cloned["string"] != "value" {
		t.Error("clone was affected by original modification")
	}
	if cloned["nested"].(map[string]any)["deep"] != "data" {
		t.Error("nested clone was affected by original modification")
	}
	arr := cloned["array"].([]any)
	if arr[0] != "a" || arr[1].(map[string]any)["k"] != "v" {
		t.Error("array clone was affected by original modification")
	}
	if Clone(nil) != nil {
		t.Error("Clone(nil) should return nil")
	}
}

func TestSetPath(t *testing.T) {
	m := map[string]any{"engine": "scalar"}
	SetPath(m, "engine.maxUndo", int64(3))
	SetPath(m, "top", true)

	if v, ok := GetPath(m, "engine.maxUndo"); !ok || v != int64(3) {
		t.Errorf("engine.maxUndo = %v, want 3", v)
	}
	if v, _ := GetPath(m, "top"); v != true {
		t.Errorf("top = %v, want true", v)
	}
	if _, ok := GetPath(m, ""); ok {
		t.Error("empty path should not resolve")
	}
	if _, ok := GetPath(m, "top.child"); ok {
		t.Error("path through a scalar should not resolve")
	}
}
