package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

// execute runs the CLI with args and returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HEXSTORM_WATCH_ENABLED", "false")
	cfg := filepath.Join(t.TempDir(), "none.toml")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfg, "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestDump(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.bin", "hello, world")
	out, err := execute(t, "dump", path, "--offset", "7", "--length", "5", "--color", "never")
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	want := "00000007  77 6f 72 6c 64                                    |world|\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestDumpWithPatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.bin", "abcd")
	ops := writeFile(t, dir, "p.json", `[{"op":"overwrite","at":1,"text":"B"}]`)
	out, err := execute(t, "dump", path, "--patch", ops, "--color", "always")
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(out, "\x1b[1;31m42\x1b[0m") {
		t.Errorf("patched byte not highlighted: %q", out)
	}
	if got := readFile(t, path); got != "abcd" {
		t.Errorf("dump wrote the file: %q", got)
	}
}

func TestDumpErrors(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.bin", "abcd")
	tests := [][]string{
		{"dump", path, "--color", "sometimes"},
		{"dump", path, "--charset", "UTF-8"},
		{"dump", path, "--width", "0"},
		{"dump", path, "--highlight", "#zz"},
		{"dump", filepath.Join(t.TempDir(), "missing.bin")},
		{"dump"},
	}
	for _, args := range tests {
		if _, err := execute(t, args...); err == nil {
			t.Errorf("%v succeeded", args)
		}
	}
}

func TestPatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.bin", "hello")
	ops := writeFile(t, dir, "p.json", `{"ops":[{"op":"overwrite","at":0,"hex":"4a"},{"op":"insert","at":5,"text":"!"}]}`)

	out, err := execute(t, "patch", path, "--ops", ops, "--report")
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if got := readFile(t, path); got != "Jello!" {
		t.Errorf("file = %q", got)
	}
	doc := gjson.Parse(out)
	if doc.Get("applied").Int() != 2 || doc.Get("modified.#").Int() != 2 || !doc.Get("dirty").Bool() {
		t.Errorf("report = %s", out)
	}
}

func TestPatchOutputAndDryRun(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.bin", "hello")
	ops := writeFile(t, dir, "p.json", `[{"op":"delete","at":0,"length":1}]`)
	target := filepath.Join(dir, "b.bin")

	if _, err := execute(t, "patch", path, "--ops", ops, "-o", target); err != nil {
		t.Fatalf("patch -o: %v", err)
	}
	if got := readFile(t, target); got != "ello" {
		t.Errorf("output = %q", got)
	}
	if got := readFile(t, path); got != "hello" {
		t.Errorf("source changed to %q", got)
	}

	if _, err := execute(t, "patch", path, "--ops", ops, "--dry-run"); err != nil {
		t.Fatalf("patch --dry-run: %v", err)
	}
	if got := readFile(t, path); got != "hello" {
		t.Errorf("dry run wrote %q", got)
	}
}

func TestPatchFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.bin", "hello")
	ops := writeFile(t, dir, "p.json", `[{"op":"delete","at":0,"length":1},{"op":"redo"}]`)

	_, err := execute(t, "patch", path, "--ops", ops)
	if err == nil || !strings.Contains(err.Error(), "op 1 (redo)") {
		t.Fatalf("patch error = %v", err)
	}
	if got := readFile(t, path); got != "hello" {
		t.Errorf("failed patch wrote %q", got)
	}

	if _, err := execute(t, "patch", path); err == nil {
		t.Error("patch without --ops succeeded")
	}
}

func TestScript(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.bin", "\x7fELF\x01")
	lua := writeFile(t, dir, "s.lua", `
		local at = content.find("ELF")
		content.overwrite_byte(at + 3, 2)
		print("patched", at)
	`)

	out, err := execute(t, "script", path, lua)
	if err != nil {
		t.Fatalf("script: %v", err)
	}
	if out != "patched\t1\n" {
		t.Errorf("output = %q", out)
	}
	if got := readFile(t, path); got != "\x7fELF\x02" {
		t.Errorf("file = %q", got)
	}
}

func TestScriptError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.bin", "abc")
	lua := writeFile(t, dir, "s.lua", `content.overwrite(0, "X") error("stop")`)
	if _, err := execute(t, "script", path, lua); err == nil {
		t.Fatal("failing script succeeded")
	}
	if got := readFile(t, path); got != "abc" {
		t.Errorf("failing script wrote %q", got)
	}
}

func TestInfo(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.bin", "abcdef")

	out, err := execute(t, "info", path)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"size:", "6 (0x6)", "0 undo, 0 redo", "(defaults)", "watch:", "false"} {
		if !strings.Contains(out, want) {
			t.Errorf("info output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "info", path, "--json")
	if err != nil {
		t.Fatalf("info --json: %v", err)
	}
	if doc := gjson.Parse(out); doc.Get("length").Int() != 6 || doc.Get("dirty").Bool() {
		t.Errorf("info --json = %s", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil || !strings.HasPrefix(out, "hexstorm dev") {
		t.Errorf("version = %q, %v", out, err)
	}
}
