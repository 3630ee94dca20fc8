package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newWatcher(t *testing.T, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(opts...)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func tempFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// waitFor drains events until one for path carries op.
func waitFor(t *testing.T, w *Watcher, path string, op Op) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Path == path && ev.Op.Has(op) {
				return ev
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s on %s", op, path)
			return Event{}
		}
	}
}

func TestOp_String(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
		{OpChmod, "CHMOD"},
		{OpWrite | OpChmod, "WRITE|CHMOD"},
		{0, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestOp_Has(t *testing.T) {
	op := OpCreate | OpWrite
	if !op.Has(OpCreate) || !op.Has(OpWrite) {
		t.Error("combined op should have both parts")
	}
	if op.Has(OpRemove) {
		t.Error("op should not have OpRemove")
	}
}

func TestWatchUnwatch(t *testing.T) {
	w := newWatcher(t)
	dir := t.TempDir()
	a := tempFile(t, dir, "a.bin", "a")
	b := tempFile(t, dir, "b.bin", "b")

	for _, p := range []string{a, a, b} {
		if err := w.Watch(p); err != nil {
			t.Fatalf("Watch(%s) error = %v", p, err)
		}
	}
	if got := w.WatchedFiles(); len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("WatchedFiles() = %v", got)
	}

	// a was watched twice.
	if err := w.Unwatch(a); err != nil {
		t.Fatalf("Unwatch error = %v", err)
	}
	if !w.IsWatching(a) {
		t.Error("a should still be watched after one Unwatch")
	}
	if err := w.Unwatch(a); err != nil {
		t.Fatalf("Unwatch error = %v", err)
	}
	if w.IsWatching(a) {
		t.Error("a should not be watched")
	}
	if err := w.Unwatch(a); !errors.Is(err, ErrNotWatching) {
		t.Errorf("Unwatch again error = %v, want ErrNotWatching", err)
	}
	if err := w.Unwatch(b); err != nil {
		t.Errorf("Unwatch(b) error = %v", err)
	}
}

func TestWatchNonexistent(t *testing.T) {
	w := newWatcher(t)
	err := w.Watch(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrPathNotExist) {
		t.Errorf("Watch error = %v, want ErrPathNotExist", err)
	}
}

func TestClose(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatal(err)
	}
	path := tempFile(t, t.TempDir(), "f", "x")

	if err := w.Close(); err != nil {
		t.Errorf("Close error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close error = %v", err)
	}
	if err := w.Watch(path); !errors.Is(err, ErrWatcherClosed) {
		t.Errorf("Watch after close error = %v, want ErrWatcherClosed", err)
	}
	if _, ok := <-w.Events(); ok {
		t.Error("events channel should be closed")
	}
}

func TestFileEvents(t *testing.T) {
	w := newWatcher(t)
	dir := t.TempDir()
	path := tempFile(t, dir, "data.bin", "hello")
	other := tempFile(t, dir, "other.bin", "x")

	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch error = %v", err)
	}

	// Changes to unwatched siblings are filtered out.
	if err := os.WriteFile(other, []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(" world")
	f.Close()

	ev := waitFor(t, w, path, OpWrite)
	if ev.Timestamp.IsZero() {
		t.Error("event has no timestamp")
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, w, path, OpRemove)

	for {
		select {
		case ev := <-w.Events():
			if ev.Path == other {
				t.Errorf("got event for unwatched file: %v", ev)
			}
			continue
		default:
		}
		break
	}
}

func TestReplaceByRename(t *testing.T) {
	w := newWatcher(t)
	dir := t.TempDir()
	path := tempFile(t, dir, "data.bin", "old")
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	tmp := tempFile(t, dir, ".data.bin.tmp", "new")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, w, path, OpCreate)
}

func TestRunDebounce(t *testing.T) {
	w := newWatcher(t, WithDebounceDelay(50*time.Millisecond))
	path := tempFile(t, t.TempDir(), "data.bin", "a")
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got []Event
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(ev Event) {
			mu.Lock()
			got = append(got, ev)
			mu.Unlock()
		})
	}()

	for i := 0; i < 5; i++ {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			t.Fatal(err)
		}
		f.WriteString("b")
		f.Close()
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 {
		t.Fatal("no events delivered")
	}
	if len(got) >= 5 {
		t.Errorf("got %d events, want writes merged", len(got))
	}
	if !got[0].Op.Has(OpWrite) || got[0].Path != path {
		t.Errorf("first event = %+v", got[0])
	}
}

func TestRunStopsOnClose(t *testing.T) {
	w, err := New(WithDebounceDelay(0))
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), func(Event) {}) }()

	w.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
