package app

import (
	"errors"
	"slices"
	"testing"

	"github.com/dshills/hexstorm/internal/engine"
)

func newDoc(t *testing.T, path string) *Document {
	t.Helper()
	eng := engine.New()
	t.Cleanup(func() { eng.Close() })
	return NewDocument(path, eng)
}

func TestDocumentManager(t *testing.T) {
	dm := NewDocumentManager()
	a := newDoc(t, "/data/a.bin")
	b := newDoc(t, "/data/b.bin")

	if !dm.Add(a) || !dm.Add(b) {
		t.Fatal("Add refused a new document")
	}
	if dm.Add(newDoc(t, "/data/a.bin")) {
		t.Error("Add accepted a duplicate path")
	}
	if dm.Count() != 2 {
		t.Errorf("Count = %d", dm.Count())
	}
	if got := dm.All(); len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("All = %v", got)
	}

	if err := dm.Rename("/data/a.bin", "/data/c.bin"); err != nil {
		t.Fatal(err)
	}
	if got, ok := dm.Get("/data/c.bin"); !ok || got != a {
		t.Error("renamed document not found")
	}
	if got := dm.All(); got[0] != a {
		t.Error("rename changed open order")
	}

	if err := dm.Remove("/data/b.bin"); err != nil {
		t.Fatal(err)
	}
	if err := dm.Remove("/data/b.bin"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("second Remove error = %v", err)
	}
	if err := dm.Rename("/data/x.bin", "/data/y.bin"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("Rename of unknown error = %v", err)
	}
}

func TestDirtyDocuments(t *testing.T) {
	dm := NewDocumentManager()
	a := newDoc(t, "/a")
	b := newDoc(t, "/b")
	dm.Add(a)
	dm.Add(b)
	if dm.HasDirty() {
		t.Error("fresh documents dirty")
	}
	if err := b.Engine.Insert([]byte("x"), 0); err != nil {
		t.Fatal(err)
	}
	if got := dm.DirtyDocuments(); len(got) != 1 || got[0] != b {
		t.Errorf("DirtyDocuments = %v", got)
	}
}

func TestReconcile(t *testing.T) {
	d := newDoc(t, "/a")
	added, removed := d.reconcile([]string{"/a", "/b"})
	if !slices.Equal(added, []string{"/a", "/b"}) || removed != nil {
		t.Errorf("first reconcile = %v, %v", added, removed)
	}
	added, removed = d.reconcile([]string{"/a", "/c"})
	if !slices.Equal(added, []string{"/c"}) || !slices.Equal(removed, []string{"/b"}) {
		t.Errorf("second reconcile = %v, %v", added, removed)
	}
	if !d.usesFile("/c") || d.usesFile("/b") {
		t.Errorf("Watched = %v", d.Watched())
	}
}
