package app

import (
	"path/filepath"
	"slices"
	"sync"

	"github.com/dshills/hexstorm/internal/engine"
)

// Document is an open file and the engine editing it.
type Document struct {
	// Path is the absolute file path.
	Path string

	// Name is the display name.
	Name string

	// Engine holds the content.
	Engine *engine.Engine

	// ReadOnly indicates the document cannot be saved.
	ReadOnly bool

	mu      sync.Mutex
	watched []string
	onEdit  engine.ListenerID
}

// NewDocument wraps an engine opened from path.
func NewDocument(path string, eng *engine.Engine) *Document {
	return &Document{
		Path:   path,
		Name:   filepath.Base(path),
		Engine: eng,
	}
}

// IsModified returns true if the document has unsaved changes.
func (d *Document) IsModified() bool {
	return d.Engine.IsDirty()
}

// Watched returns the backing files the document is registered for.
func (d *Document) Watched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.watched)
}

// reconcile replaces the watched set with files and returns the paths
// that were added and removed.
func (d *Document) reconcile(files []string) (added, removed []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range files {
		if !slices.Contains(d.watched, f) {
			added = append(added, f)
		}
	}
	for _, f := range d.watched {
		if !slices.Contains(files, f) {
			removed = append(removed, f)
		}
	}
	d.watched = slices.Clone(files)
	return added, removed
}

// usesFile reports whether path is one of the document's backing files.
func (d *Document) usesFile(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Contains(d.watched, path)
}

// DocumentManager manages all open documents.
type DocumentManager struct {
	mu        sync.RWMutex
	documents map[string]*Document // path -> document
	order     []string             // tracks open order
}

// NewDocumentManager creates a new document manager.
func NewDocumentManager() *DocumentManager {
	return &DocumentManager{
		documents: make(map[string]*Document),
	}
}

// Add registers doc. It returns false if a document with the same path is
// already open.
func (dm *DocumentManager) Add(doc *Document) bool {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if _, exists := dm.documents[doc.Path]; exists {
		return false
	}
	dm.documents[doc.Path] = doc
	dm.order = append(dm.order, doc.Path)
	return true
}

// Remove unregisters the document at path.
func (dm *DocumentManager) Remove(path string) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if _, exists := dm.documents[path]; !exists {
		return ErrDocumentNotFound
	}
	delete(dm.documents, path)
	if i := slices.Index(dm.order, path); i >= 0 {
		dm.order = slices.Delete(dm.order, i, i+1)
	}
	return nil
}

// Rename moves the document at from to to.
func (dm *DocumentManager) Rename(from, to string) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	doc, exists := dm.documents[from]
	if !exists {
		return ErrDocumentNotFound
	}
	delete(dm.documents, from)
	dm.documents[to] = doc
	if i := slices.Index(dm.order, from); i >= 0 {
		dm.order[i] = to
	}
	return nil
}

// Get returns a document by path.
func (dm *DocumentManager) Get(path string) (*Document, bool) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	doc, exists := dm.documents[path]
	return doc, exists
}

// All returns all open documents in open order.
func (dm *DocumentManager) All() []*Document {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	docs := make([]*Document, 0, len(dm.order))
	for _, path := range dm.order {
		docs = append(docs, dm.documents[path])
	}
	return docs
}

// Count returns the number of open documents.
func (dm *DocumentManager) Count() int {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return len(dm.documents)
}

// DirtyDocuments returns all documents with unsaved changes.
func (dm *DocumentManager) DirtyDocuments() []*Document {
	var dirty []*Document
	for _, doc := range dm.All() {
		if doc.IsModified() {
			dirty = append(dirty, doc)
		}
	}
	return dirty
}

// HasDirty returns true if any document has unsaved changes.
func (dm *DocumentManager) HasDirty() bool {
	return len(dm.DirtyDocuments()) > 0
}
