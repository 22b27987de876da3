package workspace

import (
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Document is an open, possibly edited, in-memory copy of one file. Only the
// Workspace mutates it; the getters are safe for concurrent use.
type Document struct {
	path string

	mu            sync.RWMutex
	content       string
	dirty         bool
	loadedSum     uint64
	changedOnDisk bool
}

func newDocument(path string, content []byte) *Document {
	return &Document{
		path:      path,
		content:   string(content),
		loadedSum: xxhash.Sum64(content),
	}
}

// Path is the absolute path identifying the document.
func (d *Document) Path() string { return d.path }

// Label is the display name shown on the tab.
func (d *Document) Label() string { return filepath.Base(d.path) }

// Content returns the current in-memory text.
func (d *Document) Content() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.content
}

// IsDirty reports unsaved edits.
func (d *Document) IsDirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dirty
}

// ChangedOnDisk reports that the file was modified by someone else after it
// was loaded or saved.
func (d *Document) ChangedOnDisk() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.changedOnDisk
}

func (d *Document) edit(content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.content = content
	d.dirty = true
}

// saved clears dirty only if the content still equals what was written.
func (d *Document) saved(written string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loadedSum = xxhash.Sum64String(written)
	d.changedOnDisk = false
	if d.content == written {
		d.dirty = false
	}
}

func (d *Document) reload(content []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.content = string(content)
	d.loadedSum = xxhash.Sum64(content)
	d.dirty = false
	d.changedOnDisk = false
}

// compareDisk flags the document when onDisk differs from the loaded bytes.
// Dirty documents are left alone. Returns the new flag.
func (d *Document) compareDisk(onDisk []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dirty {
		return d.changedOnDisk
	}
	d.changedOnDisk = xxhash.Sum64(onDisk) != d.loadedSum
	return d.changedOnDisk
}
