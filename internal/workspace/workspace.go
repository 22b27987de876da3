// Package workspace holds the editor session model: the file tree of the
// workspace root, the open documents with their dirty state, the active
// document and the last known version control status.
package workspace

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/codefionn/codebridge/internal/diffview"
	"github.com/codefionn/codebridge/internal/fs"
	"github.com/codefionn/codebridge/internal/logger"
	"github.com/codefionn/codebridge/internal/vcs"
)

var (
	// ErrSuperseded is returned by OpenFolder when a newer OpenFolder call
	// started before this one finished, and by Watch once another folder was
	// opened. The stale result was discarded.
	ErrSuperseded = errors.New("folder scan superseded by a newer scan")

	// ErrNoActiveDocument is returned by SaveActive when no document is active.
	ErrNoActiveDocument = errors.New("no active document")

	// ErrNoFolder is returned by operations that need an opened folder.
	ErrNoFolder = errors.New("no folder opened")
)

// Workspace is the session model. All methods are safe for concurrent use;
// gateway calls run without holding the lock.
type Workspace struct {
	fs  fs.FileSystem
	vcs vcs.VCS
	log *logger.Logger

	mu         sync.Mutex
	generation uint64
	root       string
	repoRoot   string
	tree       *Tree
	status     vcs.Status

	docs   map[string]*Document
	order  []string
	active string
}

// New creates an empty workspace. gw may be nil, in which case the status is
// always empty.
func New(fsys fs.FileSystem, gw vcs.VCS) *Workspace {
	return &Workspace{
		fs:     fsys,
		vcs:    gw,
		log:    logger.Global().WithPrefix("workspace"),
		tree:   &Tree{Nodes: []*fs.FileNode{}},
		status: vcs.Empty(),
		docs:   make(map[string]*Document),
	}
}

// OpenFolder scans root and replaces the tree and status wholesale. An
// unreadable root yields an empty tree without error.
func (w *Workspace) OpenFolder(ctx context.Context, root string) (*Tree, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.generation++
	gen := w.generation
	w.mu.Unlock()

	return w.scan(ctx, root, gen)
}

// rescan re-reads root on behalf of a watcher started at generation gen. It
// never bumps the generation, so an OpenFolder issued since always wins.
func (w *Workspace) rescan(ctx context.Context, root string, gen uint64) (*Tree, error) {
	w.mu.Lock()
	current := w.root == root && w.generation == gen
	w.mu.Unlock()
	if !current {
		return nil, ErrSuperseded
	}
	return w.scan(ctx, root, gen)
}

// scan lists root and commits the result if gen is still the current
// generation.
func (w *Workspace) scan(ctx context.Context, root string, gen uint64) (*Tree, error) {
	nodes, err := w.fs.ListTree(ctx, root)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		w.log.Warn("listing %s failed: %v", root, err)
		nodes = []*fs.FileNode{}
	}
	tree := &Tree{Root: root, Nodes: nodes}

	repoRoot, status := w.loadStatus(ctx, root)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation {
		w.log.Debug("discarding superseded scan of %s", root)
		return nil, ErrSuperseded
	}
	w.root = root
	w.repoRoot = repoRoot
	w.tree = tree
	w.status = status
	w.log.Info("opened folder %s (%d files)", root, len(tree.Files()))
	return tree, nil
}

// loadStatus never fails: anything short of a readable repository status is
// reported as the empty, unavailable status.
func (w *Workspace) loadStatus(ctx context.Context, root string) (string, vcs.Status) {
	if w.vcs == nil {
		return "", vcs.Empty()
	}

	repoRoot, err := w.vcs.RepositoryRoot(ctx, root)
	if err != nil {
		w.log.Debug("%s is not under version control: %v", root, err)
		return "", vcs.Empty()
	}

	status, err := w.vcs.Status(ctx, repoRoot)
	if err != nil {
		w.log.Warn("status of %s failed: %v", repoRoot, err)
		return repoRoot, vcs.Empty()
	}
	status.Available = true
	return repoRoot, status
}

// RefreshStatus re-reads the version control status of the current root.
func (w *Workspace) RefreshStatus(ctx context.Context) vcs.Status {
	w.mu.Lock()
	root, gen := w.root, w.generation
	w.mu.Unlock()
	if root == "" {
		return vcs.Empty()
	}

	repoRoot, status := w.loadStatus(ctx, root)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen == w.generation {
		w.repoRoot = repoRoot
		w.status = status
	}
	return w.status
}

// Diff loads the diff view of path, which is relative to the repository root
// as listed in the status.
func (w *Workspace) Diff(ctx context.Context, path string) (*diffview.View, error) {
	w.mu.Lock()
	repoRoot, status := w.repoRoot, w.status
	w.mu.Unlock()

	if w.vcs == nil || !status.Available {
		return nil, diffview.ErrNotInStatus
	}
	return diffview.Load(ctx, w.vcs, repoRoot, status, path)
}

// resolve makes path absolute, relative paths being taken from the root.
func (w *Workspace) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	w.mu.Lock()
	root := w.root
	w.mu.Unlock()
	if root == "" {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
	}
	return filepath.Join(root, path)
}

// OpenFile opens path as a document and makes it active. A path that is
// already open is activated without reading it again.
func (w *Workspace) OpenFile(ctx context.Context, path string) (*Document, error) {
	path = w.resolve(path)

	w.mu.Lock()
	if doc, ok := w.docs[path]; ok {
		w.active = path
		w.mu.Unlock()
		return doc, nil
	}
	w.mu.Unlock()

	data, err := w.fs.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	// opened concurrently while we were reading
	if doc, ok := w.docs[path]; ok {
		w.active = path
		return doc, nil
	}

	doc := newDocument(path, data)
	w.docs[path] = doc
	w.order = append(w.order, path)
	w.active = path
	w.log.Debug("opened %s (%d bytes)", path, len(data))
	return doc, nil
}

// EditActive replaces the content of the active document. Without an active
// document it does nothing.
func (w *Workspace) EditActive(content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if doc := w.docs[w.active]; doc != nil {
		doc.edit(content)
	}
}

// SaveActive writes the active document. The dirty flag is cleared only after
// the write succeeded; a failed write returns the *fs.WriteError.
func (w *Workspace) SaveActive(ctx context.Context) error {
	w.mu.Lock()
	doc := w.docs[w.active]
	w.mu.Unlock()
	if doc == nil {
		return ErrNoActiveDocument
	}

	content := doc.Content()
	if err := w.fs.WriteFile(ctx, doc.path, []byte(content)); err != nil {
		w.log.Error("saving %s failed: %v", doc.path, err)
		return err
	}
	doc.saved(content)
	w.log.Info("saved %s", doc.path)
	return nil
}

// ReloadDocument replaces the content of an open document with what is on
// disk, discarding unsaved edits.
func (w *Workspace) ReloadDocument(ctx context.Context, path string) error {
	path = w.resolve(path)

	w.mu.Lock()
	doc := w.docs[path]
	w.mu.Unlock()
	if doc == nil {
		return nil
	}

	data, err := w.fs.ReadFile(ctx, path)
	if err != nil {
		return err
	}
	doc.reload(data)
	return nil
}

// CloseDocument closes the document for path. Closing the active document
// leaves no document active. Reports whether a document was closed.
func (w *Workspace) CloseDocument(path string) bool {
	path = w.resolve(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.docs[path]; !ok {
		return false
	}
	delete(w.docs, path)
	for i, p := range w.order {
		if p == path {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	if w.active == path {
		w.active = ""
	}
	return true
}

// SetActive activates an open document. Reports false if path is not open.
func (w *Workspace) SetActive(path string) bool {
	path = w.resolve(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.docs[path]; !ok {
		return false
	}
	w.active = path
	return true
}

// Root returns the opened folder, or "" before OpenFolder.
func (w *Workspace) Root() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.root
}

// RepositoryRoot returns the root of the repository containing the folder,
// or "" when it is not under version control.
func (w *Workspace) RepositoryRoot() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.repoRoot
}

// Tree returns the current snapshot. It is never nil.
func (w *Workspace) Tree() *Tree {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tree
}

// Status returns the last loaded version control status.
func (w *Workspace) Status() vcs.Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Active returns the active document, or nil.
func (w *Workspace) Active() *Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.docs[w.active]
}

// Documents returns the open documents in the order they were opened.
func (w *Workspace) Documents() []*Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	docs := make([]*Document, 0, len(w.order))
	for _, p := range w.order {
		docs = append(docs, w.docs[p])
	}
	return docs
}

// Document returns the open document for path.
func (w *Workspace) Document(path string) (*Document, bool) {
	path = w.resolve(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	doc, ok := w.docs[path]
	return doc, ok
}
