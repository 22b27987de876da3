package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MockFS is an in-memory FileSystem for tests. Paths are used verbatim as
// keys; directories are implied by the files below them plus explicit MkdirAll.
type MockFS struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool

	// ReadErrors and WriteErrors inject failures for specific paths.
	ReadErrors  map[string]error
	WriteErrors map[string]error
	// ListErrors inject failures for specific directories.
	ListErrors map[string]error

	reads  map[string]int
	writes map[string]int
}

// NewMockFS creates an empty mock filesystem.
func NewMockFS() *MockFS {
	return &MockFS{
		files:       make(map[string][]byte),
		dirs:        make(map[string]bool),
		ReadErrors:  make(map[string]error),
		WriteErrors: make(map[string]error),
		ListErrors:  make(map[string]error),
		reads:       make(map[string]int),
		writes:      make(map[string]int),
	}
}

// AddFile seeds a file and its parent directories.
func (m *MockFS) AddFile(path string, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(path, []byte(content))
}

// MkdirAll records an (possibly empty) directory.
func (m *MockFS) MkdirAll(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for dir := filepath.Clean(path); dir != "." && dir != "/" && dir != ""; dir = filepath.Dir(dir) {
		m.dirs[dir] = true
	}
}

func (m *MockFS) putLocked(path string, data []byte) {
	m.files[path] = data
	for dir := filepath.Dir(path); dir != "." && dir != "/" && dir != ""; dir = filepath.Dir(dir) {
		m.dirs[dir] = true
	}
}

// Content returns the stored bytes of path.
func (m *MockFS) Content(path string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path]
	return string(data), ok
}

// Reads returns how often ReadFile was called for path.
func (m *MockFS) Reads(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reads[path]
}

// Writes returns how often WriteFile was called for path.
func (m *MockFS) Writes(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes[path]
}

func (m *MockFS) ListTree(ctx context.Context, root string) ([]*FileNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	root = filepath.Clean(root)
	if err := m.ListErrors[root]; err != nil {
		return nil, &ListingError{Path: root, Err: err}
	}
	if !m.dirs[root] {
		return nil, &ListingError{Path: root, Err: os.ErrNotExist}
	}
	return m.childrenLocked(root), nil
}

func (m *MockFS) childrenLocked(dir string) []*FileNode {
	if m.ListErrors[dir] != nil {
		return []*FileNode{}
	}

	prefix := dir + string(filepath.Separator)
	seen := make(map[string]bool)
	nodes := []*FileNode{}

	add := func(p string, isDir bool) {
		rel := strings.TrimPrefix(p, prefix)
		name := strings.SplitN(rel, string(filepath.Separator), 2)[0]
		full := filepath.Join(dir, name)
		if seen[full] {
			return
		}
		seen[full] = true
		if isDir || strings.Contains(rel, string(filepath.Separator)) {
			nodes = append(nodes, &FileNode{
				Kind:     KindDirectory,
				Name:     name,
				Path:     full,
				Children: m.childrenLocked(full),
			})
			return
		}
		nodes = append(nodes, &FileNode{Kind: KindFile, Name: name, Path: full})
	}

	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			add(p, false)
		}
	}
	for d := range m.dirs {
		if strings.HasPrefix(d, prefix) {
			add(d, true)
		}
	}

	SortNodes(nodes)
	return nodes
}

func (m *MockFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reads[path]++
	if err := m.ReadErrors[path]; err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	data, ok := m.files[path]
	if !ok {
		return nil, &ReadError{Path: path, Err: os.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (m *MockFS) WriteFile(ctx context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writes[path]++
	if err := m.WriteErrors[path]; err != nil {
		return &WriteError{Path: path, Err: err}
	}
	m.putLocked(path, append([]byte(nil), data...))
	return nil
}
