// Package fs is the filesystem gateway of the workspace: it lists directory
// trees and reads/writes file bytes. Listing failures degrade to empty
// results; read and write failures are returned as typed errors.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/codefionn/codebridge/internal/logger"
)

// Kind discriminates FileNode variants.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// FileNode is one entry of a tree snapshot. Children is only populated for
// directories and is a complete listing at scan time.
type FileNode struct {
	Kind     Kind        `json:"kind"`
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Children []*FileNode `json:"children,omitempty"`
}

// IsDir reports whether the node is a directory.
func (n *FileNode) IsDir() bool {
	return n.Kind == KindDirectory
}

// FileSystem is the narrow gateway the workspace model depends on.
type FileSystem interface {
	// ListTree recursively lists root. A root that cannot be read yields no
	// nodes and a *ListingError; unreadable subdirectories yield empty children.
	ListTree(ctx context.Context, root string) ([]*FileNode, error)
	// ReadFile returns the file contents or a *ReadError.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// WriteFile replaces the file contents or returns a *WriteError.
	WriteFile(ctx context.Context, path string, data []byte) error
}

// ListingError reports a directory that could not be listed.
type ListingError struct {
	Path string
	Err  error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("list %s: %v", e.Path, e.Err)
}

func (e *ListingError) Unwrap() error { return e.Err }

// ReadError reports a file that could not be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a file that could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// OSFS implements FileSystem on the local disk.
type OSFS struct {
	respectGitignore bool
	log              *logger.Logger
}

// NewOSFS creates a disk-backed gateway. With respectGitignore set, entries
// matched by .gitignore files inside the scanned root are left out of trees.
// The .git directory is always skipped.
func NewOSFS(respectGitignore bool) *OSFS {
	return &OSFS{
		respectGitignore: respectGitignore,
		log:              logger.Global().WithPrefix("fs"),
	}
}

func (o *OSFS) ListTree(ctx context.Context, root string) ([]*FileNode, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &ListingError{Path: root, Err: err}
	}

	var chain []*gitignoreMatcher
	if o.respectGitignore {
		chain = appendGitignore(chain, absRoot)
	}

	entries, err := os.ReadDir(absRoot)
	if err != nil {
		return nil, &ListingError{Path: absRoot, Err: err}
	}

	return o.buildNodes(ctx, absRoot, entries, chain), nil
}

func (o *OSFS) listDir(ctx context.Context, dir string, chain []*gitignoreMatcher) []*FileNode {
	if ctx.Err() != nil {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		o.log.Warn("skipping unreadable directory %s: %v", dir, err)
		return nil
	}

	if o.respectGitignore {
		chain = appendGitignore(chain, dir)
	}
	return o.buildNodes(ctx, dir, entries, chain)
}

func (o *OSFS) buildNodes(ctx context.Context, dir string, entries []os.DirEntry, chain []*gitignoreMatcher) []*FileNode {
	nodes := make([]*FileNode, 0, len(entries))
	for _, entry := range entries {
		if entry.Name() == ".git" {
			continue
		}

		full := filepath.Join(dir, entry.Name())
		isDir := entry.IsDir()
		if ignoredByChain(chain, full, isDir) {
			continue
		}

		node := &FileNode{Kind: KindFile, Name: entry.Name(), Path: full}
		if isDir {
			node.Kind = KindDirectory
			node.Children = o.listDir(ctx, full, chain)
			if node.Children == nil {
				node.Children = []*FileNode{}
			}
		}
		nodes = append(nodes, node)
	}

	SortNodes(nodes)
	return nodes
}

func (o *OSFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	return data, nil
}

// WriteFile writes through a temporary file in the target directory and
// renames it over the original, keeping the original permissions.
func (o *OSFS) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	perm := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return &WriteError{Path: path, Err: fmt.Errorf("is a directory")}
		}
		perm = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	cleanup := func(cause error) error {
		tmp.Close()
		os.Remove(tmpName)
		return &WriteError{Path: path, Err: cause}
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}

	o.log.Debug("wrote %d bytes to %s", len(data), path)
	return nil
}

// SortNodes orders directories before files, each group by name.
func SortNodes(nodes []*FileNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Kind != nodes[j].Kind {
			return nodes[i].Kind == KindDirectory
		}
		return nodes[i].Name < nodes[j].Name
	})
}

// Walk visits every node depth first, stopping early when fn returns false.
func Walk(nodes []*FileNode, fn func(*FileNode) bool) bool {
	for _, n := range nodes {
		if !fn(n) {
			return false
		}
		if n.IsDir() && !Walk(n.Children, fn) {
			return false
		}
	}
	return true
}
