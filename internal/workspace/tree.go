package workspace

import (
	"github.com/codefionn/codebridge/internal/fs"
)

// Tree is an immutable snapshot of the workspace directory.
type Tree struct {
	Root  string        `json:"root"`
	Nodes []*fs.FileNode `json:"nodes"`
}

// Find returns the node with the given absolute path.
func (t *Tree) Find(path string) *fs.FileNode {
	if t == nil {
		return nil
	}
	var found *fs.FileNode
	fs.Walk(t.Nodes, func(n *fs.FileNode) bool {
		if n.Path == path {
			found = n
			return false
		}
		return true
	})
	return found
}

// Files returns the paths of all file nodes in display order.
func (t *Tree) Files() []string {
	if t == nil {
		return nil
	}
	var files []string
	fs.Walk(t.Nodes, func(n *fs.FileNode) bool {
		if !n.IsDir() {
			files = append(files, n.Path)
		}
		return true
	})
	return files
}
