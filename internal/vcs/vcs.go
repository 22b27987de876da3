// Package vcs provides the version control gateway used by the workspace:
// working-tree status and per-file diffs against the last commit.
package vcs

import (
	"context"
	"errors"
	"fmt"
)

// VCS represents a version control system.
type VCS interface {
	// RepositoryRoot returns the root directory of the repository containing
	// dir. Returns an error wrapping ErrNotRepository outside a repository.
	RepositoryRoot(ctx context.Context, dir string) (string, error)

	// Status reports the working tree state of the repository containing
	// repoPath. Paths are relative to the repository root, slash separated.
	Status(ctx context.Context, repoPath string) (Status, error)

	// Diff returns the unified diff of path (relative to the repository root)
	// against the last commit.
	Diff(ctx context.Context, repoPath, path string) (string, error)

	// CurrentBranch returns the checked out branch, or "" on a detached HEAD.
	CurrentBranch(ctx context.Context, repoPath string) (string, error)
}

// ErrNotRepository is wrapped by errors for paths outside any repository.
var ErrNotRepository = errors.New("not a repository")

// Error is returned for failed VCS operations.
type Error struct {
	Op     string
	Repo   string
	Err    error
	Output string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("vcs %s in %s: %v", e.Op, e.Repo, e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Status is a point-in-time snapshot of the working tree. A path may appear
// in more than one category (e.g. staged and modified again afterwards).
type Status struct {
	// Available is false when the workspace is not under version control or
	// the status could not be read.
	Available  bool     `json:"available"`
	Branch     string   `json:"branch,omitempty"`
	Modified   []string `json:"modified"`
	Staged     []string `json:"staged"`
	Untracked  []string `json:"untracked"`
	Deleted    []string `json:"deleted"`
	Conflicted []string `json:"conflicted"`
}

// Empty returns the status reported for workspaces without version control.
func Empty() Status {
	return Status{
		Modified:   []string{},
		Staged:     []string{},
		Untracked:  []string{},
		Deleted:    []string{},
		Conflicted: []string{},
	}
}

// Contains reports whether path is listed in any category.
func (s Status) Contains(path string) bool {
	for _, list := range [][]string{s.Modified, s.Staged, s.Untracked, s.Deleted, s.Conflicted} {
		for _, p := range list {
			if p == path {
				return true
			}
		}
	}
	return false
}

// IsUntracked reports whether path is an untracked file.
func (s Status) IsUntracked(path string) bool {
	for _, p := range s.Untracked {
		if p == path {
			return true
		}
	}
	return false
}

// Paths returns every listed path once, in category order.
func (s Status) Paths() []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{s.Conflicted, s.Modified, s.Staged, s.Deleted, s.Untracked} {
		for _, p := range list {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// Clean reports whether nothing is changed.
func (s Status) Clean() bool {
	return len(s.Paths()) == 0
}
