package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Git implements the VCS interface by shelling out to the git binary.
type Git struct {
	binary string

	// rootCache maps a directory to its repository root
	rootCache map[string]string
	rootMu    sync.RWMutex
}

// NewGit creates a new Git VCS instance.
func NewGit() *Git {
	return &Git{
		binary:    "git",
		rootCache: make(map[string]string),
	}
}

func (g *Git) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, g.binary, append([]string{"-C", dir}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, &Error{Op: args[0], Repo: dir, Err: err, Output: strings.TrimSpace(stderr.String())}
	}
	return out, nil
}

// RepositoryRoot returns the root directory of the Git repository
// containing dir. Results are cached per directory.
func (g *Git) RepositoryRoot(ctx context.Context, dir string) (string, error) {
	g.rootMu.RLock()
	root, ok := g.rootCache[dir]
	g.rootMu.RUnlock()
	if ok {
		return root, nil
	}

	out, err := g.run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		var vErr *Error
		if errors.As(err, &vErr) {
			vErr.Err = fmt.Errorf("%w: %v", ErrNotRepository, vErr.Err)
		}
		return "", err
	}

	root = filepath.Clean(strings.TrimSpace(string(out)))
	g.rootMu.Lock()
	g.rootCache[dir] = root
	g.rootMu.Unlock()
	return root, nil
}

// Status runs git status in porcelain v1 format and sorts entries into
// categories.
func (g *Git) Status(ctx context.Context, repoPath string) (Status, error) {
	root, err := g.RepositoryRoot(ctx, repoPath)
	if err != nil {
		return Empty(), err
	}

	out, err := g.run(ctx, root, "status", "--porcelain=v1", "-z", "--untracked-files=all")
	if err != nil {
		return Empty(), err
	}

	status := parsePorcelain(out)
	status.Available = true
	status.Branch, _ = g.CurrentBranch(ctx, root)
	return status, nil
}

// parsePorcelain parses NUL separated "XY path" records. Renames and copies
// carry the original path as an extra record which is skipped.
func parsePorcelain(out []byte) Status {
	status := Empty()
	records := strings.Split(string(out), "\x00")

	for i := 0; i < len(records); i++ {
		rec := records[i]
		if len(rec) < 4 {
			continue
		}
		x, y, path := rec[0], rec[1], rec[3:]

		if x == 'R' || x == 'C' {
			i++
		}

		switch {
		case x == '?' && y == '?':
			status.Untracked = append(status.Untracked, path)
			continue
		case x == '!' && y == '!':
			continue
		case x == 'U' || y == 'U' || (x == 'A' && y == 'A') || (x == 'D' && y == 'D'):
			status.Conflicted = append(status.Conflicted, path)
			continue
		}

		if strings.IndexByte("MADRCT", x) >= 0 {
			status.Staged = append(status.Staged, path)
		}
		if x == 'M' || y == 'M' || x == 'T' || y == 'T' {
			status.Modified = append(status.Modified, path)
		}
		if x == 'D' || y == 'D' {
			status.Deleted = append(status.Deleted, path)
		}
	}
	return status
}

// emptyTree is the object id of the empty tree in SHA-1 repositories.
const emptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// Diff returns the diff of path against HEAD. Untracked files are diffed
// against /dev/null and repositories without commits against the empty tree.
func (g *Git) Diff(ctx context.Context, repoPath, path string) (string, error) {
	root, err := g.RepositoryRoot(ctx, repoPath)
	if err != nil {
		return "", err
	}

	if g.isUntracked(ctx, root, path) {
		return g.diffNoIndex(ctx, root, path)
	}

	base := "HEAD"
	if _, err := g.run(ctx, root, "rev-parse", "--verify", "-q", "HEAD"); err != nil {
		base = emptyTree
	}

	out, err := g.run(ctx, root, "diff", "--no-color", base, "--", path)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (g *Git) isUntracked(ctx context.Context, root, path string) bool {
	_, err := g.run(ctx, root, "ls-files", "--error-unmatch", "--", path)
	return err != nil
}

// diffNoIndex exits with status 1 when the files differ, which is the
// expected case here.
func (g *Git) diffNoIndex(ctx context.Context, root, path string) (string, error) {
	out, err := g.run(ctx, root, "diff", "--no-color", "--no-index", "--", "/dev/null", path)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return string(out), nil
		}
		return "", err
	}
	return string(out), nil
}

// CurrentBranch returns the name of the current branch.
// Returns an empty string on a detached HEAD.
func (g *Git) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	out, err := g.run(ctx, repoPath, "symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil {
		// symbolic-ref fails on a detached HEAD; that is not an error here
		if _, rootErr := g.RepositoryRoot(ctx, repoPath); rootErr != nil {
			return "", rootErr
		}
		return "", nil
	}
	return strings.TrimSpace(string(out)), nil
}
