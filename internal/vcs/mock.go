package vcs

import (
	"context"
	"sync"
)

// MockVCS is a mock implementation of the VCS interface for testing.
// Unset funcs behave like a repository with no changes.
type MockVCS struct {
	RepositoryRootFunc func(ctx context.Context, dir string) (string, error)
	StatusFunc         func(ctx context.Context, repoPath string) (Status, error)
	DiffFunc           func(ctx context.Context, repoPath, path string) (string, error)
	CurrentBranchFunc  func(ctx context.Context, repoPath string) (string, error)

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockVCS) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[op]++
}

// Calls returns how often op ("status", "diff", ...) was invoked.
func (m *MockVCS) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockVCS) RepositoryRoot(ctx context.Context, dir string) (string, error) {
	m.record("root")
	if m.RepositoryRootFunc != nil {
		return m.RepositoryRootFunc(ctx, dir)
	}
	return dir, nil
}

func (m *MockVCS) Status(ctx context.Context, repoPath string) (Status, error) {
	m.record("status")
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, repoPath)
	}
	s := Empty()
	s.Available = true
	return s, nil
}

func (m *MockVCS) Diff(ctx context.Context, repoPath, path string) (string, error) {
	m.record("diff")
	if m.DiffFunc != nil {
		return m.DiffFunc(ctx, repoPath, path)
	}
	return "", nil
}

func (m *MockVCS) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	m.record("branch")
	if m.CurrentBranchFunc != nil {
		return m.CurrentBranchFunc(ctx, repoPath)
	}
	return "", nil
}
