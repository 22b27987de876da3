package vcs

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRepo creates a temporary git repository for testing.
func setupTestRepo(t *testing.T) string {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	// resolve symlinks so paths compare equal with git's view (macOS /var)
	dir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	runGitCmd(t, dir, "init", "-q")
	runGitCmd(t, dir, "config", "user.name", "Test User")
	runGitCmd(t, dir, "config", "user.email", "test@example.com")
	runGitCmd(t, dir, "config", "commit.gpgsign", "false")
	return dir
}

// runGitCmd runs a git command in the specified directory.
func runGitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, output)
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestGit_RepositoryRoot(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	sub := filepath.Join(repo, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0755))

	root, err := NewGit().RepositoryRoot(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, repo, root)

	_, err = NewGit().RepositoryRoot(ctx, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotRepository))
	var vErr *Error
	assert.ErrorAs(t, err, &vErr)
}

func TestGit_StatusCategories(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	write(t, filepath.Join(repo, "a.txt"), "old\n")
	write(t, filepath.Join(repo, "gone.txt"), "bye\n")
	write(t, filepath.Join(repo, "staged.txt"), "one\n")
	runGitCmd(t, repo, "add", ".")
	runGitCmd(t, repo, "commit", "-q", "-m", "initial")

	write(t, filepath.Join(repo, "a.txt"), "new\n")
	require.NoError(t, os.Remove(filepath.Join(repo, "gone.txt")))
	write(t, filepath.Join(repo, "staged.txt"), "two\n")
	runGitCmd(t, repo, "add", "staged.txt")
	write(t, filepath.Join(repo, "dir", "fresh.txt"), "hi\n")

	status, err := NewGit().Status(ctx, repo)
	require.NoError(t, err)

	assert.True(t, status.Available)
	assert.NotEmpty(t, status.Branch)
	assert.ElementsMatch(t, []string{"a.txt", "staged.txt"}, status.Modified)
	assert.Equal(t, []string{"staged.txt"}, status.Staged)
	assert.Equal(t, []string{"gone.txt"}, status.Deleted)
	assert.Equal(t, []string{"dir/fresh.txt"}, status.Untracked)
	assert.True(t, status.Contains("dir/fresh.txt"))
	assert.False(t, status.Clean())
}

func TestGit_StatusOutsideRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	status, err := NewGit().Status(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.False(t, status.Available)
	assert.True(t, status.Clean())
}

func TestGit_Diff(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	write(t, filepath.Join(repo, "a.txt"), "old\n")
	runGitCmd(t, repo, "add", ".")
	runGitCmd(t, repo, "commit", "-q", "-m", "initial")
	write(t, filepath.Join(repo, "a.txt"), "new\n")

	diff, err := NewGit().Diff(ctx, repo, "a.txt")
	require.NoError(t, err)
	assert.Contains(t, diff, "--- a/a.txt")
	assert.Contains(t, diff, "+++ b/a.txt")
	assert.Contains(t, diff, "\n-old\n")
	assert.Contains(t, diff, "\n+new\n")
}

func TestGit_DiffUntrackedAndUnborn(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)

	write(t, filepath.Join(repo, "new.txt"), "hello\n")
	diff, err := NewGit().Diff(ctx, repo, "new.txt")
	require.NoError(t, err)
	assert.Contains(t, diff, "+hello")

	runGitCmd(t, repo, "add", "new.txt")
	diff, err = NewGit().Diff(ctx, repo, "new.txt")
	require.NoError(t, err)
	assert.True(t, strings.Contains(diff, "+hello"), diff)
}

func TestParsePorcelain(t *testing.T) {
	out := []byte("R  new.go\x00old.go\x00UU both.go\x00 M mod.go\x00?? x/y.txt\x00!! ignored\x00")
	s := parsePorcelain(out)

	assert.Equal(t, []string{"new.go"}, s.Staged)
	assert.Equal(t, []string{"both.go"}, s.Conflicted)
	assert.Equal(t, []string{"mod.go"}, s.Modified)
	assert.Equal(t, []string{"x/y.txt"}, s.Untracked)
	assert.Equal(t, []string{"both.go", "mod.go", "new.go", "x/y.txt"}, s.Paths())
}
