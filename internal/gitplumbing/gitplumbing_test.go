package gitplumbing

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
}

// newTestRepo creates a throwaway git repository with one commit
// adding a.txt, then a second commit adding b.txt and modifying a.txt.
func newTestRepo(t *testing.T) (dir string, first, second string) {
	t.Helper()
	dir = t.TempDir()
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "test")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello\n"), 0o644))
	runGit(t, dir, "add", "a.txt")
	runGit(t, dir, "commit", "-q", "-m", "add a")
	firstOut, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	require.NoError(t, err)
	first = trim(firstOut)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello world\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("new file\n"), 0o644))
	runGit(t, dir, "add", "a.txt", "b.txt")
	runGit(t, dir, "commit", "-q", "-m", "modify a, add b")
	secondOut, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	require.NoError(t, err)
	second = trim(secondOut)

	return dir, first, second
}

func trim(b []byte) string {
	s := string(b)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func TestOpen_NotAGitRepo(t *testing.T) {
	_, err := Open(context.Background(), t.TempDir())
	require.ErrorIs(t, err, ErrNotAGitRepo)
}

func TestOpen_AndHeadCommit(t *testing.T) {
	dir, _, second := newTestRepo(t)
	ctx := context.Background()

	repo, err := Open(ctx, dir)
	require.NoError(t, err)

	head, err := repo.HeadCommit(ctx)
	require.NoError(t, err)
	require.Equal(t, second, head)
}

func TestParent_RootCommitUsesEmptyTree(t *testing.T) {
	dir, first, _ := newTestRepo(t)
	ctx := context.Background()
	repo, err := Open(ctx, dir)
	require.NoError(t, err)

	parent, subject, err := repo.Parent(ctx, first)
	require.NoError(t, err)
	require.Equal(t, EmptyTreeHash, parent)
	require.Equal(t, "add a", subject)
}

func TestParent_SecondCommit(t *testing.T) {
	dir, first, second := newTestRepo(t)
	ctx := context.Background()
	repo, err := Open(ctx, dir)
	require.NoError(t, err)

	parent, subject, err := repo.Parent(ctx, second)
	require.NoError(t, err)
	require.Equal(t, first, parent)
	require.Equal(t, "modify a, add b", subject)
}

func TestShowBlob(t *testing.T) {
	dir, first, _ := newTestRepo(t)
	ctx := context.Background()
	repo, err := Open(ctx, dir)
	require.NoError(t, err)

	content, err := repo.ShowBlob(ctx, first, "a.txt")
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(content))
}

func TestDiffTreeNameStatus(t *testing.T) {
	dir, _, second := newTestRepo(t)
	ctx := context.Background()
	repo, err := Open(ctx, dir)
	require.NoError(t, err)

	changes, err := repo.DiffTreeNameStatus(ctx, second)
	require.NoError(t, err)

	byPath := map[string]ChangeStatus{}
	for _, c := range changes {
		byPath[c.Path] = c.Status
	}
	require.Equal(t, StatusModified, byPath["a.txt"])
	require.Equal(t, StatusAdded, byPath["b.txt"])
}

func TestDiffNameStatus_Staged(t *testing.T) {
	dir, _, _ := newTestRepo(t)
	ctx := context.Background()
	repo, err := Open(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("staged\n"), 0o644))
	runGit(t, dir, "add", "c.txt")

	changes, err := repo.DiffNameStatus(ctx, true)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, "c.txt", changes[0].Path)
	require.Equal(t, StatusAdded, changes[0].Status)
}

func TestRevList_TopoOrder(t *testing.T) {
	dir, first, second := newTestRepo(t)
	ctx := context.Background()
	repo, err := Open(ctx, dir)
	require.NoError(t, err)

	hashes, err := repo.RevList(ctx, "HEAD", false, 0)
	require.NoError(t, err)
	require.Equal(t, []string{second, first}, hashes)
}

func TestCommitExists(t *testing.T) {
	dir, first, _ := newTestRepo(t)
	ctx := context.Background()
	repo, err := Open(ctx, dir)
	require.NoError(t, err)

	require.True(t, repo.CommitExists(ctx, first))
	require.False(t, repo.CommitExists(ctx, "0000000000000000000000000000000000000000"))
}
