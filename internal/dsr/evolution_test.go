package dsr

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/giai-dev/giai/internal/gitplumbing"
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

// newTestRepo creates a two-commit repository and returns both commit
// hashes, oldest first.
func newTestRepo(t *testing.T) (dir string, first, second string) {
	t.Helper()
	dir = t.TempDir()
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "test")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package main\n"), 0o644))
	runGit(t, dir, "add", "a.go")
	runGit(t, dir, "commit", "-q", "-m", "first")
	out, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	require.NoError(t, err)
	first = trimNL(out)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package main\n\nfunc sayHi() {}\n"), 0o644))
	runGit(t, dir, "add", "a.go")
	runGit(t, dir, "commit", "-q", "-m", "second")
	out, err = exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	require.NoError(t, err)
	second = trimNL(out)

	return dir, first, second
}

func trimNL(b []byte) string {
	s := string(b)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func TestEvolution_MissingDsrReportsCommits(t *testing.T) {
	// Given: two real commits but no DSRs written for either
	dir, first, second := newTestRepo(t)
	ctx := context.Background()
	repo, err := gitplumbing.Open(ctx, dir)
	require.NoError(t, err)
	store := NewStore(t.TempDir())

	// When
	result, err := Evolution(ctx, repo, store, "HEAD", false, 0, "sayHi")

	// Then
	require.NoError(t, err)
	require.False(t, result.Ok)
	require.ElementsMatch(t, []string{first, second}, result.MissingDsrs)
}

func TestEvolution_FindsMatchingOperationsAcrossHistory(t *testing.T) {
	// Given: DSRs hand-written for both commits, the second adding sayHi
	dir, first, second := newTestRepo(t)
	ctx := context.Background()
	repo, err := gitplumbing.Open(ctx, dir)
	require.NoError(t, err)
	store := NewStore(t.TempDir())

	rec1 := &Record{CommitHash: first, Subject: "first"}
	canonicalize(rec1, nil)
	require.NoError(t, store.Write(rec1))

	rec2 := &Record{CommitHash: second, Subject: "second"}
	canonicalize(rec2, []Operation{{Type: OpAdd, Symbol: SymbolRef{File: "a.go", Name: "sayHi"}}})
	require.NoError(t, store.Write(rec2))

	// When
	result, err := Evolution(ctx, repo, store, "HEAD", false, 0, "sayHi")

	// Then
	require.NoError(t, err)
	require.True(t, result.Ok)
	require.Len(t, result.Hits, 1)
	require.Equal(t, second, result.Hits[0].CommitHash)
	require.Equal(t, "sayHi", result.Hits[0].Operation.Symbol.Name)
}

func TestEvolution_SubstringMatch(t *testing.T) {
	dir, first, second := newTestRepo(t)
	ctx := context.Background()
	repo, err := gitplumbing.Open(ctx, dir)
	require.NoError(t, err)
	store := NewStore(t.TempDir())

	rec1 := &Record{CommitHash: first, Subject: "first"}
	canonicalize(rec1, nil)
	require.NoError(t, store.Write(rec1))

	rec2 := &Record{CommitHash: second, Subject: "second"}
	canonicalize(rec2, []Operation{{Type: OpRename,
		Symbol:   SymbolRef{File: "a.go", Name: "sayHiLoudly"},
		Previous: &SymbolRef{File: "a.go", Name: "greet"},
	}})
	require.NoError(t, store.Write(rec2))

	result, err := Evolution(ctx, repo, store, "HEAD", false, 0, "sayHi")

	require.NoError(t, err)
	require.True(t, result.Ok)
	require.Len(t, result.Hits, 1)
}
