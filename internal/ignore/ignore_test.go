package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadNoFiles(t *testing.T) {
	root := t.TempDir()
	p, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Excluded("src/main.go", false) {
		t.Fatal("nothing should be excluded with no ignore files")
	}
}

func TestGitignoreExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "*.log\n")

	p, err := Load(root)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Excluded("debug.log", false) {
		t.Fatal("expected debug.log to be excluded")
	}
	if p.Excluded("main.go", false) {
		t.Fatal("main.go should not be excluded")
	}
}

func TestAiignoreWinsOverInclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".aiignore"), "vendor/\n")
	writeFile(t, filepath.Join(root, ".git-ai", "include.txt"), "vendor/\n")

	p, err := Load(root)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Excluded("vendor/pkg/a.go", false) {
		t.Fatal("aiignore must take precedence over include.txt")
	}
}

func TestIncludeOverridesGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "generated/\n")
	writeFile(t, filepath.Join(root, ".git-ai", "include.txt"), "generated/keep.go\n")

	p, err := Load(root)
	if err != nil {
		t.Fatal(err)
	}
	if p.Excluded("generated/keep.go", false) {
		t.Fatal("include.txt should override gitignore for this path")
	}
	if !p.Excluded("generated/other.go", false) {
		t.Fatal("other generated files should still be excluded")
	}
}
