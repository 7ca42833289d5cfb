package tracked

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"testing"
)

func TestSplitLines(t *testing.T) {
	got := splitLines("a.go\r\nsub/b.go\n\n")
	if len(got) != 2 || got[0] != "a.go" || got[1] != "sub/b.go" {
		t.Fatalf("unexpected lines: %q", got)
	}
}

func TestGitTrackedFiles(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")

	for name, body := range map[string]string{
		".gitignore":  "ignored.txt\n",
		"main.go":     "package main\n",
		"pkg/util.go": "package pkg\n",
		"ignored.txt": "nope\n",
	} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	runGit(t, dir, "add", "main.go")

	got, err := Git{}.TrackedFiles(context.Background(), dir)
	if err != nil {
		t.Fatalf("tracked files: %v", err)
	}
	sort.Strings(got)
	want := []string{".gitignore", "main.go", "pkg/util.go"}
	if len(got) != len(want) {
		t.Fatalf("got %q want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %q want %q", got, want)
		}
	}
}

func TestGitTrackedFilesOutsideRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	if _, err := (Git{}).TrackedFiles(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for a missing directory")
	}
}

func TestStatic(t *testing.T) {
	s := Static{"a", "b"}
	got, _ := s.TrackedFiles(context.Background(), "ignored")
	got[0] = "changed"
	if s[0] != "a" {
		t.Fatal("Static must return a copy")
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}
