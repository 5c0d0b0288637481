package staging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"recipebot/internal/logging"
	"recipebot/internal/testsupport"
)

func makeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldRequestDirectories(t *testing.T) {
	root := t.TempDir()
	oldDir := filepath.Join(root, "req-deadbeef-1")
	recentDir := filepath.Join(root, "req-cafebabe-2")
	foreignDir := filepath.Join(root, "keep-me")
	makeAged(t, oldDir, 2*time.Hour)
	makeAged(t, recentDir, time.Minute)
	makeAged(t, foreignDir, 48*time.Hour)

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("expected only %s removed, got %v", oldDir, result.Removed)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("old directory should have been removed")
	}
	for _, kept := range []string{recentDir, foreignDir} {
		if _, err := os.Stat(kept); err != nil {
			t.Errorf("%s should still exist", kept)
		}
	}
}

func TestCleanStaleIgnoresFiles(t *testing.T) {
	root := t.TempDir()
	oldFile := filepath.Join(root, "req-file.mp4")
	if err := os.WriteFile(oldFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	stamp := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldFile, stamp, stamp); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Errorf("expected no removals for files, got %d", len(result.Removed))
	}
}

func TestCleanStaleZeroMaxAgeIsDisabled(t *testing.T) {
	root := t.TempDir()
	makeAged(t, filepath.Join(root, "req-old"), 24*time.Hour)
	if result := CleanStale(context.Background(), root, 0, nil); len(result.Removed) != 0 {
		t.Fatalf("expected sweep disabled, removed %v", result.Removed)
	}
}

func TestNewRequestDirIsUniqueAndRemovable(t *testing.T) {
	root := filepath.Join(t.TempDir(), "scratch")

	first, err := NewRequestDir(root, "0123456789abcdef")
	if err != nil {
		t.Fatalf("NewRequestDir: %v", err)
	}
	second, err := NewRequestDir(root, "0123456789abcdef")
	if err != nil {
		t.Fatalf("NewRequestDir: %v", err)
	}
	if first.Path == second.Path {
		t.Fatalf("expected distinct dirs, both %s", first.Path)
	}
	if !strings.HasPrefix(filepath.Base(first.Path), "req-01234567-") {
		t.Fatalf("unexpected dir name %s", first.Path)
	}

	if err := os.WriteFile(first.Join("video.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := first.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := first.Remove(); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if _, err := os.Stat(first.Path); !os.IsNotExist(err) {
		t.Fatal("request dir should be gone")
	}
	if _, err := NewRequestDir("  ", "x"); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestListDirectoriesInvalidPaths(t *testing.T) {
	for _, path := range []string{"", "/nonexistent/path/12345"} {
		dirs, err := ListDirectories(path)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", path, err)
		}
		if dirs != nil {
			t.Fatalf("expected nil for %q, got %v", path, dirs)
		}
	}
}

func TestListDirectoriesReportsSize(t *testing.T) {
	root := t.TempDir()
	dir, err := NewRequestDir(root, "abc")
	if err != nil {
		t.Fatalf("NewRequestDir: %v", err)
	}
	testsupport.WriteMedia(t, dir.Join("a.bin"), 1024)
	makeAged(t, filepath.Join(root, "unrelated"), 0)

	dirs, err := ListDirectories(root)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 1 || dirs[0].Path != dir.Path || dirs[0].Size != 1024 {
		t.Fatalf("unexpected listing %+v", dirs)
	}
}
