package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleReadme is a small document with front matter, nested sections, inline
// code and a fenced block.
const SampleReadme = "---\ntitle: Demo\n---\n# Demo\n\n## Install\n\nRun `npm install` first.\n\n```sh\nnpm install\n```\n\n## Usage\n\nUse npm scripts.\n"

// TempDir returns a symlink-free temporary directory (macOS /var -> /private/var).
func TempDir(t testing.TB) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("failed to resolve symlinks: %v", err)
	}
	return dir
}

// WriteMarkdown writes content to dir/name, creating parent directories, and
// returns the path.
func WriteMarkdown(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// ReadFile returns the content of path, failing the test on error.
func ReadFile(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}
