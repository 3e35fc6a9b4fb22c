package tools

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestReadDocument(t *testing.T) {
	dir := tempRoot(t)
	text := writeDoc(t, dir, "a.md", "# A\n")
	bin := writeDoc(t, dir, "b.md", "# B\x00\n")
	big := writeDoc(t, dir, "c.md", "0123456789")

	tests := []struct {
		name string
		path string
		max  int64
		want ToolErrorType
	}{
		{"text", text, 1024, ""},
		{"binary", bin, 1024, ErrBinaryFile},
		{"too large", big, 5, ErrFileTooLarge},
		{"no limit", big, 0, ""},
		{"missing", filepath.Join(dir, "nope.md"), 1024, ErrFileNotFound},
		{"directory", dir, 1024, ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := readDocument(tt.path, tt.max); errType(err) != tt.want {
				t.Errorf("readDocument() error = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestWriteAtomicPreservesMode(t *testing.T) {
	dir := tempRoot(t)
	path := writeDoc(t, dir, "a.md", "old\n")
	if err := os.Chmod(path, 0600); err != nil {
		t.Fatal(err)
	}

	if err := writeAtomic(path, []byte("new\n")); err != nil {
		t.Fatalf("writeAtomic() error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "new\n" {
		t.Errorf("content = %q", data)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestWithFileLockSerializes(t *testing.T) {
	dir := tempRoot(t)
	path := writeDoc(t, dir, "a.md", "")

	var mu sync.Mutex
	active, maxActive := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := withFileLock(path, func() error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				data, _ := os.ReadFile(path)
				if err := writeAtomic(path, append(data, 'x')); err != nil {
					return err
				}

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("withFileLock() error: %v", err)
			}
		}()
	}
	wg.Wait()

	data, _ := os.ReadFile(path)
	if string(data) != "xxxxxxxx" {
		t.Errorf("content = %q, want 8 appends", data)
	}
	if maxActive != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxActive)
	}
}
