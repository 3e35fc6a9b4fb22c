package tools

import (
	"os"
	"path/filepath"
	"testing"
)

// tempRoot returns a symlink-free temp directory (macOS /var -> /private/var).
func tempRoot(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("failed to resolve symlinks: %v", err)
	}
	return dir
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func errType(err error) ToolErrorType {
	if te, ok := err.(*ToolError); ok {
		return te.Type
	}
	return ""
}

func TestPathPolicyRead(t *testing.T) {
	root := tempRoot(t)
	outside := tempRoot(t)
	inside := writeDoc(t, root, "docs/a.md", "# A\n")
	other := writeDoc(t, outside, "b.md", "# B\n")
	if err := os.Symlink(other, filepath.Join(root, "link.md")); err != nil {
		t.Fatal(err)
	}

	p := NewPathPolicy()
	if err := p.AddReadDir(root); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want ToolErrorType
	}{
		{"inside", inside, ""},
		{"outside", other, ErrPathNotInWorkspace},
		{"symlink escape", filepath.Join(root, "link.md"), ErrPathNotInWorkspace},
		{"missing", filepath.Join(root, "nope.md"), ErrFileNotFound},
		{"empty", "", ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ResolveRead(tt.path)
			if errType(err) != tt.want {
				t.Fatalf("ResolveRead(%q) = %q, %v; want %s", tt.path, got, err, tt.want)
			}
			if tt.want == "" && got != tt.path {
				t.Errorf("resolved = %q, want %q", got, tt.path)
			}
		})
	}
}

func TestPathPolicyWrite(t *testing.T) {
	root := tempRoot(t)
	readOnly := tempRoot(t)
	doc := writeDoc(t, root, "guide.md", "# G\n")
	changelog := writeDoc(t, root, "sub/CHANGELOG.md", "# C\n")
	vendored := writeDoc(t, root, "vendor/pkg/README.md", "# V\n")
	ro := writeDoc(t, readOnly, "ro.md", "# RO\n")

	p := NewPathPolicy()
	for _, dir := range []string{root, readOnly} {
		if err := p.AddReadDir(dir); err != nil {
			t.Fatal(err)
		}
	}
	if err := p.AddWriteDir(root); err != nil {
		t.Fatal(err)
	}
	for _, pattern := range []string{"CHANGELOG.md", "vendor/**"} {
		if err := p.AddProtected(pattern); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		path string
		want ToolErrorType
	}{
		{"writable", doc, ""},
		{"protected by base name", changelog, ErrProtectedPath},
		{"protected by relative path", vendored, ErrProtectedPath},
		{"read only dir", ro, ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.ResolveWrite(tt.path); errType(err) != tt.want {
				t.Errorf("ResolveWrite(%q) error = %v, want %s", tt.path, err, tt.want)
			}
		})
	}

	// Reads are still allowed for protected files.
	if _, err := p.ResolveRead(changelog); err != nil {
		t.Errorf("ResolveRead(protected) error: %v", err)
	}
}

func TestPathPolicyDefaultsToWorkingDirectory(t *testing.T) {
	root := tempRoot(t)
	doc := writeDoc(t, root, "a.md", "# A\n")
	t.Chdir(root)

	p := NewPathPolicy()
	if _, err := p.ResolveRead("a.md"); err != nil {
		t.Errorf("ResolveRead(relative) error: %v", err)
	}
	if _, err := p.ResolveWrite(doc); err != nil {
		t.Errorf("ResolveWrite() error: %v", err)
	}
	if _, err := p.ResolveRead(writeDoc(t, tempRoot(t), "b.md", "x")); errType(err) != ErrPathNotInWorkspace {
		t.Errorf("outside cwd error = %v", err)
	}
}

func TestPathPolicyBadPattern(t *testing.T) {
	if err := NewPathPolicy().AddProtected("[a-"); err == nil {
		t.Error("AddProtected accepted an invalid pattern")
	}
}
