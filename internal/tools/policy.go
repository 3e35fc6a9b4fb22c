package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// PathPolicy decides which files the tools may read and modify.
//
// With no read dirs configured, reads are confined to the working directory.
// With no write dirs configured, writes are allowed wherever reads are.
// Write dirs always grant read access too.
type PathPolicy struct {
	readDirs  []string
	writeDirs []string
	protected []protectedPattern

	MaxFileBytes int64
}

type protectedPattern struct {
	pattern string
	g       glob.Glob
}

// NewPathPolicy creates an empty policy.
func NewPathPolicy() *PathPolicy {
	return &PathPolicy{MaxFileBytes: DefaultMaxFileBytes}
}

// AddReadDir allows reads below dir.
func (p *PathPolicy) AddReadDir(dir string) error {
	root, err := resolveRoot(dir)
	if err != nil {
		return err
	}
	p.readDirs = append(p.readDirs, root)
	return nil
}

// AddWriteDir allows writes below dir.
func (p *PathPolicy) AddWriteDir(dir string) error {
	root, err := resolveRoot(dir)
	if err != nil {
		return err
	}
	p.writeDirs = append(p.writeDirs, root)
	return nil
}

// AddProtected registers a glob that md_apply refuses to modify. Patterns
// are matched against the path relative to the allowed root and against the
// base name.
func (p *PathPolicy) AddProtected(pattern string) error {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return fmt.Errorf("invalid protected pattern %q: %w", pattern, err)
	}
	p.protected = append(p.protected, protectedPattern{pattern: pattern, g: g})
	return nil
}

// ResolveRead returns the real path of file if it may be read.
func (p *PathPolicy) ResolveRead(file string) (string, error) {
	real, err := resolveExisting(file)
	if err != nil {
		return "", err
	}
	roots, err := p.readRoots()
	if err != nil {
		return "", err
	}
	if _, ok := containingRoot(real, roots); !ok {
		return "", NewToolErrorf(ErrPathNotInWorkspace, "%s is outside the allowed read directories", file)
	}
	return real, nil
}

// ResolveWrite returns the real path of file if it may be modified.
func (p *PathPolicy) ResolveWrite(file string) (string, error) {
	real, err := resolveExisting(file)
	if err != nil {
		return "", err
	}
	roots := p.writeDirs
	if len(roots) == 0 {
		if roots, err = p.readRoots(); err != nil {
			return "", err
		}
	}
	root, ok := containingRoot(real, roots)
	if !ok {
		return "", NewToolErrorf(ErrPermissionDenied, "%s is outside the allowed write directories", file)
	}
	if pattern, ok := p.protectedBy(real, root); ok {
		return "", NewToolErrorf(ErrProtectedPath, "%s matches protected pattern %q", file, pattern)
	}
	return real, nil
}

// ReadRoots returns the directories reads are confined to.
func (p *PathPolicy) ReadRoots() ([]string, error) {
	return p.readRoots()
}

func (p *PathPolicy) readRoots() ([]string, error) {
	roots := append(append([]string{}, p.readDirs...), p.writeDirs...)
	if len(p.readDirs) > 0 {
		return roots, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, NewToolErrorf(ErrExecutionFailed, "cannot get working directory: %v", err)
	}
	cwd, err := resolveRoot(wd)
	if err != nil {
		return nil, NewToolErrorf(ErrExecutionFailed, "resolve working directory: %v", err)
	}
	return append(roots, cwd), nil
}

func (p *PathPolicy) protectedBy(real, root string) (string, bool) {
	rel, err := filepath.Rel(root, real)
	if err != nil {
		rel = real
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(real)
	for _, pp := range p.protected {
		if pp.g.Match(rel) || pp.g.Match(base) {
			return pp.pattern, true
		}
	}
	return "", false
}

// resolveRoot makes dir absolute and resolves symlinks when it exists.
func resolveRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", err
	}
	return real, nil
}

// resolveExisting resolves file to an absolute, symlink-free path.
func resolveExisting(file string) (string, error) {
	if strings.TrimSpace(file) == "" {
		return "", NewToolError(ErrInvalidParams, "file_path is required")
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", NewToolErrorf(ErrExecutionFailed, "resolve path: %v", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NewToolError(ErrFileNotFound, file)
		}
		return "", NewToolErrorf(ErrExecutionFailed, "resolve symlinks: %v", err)
	}
	return real, nil
}

func containingRoot(path string, roots []string) (string, bool) {
	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root, true
		}
	}
	return "", false
}
