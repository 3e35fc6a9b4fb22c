package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/samsaffron/md-tools/internal/mdedit"
)

const (
	defaultFindPattern = "**/*.{md,markdown,mdx}"
	maxFindResults     = 200
)

// FindTool implements the md_find tool.
type FindTool struct {
	policy *PathPolicy
}

// NewFindTool creates a new FindTool.
func NewFindTool(policy *PathPolicy) *FindTool {
	return &FindTool{policy: policy}
}

// FindArgs are the arguments for md_find.
type FindArgs struct {
	Pattern string `json:"pattern,omitempty"`
	Path    string `json:"path,omitempty"`
}

// FoundFile is one md_find match.
type FoundFile struct {
	FilePath    string `json:"file_path"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentHash string `json:"content_hash,omitempty"`
	Title       string `json:"title,omitempty"`
	Sections    int    `json:"sections"`
	Skipped     string `json:"skipped,omitempty"`
}

// FindResult is the md_find payload.
type FindResult struct {
	Root      string      `json:"root"`
	Pattern   string      `json:"pattern"`
	Files     []FoundFile `json:"files"`
	Truncated bool        `json:"truncated,omitempty"`
}

func (t *FindTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        FindToolName,
		Description: "Find Markdown files by glob pattern (supports ** and {a,b}). Returns each file's content hash, first heading and section count, sorted by path.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Glob pattern relative to path, default '" + defaultFindPattern + "'",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Base directory for the search (defaults to current directory)",
				},
			},
			"additionalProperties": false,
		},
	}
}

func (t *FindTool) Preview(args json.RawMessage) string {
	var a FindArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	pattern := a.Pattern
	if pattern == "" {
		pattern = defaultFindPattern
	}
	if a.Path != "" {
		return fmt.Sprintf("%s in %s", pattern, a.Path)
	}
	return pattern
}

func (t *FindTool) Execute(ctx context.Context, args json.RawMessage) (ToolOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	warning := WarnUnknownParams(args, schemaKeys(t.Spec().Schema))

	var a FindArgs
	if err := parseArgs(args, &a); err != nil {
		return withWarnings(warning, toolErrorOutput(err)), nil
	}
	if a.Pattern == "" {
		a.Pattern = defaultFindPattern
	}
	if !doublestar.ValidatePattern(a.Pattern) {
		return withWarnings(warning, toolErrorOutput(NewToolErrorf(ErrInvalidParams, "invalid pattern: %s", a.Pattern))), nil
	}
	if a.Path == "" {
		a.Path = "."
	}

	root, err := t.policy.ResolveRead(a.Path)
	if err != nil {
		return withWarnings(warning, toolErrorOutput(err)), nil
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return withWarnings(warning, toolErrorOutput(NewToolErrorf(ErrInvalidParams, "%s is not a directory", a.Path))), nil
	}

	result, err := t.find(ctx, root, a.Pattern)
	if err != nil {
		return withWarnings(warning, toolErrorOutput(NewToolErrorf(ErrExecutionFailed, "walk error: %v", err))), nil
	}
	return withWarnings(warning, jsonOutput(result, false)), nil
}

func (t *FindTool) find(ctx context.Context, root, pattern string) (*FindResult, error) {
	result := &FindResult{Root: root, Pattern: pattern, Files: []FoundFile{}}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return nil // Skip errors
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if matched, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); !matched {
			return nil
		}

		if len(result.Files) >= maxFindResults {
			result.Truncated = true
			return filepath.SkipAll
		}
		result.Files = append(result.Files, t.describe(path))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].FilePath < result.Files[j].FilePath
	})
	return result, nil
}

func (t *FindTool) describe(path string) FoundFile {
	f := FoundFile{FilePath: path}
	if info, err := os.Stat(path); err == nil {
		f.SizeBytes = info.Size()
	}
	raw, err := readDocument(path, t.policy.MaxFileBytes)
	if err != nil {
		if te, ok := err.(*ToolError); ok {
			f.Skipped = string(te.Type)
		} else {
			f.Skipped = err.Error()
		}
		return f
	}
	doc := mdedit.Build(raw)
	f.ContentHash = doc.ContentHash
	f.Sections = len(doc.Sections)
	if len(doc.Sections) > 0 {
		f.Title = doc.Sections[0].Title()
	}
	return f
}
