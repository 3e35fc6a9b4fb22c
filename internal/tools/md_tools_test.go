package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samsaffron/md-tools/internal/mdedit"
)

const readme = `---
title: Demo
---
# Demo

## Install

Run ` + "`npm install`" + ` first.

` + "```sh\nnpm install\n```" + `

## Usage

Use npm scripts.
`

func newTestRegistry(t *testing.T, root string) *Registry {
	t.Helper()
	cfg := DefaultToolConfig()
	cfg.ReadDirs = []string{root}
	cfg.Protected = []string{"CHANGELOG.md"}
	r, err := NewRegistry(&cfg, nil)
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	return r
}

func call(t *testing.T, r *Registry, name string, args any) ToolOutput {
	t.Helper()
	tool, ok := r.Get(name)
	if !ok {
		t.Fatalf("tool %s not registered", name)
	}
	data, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	out, err := tool.Execute(context.Background(), data)
	if err != nil {
		t.Fatalf("%s Execute() error: %v", name, err)
	}
	return out
}

func decode[T any](t *testing.T, out ToolOutput) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out.Content), &v); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.Content)
	}
	return v
}

type applyPayload struct {
	TransactionID string              `json:"transaction_id"`
	State         string              `json:"state"`
	ContentHash   string              `json:"content_hash"`
	EditsApplied  int                 `json:"edits_applied"`
	Diff          string              `json:"diff"`
	ErrorCode     string              `json:"error_code"`
	Error         *mdedit.Error       `json:"error"`
	Diagnostics   []mdedit.Diagnostic `json:"diagnostics"`
}

func statHash(t *testing.T, r *Registry, path string) string {
	t.Helper()
	out := call(t, r, StatToolName, map[string]any{"file_path": path})
	if out.IsError {
		t.Fatalf("md_stat failed: %s", out.Content)
	}
	return decode[struct {
		ContentHash string `json:"content_hash"`
	}](t, out).ContentHash
}

func TestRegistry(t *testing.T) {
	r := newTestRegistry(t, tempRoot(t))
	specs := r.GetSpecs()
	if len(specs) != len(AllToolNames()) {
		t.Fatalf("specs = %d, want %d", len(specs), len(AllToolNames()))
	}
	for _, spec := range specs {
		if spec.Schema["additionalProperties"] != false {
			t.Errorf("%s schema allows additional properties", spec.Name)
		}
		if GetToolKind(spec.Name) == "" {
			t.Errorf("%s has no kind", spec.Name)
		}
	}

	cfg := ToolConfig{Enabled: []string{"md_stat", "shell"}}
	if _, err := NewRegistry(&cfg, nil); err == nil {
		t.Error("NewRegistry accepted an unknown tool")
	}

	only := ToolConfig{Enabled: []string{StatToolName}}
	r2, err := NewRegistry(&only, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r2.IsEnabled(ApplyToolName) {
		t.Error("md_apply registered but not enabled")
	}
}

func TestStatTool(t *testing.T) {
	root := tempRoot(t)
	path := writeDoc(t, root, "README.md", readme)
	r := newTestRegistry(t, root)

	out := call(t, r, StatToolName, map[string]any{"file_path": path})
	st := decode[struct {
		Path           string           `json:"path"`
		ContentHash    string           `json:"content_hash"`
		HasFrontMatter bool             `json:"has_front_matter"`
		Sections       []mdedit.Section `json:"sections"`
	}](t, out)

	if st.Path != path || st.ContentHash != mdedit.HashBytes([]byte(readme)) {
		t.Errorf("path/hash = %q/%q", st.Path, st.ContentHash)
	}
	if !st.HasFrontMatter || len(st.Sections) != 3 {
		t.Errorf("stat = %+v", st)
	}

	missing := call(t, r, StatToolName, map[string]any{"file_path": filepath.Join(root, "nope.md")})
	if !missing.IsError || !strings.Contains(missing.Content, "Error [FILE_NOT_FOUND]") {
		t.Errorf("missing file output = %+v", missing)
	}
}

func TestStatToolWarnsUnknownParams(t *testing.T) {
	root := tempRoot(t)
	path := writeDoc(t, root, "a.md", "# A\n")
	r := newTestRegistry(t, root)

	out := call(t, r, StatToolName, map[string]any{"file_path": path, "verbose": true})
	if !strings.HasPrefix(out.Content, "Unknown parameter 'verbose' was ignored\n{") {
		t.Errorf("output = %q", out.Content)
	}
}

func TestApplyToolCommits(t *testing.T) {
	root := tempRoot(t)
	path := writeDoc(t, root, "README.md", readme)
	r := newTestRegistry(t, root)
	hash := statHash(t, r, path)

	out := call(t, r, ApplyToolName, map[string]any{
		"file_path":         path,
		"base_content_hash": hash,
		"include_diff":      true,
		"edits": []map[string]any{
			{"op": "replace_match", "pattern": "npm", "replacement": "yarn", "scope": map[string]any{"heading_path": []string{"Usage"}}},
			{"op": "update_front_matter", "set": map[string]any{"version": "2"}},
		},
	})
	if out.IsError {
		t.Fatalf("md_apply failed: %s", out.Content)
	}
	res := decode[applyPayload](t, out)
	if res.State != string(mdedit.StateCommitted) || res.EditsApplied != 2 || res.TransactionID == "" {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Diff, "+Use yarn scripts.") {
		t.Errorf("diff = %q", res.Diff)
	}

	data, _ := os.ReadFile(path)
	got := string(data)
	if !strings.Contains(got, "Use yarn scripts.") || !strings.Contains(got, "npm install\n```") {
		t.Errorf("file content = %q", got)
	}
	if !strings.Contains(got, "version:") {
		t.Errorf("front matter not updated: %q", got)
	}
	if res.ContentHash != mdedit.HashBytes(data) {
		t.Error("returned hash does not match the file on disk")
	}
	if _, err := os.Stat(path + ".lock"); !os.IsNotExist(err) {
		t.Error("lock file left behind")
	}
}

func TestApplyToolStaleHash(t *testing.T) {
	root := tempRoot(t)
	path := writeDoc(t, root, "README.md", readme)
	r := newTestRegistry(t, root)
	hash := statHash(t, r, path)

	// Someone else edits the file after our stat.
	writeDoc(t, root, "README.md", readme+"\nMore.\n")

	out := call(t, r, ApplyToolName, map[string]any{
		"file_path":         path,
		"base_content_hash": hash,
		"edits":             []map[string]any{{"op": "replace_match", "pattern": "Usage", "replacement": "Use"}},
	})
	if !out.IsError {
		t.Fatalf("stale hash accepted: %s", out.Content)
	}
	res := decode[applyPayload](t, out)
	if res.ErrorCode != string(mdedit.ErrPreconditionFailed) || res.State != string(mdedit.StateRolledBack) {
		t.Errorf("result = %+v", res)
	}
	data, _ := os.ReadFile(path)
	if string(data) != readme+"\nMore.\n" {
		t.Error("file modified despite precondition failure")
	}
}

func TestApplyToolFailures(t *testing.T) {
	root := tempRoot(t)
	path := writeDoc(t, root, "README.md", readme)
	r := newTestRegistry(t, root)
	hash := statHash(t, r, path)

	tests := []struct {
		name  string
		edits any
		code  mdedit.ErrorCode
		index int
	}{
		{"only inside code", []map[string]any{{"op": "replace_match", "pattern": "npm install", "replacement": "yarn", "scope": map[string]any{"heading_path": []string{"Install"}}}}, mdedit.ErrNoMatch, 0},
		{"unknown op", []map[string]any{{"op": "replace_match", "pattern": "Demo", "replacement": "D"}, {"op": "rewrite"}}, mdedit.ErrInvalidEdit, 1},
		{"missing section", []map[string]any{{"op": "replace_section", "heading_path": []string{"Teardown"}, "new_markdown": "x"}}, mdedit.ErrSectionNotFound, 0},
		{"edits not an array", map[string]any{"op": "replace_match"}, mdedit.ErrInvalidEdit, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := call(t, r, ApplyToolName, map[string]any{
				"file_path":         path,
				"base_content_hash": hash,
				"edits":             tt.edits,
			})
			if !out.IsError {
				t.Fatalf("apply succeeded: %s", out.Content)
			}
			res := decode[applyPayload](t, out)
			if res.ErrorCode != string(tt.code) {
				t.Errorf("error_code = %s, want %s", res.ErrorCode, tt.code)
			}
			if res.Error == nil || res.Error.EditIndex != tt.index {
				t.Errorf("error = %+v, want edit index %d", res.Error, tt.index)
			}
		})
	}

	data, _ := os.ReadFile(path)
	if string(data) != readme {
		t.Error("failed transactions modified the file")
	}
}

func TestApplyToolDryRun(t *testing.T) {
	root := tempRoot(t)
	path := writeDoc(t, root, "CHANGELOG.md", "# Changes\n\n- one\n")
	r := newTestRegistry(t, root)
	hash := statHash(t, r, path)

	args := map[string]any{
		"file_path":         path,
		"base_content_hash": hash,
		"edits":             []map[string]any{{"op": "insert_after_heading", "heading_path": []string{"Changes"}, "markdown": "- two", "ensure_blank_line": true}},
	}

	// Protected files can be previewed but not written.
	args["dry_run"] = true
	out := call(t, r, ApplyToolName, args)
	res := decode[applyPayload](t, out)
	if res.State != string(mdedit.StatePreviewOnly) || !strings.Contains(res.Diff, "+- two") {
		t.Fatalf("dry run = %+v", res)
	}
	if res.ContentHash == hash {
		t.Error("dry run should report the would-be hash")
	}

	args["dry_run"] = false
	out = call(t, r, ApplyToolName, args)
	if !out.IsError || !strings.Contains(out.Content, "Error [PROTECTED_PATH]") {
		t.Errorf("write to protected file = %+v", out)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "# Changes\n\n- one\n" {
		t.Errorf("file changed: %q", data)
	}
}

func TestApplyToolPreservesCRLF(t *testing.T) {
	root := tempRoot(t)
	orig := "\xEF\xBB\xBF# T\r\n\r\nold text\r\n"
	path := writeDoc(t, root, "win.md", orig)
	r := newTestRegistry(t, root)

	out := call(t, r, ApplyToolName, map[string]any{
		"file_path":         path,
		"base_content_hash": statHash(t, r, path),
		"edits":             []map[string]any{{"op": "replace_match", "pattern": "old", "replacement": "new"}},
	})
	if out.IsError {
		t.Fatalf("apply failed: %s", out.Content)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "\xEF\xBB\xBF# T\r\n\r\nnew text\r\n" {
		t.Errorf("content = %q", data)
	}
}

func TestApplyToolWritesDiagnostics(t *testing.T) {
	root := tempRoot(t)
	diagDir := filepath.Join(tempRoot(t), "diag")
	path := writeDoc(t, root, "a.md", "# A\n")

	policy := NewPathPolicy()
	if err := policy.AddReadDir(root); err != nil {
		t.Fatal(err)
	}
	tool := NewApplyTool(NewEngine(nil), policy, false, diagDir)

	args, _ := json.Marshal(map[string]any{
		"file_path":         path,
		"base_content_hash": mdedit.HashBytes([]byte("# A\n")),
		"edits":             []map[string]any{{"op": "replace_match", "pattern": "zzz", "replacement": "y"}},
	})
	out, err := tool.Execute(context.Background(), args)
	if err != nil || !out.IsError {
		t.Fatalf("Execute() = %+v, %v", out, err)
	}

	entries, err := os.ReadDir(diagDir)
	if err != nil {
		t.Fatalf("diagnostics dir: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("diagnostics files = %d, want json and markdown", len(entries))
	}
}

func TestApplyToolCommandFormatter(t *testing.T) {
	requireCommand(t, "sh")
	root := tempRoot(t)
	path := writeDoc(t, root, "a.md", "# A\n\nbody\n")

	policy := NewPathPolicy()
	if err := policy.AddReadDir(root); err != nil {
		t.Fatal(err)
	}
	engine := mdedit.New(mdedit.Options{Formatter: CommandFormatter{Command: "sh", Args: []string{"-c", "exit 1"}}})
	tool := NewApplyTool(engine, policy, false, "")

	args, _ := json.Marshal(map[string]any{
		"file_path":         path,
		"base_content_hash": mdedit.HashBytes([]byte("# A\n\nbody\n")),
		"format":            true,
		"edits":             []map[string]any{{"op": "replace_match", "pattern": "body", "replacement": "text"}},
	})
	out, _ := tool.Execute(context.Background(), args)
	if out.IsError {
		t.Fatalf("formatter failure should not fail the transaction: %s", out.Content)
	}
	res := decode[applyPayload](t, out)
	found := false
	for _, d := range res.Diagnostics {
		if d.Code == string(mdedit.ErrFormatterFailed) {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %+v, want FORMATTER_FAILED warning", res.Diagnostics)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "# A\n\ntext\n" {
		t.Errorf("content = %q", data)
	}
}

func TestValidateTool(t *testing.T) {
	root := tempRoot(t)
	path := writeDoc(t, root, "a.md", "# A\ntext  x \n# B")
	r := newTestRegistry(t, root)

	out := call(t, r, ValidateToolName, map[string]any{"file_path": path, "autofix_preview": true})
	v := decode[struct {
		Diagnostics      []mdedit.Diagnostic `json:"diagnostics"`
		HasFormatChanges bool                `json:"has_format_changes"`
		AutofixDiff      string              `json:"autofix_diff"`
	}](t, out)

	codes := map[string]bool{}
	for _, d := range v.Diagnostics {
		codes[d.Code] = true
	}
	for _, want := range []string{mdedit.DiagMultipleH1, mdedit.DiagTrailingWhitespace, mdedit.DiagMissingTrailingNewline, mdedit.DiagMissingBlankBeforeHeader} {
		if !codes[want] {
			t.Errorf("missing %s in %v", want, codes)
		}
	}
	if !v.HasFormatChanges || v.AutofixDiff == "" {
		t.Errorf("format preview = %v, %q", v.HasFormatChanges, v.AutofixDiff)
	}
}

func TestReadSectionTool(t *testing.T) {
	root := tempRoot(t)
	path := writeDoc(t, root, "README.md", readme)
	r := newTestRegistry(t, root)

	out := call(t, r, ReadSectionToolName, map[string]any{"file_path": path, "heading_path": []string{"usage"}})
	if out.IsError {
		t.Fatalf("md_read_section failed: %s", out.Content)
	}
	sec := decode[struct {
		Markdown string          `json:"markdown"`
		Section  *mdedit.Section `json:"section"`
	}](t, out)
	if sec.Markdown != "## Usage\n\nUse npm scripts.\n" {
		t.Errorf("markdown = %q", sec.Markdown)
	}

	top := call(t, r, ReadSectionToolName, map[string]any{"file_path": path, "section_id": sec.Section.ID, "include_subsections": false})
	if top.IsError {
		t.Errorf("lookup by id failed: %s", top.Content)
	}

	missing := call(t, r, ReadSectionToolName, map[string]any{"file_path": path, "heading_path": []string{"Instal"}})
	e := decode[mdedit.Error](t, missing)
	if !missing.IsError || e.Code != mdedit.ErrSectionNotFound || len(e.Candidates) == 0 {
		t.Errorf("missing section = %+v", e)
	}
}

func TestFindTool(t *testing.T) {
	root := tempRoot(t)
	writeDoc(t, root, "README.md", "# Readme\n")
	writeDoc(t, root, "docs/guide.md", "# Guide\n\n## Part\n")
	writeDoc(t, root, "docs/notes.txt", "not markdown")
	writeDoc(t, root, ".hidden/skip.md", "# Hidden\n")
	writeDoc(t, root, "docs/bin.md", "\x00\x01")
	r := newTestRegistry(t, root)

	out := call(t, r, FindToolName, map[string]any{"path": root})
	res := decode[FindResult](t, out)
	if len(res.Files) != 3 {
		t.Fatalf("files = %+v", res.Files)
	}
	guide := res.Files[2]
	if guide.FilePath != filepath.Join(root, "docs", "guide.md") || guide.Title != "Guide" || guide.Sections != 2 {
		t.Errorf("guide = %+v", guide)
	}
	if res.Files[1].Skipped != string(ErrBinaryFile) {
		t.Errorf("binary entry = %+v", res.Files[1])
	}

	out = call(t, r, FindToolName, map[string]any{"path": root, "pattern": "docs/*.md"})
	if n := len(decode[FindResult](t, out).Files); n != 2 {
		t.Errorf("docs/*.md matched %d files", n)
	}

	bad := call(t, r, FindToolName, map[string]any{"path": root, "pattern": "[a-"})
	if !bad.IsError {
		t.Errorf("invalid pattern accepted: %s", bad.Content)
	}

	outside := call(t, r, FindToolName, map[string]any{"path": tempRoot(t)})
	if !strings.Contains(outside.Content, fmt.Sprintf("Error [%s]", ErrPathNotInWorkspace)) {
		t.Errorf("outside root = %s", outside.Content)
	}
}
