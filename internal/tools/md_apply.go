package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samsaffron/md-tools/internal/diagnostics"
	"github.com/samsaffron/md-tools/internal/mdedit"
)

// ApplyTool implements the md_apply tool.
type ApplyTool struct {
	engine *mdedit.Engine
	policy *PathPolicy

	// includeDiff attaches a diff to committed results by default.
	includeDiff bool
	// diagDir receives failure dumps; empty disables them.
	diagDir string
}

// NewApplyTool creates a new ApplyTool.
func NewApplyTool(engine *mdedit.Engine, policy *PathPolicy, includeDiff bool, diagDir string) *ApplyTool {
	return &ApplyTool{engine: engine, policy: policy, includeDiff: includeDiff, diagDir: diagDir}
}

// ApplyArgs are the arguments for md_apply.
type ApplyArgs struct {
	FilePath        string          `json:"file_path"`
	BaseContentHash string          `json:"base_content_hash"`
	Edits           json.RawMessage `json:"edits"`
	Atomic          *bool           `json:"atomic,omitempty"`
	DryRun          bool            `json:"dry_run,omitempty"`
	Format          bool            `json:"format,omitempty"`
	IncludeDiff     *bool           `json:"include_diff,omitempty"`
}

// ApplyResult is the md_apply payload.
type ApplyResult struct {
	TransactionID string `json:"transaction_id"`
	Path          string `json:"path"`
	*mdedit.Result
}

func (t *ApplyTool) Spec() ToolSpec {
	return ToolSpec{
		Name: ApplyToolName,
		Description: `Apply a batch of structured edits to a Markdown file as one transaction.
base_content_hash must be the content_hash from a prior md_stat; if the file changed since, nothing is written and PRECONDITION_FAILED is returned.
Edits run in order and each one sees the result of the previous ones. Each edit is an object with an "op":
- replace_range: {range: {start: {line, col}, end: {line, col}}, replacement, expected_text?}
- replace_match: {pattern, replacement, is_regex?, scope?: {heading_path | section_id}, expected_match_count?: n | {min, max}, match_selection?: all|first|last|{index: n}, exclusions?}
  Matches inside code blocks, inline code and tables are skipped unless exclusions say otherwise.
- replace_section: {heading_path | section_id, new_markdown, keep_subsections?}
- insert_after_heading: {heading_path | section_id, markdown, ensure_blank_line?}
- update_front_matter: {set?: {key: value}, remove?: [key]}
With atomic (default true) the first failing edit aborts everything. dry_run returns the diff and the would-be hash without writing.`,
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the Markdown file",
				},
				"base_content_hash": map[string]interface{}{
					"type":        "string",
					"description": "content_hash from md_stat",
				},
				"edits": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "object"},
					"description": "Edits to apply in order",
				},
				"atomic": map[string]interface{}{
					"type":        "boolean",
					"description": "Abort the whole transaction on the first failing edit (default true)",
				},
				"dry_run": map[string]interface{}{
					"type":        "boolean",
					"description": "Compute the result and diff without writing",
				},
				"format": map[string]interface{}{
					"type":        "boolean",
					"description": "Run the configured formatter over the result",
				},
				"include_diff": map[string]interface{}{
					"type":        "boolean",
					"description": "Attach a unified diff to committed results",
				},
			},
			"required":             []string{"file_path", "base_content_hash", "edits"},
			"additionalProperties": false,
		},
	}
}

func (t *ApplyTool) Preview(args json.RawMessage) string {
	var a ApplyArgs
	if err := json.Unmarshal(args, &a); err != nil || a.FilePath == "" {
		return ""
	}
	var edits []json.RawMessage
	_ = json.Unmarshal(a.Edits, &edits)
	suffix := ""
	if a.DryRun {
		suffix = ", dry run"
	}
	return fmt.Sprintf("%s (%d edits%s)", a.FilePath, len(edits), suffix)
}

func (t *ApplyTool) Execute(ctx context.Context, args json.RawMessage) (ToolOutput, error) {
	warning := WarnUnknownParams(args, schemaKeys(t.Spec().Schema))

	var a ApplyArgs
	if err := parseArgs(args, &a); err != nil {
		return withWarnings(warning, toolErrorOutput(err)), nil
	}
	if len(bytes.TrimSpace(a.Edits)) == 0 {
		return withWarnings(warning, toolErrorOutput(NewToolError(ErrInvalidParams, "edits is required"))), nil
	}

	resolve := t.policy.ResolveWrite
	if a.DryRun {
		resolve = t.policy.ResolveRead
	}
	path, err := resolve(a.FilePath)
	if err != nil {
		return withWarnings(warning, toolErrorOutput(err)), nil
	}

	txn := uuid.NewString()
	log := slog.With("txn", txn, "file", path)

	var res *mdedit.Result
	run := func() error {
		raw, err := readDocument(path, t.policy.MaxFileBytes)
		if err != nil {
			return err
		}
		res = t.apply(ctx, raw, path, a)
		if !res.OK() {
			t.dumpFailure(log, txn, path, raw, a, res)
			return nil
		}
		if res.State != mdedit.StateCommitted || !res.Changed {
			return nil
		}

		// The engine saw raw; make sure nobody replaced the file since.
		current, err := readDocument(path, 0)
		if err != nil {
			return err
		}
		if !bytes.Equal(current, raw) {
			res = rollback(res, mdedit.HashBytes(current), &mdedit.Error{
				Code:      mdedit.ErrPreconditionFailed,
				Message:   "file changed on disk while the transaction was running",
				EditIndex: -1,
			})
			return nil
		}
		return writeAtomic(path, res.NewRaw)
	}

	if a.DryRun {
		err = run()
	} else {
		err = withFileLock(path, run)
	}
	if err != nil {
		log.Warn("apply failed", "error", err)
		return withWarnings(warning, toolErrorOutput(err)), nil
	}

	log.Info("apply",
		"state", res.State,
		"edits_applied", res.EditsApplied,
		"changed", res.Changed,
		"error_code", res.ErrorCode,
		"hash", res.ContentHash)

	return withWarnings(warning, jsonOutput(ApplyResult{TransactionID: txn, Path: path, Result: res}, !res.OK())), nil
}

func (t *ApplyTool) apply(ctx context.Context, raw []byte, path string, a ApplyArgs) *mdedit.Result {
	edits, err := mdedit.DecodeEdits(a.Edits)
	if err != nil {
		return rollback(&mdedit.Result{}, mdedit.HashBytes(raw), mdedit.AsError(err))
	}
	includeDiff := t.includeDiff
	if a.IncludeDiff != nil {
		includeDiff = *a.IncludeDiff
	}
	return t.engine.Apply(ctx, raw, mdedit.ApplyRequest{
		BaseContentHash: a.BaseContentHash,
		Edits:           edits,
		Atomic:          a.Atomic == nil || *a.Atomic,
		DryRun:          a.DryRun,
		Format:          a.Format,
		IncludeDiff:     includeDiff,
		Path:            path,
	})
}

// rollback turns res into a rolled-back result for err.
func rollback(res *mdedit.Result, contentHash string, err *mdedit.Error) *mdedit.Result {
	res.State = mdedit.StateRolledBack
	res.ContentHash = contentHash
	res.EditsApplied = 0
	res.Changed = false
	res.Diff = ""
	res.NewRaw = nil
	res.ErrorCode = err.Code
	res.Error = err
	if res.Diagnostics == nil {
		res.Diagnostics = []mdedit.Diagnostic{}
	}
	return res
}

func (t *ApplyTool) dumpFailure(log *slog.Logger, txn, path string, raw []byte, a ApplyArgs, res *mdedit.Result) {
	if t.diagDir == "" {
		return
	}
	file, err := diagnostics.WriteApplyFailure(t.diagDir, &diagnostics.ApplyFailure{
		Timestamp:     time.Now(),
		TransactionID: txn,
		FilePath:      path,
		ContentHash:   res.ContentHash,
		BaseHash:      a.BaseContentHash,
		ErrorCode:     string(res.ErrorCode),
		Message:       res.Error.Message,
		EditIndex:     res.Error.EditIndex,
		Edits:         a.Edits,
		FileContent:   string(raw),
	})
	if err != nil {
		log.Warn("failed to write diagnostics", "error", err)
		return
	}
	log.Debug("wrote apply diagnostics", "path", file)
}
