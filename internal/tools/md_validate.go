package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samsaffron/md-tools/internal/mdedit"
)

// ValidateTool implements the md_validate tool.
type ValidateTool struct {
	engine *mdedit.Engine
	policy *PathPolicy
}

// NewValidateTool creates a new ValidateTool.
func NewValidateTool(engine *mdedit.Engine, policy *PathPolicy) *ValidateTool {
	return &ValidateTool{engine: engine, policy: policy}
}

// ValidateArgs are the arguments for md_validate.
type ValidateArgs struct {
	FilePath       string `json:"file_path"`
	AutofixPreview bool   `json:"autofix_preview,omitempty"`
}

// ValidateResult is the md_validate payload.
type ValidateResult struct {
	Path string `json:"path"`
	*mdedit.Validation
}

func (t *ValidateTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        ValidateToolName,
		Description: "Lint a Markdown file without modifying it. Reports diagnostics (severity, line, col, code, message) and whether the built-in formatter would change the file.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the Markdown file",
				},
				"autofix_preview": map[string]interface{}{
					"type":        "boolean",
					"description": "Include the diff the built-in formatter would apply",
				},
			},
			"required":             []string{"file_path"},
			"additionalProperties": false,
		},
	}
}

func (t *ValidateTool) Preview(args json.RawMessage) string {
	var a ValidateArgs
	if err := json.Unmarshal(args, &a); err != nil || a.FilePath == "" {
		return ""
	}
	if a.AutofixPreview {
		return fmt.Sprintf("%s (autofix preview)", a.FilePath)
	}
	return a.FilePath
}

func (t *ValidateTool) Execute(ctx context.Context, args json.RawMessage) (ToolOutput, error) {
	warning := WarnUnknownParams(args, schemaKeys(t.Spec().Schema))

	var a ValidateArgs
	if err := parseArgs(args, &a); err != nil {
		return withWarnings(warning, toolErrorOutput(err)), nil
	}

	path, err := t.policy.ResolveRead(a.FilePath)
	if err != nil {
		return withWarnings(warning, toolErrorOutput(err)), nil
	}
	raw, err := readDocument(path, t.policy.MaxFileBytes)
	if err != nil {
		return withWarnings(warning, toolErrorOutput(err)), nil
	}

	v := t.engine.Validate(raw, a.AutofixPreview)
	return withWarnings(warning, jsonOutput(ValidateResult{Path: path, Validation: v}, false)), nil
}
