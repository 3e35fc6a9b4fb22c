package tools

import (
	"context"
	"encoding/json"

	"github.com/samsaffron/md-tools/internal/mdedit"
)

// StatTool implements the md_stat tool.
type StatTool struct {
	engine *mdedit.Engine
	policy *PathPolicy
}

// NewStatTool creates a new StatTool.
func NewStatTool(engine *mdedit.Engine, policy *PathPolicy) *StatTool {
	return &StatTool{engine: engine, policy: policy}
}

// StatArgs are the arguments for md_stat.
type StatArgs struct {
	FilePath string `json:"file_path"`
}

// StatResult is the md_stat payload.
type StatResult struct {
	Path string `json:"path"`
	*mdedit.Stat
}

func (t *StatTool) Spec() ToolSpec {
	return ToolSpec{
		Name: StatToolName,
		Description: `Summarize the structure of a Markdown file: content hash, encoding, line ending, sections with heading paths and section ids, code blocks, tables and front matter.
Call this before md_apply: its content_hash is the base_content_hash md_apply requires.`,
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the Markdown file",
				},
			},
			"required":             []string{"file_path"},
			"additionalProperties": false,
		},
	}
}

func (t *StatTool) Preview(args json.RawMessage) string {
	var a StatArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return a.FilePath
}

func (t *StatTool) Execute(ctx context.Context, args json.RawMessage) (ToolOutput, error) {
	warning := WarnUnknownParams(args, schemaKeys(t.Spec().Schema))

	var a StatArgs
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

	return withWarnings(warning, jsonOutput(StatResult{Path: path, Stat: t.engine.Stat(raw)}, false)), nil
}
