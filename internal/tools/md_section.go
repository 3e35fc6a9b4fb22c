package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/samsaffron/md-tools/internal/mdedit"
)

// ReadSectionTool implements the md_read_section tool.
type ReadSectionTool struct {
	engine *mdedit.Engine
	policy *PathPolicy
}

// NewReadSectionTool creates a new ReadSectionTool.
func NewReadSectionTool(engine *mdedit.Engine, policy *PathPolicy) *ReadSectionTool {
	return &ReadSectionTool{engine: engine, policy: policy}
}

// ReadSectionArgs are the arguments for md_read_section.
type ReadSectionArgs struct {
	FilePath           string   `json:"file_path"`
	HeadingPath        []string `json:"heading_path,omitempty"`
	SectionID          string   `json:"section_id,omitempty"`
	IncludeSubsections *bool    `json:"include_subsections,omitempty"`
}

// ReadSectionResult is the md_read_section payload.
type ReadSectionResult struct {
	Path        string          `json:"path"`
	ContentHash string          `json:"content_hash"`
	Section     *mdedit.Section `json:"section"`
	Markdown    string          `json:"markdown"`
}

func (t *ReadSectionTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        ReadSectionToolName,
		Description: "Return the Markdown of one section, addressed by heading path (suffix match, e.g. [\"Install\"] or [\"Guide\", \"Install\"]) or by a section_id from md_stat.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the Markdown file",
				},
				"heading_path": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Heading titles from outermost to innermost",
				},
				"section_id": map[string]interface{}{
					"type":        "string",
					"description": "Section id reported by md_stat",
				},
				"include_subsections": map[string]interface{}{
					"type":        "boolean",
					"description": "Include nested sections (default true)",
				},
			},
			"required":             []string{"file_path"},
			"additionalProperties": false,
		},
	}
}

func (t *ReadSectionTool) Preview(args json.RawMessage) string {
	var a ReadSectionArgs
	if err := json.Unmarshal(args, &a); err != nil || a.FilePath == "" {
		return ""
	}
	if a.SectionID != "" {
		return a.FilePath + "#" + a.SectionID
	}
	return a.FilePath + "#" + strings.Join(a.HeadingPath, " > ")
}

func (t *ReadSectionTool) Execute(ctx context.Context, args json.RawMessage) (ToolOutput, error) {
	warning := WarnUnknownParams(args, schemaKeys(t.Spec().Schema))

	var a ReadSectionArgs
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

	doc := mdedit.Build(raw)
	sec, err := mdedit.Resolve(doc, mdedit.Selector{HeadingPath: a.HeadingPath, SectionID: a.SectionID})
	if err != nil {
		return withWarnings(warning, jsonOutput(mdedit.AsError(err), true)), nil
	}

	include := a.IncludeSubsections == nil || *a.IncludeSubsections
	return withWarnings(warning, jsonOutput(ReadSectionResult{
		Path:        path,
		ContentHash: doc.ContentHash,
		Section:     sec,
		Markdown:    doc.SectionText(sec, include),
	}, false)), nil
}
