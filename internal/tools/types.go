// Package tools exposes the Markdown edit engine as a set of path-aware
// tools shared by the CLI and the MCP server.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolSpec describes a tool for callers that need a name, a description and
// a JSON schema for the arguments.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Schema      map[string]interface{} `json:"input_schema"`
}

// ToolOutput is the text a tool hands back to its caller.
type ToolOutput struct {
	Content string
	// IsError marks outputs that describe a failure. The content still
	// carries the full error payload.
	IsError bool
}

// TextOutput wraps plain text as a successful ToolOutput.
func TextOutput(s string) ToolOutput {
	return ToolOutput{Content: s}
}

// ErrorOutput wraps an error payload.
func ErrorOutput(s string) ToolOutput {
	return ToolOutput{Content: s, IsError: true}
}

// Tool is a single invocable tool.
type Tool interface {
	Spec() ToolSpec
	Execute(ctx context.Context, args json.RawMessage) (ToolOutput, error)
	// Preview returns a one-line description of what a call would do.
	Preview(args json.RawMessage) string
}

// ToolKind categorizes tools for permission grouping.
type ToolKind string

const (
	KindRead   ToolKind = "read"
	KindEdit   ToolKind = "edit"
	KindSearch ToolKind = "search"
)

// ToolErrorType provides structured errors for agent retry logic.
type ToolErrorType string

const (
	ErrFileNotFound       ToolErrorType = "FILE_NOT_FOUND"
	ErrInvalidParams      ToolErrorType = "INVALID_PARAMS"
	ErrPathNotInWorkspace ToolErrorType = "PATH_NOT_IN_WORKSPACE"
	ErrExecutionFailed    ToolErrorType = "EXECUTION_FAILED"
	ErrPermissionDenied   ToolErrorType = "PERMISSION_DENIED"
	ErrBinaryFile         ToolErrorType = "BINARY_FILE"
	ErrFileTooLarge       ToolErrorType = "FILE_TOO_LARGE"
	ErrProtectedPath      ToolErrorType = "PROTECTED_PATH"
)

// ToolError provides structured error information for retry logic.
type ToolError struct {
	Type    ToolErrorType `json:"type"`
	Message string        `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewToolError creates a new ToolError.
func NewToolError(errType ToolErrorType, message string) *ToolError {
	return &ToolError{Type: errType, Message: message}
}

// NewToolErrorf creates a new ToolError with formatted message.
func NewToolErrorf(errType ToolErrorType, format string, args ...interface{}) *ToolError {
	return &ToolError{Type: errType, Message: fmt.Sprintf(format, args...)}
}

// Tool specification names
const (
	StatToolName        = "md_stat"
	ValidateToolName    = "md_validate"
	ApplyToolName       = "md_apply"
	ReadSectionToolName = "md_read_section"
	FindToolName        = "md_find"
)

// AllToolNames returns all valid tool spec names.
func AllToolNames() []string {
	return []string{
		StatToolName,
		ValidateToolName,
		ApplyToolName,
		ReadSectionToolName,
		FindToolName,
	}
}

// validToolNames is a set of valid tool spec names for fast lookup.
var validToolNames = map[string]bool{
	StatToolName:        true,
	ValidateToolName:    true,
	ApplyToolName:       true,
	ReadSectionToolName: true,
	FindToolName:        true,
}

// ValidToolName checks if a name is a valid tool spec name.
func ValidToolName(name string) bool {
	return validToolNames[name]
}

// GetToolKind returns the kind for a tool spec name.
func GetToolKind(specName string) ToolKind {
	switch specName {
	case StatToolName, ValidateToolName, ReadSectionToolName:
		return KindRead
	case ApplyToolName:
		return KindEdit
	case FindToolName:
		return KindSearch
	default:
		return ""
	}
}

// formatToolError renders a ToolError the way every tool reports failures.
func formatToolError(err *ToolError) string {
	return fmt.Sprintf("Error [%s]: %s", err.Type, err.Message)
}

// toolErrorOutput converts err into an error output. Errors that are not
// ToolErrors are reported as execution failures.
func toolErrorOutput(err error) ToolOutput {
	te, ok := err.(*ToolError)
	if !ok {
		te = NewToolError(ErrExecutionFailed, err.Error())
	}
	return ErrorOutput(formatToolError(te))
}

// jsonOutput encodes v as indented JSON.
func jsonOutput(v any, isError bool) ToolOutput {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolErrorOutput(NewToolErrorf(ErrExecutionFailed, "encode result: %v", err))
	}
	return ToolOutput{Content: string(data), IsError: isError}
}
