package testutil

import (
	"context"
	"encoding/json"

	"github.com/samsaffron/md-tools/internal/tools"
)

// MockTool is a configurable tool for testing. It records every call so
// tests can assert on what a transport passed through.
type MockTool struct {
	SpecData    tools.ToolSpec
	ExecuteFn   func(ctx context.Context, args json.RawMessage) (tools.ToolOutput, error)
	PreviewFn   func(args json.RawMessage) string
	Invocations []MockToolInvocation
}

// MockToolInvocation records a single tool invocation.
type MockToolInvocation struct {
	Args   json.RawMessage
	Output tools.ToolOutput
	Result string // Shortcut for Output.Content
	Error  error
}

// Ensure MockTool satisfies the tool interface.
var _ tools.Tool = (*MockTool)(nil)

// Spec implements tools.Tool.
func (m *MockTool) Spec() tools.ToolSpec {
	return m.SpecData
}

// Execute implements tools.Tool.
func (m *MockTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolOutput, error) {
	if m.ExecuteFn == nil {
		return tools.ToolOutput{}, nil
	}
	result, err := m.ExecuteFn(ctx, args)
	m.Invocations = append(m.Invocations, MockToolInvocation{
		Args:   args,
		Output: result,
		Result: result.Content,
		Error:  err,
	})
	return result, err
}

// Preview implements tools.Tool.
func (m *MockTool) Preview(args json.RawMessage) string {
	if m.PreviewFn == nil {
		return ""
	}
	return m.PreviewFn(args)
}

// NewMockTool creates a mock tool with the given name that returns a fixed result.
func NewMockTool(name string, result string) *MockTool {
	return &MockTool{
		SpecData: tools.ToolSpec{
			Name:        name,
			Description: "Mock tool: " + name,
			Schema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		ExecuteFn: func(ctx context.Context, args json.RawMessage) (tools.ToolOutput, error) {
			return tools.TextOutput(result), nil
		},
	}
}

// NewFailingMockTool creates a mock tool that reports result as an error output.
func NewFailingMockTool(name string, result string) *MockTool {
	m := NewMockTool(name, result)
	m.ExecuteFn = func(ctx context.Context, args json.RawMessage) (tools.ToolOutput, error) {
		return tools.ErrorOutput(result), nil
	}
	return m
}

// NewMockToolWithSchema creates a mock tool with a custom schema.
func NewMockToolWithSchema(name, description string, schema map[string]interface{}, executeFn func(ctx context.Context, args json.RawMessage) (tools.ToolOutput, error)) *MockTool {
	return &MockTool{
		SpecData: tools.ToolSpec{
			Name:        name,
			Description: description,
			Schema:      schema,
		},
		ExecuteFn: executeFn,
	}
}

// InvocationCount returns the number of times the tool was invoked.
func (m *MockTool) InvocationCount() int {
	return len(m.Invocations)
}

// LastArgs returns the arguments from the last invocation, or nil if never invoked.
func (m *MockTool) LastArgs() json.RawMessage {
	if len(m.Invocations) == 0 {
		return nil
	}
	return m.Invocations[len(m.Invocations)-1].Args
}
