package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// UnknownParams returns the sorted keys of args that are not in knownKeys.
func UnknownParams(args json.RawMessage, knownKeys []string) []string {
	var m map[string]interface{}
	if err := json.Unmarshal(args, &m); err != nil {
		return nil
	}
	known := make(map[string]bool, len(knownKeys))
	for _, k := range knownKeys {
		known[k] = true
	}
	var unknown []string
	for k := range m {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// WarnUnknownParams checks args JSON for keys not in knownKeys.
// Returns a warning string (with trailing newline) to prepend to tool output,
// or "" if no unknown keys found.
func WarnUnknownParams(args json.RawMessage, knownKeys []string) string {
	unknown := UnknownParams(args, knownKeys)
	if len(unknown) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, k := range unknown {
		sb.WriteString(fmt.Sprintf("Unknown parameter '%s' was ignored\n", k))
	}
	return sb.String()
}

// schemaKeys lists the property names of a tool schema.
func schemaKeys(schema map[string]interface{}) []string {
	props, _ := schema["properties"].(map[string]interface{})
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseArgs decodes args into v. An empty payload decodes as {}.
func parseArgs(args json.RawMessage, v any) *ToolError {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return NewToolErrorf(ErrInvalidParams, "invalid arguments: %v", err)
	}
	return nil
}

// withWarnings prepends unknown-parameter warnings to out.
func withWarnings(warn string, out ToolOutput) ToolOutput {
	if warn != "" {
		out.Content = warn + out.Content
	}
	return out
}
