package diagnostics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ApplyFailure contains diagnostic data for a transaction that rolled back.
type ApplyFailure struct {
	Timestamp     time.Time `json:"timestamp"`
	TransactionID string    `json:"transaction_id"`
	FilePath      string    `json:"file_path"`
	ContentHash   string    `json:"content_hash"`
	BaseHash      string    `json:"base_content_hash"`
	ErrorCode     string    `json:"error_code"`
	Message       string    `json:"message"`
	EditIndex     int       `json:"edit_index"`

	// Full context
	Edits       json.RawMessage `json:"edits"`
	FileContent string          `json:"file_content"` // document as read
}

// WriteApplyFailure writes diagnostic data for a failed transaction.
// Creates both a JSON file and a human-readable markdown file, and returns
// the path of the JSON file.
func WriteApplyFailure(dir string, diag *ApplyFailure) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create diagnostics directory: %w", err)
	}

	// Transactions in the same second get distinct names through the id.
	ts := diag.Timestamp.Format("2006-01-02T15-04-05")
	baseName := fmt.Sprintf("apply-failure-%s", ts)
	if id := shortID(diag.TransactionID); id != "" {
		baseName += "-" + id
	}

	jsonPath := filepath.Join(dir, baseName+".json")
	if err := writeJSON(jsonPath, diag); err != nil {
		return "", err
	}

	mdPath := filepath.Join(dir, baseName+".md")
	if err := writeMarkdown(mdPath, diag); err != nil {
		return "", err
	}

	return jsonPath, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeJSON(path string, diag *ApplyFailure) error {
	data, err := json.MarshalIndent(diag, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write diagnostics JSON: %w", err)
	}
	return nil
}

func writeMarkdown(path string, diag *ApplyFailure) error {
	var b strings.Builder

	b.WriteString("# Apply Failure Diagnostic\n\n")
	b.WriteString(fmt.Sprintf("**Timestamp:** %s\n", diag.Timestamp.Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("**Transaction:** %s\n", diag.TransactionID))
	b.WriteString(fmt.Sprintf("**File:** %s\n", diag.FilePath))
	b.WriteString(fmt.Sprintf("**Content hash:** %s\n", diag.ContentHash))
	b.WriteString(fmt.Sprintf("**Base hash:** %s\n", diag.BaseHash))
	b.WriteString(fmt.Sprintf("**Error:** %s\n", diag.ErrorCode))
	if diag.EditIndex >= 0 {
		b.WriteString(fmt.Sprintf("**Edit index:** %d\n", diag.EditIndex))
	}
	b.WriteString(fmt.Sprintf("**Message:** %s\n", diag.Message))
	b.WriteString("\n---\n\n")

	if len(diag.Edits) > 0 {
		b.WriteString("## Edits\n\n")
		b.WriteString("```json\n")
		b.WriteString(indentJSON(diag.Edits))
		b.WriteString("\n```\n\n")
		b.WriteString("---\n\n")
	}

	b.WriteString("## File Content\n\n")
	lang := extToLang(filepath.Ext(diag.FilePath))
	fence := fenceFor(diag.FileContent)
	b.WriteString(fmt.Sprintf("%s%s\n", fence, lang))
	b.WriteString(diag.FileContent)
	if !strings.HasSuffix(diag.FileContent, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(fence + "\n")

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write diagnostics markdown: %w", err)
	}
	return nil
}

func indentJSON(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(data)
}

// fenceFor returns a backtick fence longer than any backtick run in content,
// so Markdown documents with their own fences embed cleanly.
func fenceFor(content string) string {
	longest, run := 0, 0
	for _, r := range content {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	if longest < 3 {
		return "```"
	}
	return strings.Repeat("`", longest+1)
}

// extToLang maps file extensions to markdown code fence language hints.
func extToLang(ext string) string {
	switch strings.ToLower(ext) {
	case ".md", ".markdown", ".mdx":
		return "markdown"
	case ".txt":
		return "text"
	default:
		return ""
	}
}
