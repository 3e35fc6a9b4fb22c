package mdedit

import (
	"context"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		notWant []string
	}{
		{
			name:    "clean document",
			raw:     "# Title\n\nText with a hard break  \nnext line\n\n## Section\n\nBody\n",
			notWant: []string{DiagTrailingWhitespace, DiagMissingBlankBeforeHeader, DiagHeadingLevelSkip},
		},
		{
			name: "duplicate headings",
			raw:  "# T\n\n## Notes\n\n## Notes\n",
			want: []string{DiagDuplicateHeading},
		},
		{
			name: "level skip",
			raw:  "# T\n\n### Deep\n",
			want: []string{DiagHeadingLevelSkip},
		},
		{
			name: "empty heading",
			raw:  "# T\n\n##\n",
			want: []string{DiagEmptyHeading},
		},
		{
			name: "two h1",
			raw:  "# One\n\n# Two\n",
			want: []string{DiagMultipleH1},
		},
		{
			name: "heading glued to paragraph",
			raw:  "# T\n\ntext\n## Next\n",
			want: []string{DiagMissingBlankBeforeHeader},
		},
		{
			name:    "heading right after front matter",
			raw:     "---\na: 1\n---\n# T\n",
			notWant: []string{DiagMissingBlankBeforeHeader},
		},
		{
			name: "trailing whitespace",
			raw:  "# T\n\ntext \n",
			want: []string{DiagTrailingWhitespace},
		},
		{
			name:    "trailing whitespace inside code",
			raw:     "# T\n\n```\ncode   \n```\n",
			notWant: []string{DiagTrailingWhitespace},
		},
		{
			name: "no trailing newline",
			raw:  "# T\n\ntext",
			want: []string{DiagMissingTrailingNewline},
		},
		{
			name: "unbalanced fence",
			raw:  "# T\n\n```\ncode\n",
			want: []string{DiagUnbalancedFence},
		},
	}
	eng := New(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := eng.Validate([]byte(tt.raw), false)
			if v.ContentHash != HashBytes([]byte(tt.raw)) {
				t.Error("content hash mismatch")
			}
			for _, code := range tt.want {
				if !hasDiag(v.Diagnostics, code) {
					t.Errorf("missing %s in %+v", code, v.Diagnostics)
				}
			}
			for _, code := range tt.notWant {
				if hasDiag(v.Diagnostics, code) {
					t.Errorf("unexpected %s in %+v", code, v.Diagnostics)
				}
			}
		})
	}
}

func TestValidateAutofixPreview(t *testing.T) {
	eng := New(Options{})
	raw := []byte("# T\ntext   \n## Next\n")

	v := eng.Validate(raw, false)
	if !v.HasFormatChanges || v.AutofixDiff != "" {
		t.Fatalf("HasFormatChanges = %v, AutofixDiff = %q", v.HasFormatChanges, v.AutofixDiff)
	}

	v = eng.Validate(raw, true)
	if !strings.Contains(v.AutofixDiff, "-text   \n") || !strings.Contains(v.AutofixDiff, "+text\n") {
		t.Errorf("AutofixDiff = %q", v.AutofixDiff)
	}

	clean := eng.Validate([]byte("# T\n\ntext\n"), true)
	if clean.HasFormatChanges || clean.AutofixDiff != "" {
		t.Errorf("clean document reported format changes: %+v", clean)
	}
}

func TestNormalizeFormatter(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already clean", "# T\n\ntext\n", "# T\n\ntext\n"},
		{"adds final newline", "# T\n\ntext", "# T\n\ntext\n"},
		{"drops extra final newlines", "# T\n\ntext\n\n\n", "# T\n\ntext\n"},
		{"blank before heading", "# T\ntext\n## S\nbody\n", "# T\ntext\n\n## S\nbody\n"},
		{"collapses blank runs", "a\n\n\n\nb\n", "a\n\nb\n"},
		{"keeps hard break", "a  \nb\n", "a  \nb\n"},
		{"leaves code alone", "```\nx   \n\n\n\ny\n```\n", "```\nx   \n\n\n\ny\n```\n"},
		{"leaves front matter alone", "---\na: 1   \n---\n# T\n", "---\na: 1   \n---\n# T\n"},
		{"strips leading blank lines", "\n\n# T\n", "# T\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeFormatter{}.Format(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("Format() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Format(%q) = %q, want %q", tt.in, got, tt.want)
			}
			again, _ := NormalizeFormatter{}.Format(context.Background(), got)
			if again != got {
				t.Errorf("Format is not idempotent: %q -> %q", got, again)
			}
		})
	}
}
