package mdedit

import (
	"context"
	"fmt"
	"strings"
)

// Validation is the result of Validate.
type Validation struct {
	ContentHash      string       `json:"content_hash"`
	Diagnostics      []Diagnostic `json:"diagnostics"`
	HasFormatChanges bool         `json:"has_format_changes"`
	// AutofixDiff is the diff the built-in formatter would apply, filled in
	// when an autofix preview is requested.
	AutofixDiff string `json:"autofix_diff,omitempty"`
}

// Validate lints raw. It never modifies anything.
func (e *Engine) Validate(raw []byte, autofixPreview bool) *Validation {
	d := Build(raw)
	diags := append([]Diagnostic{}, d.Diagnostics...)
	diags = append(diags, lintHeadings(d)...)
	diags = append(diags, lintLines(d)...)
	sortDiagnostics(diags)

	v := &Validation{ContentHash: d.ContentHash, Diagnostics: diags}
	formatted, err := NormalizeFormatter{}.Format(context.Background(), d.text)
	if err == nil && formatted != d.text {
		v.HasFormatChanges = true
		if autofixPreview {
			v.AutofixDiff = unifiedDiff("", d.text, formatted)
		}
	}
	return v
}

func lintHeadings(d *Document) []Diagnostic {
	var out []Diagnostic
	seen := make(map[string]int)
	prevLevel := 0
	h1 := 0

	for _, s := range d.Sections {
		line := s.HeadingStartLine
		if strings.TrimSpace(s.Title()) == "" {
			out = append(out, Diagnostic{Severity: SeverityWarning, Line: line, Col: 1, Code: DiagEmptyHeading,
				Message: "heading has no text"})
		}

		key := strings.Join(s.CanonicalPath, "\x1f")
		if first, ok := seen[key]; ok {
			out = append(out, Diagnostic{Severity: SeverityWarning, Line: line, Col: 1, Code: DiagDuplicateHeading,
				Message: fmt.Sprintf("heading path %s duplicates line %d; address it by section_id", formatPath(s.HeadingPath), first)})
		} else {
			seen[key] = line
		}

		if prevLevel > 0 && s.Level > prevLevel+1 {
			out = append(out, Diagnostic{Severity: SeverityInfo, Line: line, Col: 1, Code: DiagHeadingLevelSkip,
				Message: fmt.Sprintf("heading level jumps from %d to %d", prevLevel, s.Level)})
		}
		prevLevel = s.Level

		if s.Level == 1 {
			h1++
			if h1 == 2 {
				out = append(out, Diagnostic{Severity: SeverityInfo, Line: line, Col: 1, Code: DiagMultipleH1,
					Message: "document has more than one level 1 heading"})
			}
		}

		if line > 1 && !isBlank(d.lineAt(line-1)) && line-1 != d.frontMatterLastLine() {
			out = append(out, Diagnostic{Severity: SeverityInfo, Line: line, Col: 1, Code: DiagMissingBlankBeforeHeader,
				Message: "heading is not preceded by a blank line"})
		}
	}
	return out
}

func lintLines(d *Document) []Diagnostic {
	var out []Diagnostic
	for n := 1; n <= d.LineCount; n++ {
		if d.inCodeBlock(n) {
			continue
		}
		line := d.lineAt(n)
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == line || isHardBreak(line) {
			continue
		}
		out = append(out, Diagnostic{Severity: SeverityInfo, Line: n, Col: runeLen(trimmed) + 1, Code: DiagTrailingWhitespace,
			Message: "line has trailing whitespace"})
	}
	if d.LineCount > 0 && !strings.HasSuffix(d.text, "\n") {
		out = append(out, Diagnostic{Severity: SeverityInfo, Line: d.LineCount, Code: DiagMissingTrailingNewline,
			Message: "document does not end with a newline"})
	}
	return out
}

// isHardBreak reports whether line ends in exactly two spaces after text,
// the Markdown hard line break.
func isHardBreak(line string) bool {
	return strings.HasSuffix(line, "  ") && !strings.HasSuffix(line, "   ") && strings.TrimSpace(line) != ""
}

// frontMatterLastLine returns the closing delimiter line of the front
// matter, or 0.
func (d *Document) frontMatterLastLine() int {
	if d.fmEnd == 0 {
		return 0
	}
	return d.lineOf(d.fmEnd - 1)
}
