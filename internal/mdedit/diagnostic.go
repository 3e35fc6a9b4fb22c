package mdedit

import "sort"

// Severity grades a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic codes reported by Build, Validate and Apply.
const (
	DiagUnbalancedFence          = "UNBALANCED_FENCE"
	DiagFrontMatterUnterminated  = "FRONT_MATTER_UNTERMINATED"
	DiagFrontMatterInvalid       = "FRONT_MATTER_INVALID"
	DiagInvalidUTF8              = "INVALID_UTF8"
	DiagMixedLineEndings         = "MIXED_LINE_ENDINGS"
	DiagDuplicateHeading         = "DUPLICATE_HEADING"
	DiagHeadingLevelSkip         = "HEADING_LEVEL_SKIP"
	DiagEmptyHeading             = "EMPTY_HEADING"
	DiagMultipleH1               = "MULTIPLE_H1"
	DiagMissingBlankBeforeHeader = "MISSING_BLANK_LINE_BEFORE_HEADING"
	DiagTrailingWhitespace       = "TRAILING_WHITESPACE"
	DiagMissingTrailingNewline   = "MISSING_TRAILING_NEWLINE"
	DiagEditSkipped              = "EDIT_SKIPPED"
)

// Diagnostic is a soft finding about a document. Line and Col are 1-based;
// zero means the finding applies to the whole document.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Line     int      `json:"line,omitempty"`
	Col      int      `json:"col,omitempty"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

func (d *Document) addDiag(sev Severity, line, col int, code, msg string) {
	d.Diagnostics = append(d.Diagnostics, Diagnostic{
		Severity: sev,
		Line:     line,
		Col:      col,
		Code:     code,
		Message:  msg,
	})
}

func sortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Line != diags[j].Line {
			return diags[i].Line < diags[j].Line
		}
		return diags[i].Code < diags[j].Code
	})
}
