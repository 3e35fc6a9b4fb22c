package mdedit

import (
	"fmt"
	"strings"
)

// ErrorCode identifies why an edit or transaction failed.
type ErrorCode string

const (
	ErrPreconditionFailed ErrorCode = "PRECONDITION_FAILED"
	ErrAmbiguousMatch     ErrorCode = "AMBIGUOUS_MATCH"
	ErrNoMatch            ErrorCode = "NO_MATCH"
	ErrSectionNotFound    ErrorCode = "SECTION_NOT_FOUND"
	ErrAmbiguousHeading   ErrorCode = "AMBIGUOUS_HEADING"
	ErrInvalidHeadingPath ErrorCode = "INVALID_HEADING_PATH"
	ErrConflictingEdits   ErrorCode = "CONFLICTING_EDITS"
	ErrFormatterFailed    ErrorCode = "FORMATTER_FAILED"
	ErrInvalidRegex       ErrorCode = "INVALID_REGEX"
	ErrInvalidEdit        ErrorCode = "INVALID_EDIT"
	ErrInvalidRange       ErrorCode = "INVALID_RANGE"
	ErrUnknown            ErrorCode = "UNKNOWN_ERROR"
)

// Candidate describes a section the caller may have meant.
type Candidate struct {
	HeadingPath []string `json:"heading_path"`
	SectionID   string   `json:"section_id"`
	Line        int      `json:"line"`
}

// Error is the structured failure returned by every engine operation.
// EditIndex is the 0-based position of the failing edit, or -1 when the
// failure is not tied to a single edit.
type Error struct {
	Code       ErrorCode   `json:"error_code"`
	Message    string      `json:"message"`
	EditIndex  int         `json:"edit_index"`
	Candidates []Candidate `json:"candidates,omitempty"`
	MatchCount *int        `json:"match_count,omitempty"`
}

func (e *Error) Error() string {
	if e.EditIndex >= 0 {
		return fmt.Sprintf("%s: edit %d: %s", e.Code, e.EditIndex, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, EditIndex: -1}
}

func newErrorf(code ErrorCode, format string, args ...interface{}) *Error {
	return newError(code, fmt.Sprintf(format, args...))
}

// AsError converts any error into an *Error, wrapping foreign errors as
// UNKNOWN_ERROR.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return newError(ErrUnknown, err.Error())
}

func withMatchCount(e *Error, n int) *Error {
	e.MatchCount = &n
	return e
}

func formatPath(path []string) string {
	quoted := make([]string, len(path))
	for i, p := range path {
		quoted[i] = fmt.Sprintf("%q", p)
	}
	return "[" + strings.Join(quoted, " > ") + "]"
}
