package mdedit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Op names an edit variant on the wire.
type Op string

const (
	OpReplaceRange       Op = "replace_range"
	OpReplaceMatch       Op = "replace_match"
	OpReplaceSection     Op = "replace_section"
	OpInsertAfterHeading Op = "insert_after_heading"
	OpUpdateFrontMatter  Op = "update_front_matter"
)

// Edit is one operation of a transaction. The set of implementations is
// closed: ReplaceRange, ReplaceMatch, ReplaceSection, InsertAfterHeading and
// UpdateFrontMatter.
type Edit interface {
	Op() Op
	validate() *Error
}

// Position is a 1-based line and code point column.
type Position struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// ReplaceRange replaces the text at Range. ExpectedText, when set, must equal
// the current text there.
type ReplaceRange struct {
	Range        Range   `json:"range"`
	ExpectedText *string `json:"expected_text,omitempty"`
	Replacement  string  `json:"replacement"`
}

func (ReplaceRange) Op() Op { return OpReplaceRange }

func (e ReplaceRange) validate() *Error {
	s, end := e.Range.Start, e.Range.End
	if s.Line < 1 || s.Col < 1 || end.Line < 1 || end.Col < 1 {
		return newError(ErrInvalidRange, "range positions are 1-based")
	}
	if end.Line < s.Line || (end.Line == s.Line && end.Col < s.Col) {
		return newErrorf(ErrInvalidRange, "range end %d:%d is before start %d:%d", end.Line, end.Col, s.Line, s.Col)
	}
	return nil
}

// ReplaceMatch replaces occurrences of Pattern inside Scope, skipping the
// zones named by Exclusions.
type ReplaceMatch struct {
	Pattern            string         `json:"pattern"`
	IsRegex            bool           `json:"is_regex,omitempty"`
	Replacement        string         `json:"replacement"`
	Scope              *Selector      `json:"scope,omitempty"`
	ExpectedMatchCount *MatchCount    `json:"expected_match_count,omitempty"`
	MatchSelection     MatchSelection `json:"match_selection,omitempty"`
	Exclusions         *Exclusions    `json:"exclusions,omitempty"`
}

func (ReplaceMatch) Op() Op { return OpReplaceMatch }

func (e ReplaceMatch) validate() *Error {
	if e.Pattern == "" {
		return newError(ErrInvalidEdit, "pattern is required")
	}
	if e.Scope != nil {
		if err := e.Scope.validate(); err != nil {
			return err
		}
	}
	if c := e.ExpectedMatchCount; c != nil {
		if c.Min < 0 || c.Max < c.Min {
			return newErrorf(ErrInvalidEdit, "expected_match_count %s is not a valid range", c)
		}
	}
	if e.MatchSelection.Kind == SelectIndex && e.MatchSelection.Index < 1 {
		return newError(ErrInvalidEdit, "match_selection index is 1-based")
	}
	return nil
}

// ReplaceSection replaces the body of a section, keeping its heading.
// With KeepSubsections only the prose before the first nested heading is
// replaced.
type ReplaceSection struct {
	Selector
	NewMarkdown     string `json:"new_markdown"`
	KeepSubsections bool   `json:"keep_subsections,omitempty"`
}

func (ReplaceSection) Op() Op { return OpReplaceSection }

func (e ReplaceSection) validate() *Error { return e.Selector.validate() }

// InsertAfterHeading inserts Markdown right below a section heading.
type InsertAfterHeading struct {
	Selector
	Markdown        string `json:"markdown"`
	EnsureBlankLine bool   `json:"ensure_blank_line,omitempty"`
}

func (InsertAfterHeading) Op() Op { return OpInsertAfterHeading }

func (e InsertAfterHeading) validate() *Error {
	if err := e.Selector.validate(); err != nil {
		return err
	}
	if e.Markdown == "" {
		return newError(ErrInvalidEdit, "markdown is required")
	}
	return nil
}

// UpdateFrontMatter merges Set into the front matter and deletes Remove.
type UpdateFrontMatter struct {
	Set    map[string]any `json:"set,omitempty"`
	Remove []string       `json:"remove,omitempty"`
}

func (UpdateFrontMatter) Op() Op { return OpUpdateFrontMatter }

func (e UpdateFrontMatter) validate() *Error {
	if len(e.Set) == 0 && len(e.Remove) == 0 {
		return newError(ErrInvalidEdit, "set or remove is required")
	}
	for _, k := range e.Remove {
		if _, ok := e.Set[k]; ok {
			return newErrorf(ErrInvalidEdit, "key %q is both set and removed", k)
		}
	}
	return nil
}

// MatchCount is an inclusive range of acceptable match counts. On the wire
// it is either a number or {"min": n, "max": m}. A count of 0 asserts the
// pattern does not occur; the edit then succeeds without changes.
type MatchCount struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Exactly returns a MatchCount that accepts only n.
func Exactly(n int) *MatchCount {
	return &MatchCount{Min: n, Max: n}
}

func (c *MatchCount) String() string {
	if c.Min == c.Max {
		return fmt.Sprint(c.Min)
	}
	return fmt.Sprintf("%d..%d", c.Min, c.Max)
}

func (c *MatchCount) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		c.Min, c.Max = n, n
		return nil
	}
	var r struct {
		Min *int `json:"min"`
		Max *int `json:"max"`
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("expected_match_count must be a number or {min, max}")
	}
	c.Min, c.Max = 1, int(^uint(0)>>1)
	if r.Min != nil {
		c.Min = *r.Min
	}
	if r.Max != nil {
		c.Max = *r.Max
	}
	return nil
}

// SelectionKind picks which of the matches a ReplaceMatch rewrites.
type SelectionKind string

const (
	SelectAll   SelectionKind = ""
	SelectFirst SelectionKind = "first"
	SelectLast  SelectionKind = "last"
	SelectIndex SelectionKind = "index"
)

// MatchSelection is "all", "first", "last" or a 1-based match index.
type MatchSelection struct {
	Kind  SelectionKind
	Index int
}

func (s MatchSelection) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SelectIndex:
		return json.Marshal(s.Index)
	case SelectAll:
		return json.Marshal("all")
	default:
		return json.Marshal(string(s.Kind))
	}
}

func (s *MatchSelection) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*s = MatchSelection{Kind: SelectIndex, Index: n}
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("match_selection must be \"all\", \"first\", \"last\" or a number")
	}
	switch strings.ToLower(str) {
	case "all", "":
		*s = MatchSelection{}
	case "first":
		*s = MatchSelection{Kind: SelectFirst}
	case "last":
		*s = MatchSelection{Kind: SelectLast}
	default:
		return fmt.Errorf("unknown match_selection %q", str)
	}
	return nil
}

// Exclusions toggles the zones a ReplaceMatch skips. Front matter is always
// skipped.
type Exclusions struct {
	CodeBlocks       bool `json:"code_blocks"`
	InlineCode       bool `json:"inline_code"`
	Tables           bool `json:"tables"`
	LinkDestinations bool `json:"link_destinations"`
}

// DefaultExclusions skips code blocks, inline code and tables.
func DefaultExclusions() Exclusions {
	return Exclusions{CodeBlocks: true, InlineCode: true, Tables: true}
}

// UnmarshalJSON accepts a list of zone names to exclude on top of the
// defaults, or an object overriding individual zones.
func (x *Exclusions) UnmarshalJSON(data []byte) error {
	*x = DefaultExclusions()

	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		for _, name := range names {
			flag, ok := x.zone(name)
			if !ok {
				return fmt.Errorf("unknown exclusion %q", name)
			}
			*flag = true
		}
		return nil
	}

	var fields map[string]bool
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("exclusions must be a list of zone names or an object of booleans")
	}
	for name, v := range fields {
		flag, ok := x.zone(name)
		if !ok {
			return fmt.Errorf("unknown exclusion %q", name)
		}
		*flag = v
	}
	return nil
}

func (x *Exclusions) zone(name string) (*bool, bool) {
	key := strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(name))
	switch key {
	case "codeblocks", "code":
		return &x.CodeBlocks, true
	case "inlinecode":
		return &x.InlineCode, true
	case "tables":
		return &x.Tables, true
	case "links", "linkdestinations":
		return &x.LinkDestinations, true
	}
	return nil, false
}

// DecodeEdits parses a JSON array of edit objects, each tagged by "op".
// Unknown fields are rejected.
func DecodeEdits(data []byte) ([]Edit, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, newErrorf(ErrInvalidEdit, "edits must be a JSON array: %v", err)
	}
	edits := make([]Edit, 0, len(raws))
	for i, raw := range raws {
		e, err := DecodeEdit(raw)
		if err != nil {
			ee := AsError(err)
			ee.EditIndex = i
			return nil, ee
		}
		edits = append(edits, e)
	}
	return edits, nil
}

// DecodeEdit parses a single tagged edit object.
func DecodeEdit(raw json.RawMessage) (Edit, error) {
	var tag struct {
		Op Op `json:"op"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, newErrorf(ErrInvalidEdit, "edit must be a JSON object: %v", err)
	}

	var (
		edit Edit
		err  error
	)
	switch tag.Op {
	case OpReplaceRange:
		var w struct {
			Op Op `json:"op"`
			ReplaceRange
		}
		err = strictUnmarshal(raw, &w)
		edit = w.ReplaceRange
	case OpReplaceMatch:
		var w struct {
			Op Op `json:"op"`
			ReplaceMatch
		}
		err = strictUnmarshal(raw, &w)
		edit = w.ReplaceMatch
	case OpReplaceSection:
		var w struct {
			Op Op `json:"op"`
			ReplaceSection
		}
		err = strictUnmarshal(raw, &w)
		edit = w.ReplaceSection
	case OpInsertAfterHeading:
		var w struct {
			Op Op `json:"op"`
			InsertAfterHeading
		}
		err = strictUnmarshal(raw, &w)
		edit = w.InsertAfterHeading
	case OpUpdateFrontMatter:
		var w struct {
			Op Op `json:"op"`
			UpdateFrontMatter
		}
		err = strictUnmarshal(raw, &w)
		edit = w.UpdateFrontMatter
	case "":
		return nil, newError(ErrInvalidEdit, "edit is missing \"op\"")
	default:
		return nil, newErrorf(ErrInvalidEdit, "unknown op %q", tag.Op)
	}
	if err != nil {
		return nil, newErrorf(ErrInvalidEdit, "%s: %v", tag.Op, err)
	}
	if verr := edit.validate(); verr != nil {
		return nil, verr
	}
	return edit, nil
}

// EncodeEdit renders an edit with its "op" tag.
func EncodeEdit(e Edit) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	tag := fmt.Sprintf(`{"op":%q`, e.Op())
	if bytes.Equal(body, []byte("{}")) {
		return []byte(tag + "}"), nil
	}
	return append([]byte(tag+","), body[1:]...), nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
