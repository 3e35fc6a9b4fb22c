package mdedit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Section is a heading and the lines it owns: everything up to the next
// heading of equal or shallower depth, or the end of the document.
type Section struct {
	ID               string   `json:"section_id"`
	HeadingPath      []string `json:"heading_path"`
	CanonicalPath    []string `json:"canonical_heading_path"`
	Level            int      `json:"level"`
	StartLine        int      `json:"start_line"`
	EndLine          int      `json:"end_line"`
	HeadingStartLine int      `json:"-"`
	HeadingEndLine   int      `json:"heading_end_line"`
	Parent           *Section `json:"-"`
}

// Title returns the literal heading text.
func (s *Section) Title() string {
	return s.HeadingPath[len(s.HeadingPath)-1]
}

// sectionID derives a stable identifier from the canonical path and the
// number of earlier sections sharing it.
func sectionID(canonical []string, ordinal int) string {
	key := strings.Join(canonical, "\x1f") + "\x1e" + fmt.Sprint(ordinal)
	sum := sha256.Sum256([]byte(key))
	return "s-" + hex.EncodeToString(sum[:])[:12]
}

func (d *Document) buildSections() {
	d.Sections = nil
	var stack []*Section
	seen := make(map[string]int)

	for _, h := range d.headings {
		for len(stack) > 0 && stack[len(stack)-1].Level >= h.level {
			stack = stack[:len(stack)-1]
		}
		var parent *Section
		path := []string{h.title}
		canon := []string{Canonicalize(h.title)}
		if len(stack) > 0 {
			parent = stack[len(stack)-1]
			path = append(append([]string{}, parent.HeadingPath...), h.title)
			canon = append(append([]string{}, parent.CanonicalPath...), canon[0])
		}

		key := strings.Join(canon, "\x1f")
		ordinal := seen[key]
		seen[key]++

		s := &Section{
			ID:               sectionID(canon, ordinal),
			HeadingPath:      path,
			CanonicalPath:    canon,
			Level:            h.level,
			StartLine:        h.startLine,
			EndLine:          d.LineCount + 1,
			HeadingStartLine: h.startLine,
			HeadingEndLine:   h.endLine,
			Parent:           parent,
		}
		d.Sections = append(d.Sections, s)
		stack = append(stack, s)
	}

	for i, s := range d.Sections {
		for _, next := range d.Sections[i+1:] {
			if next.Level <= s.Level {
				s.EndLine = next.StartLine
				break
			}
		}
	}
}

// Selector addresses a section either by heading path or by section ID.
// Exactly one of the two must be set.
type Selector struct {
	HeadingPath []string `json:"heading_path,omitempty"`
	SectionID   string   `json:"section_id,omitempty"`
}

func (s Selector) String() string {
	if s.SectionID != "" {
		return "section " + s.SectionID
	}
	return "heading " + formatPath(s.HeadingPath)
}

func (s Selector) validate() *Error {
	hasPath := len(s.HeadingPath) > 0
	hasID := s.SectionID != ""
	switch {
	case hasPath && hasID:
		return newError(ErrInvalidHeadingPath, "give either heading_path or section_id, not both")
	case !hasPath && !hasID:
		return newError(ErrInvalidHeadingPath, "heading_path or section_id is required")
	}
	for i, seg := range s.HeadingPath {
		if strings.TrimSpace(seg) == "" {
			return newErrorf(ErrInvalidHeadingPath, "heading_path segment %d is empty", i)
		}
	}
	return nil
}

// Resolve finds the unique section addressed by sel.
//
// A heading path matches every section whose path ends with it. Literal
// titles are tried first; only when nothing matches literally is the
// canonical form compared. More than one match is AMBIGUOUS_HEADING.
func Resolve(doc *Document, sel Selector) (*Section, error) {
	if err := sel.validate(); err != nil {
		return nil, err
	}

	if sel.SectionID != "" {
		for _, s := range doc.Sections {
			if s.ID == sel.SectionID {
				return s, nil
			}
		}
		return nil, newErrorf(ErrSectionNotFound, "no section with id %s", sel.SectionID)
	}

	matches := matchSuffix(doc.Sections, sel.HeadingPath, func(s *Section) []string { return s.HeadingPath })
	if len(matches) == 0 {
		want := CanonicalizePath(sel.HeadingPath)
		matches = matchSuffix(doc.Sections, want, func(s *Section) []string { return s.CanonicalPath })
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		err := newErrorf(ErrSectionNotFound, "no section matches %s", formatPath(sel.HeadingPath))
		err.Candidates = suggestSections(doc, sel.HeadingPath[len(sel.HeadingPath)-1])
		return nil, err
	default:
		err := newErrorf(ErrAmbiguousHeading, "%s matches %d sections; add a parent heading or use section_id",
			formatPath(sel.HeadingPath), len(matches))
		for _, s := range matches {
			err.Candidates = append(err.Candidates, candidateOf(s))
		}
		return nil, err
	}
}

func matchSuffix(sections []*Section, want []string, pathOf func(*Section) []string) []*Section {
	var out []*Section
	for _, s := range sections {
		path := pathOf(s)
		if len(path) < len(want) {
			continue
		}
		tail := path[len(path)-len(want):]
		ok := true
		for i := range want {
			if tail[i] != want[i] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, s)
		}
	}
	return out
}

const maxSuggestions = 3

// suggestSections returns the sections whose titles fuzzily match title.
func suggestSections(doc *Document, title string) []Candidate {
	if len(doc.Sections) == 0 {
		return nil
	}
	titles := make([]string, len(doc.Sections))
	for i, s := range doc.Sections {
		titles[i] = s.Title()
	}
	var out []Candidate
	for _, m := range fuzzy.Find(title, titles) {
		out = append(out, candidateOf(doc.Sections[m.Index]))
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

func candidateOf(s *Section) Candidate {
	return Candidate{HeadingPath: s.HeadingPath, SectionID: s.ID, Line: s.StartLine}
}

// firstChild returns the first nested section of s, or nil.
func (d *Document) firstChild(s *Section) *Section {
	for _, o := range d.Sections {
		if o.StartLine > s.StartLine && o.StartLine < s.EndLine {
			return o
		}
	}
	return nil
}

// SectionText returns the Markdown owned by s, heading included. Without
// subsections the text stops at the first nested heading.
func (d *Document) SectionText(s *Section, includeSubsections bool) string {
	end := s.EndLine
	if !includeSubsections {
		if child := d.firstChild(s); child != nil {
			end = child.StartLine
		}
	}
	return d.text[d.lineOffset(s.StartLine):d.lineOffset(end)]
}
