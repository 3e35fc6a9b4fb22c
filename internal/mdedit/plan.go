package mdedit

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// EditResult reports the outcome of one edit of a transaction.
type EditResult struct {
	Index        int    `json:"index"`
	Op           Op     `json:"op"`
	Applied      bool   `json:"applied"`
	Replacements int    `json:"replacements,omitempty"`
	MatchCount   *int   `json:"match_count,omitempty"`
	SectionID    string `json:"section_id,omitempty"`
	Error        *Error `json:"error,omitempty"`
}

// Plan is the outcome of running a list of edits against a document: the
// final editing text and what every edit did.
type Plan struct {
	Base    *Document
	Final   *Document
	Results []EditResult
	Applied int
}

// Changed reports whether the plan modifies the document text.
func (p *Plan) Changed() bool {
	return p.Final.text != p.Base.text
}

// replacement is a pending substitution of span with text.
type replacement struct {
	span Span
	text string
}

// planner carries the evolving buffer through a transaction.
type planner struct {
	cur          *Document
	written      []Span
	regexTimeout time.Duration
}

// plan applies edits in order. Every edit is resolved against the document
// produced by the edits before it. With atomic set the first failure is
// returned as an error carrying the edit index; otherwise failures are
// recorded per edit and skipped.
func (p *planner) plan(edits []Edit, atomic bool) (*Plan, error) {
	out := &Plan{Base: p.cur}
	for i, e := range edits {
		res := EditResult{Index: i, Op: e.Op()}

		reps, err := p.resolve(e, &res)
		if err == nil {
			err = p.commit(reps)
		}
		if err != nil {
			ee := AsError(err)
			ee.EditIndex = i
			if atomic {
				return nil, ee
			}
			res.Error = ee
			out.Results = append(out.Results, res)
			continue
		}

		res.Applied = true
		res.Replacements = len(reps)
		out.Applied++
		out.Results = append(out.Results, res)
	}
	out.Final = p.cur
	return out, nil
}

func (p *planner) resolve(e Edit, res *EditResult) ([]replacement, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	switch e := e.(type) {
	case ReplaceRange:
		return p.replaceRange(e)
	case ReplaceMatch:
		return p.replaceMatch(e, res)
	case ReplaceSection:
		return p.replaceSection(e, res)
	case InsertAfterHeading:
		return p.insertAfterHeading(e, res)
	case UpdateFrontMatter:
		return p.updateFrontMatter(e)
	default:
		return nil, newErrorf(ErrInvalidEdit, "unsupported edit %T", e)
	}
}

// commit writes reps into the buffer and rebuilds the document model.
func (p *planner) commit(reps []replacement) error {
	if len(reps) == 0 {
		return nil
	}
	sort.Slice(reps, func(i, j int) bool { return reps[i].span.Start < reps[j].span.Start })
	for i := 1; i < len(reps); i++ {
		if reps[i].span.Start < reps[i-1].span.End {
			return newError(ErrConflictingEdits, "edit produced overlapping replacements")
		}
	}

	text := p.cur.text
	var sb strings.Builder
	prev := 0
	for _, r := range reps {
		sb.WriteString(text[prev:r.span.Start])
		sb.WriteString(r.text)
		prev = r.span.End
	}
	sb.WriteString(text[prev:])

	p.written = shiftWritten(p.written, reps)
	p.cur = p.cur.derive(sb.String())
	return nil
}

// shiftWritten maps previously written spans through reps and adds the
// spans reps themselves write.
func shiftWritten(written []Span, reps []replacement) []Span {
	mapOffset := func(off int, end bool) int {
		delta := 0
		for _, r := range reps {
			if off >= r.span.End {
				delta += len(r.text) - (r.span.End - r.span.Start)
				continue
			}
			if off > r.span.Start {
				if end {
					return r.span.Start + delta + len(r.text)
				}
				return r.span.Start + delta
			}
			break
		}
		return off + delta
	}

	out := make([]Span, 0, len(written)+len(reps))
	for _, w := range written {
		out = append(out, Span{Start: mapOffset(w.Start, false), End: mapOffset(w.End, true)})
	}
	delta := 0
	for _, r := range reps {
		start := r.span.Start + delta
		if len(r.text) > 0 {
			out = append(out, Span{Start: start, End: start + len(r.text)})
		}
		delta += len(r.text) - (r.span.End - r.span.Start)
	}
	return out
}

func (p *planner) replaceRange(e ReplaceRange) ([]replacement, error) {
	d := p.cur
	start, err := d.positionOffset(e.Range.Start)
	if err != nil {
		return nil, err
	}
	end, err := d.positionOffset(e.Range.End)
	if err != nil {
		return nil, err
	}
	span := Span{Start: start, End: end}
	current := d.text[start:end]

	if e.ExpectedText != nil {
		if d.normalizeInput(*e.ExpectedText) != current {
			return nil, newErrorf(ErrPreconditionFailed, "text at %d:%d-%d:%d is %q, expected %q",
				e.Range.Start.Line, e.Range.Start.Col, e.Range.End.Line, e.Range.End.Col,
				truncate(current, 80), truncate(*e.ExpectedText, 80))
		}
	} else {
		for _, w := range p.written {
			if span.overlaps(w) || (span.Start == span.End && w.Start < span.Start && span.Start < w.End) {
				return nil, newErrorf(ErrConflictingEdits,
					"range %d:%d-%d:%d overlaps text written by an earlier edit; supply expected_text to confirm",
					e.Range.Start.Line, e.Range.Start.Col, e.Range.End.Line, e.Range.End.Col)
			}
		}
	}
	return []replacement{{span: span, text: d.normalizeInput(e.Replacement)}}, nil
}

// positionOffset converts a 1-based line and code point column to a byte
// offset. Column LineLen+1 addresses the end of the line, and line
// LineCount+1 column 1 addresses the end of the document.
func (d *Document) positionOffset(pos Position) (int, error) {
	if pos.Line == d.LineCount+1 && pos.Col == 1 {
		return len(d.text), nil
	}
	if pos.Line < 1 || pos.Line > d.LineCount {
		return 0, newErrorf(ErrInvalidRange, "line %d is outside 1..%d", pos.Line, d.LineCount)
	}
	line := d.lineAt(pos.Line)
	if pos.Col < 1 || pos.Col > utf8.RuneCountInString(line)+1 {
		return 0, newErrorf(ErrInvalidRange, "column %d is outside line %d (length %d)", pos.Col, pos.Line, utf8.RuneCountInString(line))
	}
	off := d.lineOffset(pos.Line)
	col := 1
	for i := range line {
		if col == pos.Col {
			return off + i, nil
		}
		col++
	}
	return off + len(line), nil
}

// match is one occurrence found by ReplaceMatch, with the submatches needed
// to expand a regex replacement.
type match struct {
	span Span
	m    *regexp2.Match
}

func (p *planner) replaceMatch(e ReplaceMatch, res *EditResult) ([]replacement, error) {
	d := p.cur
	scope := Span{Start: d.fmEnd, End: len(d.text)}
	if e.Scope != nil {
		sec, err := Resolve(d, *e.Scope)
		if err != nil {
			return nil, err
		}
		res.SectionID = sec.ID
		scope = d.lineSpan(sec.StartLine, sec.EndLine)
		if scope.Start < d.fmEnd {
			scope.Start = d.fmEnd
		}
	}

	var (
		found []match
		err   error
	)
	if e.IsRegex {
		found, err = p.findRegex(e.Pattern, d.text[scope.Start:scope.End], scope.Start)
	} else {
		found = findLiteral(d.normalizeInput(e.Pattern), d.text[scope.Start:scope.End], scope.Start)
	}
	if err != nil {
		return nil, err
	}

	excl := DefaultExclusions()
	if e.Exclusions != nil {
		excl = *e.Exclusions
	}
	zones := d.exclusionZones(excl)
	kept := found[:0]
	for _, m := range found {
		if !overlapsAny(m.span, zones) {
			kept = append(kept, m)
		}
	}
	found = kept

	n := len(found)
	res.MatchCount = &n
	if n == 0 {
		if c := e.ExpectedMatchCount; c != nil && c.Min == 0 {
			return nil, nil
		}
		return nil, withMatchCount(newErrorf(ErrNoMatch, "pattern %q has no match outside excluded zones", e.Pattern), 0)
	}
	if c := e.ExpectedMatchCount; c != nil {
		switch {
		case n > c.Max:
			return nil, withMatchCount(newErrorf(ErrAmbiguousMatch, "pattern %q matched %d times, expected %s", e.Pattern, n, c), n)
		case n < c.Min:
			return nil, withMatchCount(newErrorf(ErrPreconditionFailed, "pattern %q matched %d times, expected %s", e.Pattern, n, c), n)
		}
	}

	switch sel := e.MatchSelection; sel.Kind {
	case SelectFirst:
		found = found[:1]
	case SelectLast:
		found = found[n-1:]
	case SelectIndex:
		if sel.Index > n {
			return nil, withMatchCount(newErrorf(ErrNoMatch, "match_selection %d but pattern %q matched %d times", sel.Index, e.Pattern, n), n)
		}
		found = found[sel.Index-1 : sel.Index]
	}

	replacementText := d.normalizeInput(e.Replacement)
	reps := make([]replacement, len(found))
	for i, m := range found {
		text := replacementText
		if m.m != nil {
			text = expandReplacement(replacementText, m.m)
		}
		reps[i] = replacement{span: m.span, text: text}
	}
	return reps, nil
}

func findLiteral(pattern, s string, base int) []match {
	var out []match
	for off := 0; off <= len(s); {
		i := strings.Index(s[off:], pattern)
		if i < 0 {
			break
		}
		start := base + off + i
		out = append(out, match{span: Span{Start: start, End: start + len(pattern)}})
		off += i + len(pattern)
	}
	return out
}

func (p *planner) findRegex(pattern, s string, base int) ([]match, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, newErrorf(ErrInvalidRegex, "invalid regex %q: %v", pattern, err)
	}
	if p.regexTimeout > 0 {
		re.MatchTimeout = p.regexTimeout
	}

	// regexp2 reports rune indices.
	offsets := make([]int, 0, len(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(s))

	var out []match
	m, err := re.FindStringMatch(s)
	for ; m != nil && err == nil; m, err = re.FindNextMatch(m) {
		if m.Length == 0 {
			continue
		}
		start := offsets[m.Index]
		end := offsets[m.Index+m.Length]
		out = append(out, match{span: Span{Start: base + start, End: base + end}, m: m})
	}
	if err != nil {
		if p.regexTimeout > 0 && strings.Contains(err.Error(), "match timeout") {
			return nil, newErrorf(ErrUnknown, "regex %q exceeded the %s match timeout", pattern, p.regexTimeout)
		}
		return nil, newErrorf(ErrUnknown, "regex %q failed: %v", pattern, err)
	}
	return out, nil
}

// expandReplacement substitutes $n, ${name}, $& and $$ in tmpl.
func expandReplacement(tmpl string, m *regexp2.Match) string {
	if !strings.Contains(tmpl, "$") {
		return tmpl
	}
	var sb strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '$' || i+1 >= len(tmpl) {
			sb.WriteByte(c)
			continue
		}
		next := tmpl[i+1]
		switch {
		case next == '$':
			sb.WriteByte('$')
			i++
		case next == '&':
			sb.WriteString(m.String())
			i++
		case next >= '0' && next <= '9':
			j := i + 1
			for j < len(tmpl) && tmpl[j] >= '0' && tmpl[j] <= '9' {
				j++
			}
			n, _ := strconv.Atoi(tmpl[i+1 : j])
			if g := m.GroupByNumber(n); g != nil {
				sb.WriteString(g.String())
			}
			i = j - 1
		case next == '{':
			end := strings.IndexByte(tmpl[i+2:], '}')
			if end < 0 {
				sb.WriteByte(c)
				continue
			}
			name := tmpl[i+2 : i+2+end]
			var g *regexp2.Group
			if n, err := strconv.Atoi(name); err == nil {
				g = m.GroupByNumber(n)
			} else {
				g = m.GroupByName(name)
			}
			if g != nil {
				sb.WriteString(g.String())
			}
			i += 2 + end
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// exclusionZones returns the byte spans a ReplaceMatch must not touch.
func (d *Document) exclusionZones(x Exclusions) []Span {
	var zones []Span
	if d.fmEnd > 0 {
		zones = append(zones, Span{Start: 0, End: d.fmEnd})
	}
	if x.CodeBlocks {
		for _, cb := range d.CodeBlocks {
			zones = append(zones, d.lineSpan(cb.StartLine, cb.EndLine))
		}
	}
	if x.Tables {
		for _, t := range d.Tables {
			zones = append(zones, d.lineSpan(t.StartLine, t.EndLine))
		}
	}
	if x.InlineCode {
		zones = append(zones, d.InlineCode...)
	}
	if x.LinkDestinations {
		zones = append(zones, d.LinkDests...)
	}
	return zones
}

func (p *planner) replaceSection(e ReplaceSection, res *EditResult) ([]replacement, error) {
	d := p.cur
	sec, err := Resolve(d, e.Selector)
	if err != nil {
		return nil, err
	}
	res.SectionID = sec.ID

	bodyStart := sec.HeadingEndLine + 1
	bodyEnd := sec.EndLine
	if e.KeepSubsections {
		if child := d.firstChild(sec); child != nil {
			bodyEnd = child.StartLine
		}
	}
	span := d.lineSpan(bodyStart, bodyEnd)
	followed := bodyEnd <= d.LineCount

	body := strings.Trim(d.normalizeInput(e.NewMarkdown), "\n")
	var text string
	switch {
	case body != "":
		text = "\n" + body + "\n"
		if followed {
			text += "\n"
		}
	case followed:
		text = "\n"
	}
	if span.Start == len(d.text) && !strings.HasSuffix(d.text, "\n") && text != "" {
		text = "\n" + text
	}
	return []replacement{{span: span, text: text}}, nil
}

func (p *planner) insertAfterHeading(e InsertAfterHeading, res *EditResult) ([]replacement, error) {
	d := p.cur
	sec, err := Resolve(d, e.Selector)
	if err != nil {
		return nil, err
	}
	res.SectionID = sec.ID

	at := sec.HeadingEndLine + 1
	body := d.normalizeInput(e.Markdown)
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}

	var prefix, suffix string
	if at > d.LineCount && !strings.HasSuffix(d.text, "\n") {
		prefix = "\n"
	}
	if e.EnsureBlankLine {
		body = strings.Trim(body, "\n") + "\n"
		if at <= d.LineCount && isBlank(d.lineAt(at)) {
			at++
		} else {
			prefix += "\n"
		}
		if at <= d.LineCount && !isBlank(d.lineAt(at)) {
			suffix = "\n"
		}
	}

	off := d.lineOffset(at)
	return []replacement{{span: Span{Start: off, End: off}, text: prefix + body + suffix}}, nil
}

func (p *planner) updateFrontMatter(e UpdateFrontMatter) ([]replacement, error) {
	d := p.cur
	if d.fmInvalid {
		return nil, newError(ErrPreconditionFailed, "existing front matter is not a valid YAML mapping")
	}
	block, err := mergeFrontMatter(d.FrontMatter, e.Set, e.Remove)
	if err != nil {
		return nil, newError(ErrInvalidEdit, err.Error())
	}
	span := Span{Start: 0, End: d.fmEnd}
	if d.FrontMatter == nil {
		span = Span{}
	}
	return []replacement{{span: span, text: block}}, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
