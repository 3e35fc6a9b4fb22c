package mdedit

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// CodeBlock is a fenced or indented code region, including its fences.
type CodeBlock struct {
	Language  string `json:"language,omitempty"`
	Fenced    bool   `json:"fenced"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Closed    bool   `json:"closed"`
}

// Table is a GFM table. Rows hold the code point column range [start, end)
// of every cell, header row first.
type Table struct {
	StartLine int          `json:"start_line"`
	EndLine   int          `json:"end_line"`
	Columns   int          `json:"columns"`
	Rows      [][]CellSpan `json:"rows"`
}

// CellSpan is the half-open 1-based column range of one table cell.
type CellSpan struct {
	Line     int `json:"line"`
	StartCol int `json:"start_col"`
	EndCol   int `json:"end_col"`
}

// heading is a raw heading found by the block scanner.
type heading struct {
	level     int
	title     string
	startLine int
	endLine   int // last line of the heading (setext headings span two)
}

type fence struct {
	char   byte
	length int
	indent int
}

// leadingSpaces counts indentation columns, treating a tab as 4.
func leadingSpaces(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4 - n%4
		default:
			return n
		}
	}
	return n
}

func parseFenceOpen(line string) (fence, string, bool) {
	indent := leadingSpaces(line)
	if indent > 3 {
		return fence{}, "", false
	}
	rest := strings.TrimLeft(line, " ")
	if rest == "" || (rest[0] != '`' && rest[0] != '~') {
		return fence{}, "", false
	}
	ch := rest[0]
	n := 0
	for n < len(rest) && rest[n] == ch {
		n++
	}
	if n < 3 {
		return fence{}, "", false
	}
	info := strings.TrimSpace(rest[n:])
	if ch == '`' && strings.Contains(info, "`") {
		return fence{}, "", false
	}
	lang := info
	if i := strings.IndexAny(lang, " \t{"); i >= 0 {
		lang = lang[:i]
	}
	return fence{char: ch, length: n, indent: indent}, lang, true
}

func (f fence) closes(line string) bool {
	if leadingSpaces(line) > 3 {
		return false
	}
	rest := strings.TrimSpace(line)
	if len(rest) < f.length {
		return false
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] != f.char {
			return false
		}
	}
	return true
}

// parseATXHeading returns the level and title of an ATX heading line.
func parseATXHeading(line string) (int, string, bool) {
	if leadingSpaces(line) > 3 {
		return 0, "", false
	}
	rest := strings.TrimLeft(line, " ")
	level := 0
	for level < len(rest) && rest[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, "", false
	}
	rest = rest[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return 0, "", false
	}
	title := strings.TrimSpace(rest)
	// Optional closing sequence: a run of # preceded by a space, or the whole title.
	trimmed := strings.TrimRight(title, "#")
	if trimmed == "" {
		title = ""
	} else if len(trimmed) < len(title) && (strings.HasSuffix(trimmed, " ") || strings.HasSuffix(trimmed, "\t")) {
		title = strings.TrimSpace(trimmed)
	}
	return level, title, true
}

// setextLevel returns 1 for a === underline, 2 for --- and 0 otherwise.
func setextLevel(line string) int {
	if leadingSpaces(line) > 3 {
		return 0
	}
	rest := strings.TrimSpace(line)
	if rest == "" {
		return 0
	}
	ch := rest[0]
	if ch != '=' && ch != '-' {
		return 0
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] != ch {
			return 0
		}
	}
	if ch == '=' {
		return 1
	}
	return 2
}

func isThematicBreak(line string) bool {
	if leadingSpaces(line) > 3 {
		return false
	}
	rest := strings.TrimSpace(line)
	if rest == "" {
		return false
	}
	ch := rest[0]
	if ch != '*' && ch != '-' && ch != '_' {
		return false
	}
	count := 0
	for _, r := range rest {
		switch {
		case byte(r) == ch:
			count++
		case r == ' ' || r == '\t':
		default:
			return false
		}
	}
	return count >= 3
}

func isListItem(line string) bool {
	if leadingSpaces(line) > 3 {
		return false
	}
	rest := strings.TrimLeft(line, " ")
	if rest == "" {
		return false
	}
	if rest[0] == '-' || rest[0] == '+' || rest[0] == '*' {
		return len(rest) == 1 || rest[1] == ' ' || rest[1] == '\t'
	}
	i := 0
	for i < len(rest) && i < 9 && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(rest) || (rest[i] != '.' && rest[i] != ')') {
		return false
	}
	return i+1 == len(rest) || rest[i+1] == ' ' || rest[i+1] == '\t'
}

// splitCells returns the 1-based column ranges of the cells in a table row.
// Leading and trailing pipes are optional; escaped pipes do not split.
func splitCells(line string) [][2]int {
	runes := []rune(line)
	s, e := 0, len(runes)
	for s < e && (runes[s] == ' ' || runes[s] == '\t') {
		s++
	}
	for e > s && (runes[e-1] == ' ' || runes[e-1] == '\t') {
		e--
	}
	if s < e && runes[s] == '|' {
		s++
	}
	if e-1 >= s && runes[e-1] == '|' && (e-2 < 0 || runes[e-2] != '\\') {
		e--
	}

	var cells [][2]int
	prev := s
	for i := s; i < e; i++ {
		if runes[i] == '|' && (i == 0 || runes[i-1] != '\\') {
			cells = append(cells, [2]int{prev + 1, i + 1})
			prev = i + 1
		}
	}
	return append(cells, [2]int{prev + 1, e + 1})
}

func isDelimiterRow(line string) (int, bool) {
	if !strings.Contains(line, "-") {
		return 0, false
	}
	cells := splitCells(line)
	runes := []rune(line)
	for _, c := range cells {
		cell := strings.TrimSpace(string(runes[c[0]-1 : c[1]-1]))
		cell = strings.TrimPrefix(cell, ":")
		cell = strings.TrimSuffix(cell, ":")
		if cell == "" {
			return 0, false
		}
		for i := 0; i < len(cell); i++ {
			if cell[i] != '-' {
				return 0, false
			}
		}
	}
	return len(cells), true
}

// scanBlocks walks the document line by line and records headings, code
// blocks and tables. Headings inside code blocks and front matter are not
// collected.
func (d *Document) scanBlocks() {
	d.headings = nil
	first := 1
	if d.fmEnd > 0 {
		first = d.lineOf(d.fmEnd-1) + 1
	}

	var (
		openFence   *fence
		fenceStart  int
		fenceLang   string
		indentStart int
		indentLast  int
		table       *Table
		inPara      bool
		paraStart   int
		inList      bool
	)

	closeIndented := func() {
		if indentStart > 0 {
			d.CodeBlocks = append(d.CodeBlocks, CodeBlock{StartLine: indentStart, EndLine: indentLast + 1, Closed: true})
			indentStart = 0
		}
	}
	closeTable := func(end int) {
		if table != nil {
			table.EndLine = end
			d.Tables = append(d.Tables, *table)
			table = nil
		}
	}

	for n := first; n <= d.LineCount; n++ {
		line := d.lineAt(n)

		if openFence != nil {
			if openFence.closes(line) {
				d.CodeBlocks = append(d.CodeBlocks, CodeBlock{Language: fenceLang, Fenced: true, StartLine: fenceStart, EndLine: n + 1, Closed: true})
				openFence = nil
			}
			continue
		}

		if indentStart > 0 {
			if isBlank(line) {
				continue
			}
			if leadingSpaces(line) >= 4 {
				indentLast = n
				continue
			}
			closeIndented()
		}

		if table != nil {
			_, _, atx := parseATXHeading(line)
			_, _, fenced := parseFenceOpen(line)
			if !isBlank(line) && strings.Contains(line, "|") && !atx && !fenced {
				table.Rows = append(table.Rows, rowSpans(n, line))
				continue
			}
			closeTable(n)
		}

		if isBlank(line) {
			inPara = false
			continue
		}

		if f, lang, ok := parseFenceOpen(line); ok {
			openFence = &f
			fenceStart = n
			fenceLang = lang
			inPara, inList = false, false
			continue
		}

		if level, title, ok := parseATXHeading(line); ok {
			d.headings = append(d.headings, heading{level: level, title: title, startLine: n, endLine: n})
			inPara, inList = false, false
			continue
		}

		// The whole paragraph above the underline becomes the heading text.
		if level := setextLevel(line); level > 0 && inPara && !inList {
			parts := make([]string, 0, n-paraStart)
			for i := paraStart; i < n; i++ {
				parts = append(parts, strings.TrimSpace(d.lineAt(i)))
			}
			d.headings = append(d.headings, heading{level: level, title: strings.Join(parts, " "), startLine: paraStart, endLine: n})
			inPara = false
			continue
		}

		if isThematicBreak(line) {
			inPara = false
			continue
		}

		if leadingSpaces(line) >= 4 && !inPara && !inList {
			indentStart, indentLast = n, n
			continue
		}

		if !inPara && strings.Contains(line, "|") && n < d.LineCount {
			header := splitCells(line)
			if cols, ok := isDelimiterRow(d.lineAt(n + 1)); ok && cols == len(header) {
				table = &Table{StartLine: n, Columns: cols}
				table.Rows = append(table.Rows, rowSpans(n, line))
				n++
				continue
			}
		}

		if isListItem(line) {
			inList = true
			inPara = true
			paraStart = n
			continue
		}

		if !inPara {
			if leadingSpaces(line) < 2 {
				inList = false
			}
			paraStart = n
		}
		inPara = true
	}

	if openFence != nil {
		d.CodeBlocks = append(d.CodeBlocks, CodeBlock{Language: fenceLang, Fenced: true, StartLine: fenceStart, EndLine: d.LineCount + 1})
		d.addDiag(SeverityWarning, fenceStart, 1, DiagUnbalancedFence,
			fmt.Sprintf("code fence opened on line %d is never closed", fenceStart))
	}
	closeIndented()
	closeTable(d.LineCount + 1)
}

func rowSpans(n int, line string) []CellSpan {
	cells := splitCells(line)
	spans := make([]CellSpan, len(cells))
	for i, c := range cells {
		spans[i] = CellSpan{Line: n, StartCol: c[0], EndCol: c[1]}
	}
	return spans
}

// lineSpan returns the byte span covering lines [start, end).
func (d *Document) lineSpan(start, end int) Span {
	return Span{Start: d.lineOffset(start), End: d.lineOffset(end)}
}

// inCodeBlock reports whether 1-based line n lies in a code block.
func (d *Document) inCodeBlock(n int) bool {
	for _, cb := range d.CodeBlocks {
		if n >= cb.StartLine && n < cb.EndLine {
			return true
		}
	}
	return false
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
