// Package mdedit implements a deterministic, section-aware Markdown edit
// engine: a structural document model, heading-path resolution, sequential
// multi-edit planning and atomic application guarded by a content hash.
//
// Every operation is a pure function of its inputs. A Document is built fresh
// from raw bytes on each call and the SHA-256 content hash is the only token
// that links one call to the next.
package mdedit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// Encoding names the byte encoding of a document.
type Encoding string

const (
	EncodingUTF8    Encoding = "utf-8"
	EncodingUTF8BOM Encoding = "utf-8-bom"
	EncodingUnknown Encoding = "unknown"
)

// LineEnding names the line terminator style of a document.
type LineEnding string

const (
	LineEndingLF    LineEnding = "LF"
	LineEndingCRLF  LineEnding = "CRLF"
	LineEndingMixed LineEnding = "mixed"
	LineEndingNone  LineEnding = "none"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Span is a half-open byte range [Start, End) into a document's text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Span) overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Document is the structural model of one Markdown file.
//
// Line numbers are 1-based and ranges are half-open. Byte offsets in spans
// refer to the editing text: the raw bytes without a BOM, with CRLF folded to
// LF when the whole document uses CRLF.
type Document struct {
	Raw         []byte
	ContentHash string
	Encoding    Encoding
	LineEnding  LineEnding
	LineCount   int

	FrontMatter *FrontMatter
	Sections    []*Section
	CodeBlocks  []CodeBlock
	Tables      []Table
	InlineCode  []Span
	LinkDests   []Span
	Diagnostics []Diagnostic

	text       string
	lineStarts []int
	headings   []heading
	bom        bool
	fold       bool // CRLF folded to LF in text

	// fmInvalid is set when a delimited front matter block exists but its
	// YAML could not be used. Such a block is scanned as ordinary Markdown.
	fmInvalid bool
	fmEnd     int // byte offset just past a valid front matter block, 0 otherwise
}

// Build parses raw Markdown into a Document. It never fails: problems are
// recorded in Diagnostics.
func Build(raw []byte) *Document {
	doc := &Document{
		Raw:         raw,
		ContentHash: HashBytes(raw),
	}

	body := raw
	if bytes.HasPrefix(body, utf8BOM) {
		doc.bom = true
		body = body[len(utf8BOM):]
	}

	switch {
	case !utf8.Valid(body):
		doc.Encoding = EncodingUnknown
		doc.addDiag(SeverityError, 0, 0, DiagInvalidUTF8, "document is not valid UTF-8")
	case doc.bom:
		doc.Encoding = EncodingUTF8BOM
	default:
		doc.Encoding = EncodingUTF8
	}

	doc.LineEnding = detectLineEnding(body)
	text := string(body)
	if doc.LineEnding == LineEndingCRLF {
		doc.fold = true
		text = strings.ReplaceAll(text, "\r\n", "\n")
	}
	if doc.LineEnding == LineEndingMixed {
		doc.addDiag(SeverityWarning, 0, 0, DiagMixedLineEndings, "document mixes LF and CRLF line endings")
	}

	doc.setText(text)
	return doc
}

// derive builds a Document for new editing text while keeping the encoding
// and line-ending style of d.
func (d *Document) derive(text string) *Document {
	nd := &Document{
		Encoding:   d.Encoding,
		LineEnding: d.LineEnding,
		bom:        d.bom,
		fold:       d.fold,
	}
	nd.Raw = nd.encode(text)
	nd.ContentHash = HashBytes(nd.Raw)
	nd.setText(text)
	return nd
}

func (d *Document) setText(text string) {
	d.text = text
	d.lineStarts = computeLineStarts(text)
	d.LineCount = len(d.lineStarts)
	d.parseFrontMatter()
	d.scanBlocks()
	d.scanInline()
	d.buildSections()
}

// Text returns the editing text of the document.
func (d *Document) Text() string {
	return d.text
}

// encode turns editing text back into bytes in the document's original
// encoding and line-ending style.
func (d *Document) encode(text string) []byte {
	if d.fold {
		text = strings.ReplaceAll(text, "\n", "\r\n")
	}
	if d.bom {
		out := make([]byte, 0, len(utf8BOM)+len(text))
		out = append(out, utf8BOM...)
		return append(out, text...)
	}
	return []byte(text)
}

// normalizeInput adapts caller-supplied text to the editing form.
func (d *Document) normalizeInput(s string) string {
	if d.fold {
		return strings.ReplaceAll(s, "\r\n", "\n")
	}
	return s
}

// HashBytes returns the hex SHA-256 digest used as the content hash.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func detectLineEnding(b []byte) LineEnding {
	crlf := bytes.Count(b, []byte("\r\n"))
	lf := bytes.Count(b, []byte("\n")) - crlf
	switch {
	case crlf == 0 && lf == 0:
		return LineEndingNone
	case crlf > 0 && lf > 0:
		return LineEndingMixed
	case crlf > 0:
		return LineEndingCRLF
	default:
		return LineEndingLF
	}
}

// computeLineStarts returns the byte offset of every line. A trailing
// newline does not open a new line.
func computeLineStarts(text string) []int {
	if text == "" {
		return nil
	}
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' && i+1 < len(text) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineOffset returns the byte offset where 1-based line n starts. Line
// LineCount+1 maps to the end of the text.
func (d *Document) lineOffset(n int) int {
	if n <= 0 {
		return 0
	}
	if n > d.LineCount {
		return len(d.text)
	}
	return d.lineStarts[n-1]
}

// lineAt returns the content of 1-based line n without its terminator.
func (d *Document) lineAt(n int) string {
	if n < 1 || n > d.LineCount {
		return ""
	}
	start := d.lineStarts[n-1]
	end := len(d.text)
	if n < d.LineCount {
		end = d.lineStarts[n] - 1
	} else if strings.HasSuffix(d.text, "\n") {
		end--
	}
	return strings.TrimSuffix(d.text[start:end], "\r")
}

// lineOf returns the 1-based line containing byte offset off.
func (d *Document) lineOf(off int) int {
	lo, hi := 0, len(d.lineStarts)-1
	if hi < 0 {
		return 1
	}
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if d.lineStarts[mid] <= off {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}

// columnOf returns the 1-based code point column of byte offset off.
func (d *Document) columnOf(off int) int {
	start := d.lineOffset(d.lineOf(off))
	if off < start {
		return 1
	}
	return utf8.RuneCountInString(d.text[start:off]) + 1
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
