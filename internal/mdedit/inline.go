package mdedit

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// The goldmark instances are configured once and shared; parsing creates
// per-call state.
var (
	documentMarkdown     goldmark.Markdown
	documentMarkdownOnce sync.Once

	headingParser     parser.Parser
	headingParserOnce sync.Once
)

func getDocumentMarkdown() goldmark.Markdown {
	documentMarkdownOnce.Do(func() {
		documentMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return documentMarkdown
}

// getHeadingParser returns a paragraph-only parser so that heading titles
// such as "1. Intro" or "- Notes" are read as inline text, not as lists.
func getHeadingParser() parser.Parser {
	headingParserOnce.Do(func() {
		headingParser = parser.NewParser(
			parser.WithBlockParsers(util.Prioritized(parser.NewParagraphParser(), 100)),
			parser.WithInlineParsers(parser.DefaultInlineParsers()...),
		)
	})
	return headingParser
}

var (
	inlineLinkDest = regexp.MustCompile(`\]\(\s*(<[^>\n]*>|[^\s()<>]+(?:\([^\s()]*\)[^\s()]*)*)`)
	refDefDest     = regexp.MustCompile(`(?m)^ {0,3}\[[^\]\n]+\]:[ \t]*(<[^>\n]*>|\S+)`)
)

// scanInline records inline code spans (from the goldmark AST) and link
// destinations outside code blocks.
func (d *Document) scanInline() {
	base := d.fmEnd
	src := []byte(d.text[base:])
	if len(src) == 0 {
		return
	}

	root := getDocumentMarkdown().Parser().Parse(text.NewReader(src))
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		cs, ok := n.(*ast.CodeSpan)
		if !ok {
			return ast.WalkContinue, nil
		}
		span := Span{Start: -1}
		for c := cs.FirstChild(); c != nil; c = c.NextSibling() {
			t, ok := c.(*ast.Text)
			if !ok {
				continue
			}
			if span.Start < 0 || t.Segment.Start < span.Start {
				span.Start = t.Segment.Start
			}
			if t.Segment.Stop > span.End {
				span.End = t.Segment.Stop
			}
		}
		if span.Start >= 0 && span.End > span.Start {
			d.InlineCode = append(d.InlineCode, Span{Start: span.Start + base, End: span.End + base})
		}
		return ast.WalkSkipChildren, nil
	})
	sort.Slice(d.InlineCode, func(i, j int) bool { return d.InlineCode[i].Start < d.InlineCode[j].Start })

	body := d.text[base:]
	for _, re := range []*regexp.Regexp{inlineLinkDest, refDefDest} {
		for _, m := range re.FindAllStringSubmatchIndex(body, -1) {
			span := Span{Start: m[2] + base, End: m[3] + base}
			if d.inCodeBlock(d.lineOf(span.Start)) || overlapsAny(span, d.InlineCode) {
				continue
			}
			d.LinkDests = append(d.LinkDests, span)
		}
	}
	sort.Slice(d.LinkDests, func(i, j int) bool { return d.LinkDests[i].Start < d.LinkDests[j].Start })
}

// headingPlainText renders a heading title as plain text: emphasis markers,
// link syntax and raw HTML are dropped and code spans are removed.
func headingPlainText(title string) string {
	src := []byte(title)
	root := getHeadingParser().Parse(text.NewReader(src))

	var sb strings.Builder
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.CodeSpan, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			sb.Write(v.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			sb.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

func overlapsAny(s Span, spans []Span) bool {
	for _, o := range spans {
		if s.overlaps(o) {
			return true
		}
	}
	return false
}
