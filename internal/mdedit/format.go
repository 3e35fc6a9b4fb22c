package mdedit

import (
	"context"
	"strings"
)

// Formatter rewrites a whole document after an apply.
type Formatter interface {
	Format(ctx context.Context, text string) (string, error)
}

// NormalizeFormatter is the built-in formatter. Outside code blocks and
// front matter it trims trailing whitespace (keeping two-space hard
// breaks), puts a blank line before every heading and collapses runs of
// blank lines. The result ends with exactly one newline.
type NormalizeFormatter struct{}

func (NormalizeFormatter) Format(_ context.Context, text string) (string, error) {
	d := Build([]byte(text))
	if d.LineCount == 0 {
		return text, nil
	}

	headingLine := make(map[int]bool, len(d.Sections))
	for _, s := range d.Sections {
		headingLine[s.HeadingStartLine] = true
	}
	fmLast := d.frontMatterLastLine()

	var lines []string
	blankRun := 0
	for n := 1; n <= d.LineCount; n++ {
		line := d.lineAt(n)
		if n <= fmLast || d.inCodeBlock(n) {
			lines = append(lines, line)
			blankRun = 0
			continue
		}

		if !isHardBreak(line) {
			line = strings.TrimRight(line, " \t")
		}
		if line == "" {
			blankRun++
			if blankRun > 1 || len(lines) == 0 {
				continue
			}
			lines = append(lines, line)
			continue
		}

		if headingLine[n] && len(lines) > fmLast && lines[len(lines)-1] != "" {
			lines = append(lines, "")
		}
		lines = append(lines, line)
		blankRun = 0
	}

	for len(lines) > 0 && lines[len(lines)-1] == "" && len(lines) > fmLast {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n") + "\n", nil
}
