package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/samsaffron/md-tools/internal/mdedit"
	"github.com/samsaffron/md-tools/internal/tools"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// errToolFailed is returned after a failed tool result has been printed, so
// Execute exits non-zero without printing it twice.
var errToolFailed = errors.New("tool failed")

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	hunkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// rawWhenPiped marks commands whose human output is itself useful in a pipe.
const rawWhenPiped = "raw-when-piped"

// wantJSON reports whether results should be printed as raw JSON.
func wantJSON(cmd *cobra.Command) bool {
	if jsonOutput {
		return true
	}
	if _, ok := cmd.Annotations[rawWhenPiped]; ok {
		return false
	}
	return !stdoutIsTerminal()
}

// terminalWidth returns the stdout width, or 80 when it cannot be read.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// runTool executes a registered tool with args encoded as its JSON input and
// prints the result: raw JSON in JSON mode, otherwise through render.
func runTool(cmd *cobra.Command, f ToolFlags, name string, args any, render func(io.Writer, string) error) error {
	registry, err := newRegistry(f)
	if err != nil {
		return err
	}
	if !registry.IsEnabled(name) {
		return fmt.Errorf("tool %s is not enabled (see tools.enabled or --tools)", name)
	}
	tool, _ := registry.Get(name)

	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode arguments: %w", err)
	}
	out, err := tool.Execute(cmd.Context(), payload)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch {
	case !strings.HasPrefix(out.Content, "{"):
		// Plain tool errors, e.g. "Error [FILE_NOT_FOUND]: ..."
		if out.IsError {
			w = cmd.ErrOrStderr()
		}
		fmt.Fprintln(w, out.Content)
	case wantJSON(cmd) || render == nil:
		fmt.Fprintln(w, out.Content)
	default:
		if err := render(w, out.Content); err != nil {
			return err
		}
	}

	if out.IsError {
		return errToolFailed
	}
	return nil
}

// decodeInto returns a render func that decodes the tool payload into T.
func decodeInto[T any](fn func(io.Writer, *T) error) func(io.Writer, string) error {
	return func(w io.Writer, content string) error {
		var v T
		if err := json.Unmarshal([]byte(content), &v); err != nil {
			return fmt.Errorf("failed to decode tool output: %w", err)
		}
		return fn(w, &v)
	}
}

func lineSpan(start, end int) string {
	if end-1 <= start {
		return fmt.Sprintf("L%d", start)
	}
	return fmt.Sprintf("L%d-%d", start, end-1)
}

func renderStat(w io.Writer, r *tools.StatResult) error {
	fmt.Fprintf(w, "%s\n", titleStyle.Render(r.Path))
	meta := []string{
		string(r.Encoding),
		string(r.LineEnding),
		fmt.Sprintf("%d lines", r.LineCount),
	}
	if r.HasFrontMatter {
		meta = append(meta, "front matter")
	}
	if n := len(r.CodeBlocks); n > 0 {
		meta = append(meta, fmt.Sprintf("%d code blocks", n))
	}
	if n := len(r.Tables); n > 0 {
		meta = append(meta, fmt.Sprintf("%d tables", n))
	}
	fmt.Fprintf(w, "%s\n", mutedStyle.Render(strings.Join(meta, ", ")))
	fmt.Fprintf(w, "hash: %s\n", r.ContentHash)

	if len(r.Sections) > 0 {
		fmt.Fprintln(w)
	}
	for _, s := range r.Sections {
		indent := strings.Repeat("  ", max(s.Level-1, 0))
		heading := indent + strings.Repeat("#", s.Level) + " " + s.Title()
		fmt.Fprintf(w, "%-50s %-10s %s\n", heading, lineSpan(s.StartLine, s.EndLine), mutedStyle.Render(s.ID))
	}
	renderDiagnostics(w, r.Diagnostics)
	return nil
}

func renderDiagnostics(w io.Writer, diags []mdedit.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, d := range diags {
		sev := string(d.Severity)
		switch d.Severity {
		case mdedit.SeverityError:
			sev = errorStyle.Render(sev)
		case mdedit.SeverityWarning:
			sev = warningStyle.Render(sev)
		default:
			sev = mutedStyle.Render(sev)
		}
		loc := ""
		if d.Line > 0 {
			loc = fmt.Sprintf("%d:%d ", d.Line, max(d.Col, 1))
		}
		fmt.Fprintf(w, "%s%s %s %s\n", loc, sev, mutedStyle.Render(d.Code), d.Message)
	}
}

func renderValidate(w io.Writer, r *tools.ValidateResult) error {
	if len(r.Diagnostics) == 0 {
		fmt.Fprintf(w, "%s %s\n", okStyle.Render("ok"), r.Path)
	} else {
		fmt.Fprintf(w, "%s: %d diagnostics\n", r.Path, len(r.Diagnostics))
		renderDiagnostics(w, r.Diagnostics)
	}
	if r.HasFormatChanges {
		fmt.Fprintf(w, "\n%s\n", warningStyle.Render("formatter would change this file"))
	}
	if r.AutofixDiff != "" {
		fmt.Fprintln(w)
		renderDiff(w, r.AutofixDiff)
	}
	return nil
}

func renderApply(w io.Writer, r *tools.ApplyResult) error {
	state := string(r.State)
	if r.OK() {
		state = okStyle.Render(state)
	} else {
		state = errorStyle.Render(state)
	}
	fmt.Fprintf(w, "%s %s (%d edits applied)\n", state, r.Path, r.EditsApplied)
	fmt.Fprintf(w, "hash: %s\n", r.ContentHash)
	if r.Error != nil {
		renderEngineError(w, r.Error)
	}
	renderDiagnostics(w, r.Diagnostics)
	if r.Diff != "" {
		fmt.Fprintln(w)
		renderDiff(w, r.Diff)
	}
	return nil
}

func renderEngineError(w io.Writer, e *mdedit.Error) {
	where := ""
	if e.EditIndex >= 0 {
		where = fmt.Sprintf(" (edit %d)", e.EditIndex)
	}
	fmt.Fprintf(w, "%s%s: %s\n", errorStyle.Render(string(e.Code)), where, e.Message)
	for _, c := range e.Candidates {
		fmt.Fprintf(w, "  candidate: %s  L%d  %s\n", strings.Join(c.HeadingPath, " > "), c.Line, mutedStyle.Render(c.SectionID))
	}
}

// renderDiff colors a unified diff line by line.
func renderDiff(w io.Writer, diff string) {
	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			line = titleStyle.Render(line)
		case strings.HasPrefix(line, "@@"):
			line = hunkStyle.Render(line)
		case strings.HasPrefix(line, "+"):
			line = okStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			line = errorStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
}

// renderSectionMarkdown prints a section: through glamour on a terminal,
// verbatim otherwise so it can be piped into other tools.
func renderSectionMarkdown(w io.Writer, r *tools.ReadSectionResult) error {
	if !stdoutIsTerminal() {
		_, err := io.WriteString(w, r.Markdown)
		return err
	}
	fmt.Fprintf(w, "%s\n", mutedStyle.Render(fmt.Sprintf("%s  %s  %s", r.Path, strings.Join(r.Section.HeadingPath, " > "), r.Section.ID)))
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(terminalWidth()),
	)
	if err != nil {
		return err
	}
	rendered, err := renderer.Render(r.Markdown)
	if err != nil {
		_, err = io.WriteString(w, r.Markdown)
		return err
	}
	_, err = io.WriteString(w, rendered)
	return err
}

func renderFind(w io.Writer, r *tools.FindResult) error {
	if len(r.Files) == 0 {
		fmt.Fprintf(w, "no files match %s under %s\n", r.Pattern, r.Root)
		return nil
	}
	for _, f := range r.Files {
		if f.Skipped != "" {
			fmt.Fprintf(w, "%-40s %s\n", f.FilePath, warningStyle.Render("skipped: "+f.Skipped))
			continue
		}
		fmt.Fprintf(w, "%-40s %3d sections  %s\n", f.FilePath, f.Sections, mutedStyle.Render(f.Title))
	}
	if r.Truncated {
		fmt.Fprintln(w, mutedStyle.Render("(results truncated)"))
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
