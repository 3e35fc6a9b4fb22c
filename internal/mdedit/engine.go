package mdedit

import (
	"context"
	"strings"
	"time"

	diff "github.com/shogoki/gotextdiff"
)

// DefaultRegexTimeout bounds a single regex search.
const DefaultRegexTimeout = 2 * time.Second

// Options configures an Engine.
type Options struct {
	// EnsureTrailingNewline appends a final newline to documents an apply
	// changed, if they lack one.
	EnsureTrailingNewline bool
	RegexTimeout          time.Duration
	// Formatter runs when an apply asks for formatting. Nil uses
	// NormalizeFormatter.
	Formatter Formatter
}

// Engine runs stat, validate and apply. It holds configuration only; every
// call starts from the bytes it is given.
type Engine struct {
	opts Options
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.RegexTimeout <= 0 {
		opts.RegexTimeout = DefaultRegexTimeout
	}
	if opts.Formatter == nil {
		opts.Formatter = NormalizeFormatter{}
	}
	return &Engine{opts: opts}
}

// Stat is the structural summary of a document.
type Stat struct {
	ContentHash    string       `json:"content_hash"`
	Encoding       Encoding     `json:"encoding"`
	LineEnding     LineEnding   `json:"line_ending"`
	LineCount      int          `json:"line_count"`
	HasFrontMatter bool         `json:"has_front_matter"`
	FrontMatter    *FrontMatter `json:"front_matter,omitempty"`
	Sections       []*Section   `json:"sections"`
	CodeBlocks     []CodeBlock  `json:"code_blocks"`
	Tables         []Table      `json:"tables"`
	Diagnostics    []Diagnostic `json:"diagnostics,omitempty"`
}

// Stat builds the document model of raw and summarises it.
func (e *Engine) Stat(raw []byte) *Stat {
	d := Build(raw)
	st := &Stat{
		ContentHash:    d.ContentHash,
		Encoding:       d.Encoding,
		LineEnding:     d.LineEnding,
		LineCount:      d.LineCount,
		HasFrontMatter: d.FrontMatter != nil,
		FrontMatter:    d.FrontMatter,
		Sections:       d.Sections,
		CodeBlocks:     d.CodeBlocks,
		Tables:         d.Tables,
		Diagnostics:    d.Diagnostics,
	}
	if st.Sections == nil {
		st.Sections = []*Section{}
	}
	if st.CodeBlocks == nil {
		st.CodeBlocks = []CodeBlock{}
	}
	if st.Tables == nil {
		st.Tables = []Table{}
	}
	return st
}

// State is where an apply call ended.
type State string

const (
	StateValidated   State = "validated"
	StatePlanning    State = "planning"
	StateCommitted   State = "committed"
	StateRolledBack  State = "rolled_back"
	StatePreviewOnly State = "preview_only"
)

// ApplyRequest describes one transaction.
type ApplyRequest struct {
	BaseContentHash string
	Edits           []Edit
	// Atomic aborts the whole transaction on the first failing edit.
	Atomic bool
	DryRun bool
	// Format runs the engine's formatter over the result.
	Format bool
	// IncludeDiff adds a unified diff to committed results. Dry runs always
	// carry one.
	IncludeDiff bool
	// Path labels the diff.
	Path string
}

// Result is the outcome of Apply. On failure Error is set, State is
// rolled_back and NewRaw is nil.
type Result struct {
	State        State        `json:"state"`
	ContentHash  string       `json:"content_hash"`
	EditsApplied int          `json:"edits_applied"`
	Edits        []EditResult `json:"edits,omitempty"`
	Diagnostics  []Diagnostic `json:"diagnostics"`
	Diff         string       `json:"diff,omitempty"`
	ErrorCode    ErrorCode    `json:"error_code,omitempty"`
	Error        *Error       `json:"error,omitempty"`
	Changed      bool         `json:"changed"`

	// NewRaw holds the bytes to persist when State is committed.
	NewRaw []byte `json:"-"`
}

// OK reports whether the transaction succeeded.
func (r *Result) OK() bool {
	return r.Error == nil
}

// Apply runs req.Edits against raw. Nothing is persisted here: a committed
// result carries NewRaw for the caller to write.
func (e *Engine) Apply(ctx context.Context, raw []byte, req ApplyRequest) *Result {
	doc := Build(raw)
	res := &Result{ContentHash: doc.ContentHash, Diagnostics: []Diagnostic{}}

	if req.BaseContentHash == "" {
		return res.fail(newError(ErrPreconditionFailed, "base_content_hash is required; call stat first"))
	}
	if req.BaseContentHash != doc.ContentHash {
		return res.fail(newErrorf(ErrPreconditionFailed,
			"document changed since it was read: base hash %s, current hash %s",
			shortHash(req.BaseContentHash), shortHash(doc.ContentHash)))
	}
	res.State = StateValidated

	if len(req.Edits) == 0 && !req.Format {
		res.NewRaw = raw
		res.Edits = []EditResult{}
		return res.finish(req.DryRun)
	}

	res.State = StatePlanning
	p := &planner{cur: doc, regexTimeout: e.opts.RegexTimeout}
	plan, err := p.plan(req.Edits, req.Atomic)
	if err != nil {
		return res.fail(AsError(err))
	}
	res.Edits = plan.Results
	res.EditsApplied = plan.Applied
	for _, r := range plan.Results {
		if r.Error != nil {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Severity: SeverityWarning,
				Code:     DiagEditSkipped,
				Message:  r.Error.Error(),
			})
		}
	}

	final := plan.Final
	text := final.text
	if text != doc.text && e.opts.EnsureTrailingNewline && text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if req.Format {
		formatted, ferr := e.opts.Formatter.Format(ctx, text)
		if ferr != nil {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Severity: SeverityWarning,
				Code:     string(ErrFormatterFailed),
				Message:  ferr.Error(),
			})
		} else {
			text = doc.normalizeInput(formatted)
		}
	}
	if text != final.text {
		final = final.derive(text)
	}

	res.Changed = text != doc.text
	if res.Changed {
		res.NewRaw = final.Raw
		res.ContentHash = final.ContentHash
	} else {
		res.NewRaw = raw
	}
	res.Diagnostics = append(res.Diagnostics, final.Diagnostics...)
	if req.DryRun || req.IncludeDiff {
		res.Diff = unifiedDiff(req.Path, doc.text, text)
	}
	return res.finish(req.DryRun)
}

func (r *Result) fail(err *Error) *Result {
	r.State = StateRolledBack
	r.Error = err
	r.ErrorCode = err.Code
	r.NewRaw = nil
	r.EditsApplied = 0
	r.Changed = false
	return r
}

func (r *Result) finish(dryRun bool) *Result {
	if dryRun {
		r.State = StatePreviewOnly
	} else {
		r.State = StateCommitted
	}
	return r
}

func unifiedDiff(path, before, after string) string {
	if before == after {
		return ""
	}
	if path == "" {
		path = "document.md"
	}
	return string(diff.Diff(path, []byte(before), path, []byte(after)))
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
