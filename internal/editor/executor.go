package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/dgallion1/reportedit/internal/document"
	"github.com/dgallion1/reportedit/internal/locate"
)

// Result is what callers report back to the user.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Change describes an applied command for the edit log and version entry.
type Change struct {
	Kind        Kind
	Before      string
	After       string
	Paragraph   *int
	Description string
}

// Outcome is the result of one Execute call. Doc is the edited document on
// success and the unmodified input on failure.
type Outcome struct {
	Result
	Doc    *document.Document
	Change Change
	Err    error
}

// Executor runs commands against document snapshots. The zero value uses
// the FallbackRaw paragraph policy and discards logs.
type Executor struct {
	Policy document.ResolvePolicy
	Log    *slog.Logger
}

// NewExecutor returns an executor with the given paragraph policy.
func NewExecutor(policy document.ResolvePolicy, log *slog.Logger) *Executor {
	return &Executor{Policy: policy, Log: log}
}

func (e *Executor) logger() *slog.Logger {
	if e.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Log
}

// Execute applies cmd to doc. doc is never modified. Every failure,
// including a panic in the mutation code, comes back as an Outcome with
// Success false.
func (e *Executor) Execute(doc *document.Document, cmd Command) (out Outcome) {
	out.Doc = doc
	defer func() {
		if r := recover(); r != nil {
			e.logger().Error("edit command panicked", "command", kindOf(cmd), "panic", r, "stack", string(debug.Stack()))
			out = failed(doc, &Failure{Kind: Internal, Message: "the edit could not be applied"})
		}
	}()
	if doc == nil {
		return failed(doc, &Failure{Kind: Internal, Message: "no document loaded"})
	}
	if cmd == nil {
		return failed(doc, &Failure{Kind: Unsupported, Message: "no command given"})
	}

	next, change, msg, err := e.dispatch(doc, cmd)
	if err != nil {
		e.logger().Info("edit command failed", "command", cmd.Kind(), "error", err)
		return failed(doc, err)
	}
	change.Kind = cmd.Kind()
	return Outcome{Result: Result{Success: true, Message: msg}, Doc: next, Change: change}
}

func (e *Executor) dispatch(doc *document.Document, cmd Command) (*document.Document, Change, string, error) {
	switch c := cmd.(type) {
	case ReplaceText:
		return e.replaceText(doc, c)
	case FormatText:
		return e.formatText(doc, c)
	case AddParagraph:
		return e.addParagraph(doc, c)
	case DeleteParagraph:
		return e.deleteParagraph(doc, c)
	case FormatAllText:
		return e.formatAll(doc, c.Style, func(p document.Paragraph) bool { return !p.IsBlank() }, "paragraphs")
	case FormatAllHeadings:
		return e.formatAll(doc, c.Style, document.Paragraph.IsHeading, "headings")
	case ReplaceAllOccurrences:
		return e.replaceAll(doc, c)
	case RemoveFormatting:
		return e.removeFormatting(doc, c)
	case RemoveAllFormatting:
		return e.removeAllFormatting(doc)
	case RewriteDocument:
		return e.rewriteDocument(doc, c)
	}
	return nil, Change{}, "", &Failure{Kind: Unsupported, Message: fmt.Sprintf("unsupported command %T", cmd)}
}

func failed(doc *document.Document, err error) Outcome {
	var f *Failure
	if !errors.As(err, &f) {
		f = &Failure{Kind: Internal, Message: err.Error()}
	}
	return Outcome{Result: Result{Success: false, Message: f.Message}, Doc: doc, Err: f}
}

func kindOf(cmd Command) Kind {
	if cmd == nil {
		return ""
	}
	return cmd.Kind()
}

// find locates target either anywhere in the document or, for a simple
// target with a paragraph hint, in that paragraph only.
func find(doc *document.Document, target string, paragraph *int) (locate.Match, error) {
	texts := doc.Texts()
	if paragraph != nil && !locate.IsComplex(target) {
		if *paragraph < 0 || *paragraph >= len(texts) {
			return nil, notFound("paragraph %d not found (document has %d paragraphs)", *paragraph, len(texts))
		}
		return locate.FindIn(texts, target, *paragraph), nil
	}
	return locate.Find(texts, target), nil
}

func missing(target string, m locate.Match) error {
	msg := fmt.Sprintf("text %q not found", clip(target, 50))
	if nf, ok := m.(locate.NotFound); ok && nf.Closest >= 0 && nf.Similarity >= 0.5 {
		msg += fmt.Sprintf(" (closest match is paragraph %d)", nf.Closest)
	}
	return &Failure{Kind: NotFound, Message: msg}
}

func (e *Executor) replaceText(doc *document.Document, c ReplaceText) (*document.Document, Change, string, error) {
	m, err := find(doc, c.Old, c.Paragraph)
	if err != nil {
		return nil, Change{}, "", err
	}
	if !locate.Found(m) {
		return nil, Change{}, "", missing(c.Old, m)
	}
	spans := m.Spans()
	next := replaceSpans(doc, spans, c.New)
	change := Change{
		Before:      c.Old,
		After:       c.New,
		Paragraph:   firstParagraph(spans, c.Paragraph),
		Description: fmt.Sprintf("Replace text: '%s' → '%s'", clip(c.Old, 30), clip(c.New, 30)),
	}
	if c.New == "" {
		return next, change, fmt.Sprintf("Deleted %q", clip(c.Old, 50)), nil
	}
	return next, change, fmt.Sprintf("Replaced %q with %q", clip(c.Old, 50), clip(c.New, 50)), nil
}

// replaceSpans writes replacement into the located spans. With several
// spans the first receives the replacement's first line, further lines
// become new paragraphs after it, the located text is cut from the other
// spans and paragraphs left blank by the cut are removed.
func replaceSpans(doc *document.Document, spans []locate.Span, replacement string) *document.Document {
	if len(spans) == 1 {
		s := spans[0]
		p := document.ReplaceRange(doc.Paragraphs[s.Paragraph], s.Start, s.End, replacement)
		return doc.WithParagraph(s.Paragraph, p)
	}

	lines := splitLines(replacement)
	head := ""
	if len(lines) > 0 {
		head, lines = lines[0], lines[1:]
	}

	out := doc.Clone()
	var drop []int
	for k := len(spans) - 1; k >= 0; k-- {
		s := spans[k]
		orig := out.Paragraphs[s.Paragraph]
		text := ""
		if k == 0 {
			text = head
		}
		p := document.ReplaceRange(orig, s.Start, s.End, text)
		out.Paragraphs[s.Paragraph] = p
		if p.IsBlank() && !orig.IsBlank() && (k > 0 || len(lines) == 0) {
			drop = append(drop, s.Paragraph)
		}
	}

	first := spans[0].Paragraph
	for i := len(lines) - 1; i >= 0; i-- {
		np := document.NewParagraph(lines[i])
		np.StyleName = out.Paragraphs[first].StyleName
		out = out.Insert(first+1, np)
		for j := range drop {
			if drop[j] > first {
				drop[j]++
			}
		}
	}
	// drop is in descending order, so earlier deletes never shift later
	// indexes.
	for _, i := range drop {
		out = out.Delete(i)
	}
	return out
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, strings.TrimRight(line, "\r"))
		}
	}
	return out
}

func (e *Executor) formatText(doc *document.Document, c FormatText) (*document.Document, Change, string, error) {
	m, err := find(doc, c.Target, c.Paragraph)
	if err != nil {
		return nil, Change{}, "", err
	}
	if !locate.Found(m) {
		return nil, Change{}, "", missing(c.Target, m)
	}
	spans := m.Spans()
	next := restyleSpans(doc, spans, func(p document.Paragraph, s locate.Span) document.Paragraph {
		return document.ApplyStyle(p, s.Start, s.End, c.Style)
	})
	change := Change{
		Before:      c.Target,
		After:       fmt.Sprintf("%s(%s)", c.Style, c.Target),
		Paragraph:   firstParagraph(spans, c.Paragraph),
		Description: "Format text: " + c.Style.String(),
	}
	return next, change, fmt.Sprintf("Formatted %q as %s%s", clip(c.Target, 50), c.Style, spanNote(spans)), nil
}

func (e *Executor) removeFormatting(doc *document.Document, c RemoveFormatting) (*document.Document, Change, string, error) {
	m, err := find(doc, c.Target, c.Paragraph)
	if err != nil {
		return nil, Change{}, "", err
	}
	if !locate.Found(m) && c.Paragraph != nil {
		// The paragraph hint is advisory here: the selection may have been
		// numbered against a stale render.
		m = locate.Find(doc.Texts(), c.Target)
		if locate.Found(m) {
			e.logger().Warn("remove_formatting target found outside hinted paragraph",
				"hint", *c.Paragraph, "found", m.Spans()[0].Paragraph)
		}
	}
	if !locate.Found(m) {
		return nil, Change{}, "", missing(c.Target, m)
	}
	spans := m.Spans()
	styles := document.Styles
	label := "all formatting"
	if c.Style != nil {
		styles = []document.Style{*c.Style}
		label = c.Style.String()
	}
	next := restyleSpans(doc, spans, func(p document.Paragraph, s locate.Span) document.Paragraph {
		for _, st := range styles {
			p = document.ClearStyle(p, s.Start, s.End, st)
		}
		return p
	})
	change := Change{
		Before:      fmt.Sprintf("%s(%s)", label, c.Target),
		After:       c.Target,
		Paragraph:   firstParagraph(spans, c.Paragraph),
		Description: "Remove formatting: " + label,
	}
	return next, change, fmt.Sprintf("Removed %s from %q%s", label, clip(c.Target, 50), spanNote(spans)), nil
}

func restyleSpans(doc *document.Document, spans []locate.Span, fn func(document.Paragraph, locate.Span) document.Paragraph) *document.Document {
	out := doc.Clone()
	for _, s := range spans {
		out.Paragraphs[s.Paragraph] = fn(out.Paragraphs[s.Paragraph], s)
	}
	return out
}

func (e *Executor) addParagraph(doc *document.Document, c AddParagraph) (*document.Document, Change, string, error) {
	p := document.NewParagraph(c.Text)
	change := Change{
		After:       c.Text,
		Paragraph:   c.After,
		Description: fmt.Sprintf("Add paragraph: '%s'", clip(c.Text, 30)),
	}
	if c.After == nil {
		return doc.Insert(doc.Len(), p), change, fmt.Sprintf("Added paragraph %q", clip(c.Text, 30)), nil
	}
	at := *c.After
	if at < 0 || at >= doc.Len() {
		return nil, Change{}, "", notFound("paragraph %d not found (document has %d paragraphs)", at, doc.Len())
	}
	return doc.Insert(at+1, p), change, fmt.Sprintf("Added paragraph %q after paragraph %d", clip(c.Text, 30), at), nil
}

func (e *Executor) deleteParagraph(doc *document.Document, c DeleteParagraph) (*document.Document, Change, string, error) {
	m := document.BuildVisibleMapping(doc)
	real, err := m.Resolve(c.Visible, e.Policy)
	if err != nil {
		return nil, Change{}, "", &Failure{Kind: NotFound, Message: err.Error()}
	}
	if _, visible := m.Visible(real); !visible {
		e.logger().Warn("visible paragraph id resolved to raw index", "id", c.Visible, "index", real, "policy", e.Policy)
	}
	text := doc.Paragraphs[real].Text()
	label := clip(text, 30)
	if strings.TrimSpace(text) == "" {
		label = "[empty paragraph]"
	}
	change := Change{
		Before:      text,
		Paragraph:   &real,
		Description: fmt.Sprintf("Delete paragraph %d", c.Visible),
	}
	return doc.Delete(real), change, fmt.Sprintf("Deleted paragraph %q", label), nil
}

func (e *Executor) formatAll(doc *document.Document, s document.Style, match func(document.Paragraph) bool, noun string) (*document.Document, Change, string, error) {
	out := doc.Clone()
	n := 0
	for i, p := range out.Paragraphs {
		if !match(p) {
			continue
		}
		out.Paragraphs[i] = document.SetStyleAll(p, s, true)
		n++
	}
	scope := "all text"
	if noun == "headings" {
		scope = "all headings"
	}
	change := Change{
		Before:      scope,
		After:       fmt.Sprintf("%s(%s)", s, scope),
		Description: fmt.Sprintf("Format %s: %s", scope, s),
	}
	return out, change, fmt.Sprintf("Applied %s to %s (%d %s)", s, scope, n, noun), nil
}

func (e *Executor) replaceAll(doc *document.Document, c ReplaceAllOccurrences) (*document.Document, Change, string, error) {
	out := doc.Clone()
	total := 0
	for i, p := range out.Paragraphs {
		np, n := document.ReplaceAll(p, c.Old, c.New)
		if n > 0 {
			out.Paragraphs[i] = np
			total += n
		}
	}
	if total == 0 {
		return nil, Change{}, "", &Failure{Kind: NotFound, Message: fmt.Sprintf("text %q not found in the document", clip(c.Old, 50))}
	}
	change := Change{
		Before:      c.Old,
		After:       c.New,
		Description: fmt.Sprintf("Replace all occurrences: '%s' → '%s'", c.Old, c.New),
	}
	return out, change, fmt.Sprintf("Replaced %q with %q %d times", clip(c.Old, 50), clip(c.New, 50), total), nil
}

func (e *Executor) removeAllFormatting(doc *document.Document) (*document.Document, Change, string, error) {
	out := doc.Clone()
	n := 0
	for i, p := range out.Paragraphs {
		if p.IsBlank() {
			continue
		}
		out.Paragraphs[i] = document.ClearAllFormatting(p)
		n++
	}
	change := Change{
		Before:      "all document formatting",
		After:       "plain text",
		Description: "Remove all formatting",
	}
	return out, change, fmt.Sprintf("Removed all formatting (%d paragraphs)", n), nil
}

// rewriteDocument swaps the whole body. Nothing is located, so no old
// paragraph survives.
func (e *Executor) rewriteDocument(doc *document.Document, c RewriteDocument) (*document.Document, Change, string, error) {
	var paragraphs []document.Paragraph
	for _, p := range c.Paragraphs {
		if !p.IsBlank() {
			paragraphs = append(paragraphs, p.Clone())
		}
	}
	if len(paragraphs) == 0 {
		return nil, Change{}, "", invalid("the rewritten document is empty")
	}
	next := document.New(paragraphs...)
	change := Change{
		Before:      doc.PlainText(),
		After:       next.PlainText(),
		Description: "Rewrite document",
	}
	return next, change, fmt.Sprintf("Rewrote the document (%d paragraphs)", len(paragraphs)), nil
}

func firstParagraph(spans []locate.Span, hint *int) *int {
	if len(spans) > 0 {
		i := spans[0].Paragraph
		return &i
	}
	return hint
}

func spanNote(spans []locate.Span) string {
	if len(spans) < 2 {
		return ""
	}
	return fmt.Sprintf(" across %d paragraphs", len(spans))
}

// clip shortens s to n runes, marking the cut with "...".
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
