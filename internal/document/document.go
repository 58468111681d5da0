// Package document holds the paragraph/run snapshot that edit commands
// operate on. Values are treated as immutable: every mutation returns a new
// Paragraph or Document and leaves its input untouched.
package document

import (
	"slices"
	"strconv"
	"strings"
)

// Run is a span of text sharing one formatting state.
type Run struct {
	Text      string
	Bold      bool
	Italic    bool
	Underline bool

	// Props carries codec-specific formatting (font, size, colour) that
	// survives run splitting untouched.
	Props any
}

// Has reports whether the run carries the given style.
func (r Run) Has(s Style) bool {
	switch s {
	case Bold:
		return r.Bold
	case Italic:
		return r.Italic
	case Underline:
		return r.Underline
	}
	return false
}

// With returns a copy of r with style s switched on or off.
func (r Run) With(s Style, on bool) Run {
	switch s {
	case Bold:
		r.Bold = on
	case Italic:
		r.Italic = on
	case Underline:
		r.Underline = on
	}
	return r
}

// Plain returns a copy of r with every style flag cleared.
func (r Run) Plain() Run {
	r.Bold, r.Italic, r.Underline = false, false, false
	return r
}

// Paragraph is an ordered list of runs with a style name such as
// "Normal", "Heading2" or "ListBullet".
type Paragraph struct {
	StyleName string
	Runs      []Run

	// Source is an opaque handle the codec uses to write unchanged
	// paragraphs back verbatim. Nil for paragraphs created by an edit.
	Source any
}

// NewParagraph returns an unstyled paragraph holding text as a single run.
func NewParagraph(text string) Paragraph {
	p := Paragraph{}
	if text != "" {
		p.Runs = []Run{{Text: text}}
	}
	return p
}

// Text concatenates the run texts.
func (p Paragraph) Text() string {
	if len(p.Runs) == 1 {
		return p.Runs[0].Text
	}
	var sb strings.Builder
	for _, r := range p.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// IsBlank reports whether the paragraph has no visible text.
func (p Paragraph) IsBlank() bool {
	return strings.TrimSpace(p.Text()) == ""
}

// IsHeading reports whether the style name marks a heading, Title and
// Subtitle included.
func (p Paragraph) IsHeading() bool {
	return p.HeadingLevel() > 0
}

// HeadingLevel returns 1-6 for "Heading1".."Heading6" (also "heading 2"
// and "Title"/"Subtitle"), 0 otherwise.
func (p Paragraph) HeadingLevel() int {
	return HeadingLevel(p.StyleName)
}

// HeadingLevel maps a paragraph style name to a heading level, 0 when the
// style is not a heading.
func HeadingLevel(style string) int {
	lower := strings.ToLower(strings.TrimSpace(style))
	switch lower {
	case "title":
		return 1
	case "subtitle":
		return 2
	}
	rest, ok := strings.CutPrefix(lower, "heading")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n < 1 || n > 6 {
		return 0
	}
	return n
}

// HeadingStyle returns the canonical style name for a heading level.
func HeadingStyle(level int) string {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return "Heading" + strconv.Itoa(level)
}

// Clone returns a deep copy of the run slice. Props and Source are shared.
func (p Paragraph) Clone() Paragraph {
	p.Runs = slices.Clone(p.Runs)
	return p
}

// Document is an ordered list of paragraphs.
type Document struct {
	Paragraphs []Paragraph
}

// New returns a document holding the given paragraphs.
func New(paragraphs ...Paragraph) *Document {
	return &Document{Paragraphs: paragraphs}
}

// Len returns the number of paragraphs, blank ones included.
func (d *Document) Len() int { return len(d.Paragraphs) }

// Texts returns the text of every paragraph in order.
func (d *Document) Texts() []string {
	out := make([]string, len(d.Paragraphs))
	for i, p := range d.Paragraphs {
		out[i] = p.Text()
	}
	return out
}

// PlainText joins the non-blank paragraphs with newlines.
func (d *Document) PlainText() string {
	var sb strings.Builder
	for _, p := range d.Paragraphs {
		if p.IsBlank() {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(p.Text())
	}
	return sb.String()
}

// Clone returns a copy whose paragraph and run slices can be modified
// without affecting d.
func (d *Document) Clone() *Document {
	out := &Document{Paragraphs: make([]Paragraph, len(d.Paragraphs))}
	for i, p := range d.Paragraphs {
		out.Paragraphs[i] = p.Clone()
	}
	return out
}

// WithParagraph returns a copy of d with paragraph i replaced.
func (d *Document) WithParagraph(i int, p Paragraph) *Document {
	out := &Document{Paragraphs: slices.Clone(d.Paragraphs)}
	out.Paragraphs[i] = p
	return out
}

// Insert returns a copy of d with p inserted at position at. at == Len()
// appends.
func (d *Document) Insert(at int, p Paragraph) *Document {
	return &Document{Paragraphs: slices.Insert(slices.Clone(d.Paragraphs), at, p)}
}

// Delete returns a copy of d without paragraph i.
func (d *Document) Delete(i int) *Document {
	return &Document{Paragraphs: slices.Delete(slices.Clone(d.Paragraphs), i, i+1)}
}
