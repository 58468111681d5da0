// Package docxio converts between .docx files and document snapshots.
// Paragraphs an edit did not touch are written back as parsed, so
// features the snapshot does not model (drawings, fields, tables) survive.
package docxio

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dgallion1/reportedit/internal/document"
	"github.com/fumiama/go-docx"
)

// File is a parsed .docx. The raw bytes back the zip reader go-docx keeps
// for the package parts, so they must outlive the File.
type File struct {
	raw     []byte
	doc     *docx.Docx
	anchors []anchor
}

// anchor pins a non-paragraph body item (table, section properties) after
// the original paragraph with index after, or at the start when after < 0.
type anchor struct {
	item  any
	after int
}

// origin is the Source handle of a parsed paragraph.
type origin struct {
	index int
	para  *docx.Paragraph
	style string
	runs  []document.Run
}

// Decode parses data and returns the file with its paragraph snapshot.
func Decode(data []byte) (*File, *document.Document, error) {
	raw := bytes.Clone(data)
	d, err := docx.Parse(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, nil, fmt.Errorf("parse docx: %w", err)
	}
	f := &File{raw: raw, doc: d}
	doc := &document.Document{}
	for _, item := range d.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			f.anchors = append(f.anchors, anchor{item: item, after: len(doc.Paragraphs) - 1})
			continue
		}
		p := document.Paragraph{
			StyleName: paragraphStyle(para),
			Runs:      paragraphRuns(para),
		}
		p.Source = &origin{
			index: len(doc.Paragraphs),
			para:  para,
			style: p.StyleName,
			runs:  p.Clone().Runs,
		}
		doc.Paragraphs = append(doc.Paragraphs, p)
	}
	return f, doc, nil
}

// New returns an empty file based on the library's default template.
func New() *File {
	return &File{doc: docx.New().WithDefaultTheme()}
}

// Encode writes doc into the file and returns the .docx bytes.
func (f *File) Encode(doc *document.Document) ([]byte, error) {
	kept := make(map[int]bool)
	for _, p := range doc.Paragraphs {
		if o, ok := p.Source.(*origin); ok {
			kept[o.index] = true
		}
	}
	// Items anchored to a deleted paragraph move to the nearest kept one
	// before it.
	placed := make(map[int][]any)
	var leading, trailing []any
	for _, a := range f.anchors {
		if _, ok := a.item.(*docx.SectPr); ok {
			trailing = append(trailing, a.item)
			continue
		}
		at := a.after
		for at >= 0 && !kept[at] {
			at--
		}
		if at < 0 {
			leading = append(leading, a.item)
			continue
		}
		placed[at] = append(placed[at], a.item)
	}

	items := make([]any, 0, len(doc.Paragraphs)+len(f.anchors))
	items = append(items, leading...)
	for _, p := range doc.Paragraphs {
		o, _ := p.Source.(*origin)
		items = append(items, buildParagraph(p, o))
		if o != nil {
			items = append(items, placed[o.index]...)
			delete(placed, o.index)
		}
	}
	items = append(items, trailing...)
	f.doc.Document.Body.Items = items

	var buf bytes.Buffer
	if _, err := f.doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return buf.Bytes(), nil
}

// Build encodes doc as a fresh .docx.
func Build(doc *document.Document) ([]byte, error) {
	return New().Encode(doc)
}

// Text returns the plain text of a .docx, one non-blank paragraph per line.
func Text(data []byte) (string, error) {
	_, doc, err := Decode(data)
	if err != nil {
		return "", err
	}
	return doc.PlainText(), nil
}

func paragraphStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

func paragraphRuns(para *docx.Paragraph) []document.Run {
	var runs []document.Run
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			if r, ok := decodeRun(c); ok {
				runs = append(runs, r)
			}
		case *docx.Hyperlink:
			if r, ok := decodeRun(&c.Run); ok {
				runs = append(runs, r)
			}
		}
	}
	return runs
}

func decodeRun(run *docx.Run) (document.Run, bool) {
	var sb strings.Builder
	for _, rc := range run.Children {
		switch t := rc.(type) {
		case *docx.Text:
			sb.WriteString(t.Text)
		case *docx.Tab:
			sb.WriteByte('\t')
		case *docx.BarterRabbet:
			sb.WriteByte('\n')
		}
	}
	if sb.Len() == 0 {
		return document.Run{}, false
	}
	r := document.Run{Text: sb.String()}
	if props := run.RunProperties; props != nil {
		r.Bold = props.Bold != nil
		r.Italic = props.Italic != nil
		r.Underline = props.Underline != nil && props.Underline.Val != "none"
		r.Props = props
	}
	return r, true
}

func unchanged(p document.Paragraph, o *origin) bool {
	if p.StyleName != o.style || len(p.Runs) != len(o.runs) {
		return false
	}
	for i, r := range p.Runs {
		if r != o.runs[i] {
			return false
		}
	}
	return true
}

func buildParagraph(p document.Paragraph, o *origin) *docx.Paragraph {
	if o != nil && unchanged(p, o) {
		return o.para
	}
	para := &docx.Paragraph{Children: make([]any, 0, len(p.Runs))}
	if o != nil && o.para.Properties != nil {
		props := *o.para.Properties
		para.Properties = &props
	}
	if p.StyleName != "" {
		if para.Properties == nil {
			para.Properties = &docx.ParagraphProperties{}
		}
		para.Properties.Style = &docx.Style{Val: p.StyleName}
	} else if para.Properties != nil {
		para.Properties.Style = nil
	}
	for _, r := range p.Runs {
		if r.Text == "" {
			continue
		}
		para.Children = append(para.Children, encodeRun(r))
	}
	return para
}

func encodeRun(r document.Run) *docx.Run {
	props := &docx.RunProperties{}
	if base, ok := r.Props.(*docx.RunProperties); ok && base != nil {
		copied := *base
		props = &copied
	}
	props.Bold, props.Italic, props.Underline = nil, nil, nil
	if r.Bold {
		props.Bold = &docx.Bold{}
	}
	if r.Italic {
		props.Italic = &docx.Italic{}
	}
	if r.Underline {
		props.Underline = &docx.Underline{Val: "single"}
	}
	children := make([]any, 0, 4)
	for i, line := range strings.Split(r.Text, "\n") {
		if i > 0 {
			children = append(children, &docx.BarterRabbet{})
		}
		for j, part := range strings.Split(line, "\t") {
			if j > 0 {
				children = append(children, &docx.Tab{})
			}
			if part != "" {
				children = append(children, &docx.Text{Text: part, XMLSpace: "preserve"})
			}
		}
	}
	return &docx.Run{RunProperties: props, Children: children}
}
