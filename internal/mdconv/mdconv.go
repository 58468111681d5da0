// Package mdconv turns model-written markdown into document paragraphs.
package mdconv

import (
	"strconv"
	"strings"

	"github.com/dgallion1/reportedit/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Style names given to list paragraphs.
const (
	BulletStyle = "ListBullet"
	NumberStyle = "ListNumber"
)

// Paragraphs converts markdown into paragraphs. Headings get HeadingN
// styles, emphasis becomes bold/italic runs and list items are prefixed
// with their marker.
func Paragraphs(src string) []document.Paragraph {
	return convert(src, false)
}

func convert(src string, plain bool) []document.Paragraph {
	source := []byte(src)
	root := goldmark.New().Parser().Parse(text.NewReader(source))
	c := &converter{src: source, plain: plain}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		c.block(n, "")
	}
	return c.out
}

// PlainText strips markdown syntax, list markers included, and joins the
// resulting paragraphs with newlines.
func PlainText(src string) string {
	paragraphs := convert(src, true)
	lines := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if t := strings.TrimSpace(p.Text()); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}

type converter struct {
	src   []byte
	out   []document.Paragraph
	plain bool
}

type flags struct {
	bold, italic bool
}

func (c *converter) block(n ast.Node, indent string) {
	switch node := n.(type) {
	case *ast.Heading:
		c.emit(document.HeadingStyle(node.Level), "", node)
	case *ast.Paragraph, *ast.TextBlock:
		c.emit("", indent, node)
	case *ast.List:
		num := node.Start
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			marker, style := "• ", BulletStyle
			if node.IsOrdered() {
				marker, style = strconv.Itoa(num)+". ", NumberStyle
				num++
			}
			if c.plain {
				marker = ""
			}
			c.listItem(item, indent, marker, style)
		}
	case *ast.Blockquote:
		for ch := node.FirstChild(); ch != nil; ch = ch.NextSibling() {
			c.block(ch, indent)
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			line := strings.TrimRight(string(seg.Value(c.src)), "\n")
			c.out = append(c.out, document.NewParagraph(line))
		}
	}
}

func (c *converter) listItem(item ast.Node, indent, marker, style string) {
	first := true
	for ch := item.FirstChild(); ch != nil; ch = ch.NextSibling() {
		switch ch.(type) {
		case *ast.Paragraph, *ast.TextBlock:
			prefix := indent
			if first {
				prefix += marker
			}
			c.emit(style, prefix, ch)
			first = false
		default:
			c.block(ch, indent+"  ")
		}
	}
}

func (c *converter) emit(style, prefix string, n ast.Node) {
	p := document.Paragraph{StyleName: style}
	if prefix != "" {
		p.Runs = append(p.Runs, document.Run{Text: prefix})
	}
	p.Runs = c.inline(p.Runs, n, flags{})
	// Trailing line breaks come from soft breaks at the end of a block.
	if k := len(p.Runs); k > 0 {
		p.Runs[k-1].Text = strings.TrimRight(p.Runs[k-1].Text, " \n")
		if p.Runs[k-1].Text == "" {
			p.Runs = p.Runs[:k-1]
		}
	}
	c.out = append(c.out, p)
}

func (c *converter) inline(runs []document.Run, n ast.Node, f flags) []document.Run {
	for ch := n.FirstChild(); ch != nil; ch = ch.NextSibling() {
		switch node := ch.(type) {
		case *ast.Text:
			s := string(node.Segment.Value(c.src))
			if node.SoftLineBreak() {
				s += " "
			}
			if node.HardLineBreak() {
				s += "\n"
			}
			runs = appendRun(runs, s, f)
		case *ast.String:
			runs = appendRun(runs, string(node.Value), f)
		case *ast.Emphasis:
			next := f
			if node.Level >= 2 {
				next.bold = true
			} else {
				next.italic = true
			}
			runs = c.inline(runs, node, next)
		case *ast.AutoLink:
			runs = appendRun(runs, string(node.URL(c.src)), f)
		case *ast.RawHTML:
			// dropped
		default:
			runs = c.inline(runs, node, f)
		}
	}
	return runs
}

// appendRun merges s into the last run when the formatting matches.
func appendRun(runs []document.Run, s string, f flags) []document.Run {
	if s == "" {
		return runs
	}
	if k := len(runs); k > 0 && runs[k-1].Bold == f.bold && runs[k-1].Italic == f.italic && runs[k-1].Props == nil {
		runs[k-1].Text += s
		return runs
	}
	return append(runs, document.Run{Text: s, Bold: f.bold, Italic: f.italic})
}
