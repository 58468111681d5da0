package sources

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Markdown handles markdown files.
type Markdown struct{}

func (Markdown) Extract(r io.Reader, name string) (*Source, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	o := newOutline(name)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			o.heading(h.Level, nodeText(h, src))
			continue
		}
		o.block(nodeText(n, src))
	}
	return o.done(), nil
}

// nodeText flattens a block: raw lines for code blocks, inline text for
// everything else.
func nodeText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	switch n.Kind() {
	case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindHTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			if s := nodeText(c, src); s != "" {
				if c.Type() == ast.TypeBlock && buf.Len() > 0 {
					buf.WriteByte('\n')
				}
				buf.WriteString(s)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
