// Package render turns a document snapshot into the HTML shown in the
// browser editor. Every block carries data-paragraph-id with the
// structural paragraph index so selections map back to the document.
package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/reportedit/internal/document"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Renderer produces HTML for a document.
type Renderer interface {
	Render(doc *document.Document) (string, error)
}

// HTML is the full renderer: headings, lists and run formatting.
type HTML struct{}

var (
	bulletMarkers = []string{"• ", "- ", "* ", "○ ", "▪ "}
	numberMarker  = regexp.MustCompile(`^\d+[.)]\s+`)
)

type listKind int

const (
	notList listKind = iota
	bulletList
	numberList
)

// Render implements Renderer.
func (HTML) Render(doc *document.Document) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render: %v", r)
		}
	}()

	root := element(atom.Div, "class", "report-document")
	var list *html.Node
	var kind listKind
	for i, p := range doc.Paragraphs {
		k := classifyList(p)
		if k == notList {
			list, kind = nil, notList
			root.AppendChild(paragraphNode(i, p))
			continue
		}
		if list == nil || k != kind {
			tag := atom.Ul
			if k == numberList {
				tag = atom.Ol
			}
			list, kind = element(tag, "class", "report-list"), k
			root.AppendChild(list)
		}
		list.AppendChild(listItemNode(i, p))
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

// Fallback renders plain paragraph and heading tags without run
// formatting. It cannot fail.
func Fallback(doc *document.Document) string {
	var sb strings.Builder
	for i, p := range doc.Paragraphs {
		tag := blockTag(p).String()
		fmt.Fprintf(&sb, `<%s data-paragraph-id="%d"`, tag, i)
		if p.IsBlank() {
			fmt.Fprintf(&sb, ` data-is-empty="true">&nbsp;</%s>`, tag)
		} else {
			fmt.Fprintf(&sb, `>%s</%s>`, html.EscapeString(p.Text()), tag)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func classifyList(p document.Paragraph) listKind {
	style := strings.ToLower(p.StyleName)
	text := strings.TrimSpace(p.Text())
	for _, m := range bulletMarkers {
		if strings.HasPrefix(text, m) {
			return bulletList
		}
	}
	if numberMarker.MatchString(text) {
		return numberList
	}
	if strings.Contains(style, "number") {
		return numberList
	}
	if strings.Contains(style, "list") || strings.Contains(style, "bullet") {
		return bulletList
	}
	return notList
}

func blockTag(p document.Paragraph) atom.Atom {
	switch p.HeadingLevel() {
	case 1:
		return atom.H1
	case 2:
		return atom.H2
	case 3:
		return atom.H3
	case 4:
		return atom.H4
	case 5:
		return atom.H5
	case 6:
		return atom.H6
	}
	return atom.P
}

func paragraphNode(i int, p document.Paragraph) *html.Node {
	n := element(blockTag(p), "data-paragraph-id", strconv.Itoa(i))
	if p.StyleName != "" {
		setAttr(n, "data-style-name", p.StyleName)
	}
	fill(n, p.Runs, p.IsBlank(), 0)
	return n
}

func listItemNode(i int, p document.Paragraph) *html.Node {
	n := element(atom.Li, "data-paragraph-id", strconv.Itoa(i))
	if p.StyleName != "" {
		setAttr(n, "data-style-name", p.StyleName)
	}
	fill(n, p.Runs, p.IsBlank(), markerLength(p.Text()))
	return n
}

// markerLength is the byte length of the list marker, including leading
// whitespace, at the start of text.
func markerLength(text string) int {
	trimmed := strings.TrimLeft(text, " \t")
	lead := len(text) - len(trimmed)
	for _, m := range bulletMarkers {
		if strings.HasPrefix(trimmed, m) {
			return lead + len(m)
		}
	}
	if loc := numberMarker.FindStringIndex(trimmed); loc != nil {
		return lead + loc[1]
	}
	return 0
}

// fill appends the runs of a paragraph to n, skipping the first skip bytes.
func fill(n *html.Node, runs []document.Run, blank bool, skip int) {
	if blank {
		setAttr(n, "data-is-empty", "true")
		n.AppendChild(&html.Node{Type: html.RawNode, Data: "&nbsp;"})
		return
	}
	pos := 0
	for _, r := range runs {
		text := r.Text
		start, end := pos, pos+len(text)
		pos = end
		if end <= skip {
			continue
		}
		if start < skip {
			text = text[skip-start:]
		}
		if text == "" {
			continue
		}
		target := n
		if css := runCSS(r); css != "" {
			target = element(atom.Span, "style", css)
			n.AppendChild(target)
		}
		appendText(target, text)
	}
}

func runCSS(r document.Run) string {
	var decls []string
	for _, s := range document.Styles {
		if r.Has(s) {
			decls = append(decls, s.CSS())
		}
	}
	return strings.Join(decls, "; ")
}

// appendText adds text, turning newlines into <br> and tabs into four
// non-breaking spaces.
func appendText(n *html.Node, text string) {
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			n.AppendChild(&html.Node{Type: html.ElementNode, Data: "br", DataAtom: atom.Br})
		}
		line = strings.ReplaceAll(line, "\t", strings.Repeat("\u00a0", 4))
		if line != "" {
			n.AppendChild(&html.Node{Type: html.TextNode, Data: line})
		}
	}
}

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
	for i := 0; i+1 < len(attrs); i += 2 {
		setAttr(n, attrs[i], attrs[i+1])
	}
	return n
}

func setAttr(n *html.Node, key, val string) {
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
