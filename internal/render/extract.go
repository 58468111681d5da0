package render

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Block is one rendered paragraph read back from HTML.
type Block struct {
	ID    int
	Tag   string
	Empty bool
	Text  string
}

// Blocks parses rendered HTML and returns every element carrying
// data-paragraph-id, in document order.
func Blocks(src string) ([]Block, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var out []Block
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id, ok := attr(n, "data-paragraph-id"); ok {
				if v, err := strconv.Atoi(id); err == nil {
					empty, _ := attr(n, "data-is-empty")
					out = append(out, Block{
						ID:    v,
						Tag:   n.Data,
						Empty: empty == "true",
						Text:  strings.TrimSpace(strings.ReplaceAll(textOf(n), "\u00a0", " ")),
					})
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out, nil
}

// PlainText returns the visible text of rendered HTML, one non-empty
// paragraph per line, prefixed with its user-facing number.
func PlainText(src string) (string, error) {
	blocks, err := Blocks(src)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	visible := 0
	for _, b := range blocks {
		if b.Empty || b.Text == "" {
			continue
		}
		fmt.Fprintf(&sb, "[%d] %s\n", visible, b.Text)
		visible++
	}
	return sb.String(), nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
