package sources

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTML handles web pages. Navigation chrome and scripts are skipped.
type HTML struct{}

func (HTML) Extract(r io.Reader, name string) (*Source, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	o := newOutline(name)
	if t := findElement(root, "title"); t != nil {
		if title := textContent(t); title != "" {
			o.src.Title = title
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingTag(n.Data); level > 0 {
				o.heading(level, textContent(n))
				return
			}
			switch n.Data {
			case "script", "style", "nav", "footer", "header", "noscript":
				return
			case "p", "li", "td", "th", "blockquote", "pre", "dd", "dt":
				o.block(textContent(n))
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if body := findElement(root, "body"); body != nil {
		walk(body)
	} else {
		walk(root)
	}
	return o.done(), nil
}

func headingTag(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
