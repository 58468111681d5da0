// Package sources extracts reference material uploaded alongside a report
// request into headed sections of plain text.
package sources

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Section is a run of text under a heading trail.
type Section struct {
	Path []string `json:"path,omitempty"`
	Text string   `json:"text"`
	Page int      `json:"page,omitempty"`
}

// Heading joins the trail for display, "Intro > Scope".
func (s Section) Heading() string {
	return strings.Join(s.Path, " > ")
}

// Source is one extracted reference file.
type Source struct {
	Name     string    `json:"name"`
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Text joins every section, headings included.
func (s *Source) Text() string {
	var b strings.Builder
	for i, sec := range s.Sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if h := sec.Heading(); h != "" {
			b.WriteString(h)
			b.WriteString("\n")
		}
		b.WriteString(sec.Text)
	}
	return b.String()
}

// Extractor converts raw file bytes into a Source.
type Extractor interface {
	Extract(r io.Reader, name string) (*Source, error)
}

var supported = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile picks the extractor for name by extension.
func ForFile(name string) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".txt":
		return &Text{}, nil
	case ".md", ".markdown":
		return &Markdown{}, nil
	case ".csv":
		return &CSV{}, nil
	case ".html", ".htm":
		return &HTML{}, nil
	case ".pdf":
		return &PDF{}, nil
	case ".docx":
		return &DOCX{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// IsSupported reports whether name has an extension ForFile handles.
func IsSupported(name string) bool {
	return supported[strings.ToLower(filepath.Ext(name))]
}

// Extract runs the extractor for name over data.
func Extract(name string, data []byte) (*Source, error) {
	ex, err := ForFile(name)
	if err != nil {
		return nil, err
	}
	src, err := ex.Extract(bytes.NewReader(data), name)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}
	return src, nil
}

func titleOf(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// outline collects blocks under a stack of headings. Every heading change
// closes the text gathered so far into a Section.
type outline struct {
	src   *Source
	trail []heading
	buf   strings.Builder
	page  int
}

type heading struct {
	title string
	level int
}

func newOutline(name string) *outline {
	return &outline{src: &Source{Name: name, Title: titleOf(name)}}
}

func (o *outline) heading(level int, title string) {
	o.flush()
	for len(o.trail) > 0 && o.trail[len(o.trail)-1].level >= level {
		o.trail = o.trail[:len(o.trail)-1]
	}
	o.trail = append(o.trail, heading{title: title, level: level})
}

func (o *outline) block(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if o.buf.Len() > 0 {
		o.buf.WriteString("\n\n")
	}
	o.buf.WriteString(text)
}

func (o *outline) flush() {
	t := strings.TrimSpace(o.buf.String())
	o.buf.Reset()
	if t == "" {
		return
	}
	var path []string
	for _, h := range o.trail {
		path = append(path, h.title)
	}
	o.src.Sections = append(o.src.Sections, Section{Path: path, Text: t, Page: o.page})
}

func (o *outline) done() *Source {
	o.flush()
	return o.src
}
