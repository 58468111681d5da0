// Package chunker cuts extracted reference sources into token-sized
// pieces and picks the pieces that fit a prompt budget.
package chunker

import (
	"strings"

	"github.com/dgallion1/reportedit/internal/sources"
)

// Config controls chunking.
type Config struct {
	ChunkSize    int // target tokens per chunk
	ChunkOverlap int // tokens repeated at the start of the next piece
	MinChunk     int // split pieces smaller than this are dropped
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:    800,
		ChunkOverlap: 100,
		MinChunk:     20,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = d.ChunkOverlap
	}
	if c.MinChunk <= 0 {
		c.MinChunk = d.MinChunk
	}
	return c
}

// Chunk is a piece of one source section.
type Chunk struct {
	Source string
	Path   []string
	Page   int
	Index  int
	Text   string
	Tokens int
}

// Label names the chunk's origin, "report.pdf > Page 3".
func (c Chunk) Label() string {
	parts := append([]string{c.Source}, c.Path...)
	return strings.Join(parts, " > ")
}

// Split chunks every section of src. A section that fits is kept whole
// however short; longer ones are packed by paragraph, then by sentence.
func Split(src *sources.Source, cfg Config) []Chunk {
	cfg = cfg.withDefaults()
	var out []Chunk
	for _, sec := range src.Sections {
		emit := func(text string) {
			out = append(out, Chunk{
				Source: src.Name,
				Path:   sec.Path,
				Page:   sec.Page,
				Index:  len(out),
				Text:   text,
				Tokens: EstimateTokens(text),
			})
		}
		if EstimateTokens(sec.Text) <= cfg.ChunkSize {
			emit(sec.Text)
			continue
		}
		for _, part := range splitText(sec.Text, cfg.ChunkSize, cfg.ChunkOverlap) {
			if EstimateTokens(part) >= cfg.MinChunk {
				emit(part)
			}
		}
	}
	return out
}

// SplitAll chunks several sources in order. Index runs across all of them.
func SplitAll(srcs []*sources.Source, cfg Config) []Chunk {
	var out []Chunk
	for _, src := range srcs {
		for _, c := range Split(src, cfg) {
			c.Index = len(out)
			out = append(out, c)
		}
	}
	return out
}

// splitText packs paragraphs up to target tokens. A paragraph that is
// itself too large is packed by sentences instead.
func splitText(text string, target, overlap int) []string {
	var out []string
	p := packer{target: target, overlap: overlap, sep: "\n\n"}
	for _, para := range splitParagraphs(text) {
		if EstimateTokens(para) > target {
			out = append(out, p.finish()...)
			s := packer{target: target, overlap: overlap, sep: " "}
			for _, sent := range splitSentences(para) {
				s.add(sent)
			}
			out = append(out, s.finish()...)
			p = packer{target: target, overlap: overlap, sep: "\n\n"}
			continue
		}
		p.add(para)
	}
	return append(out, p.finish()...)
}

type packer struct {
	target, overlap int
	sep             string
	cur             strings.Builder
	tokens          int
	out             []string
}

func (p *packer) add(piece string) {
	n := EstimateTokens(piece)
	if p.tokens > 0 && p.tokens+n > p.target {
		prev := p.cur.String()
		p.out = append(p.out, prev)
		p.cur.Reset()
		p.tokens = 0
		if tail := overlapText(prev, p.overlap); tail != "" {
			p.cur.WriteString(tail)
			p.tokens = EstimateTokens(tail)
		}
	}
	if p.cur.Len() > 0 {
		p.cur.WriteString(p.sep)
	}
	p.cur.WriteString(piece)
	p.tokens += n
}

func (p *packer) finish() []string {
	if p.tokens > 0 {
		p.out = append(p.out, p.cur.String())
	}
	out := p.out
	p.out, p.tokens = nil, 0
	p.cur.Reset()
	return out
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	for i, r := range text {
		cur.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// overlapText returns roughly the last n tokens of text.
func overlapText(text string, n int) string {
	words := strings.Fields(text)
	want := int(float64(n) / tokensPerWord)
	if want <= 0 || len(words) <= want {
		return ""
	}
	return strings.Join(words[len(words)-want:], " ")
}
