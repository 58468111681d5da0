package sources

import (
	"strings"
	"testing"

	"github.com/dgallion1/reportedit/internal/document"
	"github.com/dgallion1/reportedit/internal/docxio"
)

func TestTextParagraphs(t *testing.T) {
	input := "First line one.\nFirst line two.\n\n\n\nSecond paragraph.\n   \nThird paragraph."
	src, err := Text{}.Extract(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Title != "notes" {
		t.Errorf("expected title %q, got %q", "notes", src.Title)
	}
	if len(src.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(src.Sections))
	}
	want := "First line one.\nFirst line two.\n\nSecond paragraph.\n\nThird paragraph."
	if src.Sections[0].Text != want {
		t.Errorf("expected %q, got %q", want, src.Sections[0].Text)
	}
}

func TestTextEmpty(t *testing.T) {
	src, err := Text{}.Extract(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(src.Sections) != 0 {
		t.Errorf("expected 0 sections, got %d", len(src.Sections))
	}
}

func TestMarkdownHeadingTrail(t *testing.T) {
	input := "# Guide\n\nIntro text.\n\n## Setup\n\nInstall it.\n\n### Linux\n\nUse apt.\n\n## Usage\n\nRun it with **care**.\n"
	src, err := Markdown{}.Extract(strings.NewReader(input), "guide.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []struct {
		heading, text string
	}{
		{"Guide", "Intro text."},
		{"Guide > Setup", "Install it."},
		{"Guide > Setup > Linux", "Use apt."},
		{"Guide > Usage", "Run it with care."},
	}
	if len(src.Sections) != len(want) {
		t.Fatalf("expected %d sections, got %d: %+v", len(want), len(src.Sections), src.Sections)
	}
	for i, w := range want {
		if got := src.Sections[i].Heading(); got != w.heading {
			t.Errorf("section[%d]: expected heading %q, got %q", i, w.heading, got)
		}
		if got := src.Sections[i].Text; got != w.text {
			t.Errorf("section[%d]: expected text %q, got %q", i, w.text, got)
		}
	}
}

func TestMarkdownCodeBlock(t *testing.T) {
	input := "# API\n\nEndpoints:\n\n```\nGET /api/users\n```\n\nMore text.\n"
	src, err := Markdown{}.Extract(strings.NewReader(input), "api.markdown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Title != "api" {
		t.Errorf("expected title %q, got %q", "api", src.Title)
	}
	if len(src.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(src.Sections))
	}
	text := src.Sections[0].Text
	for _, want := range []string{"Endpoints:", "GET /api/users", "More text."} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in %q", want, text)
		}
	}
}

func TestMarkdownWithoutHeadings(t *testing.T) {
	src, err := Markdown{}.Extract(strings.NewReader("Plain text.\n\nAnother paragraph."), "plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(src.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(src.Sections))
	}
	if len(src.Sections[0].Path) != 0 {
		t.Errorf("expected no heading path, got %v", src.Sections[0].Path)
	}
}

func TestCSVBatches(t *testing.T) {
	var b strings.Builder
	b.WriteString("name,score\n")
	for i := 0; i < 25; i++ {
		b.WriteString("alice,10\n")
	}
	src, err := CSV{}.Extract(strings.NewReader(b.String()), "scores.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(src.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(src.Sections))
	}
	if got := src.Sections[0].Heading(); got != "Rows 2-21" {
		t.Errorf("expected %q, got %q", "Rows 2-21", got)
	}
	if got := src.Sections[1].Heading(); got != "Rows 22-26" {
		t.Errorf("expected %q, got %q", "Rows 22-26", got)
	}
	if !strings.HasPrefix(src.Sections[0].Text, "name: alice, score: 10") {
		t.Errorf("unexpected row text %q", src.Sections[0].Text)
	}
}

func TestHTMLSkipsChrome(t *testing.T) {
	input := `<html><head><title>Quarterly Notes</title><style>p{}</style></head>
<body><nav><p>Home</p></nav>
<h1>Summary</h1><p>Revenue   grew.</p>
<h2>Risks</h2><ul><li>Supply</li><li>Rates</li></ul>
<script>var x = 1;</script></body></html>`
	src, err := HTML{}.Extract(strings.NewReader(input), "notes.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Title != "Quarterly Notes" {
		t.Errorf("expected title %q, got %q", "Quarterly Notes", src.Title)
	}
	if len(src.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d: %+v", len(src.Sections), src.Sections)
	}
	if src.Sections[0].Text != "Revenue grew." {
		t.Errorf("expected %q, got %q", "Revenue grew.", src.Sections[0].Text)
	}
	if got := src.Sections[1].Heading(); got != "Summary > Risks" {
		t.Errorf("expected %q, got %q", "Summary > Risks", got)
	}
	if src.Sections[1].Text != "Supply\n\nRates" {
		t.Errorf("expected list items, got %q", src.Sections[1].Text)
	}
	if strings.Contains(src.Text(), "Home") || strings.Contains(src.Text(), "var x") {
		t.Errorf("chrome leaked into text: %q", src.Text())
	}
}

func TestDOCXHeadings(t *testing.T) {
	heading := document.NewParagraph("Findings")
	heading.StyleName = document.HeadingStyle(1)
	doc := document.New(
		heading,
		document.NewParagraph("Costs fell."),
		document.NewParagraph(""),
		document.NewParagraph("Margins rose."),
	)
	data, err := docxio.Build(doc)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	src, err := Extract("findings.docx", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(src.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(src.Sections))
	}
	if got := src.Sections[0].Heading(); got != "Findings" {
		t.Errorf("expected %q, got %q", "Findings", got)
	}
	if src.Sections[0].Text != "Costs fell.\n\nMargins rose." {
		t.Errorf("unexpected text %q", src.Sections[0].Text)
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"a.txt", true},
		{"a.MD", true},
		{"a.csv", true},
		{"a.htm", true},
		{"a.pdf", true},
		{"a.docx", true},
		{"a.xlsx", false},
		{"noext", false},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.name)
		if (err == nil) != tt.ok {
			t.Errorf("ForFile(%q): expected ok=%v, got err=%v", tt.name, tt.ok, err)
		}
		if IsSupported(tt.name) != tt.ok {
			t.Errorf("IsSupported(%q): expected %v", tt.name, tt.ok)
		}
	}
}

func TestPDFRejectsGarbage(t *testing.T) {
	if _, err := Extract("broken.pdf", []byte("not a pdf")); err == nil {
		t.Fatal("expected error for malformed pdf")
	}
}
