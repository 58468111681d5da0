package sources

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDF handles PDF files, one section per page. When the library cannot
// read a file and FallbackPdftotext is set, the pdftotext binary is tried.
type PDF struct {
	FallbackPdftotext bool
}

func (p PDF) Extract(r io.Reader, name string) (*Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	pages, err := pdfPages(data)
	if err != nil && p.FallbackPdftotext {
		var out string
		out, err = pdftotext(data)
		pages = strings.Split(out, "\f")
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	src := &Source{Name: name, Title: titleOf(name)}
	for i, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		src.Sections = append(src.Sections, Section{
			Path: []string{fmt.Sprintf("Page %d", i+1)},
			Text: page,
			Page: i + 1,
		})
	}
	return src, nil
}

func pdfPages(data []byte) (pages []string, err error) {
	// The library panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func pdftotext(data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "reportedit-pdf-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	out, err := exec.Command("pdftotext", "-layout", tmp.Name(), "-").Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
