package sources

import (
	"fmt"
	"io"

	"github.com/dgallion1/reportedit/internal/docxio"
)

// DOCX handles Word documents. Heading styles open new sections.
type DOCX struct{}

func (DOCX) Extract(r io.Reader, name string) (*Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	_, doc, err := docxio.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	o := newOutline(name)
	for _, p := range doc.Paragraphs {
		text := p.Text()
		if level := p.HeadingLevel(); level > 0 && text != "" {
			o.heading(level, text)
			continue
		}
		o.block(text)
	}
	return o.done(), nil
}
