package sources

import (
	"bufio"
	"io"
	"strings"
)

// Text handles plain text. Blank lines separate paragraphs.
type Text struct{}

func (Text) Extract(r io.Reader, name string) (*Source, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	o := newOutline(name)
	var para strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			o.block(para.String())
			para.Reset()
			continue
		}
		if para.Len() > 0 {
			para.WriteString("\n")
		}
		para.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	o.block(para.String())
	return o.done(), nil
}
