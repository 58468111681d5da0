package sources

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

const csvBatch = 20

// CSV handles comma separated files. The first row is the header; data
// rows are grouped into sections of csvBatch rows, each line written as
// "header: value" pairs.
type CSV struct{}

func (CSV) Extract(r io.Reader, name string) (*Source, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	src := &Source{Name: name, Title: titleOf(name)}
	if len(records) == 0 {
		return src, nil
	}

	headers, rows := records[0], records[1:]
	for i := 0; i < len(rows); i += csvBatch {
		end := min(i+csvBatch, len(rows))
		var b strings.Builder
		for _, row := range rows[i:end] {
			cells := make([]string, len(row))
			for j, cell := range row {
				if j < len(headers) && headers[j] != "" {
					cells[j] = headers[j] + ": " + cell
				} else {
					cells[j] = cell
				}
			}
			b.WriteString(strings.Join(cells, ", "))
			b.WriteString("\n")
		}
		src.Sections = append(src.Sections, Section{
			// Row numbers count the header as row 1.
			Path: []string{fmt.Sprintf("Rows %d-%d", i+2, end+1)},
			Text: strings.TrimSpace(b.String()),
		})
	}
	return src, nil
}
