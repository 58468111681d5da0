package generate

import (
	"fmt"
	"strings"

	"github.com/dgallion1/reportedit/internal/chunker"
)

const writeSystem = `You write sections of professional reports. Reply with the section body in markdown: paragraphs, bullet lists and ### subheadings where useful. Do not repeat the section title. Use only facts found in the reference material or the instructions; when the material does not cover something, say so plainly instead of inventing figures.`

// BuildSectionPrompt asks for the body of one section. outline lists every
// section title so the model keeps to its own part.
func BuildSectionPrompt(report string, outline []string, sec SectionSpec, refs []chunker.Chunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report title: %s\n", report)
	b.WriteString("Report outline:\n")
	for i, t := range outline {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}
	fmt.Fprintf(&b, "\nWrite the section: %s\n", sec.Title)
	if s := strings.TrimSpace(sec.Instructions); s != "" {
		fmt.Fprintf(&b, "Instructions: %s\n", s)
	}

	if len(refs) == 0 {
		b.WriteString("\nNo reference material was provided.\n")
		return b.String()
	}
	b.WriteString("\nReference material:\n")
	for _, c := range refs {
		fmt.Fprintf(&b, "\n--- [%s]\n%s\n", c.Label(), c.Text)
	}
	return b.String()
}
