// Package interpret turns chat text into edit commands with a language model.
package interpret

import (
	"regexp"
	"strconv"
	"strings"
)

// Selection is the text the user highlighted before typing a command.
type Selection struct {
	Text      string
	Paragraph *int
}

var selectionRe = regexp.MustCompile(`(?s)^\s*\[SELECTED TEXT: "(.*?)"(?:\s+in paragraph (\d+))?\]\s*(.*)$`)

// ParseSelection splits a leading selection marker of the form
//
//	[SELECTED TEXT: "<text>" in paragraph <n>] <command>
//
// from the command. The paragraph clause is optional. ok is false when the
// input carries no marker, in which case command is the trimmed input.
func ParseSelection(input string) (sel Selection, command string, ok bool) {
	m := selectionRe.FindStringSubmatch(input)
	if m == nil {
		return Selection{}, strings.TrimSpace(input), false
	}
	sel.Text = m[1]
	if m[2] != "" {
		if n, err := strconv.Atoi(m[2]); err == nil {
			sel.Paragraph = &n
		}
	}
	return sel, strings.TrimSpace(m[3]), true
}

// Marker formats a selection the way ParseSelection reads it.
func Marker(sel Selection, command string) string {
	var sb strings.Builder
	sb.WriteString(`[SELECTED TEXT: "`)
	sb.WriteString(sel.Text)
	sb.WriteString(`"`)
	if sel.Paragraph != nil {
		sb.WriteString(" in paragraph ")
		sb.WriteString(strconv.Itoa(*sel.Paragraph))
	}
	sb.WriteString("] ")
	sb.WriteString(command)
	return sb.String()
}
