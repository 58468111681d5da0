package document

import (
	"fmt"
	"strings"
)

// Style is a run-level formatting flag.
type Style int

const (
	Bold Style = iota + 1
	Italic
	Underline
)

// Styles lists every supported flag in a stable order.
var Styles = []Style{Bold, Italic, Underline}

type styleInfo struct {
	name     string
	aliases  []string
	cssProp  string
	cssValue string
}

// styleTable is the single lookup used by formatting commands, the
// interpreter and the HTML renderer.
var styleTable = map[Style]styleInfo{
	Bold:      {name: "bold", aliases: []string{"b", "strong"}, cssProp: "font-weight", cssValue: "bold"},
	Italic:    {name: "italic", aliases: []string{"i", "em", "italics"}, cssProp: "font-style", cssValue: "italic"},
	Underline: {name: "underline", aliases: []string{"u", "underlined"}, cssProp: "text-decoration", cssValue: "underline"},
}

// ErrUnsupportedStyle is returned by ParseStyle for unknown names.
type ErrUnsupportedStyle struct {
	Name string
}

func (e *ErrUnsupportedStyle) Error() string {
	return fmt.Sprintf("unsupported style %q (supported: bold, italic, underline)", e.Name)
}

// ParseStyle resolves a user-supplied style name, case-insensitively.
func ParseStyle(name string) (Style, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for s, info := range styleTable {
		if key == info.name {
			return s, nil
		}
		for _, a := range info.aliases {
			if key == a {
				return s, nil
			}
		}
	}
	return 0, &ErrUnsupportedStyle{Name: name}
}

func (s Style) String() string {
	if info, ok := styleTable[s]; ok {
		return info.name
	}
	return fmt.Sprintf("Style(%d)", int(s))
}

// CSS returns the inline CSS declaration that renders the style.
func (s Style) CSS() string {
	info, ok := styleTable[s]
	if !ok {
		return ""
	}
	return info.cssProp + ": " + info.cssValue
}
