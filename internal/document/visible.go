package document

import (
	"fmt"
	"strings"
)

// VisibleMapping translates between user-facing paragraph numbers, which
// skip blank paragraphs as the rendered HTML does, and structural indexes.
type VisibleMapping struct {
	visibleToReal []int
	realToVisible map[int]int
	total         int
}

// BuildVisibleMapping numbers the non-blank paragraphs of doc 0,1,2,... in
// document order.
func BuildVisibleMapping(doc *Document) VisibleMapping {
	m := VisibleMapping{
		realToVisible: make(map[int]int),
		total:         doc.Len(),
	}
	for i, p := range doc.Paragraphs {
		if p.IsBlank() {
			continue
		}
		m.realToVisible[i] = len(m.visibleToReal)
		m.visibleToReal = append(m.visibleToReal, i)
	}
	return m
}

// Len returns the number of visible paragraphs.
func (m VisibleMapping) Len() int { return len(m.visibleToReal) }

// VisibleToReal returns the structural index of every visible paragraph,
// ordered by visible number.
func (m VisibleMapping) VisibleToReal() []int {
	out := make([]int, len(m.visibleToReal))
	copy(out, m.visibleToReal)
	return out
}

// Real returns the structural index for visible paragraph n.
func (m VisibleMapping) Real(n int) (int, bool) {
	if n < 0 || n >= len(m.visibleToReal) {
		return 0, false
	}
	return m.visibleToReal[n], true
}

// Visible returns the visible number of structural paragraph i. Blank
// paragraphs have none.
func (m VisibleMapping) Visible(i int) (int, bool) {
	n, ok := m.realToVisible[i]
	return n, ok
}

// ResolvePolicy decides what Resolve does with a visible number that is
// past the last visible paragraph.
type ResolvePolicy int

const (
	// FallbackRaw treats an out-of-range visible number as a structural
	// index when one exists at that position.
	FallbackRaw ResolvePolicy = iota
	// Strict rejects any number that is not a visible paragraph.
	Strict
)

// ParseResolvePolicy accepts "fallback-raw" and "strict".
func ParseResolvePolicy(s string) (ResolvePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fallback-raw", "fallback_raw", "raw":
		return FallbackRaw, nil
	case "strict":
		return Strict, nil
	}
	return 0, fmt.Errorf("unknown visible id policy %q", s)
}

func (p ResolvePolicy) String() string {
	if p == Strict {
		return "strict"
	}
	return "fallback-raw"
}

// OutOfRangeError reports a paragraph number that does not resolve.
type OutOfRangeError struct {
	ID      int
	Visible int
	Total   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("paragraph %d does not exist (document has %d visible of %d paragraphs)", e.ID, e.Visible, e.Total)
}

// Resolve maps a user-facing paragraph number to a structural index.
func (m VisibleMapping) Resolve(id int, policy ResolvePolicy) (int, error) {
	if real, ok := m.Real(id); ok {
		return real, nil
	}
	if policy == FallbackRaw && id >= len(m.visibleToReal) && id < m.total {
		return id, nil
	}
	return 0, &OutOfRangeError{ID: id, Visible: len(m.visibleToReal), Total: m.total}
}
