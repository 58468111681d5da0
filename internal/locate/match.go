// Package locate finds a quoted text segment inside a list of paragraph
// strings. The target may be loosely quoted, carry markdown markers or span
// several paragraphs; results carry byte offsets into the original
// paragraph text.
package locate

// Span is the part of one paragraph covered by a match. End is exclusive.
// Partial is false when the whole paragraph is covered because no precise
// boundary could be found.
type Span struct {
	Paragraph int
	Start     int
	End       int
	Partial   bool
}

// Match is the result of a search: NotFound, Single or Multi.
type Match interface {
	// Spans returns the covered spans in document order.
	Spans() []Span
}

// NotFound reports a failed search. Closest is the paragraph most similar
// to the target, or -1.
type NotFound struct {
	Closest    int
	Similarity float64
}

// Single is a match inside one paragraph.
type Single struct {
	Span
}

// Multi is a match spanning several paragraphs. The first span may start
// mid-paragraph, the last may end mid-paragraph, interior spans cover
// their whole paragraph.
type Multi struct {
	Segments []Span
}

func (NotFound) Spans() []Span { return nil }
func (m Single) Spans() []Span { return []Span{m.Span} }
func (m Multi) Spans() []Span  { return m.Segments }

// Found reports whether m located anything.
func Found(m Match) bool {
	_, miss := m.(NotFound)
	return m != nil && !miss
}
