package document

import "strings"

// clampRange bounds [start, end) to the text length and snaps it to rune
// boundaries.
func clampRange(text string, start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		start = end
	}
	for start > 0 && start < len(text) && !runeStart(text[start]) {
		start--
	}
	for end < len(text) && !runeStart(text[end]) {
		end++
	}
	return start, end
}

func runeStart(b byte) bool { return b&0xC0 != 0x80 }

// splitRuns walks the runs of p and hands every run that overlaps
// [start, end) to fn, split into prefix, overlap and suffix. Runs outside
// the range and the prefix/suffix pieces keep their formatting. fn returns
// the runs that replace the overlap.
func splitRuns(p Paragraph, start, end int, fn func(overlap Run, first bool) []Run) Paragraph {
	out := make([]Run, 0, len(p.Runs)+2)
	pos := 0
	first := true
	for _, r := range p.Runs {
		rs, re := pos, pos+len(r.Text)
		pos = re
		if re <= start || rs >= end || r.Text == "" {
			out = append(out, r)
			continue
		}
		from := max(start, rs) - rs
		to := min(end, re) - rs
		if from > 0 {
			pre := r
			pre.Text = r.Text[:from]
			out = append(out, pre)
		}
		mid := r
		mid.Text = r.Text[from:to]
		out = append(out, fn(mid, first)...)
		first = false
		if to < len(r.Text) {
			post := r
			post.Text = r.Text[to:]
			out = append(out, post)
		}
	}
	p.Runs = out
	return p
}

// SetStyle switches style s on or off for the characters in [start, end).
// Text is never changed.
func SetStyle(p Paragraph, start, end int, s Style, on bool) Paragraph {
	start, end = clampRange(p.Text(), start, end)
	if start == end {
		return p.Clone()
	}
	return splitRuns(p, start, end, func(r Run, _ bool) []Run {
		return []Run{r.With(s, on)}
	})
}

// ApplyStyle sets style s on [start, end).
func ApplyStyle(p Paragraph, start, end int, s Style) Paragraph {
	return SetStyle(p, start, end, s, true)
}

// ClearStyle clears style s on [start, end), leaving other flags alone.
func ClearStyle(p Paragraph, start, end int, s Style) Paragraph {
	return SetStyle(p, start, end, s, false)
}

// SetStyleAll switches style s on or off for every run of p.
func SetStyleAll(p Paragraph, s Style, on bool) Paragraph {
	p = p.Clone()
	for i := range p.Runs {
		p.Runs[i] = p.Runs[i].With(s, on)
	}
	return p
}

// ClearAllFormatting clears bold, italic and underline on every run of p.
func ClearAllFormatting(p Paragraph) Paragraph {
	p = p.Clone()
	for i := range p.Runs {
		p.Runs[i] = p.Runs[i].Plain()
	}
	return p
}

// ReplaceRange substitutes [start, end) with replacement. The text before
// and after the range keeps its runs; the replacement is inserted as one
// plain run carrying the Props of the first replaced run. An empty
// replacement removes the range.
func ReplaceRange(p Paragraph, start, end int, replacement string) Paragraph {
	text := p.Text()
	start, end = clampRange(text, start, end)
	if start == end {
		return insertAt(p, start, replacement)
	}
	return splitRuns(p, start, end, func(r Run, first bool) []Run {
		if !first || replacement == "" {
			return nil
		}
		r = r.Plain()
		r.Text = replacement
		return []Run{r}
	})
}

// insertAt inserts text as a plain run at byte offset pos.
func insertAt(p Paragraph, pos int, text string) Paragraph {
	if text == "" {
		return p.Clone()
	}
	out := make([]Run, 0, len(p.Runs)+2)
	inserted := false
	at := 0
	for _, r := range p.Runs {
		rs, re := at, at+len(r.Text)
		at = re
		if inserted || pos > re || (pos == re && re != rs) {
			out = append(out, r)
			continue
		}
		if pos > rs {
			pre := r
			pre.Text = r.Text[:pos-rs]
			out = append(out, pre)
		}
		ins := r.Plain()
		ins.Text = text
		out = append(out, ins)
		inserted = true
		if pos-rs < len(r.Text) {
			post := r
			post.Text = r.Text[pos-rs:]
			out = append(out, post)
		}
	}
	if !inserted {
		out = append(out, Run{Text: text})
	}
	p.Runs = out
	return p
}

// ReplaceAll substitutes every non-overlapping occurrence of old with
// replacement and returns the number of substitutions.
func ReplaceAll(p Paragraph, old, replacement string) (Paragraph, int) {
	if old == "" {
		return p.Clone(), 0
	}
	text := p.Text()
	var offsets []int
	for from := 0; ; {
		i := strings.Index(text[from:], old)
		if i < 0 {
			break
		}
		offsets = append(offsets, from+i)
		from += i + len(old)
	}
	out := p.Clone()
	for i := len(offsets) - 1; i >= 0; i-- {
		out = ReplaceRange(out, offsets[i], offsets[i]+len(old), replacement)
	}
	return out, len(offsets)
}
