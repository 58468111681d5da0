package locate

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	complexLength   = 200
	minPartLength   = 10
	chunkLength     = 80
	overlapRatio    = 0.7
	overlapMinWords = 3
	phraseWords     = 3
	keepRatio       = 0.3
	maxKeywords     = 10
	minKeywordHits  = 2
	anchorWords     = 5
)

var partDelimiters = []string{".", ":", "###", "1.", "2.", "3.", "4.", "5."}

// IsComplex reports whether target needs the multi-paragraph search rather
// than a literal substring lookup.
func IsComplex(target string) bool {
	return len([]rune(target)) > complexLength || strings.ContainsAny(target, "\n\"*")
}

// Parts splits target into candidate sub-strings, longest first.
func Parts(target string) []string {
	normalized := Normalize(target)
	var parts []string
	if strings.Contains(normalized, "*") {
		parts = append(parts, splitKeep(normalized, "*", 5)...)
	}
	plain := Normalize(strings.ReplaceAll(normalized, "*", " "))
	for _, d := range partDelimiters {
		if strings.Contains(plain, d) {
			parts = append(parts, splitKeep(plain, d, minPartLength)...)
		}
	}
	if len(parts) == 0 {
		parts = wordChunks(plain)
	}
	slices.SortFunc(parts, func(a, b string) int {
		if c := cmp.Compare(len([]rune(b)), len([]rune(a))); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return slices.Compact(parts)
}

func splitKeep(s, sep string, minLen int) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		p = strings.TrimSpace(p)
		if runeLen(p) > float64(minLen) {
			out = append(out, p)
		}
	}
	return out
}

func wordChunks(s string) []string {
	var out []string
	cur := ""
	for _, w := range strings.Fields(s) {
		if cur == "" {
			cur = w
			continue
		}
		if runeLen(cur+" "+w) < chunkLength {
			cur += " " + w
			continue
		}
		if runeLen(cur) > minPartLength {
			out = append(out, cur)
		}
		cur = w
	}
	if runeLen(cur) > minPartLength {
		out = append(out, cur)
	}
	return out
}

// Score returns, per paragraph, the accumulated evidence that it belongs
// to the quoted target. Blank paragraphs score zero.
func Score(paragraphs []string, parts []string) []float64 {
	scores := make([]float64, len(paragraphs))
	for i, text := range paragraphs {
		normalized := Normalize(text)
		if normalized == "" {
			continue
		}
		lower := strings.ToLower(normalized)
		words := wordSet(foldWords(normalized))
		for _, part := range parts {
			if runeLen(part) < minPartLength {
				continue
			}
			scores[i] += scorePart(part, normalized, lower, words)
		}
	}
	return scores
}

func scorePart(part, normalized, lower string, words map[string]struct{}) float64 {
	if strings.Contains(normalized, part) {
		return 2 * runeLen(part)
	}
	partWords := wordSet(foldWords(part))
	if len(partWords) >= overlapMinWords {
		common := 0
		for w := range partWords {
			if _, ok := words[w]; ok {
				common++
			}
		}
		ratio := float64(common) / float64(len(partWords))
		if ratio >= overlapRatio {
			return ratio * runeLen(part)
		}
	}
	fields := strings.Fields(part)
	for i := 0; i+phraseWords <= len(fields); i++ {
		phrase := strings.Join(fields[i:i+phraseWords], " ")
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return 0.5 * runeLen(phrase)
		}
	}
	return 0
}

// selectParagraphs keeps paragraphs scoring at least keepRatio of the best
// score, in document order.
func selectParagraphs(scores []float64) []int {
	best := slices.Max(append([]float64{0}, scores...))
	if best <= 0 {
		return nil
	}
	var out []int
	for i, s := range scores {
		if s > 0 && s >= best*keepRatio {
			out = append(out, i)
		}
	}
	return out
}

// keywordMatches accepts paragraphs containing at least two of the
// target's longer words.
func keywordMatches(paragraphs []string, target string) []int {
	var keywords []string
	seen := map[string]bool{}
	for _, w := range foldWords(strings.Join(cleanWords(target), " ")) {
		if runeLen(w) <= 4 || isDigits(w) || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
		if len(keywords) == maxKeywords {
			break
		}
	}
	var out []int
	for i, text := range paragraphs {
		if strings.TrimSpace(text) == "" {
			continue
		}
		words := wordSet(foldWords(text))
		hits := 0
		for _, k := range keywords {
			if _, ok := words[k]; ok {
				hits++
			}
		}
		if hits >= minKeywordHits {
			out = append(out, i)
		}
	}
	return out
}

// Locate runs the scored multi-paragraph search.
func Locate(paragraphs []string, target string) Match {
	matched := selectParagraphs(Score(paragraphs, Parts(target)))
	if len(matched) == 0 {
		matched = keywordMatches(paragraphs, target)
	}
	if len(matched) == 0 {
		return closest(paragraphs, target)
	}
	return boundaries(paragraphs, target, matched)
}

// Find picks the literal search for simple targets and Locate for complex
// ones. A simple target that has no literal occurrence is retried with
// whitespace normalized.
func Find(paragraphs []string, target string) Match {
	if strings.TrimSpace(target) == "" {
		return NotFound{Closest: -1}
	}
	if IsComplex(target) {
		return Locate(paragraphs, target)
	}
	for i, text := range paragraphs {
		if j := strings.Index(text, target); j >= 0 {
			return Single{Span{Paragraph: i, Start: j, End: j + len(target), Partial: true}}
		}
	}
	for i, text := range paragraphs {
		if start, end, ok := findNormalized(text, target); ok {
			return Single{Span{Paragraph: i, Start: start, End: end, Partial: true}}
		}
	}
	return closest(paragraphs, target)
}

// FindIn searches paragraph index only.
func FindIn(paragraphs []string, target string, index int) Match {
	if index < 0 || index >= len(paragraphs) || strings.TrimSpace(target) == "" {
		return NotFound{Closest: -1}
	}
	text := paragraphs[index]
	if j := strings.Index(text, target); j >= 0 {
		return Single{Span{Paragraph: index, Start: j, End: j + len(target), Partial: true}}
	}
	if start, end, ok := findNormalized(text, target); ok {
		return Single{Span{Paragraph: index, Start: start, End: end, Partial: true}}
	}
	if IsComplex(target) {
		scores := Score([]string{text}, Parts(target))
		if scores[0] > 0 || len(keywordMatches([]string{text}, target)) > 0 {
			return Single{Span{Paragraph: index, Start: 0, End: len(text)}}
		}
	}
	return NotFound{Closest: index, Similarity: similarity(Normalize(text), Normalize(target))}
}

func boundaries(paragraphs []string, target string, matched []int) Match {
	if len(matched) == 1 {
		i := matched[0]
		text := paragraphs[i]
		if start, end, ok := findNormalized(text, target); ok {
			return Single{Span{Paragraph: i, Start: start, End: end, Partial: true}}
		}
		return Single{Span{Paragraph: i, Start: 0, End: len(text)}}
	}

	words := cleanWords(target)
	spans := make([]Span, len(matched))
	for k, i := range matched {
		spans[k] = Span{Paragraph: i, Start: 0, End: len(paragraphs[i])}
	}
	first := &spans[0]
	if start, ok := startBoundary(paragraphs[first.Paragraph], words); ok {
		first.Start, first.Partial = start, true
	}
	last := &spans[len(spans)-1]
	if end, ok := endBoundary(paragraphs[last.Paragraph], words); ok {
		last.End, last.Partial = end, true
	}
	return Multi{Segments: spans}
}

// startBoundary anchors the first words of the target in text.
func startBoundary(text string, words []string) (int, bool) {
	head := words[:min(anchorWords, len(words))]
	if len(head) == 0 {
		return 0, false
	}
	if i := strings.Index(text, strings.Join(head, " ")); i >= 0 {
		return i, true
	}
	for _, w := range head {
		if i := strings.Index(text, w); i >= 0 {
			return i, true
		}
	}
	return 0, false
}

// endBoundary anchors the last words of the target in text. Trailing
// punctuation is matched when the paragraph carries it too.
func endBoundary(text string, words []string) (int, bool) {
	tail := words[max(0, len(words)-anchorWords):]
	if len(tail) == 0 {
		return 0, false
	}
	phrase := strings.Join(tail, " ")
	if i := strings.Index(text, phrase); i >= 0 {
		return i + len(phrase), true
	}
	clean := strings.TrimRight(phrase, ".,!?;: ")
	if clean != "" {
		if i := strings.Index(text, clean); i >= 0 {
			return i + len(clean), true
		}
	}
	for k := len(tail) - 1; k >= 0; k-- {
		w := strings.TrimRight(tail[k], ".,!?;: ")
		if w == "" {
			continue
		}
		if i := strings.LastIndex(text, w); i >= 0 {
			return i + len(w), true
		}
	}
	return 0, false
}

// closest builds a NotFound naming the most similar paragraph.
func closest(paragraphs []string, target string) NotFound {
	nf := NotFound{Closest: -1}
	needle := Normalize(target)
	for i, text := range paragraphs {
		normalized := Normalize(text)
		if normalized == "" {
			continue
		}
		if s := similarity(normalized, needle); s > nf.Similarity {
			nf.Closest, nf.Similarity = i, s
		}
	}
	return nf
}

// similarity is 1 - levenshtein/maxLen over runes of the diff.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 100 * time.Millisecond
	distance := dmp.DiffLevenshtein(dmp.DiffMain(a, b, false))
	longest := max(len([]rune(a)), len([]rune(b)))
	return max(0, 1-float64(distance)/float64(longest))
}
