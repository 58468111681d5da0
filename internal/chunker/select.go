package chunker

import (
	"sort"
	"strings"
	"unicode"
)

// Select picks the chunks most related to query that fit in maxTokens,
// returned in their original order. Relatedness is the number of distinct
// query words a chunk contains; ties go to the earlier chunk. With an
// empty query the chunks are taken in order until the budget runs out.
func Select(chunks []Chunk, query string, maxTokens int) []Chunk {
	if maxTokens <= 0 || len(chunks) == 0 {
		return nil
	}
	terms := keywords(query)
	type scored struct {
		i, score int
	}
	ranked := make([]scored, len(chunks))
	for i, c := range chunks {
		ranked[i] = scored{i: i, score: overlap(terms, c.Text)}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	var picked []int
	used := 0
	for _, r := range ranked {
		n := chunks[r.i].Tokens
		if n == 0 {
			n = EstimateTokens(chunks[r.i].Text)
		}
		if used+n > maxTokens {
			continue
		}
		used += n
		picked = append(picked, r.i)
	}
	sort.Ints(picked)
	out := make([]Chunk, len(picked))
	for j, i := range picked {
		out[j] = chunks[i]
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "this": true,
	"that": true, "from": true, "are": true, "was": true, "into": true,
	"about": true, "should": true, "section": true, "report": true,
}

func keywords(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range words(s) {
		if len(w) > 2 && !stopwords[w] {
			out[w] = true
		}
	}
	return out
}

func overlap(terms map[string]bool, text string) int {
	if len(terms) == 0 {
		return 0
	}
	seen := map[string]bool{}
	for _, w := range words(text) {
		if terms[w] {
			seen[w] = true
		}
	}
	return len(seen)
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
