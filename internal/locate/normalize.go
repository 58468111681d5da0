package locate

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Normalize collapses every whitespace run to one space and trims the ends.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// collapse is Normalize that also returns, for every byte of the result,
// the offset of the byte it came from in s.
func collapse(s string) (string, []int) {
	var sb strings.Builder
	offsets := make([]int, 0, len(s))
	pendingSpace := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if sb.Len() > 0 && pendingSpace < 0 {
				pendingSpace = i
			}
			continue
		}
		if pendingSpace >= 0 {
			sb.WriteByte(' ')
			offsets = append(offsets, pendingSpace)
			pendingSpace = -1
		}
		_, n := utf8.DecodeRuneInString(s[i:])
		sb.WriteString(s[i : i+n])
		for k := 0; k < n; k++ {
			offsets = append(offsets, i+k)
		}
	}
	return sb.String(), offsets
}

// findNormalized locates target inside text ignoring whitespace
// differences and returns offsets into text.
func findNormalized(text, target string) (int, int, bool) {
	needle := Normalize(target)
	if needle == "" {
		return 0, 0, false
	}
	hay, offsets := collapse(text)
	i := strings.Index(hay, needle)
	if i < 0 {
		return 0, 0, false
	}
	last := i + len(needle) - 1
	return offsets[i], offsets[last] + 1, true
}

// foldWords lowercases, NFC-normalizes and splits s into words.
func foldWords(s string) []string {
	return strings.Fields(strings.ToLower(norm.NFC.String(s)))
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// runeLen is the weight unit used by scoring.
func runeLen(s string) float64 {
	return float64(utf8.RuneCountInString(s))
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// cleanWords splits target into words with markdown emphasis and heading
// markers removed.
func cleanWords(target string) []string {
	var out []string
	for _, w := range strings.Fields(target) {
		w = strings.Trim(w, "*#_`")
		if w == "" || w == "-" || w == "•" {
			continue
		}
		out = append(out, w)
	}
	return out
}
