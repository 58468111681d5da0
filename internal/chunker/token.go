package chunker

import "strings"

const tokensPerWord = 1.33

// EstimateTokens approximates a token count from the word count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := int(float64(len(strings.Fields(text))) * tokensPerWord)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
