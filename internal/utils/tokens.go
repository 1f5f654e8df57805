package utils

// EstimateTokens approximates the token count of a text at four characters
// per token. Good enough for budget accounting; we never bill by it.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// TruncateToTokenBudget cuts text to the character equivalent of a token
// budget. Returns the text unchanged when it already fits.
func TruncateToTokenBudget(text string, budget int) string {
	charBudget := budget * 4
	if len(text) <= charBudget {
		return text
	}
	return text[:charBudget]
}
