// Package tokens provides rough token accounting for prompt budgeting.
package tokens

// Estimate approximates the token count of text using the common ~4
// characters per token heuristic for English. Good enough for logging and
// budget warnings, not for billing.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
