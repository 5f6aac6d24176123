package llm

import "strings"

// defaultTokenLimit is assumed for models absent from the limit table.
const defaultTokenLimit = 100000

// modelLimit pairs a model-name prefix with its input token ceiling. Order
// matters: the first matching prefix wins, so more specific names come first.
type modelLimit struct {
	prefix string
	limit  int
}

var modelLimits = []modelLimit{
	{"gemini-1.5-pro", 2097152},
	{"gemini-1.5", 1048576},
	{"gemini-pro", 32760},
	{"gpt-4o-mini", 128000},
	{"gpt-4o", 128000},
	{"gpt-4-turbo", 128000},
	{"gpt-4", 8192},
	{"gpt-3.5-turbo", 16385},
	{"claude-3", 200000},
	{"claude", 200000},
}

// TokenLimit returns the input token ceiling for a model name.
func TokenLimit(model string) int {
	name := strings.ToLower(strings.TrimSpace(model))
	for _, entry := range modelLimits {
		if strings.HasPrefix(name, entry.prefix) {
			return entry.limit
		}
	}
	return defaultTokenLimit
}

// EstimateTokens approximates the token count of text at four characters per
// token, rounding up. Used when the provider has no native tokenizer.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
