package metrics

import "github.com/tiktoken-go/tokenizer"

// TokenCounter counts tokens with the cl100k_base encoding. Counting must be
// deterministic: the same text always yields the same count, so recorded
// token totals are reproducible across runs.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter builds a counter. If the encoding cannot be loaded the
// counter degrades to an approximate chars/4 estimate instead of failing.
func NewTokenCounter() *TokenCounter {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{codec: codec}
}

// Count returns the token count for text, or an approximation when the
// codec is unavailable or rejects the input.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.codec != nil {
		if ids, _, err := c.codec.Encode(text); err == nil {
			return len(ids)
		}
	}
	return len(text) / 4
}
