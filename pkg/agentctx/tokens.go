package agentctx

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates the token cost of a context payload the same
// way the teacher's pkg/llms estimates prompt size, using
// pkoukk/tiktoken-go's cl100k_base encoding rather than a byte-length
// heuristic, so the budget check in Build measures tokens the
// way the model actually will.
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func (c *TokenCounter) encoding() *tiktoken.Tiktoken {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			c.enc = enc
		}
	})
	return c.enc
}

// Count returns the token count of s, falling back to a conservative
// byte-length estimate if the encoder could not be loaded.
func (c *TokenCounter) Count(s string) int {
	if enc := c.encoding(); enc != nil {
		return len(enc.Encode(s, nil, nil))
	}
	return len(s) / 4
}

var defaultCounter = &TokenCounter{}

// CountTokens is the package-level convenience wrapper over a shared
// TokenCounter (the tokenizer's internal BPE load is cached).
func CountTokens(s string) int { return defaultCounter.Count(s) }
