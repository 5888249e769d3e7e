// Package tokens counts tokens with tiktoken and trims conversation history to a
// token budget.
package tokens

import (
	"fmt"
	"math"

	"github.com/tiktoken-go/tokenizer"

	"github.com/piotrzwolinski/synapseos-sub000/internal/domain"
)

// DefaultEncoding is used when no encoding is configured.
const DefaultEncoding = tokenizer.Cl100kBase

// Per-entry overhead of a chat message: 3 tokens of framing plus 1 for the role.
const (
	tokensPerMessage = 3
	tokensPerRole    = 1
)

// Counter counts tokens of history entries. A Counter without a codec falls back
// to a character based estimate.
type Counter struct {
	codec tokenizer.Codec

	// CharsPerToken is used by the fallback estimate.
	CharsPerToken float64
}

// NewCounter loads the tiktoken codec for encoding.
func NewCounter(encoding tokenizer.Encoding) (*Counter, error) {
	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}
	return &Counter{codec: codec, CharsPerToken: 4.0}, nil
}

// NewEstimator returns a Counter that only estimates.
func NewEstimator() *Counter {
	return &Counter{CharsPerToken: 4.0}
}

// CountText counts the tokens of text.
func (c *Counter) CountText(text string) int {
	if c.codec != nil {
		ids, _, err := c.codec.Encode(text)
		if err == nil {
			return len(ids)
		}
	}
	return c.estimate(text)
}

func (c *Counter) estimate(text string) int {
	if text == "" {
		return 0
	}
	cpt := c.CharsPerToken
	if cpt <= 0 {
		cpt = 4.0
	}
	return int(math.Ceil(float64(len(text)) / cpt))
}

// CountEntry counts one history entry including message overhead.
func (c *Counter) CountEntry(e domain.HistoryEntry) int {
	return tokensPerMessage + tokensPerRole + c.CountText(e.Content)
}

// CountHistory counts every entry of history.
func (c *Counter) CountHistory(history []domain.HistoryEntry) int {
	total := 0
	for _, e := range history {
		total += c.CountEntry(e)
	}
	return total
}
