package tokens

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// defaultEncoding covers models tiktoken does not know, which includes every
// non-OpenAI model served through a compatible endpoint.
const defaultEncoding = "cl100k_base"

// Counter measures text in model tokens.
type Counter interface {
	Count(text string) int
}

// Tiktoken counts tokens with a BPE encoding.
type Tiktoken struct {
	tke *tiktoken.Tiktoken
}

// NewTiktoken returns a counter for model, falling back to cl100k_base.
func NewTiktoken(model string) (*Tiktoken, error) {
	tke, err := tiktoken.EncodingForModel(strings.TrimSpace(model))
	if err != nil {
		tke, err = tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			return nil, fmt.Errorf("get encoding %s: %w", defaultEncoding, err)
		}
	}

	return &Tiktoken{tke: tke}, nil
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}

	return len(t.tke.Encode(text, nil, nil))
}

// Words treats every whitespace-separated word as one token.
type Words struct{}

func (Words) Count(text string) int {
	return len(strings.Fields(text))
}
