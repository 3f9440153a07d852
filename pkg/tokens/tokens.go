// Package tokens estimates how many model tokens a piece of text occupies.
package tokens

import (
	"fmt"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// DefaultModel is used when no model is named or the named one is unknown.
const DefaultModel = "gpt-4o"

// Counter counts tokens. Implementations must be safe for concurrent use.
type Counter interface {
	Count(text string) int
}

// Estimate approximates four bytes per token without loading an encoding.
type Estimate struct{}

func (Estimate) Count(text string) int {
	return (len(text) + 3) / 4
}

// Tiktoken counts tokens with the BPE encoding of an OpenAI model.
type Tiktoken struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the encoding for model, falling back to DefaultModel.
// Loading may download the encoding on first use.
func NewTiktoken(model string, logger *zap.Logger) (*Tiktoken, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if model == "" {
		model = DefaultModel
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil && model != DefaultModel {
		logger.Warn("Tiktoken model not found, falling back to default",
			zap.String("model", model), zap.String("default", DefaultModel), zap.Error(err))
		enc, err = tiktoken.EncodingForModel(DefaultModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.EncodeOrdinary(text))
}
