package textproc

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/opsgraph/opsgraph/pkg/logger"
)

// tokenCounter counts tokens with the o200k_base encoding. When the
// encoding cannot be loaded it falls back to a bytes/4 estimate.
type tokenCounter struct {
	enc *tiktoken.Tiktoken
}

func newTokenCounter() *tokenCounter {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		logger.Warn("Failed to load token encoding, falling back to estimate", "err", err)
		return &tokenCounter{}
	}
	return &tokenCounter{enc: enc}
}

func (t *tokenCounter) Count(content string) int {
	if content == "" {
		return 0
	}
	if t.enc == nil {
		return (len(content) + 3) / 4
	}
	return len(t.enc.Encode(content, nil, nil))
}
