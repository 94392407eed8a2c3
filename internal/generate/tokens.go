package generate

import (
	"log/slog"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Encoding is the tiktoken encoding used for budget estimates.
const Encoding = "cl100k_base"

// Counter estimates the token count of a text.
type Counter interface {
	Count(text string) int
}

// Heuristic estimates one token per four characters.
type Heuristic struct{}

func (Heuristic) Count(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// Tiktoken counts tokens with a BPE encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// NewCounter loads the cl100k_base encoding, falling back to the
// character heuristic when the encoding cannot be loaded.
func NewCounter(logger *slog.Logger) Counter {
	if logger == nil {
		logger = slog.Default()
	}
	enc, err := tiktoken.GetEncoding(Encoding)
	if err != nil {
		logger.Warn("tiktoken unavailable, estimating tokens from length", "encoding", Encoding, "error", err)
		return Heuristic{}
	}
	return &Tiktoken{enc: enc}
}
