// Package encoder turns an utterance into a fixed-width pooled vector
// for the dialog tracker.
//
// Two implementations are provided: [Hash], a deterministic local
// feature-hashing encoder that needs no network and backs tests and
// offline runs, and [OpenAI], which delegates to an OpenAI-compatible
// embeddings API.
package encoder

import (
	"context"
	"errors"
)

// Utterance is one encoded input: the BOS/EOS-framed padded token
// window with its attention mask, plus the canonical text the window
// was built from. Local encoders consume the token IDs; remote
// encoders consume the text.
type Utterance struct {
	TokenIDs []int
	Mask     []int
	Text     string
}

// Encoder pools an utterance into a fixed-width vector.
type Encoder interface {
	// Encode returns the pooled vector for one utterance.
	Encode(ctx context.Context, u Utterance) ([]float64, error)

	// EncodeBatch encodes several utterances. Implementations may
	// batch the underlying work.
	EncodeBatch(ctx context.Context, us []Utterance) ([][]float64, error)

	// Dimension returns the width of the pooled vectors.
	Dimension() int
}

// ErrEmptyInput is returned when an utterance has no unmasked tokens
// and no text.
var ErrEmptyInput = errors.New("encoder: empty input")
