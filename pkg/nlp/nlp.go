// Package nlp defines the text-processing collaborators consumed by the
// dialog core: tokenization, vocabulary lookup, named-entity extraction,
// and sentiment scoring.
//
// The dialog pipeline only depends on the interfaces in this file. The
// package also ships local implementations — [RegexpTokenizer],
// [StoreVocab], [KeywordNER], [LexiconSentiment] — which are good enough
// for scripted goal-oriented bots and keep the whole system runnable
// without external model servers.
package nlp

// Reserved vocabulary IDs. Every Vocab implementation must honor these.
const (
	PadID = 0 // sequence padding
	BosID = 1 // begin-of-sentence marker
	EosID = 2 // end-of-sentence marker
	UnkID = 3 // unknown token

	// NumReserved is the first ID available for real tokens.
	NumReserved = 4
)

// Tokenizer splits text into tokens. Implementations must be
// deterministic: the same text always yields the same token sequence.
type Tokenizer interface {
	Tokenize(text string) []string
}

// Vocab maps tokens to integer IDs. IDs below NumReserved are reserved
// for padding and sentence markers.
type Vocab interface {
	// ID returns the ID for a token, allocating a new one if the token
	// has not been seen before.
	ID(token string) int

	// IDs maps a token sequence, allocating as needed.
	IDs(tokens []string) []int

	// Size returns the number of IDs in use, including reserved ones.
	Size() int
}

// NER extracts named entities from text. It returns the entity map
// (name to the values found, in order of appearance) and the canonical
// text with each matched span replaced by its {NAME} placeholder.
type NER interface {
	Extract(text string) (entities map[string][]string, canonical string)
}

// Sentiment scores the polarity of a text in [-1, 1], where -1 is
// strongly negative and +1 strongly positive.
type Sentiment interface {
	Score(text string) float64
}
