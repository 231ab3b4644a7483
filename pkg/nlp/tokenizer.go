package nlp

import (
	"regexp"
	"strings"
)

// tokenPattern matches either an entity placeholder like {TOPIC} or a
// run of word characters. Apostrophes stay inside tokens ("don't").
var tokenPattern = regexp.MustCompile(`\{[A-Z_]+\}|[a-zA-Z0-9']+`)

// RegexpTokenizer is a lowercasing word tokenizer. Entity placeholders
// of the form {NAME} are kept as single tokens with their case intact,
// so canonicalized text survives tokenization.
type RegexpTokenizer struct{}

var _ Tokenizer = RegexpTokenizer{}

// NewRegexpTokenizer returns the default tokenizer.
func NewRegexpTokenizer() RegexpTokenizer { return RegexpTokenizer{} }

func (RegexpTokenizer) Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(text, -1)
	if len(raw) == 0 {
		return nil
	}
	tokens := make([]string, len(raw))
	for i, tok := range raw {
		if strings.HasPrefix(tok, "{") {
			tokens[i] = tok
			continue
		}
		tokens[i] = strings.ToLower(tok)
	}
	return tokens
}
