package nlp

import "strings"

// LexiconSentiment scores text by averaging the valence of known words.
// Words outside the lexicon contribute nothing; a text with no known
// words scores 0. A preceding negation word flips the sign of the next
// scored word.
type LexiconSentiment struct {
	valence   map[string]float64
	tokenizer Tokenizer
}

var _ Sentiment = (*LexiconSentiment)(nil)

// defaultValence is a small built-in lexicon covering the polarity
// words that matter for support-style dialogs.
var defaultValence = map[string]float64{
	"good": 0.7, "great": 0.9, "awesome": 1.0, "nice": 0.6,
	"thanks": 0.8, "thank": 0.8, "love": 0.9, "happy": 0.8,
	"perfect": 1.0, "helpful": 0.7, "please": 0.2, "yes": 0.3,
	"bad": -0.7, "terrible": -1.0, "awful": -0.9, "hate": -0.9,
	"angry": -0.8, "wrong": -0.6, "broken": -0.6, "useless": -0.8,
	"no": -0.3, "problem": -0.4, "issue": -0.3, "slow": -0.4,
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "don't": true,
	"doesn't": true, "isn't": true, "can't": true, "won't": true,
}

// NewLexiconSentiment creates a scorer with the built-in lexicon.
// Pass extra to extend or override word valences.
func NewLexiconSentiment(extra map[string]float64) *LexiconSentiment {
	valence := make(map[string]float64, len(defaultValence)+len(extra))
	for w, v := range defaultValence {
		valence[w] = v
	}
	for w, v := range extra {
		valence[strings.ToLower(w)] = v
	}
	return &LexiconSentiment{valence: valence, tokenizer: NewRegexpTokenizer()}
}

func (l *LexiconSentiment) Score(text string) float64 {
	tokens := l.tokenizer.Tokenize(text)
	var sum float64
	var n int
	negate := false
	for _, tok := range tokens {
		if negations[tok] {
			negate = true
			continue
		}
		if v, ok := l.valence[tok]; ok {
			if negate {
				v = -v
			}
			sum += v
			n++
		}
		negate = false
	}
	if n == 0 {
		return 0
	}
	score := sum / float64(n)
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}
