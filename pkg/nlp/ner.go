package nlp

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// KeywordNER extracts entities by keyword and regular-expression rules,
// the way scripted dialog flows declare them: each entity name carries
// a list of literal keyword phrases and/or a regex pattern. Matching is
// case-insensitive for keywords; longer keywords win over shorter ones
// when spans overlap.
//
// Extract returns the canonical text with each matched span replaced by
// the {NAME} placeholder, so downstream tokenization sees the slot, not
// the surface value.
type KeywordNER struct {
	keywords map[string][]string
	patterns map[string]*regexp.Regexp
}

var _ NER = (*KeywordNER)(nil)

// NERRules declares the extraction rules for one entity universe.
type NERRules struct {
	// Keywords maps entity name to literal phrases, e.g.
	// "TOPIC" -> ["payroll", "vacation"].
	Keywords map[string][]string `yaml:"keywords,omitempty"`

	// Regex maps entity name to a regular expression. The whole match
	// is the entity value.
	Regex map[string]string `yaml:"regex,omitempty"`
}

// NewKeywordNER compiles the rules. Entity names are upper-cased, the
// convention used throughout template files.
func NewKeywordNER(rules NERRules) (*KeywordNER, error) {
	n := &KeywordNER{
		keywords: make(map[string][]string),
		patterns: make(map[string]*regexp.Regexp),
	}
	for name, phrases := range rules.Keywords {
		n.keywords[strings.ToUpper(name)] = phrases
	}
	for name, pattern := range rules.Regex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("nlp: entity %s: %w", name, err)
		}
		n.patterns[strings.ToUpper(name)] = re
	}
	return n, nil
}

// span is one matched region of the input text.
type span struct {
	start, end int
	name       string
	value      string
}

func (n *KeywordNER) Extract(text string) (map[string][]string, string) {
	var spans []span

	lower := strings.ToLower(text)
	for name, phrases := range n.keywords {
		for _, phrase := range phrases {
			p := strings.ToLower(phrase)
			from := 0
			for {
				i := strings.Index(lower[from:], p)
				if i < 0 {
					break
				}
				start := from + i
				end := start + len(p)
				if wordBounded(lower, start, end) {
					spans = append(spans, span{start, end, name, text[start:end]})
				}
				from = end
			}
		}
	}
	for name, re := range n.patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			spans = append(spans, span{loc[0], loc[1], name, text[loc[0]:loc[1]]})
		}
	}

	if len(spans) == 0 {
		return map[string][]string{}, text
	}

	// Earlier start first; on ties the longer span wins.
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	entities := make(map[string][]string)
	var b strings.Builder
	pos := 0
	for _, s := range spans {
		if s.start < pos {
			continue // overlaps a span already taken
		}
		entities[s.name] = append(entities[s.name], s.value)
		b.WriteString(text[pos:s.start])
		b.WriteString("{" + s.name + "}")
		pos = s.end
	}
	b.WriteString(text[pos:])
	return entities, b.String()
}

// wordBounded reports whether [start, end) sits on word boundaries.
func wordBounded(s string, start, end int) bool {
	if start > 0 && isWordByte(s[start-1]) {
		return false
	}
	if end < len(s) && isWordByte(s[end]) {
		return false
	}
	return true
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '\''
}
