// Package reader loads conversation scripts: YAML files bundling
// entity rules, response templates, and scripted conversations. Scripts
// feed two consumers: the template catalog and NER rules at startup,
// and the dialog core when replaying conversations into training
// batches.
package reader

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/elsabot/elsabot/pkg/dialog"
	"github.com/elsabot/elsabot/pkg/nlp"
	"github.com/elsabot/elsabot/pkg/template"
)

// Silence marks a scripted user turn with no utterance. The pair it
// heads contributes nothing to training.
const Silence = "<SILENCE>"

// EntityRules declares how one entity is recognized.
type EntityRules struct {
	Keywords []string `yaml:"keywords,omitempty"`
	Regex    string   `yaml:"regex,omitempty"`
}

// Script is one parsed conversation script.
type Script struct {
	// Entities maps entity names to their recognition rules.
	Entities map[string]EntityRules `yaml:"entities,omitempty"`

	// Templates holds pipe-delimited template lines.
	Templates []string `yaml:"templates,omitempty"`

	// Conversations are alternating user/bot lines.
	Conversations [][]string `yaml:"conversations,omitempty"`
}

// Parse decodes a script from YAML.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("reader: parse script: %w", err)
	}
	return &s, nil
}

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reader: read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("reader: %s: %w", path, err)
	}
	return s, nil
}

// NERRules converts the script's entity declarations into recognizer
// rules. Entity names are upper-cased.
func (s *Script) NERRules() nlp.NERRules {
	rules := nlp.NERRules{
		Keywords: make(map[string][]string),
		Regex:    make(map[string]string),
	}
	for name, er := range s.Entities {
		name = strings.ToUpper(strings.TrimSpace(name))
		if len(er.Keywords) > 0 {
			rules.Keywords[name] = er.Keywords
		}
		if er.Regex != "" {
			rules.Regex[name] = er.Regex
		}
	}
	return rules
}

// LoadTemplates adds the script's template lines to a catalog. The
// caller builds the index and masks afterwards.
func (s *Script) LoadTemplates(idx *template.Index) {
	for _, line := range s.Templates {
		idx.Add(line)
	}
}

// Replay runs the script's conversations through fresh dialog states
// and returns one training batch per conversation. Lines alternate
// user, bot; a [Silence] user line skips its pair, and a trailing
// unpaired user line is dropped.
func (s *Script) Replay(newState func() *dialog.State) ([]*dialog.Batch, error) {
	var batches []*dialog.Batch
	for ci, conv := range s.Conversations {
		st := newState()
		for i := 0; i+1 < len(conv); i += 2 {
			user, bot := conv[i], conv[i+1]
			if strings.TrimSpace(user) == Silence {
				continue
			}
			if !st.AddUtterance(user) {
				continue
			}
			if err := st.AddResponse(bot); err != nil {
				return nil, fmt.Errorf("reader: conversation %d turn %d: %w", ci, i/2, err)
			}
		}
		if st.Len() == 0 {
			continue
		}
		batches = append(batches, st.HistoryBatch())
	}
	return batches, nil
}
