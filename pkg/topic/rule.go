package topic

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/elsabot/elsabot/pkg/dialog"
	"github.com/elsabot/elsabot/pkg/encoder"
)

// Rule is one scripted trigger/response pair.
type Rule struct {
	Trigger  string `yaml:"trigger"`
	Response string `yaml:"response"`
}

// RuleConfig assembles a RuleSkill.
type RuleConfig struct {
	// Name is the topic name.
	Name string

	// Encoder embeds triggers and utterances into the similarity space.
	// Required.
	Encoder encoder.Encoder

	// Rules is the script. Required, non-empty.
	Rules []Rule

	// MinScore is the similarity floor below which the skill falls back.
	// Default 0.3.
	MinScore float64

	// Fallback is the reply when no trigger scores above the floor.
	Fallback string
}

// RuleSkill answers from a fixed script by nearest-trigger cosine
// similarity. Trigger vectors are computed once on first use.
type RuleSkill struct {
	cfg RuleConfig

	once    sync.Once
	vectors [][]float64
	prepErr error
}

var _ Skill = (*RuleSkill)(nil)

// NewRuleSkill creates the skill.
func NewRuleSkill(cfg RuleConfig) (*RuleSkill, error) {
	if cfg.Encoder == nil || len(cfg.Rules) == 0 {
		return nil, fmt.Errorf("topic: rule skill %q: encoder and rules are required", cfg.Name)
	}
	if cfg.MinScore == 0 {
		cfg.MinScore = 0.3
	}
	return &RuleSkill{cfg: cfg}, nil
}

func (r *RuleSkill) Name() string { return r.cfg.Name }

// UpdateMask is a no-op: scripted responses carry no entity
// preconditions.
func (r *RuleSkill) UpdateMask(*dialog.Status) {}

// RecordResponse matches a scripted response to its rule by text.
func (r *RuleSkill) RecordResponse(canonical string, s *dialog.Status) {
	want := strings.ToLower(strings.TrimSpace(canonical))
	for i, rule := range r.cfg.Rules {
		if strings.ToLower(strings.TrimSpace(rule.Response)) == want {
			s.Response[r.cfg.Name] = i
			break
		}
	}
	s.ResponseString = canonical
}

func (r *RuleSkill) prepare(ctx context.Context) error {
	r.once.Do(func() {
		us := make([]encoder.Utterance, len(r.cfg.Rules))
		for i, rule := range r.cfg.Rules {
			us[i] = encoder.Utterance{Text: rule.Trigger}
		}
		r.vectors, r.prepErr = r.cfg.Encoder.EncodeBatch(ctx, us)
	})
	return r.prepErr
}

// Respond picks the rule whose trigger is nearest to the utterance, or
// the fallback when nothing is close enough.
func (r *RuleSkill) Respond(ctx context.Context, _ *dialog.Batch, s *dialog.Status) error {
	if err := r.prepare(ctx); err != nil {
		return fmt.Errorf("topic: %s: index triggers: %w", r.cfg.Name, err)
	}
	v, err := r.cfg.Encoder.Encode(ctx, encoder.Utterance{Text: s.UtteranceText})
	if err != nil {
		return fmt.Errorf("topic: %s: encode utterance: %w", r.cfg.Name, err)
	}

	best, bestScore := -1, math.Inf(-1)
	for i, tv := range r.vectors {
		if score := cosine(v, tv); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore < r.cfg.MinScore {
		s.ResponseString = r.cfg.Fallback
		return nil
	}
	s.Response[r.cfg.Name] = best
	s.ResponseString = r.cfg.Rules[best].Response
	return nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}
