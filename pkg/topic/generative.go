package topic

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/elsabot/elsabot/pkg/dialog"
)

// GenerativeConfig assembles a GenerativeSkill.
type GenerativeConfig struct {
	// Name is the topic name.
	Name string

	// Client is the chat-completions client. Required.
	Client *openai.Client

	// Model defaults to gpt-4o-mini.
	Model string

	// SystemPrompt, when set, is prepended to every request.
	SystemPrompt string

	// MaxTokens caps the reply length. Zero means no cap.
	MaxTokens int

	// HistoryTurns is how many completed turns of context to send.
	// Default 6.
	HistoryTurns int
}

// GenerativeSkill answers open-domain turns through a chat-completions
// model. It carries no template catalog, so its turns never produce
// training targets.
type GenerativeSkill struct {
	cfg GenerativeConfig
}

var _ Skill = (*GenerativeSkill)(nil)

// NewGenerativeSkill creates the skill.
func NewGenerativeSkill(cfg GenerativeConfig) (*GenerativeSkill, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("topic: generative skill %q: client is required", cfg.Name)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.HistoryTurns == 0 {
		cfg.HistoryTurns = 6
	}
	return &GenerativeSkill{cfg: cfg}, nil
}

func (g *GenerativeSkill) Name() string { return g.cfg.Name }

// UpdateMask is a no-op: there is no catalog to mask.
func (g *GenerativeSkill) UpdateMask(*dialog.Status) {}

// RecordResponse keeps the scripted text; there is no catalog entry to
// resolve it to.
func (g *GenerativeSkill) RecordResponse(canonical string, s *dialog.Status) {
	s.ResponseString = canonical
}

// Respond sends the recent dialog plus the pending utterance to the
// model and takes the first choice as the reply.
func (g *GenerativeSkill) Respond(ctx context.Context, b *dialog.Batch, s *dialog.Status) error {
	var messages []openai.ChatCompletionMessageParamUnion
	if g.cfg.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(g.cfg.SystemPrompt))
	}
	messages = append(messages, g.historyMessages(b)...)
	messages = append(messages, openai.UserMessage(s.UtteranceText))

	params := openai.ChatCompletionNewParams{
		Model:    g.cfg.Model,
		Messages: messages,
	}
	if g.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.cfg.MaxTokens))
	}
	resp, err := g.cfg.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return fmt.Errorf("topic: %s: chat completion: %w", g.cfg.Name, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("topic: %s: chat completion returned no choices", g.cfg.Name)
	}
	s.ResponseString = resp.Choices[0].Message.Content
	return nil
}

// historyMessages flattens the first dialog's trailing turns into
// alternating user/assistant messages. Single-turn inference batches
// contribute nothing here; context comes from history batches.
func (g *GenerativeSkill) historyMessages(b *dialog.Batch) []openai.ChatCompletionMessageParamUnion {
	if b == nil || b.Size() == 0 {
		return nil
	}
	turns := b.Lengths[0]
	start := turns - g.cfg.HistoryTurns
	if start < 0 {
		start = 0
	}
	var out []openai.ChatCompletionMessageParamUnion
	for t := start; t < turns; t++ {
		if txt := b.Texts[0][t]; txt != "" {
			out = append(out, openai.UserMessage(txt))
		}
	}
	return out
}
