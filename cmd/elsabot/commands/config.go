package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/elsabot/elsabot/pkg/dialog"
	"github.com/elsabot/elsabot/pkg/encoder"
	"github.com/elsabot/elsabot/pkg/entity"
	"github.com/elsabot/elsabot/pkg/kv"
	"github.com/elsabot/elsabot/pkg/nlp"
	"github.com/elsabot/elsabot/pkg/reader"
	"github.com/elsabot/elsabot/pkg/search"
	"github.com/elsabot/elsabot/pkg/session"
	"github.com/elsabot/elsabot/pkg/template"
	"github.com/elsabot/elsabot/pkg/topic"
	"github.com/elsabot/elsabot/pkg/tracker"
)

// Config is the bot configuration file.
type Config struct {
	// DataDir holds the persistent store and checkpoints. Empty means
	// everything stays in memory.
	DataDir string `yaml:"data_dir,omitempty"`

	// Script is the conversation script with entities, templates and
	// training conversations.
	Script string `yaml:"script"`

	// Listen is the serve address. Default :8080.
	Listen string `yaml:"listen,omitempty"`

	Fallback   string `yaml:"fallback,omitempty"`
	ResetReply string `yaml:"reset_reply,omitempty"`

	Encoder    EncoderConfig     `yaml:"encoder,omitempty"`
	Tracker    TrackerConfig     `yaml:"tracker,omitempty"`
	Chitchat   *ChitchatConfig   `yaml:"chitchat,omitempty"`
	Generative *GenerativeConfig `yaml:"generative,omitempty"`
	Remote     *RemoteConfig     `yaml:"remote,omitempty"`
}

// EncoderConfig selects the utterance encoder.
type EncoderConfig struct {
	// Kind is "hash" (default) or "openai".
	Kind string `yaml:"kind,omitempty"`

	// Dim is the hash encoder width. Default 128.
	Dim int `yaml:"dim,omitempty"`

	// Model and BaseURL configure the openai encoder.
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	// Default OPENAI_API_KEY.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// TrackerConfig shapes the goal tracker.
type TrackerConfig struct {
	// Checkpoint is the weights file, relative to DataDir.
	Checkpoint string `yaml:"checkpoint,omitempty"`

	HiddenDim      int `yaml:"hidden_dim,omitempty"`
	EntityEmbDim   int `yaml:"entity_emb_dim,omitempty"`
	MaxEntityTypes int `yaml:"max_entity_types,omitempty"`
}

// ChitchatConfig enables the scripted small-talk skill.
type ChitchatConfig struct {
	Rules    []topic.Rule `yaml:"rules"`
	MinScore float64      `yaml:"min_score,omitempty"`
	Fallback string       `yaml:"fallback,omitempty"`
}

// GenerativeConfig enables the open-domain chat-completions skill.
type GenerativeConfig struct {
	Model        string `yaml:"model,omitempty"`
	SystemPrompt string `yaml:"system_prompt,omitempty"`
	BaseURL      string `yaml:"base_url,omitempty"`
	APIKeyEnv    string `yaml:"api_key_env,omitempty"`
}

// RemoteConfig enables the remote-responder skill.
type RemoteConfig struct {
	URL string `yaml:"url"`
}

// LoadConfig reads the bot configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.Encoder.Dim == 0 {
		cfg.Encoder.Dim = 128
	}
	if cfg.Encoder.APIKeyEnv == "" {
		cfg.Encoder.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Tracker.Checkpoint == "" {
		cfg.Tracker.Checkpoint = "goal.ckpt"
	}
	if cfg.Tracker.MaxEntityTypes == 0 {
		cfg.Tracker.MaxEntityTypes = 1024
	}
	return &cfg, nil
}

// Bot bundles everything a command needs to answer turns.
type Bot struct {
	Config    *Config
	Store     kv.Store
	Script    *reader.Script
	Vocab     *nlp.StoreVocab
	Entities  *entity.Index
	Templates *template.Index
	Tracker   *tracker.Tracker
	Topics    *topic.Manager
	Sessions  *session.Manager
	NewState  func() *dialog.State
}

// Close persists mutable state and releases the store.
func (b *Bot) Close(ctx context.Context) error {
	if err := b.Vocab.Save(ctx, b.Store); err != nil {
		return err
	}
	if err := b.Entities.Save(ctx, b.Store); err != nil {
		return err
	}
	return b.Store.Close()
}

// openStore opens the persistent store, on disk under DataDir or in
// memory when no DataDir is configured.
func openStore(cfg *Config) (kv.Store, error) {
	if cfg.DataDir == "" {
		return kv.OpenBadger(kv.BadgerOptions{InMemory: true})
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	return kv.OpenBadger(kv.BadgerOptions{Dir: filepath.Join(cfg.DataDir, "store")})
}

// buildEncoder constructs the configured utterance encoder.
func buildEncoder(cfg *Config) (encoder.Encoder, error) {
	switch cfg.Encoder.Kind {
	case "", "hash":
		return encoder.NewHash(cfg.Encoder.Dim), nil
	case "openai":
		apiKey := os.Getenv(cfg.Encoder.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("encoder: %s is not set", cfg.Encoder.APIKeyEnv)
		}
		var opts []encoder.Option
		if cfg.Encoder.Model != "" {
			opts = append(opts, encoder.WithModel(cfg.Encoder.Model))
		}
		if cfg.Encoder.BaseURL != "" {
			opts = append(opts, encoder.WithBaseURL(cfg.Encoder.BaseURL))
		}
		return encoder.NewOpenAI(apiKey, opts...), nil
	default:
		return nil, fmt.Errorf("encoder: unknown kind %q", cfg.Encoder.Kind)
	}
}

// buildBot assembles the full dialog stack from the configuration and
// the persistent store.
func buildBot(ctx context.Context, cfg *Config) (*Bot, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	bot, err := buildBotWithStore(ctx, cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return bot, nil
}

func buildBotWithStore(ctx context.Context, cfg *Config, store kv.Store) (*Bot, error) {
	script, err := reader.Load(cfg.Script)
	if err != nil {
		return nil, err
	}
	ner, err := nlp.NewKeywordNER(script.NERRules())
	if err != nil {
		return nil, err
	}

	vocab, err := nlp.LoadVocab(ctx, store)
	if err != nil {
		return nil, err
	}
	entities, err := entity.Load(ctx, store)
	if err != nil {
		return nil, err
	}
	tokenizer := nlp.NewRegexpTokenizer()

	templates := template.NewIndex(template.Config{
		Entities:  entities,
		Tokenizer: tokenizer,
		Engine:    search.NewTFIDF(),
	})
	if err := templates.Load(ctx, store); err != nil {
		return nil, err
	}
	if templates.Len() == 0 {
		script.LoadTemplates(templates)
		templates.BuildIndex()
		templates.BuildMask()
	}
	if templates.Len() == 0 {
		return nil, fmt.Errorf("template catalog is empty; run elsabot index first")
	}

	enc, err := buildEncoder(cfg)
	if err != nil {
		return nil, err
	}
	tr, err := tracker.New(tracker.Config{
		Topic:          "goal",
		Encoder:        enc,
		NumResponses:   templates.Len(),
		MaxEntityTypes: cfg.Tracker.MaxEntityTypes,
		EntityEmbDim:   cfg.Tracker.EntityEmbDim,
		HiddenDim:      cfg.Tracker.HiddenDim,
	})
	if err != nil {
		return nil, err
	}
	if cfg.DataDir != "" {
		ckpt := filepath.Join(cfg.DataDir, cfg.Tracker.Checkpoint)
		if _, statErr := os.Stat(ckpt); statErr == nil {
			if err := tr.Load(ckpt); err != nil {
				return nil, err
			}
			slog.Info("loaded tracker checkpoint", "path", ckpt)
		}
	}

	hooks := topic.NewHooks(nil)
	hooks.Register("bye", topic.Reset)
	hooks.Register("reset", topic.Reset)

	topics := topic.NewManager(topic.ManagerConfig{})
	goal, err := topic.NewGoalSkill(topic.GoalConfig{
		Name:      "goal",
		Templates: templates,
		Tracker:   tr,
		Entities:  entities,
		Hooks:     hooks,
	})
	if err != nil {
		return nil, err
	}
	if err := topics.Register(goal); err != nil {
		return nil, err
	}
	if cfg.Chitchat != nil {
		chitchat, err := topic.NewRuleSkill(topic.RuleConfig{
			Name:     "chitchat",
			Encoder:  enc,
			Rules:    cfg.Chitchat.Rules,
			MinScore: cfg.Chitchat.MinScore,
			Fallback: cfg.Chitchat.Fallback,
		})
		if err != nil {
			return nil, err
		}
		if err := topics.Register(chitchat); err != nil {
			return nil, err
		}
	}
	if cfg.Generative != nil {
		keyEnv := cfg.Generative.APIKeyEnv
		if keyEnv == "" {
			keyEnv = "OPENAI_API_KEY"
		}
		apiKey := os.Getenv(keyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("generative: %s is not set", keyEnv)
		}
		clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
		if cfg.Generative.BaseURL != "" {
			clientOpts = append(clientOpts, option.WithBaseURL(cfg.Generative.BaseURL))
		}
		client := openai.NewClient(clientOpts...)
		gen, err := topic.NewGenerativeSkill(topic.GenerativeConfig{
			Name:         "chat",
			Client:       &client,
			Model:        cfg.Generative.Model,
			SystemPrompt: cfg.Generative.SystemPrompt,
		})
		if err != nil {
			return nil, err
		}
		if err := topics.Register(gen); err != nil {
			return nil, err
		}
	}
	if cfg.Remote != nil {
		remote, err := topic.NewRestSkill(topic.RestConfig{
			Name: "remote",
			URL:  cfg.Remote.URL,
		})
		if err != nil {
			return nil, err
		}
		if err := topics.Register(remote); err != nil {
			return nil, err
		}
	}

	newState := func() *dialog.State {
		return dialog.NewState(dialog.Config{
			Vocab:          vocab,
			Tokenizer:      tokenizer,
			NER:            ner,
			Sentiment:      nlp.NewLexiconSentiment(nil),
			Entities:       entities,
			Topics:         topics,
			MaxEntityTypes: cfg.Tracker.MaxEntityTypes,
		})
	}
	sessions := session.NewManager(session.Config{
		NewState:   newState,
		Fallback:   cfg.Fallback,
		ResetReply: cfg.ResetReply,
	})

	return &Bot{
		Config:    cfg,
		Store:     store,
		Script:    script,
		Vocab:     vocab,
		Entities:  entities,
		Templates: templates,
		Tracker:   tr,
		Topics:    topics,
		Sessions:  sessions,
		NewState:  newState,
	}, nil
}
