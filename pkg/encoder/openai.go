package encoder

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	openAIDefaultModel = "text-embedding-3-small"
	openAIDefaultDim   = 1536
	openAIMaxBatch     = 2048
)

// OpenAI encodes utterances through an OpenAI-compatible embeddings
// API. It pools the canonical utterance text server-side; token IDs
// and masks are ignored. Any provider speaking the OpenAI embeddings
// protocol works via WithBaseURL.
type OpenAI struct {
	client *openai.Client
	model  string
	dim    int
}

var _ Encoder = (*OpenAI)(nil)

// Option configures the OpenAI encoder.
type Option func(*openAIConfig)

type openAIConfig struct {
	model      string
	dim        int
	baseURL    string
	httpClient *http.Client
}

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(c *openAIConfig) { c.model = model }
}

// WithDimension sets the requested vector width.
func WithDimension(dim int) Option {
	return func(c *openAIConfig) { c.dim = dim }
}

// WithBaseURL points the client at an OpenAI-compatible provider.
func WithBaseURL(url string) Option {
	return func(c *openAIConfig) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *openAIConfig) { c.httpClient = client }
}

// NewOpenAI creates an OpenAI-backed encoder.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	cfg := openAIConfig{
		model:      openAIDefaultModel,
		dim:        openAIDefaultDim,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	client := openai.NewClient(clientOpts...)

	return &OpenAI{client: &client, model: cfg.model, dim: cfg.dim}
}

func (o *OpenAI) Encode(ctx context.Context, u Utterance) ([]float64, error) {
	vecs, err := o.EncodeBatch(ctx, []Utterance{u})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (o *OpenAI) EncodeBatch(ctx context.Context, us []Utterance) ([][]float64, error) {
	if len(us) == 0 {
		return nil, ErrEmptyInput
	}
	texts := make([]string, len(us))
	for i, u := range us {
		if u.Text == "" {
			return nil, ErrEmptyInput
		}
		texts[i] = u.Text
	}

	result := make([][]float64, len(texts))
	for i := 0; i < len(texts); i += openAIMaxBatch {
		end := min(i+openAIMaxBatch, len(texts))
		vecs, err := o.callAPI(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("encoder: batch [%d:%d]: %w", i, end, err)
		}
		copy(result[i:], vecs)
	}
	return result, nil
}

func (o *OpenAI) Dimension() int { return o.dim }

func (o *OpenAI) callAPI(ctx context.Context, texts []string) ([][]float64, error) {
	params := openai.EmbeddingNewParams{
		Model:          o.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions:     openai.Int(int64(o.dim)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float64, len(texts))
	for _, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= int64(len(texts)) {
			return nil, fmt.Errorf("encoder: unexpected embedding index %d for batch size %d", idx, len(texts))
		}
		vecs[idx] = item.Embedding
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("encoder: missing embedding for index %d", i)
		}
	}
	return vecs, nil
}
