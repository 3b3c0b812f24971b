package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var openAIModelDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

// OpenAIOptions configures an OpenAI-compatible embeddings endpoint.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// OpenAIEmbedder calls the embeddings API of OpenAI or a compatible server.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	// reduce asks the API to shorten vectors to dimensions.
	reduce bool
}

// NewOpenAIEmbedder validates opts and builds the client.
func NewOpenAIEmbedder(opts OpenAIOptions) (*OpenAIEmbedder, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is not set")
	}
	if opts.Model == "" {
		opts.Model = string(openai.SmallEmbedding3)
	}

	native, known := openAIModelDimensions[opts.Model]
	if opts.Dimensions <= 0 {
		if !known {
			return nil, fmt.Errorf("dimensions required for model %q", opts.Model)
		}
		opts.Dimensions = native
	}
	if opts.Model == string(openai.AdaEmbeddingV2) && opts.Dimensions != native {
		return nil, fmt.Errorf("model %s only produces %d dimensions, configured %d", opts.Model, native, opts.Dimensions)
	}

	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      opts.Model,
		dimensions: opts.Dimensions,
		reduce:     known && opts.Dimensions != native,
	}, nil
}

// Embed requests a single embedding.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	}
	if e.reduce {
		req.Dimensions = e.dimensions
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEmbedding, e.model, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: %s: empty response", ErrEmbedding, e.model)
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	copy(vec, resp.Data[0].Embedding)
	return vec, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Name returns "openai:<model>".
func (e *OpenAIEmbedder) Name() string {
	return "openai:" + e.model
}

// Close is a no-op; the HTTP client holds no resources.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
