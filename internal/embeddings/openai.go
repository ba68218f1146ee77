package embeddings

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIModel implements Model using OpenAI's embeddings API
type OpenAIModel struct {
	client *openai.Client
	model  string
	dims   int
}

// NewOpenAIModel creates a new OpenAI model client. baseURL points at an
// OpenAI-compatible endpoint; empty means api.openai.com.
func NewOpenAIModel(apiKey, model, baseURL string, dims int) (*OpenAIModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	if model == "" {
		model = "text-embedding-3-small"
	}

	if dims == 0 {
		dims = 1536 // text-embedding-3-small, text-embedding-ada-002
		if model == "text-embedding-3-large" {
			dims = 3072
		}
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIModel{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		dims:   dims,
	}, nil
}

// Embed generates an embedding for a single text
func (o *OpenAIModel) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request
func (o *OpenAIModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	// Sort by index to maintain order
	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(embeddings) {
			continue
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		embeddings[item.Index] = vec
	}

	for i, emb := range embeddings {
		if len(emb) == 0 {
			return nil, fmt.Errorf("empty embedding returned for input %d", i)
		}
	}

	return embeddings, nil
}

// Dimensions returns the embedding dimension size
func (o *OpenAIModel) Dimensions() int {
	return o.dims
}

// Name returns the model name
func (o *OpenAIModel) Name() string {
	return fmt.Sprintf("openai/%s", o.model)
}
