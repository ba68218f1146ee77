// Package embeddings turns items and free text into fingerprints.
//
// Float embedding models (Ollama, OpenAI, a CLIP server) implement Model and,
// for images, ImageModel. A Hasher combines them with a
// fingerprint.Binarizer into an Embedder, the two-method capability the
// explorer consumes.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/iishyfishyy/lookalike/internal/dataset"
	"github.com/iishyfishyy/lookalike/internal/fingerprint"
)

// ErrNoFingerprint signals that an item has no usable payload to embed.
var ErrNoFingerprint = errors.New("no fingerprint")

// Embedder derives fingerprints from items and text.
type Embedder interface {
	// EmbedItem fingerprints an item's payload. It returns an error wrapping
	// ErrNoFingerprint when the item has nothing to embed.
	EmbedItem(ctx context.Context, item *dataset.Item) (fingerprint.Fingerprint, error)

	// EmbedText fingerprints a free-text query.
	EmbedText(ctx context.Context, text string) (fingerprint.Fingerprint, error)
}

// BatchEmbedder is implemented by embedders that can fingerprint many items
// in one call. The result has one entry per item; a zero Fingerprint marks
// an item with nothing to embed.
type BatchEmbedder interface {
	Embedder
	EmbedItems(ctx context.Context, items []*dataset.Item) ([]fingerprint.Fingerprint, error)
}

// Model generates float embedding vectors for text
type Model interface {
	// Embed generates an embedding vector for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the size of the embedding vectors
	Dimensions() int

	// Name returns the name/model of this embedder
	Name() string
}

// ImageModel generates float embedding vectors for images, in the same
// vector space as a paired text Model.
type ImageModel interface {
	EmbedImage(ctx context.Context, data []byte, mimeType string) ([]float32, error)
	Dimensions() int
	Name() string
}

// Config holds configuration for creating a model
type Config struct {
	Provider string

	// Dimensions overrides the per-model default when non-zero
	Dimensions int

	// Ollama config
	OllamaURL   string
	OllamaModel string

	// OpenAI config
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	// CLIP server config
	CLIPURL   string
	CLIPModel string
}

// NewModel creates the text model and, when the provider supports images,
// the image model for cfg. The image model is nil for text-only providers.
func NewModel(cfg Config) (Model, ImageModel, error) {
	switch cfg.Provider {
	case "ollama":
		m, err := NewOllamaModel(cfg.OllamaURL, cfg.OllamaModel, cfg.Dimensions)
		if err != nil {
			return nil, nil, err
		}
		return m, nil, nil
	case "openai":
		m, err := NewOpenAIModel(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cfg.Dimensions)
		if err != nil {
			return nil, nil, err
		}
		return m, nil, nil
	case "clip":
		m, err := NewCLIPModel(cfg.CLIPURL, cfg.CLIPModel, cfg.Dimensions)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
}
