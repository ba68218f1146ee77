package embeddings

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CLIPModel talks to a CLIP inference server that embeds both images and
// text into one shared vector space.
//
// Wire format:
//
//	POST {base}/embed/text   {"model": "...", "texts": ["..."]}
//	POST {base}/embed/image  {"model": "...", "images": [{"data": "<base64>", "mime_type": "image/png"}]}
//	-> 200 {"embeddings": [[0.1, ...], ...]}
type CLIPModel struct {
	baseURL string
	model   string
	client  *http.Client
	dims    int
}

// NewCLIPModel creates a CLIP server client. dims defaults to 512
// (ViT-B/32).
func NewCLIPModel(baseURL, model string, dims int) (*CLIPModel, error) {
	if baseURL == "" {
		baseURL = "http://localhost:51000"
	}
	if model == "" {
		model = "ViT-B-32"
	}
	if dims == 0 {
		dims = 512
	}

	return &CLIPModel{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
		dims:    dims,
	}, nil
}

type clipImage struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
}

type clipRequest struct {
	Model  string      `json:"model"`
	Texts  []string    `json:"texts,omitempty"`
	Images []clipImage `json:"images,omitempty"`
}

type clipResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed generates an embedding for a single text
func (c *CLIPModel) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request
func (c *CLIPModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.post(ctx, "/embed/text", clipRequest{Model: c.model, Texts: texts}, len(texts))
}

// EmbedImage generates an embedding for an encoded image
func (c *CLIPModel) EmbedImage(ctx context.Context, data []byte, mimeType string) ([]float32, error) {
	embeddings, err := c.post(ctx, "/embed/image", clipRequest{
		Model: c.model,
		Images: []clipImage{{
			Data:     base64.StdEncoding.EncodeToString(data),
			MimeType: mimeType,
		}},
	}, 1)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (c *CLIPModel) post(ctx context.Context, path string, body clipRequest, want int) ([][]float32, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var result clipResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode != http.StatusOK {
		if result.Error != "" {
			return nil, fmt.Errorf("clip server error (status %d): %s", resp.StatusCode, result.Error)
		}
		return nil, fmt.Errorf("clip server returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	if len(result.Embeddings) != want {
		return nil, fmt.Errorf("clip server returned %d embeddings, expected %d", len(result.Embeddings), want)
	}
	for i, emb := range result.Embeddings {
		if len(emb) == 0 {
			return nil, fmt.Errorf("empty embedding returned for input %d", i)
		}
	}

	return result.Embeddings, nil
}

// Dimensions returns the embedding dimension size
func (c *CLIPModel) Dimensions() int {
	return c.dims
}

// Name returns the model name
func (c *CLIPModel) Name() string {
	return fmt.Sprintf("clip/%s", c.model)
}
