package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ollamaMaxBatch caps the inputs sent in one /api/embed request.
const ollamaMaxBatch = 64

// OllamaModel implements Model using Ollama's local API.
//
// Wire format:
//
//	GET  {base}/api/tags   -> {"models": [{"name": "all-minilm:latest"}, ...]}
//	POST {base}/api/embed  {"model": "...", "input": ["..."], "truncate": true}
//	-> 200 {"model": "...", "embeddings": [[0.1, ...], ...]}
//	-> 4xx/5xx {"error": "..."}
type OllamaModel struct {
	baseURL string
	model   string
	client  *http.Client
	dims    int
}

var ollamaDimensions = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type ollamaEmbedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// NewOllamaModel creates an Ollama client and checks that the server is
// reachable and model has been pulled. dims overrides the known dimension of
// model when non-zero.
func NewOllamaModel(baseURL, model string, dims int) (*OllamaModel, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}

	if dims == 0 {
		known, ok := ollamaDimensions[model]
		if !ok {
			return nil, fmt.Errorf("unknown dimensions for ollama model %q (set dimensions in config)", model)
		}
		dims = known
	}

	o := &OllamaModel{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
		dims:    dims,
	}

	pulled, err := o.Models(context.Background())
	if err != nil {
		return nil, err
	}
	if !hasOllamaModel(pulled, model) {
		return nil, fmt.Errorf("ollama model %s is not pulled (run 'ollama pull %s')", model, model)
	}

	return o, nil
}

// Models lists the models pulled on the server
func (o *OllamaModel) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama not running at %s: %w", o.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var tags ollamaTags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// hasOllamaModel matches model against pulled names, where an untagged
// name means ":latest".
func hasOllamaModel(pulled []string, model string) bool {
	want := model
	if !strings.Contains(want, ":") {
		want += ":latest"
	}
	for _, name := range pulled {
		if name == model || name == want {
			return true
		}
	}
	return false
}

// Embed generates an embedding for a single text
func (o *OllamaModel) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := o.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts, ollamaMaxBatch per
// request
func (o *OllamaModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += ollamaMaxBatch {
		end := min(start+ollamaMaxBatch, len(texts))
		embeddings, err := o.embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed texts %d-%d: %w", start, end-1, err)
		}
		out = append(out, embeddings...)
	}
	return out, nil
}

func (o *OllamaModel) embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Input: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result ollamaEmbedResponse
	decodeErr := json.Unmarshal(data, &result)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && result.Error != "" {
			return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, result.Error)
		}
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(result.Embeddings), len(texts))
	}
	for i, emb := range result.Embeddings {
		if len(emb) == 0 {
			return nil, fmt.Errorf("empty embedding returned for input %d", i)
		}
	}

	return result.Embeddings, nil
}

// Dimensions returns the embedding dimension size
func (o *OllamaModel) Dimensions() int {
	return o.dims
}

// Name returns the model name
func (o *OllamaModel) Name() string {
	return fmt.Sprintf("ollama/%s", o.model)
}
